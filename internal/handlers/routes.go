package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"trade-coach/internal/middleware"
)

// Routes builds the router. The OAuth callback sits outside the identity
// middleware because Google calls it, not the gateway.
func (h *Handlers) Routes() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.HandleFunc("/auth/google/callback", h.GoogleCallback).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	api.Use(middleware.RequireUser)

	api.HandleFunc("/auth/google/login", h.GoogleLogin).Methods("GET")
	api.HandleFunc("/auth/google", h.GoogleDisconnect).Methods("DELETE")

	api.HandleFunc("/analyses", h.CreateAnalysis).Methods("POST")
	api.HandleFunc("/analyses", h.ListAnalyses).Methods("GET")
	api.HandleFunc("/analyses/{job_id}", h.GetAnalysis).Methods("GET")

	api.HandleFunc("/journal/entries", h.AppendEntry).Methods("POST")
	api.HandleFunc("/journal/submissions", h.SubmitEntry).Methods("POST")

	return middleware.LoggingMiddleware(router)
}
