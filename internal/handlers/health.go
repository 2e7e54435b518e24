package handlers

import (
	"net/http"
	"time"
)

// HealthCheck reports storage health; the cache is optional and only noted.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.storage.Health(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"reason": "storage: " + err.Error(),
		})
		return
	}

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	}
	if h.cache != nil {
		if err := h.cache.Health(); err != nil {
			health["cache"] = "unavailable"
		} else {
			health["cache"] = "ok"
		}
	}
	writeJSON(w, http.StatusOK, health)
}
