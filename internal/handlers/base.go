// Package handlers implements the HTTP surface: OAuth connect and
// disconnect, analysis submission and status reads, raw journal appends,
// and model-structured journal submissions.
package handlers

import (
	"encoding/json"
	"net/http"

	"trade-coach/internal/cache"
	"trade-coach/internal/common/errors"
	"trade-coach/internal/common/logging"
	"trade-coach/internal/dispatch"
	"trade-coach/internal/journal"
	"trade-coach/internal/store"
	"trade-coach/internal/vault"
)

// Handlers holds every dependency the HTTP layer touches.
type Handlers struct {
	storage  store.Storage
	cache    *cache.StatusCache
	vault    *vault.Vault
	signer   *vault.StateSigner
	authURL   func(state string) string
	enqueuer  *dispatch.Enqueuer
	journal   *journal.Client
	extractor *journal.Extractor
	logger    logging.Logger
}

type Options struct {
	Storage   store.Storage
	Cache     *cache.StatusCache
	Vault     *vault.Vault
	Signer    *vault.StateSigner
	AuthURL   func(state string) string
	Enqueuer  *dispatch.Enqueuer
	Journal   *journal.Client
	Extractor *journal.Extractor
	Logger    logging.Logger
}

func New(opts Options) *Handlers {
	if opts.Logger == nil {
		opts.Logger = logging.GetGlobalLogger()
	}
	return &Handlers{
		storage:   opts.Storage,
		cache:     opts.Cache,
		vault:     opts.Vault,
		signer:    opts.Signer,
		authURL:   opts.AuthURL,
		enqueuer:  opts.Enqueuer,
		journal:   opts.Journal,
		extractor: opts.Extractor,
		logger:    opts.Logger,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type,omitempty"`
}

// writeError maps the error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errors.GetType(err) {
	case errors.ErrTypeValidation:
		status = http.StatusBadRequest
	case errors.ErrTypeNotFound:
		status = http.StatusNotFound
	case errors.ErrTypeAuthRequired:
		status = http.StatusUnauthorized
	case errors.ErrTypeConnection, errors.ErrTypeTimeout:
		status = http.StatusBadGateway
	}
	writeJSON(w, status, errorResponse{
		Error: err.Error(),
		Type:  string(errors.GetType(err)),
	})
}
