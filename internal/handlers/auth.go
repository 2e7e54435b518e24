package handlers

import (
	"net/http"

	"trade-coach/internal/common/errors"
	"trade-coach/internal/common/logging"
	"trade-coach/internal/middleware"
)

// GoogleLogin starts the OAuth flow. The user id travels inside a signed
// state token so the callback can recover it without a session.
func (h *Handlers) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)

	state, err := h.signer.Sign(userID)
	if err != nil {
		writeError(w, err)
		return
	}

	http.Redirect(w, r, h.authURL(state), http.StatusTemporaryRedirect)
}

// GoogleCallback finishes the OAuth flow: verify the state, exchange the
// code, and store the encrypted tokens.
func (h *Handlers) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if oauthErr := query.Get("error"); oauthErr != "" {
		writeError(w, errors.AuthRequiredError("google authorization was denied: "+oauthErr))
		return
	}

	userID, err := h.signer.Verify(query.Get("state"))
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.vault.ExchangeCode(r.Context(), userID, query.Get("code")); err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("Google account connected", logging.String("user_id", userID))
	writeJSON(w, http.StatusOK, map[string]string{"status": "connected"})
}

// GoogleDisconnect removes the stored credential.
func (h *Handlers) GoogleDisconnect(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)

	if err := h.vault.Disconnect(r.Context(), userID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "disconnected"})
}
