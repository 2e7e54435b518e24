package handlers

import (
	"encoding/json"
	"net/http"

	"trade-coach/internal/common/errors"
	"trade-coach/internal/journal"
	"trade-coach/internal/middleware"
)

type appendEntryRequest struct {
	SheetID    string   `json:"sheet_id"`
	SheetRange string   `json:"sheet_range,omitempty"`
	Cells      []string `json:"cells"`
}

// AppendEntry writes one row to the user's journal sheet, for clients that
// log trades through this service instead of the spreadsheet UI.
func (h *Handlers) AppendEntry(w http.ResponseWriter, r *http.Request) {
	var req appendEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.ValidationError("invalid request body"))
		return
	}
	if req.SheetID == "" {
		writeError(w, errors.ValidationError("sheet_id is required"))
		return
	}
	if len(req.Cells) == 0 {
		writeError(w, errors.ValidationError("cells must not be empty"))
		return
	}

	userID := middleware.UserID(r)
	token, err := h.vault.GetValidToken(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.journal.AppendTrade(r.Context(), token, req.SheetID, req.SheetRange, req.Cells); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"status": "appended"})
}

type submitEntryRequest struct {
	SheetID     string            `json:"sheet_id"`
	SheetRange  string            `json:"sheet_range,omitempty"`
	Content     string            `json:"content"`
	Overrides   map[string]string `json:"overrides,omitempty"`
	Attachments []struct {
		Filename string `json:"filename"`
		MimeType string `json:"mime_type"`
	} `json:"attachments,omitempty"`
}

// SubmitEntry structures a free-form trade description with the model and
// appends the result to the journal sheet. Overrides carry fields the
// client already knows; they beat whatever the model extracts.
func (h *Handlers) SubmitEntry(w http.ResponseWriter, r *http.Request) {
	var req submitEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.ValidationError("invalid request body"))
		return
	}
	if req.SheetID == "" {
		writeError(w, errors.ValidationError("sheet_id is required"))
		return
	}
	if req.Content == "" {
		writeError(w, errors.ValidationError("content is required"))
		return
	}
	if h.extractor == nil {
		writeError(w, errors.ConfigError("trade extraction is not configured"))
		return
	}

	userID := middleware.UserID(r)
	token, err := h.vault.GetValidToken(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	sub := journal.Submission{
		Content:   req.Content,
		Overrides: req.Overrides,
	}
	for _, a := range req.Attachments {
		sub.Attachments = append(sub.Attachments, journal.SubmissionAttachment{
			Filename: a.Filename,
			MimeType: a.MimeType,
		})
	}

	entry, err := h.extractor.Extract(r.Context(), sub)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.journal.AppendTrade(r.Context(), token, req.SheetID, req.SheetRange, entry.Row()); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"status": "appended",
		"entry":  entry,
	})
}
