package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"trade-coach/internal/common/errors"
	"trade-coach/internal/common/logging"
	"trade-coach/internal/dispatch"
	"trade-coach/internal/middleware"
	"trade-coach/internal/store"
)

type createAnalysisRequest struct {
	SheetID    string `json:"sheet_id"`
	SheetRange string `json:"sheet_range,omitempty"`
	Prompt     string `json:"prompt,omitempty"`
	StartDate  string `json:"start_date,omitempty"`
	EndDate    string `json:"end_date,omitempty"`
}

type analysisResponse struct {
	JobID            string          `json:"job_id"`
	Status           string          `json:"status"`
	SheetID          string          `json:"sheet_id"`
	SheetRange       string          `json:"sheet_range,omitempty"`
	Prompt           string          `json:"prompt,omitempty"`
	StartDate        string          `json:"start_date,omitempty"`
	EndDate          string          `json:"end_date,omitempty"`
	FailureReason    string          `json:"failure_reason,omitempty"`
	Report           json.RawMessage `json:"report,omitempty"`
	ReportMarkdown   string          `json:"report_markdown,omitempty"`
	AudioInsights    []string        `json:"audio_insights,omitempty"`
	ImageInsights    []string        `json:"image_insights,omitempty"`
	ExternalResearch []string        `json:"external_research,omitempty"`
	RequestedAt      time.Time       `json:"requested_at"`
	StartedAt        *time.Time      `json:"started_at,omitempty"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
}

func toResponse(rec *store.AnalysisRecord) analysisResponse {
	resp := analysisResponse{
		JobID:            rec.JobID,
		Status:           string(rec.Status),
		SheetID:          rec.SheetID,
		SheetRange:       rec.SheetRange,
		Prompt:           rec.Prompt,
		StartDate:        rec.StartDate,
		EndDate:          rec.EndDate,
		FailureReason:    rec.FailureReason,
		ReportMarkdown:   rec.ReportMarkdown,
		AudioInsights:    rec.AudioInsights,
		ImageInsights:    rec.ImageInsights,
		ExternalResearch: rec.ExternalResearch,
		RequestedAt:      rec.RequestedAt,
		StartedAt:        rec.StartedAt,
		CompletedAt:      rec.CompletedAt,
	}
	if rec.ReportJSON != "" {
		resp.Report = json.RawMessage(rec.ReportJSON)
	}
	return resp
}

// CreateAnalysis accepts an analysis request and returns 202 with the job
// id; the heavy lifting happens on the queue.
func (h *Handlers) CreateAnalysis(w http.ResponseWriter, r *http.Request) {
	var req createAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.ValidationError("invalid request body"))
		return
	}

	rec, err := h.enqueuer.Enqueue(r.Context(), dispatch.Request{
		UserID:     middleware.UserID(r),
		SheetID:    req.SheetID,
		SheetRange: req.SheetRange,
		Prompt:     req.Prompt,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, toResponse(rec))
}

// GetAnalysis serves a job's status, trying the cache before the database.
// Terminal results get cached; in-flight states always come from the
// database next time because the cache was invalidated on transition.
func (h *Handlers) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	jobID := mux.Vars(r)["job_id"]

	if h.cache != nil {
		if rec, err := h.cache.Get(r.Context(), userID, jobID); err == nil && rec != nil {
			writeJSON(w, http.StatusOK, toResponse(rec))
			return
		}
	}

	rec, err := h.storage.GetAnalysis(r.Context(), userID, jobID)
	if err != nil {
		writeError(w, err)
		return
	}

	if h.cache != nil {
		if err := h.cache.Set(r.Context(), rec); err != nil {
			h.logger.Warn("Failed to cache analysis status",
				logging.String("job_id", jobID),
				logging.Err(err))
		}
	}

	writeJSON(w, http.StatusOK, toResponse(rec))
}

// ListAnalyses returns the caller's recent jobs, newest first.
func (h *Handlers) ListAnalyses(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			writeError(w, errors.ValidationError("limit must be between 1 and 100"))
			return
		}
		limit = parsed
	}

	records, err := h.storage.ListAnalyses(r.Context(), middleware.UserID(r), limit)
	if err != nil {
		writeError(w, err)
		return
	}

	responses := make([]analysisResponse, 0, len(records))
	for _, rec := range records {
		responses = append(responses, toResponse(rec))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"analyses": responses})
}
