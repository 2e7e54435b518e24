// Package report turns a window of trades and their enrichment insights
// into a structured coaching report. The model must answer in one fixed
// JSON shape; a malformed answer earns exactly one corrective retry before
// the job fails.
package report

import (
	"encoding/json"
	"strings"
)

// Report is the fixed output schema. The four collection fields are never
// nil after normalization so downstream JSON always shows them, empty or
// not.
type Report struct {
	PerformanceOverview PerformanceOverview `json:"performance_overview"`
	BehaviouralPatterns []string            `json:"behavioural_patterns"`
	Opportunities       []string            `json:"opportunities"`
	ActionPlan          []ActionItem        `json:"action_plan"`
}

// PerformanceOverview summarises the period in prose plus headline numbers.
type PerformanceOverview struct {
	Summary    string   `json:"summary"`
	KeyMetrics []string `json:"key_metrics"`
}

// ActionItem is one concrete step the trader should take next.
type ActionItem struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// Normalize replaces nil collections with empty ones and trims whitespace
// from the summary.
func (r *Report) Normalize() {
	r.PerformanceOverview.Summary = strings.TrimSpace(r.PerformanceOverview.Summary)
	if r.PerformanceOverview.KeyMetrics == nil {
		r.PerformanceOverview.KeyMetrics = []string{}
	}
	if r.BehaviouralPatterns == nil {
		r.BehaviouralPatterns = []string{}
	}
	if r.Opportunities == nil {
		r.Opportunities = []string{}
	}
	if r.ActionPlan == nil {
		r.ActionPlan = []ActionItem{}
	}
}

// JSON renders the normalized report as compact JSON for storage.
func (r *Report) JSON() (string, error) {
	r.Normalize()
	data, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Parse decodes model output into a Report. It tolerates a markdown code
// fence around the JSON but rejects anything that is not a single object
// with a non-empty summary.
func Parse(raw string) (*Report, error) {
	cleaned := stripCodeFence(raw)

	decoder := json.NewDecoder(strings.NewReader(cleaned))
	decoder.DisallowUnknownFields()

	var r Report
	if err := decoder.Decode(&r); err != nil {
		return nil, err
	}
	if decoder.More() {
		return nil, errTrailingContent
	}
	if strings.TrimSpace(r.PerformanceOverview.Summary) == "" {
		return nil, errEmptySummary
	}
	r.Normalize()
	return &r, nil
}

type parseError string

func (e parseError) Error() string { return string(e) }

const (
	errEmptySummary    = parseError("performance_overview.summary is empty")
	errTrailingContent = parseError("unexpected content after the report object")
)

func stripCodeFence(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if !strings.HasPrefix(cleaned, "```") {
		return cleaned
	}
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	return strings.TrimSpace(cleaned)
}
