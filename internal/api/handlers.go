// Package api exposes HTTP handlers for the insights read surface.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"example.com/insights/internal/anonymize"
	"example.com/insights/internal/auth"
	"example.com/insights/internal/coverage"
	"example.com/insights/internal/domain"
	"example.com/insights/internal/reconstruct"
)

// CoverageProvider computes the per-day coverage and focus rollups.
type CoverageProvider interface {
	Compute(ctx context.Context) ([]domain.CoverageScore, error)
	FocusTime(ctx context.Context, fromDay, toDay string) ([]coverage.FocusTime, error)
}

// ActivityStore reads window-activity records for listing and export.
type ActivityStore interface {
	RecentWindowActivities(ctx context.Context, limit int) ([]domain.WindowActivity, error)
	WindowActivitiesByIDs(ctx context.Context, ids []string) ([]domain.WindowActivity, error)
}

// Reconstructor runs the batch derivation passes on demand.
type Reconstructor interface {
	Run(ctx context.Context) (reconstruct.Result, error)
}

// Handler coordinates HTTP requests with the aggregation and batch layers.
type Handler struct {
	coverage      CoverageProvider
	activities    ActivityStore
	reconstructor Reconstructor
	logger        *log.Logger
}

// NewHandler builds a Handler.
func NewHandler(cov CoverageProvider, activities ActivityStore, rec Reconstructor, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.New(log.Writer(), "[api] ", log.LstdFlags)
	}
	return &Handler{coverage: cov, activities: activities, reconstructor: rec, logger: logger}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/coverage", h.coverageScores)
	mux.HandleFunc("/v1/rollups/focus", h.focusRollup)
	mux.HandleFunc("/v1/activities/recent", h.recentActivities)
	mux.HandleFunc("/v1/export", h.export)
	mux.HandleFunc("/v1/reconstruct", h.runReconstruction)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) coverageScores(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if !requireScope(w, r, auth.ScopeRead) {
		return
	}

	scores, err := h.coverage.Compute(r.Context())
	if err != nil {
		h.logger.Printf("coverage computation failed: %v", err)
		writeError(w, http.StatusInternalServerError, "server_error", "coverage computation failed")
		return
	}
	writeJSON(w, http.StatusOK, CoverageResponse{Days: scores})
}

func (h *Handler) focusRollup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if !requireScope(w, r, auth.ScopeRead) {
		return
	}

	fromDay := r.URL.Query().Get("from")
	toDay := r.URL.Query().Get("to")
	if (fromDay != "" && !validDay(fromDay)) || (toDay != "" && !validDay(toDay)) {
		writeError(w, http.StatusBadRequest, "validation_failed", "from/to must be YYYY-MM-DD")
		return
	}

	rollup, err := h.coverage.FocusTime(r.Context(), fromDay, toDay)
	if err != nil {
		h.logger.Printf("focus rollup failed: %v", err)
		writeError(w, http.StatusInternalServerError, "server_error", "focus rollup failed")
		return
	}
	writeJSON(w, http.StatusOK, FocusRollupResponse{Items: rollup})
}

func (h *Handler) recentActivities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if !requireScope(w, r, auth.ScopeRead) {
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "validation_failed", "limit must be a positive integer")
			return
		}
		if parsed > 500 {
			parsed = 500
		}
		limit = parsed
	}

	records, err := h.activities.RecentWindowActivities(r.Context(), limit)
	if err != nil {
		h.logger.Printf("recent activities query failed: %v", err)
		writeError(w, http.StatusInternalServerError, "server_error", "query failed")
		return
	}

	items := make([]ActivityView, 0, len(records))
	for _, rec := range records {
		items = append(items, toActivityView(rec))
	}
	writeJSON(w, http.StatusOK, ListActivitiesResponse{Items: items})
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if !requireScope(w, r, auth.ScopeExport) {
		return
	}

	var req ExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "validation_failed", "ids is required")
		return
	}

	records, err := h.activities.WindowActivitiesByIDs(r.Context(), req.IDs)
	if err != nil {
		h.logger.Printf("export query failed: %v", err)
		writeError(w, http.StatusInternalServerError, "server_error", "query failed")
		return
	}

	// Pseudonyms are scoped to a single export; a fresh mapping per request
	// keeps exports uncorrelatable with each other.
	exported := anonymize.New(h.logger).Records(records, req.Obfuscate)

	items := make([]ActivityView, 0, len(exported))
	for _, rec := range exported {
		items = append(items, toActivityView(rec))
	}
	writeJSON(w, http.StatusOK, ExportResponse{Items: items, Obfuscated: req.Obfuscate})
}

func (h *Handler) runReconstruction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if !requireScope(w, r, auth.ScopeAdmin) {
		return
	}

	result, err := h.reconstructor.Run(r.Context())
	if err != nil {
		h.logger.Printf("reconstruction failed: %v", err)
		writeError(w, http.StatusInternalServerError, "server_error", "reconstruction failed")
		return
	}
	writeJSON(w, http.StatusOK, ReconstructResponse{
		SessionsInserted:     result.SessionsInserted,
		SessionsDeleted:      result.SessionsDeleted,
		ActivitiesBackfilled: result.ActivitiesBackfilled,
	})
}

func requireScope(w http.ResponseWriter, r *http.Request, scope string) bool {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return false
	}
	if !claims.HasScope(scope) && !claims.HasScope(auth.ScopeAdmin) {
		writeError(w, http.StatusForbidden, "forbidden", "scope "+scope+" required")
		return false
	}
	return true
}

// validDay checks the YYYY-MM-DD shape without pulling in time parsing; the
// store treats day bounds as opaque sortable strings.
func validDay(day string) bool {
	if len(day) != 10 || day[4] != '-' || day[7] != '-' {
		return false
	}
	for i, c := range day {
		if i == 4 || i == 7 {
			continue
		}
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// CoverageResponse lists per-day coverage scores, highest first.
type CoverageResponse struct {
	Days []domain.CoverageScore `json:"days"`
}

// FocusRollupResponse packages the per-day focus-time rollup.
type FocusRollupResponse struct {
	Items []coverage.FocusTime `json:"items"`
}

// ActivityView exposes one window-activity interval.
type ActivityView struct {
	ID              string  `json:"id"`
	WindowTitle     string  `json:"window_title"`
	ProcessName     string  `json:"process_name"`
	ProcessPath     string  `json:"process_path,omitempty"`
	ProcessID       string  `json:"process_id,omitempty"`
	URL             string  `json:"url,omitempty"`
	Activity        string  `json:"activity"`
	TsStart         string  `json:"ts_start"`
	TsEnd           *string `json:"ts_end,omitempty"`
	DurationSeconds *int    `json:"duration_seconds,omitempty"`
}

// ListActivitiesResponse packages list results.
type ListActivitiesResponse struct {
	Items []ActivityView `json:"items"`
}

// ExportRequest is the payload for POST /v1/export.
type ExportRequest struct {
	IDs       []string `json:"ids"`
	Obfuscate bool     `json:"obfuscate"`
}

// ExportResponse returns the exported records.
type ExportResponse struct {
	Items      []ActivityView `json:"items"`
	Obfuscated bool           `json:"obfuscated"`
}

// ReconstructResponse reports counts from an on-demand batch run.
type ReconstructResponse struct {
	SessionsInserted     int `json:"sessions_inserted"`
	SessionsDeleted      int `json:"sessions_deleted"`
	ActivitiesBackfilled int `json:"activities_backfilled"`
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toActivityView(rec domain.WindowActivity) ActivityView {
	return ActivityView{
		ID:              rec.ID,
		WindowTitle:     rec.WindowTitle,
		ProcessName:     rec.ProcessName,
		ProcessPath:     rec.ProcessPath,
		ProcessID:       rec.ProcessID,
		URL:             rec.URL,
		Activity:        rec.Activity,
		TsStart:         rec.TsStart,
		TsEnd:           rec.TsEnd,
		DurationSeconds: rec.DurationSeconds,
	}
}
