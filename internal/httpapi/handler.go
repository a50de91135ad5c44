// Package httpapi implements the HTTP control surface of the recommend
// service.
//
// Routes:
//
//	POST /admin/run-recommended      → start a pull (202, 409, 500)
//	GET  /admin/recommended-status   → latest run snapshot for pollers
//	POST /admin/runs/{id}/cancel     → request cooperative cancellation
//	POST /admin/clear-recommended    → wipe runs + matches
//	POST /admin/clear-jobs           → wipe jobs and everything referencing them
//	GET  /recommended                → latest run's ranked matches
//	POST /jobs/{id}/ignore           → toggle the ignored flag on a job
//
// plus the configuration CRUD in config_handlers.go. Authentication and
// gateway concerns are out of scope — an upstream proxy owns them.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"jobby/recommend-service/internal/model"
	"jobby/recommend-service/internal/runner"
	"jobby/recommend-service/internal/scheduler"
	"jobby/recommend-service/internal/store"
)

// Stores bundles the persistence dependencies of the handler.
type Stores struct {
	Jobs        *store.Jobs
	Runs        *store.Runs
	Matches     *store.Matches
	Queries     *store.Queries
	Patterns    *store.Patterns
	Settings    *store.Settings
	Maintenance *store.Maintenance
}

// Handler holds shared dependencies for all routes.
type Handler struct {
	stores    Stores
	coord     *runner.Coordinator
	scheduler *scheduler.Scheduler
}

// NewHandler returns a configured Handler.
func NewHandler(stores Stores, coord *runner.Coordinator, sched *scheduler.Scheduler) *Handler {
	return &Handler{stores: stores, coord: coord, scheduler: sched}
}

// RegisterRoutes mounts all routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /admin/run-recommended", h.runRecommended)
	mux.HandleFunc("GET /admin/recommended-status", h.recommendedStatus)
	mux.HandleFunc("POST /admin/runs/{id}/cancel", h.cancelRun)
	mux.HandleFunc("POST /admin/clear-recommended", h.clearRecommended)
	mux.HandleFunc("POST /admin/clear-jobs", h.clearJobs)
	mux.HandleFunc("GET /recommended", h.listRecommended)
	mux.HandleFunc("POST /jobs/{id}/ignore", h.ignoreJob)

	h.registerConfigRoutes(mux)
}

// ─── Run control ─────────────────────────────────────────────────────────────

func (h *Handler) runRecommended(w http.ResponseWriter, r *http.Request) {
	runID, err := h.coord.StartPull(r.Context())
	switch {
	case errors.Is(err, runner.ErrRunActive):
		jsonError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, runner.ErrNoQueries):
		jsonError(w, err.Error(), http.StatusInternalServerError)
	case err != nil:
		slog.Error("start pull", "err", err)
		jsonError(w, "failed to start pull", http.StatusInternalServerError)
	default:
		writeJSON(w, http.StatusAccepted, map[string]any{"started": true, "runId": runID})
	}
}

func (h *Handler) recommendedStatus(w http.ResponseWriter, r *http.Request) {
	latest, err := h.stores.Runs.Latest(r.Context())
	if err != nil {
		slog.Error("latest run", "err", err)
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}
	if latest == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "none"})
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Status:       latest.Status,
		RunID:        latest.ID,
		RunAt:        latest.RunAt,
		TotalFetched: latest.TotalFetched,
		NewJobs:      latest.NewJobs,
		Duplicates:   latest.Duplicates,
		QueryErrors:  latest.QueryErrors,
		ErrorMessage: latest.ErrorMessage,
	})
}

// statusResponse is the poller-facing run snapshot.
type statusResponse struct {
	Status       string    `json:"status"`
	RunID        int64     `json:"runId"`
	RunAt        time.Time `json:"runAt"`
	TotalFetched int       `json:"totalFetched"`
	NewJobs      int       `json:"newJobs"`
	Duplicates   int       `json:"duplicates"`
	QueryErrors  int       `json:"queryErrors"`
	ErrorMessage *string   `json:"errorMessage"`
}

func (h *Handler) cancelRun(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.coord.Cancel(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			jsonError(w, "no running run with that id", http.StatusNotFound)
			return
		}
		slog.Error("cancel run", "runId", id, "err", err)
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"cancelling": true, "runId": id})
}

// ─── Maintenance ─────────────────────────────────────────────────────────────

func (h *Handler) clearRecommended(w http.ResponseWriter, r *http.Request) {
	if err := h.stores.Maintenance.ClearRecommended(r.Context()); err != nil {
		slog.Error("clear recommended", "err", err)
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) clearJobs(w http.ResponseWriter, r *http.Request) {
	if err := h.stores.Maintenance.ClearJobs(r.Context()); err != nil {
		slog.Error("clear jobs", "err", err)
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ─── Recommended listing ─────────────────────────────────────────────────────

// jobJSON is the client-facing job shape.
type jobJSON struct {
	ID           int64      `json:"id"`
	Source       string     `json:"source"`
	Title        string     `json:"title"`
	Company      string     `json:"company"`
	Location     string     `json:"location"`
	Description  string     `json:"description"`
	IsRemote     bool       `json:"isRemote"`
	SalaryMin    *float64   `json:"salaryMin"`
	SalaryMax    *float64   `json:"salaryMax"`
	URL          string     `json:"url"`
	PostedAt     *time.Time `json:"postedAt"`
	DiscoveredAt time.Time  `json:"discoveredAt"`
	Score        float64    `json:"score"`
}

func toJobJSON(j model.Job, score float64) jobJSON {
	return jobJSON{
		ID: j.ID, Source: j.Source, Title: j.Title, Company: j.Company,
		Location: j.Location, Description: j.Description, IsRemote: j.IsRemote,
		SalaryMin: j.SalaryMin, SalaryMax: j.SalaryMax, URL: j.URL,
		PostedAt: j.PostedAt, DiscoveredAt: j.DiscoveredAt, Score: score,
	}
}

func (h *Handler) listRecommended(w http.ResponseWriter, r *http.Request) {
	latest, err := h.stores.Runs.Latest(r.Context())
	if err != nil {
		slog.Error("latest run", "err", err)
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}
	if latest == nil {
		writeJSON(w, http.StatusOK, []jobJSON{})
		return
	}

	matched, err := h.stores.Matches.ListWithJobs(r.Context(), latest.ID)
	if err != nil {
		slog.Error("list matches", "runId", latest.ID, "err", err)
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}

	out := make([]jobJSON, 0, len(matched))
	for _, m := range matched {
		out = append(out, toJobJSON(m.Job, m.Score))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) ignoreJob(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var body struct {
		Ignored *bool `json:"ignored"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Ignored == nil {
		jsonError(w, "ignored (boolean) is required", http.StatusBadRequest)
		return
	}

	if err := h.stores.Jobs.SetIgnored(r.Context(), id, *body.Ignored); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			jsonError(w, "job not found", http.StatusNotFound)
			return
		}
		slog.Error("set ignored", "jobId", id, "err", err)
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "err", err)
	}
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
