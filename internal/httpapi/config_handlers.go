// Configuration CRUD: saved queries, scoring patterns and settings.
// Validation mirrors what the pipeline can actually consume; the pipeline
// itself only reads the enabled subset at run start.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"jobby/recommend-service/internal/model"
	"jobby/recommend-service/internal/store"
)

func (h *Handler) registerConfigRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /queries", h.listQueries)
	mux.HandleFunc("POST /queries", h.createQuery)
	mux.HandleFunc("PUT /queries/{id}", h.updateQuery)
	mux.HandleFunc("PATCH /queries/{id}/toggle", h.toggleQuery)
	mux.HandleFunc("DELETE /queries/{id}", h.deleteQuery)

	mux.HandleFunc("GET /patterns", h.listPatterns)
	mux.HandleFunc("POST /patterns", h.createPattern)
	mux.HandleFunc("PUT /patterns/{id}", h.updatePattern)
	mux.HandleFunc("PATCH /patterns/{id}/toggle", h.togglePattern)
	mux.HandleFunc("DELETE /patterns/{id}", h.deletePattern)

	mux.HandleFunc("GET /settings", h.getSettings)
	mux.HandleFunc("PUT /settings", h.updateSettings)
}

// ─── Saved queries ───────────────────────────────────────────────────────────

var validDatePosted = []string{"all", "today", "3days", "week", "month"}

// queryInput is the create/update request body. Zero values fall back to
// the column defaults on create.
type queryInput struct {
	Query                string `json:"query"`
	Page                 int    `json:"page"`
	NumPages             int    `json:"numPages"`
	Country              string `json:"country"`
	Language             string `json:"language"`
	DatePosted           string `json:"datePosted"`
	WorkFromHome         bool   `json:"workFromHome"`
	EmploymentTypes      string `json:"employmentTypes"`
	JobRequirements      string `json:"jobRequirements"`
	Radius               *int   `json:"radius"`
	ExcludeJobPublishers string `json:"excludeJobPublishers"`
}

func (in *queryInput) validate() error {
	if strings.TrimSpace(in.Query) == "" {
		return fmt.Errorf("query is required and must be a non-empty string")
	}
	if in.Page < 1 || in.Page > 50 {
		return fmt.Errorf("page must be an integer between 1 and 50")
	}
	if in.NumPages < 1 || in.NumPages > 50 {
		return fmt.Errorf("numPages must be an integer between 1 and 50")
	}
	for _, v := range validDatePosted {
		if in.DatePosted == v {
			return nil
		}
	}
	return fmt.Errorf("datePosted must be one of: %s", strings.Join(validDatePosted, ", "))
}

func (in *queryInput) applyDefaults() {
	if in.Page == 0 {
		in.Page = 1
	}
	if in.NumPages == 0 {
		in.NumPages = 1
	}
	if in.Country == "" {
		in.Country = "us"
	}
	if in.DatePosted == "" {
		in.DatePosted = "all"
	}
}

func (in *queryInput) toModel() model.RecommendedQuery {
	return model.RecommendedQuery{
		Query:                strings.TrimSpace(in.Query),
		Page:                 in.Page,
		NumPages:             in.NumPages,
		Country:              in.Country,
		Language:             in.Language,
		DatePosted:           in.DatePosted,
		WorkFromHome:         in.WorkFromHome,
		EmploymentTypes:      in.EmploymentTypes,
		JobRequirements:      in.JobRequirements,
		Radius:               in.Radius,
		ExcludeJobPublishers: in.ExcludeJobPublishers,
	}
}

func decodeQueryInput(w http.ResponseWriter, r *http.Request) (*queryInput, bool) {
	var in queryInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return nil, false
	}
	in.applyDefaults()
	if err := in.validate(); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return &in, true
}

func (h *Handler) listQueries(w http.ResponseWriter, r *http.Request) {
	queries, err := h.stores.Queries.List(r.Context())
	if err != nil {
		slog.Error("list queries", "err", err)
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, queries)
}

func (h *Handler) createQuery(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeQueryInput(w, r)
	if !ok {
		return
	}
	created, err := h.stores.Queries.Create(r.Context(), in.toModel())
	if err != nil {
		slog.Error("create query", "err", err)
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) updateQuery(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	in, ok := decodeQueryInput(w, r)
	if !ok {
		return
	}
	updated, err := h.stores.Queries.Update(r.Context(), id, in.toModel())
	if err != nil {
		h.writeStoreError(w, "query", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) toggleQuery(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	toggled, err := h.stores.Queries.Toggle(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, "query", err)
		return
	}
	writeJSON(w, http.StatusOK, toggled)
}

func (h *Handler) deleteQuery(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.stores.Queries.Delete(r.Context(), id); err != nil {
		h.writeStoreError(w, "query", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ─── Scoring patterns ────────────────────────────────────────────────────────

type patternInput struct {
	Pattern    string   `json:"pattern"`
	Weight     *float64 `json:"weight"`
	Effect     string   `json:"effect"`
	CountOnce  *bool    `json:"countOnce"`
	Disqualify bool     `json:"disqualify"`
}

func (in *patternInput) validate() error {
	if strings.TrimSpace(in.Pattern) == "" {
		return fmt.Errorf("pattern is required and must be a non-empty string")
	}
	if _, err := regexp.Compile(in.Pattern); err != nil {
		return fmt.Errorf("pattern must be a valid regular expression")
	}
	if in.Weight != nil && *in.Weight <= 0 {
		return fmt.Errorf("weight must be a number greater than 0")
	}
	if in.Effect != "+" && in.Effect != "-" {
		return fmt.Errorf("effect must be one of: +, -")
	}
	return nil
}

func (in *patternInput) toModel() model.ScoringPattern {
	weight := 10.0
	if in.Weight != nil {
		weight = *in.Weight
	}
	countOnce := true
	if in.CountOnce != nil {
		countOnce = *in.CountOnce
	}
	return model.ScoringPattern{
		Pattern:    strings.TrimSpace(in.Pattern),
		Weight:     weight,
		Effect:     in.Effect,
		CountOnce:  countOnce,
		Disqualify: in.Disqualify,
	}
}

func decodePatternInput(w http.ResponseWriter, r *http.Request) (*patternInput, bool) {
	var in patternInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return nil, false
	}
	if in.Effect == "" {
		in.Effect = "+"
	}
	if err := in.validate(); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return &in, true
}

func (h *Handler) listPatterns(w http.ResponseWriter, r *http.Request) {
	patterns, err := h.stores.Patterns.List(r.Context())
	if err != nil {
		slog.Error("list patterns", "err", err)
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, patterns)
}

func (h *Handler) createPattern(w http.ResponseWriter, r *http.Request) {
	in, ok := decodePatternInput(w, r)
	if !ok {
		return
	}
	created, err := h.stores.Patterns.Create(r.Context(), in.toModel())
	if err != nil {
		slog.Error("create pattern", "err", err)
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) updatePattern(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	in, ok := decodePatternInput(w, r)
	if !ok {
		return
	}
	updated, err := h.stores.Patterns.Update(r.Context(), id, in.toModel())
	if err != nil {
		h.writeStoreError(w, "pattern", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) togglePattern(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	toggled, err := h.stores.Patterns.Toggle(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, "pattern", err)
		return
	}
	writeJSON(w, http.StatusOK, toggled)
}

func (h *Handler) deletePattern(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.stores.Patterns.Delete(r.Context(), id); err != nil {
		h.writeStoreError(w, "pattern", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ─── Settings ────────────────────────────────────────────────────────────────

func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.stores.Settings.Get(r.Context())
	if err != nil {
		slog.Error("get settings", "err", err)
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *Handler) updateSettings(w http.ResponseWriter, r *http.Request) {
	var upd store.SettingsUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	updated, err := h.stores.Settings.Update(r.Context(), upd)
	if err != nil {
		slog.Error("update settings", "err", err)
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}

	// A changed schedule only takes effect through a scheduler restart.
	if h.scheduler != nil && (upd.CronSchedule != nil || upd.CronEnabled != nil) {
		if err := h.scheduler.Restart(r.Context()); err != nil {
			slog.Warn("scheduler restart failed", "err", err)
		}
	}

	writeJSON(w, http.StatusOK, updated)
}

// ─── Shared ──────────────────────────────────────────────────────────────────

func (h *Handler) writeStoreError(w http.ResponseWriter, kind string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, kind+" not found", http.StatusNotFound)
		return
	}
	slog.Error("store error", "kind", kind, "err", err)
	jsonError(w, "database error", http.StatusInternalServerError)
}
