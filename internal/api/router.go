// Package api exposes the pipeline over HTTP and MCP. Handlers only
// translate requests into store and pipeline calls.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kalambet/propeval/internal/pipeline"
	"github.com/kalambet/propeval/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

type AppDeps struct {
	Store    *storage.Store
	Pipeline *pipeline.Pipeline
	Token    string
}

// NewAppHandler returns the HTTP surface. /health and /metrics are open;
// everything under /api requires the bearer token when one is configured.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth(deps))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/pipeline/run", handleRun(deps))
		r.Post("/pipeline/analyze", handleRun(deps))
		r.Post("/pipeline/analyze/{id}", handleAnalyzeListing(deps))
		r.Get("/pipeline/status", handleStatus(deps))

		r.Get("/listings", handleListListings(deps))
		r.Get("/listings/ranked", handleRanked(deps))
		r.Post("/listings/import", handleImport(deps))
		r.Get("/listings/{id}", handleGetListing(deps))
		r.Get("/stats", handleStats(deps))

		r.Get("/analysis/{id}", handleGetAnalysis(deps))
		r.Get("/analysis/{id}/report", handleReport(deps))
		r.Post("/analysis/{id}/scenario", handleScenario(deps))

		r.Get("/portfolio", handleListPortfolio(deps))
		r.Post("/portfolio", handleCreatePortfolio(deps))
		r.Get("/portfolio/{id}", handleGetPortfolio(deps))
		r.Put("/portfolio/{id}", handleUpdatePortfolio(deps))
		r.Delete("/portfolio/{id}", handleDeletePortfolio(deps))
	})

	return r
}

func handleHealth(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Store.Ping(r.Context()); err != nil {
			httpError(w, http.StatusServiceUnavailable, "unavailable", "database unreachable: %v", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}

// lookupError writes 404 for missing records and 500 for everything else.
func lookupError(w http.ResponseWriter, err error, what string) {
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, "not_found", "%s not found", what)
		return
	}
	httpError(w, http.StatusInternalServerError, "internal_error", "failed to load %s: %v", what, err)
}

// pathID parses the {id} URL parameter. It writes a 400 and returns false
// when the parameter is not a positive integer.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		httpError(w, http.StatusBadRequest, "invalid_request", "invalid id %q", raw)
		return 0, false
	}
	return id, true
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
