package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/kalambet/propeval/internal/pipeline"
	"github.com/kalambet/propeval/internal/storage"
)

func isNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}

func handleGetAnalysis(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		a, err := deps.Store.GetAnalysis(r.Context(), id)
		if err != nil {
			lookupError(w, err, "analysis")
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

func handleReport(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		report, err := deps.Pipeline.Report(r.Context(), id)
		if errors.Is(err, pipeline.ErrAnalysisNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "listing %d has not been analysed", id)
			return
		}
		if err != nil {
			lookupError(w, err, "listing")
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func handleScenario(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var overrides pipeline.ScenarioOverrides
		if err := json.NewDecoder(r.Body).Decode(&overrides); err != nil && !errors.Is(err, io.EOF) {
			httpError(w, http.StatusBadRequest, "invalid_request", "invalid request body: %v", err)
			return
		}

		result, err := deps.Pipeline.Scenario(r.Context(), id, overrides)
		if err != nil {
			lookupError(w, err, "listing")
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}
