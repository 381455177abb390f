package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/kalambet/propeval/internal/pipeline"
	"github.com/kalambet/propeval/internal/storage"
	"github.com/kalambet/propeval/internal/worker"
)

// errRunActive is returned when a batch is requested while one is queued or
// running.
var errRunActive = errors.New("a pipeline run is already queued or running")

// enqueueRun queues an analyze_pending job unless a pipeline job is already
// active. The queue check and the insert are one transaction.
func enqueueRun(ctx context.Context, store worker.IdleEnqueuer, p *pipeline.Pipeline) (string, error) {
	if p.Status().Running() {
		return "", errRunActive
	}
	id, err := worker.EnqueueAnalyzePendingIfIdle(ctx, store)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", errRunActive
	}
	return id, nil
}

// enqueueListing queues a single-listing run after checking the listing
// exists.
func enqueueListing(ctx context.Context, store *storage.Store, id int64) (string, error) {
	if _, err := store.GetListing(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", fmt.Errorf("%w: %d", pipeline.ErrListingNotFound, id)
		}
		return "", fmt.Errorf("loading listing %d: %w", id, err)
	}
	return worker.EnqueueAnalyzeListing(ctx, store, id)
}

type queuedResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

func handleRun(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := enqueueRun(r.Context(), deps.Store, deps.Pipeline)
		if errors.Is(err, errRunActive) {
			httpError(w, http.StatusConflict, "conflict", "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "internal_error", "failed to enqueue run: %v", err)
			return
		}
		writeJSON(w, http.StatusAccepted, queuedResponse{JobID: id, Status: "queued"})
	}
}

func handleAnalyzeListing(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listingID, ok := pathID(w, r)
		if !ok {
			return
		}
		id, err := enqueueListing(r.Context(), deps.Store, listingID)
		if err != nil {
			lookupError(w, err, "listing")
			return
		}
		writeJSON(w, http.StatusAccepted, queuedResponse{JobID: id, Status: "queued"})
	}
}

// pipelineStatus is the run status plus whether a pipeline job is waiting
// in the queue.
func pipelineStatus(ctx context.Context, store *storage.Store, p *pipeline.Pipeline) (pipeline.StatusSnapshot, error) {
	snap := p.Status().Snapshot()
	queued, err := store.HasActiveJob(ctx, worker.JobTypes)
	if err != nil {
		return snap, fmt.Errorf("checking job queue: %w", err)
	}
	snap.Queued = queued
	return snap, nil
}

func handleStatus(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := pipelineStatus(r.Context(), deps.Store, deps.Pipeline)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "internal_error", "%v", err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}
