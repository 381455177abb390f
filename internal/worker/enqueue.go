package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/kalambet/propeval/internal/storage"
)

// Enqueuer is the part of the job store the trigger paths need.
type Enqueuer interface {
	EnqueueJob(ctx context.Context, job storage.Job) error
}

// EnqueueAnalyzePending queues a batch run and returns the job id.
func EnqueueAnalyzePending(ctx context.Context, store Enqueuer) (string, error) {
	job := storage.Job{
		ID:   uuid.New().String(),
		Type: JobAnalyzePending,
	}
	if err := store.EnqueueJob(ctx, job); err != nil {
		return "", fmt.Errorf("enqueueing %s: %w", job.Type, err)
	}
	return job.ID, nil
}

// IdleEnqueuer can enqueue a job only when no pipeline job is active.
type IdleEnqueuer interface {
	EnqueueJobIfIdle(ctx context.Context, job storage.Job, types []string) (bool, error)
}

// EnqueueAnalyzePendingIfIdle queues a batch run unless a pipeline job is
// already queued or running. It returns the job id, or "" when skipped.
func EnqueueAnalyzePendingIfIdle(ctx context.Context, store IdleEnqueuer) (string, error) {
	job := storage.Job{
		ID:   uuid.New().String(),
		Type: JobAnalyzePending,
	}
	ok, err := store.EnqueueJobIfIdle(ctx, job, JobTypes)
	if err != nil {
		return "", fmt.Errorf("enqueueing %s: %w", job.Type, err)
	}
	if !ok {
		return "", nil
	}
	return job.ID, nil
}

// EnqueueAnalyzeListing queues a single-listing run and returns the job id.
func EnqueueAnalyzeListing(ctx context.Context, store Enqueuer, listingID int64) (string, error) {
	payload, err := json.Marshal(listingPayload{ListingID: listingID})
	if err != nil {
		return "", err
	}
	job := storage.Job{
		ID:          uuid.New().String(),
		Type:        JobAnalyzeListing,
		PayloadJSON: string(payload),
	}
	if err := store.EnqueueJob(ctx, job); err != nil {
		return "", fmt.Errorf("enqueueing %s: %w", job.Type, err)
	}
	return job.ID, nil
}
