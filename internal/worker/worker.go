// Package worker runs queued pipeline jobs in the background, one at a time,
// and optionally enqueues a daily batch run.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/propeval/internal/pipeline"
	"github.com/kalambet/propeval/internal/storage"
)

const (
	JobAnalyzePending = "analyze_pending"
	JobAnalyzeListing = "analyze_listing"
)

// JobTypes are the job types the worker claims.
var JobTypes = []string{JobAnalyzePending, JobAnalyzeListing}

// JobStore abstracts the job queue operations.
type JobStore interface {
	ClaimNextJob(ctx context.Context, types []string) (*storage.Job, error)
	CompleteJob(ctx context.Context, id string) error
	FailJob(ctx context.Context, id string, errMsg string) error
	EnqueueJob(ctx context.Context, job storage.Job) error
	EnqueueJobIfIdle(ctx context.Context, job storage.Job, types []string) (bool, error)
	ResetRunningJobs(ctx context.Context) (int, error)
}

// Runner executes pipeline work. *pipeline.Pipeline satisfies it.
type Runner interface {
	AnalyzePending(ctx context.Context) (pipeline.BatchSummary, error)
	AnalyzeListing(ctx context.Context, id int64) (pipeline.Outcome, error)
}

// Worker processes pipeline jobs from the job queue. Only one job runs at a
// time, which keeps pipeline runs from overlapping.
type Worker struct {
	store    JobStore
	runner   Runner
	poll     time.Duration
	schedule *Schedule
	logger   *slog.Logger
	now      func() time.Time
}

// NewWorker creates a Worker with the given dependencies.
// If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, runner Runner, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:  store,
		runner: runner,
		poll:   pollInterval,
		logger: slog.Default(),
		now:    time.Now,
	}
}

// SetSchedule makes Run enqueue a daily analyze_pending job at the given
// local time.
func (w *Worker) SetSchedule(s *Schedule) {
	w.schedule = s
}

// Run resets jobs orphaned by a previous process, then polls for jobs (and
// fires the daily schedule, if set) until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	n, err := w.store.ResetRunningJobs(ctx)
	if err != nil {
		return fmt.Errorf("resetting running jobs: %w", err)
	}
	if n > 0 {
		w.logger.Info("worker: requeued interrupted jobs", "count", n)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		w.poller(gctx)
		return nil
	})
	if w.schedule != nil {
		g.Go(func() error {
			w.scheduler(gctx)
			return nil
		})
	}
	return g.Wait()
}

func (w *Worker) poller(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single pipeline job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob(ctx, JobTypes)
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	w.logger.Info("worker: running job", "job_id", job.ID, "type", job.Type, "attempt", job.Attempts+1)
	if err := w.processJob(ctx, job); err != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "type", job.Type, "error", err)
		if failErr := w.store.FailJob(ctx, job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(ctx, job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

type listingPayload struct {
	ListingID int64 `json:"listing_id"`
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	switch job.Type {
	case JobAnalyzePending:
		summary, err := w.runner.AnalyzePending(ctx)
		if err != nil {
			return fmt.Errorf("analyzing pending listings: %w", err)
		}
		w.logger.Info("worker: batch finished", "job_id", job.ID, "processed", summary.Processed, "ranked", summary.Ranked)
		return nil

	case JobAnalyzeListing:
		var payload listingPayload
		if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
			return fmt.Errorf("parsing payload: %w", err)
		}
		if payload.ListingID <= 0 {
			return fmt.Errorf("payload has no listing_id")
		}
		out, err := w.runner.AnalyzeListing(ctx, payload.ListingID)
		if err != nil {
			return fmt.Errorf("analyzing listing %d: %w", payload.ListingID, err)
		}
		w.logger.Info("worker: listing finished", "job_id", job.ID, "listing_id", out.ExternalID, "status", out.Status)
		return nil

	default:
		return fmt.Errorf("unknown job type %q", job.Type)
	}
}
