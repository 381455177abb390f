package worker

import (
	"context"
	"fmt"
	"time"
)

// Schedule is a once-a-day local wall-clock time.
type Schedule struct {
	Hour   int
	Minute int
}

// NewSchedule validates hour and minute.
func NewSchedule(hour, minute int) (*Schedule, error) {
	if hour < 0 || hour > 23 {
		return nil, fmt.Errorf("schedule hour %d out of range 0-23", hour)
	}
	if minute < 0 || minute > 59 {
		return nil, fmt.Errorf("schedule minute %d out of range 0-59", minute)
	}
	return &Schedule{Hour: hour, Minute: minute}, nil
}

// Next returns the first scheduled time strictly after now, in now's
// location.
func (s Schedule) Next(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), s.Hour, s.Minute, 0, 0, now.Location())
	if !next.After(now) {
		next = time.Date(now.Year(), now.Month(), now.Day()+1, s.Hour, s.Minute, 0, 0, now.Location())
	}
	return next
}

func (w *Worker) scheduler(ctx context.Context) {
	for {
		next := w.schedule.Next(w.now())
		w.logger.Info("worker: next scheduled run", "at", next.Format(time.RFC3339))

		t := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}

		if _, err := w.ScheduledRun(ctx); err != nil {
			w.logger.Error("worker: scheduled run failed", "error", err)
		}
	}
}

// ScheduledRun enqueues the daily batch unless a pipeline job is already
// queued or running. It reports whether a job was enqueued.
func (w *Worker) ScheduledRun(ctx context.Context) (bool, error) {
	id, err := EnqueueAnalyzePendingIfIdle(ctx, w.store)
	if err != nil {
		return false, err
	}
	if id == "" {
		w.logger.Info("worker: skipping scheduled run, pipeline already active")
		return false, nil
	}
	w.logger.Info("worker: scheduled run enqueued", "job_id", id)
	return true, nil
}
