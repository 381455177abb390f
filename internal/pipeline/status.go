package pipeline

import (
	"sync"
	"time"
)

// Progress is a current/total counter for the running task.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// StatusSnapshot is a copy of the run status safe to hand to callers.
type StatusSnapshot struct {
	Running    bool          `json:"running"`
	Task       string        `json:"task"`
	Message    string        `json:"message"`
	Progress   *Progress     `json:"progress"`
	StartedAt  *time.Time    `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at"`
	LastError  string        `json:"last_error,omitempty"`
	LastBatch  *BatchSummary `json:"last_batch,omitempty"`

	// Queued is filled in by the API from the job queue.
	Queued bool `json:"queued"`
}

// Status is the process-wide record of what the pipeline is doing. It is
// written by the background run and polled by the API; every method holds
// the one mutex.
type Status struct {
	mu  sync.Mutex
	s   StatusSnapshot
	now func() time.Time
}

func NewStatus() *Status {
	return &Status{now: time.Now}
}

// Start marks a task as running.
func (st *Status) Start(task, message string, total int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	now := st.now().UTC()
	st.s.Running = true
	st.s.Task = task
	st.s.Message = message
	st.s.Progress = &Progress{Current: 0, Total: total}
	st.s.StartedAt = &now
	st.s.FinishedAt = nil
	st.s.LastError = ""
}

// Progress updates the message and counter of the running task.
func (st *Status) Progress(message string, current, total int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Message = message
	st.s.Progress = &Progress{Current: current, Total: total}
}

// Finish marks the run idle and records its summary.
func (st *Status) Finish(summary BatchSummary) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.idle()
	st.s.LastBatch = &summary
}

// Fail marks the run idle and records why it stopped.
func (st *Status) Fail(err error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.idle()
	if err != nil {
		st.s.LastError = err.Error()
	}
}

func (st *Status) idle() {
	now := st.now().UTC()
	st.s.Running = false
	st.s.Task = ""
	st.s.Message = ""
	st.s.Progress = nil
	st.s.FinishedAt = &now
}

// Snapshot returns a copy of the current status.
func (st *Status) Snapshot() StatusSnapshot {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := st.s
	if st.s.Progress != nil {
		p := *st.s.Progress
		out.Progress = &p
	}
	if st.s.LastBatch != nil {
		b := *st.s.LastBatch
		out.LastBatch = &b
	}
	return out
}

// Running reports whether a task is in progress.
func (st *Status) Running() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s.Running
}

// Reset clears everything, including the last batch and error.
func (st *Status) Reset() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s = StatusSnapshot{}
}
