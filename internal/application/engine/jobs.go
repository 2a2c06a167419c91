package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Job is one named periodic task. A run that is still in progress when the
// next tick arrives makes the tick a no-op; slow runs never stack.
type Job struct {
	name    string
	cadence Cadence
	run     func(ctx context.Context) error

	running atomic.Bool

	mu           sync.Mutex
	lastStarted  time.Time
	lastFinished time.Time
	lastError    string
	runs         uint64
	skipped      uint64
}

// JobStats is a read-only snapshot for the diagnostics endpoint.
type JobStats struct {
	Name         string    `json:"name"`
	Running      bool      `json:"running"`
	Runs         uint64    `json:"runs"`
	Skipped      uint64    `json:"skipped"`
	LastStarted  time.Time `json:"last_started,omitzero"`
	LastFinished time.Time `json:"last_finished,omitzero"`
	LastError    string    `json:"last_error,omitempty"`
}

func newJob(name string, cadence Cadence, run func(ctx context.Context) error) *Job {
	return &Job{name: name, cadence: cadence, run: run}
}

// Fire executes the job once. Returns false when a previous run is still in
// progress and the invocation was skipped.
func (j *Job) Fire(ctx context.Context, log *slog.Logger) bool {
	if !j.running.CompareAndSwap(false, true) {
		j.mu.Lock()
		j.skipped++
		j.mu.Unlock()
		log.Warn("job still running, skipping tick", "job", j.name)
		return false
	}
	defer j.running.Store(false)

	started := time.Now()
	j.mu.Lock()
	j.lastStarted = started
	j.runs++
	j.mu.Unlock()

	err := j.run(ctx)

	j.mu.Lock()
	j.lastFinished = time.Now()
	j.lastError = ""
	if err != nil {
		j.lastError = err.Error()
	}
	j.mu.Unlock()

	if err != nil {
		log.Error("job failed", "job", j.name, "duration", time.Since(started), "error", err)
	} else {
		log.Info("job finished", "job", j.name, "duration", time.Since(started))
	}
	return true
}

// loop fires the job on its cadence until ctx is cancelled.
func (j *Job) loop(ctx context.Context, now func() time.Time, log *slog.Logger) {
	for {
		next := j.cadence.Next(now())
		timer := time.NewTimer(next.Sub(now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			j.Fire(ctx, log)
		}
	}
}

// Stats returns a consistent snapshot of the job's counters.
func (j *Job) Stats() JobStats {
	j.mu.Lock()
	defer j.mu.Unlock()
	return JobStats{
		Name:         j.name,
		Running:      j.running.Load(),
		Runs:         j.runs,
		Skipped:      j.skipped,
		LastStarted:  j.lastStarted,
		LastFinished: j.lastFinished,
		LastError:    j.lastError,
	}
}
