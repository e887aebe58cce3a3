package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/lysyi3m/rss-insight/app/database"
)

type JobProcessor interface {
	Process(ctx context.Context, job database.Job) error
}

// Worker runs one claimed job to a terminal status.
type Worker struct {
	jobs      *Jobs
	processor JobProcessor
	timeout   time.Duration
}

func NewWorker(jobs *Jobs, processor JobProcessor, timeout time.Duration) *Worker {
	return &Worker{jobs: jobs, processor: processor, timeout: timeout}
}

// Run processes the job and records the outcome. The stored job is
// authoritative; a job that is not running is rejected untouched.
func (w *Worker) Run(ctx context.Context, job database.Job) error {
	stored, err := w.jobs.Get(ctx, job.ID)
	if err != nil {
		return err
	}
	if stored.Status != database.JobStatusRunning {
		return ErrJobNotRunning
	}

	start := time.Now()
	taskCtx, cancel := context.WithTimeout(ctx, w.timeout)
	err = w.processor.Process(taskCtx, *stored)
	cancel()

	// the outcome is recorded even when the caller has gone away
	finishCtx := context.WithoutCancel(ctx)

	if err != nil {
		slog.Error("Job failed", "id", stored.ID, "type", string(stored.Type), "duration", time.Since(start), "error", err)
		if failErr := w.jobs.Fail(finishCtx, *stored, err); failErr != nil {
			slog.Error("Failed to mark job failed", "id", stored.ID, "error", failErr)
		}
		return err
	}

	if err := w.jobs.Complete(finishCtx, *stored); err != nil {
		return err
	}
	slog.Debug("Job completed", "id", stored.ID, "type", string(stored.Type), "duration", time.Since(start))
	return nil
}
