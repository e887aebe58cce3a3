package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/robfig/cron/v3"

	"github.com/lysyi3m/rss-insight/app/database"
)

var (
	ErrJobNotRunning = errors.New("job is not running")
	ErrJobNotFound   = errors.New("job not found")
	ErrJobAbandoned  = errors.New("job abandoned")
)

const (
	// ClaimBatchSize bounds how many jobs one scheduler tick dispatches.
	ClaimBatchSize = 10

	fallbackInterval = 6 * time.Hour
)

// RetryPolicy decides whether a failed job gets a fresh pending copy.
type RetryPolicy interface {
	NextAttempt(job database.Job, cause error) (time.Time, bool)
}

// NoRetry never retries.
type NoRetry struct{}

func (NoRetry) NextAttempt(database.Job, error) (time.Time, bool) {
	return time.Time{}, false
}

// NewJob builds a pending job ready for insertion.
func NewJob(jobType database.JobType, sourceID, cursor *string, runAt time.Time) *database.Job {
	return &database.Job{
		ID:        uuid.NewString(),
		Type:      jobType,
		SourceID:  sourceID,
		Status:    database.JobStatusPending,
		Cursor:    cursor,
		NextRunAt: runAt,
	}
}

// NextRun returns the next time the cron schedule fires after from. An
// unparseable schedule falls back to a fixed interval.
func NextRun(schedule string, from time.Time) time.Time {
	sched, err := cron.ParseStandard(schedule)
	if err != nil {
		slog.Warn("Invalid source schedule, using fallback interval", "schedule", schedule, "error", err)
		return from.Add(fallbackInterval)
	}
	return sched.Next(from)
}

// Jobs owns the job lifecycle. All state changes go through guarded updates,
// so a job is claimed at most once and finished at most once.
type Jobs struct {
	db    *database.DB
	repo  *database.JobRepository
	retry RetryPolicy
	now   func() time.Time
}

func NewJobs(db *database.DB) *Jobs {
	return &Jobs{
		db:    db,
		repo:  database.NewJobRepository(db),
		retry: NoRetry{},
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (j *Jobs) WithRetryPolicy(policy RetryPolicy) *Jobs {
	j.retry = policy
	return j
}

func (j *Jobs) Create(ctx context.Context, jobType database.JobType, sourceID, cursor *string, runAt time.Time) (*database.Job, error) {
	job := NewJob(jobType, sourceID, cursor, runAt)
	if err := j.repo.Create(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Get returns ErrJobNotFound when the job does not exist.
func (j *Jobs) Get(ctx context.Context, id string) (*database.Job, error) {
	job, err := j.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	return job, nil
}

func (j *Jobs) List(ctx context.Context, status database.JobStatus, limit int) ([]database.Job, error) {
	return j.repo.ListByStatus(ctx, status, limit)
}

// ClaimDue moves up to limit due jobs to running, oldest first. At most one
// job per source is claimed, and never for a source that already has a
// running job.
func (j *Jobs) ClaimDue(ctx context.Context, limit int) ([]database.Job, error) {
	now := j.now()
	due, err := j.repo.ListDue(ctx, now, limit)
	if err != nil {
		return nil, err
	}

	claimedSources := make(map[string]bool)
	claimed := make([]database.Job, 0, len(due))
	for _, job := range due {
		if job.SourceID != nil && claimedSources[*job.SourceID] {
			continue
		}

		ok, err := j.repo.Claim(ctx, job.ID, now)
		if err != nil {
			return claimed, err
		}
		if !ok {
			slog.Debug("Job claimed elsewhere", "id", job.ID)
			continue
		}

		job.Status = database.JobStatusRunning
		job.StartedAt = &now
		claimed = append(claimed, job)
		if job.SourceID != nil {
			claimedSources[*job.SourceID] = true
		}
	}

	jobsClaimed.Add(float64(len(claimed)))
	return claimed, nil
}

// ReapStale fails running jobs that started more than staleAfter ago. Such a
// job was lost by a crashed or killed worker and would otherwise block every
// later job of its source. A reaped fetch job schedules the next poll like
// any other failure.
func (j *Jobs) ReapStale(ctx context.Context, staleAfter time.Duration) (int, error) {
	now := j.now()
	stale, err := j.repo.ListStale(ctx, now.Add(-staleAfter))
	if err != nil {
		return 0, err
	}

	reaped := 0
	for _, job := range stale {
		cause := fmt.Errorf("%w: no outcome after %s", ErrJobAbandoned, staleAfter)
		err := j.Fail(ctx, job, cause)
		if errors.Is(err, ErrJobNotRunning) {
			continue
		}
		if err != nil {
			return reaped, err
		}
		slog.Warn("Abandoned job failed", "id", job.ID, "type", string(job.Type), "started_at", job.StartedAt)
		reaped++
	}
	return reaped, nil
}

// Complete marks a running job completed.
func (j *Jobs) Complete(ctx context.Context, job database.Job) error {
	return j.finish(ctx, job, database.JobStatusCompleted, nil)
}

// Fail marks a running job failed with the cause as its error message.
func (j *Jobs) Fail(ctx context.Context, job database.Job, cause error) error {
	return j.finish(ctx, job, database.JobStatusFailed, cause)
}

// finish records the terminal status. A fetch job of an active source always
// leaves the next periodic fetch behind, whatever its outcome.
func (j *Jobs) finish(ctx context.Context, job database.Job, status database.JobStatus, cause error) error {
	if err := ValidateTransition(database.JobStatusRunning, status); err != nil {
		return err
	}

	var errMsg *string
	if cause != nil {
		msg := cause.Error()
		errMsg = &msg
	}

	now := j.now()
	err := j.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		jobs := database.NewJobRepository(tx)

		ok, err := jobs.Finish(ctx, job.ID, status, errMsg, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrJobNotRunning
		}

		if status == database.JobStatusFailed {
			if runAt, retry := j.retry.NextAttempt(job, cause); retry {
				next := NewJob(job.Type, job.SourceID, job.Cursor, runAt)
				next.RetryCount = job.RetryCount + 1
				if err := jobs.Create(ctx, next); err != nil {
					return err
				}
			}
		}

		if job.Type == database.JobTypeFetch && job.SourceID != nil {
			return scheduleNextFetch(ctx, tx, *job.SourceID, now)
		}
		return nil
	})
	if err != nil {
		return err
	}

	jobsFinished.WithLabelValues(string(job.Type), string(status)).Inc()
	return nil
}

func scheduleNextFetch(ctx context.Context, tx *sqlx.Tx, sourceID string, now time.Time) error {
	source, err := database.NewSourceRepository(tx).Get(ctx, sourceID)
	if err != nil {
		return err
	}
	if source == nil || source.Status != database.SourceStatusActive {
		return nil
	}

	jobs := database.NewJobRepository(tx)
	pending, err := jobs.HasPendingFetch(ctx, sourceID)
	if err != nil {
		return err
	}
	if pending {
		return nil
	}

	next := NewJob(database.JobTypeFetch, &source.ID, nil, NextRun(source.Schedule, now))
	if err := jobs.Create(ctx, next); err != nil {
		return fmt.Errorf("failed to schedule next fetch: %w", err)
	}
	slog.Debug("Next fetch scheduled", "source", source.Name, "next_run_at", next.NextRunAt)
	return nil
}
