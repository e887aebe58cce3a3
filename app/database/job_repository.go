package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const jobColumns = `id, type, source_id, status, cursor, retry_count, next_run_at, started_at, completed_at, error_message`

// JobRepository handles database operations for the job queue
type JobRepository struct {
	db sqlx.ExtContext
}

func NewJobRepository(db sqlx.ExtContext) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(ctx context.Context, j *Job) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (id, type, source_id, status, cursor, retry_count, next_run_at, started_at, completed_at, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, string(j.Type), nullString(j.SourceID), string(j.Status), nullString(j.Cursor), j.RetryCount,
		toMillis(j.NextRunAt), nullMillis(j.StartedAt), nullMillis(j.CompletedAt), nullString(j.ErrorMessage))
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// Get returns nil when the job does not exist
func (r *JobRepository) Get(ctx context.Context, id string) (*Job, error) {
	var row jobRow
	err := sqlx.GetContext(ctx, r.db, &row, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	j := row.toJob()
	return &j, nil
}

// ListDue returns pending jobs whose next_run_at has passed, oldest first.
// Jobs of a source that already has a running job are left for a later tick.
func (r *JobRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]Job, error) {
	var rows []jobRow
	err := sqlx.SelectContext(ctx, r.db, &rows, `
		SELECT `+jobColumns+` FROM jobs j
		WHERE j.status = 'pending'
		  AND j.next_run_at <= ?
		  AND (j.source_id IS NULL OR NOT EXISTS (
		      SELECT 1 FROM jobs r WHERE r.source_id = j.source_id AND r.status = 'running'))
		ORDER BY j.next_run_at ASC, j.rowid ASC
		LIMIT ?
	`, toMillis(now), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list due jobs: %w", err)
	}
	return toJobs(rows), nil
}

// ListByStatus returns the most recently scheduled jobs, optionally filtered by status
func (r *JobRepository) ListByStatus(ctx context.Context, status JobStatus, limit int) ([]Job, error) {
	var rows []jobRow
	var err error
	if status == "" {
		err = sqlx.SelectContext(ctx, r.db, &rows,
			`SELECT `+jobColumns+` FROM jobs ORDER BY next_run_at DESC LIMIT ?`, limit)
	} else {
		err = sqlx.SelectContext(ctx, r.db, &rows,
			`SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY next_run_at DESC LIMIT ?`, string(status), limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return toJobs(rows), nil
}

// Claim moves a job from pending to running. It reports false when another
// claimant got there first.
func (r *JobRepository) Claim(ctx context.Context, id string, startedAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET status = 'running', started_at = ? WHERE id = ? AND status = 'pending'`,
		toMillis(startedAt), id)
	if err != nil {
		return false, fmt.Errorf("failed to claim job: %w", err)
	}
	return affectedOne(res)
}

// Finish moves a running job to a terminal status. It reports false when the
// job is not running.
func (r *JobRepository) Finish(ctx context.Context, id string, status JobStatus, errMsg *string, completedAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error_message = ?, completed_at = ? WHERE id = ? AND status = 'running'`,
		string(status), nullString(errMsg), toMillis(completedAt), id)
	if err != nil {
		return false, fmt.Errorf("failed to finish job: %w", err)
	}
	return affectedOne(res)
}

// ListStale returns running jobs started before the cutoff
func (r *JobRepository) ListStale(ctx context.Context, startedBefore time.Time) ([]Job, error) {
	var rows []jobRow
	err := sqlx.SelectContext(ctx, r.db, &rows,
		`SELECT `+jobColumns+` FROM jobs WHERE status = 'running' AND started_at < ? ORDER BY started_at ASC`,
		toMillis(startedBefore))
	if err != nil {
		return nil, fmt.Errorf("failed to list stale jobs: %w", err)
	}
	return toJobs(rows), nil
}

// HasPendingFetch reports whether the source already has a fetch job waiting
func (r *JobRepository) HasPendingFetch(ctx context.Context, sourceID string) (bool, error) {
	var count int
	err := sqlx.GetContext(ctx, r.db, &count,
		`SELECT COUNT(*) FROM jobs WHERE source_id = ? AND type = 'fetch' AND status = 'pending'`, sourceID)
	if err != nil {
		return false, fmt.Errorf("failed to check pending fetch: %w", err)
	}
	return count > 0, nil
}

func toJobs(rows []jobRow) []Job {
	jobs := make([]Job, 0, len(rows))
	for _, row := range rows {
		jobs = append(jobs, row.toJob())
	}
	return jobs
}

func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}
