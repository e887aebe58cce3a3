package tasks

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/rss-insight/app/database"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.NewConnection(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, _, err = database.RunMigrations(db)
	require.NoError(t, err)
	return db
}

func createSource(t *testing.T, db *database.DB, id string, sourceType database.SourceType, url string) *database.Source {
	t.Helper()
	source := &database.Source{
		ID: id, Type: sourceType, Name: id, URL: url,
		Schedule: database.DefaultSchedule, Status: database.SourceStatusActive,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, database.NewSourceRepository(db).Create(context.Background(), source))
	return source
}

func strPtr(s string) *string { return &s }

func fixedClock(jobs *Jobs, now time.Time) {
	jobs.now = func() time.Time { return now }
}

func pendingJobs(t *testing.T, jobs *Jobs) []database.Job {
	t.Helper()
	list, err := jobs.List(context.Background(), database.JobStatusPending, 100)
	require.NoError(t, err)
	return list
}

func TestNextRun(t *testing.T) {
	from := time.Date(2024, 3, 1, 7, 30, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), NextRun(database.DefaultSchedule, from))
	assert.Equal(t, from.Add(fallbackInterval), NextRun("not a schedule", from))
}

func TestClaimDueIsExclusive(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	jobs := NewJobs(db)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	fixedClock(jobs, now)

	createSource(t, db, "s1", database.SourceTypeFeed, "https://example.com/feed")
	_, err := jobs.Create(ctx, database.JobTypeFetch, strPtr("s1"), nil, now.Add(-time.Minute))
	require.NoError(t, err)
	_, err = jobs.Create(ctx, database.JobTypeFetch, nil, nil, now.Add(time.Hour))
	require.NoError(t, err)

	first, err := jobs.ClaimDue(ctx, ClaimBatchSize)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, database.JobStatusRunning, first[0].Status)
	require.NotNil(t, first[0].StartedAt)

	second, err := jobs.ClaimDue(ctx, ClaimBatchSize)
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestClaimDueOneJobPerSource(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	jobs := NewJobs(db)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	fixedClock(jobs, now)

	createSource(t, db, "s1", database.SourceTypeFeed, "https://example.com/feed")
	_, err := jobs.Create(ctx, database.JobTypeFetch, strPtr("s1"), nil, now.Add(-2*time.Minute))
	require.NoError(t, err)
	_, err = jobs.Create(ctx, database.JobTypeAnalyze, strPtr("s1"), strPtr("item"), now.Add(-time.Minute))
	require.NoError(t, err)

	claimed, err := jobs.ClaimDue(ctx, ClaimBatchSize)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, database.JobTypeFetch, claimed[0].Type)

	// the source still has a running job
	claimed, err = jobs.ClaimDue(ctx, ClaimBatchSize)
	require.NoError(t, err)
	assert.Empty(t, claimed)
}

func TestCompleteSchedulesNextFetch(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	jobs := NewJobs(db)
	now := time.Date(2024, 3, 1, 7, 30, 0, 0, time.UTC)
	fixedClock(jobs, now)

	createSource(t, db, "s1", database.SourceTypeFeed, "https://example.com/feed")
	_, err := jobs.Create(ctx, database.JobTypeFetch, strPtr("s1"), nil, now)
	require.NoError(t, err)

	claimed, err := jobs.ClaimDue(ctx, ClaimBatchSize)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	require.NoError(t, jobs.Complete(ctx, claimed[0]))

	stored, err := jobs.Get(ctx, claimed[0].ID)
	require.NoError(t, err)
	assert.Equal(t, database.JobStatusCompleted, stored.Status)
	assert.NotNil(t, stored.CompletedAt)
	assert.Nil(t, stored.ErrorMessage)

	next := pendingJobs(t, jobs)
	require.Len(t, next, 1)
	assert.Equal(t, database.JobTypeFetch, next[0].Type)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), next[0].NextRunAt)

	// a finished job cannot finish again
	assert.ErrorIs(t, jobs.Complete(ctx, claimed[0]), ErrJobNotRunning)
	assert.ErrorIs(t, jobs.Fail(ctx, claimed[0], errors.New("late")), ErrJobNotRunning)
}

func TestFailRecordsMessageWithoutRetry(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	jobs := NewJobs(db)

	_, err := jobs.Create(ctx, database.JobTypeAnalyze, nil, strPtr("item-1"), time.Now().UTC().Add(-time.Second))
	require.NoError(t, err)
	claimed, err := jobs.ClaimDue(ctx, ClaimBatchSize)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	require.NoError(t, jobs.Fail(ctx, claimed[0], errors.New("boom")))

	stored, err := jobs.Get(ctx, claimed[0].ID)
	require.NoError(t, err)
	assert.Equal(t, database.JobStatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Equal(t, "boom", *stored.ErrorMessage)
	assert.Empty(t, pendingJobs(t, jobs))
}

type retryOnce struct{}

func (retryOnce) NextAttempt(job database.Job, _ error) (time.Time, bool) {
	return time.Now().UTC(), job.RetryCount == 0
}

func TestFailWithRetryPolicy(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	jobs := NewJobs(db).WithRetryPolicy(retryOnce{})

	_, err := jobs.Create(ctx, database.JobTypeAnalyze, nil, strPtr("item-1"), time.Now().UTC().Add(-time.Second))
	require.NoError(t, err)
	claimed, err := jobs.ClaimDue(ctx, ClaimBatchSize)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	require.NoError(t, jobs.Fail(ctx, claimed[0], errors.New("boom")))

	retries := pendingJobs(t, jobs)
	require.Len(t, retries, 1)
	assert.Equal(t, 1, retries[0].RetryCount)
	assert.Equal(t, "item-1", *retries[0].Cursor)
}

func TestFailedFetchStillSchedulesNextPoll(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	jobs := NewJobs(db)

	createSource(t, db, "s1", database.SourceTypeFeed, "https://example.com/feed")
	_, err := jobs.Create(ctx, database.JobTypeFetch, strPtr("s1"), nil, time.Now().UTC().Add(-time.Second))
	require.NoError(t, err)
	claimed, err := jobs.ClaimDue(ctx, ClaimBatchSize)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	require.NoError(t, jobs.Fail(ctx, claimed[0], errors.New("unreachable")))

	next := pendingJobs(t, jobs)
	require.Len(t, next, 1)
	assert.Equal(t, 0, next[0].RetryCount)
	assert.True(t, next[0].NextRunAt.After(time.Now().UTC()))
}

func TestPausedSourceGetsNoFollowUp(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	jobs := NewJobs(db)

	createSource(t, db, "s1", database.SourceTypeFeed, "https://example.com/feed")
	_, err := jobs.Create(ctx, database.JobTypeFetch, strPtr("s1"), nil, time.Now().UTC().Add(-time.Second))
	require.NoError(t, err)
	claimed, err := jobs.ClaimDue(ctx, ClaimBatchSize)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	require.NoError(t, database.NewSourceRepository(db).SetStatus(ctx, "s1", database.SourceStatusPaused))
	require.NoError(t, jobs.Complete(ctx, claimed[0]))

	assert.Empty(t, pendingJobs(t, jobs))
}

func TestReapStale(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	jobs := NewJobs(db)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	createSource(t, db, "s1", database.SourceTypeFeed, "https://example.com/feed")
	createSource(t, db, "s2", database.SourceTypeFeed, "https://example.com/other")

	fixedClock(jobs, now.Add(-2*time.Hour))
	old, err := jobs.Create(ctx, database.JobTypeFetch, strPtr("s1"), nil, now.Add(-2*time.Hour))
	require.NoError(t, err)
	_, err = jobs.ClaimDue(ctx, ClaimBatchSize)
	require.NoError(t, err)

	fixedClock(jobs, now.Add(-time.Minute))
	recent, err := jobs.Create(ctx, database.JobTypeFetch, strPtr("s2"), nil, now.Add(-time.Minute))
	require.NoError(t, err)
	_, err = jobs.ClaimDue(ctx, ClaimBatchSize)
	require.NoError(t, err)

	fixedClock(jobs, now)
	reaped, err := jobs.ReapStale(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, reaped)

	stored, err := jobs.Get(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, database.JobStatusFailed, stored.Status)
	assert.Contains(t, *stored.ErrorMessage, "no outcome after 10m0s")

	stored, err = jobs.Get(ctx, recent.ID)
	require.NoError(t, err)
	assert.Equal(t, database.JobStatusRunning, stored.Status)

	// polling of the reaped source resumes on its schedule
	next := pendingJobs(t, jobs)
	require.Len(t, next, 1)
	assert.Equal(t, "s1", *next[0].SourceID)
	assert.Equal(t, time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC), next[0].NextRunAt)
}
