package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/lysyi3m/rss-insight/app/database"
)

// Scheduler claims due jobs on every tick and dispatches them concurrently.
type Scheduler struct {
	jobs       *Jobs
	dispatcher Dispatcher
	pool       *ants.Pool
	interval   time.Duration
	staleAfter time.Duration
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewScheduler builds a scheduler. Running jobs older than staleAfter are
// failed at the start of every tick; zero disables that.
func NewScheduler(jobs *Jobs, dispatcher Dispatcher, interval, staleAfter time.Duration) (*Scheduler, error) {
	pool, err := ants.NewPool(ClaimBatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		jobs:       jobs,
		dispatcher: dispatcher,
		pool:       pool,
		interval:   interval,
		staleAfter: staleAfter,
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.tick()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	s.pool.Release()
}

func (s *Scheduler) tick() {
	if _, err := s.Tick(s.ctx); err != nil {
		slog.Error("Scheduler tick failed", "error", err)
	}
}

// Tick claims one batch of due jobs and waits until every dispatch returns.
// It reports how many jobs were claimed.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	if s.staleAfter > 0 {
		reaped, err := s.jobs.ReapStale(ctx, s.staleAfter)
		if err != nil {
			slog.Error("Failed to reap abandoned jobs", "error", err)
		} else if reaped > 0 {
			slog.Info("Abandoned jobs failed", "count", reaped)
		}
	}

	claimed, err := s.jobs.ClaimDue(ctx, ClaimBatchSize)
	if err != nil && len(claimed) == 0 {
		return 0, err
	}
	if len(claimed) > 0 {
		slog.Debug("Jobs claimed", "count", len(claimed))
	}

	var wg sync.WaitGroup
	for _, job := range claimed {
		wg.Add(1)
		submitErr := s.pool.Submit(func() {
			defer wg.Done()
			s.dispatch(ctx, job)
		})
		if submitErr != nil {
			wg.Done()
			s.fail(ctx, job, fmt.Errorf("failed to submit job: %w", submitErr))
		}
	}
	wg.Wait()

	return len(claimed), err
}

func (s *Scheduler) dispatch(ctx context.Context, job database.Job) {
	if err := s.dispatcher.Dispatch(ctx, job); err != nil {
		slog.Warn("Job dispatch failed", "id", job.ID, "type", string(job.Type), "error", err)
		s.fail(ctx, job, err)
	}
}

// fail records a dispatch failure unless the worker already finished the job.
func (s *Scheduler) fail(ctx context.Context, job database.Job, cause error) {
	err := s.jobs.Fail(context.WithoutCancel(ctx), job, cause)
	if errors.Is(err, ErrJobNotRunning) {
		return
	}
	if err != nil {
		slog.Error("Failed to mark job failed", "id", job.ID, "error", err)
	}
}
