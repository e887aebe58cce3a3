package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/robfig/cron/v3"

	"github.com/lysyi3m/rss-insight/app/database"
	"github.com/lysyi3m/rss-insight/app/tasks"
)

var ErrDuplicateSource = errors.New("source already registered")

type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

type RegisterRequest struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	Schedule string `json:"schedule"`
}

// Service manages registered sources and their fetch jobs.
type Service struct {
	db      *database.DB
	sources *database.SourceRepository
	jobs    *tasks.Jobs
	now     func() time.Time
}

func NewService(db *database.DB, jobs *tasks.Jobs) *Service {
	return &Service{
		db:      db,
		sources: database.NewSourceRepository(db),
		jobs:    jobs,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Register stores a new active source together with its first fetch job,
// due immediately.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*database.Source, error) {
	source, err := s.newSource(req)
	if err != nil {
		return nil, err
	}

	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		sources := database.NewSourceRepository(tx)

		existing, err := sources.GetByURL(ctx, source.URL)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrDuplicateSource
		}

		if err := sources.Create(ctx, source); err != nil {
			return err
		}
		return database.NewJobRepository(tx).Create(ctx, tasks.NewJob(database.JobTypeFetch, &source.ID, nil, source.CreatedAt))
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Source registered", "id", source.ID, "name", source.Name, "type", string(source.Type), "url", source.URL)
	return source, nil
}

func (s *Service) newSource(req RegisterRequest) (*database.Source, error) {
	name := strings.TrimSpace(req.Name)
	rawURL := strings.TrimSpace(req.URL)
	if req.Type == "" || name == "" || rawURL == "" {
		return nil, &ValidationError{Message: "Missing required fields"}
	}

	sourceType, err := ParseType(req.Type)
	if err != nil {
		return nil, err
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, &ValidationError{Message: "Invalid source URL: " + rawURL}
	}

	schedule := strings.TrimSpace(req.Schedule)
	if schedule == "" {
		schedule = database.DefaultSchedule
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, &ValidationError{Message: "Invalid schedule: " + schedule}
	}

	return &database.Source{
		ID:        uuid.NewString(),
		Type:      sourceType,
		Name:      name,
		URL:       rawURL,
		Schedule:  schedule,
		Status:    database.SourceStatusActive,
		CreatedAt: s.now(),
	}, nil
}

// ParseType accepts the source type names and their rss/web aliases.
func ParseType(value string) (database.SourceType, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "feed", "rss", "atom":
		return database.SourceTypeFeed, nil
	case "page", "web":
		return database.SourceTypePage, nil
	default:
		return "", &ValidationError{Message: "Unsupported source type: " + value}
	}
}

func (s *Service) Get(ctx context.Context, id string) (*database.Source, error) {
	source, err := s.sources.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, database.ErrNotFound
	}
	return source, nil
}

func (s *Service) List(ctx context.Context) ([]database.Source, error) {
	return s.sources.List(ctx)
}

// Delete removes the source and its jobs. Items keep their content but lose
// the source reference.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.sources.Delete(ctx, id); err != nil {
		return err
	}
	slog.Info("Source deleted", "id", id)
	return nil
}

// SetStatus pauses or resumes a source. Resuming enqueues a fetch unless one
// is already pending.
func (s *Service) SetStatus(ctx context.Context, id string, status database.SourceStatus) (*database.Source, error) {
	if status != database.SourceStatusActive && status != database.SourceStatusPaused {
		return nil, &ValidationError{Message: "Unsupported source status: " + string(status)}
	}

	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := database.NewSourceRepository(tx).SetStatus(ctx, id, status); err != nil {
			return err
		}
		if status != database.SourceStatusActive {
			return nil
		}

		jobs := database.NewJobRepository(tx)
		pending, err := jobs.HasPendingFetch(ctx, id)
		if err != nil || pending {
			return err
		}
		return jobs.Create(ctx, tasks.NewJob(database.JobTypeFetch, &id, nil, s.now()))
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Source status changed", "id", id, "status", string(status))
	return s.Get(ctx, id)
}

// TriggerFetch enqueues an on-demand fetch that is due immediately.
func (s *Service) TriggerFetch(ctx context.Context, id string) (*database.Job, error) {
	source, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if source.Status != database.SourceStatusActive {
		return nil, &ValidationError{Message: "Source is paused"}
	}
	return s.jobs.Create(ctx, database.JobTypeFetch, &source.ID, nil, s.now())
}

// Sync registers every seed whose URL is not known yet. Disabled seeds are
// registered paused. It returns the number of new sources.
func (s *Service) Sync(ctx context.Context, seeds []Seed) (int, error) {
	created := 0
	for _, seed := range seeds {
		existing, err := s.sources.GetByURL(ctx, seed.URL)
		if err != nil {
			return created, err
		}
		if existing != nil {
			slog.Debug("Seed already registered", "name", seed.Name)
			continue
		}

		source, err := s.Register(ctx, RegisterRequest{
			Type:     seed.Type,
			Name:     seed.Name,
			URL:      seed.URL,
			Schedule: seed.Schedule,
		})
		if errors.Is(err, ErrDuplicateSource) {
			continue
		}
		if err != nil {
			return created, fmt.Errorf("failed to register seed %s: %w", seed.Name, err)
		}
		created++

		if !seed.IsEnabled() {
			if err := s.pause(ctx, source.ID); err != nil {
				return created, err
			}
		}
	}
	return created, nil
}

// pause disables a freshly registered source and drops its pending fetch.
func (s *Service) pause(ctx context.Context, id string) error {
	return s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := database.NewSourceRepository(tx).SetStatus(ctx, id, database.SourceStatusPaused); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE source_id = ? AND status = 'pending'`, id)
		return err
	})
}
