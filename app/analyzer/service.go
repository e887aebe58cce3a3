package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lysyi3m/rss-insight/app/ai"
	"github.com/lysyi3m/rss-insight/app/database"
	"github.com/lysyi3m/rss-insight/app/settings"
)

type SettingsLoader interface {
	Load(ctx context.Context) (*settings.Config, error)
}

type Request struct {
	ItemID  string `json:"item_id"`
	Content string `json:"content"`
	Title   string `json:"title"`
	URL     string `json:"url"`
}

// Service runs the three-pillar analysis and persists one insight per
// present pillar.
type Service struct {
	db       *database.DB
	settings SettingsLoader
	gateway  ai.Sender
	now      func() time.Time
}

func NewService(db *database.DB, settings SettingsLoader, gateway ai.Sender) *Service {
	return &Service{
		db:       db,
		settings: settings,
		gateway:  gateway,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Analyze calls the configured provider and parses its answer without
// persisting anything. It also returns the model that produced the result.
func (s *Service) Analyze(ctx context.Context, req Request) (*Result, string, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, "", fmt.Errorf("%w: content", ErrMissingField)
	}

	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return nil, "", err
	}

	resp, err := s.gateway.Send(ctx, cfg.Options(), []ai.Message{
		{Role: ai.RoleSystem, Content: systemPrompt},
		{Role: ai.RoleUser, Content: renderPrompt(req.Content, req.Title, req.URL)},
	})
	if err != nil {
		return nil, "", err
	}

	result, err := ParseResult(resp.Content)
	if err != nil {
		return nil, "", err
	}
	return result, cfg.Model, nil
}

// AnalyzeItem analyzes and stores the insights of one item. Maturity and tags
// are copied onto every pillar row.
func (s *Service) AnalyzeItem(ctx context.Context, req Request) (*Result, error) {
	if req.ItemID == "" {
		return nil, fmt.Errorf("%w: item_id", ErrMissingField)
	}

	result, model, err := s.Analyze(ctx, req)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var stored []database.Pillar
	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		insights := database.NewInsightRepository(tx)
		for _, pillar := range database.Pillars {
			p := result.Pillars.Get(pillar)
			if p == nil {
				continue
			}
			err := insights.Insert(ctx, &database.Insight{
				ID:             uuid.NewString(),
				ItemID:         req.ItemID,
				Pillar:         pillar,
				RelevanceScore: p.RelevanceScore,
				Summary:        p.Insight,
				ActionItems:    p.ActionItems,
				MaturityRating: result.MaturityRating,
				Tags:           result.Tags,
				ModelVersion:   model,
				CreatedAt:      now,
			})
			if err != nil {
				return err
			}
			stored = append(stored, pillar)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, pillar := range stored {
		insightsCreated.WithLabelValues(string(pillar)).Inc()
	}
	slog.Info("Item analyzed", "item_id", req.ItemID, "insights", len(stored), "maturity", result.MaturityRating)

	return result, nil
}
