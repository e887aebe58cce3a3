package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const insightColumns = `id, item_id, pillar, relevance_score, summary, action_items, maturity_rating, tags, model_version, created_at`

// InsightRepository handles database operations for insights. Insights are
// never updated once written.
type InsightRepository struct {
	db sqlx.ExtContext
}

func NewInsightRepository(db sqlx.ExtContext) *InsightRepository {
	return &InsightRepository{db: db}
}

func (r *InsightRepository) Insert(ctx context.Context, in *Insight) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO insights (`+insightColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, in.ID, in.ItemID, string(in.Pillar), in.RelevanceScore, in.Summary, encodeStrings(in.ActionItems),
		nullIfEmpty(string(in.MaturityRating)), encodeStrings(in.Tags), in.ModelVersion, toMillis(in.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert insight: %w", err)
	}
	return nil
}

// List returns the newest insights first. An empty pillar matches all.
func (r *InsightRepository) List(ctx context.Context, pillar Pillar, limit int) ([]Insight, error) {
	var rows []insightRow
	var err error
	if pillar == "" {
		err = sqlx.SelectContext(ctx, r.db, &rows,
			`SELECT `+insightColumns+` FROM insights ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	} else {
		err = sqlx.SelectContext(ctx, r.db, &rows,
			`SELECT `+insightColumns+` FROM insights WHERE pillar = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
			string(pillar), limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list insights: %w", err)
	}

	insights := make([]Insight, 0, len(rows))
	for _, row := range rows {
		insights = append(insights, row.toInsight())
	}
	return insights, nil
}

func (r *InsightRepository) CountByItem(ctx context.Context, itemID string) (int, error) {
	var count int
	if err := sqlx.GetContext(ctx, r.db, &count, `SELECT COUNT(*) FROM insights WHERE item_id = ?`, itemID); err != nil {
		return 0, fmt.Errorf("failed to count insights: %w", err)
	}
	return count, nil
}
