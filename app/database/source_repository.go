package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const sourceColumns = `id, type, name, url, schedule, status, last_fetched_at, etag, created_at`

// SourceRepository handles database operations for polled sources
type SourceRepository struct {
	db sqlx.ExtContext
}

// NewSourceRepository creates a repository bound to a connection or transaction
func NewSourceRepository(db sqlx.ExtContext) *SourceRepository {
	return &SourceRepository{db: db}
}

func (r *SourceRepository) Create(ctx context.Context, s *Source) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sources (id, type, name, url, schedule, status, last_fetched_at, etag, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, string(s.Type), s.Name, s.URL, s.Schedule, string(s.Status), nullMillis(s.LastFetchedAt), nullIfEmpty(s.ETag), toMillis(s.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create source: %w", err)
	}
	return nil
}

// Get returns nil when the source does not exist
func (r *SourceRepository) Get(ctx context.Context, id string) (*Source, error) {
	return r.getOne(ctx, `SELECT `+sourceColumns+` FROM sources WHERE id = ?`, id)
}

// GetByURL returns nil when no source has the URL
func (r *SourceRepository) GetByURL(ctx context.Context, url string) (*Source, error) {
	return r.getOne(ctx, `SELECT `+sourceColumns+` FROM sources WHERE url = ?`, url)
}

func (r *SourceRepository) getOne(ctx context.Context, query string, arg any) (*Source, error) {
	var row sourceRow
	err := sqlx.GetContext(ctx, r.db, &row, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}
	s := row.toSource()
	return &s, nil
}

func (r *SourceRepository) List(ctx context.Context) ([]Source, error) {
	var rows []sourceRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, `SELECT `+sourceColumns+` FROM sources ORDER BY created_at DESC`); err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	sources := make([]Source, 0, len(rows))
	for _, row := range rows {
		sources = append(sources, row.toSource())
	}
	return sources, nil
}

func (r *SourceRepository) SetStatus(ctx context.Context, id string, status SourceStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE sources SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update source status: %w", err)
	}
	return requireRow(res)
}

// UpdateETag stores the validator of the latest feed response
func (r *SourceRepository) UpdateETag(ctx context.Context, id, etag string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE sources SET etag = ? WHERE id = ?`, etag, id); err != nil {
		return fmt.Errorf("failed to update source etag: %w", err)
	}
	return nil
}

func (r *SourceRepository) UpdateFetchState(ctx context.Context, id string, fetchedAt time.Time) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE sources SET last_fetched_at = ? WHERE id = ?`, toMillis(fetchedAt), id); err != nil {
		return fmt.Errorf("failed to update source fetch state: %w", err)
	}
	return nil
}

func (r *SourceRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sources WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
