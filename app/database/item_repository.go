package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const itemColumns = `id, source_id, url, title, published_at, content_hash, content_key, vector_id, created_at`

// ItemRepository handles database operations for ingested items
type ItemRepository struct {
	db sqlx.ExtContext
}

func NewItemRepository(db sqlx.ExtContext) *ItemRepository {
	return &ItemRepository{db: db}
}

// Get returns nil when the item does not exist
func (r *ItemRepository) Get(ctx context.Context, id string) (*Item, error) {
	var row itemRow
	err := sqlx.GetContext(ctx, r.db, &row, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	item := row.toItem()
	return &item, nil
}

func (r *ItemRepository) ExistsByURL(ctx context.Context, url string) (bool, error) {
	var count int
	if err := sqlx.GetContext(ctx, r.db, &count, `SELECT COUNT(*) FROM items WHERE url = ?`, url); err != nil {
		return false, fmt.Errorf("failed to check item url: %w", err)
	}
	return count > 0, nil
}

// Insert stores the item unless its URL is already known. It reports whether
// a row was written.
func (r *ItemRepository) Insert(ctx context.Context, item *Item) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO items (id, source_id, url, title, published_at, content_hash, content_key, vector_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (url) DO NOTHING
	`, item.ID, nullString(item.SourceID), item.URL, item.Title, nullMillis(item.PublishedAt), item.ContentHash,
		nullIfEmpty(item.ContentKey), nullIfEmpty(item.VectorID), toMillis(item.CreatedAt))
	if err != nil {
		return false, fmt.Errorf("failed to insert item: %w", err)
	}
	return affectedOne(res)
}

func (r *ItemRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := sqlx.GetContext(ctx, r.db, &count, `SELECT COUNT(*) FROM items`); err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return count, nil
}
