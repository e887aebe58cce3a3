package database

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Row shapes as stored in SQLite. Timestamps are unix milliseconds.

type sourceRow struct {
	ID            string         `db:"id"`
	Type          string         `db:"type"`
	Name          string         `db:"name"`
	URL           string         `db:"url"`
	Schedule      string         `db:"schedule"`
	Status        string         `db:"status"`
	LastFetchedAt sql.NullInt64  `db:"last_fetched_at"`
	ETag          sql.NullString `db:"etag"`
	CreatedAt     int64          `db:"created_at"`
}

func (r sourceRow) toSource() Source {
	return Source{
		ID:            r.ID,
		Type:          SourceType(r.Type),
		Name:          r.Name,
		URL:           r.URL,
		Schedule:      r.Schedule,
		Status:        SourceStatus(r.Status),
		LastFetchedAt: fromNullMillis(r.LastFetchedAt),
		ETag:          r.ETag.String,
		CreatedAt:     fromMillis(r.CreatedAt),
	}
}

type jobRow struct {
	ID           string         `db:"id"`
	Type         string         `db:"type"`
	SourceID     sql.NullString `db:"source_id"`
	Status       string         `db:"status"`
	Cursor       sql.NullString `db:"cursor"`
	RetryCount   int            `db:"retry_count"`
	NextRunAt    int64          `db:"next_run_at"`
	StartedAt    sql.NullInt64  `db:"started_at"`
	CompletedAt  sql.NullInt64  `db:"completed_at"`
	ErrorMessage sql.NullString `db:"error_message"`
}

func (r jobRow) toJob() Job {
	return Job{
		ID:           r.ID,
		Type:         JobType(r.Type),
		SourceID:     fromNullString(r.SourceID),
		Status:       JobStatus(r.Status),
		Cursor:       fromNullString(r.Cursor),
		RetryCount:   r.RetryCount,
		NextRunAt:    fromMillis(r.NextRunAt),
		StartedAt:    fromNullMillis(r.StartedAt),
		CompletedAt:  fromNullMillis(r.CompletedAt),
		ErrorMessage: fromNullString(r.ErrorMessage),
	}
}

type itemRow struct {
	ID          string         `db:"id"`
	SourceID    sql.NullString `db:"source_id"`
	URL         string         `db:"url"`
	Title       string         `db:"title"`
	PublishedAt sql.NullInt64  `db:"published_at"`
	ContentHash string         `db:"content_hash"`
	ContentKey  sql.NullString `db:"content_key"`
	VectorID    sql.NullString `db:"vector_id"`
	CreatedAt   int64          `db:"created_at"`
}

func (r itemRow) toItem() Item {
	return Item{
		ID:          r.ID,
		SourceID:    fromNullString(r.SourceID),
		URL:         r.URL,
		Title:       r.Title,
		PublishedAt: fromNullMillis(r.PublishedAt),
		ContentHash: r.ContentHash,
		ContentKey:  r.ContentKey.String,
		VectorID:    r.VectorID.String,
		CreatedAt:   fromMillis(r.CreatedAt),
	}
}

type insightRow struct {
	ID             string         `db:"id"`
	ItemID         string         `db:"item_id"`
	Pillar         string         `db:"pillar"`
	RelevanceScore int            `db:"relevance_score"`
	Summary        string         `db:"summary"`
	ActionItems    string         `db:"action_items"`
	MaturityRating sql.NullString `db:"maturity_rating"`
	Tags           string         `db:"tags"`
	ModelVersion   string         `db:"model_version"`
	CreatedAt      int64          `db:"created_at"`
}

func (r insightRow) toInsight() Insight {
	return Insight{
		ID:             r.ID,
		ItemID:         r.ItemID,
		Pillar:         Pillar(r.Pillar),
		RelevanceScore: r.RelevanceScore,
		Summary:        r.Summary,
		ActionItems:    decodeStrings(r.ActionItems),
		MaturityRating: Maturity(r.MaturityRating.String),
		Tags:           decodeStrings(r.Tags),
		ModelVersion:   r.ModelVersion,
		CreatedAt:      fromMillis(r.CreatedAt),
	}
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromNullMillis(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromMillis(n.Int64)
	return &t
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func fromNullString(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	s := n.String
	return &s
}

func encodeStrings(values []string) string {
	if values == nil {
		values = []string{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeStrings(raw string) []string {
	values := []string{}
	if raw == "" {
		return values
	}
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return []string{}
	}
	return values
}
