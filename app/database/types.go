package database

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

type SourceType string

const (
	SourceTypeFeed SourceType = "feed"
	SourceTypePage SourceType = "page"
)

type SourceStatus string

const (
	SourceStatusActive SourceStatus = "active"
	SourceStatusPaused SourceStatus = "paused"
)

// DefaultSchedule is the polling schedule of sources registered without one.
const DefaultSchedule = "0 */6 * * *"

type Source struct {
	ID            string       `json:"id"`
	Type          SourceType   `json:"type"`
	Name          string       `json:"name"`
	URL           string       `json:"url"`
	Schedule      string       `json:"schedule"`
	Status        SourceStatus `json:"status"`
	LastFetchedAt *time.Time   `json:"last_fetched_at"`
	ETag          string       `json:"etag,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

type JobType string

const (
	JobTypeFetch   JobType = "fetch"
	JobTypeAnalyze JobType = "analyze"
	JobTypeReport  JobType = "report"
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Job is also the wire body of the worker boundary.
type Job struct {
	ID           string     `json:"id"`
	Type         JobType    `json:"type"`
	SourceID     *string    `json:"source_id"`
	Status       JobStatus  `json:"status"`
	Cursor       *string    `json:"cursor"`
	RetryCount   int        `json:"retry_count"`
	NextRunAt    time.Time  `json:"next_run_at"`
	StartedAt    *time.Time `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at"`
	ErrorMessage *string    `json:"error_message"`
}

type Item struct {
	ID          string     `json:"id"`
	SourceID    *string    `json:"source_id"`
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	PublishedAt *time.Time `json:"published_at"`
	ContentHash string     `json:"content_hash"`
	ContentKey  string     `json:"content_key,omitempty"`
	VectorID    string     `json:"vector_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type Pillar string

const (
	PillarCareerBusiness Pillar = "career_business"
	PillarMarketStartup  Pillar = "market_startup"
	PillarSelfGrowth     Pillar = "self_growth"
)

// Pillars lists the analysis categories in prompt order.
var Pillars = []Pillar{PillarCareerBusiness, PillarMarketStartup, PillarSelfGrowth}

func (p Pillar) Valid() bool {
	for _, known := range Pillars {
		if p == known {
			return true
		}
	}
	return false
}

type Maturity string

const (
	MaturityAdopt  Maturity = "ADOPT"
	MaturityTrial  Maturity = "TRIAL"
	MaturityAssess Maturity = "ASSESS"
	MaturityHold   Maturity = "HOLD"
)

type Insight struct {
	ID             string    `json:"id"`
	ItemID         string    `json:"item_id"`
	Pillar         Pillar    `json:"pillar"`
	RelevanceScore int       `json:"relevance_score"`
	Summary        string    `json:"summary"`
	ActionItems    []string  `json:"action_items"`
	MaturityRating Maturity  `json:"maturity_rating"`
	Tags           []string  `json:"tags"`
	ModelVersion   string    `json:"model_version"`
	CreatedAt      time.Time `json:"created_at"`
}
