package storage

import (
	"errors"
	"time"

	"github.com/kalambet/propeval/internal/listing"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// UpsertOutcome says what UpsertListing did with an imported listing.
type UpsertOutcome string

const (
	Created   UpsertOutcome = "created"
	Updated   UpsertOutcome = "updated"
	Unchanged UpsertOutcome = "unchanged"
)

// ListingFilter narrows ListListings. Empty fields match everything; a
// zero Limit means no limit.
type ListingFilter struct {
	FilterStatus   listing.FilterStatus
	AnalysisStatus listing.AnalysisStatus
	Limit          int
}

// Stats counts listings by status.
type Stats struct {
	Total      int            `json:"total"`
	ByFilter   map[string]int `json:"by_filter_status"`
	ByAnalysis map[string]int `json:"by_analysis_status"`
	Scored     int            `json:"scored"`
}

// Ranked pairs a listing with its scored analysis.
type Ranked struct {
	Listing  listing.Listing  `json:"listing"`
	Analysis listing.Analysis `json:"analysis"`
}

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
