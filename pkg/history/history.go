// Package history records completed plotting runs.
//
// Each run is stored as a [Record]: when it ran, what it read, and how every
// channel fared. Two backends implement [Store]:
//   - file: JSON files under ~/.config/penplot/history/, for the CLI
//   - mongo: a MongoDB collection, for a shared server
//
// Usage:
//
//	store, err := history.NewFileStore("")
//	rec := history.NewRecord("masks/")
//	// ... fill in channels ...
//	err = store.Save(ctx, rec)
//
//	recent, err := store.List(ctx, 10)
package history

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("run not found")

// DefaultListLimit bounds List when no limit is given.
const DefaultListLimit = 20

// Channel statuses.
const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
	StatusCached  = "cached"
)

// Record summarizes one run.
type Record struct {
	ID        string        `json:"id" bson:"_id"`
	CreatedAt time.Time     `json:"created_at" bson:"created_at"`
	Source    string        `json:"source" bson:"source"`
	Output    string        `json:"output,omitempty" bson:"output,omitempty"`
	Strategy  string        `json:"strategy" bson:"strategy"`
	Channels  []Channel     `json:"channels" bson:"channels"`
	Sequenced []string      `json:"sequenced,omitempty" bson:"sequenced,omitempty"`
	Duration  time.Duration `json:"duration" bson:"duration"`
	Error     string        `json:"error,omitempty" bson:"error,omitempty"`
}

// Channel is the per-channel part of a record.
type Channel struct {
	Name         string  `json:"name" bson:"name"`
	Status       string  `json:"status" bson:"status"`
	Commands     int     `json:"commands" bson:"commands"`
	Lifts        int     `json:"lifts" bson:"lifts"`
	TravelBefore float64 `json:"travel_before" bson:"travel_before"`
	TravelAfter  float64 `json:"travel_after" bson:"travel_after"`
	Error        string  `json:"error,omitempty" bson:"error,omitempty"`
}

// NewRecord starts a record with a fresh ID.
func NewRecord(source string) *Record {
	return &Record{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Source:    source,
	}
}

// Succeeded counts channels that produced a program.
func (r *Record) Succeeded() int {
	n := 0
	for _, c := range r.Channels {
		if c.Status == StatusOK || c.Status == StatusCached {
			n++
		}
	}
	return n
}

// Store persists run records.
type Store interface {
	// Save inserts or replaces a record.
	Save(ctx context.Context, r *Record) error

	// Get returns the record with id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)

	// List returns up to limit records, newest first. limit <= 0 uses
	// DefaultListLimit.
	List(ctx context.Context, limit int) ([]*Record, error)

	Close() error
}
