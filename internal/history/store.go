// Package history persists completed role-play sessions so users can review
// past conversations and their evaluations.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/MrWong99/rehearsal/internal/coach"
	"github.com/MrWong99/rehearsal/internal/scenario"
	"github.com/MrWong99/rehearsal/pkg/transcript"
)

// ErrNotFound is returned when no record exists for the requested ID.
var ErrNotFound = errors.New("history: record not found")

// Record is one completed session: its configuration, full conversation,
// and the evaluation produced at the end (if any).
type Record struct {
	ID              string             `json:"id"`
	UserID          string             `json:"userId"`
	Timestamp       time.Time          `json:"timestamp"`
	DurationSeconds int                `json:"durationSeconds"`
	Scenario        scenario.Scenario  `json:"scenario"`
	Entries         []transcript.Entry `json:"entries"`
	Evaluation      *coach.Evaluation  `json:"evaluation,omitempty"`
}

// Store is the abstraction over session history persistence.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save inserts the record, or replaces an existing record with the same ID.
	// Replacing is how an evaluation gets attached after the session ends.
	Save(ctx context.Context, rec Record) error

	// Get returns the record with the given ID, or ErrNotFound.
	Get(ctx context.Context, id string) (Record, error)

	// ListByUser returns the user's records ordered newest first.
	// A limit of 0 means no limit.
	ListByUser(ctx context.Context, userID string, limit int) ([]Record, error)

	// Delete removes the record with the given ID, or returns ErrNotFound.
	Delete(ctx context.Context, id string) error
}
