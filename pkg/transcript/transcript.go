// Package transcript reconstructs a readable conversation log from the
// partial transcription fragments a live audio session emits.
//
// Fragments arrive interleaved and unbounded (a single spoken sentence may
// surface as many fragments); the [Aggregator] buffers them per speaker and
// turns them into immutable [Entry] values at turn boundaries. Committed
// entries are append-only: nothing ever mutates or removes an entry once it
// is in the log.
package transcript

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role identifies which side of the conversation produced an entry.
type Role string

const (
	// RoleUser is the human speaker on the microphone side.
	RoleUser Role = "user"

	// RoleModel is the synthesized voice on the playback side.
	RoleModel Role = "model"
)

// Entry is one committed utterance in the conversation log.
type Entry struct {
	// ID is a unique identifier assigned at commit time.
	ID string `json:"id"`

	// Role is who spoke.
	Role Role `json:"role"`

	// Text is the full utterance, leading and trailing whitespace trimmed.
	Text string `json:"text"`

	// Timestamp is when the entry was committed.
	Timestamp time.Time `json:"timestamp"`
}

// Aggregator accumulates transcription fragments per speaker and commits
// them into entries at turn boundaries. It is safe for concurrent use.
type Aggregator struct {
	mu      sync.Mutex
	user    strings.Builder
	model   strings.Builder
	entries []Entry
	now     func() time.Time
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{now: time.Now}
}

// Append adds a fragment to the open buffer for role. Fragments are
// concatenated verbatim; the upstream transcription already includes any
// inter-fragment spacing.
func (a *Aggregator) Append(role Role, fragment string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch role {
	case RoleUser:
		a.user.WriteString(fragment)
	case RoleModel:
		a.model.WriteString(fragment)
	}
}

// Commit closes the current turn: both open buffers are flushed into the
// log, user before model, and reset. Buffers that are empty after trimming
// whitespace produce no entry, so a commit with nothing buffered is a no-op.
// It returns the entries created by this commit.
func (a *Aggregator) Commit() []Entry {
	a.mu.Lock()
	defer a.mu.Unlock()

	var created []Entry
	for _, side := range []struct {
		role Role
		buf  *strings.Builder
	}{
		{RoleUser, &a.user},
		{RoleModel, &a.model},
	} {
		text := strings.TrimSpace(side.buf.String())
		side.buf.Reset()
		if text == "" {
			continue
		}
		created = append(created, Entry{
			ID:        uuid.NewString(),
			Role:      side.role,
			Text:      text,
			Timestamp: a.now(),
		})
	}
	a.entries = append(a.entries, created...)
	return created
}

// Entries returns a copy of the committed log in commit order.
func (a *Aggregator) Entries() []Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Entry, len(a.entries))
	copy(out, a.entries)
	return out
}

// Pending returns the text currently buffered for role, untrimmed. Useful
// for showing an in-progress caption before the turn completes.
func (a *Aggregator) Pending(role Role) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch role {
	case RoleUser:
		return a.user.String()
	case RoleModel:
		return a.model.String()
	}
	return ""
}
