// Package keypoint defines the durable key-point log: the append-only record
// of discussion points and action items extracted from a meeting.
package keypoint

import (
	"context"
	"time"
)

// Item is one extracted key point or action item. Items are append-only:
// once persisted they are never mutated or deleted by the relay.
type Item struct {
	// ID is the store-assigned row identifier. Zero until persisted.
	ID int64

	// SessionID groups items belonging to one meeting session.
	SessionID string

	// Timestamp is when the point was made. Defaults to the chunk arrival
	// time when the extractor omits it.
	Timestamp time.Time

	// SpeakerTag is the diarization tag of the speaker, "Unknown" when the
	// extractor could not attribute the point.
	SpeakerTag string

	// IsActionItem marks a to-do rather than a plain discussion point.
	IsActionItem bool

	// Text is the point itself. Always non-empty for persisted items.
	Text string

	// SuggestedBy is who raised the point. Defaults to SpeakerTag.
	SuggestedBy string

	// NeedsFollowUp marks points the extractor flagged for later review.
	NeedsFollowUp bool
}

// SearchResult pairs an Item with its semantic distance to a search query.
type SearchResult struct {
	Item Item

	// Distance is the cosine distance to the query embedding; smaller is more
	// similar. Stores without vector support report 0.
	Distance float64
}

// Log is the append-only key-point repository.
// Implementations must be safe for concurrent use.
type Log interface {
	// Add appends one item. Items with empty Text are rejected with an error;
	// the pipelines filter those out before calling Add.
	Add(ctx context.Context, item Item) error

	// ListSince returns all items with Timestamp >= since, ordered
	// chronologically. A zero since returns everything.
	ListSince(ctx context.Context, since time.Time) ([]Item, error)

	// Search returns up to limit items ranked by semantic similarity to
	// query. Stores without an embedding backend fall back to substring
	// matching over Text.
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
}
