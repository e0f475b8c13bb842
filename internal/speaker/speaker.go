// Package speaker defines the speaker directory: the per-session mapping from
// opaque diarization tags to resolved human identities.
package speaker

import (
	"context"
	"time"
)

// Identity is one resolved speaker record, keyed by the diarization tag.
// Each resolution overwrites DisplayName, JobTitle, and LastUpdatedUTC in
// place — last write wins, no field-level merge.
type Identity struct {
	// SpeakerTag is the unique diarization tag (e.g., "Speaker-1", "Guest-2").
	SpeakerTag string

	// DisplayName is the resolved human name. May be empty when only the job
	// title is known.
	DisplayName string

	// JobTitle is the resolved role or title. May be empty.
	JobTitle string

	// LastUpdatedUTC is when this record was last written.
	LastUpdatedUTC time.Time
}

// Directory is the speaker identity repository with upsert semantics: at most
// one record exists per speaker tag.
//
// Implementations must be safe for concurrent use and must perform the upsert
// atomically.
type Directory interface {
	// Upsert inserts or replaces the record for tag, overwriting display
	// name, job title, and the update timestamp. tag must be non-empty.
	Upsert(ctx context.Context, tag, displayName, jobTitle string) error

	// GetBySpeakerTag returns the record for tag, or (nil, nil) when absent.
	GetBySpeakerTag(ctx context.Context, tag string) (*Identity, error)

	// List returns all records ordered by speaker tag.
	List(ctx context.Context) ([]Identity, error)
}
