package speaker

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// Compile-time assertion that MemDirectory satisfies the Directory interface.
var _ Directory = (*MemDirectory)(nil)

// MemDirectory is a thread-safe, in-memory implementation of [Directory].
// It is used in tests and as the fallback store when no database is
// configured. The zero value is ready to use.
type MemDirectory struct {
	mu       sync.RWMutex
	speakers map[string]Identity

	// now is swappable for tests that assert on LastUpdatedUTC progression.
	now func() time.Time
}

// NewMemDirectory returns an initialised [MemDirectory].
func NewMemDirectory() *MemDirectory {
	return &MemDirectory{
		speakers: make(map[string]Identity),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Upsert implements [Directory.Upsert].
func (d *MemDirectory) Upsert(_ context.Context, tag, displayName, jobTitle string) error {
	if tag == "" {
		return errors.New("speaker: tag must not be empty")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.speakers == nil {
		d.speakers = make(map[string]Identity)
	}
	now := time.Now().UTC()
	if d.now != nil {
		now = d.now()
	}
	d.speakers[tag] = Identity{
		SpeakerTag:     tag,
		DisplayName:    displayName,
		JobTitle:       jobTitle,
		LastUpdatedUTC: now,
	}
	return nil
}

// GetBySpeakerTag implements [Directory.GetBySpeakerTag].
func (d *MemDirectory) GetBySpeakerTag(_ context.Context, tag string) (*Identity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	id, ok := d.speakers[tag]
	if !ok {
		return nil, nil
	}
	return &id, nil
}

// List implements [Directory.List].
func (d *MemDirectory) List(_ context.Context) ([]Identity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Identity, 0, len(d.speakers))
	for _, id := range d.speakers {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SpeakerTag < out[j].SpeakerTag })
	return out, nil
}

// Len reports the number of stored identities.
func (d *MemDirectory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.speakers)
}
