package keypoint

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

// Compile-time assertion that MemLog satisfies the Log interface.
var _ Log = (*MemLog)(nil)

// MemLog is a thread-safe, in-memory implementation of [Log].
// It is used in tests and as the fallback store when no database is
// configured. The zero value is ready to use.
type MemLog struct {
	mu     sync.RWMutex
	items  []Item
	nextID int64
}

// NewMemLog returns an initialised [MemLog].
func NewMemLog() *MemLog {
	return &MemLog{}
}

// Add implements [Log.Add].
func (l *MemLog) Add(_ context.Context, item Item) error {
	if item.Text == "" {
		return errors.New("keypoint: item text must not be empty")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	item.ID = l.nextID
	if item.Timestamp.IsZero() {
		item.Timestamp = time.Now().UTC()
	}
	l.items = append(l.items, item)
	return nil
}

// ListSince implements [Log.ListSince].
func (l *MemLog) ListSince(_ context.Context, since time.Time) ([]Item, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Item, 0, len(l.items))
	for _, it := range l.items {
		if !it.Timestamp.Before(since) {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// Search implements [Log.Search] with case-insensitive substring matching.
func (l *MemLog) Search(_ context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	q := strings.ToLower(query)
	var out []SearchResult
	for _, it := range l.items {
		if strings.Contains(strings.ToLower(it.Text), q) {
			out = append(out, SearchResult{Item: it})
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// Len reports the number of stored items.
func (l *MemLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}
