package speaker

import (
	"context"
	"testing"
	"time"
)

func TestMemDirectory_UpsertRefreshesLastUpdated(t *testing.T) {
	t.Parallel()

	first := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	second := first.Add(45 * time.Second)

	d := NewMemDirectory()
	clock := first
	d.now = func() time.Time { return clock }

	ctx := context.Background()
	if err := d.Upsert(ctx, "Speaker-1", "Ada Lovelace", ""); err != nil {
		t.Fatalf("first Upsert: %v", err)
	}

	clock = second
	if err := d.Upsert(ctx, "Speaker-1", "Ada Lovelace", "CTO"); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}

	id, err := d.GetBySpeakerTag(ctx, "Speaker-1")
	if err != nil {
		t.Fatalf("GetBySpeakerTag: %v", err)
	}
	if id == nil {
		t.Fatal("GetBySpeakerTag returned nil identity")
	}
	if !id.LastUpdatedUTC.Equal(second) {
		t.Errorf("LastUpdatedUTC = %v, want %v", id.LastUpdatedUTC, second)
	}
	if !id.LastUpdatedUTC.After(first) {
		t.Error("LastUpdatedUTC did not advance on the second Upsert")
	}
}
