package keypoint_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minrelay/minrelay/internal/keypoint"
)

// testDSN returns the test database DSN from the environment, or skips the
// test if MINRELAY_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("MINRELAY_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("MINRELAY_TEST_POSTGRES_DSN not set — skipping PostgreSQL integration tests")
	}
	return dsn
}

// newTestLog creates a fresh [keypoint.PostgresLog] against an empty table.
func newTestLog(t *testing.T) *keypoint.PostgresLog {
	t.Helper()
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, testDSN(t))
	if err != nil {
		t.Fatalf("pgxpool.New: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS keypoints CASCADE"); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	log := keypoint.NewPostgresLog(pool)
	if err := log.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return log
}

func TestPostgresLog_AddAndListSince(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	items := []keypoint.Item{
		{SessionID: "s1", SpeakerTag: "Speaker-0", Text: "Launch moves to May", SuggestedBy: "Speaker-1", Timestamp: base},
		{SessionID: "s1", SpeakerTag: "Speaker-1", Text: "Review vendor contract", IsActionItem: true, NeedsFollowUp: true, SuggestedBy: "Speaker-1", Timestamp: base.Add(time.Minute)},
	}
	for _, it := range items {
		if err := log.Add(ctx, it); err != nil {
			t.Fatalf("Add(%q): %v", it.Text, err)
		}
	}

	got, err := log.ListSince(ctx, base.Add(30*time.Second))
	if err != nil {
		t.Fatalf("ListSince: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("items = %d, want 1", len(got))
	}
	it := got[0]
	if it.Text != "Review vendor contract" || !it.IsActionItem || !it.NeedsFollowUp {
		t.Errorf("item = %+v", it)
	}
	if it.ID == 0 {
		t.Error("item ID not assigned by the database")
	}
}

func TestPostgresLog_AddRejectsEmptyText(t *testing.T) {
	log := newTestLog(t)
	if err := log.Add(context.Background(), keypoint.Item{SpeakerTag: "Speaker-0"}); err == nil {
		t.Fatal("Add() with empty text should fail")
	}
}

func TestPostgresLog_TextSearchFallback(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()

	for _, text := range []string{"Launch moves to May", "Budget approved", "launch checklist owner is Dana"} {
		if err := log.Add(ctx, keypoint.Item{Text: text}); err != nil {
			t.Fatalf("Add(%q): %v", text, err)
		}
	}

	// No embedder configured, so Search degrades to ILIKE matching.
	results, err := log.Search(ctx, "launch", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("results = %d, want 2", len(results))
	}
}
