package speaker_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minrelay/minrelay/internal/speaker"
)

// newTestDirectory creates a fresh [speaker.PostgresDirectory] against an
// empty table, or skips when MINRELAY_TEST_POSTGRES_DSN is not set.
func newTestDirectory(t *testing.T) *speaker.PostgresDirectory {
	t.Helper()
	dsn := os.Getenv("MINRELAY_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("MINRELAY_TEST_POSTGRES_DSN not set — skipping PostgreSQL integration tests")
	}
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pgxpool.New: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS speakers CASCADE"); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	dir := speaker.NewPostgresDirectory(pool)
	if err := dir.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return dir
}

func TestPostgresDirectory_UpsertAndGet(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()

	if err := dir.Upsert(ctx, "Speaker-0", "Ada Lovelace", "CTO"); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	id, err := dir.GetBySpeakerTag(ctx, "Speaker-0")
	if err != nil {
		t.Fatalf("GetBySpeakerTag: %v", err)
	}
	if id == nil {
		t.Fatal("identity not found")
	}
	if id.DisplayName != "Ada Lovelace" || id.JobTitle != "CTO" {
		t.Errorf("identity = %q/%q", id.DisplayName, id.JobTitle)
	}
	if id.LastUpdatedUTC.IsZero() {
		t.Error("last_updated_utc not set")
	}

	// A second upsert replaces, not duplicates.
	if err := dir.Upsert(ctx, "Speaker-0", "Ada Lovelace", "Chief Technology Officer"); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}
	all, err := dir.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("entries = %d, want 1", len(all))
	}
	if all[0].JobTitle != "Chief Technology Officer" {
		t.Errorf("job title = %q, want the replacement", all[0].JobTitle)
	}
}

func TestPostgresDirectory_GetAbsent(t *testing.T) {
	dir := newTestDirectory(t)

	id, err := dir.GetBySpeakerTag(context.Background(), "Speaker-404")
	if err != nil {
		t.Fatalf("GetBySpeakerTag: %v", err)
	}
	if id != nil {
		t.Errorf("identity = %+v, want nil for absent tag", id)
	}
}
