package keypoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/minrelay/minrelay/pkg/provider/embeddings"
)

// Schema is the SQL DDL for the keypoints table. Execute it via
// [PostgresLog.Migrate] or apply it manually during deployment.
// The vector column dimensionality matches text-embedding-3-small; adjust it
// when configuring a different embeddings model.
const Schema = `
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS keypoints (
    id              BIGSERIAL PRIMARY KEY,
    session_id      TEXT NOT NULL DEFAULT '',
    speaker_tag     TEXT NOT NULL DEFAULT 'Unknown',
    is_action_item  BOOLEAN NOT NULL DEFAULT false,
    text            TEXT NOT NULL,
    suggested_by    TEXT NOT NULL DEFAULT 'Unknown',
    needs_follow_up BOOLEAN NOT NULL DEFAULT false,
    embedding       vector(1536),
    timestamp       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_keypoints_session ON keypoints(session_id);
CREATE INDEX IF NOT EXISTS idx_keypoints_timestamp ON keypoints(timestamp);
`

// DB is the database interface used by [PostgresLog]. Both *pgxpool.Pool and
// *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresLog is a [Log] backed by a PostgreSQL keypoints table with a
// pgvector column for semantic search.
//
// When constructed with an embeddings provider, Add computes an embedding per
// item on a best-effort basis: an embedding failure is logged and the item is
// stored without a vector rather than being dropped.
type PostgresLog struct {
	db       DB
	embedder embeddings.Provider // nil disables vectors
}

// Compile-time interface check.
var _ Log = (*PostgresLog)(nil)

// LogOption is a functional option for [NewPostgresLog].
type LogOption func(*PostgresLog)

// WithEmbedder enables semantic search by computing an embedding for every
// added item with the given provider.
func WithEmbedder(e embeddings.Provider) LogOption {
	return func(l *PostgresLog) { l.embedder = e }
}

// NewPostgresLog creates a [PostgresLog] using the given database connection
// or pool. The caller is responsible for calling [PostgresLog.Migrate] to
// ensure the schema exists before issuing queries.
func NewPostgresLog(db DB, opts ...LogOption) *PostgresLog {
	l := &PostgresLog{db: db}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Migrate executes the [Schema] DDL against the database.
func (l *PostgresLog) Migrate(ctx context.Context) error {
	_, err := l.db.Exec(ctx, Schema)
	if err != nil {
		return fmt.Errorf("keypoint: migrate: %w", err)
	}
	return nil
}

// Add implements [Log].
func (l *PostgresLog) Add(ctx context.Context, item Item) error {
	if item.Text == "" {
		return errors.New("keypoint: item text must not be empty")
	}

	var vec any // nil column when no embedder or embedding failed
	if l.embedder != nil {
		emb, err := l.embedder.Embed(ctx, item.Text)
		if err != nil {
			slog.Debug("keypoint embedding failed, storing without vector", "err", err)
		} else {
			vec = pgvector.NewVector(emb)
		}
	}

	ts := item.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	const q = `
		INSERT INTO keypoints
		    (session_id, speaker_tag, is_action_item, text, suggested_by, needs_follow_up, embedding, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := l.db.Exec(ctx, q,
		item.SessionID,
		item.SpeakerTag,
		item.IsActionItem,
		item.Text,
		item.SuggestedBy,
		item.NeedsFollowUp,
		vec,
		ts,
	)
	if err != nil {
		return fmt.Errorf("keypoint: add: %w", err)
	}
	return nil
}

// ListSince implements [Log].
func (l *PostgresLog) ListSince(ctx context.Context, since time.Time) ([]Item, error) {
	const q = `
		SELECT id, session_id, speaker_tag, is_action_item, text, suggested_by, needs_follow_up, timestamp
		FROM   keypoints
		WHERE  timestamp >= $1
		ORDER  BY timestamp`

	rows, err := l.db.Query(ctx, q, since)
	if err != nil {
		return nil, fmt.Errorf("keypoint: list since: %w", err)
	}

	items, err := pgx.CollectRows(rows, scanItem)
	if err != nil {
		return nil, fmt.Errorf("keypoint: list since: %w", err)
	}
	return items, nil
}

// Search implements [Log]. Without an embedder it degrades to a substring
// match over the text column.
func (l *PostgresLog) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}

	if l.embedder == nil {
		return l.textSearch(ctx, query, limit)
	}

	emb, err := l.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("keypoint: embed query: %w", err)
	}

	const q = `
		SELECT id, session_id, speaker_tag, is_action_item, text, suggested_by, needs_follow_up, timestamp,
		       embedding <=> $1 AS distance
		FROM   keypoints
		WHERE  embedding IS NOT NULL
		ORDER  BY distance
		LIMIT  $2`

	rows, err := l.db.Query(ctx, q, pgvector.NewVector(emb), limit)
	if err != nil {
		return nil, fmt.Errorf("keypoint: search: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (SearchResult, error) {
		var r SearchResult
		err := row.Scan(
			&r.Item.ID, &r.Item.SessionID, &r.Item.SpeakerTag, &r.Item.IsActionItem,
			&r.Item.Text, &r.Item.SuggestedBy, &r.Item.NeedsFollowUp, &r.Item.Timestamp,
			&r.Distance,
		)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("keypoint: search: %w", err)
	}
	return results, nil
}

// textSearch is the vector-free fallback used when no embedder is configured.
func (l *PostgresLog) textSearch(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	const q = `
		SELECT id, session_id, speaker_tag, is_action_item, text, suggested_by, needs_follow_up, timestamp
		FROM   keypoints
		WHERE  text ILIKE '%' || $1 || '%'
		ORDER  BY timestamp
		LIMIT  $2`

	rows, err := l.db.Query(ctx, q, query, limit)
	if err != nil {
		return nil, fmt.Errorf("keypoint: text search: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (SearchResult, error) {
		var r SearchResult
		err := scanItemInto(row, &r.Item)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("keypoint: text search: %w", err)
	}
	return results, nil
}

func scanItem(row pgx.CollectableRow) (Item, error) {
	var it Item
	err := scanItemInto(row, &it)
	return it, err
}

func scanItemInto(row pgx.Row, it *Item) error {
	return row.Scan(
		&it.ID, &it.SessionID, &it.SpeakerTag, &it.IsActionItem,
		&it.Text, &it.SuggestedBy, &it.NeedsFollowUp, &it.Timestamp,
	)
}
