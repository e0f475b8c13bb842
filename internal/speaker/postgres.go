package speaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the speakers table. Execute it via
// [PostgresDirectory.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS speakers (
    speaker_tag      TEXT PRIMARY KEY,
    display_name     TEXT NOT NULL DEFAULT '',
    job_title        TEXT NOT NULL DEFAULT '',
    last_updated_utc TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// DB is the database interface used by [PostgresDirectory]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresDirectory is a [Directory] backed by a PostgreSQL speakers table.
// The upsert is a single INSERT ... ON CONFLICT statement, so it is atomic at
// the database level.
type PostgresDirectory struct {
	db DB
}

// Compile-time interface check.
var _ Directory = (*PostgresDirectory)(nil)

// NewPostgresDirectory creates a [PostgresDirectory] using the given database
// connection or pool. The caller is responsible for calling
// [PostgresDirectory.Migrate] before issuing queries.
func NewPostgresDirectory(db DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

// Migrate executes the [Schema] DDL against the database.
func (d *PostgresDirectory) Migrate(ctx context.Context) error {
	_, err := d.db.Exec(ctx, Schema)
	if err != nil {
		return fmt.Errorf("speaker: migrate: %w", err)
	}
	return nil
}

// Upsert implements [Directory].
func (d *PostgresDirectory) Upsert(ctx context.Context, tag, displayName, jobTitle string) error {
	if tag == "" {
		return errors.New("speaker: tag must not be empty")
	}

	const q = `
		INSERT INTO speakers (speaker_tag, display_name, job_title, last_updated_utc)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (speaker_tag) DO UPDATE SET
		    display_name     = EXCLUDED.display_name,
		    job_title        = EXCLUDED.job_title,
		    last_updated_utc = EXCLUDED.last_updated_utc`

	_, err := d.db.Exec(ctx, q, tag, displayName, jobTitle, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("speaker: upsert %q: %w", tag, err)
	}
	return nil
}

// GetBySpeakerTag implements [Directory].
func (d *PostgresDirectory) GetBySpeakerTag(ctx context.Context, tag string) (*Identity, error) {
	const q = `
		SELECT speaker_tag, display_name, job_title, last_updated_utc
		FROM   speakers
		WHERE  speaker_tag = $1`

	var id Identity
	err := d.db.QueryRow(ctx, q, tag).Scan(
		&id.SpeakerTag, &id.DisplayName, &id.JobTitle, &id.LastUpdatedUTC,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("speaker: get %q: %w", tag, err)
	}
	return &id, nil
}

// List implements [Directory].
func (d *PostgresDirectory) List(ctx context.Context) ([]Identity, error) {
	const q = `
		SELECT speaker_tag, display_name, job_title, last_updated_utc
		FROM   speakers
		ORDER  BY speaker_tag`

	rows, err := d.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("speaker: list: %w", err)
	}

	ids, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Identity, error) {
		var id Identity
		err := row.Scan(&id.SpeakerTag, &id.DisplayName, &id.JobTitle, &id.LastUpdatedUTC)
		return id, err
	})
	if err != nil {
		return nil, fmt.Errorf("speaker: list: %w", err)
	}
	return ids, nil
}
