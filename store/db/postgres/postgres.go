package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/hrygo/smartlibrarian/internal/profile"
	"github.com/hrygo/smartlibrarian/internal/version"
	"github.com/hrygo/smartlibrarian/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens a PostgreSQL database described by profile.DSN. The pgvector
// extension must be installable by the connecting role.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	db, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open postgres")
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)

	return &DB{db: db, profile: profile}, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

func placeholders(n int) string {
	list := make([]string, n)
	for i := range list {
		list[i] = placeholder(i + 1)
	}
	return strings.Join(list, ", ")
}

const schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS system_setting (
	name TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS conversation (
	id SERIAL PRIMARY KEY,
	uid TEXT NOT NULL UNIQUE,
	owner_id TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT 'New chat',
	title_source TEXT NOT NULL DEFAULT 'default',
	created_ts BIGINT NOT NULL,
	updated_ts BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversation_owner_updated ON conversation (owner_id, updated_ts DESC);

CREATE TABLE IF NOT EXISTS conversation_message (
	id BIGSERIAL PRIMARY KEY,
	conversation_id INTEGER NOT NULL REFERENCES conversation(id) ON DELETE CASCADE,
	role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
	content TEXT NOT NULL,
	created_ts BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversation_message_conversation ON conversation_message (conversation_id, id);

CREATE TABLE IF NOT EXISTS book_embedding (
	id SERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	summary TEXT NOT NULL,
	model TEXT NOT NULL,
	embedding vector NOT NULL,
	created_ts BIGINT NOT NULL,
	updated_ts BIGINT NOT NULL,
	UNIQUE (title, model)
);

CREATE TABLE IF NOT EXISTS query_cache (
	query TEXT PRIMARY KEY,
	reply TEXT NOT NULL,
	created_ts BIGINT NOT NULL
);
`

func (d *DB) Migrate(ctx context.Context, schemaVersion string) (string, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return "", fmt.Errorf("failed to apply schema: %w", err)
	}

	var previous string
	err = tx.QueryRowContext(ctx, `SELECT value FROM system_setting WHERE name = 'schema_version'`).Scan(&previous)
	if err != nil && err != sql.ErrNoRows {
		return "", fmt.Errorf("failed to read schema version: %w", err)
	}

	// Never downgrade the recorded version; Store.Migrate refuses to run then.
	if !version.IsVersionGreaterThan(previous, schemaVersion) {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO system_setting (name, value) VALUES ('schema_version', $1)
			ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value`, schemaVersion); err != nil {
			return "", fmt.Errorf("failed to record schema version: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit migration: %w", err)
	}
	return previous, nil
}
