package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/hrygo/smartlibrarian/internal/profile"
	"github.com/hrygo/smartlibrarian/internal/version"
	"github.com/hrygo/smartlibrarian/store"
)

// ============================================================================
// SQLITE SUPPORT POLICY
// ============================================================================
// SQLite backs development, tests and single-user installs.
//
// - Vectors are stored as little-endian float32 BLOBs and ranked in Go.
//   This is linear in corpus size, which is fine for a few thousand books.
// - Writes are serialized through a single connection.
// - Use PostgreSQL with pgvector for shared deployments.
// ============================================================================

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens a database specified by its database driver name and a
// driver-specific data source name, usually consisting of at least a
// database name and connection information.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	sqliteDB, err := sql.Open("sqlite", withPragmas(profile.DSN))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}

	// A single connection also keeps ":memory:" databases alive across calls.
	sqliteDB.SetMaxOpenConns(1)
	sqliteDB.SetMaxIdleConns(1)
	sqliteDB.SetConnMaxLifetime(0)
	sqliteDB.SetConnMaxIdleTime(0)

	return &DB{db: sqliteDB, profile: profile}, nil
}

// Connection pragmas:
// - Foreign keys on: message rows cascade with their conversation.
// - WAL journal mode prevents reader/writer locking.
// - modernc.org/sqlite requires the `_pragma=` prefix for each pragma.
const pragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)"

// withPragmas appends the connection pragmas, keeping any query string the
// configured DSN already carries.
func withPragmas(dsn string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + pragmas
	}
	return dsn + "?" + pragmas
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS system_setting (
		name TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS conversation (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		uid TEXT NOT NULL UNIQUE,
		owner_id TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT 'New chat',
		title_source TEXT NOT NULL DEFAULT 'default',
		created_ts BIGINT NOT NULL,
		updated_ts BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_conversation_owner_updated ON conversation (owner_id, updated_ts DESC)`,
	`CREATE TABLE IF NOT EXISTS conversation_message (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id INTEGER NOT NULL REFERENCES conversation(id) ON DELETE CASCADE,
		role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
		content TEXT NOT NULL,
		created_ts BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_conversation_message_conversation ON conversation_message (conversation_id, id)`,
	`CREATE TABLE IF NOT EXISTS book_embedding (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		summary TEXT NOT NULL,
		model TEXT NOT NULL,
		embedding BLOB NOT NULL,
		created_ts BIGINT NOT NULL,
		updated_ts BIGINT NOT NULL,
		UNIQUE (title, model)
	)`,
	`CREATE TABLE IF NOT EXISTS query_cache (
		query TEXT PRIMARY KEY,
		reply TEXT NOT NULL,
		created_ts BIGINT NOT NULL
	)`,
}

func (d *DB) Migrate(ctx context.Context, schemaVersion string) (string, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to begin migration")
	}
	defer func() { _ = tx.Rollback() }() //nolint:errcheck // no-op after commit

	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return "", errors.Wrapf(err, "failed to apply schema statement %q", firstLine(stmt))
		}
	}

	var previous string
	err = tx.QueryRowContext(ctx, `SELECT value FROM system_setting WHERE name = 'schema_version'`).Scan(&previous)
	if err != nil && err != sql.ErrNoRows {
		return "", errors.Wrap(err, "failed to read schema version")
	}

	if !version.IsVersionGreaterThan(previous, schemaVersion) {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO system_setting (name, value) VALUES ('schema_version', ?)
			ON CONFLICT (name) DO UPDATE SET value = excluded.value`, schemaVersion); err != nil {
			return "", errors.Wrap(err, "failed to record schema version")
		}
	}

	if err := tx.Commit(); err != nil {
		return "", errors.Wrap(err, "failed to commit migration")
	}
	return previous, nil
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}

func notFound(entity string, id any) error {
	return fmt.Errorf("%s %v: %w", entity, id, store.ErrNotFound)
}
