// Package sqlite is the durable store for relations, wars, parties, and the
// guild treasury. A single database file holds every table; the schema is
// applied as a list of single-statement migrations on Open.
package sqlite

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite handle and implements the domain store interfaces.
type DB struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies all
// migrations. Use ":memory:" for tests.
func Open(path string) (*DB, error) {
	handle, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// The modernc driver is not safe for concurrent writers on one
	// connection pool with multiple conns; a single conn serializes all
	// statements below the engine's own per-guild locking.
	handle.SetMaxOpenConns(1)

	if _, err := handle.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		handle.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := handle.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		handle.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	db := &DB{db: handle}
	if err := db.migrate(); err != nil {
		handle.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the underlying handle.
func (db *DB) Close() error { return db.db.Close() }

// migrate applies every schema statement. Each string is a single SQL
// statement (SQLite executes one at a time).
func (db *DB) migrate() error {
	for _, stmt := range Migrations() {
		if _, err := db.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Migrations returns the full schema migration statements.
func Migrations() []string {
	return []string{
		// Pairwise diplomatic relations — one row per unordered guild pair
		`CREATE TABLE IF NOT EXISTS relations (
			id             TEXT PRIMARY KEY,
			guild_a        TEXT NOT NULL,
			guild_b        TEXT NOT NULL,
			type           TEXT NOT NULL,
			status         TEXT NOT NULL,
			initiator_id   TEXT NOT NULL,
			actor_id       TEXT NOT NULL,
			requested_at   TEXT NOT NULL,
			established_at TEXT,
			UNIQUE(guild_a, guild_b)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_relations_a ON relations(guild_a)`,
		`CREATE INDEX IF NOT EXISTS idx_relations_b ON relations(guild_b)`,

		// Wars — active and historical
		`CREATE TABLE IF NOT EXISTS wars (
			id                TEXT PRIMARY KEY,
			declaring_guild   TEXT NOT NULL,
			defending_guild   TEXT NOT NULL,
			started_at        TEXT NOT NULL,
			duration_seconds  INTEGER NOT NULL,
			ended_at          TEXT,
			surrendered_by    TEXT,
			peace_proposed_by TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_wars_declaring ON wars(declaring_guild)`,
		`CREATE INDEX IF NOT EXISTS idx_wars_defending ON wars(defending_guild)`,
		`CREATE INDEX IF NOT EXISTS idx_wars_open ON wars(ended_at) WHERE ended_at IS NULL`,

		// Parties and their membership
		`CREATE TABLE IF NOT EXISTS parties (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL DEFAULT '',
			leader_id  TEXT NOT NULL,
			status     TEXT NOT NULL,
			created_at TEXT NOT NULL,
			expires_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS party_guilds (
			party_id TEXT NOT NULL REFERENCES parties(id) ON DELETE CASCADE,
			guild_id TEXT NOT NULL,
			role     TEXT NOT NULL,
			PRIMARY KEY (party_id, guild_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_party_guilds_guild ON party_guilds(guild_id)`,

		// Treasury accounts
		`CREATE TABLE IF NOT EXISTS vault_accounts (
			guild_id TEXT PRIMARY KEY,
			balance  INTEGER NOT NULL DEFAULT 0 CHECK(balance >= 0),
			version  INTEGER NOT NULL DEFAULT 0
		)`,

		// Append-only treasury log — rows are never updated or deleted
		// while the guild exists; seq gives the per-guild ordering
		`CREATE TABLE IF NOT EXISTS vault_transactions (
			seq           INTEGER PRIMARY KEY AUTOINCREMENT,
			id            TEXT NOT NULL UNIQUE,
			guild_id      TEXT NOT NULL,
			actor_id      TEXT,
			kind          TEXT NOT NULL,
			amount        INTEGER NOT NULL CHECK(amount > 0),
			balance_after INTEGER NOT NULL,
			description   TEXT NOT NULL DEFAULT '',
			timestamp     TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_vault_tx_guild ON vault_transactions(guild_id, seq)`,
	}
}

// ─── Time Encoding Helpers ──────────────────────────────────────────────────

const timeFormat = time.RFC3339Nano

func encodeTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func encodeNullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return encodeTime(t)
}

// decodeTime parses a stored timestamp. A column that fails to parse is a
// corrupted row; it is logged rather than swallowed, because the zero time
// it yields reads as "not ended" / "no expiry" downstream.
func decodeTime(s string) time.Time {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		log.Printf("[sqlite] corrupt timestamp %q: %v", s, err)
	}
	return t
}

func decodeNullableTime(s sql.NullString) time.Time {
	if !s.Valid {
		return time.Time{}
	}
	return decodeTime(s.String)
}
