// Package userdb is the SQLite-backed credential store for stream
// publishing. It implements session.UserRepository for the peer/session
// layer and the fuller read/write surface the permit-stream CLI subcommand
// needs to manage credentials.
//
// Grounded on the teacher's internal/plex.RegisterTuner, the one place in
// the corpus that opens a SQLite database directly: same driver
// (modernc.org/sqlite, pure Go, no cgo), same sql.Open/exec shape. Writes go
// through a single INSERT ... ON CONFLICT DO UPDATE upsert statement.
package userdb

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	name TEXT PRIMARY KEY,
	key  TEXT NOT NULL
);`

// User is one stream-key credential.
type User struct {
	Name string
	Key  string
}

// DB is a SQLite-backed credential store. The zero value is not usable;
// construct with Open.
type DB struct {
	sql *sql.DB
}

// Open opens (creating if absent) the SQLite database at path and ensures
// the users table exists.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("userdb: open %s: %w", path, err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("userdb: create schema: %w", err)
	}
	return &DB{sql: sqlDB}, nil
}

// Close releases the underlying database handle.
func (db *DB) Close() error {
	return db.sql.Close()
}

// UserHasKey reports whether name's current stream key equals key. It
// satisfies session.UserRepository. A lookup error or missing user both
// report false rather than propagating the error, since the caller (a
// publish attempt) has no recourse beyond a rejected publish either way.
func (db *DB) UserHasKey(name, key string) bool {
	var stored string
	row := db.sql.QueryRow(`SELECT key FROM users WHERE name = ?`, name)
	if err := row.Scan(&stored); err != nil {
		return false
	}
	return stored == key
}

// UserByName looks up a credential by app name. Returns an error if no such
// user exists.
func (db *DB) UserByName(name string) (*User, error) {
	var key string
	row := db.sql.QueryRow(`SELECT key FROM users WHERE name = ?`, name)
	if err := row.Scan(&key); err != nil {
		return nil, fmt.Errorf("userdb: no user %q: %w", name, err)
	}
	return &User{Name: name, Key: key}, nil
}

// AddUserWithKey creates or updates name's stream key. Used by the
// permit-stream CLI subcommand.
func (db *DB) AddUserWithKey(name, key string) error {
	_, err := db.sql.Exec(
		`INSERT INTO users (name, key) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET key = excluded.key`,
		name, key,
	)
	if err != nil {
		return fmt.Errorf("userdb: add user %q: %w", name, err)
	}
	return nil
}
