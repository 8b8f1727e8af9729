package db

import (
	"database/sql"
	"fmt"
)

// schema is the development backend schema.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    level         INTEGER NOT NULL DEFAULT 2 CHECK (level >= 0),
    token         TEXT NOT NULL DEFAULT '',
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS items (
    id         INTEGER PRIMARY KEY,
    name       TEXT NOT NULL,
    size       TEXT NOT NULL DEFAULT '',
    is_metric  TEXT NOT NULL DEFAULT '',
    loc_shelf  TEXT NOT NULL DEFAULT '',
    loc_rack   TEXT NOT NULL DEFAULT '',
    loc_box    TEXT NOT NULL DEFAULT '',
    loc_row    TEXT NOT NULL DEFAULT '',
    loc_col    TEXT NOT NULL DEFAULT '',
    loc_depth  TEXT NOT NULL DEFAULT '',
    count      INTEGER NOT NULL DEFAULT 0,
    threshold  INTEGER NOT NULL DEFAULT 0,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS electrical_active (
    id          INTEGER PRIMARY KEY,
    part_id     INTEGER NOT NULL DEFAULT 0,
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    link        TEXT NOT NULL DEFAULT '',
    location    TEXT NOT NULL DEFAULT '',
    rack        INTEGER NOT NULL DEFAULT 0,
    slot        TEXT NOT NULL DEFAULT '',
    count       INTEGER NOT NULL DEFAULT 0,
    is_assembly INTEGER NOT NULL DEFAULT 0,
    subtype     TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS electrical_passive (
    id                  INTEGER PRIMARY KEY,
    subtype             TEXT NOT NULL,
    value               REAL NOT NULL DEFAULT 0,
    mounting_method     TEXT NOT NULL DEFAULT '',
    tolerance           REAL NOT NULL DEFAULT 0,
    part_number         TEXT NOT NULL DEFAULT '',
    link                TEXT NOT NULL DEFAULT '',
    location            TEXT NOT NULL DEFAULT '',
    rack                INTEGER NOT NULL DEFAULT 0,
    slot                TEXT NOT NULL DEFAULT '',
    count               INTEGER NOT NULL DEFAULT 0,
    max_p               REAL NOT NULL DEFAULT 0,
    max_v               REAL NOT NULL DEFAULT 0,
    max_i               REAL NOT NULL DEFAULT 0,
    i_hold              REAL NOT NULL DEFAULT 0,
    polarity            INTEGER NOT NULL DEFAULT 0,
    seller              TEXT NOT NULL DEFAULT '',
    dielectric_material TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// stateSchema is the client's local state file.
const stateSchema = `
CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// EnsureSchema creates all backend tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// EnsureStateSchema prepares a client state database.
func EnsureStateSchema(db *sql.DB) error {
	if _, err := db.Exec(stateSchema); err != nil {
		return fmt.Errorf("creating state schema: %w", err)
	}
	return nil
}
