package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/erazemk/idear/internal/model"
)

// GetJWTSecret retrieves the JWT secret from the database.
// If no secret exists, it generates one, stores it, and returns it.
// Uses INSERT OR IGNORE + re-SELECT to avoid TOCTOU race on concurrent startup.
func GetJWTSecret(ctx context.Context, db *sql.DB) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating jwt secret: %w", err)
	}
	candidate := hex.EncodeToString(buf)

	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings (key, value) VALUES ('jwt_secret', ?)`,
		candidate,
	)
	if err != nil {
		return "", fmt.Errorf("storing jwt_secret: %w", err)
	}

	secret, _, err := GetSetting(ctx, db, "jwt_secret")
	return secret, err
}

// GetSetting returns the value stored under key.
func GetSetting(ctx context.Context, db *sql.DB, key string) (string, bool, error) {
	var value string
	err := db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("querying %s: %w", key, err)
	}
	return value, true, nil
}

// SetSetting stores value under key.
func SetSetting(ctx context.Context, db *sql.DB, key, value string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("storing %s: %w", key, err)
	}
	return nil
}

const (
	tooltipKey     = "electrical_tooltip"
	multipliersKey = "multipliers"
)

// GetTooltip returns the electrical search help text.
func GetTooltip(ctx context.Context, db *sql.DB) (string, error) {
	text, _, err := GetSetting(ctx, db, tooltipKey)
	return text, err
}

// SetTooltip replaces the electrical search help text.
func SetTooltip(ctx context.Context, db *sql.DB, text string) error {
	return SetSetting(ctx, db, tooltipKey, text)
}

// GetMultipliers returns the stored unit table.
func GetMultipliers(ctx context.Context, db *sql.DB) (model.UnitTable, error) {
	raw, ok, err := GetSetting(ctx, db, multipliersKey)
	if err != nil || !ok {
		return model.UnitTable{}, err
	}
	var table model.UnitTable
	if err := json.Unmarshal([]byte(raw), &table); err != nil {
		return nil, fmt.Errorf("decoding multipliers: %w", err)
	}
	return table, nil
}

// SetMultipliers stores the unit table.
func SetMultipliers(ctx context.Context, db *sql.DB, table model.UnitTable) error {
	data, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("encoding multipliers: %w", err)
	}
	return SetSetting(ctx, db, multipliersKey, string(data))
}
