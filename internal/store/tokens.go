package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RecordIssuedToken remembers the token most recently issued to a user.
// Older tokens stop counting as logged in.
func RecordIssuedToken(ctx context.Context, db *sql.DB, username, token string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE users SET token = ? WHERE username = ?`, token, username,
	)
	if err != nil {
		return fmt.Errorf("recording token: %w", err)
	}
	return nil
}

// IsCurrentToken reports whether token is the last one issued to username.
func IsCurrentToken(ctx context.Context, db *sql.DB, username, token string) (bool, error) {
	var current string
	err := db.QueryRowContext(ctx,
		`SELECT token FROM users WHERE username = ?`, username,
	).Scan(&current)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking token: %w", err)
	}
	return current != "" && current == token, nil
}

const (
	sessionTokenKey   = "session_token"
	sessionExpiresKey = "session_expires"
)

// TokenStore persists the client's session token in a state database.
type TokenStore struct {
	DB *sql.DB
}

// LoadToken returns the saved token, if any.
func (s *TokenStore) LoadToken(ctx context.Context) (string, time.Time, bool, error) {
	token, ok, err := GetSetting(ctx, s.DB, sessionTokenKey)
	if err != nil || !ok {
		return "", time.Time{}, false, err
	}
	raw, ok, err := GetSetting(ctx, s.DB, sessionExpiresKey)
	if err != nil || !ok {
		return "", time.Time{}, false, err
	}
	expires, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return "", time.Time{}, false, fmt.Errorf("parsing token expiry: %w", err)
	}
	return token, expires, true, nil
}

// SaveToken stores token with its expiry.
func (s *TokenStore) SaveToken(ctx context.Context, token string, expires time.Time) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for key, value := range map[string]string{
		sessionTokenKey:   token,
		sessionExpiresKey: expires.UTC().Format(time.RFC3339),
	} {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO settings (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			key, value,
		); err != nil {
			return fmt.Errorf("saving %s: %w", key, err)
		}
	}
	return tx.Commit()
}

// ClearToken removes the saved token.
func (s *TokenStore) ClearToken(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx,
		`DELETE FROM settings WHERE key IN (?, ?)`, sessionTokenKey, sessionExpiresKey,
	)
	if err != nil {
		return fmt.Errorf("clearing token: %w", err)
	}
	return nil
}
