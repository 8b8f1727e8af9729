package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/idear/internal/model"
)

// CreateUser creates a new user.
func CreateUser(ctx context.Context, db *sql.DB, username, passwordHash string, level int) (*model.User, error) {
	_, err := db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, level) VALUES (?, ?, ?)`,
		username, passwordHash, level,
	)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	return GetUserByUsername(ctx, db, username)
}

// GetUserByUsername returns a user by username, or nil if there is none.
func GetUserByUsername(ctx context.Context, db *sql.DB, username string) (*model.User, error) {
	u := &model.User{}
	err := db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, level, created_at
		 FROM users WHERE username = ?`, username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Level, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by username: %w", err)
	}
	return u, nil
}

// ListUsers returns all users.
func ListUsers(ctx context.Context, db *sql.DB) ([]model.User, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, username, password_hash, level, created_at
		 FROM users ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Level, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// CountUsers returns the number of accounts.
func CountUsers(ctx context.Context, db *sql.DB) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return n, nil
}

// UpdateUser sets a user's level and, when passwordHash is not empty, the
// password. It reports whether the user exists.
func UpdateUser(ctx context.Context, db *sql.DB, username, passwordHash string, level int) (bool, error) {
	var (
		res sql.Result
		err error
	)
	if passwordHash != "" {
		res, err = db.ExecContext(ctx,
			`UPDATE users SET level = ?, password_hash = ? WHERE username = ?`,
			level, passwordHash, username,
		)
	} else {
		res, err = db.ExecContext(ctx,
			`UPDATE users SET level = ? WHERE username = ?`,
			level, username,
		)
	}
	if err != nil {
		return false, fmt.Errorf("updating user: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// DeleteUser removes a user. It reports whether the user existed.
func DeleteUser(ctx context.Context, db *sql.DB, username string) (bool, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM users WHERE username = ?`, username)
	if err != nil {
		return false, fmt.Errorf("deleting user: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
