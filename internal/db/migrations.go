package db

import (
	"database/sql"
	"fmt"
)

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	// Migration 1: lookups by identity triple and by part number.
	`CREATE INDEX IF NOT EXISTS idx_items_identity ON items(name, size, is_metric)`,
	`CREATE INDEX IF NOT EXISTS idx_electrical_active_part ON electrical_active(part_id)`,
	// Migration 2: passive lookups by subtype and value.
	`CREATE INDEX IF NOT EXISTS idx_electrical_passive_value ON electrical_passive(subtype, value)`,
}

// Migrate creates the backend schema and runs the migrations.
func Migrate(db *sql.DB) error {
	if err := EnsureSchema(db); err != nil {
		return err
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}

	return nil
}
