package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/idear/internal/model"
)

const itemColumns = `id, name, size, is_metric, loc_shelf, loc_rack, loc_box, loc_row, loc_col, loc_depth, count, threshold`

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner) (model.Item, error) {
	var item model.Item
	var metric string
	err := s.Scan(&item.ID, &item.Name, &item.Size, &metric,
		&item.Shelf, &item.Rack, &item.Box, &item.Row, &item.Col, &item.Depth,
		&item.Count, &item.Threshold)
	if err != nil {
		return item, err
	}
	item.IsMetric, _ = model.ParseMetric(metric)
	return item, nil
}

func queryItems(ctx context.Context, db *sql.DB, query string, args ...any) ([]model.Item, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	items := []model.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertItem(ctx context.Context, db execer, item model.Item) (int64, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO items (name, size, is_metric, loc_shelf, loc_rack, loc_box, loc_row, loc_col, loc_depth, count, threshold)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.Name, item.Size, item.IsMetric.String(),
		item.Shelf, item.Rack, item.Box, item.Row, item.Col, item.Depth,
		item.Count, item.Threshold,
	)
	if err != nil {
		return 0, fmt.Errorf("creating item: %w", err)
	}
	return result.LastInsertId()
}

// CreateItem creates a new item.
func CreateItem(ctx context.Context, db *sql.DB, item model.Item) (*model.Item, error) {
	id, err := insertItem(ctx, db, item)
	if err != nil {
		return nil, err
	}
	return GetItem(ctx, db, id)
}

// GetItem returns an item by ID, or nil if there is none.
func GetItem(ctx context.Context, db *sql.DB, id int64) (*model.Item, error) {
	item, err := scanItem(db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return &item, nil
}

// FindItemByIdentity returns the first item with the given triple.
func FindItemByIdentity(ctx context.Context, db *sql.DB, id model.Identity) (*model.Item, error) {
	item, err := scanItem(db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items
		 WHERE name = ? AND size = ? AND is_metric = ? ORDER BY id LIMIT 1`,
		id.Name, id.Size, id.IsMetric.String(),
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding item: %w", err)
	}
	return &item, nil
}

// ListItems returns all items ordered by name.
func ListItems(ctx context.Context, db *sql.DB) ([]model.Item, error) {
	return queryItems(ctx, db, `SELECT `+itemColumns+` FROM items ORDER BY name, id`)
}

// FindItems returns items matching name exactly (case-insensitive). Size and
// the metric flag narrow the result when set.
func FindItems(ctx context.Context, db *sql.DB, name, size string, metric model.Metric) ([]model.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE name = ? COLLATE NOCASE`
	args := []any{name}
	if size != "" {
		query += ` AND size = ? COLLATE NOCASE`
		args = append(args, size)
	}
	if metric != model.MetricUnknown {
		query += ` AND is_metric = ?`
		args = append(args, metric.String())
	}
	return queryItems(ctx, db, query+` ORDER BY name, id`, args...)
}

// UpdateItem overwrites every field of the item with the given id.
func UpdateItem(ctx context.Context, db *sql.DB, id int64, item model.Item) error {
	_, err := db.ExecContext(ctx,
		`UPDATE items SET name = ?, size = ?, is_metric = ?,
		   loc_shelf = ?, loc_rack = ?, loc_box = ?, loc_row = ?, loc_col = ?, loc_depth = ?,
		   count = ?, threshold = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		item.Name, item.Size, item.IsMetric.String(),
		item.Shelf, item.Rack, item.Box, item.Row, item.Col, item.Depth,
		item.Count, item.Threshold, id,
	)
	if err != nil {
		return fmt.Errorf("updating item: %w", err)
	}
	return nil
}

// DeleteItem removes an item.
func DeleteItem(ctx context.Context, db *sql.DB, id int64) error {
	_, err := db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	return nil
}

// AdjustItemCount adds delta (which may be negative) to an item's count.
// Counts are allowed to go below zero.
func AdjustItemCount(ctx context.Context, db *sql.DB, id int64, delta int) error {
	_, err := db.ExecContext(ctx,
		`UPDATE items SET count = count + ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		delta, id,
	)
	if err != nil {
		return fmt.Errorf("adjusting item count: %w", err)
	}
	return nil
}

// ImportItems inserts items in one transaction. With replace set, the
// table is emptied first. Item IDs are kept when set.
func ImportItems(ctx context.Context, db *sql.DB, items []model.Item, replace bool) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if replace {
		if _, err := tx.ExecContext(ctx, `DELETE FROM items`); err != nil {
			return fmt.Errorf("clearing items: %w", err)
		}
	}
	for _, item := range items {
		if item.ID != 0 && replace {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO items (id, name, size, is_metric, loc_shelf, loc_rack, loc_box, loc_row, loc_col, loc_depth, count, threshold)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				item.ID, item.Name, item.Size, item.IsMetric.String(),
				item.Shelf, item.Rack, item.Box, item.Row, item.Col, item.Depth,
				item.Count, item.Threshold,
			)
			if err != nil {
				return fmt.Errorf("importing item %d: %w", item.ID, err)
			}
			continue
		}
		if _, err := insertItem(ctx, tx, item); err != nil {
			return err
		}
	}
	return tx.Commit()
}
