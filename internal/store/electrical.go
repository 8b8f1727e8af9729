package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/erazemk/idear/internal/model"
)

// Active parts and assemblies share electrical_active; is_assembly tells
// them apart.

const activeColumns = `id, part_id, name, description, link, location, rack, slot, count, is_assembly, subtype`

const passiveColumns = `id, subtype, value, mounting_method, tolerance, part_number, link, location, rack, slot, count,
	max_p, max_v, max_i, i_hold, polarity, seller, dielectric_material`

func scanActive(s scanner) (model.ElectricalItem, error) {
	var (
		a        model.ActiveItem
		assembly bool
		subtype  string
	)
	err := s.Scan(&a.ID, &a.PartID, &a.Name, &a.Description, &a.Link,
		&a.Location, &a.Rack, &a.Slot, &a.Count, &assembly, &subtype)
	if err != nil {
		return nil, err
	}
	if assembly {
		return &model.AssemblyItem{
			ID: a.ID, PartID: a.PartID, Name: a.Name, Description: a.Description,
			Link: a.Link, Subtype: subtype, Placement: a.Placement, Count: a.Count,
		}, nil
	}
	return &a, nil
}

func scanPassive(s scanner) (*model.PassiveItem, error) {
	var p model.PassiveItem
	err := s.Scan(&p.ID, &p.Subtype, &p.Value, &p.MountingMethod, &p.Tolerance,
		&p.PartNumber, &p.Link, &p.Location, &p.Rack, &p.Slot, &p.Count,
		&p.MaxPower, &p.MaxVoltage, &p.MaxCurrent, &p.CurrentHold, &p.Polarity,
		&p.Seller, &p.DielectricMaterial)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func queryActive(ctx context.Context, db *sql.DB, query string, args ...any) ([]model.ElectricalItem, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing active items: %w", err)
	}
	defer rows.Close()

	items := []model.ElectricalItem{}
	for rows.Next() {
		item, err := scanActive(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning active item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func queryPassive(ctx context.Context, db *sql.DB, query string, args ...any) ([]*model.PassiveItem, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing passive items: %w", err)
	}
	defer rows.Close()

	items := []*model.PassiveItem{}
	for rows.Next() {
		item, err := scanPassive(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning passive item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func activeArgs(item model.ElectricalItem) ([]any, error) {
	switch it := item.(type) {
	case *model.ActiveItem:
		return []any{it.PartID, it.Name, it.Description, it.Link,
			it.Location, it.Rack, it.Slot, it.Count, false, ""}, nil
	case *model.AssemblyItem:
		return []any{it.PartID, it.Name, it.Description, it.Link,
			it.Location, it.Rack, it.Slot, it.Count, true, it.Subtype}, nil
	}
	return nil, fmt.Errorf("not an active item: %s", item.Kind())
}

func passiveArgs(p *model.PassiveItem) []any {
	return []any{p.Subtype, p.Value, p.MountingMethod, p.Tolerance, p.PartNumber,
		p.Link, p.Location, p.Rack, p.Slot, p.Count,
		p.MaxPower, p.MaxVoltage, p.MaxCurrent, p.CurrentHold, p.Polarity,
		p.Seller, p.DielectricMaterial}
}

func insertElectrical(ctx context.Context, db execer, item model.ElectricalItem, keepID bool) (int64, error) {
	var (
		query string
		args  []any
	)
	if p, ok := item.(*model.PassiveItem); ok {
		query = `INSERT INTO electrical_passive (subtype, value, mounting_method, tolerance, part_number,
			link, location, rack, slot, count, max_p, max_v, max_i, i_hold, polarity, seller, dielectric_material)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		args = passiveArgs(p)
	} else {
		a, err := activeArgs(item)
		if err != nil {
			return 0, err
		}
		query = `INSERT INTO electrical_active (part_id, name, description, link, location, rack, slot, count, is_assembly, subtype)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		args = a
	}
	if keepID && item.ItemID() != 0 {
		query = strings.Replace(query, "(", "(id, ", 1)
		query = strings.Replace(query, "VALUES (", "VALUES (?, ", 1)
		args = append([]any{item.ItemID()}, args...)
	}

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("creating %s item: %w", item.Kind(), err)
	}
	return result.LastInsertId()
}

// CreateElectrical stores a new item of any family and returns its id.
func CreateElectrical(ctx context.Context, db *sql.DB, item model.ElectricalItem) (int64, error) {
	return insertElectrical(ctx, db, item, false)
}

// GetActive returns an active item or assembly by id, or nil.
func GetActive(ctx context.Context, db *sql.DB, id int64) (model.ElectricalItem, error) {
	item, err := scanActive(db.QueryRowContext(ctx,
		`SELECT `+activeColumns+` FROM electrical_active WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting active item: %w", err)
	}
	return item, nil
}

// FindActiveByName returns the first active item or assembly with the given
// name and part id.
func FindActiveByName(ctx context.Context, db *sql.DB, name string, partID int64) (model.ElectricalItem, error) {
	item, err := scanActive(db.QueryRowContext(ctx,
		`SELECT `+activeColumns+` FROM electrical_active
		 WHERE name = ? AND part_id = ? ORDER BY id LIMIT 1`, name, partID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding active item: %w", err)
	}
	return item, nil
}

// GetPassive returns a passive item by id, or nil.
func GetPassive(ctx context.Context, db *sql.DB, id int64) (*model.PassiveItem, error) {
	item, err := scanPassive(db.QueryRowContext(ctx,
		`SELECT `+passiveColumns+` FROM electrical_passive WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting passive item: %w", err)
	}
	return item, nil
}

// ListActive returns all active items (assembly false) or all assemblies.
func ListActive(ctx context.Context, db *sql.DB, assembly bool) ([]model.ElectricalItem, error) {
	return queryActive(ctx, db,
		`SELECT `+activeColumns+` FROM electrical_active WHERE is_assembly = ? ORDER BY name, id`, assembly)
}

// FindActive returns active items or assemblies whose name or part id match
// exactly. Empty criteria are ignored; subtype only applies to assemblies.
func FindActive(ctx context.Context, db *sql.DB, assembly bool, name string, partID int64, subtype string) ([]model.ElectricalItem, error) {
	query := `SELECT ` + activeColumns + ` FROM electrical_active WHERE is_assembly = ?`
	args := []any{assembly}
	if name != "" {
		query += ` AND name = ? COLLATE NOCASE`
		args = append(args, name)
	}
	if partID != 0 {
		query += ` AND part_id = ?`
		args = append(args, partID)
	}
	if subtype != "" {
		query += ` AND subtype = ? COLLATE NOCASE`
		args = append(args, subtype)
	}
	return queryActive(ctx, db, query+` ORDER BY name, id`, args...)
}

// ListPassive returns passive items, all of them when subtype is empty.
func ListPassive(ctx context.Context, db *sql.DB, subtype string) ([]*model.PassiveItem, error) {
	if subtype == "" {
		return queryPassive(ctx, db, `SELECT `+passiveColumns+` FROM electrical_passive ORDER BY subtype, value, id`)
	}
	return queryPassive(ctx, db,
		`SELECT `+passiveColumns+` FROM electrical_passive WHERE subtype = ? COLLATE NOCASE ORDER BY value, id`, subtype)
}

// FindPassive returns passive items of a subtype with exactly value.
// Mounting method and tolerance narrow the result when set.
func FindPassive(ctx context.Context, db *sql.DB, subtype string, value float64, mounting string, tolerance float64) ([]*model.PassiveItem, error) {
	query := `SELECT ` + passiveColumns + ` FROM electrical_passive WHERE subtype = ? COLLATE NOCASE AND value = ?`
	args := []any{subtype, value}
	if mounting != "" {
		query += ` AND mounting_method = ? COLLATE NOCASE`
		args = append(args, mounting)
	}
	if tolerance != 0 {
		query += ` AND tolerance = ?`
		args = append(args, tolerance)
	}
	return queryPassive(ctx, db, query+` ORDER BY id`, args...)
}

// PassiveValues returns the stocked passive values grouped by subtype.
func PassiveValues(ctx context.Context, db *sql.DB) (map[string][]float64, error) {
	rows, err := db.QueryContext(ctx, `SELECT subtype, value FROM electrical_passive`)
	if err != nil {
		return nil, fmt.Errorf("listing passive values: %w", err)
	}
	defer rows.Close()

	values := map[string][]float64{}
	for rows.Next() {
		var (
			subtype string
			value   float64
		)
		if err := rows.Scan(&subtype, &value); err != nil {
			return nil, fmt.Errorf("scanning passive value: %w", err)
		}
		values[subtype] = append(values[subtype], value)
	}
	return values, rows.Err()
}

// UpdateElectrical overwrites the item with the given id.
func UpdateElectrical(ctx context.Context, db *sql.DB, id int64, item model.ElectricalItem) error {
	var (
		query string
		args  []any
	)
	if p, ok := item.(*model.PassiveItem); ok {
		query = `UPDATE electrical_passive SET subtype = ?, value = ?, mounting_method = ?, tolerance = ?,
			part_number = ?, link = ?, location = ?, rack = ?, slot = ?, count = ?, max_p = ?, max_v = ?,
			max_i = ?, i_hold = ?, polarity = ?, seller = ?, dielectric_material = ? WHERE id = ?`
		args = passiveArgs(p)
	} else {
		a, err := activeArgs(item)
		if err != nil {
			return err
		}
		query = `UPDATE electrical_active SET part_id = ?, name = ?, description = ?, link = ?, location = ?,
			rack = ?, slot = ?, count = ?, is_assembly = ?, subtype = ? WHERE id = ?`
		args = a
	}
	if _, err := db.ExecContext(ctx, query, append(args, id)...); err != nil {
		return fmt.Errorf("updating %s item: %w", item.Kind(), err)
	}
	return nil
}

func electricalTable(kind model.ElectricalType) string {
	if kind == model.TypePassive {
		return "electrical_passive"
	}
	return "electrical_active"
}

// DeleteElectrical removes an item.
func DeleteElectrical(ctx context.Context, db *sql.DB, kind model.ElectricalType, id int64) error {
	_, err := db.ExecContext(ctx, `DELETE FROM `+electricalTable(kind)+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting %s item: %w", kind, err)
	}
	return nil
}

// AdjustElectricalCount adds delta to an item's count. It reports whether
// the item exists.
func AdjustElectricalCount(ctx context.Context, db *sql.DB, kind model.ElectricalType, id int64, delta int) (bool, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE `+electricalTable(kind)+` SET count = count + ? WHERE id = ?`, delta, id)
	if err != nil {
		return false, fmt.Errorf("adjusting %s count: %w", kind, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// BelowThreshold returns items whose count is below threshold. An empty
// types list means every family.
func BelowThreshold(ctx context.Context, db *sql.DB, threshold int, types []model.ElectricalType, subtypes []string) ([]model.ElectricalItem, error) {
	want := map[model.ElectricalType]bool{}
	for _, t := range types {
		want[t] = true
	}
	all := len(want) == 0

	var out []model.ElectricalItem
	for _, assembly := range []bool{false, true} {
		kind := model.TypeActive
		if assembly {
			kind = model.TypeAssembly
		}
		if !all && !want[kind] {
			continue
		}
		items, err := queryActive(ctx, db,
			`SELECT `+activeColumns+` FROM electrical_active WHERE is_assembly = ? AND count < ? ORDER BY count, name`,
			assembly, threshold)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
	}

	if all || want[model.TypePassive] {
		query := `SELECT ` + passiveColumns + ` FROM electrical_passive WHERE count < ?`
		args := []any{threshold}
		if len(subtypes) > 0 {
			query += ` AND subtype IN (?` + strings.Repeat(", ?", len(subtypes)-1) + `)`
			for _, s := range subtypes {
				args = append(args, s)
			}
		}
		items, err := queryPassive(ctx, db, query+` ORDER BY count, subtype, value`, args...)
		if err != nil {
			return nil, err
		}
		for _, p := range items {
			out = append(out, p)
		}
	}
	return out, nil
}

// ImportElectrical inserts items in one transaction. With replace set,
// both electrical tables are emptied first and item IDs are kept.
func ImportElectrical(ctx context.Context, db *sql.DB, items []model.ElectricalItem, replace bool) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if replace {
		for _, table := range []string{"electrical_active", "electrical_passive"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
				return fmt.Errorf("clearing %s: %w", table, err)
			}
		}
	}
	for _, item := range items {
		if _, err := insertElectrical(ctx, tx, item, replace); err != nil {
			return err
		}
	}
	return tx.Commit()
}
