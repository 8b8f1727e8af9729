// Package backup reads and writes the CSV files used for database backups,
// restores and bulk uploads.
package backup

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/erazemk/idear/internal/model"
)

var itemHeader = []string{
	"id", "name", "size", "is_metric",
	"loc_shelf", "loc_rack", "loc_box", "loc_row", "loc_col", "loc_depth",
	"count", "threshold",
}

var electricalHeader = []string{
	"type", "id", "part_id", "name", "description", "link", "location", "rack", "slot", "count",
	"subtype", "value", "mounting_method", "tolerance", "part_number",
	"max_p", "max_v", "max_i", "i_hold", "polarity", "seller", "dielectric_material",
}

// WriteItems writes general items with a header row.
func WriteItems(w io.Writer, items []model.Item) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(itemHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, it := range items {
		rec := append([]string{
			strconv.FormatInt(it.ID, 10), it.Name, it.Size, it.IsMetric.String(),
		}, it.Location.Fields()...)
		rec = append(rec, strconv.Itoa(it.Count), strconv.Itoa(it.Threshold))
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("writing item %d: %w", it.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// row maps header names to the fields of one record.
type row struct {
	cols map[string]int
	rec  []string
	line int
	err  error
}

func (r *row) str(name string) string {
	i, ok := r.cols[name]
	if !ok || i >= len(r.rec) {
		return ""
	}
	return strings.TrimSpace(r.rec[i])
}

func (r *row) intVal(name string) int {
	s := r.str(name)
	if s == "" || r.err != nil {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		r.err = fmt.Errorf("line %d: %s: %w", r.line, name, err)
	}
	return n
}

func (r *row) int64Val(name string) int64 {
	s := r.str(name)
	if s == "" || r.err != nil {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		r.err = fmt.Errorf("line %d: %s: %w", r.line, name, err)
	}
	return n
}

func (r *row) floatVal(name string) float64 {
	s := r.str(name)
	if s == "" || r.err != nil {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		r.err = fmt.Errorf("line %d: %s: %w", r.line, name, err)
	}
	return f
}

func (r *row) boolVal(name string) bool {
	m, err := model.ParseMetric(r.str(name))
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("line %d: %s: %w", r.line, name, err)
	}
	return m.Bool()
}

// ErrMissingColumn is returned when a required column is absent.
var ErrMissingColumn = errors.New("missing column")

func readRows(r io.Reader, required ...string) ([]*row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("%w %q", ErrMissingColumn, name)
		}
	}

	var rows []*row
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading line %d: %w", line, err)
		}
		rows = append(rows, &row{cols: cols, rec: rec, line: line})
	}
}

// ReadItems parses general items written by WriteItems. Only the name
// column is required.
func ReadItems(r io.Reader) ([]model.Item, error) {
	rows, err := readRows(r, "name")
	if err != nil {
		return nil, err
	}

	items := make([]model.Item, 0, len(rows))
	for _, rw := range rows {
		metric, err := model.ParseMetric(rw.str("is_metric"))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", rw.line, err)
		}
		it := model.Item{
			ID:       rw.int64Val("id"),
			Name:     rw.str("name"),
			Size:     rw.str("size"),
			IsMetric: metric,
			Location: model.Location{
				Shelf: rw.str("loc_shelf"), Rack: rw.str("loc_rack"), Box: rw.str("loc_box"),
				Row: rw.str("loc_row"), Col: rw.str("loc_col"), Depth: rw.str("loc_depth"),
			},
			Count:     rw.intVal("count"),
			Threshold: rw.intVal("threshold"),
		}
		if rw.err != nil {
			return nil, rw.err
		}
		items = append(items, it)
	}
	return items, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// WriteElectrical writes items of all families into one file with a type
// column.
func WriteElectrical(w io.Writer, items []model.ElectricalItem) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(electricalHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, item := range items {
		rec := make([]string, len(electricalHeader))
		set := func(col, v string) {
			for i, h := range electricalHeader {
				if h == col {
					rec[i] = v
					return
				}
			}
		}
		set("type", string(item.Kind()))
		set("id", strconv.FormatInt(item.ItemID(), 10))
		set("count", strconv.Itoa(*item.CountRef()))

		var place model.Placement
		switch it := item.(type) {
		case *model.ActiveItem:
			set("part_id", strconv.FormatInt(it.PartID, 10))
			set("name", it.Name)
			set("description", it.Description)
			set("link", it.Link)
			place = it.Placement
		case *model.AssemblyItem:
			set("part_id", strconv.FormatInt(it.PartID, 10))
			set("name", it.Name)
			set("description", it.Description)
			set("link", it.Link)
			set("subtype", it.Subtype)
			place = it.Placement
		case *model.PassiveItem:
			set("subtype", it.Subtype)
			set("value", formatFloat(it.Value))
			set("mounting_method", it.MountingMethod)
			set("tolerance", formatFloat(it.Tolerance))
			set("part_number", it.PartNumber)
			set("link", it.Link)
			set("max_p", formatFloat(it.MaxPower))
			set("max_v", formatFloat(it.MaxVoltage))
			set("max_i", formatFloat(it.MaxCurrent))
			set("i_hold", formatFloat(it.CurrentHold))
			set("polarity", strconv.FormatBool(it.Polarity))
			set("seller", it.Seller)
			set("dielectric_material", it.DielectricMaterial)
			place = it.Placement
		}
		set("location", place.Location)
		set("rack", strconv.Itoa(place.Rack))
		set("slot", place.Slot)

		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("writing %s item %d: %w", item.Kind(), item.ItemID(), err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadElectrical parses a file written by WriteElectrical.
func ReadElectrical(r io.Reader) ([]model.ElectricalItem, error) {
	rows, err := readRows(r, "type")
	if err != nil {
		return nil, err
	}

	items := make([]model.ElectricalItem, 0, len(rows))
	for _, rw := range rows {
		kind, err := model.ParseElectricalType(strings.ToLower(rw.str("type")))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", rw.line, err)
		}
		place := model.Placement{Location: rw.str("location"), Rack: rw.intVal("rack"), Slot: rw.str("slot")}

		var item model.ElectricalItem
		switch kind {
		case model.TypeActive:
			item = &model.ActiveItem{
				ID: rw.int64Val("id"), PartID: rw.int64Val("part_id"), Name: rw.str("name"),
				Description: rw.str("description"), Link: rw.str("link"),
				Placement: place, Count: rw.intVal("count"),
			}
		case model.TypeAssembly:
			item = &model.AssemblyItem{
				ID: rw.int64Val("id"), PartID: rw.int64Val("part_id"), Name: rw.str("name"),
				Description: rw.str("description"), Link: rw.str("link"), Subtype: rw.str("subtype"),
				Placement: place, Count: rw.intVal("count"),
			}
		case model.TypePassive:
			item = &model.PassiveItem{
				ID: rw.int64Val("id"), Subtype: rw.str("subtype"), Value: rw.floatVal("value"),
				MountingMethod: rw.str("mounting_method"), Tolerance: rw.floatVal("tolerance"),
				PartNumber: rw.str("part_number"), Link: rw.str("link"),
				Placement: place, Count: rw.intVal("count"),
				MaxPower: rw.floatVal("max_p"), MaxVoltage: rw.floatVal("max_v"),
				MaxCurrent: rw.floatVal("max_i"), CurrentHold: rw.floatVal("i_hold"),
				Polarity: rw.boolVal("polarity"), Seller: rw.str("seller"),
				DielectricMaterial: rw.str("dielectric_material"),
			}
		}
		if rw.err != nil {
			return nil, rw.err
		}
		items = append(items, item)
	}
	return items, nil
}
