package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Item is a general stockroom part (fasteners, stock, hardware).
type Item struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Size     string `json:"size"`
	IsMetric Metric `json:"is_metric"`
	Location
	Count     int `json:"count"`
	Threshold int `json:"threshold"`
}

// Location is the flattened shelf/rack/box/row/column/depth position of an item.
type Location struct {
	Shelf string `json:"loc_shelf"`
	Rack  string `json:"loc_rack"`
	Box   string `json:"loc_box"`
	Row   string `json:"loc_row"`
	Col   string `json:"loc_col"`
	Depth string `json:"loc_depth"`
}

// Fields returns the location parts in wire order.
func (l Location) Fields() []string {
	return []string{l.Shelf, l.Rack, l.Box, l.Row, l.Col, l.Depth}
}

// IsZero reports whether no location part is set.
func (l Location) IsZero() bool {
	return l == Location{}
}

// Identity is the (name, size, is_metric) triple the server uses to find an item.
type Identity struct {
	Name     string
	Size     string
	IsMetric Metric
}

// Identity returns the item's identifying triple.
func (i Item) Identity() Identity {
	return Identity{Name: i.Name, Size: i.Size, IsMetric: i.IsMetric}
}

// UnmarshalJSON accepts both the flattened loc_* fields and the older single
// "location" field (a list, or a JSON-encoded list, of up to six parts).
func (i *Item) UnmarshalJSON(data []byte) error {
	type alias Item
	var raw struct {
		alias
		Legacy json.RawMessage `json:"location"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*i = Item(raw.alias)

	if i.Location.IsZero() && len(raw.Legacy) > 0 {
		loc, err := parseLegacyLocation(raw.Legacy)
		if err != nil {
			return fmt.Errorf("parsing legacy location: %w", err)
		}
		i.Location = loc
	}
	return nil
}

func parseLegacyLocation(raw json.RawMessage) (Location, error) {
	var parts []any
	if err := json.Unmarshal(raw, &parts); err != nil {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return Location{}, err
		}
		if strings.TrimSpace(encoded) == "" || encoded == "null" {
			return Location{}, nil
		}
		if err := json.Unmarshal([]byte(encoded), &parts); err != nil {
			return Location{}, err
		}
	}

	var fields [6]string
	for n, p := range parts {
		if n >= len(fields) {
			break
		}
		if p != nil {
			fields[n] = fmt.Sprint(p)
		}
	}
	return Location{
		Shelf: fields[0], Rack: fields[1], Box: fields[2],
		Row: fields[3], Col: fields[4], Depth: fields[5],
	}, nil
}
