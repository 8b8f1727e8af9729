package model

import (
	"encoding/json"
	"fmt"
)

// ElectricalType is the discriminant of the electrical item families.
type ElectricalType string

const (
	TypeActive   ElectricalType = "active"
	TypePassive  ElectricalType = "passive"
	TypeAssembly ElectricalType = "assembly"
)

// ParseElectricalType validates a type name.
func ParseElectricalType(s string) (ElectricalType, error) {
	switch t := ElectricalType(s); t {
	case TypeActive, TypePassive, TypeAssembly:
		return t, nil
	}
	return "", fmt.Errorf("unknown electrical type %q", s)
}

// ElectricalItem is implemented by *ActiveItem, *PassiveItem and *AssemblyItem.
type ElectricalItem interface {
	Kind() ElectricalType
	ItemID() int64
	// CountRef exposes the stock count for in-place adjustment.
	CountRef() *int
}

// Placement is where an electrical part is stored.
type Placement struct {
	Location string `json:"location"`
	Rack     int    `json:"rack"`
	Slot     string `json:"slot"`
}

// ActiveItem is an integrated circuit, module or other active component.
type ActiveItem struct {
	ID          int64  `json:"id"`
	PartID      int64  `json:"part_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Link        string `json:"link"`
	Placement
	Count int `json:"count"`
}

// AssemblyItem is a pre-built assembly; it shares the active item table
// on the server and adds a subtype.
type AssemblyItem struct {
	ID          int64  `json:"id"`
	PartID      int64  `json:"part_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Link        string `json:"link"`
	Subtype     string `json:"subtype"`
	Placement
	Count int `json:"count"`
}

// PassiveItem is a resistor, capacitor, inductor, fuse and the like.
// Value is always in base units (ohms, farads, ...).
type PassiveItem struct {
	ID             int64   `json:"id"`
	Subtype        string  `json:"subtype"`
	Value          float64 `json:"value"`
	MountingMethod string  `json:"mounting_method"`
	Tolerance      float64 `json:"tolerance"`
	PartNumber     string  `json:"part_number"`
	Link           string  `json:"link"`
	Placement
	Count              int     `json:"count"`
	MaxPower           float64 `json:"max_p"`
	MaxVoltage         float64 `json:"max_v"`
	MaxCurrent         float64 `json:"max_i"`
	CurrentHold        float64 `json:"i_hold"`
	Polarity           bool    `json:"polarity"`
	Seller             string  `json:"seller"`
	DielectricMaterial string  `json:"dielectric_material"`
}

func (*ActiveItem) Kind() ElectricalType   { return TypeActive }
func (*AssemblyItem) Kind() ElectricalType { return TypeAssembly }
func (*PassiveItem) Kind() ElectricalType  { return TypePassive }

func (a *ActiveItem) ItemID() int64   { return a.ID }
func (a *AssemblyItem) ItemID() int64 { return a.ID }
func (p *PassiveItem) ItemID() int64  { return p.ID }

func (a *ActiveItem) CountRef() *int   { return &a.Count }
func (a *AssemblyItem) CountRef() *int { return &a.Count }
func (p *PassiveItem) CountRef() *int  { return &p.Count }

func (a ActiveItem) MarshalJSON() ([]byte, error) {
	type alias ActiveItem
	return json.Marshal(struct {
		Type       ElectricalType `json:"type"`
		IsAssembly bool           `json:"is_assembly"`
		alias
	}{TypeActive, false, alias(a)})
}

func (a AssemblyItem) MarshalJSON() ([]byte, error) {
	type alias AssemblyItem
	return json.Marshal(struct {
		Type       ElectricalType `json:"type"`
		IsAssembly bool           `json:"is_assembly"`
		alias
	}{TypeAssembly, true, alias(a)})
}

func (p PassiveItem) MarshalJSON() ([]byte, error) {
	type alias PassiveItem
	return json.Marshal(struct {
		Type ElectricalType `json:"type"`
		alias
	}{TypePassive, alias(p)})
}

// DecodeElectrical decodes one item. The family comes from the "type" field
// ("active" with is_assembly set counts as an assembly); fallback is used
// when the payload carries no type, as search results for a single family do.
func DecodeElectrical(data []byte, fallback ElectricalType) (ElectricalItem, error) {
	var head struct {
		Type       ElectricalType `json:"type"`
		IsAssembly bool           `json:"is_assembly"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decoding electrical item: %w", err)
	}

	kind := head.Type
	if kind == "" {
		kind = fallback
	}
	if kind == TypeActive && head.IsAssembly {
		kind = TypeAssembly
	}

	var item ElectricalItem
	switch kind {
	case TypeActive:
		item = &ActiveItem{}
	case TypeAssembly:
		item = &AssemblyItem{}
	case TypePassive:
		item = &PassiveItem{}
	default:
		return nil, fmt.Errorf("decoding electrical item: unknown type %q", kind)
	}
	if err := json.Unmarshal(data, item); err != nil {
		return nil, fmt.Errorf("decoding %s item: %w", kind, err)
	}
	return item, nil
}

// DecodeElectricalList decodes a JSON array of items.
func DecodeElectricalList(data []byte, fallback ElectricalType) ([]ElectricalItem, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("decoding electrical list: %w", err)
	}
	items := make([]ElectricalItem, 0, len(raws))
	for _, raw := range raws {
		item, err := DecodeElectrical(raw, fallback)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}
