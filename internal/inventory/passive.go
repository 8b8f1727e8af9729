package inventory

import "github.com/erazemk/idear/internal/model"

// PassiveInput is a passive part as entered by a user: Item.Value is in the
// unit selected with Multiplier (for example 4.7 with 1000 for 4.7 kΩ).
type PassiveInput struct {
	Item       model.PassiveItem
	Multiplier float64
}

// Base returns a copy of the item with its value in base units, ready to
// send.
func (in PassiveInput) Base() *model.PassiveItem {
	m := in.Multiplier
	if m == 0 {
		m = 1
	}
	item := in.Item
	item.Value = model.ToBaseUnits(item.Value, m)
	return &item
}

// DisplayValue converts a received base-unit value for display in the unit
// given by multiplier.
func DisplayValue(item *model.PassiveItem, multiplier float64) float64 {
	if multiplier == 0 {
		multiplier = 1
	}
	return model.FromBaseUnits(item.Value, multiplier)
}
