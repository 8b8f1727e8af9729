package backup

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/erazemk/idear/internal/model"
)

func TestItemsRoundTrip(t *testing.T) {
	items := []model.Item{
		{ID: 1, Name: "Bolt, hex", Size: "M4", IsMetric: model.MetricTrue,
			Location: model.Location{Shelf: "A", Depth: "front"}, Count: -2, Threshold: 5},
		{ID: 2, Name: "Nut", Size: "1/4", IsMetric: model.MetricFalse, Count: 30},
	}

	var buf bytes.Buffer
	if err := WriteItems(&buf, items); err != nil {
		t.Fatalf("WriteItems: %v", err)
	}
	got, err := ReadItems(&buf)
	if err != nil {
		t.Fatalf("ReadItems: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 items, got %d", len(got))
	}
	if got[0] != items[0] || got[1] != items[1] {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, items)
	}
}

func TestReadItemsMinimalColumns(t *testing.T) {
	got, err := ReadItems(strings.NewReader("Name,Count\nWasher,12\n"))
	if err != nil {
		t.Fatalf("ReadItems: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Washer" || got[0].Count != 12 {
		t.Errorf("got %+v", got)
	}

	_, err = ReadItems(strings.NewReader("size\nM4\n"))
	if !errors.Is(err, ErrMissingColumn) {
		t.Errorf("expected ErrMissingColumn, got %v", err)
	}

	_, err = ReadItems(strings.NewReader("name,count\nBolt,many\n"))
	if err == nil {
		t.Error("expected error for non-numeric count")
	}
}

func TestElectricalRoundTrip(t *testing.T) {
	items := []model.ElectricalItem{
		&model.ActiveItem{ID: 1, PartID: 555, Name: "NE555", Placement: model.Placement{Location: "Cab", Rack: 2, Slot: "B4"}, Count: 3},
		&model.AssemblyItem{ID: 2, Name: "Motor driver", Subtype: "board", Count: 1},
		&model.PassiveItem{ID: 3, Subtype: "Resistor", Value: 4700, Tolerance: 0.05, Count: 100, Polarity: true, MaxPower: 0.25},
	}

	var buf bytes.Buffer
	if err := WriteElectrical(&buf, items); err != nil {
		t.Fatalf("WriteElectrical: %v", err)
	}
	got, err := ReadElectrical(&buf)
	if err != nil {
		t.Fatalf("ReadElectrical: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 items, got %d", len(got))
	}

	if a := got[0].(*model.ActiveItem); *a != *items[0].(*model.ActiveItem) {
		t.Errorf("active mismatch: %+v", a)
	}
	if a := got[1].(*model.AssemblyItem); *a != *items[1].(*model.AssemblyItem) {
		t.Errorf("assembly mismatch: %+v", a)
	}
	if p := got[2].(*model.PassiveItem); *p != *items[2].(*model.PassiveItem) {
		t.Errorf("passive mismatch: %+v", p)
	}
}

func TestReadElectricalUnknownType(t *testing.T) {
	_, err := ReadElectrical(strings.NewReader("type,name\nwidget,X\n"))
	if err == nil {
		t.Error("expected error for unknown type")
	}
}
