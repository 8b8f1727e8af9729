package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/erazemk/idear/internal/broadcast"
	"github.com/erazemk/idear/internal/client"
	"github.com/erazemk/idear/internal/model"
)

// ElectricalGateway handles active, passive and assembly items.
type ElectricalGateway struct {
	client  *client.Client
	tokens  TokenSource
	logger  *slog.Logger
	Changes *broadcast.Topic[Change]
}

// NewElectricalGateway creates an electrical item gateway.
func NewElectricalGateway(c *client.Client, tokens TokenSource, changes *broadcast.Topic[Change], logger *slog.Logger) *ElectricalGateway {
	if changes == nil {
		changes = NewChanges()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ElectricalGateway{client: c, tokens: tokens, logger: logger, Changes: changes}
}

func (g *ElectricalGateway) token() string {
	if g.tokens == nil {
		return ""
	}
	tok, _ := g.tokens.Token()
	return tok
}

// PassiveQuery searches passive parts. Value is in the unit chosen by the
// user; Multiplier converts it to base units (zero means 1).
type PassiveQuery struct {
	Subtype        string
	Value          float64
	Multiplier     float64
	MountingMethod string
	Tolerance      string
	// SearchPercent is the fuzzy search window as a fraction of Value.
	SearchPercent float64
}

func (q PassiveQuery) values() url.Values {
	m := q.Multiplier
	if m == 0 {
		m = 1
	}
	v := url.Values{}
	v.Set("item_type", q.Subtype)
	v.Set("value", formatFloat(model.ToBaseUnits(q.Value, m)))
	if q.MountingMethod != "" {
		v.Set("mounting_method", q.MountingMethod)
	}
	if q.Tolerance != "" {
		v.Set("tolerance", q.Tolerance)
	}
	return v
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// PassivePage is a fuzzy passive result: the candidates around the
// requested value and the position of the closest one.
type PassivePage struct {
	Items  []*model.PassiveItem `json:"items"`
	Index  int                  `json:"index"`
	Length int                  `json:"length"`
}

// ThresholdQuery finds items whose count is below Threshold.
type ThresholdQuery struct {
	Threshold int      `json:"threshold"`
	Tables    []string `json:"table"`
	Types     []string `json:"type"`
}

func decodeTyped[T any](p payload) ([]T, error) {
	raw := p.raw()
	if raw == nil {
		return []T{}, nil
	}
	var out []T
	if raw[0] == '{' {
		var one T
		if err := json.Unmarshal(raw, &one); err != nil {
			return nil, fmt.Errorf("decoding item: %w", err)
		}
		return []T{one}, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decoding items: %w", err)
	}
	return out, nil
}

func (g *ElectricalGateway) find(ctx context.Context, path string, q url.Values) (payload, error) {
	var resp payload
	if err := g.client.Get(ctx, path, q, &resp); err != nil {
		g.logger.Error("electrical search failed", "path", path, "error", err)
		return payload{}, fmt.Errorf("searching electrical items: %w", err)
	}
	return resp, nil
}

func nameQuery(name, partID string) url.Values {
	q := url.Values{}
	q.Set("name", name)
	q.Set("part_id", partID)
	return q
}

// FindActive finds active parts by exact name or part number.
func (g *ElectricalGateway) FindActive(ctx context.Context, name, partID string) ([]*model.ActiveItem, error) {
	resp, err := g.find(ctx, "/electricalFindActive", nameQuery(name, partID))
	if err != nil {
		return nil, err
	}
	return decodeTyped[*model.ActiveItem](resp)
}

// FuzzyActive finds active parts with similar names.
func (g *ElectricalGateway) FuzzyActive(ctx context.Context, name, partID string) ([]*model.ActiveItem, error) {
	resp, err := g.find(ctx, "/electricalFuzzyActive", nameQuery(name, partID))
	if err != nil {
		return nil, err
	}
	return decodeTyped[*model.ActiveItem](resp)
}

// FindAssembly finds assemblies by subtype, name or part number.
func (g *ElectricalGateway) FindAssembly(ctx context.Context, subtype, name, partID string) ([]*model.AssemblyItem, error) {
	q := nameQuery(name, partID)
	q.Set("subtype", subtype)
	resp, err := g.find(ctx, "/electricalFindAssembly", q)
	if err != nil {
		return nil, err
	}
	return decodeTyped[*model.AssemblyItem](resp)
}

// FuzzyAssembly finds assemblies with similar names.
func (g *ElectricalGateway) FuzzyAssembly(ctx context.Context, subtype, name, partID string) ([]*model.AssemblyItem, error) {
	q := nameQuery(name, partID)
	q.Set("subtype", subtype)
	resp, err := g.find(ctx, "/electricalFuzzyAssembly", q)
	if err != nil {
		return nil, err
	}
	return decodeTyped[*model.AssemblyItem](resp)
}

// FindPassive finds passive parts with exactly the given value.
func (g *ElectricalGateway) FindPassive(ctx context.Context, pq PassiveQuery) ([]*model.PassiveItem, error) {
	resp, err := g.find(ctx, "/electricalFindPassive", pq.values())
	if err != nil {
		return nil, err
	}
	return decodeTyped[*model.PassiveItem](resp)
}

// FuzzyPassive finds passive parts with values near the requested one.
func (g *ElectricalGateway) FuzzyPassive(ctx context.Context, pq PassiveQuery) (PassivePage, error) {
	q := pq.values()
	if pq.SearchPercent > 0 {
		q.Set("search_percent", formatFloat(pq.SearchPercent))
	}
	resp, err := g.find(ctx, "/electricalFuzzyPassive", q)
	if err != nil {
		return PassivePage{}, err
	}

	raw := resp.raw()
	if raw == nil {
		return PassivePage{}, nil
	}
	var page PassivePage
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &page.Items); err != nil {
			return PassivePage{}, fmt.Errorf("decoding passive page: %w", err)
		}
		page.Length = len(page.Items)
		return page, nil
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return PassivePage{}, fmt.Errorf("decoding passive page: %w", err)
	}
	if page.Length == 0 {
		page.Length = len(page.Items)
	}
	return page, nil
}

// BelowThreshold lists items of the given tables and types whose count is
// below the threshold.
func (g *ElectricalGateway) BelowThreshold(ctx context.Context, tq ThresholdQuery) ([]model.ElectricalItem, error) {
	var resp payload
	if err := g.client.PostJSON(ctx, "/electricalFindBelowThreshold", tq, &resp); err != nil {
		g.logger.Error("threshold search failed", "error", err)
		return nil, fmt.Errorf("searching below threshold: %w", err)
	}
	return model.DecodeElectricalList(resp.raw(), model.TypeActive)
}

// withFields encodes item and adds extra top-level fields.
func withFields(item any, extra map[string]any) (map[string]any, error) {
	data, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("encoding item: %w", err)
	}
	body := map[string]any{}
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("encoding item: %w", err)
	}
	for k, v := range extra {
		body[k] = v
	}
	return body, nil
}

func itemName(item model.ElectricalItem) string {
	switch it := item.(type) {
	case *model.ActiveItem:
		return it.Name
	case *model.AssemblyItem:
		return it.Name
	case *model.PassiveItem:
		return it.Subtype + " " + formatFloat(it.Value)
	}
	return ""
}

// Add creates an item. Passive values must already be in base units; see
// PassiveInput.
func (g *ElectricalGateway) Add(ctx context.Context, item model.ElectricalItem) error {
	body, err := withFields(item, map[string]any{"token": g.token()})
	if err != nil {
		return err
	}
	if err := g.client.PostJSON(ctx, "/electricalAddItem", body, nil); err != nil {
		g.logger.Error("adding electrical item failed", "type", item.Kind(), "error", err)
		return fmt.Errorf("adding %s item: %w", item.Kind(), err)
	}
	g.Changes.Publish(Change{Scope: ScopeElectrical, Op: OpCreate, Name: itemName(item)})
	return nil
}

// Update replaces old with updated. Active items and assemblies are found
// by old's name and part id; updated carries the new values.
func (g *ElectricalGateway) Update(ctx context.Context, old, updated model.ElectricalItem) error {
	if old.Kind() != updated.Kind() {
		return fmt.Errorf("updating electrical item: type changed from %s to %s", old.Kind(), updated.Kind())
	}

	extra := map[string]any{"token": g.token(), "id": old.ItemID()}
	switch o := old.(type) {
	case *model.ActiveItem:
		n := updated.(*model.ActiveItem)
		extra["name"], extra["part_id"] = o.Name, o.PartID
		extra["new_name"], extra["new_part_id"] = n.Name, n.PartID
	case *model.AssemblyItem:
		n := updated.(*model.AssemblyItem)
		extra["name"], extra["part_id"] = o.Name, o.PartID
		extra["new_name"], extra["new_part_id"] = n.Name, n.PartID
	}

	body, err := withFields(updated, extra)
	if err != nil {
		return err
	}
	if err := g.client.PostJSON(ctx, "/electricalUpdateItem", body, nil); err != nil {
		g.logger.Error("updating electrical item failed", "id", old.ItemID(), "error", err)
		return fmt.Errorf("updating %s item %d: %w", old.Kind(), old.ItemID(), err)
	}
	g.Changes.Publish(Change{Scope: ScopeElectrical, Op: OpUpdate, Name: itemName(updated)})
	return nil
}

// removePath picks the endpoint for a type: passive parts live in their own
// table, everything else in the active one.
func removePath(kind model.ElectricalType) string {
	if kind == model.TypePassive {
		return "/electricalRemovePassive"
	}
	return "/electricalRemoveActive"
}

// Remove deletes an item.
func (g *ElectricalGateway) Remove(ctx context.Context, item model.ElectricalItem) error {
	body := map[string]any{"item": item, "token": g.token()}
	if err := g.client.PostJSON(ctx, removePath(item.Kind()), body, nil); err != nil {
		g.logger.Error("removing electrical item failed", "id", item.ItemID(), "error", err)
		return fmt.Errorf("removing %s item %d: %w", item.Kind(), item.ItemID(), err)
	}
	g.Changes.Publish(Change{Scope: ScopeElectrical, Op: OpRemove, Name: itemName(item)})
	return nil
}

// AdjustCount changes the item's count before the request is sent and
// keeps the change whatever the server answers.
func (g *ElectricalGateway) AdjustCount(ctx context.Context, item model.ElectricalItem, delta int, dir Direction) error {
	dir.apply(item.CountRef(), delta)

	body := map[string]any{
		"type":    item.Kind(),
		"item_id": item.ItemID(),
		"num":     delta,
		"token":   g.token(),
	}
	switch it := item.(type) {
	case *model.ActiveItem:
		body["part_id"], body["name"] = it.PartID, it.Name
	case *model.AssemblyItem:
		body["part_id"], body["name"] = it.PartID, it.Name
	}

	path := "/electricalIncrement"
	if dir == Decrement {
		path = "/electricalDecrement"
	}
	if err := g.client.PostJSON(ctx, path, body, nil); err != nil {
		g.logger.Error("electrical count adjustment failed", "id", item.ItemID(), "direction", dir.String(), "error", err)
		return fmt.Errorf("%s %s item %d: %w", dir, item.Kind(), item.ItemID(), err)
	}
	g.Changes.Publish(Change{Scope: ScopeElectrical, Op: OpAdjust, Name: itemName(item)})
	return nil
}

// Tooltip returns the help text shown next to the electrical search.
func (g *ElectricalGateway) Tooltip(ctx context.Context) (string, error) {
	var resp struct {
		Tooltip string `json:"tooltip"`
	}
	if err := g.client.Get(ctx, "/getElectricalTooltip", nil, &resp); err != nil {
		return "", fmt.Errorf("getting tooltip: %w", err)
	}
	return resp.Tooltip, nil
}

// SetTooltip replaces the help text.
func (g *ElectricalGateway) SetTooltip(ctx context.Context, text string) error {
	body := map[string]string{"tooltip": text, "token": g.token()}
	if err := g.client.PostJSON(ctx, "/setElectricalTooltip", body, nil); err != nil {
		g.logger.Error("setting tooltip failed", "error", err)
		return fmt.Errorf("setting tooltip: %w", err)
	}
	return nil
}

// Multipliers fetches the unit table for passive subtypes.
func (g *ElectricalGateway) Multipliers(ctx context.Context) (model.UnitTable, error) {
	var raw json.RawMessage
	if err := g.client.Get(ctx, "/getMultipliers", nil, &raw); err != nil {
		return nil, fmt.Errorf("getting multipliers: %w", err)
	}

	var table model.UnitTable
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &table); err != nil {
			return nil, fmt.Errorf("decoding multipliers: %w", err)
		}
		return table, nil
	}
	var resp struct {
		Multiplier model.UnitTable `json:"multiplier"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decoding multipliers: %w", err)
	}
	return resp.Multiplier, nil
}

// RefreshMultipliers asks the server to rebuild the unit table from stock.
func (g *ElectricalGateway) RefreshMultipliers(ctx context.Context) (string, error) {
	var resp client.Envelope
	if err := g.client.Get(ctx, "/updateMultipliers", url.Values{"token": {g.token()}}, &resp); err != nil {
		g.logger.Error("refreshing multipliers failed", "error", err)
		return "", fmt.Errorf("refreshing multipliers: %w", err)
	}
	return resp.Message, nil
}
