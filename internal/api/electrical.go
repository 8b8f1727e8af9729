package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/erazemk/idear/internal/access"
	"github.com/erazemk/idear/internal/model"
	"github.com/erazemk/idear/internal/store"
)

// ElectricalHandler handles electrical item endpoints.
type ElectricalHandler struct {
	authenticator
}

// defaultSearchPercent is the fuzzy passive window when none is given.
const defaultSearchPercent = 0.5

func queryInt64(q url.Values, key string) int64 {
	n, _ := strconv.ParseInt(q.Get(key), 10, 64)
	return n
}

func queryFloat(q url.Values, key string) (float64, error) {
	s := q.Get(key)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func (h *ElectricalHandler) findActive(w http.ResponseWriter, r *http.Request, assembly bool) {
	q := r.URL.Query()
	subtype := ""
	if assembly {
		subtype = q.Get("subtype")
	}
	items, err := store.FindActive(r.Context(), h.DB, assembly, q.Get("name"), queryInt64(q, "part_id"), subtype)
	if err != nil {
		slog.Error("failed to find electrical items", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to find items")
		return
	}
	jsonData(w, items)
}

// FindActive handles GET /electricalFindActive.
func (h *ElectricalHandler) FindActive(w http.ResponseWriter, r *http.Request) {
	h.findActive(w, r, false)
}

// FindAssembly handles GET /electricalFindAssembly.
func (h *ElectricalHandler) FindAssembly(w http.ResponseWriter, r *http.Request) {
	h.findActive(w, r, true)
}

func (h *ElectricalHandler) fuzzyActive(w http.ResponseWriter, r *http.Request, assembly bool) {
	q := r.URL.Query()
	all, err := store.ListActive(r.Context(), h.DB, assembly)
	if err != nil {
		slog.Error("failed to list electrical items", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to find items")
		return
	}

	var candidates []model.ElectricalItem
	var names []string
	partID := queryInt64(q, "part_id")
	for _, item := range all {
		var name, subtype string
		var pid int64
		switch it := item.(type) {
		case *model.ActiveItem:
			name, pid = it.Name, it.PartID
		case *model.AssemblyItem:
			name, pid, subtype = it.Name, it.PartID, it.Subtype
		}
		if s := q.Get("subtype"); assembly && s != "" && s != subtype {
			continue
		}
		// An exact part number match always wins.
		if partID != 0 && pid == partID {
			jsonData(w, []model.ElectricalItem{item})
			return
		}
		candidates = append(candidates, item)
		names = append(names, name)
	}

	items := []model.ElectricalItem{}
	for _, i := range fuzzyTop(q.Get("name"), names) {
		items = append(items, candidates[i])
	}
	jsonData(w, items)
}

// FuzzyActive handles GET /electricalFuzzyActive.
func (h *ElectricalHandler) FuzzyActive(w http.ResponseWriter, r *http.Request) {
	h.fuzzyActive(w, r, false)
}

// FuzzyAssembly handles GET /electricalFuzzyAssembly.
func (h *ElectricalHandler) FuzzyAssembly(w http.ResponseWriter, r *http.Request) {
	h.fuzzyActive(w, r, true)
}

type passiveParams struct {
	subtype   string
	value     float64
	mounting  string
	tolerance float64
}

func parsePassiveParams(q url.Values) (passiveParams, error) {
	p := passiveParams{subtype: q.Get("item_type"), mounting: q.Get("mounting_method")}
	var err error
	if p.value, err = queryFloat(q, "value"); err != nil {
		return p, err
	}
	if p.tolerance, err = queryFloat(q, "tolerance"); err != nil {
		return p, err
	}
	return p, nil
}

// FindPassive handles GET /electricalFindPassive.
func (h *ElectricalHandler) FindPassive(w http.ResponseWriter, r *http.Request) {
	p, err := parsePassiveParams(r.URL.Query())
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid value or tolerance")
		return
	}
	items, err := store.FindPassive(r.Context(), h.DB, p.subtype, p.value, p.mounting, p.tolerance)
	if err != nil {
		slog.Error("failed to find passive items", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to find items")
		return
	}
	jsonData(w, items)
}

type passivePage struct {
	Items  []*model.PassiveItem `json:"items"`
	Index  int                  `json:"index"`
	Length int                  `json:"length"`
}

// FuzzyPassive handles GET /electricalFuzzyPassive: every part of the
// subtype whose value lies within search_percent of the requested value,
// ordered by value, with the index of the closest one.
func (h *ElectricalHandler) FuzzyPassive(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p, err := parsePassiveParams(q)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid value or tolerance")
		return
	}
	percent, err := queryFloat(q, "search_percent")
	if err != nil || percent < 0 {
		jsonError(w, http.StatusBadRequest, "invalid search_percent")
		return
	}
	if percent == 0 {
		percent = defaultSearchPercent
	}

	all, err := store.ListPassive(r.Context(), h.DB, p.subtype)
	if err != nil {
		slog.Error("failed to list passive items", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to find items")
		return
	}

	lo, hi := p.value*(1-percent), p.value*(1+percent)
	page := passivePage{Items: []*model.PassiveItem{}}
	best := math.Inf(1)
	for _, it := range all {
		if it.Value < lo || it.Value > hi {
			continue
		}
		if p.mounting != "" && it.MountingMethod != p.mounting {
			continue
		}
		if p.tolerance != 0 && it.Tolerance != p.tolerance {
			continue
		}
		if d := math.Abs(it.Value - p.value); d < best {
			best = d
			page.Index = len(page.Items)
		}
		page.Items = append(page.Items, it)
	}
	page.Length = len(page.Items)
	jsonData(w, page)
}

type thresholdRequest struct {
	Threshold int      `json:"threshold"`
	Tables    []string `json:"table"`
	Types     []string `json:"type"`
}

// BelowThreshold handles POST /electricalFindBelowThreshold.
func (h *ElectricalHandler) BelowThreshold(w http.ResponseWriter, r *http.Request) {
	var req thresholdRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	var kinds []model.ElectricalType
	for _, t := range req.Tables {
		kind, err := model.ParseElectricalType(t)
		if err != nil {
			jsonError(w, http.StatusBadRequest, err.Error())
			return
		}
		kinds = append(kinds, kind)
	}

	items, err := store.BelowThreshold(r.Context(), h.DB, req.Threshold, kinds, req.Types)
	if err != nil {
		slog.Error("failed to search below threshold", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to find items")
		return
	}
	if items == nil {
		items = []model.ElectricalItem{}
	}
	jsonResponse(w, http.StatusOK, map[string]any{"items": items})
}

// mutation is the common part of electrical write requests.
type mutation struct {
	Token     string          `json:"token"`
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	PartID    int64           `json:"part_id"`
	NewName   *string         `json:"new_name"`
	NewPartID *int64          `json:"new_part_id"`
	Item      json.RawMessage `json:"item"`
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(io.LimitReader(r.Body, 1<<20))
}

// Create handles POST /electricalAddItem.
func (h *ElectricalHandler) Create(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	var m mutation
	if err := json.Unmarshal(raw, &m); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	claims, ok := h.requireLevel(w, tokenFrom(r, m.Token), access.LevelNone)
	if !ok {
		return
	}

	item, err := model.DecodeElectrical(raw, model.TypeActive)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := store.CreateElectrical(r.Context(), h.DB, item)
	if err != nil {
		slog.Error("failed to create electrical item", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create item")
		return
	}

	slog.Info("electrical item created", "type", item.Kind(), "id", id, "by", claims.Username)
	jsonResponse(w, http.StatusOK, map[string]any{"message": "item added", "id": id})
}

// locate finds the stored item a request refers to. Active items and
// assemblies may be named by name and part id instead of id.
func (h *ElectricalHandler) locate(r *http.Request, kind model.ElectricalType, id int64, name string, partID int64) (model.ElectricalItem, error) {
	if kind == model.TypePassive {
		p, err := store.GetPassive(r.Context(), h.DB, id)
		if p == nil || err != nil {
			return nil, err
		}
		return p, nil
	}
	if id > 0 {
		return store.GetActive(r.Context(), h.DB, id)
	}
	return store.FindActiveByName(r.Context(), h.DB, name, partID)
}

// Update handles POST /electricalUpdateItem.
func (h *ElectricalHandler) Update(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	var m mutation
	if err := json.Unmarshal(raw, &m); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	claims, ok := h.requireLevel(w, tokenFrom(r, m.Token), access.LevelNone)
	if !ok {
		return
	}

	item, err := model.DecodeElectrical(raw, model.TypeActive)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	existing, err := h.locate(r, item.Kind(), m.ID, m.Name, m.PartID)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	// The body carries the old name and part id; the new ones come separately.
	switch it := item.(type) {
	case *model.ActiveItem:
		if m.NewName != nil {
			it.Name = *m.NewName
		}
		if m.NewPartID != nil {
			it.PartID = *m.NewPartID
		}
	case *model.AssemblyItem:
		if m.NewName != nil {
			it.Name = *m.NewName
		}
		if m.NewPartID != nil {
			it.PartID = *m.NewPartID
		}
	}

	if err := store.UpdateElectrical(r.Context(), h.DB, existing.ItemID(), item); err != nil {
		slog.Error("failed to update electrical item", "id", existing.ItemID(), "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update item")
		return
	}

	slog.Info("electrical item updated", "type", item.Kind(), "id", existing.ItemID(), "by", claims.Username)
	jsonMessage(w, "item updated")
}

func (h *ElectricalHandler) remove(w http.ResponseWriter, r *http.Request, fallback model.ElectricalType) {
	var m mutation
	if err := decodeJSON(r, &m); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	claims, ok := h.requireLevel(w, tokenFrom(r, m.Token), access.LevelEditor)
	if !ok {
		return
	}
	if len(m.Item) == 0 {
		jsonError(w, http.StatusBadRequest, "item is required")
		return
	}

	item, err := model.DecodeElectrical(m.Item, fallback)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	if (item.Kind() == model.TypePassive) != (fallback == model.TypePassive) {
		jsonError(w, http.StatusBadRequest, "wrong endpoint for "+string(item.Kind())+" item")
		return
	}

	var name string
	var partID int64
	switch it := item.(type) {
	case *model.ActiveItem:
		name, partID = it.Name, it.PartID
	case *model.AssemblyItem:
		name, partID = it.Name, it.PartID
	}
	existing, err := h.locate(r, item.Kind(), item.ItemID(), name, partID)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	if err := store.DeleteElectrical(r.Context(), h.DB, item.Kind(), existing.ItemID()); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to delete item")
		return
	}

	slog.Info("electrical item deleted", "type", item.Kind(), "id", existing.ItemID(), "by", claims.Username)
	jsonMessage(w, "item removed")
}

// RemovePassive handles POST /electricalRemovePassive.
func (h *ElectricalHandler) RemovePassive(w http.ResponseWriter, r *http.Request) {
	h.remove(w, r, model.TypePassive)
}

// RemoveActive handles POST /electricalRemoveActive, for active items and
// assemblies.
func (h *ElectricalHandler) RemoveActive(w http.ResponseWriter, r *http.Request) {
	h.remove(w, r, model.TypeActive)
}

type adjustRequest struct {
	Type   model.ElectricalType `json:"type"`
	ItemID int64                `json:"item_id"`
	PartID int64                `json:"part_id"`
	Name   string               `json:"name"`
	Num    int                  `json:"num"`
	Token  string               `json:"token"`
}

// Increment handles POST /electricalIncrement.
func (h *ElectricalHandler) Increment(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, 1)
}

// Decrement handles POST /electricalDecrement.
func (h *ElectricalHandler) Decrement(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, -1)
}

func (h *ElectricalHandler) adjust(w http.ResponseWriter, r *http.Request, sign int) {
	var req adjustRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	claims, ok := h.requireLevel(w, tokenFrom(r, req.Token), access.LevelNone)
	if !ok {
		return
	}
	if _, err := model.ParseElectricalType(string(req.Type)); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Num < 0 {
		jsonError(w, http.StatusBadRequest, "invalid num")
		return
	}

	existing, err := h.locate(r, req.Type, req.ItemID, req.Name, req.PartID)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	if _, err := store.AdjustElectricalCount(r.Context(), h.DB, req.Type, existing.ItemID(), sign*req.Num); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to adjust count")
		return
	}

	slog.Info("electrical count adjusted", "type", req.Type, "id", existing.ItemID(), "delta", sign*req.Num, "by", claims.Username)
	jsonMessage(w, "count updated")
}

// GetTooltip handles GET /getElectricalTooltip.
func (h *ElectricalHandler) GetTooltip(w http.ResponseWriter, r *http.Request) {
	text, err := store.GetTooltip(r.Context(), h.DB)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get tooltip")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"tooltip": text})
}

// SetTooltip handles POST /setElectricalTooltip.
func (h *ElectricalHandler) SetTooltip(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tooltip string `json:"tooltip"`
		Token   string `json:"token"`
	}
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	claims, ok := h.requireLevel(w, tokenFrom(r, req.Token), access.LevelEditor)
	if !ok {
		return
	}

	if err := store.SetTooltip(r.Context(), h.DB, req.Tooltip); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to set tooltip")
		return
	}
	slog.Info("tooltip updated", "by", claims.Username)
	jsonMessage(w, "tooltip updated")
}

// GetMultipliers handles GET /getMultipliers.
func (h *ElectricalHandler) GetMultipliers(w http.ResponseWriter, r *http.Request) {
	table, err := store.GetMultipliers(r.Context(), h.DB)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get multipliers")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"multiplier": table})
}

// UpdateMultipliers handles GET /updateMultipliers: the unit table is
// rebuilt from the values currently in stock.
func (h *ElectricalHandler) UpdateMultipliers(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requireLevel(w, tokenFrom(r, ""), access.LevelEditor)
	if !ok {
		return
	}

	values, err := store.PassiveValues(r.Context(), h.DB)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to read passive values")
		return
	}
	subtypes := make([]string, 0, len(values))
	for s := range values {
		subtypes = append(subtypes, s)
	}
	sort.Strings(subtypes)

	table := model.UnitTable{}
	for _, s := range subtypes {
		if scale, ok := model.BuildUnitScale(s, values[s]); ok {
			table = append(table, scale)
		}
	}
	if err := store.SetMultipliers(r.Context(), h.DB, table); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to store multipliers")
		return
	}

	slog.Info("multipliers rebuilt", "subtypes", len(table), "by", claims.Username)
	jsonMessage(w, "multipliers updated")
}
