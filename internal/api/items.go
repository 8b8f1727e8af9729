package api

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/erazemk/idear/internal/access"
	"github.com/erazemk/idear/internal/model"
	"github.com/erazemk/idear/internal/store"
)

// ItemsHandler handles general item endpoints.
type ItemsHandler struct {
	authenticator
}

func queryMetric(q url.Values, key string) model.Metric {
	m, _ := model.ParseMetric(q.Get(key))
	return m
}

func queryInt(q url.Values, key string) (int, error) {
	s := q.Get(key)
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func queryLocation(q url.Values) model.Location {
	return model.Location{
		Shelf: q.Get("loc_shelf"), Rack: q.Get("loc_rack"), Box: q.Get("loc_box"),
		Row: q.Get("loc_row"), Col: q.Get("loc_col"), Depth: q.Get("loc_depth"),
	}
}

// List handles GET /findAll.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := store.ListItems(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to list items", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	jsonData(w, items)
}

// Find handles GET /find.
func (h *ItemsHandler) Find(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := store.FindItems(r.Context(), h.DB, q.Get("name"), q.Get("size"), queryMetric(q, "is_metric"))
	if err != nil {
		slog.Error("failed to find items", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to find items")
		return
	}
	jsonData(w, items)
}

// FuzzyFind handles GET /fuzzyfind: the closest names first, narrowed by the
// metric flag when one is given.
func (h *ItemsHandler) FuzzyFind(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	all, err := store.ListItems(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to list items", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to find items")
		return
	}

	metric := queryMetric(q, "is_metric")
	var candidates []model.Item
	for _, it := range all {
		if metric == model.MetricUnknown || it.IsMetric == metric {
			candidates = append(candidates, it)
		}
	}

	names := make([]string, len(candidates))
	for i, it := range candidates {
		names[i] = it.Name
		if size := q.Get("size"); size != "" {
			names[i] += " " + it.Size
		}
	}
	pattern := q.Get("name")
	if size := q.Get("size"); size != "" {
		pattern += " " + size
	}

	items := []model.Item{}
	for _, i := range fuzzyTop(pattern, names) {
		items = append(items, candidates[i])
	}
	jsonData(w, items)
}

// Create handles GET /addItem.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	claims, ok := h.requireLevel(w, tokenFrom(r, ""), access.LevelNone)
	if !ok {
		return
	}

	count, err := queryInt(q, "num")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid num")
		return
	}
	threshold, err := queryInt(q, "threshold")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid threshold")
		return
	}
	item := model.Item{
		Name:      q.Get("name"),
		Size:      q.Get("size"),
		IsMetric:  queryMetric(q, "is_metric"),
		Location:  queryLocation(q),
		Count:     count,
		Threshold: threshold,
	}
	if item.Name == "" {
		jsonError(w, http.StatusBadRequest, "name is required")
		return
	}

	created, err := store.CreateItem(r.Context(), h.DB, item)
	if err != nil {
		slog.Error("failed to create item", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create item")
		return
	}

	slog.Info("item created", "item", created.Name, "id", created.ID, "by", claims.Username)
	jsonResponse(w, http.StatusOK, map[string]any{"message": "item added", "data": created})
}

// lookup finds the item a request refers to: by id when given, otherwise
// by the name, size and is_metric triple.
func (h *ItemsHandler) lookup(r *http.Request) (*model.Item, error) {
	q := r.URL.Query()
	if id, err := strconv.ParseInt(q.Get("id"), 10, 64); err == nil && id > 0 {
		return store.GetItem(r.Context(), h.DB, id)
	}
	return store.FindItemByIdentity(r.Context(), h.DB, model.Identity{
		Name:     q.Get("name"),
		Size:     q.Get("size"),
		IsMetric: queryMetric(q, "is_metric"),
	})
}

// Update handles GET /updateitem.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	claims, ok := h.requireLevel(w, tokenFrom(r, ""), access.LevelNone)
	if !ok {
		return
	}

	item, err := h.lookup(r)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	count, err := queryInt(q, "count")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid count")
		return
	}
	threshold, err := queryInt(q, "threshold")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid threshold")
		return
	}
	updated := model.Item{
		Name:      q.Get("new_name"),
		Size:      q.Get("new_size"),
		IsMetric:  queryMetric(q, "new_is_metric"),
		Location:  queryLocation(q),
		Count:     count,
		Threshold: threshold,
	}
	if updated.Name == "" {
		jsonError(w, http.StatusBadRequest, "new_name is required")
		return
	}

	if err := store.UpdateItem(r.Context(), h.DB, item.ID, updated); err != nil {
		slog.Error("failed to update item", "id", item.ID, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update item")
		return
	}

	slog.Info("item updated", "id", item.ID, "item", updated.Name, "by", claims.Username)
	jsonMessage(w, "item updated")
}

// Delete handles GET /remove.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requireLevel(w, tokenFrom(r, ""), access.LevelEditor)
	if !ok {
		return
	}

	item, err := h.lookup(r)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	if err := store.DeleteItem(r.Context(), h.DB, item.ID); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to delete item")
		return
	}

	slog.Info("item deleted", "id", item.ID, "item", item.Name, "by", claims.Username)
	jsonMessage(w, "item removed")
}

// Increment handles GET /increment.
func (h *ItemsHandler) Increment(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, 1)
}

// Decrement handles GET /decrement.
func (h *ItemsHandler) Decrement(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, -1)
}

func (h *ItemsHandler) adjust(w http.ResponseWriter, r *http.Request, sign int) {
	claims, ok := h.requireLevel(w, tokenFrom(r, ""), access.LevelNone)
	if !ok {
		return
	}

	num, err := queryInt(r.URL.Query(), "num")
	if err != nil || num < 0 {
		jsonError(w, http.StatusBadRequest, "invalid num")
		return
	}

	item, err := h.lookup(r)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	if err := store.AdjustItemCount(r.Context(), h.DB, item.ID, sign*num); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to adjust count")
		return
	}

	slog.Info("item count adjusted", "id", item.ID, "delta", sign*num, "by", claims.Username)
	jsonMessage(w, "count updated")
}
