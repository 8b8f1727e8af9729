// Package inventory performs search and CRUD calls for general and
// electrical items and announces every successful mutation.
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

// TokenSource yields the session credential.
type TokenSource interface {
	Token() (string, bool)
}

// Mode selects exact or approximate matching.
type Mode int

const (
	ModeExact Mode = iota
	ModeFuzzy
)

// Criteria is a general item search. The server does all matching and
// ranking; results are returned as received.
type Criteria struct {
	Name   string
	Size   string
	Metric model.Metric
}

// Direction is the sign of a count adjustment.
type Direction int

const (
	Increment Direction = iota
	Decrement
)

func (d Direction) String() string {
	if d == Decrement {
		return "decrement"
	}
	return "increment"
}

// apply moves count by delta in direction d. There is no floor.
func (d Direction) apply(count *int, delta int) {
	if d == Decrement {
		*count -= delta
	} else {
		*count += delta
	}
}

// Gateway handles general items.
type Gateway struct {
	client  *client.Client
	tokens  TokenSource
	logger  *slog.Logger
	Changes *broadcast.Topic[Change]
}

// NewGateway creates a general item gateway. changes may be shared with the
// electrical gateway and the file operations; nil creates a new topic.
func NewGateway(c *client.Client, tokens TokenSource, changes *broadcast.Topic[Change], logger *slog.Logger) *Gateway {
	if changes == nil {
		changes = NewChanges()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{client: c, tokens: tokens, logger: logger, Changes: changes}
}

// payload is the list envelope. Older endpoints use "items" or "item"
// instead of "data".
type payload struct {
	Data  json.RawMessage `json:"data"`
	Items json.RawMessage `json:"items"`
	Item  json.RawMessage `json:"item"`
}

func (p payload) raw() json.RawMessage {
	for _, r := range []json.RawMessage{p.Data, p.Items, p.Item} {
		if len(r) > 0 && string(r) != "null" {
			return r
		}
	}
	return nil
}

func decodeItems(p payload) ([]model.Item, error) {
	raw := p.raw()
	if raw == nil {
		return []model.Item{}, nil
	}
	if raw[0] == '{' {
		var one model.Item
		if err := json.Unmarshal(raw, &one); err != nil {
			return nil, fmt.Errorf("decoding item: %w", err)
		}
		return []model.Item{one}, nil
	}
	var items []model.Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decoding items: %w", err)
	}
	return items, nil
}

func (g *Gateway) token() string {
	if g.tokens == nil {
		return ""
	}
	tok, _ := g.tokens.Token()
	return tok
}

func identityQuery(id model.Identity) url.Values {
	q := url.Values{}
	q.Set("name", id.Name)
	q.Set("is_metric", id.IsMetric.QueryValue())
	q.Set("size", id.Size)
	return q
}

func setLocation(q url.Values, loc model.Location) {
	q.Set("loc_shelf", loc.Shelf)
	q.Set("loc_rack", loc.Rack)
	q.Set("loc_box", loc.Box)
	q.Set("loc_row", loc.Row)
	q.Set("loc_col", loc.Col)
	q.Set("loc_depth", loc.Depth)
}

// Search runs an exact or fuzzy search.
func (g *Gateway) Search(ctx context.Context, c Criteria, mode Mode) ([]model.Item, error) {
	path := "/find"
	if mode == ModeFuzzy {
		path = "/fuzzyfind"
	}
	q := identityQuery(model.Identity{Name: c.Name, Size: c.Size, IsMetric: c.Metric})
	if c.Metric == model.MetricUnknown {
		q.Del("is_metric")
	}

	var resp payload
	if err := g.client.Get(ctx, path, q, &resp); err != nil {
		g.logger.Error("search failed", "name", c.Name, "error", err)
		return nil, fmt.Errorf("searching items: %w", err)
	}
	return decodeItems(resp)
}

// ListAll fetches every general item.
func (g *Gateway) ListAll(ctx context.Context) ([]model.Item, error) {
	var resp payload
	if err := g.client.Get(ctx, "/findAll", nil, &resp); err != nil {
		g.logger.Error("listing items failed", "error", err)
		return nil, fmt.Errorf("listing items: %w", err)
	}
	return decodeItems(resp)
}

// Create adds a new item.
func (g *Gateway) Create(ctx context.Context, item model.Item) error {
	q := identityQuery(item.Identity())
	setLocation(q, item.Location)
	q.Set("num", strconv.Itoa(item.Count))
	q.Set("threshold", strconv.Itoa(item.Threshold))
	q.Set("token", g.token())

	if err := g.client.Get(ctx, "/addItem", q, nil); err != nil {
		g.logger.Error("creating item failed", "name", item.Name, "error", err)
		return fmt.Errorf("creating item %s: %w", item.Name, err)
	}
	g.Changes.Publish(Change{Scope: ScopeGeneral, Op: OpCreate, Name: item.Name})
	return nil
}

// Update replaces old with updated. The server finds the row by old's id
// and identity triple; updated's id is ignored.
func (g *Gateway) Update(ctx context.Context, old, updated model.Item) error {
	q := identityQuery(old.Identity())
	q.Set("id", strconv.FormatInt(old.ID, 10))
	q.Set("new_name", updated.Name)
	q.Set("new_size", updated.Size)
	q.Set("new_is_metric", updated.IsMetric.QueryValue())
	setLocation(q, updated.Location)
	q.Set("count", strconv.Itoa(updated.Count))
	q.Set("threshold", strconv.Itoa(updated.Threshold))
	q.Set("token", g.token())

	if err := g.client.Get(ctx, "/updateitem", q, nil); err != nil {
		g.logger.Error("updating item failed", "id", old.ID, "error", err)
		return fmt.Errorf("updating item %d: %w", old.ID, err)
	}
	g.Changes.Publish(Change{Scope: ScopeGeneral, Op: OpUpdate, Name: updated.Name})
	return nil
}

// Remove deletes an item.
func (g *Gateway) Remove(ctx context.Context, item model.Item) error {
	q := identityQuery(item.Identity())
	q.Set("id", strconv.FormatInt(item.ID, 10))
	q.Set("token", g.token())

	if err := g.client.Get(ctx, "/remove", q, nil); err != nil {
		g.logger.Error("removing item failed", "id", item.ID, "error", err)
		return fmt.Errorf("removing item %d: %w", item.ID, err)
	}
	g.Changes.Publish(Change{Scope: ScopeGeneral, Op: OpRemove, Name: item.Name})
	return nil
}

// AdjustCount changes item.Count by delta before the request is sent. The
// local change stays even if the server reports an error; the error is
// logged and returned.
func (g *Gateway) AdjustCount(ctx context.Context, item *model.Item, delta int, dir Direction) error {
	dir.apply(&item.Count, delta)

	q := identityQuery(item.Identity())
	q.Set("id", strconv.FormatInt(item.ID, 10))
	q.Set("num", strconv.Itoa(delta))
	q.Set("token", g.token())

	if err := g.client.Get(ctx, "/"+dir.String(), q, nil); err != nil {
		g.logger.Error("count adjustment failed", "id", item.ID, "direction", dir.String(), "error", err)
		return fmt.Errorf("%s item %d: %w", dir, item.ID, err)
	}
	g.Changes.Publish(Change{Scope: ScopeGeneral, Op: OpAdjust, Name: item.Name})
	return nil
}
