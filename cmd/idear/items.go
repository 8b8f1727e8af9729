package main

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/erazemk/idear/internal/confirm"
	"github.com/erazemk/idear/internal/inventory"
	"github.com/erazemk/idear/internal/model"
)

func printItems(w io.Writer, items []model.Item) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSIZE\tMETRIC\tLOCATION\tCOUNT\tTHRESHOLD")
	for _, it := range items {
		loc := strings.Trim(strings.Join(it.Location.Fields(), "/"), "/")
		metric := it.IsMetric.String()
		if metric == "" {
			metric = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%d\n", it.ID, it.Name, it.Size, metric, loc, it.Count, it.Threshold)
	}
	tw.Flush()
}

// itemFlags are the editable fields of a general item.
type itemFlags struct {
	name, size, metric string
	loc                model.Location
	count, threshold   int
}

func (f *itemFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.name, "name", "", "item name")
	fs.StringVar(&f.size, "size", "", "item size")
	fs.StringVar(&f.metric, "metric", "", "metric flag (true or false)")
	fs.StringVar(&f.loc.Shelf, "shelf", "", "shelf")
	fs.StringVar(&f.loc.Rack, "rack", "", "rack")
	fs.StringVar(&f.loc.Box, "box", "", "box")
	fs.StringVar(&f.loc.Row, "row", "", "row")
	fs.StringVar(&f.loc.Col, "col", "", "column")
	fs.StringVar(&f.loc.Depth, "depth", "", "depth")
	fs.IntVar(&f.count, "count", 0, "stock count")
	fs.IntVar(&f.threshold, "threshold", 0, "low stock threshold")
}

// apply overwrites the fields of it whose flags were set.
func (f *itemFlags) apply(fs *pflag.FlagSet, it *model.Item) error {
	if fs.Changed("metric") {
		m, err := model.ParseMetric(f.metric)
		if err != nil {
			return err
		}
		it.IsMetric = m
	}
	set := map[string]func(){
		"name":      func() { it.Name = f.name },
		"size":      func() { it.Size = f.size },
		"shelf":     func() { it.Shelf = f.loc.Shelf },
		"rack":      func() { it.Rack = f.loc.Rack },
		"box":       func() { it.Box = f.loc.Box },
		"row":       func() { it.Row = f.loc.Row },
		"col":       func() { it.Col = f.loc.Col },
		"depth":     func() { it.Depth = f.loc.Depth },
		"count":     func() { it.Count = f.count },
		"threshold": func() { it.Threshold = f.threshold },
	}
	for name, fn := range set {
		if fs.Changed(name) {
			fn()
		}
	}
	return nil
}

func newItemsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "Search and edit general items",
	}
	cmd.AddCommand(
		newItemListCmd(a),
		newItemSearchCmd(a, "find", "Find items by exact name, size and metric flag", inventory.ModeExact),
		newItemSearchCmd(a, "fuzzy", "Find items with similar names", inventory.ModeFuzzy),
		newItemAddCmd(a),
		newItemUpdateCmd(a),
		newItemRemoveCmd(a),
		newItemAdjustCmd(a, inventory.Increment),
		newItemAdjustCmd(a, inventory.Decrement),
	)
	return cmd
}

func newItemListCmd(a *app) *cobra.Command {
	var (
		watch    bool
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !watch {
				items, err := a.items.ListAll(cmd.Context())
				if err != nil {
					return err
				}
				printItems(a.out, items)
				return nil
			}
			return a.watchItems(cmd.Context(), interval)
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep listing until interrupted")
	cmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "reload interval with --watch")
	return cmd
}

// watchItems prints the item list whenever it changes, reloading on item
// changes and every interval, until ctx is done.
func (a *app) watchItems(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("invalid interval %s", interval)
	}
	list := inventory.NewLiveList(a.items.ListAll, a.changes, inventory.ScopeGeneral, a.logger)
	updates, cancel := list.Updates.Subscribe()
	defer cancel()

	go list.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var shown []model.Item
	first := true
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			list.Reload(ctx)
		case items := <-updates:
			if !first && slices.Equal(items, shown) {
				continue
			}
			if !first {
				fmt.Fprintln(a.out)
			}
			fmt.Fprintf(a.out, "%s\n", time.Now().Format(time.TimeOnly))
			printItems(a.out, items)
			shown, first = items, false
		}
	}
}

func newItemSearchCmd(a *app, use, short string, mode inventory.Mode) *cobra.Command {
	var size, metric string
	cmd := &cobra.Command{
		Use:   use + " <name>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := model.ParseMetric(metric)
			if err != nil {
				return err
			}
			criteria := inventory.Criteria{Name: args[0], Size: size, Metric: m}
			_, _, err = a.itemSearch.Search(cmd.Context(), func(ctx context.Context) ([]model.Item, error) {
				return a.items.Search(ctx, criteria, mode)
			})
			if err != nil {
				return err
			}
			printItems(a.out, a.itemSearch.Current())
			return nil
		},
	}
	cmd.Flags().StringVar(&size, "size", "", "item size")
	cmd.Flags().StringVar(&metric, "metric", "", "metric flag (true or false)")
	return cmd
}

func newItemAddCmd(a *app) *cobra.Command {
	var f itemFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var it model.Item
			if err := f.apply(cmd.Flags(), &it); err != nil {
				return err
			}
			if it.Name == "" {
				return fmt.Errorf("--name is required")
			}
			if err := a.dispatch(cmd.Context(), confirm.AddItem{Item: it}); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Added %s\n", it.Name)
			return nil
		},
	}
	f.register(cmd.Flags())
	return cmd
}

// itemByID finds an item in the full list.
func (a *app) itemByID(cmd *cobra.Command, arg string) (model.Item, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return model.Item{}, fmt.Errorf("invalid item id %q", arg)
	}
	items, err := a.items.ListAll(cmd.Context())
	if err != nil {
		return model.Item{}, err
	}
	for _, it := range items {
		if it.ID == id {
			return it, nil
		}
	}
	return model.Item{}, fmt.Errorf("item %d not found", id)
}

func newItemUpdateCmd(a *app) *cobra.Command {
	var f itemFlags
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change an item's fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			old, err := a.itemByID(cmd, args[0])
			if err != nil {
				return err
			}
			updated := old
			if err := f.apply(cmd.Flags(), &updated); err != nil {
				return err
			}
			if err := a.dispatch(cmd.Context(), confirm.UpdateItem{Old: old, New: updated}); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Updated %s\n", updated.Name)
			return nil
		},
	}
	f.register(cmd.Flags())
	return cmd
}

func newItemRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			it, err := a.itemByID(cmd, args[0])
			if err != nil {
				return err
			}
			if err := a.dispatch(cmd.Context(), confirm.DeleteItem{Item: it}); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Removed %s\n", it.Name)
			return nil
		},
	}
}

func parseDelta(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	return n, nil
}

// Count adjustments are routine stock movements and are not confirmed.
func newItemAdjustCmd(a *app, dir inventory.Direction) *cobra.Command {
	use, short := "inc", "Increase an item's count"
	if dir == inventory.Decrement {
		use, short = "dec", "Decrease an item's count"
	}
	return &cobra.Command{
		Use:   use + " <id> [amount]",
		Short: short,
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			delta := 1
			if len(args) == 2 {
				var err error
				if delta, err = parseDelta(args[1]); err != nil {
					return err
				}
			}
			it, err := a.itemByID(cmd, args[0])
			if err != nil {
				return err
			}
			err = a.items.AdjustCount(cmd.Context(), &it, delta, dir)
			fmt.Fprintf(a.out, "%s: %d\n", it.Name, it.Count)
			return err
		},
	}
}
