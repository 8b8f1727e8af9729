package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/erazemk/idear/internal/confirm"
	"github.com/erazemk/idear/internal/inventory"
	"github.com/erazemk/idear/internal/model"
)

// unitSymbols maps passive subtypes to the symbol of their base unit.
var unitSymbols = map[string]string{
	"resistor":  "Ω",
	"capacitor": "F",
	"inductor":  "H",
	"fuse":      "A",
	"crystal":   "Hz",
}

func formatPassiveValue(p *model.PassiveItem) string {
	return humanize.SIWithDigits(p.Value, 3, unitSymbols[strings.ToLower(p.Subtype)])
}

func printElectrical(w io.Writer, items []model.ElectricalItem) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tNAME/VALUE\tPART\tLOCATION\tCOUNT")
	for _, item := range items {
		var label, part string
		var place model.Placement
		switch it := item.(type) {
		case *model.ActiveItem:
			label, part, place = it.Name, strconv.FormatInt(it.PartID, 10), it.Placement
		case *model.AssemblyItem:
			label, part, place = it.Name+" ("+it.Subtype+")", strconv.FormatInt(it.PartID, 10), it.Placement
		case *model.PassiveItem:
			label, part, place = it.Subtype+" "+formatPassiveValue(it), it.PartNumber, it.Placement
			if it.MountingMethod != "" {
				label += " " + it.MountingMethod
			}
		}
		loc := place.Location
		if place.Rack != 0 || place.Slot != "" {
			loc = fmt.Sprintf("%s/%d/%s", place.Location, place.Rack, place.Slot)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\n", item.ItemID(), item.Kind(), label, part, loc, *item.CountRef())
	}
	tw.Flush()
}

func asElectrical[T model.ElectricalItem](items []T) []model.ElectricalItem {
	out := make([]model.ElectricalItem, len(items))
	for i, it := range items {
		out[i] = it
	}
	return out
}

// passiveValue resolves a user-entered value. With a unit label the factor
// comes from the server's unit table; otherwise an SI suffix such as
// "4.7k" is accepted.
func (a *app) passiveValue(ctx context.Context, subtype, value, unit string) (float64, float64, error) {
	if unit == "" {
		v, _, err := humanize.ParseSI(value)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid value %q: %w", value, err)
		}
		return v, 1, nil
	}

	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid value %q", value)
	}
	table, err := a.electrical.Multipliers(ctx)
	if err != nil {
		return 0, 0, err
	}
	scale, ok := table.Scale(subtype)
	if !ok {
		return 0, 0, fmt.Errorf("subtype %s: %w", subtype, model.ErrUnknownUnit)
	}
	factor, err := scale.Factor(unit)
	if err != nil {
		return 0, 0, err
	}
	return v, factor, nil
}

// passiveFlags select passive parts.
type passiveFlags struct {
	subtype, value, unit, mounting, tolerance string
	percent                                   float64
}

func (f *passiveFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.subtype, "subtype", "", "passive subtype (resistor, capacitor, ...)")
	cmd.Flags().StringVar(&f.value, "value", "", "value, with an SI suffix unless --unit is given")
	cmd.Flags().StringVar(&f.unit, "unit", "", "unit prefix label from the unit table (k, M, u, ...)")
	cmd.Flags().StringVar(&f.mounting, "mounting", "", "mounting method")
	cmd.Flags().StringVar(&f.tolerance, "tolerance", "", "tolerance")
}

func (f *passiveFlags) query(ctx context.Context, a *app) (inventory.PassiveQuery, error) {
	if f.subtype == "" || f.value == "" {
		return inventory.PassiveQuery{}, errors.New("--subtype and --value are required")
	}
	v, m, err := a.passiveValue(ctx, f.subtype, f.value, f.unit)
	if err != nil {
		return inventory.PassiveQuery{}, err
	}
	return inventory.PassiveQuery{
		Subtype: f.subtype, Value: v, Multiplier: m,
		MountingMethod: f.mounting, Tolerance: f.tolerance, SearchPercent: f.percent,
	}, nil
}

// activeFlags select active parts and assemblies.
type activeFlags struct {
	name, partID, subtype string
}

// searchElectrical runs an exact or fuzzy search for one family.
func (a *app) searchElectrical(ctx context.Context, kind model.ElectricalType, fuzzy bool, af activeFlags, pf passiveFlags) ([]model.ElectricalItem, error) {
	g := a.electrical
	switch kind {
	case model.TypeActive:
		find := g.FindActive
		if fuzzy {
			find = g.FuzzyActive
		}
		items, err := find(ctx, af.name, af.partID)
		return asElectrical(items), err
	case model.TypeAssembly:
		find := g.FindAssembly
		if fuzzy {
			find = g.FuzzyAssembly
		}
		items, err := find(ctx, af.subtype, af.name, af.partID)
		return asElectrical(items), err
	}

	q, err := pf.query(ctx, a)
	if err != nil {
		return nil, err
	}
	if !fuzzy {
		items, err := g.FindPassive(ctx, q)
		return asElectrical(items), err
	}
	page, err := g.FuzzyPassive(ctx, q)
	if err != nil {
		return nil, err
	}
	// Closest match first, then the rest in value order.
	items := asElectrical(page.Items)
	if page.Index > 0 && page.Index < len(items) {
		closest := items[page.Index]
		items = append([]model.ElectricalItem{closest}, append(items[:page.Index:page.Index], items[page.Index+1:]...)...)
	}
	return items, nil
}

func newElectricalCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "electrical",
		Short: "Search and edit electrical parts",
	}
	cmd.AddCommand(
		newElectricalSearchCmd(a, false),
		newElectricalSearchCmd(a, true),
		newThresholdCmd(a),
		newElectricalAddCmd(a),
		newElectricalRemoveCmd(a),
		newElectricalAdjustCmd(a, inventory.Increment),
		newElectricalAdjustCmd(a, inventory.Decrement),
		newTooltipCmd(a),
		newUnitsCmd(a),
	)
	return cmd
}

func parseKind(s string) (model.ElectricalType, error) {
	return model.ParseElectricalType(strings.ToLower(s))
}

func newElectricalSearchCmd(a *app, fuzzy bool) *cobra.Command {
	var af activeFlags
	var pf passiveFlags
	use, short := "find", "Find parts by exact name, part number or value"
	if fuzzy {
		use, short = "fuzzy", "Find parts with similar names or nearby values"
	}
	cmd := &cobra.Command{
		Use:   use + " <active|assembly|passive>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}
			items, err := a.searchElectrical(cmd.Context(), kind, fuzzy, af, pf)
			if err != nil {
				return err
			}
			printElectrical(a.out, items)
			return nil
		},
	}
	cmd.Flags().StringVar(&af.name, "name", "", "part name")
	cmd.Flags().StringVar(&af.partID, "part-id", "", "part number")
	cmd.Flags().StringVar(&pf.subtype, "subtype", "", "passive or assembly subtype")
	cmd.Flags().StringVar(&pf.value, "value", "", "passive value, with an SI suffix unless --unit is given")
	cmd.Flags().StringVar(&pf.unit, "unit", "", "unit prefix label from the unit table")
	cmd.Flags().StringVar(&pf.mounting, "mounting", "", "mounting method")
	cmd.Flags().StringVar(&pf.tolerance, "tolerance", "", "tolerance")
	if fuzzy {
		cmd.Flags().Float64Var(&pf.percent, "percent", 0, "passive search window as a fraction of the value")
	}
	cmd.PreRun = func(*cobra.Command, []string) { af.subtype = pf.subtype }
	return cmd
}

func newThresholdCmd(a *app) *cobra.Command {
	var q inventory.ThresholdQuery
	cmd := &cobra.Command{
		Use:   "threshold <count>",
		Short: "List parts with fewer than count in stock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid count %q", args[0])
			}
			q.Threshold = n
			items, err := a.electrical.BelowThreshold(cmd.Context(), q)
			if err != nil {
				return err
			}
			printElectrical(a.out, items)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&q.Tables, "table", nil, "families to include (active, assembly, passive)")
	cmd.Flags().StringSliceVar(&q.Types, "type", nil, "passive subtypes to include")
	return cmd
}

func newElectricalAddCmd(a *app) *cobra.Command {
	var (
		af          activeFlags
		pf          passiveFlags
		description string
		link        string
		place       model.Placement
		count       int
	)
	cmd := &cobra.Command{
		Use:   "add <active|assembly|passive>",
		Short: "Add a part",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}
			partID, _ := strconv.ParseInt(af.partID, 10, 64)

			var item model.ElectricalItem
			switch kind {
			case model.TypeActive:
				item = &model.ActiveItem{Name: af.name, PartID: partID, Description: description, Link: link, Placement: place, Count: count}
			case model.TypeAssembly:
				item = &model.AssemblyItem{Name: af.name, PartID: partID, Subtype: pf.subtype, Description: description, Link: link, Placement: place, Count: count}
			case model.TypePassive:
				if pf.subtype == "" || pf.value == "" {
					return errors.New("--subtype and --value are required")
				}
				v, m, err := a.passiveValue(cmd.Context(), pf.subtype, pf.value, pf.unit)
				if err != nil {
					return err
				}
				tolerance, _ := strconv.ParseFloat(pf.tolerance, 64)
				in := inventory.PassiveInput{
					Item: model.PassiveItem{
						Subtype: pf.subtype, Value: v, MountingMethod: pf.mounting, Tolerance: tolerance,
						PartNumber: af.partID, Link: link, Placement: place, Count: count,
					},
					Multiplier: m,
				}
				item = in.Base()
			}
			if kind != model.TypePassive && af.name == "" {
				return errors.New("--name is required")
			}

			if err := a.dispatch(cmd.Context(), confirm.AddElectrical{Item: item}); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Added %s item\n", kind)
			return nil
		},
	}
	cmd.Flags().StringVar(&af.name, "name", "", "part name")
	cmd.Flags().StringVar(&af.partID, "part-id", "", "part number")
	pf.register(cmd)
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&link, "link", "", "datasheet or shop link")
	cmd.Flags().StringVar(&place.Location, "location", "", "storage location")
	cmd.Flags().IntVar(&place.Rack, "rack", 0, "rack")
	cmd.Flags().StringVar(&place.Slot, "slot", "", "slot")
	cmd.Flags().IntVar(&count, "count", 0, "stock count")
	return cmd
}

// pickElectrical searches for the part a command refers to. The search must
// match exactly one part unless --id picks one of the matches.
func (a *app) pickElectrical(ctx context.Context, kind model.ElectricalType, id int64, af activeFlags, pf passiveFlags) (model.ElectricalItem, error) {
	items, err := a.searchElectrical(ctx, kind, false, af, pf)
	if err != nil {
		return nil, err
	}
	if id != 0 {
		for _, it := range items {
			if it.ItemID() == id {
				return it, nil
			}
		}
		return nil, fmt.Errorf("no %s item with id %d matches", kind, id)
	}
	switch len(items) {
	case 0:
		return nil, fmt.Errorf("no matching %s item", kind)
	case 1:
		return items[0], nil
	}
	return nil, fmt.Errorf("%d %s items match; pick one with --id", len(items), kind)
}

func registerPickFlags(cmd *cobra.Command, id *int64, af *activeFlags, pf *passiveFlags) {
	cmd.Flags().Int64Var(id, "id", 0, "item id when several match")
	cmd.Flags().StringVar(&af.name, "name", "", "part name")
	cmd.Flags().StringVar(&af.partID, "part-id", "", "part number")
	pf.register(cmd)
	cmd.PreRun = func(*cobra.Command, []string) { af.subtype = pf.subtype }
}

func newElectricalRemoveCmd(a *app) *cobra.Command {
	var (
		id int64
		af activeFlags
		pf passiveFlags
	)
	cmd := &cobra.Command{
		Use:   "rm <active|assembly|passive>",
		Short: "Remove a part",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}
			item, err := a.pickElectrical(cmd.Context(), kind, id, af, pf)
			if err != nil {
				return err
			}
			if err := a.dispatch(cmd.Context(), confirm.DeleteElectrical{Item: item}); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Removed %s item %d\n", kind, item.ItemID())
			return nil
		},
	}
	registerPickFlags(cmd, &id, &af, &pf)
	return cmd
}

func newElectricalAdjustCmd(a *app, dir inventory.Direction) *cobra.Command {
	var (
		id int64
		af activeFlags
		pf passiveFlags
	)
	use, short := "inc", "Increase a part's count"
	if dir == inventory.Decrement {
		use, short = "dec", "Decrease a part's count"
	}
	cmd := &cobra.Command{
		Use:   use + " <active|assembly|passive> [amount]",
		Short: short,
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}
			delta := 1
			if len(args) == 2 {
				if delta, err = parseDelta(args[1]); err != nil {
					return err
				}
			}
			item, err := a.pickElectrical(cmd.Context(), kind, id, af, pf)
			if err != nil {
				return err
			}
			err = a.electrical.AdjustCount(cmd.Context(), item, delta, dir)
			fmt.Fprintf(a.out, "%s item %d: %d\n", kind, item.ItemID(), *item.CountRef())
			return err
		},
	}
	registerPickFlags(cmd, &id, &af, &pf)
	return cmd
}

func newTooltipCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tooltip [text]",
		Short: "Show or replace the electrical search tooltip",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				text, err := a.electrical.Tooltip(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, text)
				return nil
			}
			return a.dispatch(cmd.Context(), confirm.SetTooltip{Text: args[0]})
		},
	}
}

func newUnitsCmd(a *app) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "units",
		Short: "Show the unit prefixes offered per passive subtype",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if refresh {
				if err := a.dispatch(cmd.Context(), confirm.RefreshMultipliers{}); err != nil {
					return err
				}
			}
			table, err := a.electrical.Multipliers(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SUBTYPE\tUNITS")
			for _, scale := range table {
				symbol := unitSymbols[strings.ToLower(scale.Type)]
				units := make([]string, len(scale.Labels))
				for i, l := range scale.Labels {
					units[i] = l + symbol
					if units[i] == "" {
						units[i] = "1"
					}
				}
				fmt.Fprintf(tw, "%s\t%s\n", scale.Type, strings.Join(units, " "))
			}
			tw.Flush()
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "rebuild the table from current stock first")
	return cmd
}
