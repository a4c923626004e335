package viewstate

import (
	"github.com/fmpsc/spa/app/analytics"
	"github.com/fmpsc/spa/app/common"
)

// FilterOption is one checkbox. Key is what the browser posts back when the
// box is ticked; Column and Value are the original strings.
type FilterOption struct {
	Key    string
	Column string
	Value  string
}

type FilterGroup struct {
	Column  string
	DOMID   string
	Options []FilterOption
}

// IsFilterable reports whether col gets a filter group.
func IsFilterable(col analytics.ColumnDescriptor, ceiling int) bool {
	return !col.IsNumeric && col.UniqueValuesCount <= ceiling
}

// BuildFilterGroups makes one group per categorical column with at most
// ceiling distinct values, one option per sample value. Keys are unique DOM
// ids, so two columns that sanitize to the same string stay distinct.
func BuildFilterGroups(cols []analytics.ColumnDescriptor, ceiling int) []FilterGroup {
	ids := common.NewIDAllocator()
	var groups []FilterGroup
	for _, col := range cols {
		if !IsFilterable(col, ceiling) {
			continue
		}
		g := FilterGroup{
			Column: col.Name,
			DOMID:  ids.Allocate("filter", col.Name),
		}
		for _, v := range col.SampleValues {
			g.Options = append(g.Options, FilterOption{
				Key:    ids.Allocate("cb", col.Name, v),
				Column: col.Name,
				Value:  v,
			})
		}
		groups = append(groups, g)
	}
	return groups
}

// CollectFilters turns the set of ticked checkbox keys into the filter
// payload. Unknown keys are ignored. The result does not depend on the order
// of checked; values follow the order of the group's options.
func CollectFilters(groups []FilterGroup, checked []string) analytics.FilterSelection {
	ticked := make(map[string]bool, len(checked))
	for _, k := range checked {
		ticked[k] = true
	}

	sel := analytics.FilterSelection{}
	for _, g := range groups {
		for _, opt := range g.Options {
			if ticked[opt.Key] {
				sel[opt.Column] = append(sel[opt.Column], opt.Value)
			}
		}
	}
	return sel
}
