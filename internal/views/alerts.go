package views

import (
	"strings"

	"irriflow.dev/dashboard/pkg/water"
)

// AlertFilter selects which alerts the alerts view lists.
type AlertFilter string

const (
	FilterAll      AlertFilter = "all"
	FilterPending  AlertFilter = "pending"
	FilterResolved AlertFilter = "resolved"
)

// AlertFilters lists the filters in display order.
var AlertFilters = []AlertFilter{FilterAll, FilterPending, FilterResolved}

// ParseAlertFilter maps a query value to a filter. Anything unknown is FilterAll.
func ParseAlertFilter(s string) AlertFilter {
	switch AlertFilter(strings.ToLower(strings.TrimSpace(s))) {
	case FilterPending:
		return FilterPending
	case FilterResolved:
		return FilterResolved
	}
	return FilterAll
}

// Label is the button text of f.
func (f AlertFilter) Label() string {
	switch f {
	case FilterPending:
		return "Pending"
	case FilterResolved:
		return "Resolved"
	}
	return "All"
}

// Keep reports whether a passes f.
func (f AlertFilter) Keep(a water.Alert) bool {
	switch f {
	case FilterPending:
		return !a.Resolved
	case FilterResolved:
		return a.Resolved
	}
	return true
}

// Apply returns the alerts passing f, in their original order.
func (f AlertFilter) Apply(alerts []water.Alert) []water.Alert {
	out := make([]water.Alert, 0, len(alerts))
	for _, a := range alerts {
		if f.Keep(a) {
			out = append(out, a)
		}
	}
	return out
}

// AlertCounts are the badge numbers of the filter bar.
type AlertCounts struct {
	All      int
	Pending  int
	Resolved int
}

// CountAlerts counts alerts per filter. Pending plus Resolved equals All.
func CountAlerts(alerts []water.Alert) AlertCounts {
	c := AlertCounts{All: len(alerts)}
	c.Pending = UnresolvedAlerts(alerts)
	c.Resolved = c.All - c.Pending
	return c
}

// For returns the count shown next to filter f.
func (c AlertCounts) For(f AlertFilter) int {
	switch f {
	case FilterPending:
		return c.Pending
	case FilterResolved:
		return c.Resolved
	}
	return c.All
}
