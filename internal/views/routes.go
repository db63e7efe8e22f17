package views

import (
	"strings"
)

// AppName is shown in the navigation bar and page titles.
const AppName = "IrriFlow"

// Kind identifies one of the navigable views.
type Kind string

const (
	Dashboard Kind = "dashboard"
	Energy    Kind = "energy"
	Water     Kind = "water"
	Alerts    Kind = "alerts"
)

// Route binds a path to a view and its navigation entry.
type Route struct {
	Path  string
	Kind  Kind
	Label string
	Title string
}

var routes = []Route{
	{Path: "/", Kind: Dashboard, Label: "Dashboard", Title: "Irrigation overview"},
	{Path: "/energy", Kind: Energy, Label: "Energy", Title: "Energy management"},
	{Path: "/water", Kind: Water, Label: "Water", Title: "Water management"},
	{Path: "/alerts", Kind: Alerts, Label: "Alerts", Title: "Alerts"},
}

// Routes returns the navigation entries in menu order.
func Routes() []Route {
	out := make([]Route, len(routes))
	copy(out, routes)
	return out
}

// Lookup returns the route registered for path. A trailing slash is ignored.
func Lookup(path string) (Route, bool) {
	if path != "/" {
		path = strings.TrimSuffix(path, "/")
	}
	for _, r := range routes {
		if r.Path == path {
			return r, true
		}
	}
	return Route{}, false
}

// Route returns the route of k. Unknown kinds map to the dashboard.
func (k Kind) Route() Route {
	for _, r := range routes {
		if r.Kind == k {
			return r
		}
	}
	return routes[0]
}

// Active reports whether the navigation entry of r should be highlighted
// on a page served at path.
func (r Route) Active(path string) bool {
	if r.Path == "/" {
		return path == "/"
	}
	return path == r.Path || strings.HasPrefix(path, r.Path+"/")
}
