package startup

import (
	"sort"
	"strings"

	"github.com/gorilla/mux"

	"music-library/internal/logging"
)

// RouteInfo is one method and path template served by a router.
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// GetRoutes lists the routes of router, one entry per method. Routes
// without a method restriction are listed with method "*".
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo
	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		path, err := route.GetPathTemplate()
		if err != nil {
			return err
		}
		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}
		for _, m := range methods {
			routes = append(routes, RouteInfo{Method: m, Path: path, Name: route.GetName()})
		}
		return nil
	})
	return routes, err
}

// LogHTTPRoutes logs the access log settings and, at debug level, the
// routes of router grouped by resource.
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	logging.Info("")
	LogSection("HTTP")
	if logHealthChecks {
		logging.Info("  Access log: all requests")
	} else {
		logging.Info("  Access log: health checks omitted (LOG_HEALTH_CHECKS=true to include)")
	}
	if !logging.IsDebugEnabled() {
		return
	}

	routes, err := GetRoutes(router)
	if err != nil {
		logging.Warn("Failed to list routes: %v", err)
	}
	sort.SliceStable(routes, func(i, j int) bool {
		return getRouteGroup(routes[i].Path) < getRouteGroup(routes[j].Path)
	})
	group := "\x00"
	for _, r := range routes {
		if g := getRouteGroup(r.Path); g != group {
			group = g
			if g == "" {
				g = "root"
			}
			logging.Debug("  [%s]", g)
		}
		logging.Debug("    %-6s %s", r.Method, r.Path)
	}
}

// getRouteGroup names the resource of path: its first segment, or the
// first two below /api.
func getRouteGroup(path string) string {
	segments := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if segments[0] == "api" && len(segments) > 1 {
		return "api/" + segments[1]
	}
	return segments[0]
}
