package health

import (
	"sort"

	"servicewatch/internal/models"
)

// ResolveObservability derives the passive tracking signal for a candidate
// from its watcher's configured observability integrations. A candidate is
// tracked iff at least one source is configured — presence, not verified
// per-endpoint coverage. The returned source names are sorted for stable
// display.
//
// routePath is reserved for per-route coverage filtering and does not yet
// affect the decision.
func ResolveObservability(sources map[string]models.ObservabilitySource, routePath string) (tracked bool, names []string) {
	_ = routePath
	if len(sources) == 0 {
		return false, nil
	}
	names = make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return true, names
}
