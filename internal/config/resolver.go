package config

import (
	"cmp"
	"slices"
	"strings"
)

// loadOrder ranks module namespaces. Stores come up before the providers,
// and both before the cron jobs and gateway that consume them. Stop runs
// in reverse, so the gateway drains before the store closes.
var loadOrder = map[string]int{
	"memory":   0,
	"provider": 1,
}

// Resolve returns the configured module IDs in load order: memory modules,
// then providers, then everything else, sorted by ID within each rank.
func Resolve(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.Modules))
	for id := range cfg.Modules {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		return cmp.Or(cmp.Compare(rank(a), rank(b)), strings.Compare(a, b))
	})
	return ids
}

func rank(id string) int {
	ns, _, _ := strings.Cut(id, ".")
	if r, ok := loadOrder[ns]; ok {
		return r
	}
	return len(loadOrder)
}
