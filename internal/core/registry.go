package core

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
)

var (
	modules   = make(map[string]ModuleInfo)
	modulesMu sync.RWMutex
)

// RegisterModule records a module so configuration can refer to it by ID.
// Intended to be called from init(); it panics on an empty ID, a nil
// constructor or a duplicate registration.
func RegisterModule(instance Module) {
	info := instance.ModuleInfo()
	if info.ID == "" {
		panic("module ID must not be empty")
	}
	if info.New == nil {
		panic(fmt.Sprintf("module %s: New function must not be nil", info.ID))
	}

	modulesMu.Lock()
	defer modulesMu.Unlock()

	id := string(info.ID)
	if _, exists := modules[id]; exists {
		panic(fmt.Sprintf("module already registered: %s", id))
	}
	modules[id] = info
}

// GetModule returns the ModuleInfo for the given ID.
func GetModule(id string) (ModuleInfo, bool) {
	modulesMu.RLock()
	defer modulesMu.RUnlock()
	info, ok := modules[id]
	return info, ok
}

// GetModules returns every registered module sorted by ID.
func GetModules() []ModuleInfo {
	modulesMu.RLock()
	defer modulesMu.RUnlock()

	result := make([]ModuleInfo, 0, len(modules))
	for _, info := range modules {
		result = append(result, info)
	}
	sortInfos(result)
	return result
}

// GetModulesByNamespace returns the modules whose namespace equals ns,
// e.g. "provider" matches "provider.openai" and "provider.ollama".
func GetModulesByNamespace(ns string) []ModuleInfo {
	modulesMu.RLock()
	defer modulesMu.RUnlock()

	var result []ModuleInfo
	for _, info := range modules {
		if info.ID.Namespace() == ns {
			result = append(result, info)
		}
	}
	sortInfos(result)
	return result
}

func sortInfos(infos []ModuleInfo) {
	slices.SortFunc(infos, func(a, b ModuleInfo) int {
		return cmp.Compare(a.ID, b.ID)
	})
}
