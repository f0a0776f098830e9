// Package core provides the module system brandai is assembled from:
// a global module registry, a per-process AppContext carrying the logger,
// data directory and shared services, and the App lifecycle.
package core

import "strings"

// ModuleID is a dotted module identifier such as "provider.openai".
// The segment before the first dot is the module namespace.
type ModuleID string

// Namespace returns the part of the ID before the first dot.
func (id ModuleID) Namespace() string {
	ns, _, _ := strings.Cut(string(id), ".")
	return ns
}

// Name returns the part of the ID after the first dot, or the whole ID
// when it has no namespace.
func (id ModuleID) Name() string {
	_, name, ok := strings.Cut(string(id), ".")
	if !ok {
		return string(id)
	}
	return name
}

// ModuleInfo describes a registered module.
type ModuleInfo struct {
	ID ModuleID

	// New returns a fresh, unconfigured instance of the module.
	New func() Module
}

// Module is the minimal interface every module implements. Optional
// behaviour is opted into through the interfaces in lifecycle.go.
type Module interface {
	ModuleInfo() ModuleInfo
}
