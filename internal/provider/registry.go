package provider

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/flemzord/brandai/internal/core"
)

// RegistryService is the service name under which the shared registry is
// published on the application context.
const RegistryService = "provider.registry"

// ModelPlaceholder is substituted with the model identifier in endpoint
// templates.
const ModelPlaceholder = "{model}"

// Descriptor is the static description of a backend.
type Descriptor struct {
	ID           ID     `json:"id"`
	Name         string `json:"name"`
	Endpoint     string `json:"endpoint"`
	DefaultModel string `json:"default_model"`
	ProbeURL     string `json:"probe_url,omitempty"`
}

// EndpointFor expands the endpoint template for model.
func (d Descriptor) EndpointFor(model string) string {
	return strings.ReplaceAll(d.Endpoint, ModelPlaceholder, model)
}

// Entry pairs a descriptor with the adapter speaking its protocol.
// Credential, when set, is used for requests that carry none.
type Entry struct {
	Descriptor
	Adapter    Adapter
	Credential string
}

// Registry maps provider IDs to adapters. It is safe for concurrent use;
// entries are immutable once registered.
type Registry struct {
	mu      sync.RWMutex
	entries map[ID]Entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[ID]Entry)}
}

// Register adds a provider. It fails on an empty ID, a nil adapter or a
// duplicate ID.
func (r *Registry) Register(e Entry) error {
	if e.ID == "" {
		return fmt.Errorf("provider: descriptor ID is required")
	}
	if e.Adapter == nil {
		return fmt.Errorf("provider: %s: adapter is nil", e.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[e.ID]; exists {
		return fmt.Errorf("provider: %s already registered", e.ID)
	}
	r.entries[e.ID] = e
	return nil
}

// Lookup returns the entry registered under id.
func (r *Registry) Lookup(id ID) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

// Descriptors returns every registered descriptor sorted by ID.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Descriptor)
	}
	slices.SortFunc(out, func(a, b Descriptor) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// IDs returns the registered provider IDs in sorted order.
func (r *Registry) IDs() []ID {
	ds := r.Descriptors()
	ids := make([]ID, len(ds))
	for i, d := range ds {
		ids[i] = d.ID
	}
	return ids
}

// SharedRegistry returns the registry published on app, creating and
// publishing one on first use. Adapter modules call it from Provision.
func SharedRegistry(app *core.AppContext) *Registry {
	if v, ok := app.Service(RegistryService); ok {
		if r, ok := v.(*Registry); ok {
			return r
		}
	}
	r := NewRegistry()
	app.RegisterService(RegistryService, r)
	return r
}
