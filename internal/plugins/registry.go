// Package plugins implements Vessel Frame's plugin registry, discovery,
// per-plugin scheduling, and logging. It depends only on pluginapi for
// the contracts plugins implement; concrete plugins register themselves
// here from their own init() functions, exactly as the platform's
// original auto-registration pattern worked, generalized from one flat
// namespace to one namespace per plugin category.
package plugins

import (
	"fmt"
	"sync"

	"github.com/vesselframe/vesselframe/internal/pluginapi"
)

// Group identifies one of the plugin categories a factory can be
// registered under.
type Group string

const (
	GroupSources    Group = "sources"
	GroupProcessors Group = "processors"
	GroupControllers Group = "controllers"
	GroupRenderer   Group = "renderer"
	GroupScreens    Group = "screens"
)

// Factory constructs a plugin instance from a context and a raw
// configuration map taken from the plugin's entry in the config file.
type Factory func(ctx pluginapi.Context, cfg map[string]any) (any, error)

// Registry is a category-grouped directory of plugin factories. Plugins
// register themselves by calling Register from an init() function;
// callers look plugins up by group and name at startup.
type Registry struct {
	mu       sync.RWMutex
	byGroup  map[Group]map[string]Factory
	schemas  map[string]pluginapi.Schema
}

// global is the registry concrete plugins register themselves into via
// init(). A package-level singleton mirrors the auto-registration
// pattern the rest of the platform's plugin packages use: importing a
// plugin's package for side effect is what makes it available.
var global = NewRegistry()

// Global returns the process-wide plugin registry.
func Global() *Registry { return global }

// NewRegistry returns an empty registry. Tests construct their own
// instance rather than mutating the process-wide Global().
func NewRegistry() *Registry {
	return &Registry{
		byGroup: make(map[Group]map[string]Factory),
		schemas: make(map[string]pluginapi.Schema),
	}
}

// Register adds factory under (group, name), overwriting any previous
// registration with the same name in that group. Intended to be called
// from an init() function in the plugin's own package.
func (r *Registry) Register(group Group, name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.byGroup[group] == nil {
		r.byGroup[group] = make(map[string]Factory)
	}
	r.byGroup[group][name] = factory
}

// RegisterSchema attaches a configuration schema to a plugin name,
// retrievable through Schema. The admin plugin listing shows names only.
func (r *Registry) RegisterSchema(name string, schema pluginapi.Schema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[name] = schema
}

// Names returns the registered plugin names in group, in no particular
// order.
func (r *Registry) Names(group Group) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byGroup[group]))
	for name := range r.byGroup[group] {
		names = append(names, name)
	}
	return names
}

// LoadFactory looks up the factory registered under (group, name).
func (r *Registry) LoadFactory(group Group, name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.byGroup[group][name]
	return factory, ok
}

// Create looks up and invokes the factory registered under (group, name).
func (r *Registry) Create(group Group, name string, ctx pluginapi.Context, cfg map[string]any) (any, error) {
	factory, ok := r.LoadFactory(group, name)
	if !ok {
		return nil, fmt.Errorf("plugins: no %s plugin registered as %q", group, name)
	}
	return factory(ctx, cfg)
}

// Schema returns the configuration schema registered for name, if any.
func (r *Registry) Schema(name string) (pluginapi.Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	schema, ok := r.schemas[name]
	return schema, ok
}

// AllGroups returns every group that has at least one registered plugin,
// used by the admin surface's plugin listing endpoint.
func (r *Registry) AllGroups() []Group {
	r.mu.RLock()
	defer r.mu.RUnlock()

	groups := make([]Group, 0, len(r.byGroup))
	for g := range r.byGroup {
		groups = append(groups, g)
	}
	return groups
}
