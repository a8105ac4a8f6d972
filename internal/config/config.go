// Package config implements Vessel Frame's hierarchical TOML configuration
// store: a single file loaded into an in-memory tree, read and written
// through dotted paths (e.g. "system.max_tracked", "zones").
package config

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// Config is a thread-safe, dotted-path-addressable configuration tree
// backed by a TOML file on disk.
type Config struct {
	mu   sync.RWMutex
	path string
	tree map[string]any
}

// Zone is the on-disk shape of a single [[zones]] table.
type Zone struct {
	Name     string  `toml:"name"`
	Lat      float64 `toml:"lat"`
	Lon      float64 `toml:"lon"`
	RadiusKm float64 `toml:"radius_km"`
}

// New returns an empty Config bound to path. Call Load to populate it from
// disk.
func New(path string) *Config {
	return &Config{path: path, tree: map[string]any{}}
}

// Load reads and parses the config file. A missing file is tolerated and
// leaves the config tree empty, consistent with Vessel Frame running with
// only built-in defaults on first boot.
func (c *Config) Load() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", c.path, err)
	}

	var tree map[string]any
	if err := toml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("config: parse %s: %w", c.path, err)
	}

	c.mu.Lock()
	c.tree = tree
	c.mu.Unlock()
	return nil
}

// Save serializes the current config tree back to disk as TOML.
func (c *Config) Save() error {
	c.mu.RLock()
	data, err := toml.Marshal(c.tree)
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", c.path, err)
	}
	return nil
}

// GetAll returns a deep copy of the entire config tree.
func (c *Config) GetAll() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return deepCopy(c.tree).(map[string]any)
}

// Get resolves a dotted path (e.g. "system.max_tracked") against the
// config tree and returns a deep copy of the value found there, or def if
// the path does not resolve to a value.
func (c *Config) Get(path string, def any) any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	val, ok := lookup(c.tree, splitPath(path))
	if !ok {
		return def
	}
	return deepCopy(val)
}

// Has reports whether path resolves to a value in the config tree.
func (c *Config) Has(path string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := lookup(c.tree, splitPath(path))
	return ok
}

// Set stores value at the dotted path, creating any missing intermediate
// maps along the way.
func (c *Config) Set(path string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	segments := splitPath(path)
	node := c.tree
	for i, seg := range segments {
		if i == len(segments)-1 {
			node[seg] = value
			return
		}

		next, ok := node[seg]
		if !ok {
			child := map[string]any{}
			node[seg] = child
			node = child
			continue
		}

		childMap, ok := next.(map[string]any)
		if !ok {
			childMap = map[string]any{}
			node[seg] = childMap
		}
		node = childMap
	}
}

// Zones decodes the top-level [[zones]] array into typed Zone values.
// Entries that are not tables are skipped rather than treated as fatal;
// within a table, a missing or mistyped field decodes as its zero value.
func (c *Config) Zones() []Zone {
	raw := c.Get("zones", nil)
	list, ok := raw.([]any)
	if !ok {
		return nil
	}

	zones := make([]Zone, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		zones = append(zones, Zone{
			Name:     stringField(m, "name"),
			Lat:      floatField(m, "lat"),
			Lon:      floatField(m, "lon"),
			RadiusKm: floatField(m, "radius_km"),
		})
	}
	return zones
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func floatField(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0
	}
}

func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

func lookup(tree map[string]any, segments []string) (any, bool) {
	if len(segments) == 0 {
		return tree, true
	}

	node := any(tree)
	for _, seg := range segments {
		m, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}
		val, ok := m[seg]
		if !ok {
			return nil, false
		}
		node = val
	}
	return node, true
}

func deepCopy(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = deepCopy(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopy(item)
		}
		return out
	default:
		return v
	}
}
