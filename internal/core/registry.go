package core

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry   = make(map[Family]TableDefinition)
	registryMu sync.RWMutex
)

// Register adds a table definition to the registry.
// Panics if the family is already registered or the definition has no key.
func Register(def TableDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Info.Family]; exists {
		panic(fmt.Sprintf("table already registered: %s", def.Info.Family))
	}
	if len(def.KeyColumns()) == 0 {
		panic(fmt.Sprintf("table %s has no key columns", def.Info.Name))
	}
	if def.Row == nil {
		panic(fmt.Sprintf("table %s has no row func", def.Info.Name))
	}

	registry[def.Info.Family] = def
}

// Get returns the table definition for a family.
// Returns false if not found.
func Get(family Family) (TableDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[family]
	return def, ok
}

// MustGet returns the table definition for a family and panics if it is missing.
func MustGet(family Family) TableDefinition {
	def, ok := Get(family)
	if !ok {
		panic(fmt.Sprintf("no table registered for %s", family))
	}
	return def
}

// All returns all registered table definitions ordered by family.
func All() []TableDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]TableDefinition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Info.Family < result[j].Info.Family
	})

	return result
}

// TableCount returns the number of registered tables.
func TableCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}
