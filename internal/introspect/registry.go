package introspect

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Factory builds an introspector. A nil logger means discard.
type Factory func(*slog.Logger) Introspector

// The registry is written only from driver init functions.
var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds an introspector factory to the registry.
// Called by driver packages in their init() functions.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Get retrieves a factory by name.
func Get(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// New creates the named introspector.
func New(name string, logger *slog.Logger) (Introspector, error) {
	if name == "" {
		return nil, fmt.Errorf("introspection driver not specified")
	}
	factory, ok := Get(name)
	if !ok {
		return nil, &UnknownDriverError{Driver: name, Available: ListDrivers()}
	}
	return factory(logger), nil
}

// ListDrivers returns all registered driver names (sorted).
func ListDrivers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if a driver is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}

// UnknownDriverError is returned when an unknown catalog source is requested.
type UnknownDriverError struct {
	Driver    string
	Available []string
}

func (e *UnknownDriverError) Error() string {
	return fmt.Sprintf("unknown catalog source %q\nAvailable sources: %v\nHint: Check catalog.source in sqlsense.yaml", e.Driver, e.Available)
}
