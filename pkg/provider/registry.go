package provider

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]func(*slog.Logger) Provider)
)

// Register adds a provider factory to the registry. Names are matched
// case-insensitively. Called by providers in their init() functions.
func Register(name string, factory func(*slog.Logger) Provider) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(name)] = factory
}

// Get retrieves a provider factory by name.
func Get(name string) (func(*slog.Logger) Provider, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[strings.ToLower(name)]
	return f, ok
}

// New creates a provider instance by invariant name.
// The logger parameter is passed to the provider constructor (nil uses discard logger).
func New(name string, logger *slog.Logger) (Provider, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("provider name not specified")
	}

	factory, ok := Get(name)
	if !ok {
		return nil, &UnknownProviderError{
			Name:      name,
			Available: List(),
		}
	}
	return factory(logger), nil
}

// List returns all registered provider names (sorted).
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if a provider name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[strings.ToLower(name)]
	return ok
}

// UnknownProviderError is returned when an unregistered provider is requested.
type UnknownProviderError struct {
	Name      string
	Available []string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown provider %q\nAvailable providers: %v\nHint: Check the provider keyword of your connection string", e.Name, e.Available)
}
