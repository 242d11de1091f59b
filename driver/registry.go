package driver

import (
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
)

// Backend names.
const (
	BackendVulkan = "vulkan"
	BackendNoop   = "noop"
)

// Factory creates a new Instance of a backend.
type Factory func() (Instance, error)

var (
	registryMu sync.RWMutex
	backends   = make(map[string]Factory)
	// First registered name in this list wins in Default.
	backendPriority = []string{BackendVulkan, BackendNoop}
)

// Register registers a backend factory under name, replacing any previous
// registration. Backends call it from init.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	backends[name] = factory
}

// Unregister removes a backend from the registry.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(backends, name)
}

// Available returns the registered backend names in sorted order.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered reports whether a backend named name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := backends[name]
	return ok
}

// Get creates an instance of the named backend.
func Get(name string) (Instance, error) {
	registryMu.RLock()
	factory, ok := backends[name]
	registryMu.RUnlock()

	if !ok {
		return nil, errors.Wrapf(ErrBackendNotAvailable, "backend %q", name)
	}
	return factory()
}

// Default creates an instance of the highest-priority backend that
// initializes successfully. Backends outside the priority list are tried
// last, in name order.
func Default() (Instance, error) {
	registryMu.RLock()
	order := make([]Factory, 0, len(backends))
	seen := make(map[string]bool, len(backends))
	for _, name := range backendPriority {
		if f, ok := backends[name]; ok {
			order = append(order, f)
			seen[name] = true
		}
	}
	rest := make([]string, 0, len(backends))
	for name := range backends {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		order = append(order, backends[name])
	}
	registryMu.RUnlock()

	var errs error
	for _, f := range order {
		inst, err := f()
		if err == nil {
			return inst, nil
		}
		errs = errors.CombineErrors(errs, err)
	}
	if errs != nil {
		return nil, errors.Wrap(errs, "no backend initialized")
	}
	return nil, ErrBackendNotAvailable
}
