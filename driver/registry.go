package driver

import (
	"fmt"
	"os"
	"sort"
	"sync"
)

// Driver name constants.
const (
	// NameNative is the driver that loads the system OpenCL ICD loader.
	NameNative = "native"
	// NameHost is the Pure Go emulator driver.
	NameHost = "host"
)

// EnvDriver names the environment variable that forces Default to open a
// specific driver.
const EnvDriver = "OPENCL_DRIVER"

// Factory opens a driver. It returns an error when the driver cannot be
// used on this system (e.g., the native library is missing).
type Factory func() (Driver, error)

// registry holds registered drivers.
var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)
	// Priority order for driver selection (first available wins).
	// Native > Host (the emulator is the fallback).
	driverPriority = []string{NameNative, NameHost}
)

// Register registers a driver factory with the given name.
// This is typically called from init() functions in driver packages.
// If a driver with the same name is already registered, it will be replaced.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[name] = factory
}

// Unregister removes a driver from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(factories, name)
}

// Available returns the sorted names of registered drivers.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if a driver with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := factories[name]
	return ok
}

// Open opens a driver by name.
func Open(name string) (Driver, error) {
	registryMu.RLock()
	factory, ok := factories[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, name)
	}
	return factory()
}

// Default opens the best available driver.
//
// If the OPENCL_DRIVER environment variable is set, only that driver is
// tried. Otherwise drivers are tried in priority order (native, host) and
// then any other registered driver in name order.
func Default() (Driver, error) {
	if name := os.Getenv(EnvDriver); name != "" {
		return Open(name)
	}

	registryMu.RLock()
	order := make([]string, 0, len(factories))
	seen := make(map[string]bool, len(factories))
	for _, name := range driverPriority {
		if _, ok := factories[name]; ok {
			order = append(order, name)
			seen[name] = true
		}
	}
	rest := make([]string, 0, len(factories))
	for name := range factories {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	registryMu.RUnlock()

	sort.Strings(rest)
	order = append(order, rest...)

	var lastErr error
	for _, name := range order {
		d, err := Open(name)
		if err == nil && d != nil {
			return d, nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotAvailable, lastErr)
	}
	return nil, ErrNotAvailable
}
