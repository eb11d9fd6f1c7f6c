// Package metrics provides the enable/disable indirection BARD's
// domain packages use to attach Prometheus instrumentation without
// importing prometheus directly. A package that wants metrics calls
// metrics.IsEnabled() and, if true, metrics.GetRegistry() to register
// its collectors; when metrics are disabled every constructor in
// pkg/metrics returns nil and callers fall back to zero-overhead no-ops.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mu       sync.RWMutex
	enabled  bool
	registry *prometheus.Registry
)

// InitRegistry enables metrics collection and installs reg as the
// registry every pkg/metrics constructor registers collectors against.
// Passing nil creates a fresh prometheus.NewRegistry(). Safe to call
// once during daemon startup before any RestageCL or BARD instance is
// constructed.
func InitRegistry(reg *prometheus.Registry) *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	registry = reg
	enabled = true
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// GetRegistry returns the active registry, or nil if metrics are
// disabled. Callers must check IsEnabled first.
func GetRegistry() *prometheus.Registry {
	mu.RLock()
	defer mu.RUnlock()
	return registry
}

// Reset disables metrics and drops the registry. Exposed for tests
// that need a clean slate between cases.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	enabled = false
	registry = nil
}
