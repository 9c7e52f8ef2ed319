// Package metrics defines the metrics interfaces the upload core consumes,
// with a Prometheus-backed implementation provided by pkg/metrics/prometheus.
// This indirection — interfaces here, implementation in a subpackage that
// registers itself via an init-time constructor hook — lets pkg/uploads
// depend only on this package and never on prometheus directly, and lets
// every interface's zero value (nil) mean "collect nothing."
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mu       sync.Mutex
	registry *prometheus.Registry
	enabled  bool
)

// InitRegistry creates and installs the process-wide metrics registry.
// Call once at startup, before constructing any *Metrics type. Calling it
// again replaces the registry, which is only safe before anything has
// registered collectors against the old one.
func InitRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	registry = prometheus.NewRegistry()
	enabled = true
	return registry
}

// GetRegistry returns the active registry, or nil if InitRegistry has not
// been called.
func GetRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// Disable tears down metrics collection. Intended for test isolation.
func Disable() {
	mu.Lock()
	defer mu.Unlock()
	registry = nil
	enabled = false
}
