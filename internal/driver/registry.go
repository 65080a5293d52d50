// internal/driver/registry.go
package driver

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"myo-recorder/pkg/driver"
)

// SessionFactory creates device sessions
type SessionFactory func(config *driver.SessionConfig, logger *zap.Logger) (driver.Session, error)

// Registry manages session factories keyed by device kind
type Registry struct {
	factories map[string]SessionFactory
	mu        sync.RWMutex
	logger    *zap.Logger
}

// NewRegistry creates a new session registry
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		factories: make(map[string]SessionFactory),
		logger:    logger,
	}
}

// Register registers a session factory
func (r *Registry) Register(kind string, factory SessionFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[kind] = factory
	r.logger.Debug("Driver registered", zap.String("kind", kind))
}

// CreateSession creates a session for config.Kind
func (r *Registry) CreateSession(config *driver.SessionConfig) (driver.Session, error) {
	r.mu.RLock()
	factory, exists := r.factories[config.Kind]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("no driver found for kind=%s", config.Kind)
	}
	return factory(config, r.logger)
}

// ListKinds returns all registered kinds in sorted order
func (r *Registry) ListKinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.factories))
	for kind := range r.factories {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// IsSupported checks if a device kind has a driver
func (r *Registry) IsSupported(kind string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.factories[kind]
	return exists
}
