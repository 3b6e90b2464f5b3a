// internal/mode/registry.go
package mode

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"uart-assist/internal/model"
)

// Factory creates a mode instance
type Factory func(logger *zap.Logger) Mode

// Registry manages mode registration and creation
type Registry struct {
	modes  map[model.TestMode]Factory
	mu     sync.RWMutex
	logger *zap.Logger
}

// NewRegistry creates an empty mode registry
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		modes:  make(map[model.TestMode]Factory),
		logger: logger,
	}
}

// NewDefaultRegistry creates a registry holding the four built-in modes
func NewDefaultRegistry(logger *zap.Logger) *Registry {
	r := NewRegistry(logger)
	r.Register(model.ModeLoopback, func(l *zap.Logger) Mode { return NewLoopback(l) })
	r.Register(model.ModeSend, func(l *zap.Logger) Mode { return NewSend(l) })
	r.Register(model.ModeReceive, func(l *zap.Logger) Mode { return NewReceive(l) })
	r.Register(model.ModeFile, func(l *zap.Logger) Mode { return NewFile(l) })
	return r
}

// Register registers a mode factory
func (r *Registry) Register(name model.TestMode, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.modes[name] = factory
	r.logger.Debug("Mode registered", zap.String("mode", string(name)))
}

// Create builds the mode registered under name
func (r *Registry) Create(name model.TestMode) (Mode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, exists := r.modes[name]
	if !exists {
		return nil, fmt.Errorf("%w: no mode registered for %q", model.ErrConfig, name)
	}
	return factory(r.logger.With(zap.String("mode", string(name)))), nil
}

// IsSupported checks if a mode is registered
func (r *Registry) IsSupported(name model.TestMode) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.modes[name]
	return exists
}

// ListModes returns the registered mode names in sorted order
func (r *Registry) ListModes() []model.TestMode {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]model.TestMode, 0, len(r.modes))
	for name := range r.modes {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
