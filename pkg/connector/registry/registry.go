// Package registry manages connector registration and instantiation.
// Connector packages register a factory per source type from init, so
// importing a connector package for side effects makes its type available.
package registry

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/tributary-io/tributary/pkg/connector/core"
	"github.com/tributary-io/tributary/pkg/errors"
	"github.com/tributary-io/tributary/pkg/logger"
)

// Factory creates a connector instance for a data source.
type Factory func(source *core.DataSource) (core.Connector, error)

// Registry maps source types to connector factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[core.SourceType]Factory
	logger    *zap.Logger
}

var globalRegistry = NewRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[core.SourceType]Factory),
		logger:    logger.Get().With(zap.String("component", "connector_registry")),
	}
}

// Register adds a factory for a source type. Registering the same type
// twice is a programming error and fails.
func (r *Registry) Register(sourceType core.SourceType, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[sourceType]; exists {
		return errors.Newf(errors.CodeInvalidConfig, "connector type %q already registered", sourceType)
	}

	r.factories[sourceType] = factory
	r.logger.Debug("connector registered", zap.String("type", string(sourceType)))
	return nil
}

// Create instantiates a connector for the source's type.
func (r *Registry) Create(source *core.DataSource) (core.Connector, error) {
	r.mu.RLock()
	factory, exists := r.factories[source.Type]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.Newf(errors.CodeInvalidConfig, "no connector registered for type %q", source.Type)
	}
	return factory(source)
}

// Types returns the registered source types, sorted.
func (r *Registry) Types() []core.SourceType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]core.SourceType, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// RegisterConnector registers a factory with the global registry. Panics on
// duplicate registration since it is called from init.
func RegisterConnector(sourceType core.SourceType, factory Factory) {
	if err := globalRegistry.Register(sourceType, factory); err != nil {
		panic(err)
	}
}

// CreateConnector instantiates a connector from the global registry.
func CreateConnector(source *core.DataSource) (core.Connector, error) {
	return globalRegistry.Create(source)
}

// RegisteredTypes lists the source types in the global registry.
func RegisteredTypes() []core.SourceType {
	return globalRegistry.Types()
}
