// Package registry keeps the catalog of available task executors and
// validates task parameters against their declared schemas.
package registry

import (
	"fmt"
	"log/slog"

	"github.com/vantagecrm/leadflow/pkg/models"
	"github.com/vantagecrm/leadflow/pkg/protocol"
)

type Registry struct {
	logger    *slog.Logger
	factories map[string]protocol.ExecutorFactory
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger,
		factories: make(map[string]protocol.ExecutorFactory),
	}
}

// RegisterExecutor adds an executor factory to the catalog, replacing any
// previous factory with the same ID.
func (r *Registry) RegisterExecutor(factory protocol.ExecutorFactory) {
	r.factories[factory.ID()] = factory
}

// CreateExecutor validates parameters against the factory's schema and
// builds the executor.
func (r *Registry) CreateExecutor(executorType string, parameters map[string]any) (protocol.Executor, error) {
	factory, ok := r.factories[executorType]
	if !ok {
		return nil, fmt.Errorf("executor type '%s' not registered", executorType)
	}

	if err := validateParameters(factory.Schema(), parameters); err != nil {
		return nil, fmt.Errorf("invalid parameters for executor '%s': %w", executorType, err)
	}

	return factory.Create(parameters)
}

// HasExecutor reports whether an executor type is registered.
func (r *Registry) HasExecutor(executorType string) bool {
	_, ok := r.factories[executorType]

	return ok
}

// AvailableExecutors lists the registered executors with their schemas for
// the catalog endpoint.
func (r *Registry) AvailableExecutors() []*models.RegisteredExecutor {
	executors := make([]*models.RegisteredExecutor, 0, len(r.factories))

	for _, factory := range r.factories {
		executors = append(executors, &models.RegisteredExecutor{
			Type:        factory.ID(),
			Name:        factory.Name(),
			Description: factory.Description(),
			Schema:      factory.Schema(),
		})
	}

	return executors
}
