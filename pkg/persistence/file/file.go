// Package file provides a JSON-file persistence implementation. It backs
// local development and the engine's tests; production deployments use the
// postgresql package. A process-wide mutex serializes writes, so the
// optimistic status transition behaves atomically within one process.
package file

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/vantagecrm/leadflow/pkg/persistence"
)

// Persistence implements persistence.Persistence on top of a directory of
// JSON files, one file per entity.
type Persistence struct {
	root          string
	mu            sync.Mutex
	templateRepo  *TemplateRepository
	leadRepo      *LeadRepository
	instanceRepo  *InstanceRepository
	executionRepo *ExecutionRepository
}

// NewPersistence creates a file persistence layer rooted at the given
// directory. A "file://" prefix is stripped so it can be wired from a
// database URL flag.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.TrimPrefix(root, "file://")

	p := &Persistence{root: cleanRoot}
	p.templateRepo = &TemplateRepository{root: cleanRoot, mu: &p.mu}
	p.leadRepo = &LeadRepository{root: cleanRoot, mu: &p.mu}
	p.instanceRepo = &InstanceRepository{root: cleanRoot, mu: &p.mu}
	p.executionRepo = &ExecutionRepository{root: cleanRoot, mu: &p.mu}

	return p
}

func (p *Persistence) TemplateRepository() persistence.TemplateRepository {
	return p.templateRepo
}

func (p *Persistence) LeadRepository() persistence.LeadRepository {
	return p.leadRepo
}

func (p *Persistence) InstanceRepository() persistence.InstanceRepository {
	return p.instanceRepo
}

func (p *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return p.executionRepo
}

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close is a no-op for file persistence.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}
