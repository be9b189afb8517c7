package processor

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/storesmith/storesmith/internal/models"
)

// Manager is the registry of kind processors.
type Manager struct {
	processors map[models.JobKind]Processor
	logger     *zap.Logger
}

func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		processors: make(map[models.JobKind]Processor),
		logger:     logger,
	}
}

func (m *Manager) Register(p Processor) error {
	kind := p.Kind()
	if _, exists := m.processors[kind]; exists {
		return fmt.Errorf("processor for kind %s already registered", kind)
	}

	m.processors[kind] = p
	m.logger.Info("Processor registered", zap.String("kind", string(kind)))
	return nil
}

func (m *Manager) ForKind(kind models.JobKind) (Processor, error) {
	p, exists := m.processors[kind]
	if !exists {
		return nil, fmt.Errorf("processor for kind %s not found", kind)
	}
	return p, nil
}

func (m *Manager) Kinds() []models.JobKind {
	var kinds []models.JobKind
	for kind := range m.processors {
		kinds = append(kinds, kind)
	}
	return kinds
}
