package engine

import (
	"context"
	"sync"

	"alertflow/internal/rules"
	"alertflow/pkg/models"
)

// Manager lazily creates one Engine per organization module.
type Manager struct {
	base Options

	mu      sync.RWMutex
	engines map[rules.Scope]*Engine
}

// NewManager uses base for every engine it creates; scope fields of base are ignored.
func NewManager(base Options) *Manager {
	return &Manager{
		base:    base,
		engines: make(map[rules.Scope]*Engine),
	}
}

func (m *Manager) Engine(organizationID, moduleName string) (*Engine, error) {
	scope := rules.Scope{OrganizationID: organizationID, ModuleName: moduleName}

	m.mu.RLock()
	eng, ok := m.engines[scope]
	m.mu.RUnlock()
	if ok {
		return eng, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if eng, ok := m.engines[scope]; ok {
		return eng, nil
	}

	opts := m.base
	opts.OrganizationID = organizationID
	opts.ModuleName = moduleName

	eng, err := New(opts)
	if err != nil {
		return nil, err
	}
	m.engines[scope] = eng
	return eng, nil
}

// EvaluateEvent runs the rules of the event's scope against its data.
func (m *Manager) EvaluateEvent(ctx context.Context, evt *models.Event) ([]Result, error) {
	eng, err := m.Engine(evt.OrganizationID, evt.ModuleName)
	if err != nil {
		return nil, err
	}

	return eng.Evaluate(ctx, evt.Data, EvaluationContext{
		OrganizationID: evt.OrganizationID,
		ModuleName:     evt.ModuleName,
		Timestamp:      evt.Timestamp,
		UserID:         evt.UserID,
		Metadata:       evt.Metadata,
	}), nil
}

// ClearCache clears every engine matching the arguments. An empty organizationID matches all
// engines; an empty moduleName matches every module of the organization.
func (m *Manager) ClearCache(organizationID, moduleName string) {
	for _, eng := range m.snapshot() {
		scope := eng.Scope()
		if organizationID != "" && scope.OrganizationID != organizationID {
			continue
		}
		if moduleName != "" && scope.ModuleName != moduleName {
			continue
		}
		eng.ClearCache()
	}
}

func (m *Manager) ClearAll() {
	m.ClearCache("", "")
}

// Stats is keyed by "organization/module".
func (m *Manager) Stats() map[string]Stats {
	engines := m.snapshot()
	out := make(map[string]Stats, len(engines))
	for _, eng := range engines {
		out[eng.Scope().String()] = eng.Stats()
	}
	return out
}

func (m *Manager) ResetStats() {
	for _, eng := range m.snapshot() {
		eng.ResetStats()
	}
}

func (m *Manager) snapshot() []*Engine {
	m.mu.RLock()
	defer m.mu.RUnlock()

	engines := make([]*Engine, 0, len(m.engines))
	for _, eng := range m.engines {
		engines = append(engines, eng)
	}
	return engines
}
