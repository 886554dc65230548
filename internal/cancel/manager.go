package cancel

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned when no pipeline exists for the given id
var ErrRunNotFound = errors.New("cancellation run not found")

// Manager owns the concurrent pipeline runs of the process. Each run is an
// independent state machine; the manager only routes by id.
type Manager struct {
	mu   sync.Mutex
	runs map[uuid.UUID]*Pipeline
	deps Deps
}

// NewManager creates a manager sharing deps across all runs
func NewManager(deps Deps) *Manager {
	return &Manager{
		runs: make(map[uuid.UUID]*Pipeline),
		deps: deps,
	}
}

// Start creates a pipeline for the intent and begins draft generation in the
// background. Callers poll the returned run for state.
func (m *Manager) Start(intent Intent) *Pipeline {
	p := New(intent, m.deps)

	m.mu.Lock()
	m.runs[p.ID()] = p
	m.mu.Unlock()

	// Detached from the request context: generation outlives the HTTP call
	go p.Begin(context.Background()) //nolint:errcheck // surfaced via pipeline state

	return p
}

// Get returns the pipeline for the given id
func (m *Manager) Get(id uuid.UUID) (*Pipeline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return p, nil
}

// Confirm starts the signing sequence for the run in the background.
// Returns ErrInvalidTransition immediately when the run is not in review.
func (m *Manager) Confirm(id uuid.UUID) error {
	p, err := m.Get(id)
	if err != nil {
		return err
	}
	if state := p.State(); state != StateReview {
		return ErrInvalidTransition
	}
	go p.ConfirmAndSign(context.Background()) //nolint:errcheck // surfaced via pipeline state
	return nil
}

// Skip persists a receipt without on-chain proof
func (m *Manager) Skip(ctx context.Context, id uuid.UUID) error {
	p, err := m.Get(id)
	if err != nil {
		return err
	}
	return p.SkipOnChainProof(ctx)
}

// Retry re-enters review for an errored run
func (m *Manager) Retry(id uuid.UUID) error {
	p, err := m.Get(id)
	if err != nil {
		return err
	}
	return p.Retry()
}

// Abandon closes an errored run
func (m *Manager) Abandon(id uuid.UUID) error {
	p, err := m.Get(id)
	if err != nil {
		return err
	}
	return p.Abandon()
}
