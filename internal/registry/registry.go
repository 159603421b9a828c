// Package registry is the process-wide dispatch table from phase_id to the
// executor implementation responsible for it.
//
// Grounded on the teacher's internal/jobs/runtime Handler/Registry pair —
// generalized from a single job_type -> Handler map to a phase_id ->
// PhaseExecutor map, with the same register-once, fail-loud-on-duplicate
// contract and sync.RWMutex guard.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/wifientist/rtools2-sub002/internal/domain"
	"github.com/wifientist/rtools2-sub002/internal/runtime"
)

// PhaseExecutor is the contract every phase implementation must satisfy.
// Execute is invoked once per unit for per_unit phases, once globally
// otherwise; it must assume re-entry after a partial execution (phases are
// expected to be idempotent, per the error handling design).
type PhaseExecutor interface {
	ID() string
	Execute(ctx context.Context, rt *runtime.PhaseRuntime, inputs map[string]any) (map[string]any, error)
}

// Validator is an optional capability a PhaseExecutor may additionally
// implement: a side-effect-free pre-flight check used by phase 0.
type Validator interface {
	Validate(ctx context.Context, rt *runtime.PhaseRuntime, inputs map[string]any) (*domain.ValidationResult, error)
}

// Registry is a concurrency-safe phase_id -> PhaseExecutor map. Read-only
// after startup: a workflow referencing an unregistered phase_id fails
// validation at workflow load time, not at execution time.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]PhaseExecutor
}

func New() *Registry {
	return &Registry{executors: make(map[string]PhaseExecutor)}
}

// Register binds an executor to its phase_id. Fails if the executor is nil,
// its ID() is empty, or another executor already claims that id.
func (r *Registry) Register(e PhaseExecutor) error {
	if e == nil {
		return fmt.Errorf("registry: nil executor")
	}
	id := e.ID()
	if id == "" {
		return fmt.Errorf("registry: executor ID() is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.executors[id]; exists {
		return fmt.Errorf("registry: executor already registered for phase_id=%s", id)
	}
	r.executors[id] = e
	return nil
}

// Get returns the executor registered for phase_id, if any.
func (r *Registry) Get(phaseID string) (PhaseExecutor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.executors[phaseID]
	return e, ok
}

// List returns every registered phase_id.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.executors))
	for id := range r.executors {
		out = append(out, id)
	}
	return out
}
