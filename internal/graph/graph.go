// Package graph implements the Brain's Dependency Graph: validation,
// topological leveling, and readiness over a workflow's phase definitions.
//
// Grounded on the Kahn's-algorithm "progressed" batching loop in the
// teacher's orchestrator/dag.go validateDAG — that loop already groups
// zero-in-degree nodes into batches each iteration, which is exactly
// Levels(); Ready() is the same computation applied to one completion set
// instead of iterating to exhaustion.
package graph

import (
	"fmt"
	"sort"

	"github.com/wifientist/rtools2-sub002/internal/domain"
)

// Graph is the validated dependency structure over one workflow's phases.
type Graph struct {
	phases   map[string]domain.PhaseDefinition
	dependents map[string][]string // phase_id -> phase ids that depend on it
	order    []string             // original declaration order, for deterministic tie-breaking
}

// New validates the phase list and builds a Graph, or returns every
// validation error found: no duplicate ids, every depends_on reference
// resolves, no cycles.
func New(phases []domain.PhaseDefinition) (*Graph, []error) {
	g := &Graph{
		phases:     map[string]domain.PhaseDefinition{},
		dependents: map[string][]string{},
	}
	var errs []error

	seen := map[string]bool{}
	for _, p := range phases {
		if p.ID == "" {
			errs = append(errs, fmt.Errorf("phase missing id"))
			continue
		}
		if seen[p.ID] {
			errs = append(errs, fmt.Errorf("duplicate phase id %q", p.ID))
			continue
		}
		seen[p.ID] = true
		g.phases[p.ID] = p
		g.order = append(g.order, p.ID)
	}

	for _, p := range phases {
		if !seen[p.ID] {
			continue
		}
		for _, dep := range p.DependsOn {
			if _, ok := g.phases[dep]; !ok {
				errs = append(errs, fmt.Errorf("phase %q depends_on unknown phase %q", p.ID, dep))
				continue
			}
			g.dependents[dep] = append(g.dependents[dep], p.ID)
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	if _, err := g.Levels(); err != nil {
		return nil, []error{err}
	}
	return g, nil
}

// Validate re-runs the checks New performs, returning every error found (or
// nil if the graph is well-formed). Exposed separately so callers that
// already hold a Graph can re-validate after a hypothetical mutation.
func (g *Graph) Validate() []error {
	phases := make([]domain.PhaseDefinition, 0, len(g.phases))
	for _, id := range g.order {
		phases = append(phases, g.phases[id])
	}
	_, errs := New(phases)
	return errs
}

// Levels groups phases into topological levels: all phases at level k
// depend only on phases at levels < k. Tie-breaking within a level is
// deterministic by phase_id.
func (g *Graph) Levels() ([][]string, error) {
	inDegree := map[string]int{}
	for id, p := range g.phases {
		inDegree[id] = len(p.DependsOn)
	}

	var levels [][]string
	remaining := len(g.phases)
	for remaining > 0 {
		var level []string
		for id, deg := range inDegree {
			if deg == 0 {
				level = append(level, id)
			}
		}
		if len(level) == 0 {
			return nil, fmt.Errorf("cycle detected in phase graph")
		}
		sort.Strings(level)
		for _, id := range level {
			delete(inDegree, id)
			remaining--
			for _, dep := range g.dependents[id] {
				inDegree[dep]--
			}
		}
		levels = append(levels, level)
	}
	return levels, nil
}

// Ready returns the set of phase ids whose dependencies are all present in
// completed, and which are not themselves already in completed.
func (g *Graph) Ready(completed map[string]bool) []string {
	var ready []string
	for _, id := range g.order {
		if completed[id] {
			continue
		}
		p := g.phases[id]
		satisfied := true
		for _, dep := range p.DependsOn {
			if !completed[dep] {
				satisfied = false
				break
			}
		}
		if satisfied {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)
	return ready
}

// Phase returns the definition for a phase id.
func (g *Graph) Phase(id string) (domain.PhaseDefinition, bool) {
	p, ok := g.phases[id]
	return p, ok
}

// Phases returns every phase definition in declaration order.
func (g *Graph) Phases() []domain.PhaseDefinition {
	out := make([]domain.PhaseDefinition, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.phases[id])
	}
	return out
}
