package graph

import (
	"testing"

	"github.com/wifientist/rtools2-sub002/internal/domain"
)

func phases(ids ...[2]string) []domain.PhaseDefinition {
	var out []domain.PhaseDefinition
	for _, pair := range ids {
		id, deps := pair[0], pair[1]
		var d []string
		if deps != "" {
			d = []string{deps}
		}
		out = append(out, domain.PhaseDefinition{ID: id, Executor: id, DependsOn: d})
	}
	return out
}

func TestNewDetectsDuplicateID(t *testing.T) {
	_, errs := New([]domain.PhaseDefinition{
		{ID: "validate", Executor: "validate"},
		{ID: "validate", Executor: "validate"},
	})
	if len(errs) == 0 {
		t.Fatalf("expected duplicate id error")
	}
}

func TestNewDetectsUnknownDependency(t *testing.T) {
	_, errs := New([]domain.PhaseDefinition{
		{ID: "create_ssids", DependsOn: []string{"missing"}},
	})
	if len(errs) == 0 {
		t.Fatalf("expected unknown dependency error")
	}
}

func TestNewDetectsCycle(t *testing.T) {
	_, errs := New([]domain.PhaseDefinition{
		{ID: "a", DependsOn: []string{"b"}},
		{ID: "b", DependsOn: []string{"a"}},
	})
	if len(errs) == 0 {
		t.Fatalf("expected cycle error")
	}
}

func TestLevelsGroupsByTopologicalDepth(t *testing.T) {
	g, errs := New([]domain.PhaseDefinition{
		{ID: "validate"},
		{ID: "create_ap_groups", DependsOn: []string{"validate"}, PerUnit: true},
		{ID: "create_ssids", DependsOn: []string{"create_ap_groups"}, PerUnit: true},
		{ID: "activate_ssids", DependsOn: []string{"create_ssids"}, PerUnit: true},
	})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	levels, err := g.Levels()
	if err != nil {
		t.Fatalf("Levels: %v", err)
	}
	if len(levels) != 4 {
		t.Fatalf("expected 4 levels, got %d: %v", len(levels), levels)
	}
	for i, want := range []string{"validate", "create_ap_groups", "create_ssids", "activate_ssids"} {
		if len(levels[i]) != 1 || levels[i][0] != want {
			t.Fatalf("level %d: want [%s], got %v", i, want, levels[i])
		}
	}
}

func TestLevelsGroupsIndependentPhasesTogether(t *testing.T) {
	g, errs := New([]domain.PhaseDefinition{
		{ID: "validate"},
		{ID: "create_identity_group", DependsOn: []string{"validate"}},
		{ID: "create_dpsk_pool", DependsOn: []string{"validate"}},
	})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	levels, err := g.Levels()
	if err != nil {
		t.Fatalf("Levels: %v", err)
	}
	if len(levels) != 2 {
		t.Fatalf("expected 2 levels, got %d: %v", len(levels), levels)
	}
	if len(levels[1]) != 2 {
		t.Fatalf("expected second level to batch 2 independent phases, got %v", levels[1])
	}
	if levels[1][0] != "create_dpsk_pool" || levels[1][1] != "create_identity_group" {
		t.Fatalf("expected deterministic alphabetical tie-break, got %v", levels[1])
	}
}

func TestReadyReflectsCompletionSet(t *testing.T) {
	g, errs := New([]domain.PhaseDefinition{
		{ID: "validate"},
		{ID: "create_ap_groups", DependsOn: []string{"validate"}},
		{ID: "create_ssids", DependsOn: []string{"create_ap_groups"}},
	})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	ready := g.Ready(map[string]bool{})
	if len(ready) != 1 || ready[0] != "validate" {
		t.Fatalf("expected only validate ready, got %v", ready)
	}

	ready = g.Ready(map[string]bool{"validate": true})
	if len(ready) != 1 || ready[0] != "create_ap_groups" {
		t.Fatalf("expected create_ap_groups ready, got %v", ready)
	}

	ready = g.Ready(map[string]bool{"validate": true, "create_ap_groups": true, "create_ssids": true})
	if len(ready) != 0 {
		t.Fatalf("expected nothing ready once all complete, got %v", ready)
	}
}
