package workflowdef

import (
	"context"
	"testing"

	"github.com/wifientist/rtools2-sub002/internal/registry"
	"github.com/wifientist/rtools2-sub002/internal/runtime"
)

type stubExecutor struct{ id string }

func (s stubExecutor) ID() string { return s.id }
func (s stubExecutor) Execute(ctx context.Context, rt *runtime.PhaseRuntime, inputs map[string]any) (map[string]any, error) {
	return nil, nil
}

func TestLoadBuiltinDefinitions(t *testing.T) {
	set, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	names := set.Names()
	if len(names) != 2 {
		t.Fatalf("expected 2 built-in workflows, got %v", names)
	}

	for _, name := range []string{"cloudpath", "per_unit_ssid"} {
		def, g, ok := set.Get(name)
		if !ok {
			t.Fatalf("missing workflow %s", name)
		}
		if def.Name != name {
			t.Fatalf("def.Name: want=%s got=%s", name, def.Name)
		}
		levels, err := g.Levels()
		if err != nil {
			t.Fatalf("%s: Levels: %v", name, err)
		}
		if len(levels) == 0 {
			t.Fatalf("%s: expected at least one level", name)
		}
	}
}

func TestValidateAgainstDetectsMissingExecutor(t *testing.T) {
	set, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	reg := registry.New()
	for _, id := range []string{"validate", "create_identity_group", "create_dpsk_pool", "create_passphrases", "create_psk_network"} {
		if err := reg.Register(stubExecutor{id: id}); err != nil {
			t.Fatalf("Register %s: %v", id, err)
		}
	}
	// Deliberately omit activate_network, create_ap_groups, create_ssids, activate_ssids.
	errs := set.ValidateAgainst(reg)
	if len(errs) == 0 {
		t.Fatalf("expected missing-executor errors, got none")
	}
}

func TestValidateAgainstPassesWhenFullyRegistered(t *testing.T) {
	set, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	reg := registry.New()
	seen := map[string]bool{}
	for _, name := range set.Names() {
		def, _, _ := set.Get(name)
		for _, p := range def.Phases {
			if seen[p.Executor] {
				continue
			}
			seen[p.Executor] = true
			if err := reg.Register(stubExecutor{id: p.Executor}); err != nil {
				t.Fatalf("Register %s: %v", p.Executor, err)
			}
		}
	}
	if errs := set.ValidateAgainst(reg); len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
}
