package executors

import (
	"context"
	"fmt"

	"github.com/wifientist/rtools2-sub002/internal/domain"
	"github.com/wifientist/rtools2-sub002/internal/runtime"
)

// CreateIdentityGroupExecutor creates the one dpsk identity group shared by
// every unit in a cloudpath job.
type CreateIdentityGroupExecutor struct{}

func (CreateIdentityGroupExecutor) ID() string { return "create_identity_group" }

func (e CreateIdentityGroupExecutor) Execute(ctx context.Context, rt *runtime.PhaseRuntime, inputs map[string]any) (map[string]any, error) {
	res, err := rt.Controller().IdentityGroups().Create(ctx, rt.TenantID, map[string]any{
		"name": fmt.Sprintf("job-%s-identity-group", rt.JobID),
	})
	if err != nil {
		return nil, fmt.Errorf("create_identity_group: %w", err)
	}
	resource, err := resolveMutation(ctx, rt, res)
	if err != nil {
		return nil, fmt.Errorf("create_identity_group: %w", err)
	}
	if err := rt.TrackResource(ctx, "identity_group", domain.ResourceRecord{ID: resource.ID, Name: resource.Name}); err != nil {
		return nil, err
	}
	return map[string]any{"identity_group_id": resource.ID}, nil
}

// CreateDPSKPoolExecutor creates the one credential pool shared by every
// unit, scoped to the job's identity group.
type CreateDPSKPoolExecutor struct{}

func (CreateDPSKPoolExecutor) ID() string { return "create_dpsk_pool" }

func (e CreateDPSKPoolExecutor) Execute(ctx context.Context, rt *runtime.PhaseRuntime, inputs map[string]any) (map[string]any, error) {
	identityGroupID, _ := inputs["identity_group_id"].(string)
	if identityGroupID == "" {
		return nil, fmt.Errorf("create_dpsk_pool: missing identity_group_id input")
	}
	res, err := rt.Controller().CredentialPools().Create(ctx, identityGroupID, map[string]any{
		"name": fmt.Sprintf("job-%s-dpsk-pool", rt.JobID),
	})
	if err != nil {
		return nil, fmt.Errorf("create_dpsk_pool: %w", err)
	}
	resource, err := resolveMutation(ctx, rt, res)
	if err != nil {
		return nil, fmt.Errorf("create_dpsk_pool: %w", err)
	}
	if err := rt.TrackResource(ctx, "dpsk_pool", domain.ResourceRecord{ID: resource.ID, Name: resource.Name}); err != nil {
		return nil, err
	}
	return map[string]any{"pool_id": resource.ID}, nil
}

// CreatePassphrasesExecutor creates one passphrase entry per unit within
// the shared pool.
type CreatePassphrasesExecutor struct{}

func (CreatePassphrasesExecutor) ID() string { return "create_passphrases" }

func (e CreatePassphrasesExecutor) Execute(ctx context.Context, rt *runtime.PhaseRuntime, inputs map[string]any) (map[string]any, error) {
	poolID, _ := inputs["pool_id"].(string)
	if poolID == "" {
		return nil, fmt.Errorf("create_passphrases: missing pool_id input")
	}
	res, err := rt.Controller().Passphrases().Create(ctx, poolID, map[string]any{
		"name": fmt.Sprintf("unit-%s-passphrase", rt.UnitNumber),
	})
	if err != nil {
		return nil, fmt.Errorf("create_passphrases: %w", err)
	}
	resource, err := resolveMutation(ctx, rt, res)
	if err != nil {
		return nil, fmt.Errorf("create_passphrases: %w", err)
	}
	if err := rt.TrackResource(ctx, "passphrase", domain.ResourceRecord{ID: resource.ID, Name: resource.Name}); err != nil {
		return nil, err
	}
	return map[string]any{"passphrase_id": resource.ID}, nil
}

// CreatePSKNetworkExecutor creates the one PSK network shared by every
// unit, scoped to the job's venue and credential pool.
type CreatePSKNetworkExecutor struct{}

func (CreatePSKNetworkExecutor) ID() string { return "create_psk_network" }

func (e CreatePSKNetworkExecutor) Execute(ctx context.Context, rt *runtime.PhaseRuntime, inputs map[string]any) (map[string]any, error) {
	poolID, _ := inputs["pool_id"].(string)
	if poolID == "" {
		return nil, fmt.Errorf("create_psk_network: missing pool_id input")
	}
	res, err := rt.Controller().PSKNetworks().Create(ctx, rt.VenueID, map[string]any{
		"name":    fmt.Sprintf("job-%s-psk-network", rt.JobID),
		"pool_id": poolID,
	})
	if err != nil {
		return nil, fmt.Errorf("create_psk_network: %w", err)
	}
	resource, err := resolveMutation(ctx, rt, res)
	if err != nil {
		return nil, fmt.Errorf("create_psk_network: %w", err)
	}
	if err := rt.TrackResource(ctx, "psk_network", domain.ResourceRecord{ID: resource.ID, Name: resource.Name}); err != nil {
		return nil, err
	}
	return map[string]any{"network_id": resource.ID}, nil
}

// ActivateNetworkExecutor activates the shared PSK network against one
// unit's AP group. It always goes through the controller's async path and
// is the phase that requires an activation slot, since the controller
// family limits how many activations may be in flight at once (the
// workflow's max_activation_slots, 12 in cloudpath.yaml).
type ActivateNetworkExecutor struct{}

func (ActivateNetworkExecutor) ID() string { return "activate_network" }

func (e ActivateNetworkExecutor) Execute(ctx context.Context, rt *runtime.PhaseRuntime, inputs map[string]any) (map[string]any, error) {
	networkID, _ := inputs["network_id"].(string)
	apGroupID, _ := inputs["ap_group_id"].(string)
	if networkID == "" || apGroupID == "" {
		return nil, fmt.Errorf("activate_network: missing network_id/ap_group_id input")
	}
	res, err := rt.Controller().PSKNetworks().Activate(ctx, networkID, apGroupID)
	if err != nil {
		return nil, fmt.Errorf("activate_network: %w", err)
	}
	if !res.Done {
		result, err := rt.FireAndWait(ctx, res.RequestID)
		if err != nil {
			return nil, fmt.Errorf("activate_network: %w", err)
		}
		if result.Status != domain.ActivitySuccess {
			return nil, fmt.Errorf("activate_network: remote activation %s: %s", result.Status, result.Error)
		}
	}
	return map[string]any{"activated": true}, nil
}
