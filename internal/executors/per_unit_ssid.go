package executors

import (
	"context"
	"fmt"

	"github.com/wifientist/rtools2-sub002/internal/controller"
	"github.com/wifientist/rtools2-sub002/internal/domain"
	"github.com/wifientist/rtools2-sub002/internal/runtime"
)

// CreateAPGroupsExecutor creates one AP group per unit.
type CreateAPGroupsExecutor struct{}

func (CreateAPGroupsExecutor) ID() string { return "create_ap_groups" }

func (e CreateAPGroupsExecutor) Execute(ctx context.Context, rt *runtime.PhaseRuntime, inputs map[string]any) (map[string]any, error) {
	res, err := rt.Controller().APGroups().Create(ctx, rt.VenueID, map[string]any{
		"name": fmt.Sprintf("unit-%s-ap-group", rt.UnitNumber),
	})
	if err != nil {
		return nil, fmt.Errorf("create_ap_groups: %w", err)
	}
	resource, err := resolveMutation(ctx, rt, res)
	if err != nil {
		return nil, fmt.Errorf("create_ap_groups: %w", err)
	}
	if err := rt.TrackResource(ctx, "ap_group", domain.ResourceRecord{ID: resource.ID, Name: resource.Name}); err != nil {
		return nil, err
	}
	return map[string]any{"ap_group_id": resource.ID}, nil
}

// CreateSSIDsExecutor creates one dedicated SSID network per unit, scoped
// to that unit's AP group.
type CreateSSIDsExecutor struct{}

func (CreateSSIDsExecutor) ID() string { return "create_ssids" }

func (e CreateSSIDsExecutor) Execute(ctx context.Context, rt *runtime.PhaseRuntime, inputs map[string]any) (map[string]any, error) {
	apGroupID, _ := inputs["ap_group_id"].(string)
	if apGroupID == "" {
		return nil, fmt.Errorf("create_ssids: missing ap_group_id input")
	}
	res, err := rt.Controller().SSIDs().Create(ctx, rt.VenueID, map[string]any{
		"name":        fmt.Sprintf("unit-%s-ssid", rt.UnitNumber),
		"ap_group_id": apGroupID,
	})
	if err != nil {
		return nil, fmt.Errorf("create_ssids: %w", err)
	}
	resource, err := resolveMutation(ctx, rt, res)
	if err != nil {
		return nil, fmt.Errorf("create_ssids: %w", err)
	}
	if err := rt.TrackResource(ctx, "ssid", domain.ResourceRecord{ID: resource.ID, Name: resource.Name}); err != nil {
		return nil, err
	}
	return map[string]any{"ssid_id": resource.ID}, nil
}

// ActivateSSIDsExecutor activates one unit's SSID against its AP group,
// under the same activation-slot constraint as ActivateNetworkExecutor.
type ActivateSSIDsExecutor struct{}

func (ActivateSSIDsExecutor) ID() string { return "activate_ssids" }

func (e ActivateSSIDsExecutor) Execute(ctx context.Context, rt *runtime.PhaseRuntime, inputs map[string]any) (map[string]any, error) {
	ssidID, _ := inputs["ssid_id"].(string)
	apGroupID, _ := inputs["ap_group_id"].(string)
	if ssidID == "" || apGroupID == "" {
		return nil, fmt.Errorf("activate_ssids: missing ssid_id/ap_group_id input")
	}
	res, err := rt.Controller().SSIDs().Activate(ctx, ssidID, apGroupID)
	if err != nil {
		return nil, fmt.Errorf("activate_ssids: %w", err)
	}
	if !res.Done {
		result, err := rt.FireAndWait(ctx, res.RequestID)
		if err != nil {
			return nil, fmt.Errorf("activate_ssids: %w", err)
		}
		if result.Status != domain.ActivitySuccess {
			return nil, fmt.Errorf("activate_ssids: remote activation %s: %s", result.Status, result.Error)
		}
	}
	return map[string]any{"activated": true}, nil
}

// resolveMutation turns a controller.MutateResult into a concrete
// controller.Resource, suspending on the activity tracker first if the
// controller only handed back a request_id.
func resolveMutation(ctx context.Context, rt *runtime.PhaseRuntime, res controller.MutateResult) (controller.Resource, error) {
	if res.Done {
		if res.Resource == nil {
			return controller.Resource{}, fmt.Errorf("controller returned done=true with no resource")
		}
		return *res.Resource, nil
	}
	result, err := rt.FireAndWait(ctx, res.RequestID)
	if err != nil {
		return controller.Resource{}, err
	}
	if result.Status != domain.ActivitySuccess {
		return controller.Resource{}, fmt.Errorf("remote operation %s: %s", result.Status, result.Error)
	}
	return controller.Resource{ID: res.RequestID}, nil
}
