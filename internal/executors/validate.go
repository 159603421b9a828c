// Package executors implements the Brain's built-in phase executors for the
// cloudpath and per_unit_ssid workflows, each satisfying
// registry.PhaseExecutor (and, for validate, registry.Validator). Every
// mutating executor follows the same shape: call the capability on
// rt.Controller(), track any resource it created, and if the call returned
// only a request_id, suspend on rt.FireAndWait before returning outputs.
//
// Grounded on the teacher's internal/jobs/runtime.Context-driven handlers
// (internal/jobs/pipeline/*): a handler receives a capability-scoped
// context and inputs, does its work, and returns outputs/errors without
// knowing how the surrounding job is scheduled.
package executors

import (
	"context"
	"fmt"

	"github.com/wifientist/rtools2-sub002/internal/domain"
	"github.com/wifientist/rtools2-sub002/internal/runtime"
)

// ValidateExecutor is phase 0 of every workflow: a side-effect-free check
// that the requested units and options are plausible before the Brain
// spends any API calls or asks the caller to confirm.
type ValidateExecutor struct{}

func (ValidateExecutor) ID() string { return "validate" }

func (e ValidateExecutor) Execute(ctx context.Context, rt *runtime.PhaseRuntime, inputs map[string]any) (map[string]any, error) {
	result, err := e.Validate(ctx, rt, inputs)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return nil, fmt.Errorf("validate: %v", result.Errors)
	}
	return map[string]any{
		"venue_id":  rt.VenueID,
		"tenant_id": rt.TenantID,
	}, nil
}

// Validate checks that venue_id and tenant_id are present, without mutating
// anything. It also looks the venue up in the controller's venue list: an
// unknown venue is recorded as a note, not an error, and the lookup is not
// enforced when the controller lists no venues.
func (e ValidateExecutor) Validate(ctx context.Context, rt *runtime.PhaseRuntime, inputs map[string]any) (*domain.ValidationResult, error) {
	result := &domain.ValidationResult{Valid: true}

	if rt.TenantID == "" {
		result.Valid = false
		result.Errors = append(result.Errors, "tenant_id is required")
	}
	if rt.VenueID == "" {
		result.Valid = false
		result.Errors = append(result.Errors, "venue_id is required")
	}
	if !result.Valid {
		return result, nil
	}

	page, err := rt.Controller().Venues().List(ctx, rt.TenantID, "")
	if err != nil {
		return nil, fmt.Errorf("validate: list venues: %w", err)
	}
	found := false
	for _, v := range page.Items {
		if v.ID == rt.VenueID {
			found = true
			break
		}
	}
	if len(page.Items) > 0 && !found {
		result.Notes = append(result.Notes, fmt.Sprintf("venue %s not found in controller's venue list", rt.VenueID))
	}
	result.Actions = append(result.Actions, "create_identity_group", "create_dpsk_pool")
	return result, nil
}
