// Package cleanup is the Brain's rollback workflow: when a job fails (or is
// cancelled) after it has already created remote resources, this workflow
// walks JobV2.CreatedResources in reverse and deletes each one through the
// job's controller.Client, undoing partial work rather than leaving
// orphaned identity groups, pools, and networks on the controller.
//
// Grounded on internal/temporalx/jobrun's workflow/activities split: a
// Temporal workflow function that drives the sequence and an Activities
// struct that does the actual I/O, with the same heartbeat-while-working
// shape. Unlike job_run, rollback operates over a bounded, known-in-advance
// item list rather than an indefinite tick loop, so there is no
// ContinueAsNew/resume-signal machinery here — one LoadPlan activity
// followed by one Teardown activity per item is the whole run.
package cleanup

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// Workflow rolls back jobID's created resources in reverse-creation order.
// It is best-effort: a failed deletion is recorded and the walk continues,
// since one already-gone or stubborn resource should never block cleanup of
// the rest. The workflow itself returns an error only if at least one item
// could not be torn down, so the run shows up as failed in Temporal for an
// operator to reconcile by hand.
func Workflow(ctx workflow.Context, jobID string) error {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		HeartbeatTimeout:    20 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    5,
		},
	})

	var plan Plan
	if err := workflow.ExecuteActivity(ctx, ActivityLoadPlan, jobID).Get(ctx, &plan); err != nil {
		return fmt.Errorf("cleanup: load plan: %w", err)
	}

	var failures []string
	for _, item := range plan.Items {
		var res Result
		err := workflow.ExecuteActivity(ctx, ActivityTeardown, jobID, item).Get(ctx, &res)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s/%s: %v", item.ResourceType, item.ResourceID, err))
			continue
		}
		if !res.Deleted {
			failures = append(failures, fmt.Sprintf("%s/%s: %s", item.ResourceType, item.ResourceID, res.Error))
		}
	}

	if len(failures) > 0 {
		return fmt.Errorf("cleanup: %d resource(s) failed to tear down: %v", len(failures), failures)
	}
	return nil
}
