package cleanup

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wifientist/rtools2-sub002/internal/controller"
	"github.com/wifientist/rtools2-sub002/internal/domain"
	"github.com/wifientist/rtools2-sub002/internal/platform/logger"
	"github.com/wifientist/rtools2-sub002/internal/store"

	"go.temporal.io/sdk/activity"
)

// ControllerResolver returns the remote controller handle for a job, the
// same shape the Brain's own Scheduler takes — cmd/brain wires one resolver
// function and hands it to both.
type ControllerResolver func(job *domain.JobV2) (controller.Client, error)

// Activities does the actual rollback I/O: reading a job's
// created_resources and deleting each one through its controller.Client.
type Activities struct {
	Store    store.Store
	Resolver ControllerResolver
	Log      *logger.Logger
}

// LoadPlan reads jobID's created_resources and orders them for teardown:
// resource types in reverse declaration order, and within a type, most
// recently created first — the mirror image of how they were built up.
func (a *Activities) LoadPlan(ctx context.Context, jobID string) (Plan, error) {
	plan := Plan{JobID: jobID}
	if a == nil || a.Store == nil {
		return plan, fmt.Errorf("cleanup: activities not configured")
	}
	id, err := uuid.Parse(jobID)
	if err != nil {
		return plan, fmt.Errorf("cleanup: invalid job_id: %w", err)
	}
	job, err := a.Store.GetJob(ctx, id)
	if err != nil {
		return plan, err
	}

	for i := len(job.ResourceOrder) - 1; i >= 0; i-- {
		resourceType := job.ResourceOrder[i]
		records := job.CreatedResources[resourceType]
		for j := len(records) - 1; j >= 0; j-- {
			rec := records[j]
			plan.Items = append(plan.Items, Item{
				ResourceType: resourceType,
				ResourceID:   rec.ID,
				ResourceName: rec.Name,
			})
		}
	}
	return plan, nil
}

// Teardown deletes one resource through jobID's controller. Any error from
// Delete is returned as this item's failure, including one for a resource
// the controller no longer has; a not-found answer is not told apart from
// other errors.
func (a *Activities) Teardown(ctx context.Context, jobID string, item Item) (Result, error) {
	res := Result{ResourceType: item.ResourceType, ResourceID: item.ResourceID}
	if a == nil || a.Store == nil || a.Resolver == nil {
		return res, fmt.Errorf("cleanup: activities not configured")
	}

	stop := a.startHeartbeat(ctx)
	defer stop()

	id, err := uuid.Parse(jobID)
	if err != nil {
		return res, fmt.Errorf("cleanup: invalid job_id: %w", err)
	}
	job, err := a.Store.GetJob(ctx, id)
	if err != nil {
		return res, err
	}
	client, err := a.Resolver(job)
	if err != nil {
		return res, fmt.Errorf("cleanup: resolve controller: %w", err)
	}

	mut, err := client.Teardown().Delete(ctx, item.ResourceType, item.ResourceID)
	if err != nil {
		if a.Log != nil {
			a.Log.Warn("cleanup: teardown failed", "job_id", jobID, "resource_type", item.ResourceType, "resource_id", item.ResourceID, "error", err)
		}
		res.Error = err.Error()
		return res, err
	}
	res.Deleted = mut.Done
	if !mut.Done {
		res.Error = "controller accepted delete asynchronously; rollback does not wait on activation slots"
	}
	return res, nil
}

func (a *Activities) startHeartbeat(ctx context.Context) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				activity.RecordHeartbeat(ctx)
			}
		}
	}()
	return func() { close(done) }
}
