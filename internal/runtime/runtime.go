// Package runtime is the Brain's Phase Executor Runtime: the capability set
// (emit/fire_and_wait/parallel_map/track_resource) and read-only accessors
// every phase executor receives for one phase instance.
//
// Grounded on the teacher's capability-scoped internal/jobs/runtime.Context
// (Payload/Update/Progress/Fail/Succeed, all guarded so a cancelled/
// terminal job can't be overwritten) — generalized into a PhaseRuntime
// exposing the helpers the phase executor interface requires instead of
// the teacher's narrower job-progress surface, and into
// golang.org/x/sync/semaphore for ParallelMap instead of a hand-rolled
// worker pool.
package runtime

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/wifientist/rtools2-sub002/internal/activity"
	"github.com/wifientist/rtools2-sub002/internal/controller"
	"github.com/wifientist/rtools2-sub002/internal/domain"
	"github.com/wifientist/rtools2-sub002/internal/events"
)

// TrackResourceFunc appends a created resource to the owning job's
// created_resources, atomically, via the state store's update_job.
type TrackResourceFunc func(ctx context.Context, resourceType string, rec domain.ResourceRecord) error

// PhaseRuntime is handed to a PhaseExecutor for exactly one invocation: one
// unit for per-unit phases, the whole job for global phases.
type PhaseRuntime struct {
	JobID      string
	PhaseID    string
	UnitID     string // empty for global phases
	UnitNumber string
	TenantID   string
	VenueID    string
	Options    map[string]any

	controllerClient controller.Client
	tracker          *activity.Tracker
	publisher        *events.Publisher
	trackResourceFn  TrackResourceFunc
}

// New builds a PhaseRuntime for one phase instance.
func New(
	jobID, phaseID, unitID, unitNumber, tenantID, venueID string,
	options map[string]any,
	client controller.Client,
	tracker *activity.Tracker,
	publisher *events.Publisher,
	trackResourceFn TrackResourceFunc,
) *PhaseRuntime {
	return &PhaseRuntime{
		JobID:            jobID,
		PhaseID:          phaseID,
		UnitID:           unitID,
		UnitNumber:       unitNumber,
		TenantID:         tenantID,
		VenueID:          venueID,
		Options:          options,
		controllerClient: client,
		tracker:          tracker,
		publisher:        publisher,
		trackResourceFn:  trackResourceFn,
	}
}

// Controller is the read-only accessor to the remote controller handle.
func (r *PhaseRuntime) Controller() controller.Client { return r.controllerClient }

// Tracker is the read-only accessor to the Activity Tracker, for executors
// that need wait_batch semantics directly instead of FireAndWait.
func (r *PhaseRuntime) Tracker() *activity.Tracker { return r.tracker }

// Emit publishes a message event on the job's channel.
func (r *PhaseRuntime) Emit(ctx context.Context, message, level string, details map[string]any) {
	if r.publisher == nil {
		return
	}
	r.publisher.Message(ctx, r.JobID, level, message, details)
}

// FireAndWait registers requestID with the Activity Tracker against this
// phase's controller and suspends until it resolves.
func (r *PhaseRuntime) FireAndWait(ctx context.Context, requestID string) (activity.ActivityResult, error) {
	if r.tracker == nil {
		return activity.ActivityResult{}, fmt.Errorf("runtime: no activity tracker configured")
	}
	poller := activityPollerAdapter{svc: r.controllerClient.Activities()}
	if err := r.tracker.Register(ctx, requestID, r.JobID, r.UnitID, r.PhaseID, poller, 0); err != nil {
		return activity.ActivityResult{}, err
	}
	return r.tracker.Wait(ctx, requestID)
}

// TrackResource appends rec to the job's created_resources atomically.
func (r *PhaseRuntime) TrackResource(ctx context.Context, resourceType string, rec domain.ResourceRecord) error {
	if r.trackResourceFn == nil {
		return nil
	}
	return r.trackResourceFn(ctx, resourceType, rec)
}

// activityPollerAdapter adapts a controller.ActivityService (Done/Error
// shaped results) to activity.BulkPoller (domain.ActivityStatus shaped
// results), so controller clients don't need to import internal/activity.
type activityPollerAdapter struct {
	svc controller.ActivityService
}

func (a activityPollerAdapter) PollActivities(ctx context.Context, requestIDs []string) (map[string]activity.PollResult, error) {
	raw, err := a.svc.PollActivities(ctx, requestIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[string]activity.PollResult, len(raw))
	for id, res := range raw {
		status := domain.ActivityPending
		switch {
		case res.Done && res.Error == "":
			status = domain.ActivitySuccess
		case res.Done && res.Error != "":
			status = domain.ActivityFailed
		}
		out[id] = activity.PollResult{Status: status, Error: res.Error}
	}
	return out, nil
}

// MapOutcome is what ParallelMap returns: the indices (into the original
// items slice) that succeeded, and a map of index to error for those that
// failed.
type MapOutcome struct {
	Succeeded []int
	Failed    map[int]error
}

// ParallelMap runs fn over items with at most maxConcurrent in flight at
// once, per-item error capture, bounded by a weighted semaphore. A free
// function rather than a PhaseRuntime method because Go methods cannot
// carry their own type parameters.
func ParallelMap[T any](ctx context.Context, items []T, maxConcurrent int, fn func(ctx context.Context, item T) error) MapOutcome {
	if maxConcurrent <= 0 {
		maxConcurrent = len(items)
	}
	if maxConcurrent <= 0 {
		return MapOutcome{Failed: map[int]error{}}
	}
	sem := semaphore.NewWeighted(int64(maxConcurrent))

	var mu sync.Mutex
	var wg sync.WaitGroup
	outcome := MapOutcome{Failed: map[int]error{}}

	for i, item := range items {
		i, item := i, item
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			outcome.Failed[i] = err
			mu.Unlock()
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			err := fn(ctx, item)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				outcome.Failed[i] = err
			} else {
				outcome.Succeeded = append(outcome.Succeeded, i)
			}
		}()
	}
	wg.Wait()
	return outcome
}
