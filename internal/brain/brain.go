// Package brain is the Workflow Brain's Scheduler: job admission, the
// validation/confirmation gate, the per-level execution loop, per-unit
// fan-out under a concurrency cap and an activation-slot semaphore,
// aggregation of per-unit outputs into global downstream inputs, error
// policy, cancellation, and resume-after-restart.
//
// Grounded on the teacher's internal/jobs/orchestrator.{DAGEngine,
// validateDAG} stage loop, generalized from a single flat stage list to the
// spec's two-dimensional (level x unit) fan-out, and on
// internal/jobs/worker/worker.go's goroutine-pool pattern for the bounded
// unit-task scheduling within a level.
package brain

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/wifientist/rtools2-sub002/internal/activity"
	"github.com/wifientist/rtools2-sub002/internal/brainerr"
	"github.com/wifientist/rtools2-sub002/internal/controller"
	"github.com/wifientist/rtools2-sub002/internal/domain"
	"github.com/wifientist/rtools2-sub002/internal/events"
	"github.com/wifientist/rtools2-sub002/internal/observability"
	"github.com/wifientist/rtools2-sub002/internal/platform/logger"
	"github.com/wifientist/rtools2-sub002/internal/registry"
	"github.com/wifientist/rtools2-sub002/internal/runtime"
	"github.com/wifientist/rtools2-sub002/internal/store"
	"github.com/wifientist/rtools2-sub002/internal/workflowdef"
)

// DefaultPhaseConcurrency is the per-phase, per-job concurrent unit-task cap
// applied when a workflow's options don't override it.
const DefaultPhaseConcurrency = 10

// DefaultJobDeadline is the per-job wall-clock budget; exceeding it fails
// the job with reason "timeout".
const DefaultJobDeadline = time.Hour

// ControllerResolver returns the remote controller handle to use for one
// job, keyed by the routing fields stashed on JobV2 at admission.
type ControllerResolver func(job *domain.JobV2) (controller.Client, error)

// CleanupTrigger starts the rollback workflow for a job that left resources
// behind on the controller. Implemented by internal/cleanup.Runner; kept as
// a narrow interface here so the Brain doesn't import Temporal directly.
type CleanupTrigger interface {
	Trigger(ctx context.Context, jobID string) error
}

// UnitInput is one caller-supplied unit at job admission.
type UnitInput struct {
	UnitID      string
	UnitNumber  string
	InputConfig map[string]any
}

// Scheduler is the Brain. OwnerID identifies this process for the state
// store's per-job leasing CAS; only the owner of a job may advance it.
type Scheduler struct {
	OwnerID string

	store      store.Store
	registry   *registry.Registry
	workflows  *workflowdef.Set
	tracker    *activity.Tracker
	publisher  *events.Publisher
	resolver   ControllerResolver
	metrics    *observability.Metrics
	cleanup    CleanupTrigger
	log        *logger.Logger
}

// SetCleanupTrigger attaches the rollback-workflow trigger. Optional: a
// Scheduler with none set simply leaves a failed job's created resources in
// place for manual reconciliation, the same as before cleanup existed.
func (s *Scheduler) SetCleanupTrigger(t CleanupTrigger) {
	s.cleanup = t
}

// New builds a Scheduler. ownerID should be stable for the process lifetime
// (hostname+pid is typical) and unique across concurrently-running Brain
// instances sharing one state store. metrics may be nil; every Metrics
// method is a nil-safe no-op, so callers that don't care about Prometheus
// export can pass nil without extra branching.
func New(
	ownerID string,
	st store.Store,
	reg *registry.Registry,
	workflows *workflowdef.Set,
	tracker *activity.Tracker,
	publisher *events.Publisher,
	resolver ControllerResolver,
	metrics *observability.Metrics,
	log *logger.Logger,
) *Scheduler {
	return &Scheduler{
		OwnerID:   ownerID,
		store:     st,
		registry:  reg,
		workflows: workflows,
		tracker:   tracker,
		publisher: publisher,
		resolver:  resolver,
		metrics:   metrics,
		log:       log.With("component", "Brain"),
	}
}

// StartJob admits a new job: builds its JobV2 snapshot, persists it in
// VALIDATING, publishes job_started, and kicks off phase 0 in the
// background. It returns as soon as the job record exists, not once phase 0
// finishes.
func (s *Scheduler) StartJob(
	ctx context.Context,
	workflowName string,
	userID uuid.UUID,
	controllerID, venueID, tenantID string,
	units []UnitInput,
	options map[string]any,
) (*domain.JobV2, error) {
	def, g, ok := s.workflows.Get(workflowName)
	if !ok {
		return nil, brainerr.Setupf("unknown workflow %q", workflowName)
	}

	job := domain.NewJobV2(workflowName, userID, def.MergedOptions(options), map[string]any{
		"units": units,
	})
	job.ControllerID = controllerID
	job.VenueID = venueID
	job.TenantID = tenantID
	job.Owner = s.OwnerID
	job.PhaseDefinitions = append([]domain.PhaseDefinition(nil), def.Phases...)
	job.Status = domain.JobValidating

	for _, u := range units {
		job.UnitMappings[u.UnitID] = domain.NewUnitMapping(u.UnitID, u.UnitNumber, u.InputConfig)
	}
	for _, p := range def.Phases {
		job.GlobalPhaseStatus[p.ID] = domain.PhasePending
	}

	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	s.publisher.JobStarted(ctx, job.ID.String(), workflowName)
	s.metrics.JobStarted(workflowName)

	go s.runPhaseZero(context.Background(), job.ID, def, g)

	return job, nil
}

// GetJob returns a job's current snapshot.
func (s *Scheduler) GetJob(ctx context.Context, jobID uuid.UUID) (*domain.JobV2, error) {
	return s.store.GetJob(ctx, jobID)
}

// ConfirmJob moves a job out of AWAITING_CONFIRMATION into RUNNING and
// starts the execution loop. Cancelling instead is CancelJob.
func (s *Scheduler) ConfirmJob(ctx context.Context, jobID uuid.UUID) error {
	job, err := s.store.UpdateJob(ctx, jobID, func(j *domain.JobV2) (*domain.JobV2, error) {
		if j.Status != domain.JobAwaitingConfirmation {
			return nil, brainerr.Validationf("job %s is not awaiting confirmation (status=%s)", jobID, j.Status)
		}
		now := time.Now().UTC()
		j.Status = domain.JobRunning
		j.StartedAt = &now
		return j, nil
	})
	if err != nil {
		return err
	}
	def, g, ok := s.workflows.Get(job.WorkflowName)
	if !ok {
		return brainerr.Internalf(nil, "workflow %q vanished after admission", job.WorkflowName)
	}
	go s.runLoop(context.Background(), jobID, def, g)
	return nil
}

// CancelJob sets cancel_requested, publishes job_cancelled, and resolves
// every outstanding activity for this job as failed-cancelled. A job whose
// loop is actively RUNNING observes cancel_requested at its next iteration
// boundary and terminates itself; a job parked in an earlier non-terminal
// status (no loop goroutine is watching it yet) is moved straight to
// CANCELLED here, since nothing else would ever move it out of that status.
func (s *Scheduler) CancelJob(ctx context.Context, jobID uuid.UUID) error {
	job, err := s.store.UpdateJob(ctx, jobID, func(j *domain.JobV2) (*domain.JobV2, error) {
		if j.Status.IsTerminal() {
			return j, nil
		}
		j.CancelRequested = true
		if j.Status != domain.JobRunning {
			j.Status = domain.JobCancelled
			now := time.Now().UTC()
			j.CompletedAt = &now
		}
		return j, nil
	})
	if err != nil {
		return err
	}
	s.tracker.CancelJob(ctx, jobID.String())
	if job.Status == domain.JobCancelled {
		s.publisher.JobCancelled(ctx, jobID.String())
		s.metrics.JobTerminal(job.WorkflowName, string(domain.JobCancelled), jobDuration(job))
	}
	return nil
}

// ResumeAll scans the state store for jobs this process should continue
// driving (RUNNING, owned by this OwnerID or unowned) and re-enters their
// execution loop. Called once at startup.
func (s *Scheduler) ResumeAll(ctx context.Context) error {
	jobs, err := s.store.ListJobs(ctx, store.JobFilter{Status: domain.JobRunning})
	if err != nil {
		return err
	}
	for _, job := range jobs {
		def, g, ok := s.workflows.Get(job.WorkflowName)
		if !ok {
			s.log.Warn("resume: unknown workflow, skipping", "job_id", job.ID, "workflow", job.WorkflowName)
			continue
		}
		if err := s.tracker.Resubscribe(ctx, job.ID.String(), s.pollerFor(job)); err != nil {
			s.log.Warn("resume: resubscribe failed", "job_id", job.ID, "error", err)
		}
		s.log.Info("resuming job", "job_id", job.ID, "workflow", job.WorkflowName, "current_level", job.CurrentLevel)
		go s.runLoop(context.Background(), job.ID, def, g)
	}
	return nil
}

// trackResourceFn builds the runtime.TrackResourceFunc a phase runtime uses
// to record a created resource onto jobID's created_resources, appending via
// the same CAS path every other job mutation goes through.
func (s *Scheduler) trackResourceFn(jobID uuid.UUID) runtime.TrackResourceFunc {
	return func(ctx context.Context, resourceType string, rec domain.ResourceRecord) error {
		_, err := s.store.UpdateJob(ctx, jobID, func(j *domain.JobV2) (*domain.JobV2, error) {
			j.TrackResource(resourceType, rec)
			return j, nil
		})
		return err
	}
}

func (s *Scheduler) pollerFor(job *domain.JobV2) activity.BulkPoller {
	client, err := s.resolver(job)
	if err != nil {
		return nil
	}
	return pollerAdapter{svc: client.Activities()}
}

type pollerAdapter struct {
	svc controller.ActivityService
}

func (p pollerAdapter) PollActivities(ctx context.Context, requestIDs []string) (map[string]activity.PollResult, error) {
	raw, err := p.svc.PollActivities(ctx, requestIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[string]activity.PollResult, len(raw))
	for id, r := range raw {
		status := domain.ActivityPending
		switch {
		case r.Done && r.Error == "":
			status = domain.ActivitySuccess
		case r.Done && r.Error != "":
			status = domain.ActivityFailed
		}
		out[id] = activity.PollResult{Status: status, Error: r.Error}
	}
	return out, nil
}

