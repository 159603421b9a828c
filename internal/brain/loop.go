package brain

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/wifientist/rtools2-sub002/internal/brainerr"
	"github.com/wifientist/rtools2-sub002/internal/controller"
	"github.com/wifientist/rtools2-sub002/internal/domain"
	"github.com/wifientist/rtools2-sub002/internal/graph"
	"github.com/wifientist/rtools2-sub002/internal/observability"
	"github.com/wifientist/rtools2-sub002/internal/registry"
	"github.com/wifientist/rtools2-sub002/internal/runtime"
)

var tracer = otel.Tracer("brain")

// activationSlots wraps the workflow-scoped activation-slot semaphore with a
// live count so the Brain can report gauge occupancy alongside the
// acquire/release calls that already gate per-phase remote activity.
type activationSlots struct {
	sem      *semaphore.Weighted
	inUse    atomic.Int64
	workflow string
	metrics  *observability.Metrics
}

func newActivationSlots(max int, workflow string, metrics *observability.Metrics) *activationSlots {
	return &activationSlots{sem: semaphore.NewWeighted(int64(max)), workflow: workflow, metrics: metrics}
}

func (a *activationSlots) Acquire(ctx context.Context) error {
	if err := a.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	a.metrics.SetActivationSlotsInUse(a.workflow, int(a.inUse.Add(1)))
	return nil
}

func (a *activationSlots) Release() {
	a.metrics.SetActivationSlotsInUse(a.workflow, int(a.inUse.Add(-1)))
	a.sem.Release(1)
}

// runPhaseZero executes the workflow's validate phase (conventionally its
// only level-0 phase) ahead of the main loop, since its outcome decides
// whether the job needs a human confirmation before RUNNING.
func (s *Scheduler) runPhaseZero(ctx context.Context, jobID uuid.UUID, def *domain.WorkflowDefinition, g *graph.Graph) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		s.log.Error("phase zero: load job failed", "job_id", jobID, "error", err)
		return
	}

	levels, err := g.Levels()
	if err != nil || len(levels) == 0 {
		s.failJob(ctx, jobID, brainerr.Setupf("workflow %q has no runnable levels", job.WorkflowName))
		return
	}
	phaseID := levels[0][0]

	client, err := s.resolver(job)
	if err != nil {
		s.failJob(ctx, jobID, brainerr.Wrap(brainerr.SetupError, "resolve controller", err))
		return
	}
	exec, ok := s.registry.Get(phaseID)
	if !ok {
		s.failJob(ctx, jobID, brainerr.Setupf("no executor registered for phase %q", phaseID))
		return
	}

	rt := runtime.New(jobID.String(), phaseID, "", "", job.TenantID, job.VenueID, job.Options, client, s.tracker, s.publisher, s.trackResourceFn(jobID))
	s.publisher.PhaseStarted(ctx, jobID.String(), phaseID)
	spanCtx, span := tracer.Start(ctx, "brain.phase_zero",
		trace.WithAttributes(attribute.String("job_id", jobID.String()), attribute.String("phase_id", phaseID)))
	started := time.Now()
	out, execErr := exec.Execute(spanCtx, rt, nil)
	span.End()

	job, err = s.store.UpdateJob(ctx, jobID, func(j *domain.JobV2) (*domain.JobV2, error) {
		if execErr != nil {
			j.GlobalPhaseStatus[phaseID] = domain.PhaseFailed
			j.AddError(phaseID, "", string(brainerr.CategoryOf(execErr)), execErr.Error())
			j.Status = domain.JobFailed
			now := time.Now().UTC()
			j.CompletedAt = &now
			return j, nil
		}
		j.GlobalPhaseStatus[phaseID] = domain.PhaseCompleted
		j.GlobalPhaseOutputs[phaseID] = out
		// Resolve each unit's plan from its raw input_config: fields a
		// downstream per-unit phase needs but that no phase ever produces
		// (e.g. an existing ap_group_id the caller already knows about)
		// come from here rather than from another phase's output.
		for _, um := range j.UnitMappings {
			if um == nil {
				continue
			}
			if um.Plan == nil {
				um.Plan = map[string]any{}
			}
			for k, v := range um.InputConfig {
				if _, exists := um.Plan[k]; !exists {
					um.Plan[k] = v
				}
			}
		}
		if def.RequiresConfirmation {
			j.Status = domain.JobAwaitingConfirmation
		} else {
			j.Status = domain.JobRunning
			now := time.Now().UTC()
			j.StartedAt = &now
		}
		return j, nil
	})
	if err != nil {
		s.log.Error("phase zero: persist failed", "job_id", jobID, "error", err)
		return
	}
	s.publisher.PhaseCompleted(ctx, jobID.String(), phaseID, job.GlobalPhaseStatus[phaseID])
	s.metrics.PhaseObserved(job.WorkflowName, phaseID, false, string(job.GlobalPhaseStatus[phaseID]), time.Since(started))

	if job.Status == domain.JobFailed {
		s.publisher.JobFailed(ctx, jobID.String(), "validate phase failed")
		s.metrics.JobTerminal(job.WorkflowName, string(domain.JobFailed), jobDuration(job))
		return
	}
	if job.Status == domain.JobRunning {
		go s.runLoop(context.Background(), jobID, def, g)
	}
	// AWAITING_CONFIRMATION: parked until ConfirmJob or CancelJob is called.
}

// runLoop drives a job's levels to completion. One goroutine per running job;
// resumed jobs re-enter here too, so every step must be idempotent against
// phases the store already shows as terminal.
func (s *Scheduler) runLoop(ctx context.Context, jobID uuid.UUID, def *domain.WorkflowDefinition, g *graph.Graph) {
	levels, err := g.Levels()
	if err != nil {
		s.failJob(ctx, jobID, brainerr.Setupf("workflow %q: %v", def.Name, err))
		return
	}

	phaseConcurrency := DefaultPhaseConcurrency
	if v, ok := def.DefaultOptions["concurrency"]; ok {
		if n, ok := toInt(v); ok && n > 0 {
			phaseConcurrency = n
		}
	}
	maxSlots := def.MaxActivationSlots
	if maxSlots <= 0 {
		maxSlots = 1
	}
	slotSem := newActivationSlots(maxSlots, def.Name, s.metrics)

	for levelIdx, level := range levels {
		job, err := s.store.GetJob(ctx, jobID)
		if err != nil {
			s.log.Error("loop: load job failed", "job_id", jobID, "error", err)
			return
		}
		if job.Status.IsTerminal() {
			return
		}
		if job.CancelRequested {
			s.terminateCancelled(ctx, jobID)
			return
		}

		for _, phaseID := range level {
			if job.GlobalPhaseStatus[phaseID].IsTerminal() {
				continue // already done from a prior run, e.g. after resume
			}
			p, ok := g.Phase(phaseID)
			if !ok {
				continue
			}
			if s.skipIf(p, job) {
				s.markPhaseSkipped(ctx, jobID, phaseID)
				continue
			}

			var runErr error
			if p.PerUnit {
				runErr = s.runPerUnitPhase(ctx, jobID, p, levelIdx, phaseConcurrency, slotSem)
			} else {
				runErr = s.runGlobalPhase(ctx, jobID, p, levelIdx, slotSem)
			}

			job, err = s.store.GetJob(ctx, jobID)
			if err != nil {
				s.log.Error("loop: reload job failed", "job_id", jobID, "error", err)
				return
			}
			if runErr != nil && p.Critical {
				s.failJob(ctx, jobID, runErr)
				return
			}
			if job.CancelRequested {
				s.terminateCancelled(ctx, jobID)
				return
			}
		}
	}

	s.completeJob(ctx, jobID)
}

// runGlobalPhase executes one global phase's single instance.
func (s *Scheduler) runGlobalPhase(ctx context.Context, jobID uuid.UUID, p domain.PhaseDefinition, levelIdx int, slotSem *activationSlots) error {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	client, err := s.resolver(job)
	if err != nil {
		return brainerr.Wrap(brainerr.SetupError, "resolve controller", err)
	}
	exec, ok := s.registry.Get(p.Executor)
	if !ok {
		return brainerr.Setupf("no executor registered for phase %q", p.Executor)
	}

	if p.ActivationSlot == domain.SlotAcquire {
		if err := slotSem.Acquire(ctx); err != nil {
			return err
		}
		defer slotSem.Release()
	}

	inputs := s.gatherGlobalInputs(job, p)
	rt := runtime.New(jobID.String(), p.ID, "", "", job.TenantID, job.VenueID, job.Options, client, s.tracker, s.publisher, s.trackResourceFn(jobID))

	_, _ = s.store.UpdateJob(ctx, jobID, func(j *domain.JobV2) (*domain.JobV2, error) {
		j.GlobalPhaseStatus[p.ID] = domain.PhaseRunning
		j.CurrentLevel = levelIdx
		return j, nil
	})
	s.publisher.PhaseStarted(ctx, jobID.String(), p.ID)

	spanCtx, span := tracer.Start(ctx, "brain.phase",
		trace.WithAttributes(attribute.String("job_id", jobID.String()), attribute.String("phase_id", p.ID)))
	started := time.Now()
	out, execErr := exec.Execute(spanCtx, rt, inputs)
	span.End()

	job, err = s.store.UpdateJob(ctx, jobID, func(j *domain.JobV2) (*domain.JobV2, error) {
		if execErr != nil {
			j.GlobalPhaseStatus[p.ID] = domain.PhaseFailed
			j.AddError(p.ID, "", string(brainerr.CategoryOf(execErr)), execErr.Error())
			return j, nil
		}
		j.GlobalPhaseStatus[p.ID] = domain.PhaseCompleted
		j.GlobalPhaseOutputs[p.ID] = out
		return j, nil
	})
	if err != nil {
		return err
	}
	s.publisher.PhaseCompleted(ctx, jobID.String(), p.ID, job.GlobalPhaseStatus[p.ID])
	s.metrics.PhaseObserved(job.WorkflowName, p.ID, false, string(job.GlobalPhaseStatus[p.ID]), time.Since(started))
	s.publishProgress(ctx, job)
	if execErr != nil {
		return brainerr.Wrap(brainerr.CategoryOf(execErr), fmt.Sprintf("phase %s", p.ID), execErr)
	}
	return nil
}

// runPerUnitPhase fans this phase out across every non-terminal, ready unit
// under the phase's concurrency cap, then aggregates the per-unit outputs
// into this phase's global output slot for downstream global phases.
func (s *Scheduler) runPerUnitPhase(ctx context.Context, jobID uuid.UUID, p domain.PhaseDefinition, levelIdx, concurrency int, slotSem *activationSlots) error {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	client, err := s.resolver(job)
	if err != nil {
		return brainerr.Wrap(brainerr.SetupError, "resolve controller", err)
	}
	exec, ok := s.registry.Get(p.Executor)
	if !ok {
		return brainerr.Setupf("no executor registered for phase %q", p.Executor)
	}

	var unitIDs []string
	for unitID, um := range job.UnitMappings {
		if um.Failed() || um.PhaseStatus[p.ID].IsTerminal() {
			continue
		}
		if !s.unitUpstreamReady(job, p, unitID) {
			continue
		}
		unitIDs = append(unitIDs, unitID)
	}

	_, _ = s.store.UpdateJob(ctx, jobID, func(j *domain.JobV2) (*domain.JobV2, error) {
		j.GlobalPhaseStatus[p.ID] = domain.PhaseRunning
		j.CurrentLevel = levelIdx
		return j, nil
	})
	s.publisher.PhaseStarted(ctx, jobID.String(), p.ID)
	s.metrics.SetUnitsInFlight(job.WorkflowName, p.ID, len(unitIDs))

	started := time.Now()
	outcome := runtime.ParallelMap(ctx, unitIDs, concurrency, func(ctx context.Context, unitID string) error {
		if p.ActivationSlot == domain.SlotAcquire {
			if err := slotSem.Acquire(ctx); err != nil {
				return err
			}
			defer slotSem.Release()
		}
		return s.runUnitTask(ctx, jobID, p, unitID, client, exec)
	})
	s.metrics.SetUnitsInFlight(job.WorkflowName, p.ID, 0)

	// A per-unit phase is FAILED globally iff it is critical and at least
	// one unit failed; units that succeeded stay COMPLETED regardless.
	anyFailed := len(outcome.Failed) > 0

	job, err = s.store.UpdateJob(ctx, jobID, func(j *domain.JobV2) (*domain.JobV2, error) {
		switch {
		case len(unitIDs) == 0:
			// nothing was eligible this pass; status is revisited on a later level
		case anyFailed && p.Critical:
			j.GlobalPhaseStatus[p.ID] = domain.PhaseFailed
		default:
			j.GlobalPhaseStatus[p.ID] = domain.PhaseCompleted
		}
		j.GlobalPhaseOutputs[p.ID] = aggregateUnitOutputs(j, p.ID, unitIDs)
		return j, nil
	})
	if err != nil {
		return err
	}
	s.publisher.PhaseCompleted(ctx, jobID.String(), p.ID, job.GlobalPhaseStatus[p.ID])
	s.metrics.PhaseObserved(job.WorkflowName, p.ID, true, string(job.GlobalPhaseStatus[p.ID]), time.Since(started))
	s.publishProgress(ctx, job)

	if anyFailed && p.Critical {
		return brainerr.Remotef(nil, "phase %s failed for %d/%d units", p.ID, len(outcome.Failed), len(unitIDs))
	}
	return nil
}

// runUnitTask executes one phase instance for one unit, persisting its
// per-unit status/output/error regardless of outcome.
func (s *Scheduler) runUnitTask(ctx context.Context, jobID uuid.UUID, p domain.PhaseDefinition, unitID string, client controller.Client, exec registry.PhaseExecutor) error {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	um := job.UnitMappings[unitID]
	if um == nil {
		return brainerr.Internalf(nil, "unit %s vanished mid-phase", unitID)
	}

	inputs := s.gatherUnitInputs(job, p, unitID)
	rt := runtime.New(jobID.String(), p.ID, unitID, um.UnitNumber, job.TenantID, job.VenueID, job.Options, client, s.tracker, s.publisher, s.trackResourceFn(jobID))

	taskID := fmt.Sprintf("%s:%s", p.ID, unitID)
	s.publisher.TaskStarted(ctx, jobID.String(), p.ID, unitID, taskID)
	spanCtx, span := tracer.Start(ctx, "brain.unit_task", trace.WithAttributes(
		attribute.String("job_id", jobID.String()), attribute.String("phase_id", p.ID), attribute.String("unit_id", unitID)))
	out, execErr := exec.Execute(spanCtx, rt, inputs)
	span.End()
	s.publisher.TaskCompleted(ctx, jobID.String(), p.ID, unitID, taskID, execErr)

	_, updErr := s.store.UpdateJob(ctx, jobID, func(j *domain.JobV2) (*domain.JobV2, error) {
		u := j.UnitMappings[unitID]
		if u == nil {
			return j, nil
		}
		if execErr != nil {
			u.PhaseStatus[p.ID] = domain.PhaseFailed
			u.Error = execErr.Error()
			j.AddError(p.ID, unitID, string(brainerr.CategoryOf(execErr)), execErr.Error())
			if p.Critical {
				u.Status = domain.PhaseFailed
			}
			return j, nil
		}
		u.PhaseStatus[p.ID] = domain.PhaseCompleted
		for k, v := range out {
			u.PhaseOutput[k] = v
		}
		return j, nil
	})
	if updErr != nil {
		return updErr
	}
	return execErr
}

// publishProgress emits the job's current unit-task progress: completed_work
// and total_work are counted in per-unit phase/unit slots, not percentages,
// and are recomputed fresh from terminal phase status each call, which keeps
// them monotonically non-decreasing without a separate running counter.
func (s *Scheduler) publishProgress(ctx context.Context, job *domain.JobV2) {
	completed, total := unitProgress(job)
	s.publisher.Progress(ctx, job.ID.String(), completed, total, job.CurrentLevel, "")
}

// unitProgress counts, across every per-unit phase declared on the job, how
// many (phase, unit) task slots exist and how many have reached a terminal
// per-unit status.
func unitProgress(job *domain.JobV2) (completed, total int) {
	for _, p := range job.PhaseDefinitions {
		if !p.PerUnit {
			continue
		}
		total += len(job.UnitMappings)
		for _, um := range job.UnitMappings {
			if um == nil {
				continue
			}
			if um.PhaseStatus[p.ID].IsTerminal() {
				completed++
			}
		}
	}
	return completed, total
}

// gatherGlobalInputs feeds a global phase's named inputs from prior global
// phase outputs.
func (s *Scheduler) gatherGlobalInputs(job *domain.JobV2, p domain.PhaseDefinition) map[string]any {
	in := map[string]any{}
	for _, name := range p.Inputs {
		for _, out := range job.GlobalPhaseOutputs {
			if v, ok := out[name]; ok {
				in[name] = v
			}
		}
	}
	return in
}

// gatherUnitInputs feeds a per-unit phase's named inputs from, in order:
// that unit's own prior phase outputs, its per-unit plan (fields resolved
// from input_config at phase-0 validation, e.g. an existing ap_group_id a
// per-unit phase needs but no phase ever produces), its raw input_config,
// and finally global phase outputs (e.g. a pool_id produced once and shared
// by every unit).
func (s *Scheduler) gatherUnitInputs(job *domain.JobV2, p domain.PhaseDefinition, unitID string) map[string]any {
	in := map[string]any{}
	um := job.UnitMappings[unitID]
	for _, name := range p.Inputs {
		if um != nil {
			if v, ok := um.PhaseOutput[name]; ok {
				in[name] = v
				continue
			}
			if v, ok := um.Plan[name]; ok {
				in[name] = v
				continue
			}
			if v, ok := um.InputConfig[name]; ok {
				in[name] = v
				continue
			}
		}
		for _, out := range job.GlobalPhaseOutputs {
			if v, ok := out[name]; ok {
				in[name] = v
				break
			}
		}
	}
	return in
}

// unitUpstreamReady reports whether every phase p depends on has completed
// for this specific unit (for per-unit dependencies) or globally (for
// global dependencies).
func (s *Scheduler) unitUpstreamReady(job *domain.JobV2, p domain.PhaseDefinition, unitID string) bool {
	um := job.UnitMappings[unitID]
	for _, dep := range p.DependsOn {
		if status, ok := job.GlobalPhaseStatus[dep]; ok && status == domain.PhaseCompleted {
			continue
		}
		if um != nil && um.PhaseStatus[dep] == domain.PhaseCompleted {
			continue
		}
		return false
	}
	return true
}

// aggregateUnitOutputs merges every ready unit's outputs into one map keyed
// the same as a global phase's outputs, so a later global phase can consume
// it uniformly: numeric fields sum, list fields concatenate, map fields
// merge key-by-key, and everything else is collected into a list keyed by
// field name (one entry per unit, in unitIDs order). A unit's PhaseOutput
// is a single map shared by all of its phases, so the merge covers every
// output the unit has produced so far, not only phaseID's; phaseID itself
// is not read.
func aggregateUnitOutputs(job *domain.JobV2, phaseID string, unitIDs []string) map[string]any {
	agg := map[string]any{}
	for _, unitID := range unitIDs {
		um := job.UnitMappings[unitID]
		if um == nil {
			continue
		}
		for k, v := range um.PhaseOutput {
			switch existing := agg[k].(type) {
			case nil:
				switch val := v.(type) {
				case int:
					agg[k] = val
				case float64:
					agg[k] = val
				case []any:
					agg[k] = append([]any(nil), val...)
				case map[string]any:
					merged := make(map[string]any, len(val))
					for mk, mv := range val {
						merged[mk] = mv
					}
					agg[k] = merged
				default:
					agg[k] = []any{v}
				}
			case int:
				if f, ok := v.(float64); ok {
					agg[k] = float64(existing) + f
				} else if n, ok := toInt(v); ok {
					agg[k] = existing + n
				}
			case float64:
				if f, ok := v.(float64); ok {
					agg[k] = existing + f
				} else if n, ok := toInt(v); ok {
					agg[k] = existing + float64(n)
				}
			case []any:
				if val, ok := v.([]any); ok {
					agg[k] = append(existing, val...)
				} else {
					agg[k] = append(existing, v)
				}
			case map[string]any:
				if val, ok := v.(map[string]any); ok {
					for mk, mv := range val {
						existing[mk] = mv
					}
					agg[k] = existing
				}
			}
		}
	}
	return agg
}

// skipIf reports whether p's skip_if expression evaluates true against the
// job's current options and prior outputs (the outputs of global phases
// recorded so far; an option of the same name takes precedence).
// Expressions are restricted to a single "name == literal",
// "name != literal" or bare "name" truthiness check, a deliberately small
// evaluator rather than a general expression language, since every
// workflow shipped in internal/workflowdef only ever needs to gate a phase
// on a boolean option.
func (s *Scheduler) skipIf(p domain.PhaseDefinition, job *domain.JobV2) bool {
	if p.SkipIf == "" {
		return false
	}
	vars := make(map[string]any, len(job.Options))
	for _, outputs := range job.GlobalPhaseOutputs {
		for k, v := range outputs {
			vars[k] = v
		}
	}
	for k, v := range job.Options {
		vars[k] = v
	}
	return evalSkipIf(p.SkipIf, vars)
}

func (s *Scheduler) markPhaseSkipped(ctx context.Context, jobID uuid.UUID, phaseID string) {
	_, _ = s.store.UpdateJob(ctx, jobID, func(j *domain.JobV2) (*domain.JobV2, error) {
		j.GlobalPhaseStatus[phaseID] = domain.PhaseSkipped
		for _, um := range j.UnitMappings {
			if !um.PhaseStatus[phaseID].IsTerminal() {
				um.PhaseStatus[phaseID] = domain.PhaseSkipped
			}
		}
		return j, nil
	})
	s.publisher.PhaseCompleted(ctx, jobID.String(), phaseID, domain.PhaseSkipped)
}

func (s *Scheduler) failJob(ctx context.Context, jobID uuid.UUID, cause error) {
	job, err := s.store.UpdateJob(ctx, jobID, func(j *domain.JobV2) (*domain.JobV2, error) {
		if j.Status.IsTerminal() {
			return j, nil
		}
		j.Status = domain.JobFailed
		j.AddError("", "", string(brainerr.CategoryOf(cause)), cause.Error())
		now := time.Now().UTC()
		j.CompletedAt = &now
		return j, nil
	})
	if err != nil {
		s.log.Error("failJob: persist failed", "job_id", jobID, "error", err)
		return
	}
	s.tracker.CancelJob(ctx, jobID.String())
	if job.Status == domain.JobFailed {
		s.publisher.JobFailed(ctx, jobID.String(), cause.Error())
		s.metrics.JobTerminal(job.WorkflowName, string(domain.JobFailed), jobDuration(job))
		s.triggerCleanup(ctx, job)
	}
}

func (s *Scheduler) completeJob(ctx context.Context, jobID uuid.UUID) {
	job, err := s.store.UpdateJob(ctx, jobID, func(j *domain.JobV2) (*domain.JobV2, error) {
		if j.Status.IsTerminal() {
			return j, nil
		}
		j.Status = domain.JobCompleted
		now := time.Now().UTC()
		j.CompletedAt = &now
		j.Summary = map[string]any{
			"errors":       len(j.Errors),
			"units":        len(j.UnitMappings),
			"completed_at": now,
		}
		return j, nil
	})
	if err != nil {
		s.log.Error("completeJob: persist failed", "job_id", jobID, "error", err)
		return
	}
	if job.Status == domain.JobCompleted {
		s.publisher.JobCompleted(ctx, jobID.String(), job.Summary)
		s.metrics.JobTerminal(job.WorkflowName, string(domain.JobCompleted), jobDuration(job))
	}
}

func (s *Scheduler) terminateCancelled(ctx context.Context, jobID uuid.UUID) {
	job, err := s.store.UpdateJob(ctx, jobID, func(j *domain.JobV2) (*domain.JobV2, error) {
		if j.Status.IsTerminal() {
			return j, nil
		}
		j.Status = domain.JobCancelled
		now := time.Now().UTC()
		j.CompletedAt = &now
		return j, nil
	})
	if err != nil {
		s.log.Error("terminateCancelled: persist failed", "job_id", jobID, "error", err)
		return
	}
	s.tracker.CancelJob(ctx, jobID.String())
	if job.Status == domain.JobCancelled {
		s.publisher.JobCancelled(ctx, jobID.String())
		s.metrics.JobTerminal(job.WorkflowName, string(domain.JobCancelled), jobDuration(job))
		s.triggerCleanup(ctx, job)
	}
}

// triggerCleanup starts the rollback workflow for a terminally failed or
// cancelled job that created at least one remote resource. Best-effort and
// fire-and-forget: a failure to enqueue rollback is logged, not retried
// here, since the job itself is already done and the cleanup workflow can
// always be started again by hand against the same job id.
func (s *Scheduler) triggerCleanup(ctx context.Context, job *domain.JobV2) {
	if s.cleanup == nil || len(job.CreatedResources) == 0 {
		return
	}
	if err := s.cleanup.Trigger(ctx, job.ID.String()); err != nil {
		s.log.Error("triggerCleanup: failed to start rollback workflow", "job_id", job.ID, "error", err)
	}
}

// jobDuration is wall time from admission to terminal status, falling back
// to CreatedAt when a job never reached RUNNING (e.g. failed at phase 0).
func jobDuration(job *domain.JobV2) time.Duration {
	start := job.CreatedAt
	if job.StartedAt != nil {
		start = *job.StartedAt
	}
	end := time.Now().UTC()
	if job.CompletedAt != nil {
		end = *job.CompletedAt
	}
	return end.Sub(start)
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
