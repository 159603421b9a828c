// Package events is the Brain's Event Publisher: it wraps the State Store's
// per-job pub/sub channel with the fixed, typed event taxonomy and is the
// only component that writes to a job's channel.
//
// Grounded on internal/services/notifier.go's JobNotifier
// (JobCreated/JobProgress/JobFailed/JobDone/JobCanceled) and the
// realtime.SSEHub surface, generalized from a user-id-keyed channel to a
// job-id-keyed channel and from four job-lifecycle events to the full
// ten-event taxonomy.
package events

import (
	"context"

	"github.com/wifientist/rtools2-sub002/internal/domain"
	"github.com/wifientist/rtools2-sub002/internal/platform/logger"
	"github.com/wifientist/rtools2-sub002/internal/realtime"
	"github.com/wifientist/rtools2-sub002/internal/store"
)

// Publisher is the only sanctioned way for the Brain and its phase
// executors to emit events. Publish failures are logged and swallowed:
// publisher failures must never crash the Brain.
type Publisher struct {
	bus store.EventBus
	hub *realtime.SSEHub
	log *logger.Logger
}

func New(bus store.EventBus, hub *realtime.SSEHub, log *logger.Logger) *Publisher {
	return &Publisher{bus: bus, hub: hub, log: log.With("component", "EventPublisher")}
}

func (p *Publisher) publish(ctx context.Context, jobID string, typ domain.EventType, data map[string]any) {
	ev := domain.NewEvent(jobID, typ, data)
	if err := p.bus.PublishEvent(ctx, jobID, ev); err != nil {
		p.log.Warn("event publish failed", "job_id", jobID, "type", typ, "error", err)
	}
	if p.hub != nil {
		p.hub.Broadcast(realtime.SSEMessage{
			Channel: jobID,
			Event:   realtime.SSEEvent(typ),
			Data:    data,
		})
	}
}

func (p *Publisher) JobStarted(ctx context.Context, jobID, workflowName string) {
	p.publish(ctx, jobID, domain.EventJobStarted, map[string]any{"workflow_name": workflowName})
}

func (p *Publisher) JobCompleted(ctx context.Context, jobID string, summary map[string]any) {
	p.publish(ctx, jobID, domain.EventJobCompleted, map[string]any{"summary": summary})
}

func (p *Publisher) JobFailed(ctx context.Context, jobID, reason string) {
	p.publish(ctx, jobID, domain.EventJobFailed, map[string]any{"reason": reason})
}

func (p *Publisher) JobCancelled(ctx context.Context, jobID string) {
	p.publish(ctx, jobID, domain.EventJobCancelled, nil)
}

func (p *Publisher) PhaseStarted(ctx context.Context, jobID, phaseID string) {
	p.publish(ctx, jobID, domain.EventPhaseStarted, map[string]any{"phase_id": phaseID})
}

func (p *Publisher) PhaseCompleted(ctx context.Context, jobID, phaseID string, status domain.PhaseStatus) {
	p.publish(ctx, jobID, domain.EventPhaseCompleted, map[string]any{"phase_id": phaseID, "status": status})
}

func (p *Publisher) TaskStarted(ctx context.Context, jobID, phaseID, unitID, taskID string) {
	p.publish(ctx, jobID, domain.EventTaskStarted, map[string]any{"phase_id": phaseID, "unit_id": unitID, "task_id": taskID})
}

func (p *Publisher) TaskCompleted(ctx context.Context, jobID, phaseID, unitID, taskID string, err error) {
	data := map[string]any{"phase_id": phaseID, "unit_id": unitID, "task_id": taskID}
	if err != nil {
		data["error"] = err.Error()
	}
	p.publish(ctx, jobID, domain.EventTaskCompleted, data)
}

// Progress publishes monotonically-non-decreasing overall progress for a
// job; completedWork/totalWork are unit counts, not percentages, so
// consumers can render either. currentLevel is the topological level the
// Brain is currently executing, surfaced alongside progress the same way
// it's surfaced in job status responses.
func (p *Publisher) Progress(ctx context.Context, jobID string, completedWork, totalWork, currentLevel int, message string) {
	p.publish(ctx, jobID, domain.EventProgress, map[string]any{
		"completed_work": completedWork,
		"total_work":     totalWork,
		"current_level":  currentLevel,
		"message":        message,
	})
}

func (p *Publisher) Message(ctx context.Context, jobID, level, message string, details map[string]any) {
	data := map[string]any{"level": level, "message": message}
	for k, v := range details {
		data[k] = v
	}
	p.publish(ctx, jobID, domain.EventMessage, data)
}
