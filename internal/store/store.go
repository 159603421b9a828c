// Package store is the Brain's State Store: durable job records, the
// activity index, and the per-job event pub/sub channel. Contract: all
// operations are non-blocking to other jobs; state for one job is never
// held while servicing another; persistence survives process restart.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/wifientist/rtools2-sub002/internal/domain"
)

// ErrConflict is returned by UpdateJob when the optimistic CAS retry budget
// is exhausted by concurrent writers.
var ErrConflict = errors.New("store: update conflict, retries exhausted")

// ErrNotFound is returned when a job or activity id has no record.
var ErrNotFound = errors.New("store: not found")

// ErrAlreadyExists is returned by CreateJob when the id is already in use.
var ErrAlreadyExists = errors.New("store: already exists")

// JobFilter narrows ListJobs, every field optional.
type JobFilter struct {
	Status       domain.JobStatus
	WorkflowName string
	UserID       uuid.UUID
	Limit        int
}

// Mutator is applied to a fresh job snapshot by UpdateJob; it returns the
// new snapshot to persist, or an error to abort the write.
type Mutator func(job *domain.JobV2) (*domain.JobV2, error)

// JobStore durably holds JobV2 records with atomic read-modify-write.
type JobStore interface {
	CreateJob(ctx context.Context, job *domain.JobV2) error
	GetJob(ctx context.Context, jobID uuid.UUID) (*domain.JobV2, error)
	UpdateJob(ctx context.Context, jobID uuid.UUID, mutate Mutator) (*domain.JobV2, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*domain.JobV2, error)
}

// ActivityStore indexes outstanding ActivityRefs, one per in-flight async
// controller operation.
type ActivityStore interface {
	PutActivity(ctx context.Context, ref *domain.ActivityRef) error
	GetActivity(ctx context.Context, requestID string) (*domain.ActivityRef, error)
	DeleteActivity(ctx context.Context, requestID string) error
	ListActivities(ctx context.Context, jobID string) ([]*domain.ActivityRef, error)
}

// EventBus is a fire-and-forget per-job publish/subscribe channel.
type EventBus interface {
	PublishEvent(ctx context.Context, jobID string, event domain.Event) error
	Subscribe(ctx context.Context, jobID string, onEvent func(domain.Event)) (stop func(), err error)
}

// Store bundles the three State Store responsibilities behind one handle,
// the shape cmd/brain wires up and hands to the Brain.
type Store interface {
	JobStore
	ActivityStore
	EventBus
	Close() error
}

// JobTTLAfterTerminal is how long a completed job record survives in the
// store, per the data model's 7-day retention.
const JobTTLAfterTerminal = 7 * 24 * time.Hour

// ActivityDeadlineGrace is added to an activity's deadline before its Redis
// key expires, so a late bulk-poll round can still observe PENDING and
// resolve it to TIMEOUT rather than have the key vanish first.
const ActivityDeadlineGrace = 1 * time.Minute
