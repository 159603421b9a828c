package brain

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/wifientist/rtools2-sub002/internal/activity"
	"github.com/wifientist/rtools2-sub002/internal/controller"
	"github.com/wifientist/rtools2-sub002/internal/controller/sz"
	"github.com/wifientist/rtools2-sub002/internal/domain"
	"github.com/wifientist/rtools2-sub002/internal/events"
	"github.com/wifientist/rtools2-sub002/internal/executors"
	"github.com/wifientist/rtools2-sub002/internal/observability"
	"github.com/wifientist/rtools2-sub002/internal/platform/logger"
	"github.com/wifientist/rtools2-sub002/internal/realtime"
	"github.com/wifientist/rtools2-sub002/internal/registry"
	"github.com/wifientist/rtools2-sub002/internal/store"
	"github.com/wifientist/rtools2-sub002/internal/workflowdef"
)

// memStore is an in-memory store.Store good enough to drive the Brain's
// execution loop in tests: no TTLs, no CAS contention modeling, just a
// mutex-guarded map mirroring the Redis store's external contract.
type memStore struct {
	mu         sync.Mutex
	jobs       map[uuid.UUID]*domain.JobV2
	activities map[string]*domain.ActivityRef
}

func newMemStore() *memStore {
	return &memStore{
		jobs:       map[uuid.UUID]*domain.JobV2{},
		activities: map[string]*domain.ActivityRef{},
	}
}

func (m *memStore) CreateJob(ctx context.Context, job *domain.JobV2) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.jobs[job.ID]; exists {
		return store.ErrAlreadyExists
	}
	m.jobs[job.ID] = job.Clone()
	return nil
}

func (m *memStore) GetJob(ctx context.Context, jobID uuid.UUID) (*domain.JobV2, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return job.Clone(), nil
}

func (m *memStore) UpdateJob(ctx context.Context, jobID uuid.UUID, mutate store.Mutator) (*domain.JobV2, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, store.ErrNotFound
	}
	updated, err := mutate(job.Clone())
	if err != nil {
		return nil, err
	}
	m.jobs[jobID] = updated.Clone()
	return updated.Clone(), nil
}

func (m *memStore) ListJobs(ctx context.Context, filter store.JobFilter) ([]*domain.JobV2, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.JobV2
	for _, job := range m.jobs {
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		out = append(out, job.Clone())
	}
	return out, nil
}

func (m *memStore) PutActivity(ctx context.Context, ref *domain.ActivityRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *ref
	m.activities[ref.RequestID] = &cp
	return nil
}

func (m *memStore) GetActivity(ctx context.Context, requestID string) (*domain.ActivityRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref, ok := m.activities[requestID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *ref
	return &cp, nil
}

func (m *memStore) DeleteActivity(ctx context.Context, requestID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.activities, requestID)
	return nil
}

func (m *memStore) ListActivities(ctx context.Context, jobID string) ([]*domain.ActivityRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.ActivityRef
	for _, ref := range m.activities {
		if ref.JobID == jobID {
			cp := *ref
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) PublishEvent(ctx context.Context, jobID string, event domain.Event) error { return nil }

func (m *memStore) Subscribe(ctx context.Context, jobID string, onEvent func(domain.Event)) (func(), error) {
	return func() {}, nil
}

func (m *memStore) Close() error { return nil }

// failingAPGroupClient wraps a real controller.Client and fails
// APGroups().Create for one named unit, so a test can exercise a single
// unit failing a critical per-unit phase while its siblings succeed.
type failingAPGroupClient struct {
	controller.Client
	failName string
}

func (c failingAPGroupClient) APGroups() controller.APGroupService {
	return failingAPGroups{inner: c.Client.APGroups(), failName: c.failName}
}

type failingAPGroups struct {
	inner    controller.APGroupService
	failName string
}

func (s failingAPGroups) Create(ctx context.Context, venueID string, spec map[string]any) (controller.MutateResult, error) {
	if name, _ := spec["name"].(string); name == s.failName {
		return controller.MutateResult{}, fmt.Errorf("ap group creation refused for %s", name)
	}
	return s.inner.Create(ctx, venueID, spec)
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func newTestScheduler(t *testing.T, pollsToResolve int) (*Scheduler, *memStore, *workflowdef.Set) {
	t.Helper()
	client := sz.New(sz.Config{PollsToResolve: pollsToResolve})
	return newTestSchedulerWithClient(t, client)
}

func newTestSchedulerWithClient(t *testing.T, client controller.Client) (*Scheduler, *memStore, *workflowdef.Set) {
	t.Helper()
	st := newMemStore()
	reg := registry.New()
	if err := executors.RegisterAll(reg); err != nil {
		t.Fatalf("RegisterAll: %v", err)
	}
	set, err := workflowdef.Load()
	if err != nil {
		t.Fatalf("workflowdef.Load: %v", err)
	}
	if errs := set.ValidateAgainst(reg); len(errs) > 0 {
		t.Fatalf("ValidateAgainst: %v", errs)
	}

	log := testLogger(t)
	tracker := activity.New(st, log)
	tracker.SetPollInterval(10 * time.Millisecond)

	hub := realtime.NewSSEHub(log)
	publisher := events.New(st, hub, log)

	resolver := func(job *domain.JobV2) (controller.Client, error) { return client, nil }

	sched := New("test-owner", st, reg, set, tracker, publisher, resolver, observability.NewMetrics(), log)
	return sched, st, set
}

func waitForStatus(t *testing.T, sched *Scheduler, jobID uuid.UUID, want domain.JobStatus, timeout time.Duration) *domain.JobV2 {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		job, err := sched.GetJob(context.Background(), jobID)
		if err != nil {
			t.Fatalf("GetJob: %v", err)
		}
		if job.Status == want || job.Status.IsTerminal() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach status %s within %s", jobID, want, timeout)
	return nil
}

func waitForTerminal(t *testing.T, sched *Scheduler, jobID uuid.UUID, timeout time.Duration) *domain.JobV2 {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		job, err := sched.GetJob(context.Background(), jobID)
		if err != nil {
			t.Fatalf("GetJob: %v", err)
		}
		if job.Status.IsTerminal() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach a terminal status within %s", jobID, timeout)
	return nil
}

func TestPerUnitSSIDJobRunsToCompletion(t *testing.T) {
	sched, _, _ := newTestScheduler(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		// drive the activity tracker's bulk-poll loop for the duration of the test
		sched.tracker.Run(ctx)
	}()

	job, err := sched.StartJob(ctx, "per_unit_ssid", uuid.New(), "controller-1", "venue-1", "tenant-1",
		[]UnitInput{
			{UnitID: "unit-1", UnitNumber: "101"},
			{UnitID: "unit-2", UnitNumber: "102"},
		}, nil)
	if err != nil {
		t.Fatalf("StartJob: %v", err)
	}

	waitForStatus(t, sched, job.ID, domain.JobAwaitingConfirmation, 2*time.Second)
	if err := sched.ConfirmJob(ctx, job.ID); err != nil {
		t.Fatalf("ConfirmJob: %v", err)
	}

	final := waitForTerminal(t, sched, job.ID, 5*time.Second)
	if final.Status != domain.JobCompleted {
		t.Fatalf("expected COMPLETED, got %s (errors=%v)", final.Status, final.Errors)
	}
	for _, unitID := range []string{"unit-1", "unit-2"} {
		um := final.UnitMappings[unitID]
		if um == nil {
			t.Fatalf("missing unit mapping for %s", unitID)
		}
		if um.PhaseStatus["activate_ssids"] != domain.PhaseCompleted {
			t.Fatalf("unit %s: expected activate_ssids COMPLETED, got %s", unitID, um.PhaseStatus["activate_ssids"])
		}
	}
}

// TestCriticalPerUnitPhaseFailsJobButKeepsSucceedingUnitsCompleted covers
// the case where one unit out of several fails a critical per-unit phase:
// the phase must be globally FAILED and the job must end FAILED, but units
// that succeeded keep their own COMPLETED per-unit status rather than being
// dragged down by the one that failed.
func TestCriticalPerUnitPhaseFailsJobButKeepsSucceedingUnitsCompleted(t *testing.T) {
	base := sz.New(sz.Config{PollsToResolve: 1})
	client := failingAPGroupClient{Client: base, failName: "unit-102-ap-group"}
	sched, _, _ := newTestSchedulerWithClient(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.tracker.Run(ctx)

	job, err := sched.StartJob(ctx, "per_unit_ssid", uuid.New(), "controller-1", "venue-1", "tenant-1",
		[]UnitInput{
			{UnitID: "unit-1", UnitNumber: "101"},
			{UnitID: "unit-2", UnitNumber: "102"},
			{UnitID: "unit-3", UnitNumber: "103"},
		}, nil)
	if err != nil {
		t.Fatalf("StartJob: %v", err)
	}

	waitForStatus(t, sched, job.ID, domain.JobAwaitingConfirmation, 2*time.Second)
	if err := sched.ConfirmJob(ctx, job.ID); err != nil {
		t.Fatalf("ConfirmJob: %v", err)
	}

	final := waitForTerminal(t, sched, job.ID, 5*time.Second)
	if final.Status != domain.JobFailed {
		t.Fatalf("expected FAILED, got %s (errors=%v)", final.Status, final.Errors)
	}
	if final.GlobalPhaseStatus["create_ap_groups"] != domain.PhaseFailed {
		t.Fatalf("expected create_ap_groups globally FAILED, got %s", final.GlobalPhaseStatus["create_ap_groups"])
	}

	for _, unitID := range []string{"unit-1", "unit-3"} {
		um := final.UnitMappings[unitID]
		if um == nil {
			t.Fatalf("missing unit mapping for %s", unitID)
		}
		if um.PhaseStatus["create_ap_groups"] != domain.PhaseCompleted {
			t.Fatalf("unit %s: expected create_ap_groups COMPLETED, got %s", unitID, um.PhaseStatus["create_ap_groups"])
		}
	}
	if um := final.UnitMappings["unit-2"]; um == nil || um.PhaseStatus["create_ap_groups"] != domain.PhaseFailed {
		t.Fatalf("unit-2: expected create_ap_groups FAILED, got %v", um)
	}
}

func TestCancelJobStopsSchedulingFurtherPhases(t *testing.T) {
	sched, _, _ := newTestScheduler(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.tracker.Run(ctx)

	job, err := sched.StartJob(ctx, "per_unit_ssid", uuid.New(), "controller-1", "venue-1", "tenant-1",
		[]UnitInput{{UnitID: "unit-1", UnitNumber: "101"}}, nil)
	if err != nil {
		t.Fatalf("StartJob: %v", err)
	}

	waitForStatus(t, sched, job.ID, domain.JobAwaitingConfirmation, 2*time.Second)
	if err := sched.CancelJob(ctx, job.ID); err != nil {
		t.Fatalf("CancelJob: %v", err)
	}

	final := waitForTerminal(t, sched, job.ID, 2*time.Second)
	if final.Status != domain.JobCancelled {
		t.Fatalf("expected CANCELLED, got %s", final.Status)
	}
}
