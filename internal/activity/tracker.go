// Package activity implements the Brain's Activity Tracker: it centralizes
// polling of asynchronous controller operations so waiters don't each poll
// their own request_id individually.
//
// Grounded on the teacher's ticker-driven polling loop shape in
// internal/temporalx/jobrun/activities.go (per-activity and per-job
// deadlines) combined with the waiter/broadcast pattern of
// internal/jobs/runtime/waitpoint.go: each outstanding activity gets a
// channel that is closed (not sent-once) on resolution so every concurrent
// Wait unblocks with the same value, mirroring how WaitForUser parks a
// goroutine on a durable signal.
package activity

import (
	"context"
	"sync"
	"time"

	"github.com/wifientist/rtools2-sub002/internal/domain"
	"github.com/wifientist/rtools2-sub002/internal/observability"
	"github.com/wifientist/rtools2-sub002/internal/platform/logger"
	"github.com/wifientist/rtools2-sub002/internal/store"
)

// DefaultDeadline is the per-request timeout applied when Register is
// called with deadline <= 0.
const DefaultDeadline = 3 * time.Minute

// DefaultPollInterval is how often the tracker issues a bulk status query
// per controller.
const DefaultPollInterval = 3 * time.Second

// PollResult is one controller's answer about one request_id.
type PollResult struct {
	Status domain.ActivityStatus
	Error  string
}

// BulkPoller issues one round-trip status query for many outstanding
// request ids against a single controller. Implemented by
// internal/controller clients.
type BulkPoller interface {
	PollActivities(ctx context.Context, requestIDs []string) (map[string]PollResult, error)
}

// ActivityResult is what Wait/WaitBatch return to callers.
type ActivityResult struct {
	RequestID string
	Status    domain.ActivityStatus
	Error     string
}

type entry struct {
	poller BulkPoller
	done   chan struct{}
	once   sync.Once
}

// Tracker is the live, in-process half of the Activity Tracker; durable
// state lives in store.ActivityStore so it survives a Brain restart.
type Tracker struct {
	store   store.ActivityStore
	log     *logger.Logger
	metrics *observability.Metrics

	pollInterval time.Duration

	mu      sync.Mutex
	entries map[string]*entry
}

func New(activityStore store.ActivityStore, log *logger.Logger) *Tracker {
	return &Tracker{
		store:        activityStore,
		log:          log.With("component", "ActivityTracker"),
		pollInterval: DefaultPollInterval,
		entries:      make(map[string]*entry),
	}
}

// SetMetrics attaches the Brain metrics sink for bulk-poll latency and
// timeout counts. Optional: a Tracker with no metrics attached simply
// doesn't export them.
func (t *Tracker) SetMetrics(m *observability.Metrics) {
	t.metrics = m
}

// SetPollInterval overrides the bulk-poll cadence; intended for tests that
// can't wait out the production default.
func (t *Tracker) SetPollInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pollInterval = d
}

// Register records a new outstanding activity and returns once it is
// durably stored and ready to be waited on.
func (t *Tracker) Register(ctx context.Context, requestID, jobID, unitID, phaseID string, poller BulkPoller, deadline time.Duration) error {
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	now := time.Now().UTC()
	ref := &domain.ActivityRef{
		RequestID: requestID,
		JobID:     jobID,
		UnitID:    unitID,
		PhaseID:   phaseID,
		StartedAt: now,
		Deadline:  now.Add(deadline),
		Status:    domain.ActivityPending,
	}
	if err := t.store.PutActivity(ctx, ref); err != nil {
		return err
	}
	t.mu.Lock()
	t.entries[requestID] = &entry{poller: poller, done: make(chan struct{})}
	t.mu.Unlock()
	return nil
}

// Wait suspends until requestID resolves, or ctx is cancelled. A call on an
// id that is already resolved returns immediately.
func (t *Tracker) Wait(ctx context.Context, requestID string) (ActivityResult, error) {
	t.mu.Lock()
	e, tracked := t.entries[requestID]
	t.mu.Unlock()

	if tracked {
		select {
		case <-e.done:
		case <-ctx.Done():
			return ActivityResult{}, ctx.Err()
		}
	}

	ref, err := t.store.GetActivity(ctx, requestID)
	if err == store.ErrNotFound {
		// Resolved and since cleaned up; treat as success-shaped unknown.
		return ActivityResult{RequestID: requestID, Status: domain.ActivitySuccess}, nil
	}
	if err != nil {
		return ActivityResult{}, err
	}
	return ActivityResult{RequestID: requestID, Status: ref.Status, Error: ref.Error}, nil
}

// WaitBatch waits on every id, order-preserving.
func (t *Tracker) WaitBatch(ctx context.Context, requestIDs []string) ([]ActivityResult, error) {
	out := make([]ActivityResult, len(requestIDs))
	var wg sync.WaitGroup
	errs := make([]error, len(requestIDs))
	for i, id := range requestIDs {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			res, err := t.Wait(ctx, id)
			out[i] = res
			errs[i] = err
		}(i, id)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

// Run drives the bulk-poll loop until ctx is cancelled. One in-flight bulk
// poll per controller at a time: entries are grouped by their BulkPoller
// instance before each round.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.pollOnce(ctx)
		}
	}
}

func (t *Tracker) pollOnce(ctx context.Context) {
	groups := map[BulkPoller][]string{}
	t.mu.Lock()
	for id, e := range t.entries {
		groups[e.poller] = append(groups[e.poller], id)
	}
	t.mu.Unlock()

	for poller, ids := range groups {
		if poller == nil || len(ids) == 0 {
			continue
		}
		started := time.Now()
		results, err := poller.PollActivities(ctx, ids)
		t.metrics.ActivityPollObserved(time.Since(started))
		if err != nil {
			t.log.Warn("activity tracker: bulk poll failed", "error", err, "count", len(ids))
			continue
		}
		for id, res := range results {
			t.resolve(ctx, id, res.Status, res.Error)
		}
	}
	t.sweepDeadlines(ctx)
}

// sweepDeadlines resolves any PENDING activity past its deadline as TIMEOUT.
func (t *Tracker) sweepDeadlines(ctx context.Context) {
	t.mu.Lock()
	ids := make([]string, 0, len(t.entries))
	for id := range t.entries {
		ids = append(ids, id)
	}
	t.mu.Unlock()

	now := time.Now().UTC()
	for _, id := range ids {
		ref, err := t.store.GetActivity(ctx, id)
		if err != nil {
			continue
		}
		if ref.Status == domain.ActivityPending && now.After(ref.Deadline) {
			t.resolve(ctx, id, domain.ActivityTimeout, "activity deadline exceeded")
			t.metrics.ActivityTimedOut()
		}
	}
}

func (t *Tracker) resolve(ctx context.Context, requestID string, status domain.ActivityStatus, errMsg string) {
	ref, err := t.store.GetActivity(ctx, requestID)
	if err != nil {
		return
	}
	if ref.Status.IsTerminal() {
		return
	}
	ref.Status = status
	ref.Error = errMsg
	_ = t.store.PutActivity(ctx, ref)

	t.mu.Lock()
	e, ok := t.entries[requestID]
	t.mu.Unlock()
	if ok {
		e.once.Do(func() { close(e.done) })
	}
}

// CancelJob resolves every still-pending activity for jobID as FAILED with
// reason "cancelled", per the Brain's cancellation semantics.
func (t *Tracker) CancelJob(ctx context.Context, jobID string) {
	refs, err := t.store.ListActivities(ctx, jobID)
	if err != nil {
		return
	}
	for _, ref := range refs {
		if !ref.Status.IsTerminal() {
			t.resolve(ctx, ref.RequestID, domain.ActivityFailed, "cancelled")
		}
	}
}

// Forget releases the in-process waiter bookkeeping for requestID. Call
// after a job terminates so the tracker doesn't accumulate entries for
// resolved activities across process lifetime.
func (t *Tracker) Forget(requestID string) {
	t.mu.Lock()
	delete(t.entries, requestID)
	t.mu.Unlock()
}

// Resubscribe re-reads outstanding activities for jobID from the state
// store and re-enters them into the in-process waiter set with poller,
// used when the Brain resumes a RUNNING job after a restart.
func (t *Tracker) Resubscribe(ctx context.Context, jobID string, poller BulkPoller) error {
	refs, err := t.store.ListActivities(ctx, jobID)
	if err != nil {
		return err
	}
	t.mu.Lock()
	for _, ref := range refs {
		if ref.Status.IsTerminal() {
			continue
		}
		if _, exists := t.entries[ref.RequestID]; !exists {
			t.entries[ref.RequestID] = &entry{poller: poller, done: make(chan struct{})}
		}
	}
	t.mu.Unlock()
	return nil
}
