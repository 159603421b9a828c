package cleanup

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/wifientist/rtools2-sub002/internal/domain"
	"github.com/wifientist/rtools2-sub002/internal/store"
)

// singleJobStore is a minimal store.Store good enough to exercise LoadPlan;
// every other method is unused by these tests.
type singleJobStore struct {
	job *domain.JobV2
}

func (s *singleJobStore) CreateJob(ctx context.Context, job *domain.JobV2) error { return nil }

func (s *singleJobStore) GetJob(ctx context.Context, jobID uuid.UUID) (*domain.JobV2, error) {
	if s.job == nil || s.job.ID != jobID {
		return nil, store.ErrNotFound
	}
	return s.job, nil
}

func (s *singleJobStore) UpdateJob(ctx context.Context, jobID uuid.UUID, mutate store.Mutator) (*domain.JobV2, error) {
	return s.job, nil
}
func (s *singleJobStore) ListJobs(ctx context.Context, filter store.JobFilter) ([]*domain.JobV2, error) {
	return nil, nil
}
func (s *singleJobStore) PutActivity(ctx context.Context, ref *domain.ActivityRef) error { return nil }
func (s *singleJobStore) GetActivity(ctx context.Context, requestID string) (*domain.ActivityRef, error) {
	return nil, store.ErrNotFound
}
func (s *singleJobStore) DeleteActivity(ctx context.Context, requestID string) error { return nil }
func (s *singleJobStore) ListActivities(ctx context.Context, jobID string) ([]*domain.ActivityRef, error) {
	return nil, nil
}
func (s *singleJobStore) PublishEvent(ctx context.Context, jobID string, event domain.Event) error {
	return nil
}
func (s *singleJobStore) Subscribe(ctx context.Context, jobID string, onEvent func(domain.Event)) (func(), error) {
	return func() {}, nil
}
func (s *singleJobStore) Close() error { return nil }

func TestLoadPlanOrdersInReverse(t *testing.T) {
	job := domain.NewJobV2("dpsk_onboarding", uuid.New(), nil, nil)
	job.TrackResource("identity_group", domain.ResourceRecord{ID: "idg-0001"})
	job.TrackResource("credential_pool", domain.ResourceRecord{ID: "pool-0001"})
	job.TrackResource("credential_pool", domain.ResourceRecord{ID: "pool-0002"})

	acts := &Activities{Store: &singleJobStore{job: job}}
	plan, err := acts.LoadPlan(context.Background(), job.ID.String())
	if err != nil {
		t.Fatalf("LoadPlan: %v", err)
	}
	if len(plan.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(plan.Items))
	}

	// credential_pool was tracked after identity_group, so it tears down
	// first; within credential_pool, pool-0002 was tracked last, so it
	// tears down before pool-0001.
	want := []string{"pool-0002", "pool-0001", "idg-0001"}
	for i, w := range want {
		if plan.Items[i].ResourceID != w {
			t.Errorf("item %d: got %s, want %s", i, plan.Items[i].ResourceID, w)
		}
	}
}

func TestLoadPlanUnknownJob(t *testing.T) {
	acts := &Activities{Store: &singleJobStore{}}
	if _, err := acts.LoadPlan(context.Background(), uuid.New().String()); err == nil {
		t.Fatal("expected error for unknown job")
	}
}
