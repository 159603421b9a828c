package executors

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/wifientist/rtools2-sub002/internal/activity"
	"github.com/wifientist/rtools2-sub002/internal/controller/r1"
	"github.com/wifientist/rtools2-sub002/internal/domain"
	"github.com/wifientist/rtools2-sub002/internal/platform/logger"
	"github.com/wifientist/rtools2-sub002/internal/runtime"
	"github.com/wifientist/rtools2-sub002/internal/store"
)

func mustLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

type fakeActivityStore struct {
	mu   sync.Mutex
	refs map[string]*domain.ActivityRef
}

func newFakeActivityStore() *fakeActivityStore {
	return &fakeActivityStore{refs: map[string]*domain.ActivityRef{}}
}

func (f *fakeActivityStore) PutActivity(ctx context.Context, ref *domain.ActivityRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refs[ref.RequestID] = ref
	return nil
}

func (f *fakeActivityStore) GetActivity(ctx context.Context, requestID string) (*domain.ActivityRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ref, ok := f.refs[requestID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return ref, nil
}

func (f *fakeActivityStore) DeleteActivity(ctx context.Context, requestID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.refs, requestID)
	return nil
}

func (f *fakeActivityStore) ListActivities(ctx context.Context, jobID string) ([]*domain.ActivityRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.ActivityRef
	for _, ref := range f.refs {
		if ref.JobID == jobID {
			out = append(out, ref)
		}
	}
	return out, nil
}

func noopTrackResource(ctx context.Context, resourceType string, rec domain.ResourceRecord) error { return nil }

func TestCloudpathGlobalPhasesChainOutputs(t *testing.T) {
	client := r1.New(r1.Config{PollsToResolve: 1})
	tracker := activity.New(newFakeActivityStore(), mustLogger(t))
	ctx := context.Background()

	rtg := runtime.New("job-1", "create_identity_group", "", "", "tenant-1", "venue-1", nil, client, tracker, nil, noopTrackResource)
	idOut, err := CreateIdentityGroupExecutor{}.Execute(ctx, rtg, nil)
	if err != nil {
		t.Fatalf("create_identity_group: %v", err)
	}
	if idOut["identity_group_id"] == "" {
		t.Fatalf("expected identity_group_id output")
	}

	rtg = runtime.New("job-1", "create_dpsk_pool", "", "", "tenant-1", "venue-1", nil, client, tracker, nil, noopTrackResource)
	poolOut, err := CreateDPSKPoolExecutor{}.Execute(ctx, rtg, idOut)
	if err != nil {
		t.Fatalf("create_dpsk_pool: %v", err)
	}
	if poolOut["pool_id"] == "" {
		t.Fatalf("expected pool_id output")
	}

	rtg = runtime.New("job-1", "create_passphrases", "unit-1", "101", "tenant-1", "venue-1", nil, client, tracker, nil, noopTrackResource)
	passOut, err := CreatePassphrasesExecutor{}.Execute(ctx, rtg, poolOut)
	if err != nil {
		t.Fatalf("create_passphrases: %v", err)
	}
	if passOut["passphrase_id"] == "" {
		t.Fatalf("expected passphrase_id output")
	}

	rtg = runtime.New("job-1", "create_psk_network", "", "", "tenant-1", "venue-1", nil, client, tracker, nil, noopTrackResource)
	netOut, err := CreatePSKNetworkExecutor{}.Execute(ctx, rtg, poolOut)
	if err != nil {
		t.Fatalf("create_psk_network: %v", err)
	}
	if netOut["network_id"] == "" {
		t.Fatalf("expected network_id output")
	}
}

func TestActivateNetworkSuspendsUntilResolved(t *testing.T) {
	client := r1.New(r1.Config{PollsToResolve: 2})
	fakeStore := newFakeActivityStore()
	tracker := activity.New(fakeStore, mustLogger(t))
	tracker.SetPollInterval(10 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go tracker.Run(ctx)

	rtg := runtime.New("job-1", "activate_network", "unit-1", "101", "tenant-1", "venue-1", nil, client, tracker, nil, noopTrackResource)
	out, err := ActivateNetworkExecutor{}.Execute(ctx, rtg, map[string]any{
		"network_id":  "psknet-0001",
		"ap_group_id": "apg-0001",
	})
	if err != nil {
		t.Fatalf("activate_network: %v", err)
	}
	if activated, _ := out["activated"].(bool); !activated {
		t.Fatalf("expected activated=true, got %+v", out)
	}
}
