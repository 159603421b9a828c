package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/wifientist/rtools2-sub002/internal/activity"
	"github.com/wifientist/rtools2-sub002/internal/brain"
	"github.com/wifientist/rtools2-sub002/internal/controller"
	"github.com/wifientist/rtools2-sub002/internal/controller/sz"
	"github.com/wifientist/rtools2-sub002/internal/domain"
	"github.com/wifientist/rtools2-sub002/internal/events"
	"github.com/wifientist/rtools2-sub002/internal/executors"
	"github.com/wifientist/rtools2-sub002/internal/httpapi/authmw"
	"github.com/wifientist/rtools2-sub002/internal/httpapi/handlers"
	"github.com/wifientist/rtools2-sub002/internal/observability"
	"github.com/wifientist/rtools2-sub002/internal/platform/logger"
	"github.com/wifientist/rtools2-sub002/internal/realtime"
	"github.com/wifientist/rtools2-sub002/internal/registry"
	"github.com/wifientist/rtools2-sub002/internal/store"
	"github.com/wifientist/rtools2-sub002/internal/workflowdef"
)

// memStore is the same minimal in-memory store.Store as internal/brain's
// test harness, duplicated here rather than exported from internal/brain
// since it is test-only scaffolding on both sides.
type memStore struct {
	mu         sync.Mutex
	jobs       map[uuid.UUID]*domain.JobV2
	activities map[string]*domain.ActivityRef
}

func newMemStore() *memStore {
	return &memStore{jobs: map[uuid.UUID]*domain.JobV2{}, activities: map[string]*domain.ActivityRef{}}
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

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func newTestRouter(t *testing.T, secret []byte) (*gin.Engine, *brain.Scheduler) {
	t.Helper()
	gin.SetMode(gin.TestMode)

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
	hub := realtime.NewSSEHub(log)
	publisher := events.New(st, hub, log)
	client := sz.New(sz.Config{PollsToResolve: 1})
	resolver := func(job *domain.JobV2) (controller.Client, error) { return client, nil }

	sched := brain.New("test-owner", st, reg, set, tracker, publisher, resolver, observability.NewMetrics(), log)

	cfg := RouterConfig{
		Job:      handlers.NewJobHandler(sched),
		Workflow: handlers.NewWorkflowHandler(set),
		Realtime: handlers.NewRealtimeHandler(log, hub),
	}
	if secret != nil {
		cfg.Auth = authmw.New(log, secret)
	}
	return NewRouter(cfg), sched
}

func signToken(t *testing.T, secret []byte, userID uuid.UUID) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID.String(),
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestHealthzIsPublic(t *testing.T) {
	r, _ := newTestRouter(t, []byte("secret"))
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
}

func TestProtectedRouteRejectsMissingToken(t *testing.T) {
	r, _ := newTestRouter(t, []byte("secret"))
	req := httptest.NewRequest(http.MethodGet, "/api/workflows", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d, want 401", rec.Code)
	}
}

func TestListWorkflowsWithValidToken(t *testing.T) {
	secret := []byte("secret")
	r, _ := newTestRouter(t, secret)
	token := signToken(t, secret, uuid.New())

	req := httptest.NewRequest(http.MethodGet, "/api/workflows", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Workflows []string `json:"workflows"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Workflows) == 0 {
		t.Fatal("expected at least one registered workflow")
	}
}

func TestStartAndGetJob(t *testing.T) {
	secret := []byte("secret")
	r, _ := newTestRouter(t, secret)
	userID := uuid.New()
	token := signToken(t, secret, userID)

	reqBody := map[string]any{
		"workflow_name": "per_unit_ssid",
		"controller_id": "ctrl-1",
		"venue_id":      "venue-1",
		"units": []map[string]any{
			{"unit_id": "unit-1", "unit_number": "101"},
		},
	}
	raw, _ := json.Marshal(reqBody)

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", bytes.NewReader(raw))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("start job: got status %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var started struct {
		Job struct {
			ID string `json:"id"`
		} `json:"job"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &started); err != nil {
		t.Fatalf("decode start response: %v", err)
	}
	if started.Job.ID == "" {
		t.Fatal("expected a job id in start response")
	}

	getReq := httptest.NewRequest(http.MethodGet, "/api/jobs/"+started.Job.ID, nil)
	getReq.Header.Set("Authorization", "Bearer "+token)
	getRec := httptest.NewRecorder()
	r.ServeHTTP(getRec, getReq)
	if getRec.Code != http.StatusOK {
		t.Fatalf("get job: got status %d, want 200: %s", getRec.Code, getRec.Body.String())
	}
}

func TestWorkflowGraphNotFound(t *testing.T) {
	secret := []byte("secret")
	r, _ := newTestRouter(t, secret)
	token := signToken(t, secret, uuid.New())

	req := httptest.NewRequest(http.MethodGet, "/api/workflows/does_not_exist/graph", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want 404", rec.Code)
	}
}
