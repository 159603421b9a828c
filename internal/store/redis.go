package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wifientist/rtools2-sub002/internal/domain"
	"github.com/wifientist/rtools2-sub002/internal/platform/logger"
)

var tracer = otel.Tracer("store")

// RedisStore is the Redis-backed State Store. Grounded on
// internal/realtime/bus/redis_bus.go for the pub/sub shape and on the GORM
// ClaimNextRunnable/UpdateFieldsUnlessStatus CAS pattern from
// internal/data/repos/jobs/job_run.go, reimplemented against Redis
// WATCH/MULTI/EXEC since the confirmed backing store is Redis, not Postgres.
type RedisStore struct {
	rdb *redis.Client
	log *logger.Logger

	maxRetries int
}

// Config wires a RedisStore to its connection.
type Config struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisStore(cfg Config, log *logger.Logger) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("store: redis ping: %w", err)
	}
	return &RedisStore{rdb: rdb, log: log.With("component", "RedisStore"), maxRetries: 5}, nil
}

func (s *RedisStore) Close() error { return s.rdb.Close() }

func jobKey(id uuid.UUID) string       { return "job:" + id.String() }
func activityKey(id string) string     { return "activity:" + id }
func activitiesByJob(jobID string) string { return "activities_by_job:" + jobID }
func jobsByStatus(status domain.JobStatus) string { return "jobs_by_status:" + string(status) }
func eventsChannel(jobID string) string { return "events:" + jobID }

// CreateJob persists a new job record with SETNX semantics so a duplicate
// id fails without a read-modify-write round trip.
func (s *RedisStore) CreateJob(ctx context.Context, job *domain.JobV2) error {
	if job == nil {
		return fmt.Errorf("store: nil job")
	}
	ctx, span := tracer.Start(ctx, "store.CreateJob", trace.WithAttributes(attribute.String("job_id", job.ID.String())))
	defer span.End()
	b, err := json.Marshal(job)
	if err != nil {
		return err
	}
	ok, err := s.rdb.SetNX(ctx, jobKey(job.ID), b, 0).Result()
	if err != nil {
		return fmt.Errorf("store: create job: %w", err)
	}
	if !ok {
		return ErrAlreadyExists
	}
	if err := s.rdb.SAdd(ctx, jobsByStatus(job.Status), job.ID.String()).Err(); err != nil {
		s.log.Warn("store: failed to index new job by status", "job_id", job.ID, "error", err)
	}
	return nil
}

func (s *RedisStore) GetJob(ctx context.Context, jobID uuid.UUID) (*domain.JobV2, error) {
	ctx, span := tracer.Start(ctx, "store.GetJob", trace.WithAttributes(attribute.String("job_id", jobID.String())))
	defer span.End()
	raw, err := s.rdb.Get(ctx, jobKey(jobID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get job: %w", err)
	}
	var job domain.JobV2
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("store: decode job: %w", err)
	}
	return &job, nil
}

// UpdateJob performs an atomic read-modify-write via WATCH/MULTI/EXEC. On
// redis.TxFailedErr it tries again with jittered backoff, up to maxRetries
// attempts in total, before returning ErrConflict.
func (s *RedisStore) UpdateJob(ctx context.Context, jobID uuid.UUID, mutate Mutator) (*domain.JobV2, error) {
	ctx, span := tracer.Start(ctx, "store.UpdateJob", trace.WithAttributes(attribute.String("job_id", jobID.String())))
	defer span.End()
	key := jobKey(jobID)
	var result *domain.JobV2

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		txErr := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.Get(ctx, key).Bytes()
			if err == redis.Nil {
				return ErrNotFound
			}
			if err != nil {
				return err
			}
			var current domain.JobV2
			if err := json.Unmarshal(raw, &current); err != nil {
				return fmt.Errorf("store: decode job: %w", err)
			}
			prevStatus := current.Status

			next, err := mutate(current.Clone())
			if err != nil {
				return err
			}
			nb, err := json.Marshal(next)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, nb, 0)
				if next.Status != prevStatus {
					pipe.SRem(ctx, jobsByStatus(prevStatus), jobID.String())
					pipe.SAdd(ctx, jobsByStatus(next.Status), jobID.String())
				}
				if next.Status.IsTerminal() {
					pipe.Expire(ctx, key, JobTTLAfterTerminal)
				}
				return nil
			})
			if err != nil {
				return err
			}
			result = next
			return nil
		}, key)

		if txErr == nil {
			return result, nil
		}
		if txErr == ErrNotFound {
			return nil, ErrNotFound
		}
		if txErr != redis.TxFailedErr {
			return nil, txErr
		}
		backoff := time.Duration(10+rand.Intn(40)) * time.Millisecond * time.Duration(attempt+1)
		time.Sleep(backoff)
	}
	return nil, ErrConflict
}

// ListJobs scans the jobs_by_status secondary index. Admin/debug use only,
// per the spec's note on list_jobs.
func (s *RedisStore) ListJobs(ctx context.Context, filter JobFilter) ([]*domain.JobV2, error) {
	var ids []string
	if filter.Status != "" {
		members, err := s.rdb.SMembers(ctx, jobsByStatus(filter.Status)).Result()
		if err != nil {
			return nil, err
		}
		ids = members
	} else {
		for _, status := range []domain.JobStatus{
			domain.JobPending, domain.JobValidating, domain.JobAwaitingConfirmation,
			domain.JobRunning, domain.JobCompleted, domain.JobFailed, domain.JobCancelled,
		} {
			members, err := s.rdb.SMembers(ctx, jobsByStatus(status)).Result()
			if err != nil {
				return nil, err
			}
			ids = append(ids, members...)
		}
	}

	out := make([]*domain.JobV2, 0, len(ids))
	for _, idStr := range ids {
		id, err := uuid.Parse(idStr)
		if err != nil {
			continue
		}
		job, err := s.GetJob(ctx, id)
		if err != nil {
			continue
		}
		if filter.WorkflowName != "" && job.WorkflowName != filter.WorkflowName {
			continue
		}
		if filter.UserID != uuid.Nil && job.UserID != filter.UserID {
			continue
		}
		out = append(out, job)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *RedisStore) PutActivity(ctx context.Context, ref *domain.ActivityRef) error {
	if ref == nil {
		return fmt.Errorf("store: nil activity ref")
	}
	b, err := json.Marshal(ref)
	if err != nil {
		return err
	}
	ttl := time.Until(ref.Deadline.Add(ActivityDeadlineGrace))
	if ttl <= 0 {
		ttl = ActivityDeadlineGrace
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, activityKey(ref.RequestID), b, ttl)
	pipe.SAdd(ctx, activitiesByJob(ref.JobID), ref.RequestID)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) GetActivity(ctx context.Context, requestID string) (*domain.ActivityRef, error) {
	raw, err := s.rdb.Get(ctx, activityKey(requestID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var ref domain.ActivityRef
	if err := json.Unmarshal(raw, &ref); err != nil {
		return nil, err
	}
	return &ref, nil
}

func (s *RedisStore) DeleteActivity(ctx context.Context, requestID string) error {
	ref, err := s.GetActivity(ctx, requestID)
	if err != nil && err != ErrNotFound {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, activityKey(requestID))
	if ref != nil {
		pipe.SRem(ctx, activitiesByJob(ref.JobID), requestID)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) ListActivities(ctx context.Context, jobID string) ([]*domain.ActivityRef, error) {
	ids, err := s.rdb.SMembers(ctx, activitiesByJob(jobID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*domain.ActivityRef, 0, len(ids))
	for _, id := range ids {
		ref, err := s.GetActivity(ctx, id)
		if err == ErrNotFound {
			_ = s.rdb.SRem(ctx, activitiesByJob(jobID), id).Err()
			continue
		}
		if err != nil {
			continue
		}
		out = append(out, ref)
	}
	return out, nil
}

func (s *RedisStore) PublishEvent(ctx context.Context, jobID string, event domain.Event) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := s.rdb.Publish(ctx, eventsChannel(jobID), raw).Err(); err != nil {
		s.log.Warn("store: publish event failed", "job_id", jobID, "event_type", event.Type, "error", err)
		return nil // fire-and-forget: publisher failures must not crash the Brain
	}
	return nil
}

func (s *RedisStore) Subscribe(ctx context.Context, jobID string, onEvent func(domain.Event)) (func(), error) {
	if onEvent == nil {
		return nil, fmt.Errorf("store: onEvent callback required")
	}
	sub := s.rdb.Subscribe(ctx, eventsChannel(jobID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("store: subscribe: %w", err)
	}

	done := make(chan struct{})
	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case <-done:
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var ev domain.Event
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					s.log.Warn("store: bad event payload", "job_id", jobID, "error", err)
					continue
				}
				onEvent(ev)
			}
		}
	}()

	var closeOnce = make(chan struct{}, 1)
	return func() {
		select {
		case closeOnce <- struct{}{}:
			close(done)
		default:
		}
	}, nil
}
