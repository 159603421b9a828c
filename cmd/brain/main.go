// Command brain is the Workflow Brain's entrypoint: it wires the state
// store, metadata store, phase registry, workflow definitions, Brain
// scheduler, rollback worker, and HTTP surface, then serves until signalled
// to stop.
//
// Grounded on the teacher's cmd/main.go + internal/app.New/Start/Run/Close
// split, generalized from the teacher's single always-on App struct (gin
// router + background course-gen worker) to this Brain's three independently
// optional background components (Brain resume loop, Temporal cleanup
// worker, HTTP server).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/wifientist/rtools2-sub002/internal/activity"
	"github.com/wifientist/rtools2-sub002/internal/brain"
	"github.com/wifientist/rtools2-sub002/internal/cleanup"
	"github.com/wifientist/rtools2-sub002/internal/controller"
	"github.com/wifientist/rtools2-sub002/internal/domain"
	"github.com/wifientist/rtools2-sub002/internal/events"
	"github.com/wifientist/rtools2-sub002/internal/executors"
	"github.com/wifientist/rtools2-sub002/internal/httpapi"
	"github.com/wifientist/rtools2-sub002/internal/httpapi/authmw"
	"github.com/wifientist/rtools2-sub002/internal/httpapi/handlers"
	"github.com/wifientist/rtools2-sub002/internal/metastore"
	"github.com/wifientist/rtools2-sub002/internal/observability"
	"github.com/wifientist/rtools2-sub002/internal/platform/envutil"
	"github.com/wifientist/rtools2-sub002/internal/platform/logger"
	"github.com/wifientist/rtools2-sub002/internal/platform/otelx"
	"github.com/wifientist/rtools2-sub002/internal/realtime"
	"github.com/wifientist/rtools2-sub002/internal/registry"
	"github.com/wifientist/rtools2-sub002/internal/store"
	"github.com/wifientist/rtools2-sub002/internal/temporalx"
	"github.com/wifientist/rtools2-sub002/internal/workflowdef"
)

func main() {
	logMode := envutil.String("LOG_MODE", "development")
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Error("fatal startup error", "error", err)
		os.Exit(1)
	}
}

func run(log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics()

	shutdownOTel := otelx.InitOTel(ctx, log, otelx.OtelConfig{
		ServiceName: "workflow-brain",
		Environment: envutil.String("ENVIRONMENT", "development"),
		Version:     envutil.String("VERSION", "dev"),
	})
	defer shutdownOTel(context.Background())

	st, err := store.NewRedisStore(store.Config{
		Addr:     envutil.String("REDIS_ADDR", "localhost:6379"),
		Password: envutil.String("REDIS_PASSWORD", ""),
		DB:       envutil.Int("REDIS_DB", 0),
	}, log)
	if err != nil {
		return fmt.Errorf("init redis store: %w", err)
	}
	defer st.Close()
	metrics.StartRedisCollector(ctx, log, envutil.String("REDIS_ADDR", "localhost:6379"))

	pgDB, err := openPostgres(log)
	if err != nil {
		return fmt.Errorf("init postgres: %w", err)
	}
	metrics.StartPostgresCollector(ctx, log, pgDB)

	cipher, err := metastoreCipher()
	if err != nil {
		return fmt.Errorf("init metastore cipher: %w", err)
	}
	metaRepo := metastore.New(pgDB, cipher)

	reg := registry.New()
	if err := executors.RegisterAll(reg); err != nil {
		return fmt.Errorf("register executors: %w", err)
	}
	workflows, err := workflowdef.Load()
	if err != nil {
		return fmt.Errorf("load workflow definitions: %w", err)
	}
	if errs := workflows.ValidateAgainst(reg); len(errs) > 0 {
		return fmt.Errorf("workflow definitions failed validation: %v", errs)
	}

	tracker := activity.New(st, log)
	tracker.SetMetrics(metrics)
	go tracker.Run(ctx)

	hub := realtime.NewSSEHub(log)
	publisher := events.New(st, hub, log)

	resolver := buildControllerResolver(metaRepo)

	sched := brain.New(
		ownerID(),
		st, reg, workflows, tracker, publisher, resolver, metrics, log,
	)

	cleanupActs := &cleanup.Activities{Store: st, Resolver: resolver, Log: log}
	temporalClient, err := temporalx.NewClient(log)
	if err != nil {
		return fmt.Errorf("init temporal client: %w", err)
	}
	if temporalClient != nil {
		defer temporalClient.Close()
	}
	cleanupRunner := cleanup.NewRunner(log, temporalClient, cleanupActs)
	if err := cleanupRunner.Start(ctx); err != nil {
		return fmt.Errorf("start cleanup worker: %w", err)
	}
	sched.SetCleanupTrigger(cleanupRunner)

	if err := sched.ResumeAll(ctx); err != nil {
		log.Warn("resume: failed to resume in-flight jobs", "error", err)
	}

	authSecret := []byte(envutil.String("JWT_SECRET", ""))
	var authMW *authmw.Middleware
	if len(authSecret) > 0 {
		authMW = authmw.New(log, authSecret)
	} else {
		log.Warn("JWT_SECRET not set; all /api routes are unauthenticated")
	}

	router := httpapi.NewRouter(httpapi.RouterConfig{
		Auth:     authMW,
		Job:      handlers.NewJobHandler(sched),
		Workflow: handlers.NewWorkflowHandler(workflows),
		Realtime: handlers.NewRealtimeHandler(log, hub),
	})
	router.GET("/metrics", func(c *gin.Context) {
		c.Status(http.StatusOK)
		if err := metrics.WritePrometheus(c.Writer); err != nil {
			log.Warn("metrics: write failed", "error", err)
		}
	})

	addr := ":" + envutil.String("PORT", "8080")
	srv := &http.Server{Addr: addr, Handler: router}
	srvErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			srvErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-srvErr:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func ownerID() string {
	host, _ := os.Hostname()
	if host == "" {
		host = "brain"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

func openPostgres(log *logger.Logger) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		envutil.String("POSTGRES_USER", "postgres"),
		envutil.String("POSTGRES_PASSWORD", ""),
		envutil.String("POSTGRES_HOST", "localhost"),
		envutil.String("POSTGRES_PORT", "5432"),
		envutil.String("POSTGRES_NAME", "workflow_brain"),
		envutil.String("POSTGRES_SSLMODE", "disable"),
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Warn),
	})
	if err != nil {
		return nil, err
	}
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&metastore.Controller{}, &metastore.Tenant{}); err != nil {
		return nil, err
	}
	log.Info("postgres connected and migrated")
	return db, nil
}

func metastoreCipher() (*metastore.Cipher, error) {
	raw := envutil.String("METASTORE_ENCRYPTION_KEY", "")
	if raw == "" {
		return nil, fmt.Errorf("METASTORE_ENCRYPTION_KEY must be set to a 32-byte key")
	}
	return metastore.NewCipher([]byte(raw))
}

// buildControllerResolver is shared by the Brain (resolving a controller
// per job) and the cleanup Activities (resolving a controller per rollback
// item) — both need the same "given a job, which controller.Client talks to
// its remote controller" lookup. Returns the bare function type rather than
// brain.ControllerResolver or cleanup.ControllerResolver so it assigns to
// either named type without an explicit conversion at each call site.
func buildControllerResolver(repo *metastore.Repo) func(job *domain.JobV2) (controller.Client, error) {
	return func(job *domain.JobV2) (controller.Client, error) {
		userID := job.UserID
		controllerID, err := parseControllerID(job.ControllerID)
		if err != nil {
			return nil, err
		}
		return repo.BuildClient(context.Background(), userID, controllerID)
	}
}

func parseControllerID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid controller_id %q: %w", raw, err)
	}
	return id, nil
}
