package cleanup

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/wifientist/rtools2-sub002/internal/platform/envutil"
	"github.com/wifientist/rtools2-sub002/internal/platform/logger"
	"github.com/wifientist/rtools2-sub002/internal/temporalx"
)

// Runner starts a Temporal worker polling for job_cleanup workflows. Start
// makes a single worker-start attempt and returns its error; it does not
// retry.
type Runner struct {
	log  *logger.Logger
	tc   temporalsdkclient.Client
	acts *Activities
}

// NewRunner builds a Runner. tc may be nil (Temporal disabled); Start and
// Trigger then return immediately without error and no rollback runs, so
// an unconfigured Temporal address disables cleanup rather than failing
// startup.
func NewRunner(log *logger.Logger, tc temporalsdkclient.Client, acts *Activities) *Runner {
	return &Runner{log: log, tc: tc, acts: acts}
}

// Start polls the configured task queue for job_cleanup workflows until ctx
// is cancelled.
func (r *Runner) Start(ctx context.Context) error {
	if r == nil || r.tc == nil {
		if r != nil && r.log != nil {
			r.log.Info("cleanup: Temporal client not configured; rollback worker disabled")
		}
		return nil
	}
	if r.acts == nil {
		return fmt.Errorf("cleanup: runner missing activities")
	}

	cfg := temporalx.LoadConfig()
	concurrency := envutil.Int("CLEANUP_WORKER_CONCURRENCY", 2)
	if concurrency < 1 {
		concurrency = 1
	}

	w := worker.New(r.tc, cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     concurrency,
		MaxConcurrentWorkflowTaskExecutionSize: concurrency,
	})
	w.RegisterWorkflowWithOptions(Workflow, workflow.RegisterOptions{Name: WorkflowName})
	w.RegisterActivityWithOptions(r.acts.LoadPlan, activity.RegisterOptions{Name: ActivityLoadPlan})
	w.RegisterActivityWithOptions(r.acts.Teardown, activity.RegisterOptions{Name: ActivityTeardown})

	if err := w.Start(); err != nil {
		return fmt.Errorf("cleanup: worker start: %w", err)
	}
	if r.log != nil {
		r.log.Info("cleanup: rollback worker started", "namespace", cfg.Namespace, "task_queue", cfg.TaskQueue)
	}
	go func() {
		<-ctx.Done()
		w.Stop()
	}()
	return nil
}

// Trigger starts one rollback run for jobID, fire-and-forget from the
// Brain's perspective: the Scheduler calls this after it marks a job
// FAILED or CANCELLED with non-empty CreatedResources, and does not wait
// on the result.
func (r *Runner) Trigger(ctx context.Context, jobID string) error {
	if r == nil || r.tc == nil {
		return nil
	}
	opts := temporalsdkclient.StartWorkflowOptions{
		ID:                       WorkflowName + "-" + jobID,
		TaskQueue:                temporalx.LoadConfig().TaskQueue,
		WorkflowExecutionTimeout: 30 * time.Minute,
	}
	_, err := r.tc.ExecuteWorkflow(ctx, opts, Workflow, jobID)
	return err
}
