// Package httpapi is the Brain's gin request surface (§6): job admission
// and lifecycle, workflow introspection for UI visualization, and the SSE
// event bridge. Grounded on the teacher's internal/http/router.go's
// RouterConfig-of-optional-handlers + public/protected route group shape.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/wifientist/rtools2-sub002/internal/httpapi/authmw"
	"github.com/wifientist/rtools2-sub002/internal/httpapi/handlers"
	"github.com/wifientist/rtools2-sub002/internal/httpapi/middleware"
)

// RouterConfig is every handler NewRouter can wire up, each optional so
// tests can build a router exercising only the routes they care about.
type RouterConfig struct {
	Auth     *authmw.Middleware
	Job      *handlers.JobHandler
	Workflow *handlers.WorkflowHandler
	Realtime *handlers.RealtimeHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("workflow-brain"))
	r.Use(middleware.AttachRequestContext())
	r.Use(middleware.CORS())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	protected := api.Group("/")
	if cfg.Auth != nil {
		protected.Use(cfg.Auth.RequireAuth())
	}

	if cfg.Job != nil {
		protected.POST("/jobs", cfg.Job.StartJob)
		protected.GET("/jobs/:id", cfg.Job.GetJob)
		protected.POST("/jobs/:id/confirm", cfg.Job.ConfirmJob)
		protected.POST("/jobs/:id/cancel", cfg.Job.CancelJob)
	}

	if cfg.Workflow != nil {
		protected.GET("/workflows", cfg.Workflow.ListWorkflows)
		protected.GET("/workflows/:name/graph", cfg.Workflow.GetWorkflowGraph)
	}

	if cfg.Realtime != nil {
		protected.GET("/jobs/:id/events", cfg.Realtime.SubscribeJob)
	}

	return r
}
