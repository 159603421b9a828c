// Package handlers holds the Brain's gin request handlers, grounded on the
// teacher's internal/http/handlers package shape (one file per resource,
// handler struct wrapping the service it fronts, response.Respond* for
// every reply).
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wifientist/rtools2-sub002/internal/brain"
	"github.com/wifientist/rtools2-sub002/internal/httpapi/response"
	"github.com/wifientist/rtools2-sub002/internal/platform/ctxutil"
)

// JobHandler fronts brain.Scheduler for the job-lifecycle endpoints: start,
// status, confirm, cancel. Grounded on the teacher's JobHandler, expanded
// from get/cancel/restart to also cover admission and the
// confirmation-gate transition §4.7 requires.
type JobHandler struct {
	brain *brain.Scheduler
}

func NewJobHandler(b *brain.Scheduler) *JobHandler {
	return &JobHandler{brain: b}
}

type startJobRequest struct {
	WorkflowName string             `json:"workflow_name" binding:"required"`
	ControllerID string             `json:"controller_id" binding:"required"`
	VenueID      string             `json:"venue_id"`
	TenantID     string             `json:"tenant_id"`
	Units        []unitInputRequest `json:"units" binding:"required,min=1"`
	Options      map[string]any     `json:"options"`
}

type unitInputRequest struct {
	UnitID      string         `json:"unit_id" binding:"required"`
	UnitNumber  string         `json:"unit_number"`
	InputConfig map[string]any `json:"input_config"`
}

// POST /api/jobs
func (h *JobHandler) StartJob(c *gin.Context) {
	userID, ok := ctxutil.GetUserID(c.Request.Context())
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req startJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	units := make([]brain.UnitInput, 0, len(req.Units))
	for _, u := range req.Units {
		units = append(units, brain.UnitInput{
			UnitID:      u.UnitID,
			UnitNumber:  u.UnitNumber,
			InputConfig: u.InputConfig,
		})
	}

	job, err := h.brain.StartJob(c.Request.Context(), req.WorkflowName, userID, req.ControllerID, req.VenueID, req.TenantID, units, req.Options)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "start_job_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

// GET /api/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	job, err := h.brain.GetJob(c.Request.Context(), jobID)
	if err != nil {
		response.RespondError(c, http.StatusNotFound, "job_not_found", err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

// POST /api/jobs/:id/confirm
func (h *JobHandler) ConfirmJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	if err := h.brain.ConfirmJob(c.Request.Context(), jobID); err != nil {
		response.RespondError(c, http.StatusConflict, "confirm_job_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"status": "confirmed"})
}

// POST /api/jobs/:id/cancel
func (h *JobHandler) CancelJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	if err := h.brain.CancelJob(c.Request.Context(), jobID); err != nil {
		response.RespondError(c, http.StatusConflict, "cancel_job_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"status": "cancel_requested"})
}
