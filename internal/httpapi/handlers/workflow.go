package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wifientist/rtools2-sub002/internal/httpapi/response"
	"github.com/wifientist/rtools2-sub002/internal/workflowdef"
)

// WorkflowHandler exposes the loaded workflow set for UI visualization:
// names, and one workflow's phase graph (levels, nodes, edges). New code —
// the teacher has no equivalent of a user-facing DAG definition to list, so
// this isn't adapted from a specific teacher file, just built in gin's
// idiom alongside JobHandler.
type WorkflowHandler struct {
	workflows *workflowdef.Set
}

func NewWorkflowHandler(workflows *workflowdef.Set) *WorkflowHandler {
	return &WorkflowHandler{workflows: workflows}
}

// GET /api/workflows
func (h *WorkflowHandler) ListWorkflows(c *gin.Context) {
	response.RespondOK(c, gin.H{"workflows": h.workflows.Names()})
}

type graphNode struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	PerUnit  bool     `json:"per_unit"`
	Critical bool     `json:"critical"`
	DependsOn []string `json:"depends_on,omitempty"`
}

type graphResponse struct {
	Name   string      `json:"name"`
	Nodes  []graphNode `json:"nodes"`
	Levels [][]string  `json:"levels"`
}

// GET /api/workflows/:name/graph
func (h *WorkflowHandler) GetWorkflowGraph(c *gin.Context) {
	name := c.Param("name")
	def, g, ok := h.workflows.Get(name)
	if !ok {
		response.RespondError(c, http.StatusNotFound, "workflow_not_found", nil)
		return
	}
	levels, err := g.Levels()
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "graph_invalid", err)
		return
	}

	nodes := make([]graphNode, 0, len(def.Phases))
	for _, p := range def.Phases {
		nodes = append(nodes, graphNode{
			ID:        p.ID,
			Name:      p.Name,
			PerUnit:   p.PerUnit,
			Critical:  p.Critical,
			DependsOn: p.DependsOn,
		})
	}
	response.RespondOK(c, graphResponse{Name: def.Name, Nodes: nodes, Levels: levels})
}
