package cleanup

const (
	// WorkflowName is the Temporal workflow type name for the rollback
	// workflow, registered against the same task queue as the rest of the
	// Brain's Temporal-backed infrastructure.
	WorkflowName = "job_cleanup"

	// ActivityLoadPlan loads a job's created_resources and orders them for
	// teardown.
	ActivityLoadPlan = "job_cleanup_load_plan"

	// ActivityTeardown deletes one resource on the remote controller.
	ActivityTeardown = "job_cleanup_teardown"
)

// Item is one resource slated for deletion, in teardown order.
type Item struct {
	ResourceType string `json:"resource_type"`
	ResourceID   string `json:"resource_id"`
	ResourceName string `json:"resource_name,omitempty"`
}

// Plan is the ordered list of resources to tear down for one job, built by
// LoadPlan from JobV2.CreatedResources.
type Plan struct {
	JobID string `json:"job_id"`
	Items []Item `json:"items"`
}

// Result is what the Teardown activity reports for one item.
type Result struct {
	ResourceType string `json:"resource_type"`
	ResourceID   string `json:"resource_id"`
	Deleted      bool   `json:"deleted"`
	Error        string `json:"error,omitempty"`
}
