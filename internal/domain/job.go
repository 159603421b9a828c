package domain

import (
	"time"

	"github.com/google/uuid"
)

// ResourceRecord is one entry created on the remote controller during a job,
// tracked so the cleanup workflow can roll it back in reverse order.
type ResourceRecord struct {
	ID       string         `json:"id"`
	Name     string         `json:"name,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// JobError is one recorded failure against a job, at global or per-unit
// scope.
type JobError struct {
	PhaseID   string    `json:"phase_id"`
	UnitID    string    `json:"unit_id,omitempty"`
	Message   string    `json:"message"`
	Category  string    `json:"category,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// UnitMapping is the per-unit execution record within a JobV2.
type UnitMapping struct {
	UnitID      string                 `json:"unit_id"`
	UnitNumber  string                 `json:"unit_number"`
	Status      PhaseStatus            `json:"status"`
	Plan        map[string]any         `json:"plan,omitempty"`
	InputConfig map[string]any         `json:"input_config,omitempty"`
	PhaseStatus map[string]PhaseStatus `json:"phase_status,omitempty"`
	PhaseOutput map[string]any         `json:"phase_outputs,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

func NewUnitMapping(unitID, unitNumber string, inputConfig map[string]any) *UnitMapping {
	return &UnitMapping{
		UnitID:      unitID,
		UnitNumber:  unitNumber,
		Status:      PhasePending,
		InputConfig: inputConfig,
		PhaseStatus: map[string]PhaseStatus{},
		PhaseOutput: map[string]any{},
	}
}

// Failed reports whether this unit can no longer make progress.
func (u *UnitMapping) Failed() bool {
	return u.Status == PhaseFailed
}

// Done reports whether this unit has reached a terminal state.
func (u *UnitMapping) Done() bool {
	return u.Status == PhaseFailed || u.Status == PhaseSkipped || u.Status == PhaseCompleted
}

// JobV2 is the live execution record for one workflow run. It is the unit of
// persistence in the state store (one `job:{id}` key) and the unit of
// leasing between Brain worker processes (via Owner + CAS).
type JobV2 struct {
	ID           uuid.UUID `json:"id"`
	WorkflowName string    `json:"workflow_name"`
	UserID       uuid.UUID `json:"user_id"`

	ControllerID string `json:"controller_id"`
	VenueID      string `json:"venue_id"`
	TenantID     string `json:"tenant_id"`

	Status JobStatus `json:"status"`

	// Owner is the worker-instance id currently leasing this job, set by
	// CAS in the state store; only the owner may advance the job.
	Owner           string `json:"owner,omitempty"`
	CancelRequested bool   `json:"cancel_requested"`
	CurrentLevel    int    `json:"current_level"`

	PhaseDefinitions   []PhaseDefinition          `json:"phase_definitions"`
	GlobalPhaseStatus  map[string]PhaseStatus     `json:"global_phase_status"`
	GlobalPhaseOutputs map[string]map[string]any  `json:"global_phase_outputs"`
	UnitMappings       map[string]*UnitMapping    `json:"unit_mappings"`

	Options    map[string]any `json:"options,omitempty"`
	InputData  map[string]any `json:"input_data,omitempty"`

	CreatedResources map[string][]ResourceRecord `json:"created_resources,omitempty"`
	// ResourceOrder records the first-seen order of resource types in
	// CreatedResources; map iteration order is undefined, so the cleanup
	// rollback workflow walks this slice (reversed) instead of ranging over
	// CreatedResources directly to decide which resource type to tear down
	// first.
	ResourceOrder []string  `json:"resource_order,omitempty"`
	Errors        []JobError `json:"errors,omitempty"`

	Summary map[string]any `json:"summary,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	ParentJobID  *uuid.UUID  `json:"parent_job_id,omitempty"`
	ChildJobIDs  []uuid.UUID `json:"child_job_ids,omitempty"`
}

// NewJobV2 builds a freshly admitted job in PENDING, ready to be persisted
// by the state store's create_job.
func NewJobV2(workflowName string, userID uuid.UUID, options, inputData map[string]any) *JobV2 {
	if options == nil {
		options = map[string]any{}
	}
	return &JobV2{
		ID:                 uuid.New(),
		WorkflowName:       workflowName,
		UserID:             userID,
		Status:             JobPending,
		GlobalPhaseStatus:  map[string]PhaseStatus{},
		GlobalPhaseOutputs: map[string]map[string]any{},
		UnitMappings:       map[string]*UnitMapping{},
		Options:            options,
		InputData:          inputData,
		CreatedResources:   map[string][]ResourceRecord{},
		CreatedAt:          time.Now().UTC(),
	}
}

// TrackResource appends a created resource to the job's created_resources
// map. Append-only while the job is non-terminal, per the data model
// invariant.
func (j *JobV2) TrackResource(resourceType string, rec ResourceRecord) {
	if j.CreatedResources == nil {
		j.CreatedResources = map[string][]ResourceRecord{}
	}
	if _, seen := j.CreatedResources[resourceType]; !seen {
		j.ResourceOrder = append(j.ResourceOrder, resourceType)
	}
	j.CreatedResources[resourceType] = append(j.CreatedResources[resourceType], rec)
}

// AddError appends a timestamped failure record.
func (j *JobV2) AddError(phaseID, unitID, category, message string) {
	j.Errors = append(j.Errors, JobError{
		PhaseID:   phaseID,
		UnitID:    unitID,
		Message:   message,
		Category:  category,
		Timestamp: time.Now().UTC(),
	})
}

// Clone deep-copies the job via JSON round trip, used by the state store's
// update_job mutator contract ("the mutator receives a fresh snapshot").
func (j *JobV2) Clone() *JobV2 {
	if j == nil {
		return nil
	}
	cp := *j
	cp.PhaseDefinitions = append([]PhaseDefinition(nil), j.PhaseDefinitions...)
	cp.GlobalPhaseStatus = cloneStatusMap(j.GlobalPhaseStatus)
	cp.GlobalPhaseOutputs = cloneOutputMapOfMaps(j.GlobalPhaseOutputs)
	cp.UnitMappings = make(map[string]*UnitMapping, len(j.UnitMappings))
	for k, v := range j.UnitMappings {
		if v == nil {
			continue
		}
		um := *v
		um.PhaseStatus = cloneStatusMap(v.PhaseStatus)
		um.PhaseOutput = cloneAnyMap(v.PhaseOutput)
		um.Plan = cloneAnyMap(v.Plan)
		um.InputConfig = cloneAnyMap(v.InputConfig)
		cp.UnitMappings[k] = &um
	}
	cp.Options = cloneAnyMap(j.Options)
	cp.InputData = cloneAnyMap(j.InputData)
	cp.Summary = cloneAnyMap(j.Summary)
	cp.CreatedResources = make(map[string][]ResourceRecord, len(j.CreatedResources))
	for k, v := range j.CreatedResources {
		cp.CreatedResources[k] = append([]ResourceRecord(nil), v...)
	}
	cp.ResourceOrder = append([]string(nil), j.ResourceOrder...)
	cp.Errors = append([]JobError(nil), j.Errors...)
	cp.ChildJobIDs = append([]uuid.UUID(nil), j.ChildJobIDs...)
	return &cp
}

func cloneStatusMap(in map[string]PhaseStatus) map[string]PhaseStatus {
	out := make(map[string]PhaseStatus, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneAnyMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneOutputMapOfMaps(in map[string]map[string]any) map[string]map[string]any {
	out := make(map[string]map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneAnyMap(v)
	}
	return out
}
