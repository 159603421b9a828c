package domain

import "time"

// ActivityRef is one outstanding asynchronous operation against the remote
// controller, tracked by the Activity Tracker and persisted so it survives
// a Brain restart.
type ActivityRef struct {
	RequestID string `json:"request_id"`
	JobID     string `json:"job_id"`
	UnitID    string `json:"unit_id,omitempty"`
	PhaseID   string `json:"phase_id"`

	StartedAt time.Time `json:"started_at"`
	Deadline  time.Time `json:"deadline"`

	Status ActivityStatus `json:"status"`
	Error  string         `json:"error,omitempty"`
}
