package store

import (
	"testing"

	"github.com/google/uuid"

	"github.com/wifientist/rtools2-sub002/internal/domain"
)

func TestJobKeyFormat(t *testing.T) {
	id := uuid.New()
	if got, want := jobKey(id), "job:"+id.String(); got != want {
		t.Fatalf("jobKey = %q, want %q", got, want)
	}
}

func TestActivityIndexKeysFormat(t *testing.T) {
	if got, want := activityKey("req-1"), "activity:req-1"; got != want {
		t.Fatalf("activityKey = %q, want %q", got, want)
	}
	if got, want := activitiesByJob("job-1"), "activities_by_job:job-1"; got != want {
		t.Fatalf("activitiesByJob = %q, want %q", got, want)
	}
	if got, want := jobsByStatus(domain.JobRunning), "jobs_by_status:RUNNING"; got != want {
		t.Fatalf("jobsByStatus = %q, want %q", got, want)
	}
	if got, want := eventsChannel("job-1"), "events:job-1"; got != want {
		t.Fatalf("eventsChannel = %q, want %q", got, want)
	}
}
