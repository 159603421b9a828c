package sz

import (
	"context"
	"testing"
)

func TestCreateAPGroupIsSynchronous(t *testing.T) {
	c := New(Config{PollsToResolve: 1})
	res, err := c.APGroups().Create(context.Background(), "venue-1", map[string]any{"name": "floor-2"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !res.Done || res.Resource == nil {
		t.Fatalf("expected synchronous done result, got %+v", res)
	}
	if res.Resource.Name != "floor-2" {
		t.Fatalf("name: want=floor-2 got=%s", res.Resource.Name)
	}
}

func TestActivateSSIDResolvesAfterConfiguredPolls(t *testing.T) {
	c := New(Config{PollsToResolve: 1})
	res, err := c.SSIDs().Activate(context.Background(), "ssid-0001", "apg-0001")
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if res.Done {
		t.Fatalf("expected async activation, got done immediately")
	}

	results, err := c.Activities().PollActivities(context.Background(), []string{res.RequestID})
	if err != nil {
		t.Fatalf("PollActivities: %v", err)
	}
	if !results[res.RequestID].Done {
		t.Fatalf("expected activation to resolve on first poll when PollsToResolve=1")
	}
}

func TestTeardownDeleteIsSynchronous(t *testing.T) {
	c := New(Config{})
	res, err := c.Teardown().Delete(context.Background(), "apgroup", "apg-0001")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !res.Done || res.Resource == nil {
		t.Fatalf("expected synchronous done result, got %+v", res)
	}
	if res.Resource.ID != "apg-0001" {
		t.Fatalf("resource id: want=apg-0001 got=%s", res.Resource.ID)
	}
}
