package r1

import (
	"context"
	"testing"
)

func TestCreateIdentityGroupIsSynchronous(t *testing.T) {
	c := New(Config{PollsToResolve: 2})
	res, err := c.IdentityGroups().Create(context.Background(), "tenant-1", map[string]any{"name": "visitors"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !res.Done || res.Resource == nil {
		t.Fatalf("expected synchronous done result, got %+v", res)
	}
	if res.Resource.Name != "visitors" {
		t.Fatalf("name: want=visitors got=%s", res.Resource.Name)
	}
}

func TestActivatePSKNetworkResolvesAfterConfiguredPolls(t *testing.T) {
	c := New(Config{PollsToResolve: 2})
	res, err := c.PSKNetworks().Activate(context.Background(), "psknet-0001", "apg-0001")
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if res.Done {
		t.Fatalf("expected async activation, got done immediately")
	}
	if res.RequestID == "" {
		t.Fatalf("expected non-empty request id")
	}

	results, err := c.Activities().PollActivities(context.Background(), []string{res.RequestID})
	if err != nil {
		t.Fatalf("PollActivities: %v", err)
	}
	if results[res.RequestID].Done {
		t.Fatalf("expected first poll to still be pending")
	}

	results, err = c.Activities().PollActivities(context.Background(), []string{res.RequestID})
	if err != nil {
		t.Fatalf("PollActivities: %v", err)
	}
	if !results[res.RequestID].Done {
		t.Fatalf("expected second poll to resolve the activation")
	}
}

func TestPollUnknownRequestIDIsTreatedAsDone(t *testing.T) {
	c := New(Config{})
	results, err := c.Activities().PollActivities(context.Background(), []string{"does-not-exist"})
	if err != nil {
		t.Fatalf("PollActivities: %v", err)
	}
	if !results["does-not-exist"].Done {
		t.Fatalf("unknown request id should resolve done rather than hang forever")
	}
}

func TestTeardownDeleteIsSynchronous(t *testing.T) {
	c := New(Config{})
	res, err := c.Teardown().Delete(context.Background(), "ssid", "ssid-0001")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !res.Done || res.Resource == nil {
		t.Fatalf("expected synchronous done result, got %+v", res)
	}
	if res.Resource.ID != "ssid-0001" {
		t.Fatalf("resource id: want=ssid-0001 got=%s", res.Resource.ID)
	}
}
