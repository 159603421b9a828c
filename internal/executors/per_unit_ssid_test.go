package executors

import (
	"context"
	"testing"
	"time"

	"github.com/wifientist/rtools2-sub002/internal/activity"
	"github.com/wifientist/rtools2-sub002/internal/controller/sz"
	"github.com/wifientist/rtools2-sub002/internal/runtime"
)

func TestPerUnitSSIDChainOutputs(t *testing.T) {
	client := sz.New(sz.Config{PollsToResolve: 1})
	tracker := activity.New(newFakeActivityStore(), mustLogger(t))
	tracker.SetPollInterval(10 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tracker.Run(ctx)

	rtg := runtime.New("job-2", "create_ap_groups", "unit-1", "202", "tenant-1", "venue-1", nil, client, tracker, nil, noopTrackResource)
	apOut, err := CreateAPGroupsExecutor{}.Execute(ctx, rtg, nil)
	if err != nil {
		t.Fatalf("create_ap_groups: %v", err)
	}
	if apOut["ap_group_id"] == "" {
		t.Fatalf("expected ap_group_id output")
	}

	rtg = runtime.New("job-2", "create_ssids", "unit-1", "202", "tenant-1", "venue-1", nil, client, tracker, nil, noopTrackResource)
	ssidOut, err := CreateSSIDsExecutor{}.Execute(ctx, rtg, apOut)
	if err != nil {
		t.Fatalf("create_ssids: %v", err)
	}
	if ssidOut["ssid_id"] == "" {
		t.Fatalf("expected ssid_id output")
	}

	rtg = runtime.New("job-2", "activate_ssids", "unit-1", "202", "tenant-1", "venue-1", nil, client, tracker, nil, noopTrackResource)
	merged := map[string]any{"ssid_id": ssidOut["ssid_id"], "ap_group_id": apOut["ap_group_id"]}
	actOut, err := ActivateSSIDsExecutor{}.Execute(ctx, rtg, merged)
	if err != nil {
		t.Fatalf("activate_ssids: %v", err)
	}
	if activated, _ := actOut["activated"].(bool); !activated {
		t.Fatalf("expected activated=true, got %+v", actOut)
	}
}
