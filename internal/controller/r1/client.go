// Package r1 is a thin stub adapter for the R1 controller family
// (RUCKUS-One style: cloud-managed, bearer-token auth, tenant/MSP scoping).
// It is good enough to exercise the Brain's async/bulk-poll/activation-slot
// contract in tests; it is not a complete controller SDK — wire protocol,
// regional endpoints, and token refresh are out of scope.
//
// Grounded on the request/retry shape of the teacher's
// internal/clients/openai.client (bearer header, config-from-env
// constructor, structured per-call config) generalized from one HTTP API to
// the controller.Client capability-group interface, and on
// internal/jobs/runtime/waitpoint.go for the create-now-vs-poll-later split.
package r1

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/wifientist/rtools2-sub002/internal/controller"
	"github.com/wifientist/rtools2-sub002/internal/platform/envutil"
)

// Config configures a stub R1 client. BaseURL/Token are read but never
// dialed: this stub never leaves the process.
type Config struct {
	BaseURL string
	Token   string
	// PollsToResolve is how many PollActivities rounds an activation must
	// survive before the stub reports it done, simulating a real in-flight
	// window long enough for tests to observe PENDING at least once.
	PollsToResolve int
}

// ConfigFromEnv reads R1_BASE_URL/R1_TOKEN with the package defaults.
func ConfigFromEnv() Config {
	return Config{
		BaseURL:        envutil.String("R1_BASE_URL", "https://r1.example.invalid"),
		Token:          envutil.String("R1_TOKEN", ""),
		PollsToResolve: envutil.Int("R1_POLLS_TO_RESOLVE", 2),
	}
}

type pendingActivation struct {
	remaining int
	resource  controller.Resource
}

type client struct {
	cfg Config

	mu       sync.Mutex
	pending  map[string]*pendingActivation
	seq      int
	tenantID string
}

// New builds a stub R1 controller.Client.
func New(cfg Config) controller.Client {
	return &client{cfg: cfg, pending: map[string]*pendingActivation{}}
}

func (c *client) Family() string { return "r1" }

func (c *client) nextID(prefix string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return fmt.Sprintf("%s-%04d", prefix, c.seq)
}

func (c *client) IdentityGroups() controller.IdentityGroupService { return identityGroups{c} }
func (c *client) CredentialPools() controller.CredentialPoolService { return credentialPools{c} }
func (c *client) Passphrases() controller.PassphraseService      { return passphrases{c} }
func (c *client) PSKNetworks() controller.PSKNetworkService       { return pskNetworks{c} }
func (c *client) APGroups() controller.APGroupService             { return apGroups{c} }
func (c *client) SSIDs() controller.SSIDService                   { return ssids{c} }
func (c *client) Venues() controller.VenueService                 { return venues{c} }
func (c *client) Activities() controller.ActivityService          { return activities{c} }
func (c *client) Teardown() controller.TeardownService            { return teardown{c} }

type identityGroups struct{ c *client }

func (s identityGroups) Create(ctx context.Context, tenantID string, spec map[string]any) (controller.MutateResult, error) {
	id := s.c.nextID("idg")
	return controller.MutateResult{Done: true, Resource: &controller.Resource{ID: id, Name: nameFromSpec(spec, id), Attributes: spec}}, nil
}

type credentialPools struct{ c *client }

func (s credentialPools) Create(ctx context.Context, identityGroupID string, spec map[string]any) (controller.MutateResult, error) {
	id := s.c.nextID("pool")
	return controller.MutateResult{Done: true, Resource: &controller.Resource{ID: id, Name: nameFromSpec(spec, id), Attributes: spec}}, nil
}

type passphrases struct{ c *client }

func (s passphrases) Create(ctx context.Context, poolID string, spec map[string]any) (controller.MutateResult, error) {
	id := s.c.nextID("pass")
	return controller.MutateResult{Done: true, Resource: &controller.Resource{ID: id, Name: nameFromSpec(spec, id), Attributes: spec}}, nil
}

type pskNetworks struct{ c *client }

func (s pskNetworks) Create(ctx context.Context, venueID string, spec map[string]any) (controller.MutateResult, error) {
	id := s.c.nextID("psknet")
	return controller.MutateResult{Done: true, Resource: &controller.Resource{ID: id, Name: nameFromSpec(spec, id), Attributes: spec}}, nil
}

func (s pskNetworks) Activate(ctx context.Context, networkID, apGroupID string) (controller.MutateResult, error) {
	return s.c.beginActivation(networkID, apGroupID)
}

type apGroups struct{ c *client }

func (s apGroups) Create(ctx context.Context, venueID string, spec map[string]any) (controller.MutateResult, error) {
	id := s.c.nextID("apg")
	return controller.MutateResult{Done: true, Resource: &controller.Resource{ID: id, Name: nameFromSpec(spec, id), Attributes: spec}}, nil
}

type ssids struct{ c *client }

func (s ssids) Create(ctx context.Context, venueID string, spec map[string]any) (controller.MutateResult, error) {
	id := s.c.nextID("ssid")
	return controller.MutateResult{Done: true, Resource: &controller.Resource{ID: id, Name: nameFromSpec(spec, id), Attributes: spec}}, nil
}

func (s ssids) Activate(ctx context.Context, ssidID, apGroupID string) (controller.MutateResult, error) {
	return s.c.beginActivation(ssidID, apGroupID)
}

type venues struct{ c *client }

func (s venues) List(ctx context.Context, tenantID, cursor string) (controller.Page, error) {
	return controller.Page{Items: nil, Cursor: ""}, nil
}

type activities struct{ c *client }

func (s activities) PollActivities(ctx context.Context, requestIDs []string) (map[string]controller.PollResult, error) {
	return s.c.pollActivations(requestIDs), nil
}

type teardown struct{ c *client }

func (s teardown) Delete(ctx context.Context, resourceType, resourceID string) (controller.MutateResult, error) {
	return controller.MutateResult{Done: true, Resource: &controller.Resource{ID: resourceID}}, nil
}

// beginActivation simulates the "in-flight SSID/network activation"
// constraint that motivates the Brain's activation-slot semaphore: it
// always returns an async request_id, resolved only after
// PollsToResolve polls.
func (c *client) beginActivation(resourceID, apGroupID string) (controller.MutateResult, error) {
	requestID := uuid.NewString()
	remaining := c.cfg.PollsToResolve
	if remaining <= 0 {
		remaining = 1
	}
	c.mu.Lock()
	c.pending[requestID] = &pendingActivation{
		remaining: remaining,
		resource:  controller.Resource{ID: resourceID, Attributes: map[string]any{"ap_group_id": apGroupID, "activated": true}},
	}
	c.mu.Unlock()
	return controller.MutateResult{Done: false, RequestID: requestID}, nil
}

func (c *client) pollActivations(requestIDs []string) map[string]controller.PollResult {
	out := make(map[string]controller.PollResult, len(requestIDs))
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range requestIDs {
		p, ok := c.pending[id]
		if !ok {
			out[id] = controller.PollResult{Done: true}
			continue
		}
		p.remaining--
		if p.remaining <= 0 {
			out[id] = controller.PollResult{Done: true}
			delete(c.pending, id)
		} else {
			out[id] = controller.PollResult{Done: false}
		}
	}
	return out
}

func nameFromSpec(spec map[string]any, fallback string) string {
	if spec == nil {
		return fallback
	}
	if v, ok := spec["name"].(string); ok && v != "" {
		return v
	}
	return fallback
}
