// Package sz is a thin stub adapter for the SZ controller family
// (SmartZone style: on-premise, session-cookie auth, zone/AP-group
// scoping). It is good enough to exercise the Brain's
// async/bulk-poll/activation-slot contract in tests; it is not a complete
// controller SDK — wire protocol, session renewal, and zone failover are
// out of scope.
//
// Grounded the same way internal/controller/r1 is: the request/retry shape
// of the teacher's internal/clients/openai.client generalized to
// controller.Client, and internal/jobs/runtime/waitpoint.go for the
// create-now-vs-poll-later split. Kept as a structurally independent
// stub from r1 rather than a shared base type, since a real SZ client
// would authenticate and scope differently (session cookie against a
// zone, not a bearer token against a tenant) and the two are expected to
// diverge as they grow past stub status.
package sz

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/wifientist/rtools2-sub002/internal/controller"
	"github.com/wifientist/rtools2-sub002/internal/platform/envutil"
)

// Config configures a stub SZ client. BaseURL/Username/Password/ZoneID are
// read but never dialed: this stub never leaves the process.
type Config struct {
	BaseURL        string
	Username       string
	Password       string
	ZoneID         string
	PollsToResolve int
}

// ConfigFromEnv reads SZ_BASE_URL/SZ_USERNAME/SZ_PASSWORD/SZ_ZONE_ID with
// the package defaults.
func ConfigFromEnv() Config {
	return Config{
		BaseURL:        envutil.String("SZ_BASE_URL", "https://sz.example.invalid"),
		Username:       envutil.String("SZ_USERNAME", ""),
		Password:       envutil.String("SZ_PASSWORD", ""),
		ZoneID:         envutil.String("SZ_ZONE_ID", ""),
		PollsToResolve: envutil.Int("SZ_POLLS_TO_RESOLVE", 2),
	}
}

type pendingActivation struct {
	remaining int
	resource  controller.Resource
}

type client struct {
	cfg Config

	mu      sync.Mutex
	pending map[string]*pendingActivation
	seq     int
}

// New builds a stub SZ controller.Client.
func New(cfg Config) controller.Client {
	return &client{cfg: cfg, pending: map[string]*pendingActivation{}}
}

func (c *client) Family() string { return "sz" }

func (c *client) nextID(prefix string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return fmt.Sprintf("%s-%04d", prefix, c.seq)
}

func (c *client) IdentityGroups() controller.IdentityGroupService   { return identityGroups{c} }
func (c *client) CredentialPools() controller.CredentialPoolService { return credentialPools{c} }
func (c *client) Passphrases() controller.PassphraseService         { return passphrases{c} }
func (c *client) PSKNetworks() controller.PSKNetworkService          { return pskNetworks{c} }
func (c *client) APGroups() controller.APGroupService                { return apGroups{c} }
func (c *client) SSIDs() controller.SSIDService                      { return ssids{c} }
func (c *client) Venues() controller.VenueService                    { return venues{c} }
func (c *client) Activities() controller.ActivityService             { return activities{c} }
func (c *client) Teardown() controller.TeardownService               { return teardown{c} }

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
