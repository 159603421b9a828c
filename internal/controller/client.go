// Package controller is the Brain's remote controller adapter interface: an
// opaque handle executors use to talk to the external WLAN controller,
// never the Brain itself. internal/controller/r1 and internal/controller/sz
// are thin stub implementations — good enough to exercise the
// async/bulk-poll/activation-slot contract in tests, not complete
// controller SDKs (wire protocol, regional endpoints, and token refresh are
// explicitly out of scope).
package controller

import "context"

// Resource is one record the controller knows about: an identity group, a
// credential pool, an SSID network, an AP group, a venue, and so on.
type Resource struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// MutateResult is what every mutating capability call returns: either a
// finished Resource (Done=true) or a RequestID to poll via the Activity
// Tracker (Done=false).
type MutateResult struct {
	Done      bool
	RequestID string
	Resource  *Resource
}

// Page is one page of a read call, with a cursor for the next page.
type Page struct {
	Items  []Resource
	Cursor string
}

// IdentityGroupService manages the dpsk identity-group capability group.
type IdentityGroupService interface {
	Create(ctx context.Context, tenantID string, spec map[string]any) (MutateResult, error)
}

// CredentialPoolService manages DPSK credential pools.
type CredentialPoolService interface {
	Create(ctx context.Context, identityGroupID string, spec map[string]any) (MutateResult, error)
}

// PassphraseService manages individual DPSK passphrase entries within a pool.
type PassphraseService interface {
	Create(ctx context.Context, poolID string, spec map[string]any) (MutateResult, error)
}

// PSKNetworkService manages PSK/DPSK wireless networks.
type PSKNetworkService interface {
	Create(ctx context.Context, venueID string, spec map[string]any) (MutateResult, error)
	Activate(ctx context.Context, networkID, apGroupID string) (MutateResult, error)
}

// APGroupService manages AP groups within a venue.
type APGroupService interface {
	Create(ctx context.Context, venueID string, spec map[string]any) (MutateResult, error)
}

// SSIDService manages standard SSID networks.
type SSIDService interface {
	Create(ctx context.Context, venueID string, spec map[string]any) (MutateResult, error)
	Activate(ctx context.Context, ssidID, apGroupID string) (MutateResult, error)
}

// VenueService is the read-only capability group used by validation to
// discover existing venues/AP groups before planning unit creation.
type VenueService interface {
	List(ctx context.Context, tenantID, cursor string) (Page, error)
}

// TeardownService deletes a previously-created resource by the type/id pair
// recorded on a job's created_resources, for the cleanup rollback workflow.
// A single generic method rather than one per capability group: rollback
// only ever needs "undo this one thing", never the richer create/activate
// shape the forward-path services expose.
type TeardownService interface {
	Delete(ctx context.Context, resourceType, resourceID string) (MutateResult, error)
}

// PollResult is one controller's answer about one request_id; a type of
// its own, separate from activity.PollResult, so controller clients don't
// import internal/activity just to satisfy its BulkPoller interface.
type PollResult struct {
	Done  bool
	Error string
}

// ActivityService is the bulk-poll capability every controller exposes for
// the Activity Tracker. It returns this package's PollResult rather than
// activity.PollResult, so callers wrap it in an adapter (internal/runtime's
// activityPollerAdapter, internal/brain's pollerAdapter) to use it as an
// activity.BulkPoller.
type ActivityService interface {
	PollActivities(ctx context.Context, requestIDs []string) (map[string]PollResult, error)
}

// Client is the opaque handle the Brain's runtime hands to executors. The
// Brain never calls the controller directly — only executors do, through
// this handle.
type Client interface {
	Family() string

	IdentityGroups() IdentityGroupService
	CredentialPools() CredentialPoolService
	Passphrases() PassphraseService
	PSKNetworks() PSKNetworkService
	APGroups() APGroupService
	SSIDs() SSIDService
	Venues() VenueService
	Activities() ActivityService
	Teardown() TeardownService
}
