package realtime

import (
	"sync"

	"github.com/google/uuid"

	"github.com/wifientist/rtools2-sub002/internal/platform/logger"
)

// outboundBuffer bounds how many undelivered messages a slow client can
// accumulate before Broadcast starts dropping for it rather than blocking
// the broadcaster on one stuck reader.
const outboundBuffer = 64

// SSEHub is the process-wide fanout point: Broadcast delivers one message
// to every client currently watching its channel.
type SSEHub struct {
	log *logger.Logger

	mu       sync.RWMutex
	channels map[string]map[uuid.UUID]*SSEClient
}

func NewSSEHub(log *logger.Logger) *SSEHub {
	return &SSEHub{
		log:      log.With("component", "SSEHub"),
		channels: make(map[string]map[uuid.UUID]*SSEClient),
	}
}

// NewSSEClient creates a client not yet attached to any channel.
func (h *SSEHub) NewSSEClient(userID uuid.UUID) *SSEClient {
	return &SSEClient{
		ID:       uuid.New(),
		UserID:   userID,
		Channels: map[string]bool{},
		Outbound: make(chan SSEMessage, outboundBuffer),
		done:     make(chan struct{}),
		Logger:   h.log,
	}
}

// AddChannel subscribes client to channel; Broadcast on that channel will
// now reach it.
func (h *SSEHub) AddChannel(client *SSEClient, channel string) {
	if client == nil || channel == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.channels[channel]
	if !ok {
		set = map[uuid.UUID]*SSEClient{}
		h.channels[channel] = set
	}
	set[client.ID] = client
	client.Channels[channel] = true
}

// Broadcast delivers msg to every client watching msg.Channel. Non-blocking
// per client: a client whose Outbound is full is dropped for this message
// rather than stalling the broadcaster.
func (h *SSEHub) Broadcast(msg SSEMessage) {
	h.mu.RLock()
	set := h.channels[msg.Channel]
	clients := make([]*SSEClient, 0, len(set))
	for _, c := range set {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.Outbound <- msg:
		default:
			h.log.Warn("sse hub: dropping message for slow client", "client_id", c.ID, "channel", msg.Channel)
		}
	}
}

// CloseClient detaches client from every channel and closes its Outbound
// channel, signalling its connection handler to stop.
func (h *SSEHub) CloseClient(client *SSEClient) {
	if client == nil {
		return
	}
	h.mu.Lock()
	for channel := range client.Channels {
		if set, ok := h.channels[channel]; ok {
			delete(set, client.ID)
			if len(set) == 0 {
				delete(h.channels, channel)
			}
		}
	}
	h.mu.Unlock()

	select {
	case <-client.done:
		// already closed
	default:
		close(client.done)
		close(client.Outbound)
	}
}
