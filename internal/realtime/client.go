package realtime

import (
	"github.com/google/uuid"

	"github.com/wifientist/rtools2-sub002/internal/platform/logger"
)

// SSEClient is one connected event-stream subscriber: a client may watch
// several job channels at once (Channels), and receives every broadcast
// addressed to any of them on Outbound, in send order.
type SSEClient struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Channels map[string]bool
	Outbound chan SSEMessage
	done     chan struct{}
	Logger   *logger.Logger
}
