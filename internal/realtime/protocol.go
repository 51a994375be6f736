package realtime

import (
	"github.com/mtaadao/mtaa-realtime/internal/core/domain"
)

// Channel names a delivery transport.
type Channel string

const (
	ChannelWebSocket Channel = "websocket"
	ChannelSSE       Channel = "sse"
)

// Client frame types.
const (
	FrameAuthenticate = "authenticate"
)

// Server event names.
const (
	EventAuthenticated   = "authenticated"
	EventNewNotification = "new_notification"
	EventError           = "error"
)

// HeartbeatType marks keepalive events on the SSE stream.
const HeartbeatType = "heartbeat"

// ClientFrame is a message sent by a WebSocket client.
//
// SessionID is optional; when present it must belong to UserID.
type ClientFrame struct {
	Type      string `json:"type"`
	UserID    string `json:"userId,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

// ServerFrame is a message sent to a WebSocket client.
type ServerFrame struct {
	Event string               `json:"event"`
	Data  *domain.Notification `json:"data,omitempty"`
	Error string               `json:"error,omitempty"`
}

// Heartbeat is the keepalive payload of the SSE stream.
type Heartbeat struct {
	Type string `json:"type"`
}
