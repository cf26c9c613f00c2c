// Package realtime carries row-change events from the backend to subscribed
// clients: a websocket hub on the server side, and a reconnecting channel
// client that fans events out to registered listeners.
package realtime

import "tableorder/internal/domain"

// Message type words on the wire.
const (
	MsgSubscribe = "subscribe"
	MsgStatus    = "status"
	MsgEvent     = "event"
	MsgPing      = "ping"
	MsgPong      = "pong"
)

// Subscription status words delivered by the server.
const (
	AckSubscribed   = "SUBSCRIBED"
	AckChannelError = "CHANNEL_ERROR"
	AckTimedOut     = "TIMED_OUT"
	AckClosed       = "CLOSED"
)

// WireMessage is the single frame shape exchanged over the feed socket.
type WireMessage struct {
	Type   string              `json:"type"`
	Status string              `json:"status,omitempty"`
	Topics []string            `json:"topics,omitempty"`
	Event  *domain.ChangeEvent `json:"event,omitempty"`
}
