package broadcast

// Broadcast event names. Stable wire identifiers; clients match on these.
const (
	EventMessageSent     = "message.sent"
	EventMessageRead     = "message.read"
	EventMessageFlagged  = "message.flagged"
	EventUserTyping      = "user.typing"
	EventPresenceUpdated = "user.presence.updated"

	// Presence roster deltas emitted by the hub on subscribe/leave
	EventPresenceJoined = "presence.joined"
	EventPresenceLeft   = "presence.left"
)

// Frame is one delivered broadcast: {event, channel, data}.
type Frame struct {
	Event   string                 `json:"event"`
	Channel string                 `json:"channel"`
	Data    map[string]interface{} `json:"data"`
}

// ErrorFrame is sent to a connection whose subscribe attempt was rejected.
// The connection is informed, not silently dropped.
type ErrorFrame struct {
	Error   string `json:"error"`
	Channel string `json:"channel"`
}
