package chat

// EventKind tags the closed set of inbound coordinator events.
type EventKind int

const (
	// EventJoin binds a connection to a username within a room.
	EventJoin EventKind = iota + 1
	// EventSendMessage appends and broadcasts a chat message.
	EventSendMessage
	// EventTyping relays a typing indicator; fire-and-forget.
	EventTyping
	// EventDisconnect tears down a connection's session.
	EventDisconnect
)

// InboundEvent is the transport-independent envelope for a connection event.
// Only the fields relevant to Kind are populated.
type InboundEvent struct {
	Kind     EventKind
	ConnID   string
	Username string
	Room     string
	Text     string
	IsTyping bool
}

// JoinEvent builds a join event for connID.
func JoinEvent(connID, username, room string) InboundEvent {
	return InboundEvent{Kind: EventJoin, ConnID: connID, Username: username, Room: room}
}

// SendMessageEvent builds a message event for connID.
func SendMessageEvent(connID, text string) InboundEvent {
	return InboundEvent{Kind: EventSendMessage, ConnID: connID, Text: text}
}

// TypingEvent builds a typing indicator event for connID.
func TypingEvent(connID string, isTyping bool) InboundEvent {
	return InboundEvent{Kind: EventTyping, ConnID: connID, IsTyping: isTyping}
}

// DisconnectEvent builds a connection-closed event for connID.
func DisconnectEvent(connID string) InboundEvent {
	return InboundEvent{Kind: EventDisconnect, ConnID: connID}
}

// Outcome reports how an inbound event was applied.
//
// Ack is true for events that owe the originating connection an
// acknowledgment (join, send); Err is nil on success. Fire-and-forget events
// (typing, disconnect) return a zero Outcome.
type Outcome struct {
	Ack bool
	Err error

	// Join carries the synchronous result of a successful join event so the
	// transport can enrich its acknowledgment; nil otherwise.
	Join *JoinResult
}
