package chat

import (
	"fmt"
	"time"

	"github.com/parlorchat/parlor/internal/platform/id"
)

// Event names emitted through the Gateway. Presence notifications use
// separate event names rather than a payload tag.
const (
	EventNameJoined     = "chat.joined"
	EventNameMessage    = "chat.message"
	EventNameUserJoined = "chat.user_joined"
	EventNameUserLeft   = "chat.user_left"
	EventNameRoom       = "chat.room"
	EventNameTyping     = "chat.typing"
)

// Gateway delivers coordinator output to live connections.
//
// Implementations must not block: a slow recipient cannot be allowed to stall
// transitions for other rooms. The coordinator may invoke Gateway methods
// while holding a room's critical section.
type Gateway interface {
	SendToConnection(connID string, event string, payload any)
	SendToRoom(room string, event string, payload any, excludeConnID string)
}

// JoinedPayload is sent to a joining connection: the room's current snapshot
// and up to the last capacity messages in chronological order.
type JoinedPayload struct {
	Room       RoomSnapshot `json:"room"`
	History    []Message    `json:"history"`
	ServerTime string       `json:"server_time"`
}

// PresencePayload announces a member joining or leaving a room.
type PresencePayload struct {
	Username string `json:"username"`
}

// TypingPayload relays a typing indicator to the rest of a room.
type TypingPayload struct {
	Username string `json:"username"`
	IsTyping bool   `json:"is_typing"`
}

// MessagePayload wraps a broadcast chat message.
type MessagePayload struct {
	Message Message `json:"message"`
}

// JoinResult is the synchronous outcome of a successful join.
type JoinResult struct {
	User    User
	Room    RoomSnapshot
	History []Message
}

// Coordinator drives the join, send-message, typing, and disconnect
// transitions against the registry and session table, emitting outbound
// broadcasts through the gateway.
//
// Per connection the state machine is Unjoined -> Joined -> Closed; a closed
// connection reconnects under a new connection id.
type Coordinator struct {
	registry *Registry
	sessions *SessionTable
	gateway  Gateway

	clock func() time.Time
	newID func() string
}

// Option adjusts coordinator construction.
type Option func(*Coordinator)

// WithClock overrides the timestamp source; intended for tests.
func WithClock(clock func() time.Time) Option {
	return func(c *Coordinator) { c.clock = clock }
}

// WithIDGenerator overrides message id generation; intended for tests.
func WithIDGenerator(gen func() string) Option {
	return func(c *Coordinator) { c.newID = gen }
}

// NewCoordinator wires a coordinator over its owned state structures and the
// gateway collaborator.
func NewCoordinator(registry *Registry, sessions *SessionTable, gateway Gateway, opts ...Option) *Coordinator {
	if registry == nil {
		panic("chat: registry is required")
	}
	if sessions == nil {
		panic("chat: session table is required")
	}
	if gateway == nil {
		panic("chat: gateway is required")
	}
	c := &Coordinator{
		registry: registry,
		sessions: sessions,
		gateway:  gateway,
		clock:    func() time.Time { return time.Now().UTC() },
		newID:    newMessageID,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// newMessageID produces a process-unique message id, falling back to a
// timestamp-based id if the random source fails.
func newMessageID() string {
	generated, err := id.NewID()
	if err != nil {
		return fmt.Sprintf("msg_%d", time.Now().UnixNano())
	}
	return generated
}

// Handle dispatches an inbound event to the matching transition. It is the
// single entry point transports use, keeping the coordinator independent of
// any event registration mechanism.
func (c *Coordinator) Handle(ev InboundEvent) Outcome {
	switch ev.Kind {
	case EventJoin:
		result, err := c.Join(ev.ConnID, ev.Username, ev.Room)
		if err != nil {
			return Outcome{Ack: true, Err: err}
		}
		return Outcome{Ack: true, Join: &result}
	case EventSendMessage:
		_, err := c.SendMessage(ev.ConnID, ev.Text)
		return Outcome{Ack: true, Err: err}
	case EventTyping:
		c.Typing(ev.ConnID, ev.IsTyping)
		return Outcome{}
	case EventDisconnect:
		c.Disconnect(ev.ConnID)
		return Outcome{}
	default:
		return Outcome{Err: &Error{
			Code:    CodeInternal,
			Message: fmt.Sprintf("unknown event kind %d", ev.Kind),
		}}
	}
}

// Join binds connID to username within room. Either the full join succeeds
// (session bound, membership added, timestamps bumped) or no state changes.
//
// On success the room (excluding the joiner) is notified of the new member
// and the joiner receives the room snapshot plus recent history; the explicit
// acknowledgment is the returned JoinResult.
func (c *Coordinator) Join(connID, rawUsername, rawRoom string) (JoinResult, error) {
	username := Sanitize(rawUsername, MaxNameRunes)
	roomName := Sanitize(rawRoom, MaxNameRunes)
	if username == "" || roomName == "" {
		return JoinResult{}, ErrInvalidInput
	}

	for {
		room := c.registry.GetOrCreate(roomName)
		room.mu.Lock()
		if room.reaped {
			// Lost a race against the idle reaper; resolve a fresh room.
			room.mu.Unlock()
			continue
		}

		if room.hasMemberLocked(username) {
			room.mu.Unlock()
			return JoinResult{}, ErrUsernameTaken
		}

		now := c.clock()
		user := User{ConnID: connID, Username: username, Room: roomName, JoinedAt: now}
		if err := c.sessions.Bind(connID, user); err != nil {
			room.mu.Unlock()
			return JoinResult{}, err
		}

		room.addMemberLocked(username, now)
		snapshot := room.snapshotLocked()
		history := room.historyLocked(room.capacity)

		c.gateway.SendToRoom(roomName, EventNameUserJoined, PresencePayload{Username: username}, connID)
		c.gateway.SendToConnection(connID, EventNameJoined, JoinedPayload{
			Room:       snapshot,
			History:    history,
			ServerTime: now.Format(time.RFC3339),
		})
		room.mu.Unlock()

		return JoinResult{User: user, Room: snapshot, History: history}, nil
	}
}

// SendMessage appends a message to the sender's room and broadcasts it to
// every connection bound to the room, including the sender; clients render
// their own messages from the authoritative broadcast. A room with zero
// recipients is not an error.
func (c *Coordinator) SendMessage(connID, rawText string) (Message, error) {
	user, ok := c.sessions.Lookup(connID)
	if !ok {
		return Message{}, ErrNotJoined
	}

	text := Sanitize(rawText, MaxMessageRunes)
	if text == "" {
		return Message{}, ErrEmptyMessage
	}

	room, ok := c.registry.Get(user.Room)
	if !ok {
		// A live session always points at a live room; rooms with members are
		// never reaped.
		return Message{}, &Error{
			Code:    CodeInternal,
			Message: fmt.Sprintf("room %q missing for live session", user.Room),
		}
	}

	now := c.clock()
	msg := Message{
		ID:        c.newID(),
		Username:  user.Username,
		Text:      text,
		Timestamp: now,
		Room:      user.Room,
	}

	room.mu.Lock()
	room.appendMessageLocked(msg, now)
	c.gateway.SendToRoom(user.Room, EventNameMessage, MessagePayload{Message: msg}, "")
	room.mu.Unlock()

	return msg, nil
}

// Typing relays a typing indicator to the rest of the sender's room. A
// missing session is a no-op, not an error; typing events may race a
// disconnect. Nothing is stored.
func (c *Coordinator) Typing(connID string, isTyping bool) {
	user, ok := c.sessions.Lookup(connID)
	if !ok {
		return
	}
	c.gateway.SendToRoom(user.Room, EventNameTyping, TypingPayload{
		Username: user.Username,
		IsTyping: isTyping,
	}, connID)
}

// Disconnect tears down connID's session and notifies the remaining room
// members. It is idempotent; an unknown connection is a no-op. An emptied
// room is left in place for the idle reaper.
func (c *Coordinator) Disconnect(connID string) {
	user, ok := c.sessions.Unbind(connID)
	if !ok {
		return
	}

	room, ok := c.registry.Get(user.Room)
	if !ok {
		return
	}

	room.mu.Lock()
	if room.removeMemberLocked(user.Username, c.clock()) {
		snapshot := room.snapshotLocked()
		c.gateway.SendToRoom(user.Room, EventNameUserLeft, PresencePayload{Username: user.Username}, "")
		c.gateway.SendToRoom(user.Room, EventNameRoom, snapshot, "")
	}
	room.mu.Unlock()
}
