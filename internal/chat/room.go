package chat

import (
	"sync"
	"time"
)

// DefaultHistoryLimit bounds a room's message log when no explicit capacity
// is configured.
const DefaultHistoryLimit = 200

// Message is an immutable chat message. The id is unique within process
// lifetime; it is not required to survive restarts.
type Message struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Room      string    `json:"room"`
}

// RoomSnapshot is a read-only projection of a room for presence broadcasts.
// Members are listed in insertion order of the current membership.
type RoomSnapshot struct {
	Name         string    `json:"name"`
	Members      []string  `json:"members"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Room is a named, independently synchronized chat channel with membership
// and a bounded message log.
//
// All fields are guarded by mu. The coordinator holds mu across an entire
// transition, including fan-out, so per-room delivery order matches the order
// transitions were applied. Different rooms proceed fully in parallel.
type Room struct {
	mu sync.Mutex

	name      string
	members   []string
	messages  []Message
	capacity  int
	createdAt time.Time
	updatedAt time.Time

	// reaped marks a room removed from the registry. A join that loses the
	// race against the reaper must resolve a fresh room instead of mutating
	// an orphan.
	reaped bool
}

func newRoom(name string, capacity int, now time.Time) *Room {
	if capacity <= 0 {
		capacity = DefaultHistoryLimit
	}
	return &Room{
		name:      name,
		capacity:  capacity,
		createdAt: now,
		updatedAt: now,
	}
}

// Name returns the room's immutable name.
func (r *Room) Name() string {
	return r.name
}

// Snapshot returns a point-in-time projection of the room.
func (r *Room) Snapshot() RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Room) snapshotLocked() RoomSnapshot {
	members := make([]string, len(r.members))
	copy(members, r.members)
	return RoomSnapshot{
		Name:         r.name,
		Members:      members,
		MessageCount: len(r.messages),
		CreatedAt:    r.createdAt,
		UpdatedAt:    r.updatedAt,
	}
}

func (r *Room) hasMemberLocked(username string) bool {
	for _, member := range r.members {
		if member == username {
			return true
		}
	}
	return false
}

func (r *Room) addMemberLocked(username string, now time.Time) {
	r.members = append(r.members, username)
	r.touchLocked(now)
}

func (r *Room) removeMemberLocked(username string, now time.Time) bool {
	for i, member := range r.members {
		if member == username {
			r.members = append(r.members[:i], r.members[i+1:]...)
			r.touchLocked(now)
			return true
		}
	}
	return false
}

func (r *Room) appendMessageLocked(msg Message, now time.Time) {
	r.messages = append(r.messages, msg)
	if len(r.messages) > r.capacity {
		r.messages = r.messages[len(r.messages)-r.capacity:]
	}
	r.touchLocked(now)
}

// historyLocked returns a copy of up to limit most recent messages in
// chronological order.
func (r *Room) historyLocked(limit int) []Message {
	if limit <= 0 || limit > len(r.messages) {
		limit = len(r.messages)
	}
	history := make([]Message, limit)
	copy(history, r.messages[len(r.messages)-limit:])
	return history
}

// touchLocked bumps updatedAt; the timestamp never moves backwards.
func (r *Room) touchLocked(now time.Time) {
	if now.After(r.updatedAt) {
		r.updatedAt = now
	}
}
