package chat

import (
	"sync"
	"time"
)

// Registry owns the room-name to Room mapping. Rooms are created lazily on
// first join and removed only by ReapIdleEmptyRooms.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room

	historyLimit int
}

// NewRegistry creates an empty registry whose rooms keep at most historyLimit
// messages each. A historyLimit of zero or less falls back to
// DefaultHistoryLimit.
func NewRegistry(historyLimit int) *Registry {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Registry{
		rooms:        make(map[string]*Room),
		historyLimit: historyLimit,
	}
}

// GetOrCreate returns the room for name, creating it if needed. Concurrent
// callers for the same name observe exactly one Room instance.
func (g *Registry) GetOrCreate(name string) *Room {
	g.mu.Lock()
	defer g.mu.Unlock()

	room, ok := g.rooms[name]
	if ok {
		return room
	}

	room = newRoom(name, g.historyLimit, time.Now().UTC())
	g.rooms[name] = room
	return room
}

// Get returns the room for name when present.
func (g *Registry) Get(name string) (*Room, bool) {
	g.mu.Lock()
	room, ok := g.rooms[name]
	g.mu.Unlock()
	return room, ok
}

// Snapshot returns a read-only projection of the named room when present.
func (g *Registry) Snapshot(name string) (RoomSnapshot, bool) {
	room, ok := g.Get(name)
	if !ok {
		return RoomSnapshot{}, false
	}
	return room.Snapshot(), true
}

// Count returns the number of live rooms.
func (g *Registry) Count() int {
	g.mu.Lock()
	n := len(g.rooms)
	g.mu.Unlock()
	return n
}

// ReapIdleEmptyRooms removes rooms that have no members and whose updatedAt
// age exceeds idleThreshold, skipping any name in protected. It returns the
// names removed.
//
// The registry-wide lock is held per room decision, never across the whole
// sweep, so joins to other rooms are not stalled.
func (g *Registry) ReapIdleEmptyRooms(now time.Time, idleThreshold time.Duration, protected []string) []string {
	exempt := make(map[string]struct{}, len(protected))
	for _, name := range protected {
		exempt[name] = struct{}{}
	}

	g.mu.Lock()
	candidates := make([]string, 0, len(g.rooms))
	for name := range g.rooms {
		if _, ok := exempt[name]; !ok {
			candidates = append(candidates, name)
		}
	}
	g.mu.Unlock()

	var reaped []string
	for _, name := range candidates {
		g.mu.Lock()
		room, ok := g.rooms[name]
		if !ok {
			g.mu.Unlock()
			continue
		}
		room.mu.Lock()
		if len(room.members) == 0 && now.Sub(room.updatedAt) > idleThreshold {
			room.reaped = true
			delete(g.rooms, name)
			reaped = append(reaped, name)
		}
		room.mu.Unlock()
		g.mu.Unlock()
	}
	return reaped
}
