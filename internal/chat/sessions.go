package chat

import (
	"sync"
	"time"
)

// User is the live binding between a connection and the identity it is
// acting as. One live User exists per open connection; the entry is destroyed
// on disconnect or failed join.
type User struct {
	ConnID   string    `json:"conn_id"`
	Username string    `json:"username"`
	Room     string    `json:"room"`
	JoinedAt time.Time `json:"joined_at"`
}

// SessionTable owns the connection-to-user bindings.
type SessionTable struct {
	mu    sync.Mutex
	users map[string]User
}

// NewSessionTable creates an empty session table.
func NewSessionTable() *SessionTable {
	return &SessionTable{users: make(map[string]User)}
}

// Bind records the mapping for connID. It fails with ErrAlreadyBound when the
// connection already has a session; correct collaborators never trigger this.
func (t *SessionTable) Bind(connID string, user User) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.users[connID]; ok {
		return ErrAlreadyBound
	}
	t.users[connID] = user
	return nil
}

// Lookup returns the user bound to connID when present.
func (t *SessionTable) Lookup(connID string) (User, bool) {
	t.mu.Lock()
	user, ok := t.users[connID]
	t.mu.Unlock()
	return user, ok
}

// Unbind removes and returns the prior binding. Repeated unbinds of an
// unknown connection return absent, not an error.
func (t *SessionTable) Unbind(connID string) (User, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	user, ok := t.users[connID]
	if !ok {
		return User{}, false
	}
	delete(t.users, connID)
	return user, true
}

// Count returns the number of live sessions.
func (t *SessionTable) Count() int {
	t.mu.Lock()
	n := len(t.users)
	t.mu.Unlock()
	return n
}

// ConnectionsInRoom returns the connection ids currently bound to room.
func (t *SessionTable) ConnectionsInRoom(room string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var conns []string
	for connID, user := range t.users {
		if user.Room == room {
			conns = append(conns, connID)
		}
	}
	return conns
}
