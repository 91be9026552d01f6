package server

import "sync"

// peerTable maps connection ids to their outbound peers.
type peerTable struct {
	mu    sync.Mutex
	peers map[string]*wsPeer
}

func newPeerTable() *peerTable {
	return &peerTable{peers: make(map[string]*wsPeer)}
}

func (t *peerTable) put(connID string, peer *wsPeer) {
	t.mu.Lock()
	t.peers[connID] = peer
	t.mu.Unlock()
}

func (t *peerTable) get(connID string) (*wsPeer, bool) {
	t.mu.Lock()
	peer, ok := t.peers[connID]
	t.mu.Unlock()
	return peer, ok
}

func (t *peerTable) remove(connID string) {
	t.mu.Lock()
	delete(t.peers, connID)
	t.mu.Unlock()
}
