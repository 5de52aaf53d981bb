package main

import "sync"

// Session binds a live connection to its room and its stable identity.
// On reconnect the player keeps its seat and score; only the connection
// id changes.
type Session struct {
	ConnectionID string
	RoomID       string
	DisplayName  string
}

type sessionTable struct {
	mu     sync.Mutex
	byConn map[string]*Session
}

func newSessionTable() *sessionTable {
	return &sessionTable{
		byConn: make(map[string]*Session),
	}
}

func (st *sessionTable) Add(connectionID, roomID, displayName string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.byConn[connectionID] = &Session{
		ConnectionID: connectionID,
		RoomID:       roomID,
		DisplayName:  displayName,
	}
}

func (st *sessionTable) Lookup(connectionID string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	session, ok := st.byConn[connectionID]
	return session, ok
}

// Remove is idempotent: a disconnect racing an explicit leave finds the
// entry already gone and does nothing.
func (st *sessionTable) Remove(connectionID string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	session, ok := st.byConn[connectionID]
	if ok {
		delete(st.byConn, connectionID)
	}
	return session, ok
}

// Rebind moves a player's session from a dying connection to its
// replacement, so the old connection's disconnect becomes a no-op.
func (st *sessionTable) Rebind(oldConnectionID, newConnectionID, roomID, displayName string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	delete(st.byConn, oldConnectionID)
	st.byConn[newConnectionID] = &Session{
		ConnectionID: newConnectionID,
		RoomID:       roomID,
		DisplayName:  displayName,
	}
}
