package main

import (
	"encoding/json"
	"sync"
)

// VoiceUser is one participant of a room's audio sub-channel. The peer
// handle is opaque signaling data: stored and relayed, never inspected.
type VoiceUser struct {
	ConnectionID string          `json:"connectionId"`
	PeerHandle   json.RawMessage `json:"peerHandle,omitempty"`
}

// voiceTracker is a side-table of voice membership per room, entirely
// decoupled from game phase.
type voiceTracker struct {
	mu    sync.Mutex
	rooms map[string]map[string]json.RawMessage
}

func newVoiceTracker() *voiceTracker {
	return &voiceTracker{
		rooms: make(map[string]map[string]json.RawMessage),
	}
}

func (vt *voiceTracker) Join(roomID, connectionID string, handle json.RawMessage) {
	vt.mu.Lock()
	defer vt.mu.Unlock()

	members, ok := vt.rooms[roomID]
	if !ok {
		members = make(map[string]json.RawMessage)
		vt.rooms[roomID] = members
	}
	members[connectionID] = handle
}

// SetPeer updates the stored handle for an existing member; joining
// implicitly if the member is unknown keeps store-peer-id usable in
// either order relative to join-voice.
func (vt *voiceTracker) SetPeer(roomID, connectionID string, handle json.RawMessage) {
	vt.Join(roomID, connectionID, handle)
}

func (vt *voiceTracker) Leave(roomID, connectionID string) {
	vt.mu.Lock()
	defer vt.mu.Unlock()

	members, ok := vt.rooms[roomID]
	if !ok {
		return
	}
	delete(members, connectionID)
	if len(members) == 0 {
		delete(vt.rooms, roomID)
	}
}

func (vt *voiceTracker) DropRoom(roomID string) {
	vt.mu.Lock()
	defer vt.mu.Unlock()

	delete(vt.rooms, roomID)
}

func (vt *voiceTracker) Members(roomID string) []VoiceUser {
	vt.mu.Lock()
	defer vt.mu.Unlock()

	members := vt.rooms[roomID]
	users := make([]VoiceUser, 0, len(members))
	for id, handle := range members {
		users = append(users, VoiceUser{ConnectionID: id, PeerHandle: handle})
	}
	return users
}
