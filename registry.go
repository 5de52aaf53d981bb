package main

import (
	"crypto/rand"
	"sync"
	"time"
)

// ClosedRoomRecord is retained for a bounded TTL so that late-arriving
// clients learn why their room vanished instead of a bare not-found.
type ClosedRoomRecord struct {
	RoomID   string    `json:"roomId"`
	Reason   string    `json:"reason"`
	ClosedAt time.Time `json:"closedAt"`
}

// Registry is the authoritative map of room id to live room.
type Registry struct {
	mu     sync.Mutex
	rooms  map[string]*Room
	closed map[string]*ClosedRoomRecord
	ttl    time.Duration
}

func newRegistry(closedTTL time.Duration) *Registry {
	return &Registry{
		rooms:  make(map[string]*Room),
		closed: make(map[string]*ClosedRoomRecord),
		ttl:    closedTTL,
	}
}

func (reg *Registry) CreateRoom(settings RoomSettings) (*Room, error) {
	if settings.MaxPlayers < 3 || settings.TotalRounds < 1 || settings.PointsToWin < 1 || settings.AnswerViewSeconds < 1 {
		return nil, errBadRequest
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	room := newRoom(reg.newRoomIDLocked(), settings)
	reg.rooms[room.id] = room

	return room, nil
}

// FindRoom returns the live room, a roomClosedError if the room was
// recently closed, or errRoomNotFound.
func (reg *Registry) FindRoom(roomID string) (*Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if room, ok := reg.rooms[roomID]; ok {
		return room, nil
	}
	if record, ok := reg.closed[roomID]; ok {
		return nil, &roomClosedError{reason: record.Reason}
	}

	return nil, errRoomNotFound
}

// CloseRoom moves the room out of the live map and records why. Returns
// the removed room, or nil if it was already gone (close may race with
// an explicit leave).
func (reg *Registry) CloseRoom(roomID, reason string) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, ok := reg.rooms[roomID]
	if !ok {
		return nil
	}

	delete(reg.rooms, roomID)
	reg.closed[roomID] = &ClosedRoomRecord{
		RoomID:   roomID,
		Reason:   reason,
		ClosedAt: time.Now(),
	}

	return room
}

func (reg *Registry) Rooms() []*Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	rooms := make([]*Room, 0, len(reg.rooms))
	for _, room := range reg.rooms {
		rooms = append(rooms, room)
	}

	return rooms
}

// sweepOnce drops closed-room records older than the TTL.
func (reg *Registry) sweepOnce(now time.Time) {
	cutoff := now.Add(-reg.ttl)

	reg.mu.Lock()
	defer reg.mu.Unlock()

	for id, record := range reg.closed {
		if record.ClosedAt.Before(cutoff) {
			delete(reg.closed, id)
		}
	}
}

func (reg *Registry) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	for range ticker.C {
		reg.sweepOnce(time.Now())
	}
}

const roomIDLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// newRoomIDLocked generates a crypto-random room id unique among live
// rooms. Assumes reg.mu is held.
func (reg *Registry) newRoomIDLocked() string {
	for {
		buf := make([]byte, 6)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, 6)
		for i := range out {
			out[i] = roomIDLetters[int(buf[i])%len(roomIDLetters)]
		}
		id := string(out)

		if _, exists := reg.rooms[id]; !exists {
			return id
		}
	}
}
