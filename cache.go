package main

import (
	"sort"
	"sync"
	"time"
)

// RoomSummary is the public, derived view of one room for the lobby list.
type RoomSummary struct {
	ID           string         `json:"id"`
	Phase        Phase          `json:"phase"`
	PlayerCount  int            `json:"playerCount"`
	PlayerNames  []string       `json:"playerNames"`
	PlayerScores map[string]int `json:"playerScores"`
	RoundIndex   int            `json:"roundIndex"`
	Settings     RoomSettings   `json:"settings"`
}

// roomListCache memoizes the lobby snapshot for a short window to absorb
// bursts of membership churn. Any membership or phase mutation
// invalidates it early.
type roomListCache struct {
	mu       sync.Mutex
	ttl      time.Duration
	cachedAt time.Time
	dirty    bool
	snapshot []RoomSummary
}

func newRoomListCache(ttl time.Duration) *roomListCache {
	return &roomListCache{
		ttl:   ttl,
		dirty: true,
	}
}

func (c *roomListCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dirty = true
}

// Snapshot returns the memoized view, recomputing from source only when
// the window has lapsed or a mutation invalidated it. Completed rooms
// are omitted.
func (c *roomListCache) Snapshot(source func() []*Room) []RoomSummary {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dirty && time.Since(c.cachedAt) < c.ttl {
		return c.snapshot
	}

	rooms := source()
	summaries := make([]RoomSummary, 0, len(rooms))

	for _, room := range rooms {
		room.mu.Lock()
		if room.phase == PhaseCompleted {
			room.mu.Unlock()
			continue
		}

		summary := RoomSummary{
			ID:           room.id,
			Phase:        room.phase,
			PlayerCount:  len(room.players),
			PlayerNames:  make([]string, 0, len(room.players)),
			PlayerScores: make(map[string]int, len(room.players)),
			RoundIndex:   room.currentRoundIndex,
			Settings:     room.settings,
		}
		for _, p := range room.players {
			summary.PlayerNames = append(summary.PlayerNames, p.DisplayName)
			summary.PlayerScores[p.DisplayName] = p.Score
		}
		room.mu.Unlock()

		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].ID < summaries[j].ID
	})

	c.snapshot = summaries
	c.cachedAt = time.Now()
	c.dirty = false

	return summaries
}
