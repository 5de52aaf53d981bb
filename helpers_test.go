package main

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func testConfig() *Config {
	return &Config{
		verbose:             false,
		forcedRevealTimeout: 50 * time.Millisecond,
		autoAdvanceDelay:    50 * time.Millisecond,
		reconnectGrace:      50 * time.Millisecond,
		closedRoomTTL:       time.Hour,
		closedRoomSweep:     time.Minute,
		roomListTTL:         20 * time.Millisecond,
		pointsCorrectGuess:  2,
		pointsDeceiverBonus: 1,
		pointsHonestEvasion: 3,
		pointsDeceiverEvade: 1,
	}
}

// newTestClient skips the websocket upgrade: handlers only ever touch
// the send channel, so tests read broadcasts straight from it.
func newTestClient() *Client {
	return &Client{
		id:   uuid.NewString(),
		send: make(chan any, 256),
		chat: rate.NewLimiter(rate.Inf, 1),
	}
}

func drain(c *Client) []any {
	var msgs []any
	for {
		select {
		case msg := <-c.send:
			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
}

// lastOfType drains the client's queue and returns the most recent
// message of type T.
func lastOfType[T any](t *testing.T, c *Client) (T, bool) {
	t.Helper()

	var (
		found bool
		last  T
	)
	for _, msg := range drain(c) {
		if typed, ok := msg.(T); ok {
			found = true
			last = typed
		}
	}
	return last, found
}

func requireLastOfType[T any](t *testing.T, c *Client) T {
	t.Helper()

	msg, ok := lastOfType[T](t, c)
	require.True(t, ok, "expected a %T message", msg)
	return msg
}

// setupGame creates a coordinator, a room with the given settings, and
// n joined players. The first client is the creator.
func setupGame(t *testing.T, n int, settings RoomSettings) (*Coordinator, *Room, []*Client) {
	t.Helper()

	co := newCoordinator(testConfig(), builtinQuestions())

	clients := make([]*Client, 0, n)
	creator := newTestClient()
	co.register(creator)
	clients = append(clients, creator)

	require.NoError(t, co.handleCreateRoom(creator, &roomSettingsRequest{
		DisplayName:       "player0",
		MaxPlayers:        settings.MaxPlayers,
		TotalRounds:       settings.TotalRounds,
		PointsToWin:       settings.PointsToWin,
		AnswerViewSeconds: settings.AnswerViewSeconds,
	}))

	rooms := co.registry.Rooms()
	require.Len(t, rooms, 1)
	room := rooms[0]

	for i := 1; i < n; i++ {
		c := newTestClient()
		co.register(c)
		clients = append(clients, c)
		require.NoError(t, co.handleJoinRoom(c, room.id, "player"+string(rune('0'+i))))
	}

	return co, room, clients
}

func roomPhase(room *Room) Phase {
	room.mu.Lock()
	defer room.mu.Unlock()
	return room.phase
}

func playerByRole(room *Room, role Role) *Player {
	room.mu.Lock()
	defer room.mu.Unlock()
	return room.playerByRoleLocked(role)
}

func clientFor(t *testing.T, clients []*Client, p *Player) *Client {
	t.Helper()

	for _, c := range clients {
		if c.id == p.ConnectionID {
			return c
		}
	}
	t.Fatalf("no client for connection %s", p.ConnectionID)
	return nil
}

// playRound drives a full reveal→voting→vote round. The guess is
// correct when hit is true. Waits out the answer view window before
// starting the vote.
func playRound(t *testing.T, co *Coordinator, room *Room, clients []*Client, hit bool) {
	t.Helper()

	honest := playerByRole(room, RoleHonest)
	informed := playerByRole(room, RoleInformed)

	require.NoError(t, co.handleReveal(clientFor(t, clients, honest), room.id))

	viewSeconds := room.settings.AnswerViewSeconds
	time.Sleep(time.Duration(viewSeconds)*time.Second + 100*time.Millisecond)

	require.NoError(t, co.handleStartVoting(clientFor(t, clients, informed), room.id))

	guess := honest.ConnectionID
	if !hit {
		guess = informed.ConnectionID // guaranteed miss
	}
	require.NoError(t, co.handleVote(clientFor(t, clients, informed), room.id, guess, ""))
}
