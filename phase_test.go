package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultSettings() RoomSettings {
	return RoomSettings{MaxPlayers: 5, TotalRounds: 10, PointsToWin: 100, AnswerViewSeconds: 1}
}

func TestStartGameAssignsRoles(t *testing.T) {
	co, room, clients := setupGame(t, 4, defaultSettings())

	require.NoError(t, co.handleStartGame(clients[0], room.id))

	room.mu.Lock()
	defer room.mu.Unlock()

	assert.Equal(t, PhasePlaying, room.phase)
	require.NotNil(t, room.currentQuestion)

	var informed, honest, deceivers int
	for _, p := range room.players {
		switch p.Role {
		case RoleInformed:
			informed++
		case RoleHonest:
			honest++
		case RoleDeceiver:
			deceivers++
		}
		assert.False(t, p.HasRevealedAnswer)
	}
	assert.Equal(t, 1, informed)
	assert.Equal(t, 1, honest)
	assert.Equal(t, 2, deceivers)

	// Round 0: the informed player is the creator's seat.
	assert.Equal(t, RoleInformed, room.players[0].Role)
}

func TestStartGameRequiresCreator(t *testing.T) {
	co, room, clients := setupGame(t, 3, defaultSettings())

	err := co.handleStartGame(clients[1], room.id)

	require.ErrorIs(t, err, errInvalidRoleAction)
	assert.Equal(t, PhaseWaiting, roomPhase(room))
}

func TestStartGameRequiresThreePlayers(t *testing.T) {
	co, room, clients := setupGame(t, 2, defaultSettings())

	err := co.handleStartGame(clients[0], room.id)

	require.ErrorIs(t, err, errInvalidRoleAction)
	assert.Equal(t, PhaseWaiting, roomPhase(room))
}

func TestRevealIsIdempotent(t *testing.T) {
	co, room, clients := setupGame(t, 3, defaultSettings())
	require.NoError(t, co.handleStartGame(clients[0], room.id))

	honest := playerByRole(room, RoleHonest)
	c := clientFor(t, clients, honest)

	require.NoError(t, co.handleReveal(c, room.id))

	room.mu.Lock()
	firstReveal := *room.answerReveal
	firstGen := room.timers.gens[timerHideAnswer]
	room.mu.Unlock()

	require.NoError(t, co.handleReveal(c, room.id))

	room.mu.Lock()
	defer room.mu.Unlock()

	assert.True(t, honest.HasRevealedAnswer)
	assert.Equal(t, firstReveal, *room.answerReveal)
	assert.Equal(t, firstGen, room.timers.gens[timerHideAnswer], "second reveal must not re-arm the hide timer")
}

func TestRevealRejectsNonHonestPlayers(t *testing.T) {
	co, room, clients := setupGame(t, 3, defaultSettings())
	require.NoError(t, co.handleStartGame(clients[0], room.id))

	informed := playerByRole(room, RoleInformed)

	err := co.handleReveal(clientFor(t, clients, informed), room.id)

	require.ErrorIs(t, err, errInvalidRoleAction)

	room.mu.Lock()
	defer room.mu.Unlock()
	assert.Nil(t, room.answerReveal)
}

func TestForcedRevealTimerFires(t *testing.T) {
	co, room, clients := setupGame(t, 3, defaultSettings())
	require.NoError(t, co.handleStartGame(clients[0], room.id))

	// Nobody presses the button; the timer reveals on the honest
	// player's behalf.
	time.Sleep(co.cfg.forcedRevealTimeout + 100*time.Millisecond)

	room.mu.Lock()
	defer room.mu.Unlock()

	require.NotNil(t, room.answerReveal)
	assert.True(t, room.answerReveal.Showing)
	assert.True(t, room.playerByRoleLocked(RoleHonest).HasRevealedAnswer)
}

func TestHideTimerEndsRevealWindow(t *testing.T) {
	co, room, clients := setupGame(t, 3, defaultSettings())
	require.NoError(t, co.handleStartGame(clients[0], room.id))

	honest := playerByRole(room, RoleHonest)
	require.NoError(t, co.handleReveal(clientFor(t, clients, honest), room.id))

	time.Sleep(time.Duration(room.settings.AnswerViewSeconds)*time.Second + 200*time.Millisecond)

	room.mu.Lock()
	defer room.mu.Unlock()

	require.NotNil(t, room.answerReveal)
	assert.False(t, room.answerReveal.Showing)
}

func TestAnswerRefOnlyReachesHonestPlayer(t *testing.T) {
	co, room, clients := setupGame(t, 3, defaultSettings())
	require.NoError(t, co.handleStartGame(clients[0], room.id))

	honest := playerByRole(room, RoleHonest)
	require.NoError(t, co.handleReveal(clientFor(t, clients, honest), room.id))

	for _, p := range room.players {
		msg := requireLastOfType[answerRevealMessage](t, clientFor(t, clients, p))
		if p.Role == RoleHonest {
			assert.NotEmpty(t, msg.AnswerRef)
		} else {
			assert.Empty(t, msg.AnswerRef)
		}
	}
}

func TestStartVotingRequiresHiddenReveal(t *testing.T) {
	co, room, clients := setupGame(t, 3, defaultSettings())
	require.NoError(t, co.handleStartGame(clients[0], room.id))

	informed := playerByRole(room, RoleInformed)
	honest := playerByRole(room, RoleHonest)

	// Before the reveal.
	require.ErrorIs(t, co.handleStartVoting(clientFor(t, clients, informed), room.id), errInvalidRoleAction)

	// While the reveal is showing.
	require.NoError(t, co.handleReveal(clientFor(t, clients, honest), room.id))
	require.ErrorIs(t, co.handleStartVoting(clientFor(t, clients, informed), room.id), errInvalidRoleAction)

	// After the window has lapsed.
	time.Sleep(time.Duration(room.settings.AnswerViewSeconds)*time.Second + 200*time.Millisecond)
	require.NoError(t, co.handleStartVoting(clientFor(t, clients, informed), room.id))
	assert.Equal(t, PhaseVoting, roomPhase(room))
}

func TestStartVotingRejectsNonInformed(t *testing.T) {
	co, room, clients := setupGame(t, 3, defaultSettings())
	require.NoError(t, co.handleStartGame(clients[0], room.id))

	honest := playerByRole(room, RoleHonest)
	require.NoError(t, co.handleReveal(clientFor(t, clients, honest), room.id))
	time.Sleep(time.Duration(room.settings.AnswerViewSeconds)*time.Second + 200*time.Millisecond)

	err := co.handleStartVoting(clientFor(t, clients, honest), room.id)

	require.ErrorIs(t, err, errInvalidRoleAction)
	assert.Equal(t, PhasePlaying, roomPhase(room))
}

func TestVoteRejectsNonInformed(t *testing.T) {
	co, room, clients := setupGame(t, 3, defaultSettings())
	require.NoError(t, co.handleStartGame(clients[0], room.id))

	honest := playerByRole(room, RoleHonest)
	informed := playerByRole(room, RoleInformed)
	require.NoError(t, co.handleReveal(clientFor(t, clients, honest), room.id))
	time.Sleep(time.Duration(room.settings.AnswerViewSeconds)*time.Second + 200*time.Millisecond)
	require.NoError(t, co.handleStartVoting(clientFor(t, clients, informed), room.id))

	err := co.handleVote(clientFor(t, clients, honest), room.id, honest.ConnectionID, "")

	require.ErrorIs(t, err, errInvalidRoleAction)
	assert.Equal(t, PhaseVoting, roomPhase(room))

	room.mu.Lock()
	defer room.mu.Unlock()
	assert.Nil(t, room.voteOutcome)
}

func TestRoleRotationAcrossRounds(t *testing.T) {
	settings := defaultSettings()
	settings.TotalRounds = 10
	co, room, clients := setupGame(t, 3, settings)

	require.NoError(t, co.handleStartGame(clients[0], room.id))

	for round := 0; round < 4; round++ {
		room.mu.Lock()
		informedIdx := room.currentInformedSlot % len(room.players)
		assert.Equal(t, round%len(room.players), informedIdx)
		assert.Equal(t, RoleInformed, room.players[informedIdx].Role)
		honest := room.playerByRoleLocked(RoleHonest)
		assert.NotEqual(t, room.players[informedIdx], honest)
		room.mu.Unlock()

		playRound(t, co, room, clients, true)

		// Manual advance keeps the test fast and deterministic.
		require.NoError(t, co.handleNextGame(clients[0], room.id))
		require.Equal(t, PhasePlaying, roomPhase(room))
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	assert.Equal(t, 4, room.currentRoundIndex)
}

func TestAutoAdvanceAfterVote(t *testing.T) {
	settings := defaultSettings()
	settings.TotalRounds = 3
	co, room, clients := setupGame(t, 3, settings)

	require.NoError(t, co.handleStartGame(clients[0], room.id))
	playRound(t, co, room, clients, true)

	require.Equal(t, PhaseEnded, roomPhase(room))

	time.Sleep(co.cfg.autoAdvanceDelay + 100*time.Millisecond)

	room.mu.Lock()
	defer room.mu.Unlock()

	assert.Equal(t, PhasePlaying, room.phase)
	assert.Equal(t, 1, room.currentRoundIndex)
	assert.Equal(t, 1, room.currentInformedSlot)
	assert.Nil(t, room.voteOutcome)
}

func TestManualNextGameWinsRaceWithTimer(t *testing.T) {
	settings := defaultSettings()
	settings.TotalRounds = 3
	co, room, clients := setupGame(t, 3, settings)

	require.NoError(t, co.handleStartGame(clients[0], room.id))
	playRound(t, co, room, clients, true)

	require.NoError(t, co.handleNextGame(clients[0], room.id))
	require.Equal(t, PhasePlaying, roomPhase(room))

	// The pending auto-advance must now be a no-op.
	time.Sleep(co.cfg.autoAdvanceDelay + 100*time.Millisecond)

	room.mu.Lock()
	defer room.mu.Unlock()
	assert.Equal(t, 1, room.currentRoundIndex, "auto-advance fired after a manual advance")
}

func TestAutoAdvanceClosesShrunkenRoom(t *testing.T) {
	settings := defaultSettings()
	settings.TotalRounds = 3
	co, room, clients := setupGame(t, 3, settings)

	require.NoError(t, co.handleStartGame(clients[0], room.id))
	playRound(t, co, room, clients, true)
	require.Equal(t, PhaseEnded, roomPhase(room))

	// Both non-creators leave while the auto-advance timer is pending;
	// the rotation must close the room instead of starting a round with
	// one seat.
	require.NoError(t, co.handleLeave(clients[1], room.id))
	require.NoError(t, co.handleLeave(clients[2], room.id))

	time.Sleep(co.cfg.autoAdvanceDelay + 100*time.Millisecond)

	_, err := co.registry.FindRoom(room.id)
	var closed *roomClosedError
	require.ErrorAs(t, err, &closed)
	assert.Contains(t, closed.reason, "not enough players")

	msg := requireLastOfType[roomClosedMessage](t, clients[0])
	assert.Equal(t, room.id, msg.RoomID)
}

func TestNextGameClosesShrunkenRoom(t *testing.T) {
	settings := defaultSettings()
	settings.TotalRounds = 3
	co, room, clients := setupGame(t, 3, settings)

	require.NoError(t, co.handleStartGame(clients[0], room.id))
	playRound(t, co, room, clients, true)

	require.NoError(t, co.handleLeave(clients[1], room.id))
	require.NoError(t, co.handleLeave(clients[2], room.id))

	require.NoError(t, co.handleNextGame(clients[0], room.id))

	_, err := co.registry.FindRoom(room.id)
	var closed *roomClosedError
	require.ErrorAs(t, err, &closed)
}

func TestNextGameIgnoredOutsideEndedPhase(t *testing.T) {
	co, room, clients := setupGame(t, 3, defaultSettings())
	require.NoError(t, co.handleStartGame(clients[0], room.id))

	require.NoError(t, co.handleNextGame(clients[0], room.id))

	room.mu.Lock()
	defer room.mu.Unlock()
	assert.Equal(t, 0, room.currentRoundIndex)
	assert.Equal(t, PhasePlaying, room.phase)
}

// Single-round game: a correct final guess completes the game with a
// defined winner.
func TestEndToEndSingleRoundCompletion(t *testing.T) {
	co, room, clients := setupGame(t, 3, RoomSettings{
		MaxPlayers: 3, TotalRounds: 1, PointsToWin: 100, AnswerViewSeconds: 1,
	})

	require.NoError(t, co.handleStartGame(clients[0], room.id))
	playRound(t, co, room, clients, true)

	room.mu.Lock()
	defer room.mu.Unlock()

	assert.Equal(t, PhaseCompleted, room.phase)
	require.NotNil(t, room.voteOutcome)
	assert.True(t, room.voteOutcome.IsGameOver)
	require.NotNil(t, room.winner)
	assert.Equal(t, room.playerByRoleLocked(RoleInformed), room.winner)
}

// Three-round game: round 0 ends, then auto-advance rotates into round
// 1 with a fresh informed seat.
func TestEndToEndAutoAdvanceRotation(t *testing.T) {
	co, room, clients := setupGame(t, 3, RoomSettings{
		MaxPlayers: 3, TotalRounds: 3, PointsToWin: 100, AnswerViewSeconds: 1,
	})

	require.NoError(t, co.handleStartGame(clients[0], room.id))
	playRound(t, co, room, clients, false)

	require.Equal(t, PhaseEnded, roomPhase(room))

	time.Sleep(co.cfg.autoAdvanceDelay + 100*time.Millisecond)

	room.mu.Lock()
	defer room.mu.Unlock()

	assert.Equal(t, PhasePlaying, room.phase)
	assert.Equal(t, 1, room.currentRoundIndex)
	assert.Equal(t, 1, room.currentInformedSlot)
	assert.Equal(t, RoleInformed, room.players[1].Role)
}

func TestPointsToWinEndsGameEarly(t *testing.T) {
	settings := defaultSettings()
	settings.PointsToWin = 2
	co, room, clients := setupGame(t, 3, settings)

	require.NoError(t, co.handleStartGame(clients[0], room.id))
	playRound(t, co, room, clients, true) // informed reaches 2

	room.mu.Lock()
	defer room.mu.Unlock()

	assert.Equal(t, PhaseCompleted, room.phase)
	require.NotNil(t, room.winner)
	assert.GreaterOrEqual(t, room.winner.Score, 2)
}
