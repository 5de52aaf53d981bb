package main

import (
	"fmt"
	"math/rand"
	"time"
)

// The per-round transitions below all follow the same shape: look up the
// room, take its lock, verify the caller's role and the current phase,
// mutate, broadcast while still holding the lock (sends never block),
// release, then invalidate the lobby list. Timer callbacks re-enter
// through the same locked paths and verify their generation first, so a
// cancelled or re-armed timer can never fire into a newer round.

func (co *Coordinator) handleStartGame(c *Client, roomID string) error {
	room, err := co.registry.FindRoom(roomID)
	if err != nil {
		return err
	}

	room.mu.Lock()

	if !room.isCreatorLocked(c.id) {
		room.mu.Unlock()
		return fmt.Errorf("only the room creator can start the game: %w", errInvalidRoleAction)
	}
	if room.phase != PhaseWaiting {
		room.mu.Unlock()
		return fmt.Errorf("the game has already started: %w", errInvalidRoleAction)
	}
	if len(room.players) < 3 {
		room.mu.Unlock()
		return fmt.Errorf("at least 3 players are required: %w", errInvalidRoleAction)
	}

	if err := co.startRoundLocked(room); err != nil {
		room.mu.Unlock()
		return err
	}

	co.broadcastRoundStartedLocked(room, "gameStarted")
	room.mu.Unlock()

	logf(co.cfg, "GAMES: Room %s started with %d players", roomID, len(room.players))
	co.invalidateRoomList()

	return nil
}

// startRoundLocked performs the waiting→playing transition (and its
// round-rotation re-entry): picks a question, assigns roles, clears the
// previous round's leftovers, and arms the forced-reveal timer.
func (co *Coordinator) startRoundLocked(room *Room) error {
	available := co.questions.Questions()
	if len(available) == 0 {
		return errBadRequest
	}
	question := available[rand.Intn(len(available))]
	room.currentQuestion = &question

	n := len(room.players)
	informedIdx := room.currentInformedSlot % n

	for _, p := range room.players {
		p.Role = RoleDeceiver
		p.HasRevealedAnswer = false
	}
	room.players[informedIdx].Role = RoleInformed

	// Uniform over the n-1 non-informed seats, no rejection loop.
	honestIdx := rand.Intn(n - 1)
	if honestIdx >= informedIdx {
		honestIdx++
	}
	room.players[honestIdx].Role = RoleHonest

	room.answerReveal = nil
	room.voteOutcome = nil
	room.phase = PhasePlaying

	room.timers.armLocked(timerForcedReveal, co.cfg.forcedRevealTimeout, func(gen uint64) {
		co.onForcedReveal(room, gen)
	})

	return nil
}

func (co *Coordinator) broadcastRoundStartedLocked(room *Room, msgType string) {
	view := room.viewLocked()
	for _, p := range room.players {
		if c := co.clientByID(p.ConnectionID); c != nil {
			c.trySend(roundStartedMessage{
				Type: msgType,
				Room: view,
				Role: p.Role,
			})
		}
	}
}

func (co *Coordinator) handleReveal(c *Client, roomID string) error {
	room, err := co.registry.FindRoom(roomID)
	if err != nil {
		return err
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	player := room.playerByConnLocked(c.id)
	if player == nil || player.Role != RoleHonest {
		return errInvalidRoleAction
	}
	if room.phase != PhasePlaying {
		return errInvalidRoleAction
	}
	if player.HasRevealedAnswer {
		// Second press of the button in one round has no effect.
		return nil
	}

	co.revealAnswerLocked(room)

	return nil
}

// revealAnswerLocked is the playing→playing reveal sub-transition,
// shared by the honest player's button and the forced-reveal timer.
func (co *Coordinator) revealAnswerLocked(room *Room) {
	honest := room.playerByRoleLocked(RoleHonest)
	honest.HasRevealedAnswer = true

	viewSeconds := time.Duration(room.settings.AnswerViewSeconds) * time.Second
	room.answerReveal = &AnswerReveal{
		Showing: true,
		EndsAt:  time.Now().Add(viewSeconds),
	}

	room.timers.cancelLocked(timerForcedReveal)
	room.timers.armLocked(timerHideAnswer, viewSeconds, func(gen uint64) {
		co.onHideAnswer(room, gen)
	})

	co.broadcastAnswerRevealLocked(room)
}

// broadcastAnswerRevealLocked personalizes the reveal: only the honest
// player's copy carries the answer reference, and only while showing.
func (co *Coordinator) broadcastAnswerRevealLocked(room *Room) {
	view := room.viewLocked()

	for _, p := range room.players {
		c := co.clientByID(p.ConnectionID)
		if c == nil {
			continue
		}

		msg := answerRevealMessage{
			Type:    "answerReveal",
			Room:    view,
			Showing: room.answerShowingLocked(),
		}
		if msg.Showing {
			endsAt := room.answerReveal.EndsAt
			msg.EndsAt = &endsAt
			if p.Role == RoleHonest && room.currentQuestion != nil {
				msg.AnswerRef = room.currentQuestion.AnswerRef
			}
		}

		c.trySend(msg)
	}
}

func (co *Coordinator) onForcedReveal(room *Room, gen uint64) {
	room.mu.Lock()
	defer room.mu.Unlock()

	if !room.timers.liveLocked(timerForcedReveal, gen) {
		return
	}
	if room.phase != PhasePlaying {
		return
	}
	honest := room.playerByRoleLocked(RoleHonest)
	if honest == nil || honest.HasRevealedAnswer {
		return
	}

	co.revealAnswerLocked(room)
}

func (co *Coordinator) onHideAnswer(room *Room, gen uint64) {
	room.mu.Lock()
	defer room.mu.Unlock()

	if !room.timers.liveLocked(timerHideAnswer, gen) {
		return
	}
	if room.answerReveal == nil || !room.answerReveal.Showing {
		return
	}

	room.answerReveal.Showing = false
	co.broadcastAnswerRevealLocked(room)
}

func (co *Coordinator) handleStartVoting(c *Client, roomID string) error {
	room, err := co.registry.FindRoom(roomID)
	if err != nil {
		return err
	}

	room.mu.Lock()

	player := room.playerByConnLocked(c.id)
	if player == nil || player.Role != RoleInformed {
		room.mu.Unlock()
		return errInvalidRoleAction
	}
	if room.phase != PhasePlaying {
		room.mu.Unlock()
		return errInvalidRoleAction
	}
	honest := room.playerByRoleLocked(RoleHonest)
	if honest == nil || !honest.HasRevealedAnswer || room.answerShowingLocked() {
		room.mu.Unlock()
		return fmt.Errorf("voting opens once the answer has been revealed and hidden again: %w", errInvalidRoleAction)
	}

	room.timers.cancelLocked(timerForcedReveal)
	room.phase = PhaseVoting

	co.broadcastRoomLocked(room, votingStartedMessage{
		Type: "votingStarted",
		Room: room.viewLocked(),
	})
	room.mu.Unlock()

	co.invalidateRoomList()

	return nil
}

func (co *Coordinator) handleVote(c *Client, roomID, honestGuessID, deceiverGuessID string) error {
	if honestGuessID == "" {
		return errBadRequest
	}

	room, err := co.registry.FindRoom(roomID)
	if err != nil {
		return err
	}

	room.mu.Lock()

	player := room.playerByConnLocked(c.id)
	if player == nil || player.Role != RoleInformed {
		room.mu.Unlock()
		return errInvalidRoleAction
	}
	if room.phase != PhaseVoting {
		room.mu.Unlock()
		return errInvalidRoleAction
	}

	outcome, winner := evaluateVote(room, honestGuessID, deceiverGuessID, co.cfg.scoreTable())

	for _, p := range room.players {
		p.Score += outcome.ScoreDeltas[p.ConnectionID]
	}
	room.voteOutcome = outcome

	if outcome.IsGameOver {
		room.phase = PhaseCompleted
		room.winner = winner
		room.timers.cancelAllLocked()
	} else {
		room.phase = PhaseEnded
		room.timers.armLocked(timerAutoAdvance, co.cfg.autoAdvanceDelay, func(gen uint64) {
			co.onAutoAdvance(room, gen)
		})
	}

	co.broadcastRoomLocked(room, voteResultMessage{
		Type:    "voteResult",
		Room:    room.viewLocked(),
		Outcome: outcome,
	})
	round := room.currentRoundIndex
	room.mu.Unlock()

	logf(co.cfg, "GAMES: Room %s round %d voted, game over: %t", roomID, round, outcome.IsGameOver)
	co.invalidateRoomList()

	return nil
}

// handleNextGame is the manual ended→playing trigger. It is idempotent
// with the auto-advance timer: whichever fires first wins, the other
// sees the phase has left ended and does nothing.
func (co *Coordinator) handleNextGame(c *Client, roomID string) error {
	room, err := co.registry.FindRoom(roomID)
	if err != nil {
		return err
	}

	room.mu.Lock()

	if room.phase != PhaseEnded {
		room.mu.Unlock()
		return nil
	}
	if !room.isCreatorLocked(c.id) {
		room.mu.Unlock()
		return errInvalidRoleAction
	}

	if err := co.advanceRoundLocked(room); err != nil {
		room.mu.Unlock()
		return err
	}
	room.mu.Unlock()

	co.invalidateRoomList()

	return nil
}

func (co *Coordinator) onAutoAdvance(room *Room, gen uint64) {
	room.mu.Lock()

	if !room.timers.liveLocked(timerAutoAdvance, gen) || room.phase != PhaseEnded {
		room.mu.Unlock()
		return
	}

	if err := co.advanceRoundLocked(room); err != nil {
		room.mu.Unlock()
		return
	}
	room.mu.Unlock()

	co.invalidateRoomList()
}

// advanceRoundLocked performs round rotation: next round index, next
// informed seat, fresh question and roles via the same path as the
// initial start.
func (co *Coordinator) advanceRoundLocked(room *Room) error {
	room.timers.cancelLocked(timerAutoAdvance)

	// The roster may have shrunk between the vote and the rotation.
	if len(room.players) < 3 {
		co.closeRoomLocked(room, "not enough players remain to start the next round")
		return nil
	}

	room.currentRoundIndex++
	room.currentInformedSlot = (room.currentInformedSlot + 1) % len(room.players)

	if err := co.startRoundLocked(room); err != nil {
		return err
	}

	co.broadcastRoundStartedLocked(room, "nextGameStarted")
	logf(co.cfg, "GAMES: Room %s advanced to round %d", room.id, room.currentRoundIndex)

	return nil
}
