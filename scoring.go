package main

// ScoreTable holds the per-round point awards. The constants are
// configuration (see the --points-* flags), not literals.
type ScoreTable struct {
	CorrectGuess    int // informed player, honest guess correct
	DeceiverBonus   int // informed player, deceiver guess also correct
	HonestEvasion   int // honest player, guess missed
	DeceiverEvasion int // each deceiver, guess missed
}

// evaluateVote is a pure function from the informed player's guesses to
// the round outcome. Deltas are keyed by connection id and are not
// applied to the players here; game-over and the winner are computed on
// the prospective post-award scores. Ties break by seat order.
func evaluateVote(room *Room, honestGuessID, deceiverGuessID string, table ScoreTable) (*VoteOutcome, *Player) {
	informed := room.playerByRoleLocked(RoleInformed)
	honest := room.playerByRoleLocked(RoleHonest)

	outcome := &VoteOutcome{
		InformedConnectionID: informed.ConnectionID,
		HonestGuessID:        honestGuessID,
		DeceiverGuessID:      deceiverGuessID,
		HonestGuessCorrect:   honestGuessID == honest.ConnectionID,
		ScoreDeltas:          make(map[string]int, len(room.players)),
	}

	if deceiverGuessID != "" {
		if target := room.playerByConnLocked(deceiverGuessID); target != nil && target.Role == RoleDeceiver {
			outcome.DeceiverGuessCorrect = true
		}
	}

	if outcome.HonestGuessCorrect {
		award := table.CorrectGuess
		if outcome.DeceiverGuessCorrect {
			award += table.DeceiverBonus
		}
		outcome.ScoreDeltas[informed.ConnectionID] = award
	} else {
		outcome.ScoreDeltas[honest.ConnectionID] = table.HonestEvasion
		for _, p := range room.players {
			if p.Role == RoleDeceiver {
				outcome.ScoreDeltas[p.ConnectionID] = table.DeceiverEvasion
			}
		}
	}

	var (
		winner        *Player
		best          int
		reachedPoints bool
	)
	for _, p := range room.players {
		score := p.Score + outcome.ScoreDeltas[p.ConnectionID]
		if score >= room.settings.PointsToWin {
			reachedPoints = true
		}
		if winner == nil || score > best {
			winner = p
			best = score
		}
	}

	outcome.IsGameOver = reachedPoints || room.currentRoundIndex >= room.settings.TotalRounds-1

	return outcome, winner
}
