package main

import (
	"sync"
	"time"
)

type Role string

const (
	RoleInformed Role = "informed"
	RoleHonest   Role = "honest"
	RoleDeceiver Role = "deceiver"
)

type Phase string

const (
	PhaseWaiting   Phase = "waiting"
	PhasePlaying   Phase = "playing"
	PhaseVoting    Phase = "voting"
	PhaseEnded     Phase = "ended"
	PhaseCompleted Phase = "completed"
)

// Player is one seat in a room. DisplayName is the stable identity
// across reconnects; ConnectionID changes on every reconnect.
type Player struct {
	ConnectionID      string `json:"connectionId"`
	DisplayName       string `json:"displayName"`
	Role              Role   `json:"-"`
	Score             int    `json:"score"`
	HasRevealedAnswer bool   `json:"hasRevealedAnswer"`
}

// Question holds opaque references into the external asset collaborator.
// The coordinator selects and distributes them, never interprets them.
type Question struct {
	ID        string `json:"id"`
	PromptRef string `json:"promptRef"`
	AnswerRef string `json:"answerRef"`
}

type AnswerReveal struct {
	Showing bool      `json:"showing"`
	EndsAt  time.Time `json:"endsAt"`
}

// VoteOutcome is produced once per round at the vote transition and
// cleared at round rotation.
type VoteOutcome struct {
	InformedConnectionID string         `json:"informedConnectionId"`
	HonestGuessID        string         `json:"honestGuessId"`
	DeceiverGuessID      string         `json:"deceiverGuessId,omitempty"`
	HonestGuessCorrect   bool           `json:"honestGuessCorrect"`
	DeceiverGuessCorrect bool           `json:"deceiverGuessCorrect"`
	ScoreDeltas          map[string]int `json:"scoreDeltas"`
	IsGameOver           bool           `json:"isGameOver"`
}

type RoomSettings struct {
	MaxPlayers        int `json:"maxPlayers"`
	TotalRounds       int `json:"totalRounds"`
	PointsToWin       int `json:"pointsToWin"`
	AnswerViewSeconds int `json:"answerViewSeconds"`
}

type Room struct {
	mu sync.Mutex

	id       string
	settings RoomSettings

	players             []*Player
	phase               Phase
	currentRoundIndex   int
	currentInformedSlot int
	currentQuestion     *Question
	answerReveal        *AnswerReveal
	voteOutcome         *VoteOutcome
	winner              *Player

	createdAt time.Time
	timers    roomTimers
}

func newRoom(id string, settings RoomSettings) *Room {
	return &Room{
		id:        id,
		settings:  settings,
		phase:     PhaseWaiting,
		createdAt: time.Now(),
		timers:    newRoomTimers(),
	}
}

// The creator is always seat 0; losing that seat closes the room.
func (room *Room) creatorLocked() *Player {
	if len(room.players) == 0 {
		return nil
	}
	return room.players[0]
}

func (room *Room) isCreatorLocked(connectionID string) bool {
	creator := room.creatorLocked()
	return creator != nil && creator.ConnectionID == connectionID
}

func (room *Room) playerByConnLocked(connectionID string) *Player {
	for _, p := range room.players {
		if p.ConnectionID == connectionID {
			return p
		}
	}
	return nil
}

func (room *Room) playerByNameLocked(displayName string) *Player {
	for _, p := range room.players {
		if p.DisplayName == displayName {
			return p
		}
	}
	return nil
}

func (room *Room) playerByRoleLocked(role Role) *Player {
	for _, p := range room.players {
		if p.Role == role {
			return p
		}
	}
	return nil
}

func (room *Room) removePlayerLocked(connectionID string) *Player {
	for i, p := range room.players {
		if p.ConnectionID == connectionID {
			room.players = append(room.players[:i], room.players[i+1:]...)
			return p
		}
	}
	return nil
}

func (room *Room) answerShowingLocked() bool {
	return room.answerReveal != nil && room.answerReveal.Showing
}
