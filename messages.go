package main

import (
	"encoding/json"
	"time"
)

// clientMessage is the tagged envelope for everything a client sends.
// Shape is validated per type at the dispatch boundary before any state
// is touched.
type clientMessage struct {
	Type            string               `json:"type"`
	RoomID          string               `json:"roomId,omitempty"`
	DisplayName     string               `json:"displayName,omitempty"`
	Settings        *roomSettingsRequest `json:"settings,omitempty"`
	HonestGuessID   string               `json:"honestGuessId,omitempty"`
	DeceiverGuessID string               `json:"deceiverGuessId,omitempty"`
	Content         string               `json:"content,omitempty"`
	Sender          string               `json:"sender,omitempty"`
	PeerHandle      json.RawMessage      `json:"peerHandle,omitempty"`
}

type roomSettingsRequest struct {
	DisplayName       string `json:"displayName"`
	MaxPlayers        int    `json:"maxPlayers"`
	TotalRounds       int    `json:"totalRounds"`
	PointsToWin       int    `json:"pointsToWin"`
	AnswerViewSeconds int    `json:"answerViewSeconds"`
}

// playerView hides roles: who is informed or honest is delivered only
// through each player's personal gameStarted/nextGameStarted message.
type playerView struct {
	ConnectionID      string `json:"connectionId"`
	DisplayName       string `json:"displayName"`
	Score             int    `json:"score"`
	HasRevealedAnswer bool   `json:"hasRevealedAnswer"`
	IsCreator         bool   `json:"isCreator"`
}

type roomView struct {
	ID                string       `json:"id"`
	Phase             Phase        `json:"phase"`
	Players           []playerView `json:"players"`
	Settings          RoomSettings `json:"settings"`
	CurrentRoundIndex int          `json:"currentRoundIndex"`
	PromptRef         string       `json:"promptRef,omitempty"`
	AnswerShowing     bool         `json:"answerShowing"`
	AnswerEndsAt      *time.Time   `json:"answerEndsAt,omitempty"`
	Winner            *playerView  `json:"winner,omitempty"`
}

func (room *Room) viewLocked() roomView {
	view := roomView{
		ID:                room.id,
		Phase:             room.phase,
		Players:           make([]playerView, 0, len(room.players)),
		Settings:          room.settings,
		CurrentRoundIndex: room.currentRoundIndex,
	}

	for i, p := range room.players {
		view.Players = append(view.Players, playerView{
			ConnectionID:      p.ConnectionID,
			DisplayName:       p.DisplayName,
			Score:             p.Score,
			HasRevealedAnswer: p.HasRevealedAnswer,
			IsCreator:         i == 0,
		})
	}

	if room.currentQuestion != nil {
		view.PromptRef = room.currentQuestion.PromptRef
	}
	if room.answerReveal != nil {
		view.AnswerShowing = room.answerReveal.Showing
		if room.answerReveal.Showing {
			endsAt := room.answerReveal.EndsAt
			view.AnswerEndsAt = &endsAt
		}
	}
	if room.winner != nil {
		view.Winner = &playerView{
			ConnectionID: room.winner.ConnectionID,
			DisplayName:  room.winner.DisplayName,
			Score:        room.winner.Score,
		}
	}

	return view
}

type errorMessage struct {
	Type    string `json:"type"` // "error"
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newErrorMessage(err error) errorMessage {
	return errorMessage{
		Type:    "error",
		Code:    errorCode(err),
		Message: err.Error(),
	}
}

type playerJoinedMessage struct {
	Type        string   `json:"type"` // "playerJoined"
	Room        roomView `json:"room"`
	DisplayName string   `json:"displayName"`
	Reconnected bool     `json:"reconnected"`
}

type playerLeftMessage struct {
	Type        string   `json:"type"` // "playerLeft"
	Room        roomView `json:"room"`
	DisplayName string   `json:"displayName"`
}

// roundStartedMessage is personalized: every player gets their own role.
// Sent as "gameStarted" for round 0 and "nextGameStarted" afterwards.
type roundStartedMessage struct {
	Type string   `json:"type"`
	Room roomView `json:"room"`
	Role Role     `json:"role"`
}

type votingStartedMessage struct {
	Type string   `json:"type"` // "votingStarted"
	Room roomView `json:"room"`
}

type voteResultMessage struct {
	Type    string       `json:"type"` // "voteResult"
	Room    roomView     `json:"room"`
	Outcome *VoteOutcome `json:"outcome"`
}

// answerRevealMessage is personalized: AnswerRef is filled in only for
// the honest player while the reveal is showing.
type answerRevealMessage struct {
	Type      string     `json:"type"` // "answerReveal"
	Room      roomView   `json:"room"`
	Showing   bool       `json:"showing"`
	EndsAt    *time.Time `json:"endsAt,omitempty"`
	AnswerRef string     `json:"answerRef,omitempty"`
}

type roomClosedMessage struct {
	Type   string `json:"type"` // "roomClosed"
	RoomID string `json:"roomId"`
	Reason string `json:"reason"`
}

type roomListMessage struct {
	Type  string        `json:"type"` // "roomList"
	Rooms []RoomSummary `json:"rooms"`
}

type chatMessage struct {
	Type    string `json:"type"` // "chatMessage"
	RoomID  string `json:"roomId"`
	Sender  string `json:"sender"`
	Content string `json:"content"`
}

type voiceUsersMessage struct {
	Type   string      `json:"type"` // "voice-users"
	RoomID string      `json:"roomId"`
	Users  []VoiceUser `json:"users"`
}
