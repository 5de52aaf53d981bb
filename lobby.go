package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
)

func (co *Coordinator) handleCreateRoom(c *Client, req *roomSettingsRequest) error {
	if req == nil || req.DisplayName == "" {
		return errBadRequest
	}

	room, err := co.registry.CreateRoom(RoomSettings{
		MaxPlayers:        req.MaxPlayers,
		TotalRounds:       req.TotalRounds,
		PointsToWin:       req.PointsToWin,
		AnswerViewSeconds: req.AnswerViewSeconds,
	})
	if err != nil {
		return err
	}

	room.mu.Lock()
	room.players = append(room.players, &Player{
		ConnectionID: c.id,
		DisplayName:  req.DisplayName,
	})
	view := room.viewLocked()
	room.mu.Unlock()

	co.sessions.Add(c.id, room.id, req.DisplayName)

	c.trySend(playerJoinedMessage{
		Type:        "playerJoined",
		Room:        view,
		DisplayName: req.DisplayName,
	})

	logf(co.cfg, "GAMES: %q created room %s", req.DisplayName, room.id)
	co.invalidateRoomList()

	return nil
}

func (co *Coordinator) handleJoinRoom(c *Client, roomID, displayName string) error {
	if roomID == "" || displayName == "" {
		return errBadRequest
	}

	room, err := co.registry.FindRoom(roomID)
	if err != nil {
		var closed *roomClosedError
		if errors.As(err, &closed) {
			c.trySend(roomClosedMessage{
				Type:   "roomClosed",
				RoomID: roomID,
				Reason: closed.reason,
			})
			return nil
		}
		return err
	}

	room.mu.Lock()

	if existing := room.playerByNameLocked(displayName); existing != nil {
		// Reconnection: same displayName, new connection. The seat,
		// score, role, and reveal flag all survive; only the
		// connection id is re-bound.
		oldConnectionID := existing.ConnectionID
		existing.ConnectionID = c.id
		co.sessions.Rebind(oldConnectionID, c.id, room.id, displayName)

		msg := playerJoinedMessage{
			Type:        "playerJoined",
			Room:        room.viewLocked(),
			DisplayName: displayName,
			Reconnected: true,
		}
		co.broadcastRoomLocked(room, msg)
		co.sendRoleLocked(room, existing)
		room.mu.Unlock()

		logf(co.cfg, "GAMES: %q reconnected to room %s", displayName, roomID)
		co.invalidateRoomList()

		return nil
	}

	if len(room.players) >= room.settings.MaxPlayers {
		room.mu.Unlock()
		return errRoomFull
	}
	if room.phase != PhaseWaiting {
		room.mu.Unlock()
		return errGameAlreadyStarted
	}

	room.players = append(room.players, &Player{
		ConnectionID: c.id,
		DisplayName:  displayName,
	})
	co.sessions.Add(c.id, room.id, displayName)

	co.broadcastRoomLocked(room, playerJoinedMessage{
		Type:        "playerJoined",
		Room:        room.viewLocked(),
		DisplayName: displayName,
	})
	room.mu.Unlock()

	logf(co.cfg, "GAMES: %q joined room %s", displayName, roomID)
	co.invalidateRoomList()

	return nil
}

// sendRoleLocked re-delivers a player's secret role after a reconnect
// mid-round, using the same personalized shape as round start.
func (co *Coordinator) sendRoleLocked(room *Room, p *Player) {
	if room.phase == PhaseWaiting || room.phase == PhaseCompleted || p.Role == "" {
		return
	}
	if c := co.clientByID(p.ConnectionID); c != nil {
		c.trySend(roundStartedMessage{
			Type: "gameStarted",
			Room: room.viewLocked(),
			Role: p.Role,
		})
	}
}

func (co *Coordinator) handleLeave(c *Client, roomID string) error {
	if roomID == "" {
		return errBadRequest
	}
	co.removeConnection(c.id, "left the game")
	return nil
}

// handleDisconnect runs on transport loss. Unlike an explicit leave,
// the seat is held for the reconnect grace: if the same displayName
// re-joins on a new connection before it lapses, the old session has
// been re-bound away and the scheduled removal finds nothing to do.
// This also makes disconnect idempotent with a racing explicit leave.
func (co *Coordinator) handleDisconnect(c *Client) {
	session, ok := co.sessions.Lookup(c.id)
	if !ok {
		return
	}

	// The audio sub-channel dies with the transport, grace or not.
	co.voice.Leave(session.RoomID, c.id)
	if room, err := co.registry.FindRoom(session.RoomID); err == nil {
		room.mu.Lock()
		co.broadcastVoiceUsersLocked(room)
		room.mu.Unlock()
	}

	time.AfterFunc(co.cfg.reconnectGrace, func() {
		co.removeConnection(c.id, "disconnected")
	})
}

func (co *Coordinator) removeConnection(connectionID, cause string) {
	session, ok := co.sessions.Remove(connectionID)
	if !ok {
		return
	}

	co.voice.Leave(session.RoomID, connectionID)

	room, err := co.registry.FindRoom(session.RoomID)
	if err != nil {
		return
	}

	room.mu.Lock()

	player := room.playerByConnLocked(connectionID)
	if player == nil {
		// Already re-bound to a newer connection, nothing to do.
		room.mu.Unlock()
		return
	}

	wasCreator := room.isCreatorLocked(connectionID)
	midRound := room.phase == PhasePlaying || room.phase == PhaseVoting
	heldRole := player.Role == RoleInformed || player.Role == RoleHonest

	room.removePlayerLocked(connectionID)

	switch {
	case wasCreator:
		co.closeRoomLocked(room, "the room creator "+player.DisplayName+" "+cause)
	case len(room.players) == 0:
		co.closeRoomLocked(room, "all players left the room")
	case midRound && heldRole:
		// The round cannot finish without its informed and honest
		// players, and latecomers cannot replace them.
		co.closeRoomLocked(room, player.DisplayName+" "+cause+" mid-round")
	default:
		co.broadcastRoomLocked(room, playerLeftMessage{
			Type:        "playerLeft",
			Room:        room.viewLocked(),
			DisplayName: player.DisplayName,
		})
		co.broadcastVoiceUsersLocked(room)
	}

	room.mu.Unlock()

	logf(co.cfg, "GAMES: %q %s room %s", player.DisplayName, cause, room.id)
	co.invalidateRoomList()
}

// closeRoomLocked moves the room into the closed-record table, stops
// its timers, and tells every remaining member why. Assumes room.mu is
// held.
func (co *Coordinator) closeRoomLocked(room *Room, reason string) {
	room.timers.cancelAllLocked()

	if co.registry.CloseRoom(room.id, reason) == nil {
		return
	}

	co.voice.DropRoom(room.id)
	co.broadcastRoomLocked(room, roomClosedMessage{
		Type:   "roomClosed",
		RoomID: room.id,
		Reason: reason,
	})

	// Members keep their connections; their sessions die with the room.
	for _, p := range room.players {
		co.sessions.Remove(p.ConnectionID)
	}
}

// handleChat relays chat to the room verbatim. No state is mutated; the
// only policy applied is a per-connection rate limit.
func (co *Coordinator) handleChat(c *Client, msg clientMessage) error {
	if msg.RoomID == "" || msg.Content == "" {
		return errBadRequest
	}
	if !c.chat.Allow() {
		return nil
	}

	room, err := co.registry.FindRoom(msg.RoomID)
	if err != nil {
		return err
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	co.broadcastRoomLocked(room, chatMessage{
		Type:    "chatMessage",
		RoomID:  msg.RoomID,
		Sender:  msg.Sender,
		Content: msg.Content,
	})

	return nil
}

// The voice handlers all validate the room before touching the
// tracker: an unknown room id must be reported without leaving a
// membership entry behind.
func (co *Coordinator) handleVoiceJoin(c *Client, msg clientMessage) error {
	if msg.RoomID == "" {
		return errBadRequest
	}

	room, err := co.registry.FindRoom(msg.RoomID)
	if err != nil {
		return err
	}

	co.voice.Join(msg.RoomID, c.id, msg.PeerHandle)

	room.mu.Lock()
	defer room.mu.Unlock()
	co.broadcastVoiceUsersLocked(room)

	return nil
}

func (co *Coordinator) handleVoiceLeave(c *Client, msg clientMessage) error {
	if msg.RoomID == "" {
		return errBadRequest
	}

	room, err := co.registry.FindRoom(msg.RoomID)
	if err != nil {
		return err
	}

	co.voice.Leave(msg.RoomID, c.id)

	room.mu.Lock()
	defer room.mu.Unlock()
	co.broadcastVoiceUsersLocked(room)

	return nil
}

func (co *Coordinator) handleStorePeerID(c *Client, msg clientMessage) error {
	if msg.RoomID == "" || len(msg.PeerHandle) == 0 {
		return errBadRequest
	}

	room, err := co.registry.FindRoom(msg.RoomID)
	if err != nil {
		return err
	}

	co.voice.SetPeer(msg.RoomID, c.id, msg.PeerHandle)

	room.mu.Lock()
	defer room.mu.Unlock()
	co.broadcastVoiceUsersLocked(room)

	return nil
}

func (co *Coordinator) broadcastVoiceUsersLocked(room *Room) {
	co.broadcastRoomLocked(room, voiceUsersMessage{
		Type:   "voice-users",
		RoomID: room.id,
		Users:  co.voice.Members(room.id),
	})
}

// serveRoomListJSON is the polling fallback for clients without a live
// websocket: the same snapshot getRooms returns, over plain HTTP.
func serveRoomListJSON(cfg *Config, co *Coordinator) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		rooms := co.cache.Snapshot(co.registry.Rooms)

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		securityHeaders(cfg, w)

		if err := json.NewEncoder(w).Encode(rooms); err != nil {
			logf(cfg, "ERROR: room list encode: %v", err)
		}
	}
}
