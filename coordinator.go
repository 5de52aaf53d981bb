package main

import (
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
	"golang.org/x/time/rate"
)

// Client is one live websocket connection. Its id is minted at upgrade
// time and never reused; the stable identity across reconnects is the
// displayName held in the session table.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan any
	chat *rate.Limiter

	sendMu sync.Mutex
	closed bool
}

func newClient(conn *websocket.Conn) *Client {
	return &Client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan any, 16),
		chat: rate.NewLimiter(rate.Limit(2), 5),
	}
}

// trySend never blocks a handler on a slow consumer: if the buffer is
// full the connection is torn down and the read pump runs its
// disconnect path.
func (c *Client) trySend(msg any) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return
	}

	select {
	case c.send <- msg:
	default:
		c.closed = true
		close(c.send)
	}
}

func (c *Client) close() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func (c *Client) readPump(co *Coordinator) {
	defer func() {
		co.unregister(c)
		_ = c.conn.Close()
	}()

	for {
		var msg clientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		co.dispatch(c, msg)
	}
}

// Coordinator owns every shared state container: room registry, session
// table, room-list cache, voice tracker, and the set of live
// connections. Tests instantiate isolated Coordinators; nothing here is
// a package-level singleton.
type Coordinator struct {
	cfg       *Config
	registry  *Registry
	sessions  *sessionTable
	cache     *roomListCache
	voice     *voiceTracker
	questions QuestionProvider

	mu          sync.Mutex
	clients     map[string]*Client
	listPending bool
}

func newCoordinator(cfg *Config, questions QuestionProvider) *Coordinator {
	return &Coordinator{
		cfg:       cfg,
		registry:  newRegistry(cfg.closedRoomTTL),
		sessions:  newSessionTable(),
		cache:     newRoomListCache(cfg.roomListTTL),
		voice:     newVoiceTracker(),
		questions: questions,
		clients:   make(map[string]*Client),
	}
}

func (co *Coordinator) register(c *Client) {
	co.mu.Lock()
	co.clients[c.id] = c
	co.mu.Unlock()
}

func (co *Coordinator) unregister(c *Client) {
	co.mu.Lock()
	delete(co.clients, c.id)
	co.mu.Unlock()

	co.handleDisconnect(c)
	c.close()
}

func (co *Coordinator) clientByID(connectionID string) *Client {
	co.mu.Lock()
	defer co.mu.Unlock()

	return co.clients[connectionID]
}

func (co *Coordinator) allClients() []*Client {
	co.mu.Lock()
	defer co.mu.Unlock()

	clients := make([]*Client, 0, len(co.clients))
	for _, c := range co.clients {
		clients = append(clients, c)
	}
	return clients
}

// dispatch is the single boundary between the wire and the state
// machine. A panic in one handler is logged and answered with a generic
// error; it never takes the coordinator down or touches other rooms.
func (co *Coordinator) dispatch(c *Client, msg clientMessage) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("%s | PANIC: handler %q: %v", time.Now().Format(logDate), msg.Type, r)
			c.trySend(newErrorMessage(errBadRequest))
		}
	}()

	var err error

	switch msg.Type {
	case "createRoom":
		err = co.handleCreateRoom(c, msg.Settings)
	case "joinRoom":
		err = co.handleJoinRoom(c, msg.RoomID, msg.DisplayName)
	case "leaveGame":
		err = co.handleLeave(c, msg.RoomID)
	case "startGame":
		err = co.handleStartGame(c, msg.RoomID)
	case "useHonestButton":
		err = co.handleReveal(c, msg.RoomID)
	case "startVoting":
		err = co.handleStartVoting(c, msg.RoomID)
	case "vote":
		err = co.handleVote(c, msg.RoomID, msg.HonestGuessID, msg.DeceiverGuessID)
	case "nextGame":
		err = co.handleNextGame(c, msg.RoomID)
	case "getRooms":
		co.sendRoomList(c)
	case "chatMessage":
		err = co.handleChat(c, msg)
	case "join-voice":
		err = co.handleVoiceJoin(c, msg)
	case "leave-voice":
		err = co.handleVoiceLeave(c, msg)
	case "store-peer-id":
		err = co.handleStorePeerID(c, msg)
	default:
		// ignore unknown types
	}

	if err != nil {
		c.trySend(newErrorMessage(err))
	}
}

// broadcastRoomLocked sends msg to every member of the room. Assumes
// room.mu is held; trySend never blocks, so holding the lock is safe.
func (co *Coordinator) broadcastRoomLocked(room *Room, msg any) {
	for _, p := range room.players {
		if c := co.clientByID(p.ConnectionID); c != nil {
			c.trySend(msg)
		}
	}
}

func (co *Coordinator) sendRoomList(c *Client) {
	c.trySend(roomListMessage{
		Type:  "roomList",
		Rooms: co.cache.Snapshot(co.registry.Rooms),
	})
}

// invalidateRoomList marks the cache dirty and debounces the resulting
// broadcast: a burst of membership churn produces one roomList message
// per window, not one per mutation.
func (co *Coordinator) invalidateRoomList() {
	co.cache.Invalidate()

	co.mu.Lock()
	if co.listPending {
		co.mu.Unlock()
		return
	}
	co.listPending = true
	co.mu.Unlock()

	time.AfterFunc(co.cfg.roomListTTL, func() {
		co.mu.Lock()
		co.listPending = false
		co.mu.Unlock()

		co.broadcastRoomList()
	})
}

func (co *Coordinator) broadcastRoomList() {
	msg := roomListMessage{
		Type:  "roomList",
		Rooms: co.cache.Snapshot(co.registry.Rooms),
	}
	for _, c := range co.allClients() {
		c.trySend(msg)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func serveWS(cfg *Config, co *Coordinator) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := newClient(conn)
		co.register(client)

		logf(cfg, "GAMES: Connection %s from %s", client.id, realIP(r))

		// New connections get the lobby immediately.
		co.sendRoomList(client)

		go client.writePump()
		client.readPump(co)
	}
}

// qrHandler generates a PNG QR code for a room's join URL.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	roomID := ps.ByName("roomid")
	if roomID == "" {
		http.Error(w, "missing room id", http.StatusBadRequest)
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// registerGame wires the coordinator's routes:
//   - $prefix/ws             → the websocket coordinator
//   - $prefix/api/rooms      → room list snapshot (polling fallback)
//   - $prefix/game/:roomid/qr → PNG QR code for the room join URL
func registerGame(cfg *Config, co *Coordinator, mux *httprouter.Router) {
	mux.GET(cfg.prefix+"/ws", serveWS(cfg, co))
	mux.GET(cfg.prefix+"/api/rooms", serveRoomListJSON(cfg, co))
	mux.GET(cfg.prefix+"/game/:roomid/qr", qrHandler)

	go co.registry.sweepLoop(cfg.closedRoomSweep)
}
