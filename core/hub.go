package core

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Hub owns the live connection registry: the presence map, the busy-call
// table and the room membership of every connection. It is the single
// component through which events are fanned out, either to a room's joined
// connections or directly to an online identity.
type Hub struct {
	presence *Presence
	calls    *CallTable

	mu        sync.RWMutex
	rooms     map[string]map[*Conn]struct{}
	connRooms map[*Conn]map[string]struct{}

	connWg  *sync.WaitGroup
	context context.Context
	logger  *slog.Logger

	router *EventRouter

	onDisconnect func(username string)

	upgrader        websocket.Upgrader
	WriteStreamSize int
}

var defaultUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type HubOption func(*Hub)

func WithCheckOrigin(f func(r *http.Request) bool) HubOption {
	return func(h *Hub) {
		h.upgrader.CheckOrigin = f
	}
}

func NewHub(ctx context.Context, wg *sync.WaitGroup, calls *CallTable, logger *slog.Logger, opts ...HubOption) *Hub {
	h := &Hub{
		presence:        NewPresence(calls),
		calls:           calls,
		rooms:           make(map[string]map[*Conn]struct{}),
		connRooms:       make(map[*Conn]map[string]struct{}),
		connWg:          wg,
		context:         ctx,
		logger:          logger,
		upgrader:        defaultUpgrader,
		WriteStreamSize: 100,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetRouter installs the event router inbound events are dispatched to.
// Must be called before the hub accepts connections.
func (h *Hub) SetRouter(r *EventRouter) {
	h.router = r
}

// OnDisconnect registers a callback invoked with the identity of a
// connection after it has been unregistered.
func (h *Hub) OnDisconnect(f func(username string)) {
	h.onDisconnect = f
}

// ServeWS upgrades the request to a websocket connection and starts its read
// and write pumps. The connection carries no identity until a registerUser
// event binds one.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) error {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	conn := &Conn{
		ws:      ws,
		hub:     h,
		context: h.context,
		send:    make(chan *Event, h.WriteStreamSize),
		ticker:  time.NewTicker(pingPeriod),
		logger:  h.logger.With(slog.String("remote", ws.RemoteAddr().String())),
	}

	h.connWg.Add(1)
	go func() {
		defer h.connWg.Done()
		conn.readLoop()
	}()
	h.connWg.Add(1)
	go func() {
		defer h.connWg.Done()
		conn.writeLoop()
	}()

	h.logger.Info("new connection", slog.String("remote", ws.RemoteAddr().String()))
	return nil
}

func (h *Hub) dispatch(e *Event) {
	if h.router == nil {
		return
	}
	h.router.Dispatch(e)
}

// Register binds username to conn in the presence registry. Any previous
// connection registered for the username becomes unreachable via Lookup.
func (h *Hub) Register(username string, conn *Conn) {
	h.presence.Register(username, conn)
	h.logger.Info("user registered", slog.String("username", username))
}

// Identity returns the username bound to conn, if any.
func (h *Hub) Identity(conn *Conn) (string, bool) {
	return h.presence.Identity(conn)
}

// Lookup returns the live connection of an identity, if any.
func (h *Hub) Lookup(username string) (*Conn, bool) {
	return h.presence.Lookup(username)
}

func (h *Hub) IsOnline(username string) bool {
	return h.presence.Online(username)
}

// Join adds conn to a room. Joining a room the connection is already in is a
// no-op; a connection may be in any number of rooms.
func (h *Hub) Join(conn *Conn, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Conn]struct{})
		h.rooms[room] = members
	}
	members[conn] = struct{}{}

	joined, ok := h.connRooms[conn]
	if !ok {
		joined = make(map[string]struct{})
		h.connRooms[conn] = joined
	}
	joined[room] = struct{}{}
}

// Leave removes conn from a room. Leaving a room the connection is not in is
// a no-op.
func (h *Hub) Leave(conn *Conn, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(conn, room)
}

func (h *Hub) leaveLocked(conn *Conn, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, conn)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	if joined, ok := h.connRooms[conn]; ok {
		delete(joined, room)
		if len(joined) == 0 {
			delete(h.connRooms, conn)
		}
	}
}

// InRoom reports whether conn is currently joined to room.
func (h *Hub) InRoom(conn *Conn, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members, ok := h.rooms[room]
	if !ok {
		return false
	}
	_, ok = members[conn]
	return ok
}

// BroadcastToRoom delivers an event to every connection currently joined to
// the room.
func (h *Hub) BroadcastToRoom(room string, e *Event) {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		c.Send(e)
	}
}

// NotifyUser delivers an event directly to an identity's live connection.
// It reports whether the identity was online; notifying an offline identity
// is a silent no-op.
func (h *Hub) NotifyUser(username string, e *Event) bool {
	conn, ok := h.presence.Lookup(username)
	if !ok {
		return false
	}
	conn.Send(e)
	return true
}

// UserInRoom reports whether the identity's live connection, if any, is
// joined to the room.
func (h *Hub) UserInRoom(username, room string) bool {
	conn, ok := h.presence.Lookup(username)
	if !ok {
		return false
	}
	return h.InRoom(conn, room)
}

// KickUserFromRoom removes the identity's live connection from a room, used
// when a member is removed from a group.
func (h *Hub) KickUserFromRoom(username, room string) {
	if conn, ok := h.presence.Lookup(username); ok {
		h.Leave(conn, room)
	}
}

// disconnect tears down all hub state for a connection: room membership,
// presence binding and, through the presence registry, the busy-call flag.
func (h *Hub) disconnect(conn *Conn) {
	h.mu.Lock()
	for room := range h.connRooms[conn] {
		if members, ok := h.rooms[room]; ok {
			delete(members, conn)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	delete(h.connRooms, conn)
	h.mu.Unlock()

	username, registered := h.presence.Identity(conn)
	h.presence.Unregister(conn)
	conn.close()

	if registered {
		h.logger.Info("user disconnected", slog.String("username", username))
		if h.onDisconnect != nil {
			h.onDisconnect(username)
		}
	}
}
