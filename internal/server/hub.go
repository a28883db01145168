package server

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Conn is a live, outbound-capable client connection.
type Conn interface {
	Send(data []byte) error
	Close() error
}

// Hub owns every live connection. Participant connections are grouped per
// room and keyed by session token; observer connections receive room-wide
// events for the rooms they subscribe to. Delivery is best effort: a failed
// send is logged and that recipient is skipped, nothing is queued or
// replayed.
type Hub struct {
	mu        sync.Mutex
	rooms     map[uint]*roomConns
	observers []*observer
	log       *zap.Logger
}

type roomConns struct {
	order []string
	conns map[string]Conn
	teams map[string]uint
}

type observer struct {
	conn  Conn
	rooms map[uint]struct{}
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms: make(map[uint]*roomConns),
		log:   logger,
	}
}

// Connect registers conn for a participant session, replacing (and closing)
// any earlier handle for the same session. When teamID is non-nil the
// session is routed to that team.
func (h *Hub) Connect(roomID uint, session string, conn Conn, teamID *uint) {
	h.mu.Lock()
	room := h.rooms[roomID]
	if room == nil {
		room = &roomConns{
			conns: make(map[string]Conn),
			teams: make(map[string]uint),
		}
		h.rooms[roomID] = room
	}
	previous, existed := room.conns[session]
	if !existed {
		room.order = append(room.order, session)
	}
	room.conns[session] = conn
	if teamID != nil {
		room.teams[session] = *teamID
	} else {
		delete(room.teams, session)
	}
	h.mu.Unlock()

	if existed && previous != conn {
		_ = previous.Close()
	}
}

// Disconnect drops the session's handle and team routing. If conn is non-nil
// and no longer the registered handle, the call is a no-op so a stale read
// loop cannot evict its replacement.
func (h *Hub) Disconnect(roomID uint, session string, conn Conn) {
	h.mu.Lock()
	room := h.rooms[roomID]
	if room == nil {
		h.mu.Unlock()
		return
	}
	current, ok := room.conns[session]
	if !ok || (conn != nil && current != conn) {
		h.mu.Unlock()
		return
	}
	delete(room.conns, session)
	delete(room.teams, session)
	for i, s := range room.order {
		if s == session {
			room.order = append(room.order[:i], room.order[i+1:]...)
			break
		}
	}
	if len(room.conns) == 0 {
		delete(h.rooms, roomID)
	}
	h.mu.Unlock()

	_ = current.Close()
}

// CloseRoom disconnects every participant in the room.
func (h *Hub) CloseRoom(roomID uint) {
	h.mu.Lock()
	room := h.rooms[roomID]
	delete(h.rooms, roomID)
	for _, obs := range h.observers {
		delete(obs.rooms, roomID)
	}
	h.mu.Unlock()
	if room == nil {
		return
	}
	for _, session := range room.order {
		_ = room.conns[session].Close()
	}
}

// RegisterTeam routes a connected session to a team. Routing is never
// re-derived from storage after Connect, so every membership change must
// call RegisterTeam or UnregisterTeam.
func (h *Hub) RegisterTeam(roomID uint, session string, teamID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.rooms[roomID]
	if room == nil {
		return
	}
	if _, ok := room.conns[session]; !ok {
		return
	}
	room.teams[session] = teamID
}

func (h *Hub) UnregisterTeam(roomID uint, session string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room := h.rooms[roomID]; room != nil {
		delete(room.teams, session)
	}
}

// TeamOf reports the team a session is routed to.
func (h *Hub) TeamOf(roomID uint, session string) (uint, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.rooms[roomID]
	if room == nil {
		return 0, false
	}
	teamID, ok := room.teams[session]
	return teamID, ok
}

func (h *Hub) Connected(roomID uint) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room := h.rooms[roomID]; room != nil {
		return len(room.conns)
	}
	return 0
}

func (h *Hub) AddObserver(conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, obs := range h.observers {
		if obs.conn == conn {
			return
		}
	}
	h.observers = append(h.observers, &observer{conn: conn, rooms: make(map[uint]struct{})})
}

func (h *Hub) RemoveObserver(conn Conn) {
	h.mu.Lock()
	for i, obs := range h.observers {
		if obs.conn == conn {
			h.observers = append(h.observers[:i], h.observers[i+1:]...)
			break
		}
	}
	h.mu.Unlock()
	_ = conn.Close()
}

func (h *Hub) Subscribe(conn Conn, roomID uint) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, obs := range h.observers {
		if obs.conn == conn {
			obs.rooms[roomID] = struct{}{}
			return true
		}
	}
	return false
}

func (h *Hub) Unsubscribe(conn Conn, roomID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, obs := range h.observers {
		if obs.conn == conn {
			delete(obs.rooms, roomID)
			return
		}
	}
}

// BroadcastToRoom sends event to every participant in the room in
// registration order, then to subscribed observers. It returns the number of
// successful sends.
func (h *Hub) BroadcastToRoom(roomID uint, event Event) int {
	data, ok := h.encode(event)
	if !ok {
		return 0
	}
	h.mu.Lock()
	targets := h.roomTargetsLocked(roomID, func(string) bool { return true })
	targets = append(targets, h.observerTargetsLocked(roomID)...)
	h.mu.Unlock()
	return h.deliver(roomID, event.Type, targets, data)
}

// BroadcastToTeam sends event only to sessions routed to teamID. A team with
// no connected members yields zero sends.
func (h *Hub) BroadcastToTeam(roomID, teamID uint, event Event) int {
	data, ok := h.encode(event)
	if !ok {
		return 0
	}
	h.mu.Lock()
	var targets []target
	if room := h.rooms[roomID]; room != nil {
		targets = h.roomTargetsLocked(roomID, func(session string) bool {
			routed, ok := room.teams[session]
			return ok && routed == teamID
		})
	}
	h.mu.Unlock()
	return h.deliver(roomID, event.Type, targets, data)
}

// BroadcastToObservers sends event to observers subscribed to the room.
func (h *Hub) BroadcastToObservers(roomID uint, event Event) int {
	data, ok := h.encode(event)
	if !ok {
		return 0
	}
	h.mu.Lock()
	targets := h.observerTargetsLocked(roomID)
	h.mu.Unlock()
	return h.deliver(roomID, event.Type, targets, data)
}

// SendToOne delivers event to a single session. A session without a live
// handle is silently skipped.
func (h *Hub) SendToOne(roomID uint, session string, event Event) bool {
	data, ok := h.encode(event)
	if !ok {
		return false
	}
	h.mu.Lock()
	var targets []target
	if room := h.rooms[roomID]; room != nil {
		if conn, ok := room.conns[session]; ok {
			targets = append(targets, target{label: session, conn: conn})
		}
	}
	h.mu.Unlock()
	return h.deliver(roomID, event.Type, targets, data) == 1
}

// SendDirect writes to a connection that may not be registered yet, such as
// an observer before it subscribes.
func (h *Hub) SendDirect(conn Conn, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return conn.Send(data)
}

type target struct {
	label string
	conn  Conn
}

func (h *Hub) roomTargetsLocked(roomID uint, include func(session string) bool) []target {
	room := h.rooms[roomID]
	if room == nil {
		return nil
	}
	targets := make([]target, 0, len(room.order))
	for _, session := range room.order {
		if include(session) {
			targets = append(targets, target{label: session, conn: room.conns[session]})
		}
	}
	return targets
}

func (h *Hub) observerTargetsLocked(roomID uint) []target {
	var targets []target
	for _, obs := range h.observers {
		if _, ok := obs.rooms[roomID]; ok {
			targets = append(targets, target{label: "observer", conn: obs.conn})
		}
	}
	return targets
}

func (h *Hub) encode(event Event) ([]byte, bool) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error("encode event failed", zap.String("type", event.Type), zap.Error(err))
		return nil, false
	}
	return data, true
}

func (h *Hub) deliver(roomID uint, eventType string, targets []target, data []byte) int {
	sent := 0
	for _, t := range targets {
		if err := t.conn.Send(data); err != nil {
			h.log.Warn("send failed",
				zap.Uint("room_id", roomID),
				zap.String("recipient", t.label),
				zap.String("type", eventType),
				zap.Error(err),
			)
			continue
		}
		sent++
	}
	return sent
}
