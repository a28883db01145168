package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"ladder-league/internal/db"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsReadLimit    = 4096
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsConn adapts a gorilla connection to Conn. Writes are serialized and
// Close is idempotent.
type wsConn struct {
	conn      *websocket.Conn
	mu        sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func newWSConn(conn *websocket.Conn) *wsConn {
	conn.SetReadLimit(wsReadLimit)
	return &wsConn{conn: conn}
}

func (c *wsConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

type inboundMessage struct {
	Type      string `json:"type"`
	StepIndex *int   `json:"step_index"`
	Guess     string `json:"guess"`
	Ready     *bool  `json:"ready"`
}

type observerMessage struct {
	Action string `json:"action"`
	RoomID uint   `json:"room_id"`
}

type connectionConfirmed struct {
	Participant ParticipantView `json:"participant"`
	Room        *RoomSnapshot   `json:"room"`
	Puzzle      *PuzzleView     `json:"puzzle,omitempty"`
}

func (s *Server) handleParticipantWebsocket(c *gin.Context) {
	var uri roomURI
	if !bindURI(c, &uri) {
		return
	}
	ctx := c.Request.Context()
	session := sessionToken(c)
	p, err := s.authenticateParticipant(ctx, uri.RoomID, session)
	if err != nil {
		s.respondError(c, err)
		return
	}
	raw, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Uint("room_id", uri.RoomID), zap.Error(err))
		return
	}
	conn := newWSConn(raw)
	p, err = s.attachParticipant(ctx, uri.RoomID, session, conn)
	if err != nil {
		s.log.Warn("participant attach failed", zap.Uint("room_id", uri.RoomID), zap.Error(err))
		s.hub.Disconnect(uri.RoomID, session, conn)
		_ = conn.Close()
		return
	}
	s.log.Info("participant connected",
		zap.Uint("room_id", uri.RoomID),
		zap.Uint("participant_id", p.ID),
		zap.String("remote", c.Request.RemoteAddr),
	)

	confirmed := connectionConfirmed{Participant: participantView(*p)}
	if snap, err := s.RoomSnapshot(ctx, uri.RoomID); err == nil {
		confirmed.Room = snap
	}
	if p.TeamID != nil {
		if view, err := s.TeamPuzzle(ctx, uri.RoomID, session); err == nil {
			confirmed.Puzzle = view
		}
	}
	_ = s.hub.SendDirect(conn, Event{Type: EventConnectionConfirmed, RoomID: uri.RoomID, Data: confirmed})

	go s.readParticipant(uri.RoomID, session, conn)
}

// attachParticipant registers conn and then routes it to the participant's
// persisted team under the room lock. Any team change that commits before the
// lock is taken is read here, and any later one finds the session connected.
func (s *Server) attachParticipant(ctx context.Context, roomID uint, session string, conn Conn) (*db.Participant, error) {
	s.hub.Connect(roomID, session, conn, nil)
	var p *db.Participant
	err := s.withRoomLock(ctx, roomID, func() error {
		var err error
		p, err = s.authenticateParticipant(ctx, roomID, session)
		if err != nil {
			return err
		}
		if p.TeamID != nil {
			s.hub.RegisterTeam(roomID, session, *p.TeamID)
		}
		return nil
	})
	return p, err
}

func (s *Server) readParticipant(roomID uint, session string, conn *wsConn) {
	defer s.hub.Disconnect(roomID, session, conn)
	for {
		_, data, err := conn.conn.ReadMessage()
		if err != nil {
			s.log.Debug("participant disconnected", zap.Uint("room_id", roomID), zap.Error(err))
			return
		}
		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendError(conn, roomID, errors.New("malformed message"))
			continue
		}
		s.handleInbound(roomID, session, conn, msg)
	}
}

func (s *Server) handleInbound(roomID uint, session string, conn *wsConn, msg inboundMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), timerEndTimeout)
	defer cancel()
	switch msg.Type {
	case "ping":
		_ = s.hub.SendDirect(conn, Event{Type: EventPong, RoomID: roomID})
	case "guess":
		if msg.StepIndex == nil {
			s.sendError(conn, roomID, errors.New("step_index is required"))
			return
		}
		_, err := s.SubmitGuess(ctx, GuessRequest{
			RoomID:       roomID,
			SessionToken: session,
			StepIndex:    *msg.StepIndex,
			Text:         msg.Guess,
		})
		if err != nil {
			s.sendError(conn, roomID, err)
		}
	case "ready":
		ready := true
		if msg.Ready != nil {
			ready = *msg.Ready
		}
		if _, err := s.SetReady(ctx, roomID, session, ready); err != nil {
			s.sendError(conn, roomID, err)
		}
	default:
		s.sendError(conn, roomID, errors.New("unknown message type"))
	}
}

func (s *Server) sendError(conn Conn, roomID uint, err error) {
	message := err.Error()
	if statusForError(err) >= http.StatusInternalServerError {
		s.log.Error("websocket request failed", zap.Uint("room_id", roomID), zap.Error(err))
		message = "internal error"
	}
	_ = s.hub.SendDirect(conn, Event{Type: EventError, RoomID: roomID, Data: map[string]string{"error": message}})
}

func (s *Server) handleObserverWebsocket(c *gin.Context) {
	if !s.isAdmin(c) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "operator token required"})
		return
	}
	raw, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("observer websocket upgrade failed", zap.Error(err))
		return
	}
	conn := newWSConn(raw)
	s.hub.AddObserver(conn)
	s.log.Info("observer connected", zap.String("remote", c.Request.RemoteAddr))
	go s.readObserver(conn)
}

func (s *Server) readObserver(conn *wsConn) {
	defer s.hub.RemoveObserver(conn)
	for {
		_, data, err := conn.conn.ReadMessage()
		if err != nil {
			s.log.Debug("observer disconnected", zap.Error(err))
			return
		}
		var msg observerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendError(conn, 0, errors.New("malformed message"))
			continue
		}
		switch msg.Action {
		case "subscribe":
			ctx, cancel := context.WithTimeout(context.Background(), timerEndTimeout)
			snap, err := s.RoomSnapshot(ctx, msg.RoomID)
			cancel()
			if err != nil {
				s.sendError(conn, msg.RoomID, err)
				continue
			}
			s.hub.Subscribe(conn, msg.RoomID)
			_ = s.hub.SendDirect(conn, Event{Type: EventSubscribed, RoomID: msg.RoomID, Data: snap})
		case "unsubscribe":
			s.hub.Unsubscribe(conn, msg.RoomID)
		case "ping":
			_ = s.hub.SendDirect(conn, Event{Type: EventPong})
		default:
			s.sendError(conn, msg.RoomID, errors.New("unknown action"))
		}
	}
}
