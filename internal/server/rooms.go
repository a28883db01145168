package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ladder-league/internal/db"
	"ladder-league/internal/lock"
	"ladder-league/internal/store"

	"go.uber.org/zap"
)

const maxCodeAttempts = 5

type RoomView struct {
	ID   uint   `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

type RoomSummary struct {
	RoomView
	Participants int  `json:"participants"`
	Teams        int  `json:"teams"`
	Connected    int  `json:"connected"`
	RoundActive  bool `json:"round_active"`
}

type RoomSnapshot struct {
	Room         RoomView          `json:"room"`
	Participants []ParticipantView `json:"participants"`
	Teams        []TeamView        `json:"teams"`
	RoundActive  bool              `json:"round_active"`
	RoundNumber  int               `json:"round_number"`
	ExpiresAt    *time.Time        `json:"expires_at,omitempty"`
}

type JoinResult struct {
	Room        RoomView        `json:"room"`
	Participant ParticipantView `json:"participant"`
	Session     string          `json:"session_token"`
	Rejoined    bool            `json:"rejoined"`
}

func roomView(room db.Room) RoomView {
	return RoomView{ID: room.ID, Code: room.Code, Name: room.Name}
}

func (s *Server) CreateRoom(ctx context.Context, name string) (*RoomView, error) {
	var room db.Room
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		room = db.Room{Code: newRoomCode()}
		if name == "" {
			room.Name = "Room " + room.Code
		} else {
			cleaned, err := validateRoomName(name)
			if err != nil {
				return nil, err
			}
			room.Name = cleaned
		}
		err := s.repo.Tx(ctx, func(tx store.Tx) error {
			if err := tx.CreateRoom(&room); err != nil {
				return err
			}
			return recordEvent(tx, room.ID, nil, EventRoomCreated, roomView(room))
		})
		if err == nil {
			s.log.Info("room created", zap.Uint("room_id", room.ID), zap.String("code", room.Code))
			view := roomView(room)
			return &view, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("allocate room code: %w", store.ErrConflict)
}

func (s *Server) ListRooms(ctx context.Context) ([]RoomSummary, error) {
	summaries := make([]RoomSummary, 0)
	err := s.repo.View(ctx, func(tx store.Tx) error {
		rooms, err := tx.Rooms()
		if err != nil {
			return err
		}
		for _, room := range rooms {
			participants, err := tx.Participants(room.ID)
			if err != nil {
				return err
			}
			teams, err := tx.Teams(room.ID)
			if err != nil {
				return err
			}
			open, err := tx.OpenRounds(room.ID)
			if err != nil {
				return err
			}
			summaries = append(summaries, RoomSummary{
				RoomView:     roomView(room),
				Participants: len(participants),
				Teams:        len(teams),
				Connected:    s.hub.Connected(room.ID),
				RoundActive:  len(open) > 0,
			})
		}
		return nil
	})
	return summaries, err
}

func (s *Server) RoomSnapshot(ctx context.Context, roomID uint) (*RoomSnapshot, error) {
	var snap RoomSnapshot
	err := s.repo.View(ctx, func(tx store.Tx) error {
		room, err := tx.Room(roomID)
		if err != nil {
			return notFound(err, ErrRoomNotFound)
		}
		participants, err := tx.Participants(roomID)
		if err != nil {
			return err
		}
		teams, err := tx.Teams(roomID)
		if err != nil {
			return err
		}
		open, err := tx.OpenRounds(roomID)
		if err != nil {
			return err
		}
		last, err := tx.LastRoundNumber(roomID)
		if err != nil {
			return err
		}
		snap = RoomSnapshot{
			Room:         roomView(*room),
			Participants: make([]ParticipantView, 0, len(participants)),
			Teams:        teamViews(teams, participants),
			RoundActive:  len(open) > 0,
			RoundNumber:  last + 1,
		}
		for _, p := range participants {
			snap.Participants = append(snap.Participants, participantView(p))
		}
		if len(open) > 0 {
			if expires, ok := open[0].ExpiresAt(); ok {
				snap.ExpiresAt = &expires
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *Server) RenameRoom(ctx context.Context, roomID uint, name string) (*RoomView, error) {
	cleaned, err := validateRoomName(name)
	if err != nil {
		return nil, err
	}
	var room *db.Room
	err = s.repo.Tx(ctx, func(tx store.Tx) error {
		room, err = tx.Room(roomID)
		if err != nil {
			return notFound(err, ErrRoomNotFound)
		}
		room.Name = cleaned
		if err := tx.SaveRoom(room); err != nil {
			return err
		}
		return recordEvent(tx, roomID, nil, EventRoomRenamed, map[string]string{"name": cleaned})
	})
	if err != nil {
		return nil, err
	}
	view := roomView(*room)
	s.hub.BroadcastToRoom(roomID, Event{Type: EventRoomRenamed, RoomID: roomID, Data: view})
	return &view, nil
}

// DeleteRoom cancels the room's timer, removes the room and everything it
// owns, then tells and disconnects every client.
func (s *Server) DeleteRoom(ctx context.Context, roomID uint) error {
	s.cancelRoundTimer(roomID)
	err := s.withRoomLock(ctx, roomID, func() error {
		return s.repo.Tx(ctx, func(tx store.Tx) error {
			return notFound(tx.DeleteRoom(roomID), ErrRoomNotFound)
		})
	})
	if err != nil {
		return err
	}
	s.hub.BroadcastToRoom(roomID, Event{Type: EventRoomDeleted, RoomID: roomID})
	s.hub.CloseRoom(roomID)
	if local, ok := s.locks.(*lock.Local); ok {
		local.Forget(lock.RoomKey(roomID))
	}
	s.log.Info("room deleted", zap.Uint("room_id", roomID))
	return nil
}

// JoinRoom adds a participant to the room with the given code. A known
// session token rejoins as the same participant.
func (s *Server) JoinRoom(ctx context.Context, code, name, session string) (*JoinResult, error) {
	code = normalizeRoomCode(code)
	var result JoinResult
	err := s.repo.Tx(ctx, func(tx store.Tx) error {
		room, err := tx.RoomByCode(code)
		if err != nil {
			return notFound(err, ErrRoomNotFound)
		}
		result.Room = roomView(*room)
		if session != "" {
			existing, err := tx.ParticipantBySession(room.ID, session)
			if err == nil {
				result.Participant = participantView(*existing)
				result.Session = existing.SessionToken
				result.Rejoined = true
				return nil
			}
			if !errors.Is(err, store.ErrNotFound) {
				return err
			}
		}
		cleaned, err := validateName(name)
		if err != nil {
			return err
		}
		p := db.Participant{
			RoomID:       room.ID,
			Name:         cleaned,
			SessionToken: newSessionToken(),
			JoinedAt:     s.now(),
		}
		if err := tx.CreateParticipant(&p); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return ErrNameTaken
			}
			return err
		}
		result.Participant = participantView(p)
		result.Session = p.SessionToken
		return recordEvent(tx, room.ID, nil, EventParticipantJoined, result.Participant)
	})
	if err != nil {
		return nil, err
	}
	if !result.Rejoined {
		s.hub.BroadcastToRoom(result.Room.ID, Event{Type: EventParticipantJoined, RoomID: result.Room.ID, Data: result.Participant})
		s.log.Info("participant joined", zap.Uint("room_id", result.Room.ID), zap.Uint("participant_id", result.Participant.ID))
	}
	return &result, nil
}

func (s *Server) LeaveRoom(ctx context.Context, roomID uint, session string) error {
	var p *db.Participant
	err := s.withRoomLock(ctx, roomID, func() error {
		return s.repo.Tx(ctx, func(tx store.Tx) error {
			var err error
			p, err = tx.ParticipantBySession(roomID, session)
			if err != nil {
				return notFound(err, ErrParticipantNotFound)
			}
			if err := tx.DeleteParticipant(p.ID); err != nil {
				return err
			}
			return recordEvent(tx, roomID, p.TeamID, EventParticipantLeft, participantView(*p))
		})
	})
	if err != nil {
		return err
	}
	s.hub.UnregisterTeam(roomID, session)
	s.hub.Disconnect(roomID, session, nil)
	s.hub.BroadcastToRoom(roomID, Event{Type: EventParticipantLeft, RoomID: roomID, Data: participantView(*p)})
	return nil
}

func (s *Server) KickParticipant(ctx context.Context, roomID, participantID uint) error {
	var p *db.Participant
	err := s.withRoomLock(ctx, roomID, func() error {
		return s.repo.Tx(ctx, func(tx store.Tx) error {
			var err error
			p, err = tx.Participant(participantID)
			if err != nil || p.RoomID != roomID {
				return ErrParticipantNotFound
			}
			if err := tx.DeleteParticipant(p.ID); err != nil {
				return err
			}
			return recordEvent(tx, roomID, p.TeamID, EventParticipantKicked, participantView(*p))
		})
	})
	if err != nil {
		return err
	}
	s.hub.SendToOne(roomID, p.SessionToken, Event{Type: EventKicked, RoomID: roomID})
	s.hub.UnregisterTeam(roomID, p.SessionToken)
	s.hub.Disconnect(roomID, p.SessionToken, nil)
	s.hub.BroadcastToRoom(roomID, Event{Type: EventParticipantKicked, RoomID: roomID, Data: participantView(*p)})
	s.log.Info("participant kicked", zap.Uint("room_id", roomID), zap.Uint("participant_id", participantID))
	return nil
}

// SetReady flips only the ready flag, so it cannot undo a concurrent team
// assignment.
func (s *Server) SetReady(ctx context.Context, roomID uint, session string, ready bool) (*ParticipantView, error) {
	var view ParticipantView
	err := s.withRoomLock(ctx, roomID, func() error {
		return s.repo.Tx(ctx, func(tx store.Tx) error {
			p, err := tx.ParticipantBySession(roomID, session)
			if err != nil {
				return notFound(err, ErrParticipantNotFound)
			}
			if err := tx.SetReady(p.ID, ready); err != nil {
				return err
			}
			p.Ready = ready
			view = participantView(*p)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.hub.BroadcastToRoom(roomID, Event{Type: EventReadyChanged, RoomID: roomID, Data: view})
	return &view, nil
}

// authenticateParticipant resolves a session token to its participant.
func (s *Server) authenticateParticipant(ctx context.Context, roomID uint, session string) (*db.Participant, error) {
	if session == "" {
		return nil, ErrParticipantNotFound
	}
	var p *db.Participant
	err := s.repo.View(ctx, func(tx store.Tx) error {
		var err error
		p, err = tx.ParticipantBySession(roomID, session)
		return notFound(err, ErrParticipantNotFound)
	})
	return p, err
}
