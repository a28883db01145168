package server

import (
	"context"
	"fmt"
	"time"

	"ladder-league/internal/store"

	"go.uber.org/zap"
)

const timerEndTimeout = 30 * time.Second

// scheduleRoundTimer arms the room's round timer to fire at expires,
// replacing any earlier timer for the room.
func (s *Server) scheduleRoundTimer(roomID uint, expires time.Time) {
	delay := expires.Sub(s.now())
	if delay < 0 {
		delay = 0
	}
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	if existing, ok := s.timers[roomID]; ok {
		existing.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		s.timersMu.Lock()
		if s.timers[roomID] == timer {
			delete(s.timers, roomID)
		}
		s.timersMu.Unlock()
		s.handleTimerExpiry(roomID)
	})
	s.timers[roomID] = timer
}

func (s *Server) cancelRoundTimer(roomID uint) {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	if timer, ok := s.timers[roomID]; ok {
		timer.Stop()
		delete(s.timers, roomID)
	}
}

func (s *Server) hasRoundTimer(roomID uint) bool {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	_, ok := s.timers[roomID]
	return ok
}

// handleTimerExpiry ends the room's round if it is still open and its
// timer has run out. Losing a race with a manual end is not an error.
func (s *Server) handleTimerExpiry(roomID uint) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("round timer panicked", zap.Uint("room_id", roomID), zap.Any("panic", r))
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), timerEndTimeout)
	defer cancel()

	err := s.withRoomLock(ctx, roomID, func() error {
		expires, ok, err := s.roundExpiry(ctx, roomID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNoActiveRound
		}
		if now := s.now(); now.Before(expires) {
			s.log.Debug("round timer fired early, rescheduling",
				zap.Uint("room_id", roomID),
				zap.Time("expires_at", expires),
			)
			s.scheduleRoundTimer(roomID, expires)
			return nil
		}
		s.hub.BroadcastToRoom(roomID, Event{
			Type:   EventTimerExpired,
			RoomID: roomID,
			Data:   map[string]time.Time{"expired_at": expires},
		})
		_, err = s.endRoundLocked(ctx, roomID, ReasonTimer)
		return err
	})
	switch {
	case err == nil:
	case lostEndRace(err):
		s.log.Info("round timer skipped", zap.Uint("room_id", roomID), zap.Error(err))
	default:
		s.log.Error("round timer failed to end round", zap.Uint("room_id", roomID), zap.Error(err))
	}
}

// roundExpiry re-reads the room's open rounds and reports the earliest
// expiry among them. ok is false when nothing timed is open.
func (s *Server) roundExpiry(ctx context.Context, roomID uint) (time.Time, bool, error) {
	var (
		expires time.Time
		found   bool
	)
	err := s.repo.View(ctx, func(tx store.Tx) error {
		open, err := tx.OpenRounds(roomID)
		if err != nil {
			return err
		}
		for _, round := range open {
			at, ok := round.ExpiresAt()
			if !ok {
				continue
			}
			if !found || at.Before(expires) {
				expires, found = at, true
			}
		}
		return nil
	})
	return expires, found, err
}

// RestoreTimers re-arms timers for timed rounds that were open when the
// process last stopped. Rounds already past their expiry end immediately.
func (s *Server) RestoreTimers(ctx context.Context) (int, error) {
	due := make(map[uint]time.Time)
	err := s.repo.View(ctx, func(tx store.Tx) error {
		rounds, err := tx.TimedRounds()
		if err != nil {
			return err
		}
		for _, round := range rounds {
			at, ok := round.ExpiresAt()
			if !ok {
				continue
			}
			if current, seen := due[round.RoomID]; !seen || at.Before(current) {
				due[round.RoomID] = at
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("restore timers: %w", err)
	}
	for roomID, at := range due {
		s.scheduleRoundTimer(roomID, at)
		s.log.Info("round timer restored", zap.Uint("room_id", roomID), zap.Time("expires_at", at))
	}
	return len(due), nil
}
