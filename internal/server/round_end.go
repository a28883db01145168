package server

import (
	"context"
	"errors"
	"time"

	"ladder-league/internal/db"
	"ladder-league/internal/puzzle"
	"ladder-league/internal/scoring"
	"ladder-league/internal/store"

	"go.uber.org/zap"
)

const (
	ReasonManual      = "manual"
	ReasonTimer       = "timer"
	ReasonAllFinished = "all_finished"
)

type endedTeam struct {
	team     db.Team
	round    db.Round
	progress *puzzle.Machine
	ladder   *puzzle.Puzzle
	result   ResultView
}

type roundSettlement struct {
	number      int
	reason      string
	teams       []endedTeam
	placeholder db.Round
}

// EndRound scores the room's open round. Any pending timer is cancelled
// first and re-armed if the round could not be ended.
func (s *Server) EndRound(ctx context.Context, roomID uint, reason string) (*RoundEnded, error) {
	if reason == "" {
		reason = ReasonManual
	}
	s.cancelRoundTimer(roomID)
	var ended *RoundEnded
	err := s.withRoomLock(ctx, roomID, func() error {
		var err error
		ended, err = s.endRoundLocked(ctx, roomID, reason)
		return err
	})
	if err != nil && !lostEndRace(err) {
		s.rearmRoundTimer(roomID)
	}
	return ended, err
}

// lostEndRace reports errors meaning there was no round left to end.
func lostEndRace(err error) bool {
	return errors.Is(err, ErrNoActiveRound) ||
		errors.Is(err, ErrRoundAlreadyEnded) ||
		errors.Is(err, ErrRoomNotFound) ||
		errors.Is(err, ErrNoTeams)
}

// rearmRoundTimer schedules the timer again from the persisted expiry of the
// room's open rounds.
func (s *Server) rearmRoundTimer(roomID uint) {
	ctx, cancel := context.WithTimeout(context.Background(), timerEndTimeout)
	defer cancel()
	expires, ok, err := s.roundExpiry(ctx, roomID)
	if err != nil {
		s.log.Error("round timer could not be re-armed", zap.Uint("room_id", roomID), zap.Error(err))
		return
	}
	if ok {
		s.scheduleRoundTimer(roomID, expires)
		s.log.Warn("round timer re-armed after failed end", zap.Uint("room_id", roomID), zap.Time("expires_at", expires))
	}
}

// endRoundLocked settles the round in one transaction and then announces
// it. The caller holds the room lock. Rounds are stamped ScoredAt before any
// result is written, so a second caller finds nothing left to score.
func (s *Server) endRoundLocked(ctx context.Context, roomID uint, reason string) (*RoundEnded, error) {
	var settled roundSettlement
	err := s.repo.Tx(ctx, func(tx store.Tx) error {
		var err error
		settled, err = s.settleRound(tx, roomID, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.cancelRoundTimer(roomID)

	ended := &RoundEnded{
		RoundNumber: settled.number,
		Reason:      reason,
		Results:     make([]ResultView, 0, len(settled.teams)),
	}
	for _, t := range settled.teams {
		ended.Results = append(ended.Results, t.result)
	}

	for _, t := range settled.teams {
		update := StateUpdate{
			RoundID:   t.round.ID,
			Revealed:  t.progress.State().Revealed,
			Completed: true,
		}
		if t.ladder != nil {
			update.Steps = stepViews(t.ladder, nil, true)
		}
		s.hub.BroadcastToTeam(roomID, t.team.ID, Event{Type: EventStateUpdated, RoomID: roomID, TeamID: t.team.ID, Data: update})
	}
	s.hub.BroadcastToRoom(roomID, Event{Type: EventRoundEnded, RoomID: roomID, Data: ended})
	s.hub.BroadcastToRoom(roomID, Event{
		Type:   EventNewRound,
		RoomID: roomID,
		Data:   NewRound{RoundNumber: settled.number + 1, RoundID: settled.placeholder.ID},
	})
	s.log.Info("round ended",
		zap.Uint("room_id", roomID),
		zap.Int("round_number", settled.number),
		zap.String("reason", reason),
		zap.Int("teams", len(settled.teams)),
	)
	return ended, nil
}

func (s *Server) settleRound(tx store.Tx, roomID uint, reason string) (roundSettlement, error) {
	settled := roundSettlement{reason: reason}
	if _, err := tx.Room(roomID); err != nil {
		return settled, notFound(err, ErrRoomNotFound)
	}
	teams, err := tx.Teams(roomID)
	if err != nil {
		return settled, err
	}
	if len(teams) == 0 {
		return settled, ErrNoTeams
	}
	open, err := tx.OpenRounds(roomID)
	if err != nil {
		return settled, err
	}
	if len(open) == 0 {
		return settled, ErrNoActiveRound
	}
	rounds := make(map[uint]db.Round, len(open))
	ids := make([]uint, 0, len(open))
	for _, round := range open {
		rounds[round.ID] = round
		ids = append(ids, round.ID)
	}

	now := s.now()
	scored, err := tx.MarkRoundsScored(ids, now)
	if err != nil {
		return settled, err
	}
	if scored != int64(len(ids)) {
		return settled, ErrRoundAlreadyEnded
	}
	last, err := tx.LastRoundNumber(roomID)
	if err != nil {
		return settled, err
	}
	settled.number = last + 1

	entries := make([]scoring.Entry, 0, len(teams))
	byTeam := make(map[uint]endedTeam, len(teams))
	for _, team := range teams {
		if team.RoundID == nil {
			continue
		}
		round, ok := rounds[*team.RoundID]
		if !ok {
			continue
		}
		progress, ladder, err := s.progressOf(round)
		if err != nil {
			return settled, err
		}
		entry := scoring.Entry{TeamID: team.ID, Completion: progress.Completion()}
		if round.CompletedAt != nil {
			entry.Finished = true
			entry.CompletedAt = *round.CompletedAt
		}
		entries = append(entries, entry)
		byTeam[team.ID] = endedTeam{team: team, round: round, progress: progress, ladder: ladder}
	}
	if len(entries) == 0 {
		return settled, ErrNoActiveRound
	}

	for _, placed := range scoring.Rank(entries) {
		ended := byTeam[placed.TeamID]
		team, round := ended.team, ended.round

		result := db.RoundResult{
			RoomID:      roomID,
			RoundID:     round.ID,
			TeamID:      team.ID,
			RoundNumber: settled.number,
			Placement:   placed.Placement,
			Points:      placed.Points,
			Completion:  placed.Completion,
			CompletedAt: round.CompletedAt,
		}
		if round.CompletedAt != nil {
			elapsed := int(round.CompletedAt.Sub(round.StartedAt) / time.Second)
			result.ElapsedSeconds = &elapsed
		}
		if err := tx.CreateRoundResult(&result); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return settled, ErrRoundAlreadyEnded
			}
			return settled, err
		}

		team.TotalPoints += placed.Points
		team.RoundsPlayed++
		if placed.Placement == 1 {
			team.RoundsWon++
		}
		team.RoundID = nil
		if err := tx.SaveTeam(&team); err != nil {
			return settled, err
		}

		ended.progress.RevealAll(now)
		round.SetRevealed(ended.progress.State().Revealed)
		if round.CompletedAt == nil {
			round.CompletedAt = &now
		}
		round.LastUpdatedAt = &now
		round.ScoredAt = &now
		if err := tx.SaveRound(&round); err != nil {
			return settled, err
		}

		settled.teams = append(settled.teams, endedTeam{
			team:     team,
			round:    round,
			progress: ended.progress,
			ladder:   ended.ladder,
			result: ResultView{
				TeamID:         team.ID,
				TeamName:       team.Name,
				Placement:      placed.Placement,
				Points:         placed.Points,
				Completion:     placed.Completion,
				ElapsedSeconds: result.ElapsedSeconds,
				Finished:       placed.Finished,
			},
		})
	}

	if err := tx.ResetReady(roomID); err != nil {
		return settled, err
	}
	settled.placeholder = db.Round{RoomID: roomID, StartedAt: now}
	settled.placeholder.SetRevealed(nil)
	if err := tx.CreateRound(&settled.placeholder); err != nil {
		return settled, err
	}

	results := make([]ResultView, 0, len(settled.teams))
	for _, t := range settled.teams {
		results = append(results, t.result)
	}
	return settled, recordEvent(tx, roomID, nil, EventRoundEnded, RoundEnded{
		RoundNumber: settled.number,
		Reason:      reason,
		Results:     results,
	})
}

// progressOf rebuilds a round's state machine from its persisted progress.
// The ladder is nil when the puzzle is no longer in the library; progress is
// then tracked against a blank ladder of the same length. Unreadable
// progress counts as nothing solved.
func (s *Server) progressOf(round db.Round) (*puzzle.Machine, *puzzle.Puzzle, error) {
	ladder, err := s.puzzles.Load(round.PuzzleRef)
	shape := ladder
	if err != nil {
		ladder = nil
		shape = &puzzle.Puzzle{Ref: round.PuzzleRef, Ladder: make([]puzzle.Step, round.StepCount)}
	}
	revealed, err := round.RevealedSteps()
	if err != nil {
		revealed = nil
	}
	lastUpdated := round.StartedAt
	if round.LastUpdatedAt != nil {
		lastUpdated = *round.LastUpdatedAt
	}
	machine, err := puzzle.Restore(shape, revealed, lastUpdated)
	if err != nil {
		return nil, nil, err
	}
	return machine, ladder, nil
}
