package server

import (
	"context"
	"time"

	"ladder-league/internal/db"
	"ladder-league/internal/puzzle"
	"ladder-league/internal/store"

	"go.uber.org/zap"
)

type GuessRequest struct {
	RoomID       uint
	SessionToken string
	// TeamID, when set, must match the participant's team.
	TeamID    uint
	StepIndex int
	Text      string
}

// GuessOutcome is what the guessing participant learns. The expected word
// is never included.
type GuessOutcome struct {
	StepIndex     int   `json:"step_index"`
	Correct       bool  `json:"correct"`
	AlreadySolved bool  `json:"already_solved"`
	Revealed      []int `json:"revealed"`
	Completed     bool  `json:"completed"`
	Placement     int   `json:"placement,omitempty"`
	RoundEnded    bool  `json:"round_ended"`
}

type guessEffects struct {
	participant db.Participant
	team        db.Team
	round       db.Round
	result      puzzle.GuessResult
	text        string
	placed      *TeamPlaced
	allFinished bool
}

// SubmitGuess checks one guess against the participant's team puzzle. Every
// in-range guess is stored. When the last team finishes, the round ends.
func (s *Server) SubmitGuess(ctx context.Context, req GuessRequest) (*GuessOutcome, error) {
	text, err := validateGuess(req.Text)
	if err != nil {
		return nil, err
	}
	var outcome GuessOutcome
	err = s.withRoomLock(ctx, req.RoomID, func() error {
		var fx guessEffects
		err := s.repo.Tx(ctx, func(tx store.Tx) error {
			var err error
			fx, err = s.applyGuess(tx, req, text)
			return err
		})
		if err != nil {
			return err
		}
		outcome = GuessOutcome{
			StepIndex:     fx.result.StepIndex,
			Correct:       fx.result.Correct,
			AlreadySolved: fx.result.AlreadySolved,
			Revealed:      fx.result.State.Revealed,
			Completed:     fx.result.State.Completed,
		}
		if fx.placed != nil {
			outcome.Placement = fx.placed.Placement
		}
		s.announceGuess(req.RoomID, fx)
		if !fx.allFinished {
			return nil
		}
		if _, err := s.endRoundLocked(ctx, req.RoomID, ReasonAllFinished); err != nil {
			s.log.Error("auto end round failed", zap.Uint("room_id", req.RoomID), zap.Error(err))
			return nil
		}
		outcome.RoundEnded = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &outcome, nil
}

func (s *Server) applyGuess(tx store.Tx, req GuessRequest, text string) (guessEffects, error) {
	var fx guessEffects
	p, err := tx.ParticipantBySession(req.RoomID, req.SessionToken)
	if err != nil {
		return fx, notFound(err, ErrParticipantNotFound)
	}
	team, err := teamOfParticipant(tx, p)
	if err != nil {
		return fx, err
	}
	if req.TeamID != 0 && req.TeamID != team.ID {
		return fx, ErrNotOnTeam
	}
	if team.RoundID == nil {
		return fx, ErrNoActiveRound
	}
	round, err := tx.Round(*team.RoundID)
	if err != nil {
		return fx, notFound(err, ErrNoActiveRound)
	}
	if round.Placeholder() || round.ScoredAt != nil {
		return fx, ErrNoActiveRound
	}
	puz, err := s.puzzles.Load(round.PuzzleRef)
	if err != nil {
		return fx, err
	}
	revealed, err := round.RevealedSteps()
	if err != nil {
		return fx, err
	}
	lastUpdated := round.StartedAt
	if round.LastUpdatedAt != nil {
		lastUpdated = *round.LastUpdatedAt
	}
	machine, err := puzzle.Restore(puz, revealed, lastUpdated)
	if err != nil {
		return fx, err
	}

	now := s.now()
	result := machine.Submit(text, req.StepIndex, now)
	if result.OutOfRange {
		return fx, ErrInvalidStep
	}
	guess := db.Guess{
		TeamID:        team.ID,
		ParticipantID: uintPtr(p.ID),
		RoundID:       round.ID,
		StepIndex:     req.StepIndex,
		Text:          text,
		Correct:       result.Correct,
	}
	if err := tx.CreateGuess(&guess); err != nil {
		return fx, err
	}
	fx = guessEffects{participant: *p, team: *team, round: *round, result: result, text: text}
	if !result.Correct {
		return fx, nil
	}

	round.SetRevealed(result.State.Revealed)
	round.LastUpdatedAt = &now
	if result.State.Completed && round.CompletedAt == nil {
		round.CompletedAt = &now
	}
	if err := tx.SaveRound(round); err != nil {
		return fx, err
	}
	fx.round = *round
	if err := recordEvent(tx, req.RoomID, uintPtr(team.ID), EventStepSolved, StepSolved{
		StepIndex: req.StepIndex,
		Word:      result.Expected,
		SolvedBy:  p.Name,
	}); err != nil {
		return fx, err
	}
	if !result.State.Completed {
		return fx, nil
	}

	open, err := tx.OpenRounds(req.RoomID)
	if err != nil {
		return fx, err
	}
	placed, allFinished, err := livePlacement(tx, open, *round, *team, now)
	if err != nil {
		return fx, err
	}
	fx.placed = placed
	fx.allFinished = allFinished
	return fx, recordEvent(tx, req.RoomID, uintPtr(team.ID), EventTeamCompleted, placed)
}

// livePlacement ranks a team that just finished among the teams that
// finished before it, and reports whether every open round is now complete.
func livePlacement(tx store.Tx, open []db.Round, round db.Round, team db.Team, now time.Time) (*TeamPlaced, bool, error) {
	placement := 0
	allFinished := true
	var first *db.Round
	for i := range open {
		r := open[i]
		if r.CompletedAt == nil {
			allFinished = false
			continue
		}
		if !r.CompletedAt.After(*round.CompletedAt) {
			placement++
		}
		if first == nil || r.CompletedAt.Before(*first.CompletedAt) {
			first = &open[i]
		}
	}
	placed := &TeamPlaced{
		TeamID:         team.ID,
		TeamName:       team.Name,
		Placement:      placement,
		FirstPlaceTeam: team.Name,
		ElapsedSeconds: int(now.Sub(round.StartedAt) / time.Second),
	}
	if first != nil && first.ID != round.ID {
		teams, err := tx.Teams(round.RoomID)
		if err != nil {
			return nil, false, err
		}
		for _, t := range teams {
			if t.RoundID != nil && *t.RoundID == first.ID {
				placed.FirstPlaceTeam = t.Name
				break
			}
		}
	}
	return placed, allFinished, nil
}

func (s *Server) announceGuess(roomID uint, fx guessEffects) {
	teamID := fx.team.ID
	if fx.result.AlreadySolved {
		s.hub.SendToOne(roomID, fx.participant.SessionToken, Event{
			Type:   EventAlreadySolved,
			RoomID: roomID,
			TeamID: teamID,
			Data:   map[string]int{"step_index": fx.result.StepIndex},
		})
	}
	s.hub.BroadcastToTeam(roomID, teamID, Event{
		Type:   EventGuessSubmitted,
		RoomID: roomID,
		TeamID: teamID,
		Data: GuessSubmitted{
			ParticipantID:   fx.participant.ID,
			ParticipantName: fx.participant.Name,
			StepIndex:       fx.result.StepIndex,
			Guess:           fx.text,
			Correct:         fx.result.Correct,
		},
	})
	if !fx.result.Correct {
		return
	}
	solved := Event{
		Type:   EventStepSolved,
		RoomID: roomID,
		TeamID: teamID,
		Data: StepSolved{
			StepIndex: fx.result.StepIndex,
			Word:      fx.result.Expected,
			SolvedBy:  fx.participant.Name,
		},
	}
	s.hub.BroadcastToTeam(roomID, teamID, solved)
	s.hub.BroadcastToObservers(roomID, solved)

	state := Event{
		Type:   EventStateUpdated,
		RoomID: roomID,
		TeamID: teamID,
		Data: StateUpdate{
			RoundID:   fx.round.ID,
			Revealed:  fx.result.State.Revealed,
			Completed: fx.result.State.Completed,
		},
	}
	s.hub.BroadcastToTeam(roomID, teamID, state)
	s.hub.BroadcastToObservers(roomID, state)

	if fx.placed == nil {
		return
	}
	s.hub.BroadcastToTeam(roomID, teamID, Event{Type: EventTeamCompleted, RoomID: roomID, TeamID: teamID, Data: fx.placed})
	s.hub.BroadcastToRoom(roomID, Event{Type: EventTeamPlaced, RoomID: roomID, TeamID: teamID, Data: fx.placed})
	s.log.Info("team completed puzzle",
		zap.Uint("room_id", roomID),
		zap.Uint("team_id", teamID),
		zap.Int("placement", fx.placed.Placement),
	)
}
