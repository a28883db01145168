package server

import (
	"context"
	"fmt"
	"time"

	"ladder-league/internal/db"
	"ladder-league/internal/puzzle"
	"ladder-league/internal/store"

	"go.uber.org/zap"
)

type StartRequest struct {
	Difficulty    string `json:"difficulty" binding:"required,oneof=easy medium hard"`
	PuzzleMode    string `json:"puzzle_mode" binding:"omitempty,oneof=same different"`
	WordCountMode string `json:"word_count_mode" binding:"omitempty,oneof=exact balanced"`
	// TimerSeconds overrides the configured round length. Zero disables the
	// timer.
	TimerSeconds *int `json:"timer_seconds" binding:"omitempty,min=0,max=3600"`
}

type teamStart struct {
	team    db.Team
	round   db.Round
	puzzle  *puzzle.Puzzle
	members []string
}

// StartRound gives every team a fresh puzzle and arms the round timer.
func (s *Server) StartRound(ctx context.Context, roomID uint, req StartRequest) (*RoundAnnouncement, error) {
	if !puzzle.ValidDifficulty(req.Difficulty) {
		return nil, puzzle.ErrInvalidDifficulty
	}
	if req.PuzzleMode == "" {
		req.PuzzleMode = puzzle.ModeSame
	}
	seconds := s.cfg.RoundSeconds
	if req.TimerSeconds != nil {
		seconds = *req.TimerSeconds
	}
	if seconds < 0 {
		return nil, fmt.Errorf("%w: timer_seconds must not be negative", ErrInvalidRequest)
	}

	var (
		starts   []teamStart
		number   int
		expires  *time.Time
		assigned []db.Participant
	)
	err := s.withRoomLock(ctx, roomID, func() error {
		return s.repo.Tx(ctx, func(tx store.Tx) error {
			if _, err := tx.Room(roomID); err != nil {
				return notFound(err, ErrRoomNotFound)
			}
			if err := requireIdle(tx, roomID); err != nil {
				return err
			}
			teams, err := tx.Teams(roomID)
			if err != nil {
				return err
			}
			if len(teams) == 0 {
				return ErrNoTeams
			}
			participants, err := tx.Participants(roomID)
			if err != nil {
				return err
			}
			for _, p := range participants {
				if p.TeamID == nil {
					continue
				}
				if s.cfg.RequireReady && !p.Ready {
					return fmt.Errorf("%w: %s", ErrNotReady, p.Name)
				}
				assigned = append(assigned, p)
			}
			if len(assigned) == 0 {
				return ErrNoAssigned
			}
			used, err := tx.UsedPuzzleRefs(roomID)
			if err != nil {
				return err
			}
			refs, err := s.puzzles.Select(len(teams), req.Difficulty, req.PuzzleMode, req.WordCountMode, used)
			if err != nil {
				return err
			}
			last, err := tx.LastRoundNumber(roomID)
			if err != nil {
				return err
			}
			number = last + 1

			now := s.now()
			starts = make([]teamStart, 0, len(teams))
			for i, team := range teams {
				p, err := s.puzzles.Load(refs[i])
				if err != nil {
					return err
				}
				machine, err := puzzle.NewMachine(p, now)
				if err != nil {
					return fmt.Errorf("puzzle %s: %w", p.Ref, err)
				}
				round := db.Round{
					RoomID:        roomID,
					Difficulty:    req.Difficulty,
					PuzzleRef:     p.Ref,
					StepCount:     p.Len(),
					StartedAt:     now,
					LastUpdatedAt: &now,
				}
				round.SetRevealed(machine.State().Revealed)
				if seconds > 0 {
					started, length := now, seconds
					round.TimerStartedAt = &started
					round.TimerSeconds = &length
				}
				if err := tx.CreateRound(&round); err != nil {
					return err
				}
				team.RoundID = uintPtr(round.ID)
				if err := tx.SaveTeam(&team); err != nil {
					return err
				}
				starts = append(starts, teamStart{team: team, round: round, puzzle: p})
			}
			if at, ok := starts[0].round.ExpiresAt(); ok {
				expires = &at
			}
			return recordEvent(tx, roomID, nil, EventRoundStarted, map[string]any{
				"round_number":  number,
				"difficulty":    req.Difficulty,
				"puzzle_mode":   req.PuzzleMode,
				"puzzles":       refs,
				"timer_seconds": seconds,
			})
		})
	})
	if err != nil {
		return nil, err
	}

	for i := range starts {
		for _, p := range assigned {
			if *p.TeamID == starts[i].team.ID {
				starts[i].members = append(starts[i].members, p.SessionToken)
			}
		}
	}
	for _, start := range starts {
		for _, session := range start.members {
			s.hub.RegisterTeam(roomID, session, start.team.ID)
		}
	}

	s.cancelRoundTimer(roomID)
	if expires != nil {
		s.scheduleRoundTimer(roomID, *expires)
	}

	for _, start := range starts {
		view := puzzleView(start.puzzle, start.round, number, false)
		s.hub.BroadcastToTeam(roomID, start.team.ID, Event{Type: EventRoundStarted, RoomID: roomID, TeamID: start.team.ID, Data: view})
	}
	announcement := RoundAnnouncement{
		RoundNumber:  number,
		Difficulty:   req.Difficulty,
		PuzzleMode:   req.PuzzleMode,
		Teams:        len(starts),
		TimerSeconds: seconds,
		ExpiresAt:    expires,
	}
	s.hub.BroadcastToRoom(roomID, Event{Type: EventRoundStarted, RoomID: roomID, Data: announcement})
	s.log.Info("round started",
		zap.Uint("room_id", roomID),
		zap.Int("round_number", number),
		zap.String("difficulty", req.Difficulty),
		zap.Int("teams", len(starts)),
		zap.Int("timer_seconds", seconds),
	)
	return &announcement, nil
}

// puzzleView renders a team's puzzle. Players see words only for revealed
// steps; full reveals every word.
func puzzleView(p *puzzle.Puzzle, round db.Round, number int, full bool) PuzzleView {
	revealed, _ := round.RevealedSteps()
	if revealed == nil {
		revealed = []int{}
	}
	shown := make(map[int]struct{}, len(revealed))
	for _, index := range revealed {
		shown[index] = struct{}{}
	}
	title := p.Meta.Title
	if title == "" {
		title = p.Ref
	}
	view := PuzzleView{
		RoundID:     round.ID,
		RoundNumber: number,
		Title:       title,
		Difficulty:  round.Difficulty,
		StepCount:   p.Len(),
		Steps:       stepViews(p, shown, full),
		Revealed:    revealed,
		Completed:   round.CompletedAt != nil,
	}
	if at, ok := round.ExpiresAt(); ok && round.ScoredAt == nil {
		view.ExpiresAt = &at
	}
	return view
}

func stepViews(p *puzzle.Puzzle, shown map[int]struct{}, full bool) []StepView {
	lengths := p.Lengths()
	steps := make([]StepView, 0, p.Len())
	for i, step := range p.Ladder {
		view := StepView{Index: i, Length: lengths[i], Clue: step.Clue}
		if _, ok := shown[i]; ok || full {
			view.Word = step.Word
		}
		steps = append(steps, view)
	}
	return steps
}
