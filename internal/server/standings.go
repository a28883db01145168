package server

import (
	"context"
	"fmt"
	"sort"
	"time"

	"ladder-league/internal/db"
	"ladder-league/internal/store"
)

type LeaderboardEntry struct {
	TeamID       uint   `json:"team_id"`
	TeamName     string `json:"team_name"`
	TotalPoints  int    `json:"total_points"`
	RoundsPlayed int    `json:"rounds_played"`
	RoundsWon    int    `json:"rounds_won"`
	Firsts       int    `json:"firsts"`
	Seconds      int    `json:"seconds"`
	Thirds       int    `json:"thirds"`
	DNFs         int    `json:"dnfs"`
}

type Leaderboard struct {
	RoomID     uint               `json:"room_id"`
	Rounds     int                `json:"rounds"`
	Teams      []LeaderboardEntry `json:"teams"`
	LastWinner *ResultView        `json:"last_winner,omitempty"`
}

type RoundHistoryEntry struct {
	RoundNumber int          `json:"round_number"`
	Results     []ResultView `json:"results"`
}

type TeamProgress struct {
	TeamID     uint    `json:"team_id"`
	TeamName   string  `json:"team_name"`
	RoundID    *uint   `json:"round_id"`
	Solved     int     `json:"solved"`
	StepCount  int     `json:"step_count"`
	Completion float64 `json:"completion"`
	Completed  bool    `json:"completed"`
}

type GameState struct {
	RoomID      uint           `json:"room_id"`
	RoundNumber int            `json:"round_number"`
	Active      bool           `json:"active"`
	ExpiresAt   *time.Time     `json:"expires_at,omitempty"`
	Teams       []TeamProgress `json:"teams"`
}

func (s *Server) Leaderboard(ctx context.Context, roomID uint) (*Leaderboard, error) {
	var board Leaderboard
	err := s.repo.View(ctx, func(tx store.Tx) error {
		if _, err := tx.Room(roomID); err != nil {
			return notFound(err, ErrRoomNotFound)
		}
		teams, err := tx.Teams(roomID)
		if err != nil {
			return err
		}
		results, err := tx.RoundResults(roomID, 0)
		if err != nil {
			return err
		}
		board = buildLeaderboard(roomID, teams, results)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &board, nil
}

func buildLeaderboard(roomID uint, teams []db.Team, results []db.RoundResult) Leaderboard {
	board := Leaderboard{RoomID: roomID, Teams: make([]LeaderboardEntry, 0, len(teams))}
	names := make(map[uint]string, len(teams))
	index := make(map[uint]int, len(teams))
	for _, team := range teams {
		names[team.ID] = team.Name
		index[team.ID] = len(board.Teams)
		board.Teams = append(board.Teams, LeaderboardEntry{
			TeamID:       team.ID,
			TeamName:     team.Name,
			TotalPoints:  team.TotalPoints,
			RoundsPlayed: team.RoundsPlayed,
			RoundsWon:    team.RoundsWon,
		})
	}
	for _, result := range results {
		if result.RoundNumber > board.Rounds {
			board.Rounds = result.RoundNumber
		}
		i, ok := index[result.TeamID]
		if !ok {
			continue
		}
		entry := &board.Teams[i]
		switch {
		case result.CompletedAt == nil:
			entry.DNFs++
		case result.Placement == 1:
			entry.Firsts++
		case result.Placement == 2:
			entry.Seconds++
		case result.Placement == 3:
			entry.Thirds++
		}
	}
	for _, result := range results {
		if result.RoundNumber == board.Rounds && result.Placement == 1 {
			view := resultView(result, names[result.TeamID])
			board.LastWinner = &view
			break
		}
	}
	sort.SliceStable(board.Teams, func(i, j int) bool {
		a, b := board.Teams[i], board.Teams[j]
		if a.TotalPoints != b.TotalPoints {
			return a.TotalPoints > b.TotalPoints
		}
		if a.RoundsWon != b.RoundsWon {
			return a.RoundsWon > b.RoundsWon
		}
		return a.TeamID < b.TeamID
	})
	return board
}

func (s *Server) RoundHistory(ctx context.Context, roomID uint) ([]RoundHistoryEntry, error) {
	history := make([]RoundHistoryEntry, 0)
	err := s.repo.View(ctx, func(tx store.Tx) error {
		if _, err := tx.Room(roomID); err != nil {
			return notFound(err, ErrRoomNotFound)
		}
		names, err := teamNames(tx, roomID)
		if err != nil {
			return err
		}
		results, err := tx.RoundResults(roomID, 0)
		if err != nil {
			return err
		}
		for _, result := range results {
			if len(history) == 0 || history[len(history)-1].RoundNumber != result.RoundNumber {
				history = append(history, RoundHistoryEntry{RoundNumber: result.RoundNumber})
			}
			last := &history[len(history)-1]
			last.Results = append(last.Results, resultView(result, names[result.TeamID]))
		}
		return nil
	})
	return history, err
}

func (s *Server) RoundResults(ctx context.Context, roomID uint, number int) (*RoundHistoryEntry, error) {
	if number <= 0 {
		return nil, fmt.Errorf("%w: round number must be positive", ErrInvalidRequest)
	}
	entry := RoundHistoryEntry{RoundNumber: number, Results: make([]ResultView, 0)}
	err := s.repo.View(ctx, func(tx store.Tx) error {
		if _, err := tx.Room(roomID); err != nil {
			return notFound(err, ErrRoomNotFound)
		}
		names, err := teamNames(tx, roomID)
		if err != nil {
			return err
		}
		results, err := tx.RoundResults(roomID, number)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			return fmt.Errorf("round %d: %w", number, store.ErrNotFound)
		}
		for _, result := range results {
			entry.Results = append(entry.Results, resultView(result, names[result.TeamID]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// GameState summarises each team's progress in the open round.
func (s *Server) GameState(ctx context.Context, roomID uint) (*GameState, error) {
	state := GameState{RoomID: roomID, Teams: make([]TeamProgress, 0)}
	err := s.repo.View(ctx, func(tx store.Tx) error {
		if _, err := tx.Room(roomID); err != nil {
			return notFound(err, ErrRoomNotFound)
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
		state.RoundNumber = last + 1
		state.Active = len(open) > 0
		rounds := make(map[uint]db.Round, len(open))
		for _, round := range open {
			rounds[round.ID] = round
			if at, ok := round.ExpiresAt(); ok && (state.ExpiresAt == nil || at.Before(*state.ExpiresAt)) {
				state.ExpiresAt = &at
			}
		}
		for _, team := range teams {
			progress := TeamProgress{TeamID: team.ID, TeamName: team.Name}
			if team.RoundID != nil {
				if round, ok := rounds[*team.RoundID]; ok {
					progress.RoundID = uintPtr(round.ID)
					progress.StepCount = round.StepCount
					progress.Completed = round.CompletedAt != nil
					if machine, _, err := s.progressOf(round); err == nil {
						progress.Solved = len(machine.State().Revealed)
						progress.Completion = machine.Completion()
					}
				}
			}
			state.Teams = append(state.Teams, progress)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// TeamPuzzle returns the puzzle of the participant's team with only solved
// words filled in.
func (s *Server) TeamPuzzle(ctx context.Context, roomID uint, session string) (*PuzzleView, error) {
	var view PuzzleView
	err := s.repo.View(ctx, func(tx store.Tx) error {
		p, err := tx.ParticipantBySession(roomID, session)
		if err != nil {
			return notFound(err, ErrParticipantNotFound)
		}
		team, err := teamOfParticipant(tx, p)
		if err != nil {
			return err
		}
		view, err = s.currentPuzzle(tx, roomID, team, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// OperatorPuzzle returns a team's full ladder.
func (s *Server) OperatorPuzzle(ctx context.Context, roomID, teamID uint) (*PuzzleView, error) {
	var view PuzzleView
	err := s.repo.View(ctx, func(tx store.Tx) error {
		team, err := tx.Team(teamID)
		if err != nil || team.RoomID != roomID {
			return ErrTeamNotFound
		}
		view, err = s.currentPuzzle(tx, roomID, team, true)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (s *Server) currentPuzzle(tx store.Tx, roomID uint, team *db.Team, full bool) (PuzzleView, error) {
	if team.RoundID == nil {
		return PuzzleView{}, ErrNoActiveRound
	}
	round, err := tx.Round(*team.RoundID)
	if err != nil {
		return PuzzleView{}, notFound(err, ErrNoActiveRound)
	}
	if round.Placeholder() {
		return PuzzleView{}, ErrNoActiveRound
	}
	p, err := s.puzzles.Load(round.PuzzleRef)
	if err != nil {
		return PuzzleView{}, err
	}
	last, err := tx.LastRoundNumber(roomID)
	if err != nil {
		return PuzzleView{}, err
	}
	return puzzleView(p, *round, last+1, full), nil
}

func teamNames(tx store.Tx, roomID uint) (map[uint]string, error) {
	teams, err := tx.Teams(roomID)
	if err != nil {
		return nil, err
	}
	names := make(map[uint]string, len(teams))
	for _, team := range teams {
		names[team.ID] = team.Name
	}
	return names, nil
}

func resultView(result db.RoundResult, teamName string) ResultView {
	return ResultView{
		TeamID:         result.TeamID,
		TeamName:       teamName,
		Placement:      result.Placement,
		Points:         result.Points,
		Completion:     result.Completion,
		ElapsedSeconds: result.ElapsedSeconds,
		Finished:       result.CompletedAt != nil,
	}
}
