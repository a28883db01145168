package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"ladder-league/internal/db"
	"ladder-league/internal/scoring"
	"ladder-league/internal/store"
)

type PlayerRoundStats struct {
	ParticipantID  uint            `json:"participant_id"`
	Name           string          `json:"name"`
	CorrectGuesses int             `json:"correct_guesses"`
	TotalGuesses   int             `json:"total_guesses"`
	Accuracy       float64         `json:"accuracy"`
	StepsSolved    []int           `json:"steps_solved"`
	WrongGuesses   []string        `json:"wrong_guesses"`
	Awards         []scoring.Award `json:"awards"`
}

type TeamRoundStats struct {
	ResultView
	TotalGuesses    int64              `json:"total_guesses"`
	WrongGuesses    int                `json:"wrong_guesses"`
	WrongGuessRate  float64            `json:"wrong_guess_rate"`
	WrongGuessLabel string             `json:"wrong_guess_label"`
	Players         []PlayerRoundStats `json:"players"`
}

type RoundStats struct {
	RoomID       uint             `json:"room_id"`
	RoundNumber  int              `json:"round_number"`
	WinnerTeamID *uint            `json:"winner_team_id,omitempty"`
	Teams        []TeamRoundStats `json:"teams"`
}

type EventView struct {
	ID        uint            `json:"id"`
	TeamID    *uint           `json:"team_id,omitempty"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// RoundStats breaks a scored round down per player: who guessed what, who
// solved each step first, and the awards that follow from it.
func (s *Server) RoundStats(ctx context.Context, roomID uint, number int) (*RoundStats, error) {
	if number <= 0 {
		return nil, fmt.Errorf("%w: round number must be positive", ErrInvalidRequest)
	}
	stats := RoundStats{RoomID: roomID, RoundNumber: number, Teams: make([]TeamRoundStats, 0)}
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
		participants, err := tx.Participants(roomID)
		if err != nil {
			return err
		}
		roundIDs := make([]uint, 0, len(results))
		for _, result := range results {
			roundIDs = append(roundIDs, result.RoundID)
		}
		guesses, err := tx.RoundGuesses(roundIDs)
		if err != nil {
			return err
		}
		byRound := make(map[uint][]db.Guess, len(results))
		for _, g := range guesses {
			byRound[g.RoundID] = append(byRound[g.RoundID], g)
		}

		for _, result := range results {
			if result.Placement == 1 && stats.WinnerTeamID == nil {
				winner := result.TeamID
				stats.WinnerTeamID = &winner
			}
			round, err := tx.Round(result.RoundID)
			if err != nil {
				return err
			}
			total, err := tx.CountGuesses(result.TeamID, result.RoundID)
			if err != nil {
				return err
			}
			team := TeamRoundStats{
				ResultView:   resultView(result, names[result.TeamID]),
				TotalGuesses: total,
				Players:      playerStats(result.TeamID, round.StepCount, byRound[result.RoundID], participants),
			}
			for _, g := range byRound[result.RoundID] {
				if !g.Correct {
					team.WrongGuesses++
				}
			}
			if total > 0 {
				team.WrongGuessRate = float64(team.WrongGuesses) / float64(total)
			}
			team.WrongGuessLabel = scoring.WrongGuessLabel(team.WrongGuesses)
			stats.Teams = append(stats.Teams, team)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// playerStats covers current members of the team plus anyone else who
// guessed for it during the round. Guesses from removed participants only
// count toward team totals.
func playerStats(teamID uint, steps int, guesses []db.Guess, participants []db.Participant) []PlayerRoundStats {
	named := make(map[uint]string, len(participants))
	players := make(map[uint]*PlayerRoundStats)
	add := func(id uint) *PlayerRoundStats {
		if p, ok := players[id]; ok {
			return p
		}
		p := &PlayerRoundStats{
			ParticipantID: id,
			Name:          named[id],
			StepsSolved:   []int{},
			WrongGuesses:  []string{},
		}
		players[id] = p
		return p
	}
	for _, p := range participants {
		named[p.ID] = p.Name
	}
	for _, p := range participants {
		if p.TeamID != nil && *p.TeamID == teamID {
			add(p.ID)
		}
	}

	solvedBy := make(map[int]bool)
	for _, g := range guesses {
		if g.ParticipantID == nil {
			continue
		}
		if _, ok := named[*g.ParticipantID]; !ok {
			continue
		}
		p := add(*g.ParticipantID)
		p.TotalGuesses++
		if !g.Correct {
			p.WrongGuesses = append(p.WrongGuesses, g.Text)
			continue
		}
		p.CorrectGuesses++
		if !solvedBy[g.StepIndex] {
			solvedBy[g.StepIndex] = true
			p.StepsSolved = append(p.StepsSolved, g.StepIndex)
		}
	}

	out := make([]PlayerRoundStats, 0, len(players))
	for _, p := range players {
		if p.TotalGuesses > 0 {
			p.Accuracy = float64(p.CorrectGuesses) / float64(p.TotalGuesses)
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ParticipantID < out[j].ParticipantID })

	tallies := make([]scoring.PlayerTally, 0, len(out))
	for _, p := range out {
		tallies = append(tallies, scoring.PlayerTally{
			PlayerID: p.ParticipantID,
			Correct:  p.CorrectGuesses,
			Total:    p.TotalGuesses,
			Solved:   p.StepsSolved,
			Wrong:    len(p.WrongGuesses),
		})
	}
	awards := scoring.Awards(tallies, steps)
	for i := range out {
		out[i].Awards = awards[out[i].ParticipantID]
	}
	return out
}

// Events returns the room's audit log, oldest first.
func (s *Server) Events(ctx context.Context, roomID uint) ([]EventView, error) {
	events := make([]EventView, 0)
	err := s.repo.View(ctx, func(tx store.Tx) error {
		if _, err := tx.Room(roomID); err != nil {
			return notFound(err, ErrRoomNotFound)
		}
		stored, err := tx.Events(roomID)
		if err != nil {
			return err
		}
		for _, e := range stored {
			events = append(events, EventView{
				ID:        e.ID,
				TeamID:    e.TeamID,
				Type:      e.Type,
				Payload:   json.RawMessage(e.Payload),
				CreatedAt: e.CreatedAt,
			})
		}
		return nil
	})
	return events, err
}
