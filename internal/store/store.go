// Package store persists rooms, teams, rounds and results. Every write goes
// through Repository.Tx so multi-row changes commit or roll back together.
package store

import (
	"context"
	"errors"
	"time"

	"ladder-league/internal/db"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

type Repository interface {
	// Tx runs fn atomically. Any error returned by fn rolls back every write
	// fn made.
	Tx(ctx context.Context, fn func(Tx) error) error
	// View runs read-only queries.
	View(ctx context.Context, fn func(Tx) error) error
}

type Tx interface {
	CreateRoom(room *db.Room) error
	Room(id uint) (*db.Room, error)
	RoomByCode(code string) (*db.Room, error)
	Rooms() ([]db.Room, error)
	SaveRoom(room *db.Room) error
	// DeleteRoom removes the room and everything it owns.
	DeleteRoom(id uint) error

	CreateParticipant(p *db.Participant) error
	Participant(id uint) (*db.Participant, error)
	ParticipantBySession(roomID uint, token string) (*db.Participant, error)
	Participants(roomID uint) ([]db.Participant, error)
	SaveParticipant(p *db.Participant) error
	// SetReady writes only the ready flag.
	SetReady(id uint, ready bool) error
	DeleteParticipant(id uint) error
	ResetReady(roomID uint) error

	CreateTeam(team *db.Team) error
	Team(id uint) (*db.Team, error)
	Teams(roomID uint) ([]db.Team, error)
	SaveTeam(team *db.Team) error
	// RenameTeam writes only the name, leaving scoring columns alone.
	RenameTeam(id uint, name string) error

	CreateRound(round *db.Round) error
	Round(id uint) (*db.Round, error)
	SaveRound(round *db.Round) error
	// OpenRounds lists puzzle-bearing rounds in the room that have not been
	// scored yet.
	OpenRounds(roomID uint) ([]db.Round, error)
	// TimedRounds lists open rounds, in every room, that carry a timer.
	TimedRounds() ([]db.Round, error)
	UsedPuzzleRefs(roomID uint) ([]string, error)
	// MarkRoundsScored stamps ScoredAt on rounds that are still unscored and
	// reports how many rows changed.
	MarkRoundsScored(ids []uint, at time.Time) (int64, error)

	CreateGuess(guess *db.Guess) error
	CountGuesses(teamID, roundID uint) (int64, error)
	// RoundGuesses lists guesses for the given rounds in submission order.
	RoundGuesses(roundIDs []uint) ([]db.Guess, error)

	CreateRoundResult(result *db.RoundResult) error
	// RoundResults lists results for one round number, or all rounds when
	// number is zero, ordered by round number then placement.
	RoundResults(roomID uint, number int) ([]db.RoundResult, error)
	LastRoundNumber(roomID uint) (int, error)

	CreateEvent(event *db.Event) error
	Events(roomID uint) ([]db.Event, error)
}
