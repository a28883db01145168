package server

import (
	"errors"
	"net/http"

	"ladder-league/internal/puzzle"
	"ladder-league/internal/store"
)

var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrTeamNotFound        = errors.New("team not found")
	ErrNameTaken           = errors.New("name is already taken in this room")
	ErrNoTeams             = errors.New("room has no teams")
	ErrTeamsExist          = errors.New("teams are already assigned")
	ErrTeamCount           = errors.New("team count out of range")
	ErrNoAssigned          = errors.New("no participants are assigned to teams")
	ErrNotReady            = errors.New("not every participant is ready")
	ErrNotOnTeam           = errors.New("participant is not on a team")
	ErrNoActiveRound       = errors.New("no active round")
	ErrRoundInProgress     = errors.New("a round is already in progress")
	ErrRoundAlreadyEnded   = errors.New("round already ended")
	ErrInvalidStep         = errors.New("step index out of range")
	ErrInvalidRequest      = errors.New("invalid request")
)

// statusForError maps domain errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, ErrRoomNotFound),
		errors.Is(err, ErrParticipantNotFound),
		errors.Is(err, ErrTeamNotFound),
		errors.Is(err, store.ErrNotFound),
		errors.Is(err, puzzle.ErrUnknownPuzzle):
		return http.StatusNotFound
	case errors.Is(err, ErrNameTaken),
		errors.Is(err, ErrTeamsExist),
		errors.Is(err, ErrRoundInProgress),
		errors.Is(err, ErrRoundAlreadyEnded),
		errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrNoTeams),
		errors.Is(err, ErrNoAssigned),
		errors.Is(err, ErrNotReady),
		errors.Is(err, ErrNotOnTeam),
		errors.Is(err, ErrNoActiveRound),
		errors.Is(err, puzzle.ErrNoPuzzles),
		errors.Is(err, puzzle.ErrNotEnough),
		errors.Is(err, puzzle.ErrNoExactMatch),
		errors.Is(err, puzzle.ErrTooShort):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrInvalidStep),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrTeamCount),
		errors.Is(err, puzzle.ErrInvalidMode),
		errors.Is(err, puzzle.ErrInvalidDifficulty):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// notFound swaps store.ErrNotFound for a domain-specific error.
func notFound(err error, replacement error) error {
	if errors.Is(err, store.ErrNotFound) {
		return replacement
	}
	return err
}
