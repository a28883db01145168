package server

import "time"

const (
	EventConnectionConfirmed = "connection_confirmed"
	EventParticipantJoined   = "participant_joined"
	EventParticipantLeft     = "participant_left"
	EventParticipantKicked   = "participant_kicked"
	EventKicked              = "kicked"
	EventReadyChanged        = "ready_changed"
	EventTeamsAssigned       = "teams_assigned"
	EventAssigned            = "assigned"
	EventTeamChanged         = "team_changed"
	EventTeamAdded           = "team_added"
	EventTeamRenamed         = "team_renamed"
	EventRoomCreated         = "room_created"
	EventRoomRenamed         = "room_renamed"
	EventRoomDeleted         = "room_deleted"
	EventRoundStarted        = "round_started"
	EventGuessSubmitted      = "guess_submitted"
	EventAlreadySolved       = "already_solved"
	EventStepSolved          = "step_solved"
	EventStateUpdated        = "state_updated"
	EventTeamCompleted       = "team_completed"
	EventTeamPlaced          = "team_placed"
	EventTimerExpired        = "timer_expired"
	EventRoundEnded          = "round_ended"
	EventNewRound            = "new_round"
	EventSubscribed          = "subscribed"
	EventError               = "error"
	EventPong                = "pong"
)

// Event is the envelope for every message pushed over a websocket.
type Event struct {
	Type   string `json:"type"`
	RoomID uint   `json:"room_id,omitempty"`
	TeamID uint   `json:"team_id,omitempty"`
	Data   any    `json:"data,omitempty"`
}

type ParticipantView struct {
	ID     uint   `json:"id"`
	Name   string `json:"name"`
	TeamID *uint  `json:"team_id"`
	Ready  bool   `json:"ready"`
}

type TeamView struct {
	ID           uint              `json:"id"`
	Name         string            `json:"name"`
	TotalPoints  int               `json:"total_points"`
	RoundsPlayed int               `json:"rounds_played"`
	RoundsWon    int               `json:"rounds_won"`
	Members      []ParticipantView `json:"members"`
}

type StepView struct {
	Index  int    `json:"index"`
	Length int    `json:"length"`
	Clue   string `json:"clue,omitempty"`
	Word   string `json:"word,omitempty"`
}

type PuzzleView struct {
	RoundID     uint       `json:"round_id"`
	RoundNumber int        `json:"round_number"`
	Title       string     `json:"title"`
	Difficulty  string     `json:"difficulty"`
	StepCount   int        `json:"step_count"`
	Steps       []StepView `json:"steps"`
	Revealed    []int      `json:"revealed"`
	Completed   bool       `json:"completed"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

type GuessSubmitted struct {
	ParticipantID   uint   `json:"participant_id"`
	ParticipantName string `json:"participant_name"`
	StepIndex       int    `json:"step_index"`
	Guess           string `json:"guess"`
	Correct         bool   `json:"correct"`
}

type StepSolved struct {
	StepIndex int    `json:"step_index"`
	Word      string `json:"word"`
	SolvedBy  string `json:"solved_by"`
}

type StateUpdate struct {
	RoundID   uint       `json:"round_id"`
	Revealed  []int      `json:"revealed"`
	Completed bool       `json:"completed"`
	Steps     []StepView `json:"steps,omitempty"`
}

type TeamPlaced struct {
	TeamID         uint   `json:"team_id"`
	TeamName       string `json:"team_name"`
	Placement      int    `json:"placement"`
	FirstPlaceTeam string `json:"first_place_team"`
	ElapsedSeconds int    `json:"elapsed_seconds"`
}

type ResultView struct {
	TeamID         uint    `json:"team_id"`
	TeamName       string  `json:"team_name"`
	Placement      int     `json:"placement"`
	Points         int     `json:"points"`
	Completion     float64 `json:"completion"`
	ElapsedSeconds *int    `json:"elapsed_seconds,omitempty"`
	Finished       bool    `json:"finished"`
}

type RoundEnded struct {
	RoundNumber int          `json:"round_number"`
	Reason      string       `json:"reason"`
	Results     []ResultView `json:"results"`
}

type NewRound struct {
	RoundNumber int  `json:"round_number"`
	RoundID     uint `json:"round_id"`
}

type RoundAnnouncement struct {
	RoundNumber  int        `json:"round_number"`
	Difficulty   string     `json:"difficulty"`
	PuzzleMode   string     `json:"puzzle_mode"`
	Teams        int        `json:"teams"`
	TimerSeconds int        `json:"timer_seconds"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}
