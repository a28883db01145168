package server

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"testing"

	"ladder-league/internal/puzzle"
	"ladder-league/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// match is a lobby with two assigned teams.
type match struct {
	lobby
	teams   []uint
	members map[uint][]string
}

func newMatch(t *testing.T, srv *Server) match {
	t.Helper()
	l := newLobby(t, srv, "Ada", "Ben", "Cy", "Di")
	_, err := srv.AssignTeams(context.Background(), l.room.ID, 2)
	require.NoError(t, err)
	members := teamMembers(t, srv, l.room.ID)
	teams := make([]uint, 0, len(members))
	for id := range members {
		teams = append(teams, id)
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i] < teams[j] })
	require.Len(t, teams, 2)
	return match{lobby: l, teams: teams, members: members}
}

func (m match) start(t *testing.T, srv *Server, timerSeconds int) *RoundAnnouncement {
	t.Helper()
	announcement, err := srv.StartRound(context.Background(), m.room.ID, StartRequest{
		Difficulty:   puzzle.DifficultyEasy,
		TimerSeconds: intPtr(timerSeconds),
	})
	require.NoError(t, err)
	return announcement
}

func (m match) player(team int) string {
	return m.members[m.teams[team]][0]
}

func countGuesses(t *testing.T, srv *Server, teamID uint) int64 {
	t.Helper()
	var total int64
	require.NoError(t, srv.repo.View(context.Background(), func(tx store.Tx) error {
		team, err := tx.Team(teamID)
		if err != nil {
			return err
		}
		if team.RoundID == nil {
			return nil
		}
		total, err = tx.CountGuesses(teamID, *team.RoundID)
		return err
	}))
	return total
}

func TestStartRoundGivesEachTeamAPuzzleWithEndsRevealed(t *testing.T) {
	srv, _ := newEngine(t)
	m := newMatch(t, srv)
	conn := connect(t, srv, m.room.ID, m.player(0), nil)

	announcement := m.start(t, srv, 0)

	assert.Equal(t, 1, announcement.RoundNumber)
	assert.Equal(t, 2, announcement.Teams)
	assert.Equal(t, puzzle.ModeSame, announcement.PuzzleMode)
	assert.Nil(t, announcement.ExpiresAt)

	open := openRounds(t, srv, m.room.ID)
	require.Len(t, open, 2)
	for _, round := range open {
		assert.NotEmpty(t, round.PuzzleRef)
		assert.Equal(t, 5, round.StepCount)
		revealed, err := round.RevealedSteps()
		require.NoError(t, err)
		assert.Equal(t, []int{0, 4}, revealed)
	}
	assert.Equal(t, open[0].PuzzleRef, open[1].PuzzleRef)

	events := conn.events()
	require.Len(t, events, 2)
	assert.Equal(t, EventRoundStarted, events[0].Type)
	assert.Equal(t, m.teams[0], events[0].TeamID)
	assert.Equal(t, EventRoundStarted, events[1].Type)
	assert.Zero(t, events[1].TeamID)

	var view PuzzleView
	require.NoError(t, json.Unmarshal(events[0].Data, &view))
	assert.Equal(t, []int{0, 4}, view.Revealed)
	require.Len(t, view.Steps, 5)
	assert.NotEmpty(t, view.Steps[0].Word)
	assert.Empty(t, view.Steps[1].Word)
	assert.Equal(t, len(ladderOf(t, srv, m.room.ID, m.teams[0])[1]), view.Steps[1].Length)
	assert.NotEmpty(t, view.Steps[1].Clue)
}

func TestStartRoundDifferentModeGivesDistinctPuzzles(t *testing.T) {
	srv, _ := newEngine(t)
	m := newMatch(t, srv)

	_, err := srv.StartRound(context.Background(), m.room.ID, StartRequest{
		Difficulty: puzzle.DifficultyEasy,
		PuzzleMode: puzzle.ModeDifferent,
	})
	require.NoError(t, err)

	open := openRounds(t, srv, m.room.ID)
	require.Len(t, open, 2)
	assert.NotEqual(t, open[0].PuzzleRef, open[1].PuzzleRef)
}

func TestStartRoundRejections(t *testing.T) {
	ctx := context.Background()
	easy := StartRequest{Difficulty: puzzle.DifficultyEasy}

	t.Run("unknown room", func(t *testing.T) {
		srv, _ := newEngine(t)
		_, err := srv.StartRound(ctx, 404, easy)
		assert.ErrorIs(t, err, ErrRoomNotFound)
	})

	t.Run("invalid difficulty", func(t *testing.T) {
		srv, _ := newEngine(t)
		m := newMatch(t, srv)
		_, err := srv.StartRound(ctx, m.room.ID, StartRequest{Difficulty: "brutal"})
		assert.ErrorIs(t, err, puzzle.ErrInvalidDifficulty)
	})

	t.Run("no teams", func(t *testing.T) {
		srv, _ := newEngine(t)
		l := newLobby(t, srv, "Ada", "Ben")
		_, err := srv.StartRound(ctx, l.room.ID, easy)
		assert.ErrorIs(t, err, ErrNoTeams)
	})

	t.Run("nobody assigned", func(t *testing.T) {
		srv, _ := newEngine(t)
		l := newLobby(t, srv)
		_, err := srv.AssignTeams(ctx, l.room.ID, 2)
		require.NoError(t, err)
		_, err = srv.StartRound(ctx, l.room.ID, easy)
		assert.ErrorIs(t, err, ErrNoAssigned)
	})

	t.Run("not ready", func(t *testing.T) {
		srv, _ := newEngine(t)
		srv.cfg.RequireReady = true
		m := newMatch(t, srv)
		_, err := srv.SetReady(ctx, m.room.ID, m.player(0), true)
		require.NoError(t, err)
		_, err = srv.StartRound(ctx, m.room.ID, easy)
		assert.ErrorIs(t, err, ErrNotReady)
		assert.Empty(t, openRounds(t, srv, m.room.ID))
	})

	t.Run("round in progress", func(t *testing.T) {
		srv, _ := newEngine(t)
		m := newMatch(t, srv)
		m.start(t, srv, 0)
		_, err := srv.StartRound(ctx, m.room.ID, easy)
		assert.ErrorIs(t, err, ErrRoundInProgress)
		assert.Len(t, openRounds(t, srv, m.room.ID), 2)
	})
}

func TestStartRoundNeverRepeatsAPuzzleInARoom(t *testing.T) {
	srv, _ := newEngine(t)
	m := newMatch(t, srv)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 3; i++ {
		announcement := m.start(t, srv, 0)
		assert.Equal(t, i+1, announcement.RoundNumber)
		open := openRounds(t, srv, m.room.ID)
		require.NotEmpty(t, open)
		ref := open[0].PuzzleRef
		assert.False(t, seen[ref], "puzzle %s repeated", ref)
		seen[ref] = true
		_, err := srv.EndRound(ctx, m.room.ID, ReasonManual)
		require.NoError(t, err)
	}

	_, err := srv.StartRound(ctx, m.room.ID, StartRequest{Difficulty: puzzle.DifficultyEasy})
	assert.ErrorIs(t, err, puzzle.ErrNoPuzzles)
}

func TestSubmitGuessRevealsStepForTeamAndObservers(t *testing.T) {
	srv, _ := newEngine(t)
	m := newMatch(t, srv)
	m.start(t, srv, 0)
	mine := connect(t, srv, m.room.ID, m.player(0), nil)
	theirs := connect(t, srv, m.room.ID, m.player(1), nil)
	watcher := newFakeConn("observer", nil)
	srv.hub.AddObserver(watcher)
	srv.hub.Subscribe(watcher, m.room.ID)

	words := ladderOf(t, srv, m.room.ID, m.teams[0])
	outcome := guess(t, srv, m.room.ID, m.player(0), 1, " "+strings.ToLower(words[1])+" ")

	assert.True(t, outcome.Correct)
	assert.False(t, outcome.Completed)
	assert.Equal(t, []int{0, 1, 4}, outcome.Revealed)
	assert.Equal(t, []string{EventGuessSubmitted, EventStepSolved, EventStateUpdated}, mine.types())
	assert.Empty(t, theirs.events())
	assert.Equal(t, []string{EventStepSolved, EventStateUpdated}, watcher.types())
	assert.Equal(t, int64(1), countGuesses(t, srv, m.teams[0]))

	var solved StepSolved
	require.NoError(t, json.Unmarshal(mine.events()[1].Data, &solved))
	assert.Equal(t, words[1], solved.Word)
	assert.Equal(t, 1, solved.StepIndex)
}

func TestSubmitGuessWrongAnswerKeepsWordHidden(t *testing.T) {
	srv, _ := newEngine(t)
	m := newMatch(t, srv)
	m.start(t, srv, 0)
	mine := connect(t, srv, m.room.ID, m.player(0), nil)
	words := ladderOf(t, srv, m.room.ID, m.teams[0])

	outcome := guess(t, srv, m.room.ID, m.player(0), 2, "ZZZZ")

	assert.False(t, outcome.Correct)
	assert.Equal(t, []int{0, 4}, outcome.Revealed)
	assert.Equal(t, []string{EventGuessSubmitted}, mine.types())
	assert.NotContains(t, mine.raw(), words[2])
	assert.Equal(t, int64(1), countGuesses(t, srv, m.teams[0]))

	round := openRounds(t, srv, m.room.ID)[0]
	revealed, err := round.RevealedSteps()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 4}, revealed)
}

func TestSubmitGuessOnSolvedStepIsRecordedButChangesNothing(t *testing.T) {
	srv, _ := newEngine(t)
	m := newMatch(t, srv)
	m.start(t, srv, 0)
	mine := connect(t, srv, m.room.ID, m.player(0), nil)
	words := ladderOf(t, srv, m.room.ID, m.teams[0])

	outcome := guess(t, srv, m.room.ID, m.player(0), 0, words[0])

	assert.True(t, outcome.AlreadySolved)
	assert.False(t, outcome.Correct)
	assert.Equal(t, []int{0, 4}, outcome.Revealed)
	assert.Equal(t, []string{EventAlreadySolved, EventGuessSubmitted}, mine.types())
	assert.Equal(t, int64(1), countGuesses(t, srv, m.teams[0]))
}

func TestSubmitGuessOutOfRangeStoresNothing(t *testing.T) {
	srv, _ := newEngine(t)
	m := newMatch(t, srv)
	m.start(t, srv, 0)
	mine := connect(t, srv, m.room.ID, m.player(0), nil)

	for _, index := range []int{-1, 5, 99} {
		_, err := srv.SubmitGuess(context.Background(), GuessRequest{
			RoomID:       m.room.ID,
			SessionToken: m.player(0),
			StepIndex:    index,
			Text:         "WORD",
		})
		assert.ErrorIs(t, err, ErrInvalidStep)
	}
	assert.Zero(t, countGuesses(t, srv, m.teams[0]))
	assert.Empty(t, mine.events())
}

func TestSubmitGuessPreconditions(t *testing.T) {
	ctx := context.Background()
	srv, _ := newEngine(t)
	m := newMatch(t, srv)

	_, err := srv.SubmitGuess(ctx, GuessRequest{RoomID: m.room.ID, SessionToken: m.player(0), StepIndex: 1, Text: "WORD"})
	assert.ErrorIs(t, err, ErrNoActiveRound)

	m.start(t, srv, 0)

	_, err = srv.SubmitGuess(ctx, GuessRequest{RoomID: m.room.ID, SessionToken: "nobody", StepIndex: 1, Text: "WORD"})
	assert.ErrorIs(t, err, ErrParticipantNotFound)

	_, err = srv.SubmitGuess(ctx, GuessRequest{RoomID: m.room.ID, SessionToken: m.player(0), TeamID: m.teams[1], StepIndex: 1, Text: "WORD"})
	assert.ErrorIs(t, err, ErrNotOnTeam)

	_, err = srv.SubmitGuess(ctx, GuessRequest{RoomID: m.room.ID, SessionToken: m.player(0), StepIndex: 1, Text: "   "})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	late, err := srv.JoinRoom(ctx, m.room.Code, "Eve", "")
	require.NoError(t, err)
	_, err = srv.SubmitGuess(ctx, GuessRequest{RoomID: m.room.ID, SessionToken: late.Session, StepIndex: 1, Text: "WORD"})
	assert.ErrorIs(t, err, ErrNotOnTeam)
}

func TestTeamPuzzleHidesUnsolvedWords(t *testing.T) {
	srv, _ := newEngine(t)
	m := newMatch(t, srv)
	m.start(t, srv, 0)
	words := ladderOf(t, srv, m.room.ID, m.teams[0])
	guess(t, srv, m.room.ID, m.player(0), 2, words[2])

	view, err := srv.TeamPuzzle(context.Background(), m.room.ID, m.player(0))
	require.NoError(t, err)

	assert.Equal(t, []int{0, 2, 4}, view.Revealed)
	shown := make([]string, 0, len(view.Steps))
	for _, step := range view.Steps {
		shown = append(shown, step.Word)
	}
	assert.Equal(t, []string{words[0], "", words[2], "", words[4]}, shown)
}

func TestGameStateReportsProgress(t *testing.T) {
	srv, _ := newEngine(t)
	m := newMatch(t, srv)
	m.start(t, srv, 90)
	words := ladderOf(t, srv, m.room.ID, m.teams[1])
	guess(t, srv, m.room.ID, m.player(1), 1, words[1])

	state, err := srv.GameState(context.Background(), m.room.ID)
	require.NoError(t, err)

	assert.True(t, state.Active)
	assert.Equal(t, 1, state.RoundNumber)
	require.NotNil(t, state.ExpiresAt)
	progress := make(map[uint]TeamProgress)
	for _, team := range state.Teams {
		progress[team.TeamID] = team
	}
	assert.Equal(t, 2, progress[m.teams[0]].Solved)
	assert.Equal(t, 3, progress[m.teams[1]].Solved)
	assert.InDelta(t, 0.6, progress[m.teams[1]].Completion, 0.001)
}
