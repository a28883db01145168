package puzzle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPuzzle(ref string, words ...string) *Puzzle {
	p := &Puzzle{Ref: ref, Meta: Meta{Title: ref, Difficulty: DifficultyMedium}}
	for _, word := range words {
		p.Ladder = append(p.Ladder, Step{Word: word, Clue: "clue for " + word})
	}
	return p
}

func coldWarm() *Puzzle {
	return testPuzzle("cold-warm", "COLD", "CORD", "CARD", "WARD", "WARM")
}

func TestNewMachineRevealsEnds(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m, err := NewMachine(coldWarm(), now)
	require.NoError(t, err)

	state := m.State()
	assert.Equal(t, []int{0, 4}, state.Revealed)
	assert.False(t, state.Completed)
	assert.Equal(t, now, state.LastUpdated)
}

func TestNewMachineRejectsShortLadder(t *testing.T) {
	_, err := NewMachine(testPuzzle("short", "A", "B", "C", "D"), time.Now())
	require.ErrorIs(t, err, ErrTooShort)
}

func TestSubmitCorrectGuessIsCaseInsensitiveAndTrimmed(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m, err := NewMachine(coldWarm(), start)
	require.NoError(t, err)

	later := start.Add(time.Minute)
	result := m.Submit("  cord ", 1, later)
	assert.True(t, result.Correct)
	assert.Equal(t, []int{0, 1, 4}, result.State.Revealed)
	assert.Equal(t, later, result.State.LastUpdated)
}

func TestSubmitIncorrectGuessLeavesStateUnchanged(t *testing.T) {
	m, err := NewMachine(coldWarm(), time.Now())
	require.NoError(t, err)

	before := m.State()
	result := m.Submit("CART", 2, time.Now().Add(time.Second))
	assert.False(t, result.Correct)
	assert.False(t, result.AlreadySolved)
	assert.Equal(t, "CARD", result.Expected)
	assert.Equal(t, before, m.State())
}

func TestSubmitAlreadySolvedIsIdempotent(t *testing.T) {
	m, err := NewMachine(coldWarm(), time.Now())
	require.NoError(t, err)
	require.True(t, m.Submit("cord", 1, time.Now()).Correct)

	before := m.State()
	for _, guess := range []string{"cord", "anything", ""} {
		result := m.Submit(guess, 1, time.Now().Add(time.Hour))
		assert.True(t, result.AlreadySolved)
		assert.False(t, result.Correct)
		assert.Equal(t, before, m.State())
	}
	assert.True(t, m.Submit("COLD", 0, time.Now()).AlreadySolved)
}

func TestSubmitOutOfRange(t *testing.T) {
	m, err := NewMachine(coldWarm(), time.Now())
	require.NoError(t, err)

	for _, index := range []int{-1, 5, 99} {
		result := m.Submit("COLD", index, time.Now())
		assert.True(t, result.OutOfRange)
		assert.False(t, result.Correct)
		assert.Empty(t, result.Expected)
	}
	assert.Equal(t, []int{0, 4}, m.State().Revealed)
}

func TestRevealedIsMonotonicAndCompletionMatchesFullRange(t *testing.T) {
	m, err := NewMachine(coldWarm(), time.Now())
	require.NoError(t, err)

	seen := map[int]bool{0: true, 4: true}
	guesses := []struct {
		text  string
		index int
	}{
		{"CARD", 2}, {"nope", 1}, {"CARD", 2}, {"WARD", 3}, {"cold", 1}, {"CORD", 1},
	}
	for _, g := range guesses {
		result := m.Submit(g.text, g.index, time.Now())
		if result.Correct {
			seen[g.index] = true
		}
		for index := range seen {
			assert.Contains(t, result.State.Revealed, index)
		}
		assert.Equal(t, len(result.State.Revealed) == 5, result.State.Completed)
	}
	assert.True(t, m.Completed())
	assert.InDelta(t, 1.0, m.Completion(), 1e-9)
}

func TestRestoreDropsInvalidIndices(t *testing.T) {
	m, err := Restore(coldWarm(), []int{0, 4, 2, 7, -1}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 4}, m.State().Revealed)
	assert.InDelta(t, 0.6, m.Completion(), 1e-9)
}

func TestRevealAllCompletes(t *testing.T) {
	m, err := NewMachine(coldWarm(), time.Now())
	require.NoError(t, err)
	m.RevealAll(time.Now())
	assert.True(t, m.State().Completed)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, m.State().Revealed)
}
