package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundRevealedRoundTrip(t *testing.T) {
	var round Round
	steps, err := round.RevealedSteps()
	require.NoError(t, err)
	assert.Empty(t, steps)

	round.SetRevealed([]int{0, 3, 6})
	assert.JSONEq(t, `[0,3,6]`, string(round.Revealed))
	steps, err = round.RevealedSteps()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 3, 6}, steps)

	round.SetRevealed(nil)
	assert.Equal(t, `[]`, string(round.Revealed))
}

func TestRoundExpiresAt(t *testing.T) {
	var round Round
	_, ok := round.ExpiresAt()
	assert.False(t, ok)

	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	seconds := 90
	round.TimerStartedAt = &started
	round.TimerSeconds = &seconds
	expires, ok := round.ExpiresAt()
	require.True(t, ok)
	assert.Equal(t, started.Add(90*time.Second), expires)

	zero := 0
	round.TimerSeconds = &zero
	_, ok = round.ExpiresAt()
	assert.False(t, ok)
}

func TestRoundPlaceholder(t *testing.T) {
	assert.True(t, (&Round{}).Placeholder())
	assert.False(t, (&Round{PuzzleRef: "easy/cold-warm.json"}).Placeholder())
}
