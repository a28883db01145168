package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func keys(awards []Award) []string {
	out := make([]string, 0, len(awards))
	for _, a := range awards {
		out = append(out, a.Key)
	}
	return out
}

func TestAwardsSpreadAcrossTeam(t *testing.T) {
	got := Awards([]PlayerTally{
		{PlayerID: 1, Correct: 3, Total: 4, Solved: []int{0, 1}, Wrong: 1},
		{PlayerID: 2, Correct: 1, Total: 10, Solved: []int{4}, Wrong: 9},
		{PlayerID: 3, Correct: 1, Total: 1, Solved: []int{2}},
	}, 5)

	assert.Equal(t, []string{"MVP"}, keys(got[1]))
	assert.Equal(t, []string{"CLUTCH", "CREATIVE", "WILDCARD"}, keys(got[2]))
	assert.Equal(t, []string{"CHEERLEADER"}, keys(got[3]))
}

func TestAwardsSharpshooterNeedsVolumeAndAccuracy(t *testing.T) {
	got := Awards([]PlayerTally{
		{PlayerID: 1, Correct: 4, Total: 4},
		{PlayerID: 2, Correct: 4, Total: 5, Wrong: 1},
	}, 5)
	assert.Contains(t, keys(got[2]), "SHARPSHOOTER")
	assert.NotContains(t, keys(got[1]), "SHARPSHOOTER")

	got = Awards([]PlayerTally{{PlayerID: 1, Correct: 3, Total: 6, Wrong: 3}}, 5)
	assert.NotContains(t, keys(got[1]), "SHARPSHOOTER")
}

func TestAwardsPuzzleMasterSkipsMVP(t *testing.T) {
	got := Awards([]PlayerTally{
		{PlayerID: 1, Correct: 3, Total: 3, Solved: []int{0, 1}},
		{PlayerID: 2, Correct: 2, Total: 2, Solved: []int{2, 3}},
	}, 6)
	assert.NotContains(t, keys(got[1]), "PUZZLE_MASTER")
	assert.Contains(t, keys(got[2]), "PUZZLE_MASTER")
}

func TestAwardsQuietTeamGetsNothing(t *testing.T) {
	got := Awards([]PlayerTally{{PlayerID: 7}, {PlayerID: 8}}, 5)
	assert.Empty(t, got[7])
	assert.Empty(t, got[8])
	assert.Empty(t, Awards(nil, 5))
}

func TestWrongGuessLabel(t *testing.T) {
	cases := map[int]string{
		0:  "Laser Focus",
		1:  "Laser Focus",
		4:  "Precision Mode",
		7:  "Oops-o-meter",
		12: "Spice Rack",
		20: "Chaos Engine",
		21: "Plot Twist Factory",
	}
	for wrong, want := range cases {
		assert.Equal(t, want, WrongGuessLabel(wrong), "wrong=%d", wrong)
	}
}
