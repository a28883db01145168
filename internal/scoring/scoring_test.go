package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 5, 4, 18, 0, 0, 0, time.UTC)

func byTeam(placements []Placement) map[uint]Placement {
	out := make(map[uint]Placement, len(placements))
	for _, p := range placements {
		out[p.TeamID] = p
	}
	return out
}

func TestRankTwoFinishersTwoDNF(t *testing.T) {
	placements := Rank([]Entry{
		{TeamID: 1, Completion: 0.3},
		{TeamID: 2, Finished: true, CompletedAt: base.Add(2 * time.Minute), Completion: 1},
		{TeamID: 3, Completion: 0.8},
		{TeamID: 4, Finished: true, CompletedAt: base.Add(time.Minute), Completion: 1},
	})
	require.Len(t, placements, 4)

	order := []uint{placements[0].TeamID, placements[1].TeamID, placements[2].TeamID, placements[3].TeamID}
	assert.Equal(t, []uint{4, 2, 3, 1}, order)

	got := byTeam(placements)
	assert.Equal(t, 1, got[4].Placement)
	assert.Equal(t, 4, got[4].Points)
	assert.Equal(t, 2, got[2].Placement)
	assert.Equal(t, 3, got[2].Points)
	assert.Equal(t, 3, got[3].Placement)
	assert.Equal(t, 3, got[3].Points)
	assert.Equal(t, 4, got[1].Placement)
	assert.Equal(t, 1, got[1].Points)
}

func TestRankNobodyFinished(t *testing.T) {
	got := byTeam(Rank([]Entry{
		{TeamID: 1, Completion: 0.1},
		{TeamID: 2, Completion: 0.9},
		{TeamID: 3, Completion: 0.5},
	}))
	assert.Equal(t, 1, got[2].Placement)
	assert.Equal(t, 3, got[2].Points)
	assert.Equal(t, 2, got[3].Placement)
	assert.Equal(t, 2, got[3].Points)
	assert.Equal(t, 3, got[1].Placement)
	assert.Equal(t, 1, got[1].Points)
}

func TestRankStableForEqualDNF(t *testing.T) {
	placements := Rank([]Entry{
		{TeamID: 7, Completion: 0.4},
		{TeamID: 3, Completion: 0.4},
		{TeamID: 5, Completion: 0.6},
	})
	assert.Equal(t, uint(5), placements[0].TeamID)
	assert.Equal(t, uint(7), placements[1].TeamID)
	assert.Equal(t, uint(3), placements[2].TeamID)
	assert.Equal(t, 2, placements[1].Placement)
	assert.Equal(t, 2, placements[2].Placement)
}

func TestRankSimultaneousFinishersShareAPlacement(t *testing.T) {
	got := byTeam(Rank([]Entry{
		{TeamID: 1, Finished: true, CompletedAt: base},
		{TeamID: 2, Finished: true, CompletedAt: base},
		{TeamID: 3, Finished: true, CompletedAt: base.Add(time.Second)},
	}))
	assert.Equal(t, 1, got[1].Placement)
	assert.Equal(t, 1, got[2].Placement)
	assert.Equal(t, 3, got[1].Points)
	assert.Equal(t, 3, got[2].Points)
	assert.Equal(t, 3, got[3].Placement)
	assert.Equal(t, 1, got[3].Points)
}

func TestFinisherPointsNonIncreasing(t *testing.T) {
	for total := 1; total <= 10; total++ {
		prev := math.MaxInt
		for place := 1; place <= total; place++ {
			points := FinisherPoints(total, place)
			assert.LessOrEqual(t, points, prev)
			assert.GreaterOrEqual(t, points, 1)
			prev = points
		}
	}
}

func TestDNFPointsBounds(t *testing.T) {
	for total := 1; total <= 10; total++ {
		for finished := 0; finished < total; finished++ {
			worst := WorstFinishedPoints(total, finished)
			for step := 0; step <= 100; step++ {
				completion := float64(step) / 100
				points := DNFPoints(worst, completion)
				assert.GreaterOrEqual(t, points, 1)
				assert.LessOrEqual(t, points, int(math.Ceil(float64(worst)*DNFCapRatio)))
				if finished > 0 {
					assert.LessOrEqual(t, points, worst, "DNF out-scored the worst finisher")
				}
			}
		}
	}
}

func TestDNFPointsExamples(t *testing.T) {
	assert.Equal(t, 3, DNFPoints(3, 0.8))
	assert.Equal(t, 1, DNFPoints(3, 0.3))
	assert.Equal(t, 2, DNFPoints(3, 0.5))
	assert.Equal(t, 1, DNFPoints(3, 0))
	assert.Equal(t, 3, DNFPoints(30, 0.1))
}

func TestWorstFinishedPoints(t *testing.T) {
	assert.Equal(t, 3, WorstFinishedPoints(4, 2))
	assert.Equal(t, 3, WorstFinishedPoints(3, 0))
	assert.Equal(t, 1, WorstFinishedPoints(5, 5))
}
