// Package scoring ranks teams at the end of a round and awards points.
//
// Finishers are ordered by completion time and earn total-p+1 points for
// placement p. Teams that did not finish (DNF) are ordered by completion
// fraction after every finisher and earn partial credit capped at 75% of
// the worst finisher's points, with a floor of one point.
package scoring

import (
	"math"
	"sort"
	"time"
)

const (
	// DNFCapRatio bounds DNF points relative to the worst finisher.
	DNFCapRatio = 0.75
	// tieTolerance is how close two DNF completion fractions must be to share a placement.
	tieTolerance = 0.001
)

type Entry struct {
	TeamID      uint
	Finished    bool
	CompletedAt time.Time
	Completion  float64
}

type Placement struct {
	Entry
	Placement int
	Points    int
}

// Rank orders entries and assigns placements and points. Input order breaks
// remaining ties, so callers should pass entries in a stable order (by team
// id).
func Rank(entries []Entry) []Placement {
	finished := make([]Entry, 0, len(entries))
	dnf := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if entry.Finished {
			finished = append(finished, entry)
		} else {
			dnf = append(dnf, entry)
		}
	}
	sort.SliceStable(finished, func(i, j int) bool {
		return finished[i].CompletedAt.Before(finished[j].CompletedAt)
	})
	sort.SliceStable(dnf, func(i, j int) bool {
		return dnf[i].Completion > dnf[j].Completion
	})

	total := len(entries)
	worst := WorstFinishedPoints(total, len(finished))
	placements := make([]Placement, 0, total)
	for i, entry := range finished {
		place := i + 1
		if i > 0 && entry.CompletedAt.Equal(finished[i-1].CompletedAt) {
			place = placements[i-1].Placement
		}
		placements = append(placements, Placement{
			Entry:     entry,
			Placement: place,
			Points:    FinisherPoints(total, place),
		})
	}
	for i, entry := range dnf {
		idx := len(finished) + i
		place := idx + 1
		if i > 0 && math.Abs(entry.Completion-dnf[i-1].Completion) <= tieTolerance {
			place = placements[idx-1].Placement
		}
		placements = append(placements, Placement{
			Entry:     entry,
			Placement: place,
			Points:    DNFPoints(worst, entry.Completion),
		})
	}
	return placements
}

// WorstFinishedPoints is the points the last finisher earns, or the team
// count when nobody finished.
func WorstFinishedPoints(total, finished int) int {
	if finished == 0 {
		return total
	}
	return total - finished + 1
}

func FinisherPoints(total, placement int) int {
	return total - placement + 1
}

func DNFPoints(worst int, completion float64) int {
	if completion < 0 {
		completion = 0
	}
	limit := float64(worst) * DNFCapRatio
	raw := math.Min(limit, float64(worst)*completion)
	// Trim float noise so 30*0.1 stays 3.
	points := int(math.Ceil(raw - 1e-9))
	if points < 1 {
		return 1
	}
	return points
}
