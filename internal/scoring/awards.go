package scoring

// Award is a playful per-round title for a player.
type Award struct {
	Key         string `json:"key"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

var (
	AwardMVP          = Award{Key: "MVP", Title: "Most Valuable Player", Description: "Most correct guesses on the team"}
	AwardSharpshooter = Award{Key: "SHARPSHOOTER", Title: "Sharpshooter", Description: "Highest accuracy rate (min 5 guesses)"}
	AwardClutch       = Award{Key: "CLUTCH", Title: "Clutch Player", Description: "Solved the final word"}
	AwardCreative     = Award{Key: "CREATIVE", Title: "Creative Guesser", Description: "Most wrong guesses"}
	AwardWildcard     = Award{Key: "WILDCARD", Title: "Wildcard", Description: "Most total guesses"}
	AwardCheerleader  = Award{Key: "CHEERLEADER", Title: "Team Cheerleader", Description: "Fewest guesses on the team"}
	AwardPuzzleMaster = Award{Key: "PUZZLE_MASTER", Title: "Puzzle Master", Description: "Solved the most words first"}
)

const (
	sharpshooterMinGuesses = 5
	sharpshooterAccuracy   = 0.7
)

// PlayerTally is one player's guessing record for a round.
type PlayerTally struct {
	PlayerID uint
	Correct  int
	Total    int
	// Solved holds the step indices this player was first to solve.
	Solved []int
	Wrong  int
}

func (p PlayerTally) Accuracy() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Correct) / float64(p.Total)
}

// Awards hands out titles within one team. Ties go to the earliest player
// in the slice.
func Awards(players []PlayerTally, steps int) map[uint][]Award {
	out := make(map[uint][]Award, len(players))
	for _, p := range players {
		out[p.PlayerID] = []Award{}
	}
	if len(players) == 0 {
		return out
	}
	give := func(id uint, award Award) {
		out[id] = append(out[id], award)
	}

	var mvp *PlayerTally
	if best := first(players, func(p PlayerTally) int { return p.Correct }); best.Correct > 0 {
		mvp = &best
		give(best.PlayerID, AwardMVP)
	}
	isMVP := func(id uint) bool { return mvp != nil && mvp.PlayerID == id }

	var sharp *PlayerTally
	for i := range players {
		p := players[i]
		if p.Total < sharpshooterMinGuesses {
			continue
		}
		if sharp == nil || p.Accuracy() > sharp.Accuracy() {
			sharp = &p
		}
	}
	if sharp != nil && sharp.Accuracy() >= sharpshooterAccuracy {
		give(sharp.PlayerID, AwardSharpshooter)
	}

	for _, p := range players {
		if solvedStep(p, steps-1) {
			give(p.PlayerID, AwardClutch)
			break
		}
	}

	if creative := first(players, func(p PlayerTally) int { return p.Wrong }); creative.Wrong > 0 {
		give(creative.PlayerID, AwardCreative)
	}

	wildcard := first(players, func(p PlayerTally) int { return p.Total })
	if wildcard.Total > 0 && !isMVP(wildcard.PlayerID) {
		give(wildcard.PlayerID, AwardWildcard)
	}

	cheer := first(players, func(p PlayerTally) int { return -p.Total })
	if cheer.Total > 0 && float64(cheer.Total) < float64(wildcard.Total)*0.5 {
		give(cheer.PlayerID, AwardCheerleader)
	}

	if most := first(players, func(p PlayerTally) int { return len(p.Solved) }); len(most.Solved) > 0 {
		for _, p := range players {
			if len(p.Solved) == len(most.Solved) && !isMVP(p.PlayerID) {
				give(p.PlayerID, AwardPuzzleMaster)
			}
		}
	}
	return out
}

// first returns the earliest player with the highest key.
func first(players []PlayerTally, key func(PlayerTally) int) PlayerTally {
	best := players[0]
	for _, p := range players[1:] {
		if key(p) > key(best) {
			best = p
		}
	}
	return best
}

func solvedStep(p PlayerTally, index int) bool {
	for _, solved := range p.Solved {
		if solved == index {
			return true
		}
	}
	return false
}

// WrongGuessLabel tags a team's wrong-guess count for the results screen.
func WrongGuessLabel(wrong int) string {
	switch {
	case wrong <= 1:
		return "Laser Focus"
	case wrong <= 4:
		return "Precision Mode"
	case wrong <= 7:
		return "Oops-o-meter"
	case wrong <= 12:
		return "Spice Rack"
	case wrong <= 20:
		return "Chaos Engine"
	default:
		return "Plot Twist Factory"
	}
}
