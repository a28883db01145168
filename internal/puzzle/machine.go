package puzzle

import (
	"sort"
	"strings"
	"time"
)

// State is a team's progress through one puzzle.
type State struct {
	Revealed    []int     `json:"revealed"`
	Completed   bool      `json:"completed"`
	LastUpdated time.Time `json:"last_updated"`
}

type GuessResult struct {
	Correct       bool
	AlreadySolved bool
	OutOfRange    bool
	StepIndex     int
	// Expected is the answer for the targeted step. It is empty for
	// out-of-range indices and must not be forwarded to players.
	Expected string
	State    State
}

// Machine tracks which steps of a puzzle one team has solved. Revealed steps
// are never hidden again. A Machine is not safe for concurrent use.
type Machine struct {
	puzzle      *Puzzle
	revealed    map[int]struct{}
	lastUpdated time.Time
}

// NewMachine starts a puzzle with its first and last steps revealed.
func NewMachine(p *Puzzle, now time.Time) (*Machine, error) {
	if p == nil || p.Len() < MinSteps {
		return nil, ErrTooShort
	}
	m := &Machine{
		puzzle:      p,
		revealed:    map[int]struct{}{0: {}, p.Len() - 1: {}},
		lastUpdated: now,
	}
	return m, nil
}

// Restore rebuilds a machine from persisted progress. Indices outside the
// ladder are dropped.
func Restore(p *Puzzle, revealed []int, lastUpdated time.Time) (*Machine, error) {
	if p == nil || p.Len() < MinSteps {
		return nil, ErrTooShort
	}
	m := &Machine{
		puzzle:      p,
		revealed:    make(map[int]struct{}, len(revealed)),
		lastUpdated: lastUpdated,
	}
	for _, index := range revealed {
		if m.inRange(index) {
			m.revealed[index] = struct{}{}
		}
	}
	return m, nil
}

func (m *Machine) Submit(text string, index int, now time.Time) GuessResult {
	if _, ok := m.revealed[index]; ok {
		return GuessResult{AlreadySolved: true, StepIndex: index, Expected: m.puzzle.Ladder[index].Word, State: m.State()}
	}
	if !m.inRange(index) {
		return GuessResult{OutOfRange: true, StepIndex: index, State: m.State()}
	}
	expected := m.puzzle.Ladder[index].Word
	result := GuessResult{StepIndex: index, Expected: expected}
	if strings.EqualFold(strings.TrimSpace(text), strings.TrimSpace(expected)) {
		m.revealed[index] = struct{}{}
		m.lastUpdated = now
		result.Correct = true
	}
	result.State = m.State()
	return result
}

// RevealAll solves every remaining step.
func (m *Machine) RevealAll(now time.Time) {
	for i := range m.puzzle.Ladder {
		m.revealed[i] = struct{}{}
	}
	m.lastUpdated = now
}

func (m *Machine) Completed() bool {
	return len(m.revealed) == m.puzzle.Len()
}

// Completion is the solved fraction of the ladder, 0.0 to 1.0.
func (m *Machine) Completion() float64 {
	return float64(len(m.revealed)) / float64(m.puzzle.Len())
}

func (m *Machine) State() State {
	revealed := make([]int, 0, len(m.revealed))
	for index := range m.revealed {
		revealed = append(revealed, index)
	}
	sort.Ints(revealed)
	return State{
		Revealed:    revealed,
		Completed:   m.Completed(),
		LastUpdated: m.lastUpdated,
	}
}

func (m *Machine) inRange(index int) bool {
	return index >= 0 && index < m.puzzle.Len()
}
