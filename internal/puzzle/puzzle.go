package puzzle

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"

	// MinSteps is the shortest ladder a round can be started with.
	MinSteps = 5
)

var (
	ErrTooShort          = fmt.Errorf("puzzle must have at least %d steps", MinSteps)
	ErrUnknownPuzzle     = errors.New("unknown puzzle")
	ErrNoPuzzles         = errors.New("no unused puzzles available")
	ErrNotEnough         = errors.New("not enough unused puzzles available")
	ErrNoExactMatch      = errors.New("not enough puzzles with the same word count")
	ErrInvalidMode       = errors.New("invalid puzzle selection mode")
	ErrInvalidDifficulty = errors.New("difficulty must be easy, medium, or hard")
)

type Meta struct {
	Title      string `json:"title" validate:"max=120"`
	Author     string `json:"author,omitempty"`
	Difficulty string `json:"difficulty" validate:"required,oneof=easy medium hard"`
	Theme      string `json:"theme,omitempty"`
	Message    string `json:"message,omitempty"`
}

type Step struct {
	Word      string `json:"word" validate:"required,max=40"`
	Clue      string `json:"clue,omitempty"`
	Transform string `json:"transform,omitempty"`
}

type Puzzle struct {
	Ref    string `json:"-"`
	Meta   Meta   `json:"meta"`
	Ladder []Step `json:"ladder" validate:"min=5,dive"`
}

var validate = validator.New()

// Parse decodes and validates a puzzle definition.
func Parse(ref string, data []byte) (*Puzzle, error) {
	var p Puzzle
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode puzzle %s: %w", ref, err)
	}
	if len(p.Ladder) < MinSteps {
		return nil, fmt.Errorf("puzzle %s: %w", ref, ErrTooShort)
	}
	if err := validate.Struct(&p); err != nil {
		return nil, fmt.Errorf("validate puzzle %s: %w", ref, err)
	}
	p.Ref = ref
	if p.Meta.Title == "" {
		p.Meta.Title = ref
	}
	return &p, nil
}

func ValidDifficulty(difficulty string) bool {
	switch difficulty {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	default:
		return false
	}
}

func (p *Puzzle) Len() int {
	return len(p.Ladder)
}

// Lengths returns the letter count of every step, the only hint clients get
// for unsolved steps.
func (p *Puzzle) Lengths() []int {
	lengths := make([]int, len(p.Ladder))
	for i, step := range p.Ladder {
		lengths[i] = utf8.RuneCountInString(step.Word)
	}
	return lengths
}

func (p *Puzzle) Words() []string {
	words := make([]string, len(p.Ladder))
	for i, step := range p.Ladder {
		words[i] = step.Word
	}
	return words
}
