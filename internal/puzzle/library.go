package puzzle

import (
	"fmt"
	"io/fs"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const (
	ModeSame      = "same"
	ModeDifferent = "different"

	WordCountExact    = "exact"
	WordCountBalanced = "balanced"
)

// Library is an in-memory index of puzzle definitions keyed by reference.
type Library struct {
	mu      sync.Mutex
	puzzles map[string]*Puzzle
	rng     *rand.Rand
}

type LoadReport struct {
	Loaded       int
	ByDifficulty map[string]int
	Skipped      map[string]error
}

func NewLibrary(puzzles ...*Puzzle) *Library {
	lib := &Library{
		puzzles: make(map[string]*Puzzle, len(puzzles)),
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, p := range puzzles {
		lib.puzzles[p.Ref] = p
	}
	return lib
}

// LoadDir walks dir recursively and indexes every *.json puzzle. Files that
// fail to parse are reported and skipped.
func LoadDir(dir string, logger *zap.Logger) (*Library, LoadReport, error) {
	report := LoadReport{
		ByDifficulty: make(map[string]int),
		Skipped:      make(map[string]error),
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	lib := NewLibrary()
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".json") {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		ref := filepath.ToSlash(rel)
		data, err := os.ReadFile(path)
		if err != nil {
			report.Skipped[ref] = err
			return nil
		}
		p, err := Parse(ref, data)
		if err != nil {
			report.Skipped[ref] = err
			logger.Warn("skipping puzzle", zap.String("ref", ref), zap.Error(err))
			return nil
		}
		lib.puzzles[ref] = p
		report.Loaded++
		report.ByDifficulty[p.Meta.Difficulty]++
		return nil
	})
	if err != nil {
		return nil, report, fmt.Errorf("load puzzles from %s: %w", dir, err)
	}
	logger.Info("puzzle library loaded",
		zap.String("dir", dir),
		zap.Int("loaded", report.Loaded),
		zap.Int("skipped", len(report.Skipped)),
	)
	return lib, report, nil
}

// Seed makes selection deterministic.
func (l *Library) Seed(a, b uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rng = rand.New(rand.NewPCG(a, b))
}

func (l *Library) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.puzzles)
}

func (l *Library) Load(ref string) (*Puzzle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.puzzles[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPuzzle, ref)
	}
	return p, nil
}

// Refs lists puzzle references for a difficulty in lexical order. An empty
// difficulty lists every puzzle.
func (l *Library) Refs(difficulty string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.refsLocked(difficulty, nil)
}

// Select picks one puzzle reference per team. In ModeSame every team gets
// the same puzzle; in ModeDifferent each team gets its own, sized according
// to wordCount.
func (l *Library) Select(teams int, difficulty, mode, wordCount string, exclude []string) ([]string, error) {
	if teams <= 0 {
		return nil, ErrNotEnough
	}
	if !ValidDifficulty(difficulty) {
		return nil, ErrInvalidDifficulty
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	excluded := make(map[string]struct{}, len(exclude))
	for _, ref := range exclude {
		excluded[ref] = struct{}{}
	}
	available := l.refsLocked(difficulty, excluded)
	if len(available) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoPuzzles, difficulty)
	}
	switch mode {
	case ModeSame, "":
		ref := available[l.rng.IntN(len(available))]
		refs := make([]string, teams)
		for i := range refs {
			refs[i] = ref
		}
		return refs, nil
	case ModeDifferent:
		if len(available) < teams {
			return nil, fmt.Errorf("%w: need %d %s puzzles, found %d", ErrNotEnough, teams, difficulty, len(available))
		}
		switch wordCount {
		case WordCountExact:
			return l.exactLocked(teams, available)
		case WordCountBalanced, "":
			return l.balancedLocked(teams, available), nil
		default:
			return nil, ErrInvalidMode
		}
	default:
		return nil, ErrInvalidMode
	}
}

func (l *Library) exactLocked(teams int, available []string) ([]string, error) {
	byLength := l.groupByLengthLocked(available)
	lengths := make([]int, 0, len(byLength))
	for length := range byLength {
		lengths = append(lengths, length)
	}
	sort.Ints(lengths)
	for _, length := range lengths {
		if len(byLength[length]) >= teams {
			return l.sampleLocked(byLength[length], teams), nil
		}
	}
	return nil, ErrNoExactMatch
}

// balancedLocked anchors on a random puzzle and fills the rest from puzzles
// within one step of its length, falling back to any unused puzzle.
func (l *Library) balancedLocked(teams int, available []string) []string {
	first := available[l.rng.IntN(len(available))]
	target := l.puzzles[first].Len()
	candidates := make([]string, 0, len(available))
	others := make([]string, 0, len(available))
	for _, ref := range available {
		if ref == first {
			continue
		}
		others = append(others, ref)
		if diff := l.puzzles[ref].Len() - target; diff >= -1 && diff <= 1 {
			candidates = append(candidates, ref)
		}
	}
	pool := candidates
	if len(pool) < teams-1 {
		pool = others
	}
	return append([]string{first}, l.sampleLocked(pool, teams-1)...)
}

func (l *Library) groupByLengthLocked(refs []string) map[int][]string {
	byLength := make(map[int][]string)
	for _, ref := range refs {
		length := l.puzzles[ref].Len()
		byLength[length] = append(byLength[length], ref)
	}
	return byLength
}

func (l *Library) sampleLocked(refs []string, n int) []string {
	shuffled := append([]string(nil), refs...)
	l.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled[:n]
}

func (l *Library) refsLocked(difficulty string, excluded map[string]struct{}) []string {
	refs := make([]string, 0, len(l.puzzles))
	for ref, p := range l.puzzles {
		if difficulty != "" && p.Meta.Difficulty != difficulty {
			continue
		}
		if _, skip := excluded[ref]; skip {
			continue
		}
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}
