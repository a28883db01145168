package main

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"ladder-league/internal/config"
	"ladder-league/internal/logging"
	"ladder-league/internal/puzzle"

	"go.uber.org/zap"
)

// ladderRow is one CSV line: difficulty, title, word, clue. Consecutive rows
// sharing a title form one ladder.
type ladderRow struct {
	Difficulty string
	Title      string
	Word       string
	Clue       string
}

func main() {
	filePath := flag.String("file", "", "path to a ladders csv (difficulty,title,word,clue)")
	outDir := flag.String("out", "", "puzzle directory to write into (defaults to PUZZLE_DIR)")
	flag.Parse()

	dotenvErr := config.LoadDotEnv(".env")
	cfg := config.Load()
	logger := logging.MustNew(cfg.LogLevel, "console", "ladder-league-load-puzzles")
	defer func() { _ = logger.Sync() }()
	if dotenvErr != nil {
		logger.Warn("failed to load .env", zap.Error(dotenvErr))
	}
	if *outDir == "" {
		*outDir = cfg.PuzzleDir
	}

	if *filePath != "" {
		written, err := importCSV(*filePath, *outDir)
		if err != nil {
			logger.Fatal("failed to import ladders", zap.String("file", *filePath), zap.Error(err))
		}
		logger.Info("ladders written", zap.Int("count", written), zap.String("dir", *outDir))
	}

	_, report, err := puzzle.LoadDir(*outDir, logger)
	if err != nil {
		logger.Fatal("failed to load puzzle directory", zap.Error(err))
	}
	difficulties := make([]string, 0, len(report.ByDifficulty))
	for difficulty := range report.ByDifficulty {
		difficulties = append(difficulties, difficulty)
	}
	sort.Strings(difficulties)
	for _, difficulty := range difficulties {
		logger.Info("puzzles available", zap.String("difficulty", difficulty), zap.Int("count", report.ByDifficulty[difficulty]))
	}
	for ref, skipErr := range report.Skipped {
		logger.Warn("invalid puzzle", zap.String("ref", ref), zap.Error(skipErr))
	}
	if len(report.Skipped) > 0 {
		os.Exit(1)
	}
}

func importCSV(path, outDir string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	rows, err := readLadderRows(file)
	if err != nil {
		return 0, err
	}
	puzzles, err := groupLadders(rows)
	if err != nil {
		return 0, err
	}
	for _, p := range puzzles {
		if err := writePuzzle(outDir, p); err != nil {
			return 0, err
		}
	}
	return len(puzzles), nil
}

func readLadderRows(r io.Reader) ([]ladderRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	var rows []ladderRow
	for i, record := range records {
		if i == 0 && len(record) > 0 && strings.EqualFold(strings.TrimSpace(record[0]), "difficulty") {
			continue
		}
		if len(record) < 3 {
			continue
		}
		row := ladderRow{
			Difficulty: strings.ToLower(strings.TrimSpace(record[0])),
			Title:      strings.TrimSpace(record[1]),
			Word:       strings.ToUpper(strings.TrimSpace(record[2])),
		}
		if len(record) > 3 {
			row.Clue = strings.TrimSpace(record[3])
		}
		if row.Title == "" || row.Word == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// groupLadders folds consecutive rows into puzzles and validates each one.
func groupLadders(rows []ladderRow) ([]*puzzle.Puzzle, error) {
	var (
		out     []*puzzle.Puzzle
		current *puzzle.Puzzle
	)
	flush := func() error {
		if current == nil {
			return nil
		}
		data, err := json.Marshal(current)
		if err != nil {
			return err
		}
		parsed, err := puzzle.Parse(puzzleRef(current.Meta), data)
		if err != nil {
			return err
		}
		out = append(out, parsed)
		current = nil
		return nil
	}
	for _, row := range rows {
		if current != nil && (current.Meta.Title != row.Title || current.Meta.Difficulty != row.Difficulty) {
			if err := flush(); err != nil {
				return nil, err
			}
		}
		if current == nil {
			current = &puzzle.Puzzle{Meta: puzzle.Meta{Title: row.Title, Difficulty: row.Difficulty}}
		}
		current.Ladder = append(current.Ladder, puzzle.Step{Word: row.Word, Clue: row.Clue})
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errors.New("no ladders found")
	}
	return out, nil
}

func puzzleRef(meta puzzle.Meta) string {
	return meta.Difficulty + "/" + slug(meta.Title) + ".json"
}

func slug(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func writePuzzle(outDir string, p *puzzle.Puzzle) error {
	path := filepath.Join(outDir, filepath.FromSlash(p.Ref))
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("puzzle already exists: %s", path)
	} else if !os.IsNotExist(err) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
