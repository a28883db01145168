package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ladder-league/internal/puzzle"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `difficulty,title,word,clue
easy,Cold to Warm,COLD,
easy,Cold to Warm,CORD,string
easy,Cold to Warm,CARD,playing piece
easy,Cold to Warm,WARD,hospital room
easy,Cold to Warm,WARM,
medium,Head & Tail!,HEAD,
medium,Head & Tail!,HEAL,mend
medium,Head & Tail!,TEAL,blue green
medium,Head & Tail!,TELL,say
medium,Head & Tail!,TALL,high
medium,Head & Tail!,TAIL,
`

func TestGroupLaddersBuildsValidPuzzles(t *testing.T) {
	rows, err := readLadderRows(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, rows, 11)

	puzzles, err := groupLadders(rows)
	require.NoError(t, err)
	require.Len(t, puzzles, 2)

	assert.Equal(t, "easy/cold-to-warm.json", puzzles[0].Ref)
	assert.Equal(t, []string{"COLD", "CORD", "CARD", "WARD", "WARM"}, puzzles[0].Words())
	assert.Equal(t, "medium/head-tail.json", puzzles[1].Ref)
	assert.Equal(t, 6, puzzles[1].Len())
}

func TestGroupLaddersRejectsShortLadders(t *testing.T) {
	rows, err := readLadderRows(strings.NewReader("easy,Tiny,CAT,\neasy,Tiny,COT,\n"))
	require.NoError(t, err)

	_, err = groupLadders(rows)
	assert.ErrorIs(t, err, puzzle.ErrTooShort)

	_, err = groupLadders(nil)
	assert.Error(t, err)
}

func TestImportCSVWritesLoadableDirectory(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "ladders.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(sampleCSV), 0o644))
	outDir := filepath.Join(dir, "puzzles")

	written, err := importCSV(csvPath, outDir)
	require.NoError(t, err)
	assert.Equal(t, 2, written)

	lib, report, err := puzzle.LoadDir(outDir, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Loaded)
	assert.Empty(t, report.Skipped)
	assert.Equal(t, 1, report.ByDifficulty[puzzle.DifficultyMedium])
	require.NotNil(t, lib)

	_, err = importCSV(csvPath, outDir)
	assert.ErrorContains(t, err, "already exists")
}
