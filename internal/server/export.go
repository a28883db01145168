package server

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"ladder-league/internal/db"
	"ladder-league/internal/store"

	"github.com/skip2/go-qrcode"
	"github.com/xuri/excelize/v2"
)

const (
	standingsSheet = "Standings"
	roundsSheet    = "Rounds"
	defaultQRSize  = 256
	maxQRSize      = 1024
)

var (
	standingsHeaders = []string{"Rank", "Team", "Points", "Rounds Played", "Rounds Won", "1st", "2nd", "3rd", "DNF"}
	roundsHeaders    = []string{"Round", "Placement", "Team", "Points", "Completion", "Elapsed (s)", "Finished"}
)

// ExportResults renders the room's standings and per-round results as an
// XLSX workbook.
func (s *Server) ExportResults(ctx context.Context, roomID uint) ([]byte, string, error) {
	var (
		room    *db.Room
		board   Leaderboard
		history []RoundHistoryEntry
	)
	err := s.repo.View(ctx, func(tx store.Tx) error {
		var err error
		room, err = tx.Room(roomID)
		if err != nil {
			return notFound(err, ErrRoomNotFound)
		}
		teams, err := tx.Teams(roomID)
		if err != nil {
			return err
		}
		results, err := tx.RoundResults(roomID, 0)
		if err != nil {
			return err
		}
		board = buildLeaderboard(roomID, teams, results)
		names := make(map[uint]string, len(teams))
		for _, team := range teams {
			names[team.ID] = team.Name
		}
		for _, result := range results {
			if len(history) == 0 || history[len(history)-1].RoundNumber != result.RoundNumber {
				history = append(history, RoundHistoryEntry{RoundNumber: result.RoundNumber})
			}
			last := &history[len(history)-1]
			last.Results = append(last.Results, resultView(result, names[result.TeamID]))
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	data, err := buildResultsWorkbook(board, history)
	if err != nil {
		return nil, "", err
	}
	return data, fmt.Sprintf("%s-results.xlsx", strings.ToLower(room.Code)), nil
}

func buildResultsWorkbook(board Leaderboard, history []RoundHistoryEntry) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(standingsSheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	if _, err := f.NewSheet(roundsSheet); err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	if err := writeRow(f, standingsSheet, 1, toRow(standingsHeaders), headerStyle); err != nil {
		return nil, err
	}
	for i, entry := range board.Teams {
		row := []any{i + 1, entry.TeamName, entry.TotalPoints, entry.RoundsPlayed, entry.RoundsWon,
			entry.Firsts, entry.Seconds, entry.Thirds, entry.DNFs}
		if err := writeRow(f, standingsSheet, i+2, row, 0); err != nil {
			return nil, err
		}
	}

	if err := writeRow(f, roundsSheet, 1, toRow(roundsHeaders), headerStyle); err != nil {
		return nil, err
	}
	rowNum := 2
	for _, round := range history {
		for _, result := range round.Results {
			elapsed := any("")
			if result.ElapsedSeconds != nil {
				elapsed = *result.ElapsedSeconds
			}
			finished := "No"
			if result.Finished {
				finished = "Yes"
			}
			row := []any{round.RoundNumber, result.Placement, result.TeamName, result.Points,
				fmt.Sprintf("%.0f%%", result.Completion*100), elapsed, finished}
			if err := writeRow(f, roundsSheet, rowNum, row, 0); err != nil {
				return nil, err
			}
			rowNum++
		}
	}

	for _, sheet := range []string{standingsSheet, roundsSheet} {
		if err := f.SetColWidth(sheet, "A", "I", 14); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
		if err := f.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		}); err != nil {
			return nil, fmt.Errorf("freeze panes: %w", err)
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any, style int) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	if style == 0 {
		return nil
	}
	last, err := excelize.CoordinatesToCellName(len(values), row)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, cell, last, style)
}

func toRow(headers []string) []any {
	row := make([]any, len(headers))
	for i, header := range headers {
		row[i] = header
	}
	return row
}

// JoinURL is the link players open to join the room.
func (s *Server) JoinURL(code string) string {
	return strings.TrimRight(s.cfg.PublicURL, "/") + "/join?code=" + code
}

// JoinQRCode renders the room's join link as a PNG QR code.
func (s *Server) JoinQRCode(ctx context.Context, roomID uint, size int) ([]byte, error) {
	if size <= 0 {
		size = defaultQRSize
	}
	if size > maxQRSize {
		size = maxQRSize
	}
	var code string
	err := s.repo.View(ctx, func(tx store.Tx) error {
		room, err := tx.Room(roomID)
		if err != nil {
			return notFound(err, ErrRoomNotFound)
		}
		code = room.Code
		return nil
	})
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(s.JoinURL(code), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}
	return png, nil
}
