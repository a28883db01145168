package web

import "time"

type RoomRow struct {
	ID           uint
	Code         string
	Name         string
	Participants int
	Teams        int
	Connected    int
	RoundActive  bool
}

type StatusData struct {
	Service   string
	Puzzles   int
	Rooms     []RoomRow
	Generated time.Time
}
