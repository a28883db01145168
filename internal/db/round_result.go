package db

import "time"

type RoundResult struct {
	ID             uint    `gorm:"primaryKey"`
	RoomID         uint    `gorm:"index;not null;uniqueIndex:idx_round_results_room_number_team"`
	RoundID        uint    `gorm:"index;not null"`
	TeamID         uint    `gorm:"index;not null;uniqueIndex:idx_round_results_room_number_team"`
	RoundNumber    int     `gorm:"not null;uniqueIndex:idx_round_results_room_number_team"`
	Placement      int     `gorm:"not null"`
	Points         int     `gorm:"not null"`
	Completion     float64 `gorm:"not null"`
	ElapsedSeconds *int
	CompletedAt    *time.Time
	CreatedAt      time.Time `gorm:"not null"`
}
