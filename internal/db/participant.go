package db

import "time"

type Participant struct {
	ID           uint      `gorm:"primaryKey"`
	RoomID       uint      `gorm:"index;not null;uniqueIndex:idx_participants_room_name"`
	TeamID       *uint     `gorm:"index"`
	Name         string    `gorm:"size:64;not null;uniqueIndex:idx_participants_room_name"`
	SessionToken string    `gorm:"size:64;not null;uniqueIndex"`
	Ready        bool      `gorm:"not null;default:false"`
	JoinedAt     time.Time `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
	Guesses      []Guess   `gorm:"constraint:OnDelete:SET NULL"`
}
