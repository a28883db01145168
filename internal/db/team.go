package db

import "time"

type Team struct {
	ID           uint          `gorm:"primaryKey"`
	RoomID       uint          `gorm:"index;not null"`
	RoundID      *uint         `gorm:"index"`
	Name         string        `gorm:"size:64;not null"`
	TotalPoints  int           `gorm:"not null;default:0"`
	RoundsPlayed int           `gorm:"not null;default:0"`
	RoundsWon    int           `gorm:"not null;default:0"`
	CreatedAt    time.Time     `gorm:"not null"`
	UpdatedAt    time.Time     `gorm:"not null"`
	Participants []Participant `gorm:"constraint:OnDelete:SET NULL"`
	Guesses      []Guess       `gorm:"constraint:OnDelete:CASCADE"`
	RoundResults []RoundResult `gorm:"constraint:OnDelete:CASCADE"`
}
