package db

import "time"

type Guess struct {
	ID            uint      `gorm:"primaryKey"`
	TeamID        uint      `gorm:"index;not null"`
	ParticipantID *uint     `gorm:"index"`
	RoundID       uint      `gorm:"index;not null"`
	StepIndex     int       `gorm:"not null"`
	Text          string    `gorm:"size:64;not null"`
	Correct       bool      `gorm:"not null;default:false"`
	CreatedAt     time.Time `gorm:"not null"`
}
