package db

import "time"

type Room struct {
	ID           uint          `gorm:"primaryKey"`
	Code         string        `gorm:"size:12;uniqueIndex;not null"`
	Name         string        `gorm:"size:64;not null"`
	CreatedAt    time.Time     `gorm:"not null"`
	UpdatedAt    time.Time     `gorm:"not null"`
	Participants []Participant `gorm:"constraint:OnDelete:CASCADE"`
	Teams        []Team        `gorm:"constraint:OnDelete:CASCADE"`
	Rounds       []Round       `gorm:"constraint:OnDelete:CASCADE"`
	RoundResults []RoundResult `gorm:"constraint:OnDelete:CASCADE"`
	Events       []Event       `gorm:"constraint:OnDelete:CASCADE"`
}
