package db

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Round is one team's instance of a round. A round with an empty PuzzleRef
// is a placeholder slot and is never timed or scored. ScoredAt is set once,
// by the round-ending transaction.
type Round struct {
	ID             uint           `gorm:"primaryKey"`
	RoomID         uint           `gorm:"index;not null"`
	Difficulty     string         `gorm:"size:16;not null;default:''"`
	PuzzleRef      string         `gorm:"size:255;not null;default:''"`
	StepCount      int            `gorm:"not null;default:0"`
	Revealed       datatypes.JSON `gorm:"type:jsonb;not null"`
	StartedAt      time.Time      `gorm:"not null"`
	CompletedAt    *time.Time
	TimerStartedAt *time.Time
	TimerSeconds   *int
	LastUpdatedAt  *time.Time
	ScoredAt       *time.Time `gorm:"index"`
	CreatedAt      time.Time  `gorm:"not null"`
	UpdatedAt      time.Time  `gorm:"not null"`
}

func (r *Round) Placeholder() bool {
	return r.PuzzleRef == ""
}

func (r *Round) RevealedSteps() ([]int, error) {
	if len(r.Revealed) == 0 {
		return nil, nil
	}
	var steps []int
	if err := json.Unmarshal(r.Revealed, &steps); err != nil {
		return nil, err
	}
	return steps, nil
}

func (r *Round) SetRevealed(steps []int) {
	if steps == nil {
		steps = []int{}
	}
	data, _ := json.Marshal(steps)
	r.Revealed = datatypes.JSON(data)
}

// ExpiresAt reports when the round timer runs out.
func (r *Round) ExpiresAt() (time.Time, bool) {
	if r.TimerStartedAt == nil || r.TimerSeconds == nil || *r.TimerSeconds <= 0 {
		return time.Time{}, false
	}
	return r.TimerStartedAt.Add(time.Duration(*r.TimerSeconds) * time.Second), true
}
