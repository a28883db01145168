package server

import (
	"encoding/json"

	"ladder-league/internal/db"
	"ladder-league/internal/store"

	"gorm.io/datatypes"
)

// recordEvent appends an audit row in the same transaction as the change it
// describes.
func recordEvent(tx store.Tx, roomID uint, teamID *uint, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if payload == nil {
		data = []byte("{}")
	}
	return tx.CreateEvent(&db.Event{
		RoomID:  roomID,
		TeamID:  teamID,
		Type:    eventType,
		Payload: datatypes.JSON(data),
	})
}

func participantView(p db.Participant) ParticipantView {
	return ParticipantView{ID: p.ID, Name: p.Name, TeamID: p.TeamID, Ready: p.Ready}
}

func teamViews(teams []db.Team, participants []db.Participant) []TeamView {
	views := make([]TeamView, 0, len(teams))
	for _, team := range teams {
		view := TeamView{
			ID:           team.ID,
			Name:         team.Name,
			TotalPoints:  team.TotalPoints,
			RoundsPlayed: team.RoundsPlayed,
			RoundsWon:    team.RoundsWon,
			Members:      make([]ParticipantView, 0),
		}
		for _, p := range participants {
			if p.TeamID != nil && *p.TeamID == team.ID {
				view.Members = append(view.Members, participantView(p))
			}
		}
		views = append(views, view)
	}
	return views
}

func uintPtr(v uint) *uint {
	return &v
}
