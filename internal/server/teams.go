package server

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"ladder-league/internal/db"
	"ladder-league/internal/store"

	"go.uber.org/zap"
)

type assignment struct {
	session string
	teamID  *uint
}

// AssignTeams shuffles the room's participants into count teams, dealing
// them round-robin. Teams are created once per room.
func (s *Server) AssignTeams(ctx context.Context, roomID uint, count int) ([]TeamView, error) {
	if count < s.cfg.MinTeams || count > s.cfg.MaxTeams {
		return nil, fmt.Errorf("%w: want %d-%d, got %d", ErrTeamCount, s.cfg.MinTeams, s.cfg.MaxTeams, count)
	}
	var (
		views   []TeamView
		changes []assignment
	)
	err := s.withRoomLock(ctx, roomID, func() error {
		return s.repo.Tx(ctx, func(tx store.Tx) error {
			if _, err := tx.Room(roomID); err != nil {
				return notFound(err, ErrRoomNotFound)
			}
			existing, err := tx.Teams(roomID)
			if err != nil {
				return err
			}
			if len(existing) > 0 {
				return ErrTeamsExist
			}
			participants, err := tx.Participants(roomID)
			if err != nil {
				return err
			}
			teams := make([]db.Team, count)
			for i := range teams {
				teams[i] = db.Team{RoomID: roomID, Name: fmt.Sprintf("Team %d", i+1)}
				if err := tx.CreateTeam(&teams[i]); err != nil {
					return err
				}
			}
			rand.Shuffle(len(participants), func(i, j int) {
				participants[i], participants[j] = participants[j], participants[i]
			})
			for i := range participants {
				teamID := teams[i%count].ID
				participants[i].TeamID = uintPtr(teamID)
				if err := tx.SaveParticipant(&participants[i]); err != nil {
					return err
				}
				changes = append(changes, assignment{session: participants[i].SessionToken, teamID: uintPtr(teamID)})
			}
			views = teamViews(teams, participants)
			return recordEvent(tx, roomID, nil, EventTeamsAssigned, views)
		})
	})
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]TeamView, len(views))
	for _, view := range views {
		byID[view.ID] = view
	}
	for _, change := range changes {
		s.hub.RegisterTeam(roomID, change.session, *change.teamID)
		s.hub.SendToOne(roomID, change.session, Event{Type: EventAssigned, RoomID: roomID, TeamID: *change.teamID, Data: byID[*change.teamID]})
	}
	s.hub.BroadcastToRoom(roomID, Event{Type: EventTeamsAssigned, RoomID: roomID, Data: views})
	s.log.Info("teams assigned", zap.Uint("room_id", roomID), zap.Int("teams", count), zap.Int("participants", len(changes)))
	return views, nil
}

// AddTeam creates one more empty team between rounds.
func (s *Server) AddTeam(ctx context.Context, roomID uint, name string) (*TeamView, error) {
	var view TeamView
	err := s.withRoomLock(ctx, roomID, func() error {
		return s.repo.Tx(ctx, func(tx store.Tx) error {
			if _, err := tx.Room(roomID); err != nil {
				return notFound(err, ErrRoomNotFound)
			}
			if err := requireIdle(tx, roomID); err != nil {
				return err
			}
			teams, err := tx.Teams(roomID)
			if err != nil {
				return err
			}
			if len(teams) == 0 {
				return ErrNoTeams
			}
			if len(teams) >= s.cfg.MaxTeams {
				return fmt.Errorf("%w: at most %d teams", ErrTeamCount, s.cfg.MaxTeams)
			}
			team := db.Team{RoomID: roomID, Name: fmt.Sprintf("Team %d", len(teams)+1)}
			if name != "" {
				cleaned, err := validateTeamName(name)
				if err != nil {
					return err
				}
				team.Name = cleaned
			}
			if err := tx.CreateTeam(&team); err != nil {
				return err
			}
			view = teamViews([]db.Team{team}, nil)[0]
			return recordEvent(tx, roomID, uintPtr(team.ID), EventTeamAdded, view)
		})
	})
	if err != nil {
		return nil, err
	}
	s.hub.BroadcastToRoom(roomID, Event{Type: EventTeamAdded, RoomID: roomID, TeamID: view.ID, Data: view})
	return &view, nil
}

// MoveParticipant puts a participant on another team. Team 0 unassigns.
func (s *Server) MoveParticipant(ctx context.Context, roomID, participantID, teamID uint) (*ParticipantView, error) {
	var p *db.Participant
	err := s.withRoomLock(ctx, roomID, func() error {
		return s.repo.Tx(ctx, func(tx store.Tx) error {
			var err error
			p, err = tx.Participant(participantID)
			if err != nil || p.RoomID != roomID {
				return ErrParticipantNotFound
			}
			if err := requireIdle(tx, roomID); err != nil {
				return err
			}
			if teamID == 0 {
				p.TeamID = nil
			} else {
				team, err := tx.Team(teamID)
				if err != nil || team.RoomID != roomID {
					return ErrTeamNotFound
				}
				p.TeamID = uintPtr(team.ID)
			}
			if err := tx.SaveParticipant(p); err != nil {
				return err
			}
			return recordEvent(tx, roomID, p.TeamID, EventTeamChanged, participantView(*p))
		})
	})
	if err != nil {
		return nil, err
	}
	view := participantView(*p)
	if p.TeamID == nil {
		s.hub.UnregisterTeam(roomID, p.SessionToken)
	} else {
		s.hub.RegisterTeam(roomID, p.SessionToken, *p.TeamID)
		s.hub.SendToOne(roomID, p.SessionToken, Event{Type: EventAssigned, RoomID: roomID, TeamID: *p.TeamID, Data: view})
	}
	s.hub.BroadcastToRoom(roomID, Event{Type: EventTeamChanged, RoomID: roomID, Data: view})
	return &view, nil
}

func (s *Server) RenameTeam(ctx context.Context, roomID, teamID uint, name string) (*TeamView, error) {
	cleaned, err := validateTeamName(name)
	if err != nil {
		return nil, err
	}
	var view TeamView
	err = s.withRoomLock(ctx, roomID, func() error {
		return s.repo.Tx(ctx, func(tx store.Tx) error {
			team, err := tx.Team(teamID)
			if err != nil || team.RoomID != roomID {
				return ErrTeamNotFound
			}
			if err := tx.RenameTeam(team.ID, cleaned); err != nil {
				return err
			}
			team.Name = cleaned
			participants, err := tx.Participants(roomID)
			if err != nil {
				return err
			}
			view = teamViews([]db.Team{*team}, participants)[0]
			return recordEvent(tx, roomID, uintPtr(teamID), EventTeamRenamed, map[string]string{"name": cleaned})
		})
	})
	if err != nil {
		return nil, err
	}
	s.hub.BroadcastToRoom(roomID, Event{Type: EventTeamRenamed, RoomID: roomID, TeamID: teamID, Data: view})
	return &view, nil
}

// requireIdle rejects membership changes while a round is open.
func requireIdle(tx store.Tx, roomID uint) error {
	open, err := tx.OpenRounds(roomID)
	if err != nil {
		return err
	}
	if len(open) > 0 {
		return ErrRoundInProgress
	}
	return nil
}

// teamOfParticipant returns the participant's team, or ErrNotOnTeam.
func teamOfParticipant(tx store.Tx, p *db.Participant) (*db.Team, error) {
	if p.TeamID == nil {
		return nil, ErrNotOnTeam
	}
	team, err := tx.Team(*p.TeamID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotOnTeam
	}
	return team, err
}
