package store

import (
	"context"
	"errors"
	"time"

	"ladder-league/internal/db"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Gorm is the Postgres-backed Repository.
type Gorm struct {
	conn *gorm.DB
}

func NewGorm(conn *gorm.DB) *Gorm {
	return &Gorm{conn: conn}
}

func (g *Gorm) Tx(ctx context.Context, fn func(Tx) error) error {
	return g.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx})
	})
}

func (g *Gorm) View(ctx context.Context, fn func(Tx) error) error {
	return fn(&gormTx{db: g.conn.WithContext(ctx)})
}

type gormTx struct {
	db *gorm.DB
}

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func (t *gormTx) CreateRoom(room *db.Room) error {
	return translate(t.db.Omit("Participants", "Teams", "Rounds", "RoundResults", "Events").Create(room).Error)
}

func (t *gormTx) Room(id uint) (*db.Room, error) {
	var room db.Room
	if err := t.db.First(&room, id).Error; err != nil {
		return nil, translate(err)
	}
	return &room, nil
}

func (t *gormTx) RoomByCode(code string) (*db.Room, error) {
	var room db.Room
	if err := t.db.Where("code = ?", code).First(&room).Error; err != nil {
		return nil, translate(err)
	}
	return &room, nil
}

func (t *gormTx) Rooms() ([]db.Room, error) {
	var rooms []db.Room
	if err := t.db.Order("id").Find(&rooms).Error; err != nil {
		return nil, translate(err)
	}
	return rooms, nil
}

func (t *gormTx) SaveRoom(room *db.Room) error {
	return t.updates(&db.Room{}, room.ID, map[string]any{
		"name":       room.Name,
		"updated_at": time.Now().UTC(),
	})
}

func (t *gormTx) DeleteRoom(id uint) error {
	teamIDs := t.db.Model(&db.Team{}).Select("id").Where("room_id = ?", id)
	if err := t.db.Where("team_id IN (?)", teamIDs).Delete(&db.Guess{}).Error; err != nil {
		return translate(err)
	}
	for _, model := range []any{&db.RoundResult{}, &db.Event{}, &db.Participant{}, &db.Round{}, &db.Team{}} {
		if err := t.db.Where("room_id = ?", id).Delete(model).Error; err != nil {
			return translate(err)
		}
	}
	result := t.db.Delete(&db.Room{}, id)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *gormTx) CreateParticipant(p *db.Participant) error {
	if p.JoinedAt.IsZero() {
		p.JoinedAt = time.Now().UTC()
	}
	return translate(t.db.Omit("Guesses").Create(p).Error)
}

func (t *gormTx) Participant(id uint) (*db.Participant, error) {
	var p db.Participant
	if err := t.db.First(&p, id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (t *gormTx) ParticipantBySession(roomID uint, token string) (*db.Participant, error) {
	var p db.Participant
	if err := t.db.Where("room_id = ? AND session_token = ?", roomID, token).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (t *gormTx) Participants(roomID uint) ([]db.Participant, error) {
	var participants []db.Participant
	if err := t.db.Where("room_id = ?", roomID).Order("id").Find(&participants).Error; err != nil {
		return nil, translate(err)
	}
	return participants, nil
}

func (t *gormTx) SaveParticipant(p *db.Participant) error {
	return t.updates(&db.Participant{}, p.ID, map[string]any{
		"name":       p.Name,
		"team_id":    p.TeamID,
		"ready":      p.Ready,
		"updated_at": time.Now().UTC(),
	})
}

func (t *gormTx) SetReady(id uint, ready bool) error {
	return t.updates(&db.Participant{}, id, map[string]any{
		"ready":      ready,
		"updated_at": time.Now().UTC(),
	})
}

func (t *gormTx) DeleteParticipant(id uint) error {
	if err := t.db.Model(&db.Guess{}).Where("participant_id = ?", id).Update("participant_id", nil).Error; err != nil {
		return translate(err)
	}
	result := t.db.Delete(&db.Participant{}, id)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *gormTx) ResetReady(roomID uint) error {
	return translate(t.db.Model(&db.Participant{}).
		Where("room_id = ? AND ready = ?", roomID, true).
		Updates(map[string]any{"ready": false, "updated_at": time.Now().UTC()}).Error)
}

func (t *gormTx) CreateTeam(team *db.Team) error {
	return translate(t.db.Omit("Participants", "Guesses", "RoundResults").Create(team).Error)
}

func (t *gormTx) Team(id uint) (*db.Team, error) {
	var team db.Team
	if err := t.db.First(&team, id).Error; err != nil {
		return nil, translate(err)
	}
	return &team, nil
}

func (t *gormTx) Teams(roomID uint) ([]db.Team, error) {
	var teams []db.Team
	if err := t.db.Where("room_id = ?", roomID).Order("id").Find(&teams).Error; err != nil {
		return nil, translate(err)
	}
	return teams, nil
}

func (t *gormTx) SaveTeam(team *db.Team) error {
	return t.updates(&db.Team{}, team.ID, map[string]any{
		"name":          team.Name,
		"round_id":      team.RoundID,
		"total_points":  team.TotalPoints,
		"rounds_played": team.RoundsPlayed,
		"rounds_won":    team.RoundsWon,
		"updated_at":    time.Now().UTC(),
	})
}

func (t *gormTx) RenameTeam(id uint, name string) error {
	return t.updates(&db.Team{}, id, map[string]any{
		"name":       name,
		"updated_at": time.Now().UTC(),
	})
}

func (t *gormTx) CreateRound(round *db.Round) error {
	if len(round.Revealed) == 0 {
		round.SetRevealed(nil)
	}
	return translate(t.db.Create(round).Error)
}

func (t *gormTx) Round(id uint) (*db.Round, error) {
	var round db.Round
	if err := t.db.First(&round, id).Error; err != nil {
		return nil, translate(err)
	}
	return &round, nil
}

func (t *gormTx) SaveRound(round *db.Round) error {
	return t.updates(&db.Round{}, round.ID, map[string]any{
		"revealed":         round.Revealed,
		"completed_at":     round.CompletedAt,
		"timer_started_at": round.TimerStartedAt,
		"timer_seconds":    round.TimerSeconds,
		"last_updated_at":  round.LastUpdatedAt,
		"updated_at":       time.Now().UTC(),
	})
}

func (t *gormTx) OpenRounds(roomID uint) ([]db.Round, error) {
	var rounds []db.Round
	err := t.db.Where("room_id = ? AND puzzle_ref <> '' AND scored_at IS NULL", roomID).
		Order("id").
		Find(&rounds).Error
	if err != nil {
		return nil, translate(err)
	}
	return rounds, nil
}

func (t *gormTx) TimedRounds() ([]db.Round, error) {
	var rounds []db.Round
	err := t.db.Where("puzzle_ref <> '' AND scored_at IS NULL AND timer_started_at IS NOT NULL AND timer_seconds IS NOT NULL").
		Order("id").
		Find(&rounds).Error
	if err != nil {
		return nil, translate(err)
	}
	return rounds, nil
}

func (t *gormTx) UsedPuzzleRefs(roomID uint) ([]string, error) {
	var refs []string
	err := t.db.Model(&db.Round{}).
		Where("room_id = ? AND puzzle_ref <> ''", roomID).
		Distinct().
		Order("puzzle_ref").
		Pluck("puzzle_ref", &refs).Error
	if err != nil {
		return nil, translate(err)
	}
	return refs, nil
}

func (t *gormTx) MarkRoundsScored(ids []uint, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := t.db.Model(&db.Round{}).
		Where("id IN ? AND scored_at IS NULL", ids).
		Updates(map[string]any{"scored_at": at, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return 0, translate(result.Error)
	}
	return result.RowsAffected, nil
}

func (t *gormTx) CreateGuess(guess *db.Guess) error {
	return translate(t.db.Create(guess).Error)
}

func (t *gormTx) CountGuesses(teamID, roundID uint) (int64, error) {
	var count int64
	if err := t.db.Model(&db.Guess{}).Where("team_id = ? AND round_id = ?", teamID, roundID).Count(&count).Error; err != nil {
		return 0, translate(err)
	}
	return count, nil
}

func (t *gormTx) RoundGuesses(roundIDs []uint) ([]db.Guess, error) {
	guesses := make([]db.Guess, 0)
	if len(roundIDs) == 0 {
		return guesses, nil
	}
	if err := t.db.Where("round_id IN ?", roundIDs).Order("id").Find(&guesses).Error; err != nil {
		return nil, translate(err)
	}
	return guesses, nil
}

func (t *gormTx) CreateRoundResult(result *db.RoundResult) error {
	return translate(t.db.Create(result).Error)
}

func (t *gormTx) RoundResults(roomID uint, number int) ([]db.RoundResult, error) {
	query := t.db.Where("room_id = ?", roomID)
	if number != 0 {
		query = query.Where("round_number = ?", number)
	}
	var results []db.RoundResult
	if err := query.Order("round_number, placement, team_id").Find(&results).Error; err != nil {
		return nil, translate(err)
	}
	return results, nil
}

func (t *gormTx) LastRoundNumber(roomID uint) (int, error) {
	var last int
	err := t.db.Model(&db.RoundResult{}).
		Where("room_id = ?", roomID).
		Select("COALESCE(MAX(round_number), 0)").
		Scan(&last).Error
	if err != nil {
		return 0, translate(err)
	}
	return last, nil
}

func (t *gormTx) CreateEvent(event *db.Event) error {
	return translate(t.db.Create(event).Error)
}

func (t *gormTx) Events(roomID uint) ([]db.Event, error) {
	var events []db.Event
	if err := t.db.Where("room_id = ?", roomID).Order("id").Find(&events).Error; err != nil {
		return nil, translate(err)
	}
	return events, nil
}

func (t *gormTx) updates(model any, id uint, values map[string]any) error {
	result := t.db.Model(model).Where("id = ?", id).Updates(values)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
