package store

import (
	"context"
	"errors"
	"maps"
	"sort"
	"sync"
	"time"

	"ladder-league/internal/db"

	"gorm.io/datatypes"
)

var errReadOnly = errors.New("write attempted in read-only view")

// Memory is a Repository kept entirely in process memory. It backs servers
// started without a database and most tests. Tx snapshots the tables before
// running and restores them if the callback fails.
type Memory struct {
	mu    sync.RWMutex
	state memoryState
}

type memoryState struct {
	seq          uint
	rooms        map[uint]db.Room
	participants map[uint]db.Participant
	teams        map[uint]db.Team
	rounds       map[uint]db.Round
	guesses      map[uint]db.Guess
	results      map[uint]db.RoundResult
	events       map[uint]db.Event
}

func NewMemory() *Memory {
	return &Memory{state: memoryState{
		rooms:        make(map[uint]db.Room),
		participants: make(map[uint]db.Participant),
		teams:        make(map[uint]db.Team),
		rounds:       make(map[uint]db.Round),
		guesses:      make(map[uint]db.Guess),
		results:      make(map[uint]db.RoundResult),
		events:       make(map[uint]db.Event),
	}}
}

func (s memoryState) clone() memoryState {
	return memoryState{
		seq:          s.seq,
		rooms:        maps.Clone(s.rooms),
		participants: maps.Clone(s.participants),
		teams:        maps.Clone(s.teams),
		rounds:       maps.Clone(s.rounds),
		guesses:      maps.Clone(s.guesses),
		results:      maps.Clone(s.results),
		events:       maps.Clone(s.events),
	}
}

func (m *Memory) Tx(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := m.state.clone()
	if err := fn(&memoryTx{state: &m.state}); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

func (m *Memory) View(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(&memoryTx{state: &m.state, readOnly: true})
}

type memoryTx struct {
	state    *memoryState
	readOnly bool
}

func (t *memoryTx) nextID() uint {
	t.state.seq++
	return t.state.seq
}

func (t *memoryTx) writable() error {
	if t.readOnly {
		return errReadOnly
	}
	return nil
}

func now() time.Time {
	return time.Now().UTC()
}

func (t *memoryTx) CreateRoom(room *db.Room) error {
	if err := t.writable(); err != nil {
		return err
	}
	for _, existing := range t.state.rooms {
		if existing.Code == room.Code {
			return ErrConflict
		}
	}
	room.ID = t.nextID()
	room.CreatedAt = now()
	room.UpdatedAt = room.CreatedAt
	t.state.rooms[room.ID] = stripRoom(*room)
	return nil
}

func stripRoom(room db.Room) db.Room {
	room.Participants = nil
	room.Teams = nil
	room.Rounds = nil
	room.RoundResults = nil
	room.Events = nil
	return room
}

func (t *memoryTx) Room(id uint) (*db.Room, error) {
	room, ok := t.state.rooms[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &room, nil
}

func (t *memoryTx) RoomByCode(code string) (*db.Room, error) {
	for _, room := range t.state.rooms {
		if room.Code == code {
			return &room, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memoryTx) Rooms() ([]db.Room, error) {
	rooms := make([]db.Room, 0, len(t.state.rooms))
	for _, room := range t.state.rooms {
		rooms = append(rooms, room)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	return rooms, nil
}

func (t *memoryTx) SaveRoom(room *db.Room) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.state.rooms[room.ID]; !ok {
		return ErrNotFound
	}
	room.UpdatedAt = now()
	t.state.rooms[room.ID] = stripRoom(*room)
	return nil
}

func (t *memoryTx) DeleteRoom(id uint) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.state.rooms[id]; !ok {
		return ErrNotFound
	}
	teams := make(map[uint]struct{})
	for teamID, team := range t.state.teams {
		if team.RoomID == id {
			teams[teamID] = struct{}{}
			delete(t.state.teams, teamID)
		}
	}
	for guessID, guess := range t.state.guesses {
		if _, ok := teams[guess.TeamID]; ok {
			delete(t.state.guesses, guessID)
		}
	}
	for pid, p := range t.state.participants {
		if p.RoomID == id {
			delete(t.state.participants, pid)
		}
	}
	for rid, round := range t.state.rounds {
		if round.RoomID == id {
			delete(t.state.rounds, rid)
		}
	}
	for rid, result := range t.state.results {
		if result.RoomID == id {
			delete(t.state.results, rid)
		}
	}
	for eid, event := range t.state.events {
		if event.RoomID == id {
			delete(t.state.events, eid)
		}
	}
	delete(t.state.rooms, id)
	return nil
}

func (t *memoryTx) participantConflict(p *db.Participant) bool {
	for _, existing := range t.state.participants {
		if existing.ID == p.ID {
			continue
		}
		if existing.SessionToken == p.SessionToken {
			return true
		}
		if existing.RoomID == p.RoomID && existing.Name == p.Name {
			return true
		}
	}
	return false
}

func (t *memoryTx) CreateParticipant(p *db.Participant) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.state.rooms[p.RoomID]; !ok {
		return ErrNotFound
	}
	if t.participantConflict(p) {
		return ErrConflict
	}
	p.ID = t.nextID()
	p.CreatedAt = now()
	p.UpdatedAt = p.CreatedAt
	if p.JoinedAt.IsZero() {
		p.JoinedAt = p.CreatedAt
	}
	stored := *p
	stored.Guesses = nil
	t.state.participants[p.ID] = stored
	return nil
}

func (t *memoryTx) Participant(id uint) (*db.Participant, error) {
	p, ok := t.state.participants[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (t *memoryTx) ParticipantBySession(roomID uint, token string) (*db.Participant, error) {
	for _, p := range t.state.participants {
		if p.RoomID == roomID && p.SessionToken == token {
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memoryTx) Participants(roomID uint) ([]db.Participant, error) {
	out := make([]db.Participant, 0)
	for _, p := range t.state.participants {
		if p.RoomID == roomID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memoryTx) SaveParticipant(p *db.Participant) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.state.participants[p.ID]; !ok {
		return ErrNotFound
	}
	if t.participantConflict(p) {
		return ErrConflict
	}
	p.UpdatedAt = now()
	stored := *p
	stored.Guesses = nil
	t.state.participants[p.ID] = stored
	return nil
}

func (t *memoryTx) SetReady(id uint, ready bool) error {
	if err := t.writable(); err != nil {
		return err
	}
	p, ok := t.state.participants[id]
	if !ok {
		return ErrNotFound
	}
	p.Ready = ready
	p.UpdatedAt = now()
	t.state.participants[id] = p
	return nil
}

func (t *memoryTx) DeleteParticipant(id uint) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.state.participants[id]; !ok {
		return ErrNotFound
	}
	for guessID, guess := range t.state.guesses {
		if guess.ParticipantID != nil && *guess.ParticipantID == id {
			guess.ParticipantID = nil
			t.state.guesses[guessID] = guess
		}
	}
	delete(t.state.participants, id)
	return nil
}

func (t *memoryTx) ResetReady(roomID uint) error {
	if err := t.writable(); err != nil {
		return err
	}
	for id, p := range t.state.participants {
		if p.RoomID == roomID && p.Ready {
			p.Ready = false
			p.UpdatedAt = now()
			t.state.participants[id] = p
		}
	}
	return nil
}

func (t *memoryTx) CreateTeam(team *db.Team) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.state.rooms[team.RoomID]; !ok {
		return ErrNotFound
	}
	team.ID = t.nextID()
	team.CreatedAt = now()
	team.UpdatedAt = team.CreatedAt
	t.state.teams[team.ID] = stripTeam(*team)
	return nil
}

func stripTeam(team db.Team) db.Team {
	team.Participants = nil
	team.Guesses = nil
	team.RoundResults = nil
	return team
}

func (t *memoryTx) Team(id uint) (*db.Team, error) {
	team, ok := t.state.teams[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &team, nil
}

func (t *memoryTx) Teams(roomID uint) ([]db.Team, error) {
	out := make([]db.Team, 0)
	for _, team := range t.state.teams {
		if team.RoomID == roomID {
			out = append(out, team)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memoryTx) SaveTeam(team *db.Team) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.state.teams[team.ID]; !ok {
		return ErrNotFound
	}
	team.UpdatedAt = now()
	t.state.teams[team.ID] = stripTeam(*team)
	return nil
}

func (t *memoryTx) RenameTeam(id uint, name string) error {
	if err := t.writable(); err != nil {
		return err
	}
	team, ok := t.state.teams[id]
	if !ok {
		return ErrNotFound
	}
	team.Name = name
	team.UpdatedAt = now()
	t.state.teams[id] = team
	return nil
}

func copyRound(round db.Round) db.Round {
	round.Revealed = append(datatypes.JSON(nil), round.Revealed...)
	return round
}

func (t *memoryTx) CreateRound(round *db.Round) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.state.rooms[round.RoomID]; !ok {
		return ErrNotFound
	}
	round.ID = t.nextID()
	round.CreatedAt = now()
	round.UpdatedAt = round.CreatedAt
	if len(round.Revealed) == 0 {
		round.SetRevealed(nil)
	}
	t.state.rounds[round.ID] = copyRound(*round)
	return nil
}

func (t *memoryTx) Round(id uint) (*db.Round, error) {
	round, ok := t.state.rounds[id]
	if !ok {
		return nil, ErrNotFound
	}
	round = copyRound(round)
	return &round, nil
}

func (t *memoryTx) SaveRound(round *db.Round) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.state.rounds[round.ID]; !ok {
		return ErrNotFound
	}
	round.UpdatedAt = now()
	t.state.rounds[round.ID] = copyRound(*round)
	return nil
}

func (t *memoryTx) openRounds(match func(db.Round) bool) []db.Round {
	out := make([]db.Round, 0)
	for _, round := range t.state.rounds {
		if round.PuzzleRef == "" || round.ScoredAt != nil {
			continue
		}
		if match(round) {
			out = append(out, copyRound(round))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (t *memoryTx) OpenRounds(roomID uint) ([]db.Round, error) {
	return t.openRounds(func(round db.Round) bool { return round.RoomID == roomID }), nil
}

func (t *memoryTx) TimedRounds() ([]db.Round, error) {
	return t.openRounds(func(round db.Round) bool {
		return round.TimerStartedAt != nil && round.TimerSeconds != nil
	}), nil
}

func (t *memoryTx) UsedPuzzleRefs(roomID uint) ([]string, error) {
	seen := make(map[string]struct{})
	for _, round := range t.state.rounds {
		if round.RoomID == roomID && round.PuzzleRef != "" {
			seen[round.PuzzleRef] = struct{}{}
		}
	}
	refs := make([]string, 0, len(seen))
	for ref := range seen {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs, nil
}

func (t *memoryTx) MarkRoundsScored(ids []uint, at time.Time) (int64, error) {
	if err := t.writable(); err != nil {
		return 0, err
	}
	var affected int64
	for _, id := range ids {
		round, ok := t.state.rounds[id]
		if !ok || round.ScoredAt != nil {
			continue
		}
		stamp := at
		round.ScoredAt = &stamp
		round.UpdatedAt = now()
		t.state.rounds[id] = round
		affected++
	}
	return affected, nil
}

func (t *memoryTx) CreateGuess(guess *db.Guess) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.state.teams[guess.TeamID]; !ok {
		return ErrNotFound
	}
	guess.ID = t.nextID()
	if guess.CreatedAt.IsZero() {
		guess.CreatedAt = now()
	}
	t.state.guesses[guess.ID] = *guess
	return nil
}

func (t *memoryTx) CountGuesses(teamID, roundID uint) (int64, error) {
	var count int64
	for _, guess := range t.state.guesses {
		if guess.TeamID == teamID && guess.RoundID == roundID {
			count++
		}
	}
	return count, nil
}

func (t *memoryTx) RoundGuesses(roundIDs []uint) ([]db.Guess, error) {
	wanted := make(map[uint]struct{}, len(roundIDs))
	for _, id := range roundIDs {
		wanted[id] = struct{}{}
	}
	out := make([]db.Guess, 0)
	for _, guess := range t.state.guesses {
		if _, ok := wanted[guess.RoundID]; ok {
			out = append(out, guess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memoryTx) CreateRoundResult(result *db.RoundResult) error {
	if err := t.writable(); err != nil {
		return err
	}
	for _, existing := range t.state.results {
		if existing.RoomID == result.RoomID && existing.RoundNumber == result.RoundNumber && existing.TeamID == result.TeamID {
			return ErrConflict
		}
	}
	result.ID = t.nextID()
	result.CreatedAt = now()
	t.state.results[result.ID] = *result
	return nil
}

func (t *memoryTx) RoundResults(roomID uint, number int) ([]db.RoundResult, error) {
	out := make([]db.RoundResult, 0)
	for _, result := range t.state.results {
		if result.RoomID != roomID {
			continue
		}
		if number != 0 && result.RoundNumber != number {
			continue
		}
		out = append(out, result)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RoundNumber != out[j].RoundNumber {
			return out[i].RoundNumber < out[j].RoundNumber
		}
		if out[i].Placement != out[j].Placement {
			return out[i].Placement < out[j].Placement
		}
		return out[i].TeamID < out[j].TeamID
	})
	return out, nil
}

func (t *memoryTx) LastRoundNumber(roomID uint) (int, error) {
	last := 0
	for _, result := range t.state.results {
		if result.RoomID == roomID && result.RoundNumber > last {
			last = result.RoundNumber
		}
	}
	return last, nil
}

func (t *memoryTx) CreateEvent(event *db.Event) error {
	if err := t.writable(); err != nil {
		return err
	}
	event.ID = t.nextID()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now()
	}
	t.state.events[event.ID] = *event
	return nil
}

func (t *memoryTx) Events(roomID uint) ([]db.Event, error) {
	out := make([]db.Event, 0)
	for _, event := range t.state.events {
		if event.RoomID == roomID {
			out = append(out, event)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
