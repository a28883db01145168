package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"ladder-league/internal/config"
	"ladder-league/internal/db"
	"ladder-league/internal/lock"
	"ladder-league/internal/puzzle"
	"ladder-league/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test; listen unavailable: %v", err)
	}
	ts := &httptest.Server{
		Listener: listener,
		Config:   &http.Server{Handler: handler},
	}
	ts.Start()
	return ts
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// sendLog records the order in which fake connections receive messages.
type sendLog struct {
	mu    sync.Mutex
	names []string
}

func (l *sendLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.names = append(l.names, name)
}

func (l *sendLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.names...)
}

type fakeConn struct {
	mu       sync.Mutex
	name     string
	log      *sendLog
	fail     bool
	closed   int
	messages [][]byte
}

func newFakeConn(name string, log *sendLog) *fakeConn {
	return &fakeConn{name: name, log: log}
}

func (c *fakeConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("broken pipe")
	}
	c.messages = append(c.messages, append([]byte(nil), data...))
	if c.log != nil {
		c.log.add(c.name)
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type receivedEvent struct {
	Type   string          `json:"type"`
	RoomID uint            `json:"room_id"`
	TeamID uint            `json:"team_id"`
	Data   json.RawMessage `json:"data"`
}

func (c *fakeConn) events() []receivedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]receivedEvent, 0, len(c.messages))
	for _, data := range c.messages {
		var event receivedEvent
		if err := json.Unmarshal(data, &event); err == nil {
			out = append(out, event)
		}
	}
	return out
}

func (c *fakeConn) types() []string {
	events := c.events()
	out := make([]string, 0, len(events))
	for _, event := range events {
		out = append(out, event.Type)
	}
	return out
}

func (c *fakeConn) raw() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return string(bytes.Join(c.messages, []byte("\n")))
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
}

func ladder(ref, title string, words ...string) *puzzle.Puzzle {
	steps := make([]puzzle.Step, 0, len(words))
	for i, word := range words {
		steps = append(steps, puzzle.Step{Word: word, Clue: fmt.Sprintf("hint %d", i)})
	}
	return &puzzle.Puzzle{
		Ref:    ref,
		Meta:   puzzle.Meta{Title: title, Difficulty: puzzle.DifficultyEasy},
		Ladder: steps,
	}
}

func testLibrary() *puzzle.Library {
	lib := puzzle.NewLibrary(
		ladder("easy/cold-warm", "Cold to Warm", "COLD", "CORD", "CARD", "WARD", "WARM"),
		ladder("easy/lead-gold", "Lead to Gold", "LEAD", "LOAD", "GOAD", "GOLD", "GOLF"),
		ladder("easy/cat-dog", "Cat to Dog", "CAT", "COT", "COG", "DOG", "DIG"),
	)
	lib.Seed(7, 11)
	return lib
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.RequireReady = false
	cfg.AdminToken = ""
	return cfg
}

func newEngine(t *testing.T, opts ...Option) (*Server, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	base := []Option{WithPuzzles(testLibrary()), WithClock(clock.Now)}
	srv := New(nil, testConfig(), append(base, opts...)...)
	t.Cleanup(srv.Close)
	return srv, clock
}

// lobby is a room with joined participants, keyed by name.
type lobby struct {
	room     *RoomView
	sessions map[string]string
}

func newLobby(t *testing.T, srv *Server, names ...string) lobby {
	t.Helper()
	ctx := context.Background()
	room, err := srv.CreateRoom(ctx, "Test Room")
	require.NoError(t, err)
	l := lobby{room: room, sessions: make(map[string]string)}
	for _, name := range names {
		joined, err := srv.JoinRoom(ctx, room.Code, name, "")
		require.NoError(t, err)
		l.sessions[name] = joined.Session
	}
	return l
}

func participantsOf(t *testing.T, srv *Server, roomID uint) []db.Participant {
	t.Helper()
	var participants []db.Participant
	require.NoError(t, srv.repo.View(context.Background(), func(tx store.Tx) error {
		var err error
		participants, err = tx.Participants(roomID)
		return err
	}))
	return participants
}

// teamMembers maps each team to the session tokens of its members.
func teamMembers(t *testing.T, srv *Server, roomID uint) map[uint][]string {
	t.Helper()
	members := make(map[uint][]string)
	for _, p := range participantsOf(t, srv, roomID) {
		if p.TeamID != nil {
			members[*p.TeamID] = append(members[*p.TeamID], p.SessionToken)
		}
	}
	return members
}

func connect(t *testing.T, srv *Server, roomID uint, session string, log *sendLog) *fakeConn {
	t.Helper()
	p, err := srv.authenticateParticipant(context.Background(), roomID, session)
	require.NoError(t, err)
	conn := newFakeConn(p.Name, log)
	srv.hub.Connect(roomID, session, conn, p.TeamID)
	return conn
}

// ladderOf returns the full word list of a team's current puzzle.
func ladderOf(t *testing.T, srv *Server, roomID, teamID uint) []string {
	t.Helper()
	view, err := srv.OperatorPuzzle(context.Background(), roomID, teamID)
	require.NoError(t, err)
	words := make([]string, 0, len(view.Steps))
	for _, step := range view.Steps {
		words = append(words, step.Word)
	}
	return words
}

func guess(t *testing.T, srv *Server, roomID uint, session string, index int, text string) *GuessOutcome {
	t.Helper()
	outcome, err := srv.SubmitGuess(context.Background(), GuessRequest{
		RoomID:       roomID,
		SessionToken: session,
		StepIndex:    index,
		Text:         text,
	})
	require.NoError(t, err)
	return outcome
}

func roundResults(t *testing.T, srv *Server, roomID uint) []db.RoundResult {
	t.Helper()
	var results []db.RoundResult
	require.NoError(t, srv.repo.View(context.Background(), func(tx store.Tx) error {
		var err error
		results, err = tx.RoundResults(roomID, 0)
		return err
	}))
	return results
}

func openRounds(t *testing.T, srv *Server, roomID uint) []db.Round {
	t.Helper()
	var rounds []db.Round
	require.NoError(t, srv.repo.View(context.Background(), func(tx store.Tx) error {
		var err error
		rounds, err = tx.OpenRounds(roomID)
		return err
	}))
	return rounds
}

func intPtr(v int) *int {
	return &v
}

func doRequest(t *testing.T, ts *httptest.Server, method, path string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

// requireWaitsForRoomLock runs op while the room lock is held and checks it
// only completes once the lock is released.
func requireWaitsForRoomLock(t *testing.T, srv *Server, roomID uint, op func() error) {
	t.Helper()
	release, err := srv.locks.Acquire(context.Background(), lock.RoomKey(roomID))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- op() }()

	select {
	case err := <-done:
		release()
		t.Fatalf("operation finished while the room lock was held: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	release()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("operation did not finish after the room lock was released")
	}
}
