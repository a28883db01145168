package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"ladder-league/internal/config"
	"ladder-league/internal/lock"
	"ladder-league/internal/puzzle"
	"ladder-league/internal/store"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Server struct {
	repo     store.Repository
	hub      *Hub
	puzzles  *puzzle.Library
	locks    lock.Locker
	cfg      config.Config
	log      *zap.Logger
	now      func() time.Time
	timersMu sync.Mutex
	timers   map[uint]*time.Timer
}

type Option func(*Server)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.log = logger
		}
	}
}

func WithPuzzles(lib *puzzle.Library) Option {
	return func(s *Server) {
		if lib != nil {
			s.puzzles = lib
		}
	}
}

// WithLocker replaces the in-process room lock, e.g. with a Redis lock
// shared across instances.
func WithLocker(locker lock.Locker) Option {
	return func(s *Server) {
		if locker != nil {
			s.locks = locker
		}
	}
}

func WithRepository(repo store.Repository) Option {
	return func(s *Server) {
		if repo != nil {
			s.repo = repo
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// New builds a server. A nil conn keeps all state in memory.
func New(conn *gorm.DB, cfg config.Config, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		log:     zap.NewNop(),
		puzzles: puzzle.NewLibrary(),
		locks:   lock.NewLocal(),
		now:     func() time.Time { return time.Now().UTC() },
		timers:  make(map[uint]*time.Timer),
	}
	if conn != nil {
		s.repo = store.NewGorm(conn)
	} else {
		s.repo = store.NewMemory()
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = NewHub(s.log.Named("hub"))
	return s
}

func (s *Server) Hub() *Hub {
	return s.hub
}

// Close stops every pending round timer.
func (s *Server) Close() {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	for roomID, timer := range s.timers {
		timer.Stop()
		delete(s.timers, roomID)
	}
}

func (s *Server) withRoomLock(ctx context.Context, roomID uint, fn func() error) error {
	release, err := s.locks.Acquire(ctx, lock.RoomKey(roomID))
	if err != nil {
		return fmt.Errorf("acquire room lock: %w", err)
	}
	defer release()
	return fn()
}

func (s *Server) Handler() http.Handler {
	return s.routes()
}
