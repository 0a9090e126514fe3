package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/randomtoy/pairs-go/internal/domain"
	"github.com/randomtoy/pairs-go/internal/ports"
)

// Session is one play session: an engine, its view and its private session
// scope.
type Session[V ports.View] struct {
	ID     string
	Engine *Engine
	View   V
	Store  ports.SessionStore

	lastSeen time.Time
}

// SessionDeps are shared by every session. NewStore and NewView build the
// per-session parts.
type SessionDeps[V ports.View] struct {
	Durable   ports.DurableStore
	Scheduler ports.Scheduler
	Catalog   ports.Catalog
	RNG       domain.RNG
	Logger    *slog.Logger
	NewStore  func() ports.SessionStore
	NewView   func(id string) V
	Now       func() time.Time
}

// Sessions tracks live sessions by id. Every session shares the durable scope.
type Sessions[V ports.View] struct {
	deps SessionDeps[V]
	cfg  EngineConfig
	ttl  time.Duration

	mu       sync.Mutex
	sessions map[string]*Session[V]
}

func NewSessions[V ports.View](deps SessionDeps[V], cfg EngineConfig, ttl time.Duration) *Sessions[V] {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Sessions[V]{
		deps:     deps,
		cfg:      cfg,
		ttl:      ttl,
		sessions: make(map[string]*Session[V]),
	}
}

// Open returns the session for id, starting a new one when it does not exist.
// An empty id gets a fresh random id. The engine starts outside the registry
// lock; when two callers race on one id the first to register wins and the
// other engine is discarded.
func (s *Sessions[V]) Open(ctx context.Context, id string) (*Session[V], error) {
	if id == "" {
		id = uuid.NewString()
	}
	if sess, err := s.Get(id); err == nil {
		return sess, nil
	}

	store := s.deps.NewStore()
	view := s.deps.NewView(id)
	engine := NewEngine(Deps{
		Session:   store,
		Durable:   s.deps.Durable,
		View:      view,
		Scheduler: s.deps.Scheduler,
		Catalog:   s.deps.Catalog,
		RNG:       s.deps.RNG,
		Logger:    s.deps.Logger.With("session", id),
	}, s.cfg)
	if err := engine.Start(ctx); err != nil {
		engine.Close()
		return nil, fmt.Errorf("start session %s: %w", id, err)
	}
	sess := &Session[V]{ID: id, Engine: engine, View: view, Store: store}

	s.mu.Lock()
	if existing, ok := s.sessions[id]; ok {
		existing.lastSeen = s.deps.Now()
		s.mu.Unlock()
		s.end(ctx, sess)
		return existing, nil
	}
	sess.lastSeen = s.deps.Now()
	s.sessions[id] = sess
	n := len(s.sessions)
	s.mu.Unlock()

	s.deps.Logger.InfoContext(ctx, "session opened", "session", id, "sessions", n)
	return sess, nil
}

// Get returns a live session and marks it as recently used.
func (s *Sessions[V]) Get(id string) (*Session[V], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownSession, id)
	}
	sess.lastSeen = s.deps.Now()
	return sess, nil
}

// Touch marks a session as recently used. Long-lived connections call it on
// every message so Sweep does not expire a session that is still played.
func (s *Sessions[V]) Touch(id string) error {
	_, err := s.Get(id)
	return err
}

// Close ends a session and clears its session scope. Views with a Close method
// are closed too.
func (s *Sessions[V]) Close(ctx context.Context, id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownSession, id)
	}
	s.end(ctx, sess)
	return nil
}

// Sweep closes sessions idle for longer than the TTL and returns how many it
// closed.
func (s *Sessions[V]) Sweep(ctx context.Context) int {
	if s.ttl <= 0 {
		return 0
	}
	cutoff := s.deps.Now().Add(-s.ttl)

	s.mu.Lock()
	var idle []*Session[V]
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			idle = append(idle, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range idle {
		s.end(ctx, sess)
	}
	if len(idle) > 0 {
		s.deps.Logger.InfoContext(ctx, "expired idle sessions", "count", len(idle))
	}
	return len(idle)
}

// CloseAll ends every session.
func (s *Sessions[V]) CloseAll(ctx context.Context) {
	s.mu.Lock()
	all := s.sessions
	s.sessions = make(map[string]*Session[V])
	s.mu.Unlock()
	for _, sess := range all {
		s.end(ctx, sess)
	}
}

// Len reports the number of live sessions.
func (s *Sessions[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// TotalMoves reads the durable move counter shared by all sessions.
func (s *Sessions[V]) TotalMoves(ctx context.Context) (int64, error) {
	return TotalMoves(ctx, s.deps.Durable)
}

// Catalog exposes the option sets offered to players.
func (s *Sessions[V]) Catalog() ports.Catalog {
	return s.deps.Catalog
}

func (s *Sessions[V]) end(ctx context.Context, sess *Session[V]) {
	sess.Engine.Close()
	if c, ok := any(sess.View).(interface{ Close() }); ok {
		c.Close()
	}
	if err := sess.Store.Delete(ctx, SessionKey); err != nil {
		s.deps.Logger.WarnContext(ctx, "clear session scope", "session", sess.ID, "error", err)
	}
}
