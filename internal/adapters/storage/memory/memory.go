// Package memory keeps key/value scopes in process memory.
package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/randomtoy/pairs-go/internal/adapters/storage/notify"
)

// SessionStore is an ephemeral scope that disappears with the process.
type SessionStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewSessionStore() *SessionStore {
	return &SessionStore{values: make(map[string]string)}
}

func (s *SessionStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *SessionStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *SessionStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// DurableStore is an in-memory stand-in for the durable scope, shared by every
// engine in the process. Used by tests and by the CLI's --ephemeral mode.
type DurableStore struct {
	mu     sync.Mutex
	values map[string]string
	hub    notify.Hub
}

func NewDurableStore() *DurableStore {
	return &DurableStore{values: make(map[string]string)}
}

func (s *DurableStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *DurableStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	s.hub.Publish(key, value)
	return nil
}

func (s *DurableStore) Incr(_ context.Context, key string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var cur int64
	if raw, ok := s.values[key]; ok {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("incr %s: %w", key, err)
		}
		cur = n
	}
	next := cur + delta
	v := strconv.FormatInt(next, 10)
	s.values[key] = v
	s.hub.Publish(key, v)
	return next, nil
}

func (s *DurableStore) Subscribe(fn func(key, value string)) func() {
	return s.hub.Subscribe(fn)
}

// Close stops notification delivery.
func (s *DurableStore) Close() {
	s.hub.Close()
}
