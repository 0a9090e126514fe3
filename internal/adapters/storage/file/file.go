// Package file keeps the durable scope in a single JSON file that several
// processes may share.
//
// Writes take an exclusive OS lock on a sidecar lock file, re-read the
// document, apply the change and rename a temporary file over the original.
// Reads never lock: the rename makes every published version complete. A
// watch on the parent directory turns writes made by other processes into
// change notifications.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"

	"github.com/randomtoy/pairs-go/internal/adapters/storage/notify"
)

type Store struct {
	path    string
	lock    *flock.Flock
	watcher *fsnotify.Watcher
	logger  *slog.Logger
	done    chan struct{}

	// mu serializes writers inside this process and guards known, the last
	// document this store wrote or observed.
	mu        sync.Mutex
	known     map[string]string
	hub       notify.Hub
	closeOnce sync.Once
}

// Open prepares the store at path and starts watching it. The file itself is
// created by the first write.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	path = filepath.Clean(path)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	// Renames replace the file, so the directory is watched rather than the file.
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	s := &Store{
		path:    path,
		lock:    flock.New(path + ".lock"),
		watcher: w,
		logger:  logger,
		done:    make(chan struct{}),
		known:   make(map[string]string),
	}
	if values, err := s.read(); err == nil {
		s.known = values
	}
	go s.watch()
	return s, nil
}

func (s *Store) read() (map[string]string, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	values := make(map[string]string)
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return values, nil
}

func (s *Store) persist(values map[string]string) error {
	payload, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	values, err := s.read()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	return s.update(ctx, func(values map[string]string) error {
		values[key] = value
		return nil
	})
}

func (s *Store) Incr(ctx context.Context, key string, delta int64) (int64, error) {
	var next int64
	err := s.update(ctx, func(values map[string]string) error {
		var cur int64
		if raw, ok := values[key]; ok {
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return fmt.Errorf("incr %s: %w", key, err)
			}
			cur = n
		}
		next = cur + delta
		values[key] = strconv.FormatInt(next, 10)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

// update applies fn to the latest document under the cross-process lock and
// notifies subscribers of every key that changed since this store last looked.
func (s *Store) update(ctx context.Context, fn func(values map[string]string) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock %s: %w", s.path, err)
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("unlock durable file", "path", s.path, "error", err)
		}
	}()

	values, err := s.read()
	if err != nil {
		return err
	}
	if err := fn(values); err != nil {
		return err
	}
	if err := s.persist(values); err != nil {
		return err
	}
	s.observe(values)
	return nil
}

// observe records values as the latest document and publishes changed keys.
// Callers hold s.mu.
func (s *Store) observe(values map[string]string) {
	for k, v := range values {
		if old, ok := s.known[k]; !ok || old != v {
			s.hub.Publish(k, v)
		}
	}
	s.known = values
}

func (s *Store) watch() {
	defer close(s.done)
	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != s.path || !(ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write)) {
				continue
			}
			s.reload()
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("durable file watch", "path", s.path, "error", err)
		}
	}
}

// reload reads under s.mu so an older document never replaces one this store
// has just written.
func (s *Store) reload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.read()
	if err != nil {
		s.logger.Debug("reload durable file", "path", s.path, "error", err)
		return
	}
	s.observe(values)
}

func (s *Store) Subscribe(fn func(key, value string)) func() {
	return s.hub.Subscribe(fn)
}

// Close stops the file watch and notification delivery.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		if err := s.watcher.Close(); err != nil {
			s.logger.Warn("close durable file watch", "path", s.path, "error", err)
		}
		<-s.done
		s.hub.Close()
	})
}
