// Package natskv keeps the durable scope in a NATS JetStream key/value bucket,
// so several server processes share one move counter and see each other's
// updates through a bucket watch.
package natskv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/randomtoy/pairs-go/internal/adapters/storage/notify"
)

const maxIncrAttempts = 16

// Connect dials NATS with the reconnect policy used by the game servers.
func Connect(url, name string) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name(name),
		nats.Timeout(10 * time.Second),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(5),
	}
	return nats.Connect(url, opts...)
}

type Store struct {
	kv      nats.KeyValue
	watcher nats.KeyWatcher
	hub     notify.Hub
	logger  *slog.Logger
}

// New opens (or creates) bucket and starts watching it for changes.
func New(nc *nats.Conn, bucket string, logger *slog.Logger) (*Store, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	kv, err := js.KeyValue(bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:      bucket,
			Description: "memory game durable scope",
			History:     1,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucket, err)
	}

	w, err := kv.WatchAll(nats.UpdatesOnly())
	if err != nil {
		return nil, fmt.Errorf("watch bucket %s: %w", bucket, err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{kv: kv, watcher: w, logger: logger}
	go s.forward()
	return s, nil
}

func (s *Store) forward() {
	for entry := range s.watcher.Updates() {
		if entry == nil || entry.Operation() != nats.KeyValuePut {
			continue
		}
		s.hub.Publish(entry.Key(), string(entry.Value()))
	}
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	entry, err := s.kv.Get(key)
	if errors.Is(err, nats.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return string(entry.Value()), true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.kv.PutString(key, value); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Incr applies a compare-and-set loop on the key revision.
func (s *Store) Incr(ctx context.Context, key string, delta int64) (int64, error) {
	var lastErr error
	for range maxIncrAttempts {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		entry, err := s.kv.Get(key)
		if errors.Is(err, nats.ErrKeyNotFound) {
			_, err = s.kv.Create(key, []byte(strconv.FormatInt(delta, 10)))
			if err == nil {
				return delta, nil
			}
			lastErr = err
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("get %s: %w", key, err)
		}

		cur, err := strconv.ParseInt(string(entry.Value()), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("incr %s: %w", key, err)
		}
		next := cur + delta
		if _, err := s.kv.Update(key, []byte(strconv.FormatInt(next, 10)), entry.Revision()); err != nil {
			lastErr = err
			s.logger.DebugContext(ctx, "counter update raced, retrying", "key", key, "error", err)
			continue
		}
		return next, nil
	}
	return 0, fmt.Errorf("incr %s: gave up after %d attempts: %w", key, maxIncrAttempts, lastErr)
}

func (s *Store) Subscribe(fn func(key, value string)) func() {
	return s.hub.Subscribe(fn)
}

// Close stops the bucket watch and notification delivery. The NATS
// connection stays open.
func (s *Store) Close() error {
	err := s.watcher.Stop()
	s.hub.Close()
	return err
}
