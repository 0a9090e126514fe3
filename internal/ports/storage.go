package ports

import "context"

// SessionStore is the ephemeral per-session key/value scope. It lives as long as
// one play session and is never shared between sessions.
type SessionStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// DurableStore is the cross-session key/value scope shared by every session.
type DurableStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	// Incr atomically adds delta to the decimal integer stored at key (missing
	// keys count as 0) and returns the new value.
	Incr(ctx context.Context, key string, delta int64) (int64, error)
	// Subscribe registers fn for change notifications. Notifications arrive
	// asynchronously, never on the goroutine that made the write.
	Subscribe(fn func(key, value string)) (unsubscribe func())
}
