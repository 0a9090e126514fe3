package natskv_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/randomtoy/pairs-go/internal/adapters/storage/natskv"
)

// These tests need a JetStream-enabled server, e.g. `nats-server -js`.
func testStore(t *testing.T) *natskv.Store {
	t.Helper()
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set")
	}
	nc, err := natskv.Connect(url, "pairs-go-test")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(nc.Close)

	bucket := fmt.Sprintf("pairs_test_%d", time.Now().UnixNano())
	s, err := natskv.New(nc, bucket, slog.Default())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
		if js, err := nc.JetStream(); err == nil {
			_ = js.DeleteKeyValue(bucket)
		}
	})
	return s
}

func TestStore_IncrAndGet(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	for i := int64(1); i <= 3; i++ {
		n, err := s.Incr(ctx, "mg_totalMoves", 1)
		if err != nil {
			t.Fatalf("incr: %v", err)
		}
		if n != i {
			t.Errorf("expected %d, got %d", i, n)
		}
	}
	v, ok, err := s.Get(ctx, "mg_totalMoves")
	if err != nil || !ok || v != "3" {
		t.Errorf("expected 3, got %q ok=%v err=%v", v, ok, err)
	}
	if _, ok, _ := s.Get(ctx, "missing"); ok {
		t.Error("expected missing key")
	}
}

func TestStore_WatchNotifies(t *testing.T) {
	s := testStore(t)

	got := make(chan string, 4)
	s.Subscribe(func(key, value string) { got <- key + "=" + value })

	if err := s.Set(context.Background(), "mg_totalMoves", "41"); err != nil {
		t.Fatalf("set: %v", err)
	}
	select {
	case v := <-got:
		if v != "mg_totalMoves=41" {
			t.Errorf("unexpected notification %q", v)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no notification")
	}
}
