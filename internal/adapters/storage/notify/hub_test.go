package notify_test

import (
	"testing"
	"time"

	"github.com/randomtoy/pairs-go/internal/adapters/storage/notify"
)

type change struct{ key, value string }

func TestHub_DeliversToEverySubscriber(t *testing.T) {
	var h notify.Hub
	defer h.Close()

	a := make(chan change, 8)
	b := make(chan change, 8)
	h.Subscribe(func(k, v string) { a <- change{k, v} })
	h.Subscribe(func(k, v string) { b <- change{k, v} })

	h.Publish("mg_totalMoves", "3")

	for name, ch := range map[string]chan change{"a": a, "b": b} {
		select {
		case got := <-ch:
			if got.key != "mg_totalMoves" || got.value != "3" {
				t.Errorf("%s: unexpected change %+v", name, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("%s: no notification", name)
		}
	}
}

func TestHub_CoalescesToLatestValue(t *testing.T) {
	var h notify.Hub
	defer h.Close()

	entered := make(chan struct{})
	release := make(chan struct{})
	got := make(chan change, 8)
	first := true
	h.Subscribe(func(k, v string) {
		if first {
			first = false
			close(entered)
			<-release
		}
		got <- change{k, v}
	})

	h.Publish("k", "1")
	<-entered
	h.Publish("k", "2")
	h.Publish("k", "3")
	close(release)

	var values []string
	deadline := time.After(time.Second)
	for len(values) < 2 {
		select {
		case c := <-got:
			values = append(values, c.value)
		case <-deadline:
			t.Fatalf("expected two deliveries, got %v", values)
		}
	}
	if values[0] != "1" || values[1] != "3" {
		t.Errorf("expected [1 3], got %v", values)
	}
}

func TestHub_Unsubscribe(t *testing.T) {
	var h notify.Hub
	defer h.Close()

	got := make(chan change, 8)
	unsubscribe := h.Subscribe(func(k, v string) { got <- change{k, v} })
	unsubscribe()
	unsubscribe()

	h.Publish("k", "1")
	select {
	case c := <-got:
		t.Errorf("unexpected delivery after unsubscribe: %+v", c)
	case <-time.After(50 * time.Millisecond):
	}
}
