package clock

import (
	"sync"
	"time"

	"github.com/randomtoy/pairs-go/internal/ports"
)

// Manual is a virtual clock. Time only moves when Advance is called, and due
// callbacks run on the caller's goroutine in deadline order.
type Manual struct {
	mu    sync.Mutex
	now   time.Duration
	seq   uint64
	tasks map[uint64]*task
}

type task struct {
	id    uint64
	at    time.Duration
	every time.Duration
	fn    func()
}

func NewManual() *Manual {
	return &Manual{tasks: make(map[uint64]*task)}
}

func (m *Manual) AfterFunc(d time.Duration, fn func()) ports.Stop {
	return m.schedule(d, 0, fn)
}

func (m *Manual) Every(d time.Duration, fn func()) ports.Stop {
	if d <= 0 {
		panic("clock: non-positive interval")
	}
	return m.schedule(d, d, fn)
}

func (m *Manual) schedule(d, every time.Duration, fn func()) ports.Stop {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &task{id: m.seq, at: m.now + d, every: every, fn: fn}
	m.tasks[t.id] = t
	return func() {
		m.mu.Lock()
		delete(m.tasks, t.id)
		m.mu.Unlock()
	}
}

// Advance moves the clock forward by d, firing every callback that falls due.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	for {
		m.mu.Lock()
		next := m.nextDue(target)
		if next == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		m.now = next.at
		if next.every > 0 {
			next.at += next.every
		} else {
			delete(m.tasks, next.id)
		}
		fn := next.fn
		m.mu.Unlock()

		fn()
	}
}

func (m *Manual) nextDue(target time.Duration) *task {
	var best *task
	for _, t := range m.tasks {
		if t.at > target {
			continue
		}
		if best == nil || t.at < best.at || (t.at == best.at && t.id < best.id) {
			best = t
		}
	}
	return best
}

// Elapsed reports the virtual time since the clock was created.
func (m *Manual) Elapsed() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Pending reports how many callbacks are scheduled.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}
