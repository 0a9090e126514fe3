// Package notify fans out key/value change notifications to subscribers.
//
// Each subscriber owns a goroutine. Publish never blocks: pending changes are
// coalesced per key, so a slow subscriber sees the latest value for each key
// rather than every intermediate one.
package notify

import "sync"

type Hub struct {
	mu   sync.Mutex
	next uint64
	subs map[uint64]*subscriber
}

type subscriber struct {
	fn       func(key, value string)
	wake     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	order   []string
	pending map[string]string
}

// Subscribe registers fn and returns a function that unregisters it.
func (h *Hub) Subscribe(fn func(key, value string)) func() {
	s := &subscriber{
		fn:      fn,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		pending: make(map[string]string),
	}

	h.mu.Lock()
	if h.subs == nil {
		h.subs = make(map[uint64]*subscriber)
	}
	h.next++
	id := h.next
	h.subs[id] = s
	h.mu.Unlock()

	go s.run()

	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
		s.stop()
	}
}

// Publish queues (key, value) for every subscriber.
func (h *Hub) Publish(key, value string) {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		s.push(key, value)
	}
}

// Close unregisters every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = nil
	h.mu.Unlock()
	for _, s := range subs {
		s.stop()
	}
}

func (s *subscriber) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

func (s *subscriber) push(key, value string) {
	s.mu.Lock()
	if _, queued := s.pending[key]; !queued {
		s.order = append(s.order, key)
	}
	s.pending[key] = value
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}

		s.mu.Lock()
		order, pending := s.order, s.pending
		s.order, s.pending = nil, make(map[string]string)
		s.mu.Unlock()

		for _, key := range order {
			select {
			case <-s.done:
				return
			default:
			}
			s.fn(key, pending[key])
		}
	}
}
