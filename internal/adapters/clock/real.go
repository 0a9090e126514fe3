package clock

import (
	"sync"
	"time"

	"github.com/randomtoy/pairs-go/internal/ports"
)

// Real schedules callbacks on wall-clock time.
type Real struct{}

func (Real) AfterFunc(d time.Duration, fn func()) ports.Stop {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

func (Real) Every(d time.Duration, fn func()) ports.Stop {
	t := time.NewTicker(d)
	done := make(chan struct{})
	go func() {
		defer t.Stop()
		for {
			select {
			case <-t.C:
				fn()
			case <-done:
				return
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}
