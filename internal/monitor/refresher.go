package monitor

import (
	"sync"
	"time"
)

// Refresher fires a callback periodically. Starting it again replaces the previous
// schedule, so at most one timer is ever pending.
type Refresher struct {
	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// Start schedules fn every interval, cancelling any previous schedule first.
// fn runs on the refresher goroutine; a slow fn delays, never overlaps, the next tick.
func (r *Refresher) Start(interval time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
	if interval <= 0 {
		return
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	r.stop, r.done = stop, done

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				select {
				case <-stop:
					return
				default:
				}
				fn()
			}
		}
	}()
}

// Stop cancels the schedule and waits for a running callback to return.
// It must not be called from the callback itself.
func (r *Refresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

// Running reports whether a schedule is active.
func (r *Refresher) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stop != nil
}

func (r *Refresher) stopLocked() {
	if r.stop == nil {
		return
	}
	close(r.stop)
	<-r.done
	r.stop, r.done = nil, nil
}
