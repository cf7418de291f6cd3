package scheduler

import (
	"sync"
	"time"
)

// Recurring runs a callback every interval on a background goroutine until
// cancelled. Scheduling again replaces the previous schedule. Callbacks run
// one at a time; ticks that arrive while a callback is still running are
// dropped by the ticker.
type Recurring struct {
	clock Clock

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func NewRecurring(clock Clock) *Recurring {
	if clock == nil {
		clock = Real
	}
	return &Recurring{clock: clock}
}

func (r *Recurring) Schedule(interval time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stop != nil {
		close(r.stop)
	}

	ticker := r.clock.NewTicker(interval)
	stop := make(chan struct{})
	done := make(chan struct{})
	r.stop, r.done = stop, done

	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C():
			}
			// a tick and a cancel can be ready together; the cancel wins
			select {
			case <-stop:
				return
			default:
			}
			fn()
		}
	}()
}

// Cancel stops the schedule without waiting. A callback that is already
// running finishes on its own; no further callbacks start. Cancel is safe to
// call from inside the callback and on an idle Recurring.
func (r *Recurring) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stop != nil {
		close(r.stop)
		r.stop = nil
	}
}

// Done returns a channel closed when the current loop goroutine has exited.
// It is nil when nothing was ever scheduled.
func (r *Recurring) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// Active reports whether a schedule is registered.
func (r *Recurring) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stop != nil
}
