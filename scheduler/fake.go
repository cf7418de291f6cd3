package scheduler

import (
	"sync"
	"time"
)

// FakeClock is a manually advanced Clock. Tickers deliver on a one-slot
// channel and drop ticks nobody reads, like time.Ticker. AfterFunc callbacks
// run synchronously inside Advance.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
	timers  []*fakeTimer
}

func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		panic("scheduler: non-positive ticker interval")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{clock: c, period: d, next: c.now.Add(d), ch: make(chan time.Time, 1)}
	c.tickers = append(c.tickers, t)
	return t
}

func (c *FakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Tickers returns the number of live tickers.
func (c *FakeClock) Tickers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

// Timers returns the number of pending timers.
func (c *FakeClock) Timers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// Advance moves time forward by d, firing due tickers and timers in order.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		at, fire := c.nextEventLocked(target)
		if fire == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = at
		c.mu.Unlock()
		fire()
	}
}

// nextEventLocked finds the earliest ticker or timer due at or before target
// and returns a func that fires it.
func (c *FakeClock) nextEventLocked(target time.Time) (time.Time, func()) {
	var (
		best time.Time
		fire func()
	)
	for _, t := range c.tickers {
		if t.next.After(target) || (fire != nil && !t.next.Before(best)) {
			continue
		}
		t := t
		best = t.next
		fire = func() {
			c.mu.Lock()
			now := t.next
			t.next = t.next.Add(t.period)
			c.mu.Unlock()
			select {
			case t.ch <- now:
			default:
			}
		}
	}
	for i, tm := range c.timers {
		if tm.at.After(target) || (fire != nil && !tm.at.Before(best)) {
			continue
		}
		i, tm := i, tm
		best = tm.at
		fire = func() {
			c.mu.Lock()
			if i < len(c.timers) && c.timers[i] == tm {
				c.timers = append(c.timers[:i], c.timers[i+1:]...)
			} else {
				c.removeTimerLocked(tm)
			}
			c.mu.Unlock()
			tm.f()
		}
	}
	return best, fire
}

func (c *FakeClock) removeTimerLocked(tm *fakeTimer) bool {
	for i, t := range c.timers {
		if t == tm {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return true
		}
	}
	return false
}

type fakeTicker struct {
	clock  *FakeClock
	period time.Duration
	next   time.Time
	ch     chan time.Time
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	c := t.clock
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, tk := range c.tickers {
		if tk == t {
			c.tickers = append(c.tickers[:i], c.tickers[i+1:]...)
			return
		}
	}
}

type fakeTimer struct {
	clock *FakeClock
	at    time.Time
	f     func()
}

func (t *fakeTimer) Stop() bool {
	c := t.clock
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removeTimerLocked(t)
}
