package locks

import (
	"context"
	"sync"
	"time"
)

// Cond is a condition variable whose waits can be bounded by a timeout or a
// context. Waiters are woken in arrival order by Signal.
//
// The zero value is ready to use. A Cond must not be copied after first use.
type Cond struct {
	mu      sync.Mutex
	waiters []chan struct{}
}

// Wait atomically unlocks l, blocks until woken, and relocks l before
// returning.
func (c *Cond) Wait(l sync.Locker) {
	c.wait(nil, l, 0)
}

// WaitTimeout is like Wait but gives up after d. A non-positive d waits
// forever. It reports whether the waiter was woken by Signal or Broadcast.
// Callers must re-check their predicate either way.
func (c *Cond) WaitTimeout(l sync.Locker, d time.Duration) bool {
	woken, _ := c.wait(nil, l, d)
	return woken
}

// WaitContext is like Wait but returns ctx.Err() if ctx is done first.
func (c *Cond) WaitContext(ctx context.Context, l sync.Locker) error {
	_, err := c.wait(ctx, l, 0)
	return err
}

func (c *Cond) wait(ctx context.Context, l sync.Locker, d time.Duration) (bool, error) {
	ch := make(chan struct{})
	c.mu.Lock()
	c.waiters = append(c.waiters, ch)
	c.mu.Unlock()

	// The waiter is queued before l is released, so a notification sent
	// after the caller checked its predicate cannot be missed.
	l.Unlock()
	defer l.Lock()

	var timeout <-chan time.Time
	if d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		timeout = t.C
	}
	var done <-chan struct{}
	if ctx != nil {
		done = ctx.Done()
	}

	select {
	case <-ch:
		return true, nil
	case <-timeout:
		if c.forget(ch) {
			return false, nil
		}
	case <-done:
		if c.forget(ch) {
			return false, ctx.Err()
		}
	}
	// A notifier dequeued us concurrently with the timeout; honor it so the
	// wakeup is not lost.
	<-ch
	return true, nil
}

// forget removes ch from the wait list. It returns false if ch was already
// dequeued by a notifier.
func (c *Cond) forget(ch chan struct{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, w := range c.waiters {
		if w == ch {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return true
		}
	}
	return false
}

// Signal wakes the longest-waiting goroutine, if any.
func (c *Cond) Signal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.waiters) == 0 {
		return
	}
	ch := c.waiters[0]
	c.waiters = c.waiters[1:]
	close(ch)
}

// Broadcast wakes every waiting goroutine.
func (c *Cond) Broadcast() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.waiters {
		close(ch)
	}
	c.waiters = nil
}

// Waiting returns the number of goroutines blocked on c.
func (c *Cond) Waiting() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// Waiter queues a waiter without blocking. The returned channel is closed
// when the waiter is woken. stop withdraws the waiter and reports whether it
// was still queued; if it was not, the wakeup it received is consumed.
//
// Callers queue the waiter while holding the lock that guards their
// predicate, release it, and then select on the channel together with other
// events.
func (c *Cond) Waiter() (wake <-chan struct{}, stop func() bool) {
	ch := make(chan struct{})
	c.mu.Lock()
	c.waiters = append(c.waiters, ch)
	c.mu.Unlock()
	return ch, func() bool { return c.forget(ch) }
}
