package locks

import (
	"context"
	"sync"
	"time"

	"github.com/dreamware/threadkit/internal/goid"
)

// CondVar is a condition variable paired at wait time with an exclusive
// Mutex held by the waiter.
type CondVar struct {
	cond    Cond
	state   sync.Mutex
	mutex   *Mutex // mutex released by the current waiters
	waiters int
}

// NewCondVar returns a condition variable with no waiters.
func NewCondVar() *CondVar { return &CondVar{} }

// Wait releases m, blocks until notified or until timeout elapses, and
// reacquires m before returning. A non-positive timeout waits forever.
// It returns ErrNotLocked if the caller does not hold m.
//
// Wait returns nil on both notification and timeout; the caller must
// re-check its condition.
func (cv *CondVar) Wait(m *Mutex, timeout time.Duration) error {
	return cv.wait(nil, m, timeout)
}

// WaitContext is Wait bounded by ctx instead of a timeout.
func (cv *CondVar) WaitContext(ctx context.Context, m *Mutex) error {
	return cv.wait(ctx, m, 0)
}

func (cv *CondVar) wait(ctx context.Context, m *Mutex, timeout time.Duration) error {
	if m == nil || !m.heldBy(goid.Current()) {
		return ErrNotLocked
	}

	cv.state.Lock()
	cv.waiters++
	cv.mutex = m
	cv.state.Unlock()

	defer func() {
		cv.state.Lock()
		cv.waiters--
		if cv.waiters == 0 {
			cv.mutex = nil
		}
		cv.state.Unlock()
	}()

	l := mutexLocker{m}
	if ctx != nil {
		return cv.cond.WaitContext(ctx, l)
	}
	cv.cond.WaitTimeout(l, timeout)
	return nil
}

// Notify wakes one waiter. It is a no-op when nobody waits.
func (cv *CondVar) Notify() { cv.cond.Signal() }

// Broadcast wakes every waiter.
func (cv *CondVar) Broadcast() { cv.cond.Broadcast() }

// Waiters returns the number of goroutines blocked in Wait.
func (cv *CondVar) Waiters() int {
	cv.state.Lock()
	defer cv.state.Unlock()
	return cv.waiters
}

// mutexLocker adapts Mutex to sync.Locker for Cond. The waiter is known to
// own the mutex on entry and nobody else can be its owner on re-entry, so
// the errors are unreachable.
type mutexLocker struct{ m *Mutex }

func (l mutexLocker) Lock()   { _ = l.m.Lock() }
func (l mutexLocker) Unlock() { _ = l.m.Unlock() }
