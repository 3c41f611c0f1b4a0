package locks

import (
	"fmt"
	"strings"
	"time"

	"github.com/dreamware/threadkit/internal/handle"
)

// Handle prefixes, one per primitive kind.
const (
	prefixExclusive = "mid"
	prefixRecursive = "rid"
	prefixReadWrite = "wid"
	prefixCond      = "cid"
)

// Registry addresses mutexes and condition variables by handle.
type Registry struct {
	exclusive *handle.Registry[Locker]
	recursive *handle.Registry[Locker]
	readwrite *handle.Registry[Locker]
	conds     *handle.Registry[*CondVar]
}

// NewRegistry creates an empty registry with numBuckets buckets per kind.
func NewRegistry(numBuckets int) *Registry {
	return &Registry{
		exclusive: handle.New[Locker](prefixExclusive, numBuckets),
		recursive: handle.New[Locker](prefixRecursive, numBuckets),
		readwrite: handle.New[Locker](prefixReadWrite, numBuckets),
		conds:     handle.New[*CondVar](prefixCond, numBuckets),
	}
}

var defaultRegistry = NewRegistry(handle.DefaultBuckets)

// Default returns the process-wide registry.
func Default() *Registry { return defaultRegistry }

func (r *Registry) mutexTable(h string) (*handle.Registry[Locker], error) {
	switch {
	case strings.HasPrefix(h, prefixExclusive):
		return r.exclusive, nil
	case strings.HasPrefix(h, prefixRecursive):
		return r.recursive, nil
	case strings.HasPrefix(h, prefixReadWrite):
		return r.readwrite, nil
	default:
		return nil, fmt.Errorf("%w: %q", handle.ErrNoSuchHandle, h)
	}
}

// CreateMutex registers a new unlocked mutex and returns its handle.
func (r *Registry) CreateMutex(kind Kind) (string, error) {
	m, err := NewLocker(kind)
	if err != nil {
		return "", err
	}
	switch kind {
	case Recursive:
		return r.recursive.Add(m), nil
	case ReadWrite:
		return r.readwrite.Add(m), nil
	default:
		return r.exclusive.Add(m), nil
	}
}

// withMutex resolves h, pins it for the duration of fn, and releases it.
func (r *Registry) withMutex(h string, fn func(Locker) error) error {
	table, err := r.mutexTable(h)
	if err != nil {
		return err
	}
	m, err := table.Acquire(h)
	if err != nil {
		return err
	}
	defer table.Release(h)
	return fn(m)
}

// Lock acquires the mutex named by h (the write lock for read/write mutexes).
func (r *Registry) Lock(h string) error {
	return r.withMutex(h, func(m Locker) error { return m.Lock() })
}

// RLock acquires a read lock on a read/write mutex.
func (r *Registry) RLock(h string) error {
	return r.withMutex(h, func(m Locker) error {
		rw, ok := m.(*RWMutex)
		if !ok {
			return fmt.Errorf("%w: rlock on %s mutex", ErrWrongKind, m.Kind())
		}
		return rw.RLock()
	})
}

// WLock acquires the write lock on a read/write mutex.
func (r *Registry) WLock(h string) error {
	return r.withMutex(h, func(m Locker) error {
		rw, ok := m.(*RWMutex)
		if !ok {
			return fmt.Errorf("%w: wlock on %s mutex", ErrWrongKind, m.Kind())
		}
		return rw.WLock()
	})
}

// Unlock releases the mutex named by h.
func (r *Registry) Unlock(h string) error {
	return r.withMutex(h, func(m Locker) error { return m.Unlock() })
}

// Mutex resolves h without pinning it. The returned value must not be used
// after the handle is destroyed.
func (r *Registry) Mutex(h string) (Locker, error) {
	table, err := r.mutexTable(h)
	if err != nil {
		return nil, err
	}
	m, ok := table.Lookup(h)
	if !ok {
		return nil, fmt.Errorf("%w: %q", handle.ErrNoSuchHandle, h)
	}
	return m, nil
}

// DestroyMutex unregisters an unlocked mutex. It fails with ErrBusy if the
// mutex is held, and waits for concurrent lookups of h to finish.
func (r *Registry) DestroyMutex(h string) error {
	table, err := r.mutexTable(h)
	if err != nil {
		return err
	}
	_, err = table.Remove(h, func(m Locker) error {
		if m.Locked() {
			return fmt.Errorf("%w: mutex %q is locked", ErrBusy, h)
		}
		return nil
	})
	return err
}

// CreateCond registers a new condition variable and returns its handle.
func (r *Registry) CreateCond() string {
	return r.conds.Add(NewCondVar())
}

// Wait waits on condition variable cv, releasing and reacquiring the
// exclusive mutex mh. A non-positive timeout waits forever.
func (r *Registry) Wait(cv, mh string, timeout time.Duration) error {
	c, err := r.conds.Acquire(cv)
	if err != nil {
		return err
	}
	defer r.conds.Release(cv)

	if !strings.HasPrefix(mh, prefixExclusive) {
		// Only exclusive mutexes can back a condition wait.
		if _, err := r.mutexTable(mh); err != nil {
			return err
		}
		return fmt.Errorf("%w: %q is not an exclusive mutex", ErrNotLocked, mh)
	}
	return r.withMutex(mh, func(m Locker) error {
		return c.Wait(m.(*Mutex), timeout)
	})
}

// Notify wakes one waiter of cv.
func (r *Registry) Notify(cv string) error {
	c, err := r.conds.Acquire(cv)
	if err != nil {
		return err
	}
	defer r.conds.Release(cv)
	c.Notify()
	return nil
}

// Broadcast wakes every waiter of cv.
func (r *Registry) Broadcast(cv string) error {
	c, err := r.conds.Acquire(cv)
	if err != nil {
		return err
	}
	defer r.conds.Release(cv)
	c.Broadcast()
	return nil
}

// DestroyCond unregisters a condition variable. It fails with ErrBusy while
// any goroutine waits on it.
func (r *Registry) DestroyCond(cv string) error {
	_, err := r.conds.Remove(cv, func(c *CondVar) error {
		if c.Waiters() > 0 {
			return fmt.Errorf("%w: condition variable %q has waiters", ErrBusy, cv)
		}
		return nil
	})
	return err
}

// Names lists every registered mutex and condition variable handle.
func (r *Registry) Names() []string {
	var names []string
	names = append(names, r.exclusive.Names()...)
	names = append(names, r.recursive.Names()...)
	names = append(names, r.readwrite.Names()...)
	names = append(names, r.conds.Names()...)
	return names
}
