package locks

import (
	"fmt"
	"sync"

	"github.com/dreamware/threadkit/internal/goid"
)

// Kind selects the flavor of a mutex.
type Kind int

const (
	// Exclusive is a plain non-reentrant mutex.
	Exclusive Kind = iota
	// Recursive may be re-locked by its owner.
	Recursive
	// ReadWrite admits many readers or one writer.
	ReadWrite
)

// String returns the kind name used in handles and diagnostics.
func (k Kind) String() string {
	switch k {
	case Exclusive:
		return "exclusive"
	case Recursive:
		return "recursive"
	case ReadWrite:
		return "readwrite"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Locker is the behavior shared by all mutex kinds.
type Locker interface {
	Kind() Kind
	// Lock acquires the mutex; for a read/write mutex it takes the write lock.
	Lock() error
	Unlock() error
	// Locked reports whether anyone holds the mutex.
	Locked() bool
}

// Mutex is an exclusive mutex. Any goroutine may unlock it, but the goroutine
// holding it gets ErrAlreadyLocked instead of deadlocking when it locks again.
type Mutex struct {
	mu    sync.Mutex // the lock handed out to callers
	state sync.Mutex // guards owner and count
	owner goid.ID
	count int
}

// NewMutex returns an unlocked exclusive mutex.
func NewMutex() *Mutex { return &Mutex{} }

// Kind returns Exclusive.
func (m *Mutex) Kind() Kind { return Exclusive }

// Lock blocks until the mutex is acquired.
func (m *Mutex) Lock() error {
	me := goid.Current()
	m.state.Lock()
	if m.count > 0 && m.owner == me {
		m.state.Unlock()
		return ErrAlreadyLocked
	}
	m.state.Unlock()

	m.mu.Lock()

	m.state.Lock()
	m.owner = me
	m.count = 1
	m.state.Unlock()
	return nil
}

// Unlock releases the mutex.
func (m *Mutex) Unlock() error {
	m.state.Lock()
	if m.count == 0 {
		m.state.Unlock()
		return ErrNotLocked
	}
	m.count = 0
	m.owner = 0
	m.state.Unlock()

	m.mu.Unlock()
	return nil
}

// Locked reports whether the mutex is held.
func (m *Mutex) Locked() bool {
	m.state.Lock()
	defer m.state.Unlock()
	return m.count > 0
}

// heldBy reports whether id currently owns the mutex.
func (m *Mutex) heldBy(id goid.ID) bool {
	m.state.Lock()
	defer m.state.Unlock()
	return m.count > 0 && m.owner == id
}

// RecursiveMutex may be locked repeatedly by the goroutine that owns it.
// Only the owner may unlock it; it is released when the lock count drops to
// zero, at which point one blocked goroutine is woken.
type RecursiveMutex struct {
	mu      sync.Mutex
	cond    *sync.Cond
	owner   goid.ID
	count   int
	waiting int
}

// NewRecursiveMutex returns an unlocked recursive mutex.
func NewRecursiveMutex() *RecursiveMutex {
	m := &RecursiveMutex{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Kind returns Recursive.
func (m *RecursiveMutex) Kind() Kind { return Recursive }

// Lock acquires the mutex or increments the lock count if the caller owns it.
// It never fails.
func (m *RecursiveMutex) Lock() error {
	me := goid.Current()
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.owner == me && m.count > 0 {
		m.count++
		return nil
	}
	for m.count > 0 {
		m.waiting++
		m.cond.Wait()
		m.waiting--
	}
	m.owner = me
	m.count = 1
	return nil
}

// Unlock decrements the lock count held by the caller.
func (m *RecursiveMutex) Unlock() error {
	me := goid.Current()
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.count == 0 || m.owner != me {
		return ErrNotLocked
	}
	m.count--
	if m.count == 0 {
		m.owner = 0
		if m.waiting > 0 {
			m.cond.Signal()
		}
	}
	return nil
}

// Locked reports whether any goroutine holds the mutex.
func (m *RecursiveMutex) Locked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count > 0
}

// Depth returns how many times the current owner has locked the mutex.
func (m *RecursiveMutex) Depth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// RWMutex admits any number of readers or a single writer. When it becomes
// free, blocked writers are preferred over blocked readers.
type RWMutex struct {
	mu    sync.Mutex
	rcond *sync.Cond
	wcond *sync.Cond
	owner goid.ID // writer, when count < 0
	count int     // readers if > 0, -1 when write-locked
	numRd int     // readers waiting
	numWr int     // writers waiting
}

// NewRWMutex returns an unlocked read/write mutex.
func NewRWMutex() *RWMutex {
	m := &RWMutex{}
	m.rcond = sync.NewCond(&m.mu)
	m.wcond = sync.NewCond(&m.mu)
	return m
}

// Kind returns ReadWrite.
func (m *RWMutex) Kind() Kind { return ReadWrite }

// Lock is WLock.
func (m *RWMutex) Lock() error { return m.WLock() }

// RLock acquires a shared lock, blocking while a writer holds the mutex.
// The writer itself gets ErrAlreadyLocked.
func (m *RWMutex) RLock() error {
	me := goid.Current()
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.count < 0 && m.owner == me {
		return ErrAlreadyLocked
	}
	for m.count < 0 {
		m.numRd++
		m.rcond.Wait()
		m.numRd--
	}
	m.count++
	return nil
}

// WLock acquires the exclusive lock, blocking until there are no readers
// and no writer. A goroutine already holding the write lock gets
// ErrAlreadyLocked.
func (m *RWMutex) WLock() error {
	me := goid.Current()
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.count < 0 && m.owner == me {
		return ErrAlreadyLocked
	}
	for m.count != 0 {
		m.numWr++
		m.wcond.Wait()
		m.numWr--
	}
	m.count = -1
	m.owner = me
	return nil
}

// Unlock releases one read lock, or the write lock if the caller holds it.
func (m *RWMutex) Unlock() error {
	me := goid.Current()
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.count == 0:
		return ErrNotLocked
	case m.count > 0:
		m.count--
	default:
		if m.owner != me {
			return ErrNotLocked
		}
		m.count = 0
		m.owner = 0
	}

	if m.count == 0 {
		if m.numWr > 0 {
			m.wcond.Signal()
		} else if m.numRd > 0 {
			m.rcond.Broadcast()
		}
	}
	return nil
}

// Locked reports whether the mutex is held in either mode.
func (m *RWMutex) Locked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count != 0
}

// Readers returns the number of read locks currently held.
func (m *RWMutex) Readers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.count < 0 {
		return 0
	}
	return m.count
}

// NewLocker returns an unlocked mutex of the given kind.
func NewLocker(kind Kind) (Locker, error) {
	switch kind {
	case Exclusive:
		return NewMutex(), nil
	case Recursive:
		return NewRecursiveMutex(), nil
	case ReadWrite:
		return NewRWMutex(), nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrWrongKind, kind)
	}
}
