package locks

import "errors"

var (
	// ErrAlreadyLocked is returned when the calling goroutine already holds
	// the primitive in a mode that cannot be re-entered.
	ErrAlreadyLocked = errors.New("locks: mutex already locked by this thread")

	// ErrNotLocked is returned by Unlock on a primitive that is not held, and
	// by CondVar.Wait when the mutex is not held by the caller.
	ErrNotLocked = errors.New("locks: mutex is not locked")

	// ErrBusy is returned when destroying a held mutex or a condition
	// variable that has waiters.
	ErrBusy = errors.New("locks: primitive is in use")

	// ErrWrongKind is returned when an operation does not apply to the kind
	// of mutex the handle names, e.g. RLock on an exclusive mutex.
	ErrWrongKind = errors.New("locks: operation not supported by this mutex kind")
)
