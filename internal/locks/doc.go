// Package locks provides the synchronization primitives shared between
// threads: exclusive, recursive and read/write mutexes, condition variables,
// and the handle registry that lets any thread address them by name.
//
// # Overview
//
// Every primitive tracks which goroutine owns it (see internal/goid). The
// ownership information is used to turn self-deadlocks into errors instead
// of hangs:
//
//   - Mutex (exclusive): locking it twice from the same goroutine returns
//     ErrAlreadyLocked.
//   - RecursiveMutex: the owner may lock it again to any depth and must
//     unlock it the same number of times.
//   - RWMutex: any number of readers, or one writer. A writer asking for a
//     read or a second write lock gets ErrAlreadyLocked.
//   - CondVar: waiting requires an exclusive Mutex held by the caller,
//     otherwise ErrNotLocked.
//
// Unlocking a primitive that is not held returns ErrNotLocked. Destroying a
// primitive that is held, or a condition variable with waiters, returns
// ErrBusy and leaves it registered.
//
// # Handles
//
// Registry hands out handles of the form "mid1" (exclusive), "rid2"
// (recursive), "wid3" (read/write) and "cid4" (condition variable). Handle
// resolution is guarded by per-bucket locks that are distinct from each
// primitive's own state lock; destruction waits for in-flight lookups to
// drain before the primitive is dropped.
//
// # Cond
//
// Cond is the low-level condition variable used by the rest of the module.
// Unlike sync.Cond it supports timeouts and context cancellation, which the
// thread pool needs for idle-timeout retirement.
package locks
