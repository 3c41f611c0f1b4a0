// Package handle implements the process-wide registries that map opaque
// string handles ("mid3", "cid1", "tpool2", ...) to live objects.
//
// # Overview
//
// A Registry is split into a fixed number of buckets. A handle hashes to
// exactly one bucket and every bucket carries its own lock, so lookups of
// unrelated handles never contend on a single global mutex.
//
// # Reference counting
//
// Resolving a handle with Acquire pins the entry: the bucket records one more
// in-flight user until the caller hands it back with Release. Remove takes the
// entry out of the table first, so no new lookup can find it, and then blocks
// on the bucket's condition variable until every in-flight user is gone. This
// lets a Destroy operation safely reclaim an object while other goroutines are
// blocked inside operations on it, without holding the bucket lock for the
// duration of those operations.
//
// The bucket lock is never held while the caller operates on the object
// itself, which keeps long blocking operations (a Lock on a contended mutex)
// from stalling lookups of other handles in the same bucket.
//
// # Usage
//
//	reg := handle.New[*Mutex]("mid", 32)
//	name := reg.Add(m)
//
//	m, err := reg.Acquire(name)
//	if err != nil {
//	    return err // handle.ErrNoSuchHandle
//	}
//	defer reg.Release(name)
package handle
