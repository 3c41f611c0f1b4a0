// Package keyspace implements the shared variable store: a process-wide
// collection of named arrays that any thread can read and mutate, with
// optional mirroring of an array into a persistent store.
//
// # Overview
//
// A Keyspace owns a fixed number of buckets. Each array name hashes to one
// bucket, and the bucket's lock guards every array that lands in it:
//
//	name ──fnv32a──▶ bucket[h % n] ──▶ { "users": array, "jobs": array }
//	                    │
//	                    └── RecursiveMutex
//
// Operations on arrays in different buckets run in parallel. Operations on
// the same key are totally ordered by the bucket lock.
//
// # Values
//
// Every value crossing into or out of the keyspace is duplicated with
// value.Copy. A caller that mutates a List it got back from Get never
// affects what other threads see. In-place mutators (Append, Incr, Lappend,
// Pop, Move) work on the stored value under the bucket lock and avoid the
// copy-out, copy-back round trip.
//
// # Persistence
//
// Bind attaches an array to a store opened through a storage.Registry with a
// "type:address" spec. Binding an existing array flushes its entries into
// the store; binding a new array loads every record of the store. One
// address serves at most one array at a time.
//
// While bound, every mutation is written to the store first and committed
// to memory only if the store accepted it. A store failure surfaces as a
// *StoreError and leaves the array unchanged.
//
// # Atomic sequences
//
// Lock runs a callback while holding the array's bucket lock. The bucket
// lock is recursive, so the callback may call any keyspace operation on the
// same bucket without deadlocking:
//
//	err := ks.Lock("acct", func() error {
//		bal, err := ks.Get("acct", "balance", false)
//		if err != nil {
//			return err
//		}
//		...
//		return ks.Set("acct", "balance", value.Int(n-10))
//	})
//
// The lock is released when the callback returns, errors or panics.
package keyspace
