// Package storage defines the persistent store driver interface that shared
// arrays bind to, and ships the two drivers the runtime uses out of the box.
//
// # Overview
//
// A bound array mirrors every mutation into a Handle opened by a Driver.
// Drivers are selected by a "type:address" spec string, resolved through a
// Registry:
//
//	mem:sessions        process-wide named in-memory store
//	yaml:/var/lib/x.yml ordered map persisted to a YAML file
//
// # Handle contract
//
// A Handle is an open store. Its methods mirror the classic dbm shape:
//
//   - Get(key)        value or ErrKeyNotFound
//   - Put(key, value) insert or overwrite
//   - First(), Next() iterate every record in key order
//   - Delete(key)     remove, idempotent
//   - Close()         release the handle; later calls fail with ErrClosed
//   - Err()           the last error the handle produced
//
// Handles returned by the built-in drivers are safe for concurrent use, but
// the iteration cursor is per handle: callers iterating from more than one
// goroutine must serialize First/Next themselves. The keyspace always holds
// the array's bucket lock while it iterates.
//
// # Adding a driver
//
//	reg := storage.NewRegistry()
//	reg.Register("mem", storage.NewMemDriver())
//	reg.Register("bolt", myBoltDriver{})
//	h, err := reg.Open("bolt:/tmp/data.db")
//
// Values are opaque bytes. The keyspace stores the canonical string form of
// each value, so a driver never sees structured data.
package storage
