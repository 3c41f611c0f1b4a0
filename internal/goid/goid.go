// Package goid identifies the calling goroutine.
//
// Ownership rules in this module (mutex owners, writer identity, condition
// variable waits, the current registered thread) are keyed by the id of the
// goroutine doing the call. The id is parsed from the header line of the
// goroutine's own stack trace, which has the form
//
//	goroutine 123 [running]:
//
// and is stable for the lifetime of the goroutine.
package goid

import "runtime"

// ID is a goroutine identifier. Zero never names a live goroutine.
type ID int64

// Current returns the id of the calling goroutine.
func Current() ID {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return parse(buf[:n])
}

// parse extracts the goroutine id from a stack trace header.
// Returns 0 if buf does not start with "goroutine <digits>".
func parse(buf []byte) ID {
	const prefix = "goroutine "
	if len(buf) < len(prefix) || string(buf[:len(prefix)]) != prefix {
		return 0
	}

	var id ID
	for i := len(prefix); i < len(buf); i++ {
		c := buf[i]
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + ID(c-'0')
	}
	return id
}
