package keyspace

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSuchArray is returned when an array does not exist and the
	// operation does not create it.
	ErrNoSuchArray = errors.New("keyspace: no such array")

	// ErrNoSuchKey is returned when a key does not exist in an array.
	ErrNoSuchKey = errors.New("keyspace: no such key")

	// ErrAlreadyBound is returned when binding an array that is already
	// bound, or a store address already serving another array.
	ErrAlreadyBound = errors.New("keyspace: already bound")

	// ErrNotBound is returned when unbinding an array with no store.
	ErrNotBound = errors.New("keyspace: not bound")
)

// StoreError wraps a persistent store failure.
type StoreError struct {
	Op    string // put, delete, open, close
	Array string
	Key   string
	Err   error
}

func (e *StoreError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("keyspace: store %s %s(%s): %v", e.Op, e.Array, e.Key, e.Err)
	}
	return fmt.Sprintf("keyspace: store %s %s: %v", e.Op, e.Array, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func noArray(name string) error {
	return fmt.Errorf("%w %q", ErrNoSuchArray, name)
}

func noKey(array, key string) error {
	return fmt.Errorf("%w %q in array %q", ErrNoSuchKey, key, array)
}
