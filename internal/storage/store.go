package storage

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/exp/slices"
)

var (
	// ErrKeyNotFound is returned when a key doesn't exist in the store
	ErrKeyNotFound = errors.New("storage: key not found")

	// ErrClosed is returned by any operation on a closed handle
	ErrClosed = errors.New("storage: handle closed")

	// ErrBadSpec is returned when a store spec is not of the form type:address
	ErrBadSpec = errors.New("storage: store spec must be type:address")

	// ErrUnknownDriver is returned when no driver is registered for a type
	ErrUnknownDriver = errors.New("storage: unknown driver")
)

// Driver opens handles for one kind of store.
type Driver interface {
	Open(address string) (Handle, error)
}

// Handle is an open persistent store.
// All implementations must be safe for concurrent access, apart from the
// First/Next cursor which belongs to a single caller at a time.
type Handle interface {
	// Get retrieves a value by key
	// Returns ErrKeyNotFound if the key doesn't exist
	Get(key string) ([]byte, error)

	// Put stores a value with the given key
	// Overwrites any existing value for the key
	Put(key string, value []byte) error

	// First positions the cursor at the lowest key and returns its record.
	// ok is false when the store is empty.
	First() (key string, value []byte, ok bool)

	// Next advances the cursor. ok is false past the last record.
	Next() (key string, value []byte, ok bool)

	// Delete removes a key-value pair
	// No error if key doesn't exist
	Delete(key string) error

	// Close releases the handle
	Close() error

	// Err returns the last error produced by the handle, if any
	Err() error

	// Stats returns storage statistics
	Stats() StoreStats
}

// StoreStats contains statistics about the store
type StoreStats struct {
	Keys  int `json:"keys"`  // Number of keys
	Bytes int `json:"bytes"` // Total size of all values in bytes
}

// ParseSpec splits a "type:address" store spec.
func ParseSpec(spec string) (typ, address string, err error) {
	typ, address, found := strings.Cut(spec, ":")
	if !found || typ == "" || address == "" {
		return "", "", fmt.Errorf("%w: %q", ErrBadSpec, spec)
	}
	return typ, address, nil
}

// Registry maps driver type names to drivers.
type Registry struct {
	mu      sync.RWMutex
	drivers map[string]Driver
}

// NewRegistry creates an empty driver registry.
func NewRegistry() *Registry {
	return &Registry{drivers: make(map[string]Driver)}
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// DefaultRegistry returns the process-wide registry with the mem and yaml
// drivers installed.
func DefaultRegistry() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
		defaultRegistry.Register("mem", NewMemDriver())
		defaultRegistry.Register("yaml", YAMLDriver{})
	})
	return defaultRegistry
}

// Register installs d under name, replacing any previous driver.
func (r *Registry) Register(name string, d Driver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers[name] = d
}

// Drivers returns the registered type names in sorted order.
func (r *Registry) Drivers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.drivers))
	for name := range r.drivers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Open resolves spec to a driver and opens the address it names.
func (r *Registry) Open(spec string) (Handle, error) {
	typ, address, err := ParseSpec(spec)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	d, ok := r.drivers[typ]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownDriver, typ)
	}
	return d.Open(address)
}

// cursor walks a sorted key snapshot taken at First.
type cursor struct {
	keys []string
	pos  int
}

func (c *cursor) reset(keys []string) {
	slices.Sort(keys)
	c.keys = keys
	c.pos = 0
}

func (c *cursor) next() (string, bool) {
	if c.pos >= len(c.keys) {
		return "", false
	}
	k := c.keys[c.pos]
	c.pos++
	return k, true
}
