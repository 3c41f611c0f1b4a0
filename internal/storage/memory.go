package storage

import (
	"sync"

	"golang.org/x/exp/slices"
)

// MemoryStore is a named record set kept in memory. Keys are held in sorted
// order so handles can walk it without taking a snapshot. Values are copied
// on the way in and out.
type MemoryStore struct {
	name string

	mu    sync.RWMutex
	data  map[string][]byte
	keys  []string // sorted
	bytes int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(name string) *MemoryStore {
	return &MemoryStore{name: name, data: make(map[string][]byte)}
}

// Name returns the address the store was opened under.
func (m *MemoryStore) Name() string { return m.name }

// Get returns a copy of the value under key, or ErrKeyNotFound.
func (m *MemoryStore) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return slices.Clone(v), nil
}

// Put stores a copy of value under key.
func (m *MemoryStore) Put(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.data[key]; ok {
		m.bytes -= len(old)
	} else {
		i, _ := slices.BinarySearch(m.keys, key)
		m.keys = slices.Insert(m.keys, i, key)
	}
	m.data[key] = append([]byte{}, value...)
	m.bytes += len(value)
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.data[key]
	if !ok {
		return nil
	}
	delete(m.data, key)
	m.bytes -= len(old)
	if i, found := slices.BinarySearch(m.keys, key); found {
		m.keys = slices.Delete(m.keys, i, i+1)
	}
	return nil
}

// Keys returns every key in ascending order.
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.keys)
}

// seek returns the first record whose key is >= key, or > key when after
// is set.
func (m *MemoryStore) seek(key string, after bool) (string, []byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, found := slices.BinarySearch(m.keys, key)
	if found && after {
		i++
	}
	if i >= len(m.keys) {
		return "", nil, false
	}
	k := m.keys[i]
	return k, slices.Clone(m.data[k]), true
}

// Stats returns the key count and total value size.
func (m *MemoryStore) Stats() StoreStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return StoreStats{Keys: len(m.keys), Bytes: m.bytes}
}

// MemDriver hands out handles onto named MemoryStores that live for the
// whole process. Opening the same name twice yields two handles onto the
// same records, and records outlive every handle.
type MemDriver struct {
	mu     sync.Mutex
	stores map[string]*MemoryStore
}

// NewMemDriver creates a driver with no stores.
func NewMemDriver() *MemDriver {
	return &MemDriver{stores: make(map[string]*MemoryStore)}
}

// Open returns a handle on the store called name, creating it if needed.
func (d *MemDriver) Open(name string) (Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.stores[name]
	if !ok {
		s = NewMemoryStore(name)
		d.stores[name] = s
	}
	return &memHandle{store: s}, nil
}

// Store returns the named store, or nil if it was never opened.
func (d *MemDriver) Store(name string) *MemoryStore {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stores[name]
}

type memHandle struct {
	store *MemoryStore

	mu      sync.Mutex
	closed  bool
	lastErr error
	pos     string // key of the last record returned
	walking bool
}

func (h *memHandle) check() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		h.lastErr = ErrClosed
		return ErrClosed
	}
	return nil
}

func (h *memHandle) fail(err error) error {
	if err != nil {
		h.mu.Lock()
		h.lastErr = err
		h.mu.Unlock()
	}
	return err
}

func (h *memHandle) Get(key string) ([]byte, error) {
	if err := h.check(); err != nil {
		return nil, err
	}
	v, err := h.store.Get(key)
	return v, h.fail(err)
}

func (h *memHandle) Put(key string, value []byte) error {
	if err := h.check(); err != nil {
		return err
	}
	return h.fail(h.store.Put(key, value))
}

func (h *memHandle) Delete(key string) error {
	if err := h.check(); err != nil {
		return err
	}
	return h.fail(h.store.Delete(key))
}

// First and Next walk the live store. Records deleted before the cursor
// reaches them are skipped; records added ahead of it are seen.
func (h *memHandle) First() (string, []byte, bool) {
	if h.check() != nil {
		return "", nil, false
	}
	return h.step("", false)
}

func (h *memHandle) Next() (string, []byte, bool) {
	if h.check() != nil {
		return "", nil, false
	}
	h.mu.Lock()
	pos, walking := h.pos, h.walking
	h.mu.Unlock()
	if !walking {
		return "", nil, false
	}
	return h.step(pos, true)
}

func (h *memHandle) step(from string, after bool) (string, []byte, bool) {
	k, v, ok := h.store.seek(from, after)
	h.mu.Lock()
	h.pos, h.walking = k, ok
	h.mu.Unlock()
	return k, v, ok
}

func (h *memHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		h.lastErr = ErrClosed
		return ErrClosed
	}
	h.closed = true
	return nil
}

func (h *memHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastErr
}

func (h *memHandle) Stats() StoreStats { return h.store.Stats() }
