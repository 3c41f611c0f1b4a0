package keyspace

import (
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/gobwas/glob"
	"golang.org/x/exp/slices"

	"github.com/dreamware/threadkit/internal/locks"
	"github.com/dreamware/threadkit/internal/storage"
	"github.com/dreamware/threadkit/internal/value"
)

// DefaultBuckets is the bucket count used when none is configured.
const DefaultBuckets = 31

// Keyspace is a sharded collection of named arrays.
type Keyspace struct {
	buckets []*bucket
	drivers *storage.Registry

	bindMu   sync.Mutex
	bindings map[string]string // store spec -> array name

	ops OperationStats
}

// OperationStats tracks operation counts
type OperationStats struct {
	Gets    uint64 `json:"gets"`    // Number of value reads
	Sets    uint64 `json:"sets"`    // Number of value writes
	Deletes uint64 `json:"deletes"` // Number of keys removed
}

// Stats is a snapshot of the keyspace
type Stats struct {
	Buckets int            `json:"buckets"`
	Arrays  int            `json:"arrays"`
	Keys    int            `json:"keys"`
	Bound   int            `json:"bound"`
	Ops     OperationStats `json:"ops"`
}

// KV is one key/value pair of an array.
type KV struct {
	Key   string
	Value value.Value
}

type bucket struct {
	lock   *locks.RecursiveMutex
	arrays map[string]*array
}

// array is a SharedArray. Its fields are guarded by the owning bucket's lock.
type array struct {
	name    string
	entries map[string]value.Value
	store   storage.Handle
	spec    string
}

// Option configures a Keyspace.
type Option func(*Keyspace)

// WithBuckets sets the number of buckets. Values below 1 are ignored.
func WithBuckets(n int) Option {
	return func(k *Keyspace) {
		if n > 0 {
			k.buckets = make([]*bucket, n)
		}
	}
}

// WithDrivers sets the registry Bind resolves store specs against.
func WithDrivers(r *storage.Registry) Option {
	return func(k *Keyspace) { k.drivers = r }
}

// New creates an empty keyspace.
func New(opts ...Option) *Keyspace {
	k := &Keyspace{
		buckets:  make([]*bucket, DefaultBuckets),
		drivers:  storage.DefaultRegistry(),
		bindings: make(map[string]string),
	}
	for _, opt := range opts {
		opt(k)
	}
	for i := range k.buckets {
		k.buckets[i] = &bucket{
			lock:   locks.NewRecursiveMutex(),
			arrays: make(map[string]*array),
		}
	}
	return k
}

func (k *Keyspace) bucketFor(name string) *bucket {
	h := fnv.New32a()
	h.Write([]byte(name))
	return k.buckets[h.Sum32()%uint32(len(k.buckets))]
}

// lockBucket locks the bucket for name and returns its unlock function.
func (k *Keyspace) lockBucket(name string) (*bucket, func()) {
	b := k.bucketFor(name)
	_ = b.lock.Lock()
	return b, func() { _ = b.lock.Unlock() }
}

// withArray runs fn with the named array while its bucket is locked,
// creating the array first when create is set.
func (k *Keyspace) withArray(name string, create bool, fn func(a *array) error) error {
	b, unlock := k.lockBucket(name)
	defer unlock()

	a, ok := b.arrays[name]
	if !ok {
		if !create {
			return noArray(name)
		}
		a = &array{name: name, entries: make(map[string]value.Value)}
		b.arrays[name] = a
	}
	return fn(a)
}

// put writes v through to the store, then to memory.
func (a *array) put(key string, v value.Value) error {
	if a.store != nil {
		if err := a.store.Put(key, []byte(v.String())); err != nil {
			return &StoreError{Op: "put", Array: a.name, Key: key, Err: err}
		}
	}
	a.entries[key] = v
	return nil
}

// del removes key from the store, then from memory.
func (a *array) del(key string) error {
	if a.store != nil {
		if err := a.store.Delete(key); err != nil {
			return &StoreError{Op: "delete", Array: a.name, Key: key, Err: err}
		}
	}
	delete(a.entries, key)
	return nil
}

func (a *array) get(key string) (value.Value, error) {
	v, ok := a.entries[key]
	if !ok {
		return nil, noKey(a.name, key)
	}
	return v, nil
}

// matcher compiles a glob pattern. The empty pattern matches everything.
func matcher(pattern string) (func(string) bool, error) {
	if pattern == "" || pattern == "*" {
		return func(string) bool { return true }, nil
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return g.Match, nil
}

// Names returns the names of all arrays matching pattern, sorted.
func (k *Keyspace) Names(pattern string) ([]string, error) {
	match, err := matcher(pattern)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, b := range k.buckets {
		_ = b.lock.Lock()
		for name := range b.arrays {
			if match(name) {
				names = append(names, name)
			}
		}
		_ = b.lock.Unlock()
	}
	slices.Sort(names)
	return names, nil
}

// Lock runs fn while holding the bucket lock of the named array. The array
// need not exist. fn may call other keyspace operations.
func (k *Keyspace) Lock(name string, fn func() error) error {
	_, unlock := k.lockBucket(name)
	defer unlock()
	return fn()
}

// Stats returns a snapshot of array and key counts and operation totals.
func (k *Keyspace) Stats() Stats {
	st := Stats{
		Buckets: len(k.buckets),
		Ops: OperationStats{
			Gets:    atomic.LoadUint64(&k.ops.Gets),
			Sets:    atomic.LoadUint64(&k.ops.Sets),
			Deletes: atomic.LoadUint64(&k.ops.Deletes),
		},
	}
	for _, b := range k.buckets {
		_ = b.lock.Lock()
		st.Arrays += len(b.arrays)
		for _, a := range b.arrays {
			st.Keys += len(a.entries)
			if a.store != nil {
				st.Bound++
			}
		}
		_ = b.lock.Unlock()
	}
	return st
}
