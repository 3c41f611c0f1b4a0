package handle

import (
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"golang.org/x/exp/slices"
)

// ErrNoSuchHandle is returned when a handle does not resolve to a live object.
var ErrNoSuchHandle = errors.New("handle: no such handle")

// DefaultBuckets is the bucket count used when New is given a non-positive value.
const DefaultBuckets = 32

// Registry maps generated handles to objects of type T.
// All methods are safe for concurrent use.
type Registry[T any] struct {
	prefix  string
	buckets []*bucket[T]
	next    atomic.Uint64
}

type bucket[T any] struct {
	mu    sync.Mutex
	cond  *sync.Cond // signaled when an entry's refs drop
	items map[string]*entry[T]
	dying map[string]*entry[T] // removed but still pinned
}

type entry[T any] struct {
	value T
	refs  int // goroutines currently between Acquire and Release
}

// New creates a registry whose handles are prefix followed by a decimal counter.
func New[T any](prefix string, numBuckets int) *Registry[T] {
	if numBuckets <= 0 {
		numBuckets = DefaultBuckets
	}
	r := &Registry[T]{
		prefix:  prefix,
		buckets: make([]*bucket[T], numBuckets),
	}
	for i := range r.buckets {
		b := &bucket[T]{
			items: make(map[string]*entry[T]),
			dying: make(map[string]*entry[T]),
		}
		b.cond = sync.NewCond(&b.mu)
		r.buckets[i] = b
	}
	return r
}

// bucketFor picks the bucket owning name using FNV-1a.
func (r *Registry[T]) bucketFor(name string) *bucket[T] {
	h := fnv.New32a()
	h.Write([]byte(name))
	return r.buckets[h.Sum32()%uint32(len(r.buckets))]
}

// Add registers v under a freshly generated handle and returns the handle.
func (r *Registry[T]) Add(v T) string {
	name := fmt.Sprintf("%s%d", r.prefix, r.next.Add(1))
	b := r.bucketFor(name)
	b.mu.Lock()
	b.items[name] = &entry[T]{value: v}
	b.mu.Unlock()
	return name
}

// Acquire resolves name and pins the entry until Release is called.
func (r *Registry[T]) Acquire(name string) (T, error) {
	b := r.bucketFor(name)
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.items[name]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %q", ErrNoSuchHandle, name)
	}
	e.refs++
	return e.value, nil
}

// Release unpins an entry previously returned by Acquire.
// The entry may already have been removed from the table.
func (r *Registry[T]) Release(name string) {
	b := r.bucketFor(name)
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.items[name]
	if !ok {
		e, ok = b.dying[name]
	}
	if ok && e.refs > 0 {
		e.refs--
		b.cond.Broadcast()
	}
}

// Lookup resolves name without pinning. Use it only for objects whose
// lifetime is managed elsewhere.
func (r *Registry[T]) Lookup(name string) (T, bool) {
	b := r.bucketFor(name)
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.items[name]
	if !ok {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Remove deletes name from the registry once every in-flight user has
// released it. check is consulted before removal and again after the drain;
// if it fails the second time the entry is put back and the error returned.
// check may be nil.
func (r *Registry[T]) Remove(name string, check func(T) error) (T, error) {
	var zero T
	b := r.bucketFor(name)
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.items[name]
	if !ok {
		return zero, fmt.Errorf("%w: %q", ErrNoSuchHandle, name)
	}
	if check != nil {
		if err := check(e.value); err != nil {
			return zero, err
		}
	}

	delete(b.items, name)
	b.dying[name] = e
	for e.refs > 0 {
		b.cond.Wait()
	}
	delete(b.dying, name)

	if check != nil {
		if err := check(e.value); err != nil {
			b.items[name] = e
			return zero, err
		}
	}
	return e.value, nil
}

// Names returns every live handle, sorted.
func (r *Registry[T]) Names() []string {
	var names []string
	for _, b := range r.buckets {
		b.mu.Lock()
		for name := range b.items {
			names = append(names, name)
		}
		b.mu.Unlock()
	}
	slices.Sort(names)
	return names
}

// Len returns the number of live handles.
func (r *Registry[T]) Len() int {
	n := 0
	for _, b := range r.buckets {
		b.mu.Lock()
		n += len(b.items)
		b.mu.Unlock()
	}
	return n
}

// Range calls fn for every live entry until fn returns false.
// fn runs with the entry's bucket locked and must not call back into r.
func (r *Registry[T]) Range(fn func(name string, v T) bool) {
	for _, b := range r.buckets {
		b.mu.Lock()
		for name, e := range b.items {
			if !fn(name, e.value) {
				b.mu.Unlock()
				return
			}
		}
		b.mu.Unlock()
	}
}
