package keyspace

import (
	"fmt"
	"log"

	"golang.org/x/exp/slices"

	"github.com/dreamware/threadkit/internal/storage"
	"github.com/dreamware/threadkit/internal/value"
)

// Binding describes one bound array.
type Binding struct {
	Array string `json:"array"`
	Store string `json:"store"`
}

// claim reserves a store spec for an array.
func (k *Keyspace) claim(spec, name string) error {
	k.bindMu.Lock()
	defer k.bindMu.Unlock()
	if owner, ok := k.bindings[spec]; ok {
		return fmt.Errorf("%w: %s serves array %q", ErrAlreadyBound, spec, owner)
	}
	k.bindings[spec] = name
	return nil
}

func (k *Keyspace) unclaim(spec string) {
	k.bindMu.Lock()
	defer k.bindMu.Unlock()
	delete(k.bindings, spec)
}

// Bind attaches the named array to the store described by spec
// ("type:address"). If the array exists its entries are written to the
// store; otherwise the array is created from the store's records. On any
// failure the array is left as it was and unbound.
func (k *Keyspace) Bind(name, spec string) error {
	typ, address, err := storage.ParseSpec(spec)
	if err != nil {
		return err
	}
	spec = typ + ":" + address

	b, unlock := k.lockBucket(name)
	defer unlock()

	a, exists := b.arrays[name]
	if exists && a.store != nil {
		return fmt.Errorf("%w: array %q is bound to %s", ErrAlreadyBound, name, a.spec)
	}
	if err := k.claim(spec, name); err != nil {
		return err
	}

	h, err := k.drivers.Open(spec)
	if err != nil {
		k.unclaim(spec)
		return &StoreError{Op: "open", Array: name, Err: err}
	}

	if exists {
		for key, v := range a.entries {
			if err := h.Put(key, []byte(v.String())); err != nil {
				h.Close()
				k.unclaim(spec)
				return &StoreError{Op: "put", Array: name, Key: key, Err: err}
			}
		}
	} else {
		a = &array{name: name, entries: make(map[string]value.Value)}
		for key, raw, ok := h.First(); ok; key, raw, ok = h.Next() {
			a.entries[key] = value.String(raw)
		}
		if err := h.Err(); err != nil {
			h.Close()
			k.unclaim(spec)
			return &StoreError{Op: "load", Array: name, Err: err}
		}
		b.arrays[name] = a
	}

	a.store = h
	a.spec = spec
	log.Printf("keyspace: bound %s to %s (%d keys)", name, spec, len(a.entries))
	return nil
}

// Unbind closes the array's store and detaches it. Later mutations are
// memory-only.
func (k *Keyspace) Unbind(name string) error {
	return k.withArray(name, false, func(a *array) error {
		if a.store == nil {
			return fmt.Errorf("%w: array %q", ErrNotBound, name)
		}
		return k.detach(a)
	})
}

// detach closes and forgets the array's store. The array is detached even
// if closing fails. Caller holds the bucket lock.
func (k *Keyspace) detach(a *array) error {
	h, spec := a.store, a.spec
	a.store, a.spec = nil, ""
	k.unclaim(spec)
	log.Printf("keyspace: unbound %s from %s", a.name, spec)
	if err := h.Close(); err != nil {
		return &StoreError{Op: "close", Array: a.name, Err: err}
	}
	return nil
}

// IsBound reports whether the named array is bound, and to which store.
func (k *Keyspace) IsBound(name string) (string, bool) {
	b, unlock := k.lockBucket(name)
	defer unlock()
	a, ok := b.arrays[name]
	if !ok || a.store == nil {
		return "", false
	}
	return a.spec, true
}

// Bound lists every binding, sorted by array name.
func (k *Keyspace) Bound() []Binding {
	k.bindMu.Lock()
	out := make([]Binding, 0, len(k.bindings))
	for spec, name := range k.bindings {
		out = append(out, Binding{Array: name, Store: spec})
	}
	k.bindMu.Unlock()
	slices.SortFunc(out, func(x, y Binding) int {
		switch {
		case x.Array < y.Array:
			return -1
		case x.Array > y.Array:
			return 1
		}
		return 0
	})
	return out
}

// Close unbinds every bound array. Arrays stay in memory.
func (k *Keyspace) Close() error {
	var first error
	for _, b := range k.Bound() {
		if err := k.Unbind(b.Array); err != nil && first == nil {
			first = err
		}
	}
	return first
}
