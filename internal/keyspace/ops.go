package keyspace

import (
	"strings"
	"sync/atomic"

	"golang.org/x/exp/slices"

	"github.com/dreamware/threadkit/internal/value"
)

// Get returns a copy of the value stored under key. With create set, a
// missing array is created and a missing key is created holding the empty
// string.
func (k *Keyspace) Get(name, key string, create bool) (value.Value, error) {
	var out value.Value
	err := k.withArray(name, create, func(a *array) error {
		v, err := a.get(key)
		if err != nil {
			if !create {
				return err
			}
			v = value.String("")
			if err := a.put(key, v); err != nil {
				return err
			}
		}
		out = value.Copy(v)
		return nil
	})
	if err == nil {
		atomic.AddUint64(&k.ops.Gets, 1)
	}
	return out, err
}

// Set stores a copy of v under key, creating the array if needed.
func (k *Keyspace) Set(name, key string, v value.Value) error {
	err := k.withArray(name, true, func(a *array) error {
		return a.put(key, value.Copy(v))
	})
	if err == nil {
		atomic.AddUint64(&k.ops.Sets, 1)
	}
	return err
}

// Exists reports whether key exists in the named array. With no key it
// reports whether the array exists.
func (k *Keyspace) Exists(name string, key ...string) bool {
	b, unlock := k.lockBucket(name)
	defer unlock()
	a, ok := b.arrays[name]
	if !ok {
		return false
	}
	if len(key) == 0 {
		return true
	}
	_, ok = a.entries[key[0]]
	return ok
}

// Unset removes the given keys from the array. With no keys it removes the
// whole array; a bound array is unbound first and its store records are
// left in place.
func (k *Keyspace) Unset(name string, keys ...string) error {
	b, unlock := k.lockBucket(name)
	defer unlock()

	a, ok := b.arrays[name]
	if !ok {
		return noArray(name)
	}
	if len(keys) == 0 {
		if a.store != nil {
			if err := k.detach(a); err != nil {
				return err
			}
		}
		atomic.AddUint64(&k.ops.Deletes, uint64(len(a.entries)))
		delete(b.arrays, name)
		return nil
	}
	for _, key := range keys {
		if _, ok := a.entries[key]; !ok {
			return noKey(name, key)
		}
		if err := a.del(key); err != nil {
			return err
		}
		atomic.AddUint64(&k.ops.Deletes, 1)
	}
	return nil
}

// Append concatenates strs to the string form of the value under key and
// returns the result. A missing key starts out empty.
func (k *Keyspace) Append(name, key string, strs ...string) (value.Value, error) {
	var out value.Value
	err := k.withArray(name, true, func(a *array) error {
		var sb strings.Builder
		if v, ok := a.entries[key]; ok {
			sb.WriteString(v.String())
		}
		for _, s := range strs {
			sb.WriteString(s)
		}
		nv := value.String(sb.String())
		if err := a.put(key, nv); err != nil {
			return err
		}
		out = nv
		return nil
	})
	if err == nil {
		atomic.AddUint64(&k.ops.Sets, 1)
	}
	return out, err
}

// Incr adds delta to the integer under key and returns the new value. A
// missing key counts as zero.
func (k *Keyspace) Incr(name, key string, delta int64) (int64, error) {
	var out int64
	err := k.withArray(name, true, func(a *array) error {
		var n int64
		if v, ok := a.entries[key]; ok {
			var err error
			if n, err = value.AsInt(v); err != nil {
				return err
			}
		}
		n += delta
		if err := a.put(key, value.Int(n)); err != nil {
			return err
		}
		out = n
		return nil
	})
	if err == nil {
		atomic.AddUint64(&k.ops.Sets, 1)
	}
	return out, err
}

// Pop removes key and returns its value. The stored value is handed over
// without copying since nothing else references it afterwards.
func (k *Keyspace) Pop(name, key string) (value.Value, error) {
	var out value.Value
	err := k.withArray(name, false, func(a *array) error {
		v, err := a.get(key)
		if err != nil {
			return err
		}
		if err := a.del(key); err != nil {
			return err
		}
		out = v
		return nil
	})
	if err == nil {
		atomic.AddUint64(&k.ops.Deletes, 1)
	}
	return out, err
}

// Move renames key from to key to within one array, replacing any value
// already under to.
func (k *Keyspace) Move(name, from, to string) error {
	return k.withArray(name, false, func(a *array) error {
		v, err := a.get(from)
		if err != nil {
			return err
		}
		if from == to {
			return nil
		}
		if err := a.put(to, v); err != nil {
			return err
		}
		return a.del(from)
	})
}

// Lappend appends elements to the list under key and returns the new list
// length. A non-list value is parsed from its string form.
func (k *Keyspace) Lappend(name, key string, elems ...value.Value) (int, error) {
	var n int
	err := k.withArray(name, true, func(a *array) error {
		var l value.List
		if v, ok := a.entries[key]; ok {
			var err error
			if l, err = value.AsList(v); err != nil {
				return err
			}
		}
		nl := make(value.List, len(l), len(l)+len(elems))
		copy(nl, l)
		for _, e := range elems {
			nl = append(nl, value.Copy(e))
		}
		if err := a.put(key, nl); err != nil {
			return err
		}
		n = len(nl)
		return nil
	})
	if err == nil {
		atomic.AddUint64(&k.ops.Sets, 1)
	}
	return n, err
}

// Llength returns the number of list elements under key.
func (k *Keyspace) Llength(name, key string) (int, error) {
	var n int
	err := k.withArray(name, false, func(a *array) error {
		v, err := a.get(key)
		if err != nil {
			return err
		}
		l, err := value.AsList(v)
		if err != nil {
			return err
		}
		n = len(l)
		return nil
	})
	return n, err
}

// Lindex returns a copy of list element i under key. Negative indexes count
// from the end. An index out of range yields the empty string.
func (k *Keyspace) Lindex(name, key string, i int) (value.Value, error) {
	var out value.Value
	err := k.withArray(name, false, func(a *array) error {
		v, err := a.get(key)
		if err != nil {
			return err
		}
		l, err := value.AsList(v)
		if err != nil {
			return err
		}
		if i < 0 {
			i += len(l)
		}
		if i < 0 || i >= len(l) {
			out = value.String("")
			return nil
		}
		out = value.Copy(l[i])
		return nil
	})
	if err == nil {
		atomic.AddUint64(&k.ops.Gets, 1)
	}
	return out, err
}

// ArrayGet returns copies of every pair whose key matches pattern, sorted by
// key.
func (k *Keyspace) ArrayGet(name, pattern string) ([]KV, error) {
	match, err := matcher(pattern)
	if err != nil {
		return nil, err
	}
	var out []KV
	err = k.withArray(name, false, func(a *array) error {
		for key, v := range a.entries {
			if match(key) {
				out = append(out, KV{Key: key, Value: value.Copy(v)})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(out, func(x, y KV) int { return strings.Compare(x.Key, y.Key) })
	atomic.AddUint64(&k.ops.Gets, uint64(len(out)))
	return out, nil
}

// ArraySet stores copies of every pair, creating the array if needed. On a
// store failure the pairs written so far stay written.
func (k *Keyspace) ArraySet(name string, pairs []KV) error {
	return k.withArray(name, true, func(a *array) error {
		for _, p := range pairs {
			if err := a.put(p.Key, value.Copy(p.Value)); err != nil {
				return err
			}
			atomic.AddUint64(&k.ops.Sets, 1)
		}
		return nil
	})
}

// ArrayReset replaces the whole content of the array with pairs.
func (k *Keyspace) ArrayReset(name string, pairs []KV) error {
	return k.withArray(name, true, func(a *array) error {
		keep := make(map[string]bool, len(pairs))
		for _, p := range pairs {
			keep[p.Key] = true
		}
		for key := range a.entries {
			if keep[key] {
				continue
			}
			if err := a.del(key); err != nil {
				return err
			}
			atomic.AddUint64(&k.ops.Deletes, 1)
		}
		for _, p := range pairs {
			if err := a.put(p.Key, value.Copy(p.Value)); err != nil {
				return err
			}
			atomic.AddUint64(&k.ops.Sets, 1)
		}
		return nil
	})
}

// ArrayNames returns the keys of the array matching pattern, sorted.
func (k *Keyspace) ArrayNames(name, pattern string) ([]string, error) {
	match, err := matcher(pattern)
	if err != nil {
		return nil, err
	}
	var keys []string
	err = k.withArray(name, false, func(a *array) error {
		for key := range a.entries {
			if match(key) {
				keys = append(keys, key)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(keys)
	return keys, nil
}

// ArraySize returns the number of keys in the array.
func (k *Keyspace) ArraySize(name string) (int, error) {
	var n int
	err := k.withArray(name, false, func(a *array) error {
		n = len(a.entries)
		return nil
	})
	return n, err
}
