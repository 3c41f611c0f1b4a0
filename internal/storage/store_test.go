package storage

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// TestMemoryStore tests the in-memory store implementation
func TestMemoryStore(t *testing.T) {
	t.Run("new store is empty", func(t *testing.T) {
		store := NewMemoryStore("t")

		if keys := store.Keys(); len(keys) != 0 {
			t.Errorf("Expected empty store, got %d keys", len(keys))
		}

		_, err := store.Get("nonexistent")
		if err != ErrKeyNotFound {
			t.Errorf("Expected ErrKeyNotFound, got %v", err)
		}
	})

	t.Run("overwrite existing key", func(t *testing.T) {
		store := NewMemoryStore("t")

		if err := store.Put("key1", []byte("value1")); err != nil {
			t.Fatalf("Failed to put initial value: %v", err)
		}
		if err := store.Put("key1", []byte("value2")); err != nil {
			t.Fatalf("Failed to overwrite value: %v", err)
		}

		value, err := store.Get("key1")
		if err != nil {
			t.Fatalf("Failed to get value: %v", err)
		}
		if !bytes.Equal(value, []byte("value2")) {
			t.Errorf("Expected 'value2', got %s", string(value))
		}
	})

	t.Run("returned values are copies", func(t *testing.T) {
		store := NewMemoryStore("t")
		in := []byte("abc")
		store.Put("k", in)
		in[0] = 'X'

		out, _ := store.Get("k")
		out[1] = 'Y'

		again, _ := store.Get("k")
		if string(again) != "abc" {
			t.Errorf("Store shares memory with callers, got %q", again)
		}
	})

	t.Run("delete non-existent key", func(t *testing.T) {
		store := NewMemoryStore("t")
		if err := store.Delete("nonexistent"); err != nil {
			t.Errorf("Delete should be idempotent, got %v", err)
		}
	})
}

// TestMemoryStoreConcurrency hammers one store from many goroutines
func TestMemoryStoreConcurrency(t *testing.T) {
	store := NewMemoryStore("t")
	numGoroutines := 50
	opsPerGoroutine := 100

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < opsPerGoroutine; j++ {
				key := fmt.Sprintf("key-%d-%d", id, j%10)
				store.Put(key, []byte(key))
				store.Get(key)
				if j%3 == 0 {
					store.Delete(key)
				}
			}
		}(i)
	}
	wg.Wait()

	for _, key := range store.Keys() {
		v, err := store.Get(key)
		if err != nil {
			t.Errorf("Listed key %s missing: %v", key, err)
			continue
		}
		if string(v) != key {
			t.Errorf("Key %s holds %q", key, v)
		}
	}
}

// TestMemoryStoreStats verifies key and byte accounting
func TestMemoryStoreStats(t *testing.T) {
	store := NewMemoryStore("t")
	store.Put("a", []byte("12345"))
	store.Put("b", []byte("123"))
	store.Put("a", []byte("1"))

	stats := store.Stats()
	if stats.Keys != 2 {
		t.Errorf("Expected 2 keys, got %d", stats.Keys)
	}
	if stats.Bytes != 4 {
		t.Errorf("Expected 4 bytes, got %d", stats.Bytes)
	}
}

// handleContract runs the Handle contract against any driver
func handleContract(t *testing.T, open func(t *testing.T) Handle) {
	t.Run("get missing key", func(t *testing.T) {
		h := open(t)
		defer h.Close()

		_, err := h.Get("missing")
		if !errors.Is(err, ErrKeyNotFound) {
			t.Errorf("Expected ErrKeyNotFound, got %v", err)
		}
		if !errors.Is(h.Err(), ErrKeyNotFound) {
			t.Errorf("Err() should report last error, got %v", h.Err())
		}
	})

	t.Run("iterate in key order", func(t *testing.T) {
		h := open(t)
		defer h.Close()

		for _, k := range []string{"c", "a", "b"} {
			if err := h.Put(k, []byte("v"+k)); err != nil {
				t.Fatalf("Put(%s): %v", k, err)
			}
		}

		var keys []string
		for k, v, ok := h.First(); ok; k, v, ok = h.Next() {
			if string(v) != "v"+k {
				t.Errorf("Key %s has value %q", k, v)
			}
			keys = append(keys, k)
		}
		if fmt.Sprint(keys) != "[a b c]" {
			t.Errorf("Expected [a b c], got %v", keys)
		}
	})

	t.Run("iteration skips deleted records", func(t *testing.T) {
		h := open(t)
		defer h.Close()

		h.Put("a", []byte("1"))
		h.Put("b", []byte("2"))
		k, _, ok := h.First()
		if !ok || k != "a" {
			t.Fatalf("Expected first key a, got %q %v", k, ok)
		}
		h.Delete("b")
		if k, _, ok := h.Next(); ok {
			t.Errorf("Expected end of iteration, got %q", k)
		}
	})

	t.Run("empty store", func(t *testing.T) {
		h := open(t)
		defer h.Close()
		if _, _, ok := h.First(); ok {
			t.Error("Expected no records")
		}
	})

	t.Run("closed handle", func(t *testing.T) {
		h := open(t)
		if err := h.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
		if err := h.Put("k", nil); !errors.Is(err, ErrClosed) {
			t.Errorf("Expected ErrClosed from Put, got %v", err)
		}
		if err := h.Close(); !errors.Is(err, ErrClosed) {
			t.Errorf("Expected ErrClosed from second Close, got %v", err)
		}
	})
}

func TestMemDriver(t *testing.T) {
	handleContract(t, func(t *testing.T) Handle {
		h, err := NewMemDriver().Open(t.Name())
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		return h
	})

	t.Run("records outlive handles", func(t *testing.T) {
		d := NewMemDriver()
		h1, _ := d.Open("shared")
		h1.Put("k", []byte("v"))
		h1.Close()

		h2, _ := d.Open("shared")
		defer h2.Close()
		v, err := h2.Get("k")
		if err != nil || string(v) != "v" {
			t.Errorf("Expected v, got %q %v", v, err)
		}
		if d.Store("shared").Stats().Keys != 1 {
			t.Errorf("Expected one key in shared store")
		}
	})

	t.Run("cursor sees records added ahead", func(t *testing.T) {
		h, _ := NewMemDriver().Open("live")
		defer h.Close()
		h.Put("b", []byte("2"))
		h.Put("d", []byte("4"))

		if _, _, ok := h.Next(); ok {
			t.Error("Next before First should report no record")
		}
		k, _, _ := h.First()
		h.Put("c", []byte("3"))
		h.Put("a", []byte("1"))

		keys := []string{k}
		for k, _, ok := h.Next(); ok; k, _, ok = h.Next() {
			keys = append(keys, k)
		}
		if fmt.Sprint(keys) != "[b c d]" {
			t.Errorf("Expected [b c d], got %v", keys)
		}
	})
}

// TestMemoryStoreKeys verifies keys stay sorted across puts and deletes
func TestMemoryStoreKeys(t *testing.T) {
	store := NewMemoryStore("sorted")
	for _, k := range []string{"m", "c", "x", "a", "c"} {
		store.Put(k, []byte(k))
	}
	store.Delete("x")
	store.Delete("missing")

	if got := fmt.Sprint(store.Keys()); got != "[a c m]" {
		t.Errorf("Expected [a c m], got %s", got)
	}
	if store.Name() != "sorted" {
		t.Errorf("Expected name sorted, got %s", store.Name())
	}
}

func TestYAMLDriver(t *testing.T) {
	handleContract(t, func(t *testing.T) Handle {
		h, err := YAMLDriver{}.Open(filepath.Join(t.TempDir(), "store.yaml"))
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		return h
	})

	t.Run("persists across opens", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "store.yaml")

		h, err := YAMLDriver{}.Open(path)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		h.Put("name", []byte("threadkit"))
		h.Put("gone", []byte("x"))
		h.Delete("gone")
		h.Close()

		h, err = YAMLDriver{}.Open(path)
		if err != nil {
			t.Fatalf("Reopen: %v", err)
		}
		defer h.Close()
		v, err := h.Get("name")
		if err != nil || string(v) != "threadkit" {
			t.Errorf("Expected threadkit, got %q %v", v, err)
		}
		if _, err := h.Get("gone"); !errors.Is(err, ErrKeyNotFound) {
			t.Errorf("Deleted key came back: %v", err)
		}
	})

	t.Run("corrupt file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		os.WriteFile(path, []byte("- not\n- a map\n"), 0o644)
		if _, err := (YAMLDriver{}).Open(path); err == nil {
			t.Error("Expected parse error")
		}
	})

	t.Run("write failure keeps memory unchanged", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "sub")
		os.Mkdir(dir, 0o755)
		h, _ := YAMLDriver{}.Open(filepath.Join(dir, "s.yaml"))
		defer h.Close()
		os.RemoveAll(dir)

		if err := h.Put("k", []byte("v")); err == nil {
			t.Fatal("Expected write error")
		}
		if _, err := h.Get("k"); !errors.Is(err, ErrKeyNotFound) {
			t.Errorf("Failed put must not be visible, got %v", err)
		}
	})
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Register("mem", NewMemDriver())

	if _, err := reg.Open("mem:x"); err != nil {
		t.Errorf("Open mem:x: %v", err)
	}
	if _, err := reg.Open("nospec"); !errors.Is(err, ErrBadSpec) {
		t.Errorf("Expected ErrBadSpec, got %v", err)
	}
	if _, err := reg.Open("gdbm:/tmp/x"); !errors.Is(err, ErrUnknownDriver) {
		t.Errorf("Expected ErrUnknownDriver, got %v", err)
	}
	if got := DefaultRegistry().Drivers(); fmt.Sprint(got) != "[mem yaml]" {
		t.Errorf("Expected default drivers [mem yaml], got %v", got)
	}
}

func TestParseSpec(t *testing.T) {
	tests := []struct {
		spec    string
		typ     string
		address string
		wantErr bool
	}{
		{"mem:x", "mem", "x", false},
		{"yaml:/a/b:c.yml", "yaml", "/a/b:c.yml", false},
		{":x", "", "", true},
		{"mem:", "", "", true},
		{"mem", "", "", true},
	}
	for _, tt := range tests {
		typ, addr, err := ParseSpec(tt.spec)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSpec(%q) error = %v, wantErr %v", tt.spec, err, tt.wantErr)
			continue
		}
		if typ != tt.typ || addr != tt.address {
			t.Errorf("ParseSpec(%q) = %q, %q", tt.spec, typ, addr)
		}
	}
}
