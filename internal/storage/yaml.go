package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// YAMLDriver opens stores persisted as a flat YAML mapping of key to value.
// The address is a file path; a missing file is an empty store.
type YAMLDriver struct{}

// Open loads the file at path into memory.
func (YAMLDriver) Open(path string) (Handle, error) {
	h := &yamlHandle{path: path, data: make(map[string]string)}
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return h, nil
	case err != nil:
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &h.data); err != nil {
		return nil, fmt.Errorf("storage: parse %s: %w", path, err)
	}
	if h.data == nil {
		h.data = make(map[string]string)
	}
	return h, nil
}

// yamlHandle keeps the whole file in memory and rewrites it after every
// mutation.
type yamlHandle struct {
	path string

	mu      sync.Mutex
	data    map[string]string
	closed  bool
	lastErr error
	cur     cursor
}

func (h *yamlHandle) Get(key string) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, h.setErr(ErrClosed)
	}
	v, ok := h.data[key]
	if !ok {
		return nil, h.setErr(ErrKeyNotFound)
	}
	return []byte(v), nil
}

func (h *yamlHandle) Put(key string, value []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return h.setErr(ErrClosed)
	}
	prev, had := h.data[key]
	h.data[key] = string(value)
	if err := h.flush(); err != nil {
		if had {
			h.data[key] = prev
		} else {
			delete(h.data, key)
		}
		return h.setErr(err)
	}
	return nil
}

func (h *yamlHandle) Delete(key string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return h.setErr(ErrClosed)
	}
	prev, had := h.data[key]
	if !had {
		return nil
	}
	delete(h.data, key)
	if err := h.flush(); err != nil {
		h.data[key] = prev
		return h.setErr(err)
	}
	return nil
}

func (h *yamlHandle) First() (string, []byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return "", nil, false
	}
	keys := make([]string, 0, len(h.data))
	for k := range h.data {
		keys = append(keys, k)
	}
	h.cur.reset(keys)
	return h.nextLocked()
}

func (h *yamlHandle) Next() (string, []byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return "", nil, false
	}
	return h.nextLocked()
}

func (h *yamlHandle) nextLocked() (string, []byte, bool) {
	for {
		k, ok := h.cur.next()
		if !ok {
			return "", nil, false
		}
		if v, ok := h.data[k]; ok {
			return k, []byte(v), true
		}
	}
}

func (h *yamlHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return h.setErr(ErrClosed)
	}
	h.closed = true
	h.data = nil
	return nil
}

func (h *yamlHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastErr
}

func (h *yamlHandle) Stats() StoreStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	st := StoreStats{Keys: len(h.data)}
	for _, v := range h.data {
		st.Bytes += len(v)
	}
	return st
}

func (h *yamlHandle) setErr(err error) error {
	h.lastErr = err
	return err
}

// flush writes the mapping to a temp file beside the target and renames it
// into place. Caller holds h.mu.
func (h *yamlHandle) flush() error {
	out, err := yaml.Marshal(h.data)
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", h.path, err)
	}
	dir := filepath.Dir(h.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(h.path)+".*")
	if err != nil {
		return fmt.Errorf("storage: write %s: %w", h.path, err)
	}
	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("storage: write %s: %w", h.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("storage: write %s: %w", h.path, err)
	}
	if err := os.Rename(tmp.Name(), h.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("storage: write %s: %w", h.path, err)
	}
	return nil
}
