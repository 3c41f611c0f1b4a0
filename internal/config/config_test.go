package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("", env(nil))
	require.NoError(t, err)
	assert.Equal(t, ":8090", cfg.Listen)
	assert.Equal(t, 31, cfg.Buckets)
	assert.Equal(t, 30*time.Second, cfg.PoolConfig().IdleTimeout)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tsvd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: 127.0.0.1:9000
buckets: 7
pool:
  min: 2
  max: 8
  idle: 1m
bindings:
  - array: sessions
    store: mem:sessions
  - array: settings
    store: yaml:/var/lib/tsvd/settings.yaml
`), 0o644))

	cfg, err := Load(path, env(nil))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Listen)
	assert.Equal(t, 7, cfg.Buckets)
	assert.Equal(t, Pool{Min: 2, Max: 8, Idle: time.Minute}, cfg.Pool)
	require.Len(t, cfg.Bindings, 2)
	assert.Equal(t, Binding{Array: "sessions", Store: "mem:sessions"}, cfg.Bindings[0])
}

func TestEnvOverrides(t *testing.T) {
	cfg, err := Load("", env(map[string]string{
		"TSVD_LISTEN":    ":7000",
		"TSVD_BUCKETS":   "3",
		"TSVD_POOL_MIN":  "0",
		"TSVD_POOL_MAX":  "2",
		"TSVD_POOL_IDLE": "250ms",
	}))
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Listen)
	assert.Equal(t, 3, cfg.Buckets)
	assert.Equal(t, Pool{Min: 0, Max: 2, Idle: 250 * time.Millisecond}, cfg.Pool)
}

func TestInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		file string
	}{
		{name: "bad int", env: map[string]string{"TSVD_BUCKETS": "many"}},
		{name: "zero buckets", env: map[string]string{"TSVD_BUCKETS": "0"}},
		{name: "bad duration", env: map[string]string{"TSVD_POOL_IDLE": "soon"}},
		{name: "min above max", env: map[string]string{"TSVD_POOL_MIN": "9", "TSVD_POOL_MAX": "2"}},
		{name: "duplicate store", file: "bindings:\n  - {array: a, store: 'mem:x'}\n  - {array: b, store: 'mem:x'}\n"},
		{name: "incomplete binding", file: "bindings:\n  - {array: a}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := ""
			if tt.file != "" {
				path = filepath.Join(t.TempDir(), "c.yaml")
				require.NoError(t, os.WriteFile(path, []byte(tt.file), 0o644))
			}
			_, err := Load(path, env(tt.env))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), env(nil))
	assert.Error(t, err)
}
