package integration

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/threadkit/internal/api"
	"github.com/dreamware/threadkit/internal/keyspace"
	"github.com/dreamware/threadkit/internal/pool"
	"github.com/dreamware/threadkit/internal/thread"
	"github.com/dreamware/threadkit/internal/value"
)

// TestSystem runs a tsvd binary and drives it with tsvctl.
type TestSystem struct {
	t      *testing.T
	daemon *exec.Cmd
	addr   string
	dir    string
}

// NewTestSystem prepares a system listening on a high port.
func NewTestSystem(t *testing.T) *TestSystem {
	return &TestSystem{t: t, addr: "http://127.0.0.1:18090", dir: t.TempDir()}
}

// Start launches tsvd with one array bound to a YAML file.
func (ts *TestSystem) Start() error {
	cfg := filepath.Join(ts.dir, "tsvd.yaml")
	body := fmt.Sprintf("listen: 127.0.0.1:18090\npool: {min: 1, max: 2, idle: 5s}\nbindings:\n  - {array: settings, store: 'yaml:%s'}\n",
		filepath.Join(ts.dir, "settings.yaml"))
	if err := os.WriteFile(cfg, []byte(body), 0o644); err != nil {
		return err
	}

	ts.daemon = exec.Command("./bin/tsvd")
	ts.daemon.Env = append(os.Environ(), "TSVD_CONFIG="+cfg)
	ts.daemon.Stdout = os.Stdout
	ts.daemon.Stderr = os.Stderr
	if err := ts.daemon.Start(); err != nil {
		return fmt.Errorf("failed to start tsvd: %w", err)
	}
	return ts.waitForService(ts.addr + "/health")
}

// Stop kills the daemon.
func (ts *TestSystem) Stop() {
	if ts.daemon != nil && ts.daemon.Process != nil {
		ts.daemon.Process.Kill()
		ts.daemon.Wait()
	}
}

func (ts *TestSystem) waitForService(url string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for %s", url)
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// Ctl runs tsvctl and returns its trimmed stdout.
func (ts *TestSystem) Ctl(args ...string) (string, error) {
	cmd := exec.Command("./bin/tsvctl", append([]string{"-addr", ts.addr}, args...)...)
	var out, errOut bytes.Buffer
	cmd.Stdout, cmd.Stderr = &out, &errOut
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tsvctl %v: %w: %s", args, err, errOut.String())
	}
	return strings.TrimSpace(out.String()), nil
}

// TestDaemon runs end-to-end scenarios against the built binaries
func TestDaemon(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	for _, bin := range []string{"./bin/tsvd", "./bin/tsvctl"} {
		if _, err := os.Stat(bin); os.IsNotExist(err) {
			t.Skipf("Skipping integration test: %s not found (run 'make build' first)", bin)
		}
	}

	ts := NewTestSystem(t)
	if err := ts.Start(); err != nil {
		t.Fatalf("Failed to start test system: %v", err)
	}
	defer ts.Stop()

	t.Run("SetGet", func(t *testing.T) {
		_, err := ts.Ctl("set", "users", "alice", "admin")
		require.NoError(t, err)
		out, err := ts.Ctl("get", "users", "alice")
		require.NoError(t, err)
		assert.Equal(t, "admin", out)
	})

	t.Run("ConcurrentIncr", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = ts.Ctl("incr", "counters", "hits")
			}()
		}
		wg.Wait()
		out, err := ts.Ctl("get", "counters", "hits")
		require.NoError(t, err)
		assert.Equal(t, "10", out)
	})

	t.Run("Jobs", func(t *testing.T) {
		out, err := ts.Ctl("job", "lappend", "queue", "items", "first item")
		require.NoError(t, err)
		assert.Equal(t, "1", out)
		out, err = ts.Ctl("get", "queue", "items")
		require.NoError(t, err)
		assert.Equal(t, "{first item}", out)
	})

	t.Run("BoundArrayPersists", func(t *testing.T) {
		_, err := ts.Ctl("set", "settings", "theme", "dark")
		require.NoError(t, err)
		raw, err := os.ReadFile(filepath.Join(ts.dir, "settings.yaml"))
		require.NoError(t, err)
		assert.Contains(t, string(raw), "theme: dark")
	})

	t.Run("Info", func(t *testing.T) {
		var info api.Info
		require.NoError(t, api.GetJSON(context.Background(), ts.addr+"/info", &info))
		assert.GreaterOrEqual(t, info.Keyspace.Arrays, 4)
		assert.Len(t, info.Bindings, 1)
	})
}

// TestThreadsShareKeyspace has event-loop threads and pool workers mutate
// one keyspace concurrently.
func TestThreadsShareKeyspace(t *testing.T) {
	reg := thread.NewRegistry()
	ks := keyspace.New()
	ctx := context.Background()

	const producers, items = 4, 25
	ids := make([]thread.ID, producers)
	for i := range ids {
		ids[i] = reg.Create(nil, thread.Options{})
	}
	defer func() {
		for _, id := range ids {
			_, _ = reg.Release(id, true)
		}
	}()

	mgr := pool.NewManager(reg)
	defer mgr.Close()
	p, err := mgr.Create(pool.Config{Min: 1, Max: 3})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id thread.ID) {
			defer wg.Done()
			for j := 0; j < items; j++ {
				item := fmt.Sprintf("p%d-%d", i, j)
				_, err := reg.Send(ctx, id, func(c *thread.Context) (string, error) {
					n, err := ks.Lappend("work", "log", value.String(item))
					return strconv.Itoa(n), err
				}, thread.SendOptions{Async: j%2 == 0})
				assert.NoError(t, err)
			}
		}(i, id)
	}

	var jobs []pool.JobID
	for j := 0; j < items; j++ {
		id, err := p.Post(ctx, func(*thread.Context) (string, error) {
			n, err := ks.Incr("work", "count", 1)
			return strconv.FormatInt(n, 10), err
		}, pool.PostOptions{})
		require.NoError(t, err)
		jobs = append(jobs, id)
	}
	wg.Wait()

	for len(jobs) > 0 {
		done, pending, err := p.Wait(ctx, jobs)
		require.NoError(t, err)
		for _, id := range done {
			res, err := p.Get(id)
			require.NoError(t, err)
			assert.Equal(t, thread.CodeOK, res.Code)
		}
		jobs = pending
	}

	// Drain the async sends queued on each thread.
	for _, id := range ids {
		_, err := reg.Send(ctx, id, func(*thread.Context) (string, error) { return "", nil }, thread.SendOptions{})
		require.NoError(t, err)
	}

	n, err := ks.Llength("work", "log")
	require.NoError(t, err)
	assert.Equal(t, producers*items, n)
	v, err := ks.Get("work", "count", false)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(items), v.String())
}

// TestPoolWorkerCallsThread has pool jobs send synchronously to an
// event-loop thread that owns a private counter.
func TestPoolWorkerCallsThread(t *testing.T) {
	reg := thread.NewRegistry()
	owner := reg.Create(nil, thread.Options{Name: "owner"})
	defer reg.Release(owner, true)

	mgr := pool.NewManager(reg)
	defer mgr.Close()
	p, err := mgr.Create(pool.Config{Max: 4})
	require.NoError(t, err)

	count := 0 // only touched on the owner thread
	ctx := context.Background()
	var jobs []pool.JobID
	for i := 0; i < 20; i++ {
		id, err := p.Post(ctx, func(c *thread.Context) (string, error) {
			res, err := c.Registry().Send(c, owner, func(*thread.Context) (string, error) {
				count++
				return strconv.Itoa(count), nil
			}, thread.SendOptions{})
			return res.Value, err
		}, pool.PostOptions{})
		require.NoError(t, err)
		jobs = append(jobs, id)
	}

	seen := make(map[string]bool)
	for len(jobs) > 0 {
		done, pending, err := p.Wait(ctx, jobs)
		require.NoError(t, err)
		for _, id := range done {
			res, err := p.Get(id)
			require.NoError(t, err)
			seen[res.Value] = true
		}
		jobs = pending
	}
	assert.Len(t, seen, 20, "every job saw a distinct counter value")
}

// TestBoundArraySurvivesRestart binds an array, mutates it from pool
// workers and reloads it into a fresh keyspace.
func TestBoundArraySurvivesRestart(t *testing.T) {
	spec := "yaml:" + filepath.Join(t.TempDir(), "orders.yaml")
	reg := thread.NewRegistry()

	ks := keyspace.New()
	require.NoError(t, ks.Bind("orders", spec))

	mgr := pool.NewManager(reg)
	p, err := mgr.Create(pool.Config{Max: 3})
	require.NoError(t, err)
	var jobs []pool.JobID
	for i := 0; i < 12; i++ {
		key := fmt.Sprintf("o%02d", i)
		id, err := p.Post(context.Background(), func(*thread.Context) (string, error) {
			return "", ks.Set("orders", key, value.Int(int64(i)))
		}, pool.PostOptions{})
		require.NoError(t, err)
		jobs = append(jobs, id)
	}
	for len(jobs) > 0 {
		_, pending, err := p.Wait(context.Background(), jobs)
		require.NoError(t, err)
		jobs = pending
	}
	mgr.Close()
	require.NoError(t, ks.Close())

	again := keyspace.New()
	require.NoError(t, again.Bind("orders", spec))
	defer again.Close()
	size, err := again.ArraySize("orders")
	require.NoError(t, err)
	assert.Equal(t, 12, size)
	v, err := again.Get("orders", "o07", false)
	require.NoError(t, err)
	assert.Equal(t, "7", v.String())
}
