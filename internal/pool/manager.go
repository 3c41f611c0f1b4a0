package pool

import (
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/dreamware/threadkit/internal/handle"
	"github.com/dreamware/threadkit/internal/thread"
)

// Manager owns the pool handle table.
type Manager struct {
	reg   *thread.Registry
	pools *handle.Registry[*Pool]
}

// NewManager creates a manager whose workers register with reg.
func NewManager(reg *thread.Registry) *Manager {
	return &Manager{
		reg:   reg,
		pools: handle.New[*Pool]("tpool", 0),
	}
}

// Create builds a pool and starts its Min workers concurrently. If any
// worker fails to start the pool is torn down and the first error returned.
func (m *Manager) Create(cfg Config) (*Pool, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	p := newPool(m, cfg)
	p.name = m.pools.Add(p)

	var g errgroup.Group
	for i := 0; i < cfg.Min; i++ {
		g.Go(p.startWorker)
	}
	if err := g.Wait(); err != nil {
		p.teardown(true)
		return nil, err
	}
	log.Printf("tpool[%s]: created min=%d max=%d idle=%s", p.name, cfg.Min, cfg.Max, cfg.IdleTimeout)
	return p, nil
}

// Lookup resolves a pool name.
func (m *Manager) Lookup(name string) (*Pool, error) {
	p, ok := m.pools.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrPoolNotFound, name)
	}
	return p, nil
}

// Names lists live pools in sorted order.
func (m *Manager) Names() []string {
	return m.pools.Names()
}

// Close tears down every pool and waits for their workers.
func (m *Manager) Close() {
	var pools []*Pool
	m.pools.Range(func(_ string, p *Pool) bool {
		pools = append(pools, p)
		return true
	})
	for _, p := range pools {
		p.teardown(true)
	}
}
