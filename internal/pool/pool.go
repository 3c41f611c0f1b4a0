package pool

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/eapache/queue"
	"golang.org/x/exp/slices"

	"github.com/dreamware/threadkit/internal/locks"
	"github.com/dreamware/threadkit/internal/thread"
)

// JobID identifies a job within its pool. Ids start at 1.
type JobID uint64

// PostOptions modify Post.
type PostOptions struct {
	// Detached jobs keep no result; failures go to the error handler.
	Detached bool

	// NoWait queues the job without waiting for an idle worker. A worker
	// is still started if the pool has none.
	NoWait bool
}

// Stats is a snapshot of a pool.
type Stats struct {
	Workers   int    `json:"workers"`
	Idle      int    `json:"idle"`
	HighWater int    `json:"highWater"`
	Queued    int    `json:"queued"`
	Running   int    `json:"running"`
	Completed int    `json:"completed"` // results not yet collected
	Posted    uint64 `json:"posted"`
	Done      uint64 `json:"done"`
	Suspended bool   `json:"suspended"`
	Refs      int    `json:"refs"`
}

type job struct {
	id       JobID
	script   thread.Script
	detached bool
}

// Pool is a thread pool. All state is guarded by mu.
type Pool struct {
	name string
	cfg  Config
	mgr  *Manager

	mu      sync.Mutex
	work    locks.Cond // workers wait for jobs
	avail   locks.Cond // posters wait for an idle worker
	changed locks.Cond // result waiters
	gone    locks.Cond // teardown waits for workers to leave

	queue   *queue.Queue // *job
	pending map[JobID]*job
	results map[JobID]thread.Result
	threads map[thread.ID]*thread.Thread
	lastID  JobID

	workers   int // live or starting
	idle      int
	running   int
	highWater int
	posted    uint64
	done      uint64
	refs      int
	suspended bool
	closing   bool
}

func newPool(m *Manager, cfg Config) *Pool {
	return &Pool{
		cfg:     cfg,
		mgr:     m,
		queue:   queue.New(),
		pending: make(map[JobID]*job),
		results: make(map[JobID]thread.Result),
		threads: make(map[thread.ID]*thread.Thread),
	}
}

// Name returns the pool handle.
func (p *Pool) Name() string { return p.name }

// Config returns the pool's configuration.
func (p *Pool) Config() Config { return p.cfg }

// block waits for wake, serving the caller's mailbox if it is a thread.
func (p *Pool) block(ctx context.Context, wake <-chan struct{}) error {
	if me := p.mgr.reg.Current(); me != nil {
		return me.Pump(ctx, wake)
	}
	select {
	case <-wake:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Post queues script and returns its job id.
func (p *Pool) Post(ctx context.Context, script thread.Script, opts PostOptions) (JobID, error) {
	p.mu.Lock()
	for {
		if p.closing {
			p.mu.Unlock()
			return 0, fmt.Errorf("%w: %s", ErrPoolClosed, p.name)
		}
		if p.idle > p.queue.Length() {
			break
		}
		if opts.NoWait && p.workers > 0 {
			break
		}
		if p.workers < p.cfg.Max {
			p.mu.Unlock()
			if err := p.startWorker(); err != nil {
				return 0, err
			}
			p.mu.Lock()
			continue
		}

		wake, stop := p.avail.Waiter()
		p.mu.Unlock()
		err := p.block(ctx, wake)
		stop()
		if err != nil {
			return 0, err
		}
		p.mu.Lock()
	}

	p.lastID++
	j := &job{id: p.lastID, script: script, detached: opts.Detached}
	p.queue.Add(j)
	if !j.detached {
		p.pending[j.id] = j
	}
	p.posted++
	p.mu.Unlock()

	p.work.Signal()
	return j.id, nil
}

// Wait blocks until at least one of ids has completed. It returns the
// completed ids and those still queued or running; unknown ids appear in
// neither.
func (p *Pool) Wait(ctx context.Context, ids []JobID) (done, pending []JobID, err error) {
	p.mu.Lock()
	for {
		done, pending = done[:0], pending[:0]
		for _, id := range ids {
			if _, ok := p.results[id]; ok {
				done = append(done, id)
			} else if _, ok := p.pending[id]; ok {
				pending = append(pending, id)
			}
		}
		if len(done) > 0 || len(pending) == 0 {
			p.mu.Unlock()
			return done, pending, nil
		}
		if p.closing {
			p.mu.Unlock()
			return nil, pending, fmt.Errorf("%w: %s", ErrPoolClosed, p.name)
		}

		wake, stop := p.changed.Waiter()
		p.mu.Unlock()
		err := p.block(ctx, wake)
		stop()
		if err != nil {
			return nil, pending, err
		}
		p.mu.Lock()
	}
}

// Get collects the result of a completed job. A result can be collected
// once.
func (p *Pool) Get(id JobID) (thread.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if res, ok := p.results[id]; ok {
		delete(p.results, id)
		return res, nil
	}
	if _, ok := p.pending[id]; ok {
		return thread.Result{}, fmt.Errorf("%w: job %d", ErrJobNotCompleted, id)
	}
	return thread.Result{}, fmt.Errorf("%w: %d", ErrNoSuchJob, id)
}

// Cancel removes still-queued jobs and returns the ids it removed. Running
// jobs are not affected.
func (p *Pool) Cancel(ids []JobID) []JobID {
	want := make(map[JobID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	var canceled []JobID
	kept := queue.New()
	for p.queue.Length() > 0 {
		j := p.queue.Remove().(*job)
		if want[j.id] {
			canceled = append(canceled, j.id)
			delete(p.pending, j.id)
			continue
		}
		kept.Add(j)
	}
	p.queue = kept
	if len(canceled) > 0 {
		p.avail.Broadcast()
		p.changed.Broadcast()
	}
	slices.Sort(canceled)
	return canceled
}

// Suspend stops idle workers from taking jobs. Jobs can still be posted.
func (p *Pool) Suspend() {
	p.mu.Lock()
	p.suspended = true
	p.mu.Unlock()
}

// Resume lets workers take jobs again.
func (p *Pool) Resume() {
	p.mu.Lock()
	p.suspended = false
	p.mu.Unlock()
	p.work.Broadcast()
}

// Reserve increments the reservation count and returns it.
func (p *Pool) Reserve() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refs++
	return p.refs
}

// Release decrements the reservation count. At zero or below the pool is
// torn down; with wait set, Release returns once every worker thread has
// exited.
func (p *Pool) Release(wait bool) int {
	p.mu.Lock()
	p.refs--
	n := p.refs
	p.mu.Unlock()
	if n <= 0 {
		p.teardown(wait)
	}
	return n
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Workers:   p.workers,
		Idle:      p.idle,
		HighWater: p.highWater,
		Queued:    p.queue.Length(),
		Running:   p.running,
		Completed: len(p.results),
		Posted:    p.posted,
		Done:      p.done,
		Suspended: p.suspended,
		Refs:      p.refs,
	}
}

// teardown closes the pool, drops queued jobs and, with wait set, blocks
// until every worker thread other than the caller has exited.
func (p *Pool) teardown(wait bool) {
	p.mu.Lock()
	first := !p.closing
	p.closing = true
	dropped := p.queue.Length()
	if first {
		p.queue = queue.New()
		p.pending = make(map[JobID]*job)
	}
	p.mu.Unlock()

	p.work.Broadcast()
	p.avail.Broadcast()
	p.changed.Broadcast()

	if first {
		_, _ = p.mgr.pools.Remove(p.name, nil)
		log.Printf("tpool[%s]: released, %d queued jobs dropped", p.name, dropped)
	}
	if !wait {
		return
	}

	me := p.mgr.reg.Current()
	p.mu.Lock()
	self := 0
	if me != nil && p.threads[me.ID()] == me {
		self = 1
	}
	for p.workers > self {
		p.gone.Wait(&p.mu)
	}
	threads := make([]*thread.Thread, 0, len(p.threads))
	for _, t := range p.threads {
		if t != me {
			threads = append(threads, t)
		}
	}
	p.mu.Unlock()

	for _, t := range threads {
		<-t.Done()
	}
}

// startWorker reserves a worker slot and starts a worker thread, returning
// once the worker is idle or its init script failed.
func (p *Pool) startWorker() error {
	p.mu.Lock()
	if p.closing {
		p.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrPoolClosed, p.name)
	}
	if p.workers >= p.cfg.Max {
		p.mu.Unlock()
		return nil
	}
	p.workers++
	if p.workers > p.highWater {
		p.highWater = p.workers
	}
	for id, t := range p.threads {
		select {
		case <-t.Done():
			delete(p.threads, id)
		default:
		}
	}
	p.mu.Unlock()

	ready := make(chan error, 1)
	p.mgr.reg.Create(p.worker(ready), thread.Options{Name: p.name + "-worker"})
	if err := <-ready; err != nil {
		p.mu.Lock()
		p.workers--
		p.mu.Unlock()
		p.gone.Broadcast()
		p.avail.Broadcast()
		log.Printf("tpool[%s]: worker init failed: %v", p.name, err)
		return fmt.Errorf("pool %s: worker init: %w", p.name, err)
	}
	return nil
}

func (p *Pool) worker(ready chan<- error) thread.Script {
	return func(c *thread.Context) (string, error) {
		t := c.Thread()
		started := false
		defer func() {
			if !started {
				ready <- fmt.Errorf("%w during init", thread.ErrTargetThreadDied)
			}
		}()
		if p.cfg.Init != nil {
			if res := t.Run(p.cfg.Init); res.Code != thread.CodeOK {
				started = true
				ready <- res.Err()
				return "", nil
			}
		}
		started = true
		defer p.retire()
		p.serve(t, ready)

		if p.cfg.Exit != nil {
			if res := t.Run(p.cfg.Exit); res.Code != thread.CodeOK {
				log.Printf("tpool[%s]: worker %s exit script: %s", p.name, t.ID(), res.Value)
			}
		}
		return "", nil
	}
}

// retire drops a worker from the live count once its thread is done
// with pool work, exit script included.
func (p *Pool) retire() {
	p.mu.Lock()
	p.workers--
	p.mu.Unlock()
	p.gone.Broadcast()
	p.avail.Broadcast()
}

// serve runs jobs until the worker retires or the pool closes. ready is
// signaled once the worker is idle.
func (p *Pool) serve(t *thread.Thread, ready chan<- error) {
	p.mu.Lock()
	p.threads[t.ID()] = t
	for {
		j, ok := p.next(ready)
		ready = nil
		if !ok {
			p.mu.Unlock()
			return
		}
		p.running++
		p.mu.Unlock()

		p.run(t, j)

		p.mu.Lock()
	}
}

// run executes j on t with mu released and settles it. A job that ends the
// worker thread settles with ErrTargetThreadDied.
func (p *Pool) run(t *thread.Thread, j *job) {
	res := thread.Result{
		Code:      thread.CodeError,
		Value:     thread.ErrTargetThreadDied.Error(),
		ErrorCode: "THREAD DIED",
	}
	defer func() {
		p.mu.Lock()
		p.running--
		p.done++
		if !j.detached {
			delete(p.pending, j.id)
			p.results[j.id] = res
			p.changed.Broadcast()
		}
		p.mu.Unlock()
	}()

	res = t.Run(j.script)
	if j.detached && res.Code != thread.CodeOK {
		thread.ReportError(t.ID(), res)
	}
	t.Update()
}

// next waits for a job. It returns false when the worker should leave:
// the pool is closing, or the worker idled past the timeout while the pool
// is above Min. Caller holds mu.
func (p *Pool) next(ready chan<- error) (*job, bool) {
	p.idle++
	p.avail.Broadcast()
	if ready != nil {
		ready <- nil
	}
	defer func() { p.idle-- }()

	since := time.Now()
	for !p.closing && (p.suspended || p.queue.Length() == 0) {
		if p.suspended || p.cfg.IdleTimeout <= 0 {
			p.work.Wait(&p.mu)
			since = time.Now()
			continue
		}
		left := p.cfg.IdleTimeout - time.Since(since)
		if left <= 0 {
			if p.workers > p.cfg.Min {
				return nil, false
			}
			since = time.Now()
			continue
		}
		p.work.WaitTimeout(&p.mu, left)
	}
	if p.closing {
		return nil, false
	}
	return p.queue.Remove().(*job), true
}
