package thread

import (
	"container/list"
	"context"
	"fmt"
	"log"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/dreamware/threadkit/internal/goid"
)

// Registry tracks every registered thread of the process. One lock guards
// the thread list; each thread guards its own state.
type Registry struct {
	mu       sync.Mutex
	threads  *list.List // *Thread in registration order
	elems    map[ID]*list.Element
	byG      map[goid.ID]*Thread
	joinable map[ID]*Thread
	seq      atomic.Uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		threads:  list.New(),
		elems:    make(map[ID]*list.Element),
		byG:      make(map[goid.ID]*Thread),
		joinable: make(map[ID]*Thread),
	}
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry.
func Default() *Registry { return defaultRegistry }

func (r *Registry) nextID() ID {
	return ID("tid" + strconv.FormatUint(r.seq.Add(1), 10))
}

func (r *Registry) add(t *Thread) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.elems[t.id] = r.threads.PushBack(t)
	r.byG[t.gid] = t
	if t.opts.Joinable {
		r.joinable[t.id] = t
	}
}

func (r *Registry) remove(t *Thread) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.elems[t.id]; ok {
		r.threads.Remove(e)
		delete(r.elems, t.id)
	}
	if r.byG[t.gid] == t {
		delete(r.byG, t.gid)
	}
}

// Create starts a new thread pinned to its own OS thread and returns its id
// once it is registered. The thread runs script and then exits; a nil
// script serves the mailbox until the thread is released. A script that
// fails is reported to the error handler.
func (r *Registry) Create(script Script, opts Options) ID {
	t := newThread(r, r.nextID(), opts)
	ready := make(chan struct{})
	go func() {
		runtime.LockOSThread()
		t.gid = goid.Current()
		t.tid = unix.Gettid()
		r.add(t)
		close(ready)
		defer t.finish()

		if script == nil {
			t.Wait()
			return
		}
		if res := t.exec(script); res.Code != CodeOK {
			t.fail(res)
		}
	}()
	<-ready
	return t.id
}

// Register makes the calling goroutine a thread, pinning it to its OS
// thread. It returns the existing Thread if already registered.
func (r *Registry) Register() *Thread {
	if t := r.Current(); t != nil {
		return t
	}
	runtime.LockOSThread()
	t := newThread(r, r.nextID(), Options{})
	t.gid = goid.Current()
	t.tid = unix.Gettid()
	r.add(t)
	return t
}

// Unregister removes the calling goroutine from the registry, releasing
// any sender still waiting on it.
func (r *Registry) Unregister() {
	t := r.Current()
	if t == nil {
		return
	}
	t.finish()
	runtime.UnlockOSThread()
}

// Current returns the calling goroutine's Thread, or nil.
func (r *Registry) Current() *Thread {
	id := goid.Current()
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byG[id]
}

// Lookup returns the live thread with the given id.
func (r *Registry) Lookup(id ID) (*Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.elems[id]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrNoSuchThread, id)
	}
	return e.Value.(*Thread), nil
}

// Exists reports whether id names a live thread.
func (r *Registry) Exists(id ID) bool {
	_, err := r.Lookup(id)
	return err == nil
}

// List returns the ids of all live threads in registration order.
func (r *Registry) List() []ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]ID, 0, r.threads.Len())
	for e := r.threads.Front(); e != nil; e = e.Next() {
		ids = append(ids, e.Value.(*Thread).id)
	}
	return ids
}

// SendOptions select the delivery mode of Send.
type SendOptions struct {
	// Async returns as soon as the script is queued.
	Async bool

	// Head queues the script ahead of normal sends.
	Head bool

	// Callback, with Async, receives the Result on the sending thread.
	// The sender is registered if it is not already, and must serve its
	// mailbox for the callback to run.
	Callback func(Result)
}

// Send delivers script to the thread id. In wait mode it returns the
// script's Result; a failed script also yields a *ScriptError. If ctx ends
// first the result is discarded when it arrives.
func (r *Registry) Send(ctx context.Context, id ID, script Script, opts SendOptions) (Result, error) {
	t, err := r.Lookup(id)
	if err != nil {
		return Result{}, err
	}
	if t.InError() {
		return Result{}, fmt.Errorf("%w: %s", ErrThreadInError, id)
	}

	me := r.Current()
	if me == t && !opts.Async {
		res := t.exec(script)
		return res, res.Err()
	}

	ev := &event{script: script}
	switch {
	case !opts.Async:
		ev.rec = newRecord()
	case opts.Callback != nil:
		if me == nil {
			me = r.Register()
		}
		ev.src, ev.cb = me, opts.Callback
	}
	if err := t.box.put(ev, opts.Head); err != nil {
		return Result{}, fmt.Errorf("%w: %s", ErrTargetThreadDied, id)
	}
	if opts.Async {
		return Result{}, nil
	}

	if me != nil {
		err = me.Pump(ctx, ev.rec.done)
	} else {
		select {
		case <-ev.rec.done:
		case <-ctx.Done():
			err = ctx.Err()
		}
	}
	if err != nil {
		return Result{}, err
	}
	return ev.rec.res, ev.rec.err
}

// Broadcast queues script asynchronously at the head of every thread's
// mailbox except the caller's, and returns how many threads it reached.
func (r *Registry) Broadcast(script Script) int {
	me := r.Current()
	r.mu.Lock()
	targets := make([]*Thread, 0, r.threads.Len())
	for e := r.threads.Front(); e != nil; e = e.Next() {
		if t := e.Value.(*Thread); t != me {
			targets = append(targets, t)
		}
	}
	r.mu.Unlock()

	n := 0
	for _, t := range targets {
		if t.box.put(&event{script: script}, true) == nil {
			n++
		}
	}
	return n
}

// Reserve increments the thread's reservation count and returns it.
func (r *Registry) Reserve(id ID) (int, error) {
	t, err := r.Lookup(id)
	if err != nil {
		return 0, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.refs++
	return t.refs, nil
}

// Release decrements the reservation count. When it drops to zero or below
// the thread is asked to exit; with wait set, Release returns only after it
// has. It returns the new count.
func (r *Registry) Release(id ID, wait bool) (int, error) {
	t, err := r.Lookup(id)
	if err != nil {
		return 0, err
	}
	t.mu.Lock()
	t.refs--
	n := t.refs
	t.mu.Unlock()

	if n <= 0 {
		t.requestExit()
		if wait && r.Current() != t {
			<-t.done
		}
	}
	return n, nil
}

// Join waits for a joinable thread to exit and returns its exit status.
func (r *Registry) Join(id ID) (int, error) {
	r.mu.Lock()
	t, ok := r.joinable[id]
	if ok {
		delete(r.joinable, id)
	}
	_, live := r.elems[id]
	r.mu.Unlock()

	if !ok {
		if live {
			return 0, fmt.Errorf("%w: %s", ErrNotJoinable, id)
		}
		return 0, fmt.Errorf("%w %q", ErrNoSuchThread, id)
	}
	<-t.done
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status, nil
}

// Cancel cancels the script the thread is running. With unwind set every
// nested script is canceled as well. message, if not empty, is attached to
// the cancellation cause.
func (r *Registry) Cancel(id ID, message string, unwind bool) error {
	t, err := r.Lookup(id)
	if err != nil {
		return err
	}
	cause := ErrCanceled
	if message != "" {
		cause = fmt.Errorf("%w: %s", ErrCanceled, message)
	}
	t.cancel(cause, unwind)
	return nil
}

// ClearError takes the thread out of error state. A thread that has not
// yet left its event loop keeps serving its mailbox.
func (r *Registry) ClearError(id ID) error {
	t, err := r.Lookup(id)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.inError {
		t.inError = false
		if t.unwound && !t.exited {
			t.exitReq = false
		}
		t.unwound = false
		log.Printf("thread[%s]: error state cleared", t.Name())
	}
	return nil
}
