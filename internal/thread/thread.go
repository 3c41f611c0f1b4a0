package thread

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/dreamware/threadkit/internal/goid"
)

// ID names a registered thread, e.g. "tid3".
type ID string

// Options configure a thread started with Create.
type Options struct {
	// Name is used in log lines only.
	Name string

	// Joinable threads keep their exit status until Join collects it.
	Joinable bool

	// UnwindOnError puts the thread in error state when a script it runs
	// for a sender fails. Sends then fail with ErrThreadInError until
	// ClearError. An unreserved thread also leaves its event loop.
	UnwindOnError bool
}

// Script is a unit of work run on a thread.
type Script func(c *Context) (string, error)

// Context is passed to every script. It is canceled by Registry.Cancel.
type Context struct {
	context.Context
	t *Thread
}

// Thread returns the thread running the script.
func (c *Context) Thread() *Thread { return c.t }

// Registry returns the registry the thread belongs to.
func (c *Context) Registry() *Registry { return c.t.reg }

// Thread is a registered thread. Event-loop methods (Wait, Update,
// ProcessOne, Pump, Exit) may only be called from the thread itself.
type Thread struct {
	id   ID
	opts Options
	reg  *Registry
	gid  goid.ID
	tid  int
	box  *mailbox
	done chan struct{}

	mu       sync.Mutex
	refs     int
	exitReq  bool
	status   int
	inError  bool
	unwound  bool
	exited   bool
	frames   []context.CancelCauseFunc
	inflight []*record
}

func newThread(reg *Registry, id ID, opts Options) *Thread {
	return &Thread{
		id:   id,
		opts: opts,
		reg:  reg,
		box:  newMailbox(),
		done: make(chan struct{}),
	}
}

// ID returns the thread id.
func (t *Thread) ID() ID { return t.id }

// Name returns the name given at creation, or the id.
func (t *Thread) Name() string {
	if t.opts.Name != "" {
		return t.opts.Name
	}
	return string(t.id)
}

// OSThread returns the OS thread id the thread is pinned to.
func (t *Thread) OSThread() int { return t.tid }

// Done is closed once the thread has exited and released its waiters.
func (t *Thread) Done() <-chan struct{} { return t.done }

// Pending returns the number of queued events.
func (t *Thread) Pending() int { return t.box.len() }

// InError reports whether the thread stopped after an unhandled failure.
func (t *Thread) InError() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inError
}

func (t *Thread) exitRequested() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.exitReq
}

func (t *Thread) requestExit() {
	t.mu.Lock()
	t.exitReq = true
	t.mu.Unlock()
	t.box.kick()
}

func (t *Thread) mustOwn(op string) {
	if goid.Current() != t.gid {
		panic(fmt.Sprintf("thread: %s on %s called from another goroutine", op, t.id))
	}
}

// Wait serves the mailbox until an exit is requested, then returns the exit
// status.
func (t *Thread) Wait() int {
	t.mustOwn("Wait")
	for t.ProcessOne(-1) {
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Update runs every event already queued without blocking and returns how
// many ran.
func (t *Thread) Update() int {
	t.mustOwn("Update")
	n := 0
	for !t.exitRequested() {
		ev, ok := t.box.get()
		if !ok {
			break
		}
		t.handle(ev)
		n++
	}
	return n
}

// ProcessOne runs a single event, waiting up to timeout for one to arrive.
// A negative timeout waits forever; zero does not wait. It returns false if
// no event ran, either because the timeout passed or an exit was requested.
func (t *Thread) ProcessOne(timeout time.Duration) bool {
	t.mustOwn("ProcessOne")
	var deadline <-chan time.Time
	if timeout > 0 {
		tm := time.NewTimer(timeout)
		defer tm.Stop()
		deadline = tm.C
	}
	for {
		if t.exitRequested() {
			return false
		}
		if ev, ok := t.box.get(); ok {
			t.handle(ev)
			return true
		}
		if timeout == 0 {
			return false
		}
		select {
		case <-t.box.wake:
		case <-deadline:
			return false
		}
	}
}

// Pump serves the mailbox until done is closed or ctx ends. It stops
// running events once an exit is requested but keeps waiting on done.
func (t *Thread) Pump(ctx context.Context, done <-chan struct{}) error {
	t.mustOwn("Pump")
	for {
		select {
		case <-done:
			return nil
		default:
		}
		if !t.exitRequested() {
			if ev, ok := t.box.get(); ok {
				t.handle(ev)
				continue
			}
		}
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-t.box.wake:
		}
	}
}

// Exit terminates the calling thread immediately with status. Deferred
// calls run; senders waiting on the thread get ErrTargetThreadDied.
func (t *Thread) Exit(status int) {
	t.mustOwn("Exit")
	t.mu.Lock()
	t.status = status
	t.exitReq = true
	t.mu.Unlock()
	runtime.Goexit()
}

// Run executes script on the calling thread in a new cancelable frame and
// returns its Result. It is how pool workers run jobs.
func (t *Thread) Run(script Script) Result {
	t.mustOwn("Run")
	return t.exec(script)
}

// exec runs script in a new cancelable frame.
func (t *Thread) exec(script Script) (res Result) {
	ctx, cancel := context.WithCancelCause(context.Background())
	t.mu.Lock()
	t.frames = append(t.frames, cancel)
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		t.frames = t.frames[:len(t.frames)-1]
		t.mu.Unlock()
		cancel(nil)
	}()
	defer func() {
		if p := recover(); p != nil {
			res = resultOf("", &PanicError{Value: p, Stack: debug.Stack()})
		}
	}()
	v, err := script(&Context{Context: ctx, t: t})
	if err != nil && ctx.Err() != nil {
		if cause := context.Cause(ctx); cause != nil && cause != err {
			err = fmt.Errorf("%w: %w", cause, err)
		}
	}
	return resultOf(v, err)
}

func (t *Thread) handle(ev *event) {
	if ev.deliver != nil {
		t.deliver(ev.deliver)
		return
	}
	if ev.rec != nil {
		t.mu.Lock()
		t.inflight = append(t.inflight, ev.rec)
		t.mu.Unlock()
	}

	res := t.exec(ev.script)
	if res.Code != CodeOK {
		t.unwind()
	}

	switch {
	case ev.rec != nil:
		t.mu.Lock()
		t.inflight = t.inflight[:len(t.inflight)-1]
		t.mu.Unlock()
		ev.rec.resolve(res, res.Err())
	case ev.cb != nil:
		cb := ev.cb
		// A source that exited in the meantime drops the result.
		_ = ev.src.box.put(&event{deliver: func() { cb(res) }}, true)
	case res.Code != CodeOK:
		reportError(t.id, res)
	}
}

// deliver runs a result callback, reporting a panic instead of dying.
func (t *Thread) deliver(fn func()) {
	defer func() {
		if p := recover(); p != nil {
			reportError(t.id, resultOf("", &PanicError{Value: p, Stack: debug.Stack()}))
		}
	}()
	fn()
}

// fail reports an unconsumed script failure.
func (t *Thread) fail(res Result) {
	reportError(t.id, res)
	t.unwind()
}

// unwind puts an UnwindOnError thread in error state after a failed job.
// The thread is marked for exit only when nobody holds a reservation.
func (t *Thread) unwind() {
	if !t.opts.UnwindOnError {
		return
	}
	t.mu.Lock()
	t.inError = true
	exit := t.refs <= 0
	if exit {
		t.unwound = true
	}
	t.mu.Unlock()
	if exit {
		t.requestExit()
	}
}

// cancel cancels the innermost running script, or every running script
// when all is set.
func (t *Thread) cancel(cause error, all bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.frames) == 0 {
		return false
	}
	if !all {
		t.frames[len(t.frames)-1](cause)
		return true
	}
	for _, c := range t.frames {
		c(cause)
	}
	return true
}

// finish unregisters the thread and releases everything waiting on it.
func (t *Thread) finish() {
	t.reg.remove(t)

	t.mu.Lock()
	t.exited = true
	t.exitReq = true
	inflight := t.inflight
	t.inflight = nil
	t.mu.Unlock()

	for _, ev := range t.box.close() {
		ev.abandon()
	}
	for _, rec := range inflight {
		rec.resolve(Result{Code: CodeError, Value: ErrTargetThreadDied.Error(), ErrorCode: "THREAD DIED"}, ErrTargetThreadDied)
	}
	close(t.done)
}
