package thread

import (
	"errors"
	"sync"

	"github.com/eapache/queue"
)

var errMailboxClosed = errors.New("thread: mailbox closed")

// event is one unit of work in a mailbox.
type event struct {
	script  Script
	rec     *record      // set when the sender waits
	src     *Thread      // callback target
	cb      func(Result) // run on src with the result
	deliver func()       // a callback being delivered to this thread
}

// abandon settles an event that will never run.
func (ev *event) abandon() {
	died := Result{Code: CodeError, Value: ErrTargetThreadDied.Error(), ErrorCode: "THREAD DIED"}
	switch {
	case ev.rec != nil:
		ev.rec.resolve(died, ErrTargetThreadDied)
	case ev.cb != nil:
		cb := ev.cb
		_ = ev.src.box.put(&event{deliver: func() { cb(died) }}, true)
	}
}

// record is the rendezvous between a waiting sender and the target.
type record struct {
	once sync.Once
	done chan struct{}
	res  Result
	err  error
}

func newRecord() *record { return &record{done: make(chan struct{})} }

func (r *record) resolve(res Result, err error) {
	r.once.Do(func() {
		r.res, r.err = res, err
		close(r.done)
	})
}

// mailbox holds a thread's pending events in two FIFO lanes.
type mailbox struct {
	mu     sync.Mutex
	head   *queue.Queue
	tail   *queue.Queue
	closed bool
	wake   chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{
		head: queue.New(),
		tail: queue.New(),
		wake: make(chan struct{}, 1),
	}
}

func (m *mailbox) put(ev *event, atHead bool) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errMailboxClosed
	}
	if atHead {
		m.head.Add(ev)
	} else {
		m.tail.Add(ev)
	}
	m.mu.Unlock()
	m.kick()
	return nil
}

// kick wakes the owner if it is blocked waiting for events.
func (m *mailbox) kick() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *mailbox) get() (*event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.head.Length() > 0:
		return m.head.Remove().(*event), true
	case m.tail.Length() > 0:
		return m.tail.Remove().(*event), true
	}
	return nil, false
}

func (m *mailbox) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.head.Length() + m.tail.Length()
}

// close refuses further events and returns the ones still queued.
func (m *mailbox) close() []*event {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	var out []*event
	for m.head.Length() > 0 {
		out = append(out, m.head.Remove().(*event))
	}
	for m.tail.Length() > 0 {
		out = append(out, m.tail.Remove().(*event))
	}
	return out
}
