// Package thread implements the thread registry: long-lived worker threads
// with their own event queues, addressed by id, that other threads can send
// scripts to.
//
// # Overview
//
// A thread is a goroutine pinned to an OS thread. Threads started with
// Create are owned by the registry; any other goroutine may join with
// Register. Every registered thread owns a mailbox and runs an event loop
// over it (Wait, Update, ProcessOne, Pump). Work arrives as a Script, a
// plain Go function that receives a *Context and returns a string result
// or an error.
//
// The package keeps one process-wide registry (Default) for the daemon and
// lets tests build private ones with NewRegistry.
//
// # Architecture
//
//	┌──────────────────────────────────────────────┐
//	│                  REGISTRY                     │
//	│  ids: tid1, tid2, ...   list + id index       │
//	│  goroutine id → *Thread (Current)             │
//	└──────────────┬───────────────────────────────┘
//	               │ Lookup / Send / Broadcast
//	     ┌─────────┴─────────┐
//	     ▼                   ▼
//	┌──────────────┐   ┌──────────────┐
//	│  THREAD tid1 │   │  THREAD tid2 │
//	│ ┌──────────┐ │   │ ┌──────────┐ │
//	│ │ head lane│ │   │ │ head lane│ │  broadcasts, callbacks,
//	│ ├──────────┤ │   │ ├──────────┤ │  Head sends
//	│ │ tail lane│ │   │ │ tail lane│ │  normal sends
//	│ └────┬─────┘ │   │ └────┬─────┘ │
//	│      ▼       │   │      ▼       │
//	│  event loop  │   │  event loop  │
//	│  frames[]    │   │  frames[]    │  one cancel func per
//	└──────────────┘   └──────────────┘  running script
//
// Both lanes are FIFO queues (github.com/eapache/queue). The head lane is
// always drained first. A thread blocked in its event loop sleeps on the
// mailbox wake channel, so a put from any goroutine rouses it.
//
// # Send Modes
//
// Send delivers a Script in one of three modes:
//
//   - wait (default): the caller blocks until the target has run the script
//     and gets its Result. If the caller is itself a registered thread it
//     keeps serving its own mailbox while it waits, so two threads sending
//     to each other do not deadlock.
//   - async: the script is queued and Send returns at once. A failure is
//     reported to the process error handler.
//   - async with Callback: the Result is posted back to the sender's head
//     lane and the callback runs when the sender next serves its mailbox.
//
// A sync send to the calling thread itself runs inline. A canceled ctx
// releases a waiting sender; the result is dropped when it arrives.
//
//	sender                    target
//	  │  put(event, record)     │
//	  ├────────────────────────►│ exec(script)
//	  │  Pump(own mailbox)      │
//	  │◄────────────────────────┤ record.resolve(result)
//	  ▼                         ▼
//
// # Lifecycle
//
// A thread exits when its event loop sees an exit request and returns, or
// at once when a script calls Exit, which uses runtime.Goexit. Either way
// finish runs on the way out:
//
//  1. The thread is removed from the registry.
//  2. Queued events are abandoned. Waiting senders and callback senders
//     get ErrTargetThreadDied.
//  3. Senders waiting on a script that was still running get the same
//     error.
//  4. Done is closed. Joinable threads keep their status for Join.
//
// Reserve and Release keep a reference count. Release to zero or below
// requests an exit; with wait set, Release returns once the thread is gone.
//
// # Errors
//
// A failed script yields a Result with Code CodeError, an error code and
// error info. Failures nobody consumes (async sends, scripts run by Create)
// go to the handler installed with SetErrorHandler, which logs by default.
//
// With Options.UnwindOnError, any failed script dispatched to the thread
// puts it in error state, whether or not a waiting sender or callback
// consumes the result. While in error state, sends fail with
// ErrThreadInError. The thread also leaves its event loop, unless a
// reservation is held; a reserved thread keeps serving events already
// queued and exits on its last Release. ClearError lifts the state, and a
// thread still inside its loop resumes normal service.
//
// # Cancellation
//
// Each running script gets its own frame with a cancelable context.
// Registry.Cancel cancels the innermost frame, or every frame with unwind
// set; the cause is ErrCanceled, optionally carrying a message. Scripts
// observe it through c.Done() and c.Err().
//
// # Concurrency
//
// Event-loop methods may only be called by the thread itself; they panic
// otherwise. Everything on Registry is safe from any goroutine. A thread's
// own state sits behind a small mutex that is never held while a script
// runs.
//
// # Usage
//
//	reg := thread.Default()
//	id := reg.Create(nil, thread.Options{Name: "indexer", UnwindOnError: true})
//	if _, err := reg.Reserve(id); err != nil {
//		return err
//	}
//	defer reg.Release(id, true)
//
//	res, err := reg.Send(ctx, id, func(c *thread.Context) (string, error) {
//		return string(c.Thread().ID()), nil
//	}, thread.SendOptions{})
//	if err != nil {
//		return err
//	}
//	log.Printf("ran on %s", res.Value)
package thread
