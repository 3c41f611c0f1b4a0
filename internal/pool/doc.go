// Package pool implements thread pools: a FIFO job queue served by between
// Min and Max worker threads, with idle-timeout retirement of surplus
// workers.
//
// # Overview
//
// Workers are registered threads (see internal/thread), so each one also
// owns a mailbox that it drains between jobs. Pools are created through a
// Manager, which names them "tpool1", "tpool2", ... and tears a pool down
// once its reservation count drops to zero. The daemon runs a single pool
// for the /jobs endpoints; scripts may create more.
//
// # Architecture
//
//	           Post                       Wait / Get
//	             │                            ▲
//	             ▼                            │
//	┌────────────────────────────────────────────────────┐
//	│                       POOL                          │
//	│                                                     │
//	│  queue ─► [ job5 | job4 | job3 ]      results{id}   │
//	│                    │                      ▲         │
//	│        work cond   │                      │ changed │
//	│      ┌─────────────┼──────────────┐       │  cond   │
//	│      ▼             ▼              ▼       │         │
//	│  ┌────────┐   ┌────────┐     ┌────────┐   │         │
//	│  │worker 1│   │worker 2│ ... │worker n│───┘         │
//	│  │ thread │   │ thread │     │ thread │             │
//	│  └────────┘   └────────┘     └────────┘             │
//	│     Min ≤ n ≤ Max     avail cond / gone cond        │
//	└────────────────────────────────────────────────────┘
//
// One mutex guards the queue and all counters. Four condition variables
// hang off it:
//
//   - work: a job was queued, or the pool is closing or resumed
//   - avail: a worker went idle or left
//   - changed: a job completed
//   - gone: a worker left the live count
//
// The conditions come from internal/locks, whose Cond also offers a wake
// channel, so a waiter that is a registered thread can serve its mailbox
// while it blocks.
//
// # Posting Jobs
//
// Post queues a job. Unless NoWait is set, Post first waits for an idle
// worker, starting a new one if the pool is below Max. A caller that is a
// registered thread keeps serving its own mailbox while it waits. Results of
// non-detached jobs are kept until Get collects them; Wait blocks until at
// least one of a set of jobs has completed. Detached jobs keep no result;
// their failures go to the thread error handler.
//
// Cancel removes jobs that have not started. Suspend stops workers from
// taking new jobs without affecting the one they run; Resume lets them
// continue.
//
// # Worker Lifecycle
//
//	start ─► Init ─┬─ fail ─► report to starter, leave
//	               │
//	               ▼
//	            idle ◄──────────┐
//	               │ job        │
//	               ▼            │
//	            running ────────┘
//	               │ idle past timeout (above Min), or pool closing
//	               ▼
//	             Exit script ─► leave live count ─► thread exits
//
// A worker counts toward Stats().Workers until its exit script has
// finished. A job that ends the worker thread itself, for example by
// calling Thread.Exit, settles with ErrTargetThreadDied; the worker leaves
// the live count without running the exit script, and the next Post starts
// a replacement.
//
// # Teardown
//
// Releasing the last reservation closes the pool. Queued jobs are dropped,
// idle workers wake and leave, and busy workers leave after their current
// job. With wait set, Release blocks until every worker thread other than
// the caller has exited. Waiters in Wait get ErrPoolClosed.
//
// # Usage
//
//	m := pool.NewManager(thread.Default())
//	p, err := m.Create(pool.Config{Min: 1, Max: 4, IdleTimeout: 30 * time.Second})
//	if err != nil {
//		return err
//	}
//	defer p.Release(true)
//
//	id, err := p.Post(ctx, func(c *thread.Context) (string, error) {
//		n, err := ks.Incr("counters", "hits", 1)
//		return strconv.FormatInt(n, 10), err
//	}, pool.PostOptions{})
//	if err != nil {
//		return err
//	}
//	if _, _, err := p.Wait(ctx, []pool.JobID{id}); err != nil {
//		return err
//	}
//	res, err := p.Get(id)
package pool
