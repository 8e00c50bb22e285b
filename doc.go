// Package kthread implements the scheduler, thread lifecycle, and
// priority-donation / MLFQS machinery of a small preemptive kernel,
// simulated entirely in-process.
//
// # Architecture
//
// A [Scheduler] owns three lists (ready, all-threads, sleeping; see
// runqueue.go), an atomic current-thread pointer, and every
// out-of-scope hardware collaborator the design assumes: a
// [ContextSwitch] (goroutine handoff standing in for register
// save/restore), a [PageAllocator] (fixed-size backing store for each
// [ThreadBlock]'s canary), an [InterruptController] (atomic
// disable/enable, not a mutex — see interrupt.go's comment on why a
// blocking mutex would deadlock the simulation), an
// [AddressSpaceActivator] (no-op by default), and a [TimerDriver]
// (wall-clock or manually-pumped ticks).
//
// Two scheduling policies are supported, selected by [WithPolicy]: the
// default priority round-robin with donation (priority.go, lock.go),
// and 4.4BSD-style MLFQS (mlfqs.go), both using the 17.14 fixed-point
// type in fixedpoint.go for recent_cpu/load_avg arithmetic.
//
// # Concurrency model
//
// Exactly one [ThreadBlock]'s goroutine is ever logically running at a
// time, enforced by the resumeCh handoff in contextswitch.go. This
// uniprocessor discipline is what lets InterruptController be a plain
// atomic save/restore rather than a true mutex, and why every public
// Scheduler operation documents whether it may be called from
// interrupt context (the timer's Tick handler) or only from task
// context.
//
// # Observability
//
// [SchedulerMetrics] (metrics.go) and [Logger] (logging.go) are both
// optional and zero-overhead when unused; metrics is opt-in via
// [WithMetrics], and the default logger discards everything.
package kthread
