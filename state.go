package kthread

import (
	"sync/atomic"
)

// Status is the thread status from spec §3: exactly one of
// {RUNNING, READY, BLOCKED, DYING}.
//
// State Machine:
//
//	READY (1) → RUNNING (0)     [scheduleTail, on context switch in]
//	RUNNING (0) → READY (1)     [Yield, timer preemption: re-inserted into ready list]
//	RUNNING (0) → BLOCKED (2)   [Block, lock contention, Sleep]
//	BLOCKED (2) → READY (1)     [Unblock: wake from sleep or lock release]
//	RUNNING (0) → DYING (3)     [Exit]
//
// Transition rules:
//   - Use TryTransition (CAS) wherever a thread's own status and another
//     actor's view of it (the scheduler picking it, the timer waking it)
//     could otherwise race.
//   - DYING is terminal; a dying thread is never transitioned elsewhere.
type Status uint32

const (
	// StatusRunning is the single thread currently executing on the CPU.
	StatusRunning Status = 0
	// StatusReady means present in the ready list, eligible to be picked
	// by the next call to Schedule.
	StatusReady Status = 1
	// StatusBlocked means off the ready list, waiting on a lock, a sleep
	// deadline, or a semaphore down.
	StatusBlocked Status = 2
	// StatusDying means the thread has called Exit and is waiting for the
	// successor's schedule tail to free its page.
	StatusDying Status = 3
)

// String returns a human-readable representation of the status.
func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "RUNNING"
	case StatusReady:
		return "READY"
	case StatusBlocked:
		return "BLOCKED"
	case StatusDying:
		return "DYING"
	default:
		return "UNKNOWN"
	}
}

// fastStatus is a lock-free status cell with cache-line padding, used by
// ThreadBlock so status reads from Foreach/metrics never contend with the
// scheduler's own CAS transitions.
type fastStatus struct { // betteralign:ignore
	_ [64]byte      // cache line padding (before value) //nolint:unused
	v atomic.Uint32 // status value
	_ [60]byte      // pad to complete cache line //nolint:unused
}

func newFastStatus(initial Status) *fastStatus {
	s := &fastStatus{}
	s.v.Store(uint32(initial))
	return s
}

// Load returns the current status atomically.
func (s *fastStatus) Load() Status {
	return Status(s.v.Load())
}

// Store atomically stores a new status, bypassing transition validation.
// Used only where the caller has already established exclusivity via
// interrupt-disable (e.g. the initial READY→RUNNING handoff inside
// scheduleTail, which no concurrent actor can observe mid-transition).
func (s *fastStatus) Store(status Status) {
	s.v.Store(uint32(status))
}

// TryTransition attempts to atomically move from one status to another.
func (s *fastStatus) TryTransition(from, to Status) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}
