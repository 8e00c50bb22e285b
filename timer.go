package kthread

// timer.go is component C6, Timer: the interrupt-context tick handler
// (spec.md §4.5). Tick must be called with interrupts already
// disabled and InterruptController.InContext() true, matching the
// native timer interrupt handler's calling convention.

// TickKind classifies which bucket a tick's CPU time is attributed to,
// per spec.md §4.5 step 1.
type TickKind int

const (
	TickIdle TickKind = iota
	TickUser
	TickKernel
)

// Tick advances the simulated clock by one tick and runs the ordering
// spec.md §4.5 requires exactly:
//  1. classify the tick (idle/user/kernel)
//  2. wake due sleepers
//  3. bump thread_ticks, flagging preemption at TIME_SLICE
//  4. under MLFQS, the per-tick/4-tick/1s recompute cascade
//
// Returns true if the current thread should be preempted on return
// from interrupt context (the caller is responsible for actually
// invoking Yield once back in task context, since Yield itself must
// not be called from interrupt context).
func (s *Scheduler) Tick(now uint64, kind TickKind) (preempt bool) {
	s.ticks = now

	switch kind {
	case TickIdle:
		s.idleTicks++
	case TickUser:
		s.userTicks++
	default:
		s.kernelTicks++
	}

	for _, t := range s.rq.sleepWake(now) {
		s.unblockLocked(t)
	}

	cur := s.current.Load()
	if cur != s.idle {
		cur.threadTicks++
		if cur.threadTicks >= TimeSlice {
			preempt = true
		}
	}

	if s.opts.policy == PolicyMLFQS {
		s.mlfqsTick()
		if s.ticks%4 == 0 {
			s.mlfqsRecomputeAll()
		}
		if s.timerFreq > 0 && s.ticks%uint64(s.timerFreq) == 0 {
			s.mlfqsRecomputeLoadAvgAndDecay()
		}
	}

	if preempt && s.metrics != nil {
		s.metrics.recordPreemption()
	}
	return preempt
}

// Ticks returns the number of ticks observed so far.
func (s *Scheduler) Ticks() uint64 { return s.ticks }

// IdleTicks, KernelTicks, and UserTicks report the per-bucket tick
// counts accumulated by Tick's classification step.
func (s *Scheduler) IdleTicks() uint64   { return s.idleTicks }
func (s *Scheduler) KernelTicks() uint64 { return s.kernelTicks }
func (s *Scheduler) UserTicks() uint64   { return s.userTicks }
