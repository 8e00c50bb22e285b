package kthread

// mlfqs.go is component C8, MlfqsPolicy: the 4.4BSD-style multi-level
// feedback queue scheduler (spec.md §4.7). All arithmetic uses the
// 17.14 fixed-point type from fixedpoint.go. Active only when the
// scheduler is constructed with WithPolicy(PolicyMLFQS); otherwise
// these entry points are unreachable from timer.go.

// recomputeMlfqsPriority sets t's priority from its recent_cpu and
// nice per spec.md §4.7: priority = PRI_MAX − round(recent_cpu/4) −
// 2·nice, clamped to [PRI_MIN, PRI_MAX]. Re-sorts the ready list if t
// is on it and its priority changed.
func (s *Scheduler) recomputeMlfqsPriority(t *ThreadBlock) {
	p := PriMax - t.recentCPU.DivInt(4).ToIntRound() - 2*t.nice
	if p < PriMin {
		p = PriMin
	}
	if p > PriMax {
		p = PriMax
	}
	if p == t.effectivePriority {
		return
	}
	t.basePriority = p
	t.effectivePriority = p
	if t.readyElem != nil {
		s.rq.readyReinsert(t)
	}
}

// mlfqsTick is the per-tick MLFQS hook from spec.md §4.7: "increment
// recent_cpu of the current non-idle thread by 1 every tick". Called
// with interrupts already disabled, from Tick.
func (s *Scheduler) mlfqsTick() {
	cur := s.current.Load()
	if cur == s.idle {
		return
	}
	cur.recentCPU = cur.recentCPU.AddInt(1)
}

// mlfqsRecomputeAll recomputes every thread's priority and re-sorts
// the ready list — the "every 4th tick" step.
func (s *Scheduler) mlfqsRecomputeAll() {
	s.rq.allForeach(func(t *ThreadBlock) {
		if t == s.idle {
			return
		}
		s.recomputeMlfqsPriority(t)
	})
}

// mlfqsRecomputeLoadAvgAndDecay is the "every second" step: recomputes
// load_avg from the number of ready-or-running non-idle threads, then
// decays every thread's recent_cpu.
func (s *Scheduler) mlfqsRecomputeLoadAvgAndDecay() {
	readyThreads := s.rq.readyLen()
	if cur := s.current.Load(); cur != s.idle {
		readyThreads++
	}

	fiftyNineSixtieths := FromInt(59).DivInt(60)
	oneSixtieth := FromInt(1).DivInt(60)
	s.loadAvg = fiftyNineSixtieths.Mul(s.loadAvg).Add(oneSixtieth.MulInt(readyThreads))

	twoLoadAvg := s.loadAvg.MulInt(2)
	coeff := twoLoadAvg.Div(twoLoadAvg.AddInt(1))
	s.rq.allForeach(func(t *ThreadBlock) {
		if t == s.idle {
			return
		}
		t.recentCPU = coeff.Mul(t.recentCPU).AddInt(t.nice)
	})
}

// SetNice sets the current thread's nice value, recomputes its
// priority, and yields if a ready thread now outranks it (spec.md
// §4.7: "set_nice(n) writes the thread's nice, recomputes its
// priority, then triggers a conditional yield").
func (s *Scheduler) SetNice(n int) error {
	if n < -20 || n > 20 {
		return ErrNiceOutOfRange
	}
	old := s.intr.Disable()
	cur := s.current.Load()
	cur.nice = n
	s.recomputeMlfqsPriority(cur)
	needYield := s.rq.readyLen() > 0 && s.rq.ready.Front().Value.(*ThreadBlock).effectivePriority > cur.effectivePriority
	s.intr.Enable(old)

	if needYield {
		s.Yield()
	}
	return nil
}

// GetNice returns the current thread's nice value.
func (s *Scheduler) GetNice() int { return s.Current().nice }

// GetLoadAvg returns the system load average scaled by 100, rounded
// to the nearest integer (spec.md §4.7's reporting convention).
func (s *Scheduler) GetLoadAvg() int { return s.loadAvg.Scale100Round() }

// GetRecentCpu returns the current thread's recent_cpu scaled by 100,
// rounded to the nearest integer.
func (s *Scheduler) GetRecentCpu() int { return s.Current().recentCPU.Scale100Round() }
