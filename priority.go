package kthread

// priority.go is component C7, PriorityPolicy: effective-priority
// maintenance and donation through held locks (spec.md §4.6).

// donate walks the lock-wait chain starting at holder, refreshing each
// thread's effective priority in turn, per spec.md §4.6: "walk holder =
// lock.holder; call refresh_effective(holder); if holder.waiting_on is
// non-null, continue the walk." depth is bounded by
// Scheduler.donationDepth (spec.md §7: "Donation chain depth exceeded —
// silently capped, not an error").
func (s *Scheduler) donate(holder *ThreadBlock, depth int) {
	if holder == nil || depth >= s.donationDepth {
		return
	}
	before := holder.effectivePriority
	s.refreshEffective(holder)
	if holder.effectivePriority > before && s.metrics != nil {
		s.metrics.recordDonation()
	}
	if holder.waitingOn != nil {
		s.donate(holder.waitingOn.holder, depth+1)
	}
}

// refreshEffective recomputes t's effective priority as the maximum of
// its base priority and the max_waiter_priority of every lock it holds
// (spec.md §4.6, invariant 3 from §8). Each owned lock's cached
// max_waiter_priority is re-derived from its current front waiter
// first: in a nested chain (L holds a lock M waits on, M holds a lock
// H waits on), H's donation raises M's effective priority *after* M
// already queued on L's lock, so the value cached at M's insertion
// time is stale by the time this walk reaches L — recomputing here is
// what lets donation propagate correctly past one hop. If the new
// value differs and t is on the ready list, it is re-inserted to
// preserve invariant 4.
func (s *Scheduler) refreshEffective(t *ThreadBlock) {
	if s.opts.policy == PolicyMLFQS {
		return
	}
	maxP := t.basePriority
	for lk := range t.ownedLocks {
		lk.recomputeMaxWaiterPriority()
		if lk.maxWaiterPriority > maxP {
			maxP = lk.maxWaiterPriority
		}
	}
	if maxP == t.effectivePriority {
		return
	}
	t.effectivePriority = maxP
	if t.readyElem != nil {
		s.rq.readyReinsert(t)
	}
}

// SetPriority updates the current thread's base priority (spec.md
// §4.6's set_priority). Under MLFQS this is a no-op per spec.md §4.7.
// Effective priority only drops if no donation currently raises it
// above new; if the update lowers effective priority below any ready
// thread, the caller yields.
func (s *Scheduler) SetPriority(p int) error {
	if p < PriMin || p > PriMax {
		return ErrPriorityOutOfRange
	}
	if s.opts.policy == PolicyMLFQS {
		return nil
	}

	old := s.intr.Disable()
	cur := s.Current()
	cur.basePriority = p
	// refreshEffective recomputes max(base, donated floor): this alone
	// implements "drops only if no donation currently raises it above
	// new" (spec.md §4.6), since a still-active donation keeps the max
	// above the new base until the donating lock is released.
	s.refreshEffective(cur)
	needYield := s.rq.readyLen() > 0 && s.rq.ready.Front().Value.(*ThreadBlock).effectivePriority > cur.effectivePriority
	s.intr.Enable(old)

	if needYield {
		s.Yield()
	}
	return nil
}

// GetPriority returns the current thread's effective priority.
func (s *Scheduler) GetPriority() int {
	return s.Current().effectivePriority
}
