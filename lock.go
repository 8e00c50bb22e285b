package kthread

import "container/list"

// Lock and Semaphore are component C11, SyncPrimitives: the concrete
// synchronization primitives spec.md §9 calls out as living outside the
// core ("SyncGlue... consumed from the external lock/semaphore module")
// but which this repository provides directly, because a donation test
// suite needs something real to donate through (SPEC_FULL.md §4.9a).
//
// Both satisfy spec.md §4.8 literally: interrupts are disabled around
// every mutation, waiters are ordered by effective priority with FIFO
// among equals, and Lock maintains the cached max_waiter_priority that
// PriorityPolicy's refresh_effective reads.

// Lock is a single-holder synchronization primitive with priority
// donation. The zero value is not usable; construct with NewLock.
type Lock struct {
	sched *Scheduler

	holder            *ThreadBlock
	waiters           *list.List // *ThreadBlock, descending effective priority, FIFO among equals
	maxWaiterPriority int        // cached; sentinel noWaiterPriority when waiters is empty
}

const noWaiterPriority = -1

// NewLock creates a Lock bound to s, used for donation and blocking.
func NewLock(s *Scheduler) *Lock {
	return &Lock{sched: s, waiters: list.New(), maxWaiterPriority: noWaiterPriority}
}

// Holder returns the lock's current holder, or nil if unheld. Safe to
// call from any context; the result may be stale the instant it
// returns under contention.
func (l *Lock) Holder() *ThreadBlock { return l.holder }

// MaxWaiterPriority returns the cached highest effective priority among
// current waiters, or -1 if there are none.
func (l *Lock) MaxWaiterPriority() int { return l.maxWaiterPriority }

// Acquire blocks until the calling thread (Scheduler.Current()) holds
// the lock. Must be called from task context (spec.md §5).
func (l *Lock) Acquire() {
	s := l.sched
	old := s.intr.Disable()
	defer s.intr.Enable(old)

	cur := s.Current()
	if l.holder == nil {
		l.holder = cur
		cur.ownedLocks[l] = struct{}{}
		return
	}

	cur.waitingOn = l
	l.insertWaiter(cur)
	l.recomputeMaxWaiterPriority()
	if s.metrics != nil {
		s.metrics.recordLockWait()
	}
	s.donate(l.holder, 0)

	s.blockCurrent()
	// Woken by Release, which already installed us as the new holder
	// before unblocking us (direct handoff), so there is nothing left
	// to do here.
}

// Release relinquishes the lock, handing it directly to the
// highest-priority waiter (if any) and reversing any donation this
// thread received on the waiter's account.
func (l *Lock) Release() {
	s := l.sched
	old := s.intr.Disable()
	defer s.intr.Enable(old)

	cur := s.Current()
	delete(cur.ownedLocks, l)

	w := l.popHighestWaiter()
	if w == nil {
		l.holder = nil
	} else {
		l.holder = w
		w.ownedLocks[l] = struct{}{}
		w.waitingOn = nil
		s.unblockLocked(w)
	}
	l.recomputeMaxWaiterPriority()

	s.refreshEffective(cur)
	if w != nil && w.effectivePriority > cur.effectivePriority {
		s.yieldCurrent()
	}
}

// insertWaiter inserts t into the waiters list ordered by descending
// effective priority, FIFO among equals — identical discipline to the
// ready list (spec.md invariant 4, extended to lock waiters by §4.8).
func (l *Lock) insertWaiter(t *ThreadBlock) {
	for e := l.waiters.Front(); e != nil; e = e.Next() {
		if e.Value.(*ThreadBlock).effectivePriority < t.effectivePriority {
			l.waiters.InsertBefore(t, e)
			return
		}
	}
	l.waiters.PushBack(t)
}

// popHighestWaiter removes and returns the front (highest-priority)
// waiter, or nil if none are waiting.
func (l *Lock) popHighestWaiter() *ThreadBlock {
	e := l.waiters.Front()
	if e == nil {
		return nil
	}
	l.waiters.Remove(e)
	return e.Value.(*ThreadBlock)
}

// recomputeMaxWaiterPriority re-reads the current effective priority of
// the front waiter; called after every insert/remove rather than
// maintained incrementally. The waiters list is ordered by priority at
// insertion time and is not re-sorted when a waiter's priority changes
// afterwards.
func (l *Lock) recomputeMaxWaiterPriority() {
	if l.waiters.Len() == 0 {
		l.maxWaiterPriority = noWaiterPriority
		return
	}
	l.maxWaiterPriority = l.waiters.Front().Value.(*ThreadBlock).effectivePriority
}

// Semaphore is a counting synchronization primitive with no donation
// (spec.md's donation machinery is specific to Lock); waiters are
// still ordered by effective priority, FIFO among equals.
type Semaphore struct {
	sched   *Scheduler
	value   int
	waiters *list.List
}

// NewSemaphore creates a Semaphore bound to s with the given initial
// value.
func NewSemaphore(s *Scheduler, value int) *Semaphore {
	return &Semaphore{sched: s, value: value, waiters: list.New()}
}

// Value returns the semaphore's current count.
func (sem *Semaphore) Value() int { return sem.value }

// Down blocks until the semaphore's value is positive, then
// decrements it. Mirrors the classic loop-and-recheck shape (not a
// single if), since a woken waiter must re-test value rather than
// assume the wakeup means it was granted.
func (sem *Semaphore) Down() {
	s := sem.sched
	old := s.intr.Disable()
	defer s.intr.Enable(old)

	for sem.value == 0 {
		cur := s.Current()
		sem.insertWaiter(cur)
		s.blockCurrent()
	}
	sem.value--
}

// Up increments the semaphore's value, waking the highest-priority
// waiter if any are blocked on Down.
func (sem *Semaphore) Up() {
	s := sem.sched
	old := s.intr.Disable()
	defer s.intr.Enable(old)

	w := sem.popHighestWaiter()
	sem.value++
	if w != nil {
		s.unblockLocked(w)
		if w.effectivePriority > s.Current().effectivePriority {
			s.yieldCurrent()
		}
	}
}

func (sem *Semaphore) insertWaiter(t *ThreadBlock) {
	for e := sem.waiters.Front(); e != nil; e = e.Next() {
		if e.Value.(*ThreadBlock).effectivePriority < t.effectivePriority {
			sem.waiters.InsertBefore(t, e)
			return
		}
	}
	sem.waiters.PushBack(t)
}

func (sem *Semaphore) popHighestWaiter() *ThreadBlock {
	e := sem.waiters.Front()
	if e == nil {
		return nil
	}
	sem.waiters.Remove(e)
	return e.Value.(*ThreadBlock)
}
