package kthread

// lifecycle.go is component C5, Lifecycle: create/block/unblock/yield/exit
// and the per-thread accessors spec.md §6 lists as exposed operations.

// launchThread starts t's goroutine. It parks immediately on t's resume
// channel; nothing user-visible runs until some future Switch names t
// as the target, at which point scheduleTail formally makes t current
// before t.fn runs. When fn returns, the thread exits itself (spec.md
// §4.4: a thread whose function returns is equivalent to it calling
// exit()).
func (s *Scheduler) launchThread(t *ThreadBlock) {
	go func() {
		prev := <-t.resumeCh
		s.scheduleTail(t, prev)
		t.fn(t.aux)
		s.Exit()
	}()
}

// Create allocates a new thread, adds it to the ready list, and
// returns its tid (spec.md §6's create(name, priority, function, aux)).
// Per scenario 6 ("create triggers yield"), if the new thread
// outranks the caller, Create yields before returning so the new
// thread has run at least once by the time Create returns.
func (s *Scheduler) Create(name string, priority int, fn ThreadFunc, aux any) (TID, error) {
	if s.closed.Load() {
		return 0, ErrSchedulerClosed
	}
	if priority < PriMin || priority > PriMax {
		return 0, ErrPriorityOutOfRange
	}

	t, err := s.newThreadBlock(name, priority)
	if err != nil {
		return 0, err
	}
	t.fn = fn
	t.aux = aux

	old := s.intr.Disable()
	cur := s.Current()
	if s.opts.policy == PolicyMLFQS {
		t.nice = cur.nice
		t.recentCPU = cur.recentCPU
		s.recomputeMlfqsPriority(t)
	}

	s.rq.allAdd(t)
	t.status.Store(StatusReady)
	s.rq.readyInsert(t)
	s.launchThread(t)

	s.logger.Log(LogEntry{Level: LevelDebug, Category: "lifecycle", Message: "thread created", TID: t.tid})

	needYield := t.effectivePriority > cur.effectivePriority
	s.intr.Enable(old)

	if needYield {
		s.Yield()
	}
	return t.tid, nil
}

// Block transitions the current thread to BLOCKED and invokes the
// scheduler. Must be called from task context; calling it from
// interrupt context is a contract violation (spec.md §5, §7).
func (s *Scheduler) Block() {
	if s.intr.InContext() {
		fatal("block-in-interrupt-context", s.Current().tid, ErrBlockInInterruptContext)
	}
	old := s.intr.Disable()
	s.blockCurrent()
	s.intr.Enable(old)
}

// Unblock moves t from BLOCKED to READY and inserts it on the ready
// list. Callable from task or interrupt context (spec.md §5: "it may
// call unblock").
func (s *Scheduler) Unblock(t *ThreadBlock) {
	old := s.intr.Disable()
	s.unblockLocked(t)
	s.intr.Enable(old)
}

// unblockLocked is Unblock's body, callable by internal code that
// already holds interrupts disabled (Lock/Semaphore release paths,
// sleepWake).
func (s *Scheduler) unblockLocked(t *ThreadBlock) {
	if !t.status.TryTransition(StatusBlocked, StatusReady) {
		fatal("unblock-not-blocked", t.tid, ErrUnblockNotBlocked)
	}
	s.rq.readyInsert(t)
	if s.metrics != nil {
		s.metrics.recordUnblock(t.tid)
	}
}

// Yield transitions the current thread from RUNNING back to READY
// (re-inserted on the ready list) and invokes the scheduler, without
// blocking it. Must be called from task context.
func (s *Scheduler) Yield() {
	if s.intr.InContext() {
		fatal("yield-in-interrupt-context", s.Current().tid, ErrYieldInInterruptContext)
	}
	old := s.intr.Disable()
	s.yieldCurrent()
	s.intr.Enable(old)
}

// yieldCurrent is Yield's body for callers that already hold
// interrupts disabled (Lock.Release, Semaphore.Up).
// The idle thread never yields onto the ready list; its BLOCKED/RUNNING
// cycle is driven entirely by nextToRun picking it when the ready list
// is empty.
func (s *Scheduler) yieldCurrent() {
	cur := s.current.Load()
	if cur == s.idle {
		return
	}
	if !cur.status.TryTransition(StatusRunning, StatusReady) {
		fatal("yield-not-running", cur.tid, ErrUnblockNotBlocked)
	}
	s.rq.readyInsert(cur)
	s.schedule()
}

// Exit tears the current thread down and never returns to its caller
// (spec.md §6, §7: "all others either succeed by construction or
// assert"; exit is the one operation whose contract is to never come
// back). Per spec.md §4.4's literal ordering — "disables interrupts;
// removes from all-threads; status DYING; schedule; never returns" —
// removal from all-threads is exit's own responsibility, done before
// the DYING transition and before scheduling away; only the page itself
// waits for the successor's scheduleTail to free it (spec.md §3's
// lifecycle paragraph: "Storage... is freed by the next thread's
// scheduler tail after the DYING thread has left the CPU").
func (s *Scheduler) Exit() {
	if s.intr.InContext() {
		fatal("exit-in-interrupt-context", s.Current().tid, ErrExitInInterruptContext)
	}
	s.intr.Disable()
	cur := s.current.Load()
	s.rq.allRemove(cur)
	if !cur.status.TryTransition(StatusRunning, StatusDying) {
		fatal("exit-not-running", cur.tid, ErrUnblockNotBlocked)
	}
	s.logger.Log(LogEntry{Level: LevelDebug, Category: "lifecycle", Message: "thread exiting", TID: cur.tid})
	s.schedule()
	// schedule never returns to a DYING thread: the successor's
	// scheduleTail frees this thread's page, and this goroutine's stack
	// is abandoned here for good.
	panic("unreachable: scheduled-away thread resumed after Exit")
}

// Foreach invokes fn(t, aux) once per live thread, with interrupts
// disabled throughout (spec.md §6: "foreach(fn, aux) — interrupts
// off"). fn must not block, sleep, or call Create/Exit.
func (s *Scheduler) Foreach(fn func(t *ThreadBlock, aux any), aux any) {
	old := s.intr.Disable()
	defer s.intr.Enable(old)
	s.foreachRequireIntrOff(func(t *ThreadBlock) { fn(t, aux) })
}

// foreachRequireIntrOff is Foreach's body, asserting the precondition
// spec.md §6 states for foreach: interrupts already disabled by the
// caller. Foreach itself disables interrupts before reaching here;
// the assertion exists for any future internal caller (e.g. Close
// cleanup logic) that might reach this without having disabled
// interrupts first.
func (s *Scheduler) foreachRequireIntrOff(fn func(t *ThreadBlock)) {
	if s.intr.Level() != IntrOff {
		fatal("foreach-requires-interrupts-disabled", s.Current().tid, ErrForeachNeedsIntrOff)
	}
	s.rq.allForeach(fn)
}

// Tid returns the current thread's tid.
func (s *Scheduler) Tid() TID { return s.Current().tid }

// Name returns the current thread's name.
func (s *Scheduler) Name() string { return s.Current().Name() }

// ThreadSleep sets the current thread's wake_time to now+ticks,
// inserts it into the sleeping list, and blocks (spec.md §4.5:
// "thread_sleep(ticks, now), called from task context with interrupts
// disabled by the timer API"). ticks <= 0 returns immediately without
// sleeping.
func (s *Scheduler) ThreadSleep(ticks int, now uint64) {
	if ticks <= 0 {
		return
	}
	if s.intr.InContext() {
		fatal("sleep-in-interrupt-context", s.Current().tid, ErrBlockInInterruptContext)
	}
	old := s.intr.Disable()
	cur := s.current.Load()
	cur.wakeTime = now + uint64(ticks)
	s.rq.sleepInsert(cur)
	s.blockCurrent()
	s.intr.Enable(old)
}
