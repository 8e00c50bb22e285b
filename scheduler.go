package kthread

import (
	"sync"
	"sync/atomic"
)

// Scheduler is component C4 plus the arena/collaborator wiring from
// SPEC_FULL.md §3a/§4.0a: the single object owning the ready/all/sleeping
// lists, the current-thread pointer, and every out-of-scope collaborator.
type Scheduler struct {
	opts *schedulerOptions

	mu sync.Mutex // not locked by any Scheduler method; the state below relies on interrupt-disable discipline and atomics

	rq *runQueues

	intr      InterruptController
	pageAlloc PageAllocator
	ctxSwitch ContextSwitch
	addrSpace AddressSpaceActivator
	logger    Logger
	metrics   *SchedulerMetrics

	current atomic.Pointer[ThreadBlock]

	idle    *ThreadBlock
	initial *ThreadBlock

	nextTID atomic.Uint64

	// Timer bookkeeping (component C6), guarded by intr (interrupts
	// disabled during Tick, per spec §4.5).
	ticks       uint64
	loadAvg     Fixed
	timerFreq   int
	idleTicks   uint64
	kernelTicks uint64
	userTicks   uint64

	donationDepth int

	timerDriver TimerDriver

	closed atomic.Bool
}

// New creates a Scheduler and its idle and initial threads, wiring the
// default collaborators unless overridden by Option.
func New(opts ...Option) (*Scheduler, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		opts:          cfg,
		rq:            newRunQueues(),
		intr:          cfg.interruptCtl,
		pageAlloc:     cfg.pageAllocator,
		ctxSwitch:     cfg.contextSwitch,
		addrSpace:     cfg.addressSpace,
		logger:        cfg.logger,
		timerFreq:     cfg.timerFreq,
		donationDepth: cfg.maxDonationDepth,
		timerDriver:   cfg.timerDriver,
	}
	if s.intr == nil {
		s.intr = NewInterruptController()
	}
	if s.pageAlloc == nil {
		s.pageAlloc = NewPageAllocator(cfg.maxPages)
	}
	if s.ctxSwitch == nil {
		s.ctxSwitch = NewContextSwitch()
	}
	if s.addrSpace == nil {
		s.addrSpace = NewAddressSpaceActivator()
	}
	if cfg.metricsEnabled {
		s.metrics = newSchedulerMetrics()
	}

	// The initial thread: the "boot" thread, whose identity is the one
	// special-cased by scheduleTail ("prev != initial_thread"). It is
	// current from construction without going through Create (its page
	// comes from the same allocator, via newThreadBlock), mirroring
	// Pintos's thread_init() wrapping the boot stack in a ThreadBlock.
	initial, err := s.newThreadBlock("main", PriDefault)
	if err != nil {
		return nil, err
	}
	initial.status.Store(StatusRunning)
	s.rq.allAdd(initial)
	s.initial = initial
	s.current.Store(initial)

	// The idle thread (spec §4.4): created at start, never placed on the
	// ready list (its status cycles RUNNING/BLOCKED, never READY), picked
	// by nextToRun only when the ready list is empty.
	idle, err := s.newThreadBlock("idle", PriMin)
	if err != nil {
		return nil, err
	}
	idle.status.Store(StatusBlocked)
	idle.fn = func(aux any) {
		sc := aux.(*Scheduler)
		for {
			old := sc.intr.Disable()
			sc.blockCurrent()
			sc.intr.Enable(old)
		}
	}
	idle.aux = s
	s.rq.allAdd(idle)
	s.idle = idle
	s.launchThread(idle)

	return s, nil
}

// newThreadBlock allocates a page and zero-value ThreadBlock without
// registering it anywhere, shared by New (for the initial thread) and
// Create.
func (s *Scheduler) newThreadBlock(name string, prio int) (*ThreadBlock, error) {
	page, err := s.pageAlloc.Alloc()
	if err != nil {
		return nil, WrapError("allocate thread page", err)
	}
	page.SetMagic(Magic)

	t := &ThreadBlock{
		tid:               TID(s.nextTID.Add(1)),
		name:              name,
		status:            newFastStatus(StatusReady),
		basePriority:      prio,
		effectivePriority: prio,
		ownedLocks:        make(map[*Lock]struct{}),
		magicPage:         page,
		resumeCh:          make(chan *ThreadBlock, 1),
	}
	return t, nil
}

// Current returns the ThreadBlock presently RUNNING, validating its
// stack-overflow canary first (spec §4.1, §7).
func (s *Scheduler) Current() *ThreadBlock {
	t := s.current.Load()
	t.checkMagic()
	return t
}

// nextToRun pops the highest-priority ready thread, or returns idle if
// the ready list is empty (spec §4.3).
func (s *Scheduler) nextToRun() *ThreadBlock {
	if t := s.rq.readyPopFront(); t != nil {
		return t
	}
	return s.idle
}

// schedule is the core dispatch loop (spec §4.3). Precondition: interrupts
// disabled, current thread's status already transitioned away from
// RUNNING by the caller (Block/Yield/Exit).
func (s *Scheduler) schedule() {
	cur := s.current.Load()
	next := s.nextToRun()

	var prev *ThreadBlock
	if next != cur {
		if s.metrics != nil {
			s.metrics.recordContextSwitch()
		}
		prev = s.ctxSwitch.Switch(cur, next)
	}
	s.scheduleTail(cur, prev)
}

// scheduleTail is spec §4.3's post-switch housekeeping, run by whichever
// thread has just become current (self). Must be called with interrupts
// disabled.
func (s *Scheduler) scheduleTail(self, prev *ThreadBlock) {
	self.status.Store(StatusRunning)
	s.current.Store(self)
	self.threadTicks = 0
	s.addrSpace.Activate(self)
	if s.metrics != nil {
		s.metrics.recordRunning(self.tid)
	}

	if prev != nil && prev.status.Load() == StatusDying && prev != s.initial {
		// Exit already removed prev from all-threads (spec.md §4.4);
		// freeing its page is the one piece of teardown that must wait
		// until prev has genuinely left the CPU (spec.md §3).
		s.pageAlloc.Free(prev.magicPage)
		s.logger.Log(LogEntry{Level: LevelDebug, Category: "schedule", Message: "freed dying thread's page", TID: prev.tid})
	}
}

// blockCurrent is the common body shared by Block and the idle loop:
// transition current to BLOCKED and invoke schedule. Precondition:
// interrupts disabled, not in interrupt context.
func (s *Scheduler) blockCurrent() {
	cur := s.current.Load()
	if !cur.status.TryTransition(StatusRunning, StatusBlocked) {
		fatal("block-not-running", cur.tid, ErrUnblockNotBlocked)
	}
	s.schedule()
}

// Metrics returns the scheduler's metrics snapshot, or nil if metrics
// were not enabled via WithMetrics.
func (s *Scheduler) Metrics() *SchedulerMetrics {
	return s.metrics
}

// Policy returns the configured scheduling policy.
func (s *Scheduler) Policy() Policy {
	return s.opts.policy
}

// Close shuts the scheduler down: stops the configured TimerDriver (if
// any, per WithTimerDriver) and marks the scheduler closed, so a later
// Create returns ErrSchedulerClosed instead of allocating a thread that
// would never be driven. Close itself is not a scheduling operation,
// but follows the same task-context-only discipline as the rest of the
// lifecycle surface for consistency. Calling Close a second time
// returns ErrSchedulerClosed rather than double-stopping the driver.
func (s *Scheduler) Close() error {
	if s.intr.InContext() {
		fatal("close-in-interrupt-context", s.Current().tid, ErrWrongInterruptState)
	}
	if !s.closed.CompareAndSwap(false, true) {
		return ErrSchedulerClosed
	}
	if s.timerDriver != nil {
		s.timerDriver.Stop()
	}
	return nil
}
