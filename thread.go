package kthread

import (
	"container/list"
	"sync"
)

// Scheduling constants from spec §6.
const (
	PriMin     = 0
	PriDefault = 31
	PriMax     = 63
	TimeSlice  = 4 // ticks

	// Magic is the canary word written at a fixed offset of a thread's
	// page; a mismatch on Current() is a stack-overflow assertion.
	Magic uint32 = 0xcd6abf4b
)

// TID is a monotonically increasing thread identifier, unique for the
// lifetime of the Scheduler (spec §3, "unique per process lifetime").
type TID uint64

// ThreadFunc is the body a created thread runs; aux is opaque
// caller-supplied data, exactly mirroring the native `(fn, aux)` pair
// spec §4.4 pushes onto the initial stack frame.
type ThreadFunc func(aux any)

// ThreadBlock is the per-thread record from spec §3. In the native design
// it shares a page with the thread's stack; here the Page is the
// simulated backing store (see page.go) and list membership is tracked
// via explicit *list.Element handles rather than intrusive pointers, per
// the arena-of-handles adaptation in spec §9.
type ThreadBlock struct {
	tid  TID
	name string

	status *fastStatus

	basePriority      int
	effectivePriority int // guarded by Scheduler.intr (interrupt-disable discipline)

	ownedLocks map[*Lock]struct{}
	waitingOn  *Lock

	wakeTime uint64 // absolute tick; 0 if not sleeping

	nice      int
	recentCPU Fixed

	magicPage *Page

	// readyElem is this thread's handle into the ready list (nil when
	// not present), giving O(1) removal/re-insertion without a linear
	// scan (invariant 2, spec §3). The sleeping list is a heap (see
	// runqueue.go) and needs no equivalent handle.
	readyElem *list.Element

	// threadTicks counts ticks accumulated in the current quantum (spec
	// §4.5, reset by scheduleTail).
	threadTicks int

	// resumeCh is how ContextSwitch hands this thread the CPU: the
	// switching-in call sends the thread that was running just before
	// this one resumes (on the very first resume too), which this
	// thread's goroutine uses as the `prev` argument to scheduleTail.
	// Buffered size 1; see contextswitch.go.
	resumeCh chan *ThreadBlock

	fn  ThreadFunc
	aux any

	mu sync.Mutex // protects name (read by Foreach) against rename races; everything else is interrupt-disable-protected
}

// Tid returns the thread's identifier.
func (t *ThreadBlock) Tid() TID { return t.tid }

// Name returns the thread's label.
func (t *ThreadBlock) Name() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.name
}

// Status returns the thread's current status.
func (t *ThreadBlock) Status() Status { return t.status.Load() }

// BasePriority returns the thread's own (real) priority, ignoring
// donation.
func (t *ThreadBlock) BasePriority() int { return t.basePriority }

// EffectivePriority returns the priority used for scheduling.
func (t *ThreadBlock) EffectivePriority() int { return t.effectivePriority }

// Nice returns the thread's MLFQS nice value.
func (t *ThreadBlock) Nice() int { return t.nice }

// RecentCPU returns the thread's MLFQS recent_cpu.
func (t *ThreadBlock) RecentCPU() Fixed { return t.recentCPU }

// checkMagic validates the stack-overflow canary (spec §4.1, §7). Fatal
// on mismatch.
func (t *ThreadBlock) checkMagic() {
	if t.magicPage.Magic() != Magic {
		fatal("magic-mismatch", t.tid, ErrStackOverflow)
	}
}
