package kthread

import "sync/atomic"

// IntrLevel mirrors the native interrupt-enable/disable primitive's
// return/argument type (spec §1: "disable / enable / query level").
type IntrLevel int

const (
	IntrOff IntrLevel = iota
	IntrOn
)

// InterruptController is the out-of-scope collaborator from spec §1:
// "Interrupt-control primitive (disable / enable / query level; 'in
// interrupt context' predicate)".
//
// The real primitive (Pintos's intr_disable/intr_set_level) never
// blocks: it just flips a CPU flag and returns the previous value, on
// the assumption that exactly one thread of control is ever "the CPU"
// at a time. That assumption still holds in this simulation — the
// resumeCh handoff in contextswitch.go guarantees only one
// ThreadBlock's goroutine is ever logically running — so the default
// implementation below is a plain atomic save/restore, not a mutex: a
// mutex held across a blocking Switch (as a first attempt at this did)
// would deadlock the instant the next-running thread needed to touch
// interrupt state itself.
type InterruptController interface {
	Disable() IntrLevel
	Enable(old IntrLevel)
	Level() IntrLevel
	InContext() bool
	// EnterInterruptContext/LeaveInterruptContext bracket the timer
	// driver's tick handler, marking InContext() true for its duration.
	EnterInterruptContext()
	LeaveInterruptContext()
}

// uniprocessorIntr is the default InterruptController.
type uniprocessorIntr struct {
	level     atomic.Int32
	inContext atomic.Bool
}

// NewInterruptController returns the default InterruptController, with
// interrupts initially enabled.
func NewInterruptController() InterruptController {
	ic := &uniprocessorIntr{}
	ic.level.Store(int32(IntrOn))
	return ic
}

// Disable sets the level to off and returns whatever level was in
// effect beforehand, for a later matching Enable to restore — exactly
// the native intr_disable/intr_set_level(old) contract, including
// reentrant nesting (Disable while already off just returns IntrOff).
func (ic *uniprocessorIntr) Disable() IntrLevel {
	return IntrLevel(ic.level.Swap(int32(IntrOff)))
}

// Enable restores the level that was in effect before the matching
// Disable call.
func (ic *uniprocessorIntr) Enable(old IntrLevel) {
	ic.level.Store(int32(old))
}

func (ic *uniprocessorIntr) Level() IntrLevel {
	return IntrLevel(ic.level.Load())
}

func (ic *uniprocessorIntr) InContext() bool {
	return ic.inContext.Load()
}

func (ic *uniprocessorIntr) EnterInterruptContext() {
	ic.inContext.Store(true)
}

func (ic *uniprocessorIntr) LeaveInterruptContext() {
	ic.inContext.Store(false)
}
