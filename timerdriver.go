package kthread

import "time"

// TickEvent is what a TimerDriver produces: the simulated clock value
// and which bucket the tick should be classified toward.
type TickEvent struct {
	Now  uint64
	Kind TickKind
}

// TimerDriver is the out-of-scope collaborator from spec §1 ("Timer
// interrupt driver"): something that produces ticks at TIMER_FREQ.
// Scheduler.Tick does the actual scheduling work; TimerDriver only
// decides when to call it.
type TimerDriver interface {
	Ticks() <-chan TickEvent
	Stop()
}

// realTimerDriver produces ticks from a time.Ticker, for running the
// simulation against a wall clock.
type realTimerDriver struct {
	ticker *time.Ticker
	ch     chan TickEvent
	done   chan struct{}
}

// NewRealTimerDriver returns a TimerDriver firing hz times per
// (wall-clock) second, classifying every tick as TickUser — real
// idle/kernel classification belongs to whatever embeds the
// scheduler, since this driver has no notion of what's running.
func NewRealTimerDriver(hz int) TimerDriver {
	d := &realTimerDriver{
		ticker: time.NewTicker(time.Second / time.Duration(hz)),
		ch:     make(chan TickEvent, 1),
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *realTimerDriver) run() {
	var now uint64
	for {
		select {
		case <-d.ticker.C:
			now++
			select {
			case d.ch <- TickEvent{Now: now, Kind: TickUser}:
			case <-d.done:
				return
			}
		case <-d.done:
			return
		}
	}
}

func (d *realTimerDriver) Ticks() <-chan TickEvent { return d.ch }

func (d *realTimerDriver) Stop() {
	d.ticker.Stop()
	close(d.done)
}

// testTimerDriver is a deterministic, manually-pumped TimerDriver for
// tests and the CLI's --ticks flag: nothing fires until Advance is
// called.
type testTimerDriver struct {
	ch  chan TickEvent
	now uint64
}

// NewTestTimerDriver returns a TimerDriver with no automatic cadence;
// call Advance to emit ticks one at a time.
func NewTestTimerDriver() *testTimerDriver {
	return &testTimerDriver{ch: make(chan TickEvent, 1)}
}

func (d *testTimerDriver) Ticks() <-chan TickEvent { return d.ch }

func (d *testTimerDriver) Stop() { close(d.ch) }

// Advance emits the next tick, classified kind, synchronously.
func (d *testTimerDriver) Advance(kind TickKind) {
	d.now++
	d.ch <- TickEvent{Now: d.now, Kind: kind}
}

// ConsumeTimer drains one TickEvent from driver and applies it,
// bracketing the call with EnterInterruptContext/LeaveInterruptContext
// the way the native timer interrupt handler brackets Tick (spec.md
// §4.5), then yielding if Tick signaled a preemption. Must be called
// by the goroutine currently running as the scheduler's current
// thread: like Yield, this is a task-context operation, and the
// resumeCh handoff in contextswitch.go means only that goroutine can
// safely block inside Switch. Returns false once driver's channel is
// closed (Stop was called), so the zero value is "nothing left to
// consume".
func (s *Scheduler) ConsumeTimer(driver TimerDriver) bool {
	ev, ok := <-driver.Ticks()
	if !ok {
		return false
	}

	old := s.intr.Disable()
	s.intr.EnterInterruptContext()
	preempt := s.Tick(ev.Now, ev.Kind)
	s.intr.LeaveInterruptContext()
	s.intr.Enable(old)

	if preempt {
		s.Yield()
	}
	return true
}

// Run drives the scheduler from driver until its channel closes,
// calling ConsumeTimer in a loop on the caller's own goroutine (see
// ConsumeTimer's calling-convention note). Intended for callers that
// want the simple "run until the driver stops" shape; callers that
// need to interleave other task-context work between ticks should
// call ConsumeTimer directly instead.
func (s *Scheduler) Run(driver TimerDriver) {
	for s.ConsumeTimer(driver) {
	}
}
