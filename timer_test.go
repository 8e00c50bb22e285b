package kthread

import "testing"

// TestTickPreemptionCountMatchesFloorDivision is the testable property
// from spec.md §8: "After N ticks with only the current thread
// runnable, it is preempted exactly floor(N / TIME_SLICE) times."
func TestTickPreemptionCountMatchesFloorDivision(t *testing.T) {
	s, _ := New()
	const n = 23 // 23 / 4 = 5 remainder 3

	preemptions := 0
	for i := 0; i < n; i++ {
		if s.Tick(s.Ticks()+1, TickUser) {
			preemptions++
			// Real callers would Yield here once back in task context;
			// threadTicks is reset by scheduleTail on the next schedule.
			s.Current().threadTicks = 0
		}
	}

	want := n / TimeSlice
	if preemptions != want {
		t.Errorf("preemptions over %d ticks = %d, want floor(%d/%d)=%d", n, preemptions, n, TimeSlice, want)
	}
}

// TestTickClassifiesIdleTicks verifies that ticks passed as TickIdle
// are counted in the idle bucket only (spec.md §4.5 step 1). It does
// not check preemption of the idle thread: main, not idle, is current
// throughout.
func TestTickClassifiesIdleTicks(t *testing.T) {
	s, _ := New()
	// Force current to idle by blocking the initial thread would exit
	// the test goroutine, so instead just verify idle's threadTicks
	// stays zero when idle happens to be current via direct field
	// inspection — idle is never RUNNING here since main holds the CPU,
	// so confirm the classification counters themselves advance instead.
	for i := 0; i < 5; i++ {
		s.Tick(s.Ticks()+1, TickIdle)
	}
	if s.IdleTicks() != 5 {
		t.Errorf("IdleTicks() = %d, want 5", s.IdleTicks())
	}
	if s.UserTicks() != 0 || s.KernelTicks() != 0 {
		t.Errorf("UserTicks/KernelTicks = %d/%d, want 0/0", s.UserTicks(), s.KernelTicks())
	}
}

// TestSleepOrderingWakesAscending mirrors spec scenario 2: three
// threads sleep at tick 0 for 30, 10, and 20 ticks respectively and
// wake in ascending order 10, 20, 30.
func TestSleepOrderingWakesAscending(t *testing.T) {
	s, _ := New()
	rec := &recorder{}

	durations := []int{30, 10, 20}
	for _, d := range durations {
		d := d
		if _, err := s.Create("sleeper", PriDefault, func(any) {
			s.ThreadSleep(d, s.Ticks())
			rec.mark(sleeperName(d))
		}, nil); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	// Created at equal priority to main, the sleepers don't preempt;
	// one Yield chain-schedules all three in turn until each has
	// called ThreadSleep and blocked, handing control back to main.
	s.Yield()

	for i := 0; i < 31; i++ {
		s.Tick(s.Ticks()+1, TickUser)
	}
	// Ticking only moves woken sleepers BLOCKED->READY. The first Yield
	// lets all three run past their wakeup and record themselves, in
	// the FIFO-within-priority order they were woken (each exits
	// straight into the next); the later Yields find only main ready.
	s.Yield()
	s.Yield()
	s.Yield()

	order := s.waitFor(rec, 3)
	assertOrder(t, order, []string{sleeperName(10), sleeperName(20), sleeperName(30)})
}

func sleeperName(d int) string {
	switch d {
	case 10:
		return "sleeper-10"
	case 20:
		return "sleeper-20"
	default:
		return "sleeper-30"
	}
}

// TestThreadSleepNonPositiveTicksReturnsImmediately verifies the
// ticks<=0 fast path never inserts into the sleeping list or blocks.
func TestThreadSleepNonPositiveTicksReturnsImmediately(t *testing.T) {
	s, _ := New()
	before := s.rq.sleepingLen()
	s.ThreadSleep(0, s.Ticks())
	s.ThreadSleep(-5, s.Ticks())
	if after := s.rq.sleepingLen(); after != before {
		t.Errorf("sleepingLen() after non-positive ThreadSleep = %d, want unchanged %d", after, before)
	}
	if s.Current().Status() != StatusRunning {
		t.Errorf("current status = %v, want still RUNNING", s.Current().Status())
	}
}

// TestWokenSleeperHasWakeTimeAtOrBeforeTick verifies the testable
// property: "A thread released from the sleeping list at tick T has
// wake_time <= T and is READY on the next scheduling point."
func TestWokenSleeperHasWakeTimeAtOrBeforeTick(t *testing.T) {
	s, _ := New()
	var wakeTimeAtWake uint64
	woke := make(chan struct{})

	if _, err := s.Create("sleeper", PriDefault, func(any) {
		s.ThreadSleep(5, s.Ticks())
		wakeTimeAtWake = s.Current().wakeTime
		close(woke)
	}, nil); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	// Created at equal priority, the sleeper doesn't preempt; yield once
	// so it runs ThreadSleep(5, 0) and blocks before any ticks land.
	s.Yield()

	var preemptedAtTick uint64
	for i := uint64(1); i <= 5; i++ {
		if s.Tick(i, TickUser) {
			preemptedAtTick = i
		}
	}
	s.Yield() // let the now-READY sleeper actually run

	select {
	case <-woke:
	default:
		t.Fatal("sleeper should have woken by tick 5")
	}
	if wakeTimeAtWake > 5 {
		t.Errorf("woken thread's wake_time = %d, want <= 5", wakeTimeAtWake)
	}
	_ = preemptedAtTick
}
