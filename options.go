package kthread

// schedulerOptions holds configuration resolved at New time.
type schedulerOptions struct {
	policy            Policy
	metricsEnabled    bool
	logger            Logger
	timerFreq         int
	maxPages          int
	maxDonationDepth  int
	pageAllocator     PageAllocator
	contextSwitch     ContextSwitch
	interruptCtl      InterruptController
	addressSpace      AddressSpaceActivator
	timerDriver       TimerDriver
}

// Policy selects the scheduling discipline, mirroring the kernel
// command-line flag `-o mlfqs` from spec §6.
type Policy int

const (
	// PolicyPriorityDonation is priority round-robin with donation
	// (the default, matching an absent `-o mlfqs`).
	PolicyPriorityDonation Policy = iota
	// PolicyMLFQS is the 4.4BSD-style multi-level feedback queue.
	PolicyMLFQS
)

// String renders the policy the way it would appear after `-o`.
func (p Policy) String() string {
	if p == PolicyMLFQS {
		return "mlfqs"
	}
	return "priority-donation"
}

// Option configures a Scheduler instance.
type Option interface {
	applyScheduler(*schedulerOptions) error
}

// optionFunc implements Option.
type optionFunc struct {
	fn func(*schedulerOptions) error
}

func (o *optionFunc) applyScheduler(opts *schedulerOptions) error {
	return o.fn(opts)
}

// WithPolicy selects PolicyMLFQS or PolicyPriorityDonation. Default is
// PolicyPriorityDonation.
func WithPolicy(p Policy) Option {
	return &optionFunc{func(opts *schedulerOptions) error {
		opts.policy = p
		return nil
	}}
}

// WithMetrics enables scheduler metrics collection (context switch,
// preemption, donation and lock-wait counts, and schedule-latency
// percentiles). Disabled by default; adds minimal overhead (a timestamp
// per unblock and one latency sample per schedule) when enabled.
func WithMetrics(enabled bool) Option {
	return &optionFunc{func(opts *schedulerOptions) error {
		opts.metricsEnabled = enabled
		return nil
	}}
}

// WithLogger installs a structured Logger. Defaults to a no-op logger.
func WithLogger(l Logger) Option {
	return &optionFunc{func(opts *schedulerOptions) error {
		opts.logger = l
		return nil
	}}
}

// WithTimerFrequency sets TIMER_FREQ, the number of ticks per simulated
// second used by the MLFQS once-a-second recompute. Defaults to 100,
// matching the traditional kernel value noted in the glossary.
func WithTimerFrequency(hz int) Option {
	return &optionFunc{func(opts *schedulerOptions) error {
		if hz > 0 {
			opts.timerFreq = hz
		}
		return nil
	}}
}

// WithMaxPages bounds the number of pages the default PageAllocator will
// hand out before Create starts returning ErrNoFreePages, simulating a
// finite physical memory pool. Zero means unbounded.
func WithMaxPages(n int) Option {
	return &optionFunc{func(opts *schedulerOptions) error {
		opts.maxPages = n
		return nil
	}}
}

// WithMaxDonationDepth bounds the priority donation chain walk (spec §4.6,
// §9); exceeding it silently caps rather than erroring. Defaults to 8.
func WithMaxDonationDepth(n int) Option {
	return &optionFunc{func(opts *schedulerOptions) error {
		if n > 0 {
			opts.maxDonationDepth = n
		}
		return nil
	}}
}

// WithPageAllocator overrides the default PageAllocator, e.g. with a
// fake that forces ErrNoFreePages in tests.
func WithPageAllocator(a PageAllocator) Option {
	return &optionFunc{func(opts *schedulerOptions) error {
		opts.pageAllocator = a
		return nil
	}}
}

// WithContextSwitch overrides the default ContextSwitch collaborator.
func WithContextSwitch(c ContextSwitch) Option {
	return &optionFunc{func(opts *schedulerOptions) error {
		opts.contextSwitch = c
		return nil
	}}
}

// WithInterruptController overrides the default InterruptController.
func WithInterruptController(ic InterruptController) Option {
	return &optionFunc{func(opts *schedulerOptions) error {
		opts.interruptCtl = ic
		return nil
	}}
}

// WithAddressSpaceActivator overrides the default (no-op)
// AddressSpaceActivator hook invoked from scheduleTail.
func WithAddressSpaceActivator(a AddressSpaceActivator) Option {
	return &optionFunc{func(opts *schedulerOptions) error {
		opts.addressSpace = a
		return nil
	}}
}

// WithTimerDriver installs a TimerDriver for Scheduler.Run (and direct
// ConsumeTimer calls) to consume, and for Close to stop. Not set by
// default: a scheduler driven entirely through Tick, as in a test, has
// no need of one.
func WithTimerDriver(d TimerDriver) Option {
	return &optionFunc{func(opts *schedulerOptions) error {
		opts.timerDriver = d
		return nil
	}}
}

// resolveOptions applies Option instances over the defaults.
func resolveOptions(opts []Option) (*schedulerOptions, error) {
	cfg := &schedulerOptions{
		policy:           PolicyPriorityDonation,
		logger:           NewNoOpLogger(),
		timerFreq:        100,
		maxDonationDepth: 8,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyScheduler(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
