package kthread

import (
	"sync"
	"time"
)

// SchedulerMetrics is component C13: context-switch/preemption/donation/
// lock-contention counters plus a streaming estimate of schedule latency
// (time from Unblock to the thread actually running). Disabled entirely
// unless WithMetrics(true) is passed to New, so a scheduler built without
// it pays nothing (SPEC_FULL.md §6c).
type SchedulerMetrics struct {
	mu sync.Mutex

	contextSwitches uint64
	preemptions     uint64
	donations       uint64
	lockWaits       uint64

	pending  map[TID]time.Time
	schedLat *scheduleLatencyEstimator
}

func newSchedulerMetrics() *SchedulerMetrics {
	return &SchedulerMetrics{
		pending:  make(map[TID]time.Time),
		schedLat: newScheduleLatencyEstimator(),
	}
}

func (m *SchedulerMetrics) recordContextSwitch() {
	m.mu.Lock()
	m.contextSwitches++
	m.mu.Unlock()
}

func (m *SchedulerMetrics) recordPreemption() {
	m.mu.Lock()
	m.preemptions++
	m.mu.Unlock()
}

func (m *SchedulerMetrics) recordDonation() {
	m.mu.Lock()
	m.donations++
	m.mu.Unlock()
}

func (m *SchedulerMetrics) recordLockWait() {
	m.mu.Lock()
	m.lockWaits++
	m.mu.Unlock()
}

// recordUnblock stamps the instant t became ready, so a later
// recordRunning call for the same tid can compute its schedule
// latency.
func (m *SchedulerMetrics) recordUnblock(tid TID) {
	m.mu.Lock()
	m.pending[tid] = time.Now()
	m.mu.Unlock()
}

// recordRunning feeds the elapsed time since the matching
// recordUnblock into the schedule-latency estimator, if one is
// pending for tid.
func (m *SchedulerMetrics) recordRunning(tid TID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	start, ok := m.pending[tid]
	if !ok {
		return
	}
	delete(m.pending, tid)
	m.schedLat.Observe(time.Since(start))
}

// Snapshot is a point-in-time copy of SchedulerMetrics, safe to read
// without further synchronization.
type Snapshot struct {
	ContextSwitches uint64
	Preemptions     uint64
	Donations       uint64
	LockWaits       uint64

	ScheduleLatencyP50 time.Duration
	ScheduleLatencyP90 time.Duration
	ScheduleLatencyP99 time.Duration
	ScheduleLatencyMax time.Duration
	Samples            int
}

// Snapshot returns a consistent copy of the current counters and
// schedule-latency percentiles.
func (m *SchedulerMetrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		ContextSwitches:    m.contextSwitches,
		Preemptions:        m.preemptions,
		Donations:          m.donations,
		LockWaits:          m.lockWaits,
		ScheduleLatencyP50: m.schedLat.Quantile(quantileP50),
		ScheduleLatencyP90: m.schedLat.Quantile(quantileP90),
		ScheduleLatencyP99: m.schedLat.Quantile(quantileP99),
		ScheduleLatencyMax: m.schedLat.Max(),
		Samples:            m.schedLat.Count(),
	}
}

// scheduleLatencyEstimator tracks P50/P90/P99 schedule latency (the time
// between a thread becoming READY and actually running) without storing
// every sample, using the P² algorithm (Jain & Chlamtac, 1985: "The P²
// Algorithm for Dynamic Calculation of Quantiles and Histograms Without
// Storing Observations", CACM 28(10)). Each tracked quantile gets its own
// 5-marker estimator, updated in O(1) per observation.
//
// Adapted from the teacher's pSquareMultiQuantile/pSquareQuantile
// (metrics.go), narrowed to the three percentiles the scheduler reports
// and specialized to time.Duration observations instead of raw float64s.
//
// Not safe for concurrent use; SchedulerMetrics.mu is the only caller and
// already serializes access.
type scheduleLatencyEstimator struct {
	markers [3]*latencyMarkers
	count   int
	max     time.Duration
}

const (
	quantileP50 = 0
	quantileP90 = 1
	quantileP99 = 2
)

var trackedQuantiles = [3]float64{0.50, 0.90, 0.99}

func newScheduleLatencyEstimator() *scheduleLatencyEstimator {
	e := &scheduleLatencyEstimator{}
	for i, p := range trackedQuantiles {
		e.markers[i] = newLatencyMarkers(p)
	}
	return e
}

// Observe feeds one schedule-latency sample into every tracked quantile.
func (e *scheduleLatencyEstimator) Observe(d time.Duration) {
	e.count++
	if d > e.max {
		e.max = d
	}
	for _, m := range e.markers {
		m.update(float64(d))
	}
}

// Quantile returns the current estimate for the tracked quantile at
// index i (quantileP50/P90/P99).
func (e *scheduleLatencyEstimator) Quantile(i int) time.Duration {
	if i < 0 || i >= len(e.markers) {
		return 0
	}
	return time.Duration(e.markers[i].value())
}

// Count returns the total number of observations fed in so far.
func (e *scheduleLatencyEstimator) Count() int { return e.count }

// Max returns the largest observed latency.
func (e *scheduleLatencyEstimator) Max() time.Duration { return e.max }

// latencyMarkers is a single P² 5-marker estimator for one target
// quantile p, tracking marker heights (q), integer marker positions (n),
// idealized float positions (np), and per-observation position
// increments (dn) exactly as the P² paper specifies.
type latencyMarkers struct {
	p float64

	q  [5]float64
	n  [5]int
	np [5]float64
	dn [5]float64

	count int
	// initBuffer holds the first 5 observations until there are enough
	// to seed the five markers.
	initBuffer [5]float64
}

func newLatencyMarkers(p float64) *latencyMarkers {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return &latencyMarkers{
		p:  p,
		dn: [5]float64{0, p / 2, p, (1 + p) / 2, 1},
	}
}

func (lm *latencyMarkers) update(x float64) {
	lm.count++

	if lm.count <= 5 {
		lm.initBuffer[lm.count-1] = x
		if lm.count == 5 {
			lm.seed()
		}
		return
	}

	var k int
	switch {
	case x < lm.q[0]:
		lm.q[0] = x
		k = 0
	case x >= lm.q[4]:
		lm.q[4] = x
		k = 3
	default:
		for k = 0; k < 4; k++ {
			if lm.q[k] <= x && x < lm.q[k+1] {
				break
			}
		}
	}

	for i := k + 1; i < 5; i++ {
		lm.n[i]++
	}
	for i := 0; i < 5; i++ {
		lm.np[i] += lm.dn[i]
	}

	for i := 1; i < 4; i++ {
		d := lm.np[i] - float64(lm.n[i])
		if (d >= 1 && lm.n[i+1]-lm.n[i] > 1) || (d <= -1 && lm.n[i-1]-lm.n[i] < -1) {
			sign := 1
			if d < 0 {
				sign = -1
			}
			qPrime := lm.parabolic(i, sign)
			if lm.q[i-1] < qPrime && qPrime < lm.q[i+1] {
				lm.q[i] = qPrime
			} else {
				lm.q[i] = lm.linear(i, sign)
			}
			lm.n[i] += sign
		}
	}
}

// seed initializes the five markers from the first five observations,
// sorted ascending.
func (lm *latencyMarkers) seed() {
	for i := 1; i < 5; i++ {
		key := lm.initBuffer[i]
		j := i - 1
		for j >= 0 && lm.initBuffer[j] > key {
			lm.initBuffer[j+1] = lm.initBuffer[j]
			j--
		}
		lm.initBuffer[j+1] = key
	}
	for i := 0; i < 5; i++ {
		lm.q[i] = lm.initBuffer[i]
		lm.n[i] = i
	}
	lm.np = [5]float64{0, 2 * lm.p, 4 * lm.p, 2 + 2*lm.p, 4}
}

func (lm *latencyMarkers) parabolic(i, d int) float64 {
	df := float64(d)
	ni := float64(lm.n[i])
	niPrev := float64(lm.n[i-1])
	niNext := float64(lm.n[i+1])

	term1 := df / (niNext - niPrev)
	term2 := (ni - niPrev + df) * (lm.q[i+1] - lm.q[i]) / (niNext - ni)
	term3 := (niNext - ni - df) * (lm.q[i] - lm.q[i-1]) / (ni - niPrev)

	return lm.q[i] + term1*(term2+term3)
}

func (lm *latencyMarkers) linear(i, d int) float64 {
	if d == 1 {
		return lm.q[i] + (lm.q[i+1]-lm.q[i])/float64(lm.n[i+1]-lm.n[i])
	}
	return lm.q[i] - (lm.q[i]-lm.q[i-1])/float64(lm.n[i]-lm.n[i-1])
}

// value returns the current quantile estimate, falling back to a sorted
// lookup in the seed buffer while fewer than five observations have
// arrived.
func (lm *latencyMarkers) value() float64 {
	if lm.count == 0 {
		return 0
	}
	if lm.count < 5 {
		sorted := make([]float64, lm.count)
		copy(sorted, lm.initBuffer[:lm.count])
		for i := 1; i < lm.count; i++ {
			key := sorted[i]
			j := i - 1
			for j >= 0 && sorted[j] > key {
				sorted[j+1] = sorted[j]
				j--
			}
			sorted[j+1] = key
		}
		idx := int(float64(lm.count-1) * lm.p)
		if idx >= lm.count {
			idx = lm.count - 1
		}
		return sorted[idx]
	}
	return lm.q[2]
}
