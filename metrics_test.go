package kthread

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerMetricsCountersIncrement(t *testing.T) {
	m := newSchedulerMetrics()

	m.recordContextSwitch()
	m.recordContextSwitch()
	m.recordPreemption()
	m.recordDonation()
	m.recordDonation()
	m.recordDonation()
	m.recordLockWait()

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.ContextSwitches)
	assert.Equal(t, uint64(1), snap.Preemptions)
	assert.Equal(t, uint64(3), snap.Donations)
	assert.Equal(t, uint64(1), snap.LockWaits)
}

func TestSchedulerMetricsRecordRunningWithoutPendingUnblockIsNoop(t *testing.T) {
	m := newSchedulerMetrics()
	// No recordUnblock(5) ever happened, so this must not panic or add
	// a bogus sample.
	m.recordRunning(5)
	assert.Equal(t, 0, m.Snapshot().Samples)
}

func TestSchedulerMetricsSnapshotTracksScheduleLatency(t *testing.T) {
	m := newSchedulerMetrics()

	tid := TID(1)
	m.recordUnblock(tid)
	time.Sleep(time.Millisecond)
	m.recordRunning(tid)

	snap := m.Snapshot()
	require.Equal(t, 1, snap.Samples)
	assert.Greater(t, snap.ScheduleLatencyP50, time.Duration(0))
	assert.Equal(t, snap.ScheduleLatencyMax, snap.ScheduleLatencyP50)
}

func TestSchedulerMetricsDisabledByDefault(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	assert.Nil(t, s.Metrics())
}

func TestSchedulerMetricsEnabledRecordsContextSwitches(t *testing.T) {
	s, err := New(WithMetrics(true))
	require.NoError(t, err)
	require.NotNil(t, s.Metrics())

	before := s.Metrics().Snapshot().ContextSwitches
	if _, err := s.Create("other", PriDefault+9, func(any) {}, nil); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	after := s.Metrics().Snapshot().ContextSwitches
	assert.Greater(t, after, before, "creating a higher-priority thread should trigger at least one context switch")
}

// TestScheduleLatencyEstimatorQuantilesConverge feeds a known, sorted
// distribution into the estimator directly, bypassing the
// time.Now()-based pending map, so the P² percentile math itself is
// exercised independent of scheduler timing noise.
func TestScheduleLatencyEstimatorQuantilesConverge(t *testing.T) {
	e := newScheduleLatencyEstimator()
	for i := 1; i <= 200; i++ {
		e.Observe(time.Duration(i) * time.Microsecond)
	}

	require.Equal(t, 200, e.Count())
	assert.Equal(t, 200*time.Microsecond, e.Max())

	p50 := e.Quantile(quantileP50)
	p90 := e.Quantile(quantileP90)
	p99 := e.Quantile(quantileP99)

	// P² is an approximation, not exact order statistics: assert
	// ordering and rough position rather than exact values.
	assert.True(t, p50 < p90, "p50 (%v) should be less than p90 (%v)", p50, p90)
	assert.True(t, p90 < p99, "p90 (%v) should be less than p99 (%v)", p90, p99)
	assert.InDelta(t, 100, float64(p50)/float64(time.Microsecond), 20)
	assert.InDelta(t, 180, float64(p90)/float64(time.Microsecond), 20)
}

func TestScheduleLatencyEstimatorEmptyIsZero(t *testing.T) {
	e := newScheduleLatencyEstimator()
	assert.Equal(t, time.Duration(0), e.Quantile(quantileP50))
	assert.Equal(t, time.Duration(0), e.Max())
	assert.Equal(t, 0, e.Count())
}

func TestScheduleLatencyEstimatorQuantileOutOfRangeReturnsZero(t *testing.T) {
	e := newScheduleLatencyEstimator()
	e.Observe(time.Millisecond)
	assert.Equal(t, time.Duration(0), e.Quantile(-1))
	assert.Equal(t, time.Duration(0), e.Quantile(3))
}

// TestScheduleLatencyEstimatorFewerThanFiveSamples exercises the
// sorted-lookup fallback value() takes before the five P² markers are
// seeded.
func TestScheduleLatencyEstimatorFewerThanFiveSamples(t *testing.T) {
	e := newScheduleLatencyEstimator()
	e.Observe(30 * time.Microsecond)
	e.Observe(10 * time.Microsecond)
	e.Observe(20 * time.Microsecond)

	require.Equal(t, 3, e.Count())
	assert.Equal(t, 30*time.Microsecond, e.Max())
	// p50 of {10, 20, 30} sorted ascending, via the seed-buffer fallback.
	assert.Equal(t, 20*time.Microsecond, e.Quantile(quantileP50))
}
