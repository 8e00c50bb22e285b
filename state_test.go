package kthread

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusString(t *testing.T) {
	cases := map[Status]string{
		StatusRunning: "RUNNING",
		StatusReady:   "READY",
		StatusBlocked: "BLOCKED",
		StatusDying:   "DYING",
		Status(99):    "UNKNOWN",
	}
	for s, want := range cases {
		assert.Equal(t, want, s.String())
	}
}

func TestFastStatusTryTransition(t *testing.T) {
	s := newFastStatus(StatusReady)
	require.Equal(t, StatusReady, s.Load())

	require.True(t, s.TryTransition(StatusReady, StatusRunning), "READY->RUNNING transition should succeed")
	require.Equal(t, StatusRunning, s.Load())

	// Wrong "from" must fail and leave status unchanged.
	require.False(t, s.TryTransition(StatusReady, StatusBlocked), "RUNNING thread should reject a READY->BLOCKED transition")
	require.Equal(t, StatusRunning, s.Load())
}

func TestFastStatusStoreBypassesValidation(t *testing.T) {
	s := newFastStatus(StatusBlocked)
	s.Store(StatusDying)
	require.Equal(t, StatusDying, s.Load())
}
