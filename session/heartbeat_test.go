package session

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMonitor(sess *Session, send func() error, onTimeout TimeoutListener) *HeartbeatMonitor {
	m := NewHeartbeatMonitor(sess, 10*time.Millisecond, 50*time.Millisecond, send, onTimeout)
	m.checkInterval = 10 * time.Millisecond
	return m
}

func TestMonitorSendsHeartbeats(t *testing.T) {
	sess := New("conn-1", Active, nil)

	var sends atomic.Int32
	m := newTestMonitor(sess, func() error {
		sends.Add(1)
		return nil
	}, nil)

	m.Start()
	defer m.Shutdown(time.Second)

	require.Eventually(t, func() bool { return sends.Load() >= 3 }, time.Second, 5*time.Millisecond)
	assert.False(t, sess.LastHeartbeatSent().IsZero())
}

func TestMonitorTimeoutFiresExactlyOnce(t *testing.T) {
	sess := New("conn-1", Active, nil)

	var fired atomic.Int32
	m := newTestMonitor(sess, func() error { return nil }, TimeoutFunc(func(string) {
		fired.Add(1)
	}))

	// Arm the clock, then go silent.
	sess.MarkHeartbeatReceived()
	m.Start()

	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return !m.Active() }, time.Second, 5*time.Millisecond)

	// The monitor stopped itself; no further notifications arrive.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestMonitorNoTimeoutBeforeFirstHeartbeat(t *testing.T) {
	sess := New("conn-1", Active, nil)

	var fired atomic.Int32
	m := newTestMonitor(sess, func() error { return nil }, TimeoutFunc(func(string) {
		fired.Add(1)
	}))

	m.Start()
	defer m.Shutdown(time.Second)

	// The clock is unarmed, so silence is not a timeout.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
	assert.True(t, m.Active())
}

func TestNotifyDefersTimeoutIndefinitely(t *testing.T) {
	sess := New("conn-1", Active, nil)

	var fired atomic.Int32
	m := newTestMonitor(sess, func() error { return nil }, TimeoutFunc(func(string) {
		fired.Add(1)
	}))

	sess.MarkHeartbeatReceived()
	m.Start()
	defer m.Shutdown(time.Second)

	for i := 0; i < 10; i++ {
		time.Sleep(20 * time.Millisecond)
		m.NotifyHeartbeatReceived()
	}

	assert.Equal(t, int32(0), fired.Load())
	assert.True(t, m.Active())
}

func TestMonitorStopsOnSendFailure(t *testing.T) {
	sess := New("conn-1", Active, nil)

	m := newTestMonitor(sess, func() error {
		return errors.New("broken pipe")
	}, nil)

	m.Start()
	require.Eventually(t, func() bool { return !m.Active() }, time.Second, 5*time.Millisecond)
}

func TestStartAndStopIdempotent(t *testing.T) {
	sess := New("conn-1", Active, nil)

	m := newTestMonitor(sess, func() error { return nil }, nil)

	m.Start()
	m.Start() // warns, no second set of tasks
	assert.True(t, m.Active())

	m.Stop()
	m.Stop() // no-op
	assert.False(t, m.Active())

	m.Shutdown(time.Second)
	m.Shutdown(time.Second)
}
