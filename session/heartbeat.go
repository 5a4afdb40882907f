package session

import (
	"sync"
	"sync/atomic"
	"time"
)

// defaultCheckInterval is the fixed period of the timeout-check task,
// independent of the configured send interval.
const defaultCheckInterval = 5 * time.Second

// HeartbeatMonitor drives the two periodic liveness tasks for one
// connection: sending heartbeats at the configured interval and checking the
// peer's silence against the configured timeout. The same type serves both
// peers; only the send callback differs.
type HeartbeatMonitor struct {
	session       *Session
	interval      time.Duration
	timeout       time.Duration
	checkInterval time.Duration
	send          func() error
	onTimeout     TimeoutListener

	active atomic.Bool
	mu     sync.Mutex
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewHeartbeatMonitor creates a monitor for the session. send builds, frames
// and writes one heartbeat tagged with the session's next sequence number;
// onTimeout is invoked exactly once if the peer goes silent past timeout.
func NewHeartbeatMonitor(sess *Session, interval, timeout time.Duration, send func() error, onTimeout TimeoutListener) *HeartbeatMonitor {
	return &HeartbeatMonitor{
		session:       sess,
		interval:      interval,
		timeout:       timeout,
		checkInterval: defaultCheckInterval,
		send:          send,
		onTimeout:     onTimeout,
	}
}

// Start launches both periodic tasks. Calling Start on a running monitor is
// a no-op with a warning.
func (m *HeartbeatMonitor) Start() {
	if !m.active.CompareAndSwap(false, true) {
		logger.Warn("heartbeat monitor already started", "conn_id", m.session.ID())
		return
	}

	m.mu.Lock()
	m.stopCh = make(chan struct{})
	stopCh := m.stopCh
	m.mu.Unlock()

	m.wg.Add(2)
	go m.sendLoop(stopCh)
	go m.checkLoop(stopCh)
}

// Stop cancels both tasks. Safe to call more than once and from within the
// tasks themselves; it does not wait for them to finish.
func (m *HeartbeatMonitor) Stop() {
	if !m.active.CompareAndSwap(true, false) {
		return
	}

	m.mu.Lock()
	if m.stopCh != nil {
		close(m.stopCh)
	}
	m.mu.Unlock()
}

// Shutdown stops the monitor and waits up to grace for the in-flight tasks
// to wind down before giving up on them.
func (m *HeartbeatMonitor) Shutdown(grace time.Duration) {
	m.Stop()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
		logger.Warn("heartbeat tasks did not stop within grace period", "conn_id", m.session.ID())
	}
}

// NotifyHeartbeatReceived resets the timeout clock. The session's owner calls
// this whenever a liveness-relevant message arrives from the peer.
func (m *HeartbeatMonitor) NotifyHeartbeatReceived() {
	m.session.MarkHeartbeatReceived()
}

// Active reports whether the monitor tasks are running.
func (m *HeartbeatMonitor) Active() bool {
	return m.active.Load()
}

func (m *HeartbeatMonitor) sendLoop(stopCh chan struct{}) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if err := m.send(); err != nil {
				// A failed send means the connection is gone.
				logger.Warn("heartbeat send failed", "conn_id", m.session.ID(), "error", err)
				m.Stop()
				return
			}
			m.session.MarkHeartbeatSent()
		}
	}
}

func (m *HeartbeatMonitor) checkLoop(stopCh chan struct{}) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			last := m.session.LastHeartbeatReceived()
			if last.IsZero() {
				// Peer may still be settling in; nothing to measure yet.
				continue
			}
			if time.Since(last) > m.timeout {
				m.Stop()
				if m.onTimeout != nil {
					m.onTimeout.OnHeartbeatTimeout(m.session.ID())
				}
				return
			}
		}
	}
}
