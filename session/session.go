package session

import (
	"sync"
	"sync/atomic"
	"time"
)

// Session is the per-connection bookkeeping shared by the read loop and the
// heartbeat tasks: lifecycle state, sequence counter, liveness timestamps and
// market-data subscriptions. Timestamps and the sequence counter are atomics
// because the heartbeat tasks touch them concurrently with inbound
// processing.
type Session struct {
	id           string
	matchingUnit uint8

	mu       sync.Mutex
	state    State
	username string
	symbols  map[string]struct{}
	listener EventListener

	seq          atomic.Uint32
	lastHBSent   atomic.Int64 // unix nano, 0 = never
	lastHBRecv   atomic.Int64 // unix nano, 0 = never
}

// New creates a session in the given initial state. The server passes
// Connected on TCP accept; the client starts from Connecting.
func New(id string, initial State, listener EventListener) *Session {
	if listener == nil {
		listener = NopListener{}
	}
	return &Session{
		id:       id,
		state:    initial,
		symbols:  make(map[string]struct{}),
		listener: listener,
	}
}

// ID returns the connection identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetState transitions the session and notifies the listener with the old and
// new states. Setting the current state again is a no-op.
func (s *Session) SetState(next State) {
	s.mu.Lock()
	old := s.state
	if old == next {
		s.mu.Unlock()
		return
	}
	s.state = next
	listener := s.listener
	s.mu.Unlock()

	listener.OnStateChanged(old, next)
}

// Username returns the authenticated username, empty until login completes.
func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

// SetUsername records the authenticated user.
func (s *Session) SetUsername(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username = username
}

// MatchingUnit returns the matching unit requested at login.
func (s *Session) MatchingUnit() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matchingUnit
}

// SetMatchingUnit records the matching unit requested at login.
func (s *Session) SetMatchingUnit(unit uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matchingUnit = unit
}

// NextSeq returns the next outbound sequence number. The first message sent
// on a session carries 1; numbers are never reused within a session.
func (s *Session) NextSeq() uint32 {
	return s.seq.Add(1)
}

// MarkHeartbeatSent records now as the last heartbeat send time.
func (s *Session) MarkHeartbeatSent() {
	s.lastHBSent.Store(time.Now().UnixNano())
}

// MarkHeartbeatReceived resets the liveness clock.
func (s *Session) MarkHeartbeatReceived() {
	s.lastHBRecv.Store(time.Now().UnixNano())
}

// LastHeartbeatSent returns the last send time, zero if none yet.
func (s *Session) LastHeartbeatSent() time.Time {
	return nanoTime(s.lastHBSent.Load())
}

// LastHeartbeatReceived returns the last receive time, zero if none yet.
func (s *Session) LastHeartbeatReceived() time.Time {
	return nanoTime(s.lastHBRecv.Load())
}

// Subscribe adds a symbol to the session's market-data subscription set.
func (s *Session) Subscribe(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.symbols[symbol] = struct{}{}
}

// Subscribed returns the subscribed symbols in no particular order.
func (s *Session) Subscribed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.symbols))
	for symbol := range s.symbols {
		out = append(out, symbol)
	}
	return out
}

// Listener returns the session's event listener.
func (s *Session) Listener() EventListener {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener
}

func nanoTime(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
