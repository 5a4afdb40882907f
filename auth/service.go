package auth

import (
	"errors"
	"sync"
)

// Status is the outcome of an authentication attempt.
type Status uint8

const (
	Accepted Status = iota + 1
	Rejected
	SessionInUse
)

func (s Status) String() string {
	switch s {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case SessionInUse:
		return "session_in_use"
	default:
		return "unknown"
	}
}

// StatusByte maps the status to its wire byte (A/R/S).
func (s Status) StatusByte() byte {
	switch s {
	case Accepted:
		return 'A'
	case SessionInUse:
		return 'S'
	default:
		return 'R'
	}
}

// Result carries the authentication outcome plus a human-readable reason.
type Result struct {
	Status  Status
	Message string
}

var ErrUserExists = errors.New("user already exists")

// Service validates credentials and enforces at most one active session per
// user. Both maps are shared across every connection goroutine; the in-use
// check and the session record happen under one write lock so two concurrent
// logins for the same user can never both be accepted.
type Service struct {
	mu          sync.RWMutex
	hasher      PasswordHasher
	credentials map[string]string // username -> hashed password
	active      map[string]string // username -> session id
}

// NewService creates an authentication service with no registered users.
func NewService(hasher PasswordHasher) *Service {
	return &Service{
		hasher:      hasher,
		credentials: make(map[string]string),
		active:      make(map[string]string),
	}
}

// AddUser registers a user. The plaintext password is hashed before storage.
func (s *Service) AddUser(username, password string) error {
	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.credentials[username]; ok {
		return ErrUserExists
	}
	s.credentials[username] = hashed
	return nil
}

// RemoveUser drops a user's credentials. An existing session is not forcibly
// ended, but future authentication attempts for the user fail.
func (s *Service) RemoveUser(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.credentials, username)
}

// Authenticate checks the credentials and records sessionID as the user's
// active session on success.
func (s *Service) Authenticate(username, password, sessionID string) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	hashed, ok := s.credentials[username]
	if !ok {
		return Result{Status: Rejected, Message: "unknown user"}
	}
	if !s.hasher.Verify(password, hashed) {
		return Result{Status: Rejected, Message: "invalid credentials"}
	}

	if current, ok := s.active[username]; ok && current != sessionID {
		return Result{Status: SessionInUse, Message: "user already has an active session"}
	}

	s.active[username] = sessionID
	return Result{Status: Accepted, Message: "login accepted"}
}

// EndSession clears the user's active-session record, permitting a new login.
func (s *Service) EndSession(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, username)
}

// HasActiveSession reports whether the user currently holds a session.
func (s *Service) HasActiveSession(username string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.active[username]
	return ok
}
