// Package session owns the authentication token and the privilege level
// derived from it.
//
// The store is the single writer for the token/role pair. Every other
// component reads a borrowed copy at call time and never caches it across
// an async boundary. Token and role always move together: a set or clear
// is one logical operation, so an elevated role is never observable
// without a token.
package session

import (
	"errors"
	"sync"
)

// Errors
var (
	ErrAdminWithoutToken = errors.New("session: admin role requires a token")
)

// Role is the coarse privilege level attached to a session.
type Role string

const (
	RoleStandard Role = "standard"
	RoleAdmin    Role = "admin"
)

// Session is a read-only snapshot of the current token/role pair.
// A zero Session means signed out.
type Session struct {
	Token string `json:"token"`
	Role  Role   `json:"role"`
}

// Authenticated reports whether a token is present.
func (s Session) Authenticated() bool { return s.Token != "" }

// IsAdmin reports whether the session carries admin privilege.
// Role is only meaningful alongside a token.
func (s Session) IsAdmin() bool { return s.Token != "" && s.Role == RoleAdmin }

// Store persists the token/role pair
type Store interface {
	// Get returns the current session.
	Get() Session
	// Set stores token and role together.
	Set(token string, role Role) error
	// Clear removes both fields. Idempotent.
	Clear() error
}

// normalize repairs a session so the role invariant holds even if the
// backing data was tampered with or truncated.
func normalize(s Session) Session {
	if s.Token == "" {
		return Session{Role: RoleStandard}
	}
	if s.Role != RoleAdmin {
		s.Role = RoleStandard
	}
	return s
}

// MemoryStore is an in-memory implementation of Store, used in tests and
// for ephemeral runs that should not touch the filesystem.
type MemoryStore struct {
	mu  sync.Mutex
	cur Session
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cur: Session{Role: RoleStandard}}
}

func (s *MemoryStore) Get() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

func (s *MemoryStore) Set(token string, role Role) error {
	if token == "" && role == RoleAdmin {
		return ErrAdminWithoutToken
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur = normalize(Session{Token: token, Role: role})
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur = Session{Role: RoleStandard}
	return nil
}
