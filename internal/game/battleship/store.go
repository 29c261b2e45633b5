package battleship

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Invite conflict reasons.
var (
	ErrSelfInvite     = errors.New("cannot invite yourself")
	ErrInviterActive  = errors.New("inviter already has an active game or pending invite")
	ErrInviteeActive  = errors.New("invitee already has an active game or pending invite")
	ErrInviterInvited = errors.New("inviter has a pending invite to answer")
	ErrInviteeInvited = errors.New("invitee has a pending invite from someone else")
)

// InviteConflictError is returned when an invite would break the rule that a
// user is p1 of at most one active session and p2 of at most one pending invite.
type InviteConflictError struct {
	Reason    error
	SessionID int // the session causing the conflict
}

func (e *InviteConflictError) Error() string {
	return fmt.Sprintf("invite rejected: %v (session %d)", e.Reason, e.SessionID)
}

func (e *InviteConflictError) Unwrap() error { return e.Reason }

// Store is the append-only registry of every session of the process.
// Session ids are their index in the store.
type Store struct {
	mu       sync.RWMutex
	sessions []*Session
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Create registers a new pending session. It does not check invite validity.
func (st *Store) Create(inviter, invitee Player, now time.Time) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	s := newSession(len(st.sessions), inviter, invitee, now)
	st.sessions = append(st.sessions, s)
	return s
}

// IsInviteValid returns nil when inviter may invite invitee, or an
// *InviteConflictError naming the first conflict found.
func (st *Store) IsInviteValid(inviter, invitee UserID) error {
	if inviter == invitee {
		return &InviteConflictError{Reason: ErrSelfInvite, SessionID: -1}
	}

	st.mu.RLock()
	defer st.mu.RUnlock()

	checks := []struct {
		reason error
		match  func(*Session, Status) bool
	}{
		{ErrInviterActive, func(s *Session, status Status) bool { return s.P1.ID == inviter && status.IsActive() }},
		{ErrInviteeActive, func(s *Session, status Status) bool { return s.P1.ID == invitee && status.IsActive() }},
		{ErrInviterInvited, func(s *Session, status Status) bool { return s.P2.ID == inviter && status == StatusInvitePending }},
		{ErrInviteeInvited, func(s *Session, status Status) bool { return s.P2.ID == invitee && status == StatusInvitePending }},
	}
	for _, c := range checks {
		for _, s := range st.sessions {
			if c.match(s, s.Status()) {
				return &InviteConflictError{Reason: c.reason, SessionID: s.ID}
			}
		}
	}
	return nil
}

// Get returns the session with the given id.
func (st *Store) Get(id int) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	if id < 0 || id >= len(st.sessions) {
		return nil, false
	}
	return st.sessions[id], true
}

// FindPendingInvite returns the pending session the user sent, if any.
func (st *Store) FindPendingInvite(inviter UserID) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	for _, s := range st.sessions {
		if s.P1.ID == inviter && s.Status() == StatusInvitePending {
			return s, true
		}
	}
	return nil, false
}

// ListActive returns the sessions that are pending, in setup or in combat.
func (st *Store) ListActive() []*Session {
	st.mu.RLock()
	defer st.mu.RUnlock()

	var active []*Session
	for _, s := range st.sessions {
		if s.Status().IsActive() {
			active = append(active, s)
		}
	}
	return active
}

// All returns every session ever created, oldest first.
func (st *Store) All() []*Session {
	st.mu.RLock()
	defer st.mu.RUnlock()

	return append([]*Session(nil), st.sessions...)
}

// Len returns the number of sessions ever created.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
