package battleship

import (
	"errors"
	"fmt"
)

// Status is the lifecycle state of a session.
type Status int32

// Session statuses. StatusInvitePending is the initial state.
const (
	StatusInvitePending Status = iota
	StatusInviteDenied
	StatusInviteExpired
	StatusInviteCancelled
	StatusBoardSetup
	StatusGamePhase
	StatusP1Win
	StatusP2Win
	StatusP1IdleTimeout
	StatusP2IdleTimeout
)

var statusNames = [...]string{
	StatusInvitePending:   "invite_pending",
	StatusInviteDenied:    "invite_denied",
	StatusInviteExpired:   "invite_expired",
	StatusInviteCancelled: "invite_cancelled",
	StatusBoardSetup:      "board_setup",
	StatusGamePhase:       "game_phase",
	StatusP1Win:           "p1_win",
	StatusP2Win:           "p2_win",
	StatusP1IdleTimeout:   "p1_idle_timeout",
	StatusP2IdleTimeout:   "p2_idle_timeout",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("status(%d)", int32(s))
	}
	return statusNames[s]
}

// transitions is the complete state table. Anything not listed is rejected.
var transitions = map[Status][]Status{
	StatusInvitePending: {StatusInviteDenied, StatusInviteExpired, StatusInviteCancelled, StatusBoardSetup},
	StatusBoardSetup:    {StatusGamePhase, StatusP1IdleTimeout, StatusP2IdleTimeout},
	StatusGamePhase:     {StatusP1Win, StatusP2Win, StatusP1IdleTimeout, StatusP2IdleTimeout},
}

// ErrInvalidTransition is returned for a transition missing from the state table.
var ErrInvalidTransition = errors.New("invalid status transition")

// CanTransition reports whether the state table allows from -> to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsActive reports whether the session still occupies its players.
func (s Status) IsActive() bool {
	return s == StatusInvitePending || s == StatusBoardSetup || s == StatusGamePhase
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// IsGameOver reports whether the session ended after the invite was accepted.
func (s Status) IsGameOver() bool {
	switch s {
	case StatusP1Win, StatusP2Win, StatusP1IdleTimeout, StatusP2IdleTimeout:
		return true
	}
	return false
}

// WinStatus returns the status recording a win for the given player.
func WinStatus(k PlayerKey) Status {
	if k == P1 {
		return StatusP1Win
	}
	return StatusP2Win
}

// IdleTimeoutStatus returns the status recording that the given player went idle.
func IdleTimeoutStatus(k PlayerKey) Status {
	if k == P1 {
		return StatusP1IdleTimeout
	}
	return StatusP2IdleTimeout
}
