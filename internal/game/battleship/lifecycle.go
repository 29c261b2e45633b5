package battleship

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"battleship-bot/internal/pkg/metrics"
)

// Invite validates and registers a new session, then asks the invitee over
// direct message. A conflicting invite returns an *InviteConflictError and
// registers nothing. If the invitee cannot be reached the session is
// cancelled and ErrInviteUndeliverable is returned with it.
func (m *Manager) Invite(ctx context.Context, inviter, invitee Player) (*Session, error) {
	m.inviteMu.Lock()
	if err := m.store.IsInviteValid(inviter.ID, invitee.ID); err != nil {
		m.inviteMu.Unlock()
		log.Info().Err(err).
			Str("inviter", string(inviter.ID)).
			Str("invitee", string(invitee.ID)).
			Msg("Invite rejected")
		return nil, err
	}
	s := m.createSession(inviter, invitee)
	m.locks.Lock(s.ID)
	m.inviteMu.Unlock()
	defer m.locks.Unlock(s.ID)

	if err := m.sendInvite(ctx, s); err != nil {
		return s, err
	}
	return s, nil
}

// createSession registers a pending session.
func (m *Manager) createSession(inviter, invitee Player) *Session {
	s := m.store.Create(inviter, invitee, m.now())
	metrics.SessionTransitions.WithLabelValues(StatusInvitePending.String()).Inc()
	metrics.ActiveSessions.Inc()
	log.Info().
		Int("session_id", s.ID).
		Str("inviter", string(inviter.ID)).
		Str("invitee", string(invitee.ID)).
		Msg("Session created")
	return s
}

// sendInvite presents Accept/Deny to the invitee and schedules expiry.
func (m *Manager) sendInvite(ctx context.Context, s *Session) error {
	dm, err := m.platform.DirectChannel(ctx, s.P2.ID)
	if err == nil {
		c := &collector{tag: tagInvite}
		id := s.ID
		var l Listener
		l, err = m.platform.Present(ctx, Prompt{
			Channel:  dm,
			User:     s.P2.ID,
			Message:  inviteMessage(s),
			Controls: inviteControls(),
			Timeout:  m.cfg.InviteTimeout,
			OnSelect: func(ctx context.Context, sel Selection) {
				m.onInviteSelect(ctx, id, c, sel)
			},
		})
		if err == nil {
			c.listener = l
			s.invite = c
			s.inviteChannel = dm
		}
	}
	if err != nil {
		metrics.PlatformFailures.WithLabelValues("invite").Inc()
		if cerr := m.cancelSession(s); cerr != nil {
			return errors.Join(err, cerr)
		}
		return fmt.Errorf("%w: %v", ErrInviteUndeliverable, err)
	}

	id := s.ID
	s.inviteTimer = m.sched.AfterFunc(m.cfg.InviteTimeout, func() {
		m.onInviteTimeout(id)
	})
	return nil
}

// CancelInvite withdraws the inviter's pending invite.
func (m *Manager) CancelInvite(ctx context.Context, inviter UserID) (*Session, error) {
	s, ok := m.store.FindPendingInvite(inviter)
	if !ok {
		return nil, ErrNoPendingInvite
	}
	err := m.withSession(ctx, s.ID, func(s *Session) error {
		if s.Status() != StatusInvitePending {
			return ErrNoPendingInvite
		}
		m.retireInvite(s)
		if err := m.cancelSession(s); err != nil {
			return err
		}
		m.send(ctx, s.inviteChannel, textMessage(
			"You've been invited by %s to play Battleship!\n%s cancelled the invitation.", s.P1.Name, s.P1.Name))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// onInviteSelect handles Accept/Deny from the invitee.
func (m *Manager) onInviteSelect(ctx context.Context, id int, c *collector, sel Selection) {
	err := m.withSession(ctx, id, func(s *Session) error {
		if s.invite != c || s.Status() != StatusInvitePending || sel.User != s.P2.ID {
			log.Debug().Int("session_id", id).Msg("Ignoring answer to a closed invite")
			return nil
		}
		switch sel.Control {
		case ctrlAccept:
			return m.acceptInvite(ctx, s)
		case ctrlDeny:
			m.retireInvite(s)
			if err := m.denySession(s); err != nil {
				return err
			}
			m.send(ctx, s.inviteChannel, textMessage("You denied %s's invite!", s.P1.Name))
			m.sendDirect(ctx, s.P1.ID, textMessage("%s has denied your invite!", s.P2.Name))
		}
		return nil
	})
	if err != nil {
		log.Error().Err(err).Int("session_id", id).Msg("Failed to handle invite answer")
	}
}

// acceptInvite initializes the session. When the game channels cannot be
// created the session stays pending and the invite prompt stays live, so
// the invitee can accept again before the invite expires.
func (m *Manager) acceptInvite(ctx context.Context, s *Session) error {
	if err := m.sessionInit(ctx, s); err != nil {
		metrics.PlatformFailures.WithLabelValues("create_channels").Inc()
		log.Warn().Err(err).Int("session_id", s.ID).Msg("Session init failed, invite stays pending")
		m.send(ctx, s.inviteChannel, textMessage("Could not create the game channels. Please try accepting again."))
		m.sendDirect(ctx, s.P1.ID, textMessage(
			"%s accepted your invite, but the game channels could not be created. They can try again.", s.P2.Name))
		return nil
	}

	m.retireInvite(s)
	m.send(ctx, s.inviteChannel, textMessage(
		"You accepted an invite from %s to play Battleship! Head over to your game channel.", s.P1.Name))
	m.sendDirect(ctx, s.P1.ID, textMessage(
		"%s has accepted your invite! Head over to your game channel.", s.P2.Name))
	m.startBoardSetup(ctx, s)
	return nil
}

// onInviteTimeout expires an invite nobody answered.
func (m *Manager) onInviteTimeout(id int) {
	ctx := context.Background()
	err := m.withSession(ctx, id, func(s *Session) error {
		if s.Status() != StatusInvitePending {
			return nil
		}
		m.retireInvite(s)
		if err := m.expireSession(s); err != nil {
			return err
		}
		m.send(ctx, s.inviteChannel, textMessage(
			"You've been invited by %s to play Battleship!\nUnfortunately, you didn't respond in time.", s.P1.Name))
		m.sendDirect(ctx, s.P1.ID, textMessage("%s didn't respond to the invite in time.", s.P2.Name))
		return nil
	})
	if err != nil {
		log.Error().Err(err).Int("session_id", id).Msg("Failed to expire invite")
	}
}

// retireInvite stops the invite prompt and its expiry timer.
func (m *Manager) retireInvite(s *Session) {
	if s.invite != nil {
		s.invite.stop()
		s.invite = nil
	}
	if s.inviteTimer != nil {
		s.inviteTimer.Stop()
		s.inviteTimer = nil
	}
}

// sessionInit creates the private channels and allocates both players'
// boards, moving the session from invite_pending to board_setup. On error
// nothing is changed.
func (m *Manager) sessionInit(ctx context.Context, s *Session) error {
	if !CanTransition(s.Status(), StatusBoardSetup) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status(), StatusBoardSetup)
	}
	a, b, err := m.platform.CreatePrivateChannelPair(ctx, s.ID, s.P1.Player, s.P2.Player)
	if err != nil {
		return fmt.Errorf("create game channels: %w", err)
	}

	s.P1.Channel, s.P2.Channel = a, b
	for _, p := range []*PlayerState{s.P1, s.P2} {
		p.Board = NewBoard(m.cfg.BoardHeight, m.cfg.BoardWidth)
		p.Guesses = NewGuesses(m.cfg.BoardHeight, m.cfg.BoardWidth)
		p.Setup = &SettingUp{Interface: InterfaceMain, Ships: newFleet(m.cfg.Roster)}
	}
	return m.transition(s, StatusBoardSetup)
}

func (m *Manager) denySession(s *Session) error {
	return m.transition(s, StatusInviteDenied)
}

func (m *Manager) expireSession(s *Session) error {
	return m.transition(s, StatusInviteExpired)
}

func (m *Manager) cancelSession(s *Session) error {
	return m.transition(s, StatusInviteCancelled)
}
