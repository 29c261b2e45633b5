package battleship

import (
	"context"

	"github.com/rs/zerolog/log"
)

// startIdleTimer schedules the player's idle timeout, replacing any earlier one.
func (m *Manager) startIdleTimer(s *Session, key PlayerKey) {
	p := s.Player(key)
	if p.idle != nil {
		p.idle.Stop()
	}
	p.idleGen++
	gen, id := p.idleGen, s.ID
	p.idle = m.sched.AfterFunc(m.cfg.IdleTimeout, func() {
		m.onIdleTimeout(id, key, gen)
	})
}

// resetIdleTimer restarts the player's clock after an action.
func (m *Manager) resetIdleTimer(s *Session, key PlayerKey) {
	m.startIdleTimer(s, key)
}

// stopIdleTimer cancels the player's timeout and retires every live prompt
// the player owns. Calling it again is a no-op.
func (m *Manager) stopIdleTimer(s *Session, key PlayerKey) {
	p := s.Player(key)
	if p.idle != nil {
		p.idle.Stop()
		p.idle = nil
	}
	// A callback already past Stop sees a newer generation and does nothing.
	p.idleGen++
	p.collectors.stopAll()
}

func (m *Manager) onIdleTimeout(id int, key PlayerKey, gen uint64) {
	ctx := context.Background()
	err := m.withSession(ctx, id, func(s *Session) error {
		p := s.Player(key)
		if p.idle == nil || p.idleGen != gen {
			return nil
		}
		return m.handlePlayerTimeout(ctx, s, key)
	})
	if err != nil {
		log.Error().Err(err).Int("session_id", id).Str("player", key.String()).Msg("Failed to handle idle timeout")
	}
}

// handlePlayerTimeout ends the whole session because one player went idle.
func (m *Manager) handlePlayerTimeout(ctx context.Context, s *Session, key PlayerKey) error {
	if st := s.Status(); st != StatusBoardSetup && st != StatusGamePhase {
		return nil
	}
	log.Info().Int("session_id", s.ID).Str("player", key.String()).Msg("Player idle, ending session")

	m.stopIdleTimer(s, P1)
	m.stopIdleTimer(s, P2)

	idle, other := s.Player(key), s.Player(key.Opponent())
	m.send(ctx, idle.Channel, idleTimeoutMessage())
	m.send(ctx, other.Channel, opponentIdleMessage(idle))

	return m.endGame(ctx, s, IdleTimeoutStatus(key))
}
