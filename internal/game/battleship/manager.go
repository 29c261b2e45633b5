// Package battleship implements two-player Battleship sessions played over a
// chat platform: invitation, board setup, turn-based combat and idle timeouts.
//
// Every inbound event (a prompt selection or a timer firing) is applied under
// the session's lock, so a session only ever sees serialized reactions.
package battleship

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"battleship-bot/internal/pkg/lock"
	"battleship-bot/internal/pkg/metrics"
)

// Manager errors.
var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrNoPendingInvite     = errors.New("no pending invite")
	ErrInviteUndeliverable = errors.New("invite could not be delivered")
)

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithScheduler replaces the wall-clock timer source.
func WithScheduler(s Scheduler) ManagerOption {
	return func(m *Manager) { m.sched = s }
}

// WithRecorder stores finished games.
func WithRecorder(r Recorder) ManagerOption {
	return func(m *Manager) { m.recorder = r }
}

// WithCoinFlip replaces the random choice of who attacks first.
func WithCoinFlip(f func() PlayerKey) ManagerOption {
	return func(m *Manager) { m.coinFlip = f }
}

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// Manager runs every session of the process.
type Manager struct {
	cfg      Config
	store    *Store
	platform Platform
	sched    Scheduler
	recorder Recorder
	coinFlip func() PlayerKey
	now      func() time.Time

	locks    *lock.Keyed[int]
	inviteMu sync.Mutex // serializes invite validation with session creation

	setupActions map[setupEvent]setupAction
}

// NewManager creates a Manager. The config is validated up front.
func NewManager(cfg Config, store *Store, platform Platform, opts ...ManagerOption) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Manager{
		cfg:      cfg,
		store:    store,
		platform: platform,
		sched:    systemScheduler{},
		recorder: nopRecorder{},
		coinFlip: func() PlayerKey {
			if rand.IntN(2) == 0 {
				return P1
			}
			return P2
		},
		now:   time.Now,
		locks: lock.New[int](),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.setupActions = setupTable()
	return m, nil
}

// Name returns the display name of the game.
func (m *Manager) Name() string { return "Battleship" }

// Command returns the command that starts an invite.
func (m *Manager) Command() string { return "battleship" }

// Description returns a one-line summary of the game.
func (m *Manager) Description() string {
	return fmt.Sprintf("Invite someone to a %dx%d naval battle", m.cfg.BoardHeight, m.cfg.BoardWidth)
}

// Config returns the game constants.
func (m *Manager) Config() Config { return m.cfg }

// Store returns the session registry.
func (m *Manager) Store() *Store { return m.store }

// ActiveSessions returns the number of sessions still in progress.
func (m *Manager) ActiveSessions() int { return len(m.store.ListActive()) }

// SessionSummary is a copy of a session's listing fields.
type SessionSummary struct {
	ID        int
	P1, P2    Player
	Status    Status
	InvitedAt time.Time
	P1Moves   int
	P2Moves   int
}

// ActiveSummaries copies every active session under its lock. Sessions
// that end while the list is built are left out.
func (m *Manager) ActiveSummaries(ctx context.Context) []SessionSummary {
	active := m.store.ListActive()
	out := make([]SessionSummary, 0, len(active))
	for _, s := range active {
		err := m.withSession(ctx, s.ID, func(s *Session) error {
			if !s.Status().IsActive() {
				return nil
			}
			out = append(out, SessionSummary{
				ID:        s.ID,
				P1:        s.P1.Player,
				P2:        s.P2.Player,
				Status:    s.Status(),
				InvitedAt: s.InvitedAt,
				P1Moves:   len(s.P1.Moves),
				P2Moves:   len(s.P2.Moves),
			})
			return nil
		})
		if err != nil {
			log.Warn().Err(err).Int("session_id", s.ID).Msg("Skipping session in summary")
		}
	}
	return out
}

// withSession runs fn under the session's lock.
func (m *Manager) withSession(ctx context.Context, id int, fn func(*Session) error) error {
	s, ok := m.store.Get(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrSessionNotFound, id)
	}
	return m.locks.WithLockContext(ctx, id, func() error {
		return fn(s)
	})
}

// transition applies a status change and reports it.
func (m *Manager) transition(s *Session, to Status) error {
	from := s.Status()
	if err := s.transition(to, m.now()); err != nil {
		log.Error().Err(err).Int("session_id", s.ID).Msg("Rejected status transition")
		return err
	}
	metrics.SessionTransitions.WithLabelValues(to.String()).Inc()
	if from.IsActive() && !to.IsActive() {
		metrics.ActiveSessions.Dec()
	}
	log.Info().
		Int("session_id", s.ID).
		Str("from", from.String()).
		Str("to", to.String()).
		Msg("Session status changed")
	return nil
}

// present shows a prompt to a player and registers it under tag, retiring
// whatever prompt held the tag before.
func (m *Manager) present(ctx context.Context, s *Session, key PlayerKey, tag CollectorTag, msg Message, controls []Control, transient bool) {
	p := s.Player(key)
	p.collectors.stop(tag)

	c := &collector{tag: tag}
	id := s.ID
	l, err := m.platform.Present(ctx, Prompt{
		Channel:   p.Channel,
		User:      p.ID,
		Message:   msg,
		Controls:  controls,
		Timeout:   m.cfg.IdleTimeout,
		Transient: transient,
		OnSelect: func(ctx context.Context, sel Selection) {
			m.onPlayerSelect(ctx, id, key, c, sel)
		},
	})
	if err != nil {
		metrics.PlatformFailures.WithLabelValues("present").Inc()
		log.Warn().Err(err).
			Int("session_id", id).
			Str("player", key.String()).
			Str("tag", string(tag)).
			Msg("Failed to present prompt")
		return
	}
	c.listener = l
	p.collectors.supersede(tag, c)
}

// send delivers an incidental notification. Failures are logged only.
func (m *Manager) send(ctx context.Context, dest ChannelID, msg Message) {
	if dest == "" {
		return
	}
	if err := m.platform.Send(ctx, dest, msg); err != nil {
		metrics.PlatformFailures.WithLabelValues("send").Inc()
		log.Warn().Err(err).Str("channel_id", string(dest)).Msg("Failed to deliver message")
	}
}

// sendDirect delivers a notification to a user's direct channel.
func (m *Manager) sendDirect(ctx context.Context, user UserID, msg Message) {
	dm, err := m.platform.DirectChannel(ctx, user)
	if err != nil {
		metrics.PlatformFailures.WithLabelValues("direct_channel").Inc()
		log.Warn().Err(err).Str("user_id", string(user)).Msg("Failed to open direct channel")
		return
	}
	m.send(ctx, dm, msg)
}

// onPlayerSelect routes a selection from a player's prompt.
func (m *Manager) onPlayerSelect(ctx context.Context, id int, key PlayerKey, c *collector, sel Selection) {
	err := m.withSession(ctx, id, func(s *Session) error {
		p := s.Player(key)
		if !p.collectors.live(c) || sel.User != p.ID {
			log.Debug().
				Int("session_id", id).
				Str("player", key.String()).
				Str("control", sel.Control).
				Msg("Ignoring selection from retired prompt")
			return nil
		}

		switch s.Status() {
		case StatusBoardSetup:
			m.resetIdleTimer(s, key)
			return m.dispatchSetup(ctx, s, key, sel)
		case StatusGamePhase:
			m.resetIdleTimer(s, key)
			return m.dispatchCombat(ctx, s, key, sel)
		}
		return nil
	})
	if err != nil {
		log.Error().Err(err).Int("session_id", id).Str("control", sel.Control).Msg("Failed to handle selection")
	}
}

// endGame stops both players, moves the session to a terminal status,
// locks the channels and records the outcome.
func (m *Manager) endGame(ctx context.Context, s *Session, to Status) error {
	m.stopIdleTimer(s, P1)
	m.stopIdleTimer(s, P2)
	if err := m.transition(s, to); err != nil {
		return err
	}
	m.channelsViewOnly(ctx, s)
	m.record(ctx, s)
	return nil
}

// channelsViewOnly locks both private channels.
func (m *Manager) channelsViewOnly(ctx context.Context, s *Session) {
	if err := m.platform.MakeReadOnly(ctx, s.P1.Channel, s.P2.Channel); err != nil {
		metrics.PlatformFailures.WithLabelValues("make_read_only").Inc()
		log.Warn().Err(err).Int("session_id", s.ID).Msg("Failed to make channels read-only")
	}
}

// record hands a finished game to the recorder.
func (m *Manager) record(ctx context.Context, s *Session) {
	if err := m.recorder.RecordOutcome(ctx, outcomeOf(s)); err != nil {
		log.Warn().Err(err).Int("session_id", s.ID).Msg("Failed to record outcome")
	}
}

// outcomeOf summarizes a finished session. An idle player forfeits to the opponent.
func outcomeOf(s *Session) Outcome {
	o := Outcome{
		SessionID: s.ID,
		Status:    s.Status(),
		P1:        s.P1.Player,
		P2:        s.P2.Player,
		P1Moves:   len(s.P1.Moves),
		P2Moves:   len(s.P2.Moves),
		InvitedAt: s.InvitedAt,
		StartedAt: s.GameStartedAt,
		EndedAt:   s.EndedAt,
	}
	var winner PlayerKey
	switch o.Status {
	case StatusP1Win, StatusP2IdleTimeout:
		winner = P1
	case StatusP2Win, StatusP1IdleTimeout:
		winner = P2
	default:
		return o
	}
	o.Winner = s.Player(winner).Player
	o.Loser = s.Player(winner.Opponent()).Player
	return o
}
