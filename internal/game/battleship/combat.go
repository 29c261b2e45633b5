package battleship

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"battleship-bot/internal/pkg/metrics"
)

// startCombat flips a coin for the first attacker and opens the first turn.
func (m *Manager) startCombat(ctx context.Context, s *Session) error {
	if err := m.transition(s, StatusGamePhase); err != nil {
		return err
	}
	s.Game = &GamePhase{Turn: m.coinFlip()}
	first := s.Player(s.Game.Turn)
	log.Info().Int("session_id", s.ID).Str("first", s.Game.Turn.String()).Msg("Combat started")

	for _, p := range []*PlayerState{s.P1, s.P2} {
		m.send(ctx, p.Channel, Message{
			Title: "Battleship starting... 🚢",
			Text:  fmt.Sprintf("%s goes first!", first.Name),
		})
	}
	m.startTurn(ctx, s)
	return nil
}

// startTurn shows the attacker a fresh move interface and starts their clock.
// The defender gets no interactive prompt.
func (m *Manager) startTurn(ctx context.Context, s *Session) {
	key := s.Game.Turn
	attacker, defender := s.Player(key), s.Player(key.Opponent())
	s.Game.Selected = Pick{}

	msg, controls := moveInterface(attacker, defender, m.cfg)
	m.present(ctx, s, key, TagMoveInterface, msg, controls, false)
	m.startIdleTimer(s, key)
	m.send(ctx, defender.Channel, waitingMessage(attacker))
}

func (m *Manager) dispatchCombat(ctx context.Context, s *Session, key PlayerKey, sel Selection) error {
	if s.Game == nil || s.Game.Turn != key {
		return nil
	}
	switch sel.Control {
	case ctrlRow:
		row, err := m.parseRow(sel.Value)
		if err != nil {
			return m.rejectPick(ctx, s, key, TagMoveFeedback, err)
		}
		s.Game.Selected.Row, s.Game.Selected.HasRow = row, true
		m.moveFeedback(ctx, s, key)
	case ctrlColumn:
		col, err := m.parseColumn(sel.Value)
		if err != nil {
			return m.rejectPick(ctx, s, key, TagMoveFeedback, err)
		}
		s.Game.Selected.Col, s.Game.Selected.HasCol = col, true
		m.moveFeedback(ctx, s, key)
	case ctrlConfirmGuess:
		return m.confirmGuess(ctx, s, key)
	}
	return nil
}

// moveFeedback reports on the current guess: what is still missing, that
// the cell was already guessed, or a confirm button.
func (m *Manager) moveFeedback(ctx context.Context, s *Session, key PlayerKey) {
	pick := s.Game.Selected
	if !pick.Complete() {
		var missing []string
		if !pick.HasRow {
			missing = append(missing, "row")
		}
		if !pick.HasCol {
			missing = append(missing, "column")
		}
		m.present(ctx, s, key, TagMoveFeedback, incompleteMessage(missing), nil, true)
		return
	}

	at := pick.Coord()
	if g, _ := s.Player(key).Guesses.At(at); g != Unguessed {
		m.present(ctx, s, key, TagMoveFeedback, Message{
			Title: "Invalid guess!",
			Text:  fmt.Sprintf("You already guessed %s. Please choose another cell!", at),
		}, nil, true)
		return
	}

	msg, controls := confirmGuessPrompt(at)
	m.present(ctx, s, key, TagMoveFeedback, msg, controls, true)
}

// confirmGuess commits the attacker's pick and either hands the turn over
// or ends the game.
func (m *Manager) confirmGuess(ctx context.Context, s *Session, key PlayerKey) error {
	pick := s.Game.Selected
	if !pick.Complete() {
		m.moveFeedback(ctx, s, key)
		return nil
	}
	if g, _ := s.Player(key).Guesses.At(pick.Coord()); g != Unguessed {
		m.moveFeedback(ctx, s, key)
		return nil
	}

	move := MakeMove(s, m.now())
	metrics.Moves.WithLabelValues(move.Result.String()).Inc()

	attacker, defender := s.Player(key), s.Player(key.Opponent())
	log.Debug().
		Int("session_id", s.ID).
		Str("attacker", key.String()).
		Str("position", move.Position).
		Str("result", move.Result.String()).
		Int("remaining", move.RemainingShips).
		Msg("Move made")

	attacker.collectors.stop(TagMoveInterface)
	attacker.collectors.stop(TagMoveFeedback)

	ship, _ := m.cfg.ship(move.ShipHit)
	m.send(ctx, attacker.Channel, attackerUpdate(move, ship, attacker, defender))
	m.send(ctx, defender.Channel, defenderUpdate(move, ship, attacker, defender, m.cfg.Roster))

	if move.RemainingShips > 0 {
		m.stopIdleTimer(s, key)
		s.Game.Turn = key.Opponent()
		m.startTurn(ctx, s)
		return nil
	}

	m.send(ctx, attacker.Channel, winnerMessage(defender, m.cfg.Roster))
	m.send(ctx, defender.Channel, loserMessage(attacker, m.cfg.Roster))
	return m.endGame(ctx, s, WinStatus(key))
}

// MakeMove resolves the selected guess of the player whose turn it is,
// records it on the attacker's guess grid and appends the Move.
//
// The selected cell must be complete and unguessed; anything else is a
// caller bug and panics.
func MakeMove(s *Session, now time.Time) Move {
	if s.Game == nil || !s.Game.Selected.Complete() {
		panic("battleship: MakeMove without a complete selection")
	}
	key := s.Game.Turn
	attacker, defender := s.Player(key), s.Player(key.Opponent())
	at := s.Game.Selected.Coord()
	if g, ok := attacker.Guesses.At(at); !ok || g != Unguessed {
		panic(fmt.Sprintf("battleship: MakeMove on guessed or off-board cell %s", at))
	}

	move := Move{
		TurnNumber: len(attacker.Moves) + 1,
		Position:   at.String(),
		Coord:      at,
		Result:     ResultMiss,
		ShipHit:    Sea,
		ShipSunk:   Sea,
		Timestamp:  now,
	}

	target := defender.Board[at.Row][at.Col]
	if target == Sea {
		attacker.Guesses[at.Row][at.Col] = Miss
	} else {
		attacker.Guesses[at.Row][at.Col] = Hit
		move.Result = ResultHit
		move.ShipHit = target
		if IsShipSunk(defender.Board, attacker.Guesses, target) {
			move.Result = ResultSunk
			move.ShipSunk = target
		}
	}
	move.RemainingShips = CountSurvivingShips(defender.Board, attacker.Guesses)

	attacker.Moves = append(attacker.Moves, move)
	return move
}
