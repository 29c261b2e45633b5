package battleship

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
)

// setupEvent keys the setup dispatch table.
type setupEvent struct {
	iface   SetupInterface
	control string
}

type setupAction func(m *Manager, ctx context.Context, s *Session, key PlayerKey, st *SettingUp, value string) error

func setupTable() map[setupEvent]setupAction {
	return map[setupEvent]setupAction{
		{InterfaceMain, ctrlPlace}:  (*Manager).openPlacing,
		{InterfaceMain, ctrlRemove}: (*Manager).openRemoving,
		{InterfaceMain, ctrlFinish}: (*Manager).finishSetup,

		{InterfacePlacing, ctrlShip}:         (*Manager).selectShip,
		{InterfacePlacing, ctrlOrientation}:  (*Manager).selectOrientation,
		{InterfacePlacing, ctrlRow}:          (*Manager).selectPlacementRow,
		{InterfacePlacing, ctrlColumn}:       (*Manager).selectPlacementColumn,
		{InterfacePlacing, ctrlConfirmPlace}: (*Manager).confirmPlacement,
		{InterfacePlacing, ctrlBack}:         (*Manager).backToMain,

		{InterfaceRemoving, ctrlRemoveShip}:    (*Manager).selectRemoveShip,
		{InterfaceRemoving, ctrlConfirmRemove}: (*Manager).confirmRemoval,
		{InterfaceRemoving, ctrlBack}:          (*Manager).backToMain,
	}
}

func (m *Manager) dispatchSetup(ctx context.Context, s *Session, key PlayerKey, sel Selection) error {
	st, ok := s.Player(key).Setup.(*SettingUp)
	if !ok {
		return nil
	}
	action, ok := m.setupActions[setupEvent{st.Interface, sel.Control}]
	if !ok {
		log.Debug().
			Int("session_id", s.ID).
			Str("interface", st.Interface.String()).
			Str("control", sel.Control).
			Msg("No setup action for control")
		return nil
	}
	return action(m, ctx, s, key, st, sel.Value)
}

// startBoardSetup greets both players with their main interface and starts
// both idle clocks.
func (m *Manager) startBoardSetup(ctx context.Context, s *Session) {
	for _, key := range []PlayerKey{P1, P2} {
		st := s.Player(key).Setup.(*SettingUp)
		m.showMain(ctx, s, key, st, welcomeTitle(s.Player(key.Opponent())), "")
		m.startIdleTimer(s, key)
	}
}

// showMain switches the player to the main interface.
func (m *Manager) showMain(ctx context.Context, s *Session, key PlayerKey, st *SettingUp, title, notice string) {
	p := s.Player(key)
	st.Interface = InterfaceMain
	st.clearSelection()
	p.collectors.stop(TagPlacementFeedback)
	p.collectors.stop(TagRemovalFeedback)

	msg, controls := mainInterface(p, st, m.cfg.Roster, title, notice)
	m.present(ctx, s, key, TagCurrentInterface, msg, controls, false)
}

func (m *Manager) backToMain(ctx context.Context, s *Session, key PlayerKey, st *SettingUp, _ string) error {
	m.showMain(ctx, s, key, st, "", "")
	return nil
}

func (m *Manager) openPlacing(ctx context.Context, s *Session, key PlayerKey, st *SettingUp, _ string) error {
	if st.allPlaced() {
		m.showMain(ctx, s, key, st, "", "Every ship is already placed.")
		return nil
	}
	st.Interface = InterfacePlacing
	st.clearSelection()

	msg, controls := placingInterface(s.Player(key), st, m.cfg)
	m.present(ctx, s, key, TagCurrentInterface, msg, controls, false)
	return nil
}

func (m *Manager) openRemoving(ctx context.Context, s *Session, key PlayerKey, st *SettingUp, _ string) error {
	if !st.anyPlaced() {
		m.showMain(ctx, s, key, st, "", "There is no ship to remove.")
		return nil
	}
	st.Interface = InterfaceRemoving
	st.clearSelection()

	msg, controls := removingInterface(s.Player(key), st, m.cfg.Roster)
	m.present(ctx, s, key, TagCurrentInterface, msg, controls, false)
	return nil
}

// placementFeedback validates the current picks and shows either a preview
// with a confirm button or the reason the placement is invalid.
func (m *Manager) placementFeedback(ctx context.Context, s *Session, key PlayerKey, st *SettingUp) {
	if missing := missingPlacement(st); len(missing) > 0 {
		m.present(ctx, s, key, TagPlacementFeedback, incompleteMessage(missing), nil, true)
		return
	}

	p := s.Player(key)
	ship, _ := m.cfg.ship(st.SelectedShip)
	at := st.Selected.Coord()
	if err := CheckPlacement(p.Board, ship, st.SelectedOrientation, at); err != nil {
		m.present(ctx, s, key, TagPlacementFeedback, invalidPlacementMessage(err), nil, true)
		return
	}

	preview := ApplyPlacement(p.Board, ship, st.SelectedOrientation, at)
	msg, controls := placementPreview(ship, st.SelectedOrientation, at, preview, m.cfg.Roster)
	m.present(ctx, s, key, TagPlacementFeedback, msg, controls, true)
}

// rejectPick reports an unusable pick on the placement feedback slot.
func (m *Manager) rejectPick(ctx context.Context, s *Session, key PlayerKey, tag CollectorTag, err error) error {
	m.present(ctx, s, key, tag, textMessage("%s.", capitalize(err.Error())), nil, true)
	return nil
}

func (m *Manager) selectShip(ctx context.Context, s *Session, key PlayerKey, st *SettingUp, value string) error {
	rs, err := unplacedShip(st, value)
	if err != nil {
		return m.rejectPick(ctx, s, key, TagPlacementFeedback, err)
	}
	st.SelectedShip = rs.ID
	m.placementFeedback(ctx, s, key, st)
	return nil
}

func (m *Manager) selectOrientation(ctx context.Context, s *Session, key PlayerKey, st *SettingUp, value string) error {
	o, err := ParseOrientation(value)
	if err != nil {
		return m.rejectPick(ctx, s, key, TagPlacementFeedback, err)
	}
	st.SelectedOrientation = o
	m.placementFeedback(ctx, s, key, st)
	return nil
}

func (m *Manager) selectPlacementRow(ctx context.Context, s *Session, key PlayerKey, st *SettingUp, value string) error {
	row, err := m.parseRow(value)
	if err != nil {
		return m.rejectPick(ctx, s, key, TagPlacementFeedback, err)
	}
	st.Selected.Row, st.Selected.HasRow = row, true
	m.placementFeedback(ctx, s, key, st)
	return nil
}

func (m *Manager) selectPlacementColumn(ctx context.Context, s *Session, key PlayerKey, st *SettingUp, value string) error {
	col, err := m.parseColumn(value)
	if err != nil {
		return m.rejectPick(ctx, s, key, TagPlacementFeedback, err)
	}
	st.Selected.Col, st.Selected.HasCol = col, true
	m.placementFeedback(ctx, s, key, st)
	return nil
}

func (m *Manager) confirmPlacement(ctx context.Context, s *Session, key PlayerKey, st *SettingUp, _ string) error {
	p := s.Player(key)
	rs := st.find(st.SelectedShip)
	if rs == nil || rs.Placed || len(missingPlacement(st)) > 0 {
		m.placementFeedback(ctx, s, key, st)
		return nil
	}
	at := st.Selected.Coord()
	if !IsPlacementValid(p.Board, rs.Ship, st.SelectedOrientation, at) {
		m.placementFeedback(ctx, s, key, st)
		return nil
	}

	p.Board = ApplyPlacement(p.Board, rs.Ship, st.SelectedOrientation, at)
	rs.Placed = true
	log.Debug().Int("session_id", s.ID).Str("player", key.String()).Str("ship", rs.Name).Str("at", at.String()).Msg("Ship placed")

	m.showMain(ctx, s, key, st, "", fmt.Sprintf("Placed your %s at %s.", rs.Name, at))
	return nil
}

func (m *Manager) selectRemoveShip(ctx context.Context, s *Session, key PlayerKey, st *SettingUp, value string) error {
	id, err := strconv.Atoi(value)
	rs := st.find(ShipID(id))
	if err != nil || rs == nil || !rs.Placed {
		return m.rejectPick(ctx, s, key, TagRemovalFeedback, errors.New("that ship is not on your board"))
	}
	st.SelectedRemoveShip = rs.ID

	preview := RemovePlacement(s.Player(key).Board, rs.ID)
	msg, controls := removalPreview(rs.Ship, preview, m.cfg.Roster)
	m.present(ctx, s, key, TagRemovalFeedback, msg, controls, true)
	return nil
}

func (m *Manager) confirmRemoval(ctx context.Context, s *Session, key PlayerKey, st *SettingUp, _ string) error {
	rs := st.find(st.SelectedRemoveShip)
	if rs == nil || !rs.Placed {
		return m.rejectPick(ctx, s, key, TagRemovalFeedback, errors.New("select a placed ship first"))
	}
	p := s.Player(key)
	p.Board = RemovePlacement(p.Board, rs.ID)
	rs.Placed = false

	m.showMain(ctx, s, key, st, "", fmt.Sprintf("Removed your %s.", rs.Name))
	return nil
}

// finishSetup marks the player ready. The second player to finish starts combat.
func (m *Manager) finishSetup(ctx context.Context, s *Session, key PlayerKey, st *SettingUp, _ string) error {
	if !st.allPlaced() {
		m.showMain(ctx, s, key, st, "", "Place every ship before finishing setup.")
		return nil
	}

	m.stopIdleTimer(s, key)
	p, opp := s.Player(key), s.Player(key.Opponent())
	p.Setup = SetupDone{}
	log.Info().Int("session_id", s.ID).Str("player", key.String()).Msg("Player finished setup")

	if !opp.HasFinishedSetup() {
		m.send(ctx, p.Channel, Message{
			Title: "You have finished setting up your board! 😆",
			Text:  fmt.Sprintf("Please wait for %s to finish setting up their board!", opp.Name),
		})
		m.send(ctx, opp.Channel, textMessage("Your opponent %s has finished setting up their board! 😁", p.Name))
		return nil
	}

	m.send(ctx, p.Channel, Message{Title: "You have finished setting up your board! 😆"})
	m.send(ctx, opp.Channel, Message{
		Title: "Your opponent is ready! 😛",
		Text:  fmt.Sprintf("%s has finished setting up their board!", p.Name),
	})
	return m.startCombat(ctx, s)
}

func unplacedShip(st *SettingUp, value string) (*RosterShip, error) {
	id, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("unknown ship %q", value)
	}
	rs := st.find(ShipID(id))
	if rs == nil {
		return nil, fmt.Errorf("unknown ship %q", value)
	}
	if rs.Placed {
		return nil, fmt.Errorf("your %s is already placed", rs.Name)
	}
	return rs, nil
}

func (m *Manager) parseRow(value string) (int, error) {
	row, err := ParseRow(value)
	if err != nil || row >= m.cfg.BoardHeight {
		return 0, fmt.Errorf("row %q is not on the board", value)
	}
	return row, nil
}

func (m *Manager) parseColumn(value string) (int, error) {
	col, err := ParseColumn(value)
	if err != nil || col >= m.cfg.BoardWidth {
		return 0, fmt.Errorf("column %q is not on the board", value)
	}
	return col, nil
}
