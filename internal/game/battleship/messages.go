package battleship

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Control ids shared by prompts and dispatch.
const (
	ctrlAccept        = "accept"
	ctrlDeny          = "deny"
	ctrlPlace         = "place"
	ctrlRemove        = "remove"
	ctrlFinish        = "finish"
	ctrlShip          = "ship"
	ctrlOrientation   = "orientation"
	ctrlRow           = "row"
	ctrlColumn        = "column"
	ctrlConfirmPlace  = "confirm_place"
	ctrlRemoveShip    = "remove_ship"
	ctrlConfirmRemove = "confirm_remove"
	ctrlBack          = "back"
	ctrlConfirmGuess  = "confirm_guess"
)

// Invitation

func inviteMessage(s *Session) Message {
	return Message{
		Title: "Battleship invite",
		Text:  fmt.Sprintf("You've been invited by %s to play Battleship!", s.P1.Name),
	}
}

func inviteControls() []Control {
	return []Control{
		{ID: ctrlAccept, Label: "✅ Accept"},
		{ID: ctrlDeny, Label: "❌ Deny"},
	}
}

func textMessage(format string, args ...any) Message {
	return Message{Text: fmt.Sprintf(format, args...)}
}

// Board setup

func welcomeTitle(opponent *PlayerState) string {
	return fmt.Sprintf("Welcome to Battleship! You are fighting against %s", opponent.Name)
}

func mainInterface(p *PlayerState, st *SettingUp, roster []Ship, title, notice string) (Message, []Control) {
	if title == "" {
		title = "Set up your board"
	}
	var text []string
	if notice != "" {
		text = append(text, notice)
	}
	text = append(text, fleetSummary(st))

	var controls []Control
	if !st.allPlaced() {
		controls = append(controls, Control{ID: ctrlPlace, Label: "Place Ship"})
	}
	if st.anyPlaced() {
		controls = append(controls, Control{ID: ctrlRemove, Label: "Remove Ship"})
	}
	if st.allPlaced() {
		controls = append(controls, Control{ID: ctrlFinish, Label: "Finish Setup"})
	}
	return Message{
		Title: title,
		Text:  strings.Join(text, "\n"),
		Grid:  Lines(BoardView{Board: p.Board, Roster: roster}),
	}, controls
}

func fleetSummary(st *SettingUp) string {
	lines := make([]string, 0, len(st.Ships))
	for _, s := range st.Ships {
		mark := "⬜"
		if s.Placed {
			mark = "✅"
		}
		lines = append(lines, fmt.Sprintf("%s %s", mark, s.Label()))
	}
	return strings.Join(lines, "\n")
}

func placingInterface(p *PlayerState, st *SettingUp, cfg Config) (Message, []Control) {
	var ships []Option
	for _, s := range st.Ships {
		if !s.Placed {
			ships = append(ships, Option{Label: s.Label(), Value: strconv.Itoa(int(s.ID))})
		}
	}
	controls := []Control{
		{ID: ctrlShip, Label: "Select a ship!", Options: ships},
		{ID: ctrlOrientation, Label: "Select an orientation!", Options: []Option{
			{Label: "Horizontal (→ left to right)", Value: Horizontal.String()},
			{Label: "Vertical (↓ top to bottom)", Value: Vertical.String()},
		}},
		{ID: ctrlRow, Label: "Select a row!", Options: rowOptions(cfg.BoardHeight)},
		{ID: ctrlColumn, Label: "Select a column!", Options: columnOptions(cfg.BoardWidth)},
		{ID: ctrlBack, Label: "Back"},
	}
	return Message{
		Title: "Place a ship",
		Text:  "Pick a ship, an orientation, a row and a column.",
		Grid:  Lines(BoardView{Board: p.Board, Roster: cfg.Roster}),
	}, controls
}

func removingInterface(p *PlayerState, st *SettingUp, roster []Ship) (Message, []Control) {
	var ships []Option
	for _, s := range st.Ships {
		if s.Placed {
			ships = append(ships, Option{Label: s.Label(), Value: strconv.Itoa(int(s.ID))})
		}
	}
	return Message{
			Title: "Remove a ship",
			Text:  "Pick the ship to take off the board.",
			Grid:  Lines(BoardView{Board: p.Board, Roster: roster}),
		}, []Control{
			{ID: ctrlRemoveShip, Label: "Select a ship to remove!", Options: ships},
			{ID: ctrlBack, Label: "Back"},
		}
}

func rowOptions(height int) []Option {
	opts := make([]Option, height)
	for r := range opts {
		opts[r] = Option{Label: RowLabel(r), Value: RowLabel(r)}
	}
	return opts
}

func columnOptions(width int) []Option {
	opts := make([]Option, width)
	for c := range opts {
		label := strconv.Itoa(c + 1)
		opts[c] = Option{Label: label, Value: label}
	}
	return opts
}

// missingPlacement lists the placement picks not made yet.
func missingPlacement(st *SettingUp) []string {
	var missing []string
	if st.SelectedShip == Sea {
		missing = append(missing, "ship")
	}
	if st.SelectedOrientation == 0 {
		missing = append(missing, "orientation")
	}
	if !st.Selected.HasRow {
		missing = append(missing, "row")
	}
	if !st.Selected.HasCol {
		missing = append(missing, "column")
	}
	return missing
}

func incompleteMessage(missing []string) Message {
	return textMessage("Still to choose: %s.", strings.Join(missing, ", "))
}

func placementPreview(ship Ship, o Orientation, at Coord, preview Board, roster []Ship) (Message, []Control) {
	return Message{
			Title: "Placement preview",
			Text:  fmt.Sprintf("%s, %s from %s.", ship.Label(), o, at),
			Grid:  Lines(BoardView{Board: preview, Roster: roster}),
		}, []Control{
			{ID: ctrlConfirmPlace, Label: "Place Ship!"},
		}
}

func invalidPlacementMessage(err error) Message {
	return Message{
		Title: "Your placement selection is invalid!",
		Text:  capitalize(err.Error()) + ". Please adjust your selections!",
	}
}

func removalPreview(ship Ship, preview Board, roster []Ship) (Message, []Control) {
	return Message{
			Title: "Removal preview",
			Text:  fmt.Sprintf("Remove your %s?", ship.Label()),
			Grid:  Lines(BoardView{Board: preview, Roster: roster}),
		}, []Control{
			{ID: ctrlConfirmRemove, Label: "Remove Ship!"},
		}
}

// Combat

func moveInterface(attacker, defender *PlayerState, cfg Config) (Message, []Control) {
	return Message{
			Title: "It's your turn!",
			Text:  "This is your guess board:",
			Grid:  Lines(GuessView{Guesses: attacker.Guesses, Opponent: defender.Board}),
		}, []Control{
			{ID: ctrlRow, Label: "Select a row!", Options: rowOptions(cfg.BoardHeight)},
			{ID: ctrlColumn, Label: "Select a column!", Options: columnOptions(cfg.BoardWidth)},
		}
}

func waitingMessage(attacker *PlayerState) Message {
	return Message{
		Title: "It's currently not your turn!",
		Text:  fmt.Sprintf("Wait for %s to make a move!", attacker.Name),
	}
}

func confirmGuessPrompt(at Coord) (Message, []Control) {
	return textMessage("Confirm guess %s?", at), []Control{
		{ID: ctrlConfirmGuess, Label: "🎯 Guess " + at.String()},
	}
}

func attackerUpdate(move Move, ship Ship, attacker, defender *PlayerState) Message {
	var title, text string
	switch move.Result {
	case ResultHit:
		title = "💥 Hit!"
		text = fmt.Sprintf("You hit their %s at %s", ship.Label(), move.Position)
	case ResultSunk:
		title = "🌊 Sunk!"
		text = fmt.Sprintf("You've sunken their %s at %s\n\n%d ships remaining", ship.Label(), move.Position, move.RemainingShips)
	default:
		title = "🚫 Miss!"
		text = fmt.Sprintf("You hit nothing at %s", move.Position)
	}
	return Message{
		Title: title,
		Text:  text + "\n\nYour guess board:",
		Grid:  Lines(GuessView{Guesses: attacker.Guesses, Opponent: defender.Board}),
	}
}

func defenderUpdate(move Move, ship Ship, attacker, defender *PlayerState, roster []Ship) Message {
	var title, text string
	switch move.Result {
	case ResultHit:
		title = "💥 Your Ship Was Hit!"
		text = fmt.Sprintf("They hit your %s at %s", ship.Label(), move.Position)
	case ResultSunk:
		title = "😭 Sunken Ship!"
		text = fmt.Sprintf("They've sunken your %s at %s\n\n%d of your ships remaining", ship.Label(), move.Position, move.RemainingShips)
	default:
		title = "🚫 They Missed!"
		text = fmt.Sprintf("They hit nothing at %s", move.Position)
	}
	return Message{
		Title: title,
		Text:  text + "\n\nYour board:",
		Grid:  Lines(DamageView{Board: defender.Board, OpponentGuesses: attacker.Guesses, Roster: roster}),
	}
}

func winnerMessage(loser *PlayerState, roster []Ship) Message {
	return Message{
		Title: "You have won! 🥳🏆",
		Text:  fmt.Sprintf("This is %s's board:", loser.Name),
		Grid:  Lines(BoardView{Board: loser.Board, Roster: roster}),
	}
}

func loserMessage(winner *PlayerState, roster []Ship) Message {
	return Message{
		Title: "You have lost! 😞",
		Text:  fmt.Sprintf("This is %s's board:", winner.Name),
		Grid:  Lines(BoardView{Board: winner.Board, Roster: roster}),
	}
}

// Timeouts

func idleTimeoutMessage() Message {
	return Message{
		Title: "⌛ Game over",
		Text:  "You took too long to respond, so the game has ended.",
	}
}

func opponentIdleMessage(idle *PlayerState) Message {
	return Message{
		Title: "⌛ Game over",
		Text:  fmt.Sprintf("%s took too long to respond, so the game has ended.", idle.Name),
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// InviteErrorText returns the reply shown to an inviter whose invite failed.
func InviteErrorText(err error, invitee string) string {
	switch {
	case errors.Is(err, ErrSelfInvite):
		return "You must invite a valid player!"
	case errors.Is(err, ErrInviterActive):
		return "You already have an active game or pending invite. Either finish your game or cancel your invite before inviting another player."
	case errors.Is(err, ErrInviteeActive):
		return fmt.Sprintf("%s either has an active invite or is currently in a game. Tell them to cancel their invite or finish their game!", invitee)
	case errors.Is(err, ErrInviterInvited):
		return "You are invited by someone, check your DMs and respond to them first!"
	case errors.Is(err, ErrInviteeInvited):
		return fmt.Sprintf("%s is being invited by someone else. Unfortunately, they would have to respond to their invite first.", invitee)
	case errors.Is(err, ErrInviteUndeliverable):
		return fmt.Sprintf("Could not send a DM to %s. They may have DMs disabled.", invitee)
	}
	return "Something went wrong while sending the invite. Please try again."
}
