package battleship

import (
	"errors"
	"fmt"
	"time"
)

// Ship is one entry of the configured roster.
type Ship struct {
	ID     ShipID
	Name   string
	Length int
	Emoji  string // used in messages
	Glyph  string // single-width mark used in rendered grids
}

// Label is the display text used in choice lists.
func (s Ship) Label() string {
	return fmt.Sprintf("%s %s (length %d)", s.Emoji, s.Name, s.Length)
}

// RosterShip is a player's copy of a roster ship with its placement flag.
type RosterShip struct {
	Ship
	Placed bool
}

// DefaultRoster returns the classic five-ship fleet.
func DefaultRoster() []Ship {
	return []Ship{
		{ID: 1, Name: "Carrier", Length: 5, Emoji: "🛳", Glyph: "C"},
		{ID: 2, Name: "Battleship", Length: 4, Emoji: "⚔️", Glyph: "B"},
		{ID: 3, Name: "Cruiser", Length: 3, Emoji: "🚤", Glyph: "R"},
		{ID: 4, Name: "Submarine", Length: 3, Emoji: "🚇", Glyph: "S"},
		{ID: 5, Name: "Destroyer", Length: 2, Emoji: "🚀", Glyph: "D"},
	}
}

// MaxBoardSize bounds both board dimensions so rows stay single letters
// and every row/column choice list fits a platform menu.
const MaxBoardSize = 20

// Config holds the game constants.
type Config struct {
	BoardHeight   int
	BoardWidth    int
	IdleTimeout   time.Duration
	InviteTimeout time.Duration
	Roster        []Ship
}

// DefaultConfig returns an 8x8 board, 5 minute idle timeout, 1 minute invite timeout
// and the default roster.
func DefaultConfig() Config {
	return Config{
		BoardHeight:   8,
		BoardWidth:    8,
		IdleTimeout:   5 * time.Minute,
		InviteTimeout: time.Minute,
		Roster:        DefaultRoster(),
	}
}

// Config errors.
var (
	ErrInvalidBoardSize = errors.New("invalid board size")
	ErrInvalidTimeout   = errors.New("invalid timeout")
	ErrInvalidRoster    = errors.New("invalid ship roster")
)

// Validate checks that the constants describe a playable game.
func (c Config) Validate() error {
	if c.BoardHeight < 1 || c.BoardHeight > MaxBoardSize || c.BoardWidth < 1 || c.BoardWidth > MaxBoardSize {
		return fmt.Errorf("%w: %dx%d", ErrInvalidBoardSize, c.BoardHeight, c.BoardWidth)
	}
	if c.IdleTimeout <= 0 || c.InviteTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if len(c.Roster) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidRoster)
	}
	seen := make(map[ShipID]bool, len(c.Roster))
	for _, s := range c.Roster {
		if s.ID == Sea {
			return fmt.Errorf("%w: %s uses the sea id", ErrInvalidRoster, s.Name)
		}
		if seen[s.ID] {
			return fmt.Errorf("%w: duplicate id %d", ErrInvalidRoster, s.ID)
		}
		seen[s.ID] = true
		if s.Length < 1 || (s.Length > c.BoardWidth && s.Length > c.BoardHeight) {
			return fmt.Errorf("%w: %s does not fit the board", ErrInvalidRoster, s.Name)
		}
	}
	return nil
}

// ship returns the roster entry for an id.
func (c Config) ship(id ShipID) (Ship, bool) {
	for _, s := range c.Roster {
		if s.ID == id {
			return s, true
		}
	}
	return Ship{}, false
}

func newFleet(roster []Ship) []RosterShip {
	fleet := make([]RosterShip, len(roster))
	for i, s := range roster {
		fleet[i] = RosterShip{Ship: s}
	}
	return fleet
}
