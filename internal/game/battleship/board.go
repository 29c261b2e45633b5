package battleship

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ShipID identifies a ship on a board. Sea is the empty-cell sentinel.
type ShipID int

// Sea marks a cell that holds no ship.
const Sea ShipID = 0

// Board is a player's own ship-occupancy grid, indexed [row][column].
type Board [][]ShipID

// Guess is the state of one cell in a player's record of attacks.
type Guess uint8

// Guess values.
const (
	Unguessed Guess = iota
	Hit
	Miss
)

// Guesses is a player's record of attacks made against the opponent.
type Guesses [][]Guess

// Orientation of a placed ship. The zero value means "not chosen yet".
type Orientation int

// Orientation values.
const (
	Horizontal Orientation = iota + 1 // extends along increasing column
	Vertical                          // extends along increasing row
)

func (o Orientation) String() string {
	switch o {
	case Horizontal:
		return "horizontal"
	case Vertical:
		return "vertical"
	default:
		return "unset"
	}
}

// ParseOrientation parses the value produced by Orientation.String.
func ParseOrientation(s string) (Orientation, error) {
	switch strings.ToLower(s) {
	case "horizontal":
		return Horizontal, nil
	case "vertical":
		return Vertical, nil
	}
	return 0, fmt.Errorf("unknown orientation %q", s)
}

// Coord is a zero-based cell position.
type Coord struct {
	Row int
	Col int
}

// String returns the user-facing position: row letter plus 1-based column, e.g. "B3".
func (c Coord) String() string {
	return RowLabel(c.Row) + strconv.Itoa(c.Col+1)
}

// RowLabel returns the letter used for a zero-based row index.
func RowLabel(row int) string {
	return string(rune('A' + row))
}

// ParseRow converts a row letter into a zero-based index.
func ParseRow(s string) (int, error) {
	if len(s) != 1 {
		return 0, fmt.Errorf("invalid row %q", s)
	}
	c := s[0]
	if c >= 'a' && c <= 'z' {
		c -= 'a' - 'A'
	}
	if c < 'A' || c > 'Z' {
		return 0, fmt.Errorf("invalid row %q", s)
	}
	return int(c - 'A'), nil
}

// ParseColumn converts a 1-based column label into a zero-based index.
func ParseColumn(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid column %q", s)
	}
	return n - 1, nil
}

// Placement errors returned by CheckPlacement.
var (
	ErrOutOfBounds = errors.New("ship extends beyond the board")
	ErrOverlap     = errors.New("ship overlaps an existing ship")
)

// NewBoard returns a height x width board filled with sea.
func NewBoard(height, width int) Board {
	b := make(Board, height)
	for r := range b {
		b[r] = make([]ShipID, width)
	}
	return b
}

// NewGuesses returns a height x width guess grid with every cell unguessed.
func NewGuesses(height, width int) Guesses {
	g := make(Guesses, height)
	for r := range g {
		g[r] = make([]Guess, width)
	}
	return g
}

// Height returns the number of rows.
func (b Board) Height() int { return len(b) }

// Width returns the number of columns.
func (b Board) Width() int {
	if len(b) == 0 {
		return 0
	}
	return len(b[0])
}

// Clone returns a deep copy of the board.
func (b Board) Clone() Board {
	c := make(Board, len(b))
	for r := range b {
		c[r] = append([]ShipID(nil), b[r]...)
	}
	return c
}

// Equal reports whether two boards hold the same cells.
func (b Board) Equal(o Board) bool {
	if len(b) != len(o) {
		return false
	}
	for r := range b {
		if len(b[r]) != len(o[r]) {
			return false
		}
		for c := range b[r] {
			if b[r][c] != o[r][c] {
				return false
			}
		}
	}
	return true
}

// Contains reports whether the board holds at least one cell of the ship.
func (b Board) Contains(id ShipID) bool {
	for _, row := range b {
		for _, cell := range row {
			if cell == id {
				return true
			}
		}
	}
	return false
}

// Clone returns a deep copy of the guess grid.
func (g Guesses) Clone() Guesses {
	c := make(Guesses, len(g))
	for r := range g {
		c[r] = append([]Guess(nil), g[r]...)
	}
	return c
}

// At returns the guess at a position, or false when the position is off the grid.
func (g Guesses) At(at Coord) (Guess, bool) {
	if at.Row < 0 || at.Row >= len(g) || at.Col < 0 || at.Col >= len(g[at.Row]) {
		return Unguessed, false
	}
	return g[at.Row][at.Col], true
}

// step returns the per-cell row and column increments for an orientation.
func step(o Orientation) (dr, dc int) {
	if o == Vertical {
		return 1, 0
	}
	return 0, 1
}

// CheckPlacement reports why a ship cannot be placed at the given position.
// It returns nil when every target cell is on the board and holds sea.
func CheckPlacement(b Board, ship Ship, o Orientation, at Coord) error {
	if at.Row < 0 || at.Row >= b.Height() || at.Col < 0 || at.Col >= b.Width() {
		return fmt.Errorf("%w: %s is not on the board", ErrOutOfBounds, at)
	}
	switch o {
	case Horizontal:
		if at.Col+ship.Length > b.Width() {
			return fmt.Errorf("%w: past the right edge (needs %d spaces)", ErrOutOfBounds, ship.Length)
		}
	case Vertical:
		if at.Row+ship.Length > b.Height() {
			return fmt.Errorf("%w: past the bottom edge (needs %d spaces)", ErrOutOfBounds, ship.Length)
		}
	default:
		return fmt.Errorf("invalid orientation %d", o)
	}

	dr, dc := step(o)
	for i := 0; i < ship.Length; i++ {
		if b[at.Row+i*dr][at.Col+i*dc] != Sea {
			return ErrOverlap
		}
	}
	return nil
}

// IsPlacementValid reports whether the ship fits at the given position without overlap.
func IsPlacementValid(b Board, ship Ship, o Orientation, at Coord) bool {
	return CheckPlacement(b, ship, o, at) == nil
}

// ApplyPlacement returns a copy of the board with the ship written into its cells.
// The caller must have checked the placement; it is not re-validated here.
func ApplyPlacement(b Board, ship Ship, o Orientation, at Coord) Board {
	next := b.Clone()
	dr, dc := step(o)
	for i := 0; i < ship.Length; i++ {
		next[at.Row+i*dr][at.Col+i*dc] = ship.ID
	}
	return next
}

// RemovePlacement returns a copy of the board with every cell of the ship reset to sea.
func RemovePlacement(b Board, id ShipID) Board {
	next := b.Clone()
	for r := range next {
		for c := range next[r] {
			if next[r][c] == id {
				next[r][c] = Sea
			}
		}
	}
	return next
}

// IsShipSunk reports whether every cell of the ship has been hit.
// Sea and ships absent from the board are never sunk.
func IsShipSunk(b Board, g Guesses, id ShipID) bool {
	if id == Sea {
		return false
	}
	found := false
	for r := range b {
		for c := range b[r] {
			if b[r][c] != id {
				continue
			}
			found = true
			if g[r][c] != Hit {
				return false
			}
		}
	}
	return found
}

// CountSurvivingShips returns the number of distinct ships on the board that are not sunk.
func CountSurvivingShips(b Board, g Guesses) int {
	seen := make(map[ShipID]struct{})
	for _, row := range b {
		for _, cell := range row {
			if cell != Sea {
				seen[cell] = struct{}{}
			}
		}
	}
	n := 0
	for id := range seen {
		if !IsShipSunk(b, g, id) {
			n++
		}
	}
	return n
}
