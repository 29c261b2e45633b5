package battleship

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// drawBoard draws an empty board of random size.
func drawBoard(t *rapid.T) Board {
	h := rapid.IntRange(1, 10).Draw(t, "height")
	w := rapid.IntRange(1, 10).Draw(t, "width")
	return NewBoard(h, w)
}

func drawOrientation(t *rapid.T) Orientation {
	return rapid.SampledFrom([]Orientation{Horizontal, Vertical}).Draw(t, "orientation")
}

// cellsOf lists the cells a placement would cover, in or out of bounds.
func cellsOf(length int, o Orientation, at Coord) []Coord {
	dr, dc := step(o)
	cells := make([]Coord, length)
	for i := range cells {
		cells[i] = Coord{Row: at.Row + i*dr, Col: at.Col + i*dc}
	}
	return cells
}

func onBoard(b Board, c Coord) bool {
	return c.Row >= 0 && c.Row < b.Height() && c.Col >= 0 && c.Col < b.Width()
}

// TestPlacementValidityProperty checks IsPlacementValid against a brute
// force walk of the target cells.
// *For any* board with one ship on it and any candidate placement, the
// placement is valid iff every covered cell is on the board and holds sea.
func TestPlacementValidityProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := drawBoard(t)
		first := Ship{ID: 1, Length: rapid.IntRange(1, 5).Draw(t, "firstLength")}
		firstO := drawOrientation(t)
		firstAt := Coord{
			Row: rapid.IntRange(0, b.Height()-1).Draw(t, "firstRow"),
			Col: rapid.IntRange(0, b.Width()-1).Draw(t, "firstCol"),
		}
		if IsPlacementValid(b, first, firstO, firstAt) {
			b = ApplyPlacement(b, first, firstO, firstAt)
		}

		ship := Ship{ID: 2, Length: rapid.IntRange(1, 6).Draw(t, "length")}
		o := drawOrientation(t)
		at := Coord{
			Row: rapid.IntRange(-1, b.Height()).Draw(t, "row"),
			Col: rapid.IntRange(-1, b.Width()).Draw(t, "col"),
		}

		expected := true
		for _, c := range cellsOf(ship.Length, o, at) {
			if !onBoard(b, c) || b[c.Row][c.Col] != Sea {
				expected = false
				break
			}
		}

		if got := IsPlacementValid(b, ship, o, at); got != expected {
			t.Fatalf("validity mismatch: ship length %d %s at %+v on %dx%d, expected=%v got=%v",
				ship.Length, o, at, b.Height(), b.Width(), expected, got)
		}
	})
}

// TestApplyRemoveRoundTripProperty tests that removing a freshly applied
// ship restores the board, and that applying writes exactly length cells.
func TestApplyRemoveRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := drawBoard(t)
		ship := Ship{ID: ShipID(rapid.IntRange(1, 9).Draw(t, "id")), Length: rapid.IntRange(1, 5).Draw(t, "length")}
		o := drawOrientation(t)
		at := Coord{
			Row: rapid.IntRange(0, b.Height()-1).Draw(t, "row"),
			Col: rapid.IntRange(0, b.Width()-1).Draw(t, "col"),
		}
		if !IsPlacementValid(b, ship, o, at) {
			t.Skip("placement does not fit")
		}

		placed := ApplyPlacement(b, ship, o, at)
		count := 0
		for _, row := range placed {
			for _, cell := range row {
				if cell == ship.ID {
					count++
				}
			}
		}
		if count != ship.Length {
			t.Fatalf("expected %d cells of ship %d, got %d", ship.Length, ship.ID, count)
		}
		if !b.Equal(NewBoard(b.Height(), b.Width())) {
			t.Fatalf("ApplyPlacement mutated its input")
		}
		if restored := RemovePlacement(placed, ship.ID); !restored.Equal(b) {
			t.Fatalf("remove after apply did not restore the board")
		}
	})
}

// TestShipSunkProperty hits a ship's cells in random order.
// *For any* placed ship, it is sunk exactly when its last cell is hit.
func TestShipSunkProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := NewBoard(10, 10)
		ship := Ship{ID: 3, Length: rapid.IntRange(1, 5).Draw(t, "length")}
		o := drawOrientation(t)
		at := Coord{Row: rapid.IntRange(0, 5).Draw(t, "row"), Col: rapid.IntRange(0, 5).Draw(t, "col")}
		b = ApplyPlacement(b, ship, o, at)
		g := NewGuesses(10, 10)

		cells := rapid.Permutation(cellsOf(ship.Length, o, at)).Draw(t, "order")
		for i, c := range cells {
			if IsShipSunk(b, g, ship.ID) {
				t.Fatalf("ship sunk after %d of %d hits", i, ship.Length)
			}
			g[c.Row][c.Col] = Hit
		}
		if !IsShipSunk(b, g, ship.ID) {
			t.Fatalf("ship not sunk after every cell was hit")
		}
		if IsShipSunk(b, g, Sea) {
			t.Fatalf("sea reported as sunk")
		}
		if IsShipSunk(b, g, 42) {
			t.Fatalf("absent ship reported as sunk")
		}
	})
}

// TestCountSurvivingShipsProperty sinks a random subset of a placed fleet.
func TestCountSurvivingShipsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := NewBoard(8, 8)
		g := NewGuesses(8, 8)
		n := rapid.IntRange(1, 8).Draw(t, "ships")
		// One horizontal ship per row keeps the fleet disjoint.
		sunk := 0
		for i := 0; i < n; i++ {
			ship := Ship{ID: ShipID(i + 1), Length: rapid.IntRange(1, 8).Draw(t, "length")}
			b = ApplyPlacement(b, ship, Horizontal, Coord{Row: i})
			if rapid.Bool().Draw(t, "sink") {
				for c := 0; c < ship.Length; c++ {
					g[i][c] = Hit
				}
				sunk++
			}
		}
		if got := CountSurvivingShips(b, g); got != n-sunk {
			t.Fatalf("expected %d surviving ships, got %d", n-sunk, got)
		}
	})
}

// TestCoordLabelsProperty checks that row letters and 1-based columns
// parse back to the coordinates that produced them.
func TestCoordLabelsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		at := Coord{
			Row: rapid.IntRange(0, MaxBoardSize-1).Draw(t, "row"),
			Col: rapid.IntRange(0, MaxBoardSize-1).Draw(t, "col"),
		}
		row, err := ParseRow(RowLabel(at.Row))
		if err != nil || row != at.Row {
			t.Fatalf("row %d round-tripped to %d (%v)", at.Row, row, err)
		}
		label := at.String()
		col, err := ParseColumn(label[1:])
		if err != nil || col != at.Col {
			t.Fatalf("column %d round-tripped to %d (%v)", at.Col, col, err)
		}
	})
}

func TestPlacementOverlapRejected(t *testing.T) {
	b := NewBoard(3, 3)
	a := Ship{ID: 1, Name: "A", Length: 3}
	require.True(t, IsPlacementValid(b, a, Horizontal, Coord{0, 0}))
	b = ApplyPlacement(b, a, Horizontal, Coord{0, 0})

	other := Ship{ID: 2, Name: "B", Length: 2}
	assert.False(t, IsPlacementValid(b, other, Vertical, Coord{0, 1}))
	assert.ErrorIs(t, CheckPlacement(b, other, Vertical, Coord{0, 1}), ErrOverlap)
	assert.True(t, IsPlacementValid(b, other, Vertical, Coord{1, 1}))
}

func TestCheckPlacementReasons(t *testing.T) {
	b := NewBoard(4, 4)
	ship := Ship{ID: 1, Length: 3}

	err := CheckPlacement(b, ship, Horizontal, Coord{0, 2})
	assert.ErrorIs(t, err, ErrOutOfBounds)
	assert.Contains(t, err.Error(), "right edge")

	err = CheckPlacement(b, ship, Vertical, Coord{3, 0})
	assert.ErrorIs(t, err, ErrOutOfBounds)
	assert.Contains(t, err.Error(), "bottom edge")

	assert.ErrorIs(t, CheckPlacement(b, ship, Horizontal, Coord{4, 0}), ErrOutOfBounds)
	assert.Error(t, CheckPlacement(b, ship, 0, Coord{0, 0}))
}

func TestParseRejectsBadLabels(t *testing.T) {
	for _, s := range []string{"", "AB", "1", "?"} {
		_, err := ParseRow(s)
		assert.Errorf(t, err, "row %q", s)
	}
	for _, s := range []string{"", "0", "-1", "x"} {
		_, err := ParseColumn(s)
		assert.Errorf(t, err, "column %q", s)
	}
	row, err := ParseRow("c")
	require.NoError(t, err)
	assert.Equal(t, 2, row)
}
