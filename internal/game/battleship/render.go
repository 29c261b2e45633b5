package battleship

import (
	"fmt"
	"iter"
	"strings"
)

// Cell glyphs used by the grid views.
const (
	GlyphSea       = "·"
	GlyphUnguessed = "·"
	GlyphMiss      = "o"
	GlyphHit       = "x"
	GlyphSunk      = "#"
	glyphUnknown   = "?"
)

// Grid is anything that can be drawn as a labelled monospace grid.
type Grid interface {
	Height() int
	Width() int
	Glyph(row, col int) string
}

// Render yields the grid one text line at a time: a header of 1-based column
// numbers followed by one line per row labelled with its letter.
// The sequence is finite and can be ranged over any number of times.
func Render(g Grid) iter.Seq[string] {
	return func(yield func(string) bool) {
		var sb strings.Builder
		sb.WriteString("  ")
		for c := 0; c < g.Width(); c++ {
			fmt.Fprintf(&sb, "%3d", c+1)
		}
		if !yield(sb.String()) {
			return
		}
		for r := 0; r < g.Height(); r++ {
			sb.Reset()
			fmt.Fprintf(&sb, "%2s", RowLabel(r))
			for c := 0; c < g.Width(); c++ {
				fmt.Fprintf(&sb, "%3s", g.Glyph(r, c))
			}
			if !yield(sb.String()) {
				return
			}
		}
	}
}

// Lines collects a rendering into a slice.
func Lines(g Grid) []string {
	var out []string
	for line := range Render(g) {
		out = append(out, line)
	}
	return out
}

// BoardView draws a player's own ships.
type BoardView struct {
	Board  Board
	Roster []Ship
}

func (v BoardView) Height() int { return v.Board.Height() }
func (v BoardView) Width() int  { return v.Board.Width() }

func (v BoardView) Glyph(row, col int) string {
	return shipGlyph(v.Roster, v.Board[row][col])
}

// GuessView draws a player's attacks. Hits on a ship that is fully sunk are
// drawn with the sunk glyph.
type GuessView struct {
	Guesses  Guesses
	Opponent Board
}

func (v GuessView) Height() int { return len(v.Guesses) }

func (v GuessView) Width() int {
	if len(v.Guesses) == 0 {
		return 0
	}
	return len(v.Guesses[0])
}

func (v GuessView) Glyph(row, col int) string {
	switch v.Guesses[row][col] {
	case Unguessed:
		return GlyphUnguessed
	case Miss:
		return GlyphMiss
	case Hit:
		if IsShipSunk(v.Opponent, v.Guesses, v.Opponent[row][col]) {
			return GlyphSunk
		}
		return GlyphHit
	}
	return glyphUnknown
}

// DamageView draws a player's own board with the opponent's attacks on top.
type DamageView struct {
	Board           Board
	OpponentGuesses Guesses
	Roster          []Ship
}

func (v DamageView) Height() int { return v.Board.Height() }
func (v DamageView) Width() int  { return v.Board.Width() }

func (v DamageView) Glyph(row, col int) string {
	switch v.OpponentGuesses[row][col] {
	case Miss:
		return GlyphMiss
	case Hit:
		if IsShipSunk(v.Board, v.OpponentGuesses, v.Board[row][col]) {
			return GlyphSunk
		}
		return GlyphHit
	}
	return shipGlyph(v.Roster, v.Board[row][col])
}

func shipGlyph(roster []Ship, id ShipID) string {
	if id == Sea {
		return GlyphSea
	}
	for _, s := range roster {
		if s.ID == id {
			return s.Glyph
		}
	}
	return glyphUnknown
}
