// Package game defines the descriptor every chat game exposes and the
// registry the bot uses to list and look them up.
package game

// Game describes a game the bot can start.
type Game interface {
	// Name returns the game's display name (e.g., "Battleship")
	Name() string

	// Command returns the command that starts the game (e.g., "battleship")
	Command() string

	// Description returns a brief description of the game
	Description() string
}

// SessionGame is a Game played in long-running sessions between players.
type SessionGame interface {
	Game

	// ActiveSessions returns the number of sessions not yet finished.
	ActiveSessions() int
}
