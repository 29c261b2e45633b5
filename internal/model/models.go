// Package model defines the persisted match history of the Battleship bot.
package model

import "time"

// Match is one finished Battleship game.
// Only games with an outcome are stored: wins and idle timeouts.
type Match struct {
	ID        int64      `db:"id"`
	Platform  string     `db:"platform"`
	SessionID int        `db:"session_id"`
	Outcome   string     `db:"outcome"`
	P1ID      string     `db:"p1_id"`
	P1Name    string     `db:"p1_name"`
	P2ID      string     `db:"p2_id"`
	P2Name    string     `db:"p2_name"`
	WinnerID  string     `db:"winner_id"`
	LoserID   string     `db:"loser_id"`
	P1Moves   int        `db:"p1_moves"`
	P2Moves   int        `db:"p2_moves"`
	InvitedAt time.Time  `db:"invited_at"`
	StartedAt *time.Time `db:"started_at"`
	EndedAt   time.Time  `db:"ended_at"`
	CreatedAt time.Time  `db:"created_at"`
}

// PlayerRecord aggregates a player's finished matches.
type PlayerRecord struct {
	UserID   string `db:"user_id"`
	Name     string `db:"name"`
	Wins     int    `db:"wins"`
	Losses   int    `db:"losses"`
	Timeouts int    `db:"timeouts"` // losses by idling out
}

// Played returns the number of finished matches.
func (r *PlayerRecord) Played() int {
	return r.Wins + r.Losses
}

// Match outcomes as stored.
const (
	OutcomeWin         = "win"          // all ships of the loser sunk
	OutcomeIdleTimeout = "idle_timeout" // loser stopped acting
)
