package handler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"

	"battleship-bot/internal/game/battleship"
	"battleship-bot/internal/model"
)

func TestInviteTarget(t *testing.T) {
	bob := &tele.User{ID: 2, FirstName: "Bob"}
	carol := &tele.User{ID: 3, FirstName: "Carol"}

	assert.Nil(t, inviteTarget(nil))
	assert.Nil(t, inviteTarget(&tele.Message{Text: "/battleship"}))
	assert.Equal(t, bob, inviteTarget(&tele.Message{ReplyTo: &tele.Message{Sender: bob}}))
	assert.Equal(t, carol, inviteTarget(&tele.Message{
		Entities: tele.Entities{
			{Type: tele.EntityCommand},
			{Type: tele.EntityTMention, User: carol},
		},
	}))
	// A reply wins over a mention.
	assert.Equal(t, bob, inviteTarget(&tele.Message{
		ReplyTo:  &tele.Message{Sender: bob},
		Entities: tele.Entities{{Type: tele.EntityTMention, User: carol}},
	}))
}

func TestFormatSessions(t *testing.T) {
	assert.Equal(t, "🌊 No active Battleship sessions.", formatSessions(nil, time.Now()))

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	sessions := []battleship.SessionSummary{
		{
			ID:        0,
			P1:        battleship.Player{ID: "1", Name: "Alice"},
			P2:        battleship.Player{ID: "2", Name: "Bob"},
			Status:    battleship.StatusInvitePending,
			InvitedAt: now.Add(-90 * time.Second),
		},
		{
			ID:        3,
			P1:        battleship.Player{ID: "4", Name: "Carol"},
			P2:        battleship.Player{ID: "5", Name: "Dave"},
			Status:    battleship.StatusGamePhase,
			InvitedAt: now.Add(-10 * time.Minute),
			P1Moves:   4,
			P2Moves:   3,
		},
	}

	got := formatSessions(sessions, now)
	assert.Equal(t, "⚓ Active sessions: 2\n\n#0 Alice vs Bob · invite_pending · 1m30s\n#3 Carol vs Dave · game_phase · 10m0s · moves 4/3", got)
}

func TestFormatRecord(t *testing.T) {
	rec := &model.PlayerRecord{UserID: "1", Name: "Alice", Wins: 2, Losses: 1, Timeouts: 1}
	recent := []*model.Match{{
		Outcome:  model.OutcomeIdleTimeout,
		P1ID:     "1",
		P1Name:   "Alice",
		P2ID:     "2",
		P2Name:   "Bob",
		WinnerID: "2",
		LoserID:  "1",
		EndedAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}}

	got := formatRecord("Alice", rec, recent)
	assert.Equal(t, "📜 Alice\nPlayed 3 · Won 2 · Lost 1 (1 idle)\n\nRecent games:\n2024-05-01 vs Bob: lost (idle)", got)
}

func TestFormatTop(t *testing.T) {
	assert.Equal(t, "🏆 No finished games yet.", formatTop(nil))

	top := []*model.PlayerRecord{
		{Name: "A", Wins: 5}, {Name: "B", Wins: 4}, {Name: "C", Wins: 3}, {Name: "D", Wins: 2, Losses: 7},
	}
	got := formatTop(top)
	require.Contains(t, got, "🥇 A: 5 wins, 0 losses")
	assert.Contains(t, got, "🥉 C: 3 wins")
	assert.Contains(t, got, "\n4. D: 2 wins, 7 losses")
}
