package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"battleship-bot/internal/model"
	"battleship-bot/internal/platform/telegram"
	"battleship-bot/internal/service"
)

const (
	recentMatches = 5
	topLimit      = 10
)

// RecordHandler handles match history commands.
type RecordHandler struct {
	records *service.RecordService
}

// NewRecordHandler creates a new RecordHandler.
func NewRecordHandler(records *service.RecordService) *RecordHandler {
	return &RecordHandler{records: records}
}

// HandleRecord handles the /bs_record command.
// Shows the sender's record, or the record of the replied-to user.
func (h *RecordHandler) HandleRecord(c tele.Context) error {
	user := c.Sender()
	if user == nil {
		return nil
	}
	if msg := c.Message(); msg != nil && msg.ReplyTo != nil && msg.ReplyTo.Sender != nil {
		user = msg.ReplyTo.Sender
	}
	player := telegram.PlayerOf(user)

	rec, recent, err := h.records.GetRecord(context.Background(), string(player.ID), recentMatches)
	if err != nil {
		if errors.Is(err, service.ErrNoRecord) {
			return c.Reply(fmt.Sprintf("📭 %s has not finished a Battleship game yet.", player.Name))
		}
		log.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to get record")
		return c.Reply("❌ Failed to load the record, please try again later")
	}
	return c.Reply(formatRecord(player.Name, rec, recent))
}

// formatRecord renders a player's record and latest matches.
func formatRecord(name string, rec *model.PlayerRecord, recent []*model.Match) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📜 %s\n", name)
	fmt.Fprintf(&sb, "Played %d · Won %d · Lost %d", rec.Played(), rec.Wins, rec.Losses)
	if rec.Timeouts > 0 {
		fmt.Fprintf(&sb, " (%d idle)", rec.Timeouts)
	}
	if len(recent) > 0 {
		sb.WriteString("\n\nRecent games:")
		for _, m := range recent {
			fmt.Fprintf(&sb, "\n%s vs %s: %s",
				m.EndedAt.Format("2006-01-02"), service.Opponent(m, rec.UserID), service.ResultOf(m, rec.UserID))
		}
	}
	return sb.String()
}

// HandleTop handles the /bs_top command.
func (h *RecordHandler) HandleTop(c tele.Context) error {
	top, err := h.records.TopWinners(context.Background(), topLimit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get top winners")
		return c.Reply("❌ Failed to load the leaderboard, please try again later")
	}
	return c.Reply(formatTop(top))
}

// formatTop renders the leaderboard.
func formatTop(top []*model.PlayerRecord) string {
	if len(top) == 0 {
		return "🏆 No finished games yet."
	}
	var sb strings.Builder
	sb.WriteString("🏆 Top admirals\n")
	sb.WriteString("━━━━━━━━━━━━━━━")
	medals := []string{"🥇", "🥈", "🥉"}
	for i, r := range top {
		rank := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			rank = medals[i]
		}
		fmt.Fprintf(&sb, "\n%s %s: %d wins, %d losses", rank, r.Name, r.Wins, r.Losses)
	}
	return sb.String()
}
