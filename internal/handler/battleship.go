// Package handler provides Telegram bot command handlers.
package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"battleship-bot/internal/game"
	"battleship-bot/internal/game/battleship"
	"battleship-bot/internal/platform/telegram"
)

// BattleshipHandler handles invites and session commands.
type BattleshipHandler struct {
	manager  *battleship.Manager
	registry *game.Registry
	now      func() time.Time
}

// NewBattleshipHandler creates a new BattleshipHandler.
func NewBattleshipHandler(manager *battleship.Manager, registry *game.Registry) *BattleshipHandler {
	return &BattleshipHandler{
		manager:  manager,
		registry: registry,
		now:      time.Now,
	}
}

// inviteTarget finds the user a /battleship message invites: the author of
// the replied-to message, or a text mention of a user without a username.
func inviteTarget(msg *tele.Message) *tele.User {
	if msg == nil {
		return nil
	}
	if msg.ReplyTo != nil && msg.ReplyTo.Sender != nil {
		return msg.ReplyTo.Sender
	}
	for _, e := range msg.Entities {
		if e.Type == tele.EntityTMention && e.User != nil {
			return e.User
		}
	}
	return nil
}

// HandleInvite handles the /battleship command.
// Format: reply to a message with /battleship
func (h *BattleshipHandler) HandleInvite(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	if c.Chat() != nil && c.Chat().Type == tele.ChatPrivate {
		return c.Reply("❌ Invite players from a group: reply to their message with /battleship")
	}

	target := inviteTarget(c.Message())
	if target == nil {
		return c.Reply("❌ Usage: reply to a player's message with /battleship")
	}
	if target.IsBot {
		return c.Reply("❌ " + battleship.InviteErrorText(battleship.ErrSelfInvite, ""))
	}

	inviter := telegram.PlayerOf(sender)
	invitee := telegram.PlayerOf(target)

	_, err := h.manager.Invite(context.Background(), inviter, invitee)
	if err != nil {
		text := "❌ " + battleship.InviteErrorText(err, invitee.Name)
		if errors.Is(err, battleship.ErrInviteUndeliverable) {
			text += "\nAsk them to open a private chat with me and press Start first."
		}
		return c.Reply(text)
	}

	return c.Reply(fmt.Sprintf("📨 Invite sent to %s! They have %s to answer in their private chat with me.",
		invitee.Name, h.manager.Config().InviteTimeout))
}

// HandleCancel handles the /bs_cancel command.
func (h *BattleshipHandler) HandleCancel(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	s, err := h.manager.CancelInvite(context.Background(), telegram.UserID(sender.ID))
	if err != nil {
		if errors.Is(err, battleship.ErrNoPendingInvite) {
			return c.Reply("❌ You have no pending invite to cancel.")
		}
		log.Error().Err(err).Int64("user_id", sender.ID).Msg("Failed to cancel invite")
		return c.Reply("❌ Failed to cancel the invite, please try again later")
	}
	return c.Reply(fmt.Sprintf("✅ Your invite to %s was cancelled.", s.P2.Name))
}

// HandleSessions handles the admin /bs_sessions command.
func (h *BattleshipHandler) HandleSessions(c tele.Context) error {
	return c.Reply(formatSessions(h.manager.ActiveSummaries(context.Background()), h.now()))
}

// formatSessions renders the active session list.
func formatSessions(sessions []battleship.SessionSummary, now time.Time) string {
	if len(sessions) == 0 {
		return "🌊 No active Battleship sessions."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "⚓ Active sessions: %d\n", len(sessions))
	for _, s := range sessions {
		age := now.Sub(s.InvitedAt).Truncate(time.Second)
		fmt.Fprintf(&sb, "\n#%d %s vs %s · %s · %s", s.ID, s.P1.Name, s.P2.Name, s.Status, age)
		if s.Status == battleship.StatusGamePhase {
			fmt.Fprintf(&sb, " · moves %d/%d", s.P1Moves, s.P2Moves)
		}
	}
	return sb.String()
}

// HandleHelp handles the /help command.
func (h *BattleshipHandler) HandleHelp(c tele.Context) error {
	return c.Reply(h.helpText())
}

func (h *BattleshipHandler) helpText() string {
	var sb strings.Builder
	sb.WriteString("🎮 Games\n")
	sb.WriteString(h.registry.Help())
	sb.WriteString("\n\n📖 Commands\n")
	sb.WriteString("/battleship - reply to a player's message to invite them\n")
	sb.WriteString("/bs_cancel - cancel your pending invite\n")
	sb.WriteString("/bs_record - your wins and losses (reply to see someone else's)\n")
	sb.WriteString("/bs_top - players with the most wins")
	return sb.String()
}

// HandleStart handles the /start command.
// In private chat it confirms the player can receive invites and games.
func (h *BattleshipHandler) HandleStart(c tele.Context) error {
	if c.Chat() != nil && c.Chat().Type == tele.ChatPrivate {
		return c.Send("👋 Welcome aboard! Invites and your Battleship games will show up in this chat.\n\n" + h.helpText())
	}
	return c.Reply(h.helpText())
}
