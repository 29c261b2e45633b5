package discord

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"battleship-bot/internal/game"
	"battleship-bot/internal/game/battleship"
	"battleship-bot/internal/service"
)

// CommandName is the slash command grouping every game action.
const CommandName = "battleship"

// Commands returns the slash commands to register in the guild.
func Commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{{
		Name:        CommandName,
		Description: "Play Battleship against another member",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "invite",
				Description: "Invite a member to a game",
				Options: []*discordgo.ApplicationCommandOption{{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "player",
					Description: "Who to play against",
					Required:    true,
				}},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "invite-cancel",
				Description: "Cancel your pending invite",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "record",
				Description: "Show wins and losses",
				Options: []*discordgo.ApplicationCommandOption{{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "player",
					Description: "Whose record to show (default: you)",
				}},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "top",
				Description: "Players with the most wins",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "help",
				Description: "List the games and commands",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "sessions",
				Description: "List active sessions (admins only)",
			},
		},
	}}
}

// Router dispatches Discord interactions to the game and its commands.
type Router struct {
	platform *Platform
	manager  *battleship.Manager
	registry *game.Registry
	records  *service.RecordService // nil when history is disabled
	isAdmin  func(int64) bool
}

// NewRouter creates a Router.
func NewRouter(p *Platform, m *battleship.Manager, registry *game.Registry, records *service.RecordService, isAdmin func(int64) bool) *Router {
	return &Router{platform: p, manager: m, registry: registry, records: records, isAdmin: isAdmin}
}

// HandleInteraction is registered with discordgo's AddHandler. Panics are
// recovered and logged.
func (r *Router) HandleInteraction(_ *discordgo.Session, ic *discordgo.InteractionCreate) {
	r.Dispatch(context.Background(), ic.Interaction)
}

// Dispatch routes one interaction.
func (r *Router) Dispatch(ctx context.Context, i *discordgo.Interaction) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Str("interaction_id", i.ID).Msg("Recovered from panic in interaction")
		}
	}()

	switch i.Type {
	case discordgo.InteractionMessageComponent:
		r.platform.HandleComponent(ctx, i)
	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		if data.Name != CommandName || len(data.Options) == 0 {
			return
		}
		text := r.command(ctx, i, data.Options[0], data.Resolved)
		if err := r.platform.api.InteractionRespond(i, ephemeral(text)); err != nil {
			log.Warn().Err(err).Str("interaction_id", i.ID).Msg("Failed to respond to command")
		}
	}
}

// command runs a subcommand and returns the reply shown to its caller.
func (r *Router) command(ctx context.Context, i *discordgo.Interaction, sub *discordgo.ApplicationCommandInteractionDataOption, resolved *discordgo.ApplicationCommandInteractionDataResolved) string {
	caller := interactionUser(i)
	if caller == nil {
		return "Use this command in the server."
	}

	log.Debug().Str("user_id", caller.ID).Str("command", sub.Name).Msg("Received command")

	switch sub.Name {
	case "invite":
		target := optionUser(sub, "player", resolved)
		if target == nil {
			return "You must invite a valid player!"
		}
		if target.Bot {
			return battleship.InviteErrorText(battleship.ErrSelfInvite, "")
		}
		invitee := PlayerOf(target)
		if _, err := r.manager.Invite(ctx, PlayerOf(caller), invitee); err != nil {
			return battleship.InviteErrorText(err, invitee.Name)
		}
		return fmt.Sprintf("Invite sent to %s! They have %s to answer in their DMs.", invitee.Name, r.manager.Config().InviteTimeout)

	case "invite-cancel":
		s, err := r.manager.CancelInvite(ctx, battleship.UserID(caller.ID))
		if errors.Is(err, battleship.ErrNoPendingInvite) {
			return "You have no pending invite to cancel."
		}
		if err != nil {
			log.Error().Err(err).Str("user_id", caller.ID).Msg("Failed to cancel invite")
			return "Failed to cancel the invite, please try again later."
		}
		return fmt.Sprintf("Your invite to %s was cancelled.", s.P2.Name)

	case "record":
		if r.records == nil {
			return "Match history is disabled."
		}
		target := optionUser(sub, "player", resolved)
		if target == nil {
			target = caller
		}
		return r.record(ctx, PlayerOf(target))

	case "top":
		if r.records == nil {
			return "Match history is disabled."
		}
		top, err := r.records.TopWinners(ctx, 10)
		if err != nil {
			log.Error().Err(err).Msg("Failed to get top winners")
			return "Failed to load the leaderboard, please try again later."
		}
		if len(top) == 0 {
			return "No finished games yet."
		}
		var sb strings.Builder
		sb.WriteString("**Top admirals**")
		for n, rec := range top {
			fmt.Fprintf(&sb, "\n%d. %s: %d wins, %d losses", n+1, rec.Name, rec.Wins, rec.Losses)
		}
		return sb.String()

	case "help":
		return r.registry.Help()

	case "sessions":
		id, err := strconv.ParseInt(caller.ID, 10, 64)
		if err != nil || !r.isAdmin(id) {
			return "Permission denied: admin only."
		}
		return formatSessions(r.manager.ActiveSummaries(ctx))
	}
	return "Unknown command."
}

func (r *Router) record(ctx context.Context, player battleship.Player) string {
	rec, recent, err := r.records.GetRecord(ctx, string(player.ID), 5)
	if errors.Is(err, service.ErrNoRecord) {
		return fmt.Sprintf("%s has not finished a Battleship game yet.", player.Name)
	}
	if err != nil {
		log.Error().Err(err).Str("user_id", string(player.ID)).Msg("Failed to get record")
		return "Failed to load the record, please try again later."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s**: %d wins, %d losses", player.Name, rec.Wins, rec.Losses)
	if rec.Timeouts > 0 {
		fmt.Fprintf(&sb, " (%d idle)", rec.Timeouts)
	}
	for _, m := range recent {
		fmt.Fprintf(&sb, "\n<t:%d:d> vs %s: %s", m.EndedAt.Unix(), service.Opponent(m, rec.UserID), service.ResultOf(m, rec.UserID))
	}
	return sb.String()
}

// optionUser returns the user passed in a subcommand's user option.
func optionUser(sub *discordgo.ApplicationCommandInteractionDataOption, name string, resolved *discordgo.ApplicationCommandInteractionDataResolved) *discordgo.User {
	for _, o := range sub.Options {
		if o.Name != name || o.Type != discordgo.ApplicationCommandOptionUser {
			continue
		}
		id, _ := o.Value.(string)
		if resolved != nil {
			if u, ok := resolved.Users[id]; ok {
				return u
			}
		}
		if id != "" {
			return &discordgo.User{ID: id, Username: id}
		}
	}
	return nil
}

func formatSessions(sessions []battleship.SessionSummary) string {
	if len(sessions) == 0 {
		return "No active Battleship sessions."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "**Active sessions: %d**", len(sessions))
	for _, s := range sessions {
		fmt.Fprintf(&sb, "\n#%d %s vs %s: %s since <t:%d:R>", s.ID, s.P1.Name, s.P2.Name, s.Status, s.InvitedAt.Unix())
		if s.Status == battleship.StatusGamePhase {
			fmt.Fprintf(&sb, " (moves %d/%d)", s.P1Moves, s.P2Moves)
		}
	}
	return sb.String()
}
