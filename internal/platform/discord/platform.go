// Package discord plays Battleship sessions in a Discord guild.
//
// Each session gets two text channels under a shared category, each visible
// only to its player. Prompts are messages with buttons and select menus
// whose custom ids carry the listener id and the control.
package discord

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"battleship-bot/internal/game/battleship"
)

// ErrUnknownChannel is returned for channels this platform did not create.
var ErrUnknownChannel = errors.New("unknown game channel")

// API is the part of *discordgo.Session the platform uses.
type API interface {
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	GuildChannels(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Channel, error)
	GuildChannelCreateComplex(guildID string, data discordgo.GuildChannelCreateData, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelDelete(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelPermissionSet(channelID, targetID string, targetType discordgo.PermissionOverwriteType, allow, deny int64, options ...discordgo.RequestOption) error
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
}

const (
	viewOnly  = discordgo.PermissionViewChannel | discordgo.PermissionReadMessageHistory
	readWrite = viewOnly | discordgo.PermissionSendMessages
)

// Platform implements battleship.Platform on a Discord guild.
type Platform struct {
	api          API
	guildID      string
	categoryName string

	mu         sync.Mutex
	categoryID string
	nextID     uint64
	listeners  map[string]*listener
	owners     map[battleship.ChannelID]battleship.UserID
	locked     map[battleship.ChannelID]bool
}

// New creates a Platform for one guild. Game channels are grouped under
// the category with the given name, created on first use.
func New(api API, guildID, category string) *Platform {
	return &Platform{
		api:          api,
		guildID:      guildID,
		categoryName: category,
		listeners:    make(map[string]*listener),
		owners:       make(map[battleship.ChannelID]battleship.UserID),
		locked:       make(map[battleship.ChannelID]bool),
	}
}

// PlayerOf builds the player for a Discord user.
func PlayerOf(u *discordgo.User) battleship.Player {
	name := u.GlobalName
	if name == "" {
		name = u.Username
	}
	return battleship.Player{ID: battleship.UserID(u.ID), Name: name}
}

// DirectChannel opens the user's DM channel.
func (p *Platform) DirectChannel(_ context.Context, user battleship.UserID) (battleship.ChannelID, error) {
	ch, err := p.api.UserChannelCreate(string(user))
	if err != nil {
		return "", fmt.Errorf("failed to open DM channel: %w", err)
	}
	return battleship.ChannelID(ch.ID), nil
}

// ensureCategory returns the id of the game category, creating it if needed.
func (p *Platform) ensureCategory() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.categoryID != "" {
		return p.categoryID, nil
	}

	channels, err := p.api.GuildChannels(p.guildID)
	if err != nil {
		return "", fmt.Errorf("failed to list guild channels: %w", err)
	}
	for _, ch := range channels {
		if ch.Type == discordgo.ChannelTypeGuildCategory && ch.Name == p.categoryName {
			p.categoryID = ch.ID
			return ch.ID, nil
		}
	}

	cat, err := p.api.GuildChannelCreateComplex(p.guildID, discordgo.GuildChannelCreateData{
		Name: p.categoryName,
		Type: discordgo.ChannelTypeGuildCategory,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create category: %w", err)
	}
	log.Info().Str("channel_id", cat.ID).Str("name", p.categoryName).Msg("Created game category")
	p.categoryID = cat.ID
	return cat.ID, nil
}

var unsafeName = regexp.MustCompile(`[^a-z0-9_-]+`)

// ChannelName returns the channel name of a player's game channel.
func ChannelName(sessionID int, player string) string {
	name := unsafeName.ReplaceAllString(strings.ToLower(player), "")
	if name == "" {
		name = "player"
	}
	return fmt.Sprintf("bs-%d-%s", sessionID, name)
}

// createChannel creates a channel visible to owner only. The opponent is
// denied explicitly so a role grant cannot reveal the other board.
func (p *Platform) createChannel(category string, sessionID int, owner, opponent battleship.Player) (string, error) {
	ch, err := p.api.GuildChannelCreateComplex(p.guildID, discordgo.GuildChannelCreateData{
		Name:     ChannelName(sessionID, owner.Name),
		Type:     discordgo.ChannelTypeGuildText,
		ParentID: category,
		Topic:    fmt.Sprintf("Battleship #%d: %s vs %s", sessionID, owner.Name, opponent.Name),
		PermissionOverwrites: []*discordgo.PermissionOverwrite{
			{ID: p.guildID, Type: discordgo.PermissionOverwriteTypeRole, Deny: discordgo.PermissionViewChannel},
			{ID: string(owner.ID), Type: discordgo.PermissionOverwriteTypeMember, Allow: readWrite},
			{ID: string(opponent.ID), Type: discordgo.PermissionOverwriteTypeMember, Deny: discordgo.PermissionViewChannel},
		},
	})
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	p.owners[battleship.ChannelID(ch.ID)] = owner.ID
	p.mu.Unlock()
	return ch.ID, nil
}

// CreatePrivateChannelPair creates both players' channels. If the second
// channel fails the first one is deleted again.
func (p *Platform) CreatePrivateChannelPair(_ context.Context, sessionID int, a, b battleship.Player) (battleship.ChannelID, battleship.ChannelID, error) {
	category, err := p.ensureCategory()
	if err != nil {
		return "", "", err
	}

	chA, err := p.createChannel(category, sessionID, a, b)
	if err != nil {
		return "", "", fmt.Errorf("failed to create channel for %s: %w", a.Name, err)
	}
	chB, err := p.createChannel(category, sessionID, b, a)
	if err != nil {
		if _, derr := p.api.ChannelDelete(chA); derr != nil {
			log.Warn().Err(derr).Str("channel_id", chA).Msg("Failed to delete orphaned game channel")
		}
		p.mu.Lock()
		delete(p.owners, battleship.ChannelID(chA))
		p.mu.Unlock()
		return "", "", fmt.Errorf("failed to create channel for %s: %w", b.Name, err)
	}
	return battleship.ChannelID(chA), battleship.ChannelID(chB), nil
}

// MakeReadOnly revokes the owners' send permission and stops the channels'
// live prompts.
func (p *Platform) MakeReadOnly(_ context.Context, channels ...battleship.ChannelID) error {
	var errs []error
	for _, ch := range channels {
		p.mu.Lock()
		owner, ok := p.owners[ch]
		p.locked[ch] = true
		p.mu.Unlock()
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownChannel, ch))
			continue
		}
		err := p.api.ChannelPermissionSet(string(ch), string(owner),
			discordgo.PermissionOverwriteTypeMember, viewOnly, discordgo.PermissionSendMessages)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to lock channel %s: %w", ch, err))
		}
	}

	p.mu.Lock()
	var stale []*listener
	for _, l := range p.listeners {
		if slices.Contains(channels, l.prompt.Channel) {
			stale = append(stale, l)
		}
	}
	p.mu.Unlock()
	for _, l := range stale {
		l.Stop()
	}
	return errors.Join(errs...)
}

func (p *Platform) isLocked(ch battleship.ChannelID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.locked[ch]
}

// Send posts a message into a channel.
func (p *Platform) Send(_ context.Context, dest battleship.ChannelID, msg battleship.Message) error {
	if p.isLocked(dest) {
		return battleship.ErrReadOnly
	}
	_, err := p.api.ChannelMessageSendComplex(string(dest), &discordgo.MessageSend{Content: FormatMessage(msg)})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// Present posts a prompt with components and registers its listener.
func (p *Platform) Present(_ context.Context, pr battleship.Prompt) (battleship.Listener, error) {
	if p.isLocked(pr.Channel) {
		return nil, battleship.ErrReadOnly
	}

	p.mu.Lock()
	p.nextID++
	id := strconv.FormatUint(p.nextID, 36)
	p.mu.Unlock()

	sent, err := p.api.ChannelMessageSendComplex(string(pr.Channel), &discordgo.MessageSend{
		Content:    FormatMessage(pr.Message),
		Components: Components(id, pr.Controls),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send prompt: %w", err)
	}

	l := &listener{id: id, p: p, prompt: pr, messageID: sent.ID}
	// The timer is set before the listener is visible; an early firing
	// Stop waits on p.mu.
	p.mu.Lock()
	if pr.Timeout > 0 {
		l.timer = time.AfterFunc(pr.Timeout, l.Stop)
	}
	p.listeners[id] = l
	p.mu.Unlock()
	return l, nil
}

type listener struct {
	id        string
	p         *Platform
	prompt    battleship.Prompt
	messageID string
	timer     *time.Timer
}

// Stop unregisters the listener and strips or deletes its message.
func (l *listener) Stop() {
	l.p.mu.Lock()
	_, live := l.p.listeners[l.id]
	delete(l.p.listeners, l.id)
	timer := l.timer
	l.p.mu.Unlock()
	if !live {
		return
	}
	if timer != nil {
		timer.Stop()
	}

	ch := string(l.prompt.Channel)
	var err error
	if l.prompt.Transient {
		err = l.p.api.ChannelMessageDelete(ch, l.messageID)
	} else if len(l.prompt.Controls) > 0 {
		edit := discordgo.NewMessageEdit(ch, l.messageID)
		none := []discordgo.MessageComponent{}
		edit.Components = &none
		_, err = l.p.api.ChannelMessageEditComplex(edit)
	}
	if err != nil {
		log.Debug().Err(err).Str("listener_id", l.id).Msg("Failed to retire prompt message")
	}
}

// resolve matches a component interaction to a live listener. It returns
// a notice for the user when the interaction must be rejected, and a nil
// listener when there is nothing to deliver.
func (p *Platform) resolve(user battleship.UserID, customID string, values []string) (*listener, battleship.Selection, string) {
	lid, control, ok := ParseCustomID(customID)
	if !ok {
		return nil, battleship.Selection{}, ""
	}

	p.mu.Lock()
	l := p.listeners[lid]
	p.mu.Unlock()
	if l == nil {
		return nil, battleship.Selection{}, "This menu has expired."
	}
	if user != l.prompt.User {
		return nil, battleship.Selection{}, "This menu is not for you!"
	}

	var value string
	if len(values) > 0 {
		value = values[0]
	}
	if !l.prompt.Accepts(control, value) {
		log.Debug().Str("listener_id", lid).Str("control", control).Msg("Interaction for unknown control")
		return nil, battleship.Selection{}, ""
	}
	return l, battleship.Selection{User: user, Control: control, Value: value}, ""
}

// HandleComponent answers a button press or menu choice and delivers it.
// The interaction is acknowledged before the selection runs, so slow
// follow-up work cannot exceed Discord's response deadline.
func (p *Platform) HandleComponent(ctx context.Context, i *discordgo.Interaction) {
	user := interactionUser(i)
	if user == nil {
		return
	}
	data := i.MessageComponentData()
	l, sel, notice := p.resolve(battleship.UserID(user.ID), data.CustomID, data.Values)

	resp := &discordgo.InteractionResponse{Type: discordgo.InteractionResponseDeferredMessageUpdate}
	if notice != "" {
		resp = ephemeral(notice)
	}
	if err := p.api.InteractionRespond(i, resp); err != nil {
		log.Warn().Err(err).Str("user_id", user.ID).Msg("Failed to acknowledge interaction")
	}
	if l != nil {
		l.prompt.OnSelect(ctx, sel)
	}
}

// interactionUser returns who triggered an interaction in a guild or a DM.
func interactionUser(i *discordgo.Interaction) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

func ephemeral(text string) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: text,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}
}

// FormatMessage renders a message as Discord markdown. The grid goes in a
// code block so it keeps its alignment.
func FormatMessage(m battleship.Message) string {
	var parts []string
	if m.Title != "" {
		parts = append(parts, "**"+m.Title+"**")
	}
	if m.Text != "" {
		parts = append(parts, m.Text)
	}
	if len(m.Grid) > 0 {
		parts = append(parts, "```\n"+strings.Join(m.Grid, "\n")+"\n```")
	}
	return strings.Join(parts, "\n")
}
