// Package telegram plays Battleship sessions over Telegram.
//
// Telegram bots cannot create private group channels, so each player's
// private chat with the bot hosts a virtual game channel addressed as
// "{chatId}:{sessionId}". Prompts are messages with inline keyboards whose
// callback data carries the listener id, the control and the chosen value.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"battleship-bot/internal/game/battleship"
)

// Unique is the callback namespace of game buttons.
const Unique = "bs"

// Errors returned by the platform.
var (
	ErrInvalidChannel = errors.New("invalid channel id")
	ErrInvalidUser    = errors.New("invalid user id")
)

// Sender is the part of *tele.Bot the platform uses.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	EditReplyMarkup(msg tele.Editable, markup *tele.ReplyMarkup) (*tele.Message, error)
	Delete(msg tele.Editable) error
}

// Platform implements battleship.Platform on top of a Telegram bot.
type Platform struct {
	sender Sender

	mu        sync.Mutex
	nextID    uint64
	listeners map[string]*listener
	locked    map[battleship.ChannelID]bool
}

// New creates a Platform sending through s.
func New(s Sender) *Platform {
	return &Platform{
		sender:    s,
		listeners: make(map[string]*listener),
		locked:    make(map[battleship.ChannelID]bool),
	}
}

// UserID converts a Telegram user id.
func UserID(id int64) battleship.UserID {
	return battleship.UserID(strconv.FormatInt(id, 10))
}

// PlayerOf builds the player for a Telegram user.
func PlayerOf(u *tele.User) battleship.Player {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if u.Username != "" {
		name = "@" + u.Username
	}
	return battleship.Player{ID: UserID(u.ID), Name: name}
}

// GameChannel returns the virtual channel of a session inside a private chat.
func GameChannel(chatID int64, sessionID int) battleship.ChannelID {
	return battleship.ChannelID(fmt.Sprintf("%d:%d", chatID, sessionID))
}

// chatOf returns the Telegram chat a channel lives in.
func chatOf(ch battleship.ChannelID) (tele.ChatID, error) {
	chat, _, _ := strings.Cut(string(ch), ":")
	id, err := strconv.ParseInt(chat, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidChannel, ch)
	}
	return tele.ChatID(id), nil
}

// DirectChannel returns the user's private chat. Private chat ids equal user ids.
func (p *Platform) DirectChannel(_ context.Context, user battleship.UserID) (battleship.ChannelID, error) {
	if _, err := strconv.ParseInt(string(user), 10, 64); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidUser, user)
	}
	return battleship.ChannelID(user), nil
}

// CreatePrivateChannelPair opens a game channel in each player's private
// chat. Both players must have started a private chat with the bot.
func (p *Platform) CreatePrivateChannelPair(ctx context.Context, sessionID int, a, b battleship.Player) (battleship.ChannelID, battleship.ChannelID, error) {
	open := func(self, opponent battleship.Player) (battleship.ChannelID, error) {
		dm, err := p.DirectChannel(ctx, self.ID)
		if err != nil {
			return "", err
		}
		chat, _ := chatOf(dm)
		text := FormatMessage(battleship.Message{
			Title: fmt.Sprintf("⚓ Battleship #%d", sessionID),
			Text:  fmt.Sprintf("Your game against %s takes place in this chat.", opponent.Name),
		})
		if _, err := p.sender.Send(chat, text, tele.ModeHTML); err != nil {
			return "", fmt.Errorf("failed to open game channel for %s: %w", self.Name, err)
		}
		return GameChannel(int64(chat), sessionID), nil
	}

	chA, err := open(a, b)
	if err != nil {
		return "", "", err
	}
	chB, err := open(b, a)
	if err != nil {
		return "", "", err
	}
	return chA, chB, nil
}

// MakeReadOnly closes the channels: their live prompts are stopped and
// later deliveries fail with battleship.ErrReadOnly.
func (p *Platform) MakeReadOnly(_ context.Context, channels ...battleship.ChannelID) error {
	p.mu.Lock()
	var stale []*listener
	for _, ch := range channels {
		p.locked[ch] = true
	}
	for _, l := range p.listeners {
		if slices.Contains(channels, l.prompt.Channel) {
			stale = append(stale, l)
		}
	}
	p.mu.Unlock()

	for _, l := range stale {
		l.Stop()
	}
	return nil
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
	chat, err := chatOf(dest)
	if err != nil {
		return err
	}
	if _, err := p.sender.Send(chat, FormatMessage(msg), tele.ModeHTML); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// Present posts a prompt with an inline keyboard and registers its listener.
func (p *Platform) Present(_ context.Context, pr battleship.Prompt) (battleship.Listener, error) {
	if p.isLocked(pr.Channel) {
		return nil, battleship.ErrReadOnly
	}
	chat, err := chatOf(pr.Channel)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.nextID++
	id := strconv.FormatUint(p.nextID, 36)
	p.mu.Unlock()

	opts := &tele.SendOptions{ParseMode: tele.ModeHTML, ReplyMarkup: Keyboard(id, pr.Controls)}
	sent, err := p.sender.Send(chat, FormatMessage(pr.Message), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to send prompt: %w", err)
	}

	l := &listener{id: id, p: p, prompt: pr, msg: sent}
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

// HandleCallback routes a game button press to its listener.
func (p *Platform) HandleCallback(c tele.Context) error {
	cb := c.Callback()
	if cb == nil || c.Sender() == nil {
		return nil
	}
	data := cb.Data
	if cb.Unique != "" {
		// telebot strips the unique prefix when a button handler matched.
		data = "\f" + cb.Unique + "|" + cb.Data
	}
	reply := p.Dispatch(context.Background(), c.Sender().ID, data)
	if reply == "" {
		return c.Respond()
	}
	return c.Respond(&tele.CallbackResponse{Text: reply, ShowAlert: true})
}

// Dispatch resolves raw callback data pressed by userID. It returns a
// notice for the user when the press was rejected.
func (p *Platform) Dispatch(ctx context.Context, userID int64, data string) string {
	lid, control, value, ok := ParseCallbackData(data)
	if !ok {
		return ""
	}

	p.mu.Lock()
	l := p.listeners[lid]
	p.mu.Unlock()
	if l == nil {
		log.Debug().Str("listener_id", lid).Msg("Callback for expired prompt")
		return "This menu has expired."
	}

	user := UserID(userID)
	if user != l.prompt.User {
		return "This menu is not for you!"
	}
	if !l.prompt.Accepts(control, value) {
		log.Debug().Str("listener_id", lid).Str("control", control).Msg("Callback for unknown control")
		return ""
	}

	l.prompt.OnSelect(ctx, battleship.Selection{User: user, Control: control, Value: value})
	return ""
}

type listener struct {
	id     string
	p      *Platform
	prompt battleship.Prompt
	msg    *tele.Message
	timer  *time.Timer
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

	var err error
	if l.prompt.Transient {
		err = l.p.sender.Delete(l.msg)
	} else if len(l.prompt.Controls) > 0 {
		_, err = l.p.sender.EditReplyMarkup(l.msg, nil)
	}
	if err != nil {
		log.Debug().Err(err).Str("listener_id", l.id).Msg("Failed to retire prompt message")
	}
}

// FormatMessage renders a message as Telegram HTML. The grid goes in a
// <pre> block so it keeps its alignment.
func FormatMessage(m battleship.Message) string {
	var parts []string
	if m.Title != "" {
		parts = append(parts, "<b>"+html.EscapeString(m.Title)+"</b>")
	}
	if m.Text != "" {
		parts = append(parts, html.EscapeString(m.Text))
	}
	if len(m.Grid) > 0 {
		parts = append(parts, "<pre>"+html.EscapeString(strings.Join(m.Grid, "\n"))+"</pre>")
	}
	return strings.Join(parts, "\n\n")
}
