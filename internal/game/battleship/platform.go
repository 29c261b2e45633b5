package battleship

import (
	"context"
	"errors"
	"slices"
	"time"
)

// UserID is an opaque platform user identifier.
type UserID string

// ChannelID addresses a destination on the platform: a private game channel
// or a direct-message channel.
type ChannelID string

// Player identifies a participant.
type Player struct {
	ID   UserID
	Name string
}

// Message is rendered content. Grid lines are shown in a monospace block.
type Message struct {
	Title string
	Text  string
	Grid  []string
}

// Option is one entry of a choice menu.
type Option struct {
	Label string
	Value string
}

// Control is a button (no options) or a single-choice menu.
type Control struct {
	ID      string
	Label   string // button text or menu placeholder
	Options []Option
}

// IsMenu reports whether the control carries a choice list.
func (c Control) IsMenu() bool { return len(c.Options) > 0 }

// Selection is what a user picked on a prompt.
type Selection struct {
	User    UserID
	Control string
	Value   string
}

// Prompt presents content with a fixed choice set to one authorized user.
type Prompt struct {
	Channel  ChannelID
	User     UserID
	Message  Message
	Controls []Control
	// Timeout bounds how long the platform keeps the prompt interactive.
	// Zero means until stopped.
	Timeout time.Duration
	// Transient prompts are removed from the channel when stopped instead of
	// being left in place without controls.
	Transient bool
	// OnSelect is called once per selection made by User. It must be called
	// outside of Present and Listener.Stop.
	OnSelect func(ctx context.Context, sel Selection)
}

// Accepts reports whether control/value is one of the prompt's choices.
// Buttons carry no value.
func (pr Prompt) Accepts(control, value string) bool {
	for _, c := range pr.Controls {
		if c.ID != control {
			continue
		}
		if !c.IsMenu() {
			return value == ""
		}
		return slices.ContainsFunc(c.Options, func(o Option) bool { return o.Value == value })
	}
	return false
}

// Listener is a live prompt that can be cancelled before it resolves.
type Listener interface {
	Stop()
}

// Platform is the chat platform the sessions are played on.
type Platform interface {
	// DirectChannel resolves the direct-message destination of a user.
	DirectChannel(ctx context.Context, user UserID) (ChannelID, error)
	// CreatePrivateChannelPair creates one channel per player, each visible only
	// to its owner. Either both channels exist afterwards or an error is returned.
	CreatePrivateChannelPair(ctx context.Context, sessionID int, a, b Player) (ChannelID, ChannelID, error)
	// MakeReadOnly locks the channels for everyone, including their owners.
	MakeReadOnly(ctx context.Context, channels ...ChannelID) error
	Send(ctx context.Context, dest ChannelID, msg Message) error
	Present(ctx context.Context, p Prompt) (Listener, error)
}

// ErrReadOnly is returned by platforms for deliveries into a locked channel.
var ErrReadOnly = errors.New("channel is read-only")

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	Stop() bool
}

// Scheduler runs callbacks after a delay.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type systemScheduler struct{}

func (systemScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Outcome summarizes a finished game for match history.
type Outcome struct {
	SessionID int
	Status    Status
	P1        Player
	P2        Player
	Winner    Player // zero when nobody won
	Loser     Player
	P1Moves   int
	P2Moves   int
	InvitedAt time.Time
	StartedAt time.Time
	EndedAt   time.Time
}

// Recorder stores finished games.
type Recorder interface {
	RecordOutcome(ctx context.Context, o Outcome) error
}

type nopRecorder struct{}

func (nopRecorder) RecordOutcome(context.Context, Outcome) error { return nil }
