// Package bot provides the Telegram bot initialization and handler registration.
package bot

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"battleship-bot/internal/config"
	"battleship-bot/internal/game"
	"battleship-bot/internal/game/battleship"
	"battleship-bot/internal/handler"
	"battleship-bot/internal/platform/telegram"
	"battleship-bot/internal/service"
)

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot      *tele.Bot
	cfg      *config.Config
	platform *telegram.Platform

	battleshipHandler *handler.BattleshipHandler
	recordHandler     *handler.RecordHandler
}

// Dependencies holds all the dependencies needed by the bot handlers.
type Dependencies struct {
	Config   *config.Config
	Registry *game.Registry
	// Records is nil when match history is disabled.
	Records *service.RecordService
	// Options are passed to the battleship manager.
	Options []battleship.ManagerOption
}

// New creates a new Bot instance, the Telegram platform and the
// battleship manager playing on it.
func New(deps *Dependencies) (*Bot, *battleship.Manager, error) {
	if deps.Config.Bot.Token == "" {
		return nil, nil, fmt.Errorf("bot token is required")
	}

	pref := tele.Settings{
		Token:  deps.Config.Bot.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c tele.Context) {
			log.Error().Err(err).Msg("Handler error")
		},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create bot: %w", err)
	}

	platform := telegram.New(teleBot)
	manager, err := battleship.NewManager(
		deps.Config.Games.Battleship.ToGame(),
		battleship.NewStore(),
		platform,
		deps.Options...,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create battleship manager: %w", err)
	}
	if err := deps.Registry.Register(manager); err != nil {
		return nil, nil, err
	}

	b := &Bot{
		bot:               teleBot,
		cfg:               deps.Config,
		platform:          platform,
		battleshipHandler: handler.NewBattleshipHandler(manager, deps.Registry),
	}
	if deps.Records != nil {
		b.recordHandler = handler.NewRecordHandler(deps.Records)
	}

	b.registerMiddleware()
	b.registerHandlers()

	return b, manager, nil
}

// registerMiddleware registers all middleware.
func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())

	// Whitelist middleware - check if chat is allowed
	b.bot.Use(WhitelistMiddleware(b.cfg))

	b.bot.Use(LoggingMiddleware())
}

// registerHandlers registers all command and callback handlers.
func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", b.battleshipHandler.HandleStart)
	b.bot.Handle("/help", b.battleshipHandler.HandleHelp)

	b.bot.Handle("/battleship", b.battleshipHandler.HandleInvite)
	b.bot.Handle("/bs_cancel", b.battleshipHandler.HandleCancel)

	if b.recordHandler != nil {
		b.bot.Handle("/bs_record", b.recordHandler.HandleRecord)
		b.bot.Handle("/bs_top", b.recordHandler.HandleTop)
	}

	// Admin handlers (with admin middleware)
	adminGroup := b.bot.Group()
	adminGroup.Use(AdminMiddleware(b.cfg))
	adminGroup.Handle("/bs_sessions", b.battleshipHandler.HandleSessions)

	// Game buttons carry the "bs" unique; anything else is stale.
	b.bot.Handle(&tele.Btn{Unique: telegram.Unique}, b.platform.HandleCallback)
	b.bot.Handle(tele.OnCallback, b.handleCallback)
}

// handleCallback answers callbacks no button handler claimed.
func (b *Bot) handleCallback(c tele.Context) error {
	callback := c.Callback()
	if callback == nil {
		return nil
	}
	if telegram.IsGameCallback(callback.Data) {
		return b.platform.HandleCallback(c)
	}
	log.Debug().Str("data", callback.Data).Msg("Unknown callback")
	return c.Respond(&tele.CallbackResponse{Text: "This button is no longer active."})
}

// Start starts the bot polling. It blocks until Stop is called.
func (b *Bot) Start() {
	log.Info().Str("username", b.bot.Me.Username).Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}
