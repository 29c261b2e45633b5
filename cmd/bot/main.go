// Package main is the entry point for the Battleship bot.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"battleship-bot/internal/bot"
	"battleship-bot/internal/config"
	"battleship-bot/internal/game"
	"battleship-bot/internal/game/battleship"
	"battleship-bot/internal/pkg/db"
	"battleship-bot/internal/pkg/metrics"
	"battleship-bot/internal/platform/discord"
	"battleship-bot/internal/repository"
	"battleship-bot/internal/service"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Warn().Str("level", cfg.Log.Level).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().Str("platform", cfg.Platform).Msg("Configuration loaded successfully")

	// Cancelled on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		records *service.RecordService
		checks  []metrics.HealthFunc
	)
	if cfg.Database.Enabled {
		dbPool, err := db.NewPool(ctx, &cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer dbPool.Close()

		if err := dbPool.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to run database migrations")
		}

		records = service.NewRecordService(repository.NewMatchRepository(dbPool.Pool), cfg.Platform)
		checks = append(checks, dbPool.HealthCheck)
	} else {
		log.Warn().Msg("Database disabled, match history will not be kept")
	}

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, checks...); err != nil {
				log.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	var opts []battleship.ManagerOption
	if records != nil {
		opts = append(opts, battleship.WithRecorder(records))
	}
	registry := game.NewRegistry()

	switch cfg.Platform {
	case config.PlatformDiscord:
		err = runDiscord(ctx, cfg, registry, records, opts)
	default:
		err = runTelegram(ctx, cfg, registry, records, opts)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Bot failed")
	}
	log.Info().Msg("Bot stopped gracefully")
}

// runTelegram polls Telegram until ctx is done.
func runTelegram(ctx context.Context, cfg *config.Config, registry *game.Registry, records *service.RecordService, opts []battleship.ManagerOption) error {
	telegramBot, manager, err := bot.New(&bot.Dependencies{
		Config:   cfg,
		Registry: registry,
		Records:  records,
		Options:  opts,
	})
	if err != nil {
		return err
	}

	log.Info().
		Int("game_count", registry.Count()).
		Str("board", manager.Description()).
		Msg("Games registered")

	go telegramBot.Start()

	<-ctx.Done()
	log.Info().Msg("Received shutdown signal")
	telegramBot.Stop()
	return nil
}

// runDiscord serves Discord interactions until ctx is done.
func runDiscord(ctx context.Context, cfg *config.Config, registry *game.Registry, records *service.RecordService, opts []battleship.ManagerOption) error {
	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsDirectMessages

	platform := discord.New(session, cfg.Discord.GuildID, cfg.Discord.Category)
	manager, err := battleship.NewManager(cfg.Games.Battleship.ToGame(), battleship.NewStore(), platform, opts...)
	if err != nil {
		return fmt.Errorf("failed to create battleship manager: %w", err)
	}
	if err := registry.Register(manager); err != nil {
		return err
	}

	router := discord.NewRouter(platform, manager, registry, records, cfg.IsAdmin)
	session.AddHandler(router.HandleInteraction)
	session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		log.Info().Str("username", r.User.Username).Msg("Connected to Discord")
	})

	if err := session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	defer session.Close()

	if _, err := session.ApplicationCommandBulkOverwrite(cfg.Discord.AppID, cfg.Discord.GuildID, discord.Commands()); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}
	log.Info().Str("guild_id", cfg.Discord.GuildID).Msg("Slash commands registered")

	<-ctx.Done()
	log.Info().Msg("Received shutdown signal")
	return nil
}
