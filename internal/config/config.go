// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/spf13/viper"

	"battleship-bot/internal/game/battleship"
)

// Supported chat platforms.
const (
	PlatformTelegram = "telegram"
	PlatformDiscord  = "discord"
)

// Config holds all application configuration.
type Config struct {
	Platform  string          `mapstructure:"platform"`
	Bot       BotConfig       `mapstructure:"bot"`
	Discord   DiscordConfig   `mapstructure:"discord"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Whitelist WhitelistConfig `mapstructure:"whitelist"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Log       LogConfig       `mapstructure:"log"`
	Games     GamesConfig     `mapstructure:"games"`
}

// BotConfig holds Telegram bot configuration.
type BotConfig struct {
	Token string `mapstructure:"token"`
}

// DiscordConfig holds Discord bot configuration.
type DiscordConfig struct {
	Token    string `mapstructure:"token"`
	GuildID  string `mapstructure:"guild_id"`
	AppID    string `mapstructure:"app_id"`
	Category string `mapstructure:"category"` // parent category of game channels
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// AdminConfig holds admin user configuration.
type AdminConfig struct {
	IDs []int64 `mapstructure:"ids"`
}

// WhitelistConfig holds chat whitelist configuration.
type WhitelistConfig struct {
	Chats []int64 `mapstructure:"chats"`
}

// MetricsConfig holds the metrics server configuration.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"` // empty disables the server
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// GamesConfig holds game-specific configuration.
type GamesConfig struct {
	Battleship BattleshipConfig `mapstructure:"battleship"`
}

// BattleshipConfig holds Battleship game configuration.
type BattleshipConfig struct {
	BoardHeight   int           `mapstructure:"board_height"`
	BoardWidth    int           `mapstructure:"board_width"`
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	InviteTimeout time.Duration `mapstructure:"invite_timeout"`
	Ships         []ShipConfig  `mapstructure:"ships"` // empty means the default roster
}

// ShipConfig describes one roster entry.
type ShipConfig struct {
	Name   string `mapstructure:"name"`
	Length int    `mapstructure:"length"`
	Emoji  string `mapstructure:"emoji"`
	Glyph  string `mapstructure:"glyph"` // defaults to the first letter of the name
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables use underscore separator and uppercase
	// e.g., BOT_TOKEN, DISCORD_GUILD_ID, GAMES_BATTLESHIP_IDLE_TIMEOUT
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional - env vars can provide all config)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("platform", PlatformTelegram)

	// Empty defaults register the keys so env-only values are unmarshalled
	v.SetDefault("bot.token", "")
	v.SetDefault("discord.token", "")
	v.SetDefault("discord.guild_id", "")
	v.SetDefault("discord.app_id", "")
	v.SetDefault("discord.category", "Battleship")
	v.SetDefault("database.password", "")

	// Database defaults
	v.SetDefault("database.enabled", true)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "battleship")
	v.SetDefault("database.name", "battleship")
	v.SetDefault("database.pool_size", 10)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("log.level", "info")

	// Game defaults
	v.SetDefault("games.battleship.board_height", 8)
	v.SetDefault("games.battleship.board_width", 8)
	v.SetDefault("games.battleship.idle_timeout", "5m")
	v.SetDefault("games.battleship.invite_timeout", "1m")
}

// Validate checks the settings needed by the selected platform and the game.
func (c *Config) Validate() error {
	switch c.Platform {
	case PlatformTelegram:
		if c.Bot.Token == "" {
			return fmt.Errorf("bot token is required for the telegram platform")
		}
	case PlatformDiscord:
		if c.Discord.Token == "" || c.Discord.GuildID == "" || c.Discord.AppID == "" {
			return fmt.Errorf("discord token, guild_id and app_id are required for the discord platform")
		}
	default:
		return fmt.Errorf("unknown platform %q", c.Platform)
	}
	if err := c.Games.Battleship.ToGame().Validate(); err != nil {
		return fmt.Errorf("invalid battleship config: %w", err)
	}
	return nil
}

// ToGame converts the settings into the game constants. Ship ids are
// assigned in roster order starting at 1.
func (b BattleshipConfig) ToGame() battleship.Config {
	cfg := battleship.Config{
		BoardHeight:   b.BoardHeight,
		BoardWidth:    b.BoardWidth,
		IdleTimeout:   b.IdleTimeout,
		InviteTimeout: b.InviteTimeout,
		Roster:        battleship.DefaultRoster(),
	}
	if len(b.Ships) == 0 {
		return cfg
	}

	cfg.Roster = make([]battleship.Ship, len(b.Ships))
	for i, s := range b.Ships {
		glyph := s.Glyph
		if glyph == "" {
			r, _ := utf8.DecodeRuneInString(s.Name)
			glyph = string(unicode.ToUpper(r))
		}
		cfg.Roster[i] = battleship.Ship{
			ID:     battleship.ShipID(i + 1),
			Name:   s.Name,
			Length: s.Length,
			Emoji:  s.Emoji,
			Glyph:  glyph,
		}
	}
	return cfg
}

// IsAdmin checks if a user ID is in the admin list.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Admin.IDs {
		if id == userID {
			return true
		}
	}
	return false
}

// IsChatAllowed checks if a chat ID is in the whitelist.
func (c *Config) IsChatAllowed(chatID int64) bool {
	// Empty whitelist means all chats are allowed
	if len(c.Whitelist.Chats) == 0 {
		return true
	}
	for _, id := range c.Whitelist.Chats {
		if id == chatID {
			return true
		}
	}
	return false
}
