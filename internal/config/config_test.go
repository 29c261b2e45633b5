package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"battleship-bot/internal/game/battleship"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o600))
	return dir
}

func TestLoadDefaults(t *testing.T) {
	dir := writeConfig(t, "bot:\n  token: abc\n")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, PlatformTelegram, cfg.Platform)
	assert.Equal(t, "abc", cfg.Bot.Token)
	assert.True(t, cfg.Database.Enabled)
	assert.Equal(t, 10, cfg.Database.PoolSize)
	assert.Equal(t, 10*time.Second, cfg.Database.ConnectTimeout)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
	assert.Equal(t, "Battleship", cfg.Discord.Category)

	game := cfg.Games.Battleship.ToGame()
	assert.Equal(t, 8, game.BoardHeight)
	assert.Equal(t, 5*time.Minute, game.IdleTimeout)
	assert.Equal(t, time.Minute, game.InviteTimeout)
	assert.Equal(t, battleship.DefaultRoster(), game.Roster)
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := writeConfig(t, "platform: discord\n")
	t.Setenv("DISCORD_TOKEN", "tok")
	t.Setenv("DISCORD_GUILD_ID", "123")
	t.Setenv("DISCORD_APP_ID", "456")
	t.Setenv("GAMES_BATTLESHIP_IDLE_TIMEOUT", "90s")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, PlatformDiscord, cfg.Platform)
	assert.Equal(t, "123", cfg.Discord.GuildID)
	assert.Equal(t, 90*time.Second, cfg.Games.Battleship.IdleTimeout)
}

func TestLoadCustomRoster(t *testing.T) {
	dir := writeConfig(t, `
bot:
  token: abc
games:
  battleship:
    board_height: 5
    board_width: 6
    ships:
      - name: patrol
        length: 2
      - name: Frigate
        length: 3
        glyph: F
        emoji: "⛵"
`)

	cfg, err := Load(dir)
	require.NoError(t, err)

	game := cfg.Games.Battleship.ToGame()
	require.NoError(t, game.Validate())
	assert.Equal(t, []battleship.Ship{
		{ID: 1, Name: "patrol", Length: 2, Glyph: "P"},
		{ID: 2, Name: "Frigate", Length: 3, Emoji: "⛵", Glyph: "F"},
	}, game.Roster)
	assert.Equal(t, 6, game.BoardWidth)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing telegram token", "platform: telegram\n"},
		{"missing discord ids", "platform: discord\ndiscord:\n  token: tok\n"},
		{"unknown platform", "platform: irc\n"},
		{"ship too long", "bot:\n  token: abc\ngames:\n  battleship:\n    board_height: 3\n    board_width: 3\n    ships:\n      - name: Long\n        length: 4\n"},
		{"board too large", "bot:\n  token: abc\ngames:\n  battleship:\n    board_height: 30\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{User: "u", Password: "p", Host: "h", Port: 5432, Name: "n"}
	assert.Equal(t, "postgres://u:p@h:5432/n?sslmode=disable", d.DSN())
}
