// Package db provides PostgreSQL database connection management.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"battleship-bot/internal/config"
)

// Pool wraps pgxpool.Pool with additional functionality.
type Pool struct {
	*pgxpool.Pool
}

// poolConfig turns the database settings into a pgxpool config.
func poolConfig(cfg *config.DatabaseConfig) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pc.MaxConns = int32(cfg.PoolSize)
	pc.MinConns = max(int32(cfg.PoolSize/4), 1)

	pc.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	if pc.ConnConfig.ConnectTimeout <= 0 {
		pc.ConnConfig.ConnectTimeout = 10 * time.Second
	}
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	if pc.MaxConnLifetime <= 0 {
		pc.MaxConnLifetime = time.Hour
	}
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	if pc.MaxConnIdleTime <= 0 {
		pc.MaxConnIdleTime = 30 * time.Minute
	}

	pc.HealthCheckPeriod = 30 * time.Second
	return pc, nil
}

// NewPool creates a new PostgreSQL connection pool.
func NewPool(ctx context.Context, cfg *config.DatabaseConfig) (*Pool, error) {
	pc, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Name).
		Int("pool_size", cfg.PoolSize).
		Msg("Connecting to PostgreSQL")

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to PostgreSQL")

	return &Pool{Pool: pool}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() {
	if p.Pool != nil {
		p.Pool.Close()
		log.Info().Msg("PostgreSQL connection pool closed")
	}
}

// HealthCheck performs a health check on the database connection.
func (p *Pool) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.Pool.Ping(ctx)
}

// migrations are applied in order on every start. Each must be idempotent.
var migrations = []struct {
	name string
	sql  string
}{
	{"matches table", `
		CREATE TABLE IF NOT EXISTS matches (
			id BIGSERIAL PRIMARY KEY,
			platform VARCHAR(20) NOT NULL,
			session_id INT NOT NULL,
			outcome VARCHAR(20) NOT NULL,
			p1_id VARCHAR(64) NOT NULL,
			p1_name VARCHAR(255) NOT NULL,
			p2_id VARCHAR(64) NOT NULL,
			p2_name VARCHAR(255) NOT NULL,
			winner_id VARCHAR(64) NOT NULL,
			loser_id VARCHAR(64) NOT NULL,
			p1_moves INT NOT NULL DEFAULT 0,
			p2_moves INT NOT NULL DEFAULT 0,
			invited_at TIMESTAMPTZ NOT NULL,
			started_at TIMESTAMPTZ,
			ended_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`},
	{"player indexes", `
		CREATE INDEX IF NOT EXISTS idx_matches_p1 ON matches(platform, p1_id, ended_at DESC);
		CREATE INDEX IF NOT EXISTS idx_matches_p2 ON matches(platform, p2_id, ended_at DESC);
		CREATE INDEX IF NOT EXISTS idx_matches_winner ON matches(platform, winner_id)`},
}

// Migrate applies the match history schema.
func (p *Pool) Migrate(ctx context.Context) error {
	log.Info().Msg("Running database migrations...")
	for i, m := range migrations {
		if _, err := p.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %d (%s): %w", i+1, m.name, err)
		}
		log.Info().Int("migration", i+1).Str("name", m.name).Msg("Migration applied")
	}
	log.Info().Msg("All migrations completed successfully")
	return nil
}
