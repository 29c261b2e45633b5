// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"battleship-bot/internal/model"
)

// Common errors for repository operations.
var (
	ErrMatchNotFound = errors.New("match not found")
)

// MatchRepository handles finished match persistence.
type MatchRepository struct {
	pool *pgxpool.Pool
}

// NewMatchRepository creates a new MatchRepository instance.
func NewMatchRepository(pool *pgxpool.Pool) *MatchRepository {
	return &MatchRepository{pool: pool}
}

const matchColumns = `id, platform, session_id, outcome, p1_id, p1_name, p2_id, p2_name,
	winner_id, loser_id, p1_moves, p2_moves, invited_at, started_at, ended_at, created_at`

func scanMatch(row pgx.Row) (*model.Match, error) {
	var m model.Match
	err := row.Scan(
		&m.ID,
		&m.Platform,
		&m.SessionID,
		&m.Outcome,
		&m.P1ID,
		&m.P1Name,
		&m.P2ID,
		&m.P2Name,
		&m.WinnerID,
		&m.LoserID,
		&m.P1Moves,
		&m.P2Moves,
		&m.InvitedAt,
		&m.StartedAt,
		&m.EndedAt,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Create stores a finished match and returns it with its id.
func (r *MatchRepository) Create(ctx context.Context, m *model.Match) (*model.Match, error) {
	query := `
		INSERT INTO matches (platform, session_id, outcome, p1_id, p1_name, p2_id, p2_name,
			winner_id, loser_id, p1_moves, p2_moves, invited_at, started_at, ended_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW())
		RETURNING ` + matchColumns

	created, err := scanMatch(r.pool.QueryRow(ctx, query,
		m.Platform, m.SessionID, m.Outcome, m.P1ID, m.P1Name, m.P2ID, m.P2Name,
		m.WinnerID, m.LoserID, m.P1Moves, m.P2Moves, m.InvitedAt, m.StartedAt, m.EndedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create match: %w", err)
	}
	return created, nil
}

// GetByID retrieves a match by id.
// Returns ErrMatchNotFound if the match does not exist.
func (r *MatchRepository) GetByID(ctx context.Context, id int64) (*model.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`

	m, err := scanMatch(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return m, nil
}

// ListByUser retrieves the most recent matches a user played, newest first.
func (r *MatchRepository) ListByUser(ctx context.Context, platform, userID string, limit int) ([]*model.Match, error) {
	query := `SELECT ` + matchColumns + `
		FROM matches
		WHERE platform = $1 AND (p1_id = $2 OR p2_id = $2)
		ORDER BY ended_at DESC, id DESC
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, platform, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer rows.Close()

	var matches []*model.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating matches: %w", err)
	}
	return matches, nil
}

// GetRecord aggregates a user's wins and losses.
// Returns ErrMatchNotFound if the user has no finished match.
func (r *MatchRepository) GetRecord(ctx context.Context, platform, userID string) (*model.PlayerRecord, error) {
	const query = `
		SELECT
			COALESCE((array_agg(CASE WHEN p1_id = $2 THEN p1_name ELSE p2_name END ORDER BY ended_at DESC))[1], ''),
			COUNT(*) FILTER (WHERE winner_id = $2)::int,
			COUNT(*) FILTER (WHERE loser_id = $2)::int,
			COUNT(*) FILTER (WHERE loser_id = $2 AND outcome = 'idle_timeout')::int
		FROM matches
		WHERE platform = $1 AND (p1_id = $2 OR p2_id = $2)
	`

	rec := model.PlayerRecord{UserID: userID}
	err := r.pool.QueryRow(ctx, query, platform, userID).Scan(
		&rec.Name,
		&rec.Wins,
		&rec.Losses,
		&rec.Timeouts,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	if rec.Played() == 0 {
		return nil, ErrMatchNotFound
	}
	return &rec, nil
}

// TopWinners retrieves the players with the most wins.
// Ties are broken by fewer losses, then by user id.
func (r *MatchRepository) TopWinners(ctx context.Context, platform string, limit int) ([]*model.PlayerRecord, error) {
	const query = `
		WITH results AS (
			SELECT winner_id AS user_id,
				CASE WHEN winner_id = p1_id THEN p1_name ELSE p2_name END AS name,
				ended_at, 1 AS win, 0 AS loss, 0 AS timeout
			FROM matches WHERE platform = $1
			UNION ALL
			SELECT loser_id,
				CASE WHEN loser_id = p1_id THEN p1_name ELSE p2_name END,
				ended_at, 0, 1, CASE WHEN outcome = 'idle_timeout' THEN 1 ELSE 0 END
			FROM matches WHERE platform = $1
		)
		SELECT user_id,
			(array_agg(name ORDER BY ended_at DESC))[1] AS name,
			SUM(win)::int AS wins,
			SUM(loss)::int AS losses,
			SUM(timeout)::int AS timeouts
		FROM results
		GROUP BY user_id
		HAVING SUM(win) > 0
		ORDER BY wins DESC, losses ASC, user_id ASC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, platform, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top winners: %w", err)
	}
	defer rows.Close()

	var records []*model.PlayerRecord
	for rows.Next() {
		var rec model.PlayerRecord
		if err := rows.Scan(&rec.UserID, &rec.Name, &rec.Wins, &rec.Losses, &rec.Timeouts); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}
	return records, nil
}

// CountByPlatform returns how many matches a platform has recorded.
func (r *MatchRepository) CountByPlatform(ctx context.Context, platform string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*)::int FROM matches WHERE platform = $1`, platform).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count matches: %w", err)
	}
	return n, nil
}
