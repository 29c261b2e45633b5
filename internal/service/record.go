// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"battleship-bot/internal/game/battleship"
	"battleship-bot/internal/model"
	"battleship-bot/internal/repository"
)

// ErrNoRecord is returned for a player without finished matches.
var ErrNoRecord = errors.New("no finished matches")

// MatchStore is the persistence the record service needs.
// *repository.MatchRepository implements it.
type MatchStore interface {
	Create(ctx context.Context, m *model.Match) (*model.Match, error)
	GetRecord(ctx context.Context, platform, userID string) (*model.PlayerRecord, error)
	ListByUser(ctx context.Context, platform, userID string, limit int) ([]*model.Match, error)
	TopWinners(ctx context.Context, platform string, limit int) ([]*model.PlayerRecord, error)
}

// RecordService keeps the match history of one platform.
// It implements battleship.Recorder.
type RecordService struct {
	store    MatchStore
	platform string
}

// NewRecordService creates a new RecordService instance.
func NewRecordService(store MatchStore, platform string) *RecordService {
	return &RecordService{store: store, platform: platform}
}

// RecordOutcome stores a finished game. Sessions that ended before the
// invite was accepted have no outcome and are skipped.
func (s *RecordService) RecordOutcome(ctx context.Context, o battleship.Outcome) error {
	m, ok := MatchFromOutcome(s.platform, o)
	if !ok {
		return nil
	}
	created, err := s.store.Create(ctx, m)
	if err != nil {
		return fmt.Errorf("failed to record session %d: %w", o.SessionID, err)
	}
	log.Info().
		Int64("match_id", created.ID).
		Int("session_id", o.SessionID).
		Str("outcome", created.Outcome).
		Str("winner", created.WinnerID).
		Msg("Match recorded")
	return nil
}

// MatchFromOutcome converts a finished session into a match row.
// It reports false when the session has no winner.
func MatchFromOutcome(platform string, o battleship.Outcome) (*model.Match, bool) {
	var outcome string
	switch o.Status {
	case battleship.StatusP1Win, battleship.StatusP2Win:
		outcome = model.OutcomeWin
	case battleship.StatusP1IdleTimeout, battleship.StatusP2IdleTimeout:
		outcome = model.OutcomeIdleTimeout
	default:
		return nil, false
	}

	m := &model.Match{
		Platform:  platform,
		SessionID: o.SessionID,
		Outcome:   outcome,
		P1ID:      string(o.P1.ID),
		P1Name:    o.P1.Name,
		P2ID:      string(o.P2.ID),
		P2Name:    o.P2.Name,
		WinnerID:  string(o.Winner.ID),
		LoserID:   string(o.Loser.ID),
		P1Moves:   o.P1Moves,
		P2Moves:   o.P2Moves,
		InvitedAt: o.InvitedAt,
		EndedAt:   o.EndedAt,
	}
	if !o.StartedAt.IsZero() {
		started := o.StartedAt
		m.StartedAt = &started
	}
	return m, true
}

// GetRecord returns a player's wins and losses with their latest matches.
// Returns ErrNoRecord if the player never finished a match.
func (s *RecordService) GetRecord(ctx context.Context, userID string, recent int) (*model.PlayerRecord, []*model.Match, error) {
	rec, err := s.store.GetRecord(ctx, s.platform, userID)
	if err != nil {
		if errors.Is(err, repository.ErrMatchNotFound) {
			return nil, nil, ErrNoRecord
		}
		return nil, nil, err
	}
	matches, err := s.store.ListByUser(ctx, s.platform, userID, recent)
	if err != nil {
		return nil, nil, err
	}
	return rec, matches, nil
}

// TopWinners returns the players with the most wins.
func (s *RecordService) TopWinners(ctx context.Context, limit int) ([]*model.PlayerRecord, error) {
	return s.store.TopWinners(ctx, s.platform, limit)
}

// Opponent returns the name of the player userID faced in m.
func Opponent(m *model.Match, userID string) string {
	if m.P1ID == userID {
		return m.P2Name
	}
	return m.P1Name
}

// ResultOf describes how m ended for userID.
func ResultOf(m *model.Match, userID string) string {
	switch {
	case m.WinnerID == userID && m.Outcome == model.OutcomeIdleTimeout:
		return "won (opponent idle)"
	case m.WinnerID == userID:
		return "won"
	case m.Outcome == model.OutcomeIdleTimeout:
		return "lost (idle)"
	}
	return "lost"
}
