package repository

import (
	"context"
	"database/sql"
	"fmt"

	"league-matchmaker/internal/config"
	"league-matchmaker/internal/domain"

	"github.com/rs/zerolog"
)

// Store is the SQLite storage collaborator used by the services.
type Store struct {
	db      *sql.DB
	players *PlayerRepository
	matches *MatchRepository
	history *RatingHistoryRepository
	logger  zerolog.Logger
}

func NewStore(sqlDB *sql.DB, cfg *config.Config, logger zerolog.Logger) *Store {
	logger = logger.With().Str("component", "store").Logger()
	return &Store{
		db:      sqlDB,
		players: NewPlayerRepository(sqlDB, cfg.DefaultRating, cfg.DefaultDivision, logger),
		matches: NewMatchRepository(sqlDB, logger),
		history: NewRatingHistoryRepository(sqlDB, logger),
		logger:  logger,
	}
}

func (s *Store) GetPlayers(ctx context.Context, ids []string) (map[string]domain.Player, error) {
	return s.players.GetMany(ctx, ids)
}

func (s *Store) GetPlayer(ctx context.Context, id string) (*domain.Player, error) {
	return s.players.Get(ctx, id)
}

func (s *Store) EnsurePlayer(ctx context.Context, id, name, division string) (*domain.Player, error) {
	return s.players.Ensure(ctx, id, name, division)
}

func (s *Store) HasPendingMatch(ctx context.Context, id string) (bool, error) {
	return s.matches.HasPending(ctx, id)
}

func (s *Store) CreateMatch(ctx context.Context, team1, team2 []string, info domain.MapInfo) (*domain.MatchRecord, error) {
	return s.matches.Create(ctx, team1, team2, info)
}

func (s *Store) GetMatch(ctx context.Context, id int64) (*domain.MatchRecord, error) {
	return s.matches.Get(ctx, id)
}

func (s *Store) UpdateSeriesScore(ctx context.Context, id int64, team1Score, team2Score int) (*domain.MatchRecord, error) {
	return s.matches.UpdateSeriesScore(ctx, id, team1Score, team2Score)
}

func (s *Store) CompleteMatch(ctx context.Context, id int64, winner domain.Team) (*domain.MatchRecord, error) {
	return s.matches.Complete(ctx, id, winner)
}

func (s *Store) CancelMatch(ctx context.Context, id int64) (*domain.MatchRecord, error) {
	return s.matches.Cancel(ctx, id)
}

func (s *Store) ApplyPlayerUpdates(ctx context.Context, updates []domain.PlayerUpdate) error {
	return s.players.ApplyUpdates(ctx, updates)
}

func (s *Store) LeaderboardPage(ctx context.Context, limit, offset int) ([]domain.Player, int, error) {
	return s.players.Leaderboard(ctx, limit, offset)
}

func (s *Store) RatingHistory(ctx context.Context, playerID string, limit int) ([]domain.RatingChange, error) {
	return s.history.GetByPlayer(ctx, playerID, limit)
}

func (s *Store) PendingMatches(ctx context.Context) ([]*domain.MatchRecord, error) {
	return s.matches.ListPending(ctx)
}

// SettleMatch writes the final score, completes the pending match, rates the
// participants and records the rating history in one transaction. rate sees
// the players as stored inside that transaction, so no concurrent write to
// them is lost. It returns nil, and writes nothing, when the match is no
// longer pending.
func (s *Store) SettleMatch(ctx context.Context, id int64, result domain.MatchResult, rate domain.Rater) (*domain.MatchRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	matches := s.matches.WithTx(tx)
	scored, err := matches.UpdateSeriesScore(ctx, id, result.Team1Score, result.Team2Score)
	if err != nil || scored == nil {
		return nil, err
	}
	match, err := matches.Complete(ctx, id, result.Winner)
	if err != nil || match == nil {
		return nil, err
	}

	players := s.players.WithTx(tx)
	current, err := players.GetMany(ctx, match.Participants())
	if err != nil {
		return nil, err
	}
	updates, changes, err := rate(current)
	if err != nil {
		return nil, fmt.Errorf("failed to rate match %d: %w", id, err)
	}

	if err := players.ApplyUpdates(ctx, updates); err != nil {
		return nil, err
	}
	if err := s.history.WithTx(tx).InsertBatch(ctx, changes); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit settlement: %w", err)
	}

	s.logger.Info().
		Int64("match_id", id).
		Str("winner", string(result.Winner)).
		Int("team1_score", result.Team1Score).
		Int("team2_score", result.Team2Score).
		Int("players", len(updates)).
		Msg("match settled")
	return match, nil
}
