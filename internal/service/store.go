package service

import (
	"context"

	"league-matchmaker/internal/domain"
)

// Store is the persistence the services depend on. Lookups of absent rows
// return nil with a nil error.
type Store interface {
	GetPlayers(ctx context.Context, ids []string) (map[string]domain.Player, error)
	GetPlayer(ctx context.Context, id string) (*domain.Player, error)
	EnsurePlayer(ctx context.Context, id, name, division string) (*domain.Player, error)
	HasPendingMatch(ctx context.Context, playerID string) (bool, error)

	CreateMatch(ctx context.Context, team1, team2 []string, info domain.MapInfo) (*domain.MatchRecord, error)
	GetMatch(ctx context.Context, id int64) (*domain.MatchRecord, error)
	PendingMatches(ctx context.Context) ([]*domain.MatchRecord, error)
	UpdateSeriesScore(ctx context.Context, id int64, team1Score, team2Score int) (*domain.MatchRecord, error)
	CompleteMatch(ctx context.Context, id int64, winner domain.Team) (*domain.MatchRecord, error)
	SettleMatch(ctx context.Context, id int64, result domain.MatchResult, rate domain.Rater) (*domain.MatchRecord, error)
	CancelMatch(ctx context.Context, id int64) (*domain.MatchRecord, error)

	ApplyPlayerUpdates(ctx context.Context, updates []domain.PlayerUpdate) error
	LeaderboardPage(ctx context.Context, limit, offset int) ([]domain.Player, int, error)
	RatingHistory(ctx context.Context, playerID string, limit int) ([]domain.RatingChange, error)
}

// Notifier delivers plain-text summaries to the players' channel.
type Notifier interface {
	Publish(ctx context.Context, text string) error
}
