package service

import (
	"context"
	"fmt"

	"league-matchmaker/internal/config"
	"league-matchmaker/internal/constants"
	"league-matchmaker/internal/domain"
	"league-matchmaker/internal/queue"
	"league-matchmaker/internal/rating"
	"league-matchmaker/internal/tier"

	"github.com/rs/zerolog"
)

const profileHistoryLimit = 10

type Profile struct {
	Player  domain.Player
	Rank    domain.Rank
	WinRate float64
	Queued  bool
	History []domain.RatingChange
}

type LeaderboardEntry struct {
	Position int
	Tier     string
	Rank     domain.Rank
	Player   domain.Player
	WinRate  float64
}

type Leaderboard struct {
	Page    int
	Pages   int
	Total   int
	Entries []LeaderboardEntry
}

type PlayerService struct {
	store  Store
	queues *queue.Manager
	cfg    *config.Config
	logger zerolog.Logger
}

func NewPlayerService(store Store, queues *queue.Manager, cfg *config.Config, logger zerolog.Logger) *PlayerService {
	return &PlayerService{
		store:  store,
		queues: queues,
		cfg:    cfg,
		logger: logger.With().Str("component", "player").Logger(),
	}
}

// Profile returns nil when the player has never joined a queue.
func (s *PlayerService) Profile(ctx context.Context, playerID string) (*Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	player, err := s.store.GetPlayer(ctx, playerID)
	if err != nil {
		s.logger.Error().Err(err).Str("player_id", playerID).Msg("failed to load player")
		return nil, fmt.Errorf("failed to load player: %w", err)
	}
	if player == nil {
		return nil, nil
	}

	history, err := s.store.RatingHistory(ctx, playerID, profileHistoryLimit)
	if err != nil {
		s.logger.Warn().Err(err).Str("player_id", playerID).Msg("failed to load rating history")
	}

	return &Profile{
		Player:  *player,
		Rank:    rating.Classify(player.Rating, s.cfg.Ranks),
		WinRate: player.WinRate(),
		Queued:  s.queues.Contains(playerID),
		History: history,
	}, nil
}

// Leaderboard returns one page of players ordered by rating. Tiers are
// assigned from the global position against the whole player count.
func (s *PlayerService) Leaderboard(ctx context.Context, page int) (*Leaderboard, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	page = max(page, 1)
	offset := (page - 1) * constants.LeaderboardPageSize

	players, total, err := s.store.LeaderboardPage(ctx, constants.LeaderboardPageSize, offset)
	if err != nil {
		s.logger.Error().Err(err).Int("page", page).Msg("failed to load leaderboard")
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}

	boundaries := tier.Boundaries(s.cfg.TierDistribution, total)
	board := &Leaderboard{
		Page:    page,
		Pages:   max((total+constants.LeaderboardPageSize-1)/constants.LeaderboardPageSize, 1),
		Total:   total,
		Entries: make([]LeaderboardEntry, 0, len(players)),
	}
	for i, p := range players {
		pos := offset + i + 1
		board.Entries = append(board.Entries, LeaderboardEntry{
			Position: pos,
			Tier:     tier.ForRank(pos, boundaries),
			Rank:     rating.Classify(p.Rating, s.cfg.Ranks),
			Player:   p,
			WinRate:  p.WinRate(),
		})
	}
	return board, nil
}

// ResetStats puts the player back at the default rating with no record.
// It returns nil when the player does not exist.
func (s *PlayerService) ResetStats(ctx context.Context, playerID string) (*domain.Player, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	player, err := s.store.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load player: %w", err)
	}
	if player == nil {
		return nil, nil
	}

	err = s.store.ApplyPlayerUpdates(ctx, []domain.PlayerUpdate{{
		ID:     playerID,
		Rating: s.cfg.DefaultRating,
	}})
	if err != nil {
		s.logger.Error().Err(err).Str("player_id", playerID).Msg("failed to reset player")
		return nil, fmt.Errorf("failed to reset player: %w", err)
	}

	s.logger.Info().Str("player_id", playerID).Int("previous_rating", player.Rating).Msg("player stats reset")
	return s.store.GetPlayer(ctx, playerID)
}

func (s *PlayerService) Maps() string {
	return FormatMapRotation(constants.MapRotation)
}
