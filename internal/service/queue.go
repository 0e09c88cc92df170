package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"league-matchmaker/internal/balance"
	"league-matchmaker/internal/config"
	"league-matchmaker/internal/constants"
	"league-matchmaker/internal/domain"
	"league-matchmaker/internal/lifecycle"
	"league-matchmaker/internal/queue"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type JoinStatus int

const (
	JoinQueued JoinStatus = iota
	JoinAlreadyQueued
	JoinPendingMatch
)

func (s JoinStatus) String() string {
	switch s {
	case JoinQueued:
		return "queued"
	case JoinAlreadyQueued:
		return "already_queued"
	case JoinPendingMatch:
		return "pending_match"
	default:
		return "unknown"
	}
}

type JoinResult struct {
	Status  JoinStatus
	Player  *domain.Player
	Queue   int
	Size    int
	Target  int
	Message string
	// matches formed by this join, possibly from other queues
	Matches []*domain.MatchRecord
}

type QueueStatus struct {
	Target int
	Queues []QueueView
}

type QueueView struct {
	Band    queue.Band
	Entries []queue.Entry
}

type QueueService struct {
	store    Store
	queues   *queue.Manager
	book     *lifecycle.Book
	notifier Notifier
	cfg      *config.Config
	logger   zerolog.Logger

	// held from the membership checks of a join through storing the matches
	// it forms, so a drained player cannot queue again before their match exists
	admit sync.Mutex

	// picks a map index; rand.IntN outside tests
	intN func(n int) int
}

func NewQueueService(
	store Store,
	queues *queue.Manager,
	book *lifecycle.Book,
	notifier Notifier,
	cfg *config.Config,
	logger zerolog.Logger,
) *QueueService {
	return &QueueService{
		store:    store,
		queues:   queues,
		book:     book,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger.With().Str("component", "queue").Logger(),
		intN:     rand.IntN,
	}
}

// Join admits a player to the queue matching their rating and forms every
// match that became possible. Match announcements go out after the
// admission lock is released.
func (s *QueueService) Join(ctx context.Context, playerID, name, division string) (*JoinResult, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	s.admit.Lock()
	result, notices, err := s.join(ctx, playerID, name, division)
	s.admit.Unlock()

	for _, text := range notices {
		publish(ctx, s.notifier, s.logger, text)
	}
	return result, err
}

func (s *QueueService) join(ctx context.Context, playerID, name, division string) (*JoinResult, []string, error) {
	result := &JoinResult{Target: s.cfg.QueueTargetSize}

	if idx, ok := s.queues.Locate(playerID); ok {
		result.Status = JoinAlreadyQueued
		result.Queue = idx
		result.Size = s.queues.Len(idx)
		return result, nil, nil
	}

	pending, err := s.store.HasPendingMatch(ctx, playerID)
	if err != nil {
		s.logger.Error().Err(err).Str("player_id", playerID).Msg("failed to check pending match")
		return nil, nil, fmt.Errorf("failed to check pending match: %w", err)
	}
	if pending {
		result.Status = JoinPendingMatch
		return result, nil, nil
	}

	if division == "" {
		division = s.cfg.DefaultDivision
	}
	player, err := s.store.EnsurePlayer(ctx, playerID, name, division)
	if err != nil {
		s.logger.Error().Err(err).Str("player_id", playerID).Msg("failed to ensure player")
		return nil, nil, fmt.Errorf("failed to ensure player: %w", err)
	}
	result.Player = player

	idx, size, err := s.queues.Enqueue(player.ID, player.Rating)
	if errors.Is(err, queue.ErrAlreadyQueued) {
		result.Status = JoinAlreadyQueued
		result.Queue = idx
		result.Size = size
		return result, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to enqueue player: %w", err)
	}

	result.Status = JoinQueued
	result.Queue = idx
	result.Size = size
	result.Message = FormatJoin(player.Name, idx, size, s.cfg.QueueTargetSize)

	s.logger.Info().
		Str("player_id", player.ID).
		Int("rating", player.Rating).
		Int("queue", idx).
		Int("size", size).
		Msg("player joined queue")

	matches, notices, err := s.drain(ctx)
	result.Matches = matches
	if err != nil {
		// the batch is back in its queue; the join itself stands
		s.logger.Error().Err(err).Int("queue", idx).Msg("failed to form match")
	}
	return result, notices, nil
}

// Leave removes the player from whichever queue holds them. A player whose
// batch is being turned into a match is no longer queued.
func (s *QueueService) Leave(playerID string) bool {
	s.admit.Lock()
	defer s.admit.Unlock()

	idx, ok := s.queues.Dequeue(playerID)
	if ok {
		s.logger.Info().Str("player_id", playerID).Int("queue", idx).Msg("player left queue")
	}
	return ok
}

func (s *QueueService) Status() QueueStatus {
	snapshot := s.queues.Snapshot()
	bands := s.queues.Bands()

	status := QueueStatus{
		Target: s.cfg.QueueTargetSize,
		Queues: make([]QueueView, len(bands)),
	}
	for i, band := range bands {
		status.Queues[i] = QueueView{Band: band, Entries: snapshot[i]}
	}
	return status
}

// drain forms matches from every queue that holds a full batch and returns
// them with their announcements.
func (s *QueueService) drain(ctx context.Context) ([]*domain.MatchRecord, []string, error) {
	var (
		created []*domain.MatchRecord
		notices []string
	)
	for idx := 0; idx < s.queues.Count(); idx++ {
		for {
			batch, err := s.queues.DrainIfFull(idx, s.cfg.QueueTargetSize)
			if err != nil {
				return created, notices, err
			}
			if batch == nil {
				break
			}

			match, notice, err := s.createMatch(ctx, idx, batch)
			if err != nil {
				if rerr := s.queues.Restore(idx, batch); rerr != nil {
					err = errors.Join(err, rerr)
				}
				return created, notices, err
			}
			created = append(created, match)
			notices = append(notices, notice)
		}
	}
	return created, notices, nil
}

func (s *QueueService) createMatch(ctx context.Context, idx int, batch []queue.Entry) (*domain.MatchRecord, string, error) {
	players, err := s.resolvePlayers(ctx, batch)
	if err != nil {
		return nil, "", err
	}

	roster := make([]domain.Player, 0, len(batch))
	for _, e := range batch {
		roster = append(roster, players[e.PlayerID])
	}
	teams, err := balance.Serpent(roster)
	if err != nil {
		return nil, "", fmt.Errorf("failed to balance teams: %w", err)
	}

	info := s.pickMap()
	match, err := s.store.CreateMatch(ctx, teams.Team1IDs(), teams.Team2IDs(), info)
	if err != nil {
		s.logger.Error().Err(err).Int("queue", idx).Msg("failed to create match")
		return nil, "", fmt.Errorf("failed to create match: %w", err)
	}

	deadline := s.book.Track(match.ID)
	s.logger.Info().
		Int64("match_id", match.ID).
		Int("queue", idx).
		Str("map", info.Name).
		Time("deadline", deadline).
		Msg("match created")

	return match, FormatMatchCreated(match, players), nil
}

// resolvePlayers loads the batch and creates any player missing from storage.
func (s *QueueService) resolvePlayers(ctx context.Context, batch []queue.Entry) (map[string]domain.Player, error) {
	ids := make([]string, len(batch))
	for i, e := range batch {
		ids[i] = e.PlayerID
	}

	players, err := s.store.GetPlayers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load players: %w", err)
	}

	var missing []string
	for _, id := range ids {
		if _, ok := players[id]; !ok {
			missing = append(missing, id)
		}
	}

	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	for _, id := range missing {
		g.Go(func() error {
			p, err := s.store.EnsurePlayer(gCtx, id, "", s.cfg.DefaultDivision)
			if err != nil {
				return err
			}
			mu.Lock()
			players[id] = *p
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to ensure players: %w", err)
	}
	return players, nil
}

func (s *QueueService) pickMap() domain.MapInfo {
	rotation := constants.MapRotation
	mode := rotation[s.intN(len(rotation))]
	return domain.MapInfo{
		Mode:  mode.Mode,
		Name:  mode.Maps[s.intN(len(mode.Maps))],
		Emoji: mode.Emoji,
	}
}

// publish delivers a summary. Delivery failures never undo a transition.
func publish(ctx context.Context, n Notifier, logger zerolog.Logger, text string) {
	if n == nil || text == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.WebhookTimeout)
	defer cancel()
	if err := n.Publish(ctx, text); err != nil {
		logger.Warn().Err(err).Msg("failed to publish summary")
	}
}
