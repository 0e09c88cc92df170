package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"league-matchmaker/internal/config"
	"league-matchmaker/internal/constants"
	"league-matchmaker/internal/domain"
	"league-matchmaker/internal/lifecycle"
	"league-matchmaker/internal/rating"

	"github.com/rs/zerolog"
)

type VoteResult int

const (
	VoteAccepted VoteResult = iota
	VoteRejectedNotEligible
	VoteRejectedNotPending
	VoteRejectedInvalidLabel
	VoteRejectedUnknownMatch
)

func (r VoteResult) String() string {
	switch r {
	case VoteAccepted:
		return "accepted"
	case VoteRejectedNotEligible:
		return "not_eligible"
	case VoteRejectedNotPending:
		return "not_pending"
	case VoteRejectedInvalidLabel:
		return "invalid_label"
	case VoteRejectedUnknownMatch:
		return "unknown_match"
	default:
		return "unknown"
	}
}

type VoteOutcome struct {
	Result   VoteResult
	Replaced bool
	Previous domain.VoteLabel
	Decision lifecycle.Decision
	// state after the vote, nil when the match is unknown
	Match   *domain.MatchRecord
	Changes []domain.RatingChange
	Summary string
}

type MatchService struct {
	store    Store
	book     *lifecycle.Book
	notifier Notifier
	cfg      *config.Config
	logger   zerolog.Logger
	now      func() time.Time
}

func NewMatchService(store Store, book *lifecycle.Book, notifier Notifier, cfg *config.Config, logger zerolog.Logger) *MatchService {
	return &MatchService{
		store:    store,
		book:     book,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger.With().Str("component", "match").Logger(),
		now:      time.Now,
	}
}

func (s *MatchService) Get(ctx context.Context, matchID int64) (*domain.MatchRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()
	return s.store.GetMatch(ctx, matchID)
}

// RegisterVote records a participant's vote for the current round and applies
// whatever transition the tally now reaches. The match ballot stays locked
// until the transition is persisted, so a match is decided at most once.
func (s *MatchService) RegisterVote(ctx context.Context, matchID int64, voterID, rawLabel string) (*VoteOutcome, error) {
	label, ok := domain.ParseVoteLabel(rawLabel)
	if !ok {
		return &VoteOutcome{Result: VoteRejectedInvalidLabel}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	ballot := s.book.Acquire(matchID)
	defer ballot.Release()

	log := s.logger.With().Int64("match_id", matchID).Str("player_id", voterID).Logger()

	match, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		log.Error().Err(err).Msg("failed to load match")
		return nil, fmt.Errorf("failed to load match: %w", err)
	}
	if match == nil {
		ballot.Close()
		return &VoteOutcome{Result: VoteRejectedUnknownMatch}, nil
	}
	if !match.IsPending() {
		ballot.Close()
		return &VoteOutcome{Result: VoteRejectedNotPending, Match: match}, nil
	}
	if _, ok := match.TeamOf(voterID); !ok {
		return &VoteOutcome{Result: VoteRejectedNotEligible, Match: match}, nil
	}

	prev, replaced := ballot.Record(voterID, label)
	decision := lifecycle.Decide(match, ballot.Votes(), s.cfg.SeriesWins)
	out := &VoteOutcome{
		Result:   VoteAccepted,
		Replaced: replaced,
		Previous: prev,
		Decision: decision,
		Match:    match,
	}

	log.Debug().
		Str("label", string(label)).
		Str("leader", string(decision.Leader)).
		Int("leader_votes", decision.LeaderVotes).
		Int("majority", decision.Majority).
		Msg("vote recorded")

	switch decision.Outcome {
	case lifecycle.OutcomeNone:
		return out, nil

	case lifecycle.OutcomeCancelled:
		cancelled, err := s.store.CancelMatch(ctx, matchID)
		if err != nil {
			log.Error().Err(err).Msg("failed to cancel match")
			return nil, fmt.Errorf("failed to cancel match: %w", err)
		}
		ballot.Close()
		if cancelled == nil {
			return s.notPending(ctx, matchID)
		}
		out.Match = cancelled
		out.Summary = FormatCancelled(cancelled)
		log.Info().Msg("match cancelled by vote")

	case lifecycle.OutcomeRoundWon:
		updated, err := s.store.UpdateSeriesScore(ctx, matchID, decision.Team1Score, decision.Team2Score)
		if err != nil {
			log.Error().Err(err).Msg("failed to update series score")
			return nil, fmt.Errorf("failed to update series score: %w", err)
		}
		if updated == nil {
			ballot.Close()
			return s.notPending(ctx, matchID)
		}
		ballot.Reset()
		out.Match = updated
		out.Summary = FormatRoundSummary(decision.Team, decision.Team1Score, decision.Team2Score)
		log.Info().
			Str("team", string(decision.Team)).
			Int("team1_score", decision.Team1Score).
			Int("team2_score", decision.Team2Score).
			Msg("round decided")

	case lifecycle.OutcomeSeriesWon:
		settled, settlements, err := s.settle(ctx, match, decision)
		if err != nil {
			log.Error().Err(err).Msg("failed to settle match")
			return nil, err
		}
		ballot.Close()
		if settled == nil {
			return s.notPending(ctx, matchID)
		}
		out.Match = settled
		out.Changes = rating.Changes(settlements)
		out.Summary = FormatFinalSummary(settled, settlements)
		log.Info().Str("winner", string(decision.Team)).Msg("series decided")
	}

	publish(ctx, s.notifier, s.logger, out.Summary)
	return out, nil
}

// settle rates every participant against the opposing roster as stored
// when the settlement transaction runs, and writes the result atomically.
func (s *MatchService) settle(ctx context.Context, match *domain.MatchRecord, d lifecycle.Decision) (*domain.MatchRecord, []rating.Settlement, error) {
	var settlements []rating.Settlement
	rate := func(players map[string]domain.Player) ([]domain.PlayerUpdate, []domain.RatingChange, error) {
		team1, err := roster(match.Team1IDs, players)
		if err != nil {
			return nil, nil, err
		}
		team2, err := roster(match.Team2IDs, players)
		if err != nil {
			return nil, nil, err
		}
		settlements = rating.Settle(match.ID, team1, team2, d.Team, s.cfg.KFactor)
		return rating.Updates(settlements), rating.Changes(settlements), nil
	}

	settled, err := s.store.SettleMatch(ctx, match.ID, domain.MatchResult{
		Winner:     d.Team,
		Team1Score: d.Team1Score,
		Team2Score: d.Team2Score,
	}, rate)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to settle match: %w", err)
	}
	return settled, settlements, nil
}

func roster(ids []string, players map[string]domain.Player) ([]domain.Player, error) {
	out := make([]domain.Player, 0, len(ids))
	for _, id := range ids {
		p, ok := players[id]
		if !ok {
			return nil, fmt.Errorf("participant %s not found", id)
		}
		out = append(out, p)
	}
	return out, nil
}

// notPending reports a match that left pending while its ballot was open.
func (s *MatchService) notPending(ctx context.Context, matchID int64) (*VoteOutcome, error) {
	match, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load match: %w", err)
	}
	return &VoteOutcome{Result: VoteRejectedNotPending, Match: match}, nil
}

// Timeout discards the tally of a pending match and cancels it without any
// rating change, freeing its players to queue again. It returns nil when the
// match was not pending.
func (s *MatchService) Timeout(ctx context.Context, matchID int64) (*domain.MatchRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	ballot := s.book.Acquire(matchID)
	defer ballot.Release()

	cancelled, err := s.store.CancelMatch(ctx, matchID)
	if err != nil {
		s.logger.Error().Err(err).Int64("match_id", matchID).Msg("failed to cancel timed out match")
		return nil, fmt.Errorf("failed to cancel match: %w", err)
	}
	ballot.Close()

	if cancelled == nil {
		s.logger.Debug().Int64("match_id", matchID).Msg("timeout ignored, match not pending")
		return nil, nil
	}

	s.logger.Info().Int64("match_id", matchID).Msg("match timed out")
	publish(ctx, s.notifier, s.logger, FormatTimedOut(cancelled))
	return cancelled, nil
}

// ResumePending tracks every match left pending by an earlier run, with its
// voting deadline counted from when it was created, so the sweeper can time
// it out. It returns how many matches were tracked.
func (s *MatchService) ResumePending(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	pending, err := s.store.PendingMatches(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load pending matches")
		return 0, fmt.Errorf("failed to load pending matches: %w", err)
	}
	for _, m := range pending {
		deadline := s.book.TrackSince(m.ID, m.CreatedAt)
		s.logger.Debug().Int64("match_id", m.ID).Time("deadline", deadline).Msg("pending match resumed")
	}
	if len(pending) > 0 {
		s.logger.Info().Int("matches", len(pending)).Msg("pending matches resumed")
	}
	return len(pending), nil
}

// SweepExpired times out every tracked match past its voting deadline and
// returns how many were cancelled.
func (s *MatchService) SweepExpired(ctx context.Context) (int, error) {
	var (
		cancelled int
		errs      []error
	)
	for _, id := range s.book.Expired(s.now()) {
		m, err := s.Timeout(ctx, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if m != nil {
			cancelled++
		}
	}
	if cancelled > 0 {
		s.logger.Info().Int("cancelled", cancelled).Msg("expired matches swept")
	}
	return cancelled, errors.Join(errs...)
}
