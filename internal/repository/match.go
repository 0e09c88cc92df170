package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"league-matchmaker/internal/domain"

	"github.com/rs/zerolog"
)

type MatchRepository struct {
	q      DBTX
	db     *sql.DB
	logger zerolog.Logger
}

func NewMatchRepository(sqlDB *sql.DB, logger zerolog.Logger) *MatchRepository {
	return &MatchRepository{
		q:      sqlDB,
		db:     sqlDB,
		logger: logger,
	}
}

func (r *MatchRepository) WithTx(tx *sql.Tx) *MatchRepository {
	cp := *r
	cp.q = tx
	return &cp
}

// Create stores a pending match and its rosters in one transaction.
func (r *MatchRepository) Create(ctx context.Context, team1, team2 []string, info domain.MapInfo) (*domain.MatchRecord, error) {
	if len(team1) == 0 || len(team2) == 0 {
		return nil, fmt.Errorf("both teams need at least one player")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO matches (map_mode, map_name, map_emoji, status, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		info.Mode, info.Name, info.Emoji, string(domain.MatchPending), time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert match: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read match id: %w", err)
	}

	rosters := []struct {
		team domain.Team
		ids  []string
	}{
		{domain.Team1, team1},
		{domain.Team2, team2},
	}
	for _, roster := range rosters {
		for pos, playerID := range roster.ids {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO match_players (match_id, player_id, team, position)
				VALUES (?, ?, ?, ?)`,
				id, playerID, string(roster.team), pos,
			)
			if err != nil {
				return nil, fmt.Errorf("failed to insert match player %d/%s: %w", id, playerID, err)
			}
		}
	}

	match, err := r.WithTx(tx).Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit match: %w", err)
	}

	r.logger.Info().Int64("match_id", id).Strs("team1", team1).Strs("team2", team2).Msg("match created")
	return match, nil
}

// Get returns nil when the match does not exist.
func (r *MatchRepository) Get(ctx context.Context, id int64) (*domain.MatchRecord, error) {
	var (
		m           domain.MatchRecord
		status      string
		winner      sql.NullString
		completedAt sql.NullTime
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT id, map_mode, map_name, map_emoji, team1_score, team2_score, status, winner, created_at, completed_at
		FROM matches
		WHERE id = ?`, id,
	).Scan(&m.ID, &m.MapMode, &m.MapName, &m.MapEmoji, &m.Team1Score, &m.Team2Score, &status, &winner, &m.CreatedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match %d: %w", id, err)
	}

	m.Status = domain.MatchStatus(status)
	if winner.Valid {
		m.Winner = domain.Team(winner.String)
	}
	if completedAt.Valid {
		t := completedAt.Time
		m.CompletedAt = &t
	}

	rows, err := r.q.QueryContext(ctx, `
		SELECT player_id, team
		FROM match_players
		WHERE match_id = ?
		ORDER BY team, position`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get match players %d: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var playerID, team string
		if err := rows.Scan(&playerID, &team); err != nil {
			return nil, fmt.Errorf("failed to scan match player: %w", err)
		}
		switch domain.Team(team) {
		case domain.Team1:
			m.Team1IDs = append(m.Team1IDs, playerID)
		case domain.Team2:
			m.Team2IDs = append(m.Team2IDs, playerID)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MatchRepository) HasPending(ctx context.Context, playerID string) (bool, error) {
	var one int
	err := r.q.QueryRowContext(ctx, `
		SELECT 1
		FROM match_players mp
		JOIN matches m ON m.id = mp.match_id
		WHERE mp.player_id = ? AND m.status = ?
		LIMIT 1`, playerID, string(domain.MatchPending),
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check pending match for %s: %w", playerID, err)
	}
	return true, nil
}

// ListPending returns every pending match, oldest first.
func (r *MatchRepository) ListPending(ctx context.Context) ([]*domain.MatchRecord, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id
		FROM matches
		WHERE status = ?
		ORDER BY id`, string(domain.MatchPending),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending matches: %w", err)
	}

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan match id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	matches := make([]*domain.MatchRecord, 0, len(ids))
	for _, id := range ids {
		m, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if m != nil {
			matches = append(matches, m)
		}
	}
	return matches, nil
}

// UpdateSeriesScore returns nil when the match is no longer pending.
func (r *MatchRepository) UpdateSeriesScore(ctx context.Context, id int64, team1Score, team2Score int) (*domain.MatchRecord, error) {
	return r.updatePending(ctx, id, `
		UPDATE matches
		SET team1_score = ?, team2_score = ?
		WHERE id = ? AND status = 'pending'`,
		team1Score, team2Score, id,
	)
}

// Complete returns nil when the match is no longer pending, so a decided
// match is never completed twice.
func (r *MatchRepository) Complete(ctx context.Context, id int64, winner domain.Team) (*domain.MatchRecord, error) {
	return r.updatePending(ctx, id, `
		UPDATE matches
		SET status = 'completed', winner = ?, completed_at = ?
		WHERE id = ? AND status = 'pending'`,
		string(winner), time.Now().UTC(), id,
	)
}

func (r *MatchRepository) Cancel(ctx context.Context, id int64) (*domain.MatchRecord, error) {
	return r.updatePending(ctx, id, `
		UPDATE matches
		SET status = 'cancelled', winner = NULL, completed_at = ?
		WHERE id = ? AND status = 'pending'`,
		time.Now().UTC(), id,
	)
}

func (r *MatchRepository) updatePending(ctx context.Context, id int64, query string, args ...any) (*domain.MatchRecord, error) {
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update match %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		r.logger.Debug().Int64("match_id", id).Msg("match not pending, update skipped")
		return nil, nil
	}
	return r.Get(ctx, id)
}
