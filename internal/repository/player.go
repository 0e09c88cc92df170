package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"league-matchmaker/internal/constants"
	"league-matchmaker/internal/domain"

	"github.com/rs/zerolog"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const playerColumns = `id, name, rating, wins, losses, division, created_at, updated_at`

type PlayerRepository struct {
	q               DBTX
	db              *sql.DB
	defaultRating   int
	defaultDivision string
	logger          zerolog.Logger
}

func NewPlayerRepository(sqlDB *sql.DB, defaultRating int, defaultDivision string, logger zerolog.Logger) *PlayerRepository {
	return &PlayerRepository{
		q:               sqlDB,
		db:              sqlDB,
		defaultRating:   defaultRating,
		defaultDivision: defaultDivision,
		logger:          logger,
	}
}

func (r *PlayerRepository) WithTx(tx *sql.Tx) *PlayerRepository {
	cp := *r
	cp.q = tx
	return &cp
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlayer(row rowScanner) (domain.Player, error) {
	var p domain.Player
	err := row.Scan(&p.ID, &p.Name, &p.Rating, &p.Wins, &p.Losses, &p.Division, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *PlayerRepository) Get(ctx context.Context, id string) (*domain.Player, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+playerColumns+` FROM players WHERE id = ?`, id)
	p, err := scanPlayer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player %s: %w", id, err)
	}
	return &p, nil
}

func (r *PlayerRepository) GetMany(ctx context.Context, ids []string) (map[string]domain.Player, error) {
	result := make(map[string]domain.Player, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.q.QueryContext(ctx, `SELECT `+playerColumns+` FROM players WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get players: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		result[p.ID] = p
	}
	return result, rows.Err()
}

// Ensure creates the player with the default rating, or refreshes the
// display name and division of an existing one. An empty name keeps the old one.
func (r *PlayerRepository) Ensure(ctx context.Context, id, name, division string) (*domain.Player, error) {
	if division == "" {
		division = r.defaultDivision
	}
	insertName := name
	if insertName == "" {
		insertName = "Player " + id
	}
	now := time.Now().UTC()

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO players (id, name, rating, wins, losses, division, created_at, updated_at)
		VALUES (?, ?, ?, 0, 0, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE
		SET name = CASE WHEN ? <> '' THEN excluded.name ELSE players.name END,
		    division = excluded.division,
		    updated_at = excluded.updated_at`,
		id, insertName, r.defaultRating, division, now, now, name,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("player_id", id).Msg("failed to ensure player")
		return nil, fmt.Errorf("failed to ensure player %s: %w", id, err)
	}

	p, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("player %s missing after upsert", id)
	}
	return p, nil
}

// ApplyUpdates writes ratings and win/loss counters. It must run inside the
// caller's transaction or opens its own.
func (r *PlayerRepository) ApplyUpdates(ctx context.Context, updates []domain.PlayerUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	if _, inTx := r.q.(*sql.Tx); inTx {
		return r.applyUpdates(ctx, updates)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := r.WithTx(tx).applyUpdates(ctx, updates); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *PlayerRepository) applyUpdates(ctx context.Context, updates []domain.PlayerUpdate) error {
	now := time.Now().UTC()
	for i := 0; i < len(updates); i += constants.DBBatchSize {
		end := min(i+constants.DBBatchSize, len(updates))

		for _, u := range updates[i:end] {
			res, err := r.q.ExecContext(ctx, `
				UPDATE players
				SET rating = ?, wins = ?, losses = ?, updated_at = ?
				WHERE id = ?`,
				max(u.Rating, 0), u.Wins, u.Losses, now, u.ID,
			)
			if err != nil {
				return fmt.Errorf("failed to update player %s: %w", u.ID, err)
			}
			if n, err := res.RowsAffected(); err == nil && n == 0 {
				r.logger.Warn().Str("player_id", u.ID).Msg("player update matched no row")
			}
		}
	}
	return nil
}

// Leaderboard returns one page ordered by rating and the total player count.
func (r *PlayerRepository) Leaderboard(ctx context.Context, limit, offset int) ([]domain.Player, int, error) {
	var total int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM players`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count players: %w", err)
	}
	if total == 0 {
		return []domain.Player{}, 0, nil
	}

	rows, err := r.q.QueryContext(ctx, `
		SELECT `+playerColumns+`
		FROM players
		ORDER BY rating DESC, wins DESC, losses ASC, name ASC
		LIMIT ? OFFSET ?`,
		max(limit, 1), max(offset, 0),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load leaderboard: %w", err)
	}
	defer rows.Close()

	players := []domain.Player{}
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan player: %w", err)
		}
		players = append(players, p)
	}
	return players, total, rows.Err()
}
