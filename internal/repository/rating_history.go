package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"league-matchmaker/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

type RatingHistoryRepository struct {
	q      DBTX
	db     *sql.DB
	logger zerolog.Logger
}

func NewRatingHistoryRepository(sqlDB *sql.DB, logger zerolog.Logger) *RatingHistoryRepository {
	return &RatingHistoryRepository{
		q:      sqlDB,
		db:     sqlDB,
		logger: logger,
	}
}

func (r *RatingHistoryRepository) WithTx(tx *sql.Tx) *RatingHistoryRepository {
	cp := *r
	cp.q = tx
	return &cp
}

// InsertBatch must be called with a transaction-bound repository.
func (r *RatingHistoryRepository) InsertBatch(ctx context.Context, records []domain.RatingChange) error {
	if len(records) == 0 {
		return nil
	}

	now := time.Now().UTC()
	for _, record := range records {
		id := record.ID
		if id == "" {
			var err error
			id, err = gonanoid.New()
			if err != nil {
				return fmt.Errorf("failed to generate nanoid: %w", err)
			}
		}
		createdAt := record.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}

		_, err := r.q.ExecContext(ctx, `
			INSERT INTO rating_history (id, match_id, player_id, rating_before, delta, rating_after, won, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, record.MatchID, record.PlayerID, record.Before, record.Delta, record.After, record.Won, createdAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert rating history: %w", err)
		}
	}

	return nil
}

func (r *RatingHistoryRepository) GetByPlayer(ctx context.Context, playerID string, limit int) ([]domain.RatingChange, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, match_id, player_id, rating_before, delta, rating_after, won, created_at
		FROM rating_history
		WHERE player_id = ?
		ORDER BY created_at DESC, match_id DESC
		LIMIT ?`,
		playerID, max(limit, 1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get rating history for %s: %w", playerID, err)
	}
	defer rows.Close()

	result := []domain.RatingChange{}
	for rows.Next() {
		var c domain.RatingChange
		if err := rows.Scan(&c.ID, &c.MatchID, &c.PlayerID, &c.Before, &c.Delta, &c.After, &c.Won, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rating history: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}
