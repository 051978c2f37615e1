// README: Rating store backed by PostgreSQL.
package rating

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"colis/internal/types"
)

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Append(ctx context.Context, r *Rating) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO ratings (
			id, order_id, rater_id, rated_id, direction, score, comment, tags, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		string(r.ID),
		string(r.OrderID),
		string(r.RaterID),
		string(r.RatedID),
		string(r.Direction),
		r.Score,
		r.Comment,
		r.Tags,
		r.CreatedAt,
	)
	return err
}

func (s *PGStore) Stats(ctx context.Context, userID types.ID) (UserStats, error) {
	row := s.db.QueryRow(ctx, `
		SELECT user_id, average_rating, rating_count
		FROM user_rating_stats
		WHERE user_id = $1`, string(userID))

	var stats UserStats
	err := row.Scan(&stats.UserID, &stats.Average, &stats.Count)
	if errors.Is(err, pgx.ErrNoRows) {
		return UserStats{UserID: userID, Average: decimal.Zero}, nil
	}
	if err != nil {
		return UserStats{}, err
	}
	return stats, nil
}

// UpdateStats inserts or compare-and-sets on the previous count.
func (s *PGStore) UpdateStats(ctx context.Context, stats UserStats, prevCount int) (bool, error) {
	if prevCount == 0 {
		tag, err := s.db.Exec(ctx, `
			INSERT INTO user_rating_stats (user_id, average_rating, rating_count)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id) DO UPDATE
			SET average_rating = EXCLUDED.average_rating,
			    rating_count = EXCLUDED.rating_count
			WHERE user_rating_stats.rating_count = 0`,
			string(stats.UserID), stats.Average, stats.Count)
		if err != nil {
			return false, err
		}
		return tag.RowsAffected() == 1, nil
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE user_rating_stats
		SET average_rating = $1, rating_count = $2
		WHERE user_id = $3 AND rating_count = $4`,
		stats.Average, stats.Count, string(stats.UserID), prevCount)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
