// README: Rating aggregator; folds scores into per-user running averages.
package rating

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"colis/internal/types"
)

// Store persists ratings and the per-user aggregate. UpdateStats is a
// compare-and-set on the previous count, so two concurrent ratings for the
// same user cannot both fold into the same base average.
type Store interface {
	Append(ctx context.Context, r *Rating) error
	Stats(ctx context.Context, userID types.ID) (UserStats, error)
	UpdateStats(ctx context.Context, stats UserStats, prevCount int) (bool, error)
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

type RecordCommand struct {
	OrderID   types.ID
	RaterID   types.ID
	RatedID   types.ID
	Direction Direction
	Score     int
	Comment   string
	Tags      []string
}

// statsRetries bounds the CAS retry loop; contention on a single user's
// aggregate is rare.
const statsRetries = 5

// Record appends the rating and folds it into the rated user's aggregate:
// newAvg = (oldAvg*oldCount + score) / (oldCount + 1), rounded to two
// decimals, persisted together with the incremented count.
func (s *Service) Record(ctx context.Context, cmd RecordCommand) error {
	if cmd.Score < 1 || cmd.Score > 5 {
		return ErrBadScore
	}
	r := &Rating{
		ID:        types.ID(uuid.NewString()),
		OrderID:   cmd.OrderID,
		RaterID:   cmd.RaterID,
		RatedID:   cmd.RatedID,
		Direction: cmd.Direction,
		Score:     cmd.Score,
		Comment:   cmd.Comment,
		Tags:      cmd.Tags,
		CreatedAt: time.Now(),
	}
	if err := s.store.Append(ctx, r); err != nil {
		return err
	}

	for attempt := 0; attempt < statsRetries; attempt++ {
		stats, err := s.store.Stats(ctx, cmd.RatedID)
		if err != nil {
			return err
		}
		next := fold(stats, cmd.Score)
		ok, err := s.store.UpdateStats(ctx, next, stats.Count)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return fmt.Errorf("rating stats for user %s: too much contention", cmd.RatedID)
}

func (s *Service) Stats(ctx context.Context, userID types.ID) (UserStats, error) {
	return s.store.Stats(ctx, userID)
}

func fold(stats UserStats, score int) UserStats {
	sum := stats.Average.Mul(decimal.NewFromInt(int64(stats.Count))).
		Add(decimal.NewFromInt(int64(score)))
	count := stats.Count + 1
	return UserStats{
		UserID:  stats.UserID,
		Average: types.RoundMoney(sum.Div(decimal.NewFromInt(int64(count)))),
		Count:   count,
	}
}
