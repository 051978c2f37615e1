// README: Courier store backed by Postgres rows and a Redis GEO index for
// proximity queries.
package dispatch

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"colis/internal/types"
)

const geoKey = "dispatch:couriers:geo"

type PGStore struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func NewPGStore(db *pgxpool.Pool, rdb *redis.Client) *PGStore {
	return &PGStore{db: db, redis: rdb}
}

func (s *PGStore) Create(ctx context.Context, c *Courier) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO couriers (id, name, phone, vehicle_type, available, verified, completed_orders, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.Name, c.Phone, c.VehicleType, c.Available, c.Verified, c.CompletedOrders, c.CreatedAt,
	)
	return err
}

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Courier, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, phone, vehicle_type, available, verified, completed_orders,
		       last_lat, last_lng, last_seen_at, created_at
		FROM couriers WHERE id = $1`, id)

	var c Courier
	var lat, lng sql.NullFloat64
	var seen sql.NullTime
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.VehicleType, &c.Available, &c.Verified,
		&c.CompletedOrders, &lat, &lng, &seen, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCourierNotFound
	}
	if err != nil {
		return nil, err
	}
	if lat.Valid && lng.Valid {
		c.LastPosition = &types.Point{Lat: lat.Float64, Lng: lng.Float64}
	}
	if seen.Valid {
		t := seen.Time
		c.LastSeenAt = &t
	}
	return &c, nil
}

func (s *PGStore) SetAvailable(ctx context.Context, id types.ID, available bool) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE couriers SET available = $1 WHERE id = $2`, available, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCourierNotFound
	}
	if !available {
		// Off-duty couriers leave the proximity index.
		if err := s.redis.ZRem(ctx, geoKey, string(id)).Err(); err != nil {
			return err
		}
	}
	return nil
}

// UpdatePosition writes the hot position to the GEO index and a snapshot to
// the courier row. The row is the fallback when Redis is flushed.
func (s *PGStore) UpdatePosition(ctx context.Context, id types.ID, pos types.Point) error {
	if err := s.redis.GeoAdd(ctx, geoKey, &redis.GeoLocation{
		Name:      string(id),
		Latitude:  pos.Lat,
		Longitude: pos.Lng,
	}).Err(); err != nil {
		return err
	}
	_, err := s.db.Exec(ctx, `
		UPDATE couriers SET last_lat = $1, last_lng = $2, last_seen_at = $3
		WHERE id = $4`, pos.Lat, pos.Lng, time.Now(), id)
	return err
}

func (s *PGStore) Nearby(ctx context.Context, p types.Point, radiusKm float64, limit int) ([]Candidate, error) {
	locs, err := s.redis.GeoSearchLocation(ctx, geoKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Latitude:   p.Lat,
			Longitude:  p.Lng,
			Radius:     radiusKm,
			RadiusUnit: "km",
			Sort:       "ASC",
			Count:      limit,
		},
		WithDist: true,
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, 0, len(locs))
	for _, l := range locs {
		out = append(out, Candidate{CourierID: types.ID(l.Name), DistanceKm: l.Dist})
	}
	return out, nil
}
