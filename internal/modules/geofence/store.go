// README: Geofence store backed by PostgreSQL, with alert dedup state in Redis.
package geofence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"colis/internal/types"
)

const (
	alertStateKeyPrefix = "geofence:order:%s:%s:state"
	// Alert state outlives any realistic delivery; keys expire on their own
	// once the order is done.
	alertStateTTL = 48 * time.Hour
)

type PGStore struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func NewPGStore(db *pgxpool.Pool, redis *redis.Client) *PGStore {
	return &PGStore{db: db, redis: redis}
}

func (s *PGStore) ActiveFences(ctx context.Context) ([]Geofence, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, polygon, type, surge_multiplier, active
		FROM geofences
		WHERE active`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fences []Geofence
	for rows.Next() {
		var f Geofence
		var polygon []byte
		if err := rows.Scan(&f.ID, &f.Name, &polygon, &f.Type, &f.SurgeMultiplier, &f.Active); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(polygon, &f.Polygon); err != nil {
			return nil, fmt.Errorf("decode polygon for fence %s: %w", f.ID, err)
		}
		fences = append(fences, f)
	}
	return fences, rows.Err()
}

func (s *PGStore) InsertAlert(ctx context.Context, a *Alert) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO geofence_alerts (
			id, order_id, courier_id, type, lat, lng, distance_meters, read, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		string(a.ID),
		string(a.OrderID),
		string(a.CourierID),
		string(a.Type),
		a.Position.Lat, a.Position.Lng,
		a.DistanceMeters,
		a.Read,
		a.CreatedAt,
	)
	return err
}

func (s *PGStore) AlertState(ctx context.Context, orderID types.ID, kind AlertType) (string, error) {
	val, err := s.redis.Get(ctx, alertStateKey(orderID, kind)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// transitionScript compares the stored state with ARGV[1] (a missing key
// counts as "") and, on match, writes ARGV[2] with the TTL in ARGV[3] ms.
// Redis runs the script atomically, so racing trackers cannot both win.
var transitionScript = redis.NewScript(`
local cur = redis.call("GET", KEYS[1])
if cur == false then cur = "" end
if cur ~= ARGV[1] then return 0 end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1`)

func (s *PGStore) TransitionAlertState(ctx context.Context, orderID types.ID, kind AlertType, from, to string) (bool, error) {
	n, err := transitionScript.Run(ctx, s.redis,
		[]string{alertStateKey(orderID, kind)},
		from, to, alertStateTTL.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func alertStateKey(orderID types.ID, kind AlertType) string {
	return fmt.Sprintf(alertStateKeyPrefix, string(orderID), string(kind))
}
