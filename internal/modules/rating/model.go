// README: Append-only ratings and per-user running aggregates.
package rating

import (
	"errors"
	"time"

	"colis/internal/types"
)

type Direction string

const (
	ClientToCourier Direction = "client_to_courier"
	CourierToClient Direction = "courier_to_client"
)

// Rating rows are append-only; a recorded score is never amended.
type Rating struct {
	ID        types.ID
	OrderID   types.ID
	RaterID   types.ID
	RatedID   types.ID
	Direction Direction
	Score     int
	Comment   string
	Tags      []string
	CreatedAt time.Time
}

// UserStats is the running average kept per rated user, updated with the
// incremental mean formula and persisted together with the count.
type UserStats struct {
	UserID  types.ID
	Average types.Money
	Count   int
}

var (
	ErrBadScore = errors.New("score must be between 1 and 5")
)
