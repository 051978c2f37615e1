// README: Geofence polygons and courier-position alerts.
package geofence

import (
	"errors"
	"time"

	"colis/internal/types"
)

type Type string

const (
	TypeAllowed    Type = "allowed"
	TypeRestricted Type = "restricted"
	TypeSurge      Type = "surge"
)

type AlertType string

const (
	AlertEnter             AlertType = "enter"
	AlertExit              AlertType = "exit"
	AlertProximityPickup   AlertType = "proximity_pickup"
	AlertProximityDelivery AlertType = "proximity_delivery"
	AlertOutOfBounds       AlertType = "out_of_bounds"
)

// ProximityThresholdMeters is the distance at which a courier is considered
// to have arrived near a pickup or dropoff point.
const ProximityThresholdMeters = 200.0

type Geofence struct {
	ID              types.ID
	Name            string
	Polygon         []types.Point
	Type            Type
	SurgeMultiplier float64
	Active          bool
}

// Alert is created once per threshold-crossing event and never mutated
// except for the read flag.
type Alert struct {
	ID             types.ID
	OrderID        types.ID
	CourierID      types.ID
	Type           AlertType
	Position       types.Point
	DistanceMeters float64
	Read           bool
	CreatedAt      time.Time
}

var (
	// ErrRestrictedZone rejects orders whose pickup or dropoff falls inside
	// a restricted polygon.
	ErrRestrictedZone = errors.New("coordinates inside a restricted zone")
)
