// README: Dispatch module owns couriers and the exclusive order claim.
package dispatch

import (
	"errors"
	"time"

	"colis/internal/types"
)

type VehicleType string

const (
	VehicleBicycle    VehicleType = "bicycle"
	VehicleMotorcycle VehicleType = "motorcycle"
	VehicleCar        VehicleType = "car"
)

// Courier is the delivery-side account. Available and Verified are the two
// eligibility gates checked before any claim attempt.
type Courier struct {
	ID              types.ID
	Name            string
	Phone           string
	VehicleType     VehicleType
	Available       bool
	Verified        bool
	CompletedOrders int
	LastPosition    *types.Point
	LastSeenAt      *time.Time
	CreatedAt       time.Time
}

// Candidate is a courier near a pickup point, ordered by distance.
type Candidate struct {
	CourierID  types.ID
	DistanceKm float64
}

var (
	ErrCourierNotFound   = errors.New("courier not found")
	ErrCourierIneligible = errors.New("courier is not verified or not available")
	ErrCourierBusy       = errors.New("courier already has an active delivery")
	ErrOrderTaken        = errors.New("order was already taken")
)
