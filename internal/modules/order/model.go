// README: Order aggregate, status state machine, and history definitions.
package order

import (
	"errors"
	"time"

	"colis/internal/modules/pricing"
	"colis/internal/types"
)

type Status string

const (
	StatusNone      Status = "none"
	StatusPending   Status = "pending"
	StatusAssigned  Status = "assigned"
	StatusPickedUp  Status = "picked_up"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// AllowedTransitions represents the order state flow as code. Transitions
// are monotonic; cancelled is the single escape, reachable only before
// pickup. Terminal states have no outgoing edges.
var AllowedTransitions = map[Status][]Status{
	StatusPending:  {StatusAssigned, StatusCancelled},
	StatusAssigned: {StatusPickedUp, StatusCancelled},
	StatusPickedUp: {StatusDelivered},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

type Contact struct {
	Name  string
	Phone string
}

type Order struct {
	ID     types.ID
	Number string

	ClientID  types.ID
	CourierID *types.ID
	ZoneID    types.ID

	Status        Status
	StatusVersion int

	Pickup         types.Point
	Dropoff        types.Point
	PickupAddress  string
	DropoffAddress string
	Sender         Contact
	Recipient      Contact

	PackageSize pricing.PackageSize
	PackageNote string

	DistanceKm float64
	Fare       pricing.FareBreakdown
	PromoCode  *string

	// ConfirmationCode is the 4-digit code the recipient gives the courier
	// to confirm delivery.
	ConfirmationCode string

	ClientRating  *int
	ClientReview  *string
	CourierRating *int
	CourierReview *string

	CancelReason *string

	CreatedAt   time.Time
	AssignedAt  *time.Time
	PickedUpAt  *time.Time
	DeliveredAt *time.Time
	CancelledAt *time.Time
	DeletedAt   *time.Time
}

// HistoryRecord is an immutable audit entry appended on every transition.
type HistoryRecord struct {
	ID         int64
	OrderID    types.ID
	FromStatus Status
	ToStatus   Status
	ActorType  string
	ActorID    *types.ID
	Note       *string
	Position   *types.Point
	CreatedAt  time.Time
}

var (
	ErrNotFound            = errors.New("order not found")
	ErrBadRequest          = errors.New("bad request")
	ErrInvalidState        = errors.New("invalid order status transition")
	ErrConflict            = errors.New("order state conflict")
	ErrAlreadyRated        = errors.New("rating already recorded for this order")
	ErrNotDelivered        = errors.New("order is not delivered")
	ErrBadConfirmationCode = errors.New("confirmation code does not match")
)
