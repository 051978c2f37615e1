// README: Zone pricing parameters and fare breakdown definitions.
package pricing

import (
	"errors"

	"colis/internal/types"
)

// Zone is a pricing-parameter lookup; it never changes during a quote.
type Zone struct {
	ID         types.ID
	Name       string
	BasePrice  types.Money
	PricePerKm types.Money
	Active     bool
}

type PackageSize string

const (
	PackageSmall  PackageSize = "small"
	PackageMedium PackageSize = "medium"
	PackageLarge  PackageSize = "large"
)

// Surcharge returns the flat package surcharge for the size. Unknown sizes
// price as small.
func (p PackageSize) Surcharge() types.Money {
	switch p {
	case PackageMedium:
		return types.NewMoney(500)
	case PackageLarge:
		return types.NewMoney(1000)
	default:
		return types.NewMoney(0)
	}
}

// FareBreakdown is the priced result of a quote. Total always reconciles:
// Commission + CourierEarnings == Total.
type FareBreakdown struct {
	DistanceKm      float64
	BasePrice       types.Money
	DistancePrice   types.Money
	Surcharge       types.Money
	Discount        types.Money
	Total           types.Money
	Commission      types.Money
	CourierEarnings types.Money
}

var (
	ErrZoneNotFound = errors.New("zone not found")
	ErrZoneInactive = errors.New("zone is not active")
	ErrBadDistance  = errors.New("distance must not be negative")
)
