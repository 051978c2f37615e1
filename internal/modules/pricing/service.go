// README: Pricing service computes fare breakdowns and commission splits.
package pricing

import (
	"context"

	"github.com/shopspring/decimal"

	"colis/internal/types"
)

// Store is the persistence surface the pricing engine needs. The Postgres
// implementation lives in store.go; tests provide in-memory fakes.
type Store interface {
	ZoneByID(ctx context.Context, id types.ID) (*Zone, error)
	PromoByCode(ctx context.Context, code string) (*PromoCode, error)
	PromoUsesByClient(ctx context.Context, promoID, clientID types.ID) (int, error)
	HasDeliveredOrder(ctx context.Context, clientID types.ID) (bool, error)
	RedeemPromo(ctx context.Context, promoID types.ID, usage *PromoUsage) error
}

type Service struct {
	store Store
	// commissionRate is fixed at construction; the engine never reads
	// ambient settings mid-computation.
	commissionRate decimal.Decimal
}

func NewService(store Store, commissionRate decimal.Decimal) *Service {
	return &Service{store: store, commissionRate: commissionRate}
}

// Quote prices a candidate order for the zone. Each derived value is rounded
// once, half up, to two decimals; earnings are derived by subtraction so the
// commission split always reconciles to the total.
func (s *Service) Quote(ctx context.Context, zoneID types.ID, distanceKm float64, size PackageSize, surge float64) (FareBreakdown, error) {
	if distanceKm < 0 {
		return FareBreakdown{}, ErrBadDistance
	}
	zone, err := s.store.ZoneByID(ctx, zoneID)
	if err != nil {
		return FareBreakdown{}, err
	}
	if !zone.Active {
		return FareBreakdown{}, ErrZoneInactive
	}
	if surge < 1.0 {
		surge = 1.0
	}

	distancePrice := types.RoundMoney(zone.PricePerKm.Mul(decimal.NewFromFloat(distanceKm)))
	surcharge := size.Surcharge()
	total := types.RoundMoney(
		zone.BasePrice.Add(distancePrice).Add(surcharge).Mul(decimal.NewFromFloat(surge)))

	f := FareBreakdown{
		DistanceKm:    distanceKm,
		BasePrice:     zone.BasePrice,
		DistancePrice: distancePrice,
		Surcharge:     surcharge,
		Discount:      decimal.Zero,
	}
	return s.split(f, total), nil
}

// ApplyDiscount re-prices a breakdown after a promo discount. The discount
// never pushes the total below zero.
func (s *Service) ApplyDiscount(f FareBreakdown, discount types.Money) FareBreakdown {
	gross := f.Total.Add(f.Discount)
	if discount.GreaterThan(gross) {
		discount = gross
	}
	f.Discount = discount
	return s.split(f, gross.Sub(discount))
}

func (s *Service) split(f FareBreakdown, total types.Money) FareBreakdown {
	f.Total = total
	f.Commission = types.RoundMoney(total.Mul(s.commissionRate))
	f.CourierEarnings = total.Sub(f.Commission)
	return f
}
