// README: Promo code validation, discount computation, and redemption.
package pricing

import (
	"context"
	"errors"
	"time"

	"colis/internal/types"
)

type PromoType string

const (
	PromoPercentage   PromoType = "percentage"
	PromoFixed        PromoType = "fixed"
	PromoFreeDelivery PromoType = "free_delivery"
)

type PromoCode struct {
	ID             types.ID
	Code           string
	Type           PromoType
	Value          types.Money
	MinOrderAmount types.Money
	MaxDiscount    *types.Money
	MaxUses        *int
	MaxUsesPerUser int
	CurrentUses    int
	FirstOrderOnly bool
	// Zones restricts applicability when non-empty.
	Zones     []types.ID
	Active    bool
	StartsAt  time.Time
	ExpiresAt time.Time
}

// PromoUsage is one row per application, unique per order.
type PromoUsage struct {
	PromoCodeID     types.ID
	ClientID        types.ID
	OrderID         types.ID
	DiscountApplied types.Money
	CreatedAt       time.Time
}

var (
	ErrPromoNotFound     = errors.New("promo code not found")
	ErrPromoExpired      = errors.New("promo code expired or not active")
	ErrPromoExhausted    = errors.New("promo code usage limit reached")
	ErrPromoAlreadyUsed  = errors.New("promo code already used by this client")
	ErrPromoNotFirst     = errors.New("promo code is for first orders only")
	ErrPromoBelowMin     = errors.New("order amount below promo minimum")
	ErrPromoZoneExcluded = errors.New("promo code not valid in this zone")
)

type PromoCommand struct {
	Code        string
	ClientID    types.ID
	OrderID     types.ID
	ZoneID      types.ID
	OrderAmount types.Money
	// DeliveryFee is the distance-fare component, discounted in full by
	// free_delivery codes.
	DeliveryFee types.Money
}

// PreviewPromo validates the code against the client and amount and returns
// the discount it would grant, without consuming a use.
func (s *Service) PreviewPromo(ctx context.Context, cmd PromoCommand) (types.Money, error) {
	promo, err := s.store.PromoByCode(ctx, cmd.Code)
	if err != nil {
		return types.Money{}, err
	}
	if err := s.validatePromo(ctx, promo, cmd, time.Now()); err != nil {
		return types.Money{}, err
	}
	return discountFor(promo, cmd), nil
}

// ApplyPromo validates, computes the discount, and consumes one use: the
// current_uses increment and the usage row are written in a single
// transaction by the store, so a code can never exceed its cap under
// concurrent redemption.
func (s *Service) ApplyPromo(ctx context.Context, cmd PromoCommand) (types.Money, error) {
	promo, err := s.store.PromoByCode(ctx, cmd.Code)
	if err != nil {
		return types.Money{}, err
	}
	if err := s.validatePromo(ctx, promo, cmd, time.Now()); err != nil {
		return types.Money{}, err
	}
	discount := discountFor(promo, cmd)
	usage := &PromoUsage{
		PromoCodeID:     promo.ID,
		ClientID:        cmd.ClientID,
		OrderID:         cmd.OrderID,
		DiscountApplied: discount,
		CreatedAt:       time.Now(),
	}
	if err := s.store.RedeemPromo(ctx, promo.ID, usage); err != nil {
		return types.Money{}, err
	}
	return discount, nil
}

// validatePromo short-circuits on the first failed rule, in the documented
// order: validity window, global cap, per-user cap, first-order flag,
// minimum amount, zone restriction.
func (s *Service) validatePromo(ctx context.Context, promo *PromoCode, cmd PromoCommand, now time.Time) error {
	if !promo.Active || now.Before(promo.StartsAt) || now.After(promo.ExpiresAt) {
		return ErrPromoExpired
	}
	if promo.MaxUses != nil && promo.CurrentUses >= *promo.MaxUses {
		return ErrPromoExhausted
	}
	if promo.MaxUsesPerUser > 0 {
		uses, err := s.store.PromoUsesByClient(ctx, promo.ID, cmd.ClientID)
		if err != nil {
			return err
		}
		if uses >= promo.MaxUsesPerUser {
			return ErrPromoAlreadyUsed
		}
	}
	if promo.FirstOrderOnly {
		delivered, err := s.store.HasDeliveredOrder(ctx, cmd.ClientID)
		if err != nil {
			return err
		}
		if delivered {
			return ErrPromoNotFirst
		}
	}
	if cmd.OrderAmount.LessThan(promo.MinOrderAmount) {
		return ErrPromoBelowMin
	}
	if len(promo.Zones) > 0 && !containsZone(promo.Zones, cmd.ZoneID) {
		return ErrPromoZoneExcluded
	}
	return nil
}

func discountFor(promo *PromoCode, cmd PromoCommand) types.Money {
	var d types.Money
	switch promo.Type {
	case PromoPercentage:
		d = types.RoundMoney(cmd.OrderAmount.Mul(promo.Value).Div(types.NewMoney(100)))
		if promo.MaxDiscount != nil && d.GreaterThan(*promo.MaxDiscount) {
			d = *promo.MaxDiscount
		}
	case PromoFixed:
		d = promo.Value
		if d.GreaterThan(cmd.OrderAmount) {
			d = cmd.OrderAmount
		}
	case PromoFreeDelivery:
		d = cmd.DeliveryFee
	}
	return types.RoundMoney(d)
}

func containsZone(zones []types.ID, id types.ID) bool {
	for _, z := range zones {
		if z == id {
			return true
		}
	}
	return false
}
