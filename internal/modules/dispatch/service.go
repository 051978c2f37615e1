package dispatch

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"colis/internal/modules/order"
	"colis/internal/types"
)

// Orders is the slice of the order lifecycle dispatch needs: the claim
// itself and the busy check backing courier exclusivity.
type Orders interface {
	Assign(ctx context.Context, cmd order.AssignCommand) error
	HasActiveDelivery(ctx context.Context, courierID types.ID) (bool, error)
}

type Store interface {
	Get(ctx context.Context, id types.ID) (*Courier, error)
	Create(ctx context.Context, c *Courier) error
	SetAvailable(ctx context.Context, id types.ID, available bool) error
	UpdatePosition(ctx context.Context, id types.ID, pos types.Point) error
	Nearby(ctx context.Context, p types.Point, radiusKm float64, limit int) ([]Candidate, error)
}

// SearchConfig bounds the candidate search around a pickup point.
type SearchConfig struct {
	RadiusKm      float64
	MaxCandidates int
}

type Service struct {
	store  Store
	orders Orders
	search SearchConfig
	log    *zap.Logger
}

func NewService(store Store, orders Orders, search SearchConfig, log *zap.Logger) *Service {
	if search.RadiusKm <= 0 {
		search.RadiusKm = 5
	}
	if search.MaxCandidates <= 0 {
		search.MaxCandidates = 10
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, orders: orders, search: search, log: log}
}

type AssignCommand struct {
	OrderID   types.ID
	CourierID types.ID
	ActorType string
	ActorID   *types.ID
}

// Assign runs the eligibility gates then hands the claim to the order
// module. The gates are advisory; the conditional claim underneath is what
// actually decides races, so a lost race surfaces as ErrOrderTaken here.
func (s *Service) Assign(ctx context.Context, cmd AssignCommand) error {
	c, err := s.store.Get(ctx, cmd.CourierID)
	if err != nil {
		return err
	}
	if !c.Verified || !c.Available {
		return ErrCourierIneligible
	}
	busy, err := s.orders.HasActiveDelivery(ctx, c.ID)
	if err != nil {
		return err
	}
	if busy {
		return ErrCourierBusy
	}

	err = s.orders.Assign(ctx, order.AssignCommand{
		OrderID:   cmd.OrderID,
		CourierID: cmd.CourierID,
		ActorType: cmd.ActorType,
		ActorID:   cmd.ActorID,
	})
	switch {
	case err == nil:
	case errors.Is(err, order.ErrInvalidState), errors.Is(err, order.ErrConflict):
		return ErrOrderTaken
	default:
		return err
	}

	if err := s.store.SetAvailable(ctx, c.ID, false); err != nil {
		s.log.Warn("mark courier unavailable", zap.String("courier_id", string(c.ID)), zap.Error(err))
	}
	return nil
}

// SetAvailability toggles the courier's dispatch eligibility. Going
// available is refused while a delivery is in flight.
func (s *Service) SetAvailability(ctx context.Context, courierID types.ID, available bool) error {
	if available {
		busy, err := s.orders.HasActiveDelivery(ctx, courierID)
		if err != nil {
			return err
		}
		if busy {
			return ErrCourierBusy
		}
	}
	return s.store.SetAvailable(ctx, courierID, available)
}

func (s *Service) UpdatePosition(ctx context.Context, courierID types.ID, pos types.Point) error {
	return s.store.UpdatePosition(ctx, courierID, pos)
}

// Candidates lists verified available couriers near the pickup point,
// closest first.
func (s *Service) Candidates(ctx context.Context, pickup types.Point, radiusKm float64, limit int) ([]Candidate, error) {
	if radiusKm <= 0 {
		radiusKm = s.search.RadiusKm
	}
	if limit <= 0 {
		limit = s.search.MaxCandidates
	}
	return s.store.Nearby(ctx, pickup, radiusKm, limit)
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Courier, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) Register(ctx context.Context, c *Courier) error {
	return s.store.Create(ctx, c)
}
