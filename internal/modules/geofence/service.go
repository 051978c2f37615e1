// README: Geofence service gates dispatch coordinates and raises courier-position alerts.
package geofence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"colis/internal/types"
)

// Store persists fences and alerts, and keeps the last alert state per
// (order, alert type) pair so a threshold crossing fires exactly once.
type Store interface {
	ActiveFences(ctx context.Context) ([]Geofence, error)
	InsertAlert(ctx context.Context, a *Alert) error
	AlertState(ctx context.Context, orderID types.ID, kind AlertType) (string, error)
	// TransitionAlertState flips the state only when the stored value still
	// equals from; a missing key equals "". Of any concurrent racers for the
	// same (order, alert type), exactly one observes true.
	TransitionAlertState(ctx context.Context, orderID types.ID, kind AlertType, from, to string) (bool, error)
}

type Service struct {
	store Store
	log   *zap.Logger
}

func NewService(store Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, log: log}
}

// CheckRestricted rejects coordinates that fall inside any active restricted
// polygon. Used to gate order creation.
func (s *Service) CheckRestricted(ctx context.Context, points ...types.Point) error {
	fences, err := s.store.ActiveFences(ctx)
	if err != nil {
		return err
	}
	for _, f := range fences {
		if f.Type != TypeRestricted {
			continue
		}
		for _, p := range points {
			if Contains(f.Polygon, p) {
				return ErrRestrictedZone
			}
		}
	}
	return nil
}

// SurgeMultiplier returns the highest multiplier among active surge polygons
// containing p, or 1.0 when none applies.
func (s *Service) SurgeMultiplier(ctx context.Context, p types.Point) (float64, error) {
	fences, err := s.store.ActiveFences(ctx)
	if err != nil {
		return 1.0, err
	}
	mult := 1.0
	for _, f := range fences {
		if f.Type == TypeSurge && f.SurgeMultiplier > mult && Contains(f.Polygon, p) {
			mult = f.SurgeMultiplier
		}
	}
	return mult, nil
}

type TrackCommand struct {
	OrderID   types.ID
	CourierID types.ID
	Position  types.Point
	// Target is the point the courier is heading to (pickup before pickup,
	// dropoff after), Phase the matching proximity alert type.
	Target types.Point
	Phase  AlertType
}

// TrackPosition compares a courier position against the current leg target
// and the allowed coverage area, and raises alerts on threshold crossings.
// Dedup state moves through a compare-and-set per (order, alert type); the
// alert is only inserted by the racer whose state write won, so concurrent
// position updates cannot raise the same crossing twice.
func (s *Service) TrackPosition(ctx context.Context, cmd TrackCommand) ([]Alert, error) {
	var raised []Alert

	dist := DistanceMeters(cmd.Position, cmd.Target)
	prev, err := s.store.AlertState(ctx, cmd.OrderID, cmd.Phase)
	if err != nil {
		return nil, err
	}
	switch {
	case dist <= ProximityThresholdMeters && prev != "near":
		won, err := s.store.TransitionAlertState(ctx, cmd.OrderID, cmd.Phase, prev, "near")
		if err != nil {
			return nil, err
		}
		if won {
			a := s.newAlert(cmd, cmd.Phase, dist)
			if err := s.insert(ctx, a); err != nil {
				return raised, err
			}
			raised = append(raised, *a)
		}
	case dist > ProximityThresholdMeters && prev == "near":
		if _, err := s.store.TransitionAlertState(ctx, cmd.OrderID, cmd.Phase, "near", "far"); err != nil {
			return raised, err
		}
	}

	boundsAlert, err := s.trackBounds(ctx, cmd, dist)
	if err != nil {
		return raised, err
	}
	if boundsAlert != nil {
		raised = append(raised, *boundsAlert)
	}
	return raised, nil
}

// trackBounds tracks the courier against the union of allowed polygons.
// First report outside coverage raises out_of_bounds; later crossings raise
// exit/enter alerts.
func (s *Service) trackBounds(ctx context.Context, cmd TrackCommand, dist float64) (*Alert, error) {
	fences, err := s.store.ActiveFences(ctx)
	if err != nil {
		return nil, err
	}
	covered := false
	inside := false
	for _, f := range fences {
		if f.Type != TypeAllowed {
			continue
		}
		covered = true
		if Contains(f.Polygon, cmd.Position) {
			inside = true
			break
		}
	}
	if !covered {
		return nil, nil
	}

	prev, err := s.store.AlertState(ctx, cmd.OrderID, AlertOutOfBounds)
	if err != nil {
		return nil, err
	}

	var a *Alert
	switch {
	case inside && prev != "in":
		won, err := s.store.TransitionAlertState(ctx, cmd.OrderID, AlertOutOfBounds, prev, "in")
		if err != nil {
			return nil, err
		}
		if won && prev == "out" {
			a = s.newAlert(cmd, AlertEnter, dist)
		}
	case !inside && prev != "out":
		won, err := s.store.TransitionAlertState(ctx, cmd.OrderID, AlertOutOfBounds, prev, "out")
		if err != nil {
			return nil, err
		}
		if won {
			kind := AlertOutOfBounds
			if prev == "in" {
				kind = AlertExit
			}
			a = s.newAlert(cmd, kind, dist)
		}
	}
	if a != nil {
		if err := s.insert(ctx, a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (s *Service) newAlert(cmd TrackCommand, kind AlertType, dist float64) *Alert {
	return &Alert{
		ID:             types.ID(uuid.NewString()),
		OrderID:        cmd.OrderID,
		CourierID:      cmd.CourierID,
		Type:           kind,
		Position:       cmd.Position,
		DistanceMeters: dist,
		CreatedAt:      time.Now(),
	}
}

func (s *Service) insert(ctx context.Context, a *Alert) error {
	if err := s.store.InsertAlert(ctx, a); err != nil {
		return err
	}
	s.log.Info("geofence alert",
		zap.String("order_id", string(a.OrderID)),
		zap.String("type", string(a.Type)),
		zap.Float64("distance_m", a.DistanceMeters))
	return nil
}
