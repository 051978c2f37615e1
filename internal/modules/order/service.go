// README: Order service drives the lifecycle state machine and its
// money-affecting side effects.
package order

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"colis/internal/events"
	"colis/internal/modules/geofence"
	"colis/internal/modules/pricing"
	"colis/internal/modules/rating"
	"colis/internal/types"
)

// Pricer is the slice of the pricing engine the order lifecycle needs.
type Pricer interface {
	Quote(ctx context.Context, zoneID types.ID, distanceKm float64, size pricing.PackageSize, surge float64) (pricing.FareBreakdown, error)
	ApplyPromo(ctx context.Context, cmd pricing.PromoCommand) (types.Money, error)
	ApplyDiscount(f pricing.FareBreakdown, discount types.Money) pricing.FareBreakdown
}

// Guard gates order coordinates against the geofence layer.
type Guard interface {
	CheckRestricted(ctx context.Context, points ...types.Point) error
	SurgeMultiplier(ctx context.Context, p types.Point) (float64, error)
}

// DistanceEstimator returns the travel distance between two points. The
// maps-backed implementation may fail; the service falls back to the
// great-circle distance.
type DistanceEstimator interface {
	DistanceKm(ctx context.Context, from, to types.Point) (float64, error)
}

// Rater folds delivered-order scores into user aggregates.
type Rater interface {
	Record(ctx context.Context, cmd rating.RecordCommand) error
}

type Deps struct {
	Store     Store
	Pricing   Pricer
	Geofence  Guard
	Distance  DistanceEstimator
	Rating    Rater
	Publisher events.Publisher
	Log       *zap.Logger
}

type Service struct {
	store     Store
	pricing   Pricer
	fences    Guard
	distance  DistanceEstimator
	rater     Rater
	publisher events.Publisher
	log       *zap.Logger
}

func NewService(deps Deps) *Service {
	if deps.Publisher == nil {
		deps.Publisher = events.Nop{}
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	return &Service{
		store:     deps.Store,
		pricing:   deps.Pricing,
		fences:    deps.Geofence,
		distance:  deps.Distance,
		rater:     deps.Rating,
		publisher: deps.Publisher,
		log:       deps.Log,
	}
}

type CreateCommand struct {
	ClientID       types.ID
	ZoneID         types.ID
	Pickup         types.Point
	Dropoff        types.Point
	PickupAddress  string
	DropoffAddress string
	Sender         Contact
	Recipient      Contact
	PackageSize    pricing.PackageSize
	PackageNote    string
	PromoCode      string
}

// Create quotes and persists a new order in pending state. Coordinates in a
// restricted polygon are rejected before anything is written.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Order, error) {
	if cmd.ClientID == "" || cmd.ZoneID == "" {
		return nil, ErrBadRequest
	}
	if err := s.fences.CheckRestricted(ctx, cmd.Pickup, cmd.Dropoff); err != nil {
		return nil, err
	}

	distanceKm := s.estimateDistance(ctx, cmd.Pickup, cmd.Dropoff)
	surge, err := s.fences.SurgeMultiplier(ctx, cmd.Pickup)
	if err != nil {
		return nil, err
	}
	fare, err := s.pricing.Quote(ctx, cmd.ZoneID, distanceKm, cmd.PackageSize, surge)
	if err != nil {
		return nil, err
	}

	id := types.ID(uuid.NewString())
	now := time.Now()

	var promoCode *string
	if cmd.PromoCode != "" {
		discount, err := s.pricing.ApplyPromo(ctx, pricing.PromoCommand{
			Code:        cmd.PromoCode,
			ClientID:    cmd.ClientID,
			OrderID:     id,
			ZoneID:      cmd.ZoneID,
			OrderAmount: fare.Total,
			DeliveryFee: fare.DistancePrice,
		})
		if err != nil {
			return nil, err
		}
		fare = s.pricing.ApplyDiscount(fare, discount)
		promoCode = &cmd.PromoCode
	}

	o := &Order{
		ID:               id,
		Number:           newOrderNumber(now),
		ClientID:         cmd.ClientID,
		ZoneID:           cmd.ZoneID,
		Status:           StatusPending,
		StatusVersion:    0,
		Pickup:           cmd.Pickup,
		Dropoff:          cmd.Dropoff,
		PickupAddress:    cmd.PickupAddress,
		DropoffAddress:   cmd.DropoffAddress,
		Sender:           cmd.Sender,
		Recipient:        cmd.Recipient,
		PackageSize:      cmd.PackageSize,
		PackageNote:      cmd.PackageNote,
		DistanceKm:       distanceKm,
		Fare:             fare,
		PromoCode:        promoCode,
		ConfirmationCode: newConfirmationCode(),
		CreatedAt:        now,
	}
	rec := newHistory(o.ID, StatusNone, StatusPending, "client", &cmd.ClientID, nil, nil)
	if err := s.store.Create(ctx, o, rec); err != nil {
		return nil, err
	}
	s.publishStatus(o, StatusNone, StatusPending)
	return o, nil
}

type AssignCommand struct {
	OrderID   types.ID
	CourierID types.ID
	ActorType string
	ActorID   *types.ID
}

// Assign binds the courier and moves pending -> assigned. The conditional
// claim in the store is what guarantees exactly one winner when two dispatch
// attempts race for the same order or the same courier.
func (s *Service) Assign(ctx context.Context, cmd AssignCommand) error {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if o.CourierID != nil || !CanTransition(o.Status, StatusAssigned) {
		return ErrInvalidState
	}
	rec := newHistory(o.ID, o.Status, StatusAssigned, cmd.ActorType, cmd.ActorID, nil, nil)
	ok, err := s.store.AssignCourier(ctx, o.ID, cmd.CourierID, o.StatusVersion, rec)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	o.CourierID = &cmd.CourierID
	s.publishStatus(o, o.Status, StatusAssigned)
	return nil
}

// HasActiveDelivery reports whether the courier is currently bound to an
// order in assigned or picked_up state.
func (s *Service) HasActiveDelivery(ctx context.Context, courierID types.ID) (bool, error) {
	return s.store.HasActiveByCourier(ctx, courierID)
}

type PickupCommand struct {
	OrderID  types.ID
	Position *types.Point
}

func (s *Service) Pickup(ctx context.Context, cmd PickupCommand) error {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if !CanTransition(o.Status, StatusPickedUp) {
		return ErrInvalidState
	}
	rec := newHistory(o.ID, o.Status, StatusPickedUp, "courier", o.CourierID, nil, cmd.Position)
	ok, err := s.store.MarkPickedUp(ctx, o.ID, o.StatusVersion, rec)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	s.publishStatus(o, o.Status, StatusPickedUp)
	return nil
}

type DeliverCommand struct {
	OrderID          types.ID
	ConfirmationCode string
	Position         *types.Point
}

// Deliver closes the order and settles it: the status write, the courier
// wallet credit, and the lifetime order counter move in one transaction.
func (s *Service) Deliver(ctx context.Context, cmd DeliverCommand) error {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if !CanTransition(o.Status, StatusDelivered) {
		return ErrInvalidState
	}
	if cmd.ConfirmationCode != o.ConfirmationCode {
		return ErrBadConfirmationCode
	}

	rec := newHistory(o.ID, o.Status, StatusDelivered, "courier", o.CourierID, nil, cmd.Position)
	ok, err := s.store.Deliver(ctx, o, o.Fare.CourierEarnings, rec)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	s.log.Info("order delivered",
		zap.String("order_id", string(o.ID)),
		zap.String("earnings", o.Fare.CourierEarnings.String()))
	s.publishStatus(o, o.Status, StatusDelivered)
	return nil
}

type CancelCommand struct {
	OrderID   types.ID
	ActorType string
	ActorID   *types.ID
	Reason    string
}

// Cancel is legal from pending and assigned only; a bound courier is freed
// in the same transaction.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) error {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if !CanTransition(o.Status, StatusCancelled) {
		return ErrInvalidState
	}
	rec := newHistory(o.ID, o.Status, StatusCancelled, cmd.ActorType, cmd.ActorID, &cmd.Reason, nil)
	ok, err := s.store.Cancel(ctx, o.ID, o.Status, o.StatusVersion, cmd.Reason, rec)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	s.publishStatus(o, o.Status, StatusCancelled)
	return nil
}

type RateCommand struct {
	OrderID   types.ID
	Direction rating.Direction
	Score     int
	Review    string
	Tags      []string
}

// Rate records a write-once score on a delivered order and folds it into
// the rated user's aggregate.
func (s *Service) Rate(ctx context.Context, cmd RateCommand) error {
	if cmd.Score < 1 || cmd.Score > 5 {
		return rating.ErrBadScore
	}
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if o.Status != StatusDelivered {
		return ErrNotDelivered
	}
	if o.CourierID == nil {
		return ErrInvalidState
	}

	var field string
	var raterID, ratedID types.ID
	switch cmd.Direction {
	case rating.ClientToCourier:
		if o.ClientRating != nil {
			return ErrAlreadyRated
		}
		field, raterID, ratedID = "client", o.ClientID, *o.CourierID
	case rating.CourierToClient:
		if o.CourierRating != nil {
			return ErrAlreadyRated
		}
		field, raterID, ratedID = "courier", *o.CourierID, o.ClientID
	default:
		return ErrBadRequest
	}

	ok, err := s.store.SetRating(ctx, o.ID, field, cmd.Score, cmd.Review)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAlreadyRated
	}
	return s.rater.Record(ctx, rating.RecordCommand{
		OrderID:   o.ID,
		RaterID:   raterID,
		RatedID:   ratedID,
		Direction: cmd.Direction,
		Score:     cmd.Score,
		Comment:   cmd.Review,
		Tags:      cmd.Tags,
	})
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Order, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) History(ctx context.Context, id types.ID) ([]HistoryRecord, error) {
	return s.store.History(ctx, id)
}

func (s *Service) estimateDistance(ctx context.Context, from, to types.Point) float64 {
	if s.distance != nil {
		if km, err := s.distance.DistanceKm(ctx, from, to); err == nil {
			return km
		}
		s.log.Debug("route distance lookup failed, using great-circle fallback")
	}
	return geofence.HaversineKm(from, to)
}

// newHistory builds the record a transition hands to the store; the store
// appends it inside the same transaction as the status write.
func newHistory(orderID types.ID, from, to Status, actorType string, actorID *types.ID, note *string, pos *types.Point) *HistoryRecord {
	return &HistoryRecord{
		OrderID:    orderID,
		FromStatus: from,
		ToStatus:   to,
		ActorType:  actorType,
		ActorID:    actorID,
		Note:       note,
		Position:   pos,
		CreatedAt:  time.Now(),
	}
}

func (s *Service) publishStatus(o *Order, from, to Status) {
	courierID := ""
	if o.CourierID != nil {
		courierID = string(*o.CourierID)
	}
	payload, err := json.Marshal(events.OrderStatusEvent{
		OrderID:     string(o.ID),
		OrderNumber: o.Number,
		FromStatus:  string(from),
		ToStatus:    string(to),
		ClientID:    string(o.ClientID),
		CourierID:   courierID,
		At:          time.Now().UTC(),
	})
	if err != nil {
		return
	}
	if err := s.publisher.Publish(events.TopicOrderStatus, payload); err != nil {
		s.log.Warn("publish order event", zap.String("order_id", string(o.ID)), zap.Error(err))
	}
}

// newOrderNumber builds the human-readable unique number, e.g. CL-20260831-4f2a1c.
func newOrderNumber(now time.Time) string {
	var b [3]byte
	_, _ = rand.Read(b[:])
	return fmt.Sprintf("CL-%s-%s", now.Format("20060102"), hex.EncodeToString(b[:]))
}

// newConfirmationCode returns the 4-digit recipient code.
func newConfirmationCode() string {
	var b [4]byte
	_, _ = rand.Read(b[:])
	n := binary.BigEndian.Uint32(b[:]) % 10000
	return fmt.Sprintf("%04d", n)
}
