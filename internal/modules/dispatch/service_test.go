package dispatch

import (
	"context"
	"errors"
	"testing"

	"colis/internal/modules/order"
	"colis/internal/types"
)

// memStore is an in-memory courier Store for testing.
type memStore struct {
	couriers  map[types.ID]*Courier
	positions map[types.ID]types.Point
	nearby    []Candidate
}

func newMemStore(couriers ...*Courier) *memStore {
	m := &memStore{
		couriers:  make(map[types.ID]*Courier),
		positions: make(map[types.ID]types.Point),
	}
	for _, c := range couriers {
		m.couriers[c.ID] = c
	}
	return m
}

func (m *memStore) Get(_ context.Context, id types.ID) (*Courier, error) {
	c, ok := m.couriers[id]
	if !ok {
		return nil, ErrCourierNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) Create(_ context.Context, c *Courier) error {
	cp := *c
	m.couriers[c.ID] = &cp
	return nil
}

func (m *memStore) SetAvailable(_ context.Context, id types.ID, available bool) error {
	c, ok := m.couriers[id]
	if !ok {
		return ErrCourierNotFound
	}
	c.Available = available
	return nil
}

func (m *memStore) UpdatePosition(_ context.Context, id types.ID, pos types.Point) error {
	m.positions[id] = pos
	return nil
}

func (m *memStore) Nearby(_ context.Context, _ types.Point, _ float64, _ int) ([]Candidate, error) {
	return m.nearby, nil
}

// stubOrders fakes the order module's claim surface.
type stubOrders struct {
	busy      map[types.ID]bool
	assignErr error
	assigned  []order.AssignCommand
}

func newStubOrders() *stubOrders {
	return &stubOrders{busy: make(map[types.ID]bool)}
}

func (s *stubOrders) Assign(_ context.Context, cmd order.AssignCommand) error {
	if s.assignErr != nil {
		return s.assignErr
	}
	s.assigned = append(s.assigned, cmd)
	return nil
}

func (s *stubOrders) HasActiveDelivery(_ context.Context, courierID types.ID) (bool, error) {
	return s.busy[courierID], nil
}

func eligibleCourier(id types.ID) *Courier {
	return &Courier{ID: id, Name: "Kossi", VehicleType: VehicleMotorcycle, Available: true, Verified: true}
}

func TestAssign_HappyPath(t *testing.T) {
	store := newMemStore(eligibleCourier("courier-1"))
	orders := newStubOrders()
	svc := NewService(store, orders, SearchConfig{}, nil)

	err := svc.Assign(context.Background(), AssignCommand{
		OrderID: "order-1", CourierID: "courier-1", ActorType: "admin",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(orders.assigned) != 1 {
		t.Fatalf("expected one claim, got %d", len(orders.assigned))
	}
	if store.couriers["courier-1"].Available {
		t.Error("claimed courier must be marked unavailable")
	}
}

func TestAssign_Preconditions(t *testing.T) {
	tests := []struct {
		name    string
		courier *Courier
		busy    bool
		wantErr error
	}{
		{
			name:    "unknown courier",
			courier: nil,
			wantErr: ErrCourierNotFound,
		},
		{
			name: "unverified",
			courier: &Courier{
				ID: "courier-1", Available: true, Verified: false,
			},
			wantErr: ErrCourierIneligible,
		},
		{
			name: "unavailable",
			courier: &Courier{
				ID: "courier-1", Available: false, Verified: true,
			},
			wantErr: ErrCourierIneligible,
		},
		{
			name:    "already delivering",
			courier: eligibleCourier("courier-1"),
			busy:    true,
			wantErr: ErrCourierBusy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			if tt.courier != nil {
				store.couriers[tt.courier.ID] = tt.courier
			}
			orders := newStubOrders()
			orders.busy["courier-1"] = tt.busy
			svc := NewService(store, orders, SearchConfig{}, nil)

			err := svc.Assign(context.Background(), AssignCommand{OrderID: "order-1", CourierID: "courier-1"})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
			if len(orders.assigned) != 0 {
				t.Error("failed preconditions must not reach the claim")
			}
		})
	}
}

func TestAssign_LostRaceMapsToOrderTaken(t *testing.T) {
	for _, claimErr := range []error{order.ErrInvalidState, order.ErrConflict} {
		store := newMemStore(eligibleCourier("courier-1"))
		orders := newStubOrders()
		orders.assignErr = claimErr
		svc := NewService(store, orders, SearchConfig{}, nil)

		err := svc.Assign(context.Background(), AssignCommand{OrderID: "order-1", CourierID: "courier-1"})
		if !errors.Is(err, ErrOrderTaken) {
			t.Errorf("claim error %v: got %v, want ErrOrderTaken", claimErr, err)
		}
		if !store.couriers["courier-1"].Available {
			t.Error("courier must stay available after a lost claim")
		}
	}
}

func TestSetAvailability(t *testing.T) {
	c := eligibleCourier("courier-1")
	c.Available = false
	store := newMemStore(c)
	orders := newStubOrders()
	svc := NewService(store, orders, SearchConfig{}, nil)

	if err := svc.SetAvailability(context.Background(), "courier-1", true); err != nil {
		t.Fatal(err)
	}
	if !store.couriers["courier-1"].Available {
		t.Error("expected courier to be available")
	}

	// Going available mid-delivery is refused.
	store.couriers["courier-1"].Available = false
	orders.busy["courier-1"] = true
	err := svc.SetAvailability(context.Background(), "courier-1", true)
	if !errors.Is(err, ErrCourierBusy) {
		t.Fatalf("got %v, want ErrCourierBusy", err)
	}

	// Going unavailable is always allowed.
	if err := svc.SetAvailability(context.Background(), "courier-1", false); err != nil {
		t.Fatal(err)
	}
}

func TestCandidates_Defaults(t *testing.T) {
	store := newMemStore()
	store.nearby = []Candidate{{CourierID: "courier-1", DistanceKm: 0.8}}
	svc := NewService(store, newStubOrders(), SearchConfig{}, nil)

	cands, err := svc.Candidates(context.Background(), types.Point{Lat: 6.17, Lng: 1.23}, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 1 || cands[0].CourierID != "courier-1" {
		t.Errorf("unexpected candidates: %v", cands)
	}
}
