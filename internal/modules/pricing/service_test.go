package pricing

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"colis/internal/types"
)

// memStore is an in-memory pricing Store for testing.
type memStore struct {
	zones     map[types.ID]*Zone
	promos    map[string]*PromoCode
	usesBy    map[string]int
	delivered map[types.ID]bool
	redeemed  []PromoUsage
}

func newMemStore() *memStore {
	return &memStore{
		zones:     make(map[types.ID]*Zone),
		promos:    make(map[string]*PromoCode),
		usesBy:    make(map[string]int),
		delivered: make(map[types.ID]bool),
	}
}

func (m *memStore) ZoneByID(_ context.Context, id types.ID) (*Zone, error) {
	z, ok := m.zones[id]
	if !ok {
		return nil, ErrZoneNotFound
	}
	return z, nil
}

func (m *memStore) PromoByCode(_ context.Context, code string) (*PromoCode, error) {
	p, ok := m.promos[code]
	if !ok {
		return nil, ErrPromoNotFound
	}
	return p, nil
}

func (m *memStore) PromoUsesByClient(_ context.Context, promoID, clientID types.ID) (int, error) {
	return m.usesBy[string(promoID)+":"+string(clientID)], nil
}

func (m *memStore) HasDeliveredOrder(_ context.Context, clientID types.ID) (bool, error) {
	return m.delivered[clientID], nil
}

func (m *memStore) RedeemPromo(_ context.Context, promoID types.ID, usage *PromoUsage) error {
	p := m.promoByID(promoID)
	if p == nil {
		return ErrPromoNotFound
	}
	if p.MaxUses != nil && p.CurrentUses >= *p.MaxUses {
		return ErrPromoExhausted
	}
	p.CurrentUses++
	m.usesBy[string(promoID)+":"+string(usage.ClientID)]++
	m.redeemed = append(m.redeemed, *usage)
	return nil
}

func (m *memStore) promoByID(id types.ID) *PromoCode {
	for _, p := range m.promos {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func money(s string) types.Money {
	return decimal.RequireFromString(s)
}

func testService(store *memStore) *Service {
	return NewService(store, money("0.15"))
}

func storeWithZone() *memStore {
	store := newMemStore()
	store.zones["zone-1"] = &Zone{
		ID:         "zone-1",
		Name:       "downtown",
		BasePrice:  money("500"),
		PricePerKm: money("200"),
		Active:     true,
	}
	return store
}

func TestQuote_StandardBreakdown(t *testing.T) {
	svc := testService(storeWithZone())

	f, err := svc.Quote(context.Background(), "zone-1", 4.5, PackageSmall, 1.0)
	if err != nil {
		t.Fatal(err)
	}

	checks := []struct {
		name string
		got  types.Money
		want string
	}{
		{"base", f.BasePrice, "500"},
		{"distance", f.DistancePrice, "900"},
		{"surcharge", f.Surcharge, "0"},
		{"total", f.Total, "1400"},
		{"commission", f.Commission, "210"},
		{"earnings", f.CourierEarnings, "1190"},
	}
	for _, c := range checks {
		if !c.got.Equal(money(c.want)) {
			t.Errorf("%s = %s, want %s", c.name, c.got, c.want)
		}
	}
	if !f.Commission.Add(f.CourierEarnings).Equal(f.Total) {
		t.Error("commission split does not reconcile to total")
	}
}

func TestQuote_PackageSurcharges(t *testing.T) {
	svc := testService(storeWithZone())

	tests := []struct {
		size      PackageSize
		wantTotal string
	}{
		{PackageSmall, "1400"},
		{PackageMedium, "1900"},
		{PackageLarge, "2400"},
	}
	for _, tt := range tests {
		t.Run(string(tt.size), func(t *testing.T) {
			f, err := svc.Quote(context.Background(), "zone-1", 4.5, tt.size, 1.0)
			if err != nil {
				t.Fatal(err)
			}
			if !f.Total.Equal(money(tt.wantTotal)) {
				t.Errorf("total = %s, want %s", f.Total, tt.wantTotal)
			}
		})
	}
}

func TestQuote_SurgeMultiplier(t *testing.T) {
	svc := testService(storeWithZone())

	f, err := svc.Quote(context.Background(), "zone-1", 4.5, PackageSmall, 1.5)
	if err != nil {
		t.Fatal(err)
	}
	if !f.Total.Equal(money("2100")) {
		t.Errorf("surged total = %s, want 2100", f.Total)
	}
	if !f.Commission.Equal(money("315")) {
		t.Errorf("commission = %s, want 315", f.Commission)
	}

	// Multipliers below 1.0 are clamped, never a discount.
	f, err = svc.Quote(context.Background(), "zone-1", 4.5, PackageSmall, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if !f.Total.Equal(money("1400")) {
		t.Errorf("clamped total = %s, want 1400", f.Total)
	}
}

func TestQuote_RoundingHalfUp(t *testing.T) {
	store := newMemStore()
	store.zones["zone-1"] = &Zone{
		ID:         "zone-1",
		BasePrice:  money("100"),
		PricePerKm: money("3"),
		Active:     true,
	}
	svc := testService(store)

	// 3 * 1.115 = 3.345, rounds half up to 3.35 (not banker's 3.34).
	f, err := svc.Quote(context.Background(), "zone-1", 1.115, PackageSmall, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	if !f.DistancePrice.Equal(money("3.35")) {
		t.Errorf("distance price = %s, want 3.35", f.DistancePrice)
	}
}

func TestQuote_Errors(t *testing.T) {
	store := storeWithZone()
	store.zones["zone-off"] = &Zone{ID: "zone-off", BasePrice: money("500"), PricePerKm: money("200"), Active: false}
	svc := testService(store)

	_, err := svc.Quote(context.Background(), "zone-1", -1, PackageSmall, 1.0)
	if !errors.Is(err, ErrBadDistance) {
		t.Errorf("negative distance: got %v, want ErrBadDistance", err)
	}

	_, err = svc.Quote(context.Background(), "missing", 1, PackageSmall, 1.0)
	if !errors.Is(err, ErrZoneNotFound) {
		t.Errorf("missing zone: got %v, want ErrZoneNotFound", err)
	}

	_, err = svc.Quote(context.Background(), "zone-off", 1, PackageSmall, 1.0)
	if !errors.Is(err, ErrZoneInactive) {
		t.Errorf("inactive zone: got %v, want ErrZoneInactive", err)
	}
}

func TestQuote_ZeroDistance(t *testing.T) {
	svc := testService(storeWithZone())
	f, err := svc.Quote(context.Background(), "zone-1", 0, PackageSmall, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	if !f.Total.Equal(money("500")) {
		t.Errorf("zero-distance total = %s, want base only 500", f.Total)
	}
}

func TestApplyDiscount(t *testing.T) {
	svc := testService(storeWithZone())
	f, err := svc.Quote(context.Background(), "zone-1", 4.5, PackageSmall, 1.0)
	if err != nil {
		t.Fatal(err)
	}

	d := svc.ApplyDiscount(f, money("400"))
	if !d.Total.Equal(money("1000")) {
		t.Errorf("discounted total = %s, want 1000", d.Total)
	}
	if !d.Commission.Equal(money("150")) {
		t.Errorf("commission recomputed = %s, want 150", d.Commission)
	}
	if !d.CourierEarnings.Equal(money("850")) {
		t.Errorf("earnings = %s, want 850", d.CourierEarnings)
	}

	// A discount larger than the total clamps to zero, never negative.
	d = svc.ApplyDiscount(f, money("9999"))
	if !d.Total.Equal(money("0")) {
		t.Errorf("over-discounted total = %s, want 0", d.Total)
	}
	if !d.Discount.Equal(money("1400")) {
		t.Errorf("clamped discount = %s, want 1400", d.Discount)
	}
}
