package pricing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"colis/internal/types"
)

func intPtr(n int) *int { return &n }

func welcomePromo() *PromoCode {
	max := money("500")
	return &PromoCode{
		ID:             "promo-1",
		Code:           "BIENVENUE",
		Type:           PromoPercentage,
		Value:          money("50"),
		MinOrderAmount: money("1000"),
		MaxDiscount:    &max,
		MaxUses:        intPtr(100),
		MaxUsesPerUser: 1,
		FirstOrderOnly: true,
		Active:         true,
		StartsAt:       time.Now().Add(-24 * time.Hour),
		ExpiresAt:      time.Now().Add(24 * time.Hour),
	}
}

func storeWithPromo(p *PromoCode) *memStore {
	store := newMemStore()
	store.promos[p.Code] = p
	return store
}

func TestApplyPromo_PercentageCappedByMaxDiscount(t *testing.T) {
	store := storeWithPromo(welcomePromo())
	svc := testService(store)

	// 50% of 1200 is 600, capped at 500.
	d, err := svc.ApplyPromo(context.Background(), PromoCommand{
		Code:        "BIENVENUE",
		ClientID:    "client-1",
		OrderID:     "order-1",
		OrderAmount: money("1200"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !d.Equal(money("500")) {
		t.Errorf("discount = %s, want 500", d)
	}
	if len(store.redeemed) != 1 {
		t.Fatalf("expected one usage row, got %d", len(store.redeemed))
	}
	if !store.redeemed[0].DiscountApplied.Equal(money("500")) {
		t.Errorf("recorded discount = %s, want 500", store.redeemed[0].DiscountApplied)
	}
}

func TestApplyPromo_FixedClampedToAmount(t *testing.T) {
	p := welcomePromo()
	p.Type = PromoFixed
	p.Value = money("2000")
	p.MinOrderAmount = money("0")
	p.MaxDiscount = nil
	svc := testService(storeWithPromo(p))

	d, err := svc.ApplyPromo(context.Background(), PromoCommand{
		Code:        "BIENVENUE",
		ClientID:    "client-1",
		OrderID:     "order-1",
		OrderAmount: money("1200"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !d.Equal(money("1200")) {
		t.Errorf("discount = %s, want clamped 1200", d)
	}
}

func TestApplyPromo_FreeDelivery(t *testing.T) {
	p := welcomePromo()
	p.Type = PromoFreeDelivery
	p.MinOrderAmount = money("0")
	svc := testService(storeWithPromo(p))

	d, err := svc.ApplyPromo(context.Background(), PromoCommand{
		Code:        "BIENVENUE",
		ClientID:    "client-1",
		OrderID:     "order-1",
		OrderAmount: money("1400"),
		DeliveryFee: money("900"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !d.Equal(money("900")) {
		t.Errorf("discount = %s, want delivery fee 900", d)
	}
}

func TestApplyPromo_ValidationRules(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *PromoCode, store *memStore)
		cmd     PromoCommand
		wantErr error
	}{
		{
			name:    "unknown code",
			mutate:  func(p *PromoCode, store *memStore) { delete(store.promos, p.Code) },
			cmd:     PromoCommand{Code: "BIENVENUE", ClientID: "c1", OrderAmount: money("1200")},
			wantErr: ErrPromoNotFound,
		},
		{
			name:    "inactive",
			mutate:  func(p *PromoCode, _ *memStore) { p.Active = false },
			cmd:     PromoCommand{Code: "BIENVENUE", ClientID: "c1", OrderAmount: money("1200")},
			wantErr: ErrPromoExpired,
		},
		{
			name:    "expired",
			mutate:  func(p *PromoCode, _ *memStore) { p.ExpiresAt = time.Now().Add(-time.Hour) },
			cmd:     PromoCommand{Code: "BIENVENUE", ClientID: "c1", OrderAmount: money("1200")},
			wantErr: ErrPromoExpired,
		},
		{
			name:    "not started",
			mutate:  func(p *PromoCode, _ *memStore) { p.StartsAt = time.Now().Add(time.Hour) },
			cmd:     PromoCommand{Code: "BIENVENUE", ClientID: "c1", OrderAmount: money("1200")},
			wantErr: ErrPromoExpired,
		},
		{
			name:    "global cap reached",
			mutate:  func(p *PromoCode, _ *memStore) { p.CurrentUses = 100 },
			cmd:     PromoCommand{Code: "BIENVENUE", ClientID: "c1", OrderAmount: money("1200")},
			wantErr: ErrPromoExhausted,
		},
		{
			name: "already used by client",
			mutate: func(p *PromoCode, store *memStore) {
				store.usesBy[string(p.ID)+":c1"] = 1
			},
			cmd:     PromoCommand{Code: "BIENVENUE", ClientID: "c1", OrderAmount: money("1200")},
			wantErr: ErrPromoAlreadyUsed,
		},
		{
			name: "not a first order",
			mutate: func(_ *PromoCode, store *memStore) {
				store.delivered["c1"] = true
			},
			cmd:     PromoCommand{Code: "BIENVENUE", ClientID: "c1", OrderAmount: money("1200")},
			wantErr: ErrPromoNotFirst,
		},
		{
			name:    "below minimum amount",
			mutate:  func(_ *PromoCode, _ *memStore) {},
			cmd:     PromoCommand{Code: "BIENVENUE", ClientID: "c1", OrderAmount: money("800")},
			wantErr: ErrPromoBelowMin,
		},
		{
			name:    "zone excluded",
			mutate:  func(p *PromoCode, _ *memStore) { p.Zones = []types.ID{"zone-9"} },
			cmd:     PromoCommand{Code: "BIENVENUE", ClientID: "c1", ZoneID: "zone-1", OrderAmount: money("1200")},
			wantErr: ErrPromoZoneExcluded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := welcomePromo()
			store := storeWithPromo(p)
			tt.mutate(p, store)
			svc := testService(store)

			_, err := svc.ApplyPromo(context.Background(), tt.cmd)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
			if len(store.redeemed) != 0 {
				t.Error("failed validation must not consume a use")
			}
		})
	}
}

func TestApplyPromo_ValidationOrder(t *testing.T) {
	// Expired beats exhausted when both apply.
	p := welcomePromo()
	p.ExpiresAt = time.Now().Add(-time.Hour)
	p.CurrentUses = 100
	svc := testService(storeWithPromo(p))

	_, err := svc.ApplyPromo(context.Background(), PromoCommand{
		Code: "BIENVENUE", ClientID: "c1", OrderAmount: money("1200"),
	})
	if !errors.Is(err, ErrPromoExpired) {
		t.Errorf("got %v, want ErrPromoExpired to win over exhausted", err)
	}
}

func TestPreviewPromo_DoesNotConsume(t *testing.T) {
	store := storeWithPromo(welcomePromo())
	svc := testService(store)

	d, err := svc.PreviewPromo(context.Background(), PromoCommand{
		Code: "BIENVENUE", ClientID: "c1", OrderAmount: money("1200"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !d.Equal(money("500")) {
		t.Errorf("preview discount = %s, want 500", d)
	}
	if len(store.redeemed) != 0 {
		t.Error("preview must not consume a use")
	}
	if store.promos["BIENVENUE"].CurrentUses != 0 {
		t.Error("preview must not increment current_uses")
	}
}

func TestApplyPromo_GlobalCapUnderRedemption(t *testing.T) {
	p := welcomePromo()
	p.MaxUses = intPtr(2)
	p.MaxUsesPerUser = 1
	p.FirstOrderOnly = false
	store := storeWithPromo(p)
	svc := testService(store)

	for i, client := range []types.ID{"c1", "c2"} {
		_, err := svc.ApplyPromo(context.Background(), PromoCommand{
			Code: "BIENVENUE", ClientID: client, OrderID: types.ID(fmt.Sprintf("order-%d", i)), OrderAmount: money("1200"),
		})
		if err != nil {
			t.Fatalf("redemption %d failed: %v", i+1, err)
		}
	}

	_, err := svc.ApplyPromo(context.Background(), PromoCommand{
		Code: "BIENVENUE", ClientID: "c3", OrderAmount: money("1200"),
	})
	if !errors.Is(err, ErrPromoExhausted) {
		t.Errorf("third redemption: got %v, want ErrPromoExhausted", err)
	}
}
