// README: Pricing store backed by PostgreSQL; promo redemption is transactional.
package pricing

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"colis/internal/types"
)

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) ZoneByID(ctx context.Context, id types.ID) (*Zone, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, base_price, price_per_km, active
		FROM zones
		WHERE id = $1`, string(id))

	var z Zone
	err := row.Scan(&z.ID, &z.Name, &z.BasePrice, &z.PricePerKm, &z.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrZoneNotFound
	}
	if err != nil {
		return nil, err
	}
	return &z, nil
}

func (s *PGStore) PromoByCode(ctx context.Context, code string) (*PromoCode, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, code, type, value, min_order_amount, max_discount,
		       max_uses, max_uses_per_user, current_uses,
		       first_order_only, zones, active, starts_at, expires_at
		FROM promo_codes
		WHERE code = $1`, code)

	var p PromoCode
	var maxDiscount decimal.NullDecimal
	var maxUses sql.NullInt32
	var zones []string

	err := row.Scan(
		&p.ID, &p.Code, &p.Type, &p.Value, &p.MinOrderAmount, &maxDiscount,
		&maxUses, &p.MaxUsesPerUser, &p.CurrentUses,
		&p.FirstOrderOnly, &zones, &p.Active, &p.StartsAt, &p.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPromoNotFound
	}
	if err != nil {
		return nil, err
	}

	if maxDiscount.Valid {
		d := maxDiscount.Decimal
		p.MaxDiscount = &d
	}
	if maxUses.Valid {
		n := int(maxUses.Int32)
		p.MaxUses = &n
	}
	for _, z := range zones {
		p.Zones = append(p.Zones, types.ID(z))
	}
	return &p, nil
}

func (s *PGStore) PromoUsesByClient(ctx context.Context, promoID, clientID types.ID) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM promo_code_usages
		WHERE promo_code_id = $1 AND client_id = $2`,
		string(promoID), string(clientID),
	).Scan(&n)
	return n, err
}

func (s *PGStore) HasDeliveredOrder(ctx context.Context, clientID types.ID) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM orders
			WHERE client_id = $1 AND status = 'delivered' AND deleted_at IS NULL
		)`, string(clientID),
	).Scan(&exists)
	return exists, err
}

// RedeemPromo increments current_uses and inserts the usage row in one
// transaction. The conditional UPDATE enforces the global cap even under
// concurrent redemption.
func (s *PGStore) RedeemPromo(ctx context.Context, promoID types.ID, usage *PromoUsage) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE promo_codes
		SET current_uses = current_uses + 1
		WHERE id = $1 AND (max_uses IS NULL OR current_uses < max_uses)`,
		string(promoID))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPromoExhausted
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO promo_code_usages (
			promo_code_id, client_id, order_id, discount_applied, created_at
		) VALUES ($1, $2, $3, $4, $5)`,
		string(usage.PromoCodeID),
		string(usage.ClientID),
		string(usage.OrderID),
		usage.DiscountApplied,
		usage.CreatedAt,
	)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}
