// README: Order store backed by PostgreSQL; transitions are compare-and-set
// on (status, status_version), delivery settles atomically in one transaction.
package order

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"colis/internal/types"
)

// Store is the persistence surface of the order lifecycle. Each mutating
// method reports false when the conditional write matched no row, which the
// service surfaces as a state conflict. Every transition takes its history
// record and appends it in the same transaction as the status write, so the
// audit trail never misses a committed transition.
type Store interface {
	Create(ctx context.Context, o *Order, rec *HistoryRecord) error
	Get(ctx context.Context, id types.ID) (*Order, error)
	// AssignCourier claims a pending, unassigned order for the courier. The
	// claim re-checks that the courier has no active delivery; together with
	// the partial unique index on (courier_id) WHERE status IN
	// ('assigned','picked_up') it closes the dispatch race.
	AssignCourier(ctx context.Context, id, courierID types.ID, version int, rec *HistoryRecord) (bool, error)
	MarkPickedUp(ctx context.Context, id types.ID, version int, rec *HistoryRecord) (bool, error)
	// Deliver performs the settlement transaction: status write, wallet
	// credit, courier counter increment, history append — all or nothing.
	Deliver(ctx context.Context, o *Order, earnings types.Money, rec *HistoryRecord) (bool, error)
	// Cancel sets the reason and, when a courier was bound, frees them.
	Cancel(ctx context.Context, id types.ID, from Status, version int, reason string, rec *HistoryRecord) (bool, error)
	SetRating(ctx context.Context, id types.ID, direction string, score int, review string) (bool, error)
	History(ctx context.Context, orderID types.ID) ([]HistoryRecord, error)
	HasActiveByCourier(ctx context.Context, courierID types.ID) (bool, error)
}

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, o *Order, rec *HistoryRecord) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (
			id, number, client_id, courier_id, zone_id, status, status_version,
			pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
			pickup_address, dropoff_address,
			sender_name, sender_phone, recipient_name, recipient_phone,
			package_size, package_note, distance_km,
			base_price, distance_price, surcharge, discount,
			total_price, commission_amount, courier_earnings,
			promo_code, confirmation_code, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11,
			$12, $13,
			$14, $15, $16, $17,
			$18, $19, $20,
			$21, $22, $23, $24,
			$25, $26, $27,
			$28, $29, $30
		)`,
		string(o.ID), o.Number, string(o.ClientID), idPtr(o.CourierID), string(o.ZoneID),
		string(o.Status), o.StatusVersion,
		o.Pickup.Lat, o.Pickup.Lng, o.Dropoff.Lat, o.Dropoff.Lng,
		o.PickupAddress, o.DropoffAddress,
		o.Sender.Name, o.Sender.Phone, o.Recipient.Name, o.Recipient.Phone,
		string(o.PackageSize), o.PackageNote, o.DistanceKm,
		o.Fare.BasePrice, o.Fare.DistancePrice, o.Fare.Surcharge, o.Fare.Discount,
		o.Fare.Total, o.Fare.Commission, o.Fare.CourierEarnings,
		o.PromoCode, o.ConfirmationCode, o.CreatedAt,
	)
	if err != nil {
		return err
	}
	if err := appendHistory(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const orderColumns = `
	id, number, client_id, courier_id, zone_id, status, status_version,
	pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
	pickup_address, dropoff_address,
	sender_name, sender_phone, recipient_name, recipient_phone,
	package_size, package_note, distance_km,
	base_price, distance_price, surcharge, discount,
	total_price, commission_amount, courier_earnings,
	promo_code, confirmation_code,
	client_rating, client_review, courier_rating, courier_review,
	cancel_reason,
	created_at, assigned_at, picked_up_at, delivered_at, cancelled_at, deleted_at`

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Order, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 AND deleted_at IS NULL`,
		string(id))
	return scanOrder(row)
}

func (s *PGStore) AssignCourier(ctx context.Context, id, courierID types.ID, version int, rec *HistoryRecord) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET status = 'assigned',
		    status_version = status_version + 1,
		    courier_id = $1,
		    assigned_at = now()
		WHERE id = $2 AND status = 'pending' AND status_version = $3
		  AND courier_id IS NULL AND deleted_at IS NULL
		  AND NOT EXISTS (
			SELECT 1 FROM orders
			WHERE courier_id = $1 AND status IN ('assigned', 'picked_up')
		  )`,
		string(courierID), string(id), version)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	if err := appendHistory(ctx, tx, rec); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func (s *PGStore) MarkPickedUp(ctx context.Context, id types.ID, version int, rec *HistoryRecord) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET status = 'picked_up',
		    status_version = status_version + 1,
		    picked_up_at = now()
		WHERE id = $1 AND status = 'assigned' AND status_version = $2 AND deleted_at IS NULL`,
		string(id), version)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	if err := appendHistory(ctx, tx, rec); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func (s *PGStore) Deliver(ctx context.Context, o *Order, earnings types.Money, rec *HistoryRecord) (bool, error) {
	if o.CourierID == nil {
		return false, ErrInvalidState
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET status = 'delivered',
		    status_version = status_version + 1,
		    delivered_at = now()
		WHERE id = $1 AND status = 'picked_up' AND status_version = $2 AND deleted_at IS NULL`,
		string(o.ID), o.StatusVersion)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	courierID := string(*o.CourierID)
	_, err = tx.Exec(ctx, `
		INSERT INTO wallets (courier_id, balance, pending_balance, total_earned, total_withdrawn, updated_at)
		VALUES ($1, $2, 0, $2, 0, now())
		ON CONFLICT (courier_id) DO UPDATE
		SET balance = wallets.balance + EXCLUDED.balance,
		    total_earned = wallets.total_earned + EXCLUDED.total_earned,
		    updated_at = now()`,
		courierID, earnings)
	if err != nil {
		return false, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE couriers
		SET completed_orders = completed_orders + 1, available = TRUE
		WHERE id = $1`,
		courierID)
	if err != nil {
		return false, err
	}

	if err := appendHistory(ctx, tx, rec); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func (s *PGStore) Cancel(ctx context.Context, id types.ID, from Status, version int, reason string, rec *HistoryRecord) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var courierID sql.NullString
	err = tx.QueryRow(ctx, `
		UPDATE orders
		SET status = 'cancelled',
		    status_version = status_version + 1,
		    cancel_reason = $1,
		    cancelled_at = now()
		WHERE id = $2 AND status = $3 AND status_version = $4 AND deleted_at IS NULL
		RETURNING courier_id`,
		reason, string(id), string(from), version,
	).Scan(&courierID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if courierID.Valid {
		_, err = tx.Exec(ctx, `UPDATE couriers SET available = TRUE WHERE id = $1`, courierID.String)
		if err != nil {
			return false, err
		}
	}
	if err := appendHistory(ctx, tx, rec); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

// SetRating writes a rating field once; the IS NULL guard makes the
// write-once rule hold under concurrent attempts.
func (s *PGStore) SetRating(ctx context.Context, id types.ID, direction string, score int, review string) (bool, error) {
	var query string
	switch direction {
	case "client":
		query = `
			UPDATE orders SET client_rating = $1, client_review = $2
			WHERE id = $3 AND status = 'delivered' AND client_rating IS NULL AND deleted_at IS NULL`
	case "courier":
		query = `
			UPDATE orders SET courier_rating = $1, courier_review = $2
			WHERE id = $3 AND status = 'delivered' AND courier_rating IS NULL AND deleted_at IS NULL`
	default:
		return false, ErrBadRequest
	}
	tag, err := s.db.Exec(ctx, query, score, review, string(id))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) History(ctx context.Context, orderID types.ID) ([]HistoryRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, order_id, from_status, to_status, actor_type, actor_id, note, lat, lng, created_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY id`, string(orderID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []HistoryRecord
	for rows.Next() {
		var rec HistoryRecord
		var actorID, note sql.NullString
		var lat, lng sql.NullFloat64
		if err := rows.Scan(&rec.ID, &rec.OrderID, &rec.FromStatus, &rec.ToStatus,
			&rec.ActorType, &actorID, &note, &lat, &lng, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if actorID.Valid {
			id := types.ID(actorID.String)
			rec.ActorID = &id
		}
		if note.Valid {
			rec.Note = &note.String
		}
		if lat.Valid && lng.Valid {
			rec.Position = &types.Point{Lat: lat.Float64, Lng: lng.Float64}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *PGStore) HasActiveByCourier(ctx context.Context, courierID types.ID) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM orders
			WHERE courier_id = $1 AND status IN ('assigned', 'picked_up')
		)`, string(courierID),
	).Scan(&exists)
	return exists, err
}

// execer is satisfied by both *pgxpool.Pool and pgx.Tx, so history appends
// can ride inside the transition transactions.
type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func appendHistory(ctx context.Context, db execer, rec *HistoryRecord) error {
	var lat, lng *float64
	if rec.Position != nil {
		lat, lng = &rec.Position.Lat, &rec.Position.Lng
	}
	_, err := db.Exec(ctx, `
		INSERT INTO order_status_history (
			order_id, from_status, to_status, actor_type, actor_id, note, lat, lng, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		string(rec.OrderID),
		string(rec.FromStatus),
		string(rec.ToStatus),
		rec.ActorType,
		idPtr(rec.ActorID),
		rec.Note,
		lat, lng,
		rec.CreatedAt,
	)
	return err
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var courierID, promoCode, packageNote, clientReview, courierReview, cancelReason sql.NullString
	var clientRating, courierRating sql.NullInt32
	var assignedAt, pickedUpAt, deliveredAt, cancelledAt, deletedAt sql.NullTime

	err := row.Scan(
		&o.ID, &o.Number, &o.ClientID, &courierID, &o.ZoneID, &o.Status, &o.StatusVersion,
		&o.Pickup.Lat, &o.Pickup.Lng, &o.Dropoff.Lat, &o.Dropoff.Lng,
		&o.PickupAddress, &o.DropoffAddress,
		&o.Sender.Name, &o.Sender.Phone, &o.Recipient.Name, &o.Recipient.Phone,
		&o.PackageSize, &packageNote, &o.DistanceKm,
		&o.Fare.BasePrice, &o.Fare.DistancePrice, &o.Fare.Surcharge, &o.Fare.Discount,
		&o.Fare.Total, &o.Fare.Commission, &o.Fare.CourierEarnings,
		&promoCode, &o.ConfirmationCode,
		&clientRating, &clientReview, &courierRating, &courierReview,
		&cancelReason,
		&o.CreatedAt, &assignedAt, &pickedUpAt, &deliveredAt, &cancelledAt, &deletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	o.Fare.DistanceKm = o.DistanceKm
	if courierID.Valid {
		id := types.ID(courierID.String)
		o.CourierID = &id
	}
	if promoCode.Valid {
		code := promoCode.String
		o.PromoCode = &code
	}
	o.PackageNote = packageNote.String
	if clientRating.Valid {
		v := int(clientRating.Int32)
		o.ClientRating = &v
	}
	if clientReview.Valid {
		o.ClientReview = &clientReview.String
	}
	if courierRating.Valid {
		v := int(courierRating.Int32)
		o.CourierRating = &v
	}
	if courierReview.Valid {
		o.CourierReview = &courierReview.String
	}
	if cancelReason.Valid {
		o.CancelReason = &cancelReason.String
	}
	o.AssignedAt = toTimePtr(assignedAt)
	o.PickedUpAt = toTimePtr(pickedUpAt)
	o.DeliveredAt = toTimePtr(deliveredAt)
	o.CancelledAt = toTimePtr(cancelledAt)
	o.DeletedAt = toTimePtr(deletedAt)
	return &o, nil
}

func idPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func toTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
