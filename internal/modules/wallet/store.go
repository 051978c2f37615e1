// README: Wallet store backed by PostgreSQL with conditional ledger updates.
package wallet

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"colis/internal/types"
)

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) WalletByCourier(ctx context.Context, courierID types.ID) (*Wallet, error) {
	row := s.db.QueryRow(ctx, `
		SELECT courier_id, balance, pending_balance, total_earned, total_withdrawn, updated_at
		FROM wallets
		WHERE courier_id = $1`, string(courierID))

	var w Wallet
	err := row.Scan(&w.CourierID, &w.Balance, &w.PendingBalance, &w.TotalEarned, &w.TotalWithdrawn, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *PGStore) Credit(ctx context.Context, courierID types.ID, amount types.Money) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO wallets (courier_id, balance, pending_balance, total_earned, total_withdrawn, updated_at)
		VALUES ($1, $2, 0, $2, 0, now())
		ON CONFLICT (courier_id) DO UPDATE
		SET balance = wallets.balance + EXCLUDED.balance,
		    total_earned = wallets.total_earned + EXCLUDED.total_earned,
		    updated_at = now()`,
		string(courierID), amount)
	return err
}

// CreateWithdrawal reserves the amount and inserts the request in one
// transaction. The WHERE balance >= amount clause is what prevents a
// double-spend under concurrent withdrawals.
func (s *PGStore) CreateWithdrawal(ctx context.Context, w *Withdrawal) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE wallets
		SET balance = balance - $1,
		    pending_balance = pending_balance + $1,
		    updated_at = now()
		WHERE courier_id = $2 AND balance >= $1`,
		w.Amount, string(w.CourierID))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientFunds
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO withdrawals (
			id, courier_id, amount, status, method, phone, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(w.ID), string(w.CourierID), w.Amount, string(w.Status),
		string(w.Method), w.Phone, w.CreatedAt)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PGStore) WithdrawalByID(ctx context.Context, id types.ID) (*Withdrawal, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, courier_id, amount, status, method, phone, reference,
		       approved_by, reject_reason,
		       created_at, approved_at, completed_at, rejected_at
		FROM withdrawals
		WHERE id = $1`, string(id))

	var w Withdrawal
	var reference, rejectReason, approvedBy sql.NullString
	var approvedAt, completedAt, rejectedAt sql.NullTime

	err := row.Scan(
		&w.ID, &w.CourierID, &w.Amount, &w.Status, &w.Method, &w.Phone, &reference,
		&approvedBy, &rejectReason,
		&w.CreatedAt, &approvedAt, &completedAt, &rejectedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if reference.Valid {
		w.Reference = &reference.String
	}
	if rejectReason.Valid {
		w.RejectReason = &rejectReason.String
	}
	if approvedBy.Valid {
		id := types.ID(approvedBy.String)
		w.ApprovedBy = &id
	}
	w.ApprovedAt = toTimePtr(approvedAt)
	w.CompletedAt = toTimePtr(completedAt)
	w.RejectedAt = toTimePtr(rejectedAt)
	return &w, nil
}

func (s *PGStore) ApproveWithdrawal(ctx context.Context, id types.ID, adminID types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE withdrawals
		SET status = 'approved', approved_by = $1, approved_at = now()
		WHERE id = $2 AND status = 'pending'`,
		string(adminID), string(id))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) RejectWithdrawal(ctx context.Context, id types.ID, from WithdrawalStatus, adminID types.ID, reason string) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var amount types.Money
	var courierID string
	err = tx.QueryRow(ctx, `
		UPDATE withdrawals
		SET status = 'rejected', approved_by = $1, reject_reason = $2, rejected_at = now()
		WHERE id = $3 AND status = $4
		RETURNING amount, courier_id`,
		string(adminID), reason, string(id), string(from),
	).Scan(&amount, &courierID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE wallets
		SET pending_balance = pending_balance - $1,
		    balance = balance + $1,
		    updated_at = now()
		WHERE courier_id = $2`,
		amount, courierID)
	if err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func (s *PGStore) CompleteWithdrawal(ctx context.Context, id types.ID, reference string) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var amount types.Money
	var courierID string
	err = tx.QueryRow(ctx, `
		UPDATE withdrawals
		SET status = 'completed', reference = $1, completed_at = now()
		WHERE id = $2 AND status = 'approved'
		RETURNING amount, courier_id`,
		reference, string(id),
	).Scan(&amount, &courierID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE wallets
		SET pending_balance = pending_balance - $1,
		    total_withdrawn = total_withdrawn + $1,
		    updated_at = now()
		WHERE courier_id = $2`,
		amount, courierID)
	if err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func toTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
