// README: Wallet ledger operations and the withdrawal settlement flow.
package wallet

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"colis/internal/events"
	"colis/internal/types"
)

// Store is the persistence surface of the ledger. Every mutating method is
// an atomic read-modify-write on the wallet and, where a withdrawal is
// involved, a compare-and-set on its status in the same transaction.
type Store interface {
	WalletByCourier(ctx context.Context, courierID types.ID) (*Wallet, error)
	// Credit adds to balance and total_earned, creating the wallet on first use.
	Credit(ctx context.Context, courierID types.ID, amount types.Money) error
	// CreateWithdrawal reserves funds (balance -> pending_balance) and inserts
	// the withdrawal row in one transaction. Returns ErrInsufficientFunds
	// without mutation when the balance check fails.
	CreateWithdrawal(ctx context.Context, w *Withdrawal) error
	WithdrawalByID(ctx context.Context, id types.ID) (*Withdrawal, error)
	// ApproveWithdrawal flips pending -> approved. Funds are already reserved.
	ApproveWithdrawal(ctx context.Context, id types.ID, adminID types.ID) (bool, error)
	// RejectWithdrawal flips {pending,approved} -> rejected and releases the
	// reservation back to the balance, atomically.
	RejectWithdrawal(ctx context.Context, id types.ID, from WithdrawalStatus, adminID types.ID, reason string) (bool, error)
	// CompleteWithdrawal flips approved -> completed and settles the
	// reservation into total_withdrawn, atomically.
	CompleteWithdrawal(ctx context.Context, id types.ID, reference string) (bool, error)
}

type Service struct {
	store     Store
	publisher events.Publisher
	log       *zap.Logger
}

func NewService(store Store, publisher events.Publisher, log *zap.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, publisher: publisher, log: log}
}

func (s *Service) Wallet(ctx context.Context, courierID types.ID) (*Wallet, error) {
	return s.store.WalletByCourier(ctx, courierID)
}

// Credit records courier earnings. Order delivery credits the wallet inside
// the order store's delivery transaction; this entry point serves manual
// adjustments by the back office.
func (s *Service) Credit(ctx context.Context, courierID types.ID, amount types.Money) error {
	if !amount.IsPositive() {
		return ErrBadAmount
	}
	return s.store.Credit(ctx, courierID, amount)
}

type CreateWithdrawalCommand struct {
	CourierID types.ID
	Amount    types.Money
	Method    PayoutMethod
	Phone     string
}

func (s *Service) CreateWithdrawal(ctx context.Context, cmd CreateWithdrawalCommand) (*Withdrawal, error) {
	if !cmd.Amount.IsPositive() {
		return nil, ErrBadAmount
	}
	w := &Withdrawal{
		ID:        types.ID(uuid.NewString()),
		CourierID: cmd.CourierID,
		Amount:    cmd.Amount,
		Status:    StatusPending,
		Method:    cmd.Method,
		Phone:     cmd.Phone,
		CreatedAt: time.Now(),
	}
	if err := s.store.CreateWithdrawal(ctx, w); err != nil {
		return nil, err
	}
	s.log.Info("withdrawal requested",
		zap.String("withdrawal_id", string(w.ID)),
		zap.String("courier_id", string(w.CourierID)),
		zap.String("amount", w.Amount.String()))
	return w, nil
}

type ReviewCommand struct {
	WithdrawalID types.ID
	AdminID      types.ID
	Reason       string
}

func (s *Service) Approve(ctx context.Context, cmd ReviewCommand) error {
	w, err := s.store.WithdrawalByID(ctx, cmd.WithdrawalID)
	if err != nil {
		return err
	}
	if !CanTransition(w.Status, StatusApproved) {
		return ErrInvalidState
	}
	ok, err := s.store.ApproveWithdrawal(ctx, w.ID, cmd.AdminID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	return nil
}

func (s *Service) Reject(ctx context.Context, cmd ReviewCommand) error {
	w, err := s.store.WithdrawalByID(ctx, cmd.WithdrawalID)
	if err != nil {
		return err
	}
	if !CanTransition(w.Status, StatusRejected) {
		return ErrInvalidState
	}
	ok, err := s.store.RejectWithdrawal(ctx, w.ID, w.Status, cmd.AdminID, cmd.Reason)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	s.publishSettled(w, StatusRejected)
	return nil
}

type CompleteCommand struct {
	WithdrawalID types.ID
	Reference    string
}

func (s *Service) Complete(ctx context.Context, cmd CompleteCommand) error {
	w, err := s.store.WithdrawalByID(ctx, cmd.WithdrawalID)
	if err != nil {
		return err
	}
	if !CanTransition(w.Status, StatusCompleted) {
		return ErrInvalidState
	}
	ok, err := s.store.CompleteWithdrawal(ctx, w.ID, cmd.Reference)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	s.publishSettled(w, StatusCompleted)
	return nil
}

// publishSettled emits the settlement event after the transaction committed.
// Publishing is fire-and-forget; failures are logged, never rolled back.
func (s *Service) publishSettled(w *Withdrawal, status WithdrawalStatus) {
	payload, err := json.Marshal(events.WithdrawalEvent{
		WithdrawalID: string(w.ID),
		CourierID:    string(w.CourierID),
		Amount:       w.Amount.String(),
		Status:       string(status),
		At:           time.Now().UTC(),
	})
	if err != nil {
		return
	}
	if err := s.publisher.Publish(events.TopicWithdrawalStatus, payload); err != nil {
		s.log.Warn("publish withdrawal event",
			zap.String("withdrawal_id", string(w.ID)), zap.Error(err))
	}
}
