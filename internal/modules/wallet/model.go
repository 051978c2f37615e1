// README: Courier wallet ledger and withdrawal definitions.
package wallet

import (
	"errors"
	"time"

	"colis/internal/types"
)

// Wallet is one ledger per courier. Balance and pending balance never go
// negative; credits only ever increase balance and total earned.
type Wallet struct {
	CourierID      types.ID
	Balance        types.Money
	PendingBalance types.Money
	TotalEarned    types.Money
	TotalWithdrawn types.Money
	UpdatedAt      time.Time
}

type WithdrawalStatus string

const (
	StatusPending   WithdrawalStatus = "pending"
	StatusApproved  WithdrawalStatus = "approved"
	StatusCompleted WithdrawalStatus = "completed"
	StatusRejected  WithdrawalStatus = "rejected"
)

type PayoutMethod string

const (
	MethodMobileMoney PayoutMethod = "mobile_money"
	MethodBank        PayoutMethod = "bank"
)

type Withdrawal struct {
	ID           types.ID
	CourierID    types.ID
	Amount       types.Money
	Status       WithdrawalStatus
	Method       PayoutMethod
	Phone        string
	Reference    *string
	ApprovedBy   *types.ID
	RejectReason *string
	CreatedAt    time.Time
	ApprovedAt   *time.Time
	CompletedAt  *time.Time
	RejectedAt   *time.Time
}

// AllowedTransitions represents the withdrawal settlement flow as code.
var AllowedTransitions = map[WithdrawalStatus][]WithdrawalStatus{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusCompleted, StatusRejected},
}

func CanTransition(from, to WithdrawalStatus) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

var (
	ErrNotFound          = errors.New("withdrawal not found")
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
	ErrInvalidState      = errors.New("invalid withdrawal state transition")
	ErrConflict          = errors.New("withdrawal state conflict")
	ErrBadAmount         = errors.New("amount must be positive")
)
