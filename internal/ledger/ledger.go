// Package ledger is the single mutating entry point for wallet balances.
// Every balance change is paired with an append-only transaction row in
// one atomic unit; no reader can observe a balance that does not match
// the log.
package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/storeops/commerce-core/internal/domain"
)

// TransactionParams describes one balance movement.
type TransactionParams struct {
	UserID        string
	Amount        decimal.Decimal
	Direction     domain.TransactionDirection
	Type          domain.TransactionType
	ReferenceID   string
	ReferenceType string
	Description   string
	ActorID       string
}

// Validate enforces the preconditions shared by every implementation.
func (p TransactionParams) Validate() error {
	if p.UserID == "" {
		return fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	if !p.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	}
	typeDir, ok := p.Type.Direction()
	if !ok {
		return fmt.Errorf("%w: unknown transaction type %q", domain.ErrValidation, p.Type)
	}
	if p.Direction != typeDir {
		return fmt.Errorf("%w: transaction type %s is flagged %s, got %s",
			domain.ErrValidation, p.Type, typeDir, p.Direction)
	}
	return nil
}

// TransactionResult reports the applied (or replayed) movement.
type TransactionResult struct {
	TransactionID string          `json:"transaction_id"`
	WalletID      string          `json:"wallet_id"`
	OldBalance    decimal.Decimal `json:"old_balance"`
	NewBalance    decimal.Decimal `json:"new_balance"`

	// Duplicate is true when the (reference_id, reference_type, type)
	// dedup key already had a transaction. The stored result is returned
	// and nothing is re-applied.
	Duplicate bool `json:"-"`
}

// Ledger is the abstract capability the services depend on.
type Ledger interface {
	// Apply atomically updates the wallet balance and appends the
	// transaction row. Debits exceeding the balance fail with
	// domain.ErrInsufficientFunds and leave no trace.
	Apply(ctx context.Context, p TransactionParams) (*TransactionResult, error)

	// GetWallet returns the wallet for userID, creating it with a zero
	// balance on first access.
	GetWallet(ctx context.Context, userID string) (*domain.Wallet, error)

	// ListTransactions returns the wallet's log, newest first.
	ListTransactions(ctx context.Context, walletID string) ([]domain.WalletTransaction, error)
}
