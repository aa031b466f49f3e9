package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storeops/commerce-core/internal/domain"
)

// MemoryLedger is an in-process Ledger with the same semantics as the
// Postgres implementation. A single mutex stands in for the wallet row
// lock. Used in tests and local development.
type MemoryLedger struct {
	mu      sync.Mutex
	wallets map[string]*memoryWallet
}

type memoryWallet struct {
	wallet  domain.Wallet
	entries []domain.WalletTransaction
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{wallets: make(map[string]*memoryWallet)}
}

func (l *MemoryLedger) Apply(ctx context.Context, p TransactionParams) (*TransactionResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.walletLocked(p.UserID)

	if p.ReferenceID != "" {
		for _, e := range w.entries {
			if e.ReferenceID == p.ReferenceID && e.ReferenceType == p.ReferenceType && e.Type == p.Type {
				old := e.BalanceAfter.Sub(e.Amount)
				if e.Direction == domain.DirectionDebit {
					old = e.BalanceAfter.Add(e.Amount)
				}
				return &TransactionResult{
					TransactionID: e.ID,
					WalletID:      w.wallet.ID,
					OldBalance:    old,
					NewBalance:    e.BalanceAfter,
					Duplicate:     true,
				}, nil
			}
		}
	}

	balance := w.wallet.Balance
	newBalance := balance.Add(p.Amount)
	if p.Direction == domain.DirectionDebit {
		if balance.LessThan(p.Amount) {
			return nil, domain.ErrInsufficientFunds
		}
		newBalance = balance.Sub(p.Amount)
	}

	entry := domain.WalletTransaction{
		ID:            uuid.NewString(),
		WalletID:      w.wallet.ID,
		Amount:        p.Amount,
		Direction:     p.Direction,
		Type:          p.Type,
		ReferenceID:   p.ReferenceID,
		ReferenceType: p.ReferenceType,
		Description:   p.Description,
		CreatedBy:     p.ActorID,
		BalanceAfter:  newBalance,
		CreatedAt:     time.Now().UTC(),
	}

	w.wallet.Balance = newBalance
	w.wallet.UpdatedAt = entry.CreatedAt
	w.entries = append(w.entries, entry)

	return &TransactionResult{
		TransactionID: entry.ID,
		WalletID:      w.wallet.ID,
		OldBalance:    balance,
		NewBalance:    newBalance,
	}, nil
}

func (l *MemoryLedger) GetWallet(ctx context.Context, userID string) (*domain.Wallet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w := l.walletLocked(userID).wallet
	return &w, nil
}

func (l *MemoryLedger) ListTransactions(ctx context.Context, walletID string) ([]domain.WalletTransaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, w := range l.wallets {
		if w.wallet.ID == walletID {
			out := make([]domain.WalletTransaction, len(w.entries))
			for i, e := range w.entries {
				out[len(w.entries)-1-i] = e
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("%w: wallet %s", domain.ErrNotFound, walletID)
}

func (l *MemoryLedger) walletLocked(userID string) *memoryWallet {
	w, ok := l.wallets[userID]
	if !ok {
		now := time.Now().UTC()
		w = &memoryWallet{wallet: domain.Wallet{
			ID:        uuid.NewString(),
			UserID:    userID,
			Balance:   decimal.Zero,
			CreatedAt: now,
			UpdatedAt: now,
		}}
		l.wallets[userID] = w
	}
	return w
}
