package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storeops/commerce-core/internal/domain"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func credit(userID, amount, refID string) TransactionParams {
	return TransactionParams{
		UserID:        userID,
		Amount:        dec(amount),
		Direction:     domain.DirectionCredit,
		Type:          domain.TxTypeRecharge,
		ReferenceID:   refID,
		ReferenceType: "gateway_payment",
	}
}

func debit(userID, amount string) TransactionParams {
	return TransactionParams{
		UserID:    userID,
		Amount:    dec(amount),
		Direction: domain.DirectionDebit,
		Type:      domain.TxTypeOrderPayment,
	}
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*TransactionParams)
		wantErr bool
	}{
		{"valid credit", func(p *TransactionParams) {}, false},
		{"zero amount", func(p *TransactionParams) { p.Amount = decimal.Zero }, true},
		{"negative amount", func(p *TransactionParams) { p.Amount = dec("-5") }, true},
		{"missing user", func(p *TransactionParams) { p.UserID = "" }, true},
		{"unknown type", func(p *TransactionParams) { p.Type = "MYSTERY" }, true},
		{"direction mismatch", func(p *TransactionParams) { p.Direction = domain.DirectionDebit }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := credit("u1", "100", "")
			tt.mutate(&p)
			err := p.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, domain.ErrValidation)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestApply_CreditAndDebit(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()

	res, err := l.Apply(ctx, credit("u1", "500", ""))
	require.NoError(t, err)
	assert.True(t, res.OldBalance.IsZero())
	assert.True(t, res.NewBalance.Equal(dec("500")))
	assert.False(t, res.Duplicate)

	res, err = l.Apply(ctx, debit("u1", "200"))
	require.NoError(t, err)
	assert.True(t, res.OldBalance.Equal(dec("500")))
	assert.True(t, res.NewBalance.Equal(dec("300")))
}

func TestApply_NoOverdraft(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()

	_, err := l.Apply(ctx, credit("u1", "100", ""))
	require.NoError(t, err)

	_, err = l.Apply(ctx, debit("u1", "100.01"))
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	// Balance unchanged, no transaction recorded.
	w, err := l.GetWallet(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(dec("100")))

	entries, err := l.ListTransactions(ctx, w.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestApply_IdempotentRecharge(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()

	first, err := l.Apply(ctx, credit("u1", "250", "pay_abc"))
	require.NoError(t, err)
	require.False(t, first.Duplicate)

	// Webhook delivered twice: same reference, one credit.
	replay, err := l.Apply(ctx, credit("u1", "250", "pay_abc"))
	require.NoError(t, err)
	assert.True(t, replay.Duplicate)
	assert.Equal(t, first.TransactionID, replay.TransactionID)
	assert.True(t, replay.NewBalance.Equal(first.NewBalance))

	w, _ := l.GetWallet(ctx, "u1")
	assert.True(t, w.Balance.Equal(dec("250")))
	entries, _ := l.ListTransactions(ctx, w.ID)
	assert.Len(t, entries, 1)
}

func TestApply_ConcurrentDebits(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()

	_, err := l.Apply(ctx, credit("u1", "500", ""))
	require.NoError(t, err)

	// Two 300 debits race against a 500 balance: exactly one may pass.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = l.Apply(ctx, debit("u1", "300"))
		}(i)
	}
	wg.Wait()

	var failed int
	for _, err := range errs {
		if err != nil {
			require.ErrorIs(t, err, domain.ErrInsufficientFunds)
			failed++
		}
	}
	assert.Equal(t, 1, failed)

	w, _ := l.GetWallet(ctx, "u1")
	assert.True(t, w.Balance.Equal(dec("200")))
}

// Ledger conservation: balance always equals the sum of credits minus
// debits over the log.
func TestApply_Conservation(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()

	ops := []TransactionParams{
		credit("u1", "1000", "pay_1"),
		debit("u1", "150"),
		credit("u1", "42.50", "pay_2"),
		debit("u1", "0.50"),
		{
			UserID: "u1", Amount: dec("99.99"),
			Direction: domain.DirectionCredit, Type: domain.TxTypeRefund,
			ReferenceID: "ord_1", ReferenceType: "order",
		},
	}
	for _, p := range ops {
		_, err := l.Apply(ctx, p)
		require.NoError(t, err)
	}

	w, err := l.GetWallet(ctx, "u1")
	require.NoError(t, err)
	entries, err := l.ListTransactions(ctx, w.ID)
	require.NoError(t, err)
	require.Len(t, entries, len(ops))

	sum := decimal.Zero
	for _, e := range entries {
		if e.Direction == domain.DirectionCredit {
			sum = sum.Add(e.Amount)
		} else {
			sum = sum.Sub(e.Amount)
		}
	}
	assert.True(t, w.Balance.Equal(sum), "balance %s != log sum %s", w.Balance, sum)

	// Newest-first ordering and a consistent head snapshot.
	assert.True(t, entries[0].BalanceAfter.Equal(w.Balance))
}
