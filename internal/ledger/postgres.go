package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/storeops/commerce-core/internal/domain"
)

// PostgresLedger implements Ledger on top of pgx. The balance
// read-modify-write runs under a FOR UPDATE row lock so concurrent
// movements on the same wallet are serialized.
type PostgresLedger struct {
	db *pgxpool.Pool
}

func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

func (l *PostgresLedger) Apply(ctx context.Context, p TransactionParams) (*TransactionResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return nil, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	walletID, balance, err := lockWallet(ctx, tx, p.UserID)
	if err != nil {
		return nil, err
	}

	// Dedup externally-referenced movements: replaying the same
	// reference returns the original result instead of a second credit.
	if p.ReferenceID != "" {
		var txID string
		var txAmount, balanceAfter decimal.Decimal
		var direction string
		err = tx.QueryRow(ctx,
			`SELECT id, amount, direction, balance_after FROM wallet_transactions
			 WHERE wallet_id = $1 AND reference_id = $2 AND reference_type = $3 AND transaction_type = $4`,
			walletID, p.ReferenceID, p.ReferenceType, string(p.Type),
		).Scan(&txID, &txAmount, &direction, &balanceAfter)
		if err == nil {
			old := balanceAfter.Sub(txAmount)
			if direction == string(domain.DirectionDebit) {
				old = balanceAfter.Add(txAmount)
			}
			return &TransactionResult{
				TransactionID: txID,
				WalletID:      walletID,
				OldBalance:    old,
				NewBalance:    balanceAfter,
				Duplicate:     true,
			}, nil
		}
		if err != pgx.ErrNoRows {
			return nil, fmt.Errorf("dedup lookup failed: %w", err)
		}
	}

	newBalance := balance.Add(p.Amount)
	if p.Direction == domain.DirectionDebit {
		if balance.LessThan(p.Amount) {
			return nil, domain.ErrInsufficientFunds
		}
		newBalance = balance.Sub(p.Amount)
	}

	if _, err = tx.Exec(ctx,
		"UPDATE wallets SET balance = $1, updated_at = now() WHERE id = $2",
		newBalance, walletID,
	); err != nil {
		return nil, fmt.Errorf("balance update failed: %w", err)
	}

	txID := uuid.NewString()
	_, err = tx.Exec(ctx,
		`INSERT INTO wallet_transactions
		 (id, wallet_id, amount, direction, transaction_type, reference_id, reference_type, description, created_by, balance_after)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		txID, walletID, p.Amount, string(p.Direction), string(p.Type),
		p.ReferenceID, p.ReferenceType, p.Description, p.ActorID, newBalance,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		// A concurrent replay can still race past the lookup; the unique
		// reference index is the backstop.
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("%w: reference already applied", domain.ErrConflict)
		}
		return nil, fmt.Errorf("transaction insert failed: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("tx commit failed: %w", err)
	}

	return &TransactionResult{
		TransactionID: txID,
		WalletID:      walletID,
		OldBalance:    balance,
		NewBalance:    newBalance,
	}, nil
}

// lockWallet upserts the wallet row lazily and acquires its row lock.
func lockWallet(ctx context.Context, tx pgx.Tx, userID string) (string, decimal.Decimal, error) {
	if _, err := tx.Exec(ctx,
		"INSERT INTO wallets (id, user_id, balance) VALUES ($1, $2, 0) ON CONFLICT (user_id) DO NOTHING",
		uuid.NewString(), userID,
	); err != nil {
		return "", decimal.Zero, fmt.Errorf("wallet upsert failed: %w", err)
	}

	var walletID string
	var balance decimal.Decimal
	err := tx.QueryRow(ctx,
		"SELECT id, balance FROM wallets WHERE user_id = $1 FOR UPDATE", userID,
	).Scan(&walletID, &balance)
	if err != nil {
		return "", decimal.Zero, fmt.Errorf("wallet lock failed: %w", err)
	}
	return walletID, balance, nil
}

func (l *PostgresLedger) GetWallet(ctx context.Context, userID string) (*domain.Wallet, error) {
	if _, err := l.db.Exec(ctx,
		"INSERT INTO wallets (id, user_id, balance) VALUES ($1, $2, 0) ON CONFLICT (user_id) DO NOTHING",
		uuid.NewString(), userID,
	); err != nil {
		return nil, fmt.Errorf("wallet upsert failed: %w", err)
	}

	var w domain.Wallet
	err := l.db.QueryRow(ctx,
		"SELECT id, user_id, balance, created_at, updated_at FROM wallets WHERE user_id = $1", userID,
	).Scan(&w.ID, &w.UserID, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("wallet query failed: %w", err)
	}
	return &w, nil
}

func (l *PostgresLedger) ListTransactions(ctx context.Context, walletID string) ([]domain.WalletTransaction, error) {
	rows, err := l.db.Query(ctx,
		`SELECT id, wallet_id, amount, direction, transaction_type, reference_id, reference_type,
		        description, created_by, balance_after, created_at
		 FROM wallet_transactions WHERE wallet_id = $1 ORDER BY created_at DESC`,
		walletID,
	)
	if err != nil {
		return nil, fmt.Errorf("transactions query failed: %w", err)
	}
	defer rows.Close()

	var entries []domain.WalletTransaction
	for rows.Next() {
		var e domain.WalletTransaction
		var direction, txType string
		var createdAt time.Time
		if err := rows.Scan(&e.ID, &e.WalletID, &e.Amount, &direction, &txType,
			&e.ReferenceID, &e.ReferenceType, &e.Description, &e.CreatedBy,
			&e.BalanceAfter, &createdAt); err != nil {
			return nil, fmt.Errorf("transaction scan failed: %w", err)
		}
		e.Direction = domain.TransactionDirection(direction)
		e.Type = domain.TransactionType(txType)
		e.CreatedAt = createdAt
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
