package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/storeops/commerce-core/internal/domain"
)

// CatalogStore is the read-only slice of the product catalog the order
// flow needs: price lookups for checkout snapshots.
type CatalogStore struct {
	db *pgxpool.Pool
}

func NewCatalogStore(db *pgxpool.Pool) *CatalogStore {
	return &CatalogStore{db: db}
}

func (s *CatalogStore) Price(ctx context.Context, productID string) (decimal.Decimal, error) {
	var price decimal.Decimal
	err := s.db.QueryRow(ctx, "SELECT price FROM products WHERE id = $1", productID).Scan(&price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("%w: product %s", domain.ErrNotFound, productID)
		}
		return decimal.Zero, fmt.Errorf("price query failed: %w", err)
	}
	return price, nil
}
