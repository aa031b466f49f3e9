package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storeops/commerce-core/internal/domain"
)

type RechargeStore struct {
	db *pgxpool.Pool
}

func NewRechargeStore(db *pgxpool.Pool) *RechargeStore {
	return &RechargeStore{db: db}
}

func (s *RechargeStore) Create(ctx context.Context, r *domain.RechargeRequest) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO recharge_requests (id, user_id, amount, gateway_order_id, status)
		 VALUES ($1,$2,$3,$4,$5)`,
		r.ID, r.UserID, r.Amount, r.GatewayOrderID, string(r.Status),
	)
	if err != nil {
		return fmt.Errorf("recharge request insert failed: %w", err)
	}
	return nil
}

func (s *RechargeStore) Get(ctx context.Context, id string) (*domain.RechargeRequest, error) {
	return s.get(ctx, "id", id)
}

func (s *RechargeStore) GetByGatewayOrder(ctx context.Context, gatewayOrderID string) (*domain.RechargeRequest, error) {
	return s.get(ctx, "gateway_order_id", gatewayOrderID)
}

func (s *RechargeStore) get(ctx context.Context, column, value string) (*domain.RechargeRequest, error) {
	var r domain.RechargeRequest
	var status string
	err := s.db.QueryRow(ctx,
		`SELECT id, user_id, amount, gateway_order_id, status, completed_at, created_at
		 FROM recharge_requests WHERE `+column+` = $1`, value,
	).Scan(&r.ID, &r.UserID, &r.Amount, &r.GatewayOrderID, &status, &r.CompletedAt, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: recharge request %s", domain.ErrNotFound, value)
		}
		return nil, fmt.Errorf("recharge request query failed: %w", err)
	}
	r.Status = domain.RechargeStatus(status)
	return &r, nil
}

// Complete flips pending -> completed exactly once; the losing side of a
// concurrent race sees false.
func (s *RechargeStore) Complete(ctx context.Context, id string) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE recharge_requests SET status = 'completed', completed_at = now()
		 WHERE id = $1 AND status = 'pending'`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("recharge complete failed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
