package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storeops/commerce-core/internal/domain"
)

type ReturnStore struct {
	db *pgxpool.Pool
}

func NewReturnStore(db *pgxpool.Pool) *ReturnStore {
	return &ReturnStore{db: db}
}

// CreateReturn persists the request and its partial-return item rows
// all-or-nothing: a failed item insert rolls back the request itself.
func (s *ReturnStore) CreateReturn(ctx context.Context, r *domain.ReturnRequest) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO return_requests
		 (id, order_id, user_id, request_type, status, reason, refund_amount,
		  bank_account_name, bank_account_number, bank_ifsc, bank_name)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		r.ID, r.OrderID, r.UserID, string(r.Type), string(r.Status), r.Reason, r.RefundAmount,
		r.BankDetails.AccountName, r.BankDetails.AccountNumber, r.BankDetails.IFSC, r.BankDetails.BankName,
	)
	if err != nil {
		return fmt.Errorf("return request insert failed: %w", err)
	}

	for _, item := range r.Items {
		_, err = tx.Exec(ctx,
			`INSERT INTO return_request_items (id, return_request_id, order_item_id, quantity)
			 VALUES ($1,$2,$3,$4)`,
			item.ID, r.ID, item.OrderItemID, item.Quantity,
		)
		if err != nil {
			return fmt.Errorf("return item insert failed: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (s *ReturnStore) GetReturn(ctx context.Context, id string) (*domain.ReturnRequest, error) {
	var r domain.ReturnRequest
	var reqType, status string
	err := s.db.QueryRow(ctx,
		`SELECT id, order_id, user_id, request_type, status, reason, refund_amount,
		        bank_account_name, bank_account_number, bank_ifsc, bank_name,
		        admin_notes, processed_at, created_at, updated_at
		 FROM return_requests WHERE id = $1`, id,
	).Scan(&r.ID, &r.OrderID, &r.UserID, &reqType, &status, &r.Reason, &r.RefundAmount,
		&r.BankDetails.AccountName, &r.BankDetails.AccountNumber, &r.BankDetails.IFSC, &r.BankDetails.BankName,
		&r.AdminNotes, &r.ProcessedAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: return request %s", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("return request query failed: %w", err)
	}
	r.Type = domain.ReturnType(reqType)
	r.Status = domain.ReturnStatus(status)
	return &r, nil
}

// HasOpenRequest reports whether the order already has a request that
// blocks creating another one.
func (s *ReturnStore) HasOpenRequest(ctx context.Context, orderID string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM return_requests
		  WHERE order_id = $1 AND status IN ('pending', 'approved', 'processing'))`,
		orderID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("open request lookup failed: %w", err)
	}
	return exists, nil
}

// UpdateReturnStatus writes the new status; completed stamps
// processed_at once.
func (s *ReturnStore) UpdateReturnStatus(ctx context.Context, id string, status domain.ReturnStatus, notes string) (*domain.ReturnRequest, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE return_requests SET status = $2, admin_notes = $3, updated_at = now(),
		        processed_at = CASE WHEN $2 = 'completed' AND processed_at IS NULL THEN now() ELSE processed_at END
		 WHERE id = $1`,
		id, string(status), notes,
	)
	if err != nil {
		return nil, fmt.Errorf("return status update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: return request %s", domain.ErrNotFound, id)
	}
	return s.GetReturn(ctx, id)
}

func (s *ReturnStore) CreateRefund(ctx context.Context, r *domain.RefundRequest) error {
	var returnRequestID any
	if r.ReturnRequestID != "" {
		returnRequestID = r.ReturnRequestID
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO refund_requests (id, order_id, return_request_id, user_id, amount, refund_mode, status)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		r.ID, r.OrderID, returnRequestID, r.UserID, r.Amount, string(r.Mode), string(r.Status),
	)
	if err != nil {
		return fmt.Errorf("refund request insert failed: %w", err)
	}
	return nil
}

func (s *ReturnStore) GetRefund(ctx context.Context, id string) (*domain.RefundRequest, error) {
	var r domain.RefundRequest
	var mode, status string
	var returnRequestID *string
	err := s.db.QueryRow(ctx,
		`SELECT id, order_id, return_request_id, user_id, amount, refund_mode, status, settled_at, created_at
		 FROM refund_requests WHERE id = $1`, id,
	).Scan(&r.ID, &r.OrderID, &returnRequestID, &r.UserID, &r.Amount, &mode, &status,
		&r.SettledAt, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: refund request %s", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("refund request query failed: %w", err)
	}
	if returnRequestID != nil {
		r.ReturnRequestID = *returnRequestID
	}
	r.Mode = domain.RefundMode(mode)
	r.Status = domain.RefundStatus(status)
	return &r, nil
}

// MarkRefundSettled flips pending -> completed exactly once.
func (s *ReturnStore) MarkRefundSettled(ctx context.Context, id string) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE refund_requests SET status = 'completed', settled_at = now()
		 WHERE id = $1 AND status = 'pending'`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("refund settle failed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *ReturnStore) ListPendingRefunds(ctx context.Context) ([]domain.RefundRequest, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, order_id, user_id, amount, refund_mode, status, created_at
		 FROM refund_requests WHERE status = 'pending' ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("pending refunds query failed: %w", err)
	}
	defer rows.Close()

	var refunds []domain.RefundRequest
	for rows.Next() {
		var r domain.RefundRequest
		var mode, status string
		if err := rows.Scan(&r.ID, &r.OrderID, &r.UserID, &r.Amount, &mode, &status, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("pending refund scan failed: %w", err)
		}
		r.Mode = domain.RefundMode(mode)
		r.Status = domain.RefundStatus(status)
		refunds = append(refunds, r)
	}
	return refunds, rows.Err()
}
