// Package store holds the pgx-backed repositories. Each repository is
// injected into its consumer as an interface so components depend on an
// abstract capability, not a concrete client.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storeops/commerce-core/internal/domain"
)

type OrderStore struct {
	db *pgxpool.Pool
}

func NewOrderStore(db *pgxpool.Pool) *OrderStore {
	return &OrderStore{db: db}
}

// Create persists the order and its items as one unit.
func (s *OrderStore) Create(ctx context.Context, o *domain.Order) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO orders
		 (id, user_id, subtotal, shipping, tax, total, status, payment_method,
		  gateway_order_id, gateway_payment_id, gateway_signature,
		  ship_name, ship_line1, ship_line2, ship_city, ship_state, ship_postal_code, ship_phone)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		o.ID, o.UserID, o.Subtotal, o.Shipping, o.Tax, o.Total,
		string(o.Status), string(o.PaymentMethod),
		o.GatewayOrderID, o.GatewayPaymentID, o.GatewaySignature,
		o.ShippingAddress.Name, o.ShippingAddress.Line1, o.ShippingAddress.Line2,
		o.ShippingAddress.City, o.ShippingAddress.State, o.ShippingAddress.PostalCode,
		o.ShippingAddress.Phone,
	)
	if err != nil {
		return fmt.Errorf("order insert failed: %w", err)
	}

	for _, item := range o.Items {
		_, err = tx.Exec(ctx,
			`INSERT INTO order_items (id, order_id, product_id, quantity, unit_price, line_total)
			 VALUES ($1,$2,$3,$4,$5,$6)`,
			item.ID, o.ID, item.ProductID, item.Quantity, item.UnitPrice, item.LineTotal,
		)
		if err != nil {
			return fmt.Errorf("order item insert failed: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (s *OrderStore) Get(ctx context.Context, id string) (*domain.Order, error) {
	var o domain.Order
	var status, method string
	err := s.db.QueryRow(ctx,
		`SELECT id, user_id, subtotal, shipping, tax, total, status, payment_method,
		        gateway_order_id, gateway_payment_id, gateway_signature,
		        ship_name, ship_line1, ship_line2, ship_city, ship_state, ship_postal_code, ship_phone,
		        admin_notes, cancel_reason, delivered_at, created_at, updated_at
		 FROM orders WHERE id = $1`, id,
	).Scan(&o.ID, &o.UserID, &o.Subtotal, &o.Shipping, &o.Tax, &o.Total, &status, &method,
		&o.GatewayOrderID, &o.GatewayPaymentID, &o.GatewaySignature,
		&o.ShippingAddress.Name, &o.ShippingAddress.Line1, &o.ShippingAddress.Line2,
		&o.ShippingAddress.City, &o.ShippingAddress.State, &o.ShippingAddress.PostalCode,
		&o.ShippingAddress.Phone,
		&o.AdminNotes, &o.CancelReason, &o.DeliveredAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: order %s", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("order query failed: %w", err)
	}
	o.Status = domain.OrderStatus(status)
	o.PaymentMethod = domain.PaymentMethod(method)

	rows, err := s.db.Query(ctx,
		"SELECT id, order_id, product_id, quantity, unit_price, line_total FROM order_items WHERE order_id = $1",
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("order items query failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID,
			&item.Quantity, &item.UnitPrice, &item.LineTotal); err != nil {
			return nil, fmt.Errorf("order item scan failed: %w", err)
		}
		o.Items = append(o.Items, item)
	}
	return &o, rows.Err()
}

// Cancel performs the !cancelled -> cancelled transition as a single
// compare-and-set. The returned bool is false when another caller won
// the race or the order was already terminal.
func (s *OrderStore) Cancel(ctx context.Context, id, reason string) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE orders SET status = 'cancelled', cancel_reason = $2, updated_at = now()
		 WHERE id = $1 AND status NOT IN ('cancelled', 'delivered')`,
		id, reason,
	)
	if err != nil {
		return false, fmt.Errorf("order cancel failed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateStatus writes any status without consulting the state machine;
// the guarded path is Cancel. delivered stamps delivered_at once.
func (s *OrderStore) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, notes string) (*domain.Order, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE orders SET status = $2, admin_notes = $3, updated_at = now(),
		        delivered_at = CASE WHEN $2 = 'delivered' AND delivered_at IS NULL THEN now() ELSE delivered_at END
		 WHERE id = $1`,
		id, string(status), notes,
	)
	if err != nil {
		return nil, fmt.Errorf("order status update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: order %s", domain.ErrNotFound, id)
	}
	return s.Get(ctx, id)
}

// ListCancelledWithoutRefund is the reconciliation query behind the
// admin listing of prepaid cancellations that never got a refund request.
func (s *OrderStore) ListCancelledWithoutRefund(ctx context.Context) ([]domain.Order, error) {
	rows, err := s.db.Query(ctx,
		`SELECT o.id, o.user_id, o.total, o.status, o.payment_method, o.updated_at
		 FROM orders o
		 LEFT JOIN refund_requests r ON r.order_id = o.id
		 WHERE o.status = 'cancelled' AND o.payment_method = 'prepaid' AND r.id IS NULL
		 ORDER BY o.updated_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("reconciliation query failed: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var o domain.Order
		var status, method string
		if err := rows.Scan(&o.ID, &o.UserID, &o.Total, &status, &method, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("reconciliation scan failed: %w", err)
		}
		o.Status = domain.OrderStatus(status)
		o.PaymentMethod = domain.PaymentMethod(method)
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// ClearCart empties the user's cart after a successful checkout.
func (s *OrderStore) ClearCart(ctx context.Context, userID string) error {
	_, err := s.db.Exec(ctx, "DELETE FROM cart_items WHERE user_id = $1", userID)
	if err != nil {
		return fmt.Errorf("cart clear failed: %w", err)
	}
	return nil
}
