// Package service holds the order lifecycle, refund and payment
// reconciliation logic. Each service depends on repository interfaces
// declared here, not on concrete stores.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storeops/commerce-core/internal/domain"
	"github.com/storeops/commerce-core/internal/eligibility"
	"github.com/storeops/commerce-core/internal/notify"
)

type OrderRepository interface {
	Create(ctx context.Context, o *domain.Order) error
	Get(ctx context.Context, id string) (*domain.Order, error)
	Cancel(ctx context.Context, id, reason string) (bool, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, notes string) (*domain.Order, error)
	ListCancelledWithoutRefund(ctx context.Context) ([]domain.Order, error)
	ClearCart(ctx context.Context, userID string) error
}

// Catalog is the external product catalog; the core only reads prices
// at checkout time.
type Catalog interface {
	Price(ctx context.Context, productID string) (decimal.Decimal, error)
}

type OrderService struct {
	orders  OrderRepository
	returns ReturnRepository
	refunds *RefundService
	catalog Catalog
	emitter notify.Emitter
	log     *slog.Logger
}

func NewOrderService(orders OrderRepository, returns ReturnRepository, refunds *RefundService,
	catalog Catalog, emitter notify.Emitter, log *slog.Logger) *OrderService {
	return &OrderService{
		orders:  orders,
		returns: returns,
		refunds: refunds,
		catalog: catalog,
		emitter: emitter,
		log:     log,
	}
}

type PlaceOrderItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type PlaceOrderInput struct {
	UserID           string               `json:"user_id"`
	Items            []PlaceOrderItem     `json:"items"`
	Address          domain.Address       `json:"shipping_address"`
	PaymentMethod    domain.PaymentMethod `json:"payment_method"`
	Shipping         decimal.Decimal      `json:"shipping"`
	Tax              decimal.Decimal      `json:"tax"`
	GatewayOrderID   string               `json:"gateway_order_id"`
	GatewayPaymentID string               `json:"gateway_payment_id"`
	GatewaySignature string               `json:"gateway_signature"`
}

// PlaceOrder snapshots catalog prices into the order items, persists the
// order and items as one unit, clears the cart and emits the placed event.
func (s *OrderService) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*domain.Order, error) {
	if in.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: order must contain at least one item", domain.ErrValidation)
	}
	if !in.PaymentMethod.Valid() {
		return nil, fmt.Errorf("%w: unknown payment method %q", domain.ErrValidation, in.PaymentMethod)
	}
	if in.Shipping.IsNegative() || in.Tax.IsNegative() {
		return nil, fmt.Errorf("%w: shipping and tax cannot be negative", domain.ErrValidation)
	}

	orderID := uuid.NewString()
	subtotal := decimal.Zero
	items := make([]domain.OrderItem, 0, len(in.Items))
	for _, it := range in.Items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be positive for product %s", domain.ErrValidation, it.ProductID)
		}
		price, err := s.catalog.Price(ctx, it.ProductID)
		if err != nil {
			return nil, err
		}
		lineTotal := price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		items = append(items, domain.OrderItem{
			ID:        uuid.NewString(),
			OrderID:   orderID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: price,
			LineTotal: lineTotal,
		})
		subtotal = subtotal.Add(lineTotal)
	}

	now := time.Now().UTC()
	order := &domain.Order{
		ID:               orderID,
		UserID:           in.UserID,
		Items:            items,
		Subtotal:         subtotal,
		Shipping:         in.Shipping,
		Tax:              in.Tax,
		Total:            subtotal.Add(in.Shipping).Add(in.Tax),
		Status:           domain.OrderStatusPending,
		PaymentMethod:    in.PaymentMethod,
		GatewayOrderID:   in.GatewayOrderID,
		GatewayPaymentID: in.GatewayPaymentID,
		GatewaySignature: in.GatewaySignature,
		ShippingAddress:  in.Address,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, err
	}

	if err := s.orders.ClearCart(ctx, in.UserID); err != nil {
		// The order is committed; an unclean cart is a nuisance, not a failure.
		s.log.Warn("cart clear failed after checkout", "order_id", orderID, "error", err)
	}

	notify.Fire(ctx, s.emitter, s.log, domain.UserEvent(domain.EventOrderPlaced, order.UserID, order.ID,
		map[string]any{"total": order.Total.String(), "payment_method": string(order.PaymentMethod)}))

	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return s.orders.Get(ctx, id)
}

// CheckEligibility answers the return/cancel question for an order. The
// result is advisory; request creation re-validates server-side.
func (s *OrderService) CheckEligibility(ctx context.Context, orderID string) (*eligibility.Result, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	hasOpen, err := s.returns.HasOpenRequest(ctx, orderID)
	if err != nil {
		return nil, err
	}
	res := eligibility.Check(*order, hasOpen, time.Now().UTC())
	return &res, nil
}

// UpdateStatus is the admin override path: it writes any status without
// consulting the state machine, unlike CancelOrder which enforces its
// guards. The asymmetry is intentional.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, notes string) (*domain.Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown order status %q", domain.ErrValidation, status)
	}

	order, err := s.orders.UpdateStatus(ctx, orderID, status, notes)
	if err != nil {
		return nil, err
	}

	notify.Fire(ctx, s.emitter, s.log, domain.UserEvent(domain.EventOrderStatusChanged, order.UserID, order.ID,
		map[string]any{"status": string(status), "notes": notes}))

	return order, nil
}

type CancelResult struct {
	Cancelled     bool `json:"cancelled"`
	RefundCreated bool `json:"refund_created"`
}

// CancelOrder transitions !cancelled -> cancelled as a compare-and-set,
// so of two concurrent callers only one proceeds to refund creation.
// Refund creation is a separate commit: its failure is reported via
// RefundCreated=false, never by failing the already-committed cancel.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, reason string) (*CancelResult, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	switch order.Status {
	case domain.OrderStatusCancelled:
		return nil, fmt.Errorf("%w: order already cancelled", domain.ErrConflict)
	case domain.OrderStatusDelivered:
		return nil, fmt.Errorf("%w: cannot cancel delivered order", domain.ErrConflict)
	}

	changed, err := s.orders.Cancel(ctx, orderID, reason)
	if err != nil {
		return nil, err
	}
	if !changed {
		// Lost the race to a concurrent cancel.
		return nil, fmt.Errorf("%w: order already cancelled", domain.ErrConflict)
	}

	notify.Fire(ctx, s.emitter, s.log, domain.UserEvent(domain.EventOrderCancelled, order.UserID, order.ID,
		map[string]any{"reason": reason}))
	notify.Fire(ctx, s.emitter, s.log, domain.AdminEvent(domain.EventOrderCancelled, order.ID,
		map[string]any{"reason": reason, "user_id": order.UserID}))

	result := &CancelResult{Cancelled: true}
	if order.PaymentMethod == domain.PaymentMethodPrepaid {
		if _, err := s.refunds.AutoCreateRefundOnCancel(ctx, order); err != nil {
			s.log.Error("auto refund creation failed after cancellation",
				"order_id", order.ID, "error", err)
		} else {
			result.RefundCreated = true
		}
	}
	return result, nil
}
