package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/storeops/commerce-core/internal/domain"
	"github.com/storeops/commerce-core/internal/eligibility"
	"github.com/storeops/commerce-core/internal/ledger"
	"github.com/storeops/commerce-core/internal/notify"
)

type ReturnRepository interface {
	CreateReturn(ctx context.Context, r *domain.ReturnRequest) error
	GetReturn(ctx context.Context, id string) (*domain.ReturnRequest, error)
	HasOpenRequest(ctx context.Context, orderID string) (bool, error)
	UpdateReturnStatus(ctx context.Context, id string, status domain.ReturnStatus, notes string) (*domain.ReturnRequest, error)
	CreateRefund(ctx context.Context, r *domain.RefundRequest) error
	GetRefund(ctx context.Context, id string) (*domain.RefundRequest, error)
	MarkRefundSettled(ctx context.Context, id string) (bool, error)
	ListPendingRefunds(ctx context.Context) ([]domain.RefundRequest, error)
}

type RefundService struct {
	orders  OrderRepository
	returns ReturnRepository
	ledger  ledger.Ledger
	emitter notify.Emitter
	log     *slog.Logger
}

func NewRefundService(orders OrderRepository, returns ReturnRepository, l ledger.Ledger,
	emitter notify.Emitter, log *slog.Logger) *RefundService {
	return &RefundService{
		orders:  orders,
		returns: returns,
		ledger:  l,
		emitter: emitter,
		log:     log,
	}
}

type ReturnItemInput struct {
	OrderItemID string `json:"order_item_id"`
	Quantity    int    `json:"quantity"`
}

type CreateReturnInput struct {
	OrderID     string             `json:"order_id"`
	UserID      string             `json:"user_id"`
	Type        domain.ReturnType  `json:"type"`
	Reason      string             `json:"reason"`
	BankDetails domain.BankDetails `json:"bank_details"`
	Items       []ReturnItemInput  `json:"items,omitempty"`
}

// CreateReturnRequest re-validates eligibility server-side; the client's
// earlier eligibility read is a separate, possibly stale, check. The
// refund amount is fixed here: full total for cancellations, total minus
// shipping for returns.
func (s *RefundService) CreateReturnRequest(ctx context.Context, in CreateReturnInput) (*domain.ReturnRequest, error) {
	if in.OrderID == "" || in.UserID == "" {
		return nil, fmt.Errorf("%w: order id and user id are required", domain.ErrValidation)
	}
	if !in.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown request type %q", domain.ErrValidation, in.Type)
	}

	order, err := s.orders.Get(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != in.UserID {
		// Not the owner; indistinguishable from absent.
		return nil, fmt.Errorf("%w: order %s", domain.ErrNotFound, in.OrderID)
	}

	hasOpen, err := s.returns.HasOpenRequest(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}

	res := eligibility.Check(*order, hasOpen, time.Now().UTC())
	switch in.Type {
	case domain.ReturnTypeReturn:
		if !res.CanReturn {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotEligible, res.Reason)
		}
	case domain.ReturnTypeCancellation:
		if !res.CanCancel {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotEligible, res.Reason)
		}
	}

	refundAmount := order.Total
	if in.Type == domain.ReturnTypeReturn {
		refundAmount = order.Total.Sub(order.Shipping)
	}

	req := &domain.ReturnRequest{
		ID:           uuid.NewString(),
		OrderID:      order.ID,
		UserID:       in.UserID,
		Type:         in.Type,
		Status:       domain.ReturnStatusPending,
		Reason:       in.Reason,
		RefundAmount: refundAmount,
		BankDetails:  in.BankDetails,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	for _, it := range in.Items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: return item quantity must be positive", domain.ErrValidation)
		}
		req.Items = append(req.Items, domain.ReturnItem{
			ID:              uuid.NewString(),
			ReturnRequestID: req.ID,
			OrderItemID:     it.OrderItemID,
			Quantity:        it.Quantity,
		})
	}

	if err := s.returns.CreateReturn(ctx, req); err != nil {
		return nil, err
	}

	notify.Fire(ctx, s.emitter, s.log, domain.AdminEvent(domain.EventReturnRequested, order.ID,
		map[string]any{"request_id": req.ID, "type": string(req.Type), "refund_amount": refundAmount.String()}))

	return req, nil
}

// AutoCreateRefundOnCancel creates the wallet-mode refund request that
// accompanies cancellation of a prepaid order. Caller-side failure
// handling must never revert the cancellation already committed.
func (s *RefundService) AutoCreateRefundOnCancel(ctx context.Context, order *domain.Order) (*domain.RefundRequest, error) {
	refund := &domain.RefundRequest{
		ID:        uuid.NewString(),
		OrderID:   order.ID,
		UserID:    order.UserID,
		Amount:    order.Total,
		Mode:      domain.RefundModeWallet,
		Status:    domain.RefundStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.returns.CreateRefund(ctx, refund); err != nil {
		return nil, err
	}

	notify.Fire(ctx, s.emitter, s.log, domain.AdminEvent(domain.EventRefundCreated, order.ID,
		map[string]any{"refund_id": refund.ID, "amount": refund.Amount.String(), "mode": string(refund.Mode)}))

	return refund, nil
}

// UpdateReturnRequestStatus is the admin path; completed stamps
// processed_at.
func (s *RefundService) UpdateReturnRequestStatus(ctx context.Context, id string, status domain.ReturnStatus, notes string) (*domain.ReturnRequest, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown return status %q", domain.ErrValidation, status)
	}

	req, err := s.returns.UpdateReturnStatus(ctx, id, status, notes)
	if err != nil {
		return nil, err
	}

	notify.Fire(ctx, s.emitter, s.log, domain.UserEvent(domain.EventReturnStatusChanged, req.UserID, req.OrderID,
		map[string]any{"request_id": req.ID, "status": string(status), "notes": notes}))

	return req, nil
}

// Settle moves the money for a wallet-mode refund. The ledger credit is
// keyed by (order id, "order", REFUND) so a replayed settle cannot
// double-credit even if the status flip races.
func (s *RefundService) Settle(ctx context.Context, refundID, actorID string) (*ledger.TransactionResult, error) {
	refund, err := s.returns.GetRefund(ctx, refundID)
	if err != nil {
		return nil, err
	}
	if refund.Status != domain.RefundStatusPending {
		return nil, fmt.Errorf("%w: refund already %s", domain.ErrConflict, refund.Status)
	}
	if refund.Mode != domain.RefundModeWallet {
		return nil, fmt.Errorf("%w: %s refunds are settled manually", domain.ErrValidation, refund.Mode)
	}

	res, err := s.ledger.Apply(ctx, ledger.TransactionParams{
		UserID:        refund.UserID,
		Amount:        refund.Amount,
		Direction:     domain.DirectionCredit,
		Type:          domain.TxTypeRefund,
		ReferenceID:   refund.OrderID,
		ReferenceType: "order",
		Description:   fmt.Sprintf("refund for order %s", refund.OrderID),
		ActorID:       actorID,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.returns.MarkRefundSettled(ctx, refundID); err != nil {
		// Credit is committed and dedup-protected; the status flip can be
		// retried by reconciliation.
		s.log.Error("refund settled but status update failed", "refund_id", refundID, "error", err)
	}

	notify.Fire(ctx, s.emitter, s.log, domain.UserEvent(domain.EventRefundSettled, refund.UserID, refund.OrderID,
		map[string]any{"refund_id": refund.ID, "amount": refund.Amount.String()}))

	return res, nil
}

// ReconciliationReport backs the admin view of money that still needs
// attention: pending refund requests, and prepaid cancellations that
// never got one (the compensating mechanism for the two-commit cancel
// boundary).
type ReconciliationReport struct {
	PendingRefunds []domain.RefundRequest `json:"pending_refunds"`
	MissingRefunds []domain.Order         `json:"cancelled_without_refund"`
}

func (s *RefundService) Unsettled(ctx context.Context) (*ReconciliationReport, error) {
	pending, err := s.returns.ListPendingRefunds(ctx)
	if err != nil {
		return nil, err
	}
	missing, err := s.orders.ListCancelledWithoutRefund(ctx)
	if err != nil {
		return nil, err
	}
	return &ReconciliationReport{PendingRefunds: pending, MissingRefunds: missing}, nil
}
