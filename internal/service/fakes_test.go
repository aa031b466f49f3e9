package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/storeops/commerce-core/internal/domain"
)

// In-memory repository fakes shared by the service tests.

type fakeOrderRepo struct {
	mu          sync.Mutex
	orders      map[string]*domain.Order
	cartCleared []string
}

func newFakeOrderRepo(orders ...*domain.Order) *fakeOrderRepo {
	r := &fakeOrderRepo{orders: make(map[string]*domain.Order)}
	for _, o := range orders {
		cp := *o
		r.orders[o.ID] = &cp
	}
	return r
}

func (r *fakeOrderRepo) Create(ctx context.Context, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *o
	r.orders[o.ID] = &cp
	return nil
}

func (r *fakeOrderRepo) Get(ctx context.Context, id string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", domain.ErrNotFound, id)
	}
	cp := *o
	return &cp, nil
}

func (r *fakeOrderRepo) Cancel(ctx context.Context, id, reason string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return false, fmt.Errorf("%w: order %s", domain.ErrNotFound, id)
	}
	if o.Status.Terminal() {
		return false, nil
	}
	o.Status = domain.OrderStatusCancelled
	o.CancelReason = reason
	return true, nil
}

func (r *fakeOrderRepo) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, notes string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", domain.ErrNotFound, id)
	}
	o.Status = status
	o.AdminNotes = notes
	cp := *o
	return &cp, nil
}

func (r *fakeOrderRepo) ListCancelledWithoutRefund(ctx context.Context) ([]domain.Order, error) {
	return nil, nil
}

func (r *fakeOrderRepo) ClearCart(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cartCleared = append(r.cartCleared, userID)
	return nil
}

type fakeReturnRepo struct {
	mu              sync.Mutex
	returns         map[string]*domain.ReturnRequest
	refunds         map[string]*domain.RefundRequest
	createRefundErr error
}

func newFakeReturnRepo() *fakeReturnRepo {
	return &fakeReturnRepo{
		returns: make(map[string]*domain.ReturnRequest),
		refunds: make(map[string]*domain.RefundRequest),
	}
}

func (r *fakeReturnRepo) CreateReturn(ctx context.Context, req *domain.ReturnRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *req
	r.returns[req.ID] = &cp
	return nil
}

func (r *fakeReturnRepo) GetReturn(ctx context.Context, id string) (*domain.ReturnRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.returns[id]
	if !ok {
		return nil, fmt.Errorf("%w: return request %s", domain.ErrNotFound, id)
	}
	cp := *req
	return &cp, nil
}

func (r *fakeReturnRepo) HasOpenRequest(ctx context.Context, orderID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, req := range r.returns {
		if req.OrderID == orderID && req.Status.Open() {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeReturnRepo) UpdateReturnStatus(ctx context.Context, id string, status domain.ReturnStatus, notes string) (*domain.ReturnRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.returns[id]
	if !ok {
		return nil, fmt.Errorf("%w: return request %s", domain.ErrNotFound, id)
	}
	req.Status = status
	req.AdminNotes = notes
	cp := *req
	return &cp, nil
}

func (r *fakeReturnRepo) CreateRefund(ctx context.Context, refund *domain.RefundRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createRefundErr != nil {
		return r.createRefundErr
	}
	cp := *refund
	r.refunds[refund.ID] = &cp
	return nil
}

func (r *fakeReturnRepo) GetRefund(ctx context.Context, id string) (*domain.RefundRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	refund, ok := r.refunds[id]
	if !ok {
		return nil, fmt.Errorf("%w: refund request %s", domain.ErrNotFound, id)
	}
	cp := *refund
	return &cp, nil
}

func (r *fakeReturnRepo) MarkRefundSettled(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	refund, ok := r.refunds[id]
	if !ok || refund.Status != domain.RefundStatusPending {
		return false, nil
	}
	refund.Status = domain.RefundStatusCompleted
	return true, nil
}

func (r *fakeReturnRepo) ListPendingRefunds(ctx context.Context) ([]domain.RefundRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.RefundRequest
	for _, refund := range r.refunds {
		if refund.Status == domain.RefundStatusPending {
			out = append(out, *refund)
		}
	}
	return out, nil
}

func (r *fakeReturnRepo) refundsForOrder(orderID string) []domain.RefundRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.RefundRequest
	for _, refund := range r.refunds {
		if refund.OrderID == orderID {
			out = append(out, *refund)
		}
	}
	return out
}

type fakeRechargeRepo struct {
	mu        sync.Mutex
	recharges map[string]*domain.RechargeRequest
}

func newFakeRechargeRepo() *fakeRechargeRepo {
	return &fakeRechargeRepo{recharges: make(map[string]*domain.RechargeRequest)}
}

func (r *fakeRechargeRepo) Create(ctx context.Context, req *domain.RechargeRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *req
	r.recharges[req.ID] = &cp
	return nil
}

func (r *fakeRechargeRepo) Get(ctx context.Context, id string) (*domain.RechargeRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.recharges[id]
	if !ok {
		return nil, fmt.Errorf("%w: recharge request %s", domain.ErrNotFound, id)
	}
	cp := *req
	return &cp, nil
}

func (r *fakeRechargeRepo) GetByGatewayOrder(ctx context.Context, gatewayOrderID string) (*domain.RechargeRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, req := range r.recharges {
		if req.GatewayOrderID == gatewayOrderID {
			cp := *req
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: recharge request %s", domain.ErrNotFound, gatewayOrderID)
}

func (r *fakeRechargeRepo) Complete(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.recharges[id]
	if !ok || req.Status != domain.RechargeStatusPending {
		return false, nil
	}
	req.Status = domain.RechargeStatusCompleted
	return true, nil
}

type fakeCatalog struct {
	prices map[string]decimal.Decimal
}

func (c *fakeCatalog) Price(ctx context.Context, productID string) (decimal.Decimal, error) {
	price, ok := c.prices[productID]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: product %s", domain.ErrNotFound, productID)
	}
	return price, nil
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (e *fakeEmitter) Emit(ctx context.Context, ev domain.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.events = append(e.events, ev)
	return nil
}

func (e *fakeEmitter) byType(t domain.EventType) []domain.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []domain.Event
	for _, ev := range e.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}
