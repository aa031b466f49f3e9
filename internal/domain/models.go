package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order. delivered and cancelled
// are absorbing; no transition is defined out of them.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// Valid reports whether s is a member of the status catalog.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentMethodPrepaid   PaymentMethod = "prepaid"
	PaymentMethodCOD       PaymentMethod = "cod"
	PaymentMethodBulkOrder PaymentMethod = "bulk_order"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodPrepaid, PaymentMethodCOD, PaymentMethodBulkOrder:
		return true
	}
	return false
}

// Address is the shipping address snapshot taken at checkout.
type Address struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Phone      string `json:"phone"`
}

// Order is mutated only by the order service. Invariant:
// Total = Subtotal + Shipping + Tax.
type Order struct {
	ID               string          `json:"id"`
	UserID           string          `json:"user_id"`
	Items            []OrderItem     `json:"items"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	Shipping         decimal.Decimal `json:"shipping"`
	Tax              decimal.Decimal `json:"tax"`
	Total            decimal.Decimal `json:"total"`
	Status           OrderStatus     `json:"status"`
	PaymentMethod    PaymentMethod   `json:"payment_method"`
	GatewayOrderID   string          `json:"gateway_order_id,omitempty"`
	GatewayPaymentID string          `json:"gateway_payment_id,omitempty"`
	GatewaySignature string          `json:"-"`
	ShippingAddress  Address         `json:"shipping_address"`
	AdminNotes       string          `json:"admin_notes,omitempty"`
	CancelReason     string          `json:"cancel_reason,omitempty"`
	DeliveredAt      *time.Time      `json:"delivered_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// OrderItem carries the unit price snapshotted at purchase time. It is
// never recalculated from the live catalog.
type OrderItem struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"order_id"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type ReturnType string

const (
	ReturnTypeReturn       ReturnType = "return"
	ReturnTypeCancellation ReturnType = "cancellation"
)

func (t ReturnType) Valid() bool {
	return t == ReturnTypeReturn || t == ReturnTypeCancellation
}

type ReturnStatus string

const (
	ReturnStatusPending    ReturnStatus = "pending"
	ReturnStatusApproved   ReturnStatus = "approved"
	ReturnStatusRejected   ReturnStatus = "rejected"
	ReturnStatusProcessing ReturnStatus = "processing"
	ReturnStatusCompleted  ReturnStatus = "completed"
)

func (s ReturnStatus) Valid() bool {
	switch s {
	case ReturnStatusPending, ReturnStatusApproved, ReturnStatusRejected,
		ReturnStatusProcessing, ReturnStatusCompleted:
		return true
	}
	return false
}

// Open reports whether the request still blocks creation of another one
// for the same order.
func (s ReturnStatus) Open() bool {
	switch s {
	case ReturnStatusPending, ReturnStatusApproved, ReturnStatusProcessing:
		return true
	}
	return false
}

// BankDetails is the payout destination for manually settled refunds.
type BankDetails struct {
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
	IFSC          string `json:"ifsc"`
	BankName      string `json:"bank_name"`
}

// ReturnRequest belongs to exactly one order and one requesting user.
// RefundAmount is computed once at creation and not recomputed afterward.
type ReturnRequest struct {
	ID           string          `json:"id"`
	OrderID      string          `json:"order_id"`
	UserID       string          `json:"user_id"`
	Type         ReturnType      `json:"type"`
	Status       ReturnStatus    `json:"status"`
	Reason       string          `json:"reason"`
	RefundAmount decimal.Decimal `json:"refund_amount"`
	BankDetails  BankDetails     `json:"bank_details"`
	AdminNotes   string          `json:"admin_notes,omitempty"`
	Items        []ReturnItem    `json:"items,omitempty"`
	ProcessedAt  *time.Time      `json:"processed_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ReturnItem selects a subset of order items for a partial return.
type ReturnItem struct {
	ID              string `json:"id"`
	ReturnRequestID string `json:"return_request_id"`
	OrderItemID     string `json:"order_item_id"`
	Quantity        int    `json:"quantity"`
}

type RefundMode string

const (
	RefundModeWallet          RefundMode = "wallet"
	RefundModeOriginalPayment RefundMode = "original_payment_method"
)

type RefundStatus string

const (
	RefundStatusPending    RefundStatus = "pending"
	RefundStatusProcessing RefundStatus = "processing"
	RefundStatusCompleted  RefundStatus = "completed"
	RefundStatusFailed     RefundStatus = "failed"
)

// RefundRequest ties an order (and optionally a return request) to a
// planned money movement.
type RefundRequest struct {
	ID              string          `json:"id"`
	OrderID         string          `json:"order_id"`
	ReturnRequestID string          `json:"return_request_id,omitempty"`
	UserID          string          `json:"user_id"`
	Amount          decimal.Decimal `json:"amount"`
	Mode            RefundMode      `json:"refund_mode"`
	Status          RefundStatus    `json:"status"`
	SettledAt       *time.Time      `json:"settled_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Wallet holds a non-negative balance in decimal currency units. Created
// lazily on first access.
type Wallet struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type TransactionDirection string

const (
	DirectionCredit TransactionDirection = "credit"
	DirectionDebit  TransactionDirection = "debit"
)

// TransactionType is a closed catalog used for reporting, not authorization.
type TransactionType string

const (
	TxTypeRecharge     TransactionType = "RECHARGE"
	TxTypeOrderPayment TransactionType = "ORDER_PAYMENT"
	TxTypeRefund       TransactionType = "REFUND"
	TxTypeAdminCredit  TransactionType = "ADMIN_CREDIT"
	TxTypeAdminDebit   TransactionType = "ADMIN_DEBIT"
)

// Direction returns the movement direction the type is flagged with, or
// false when the type is not in the catalog.
func (t TransactionType) Direction() (TransactionDirection, bool) {
	switch t {
	case TxTypeRecharge, TxTypeRefund, TxTypeAdminCredit:
		return DirectionCredit, true
	case TxTypeOrderPayment, TxTypeAdminDebit:
		return DirectionDebit, true
	}
	return "", false
}

// WalletTransaction is an append-only ledger row. BalanceAfter is the
// wallet balance snapshot taken at commit time.
type WalletTransaction struct {
	ID            string               `json:"id"`
	WalletID      string               `json:"wallet_id"`
	Amount        decimal.Decimal      `json:"amount"`
	Direction     TransactionDirection `json:"direction"`
	Type          TransactionType      `json:"transaction_type"`
	ReferenceID   string               `json:"reference_id,omitempty"`
	ReferenceType string               `json:"reference_type,omitempty"`
	Description   string               `json:"description,omitempty"`
	CreatedBy     string               `json:"created_by,omitempty"`
	BalanceAfter  decimal.Decimal      `json:"balance_after"`
	CreatedAt     time.Time            `json:"created_at"`
}

type RechargeStatus string

const (
	RechargeStatusPending   RechargeStatus = "pending"
	RechargeStatusCompleted RechargeStatus = "completed"
	RechargeStatusFailed    RechargeStatus = "failed"
)

// RechargeRequest records a pending wallet top-up awaiting gateway
// confirmation. GatewayOrderID is unique per request.
type RechargeRequest struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	Amount         decimal.Decimal `json:"amount"`
	GatewayOrderID string          `json:"gateway_order_id"`
	Status         RechargeStatus  `json:"status"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}
