package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storeops/commerce-core/internal/domain"
	"github.com/storeops/commerce-core/internal/ledger"
	"github.com/storeops/commerce-core/internal/notify"
)

type RechargeRepository interface {
	Create(ctx context.Context, r *domain.RechargeRequest) error
	Get(ctx context.Context, id string) (*domain.RechargeRequest, error)
	GetByGatewayOrder(ctx context.Context, gatewayOrderID string) (*domain.RechargeRequest, error)
	Complete(ctx context.Context, id string) (bool, error)
}

// PaymentService reconciles gateway callbacks and webhooks into
// exactly-once wallet credits, and debits wallets for order payments.
type PaymentService struct {
	recharges     RechargeRepository
	ledger        ledger.Ledger
	emitter       notify.Emitter
	log           *slog.Logger
	keySecret     []byte
	webhookSecret []byte
	rechargeMin   decimal.Decimal
	rechargeMax   decimal.Decimal
}

func NewPaymentService(recharges RechargeRepository, l ledger.Ledger, emitter notify.Emitter,
	log *slog.Logger, keySecret, webhookSecret string, rechargeMin, rechargeMax decimal.Decimal) *PaymentService {
	return &PaymentService{
		recharges:     recharges,
		ledger:        l,
		emitter:       emitter,
		log:           log,
		keySecret:     []byte(keySecret),
		webhookSecret: []byte(webhookSecret),
		rechargeMin:   rechargeMin,
		rechargeMax:   rechargeMax,
	}
}

// Sign computes the gateway signature: HMAC-SHA256 hex over
// "<gatewayOrderID>|<gatewayPaymentID>" with the shared key secret.
func (s *PaymentService) Sign(gatewayOrderID, gatewayPaymentID string) string {
	mac := hmac.New(sha256.New, s.keySecret)
	fmt.Fprintf(mac, "%s|%s", gatewayOrderID, gatewayPaymentID)
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *PaymentService) verifySignature(gatewayOrderID, gatewayPaymentID, signature string) error {
	expected := s.Sign(gatewayOrderID, gatewayPaymentID)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return domain.ErrSignatureMismatch
	}
	return nil
}

// CreateRechargeRequest registers a pending top-up. The gateway order is
// created by the gateway integration outside the core; only its id is
// consumed here.
func (s *PaymentService) CreateRechargeRequest(ctx context.Context, userID string, amount decimal.Decimal, gatewayOrderID string) (*domain.RechargeRequest, error) {
	if userID == "" || gatewayOrderID == "" {
		return nil, fmt.Errorf("%w: user id and gateway order id are required", domain.ErrValidation)
	}
	if amount.LessThan(s.rechargeMin) || amount.GreaterThan(s.rechargeMax) {
		return nil, fmt.Errorf("%w: recharge amount must be between %s and %s",
			domain.ErrValidation, s.rechargeMin, s.rechargeMax)
	}

	req := &domain.RechargeRequest{
		ID:             uuid.NewString(),
		UserID:         userID,
		Amount:         amount,
		GatewayOrderID: gatewayOrderID,
		Status:         domain.RechargeStatusPending,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.recharges.Create(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

type VerifyRechargeInput struct {
	GatewayOrderID    string `json:"gateway_order_id"`
	GatewayPaymentID  string `json:"gateway_payment_id"`
	GatewaySignature  string `json:"gateway_signature"`
	RechargeRequestID string `json:"recharge_request_id"`
}

// VerifyAndCredit is the synchronous verification path. Signature
// mismatch aborts before any state change; a recharge that is already
// completed is a conflict.
func (s *PaymentService) VerifyAndCredit(ctx context.Context, in VerifyRechargeInput) (*ledger.TransactionResult, error) {
	if in.GatewayOrderID == "" || in.GatewayPaymentID == "" || in.RechargeRequestID == "" {
		return nil, fmt.Errorf("%w: gateway references are required", domain.ErrValidation)
	}
	if err := s.verifySignature(in.GatewayOrderID, in.GatewayPaymentID, in.GatewaySignature); err != nil {
		return nil, err
	}

	recharge, err := s.recharges.Get(ctx, in.RechargeRequestID)
	if err != nil {
		return nil, err
	}
	if recharge.Status == domain.RechargeStatusCompleted {
		return nil, fmt.Errorf("%w: recharge already processed", domain.ErrConflict)
	}

	changed, err := s.recharges.Complete(ctx, recharge.ID)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, fmt.Errorf("%w: recharge already processed", domain.ErrConflict)
	}

	return s.credit(ctx, recharge, in.GatewayPaymentID)
}

type webhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		GatewayOrderID    string `json:"gateway_order_id"`
		GatewayPaymentID  string `json:"gateway_payment_id"`
		RechargeRequestID string `json:"recharge_request_id"`
	} `json:"payload"`
}

// HandleWebhook is the asynchronous path. It must tolerate duplicate
// delivery: an already-completed recharge is success, not an error, and
// the ledger's reference dedup is the backstop. Signature mismatches are
// logged, never surfaced.
func (s *PaymentService) HandleWebhook(ctx context.Context, body []byte, headerSignature string) error {
	mac := hmac.New(sha256.New, s.webhookSecret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(headerSignature)) {
		s.log.Warn("webhook signature mismatch, ignoring delivery")
		return nil
	}

	var ev webhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		s.log.Warn("malformed webhook payload, ignoring delivery", "error", err)
		return nil
	}
	if ev.Event != "payment.captured" {
		return nil
	}

	var recharge *domain.RechargeRequest
	var err error
	if ev.Payload.RechargeRequestID != "" {
		recharge, err = s.recharges.Get(ctx, ev.Payload.RechargeRequestID)
	} else {
		recharge, err = s.recharges.GetByGatewayOrder(ctx, ev.Payload.GatewayOrderID)
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.log.Warn("webhook for unknown recharge", "gateway_order_id", ev.Payload.GatewayOrderID)
			return nil
		}
		return err
	}

	if recharge.Status == domain.RechargeStatusCompleted {
		// Duplicate delivery.
		return nil
	}

	changed, err := s.recharges.Complete(ctx, recharge.ID)
	if err != nil {
		return err
	}
	if !changed {
		// Raced with the synchronous verification path.
		return nil
	}

	_, err = s.credit(ctx, recharge, ev.Payload.GatewayPaymentID)
	return err
}

func (s *PaymentService) credit(ctx context.Context, recharge *domain.RechargeRequest, gatewayPaymentID string) (*ledger.TransactionResult, error) {
	res, err := s.ledger.Apply(ctx, ledger.TransactionParams{
		UserID:        recharge.UserID,
		Amount:        recharge.Amount,
		Direction:     domain.DirectionCredit,
		Type:          domain.TxTypeRecharge,
		ReferenceID:   gatewayPaymentID,
		ReferenceType: "gateway_payment",
		Description:   fmt.Sprintf("wallet recharge %s", recharge.ID),
		ActorID:       recharge.UserID,
	})
	if err != nil {
		return nil, err
	}

	notify.Fire(ctx, s.emitter, s.log, domain.UserEvent(domain.EventWalletRecharged, recharge.UserID, "",
		map[string]any{"recharge_id": recharge.ID, "amount": recharge.Amount.String(), "balance": res.NewBalance.String()}))

	return res, nil
}

// PayWithWallet debits the order total from the user's wallet. The debit
// is keyed by the order id so a retried payment cannot double-charge.
func (s *PaymentService) PayWithWallet(ctx context.Context, userID, orderID string, amount decimal.Decimal) (*ledger.TransactionResult, error) {
	if userID == "" || orderID == "" {
		return nil, fmt.Errorf("%w: user id and order id are required", domain.ErrValidation)
	}
	return s.ledger.Apply(ctx, ledger.TransactionParams{
		UserID:        userID,
		Amount:        amount,
		Direction:     domain.DirectionDebit,
		Type:          domain.TxTypeOrderPayment,
		ReferenceID:   orderID,
		ReferenceType: "order",
		Description:   fmt.Sprintf("payment for order %s", orderID),
		ActorID:       userID,
	})
}
