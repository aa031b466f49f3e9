package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storeops/commerce-core/internal/domain"
)

func deliveredDaysAgo(id, userID string, days int, total, shipping string) *domain.Order {
	deliveredAt := time.Now().UTC().AddDate(0, 0, -days)
	return &domain.Order{
		ID:            id,
		UserID:        userID,
		Subtotal:      dec(total),
		Shipping:      dec(shipping),
		Total:         dec(total),
		Status:        domain.OrderStatusDelivered,
		PaymentMethod: domain.PaymentMethodPrepaid,
		DeliveredAt:   &deliveredAt,
	}
}

func TestCreateReturnRequest_RefundAmounts(t *testing.T) {
	ctx := context.Background()

	t.Run("return deducts shipping", func(t *testing.T) {
		// total=900 includes shipping=100; the return refunds 800.
		f := newOrderFixture(deliveredDaysAgo("ord-1", "u1", 3, "900", "100"))

		req, err := f.refunds.CreateReturnRequest(ctx, CreateReturnInput{
			OrderID: "ord-1",
			UserID:  "u1",
			Type:    domain.ReturnTypeReturn,
			Reason:  "damaged",
		})
		require.NoError(t, err)
		assert.True(t, req.RefundAmount.Equal(dec("800")), "refund %s", req.RefundAmount)
		assert.Equal(t, domain.ReturnStatusPending, req.Status)
	})

	t.Run("cancellation refunds full total", func(t *testing.T) {
		f := newOrderFixture(prepaidOrder("ord-2", "u1", "1000"))

		req, err := f.refunds.CreateReturnRequest(ctx, CreateReturnInput{
			OrderID: "ord-2",
			UserID:  "u1",
			Type:    domain.ReturnTypeCancellation,
		})
		require.NoError(t, err)
		assert.True(t, req.RefundAmount.Equal(dec("1000")))
	})
}

func TestCreateReturnRequest_Validation(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture(deliveredDaysAgo("ord-1", "u1", 3, "900", "100"))

	_, err := f.refunds.CreateReturnRequest(ctx, CreateReturnInput{UserID: "u1", Type: domain.ReturnTypeReturn})
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.refunds.CreateReturnRequest(ctx, CreateReturnInput{OrderID: "ord-1", UserID: "u1", Type: "exchange"})
	require.ErrorIs(t, err, domain.ErrValidation)

	// Another user's order is indistinguishable from absent.
	_, err = f.refunds.CreateReturnRequest(ctx, CreateReturnInput{OrderID: "ord-1", UserID: "u2", Type: domain.ReturnTypeReturn})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateReturnRequest_Eligibility(t *testing.T) {
	ctx := context.Background()

	t.Run("window expired", func(t *testing.T) {
		f := newOrderFixture(deliveredDaysAgo("ord-1", "u1", 10, "900", "100"))
		_, err := f.refunds.CreateReturnRequest(ctx, CreateReturnInput{
			OrderID: "ord-1", UserID: "u1", Type: domain.ReturnTypeReturn,
		})
		require.ErrorIs(t, err, domain.ErrNotEligible)
	})

	t.Run("duplicate open request", func(t *testing.T) {
		f := newOrderFixture(deliveredDaysAgo("ord-1", "u1", 3, "900", "100"))
		_, err := f.refunds.CreateReturnRequest(ctx, CreateReturnInput{
			OrderID: "ord-1", UserID: "u1", Type: domain.ReturnTypeReturn,
		})
		require.NoError(t, err)

		_, err = f.refunds.CreateReturnRequest(ctx, CreateReturnInput{
			OrderID: "ord-1", UserID: "u1", Type: domain.ReturnTypeReturn,
		})
		require.ErrorIs(t, err, domain.ErrNotEligible)
		assert.Contains(t, err.Error(), "already exists")
	})

	t.Run("cannot cancel delivered", func(t *testing.T) {
		f := newOrderFixture(deliveredDaysAgo("ord-1", "u1", 3, "900", "100"))
		_, err := f.refunds.CreateReturnRequest(ctx, CreateReturnInput{
			OrderID: "ord-1", UserID: "u1", Type: domain.ReturnTypeCancellation,
		})
		require.ErrorIs(t, err, domain.ErrNotEligible)
	})
}

func TestUpdateReturnRequestStatus(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture(deliveredDaysAgo("ord-1", "u1", 3, "900", "100"))

	req, err := f.refunds.CreateReturnRequest(ctx, CreateReturnInput{
		OrderID: "ord-1", UserID: "u1", Type: domain.ReturnTypeReturn,
	})
	require.NoError(t, err)

	updated, err := f.refunds.UpdateReturnRequestStatus(ctx, req.ID, domain.ReturnStatusApproved, "ok")
	require.NoError(t, err)
	assert.Equal(t, domain.ReturnStatusApproved, updated.Status)
	assert.Equal(t, "ok", updated.AdminNotes)

	_, err = f.refunds.UpdateReturnRequestStatus(ctx, req.ID, "shredded", "")
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestSettle_WalletRefund(t *testing.T) {
	ctx := context.Background()
	order := prepaidOrder("ord-1", "u1", "1000")
	f := newOrderFixture(order)

	refund, err := f.refunds.AutoCreateRefundOnCancel(ctx, order)
	require.NoError(t, err)

	res, err := f.refunds.Settle(ctx, refund.ID, "admin-1")
	require.NoError(t, err)
	assert.True(t, res.NewBalance.Equal(dec("1000")))

	// Status flipped; a second settle is a conflict.
	_, err = f.refunds.Settle(ctx, refund.ID, "admin-1")
	require.ErrorIs(t, err, domain.ErrConflict)

	// And even a raced replay cannot double-credit: the ledger dedups on
	// the order reference.
	w, err := f.walletOp.GetWallet(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(dec("1000")))
}

func TestSettle_ManualModeRejected(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	refund := &domain.RefundRequest{
		ID:      "ref-1",
		OrderID: "ord-9",
		UserID:  "u1",
		Amount:  dec("500"),
		Mode:    domain.RefundModeOriginalPayment,
		Status:  domain.RefundStatusPending,
	}
	require.NoError(t, f.returns.CreateRefund(ctx, refund))

	_, err := f.refunds.Settle(ctx, "ref-1", "admin-1")
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestUnsettled_ListsPendingRefunds(t *testing.T) {
	ctx := context.Background()
	order := prepaidOrder("ord-1", "u1", "1000")
	f := newOrderFixture(order)

	_, err := f.refunds.AutoCreateRefundOnCancel(ctx, order)
	require.NoError(t, err)

	report, err := f.refunds.Unsettled(ctx)
	require.NoError(t, err)
	require.Len(t, report.PendingRefunds, 1)
	assert.Equal(t, "ord-1", report.PendingRefunds[0].OrderID)
}
