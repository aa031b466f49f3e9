// Package eligibility computes return/cancellation eligibility from order
// state and timestamps. It is pure: callers supply the clock and the
// open-request flag.
package eligibility

import (
	"fmt"
	"time"

	"github.com/storeops/commerce-core/internal/domain"
)

// ReturnWindowDays is the post-delivery period during which a return is
// permitted.
const ReturnWindowDays = 7

type Result struct {
	CanReturn         bool   `json:"can_return"`
	CanCancel         bool   `json:"can_cancel"`
	Reason            string `json:"reason"`
	DaysSinceDelivery int    `json:"days_since_delivery,omitempty"`
}

// Check evaluates order against the return window and the cancellation
// rules. An existing open return request short-circuits everything else.
func Check(order domain.Order, hasOpenRequest bool, now time.Time) Result {
	if hasOpenRequest {
		return Result{Reason: "a return or cancellation request already exists for this order"}
	}

	switch order.Status {
	case domain.OrderStatusDelivered:
		if order.DeliveredAt == nil {
			return Result{Reason: "order has no delivery timestamp"}
		}
		days := daysSince(*order.DeliveredAt, now)
		if days <= ReturnWindowDays {
			return Result{
				CanReturn:         true,
				Reason:            fmt.Sprintf("return window open, %d day(s) remaining", ReturnWindowDays-days),
				DaysSinceDelivery: days,
			}
		}
		return Result{
			Reason:            fmt.Sprintf("return window of %d days expired", ReturnWindowDays),
			DaysSinceDelivery: days,
		}

	case domain.OrderStatusPending, domain.OrderStatusProcessing, domain.OrderStatusShipped:
		return Result{CanCancel: true, Reason: "order can be cancelled before delivery"}

	case domain.OrderStatusCancelled:
		return Result{Reason: "order is already cancelled"}
	}

	return Result{Reason: fmt.Sprintf("order status %q is not eligible", order.Status)}
}

// daysSince is the whole number of days between deliveredAt and now,
// rounded up. A delivery earlier the same day counts as day 1.
func daysSince(deliveredAt, now time.Time) int {
	elapsed := now.Sub(deliveredAt)
	if elapsed <= 0 {
		return 0
	}
	days := int(elapsed / (24 * time.Hour))
	if elapsed%(24*time.Hour) != 0 {
		days++
	}
	return days
}
