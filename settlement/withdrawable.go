/*
withdrawable.go - Withdrawable amount calculation

PURPOSE:
  Computes how much a specific partner may currently withdraw, split
  into the two accounting buckets. Consumed by the payout-request flow
  (desk.go) and exposed directly to partners via the API.

BUCKET ISOLATION:
  The fee bucket and the received bucket are never allowed to offset
  one another. Each bucket is floored at zero independently BEFORE
  summing, so a deficit in one bucket never reduces the other's
  contribution to the total.

SOURCE OF TRUTH:
  The calculator aggregates the booking and withdrawal source logs
  directly rather than trusting the incrementally maintained ledger
  row, so a payout decision is always made against source truth. Only
  withdrawals with status success count against availability; pending
  and failed ones must not reduce it.

SEE ALSO:
  - desk.go: Validates payout requests against these numbers
  - ledger/rebuild.go: Same aggregation rules, persisting a row
*/
package settlement

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/warp/settlement-engine/ledger"
)

// =============================================================================
// WITHDRAWABLE AMOUNT
// =============================================================================

// Withdrawable is a partner's current payout availability.
type Withdrawable struct {
	PartnerID ledger.PartnerID

	// Amount is the total a partner may withdraw right now:
	// max(0, fee bucket) + max(0, received bucket).
	Amount decimal.Decimal

	// Per-bucket availability, each floored at zero.
	AvailableFee      decimal.Decimal
	AvailableReceived decimal.Decimal

	// Raw aggregates behind the calculation, for display and audit.
	TotalPaidGross    decimal.Decimal
	TotalServiceFee   decimal.Decimal
	TotalDiscounts    decimal.Decimal
	WithdrawnFee      decimal.Decimal
	WithdrawnReceived decimal.Decimal
}

// Calculator computes withdrawable amounts from the source logs.
type Calculator struct {
	Bookings    ledger.BookingSource
	Withdrawals ledger.WithdrawalSource
}

func NewCalculator(bookings ledger.BookingSource, withdrawals ledger.WithdrawalSource) *Calculator {
	return &Calculator{Bookings: bookings, Withdrawals: withdrawals}
}

// WithdrawableAmount computes a partner's current availability:
//
//	fee bucket      = totalServiceFee - withdrawnFromFeeBucket
//	received bucket = max(0, gross - fee - discounts) - withdrawnFromReceivedBucket
//	total           = max(0, fee bucket) + max(0, received bucket)
func (c *Calculator) WithdrawableAmount(ctx context.Context, partnerID ledger.PartnerID) (*Withdrawable, error) {
	out := &Withdrawable{
		PartnerID:         partnerID,
		Amount:            decimal.Zero,
		AvailableFee:      decimal.Zero,
		AvailableReceived: decimal.Zero,
		TotalPaidGross:    decimal.Zero,
		TotalServiceFee:   decimal.Zero,
		TotalDiscounts:    decimal.Zero,
		WithdrawnFee:      decimal.Zero,
		WithdrawnReceived: decimal.Zero,
	}

	bookings, err := c.Bookings.PaidBookingsByPartner(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	for _, b := range bookings {
		out.TotalPaidGross = out.TotalPaidGross.Add(b.EffectiveGross())
		out.TotalServiceFee = out.TotalServiceFee.Add(b.EffectiveFee())
		out.TotalDiscounts = out.TotalDiscounts.Add(b.EffectiveDiscount())
	}

	withdrawals, err := c.Withdrawals.WithdrawalsByPartner(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	for _, w := range withdrawals {
		if w.Status != ledger.WithdrawalSuccess {
			continue
		}
		if w.DeductFrom == ledger.BucketReceived {
			out.WithdrawnReceived = out.WithdrawnReceived.Add(w.Amount.Abs())
		} else {
			out.WithdrawnFee = out.WithdrawnFee.Add(w.Amount.Abs())
		}
	}

	received := ledger.MaxZero(out.TotalPaidGross.Sub(out.TotalServiceFee).Sub(out.TotalDiscounts))

	out.AvailableFee = ledger.MaxZero(out.TotalServiceFee.Sub(out.WithdrawnFee))
	out.AvailableReceived = ledger.MaxZero(received.Sub(out.WithdrawnReceived))
	out.Amount = out.AvailableFee.Add(out.AvailableReceived)
	return out, nil
}

// AvailableIn returns one bucket's floored availability.
func (w *Withdrawable) AvailableIn(bucket ledger.Bucket) decimal.Decimal {
	if bucket == ledger.BucketReceived {
		return w.AvailableReceived
	}
	return w.AvailableFee
}
