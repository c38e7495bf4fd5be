/*
applier.go - Incremental impact application

PURPOSE:
  The Applier translates the two inbound lifecycle events into atomic
  single-row mutations of the partner ledger. This is the steady-state
  write path; the rebuild engine (rebuild.go) is the reconciliation
  path that bypasses it.

TRUST BOUNDARY:
  At-most-once application of a given event is a PRECONDITION OWNED BY
  THE CALLER: the caller checks "was this already applied" against the
  source record's prior status before emitting the event. The applier
  does not keep idempotency keys per applied event. This is a
  documented boundary, not a defect to silently patch.

NO ROLLBACK:
  Once an impact commits, it is never reverted because of a downstream
  side effect failing (invoice generation, notification delivery).
  Storage failures on the increment itself propagate to the caller.

SEE ALSO:
  - store.go: The atomic ApplyBookingImpact/ApplyWithdrawalImpact contract
  - rebuild.go: Full recomputation that corrects any drift
*/
package ledger

import "context"

// =============================================================================
// APPLIER
// =============================================================================

// Applier applies booking-paid and withdrawal-succeeded events to the
// ledger store. Safe for concurrent use; atomicity is delegated to the
// store's single-statement impact operations.
type Applier struct {
	Store LedgerStore
}

func NewApplier(store LedgerStore) *Applier {
	return &Applier{Store: store}
}

// ApplyBookingPaid applies a booking's first paid-equivalent
// transition to the partner's row:
//
//	TotalRevenue      += gross
//	TotalServiceFee   += fee
//	TotalDiscounts    += discount
//	ServiceFeeBalance += fee
//	ReceivableBalance += max(0, gross - fee - discount)
//
// A missing partner id makes the call a no-op returning nil; callers
// must not interpret that as success.
func (a *Applier) ApplyBookingPaid(ctx context.Context, ev BookingPaidEvent) error {
	if ev.PartnerID == "" {
		return nil
	}

	return a.Store.ApplyBookingImpact(ctx, BookingImpact{
		PartnerID:  ev.PartnerID,
		BookingID:  ev.BookingID,
		Gross:      ev.GrossAmount,
		Fee:        ev.ServiceFeeAmount,
		Discount:   ev.DiscountAmount,
		Receivable: MaxZero(ev.GrossAmount.Sub(ev.ServiceFeeAmount).Sub(ev.DiscountAmount)),
		OccurredAt: ev.OccurredAt,
	})
}

// ApplyWithdrawalSucceeded applies a withdrawal's first success
// transition: decrements the chosen bucket's balance by abs(amount)
// and increments the matching lifetime-withdrawn total.
//
// The balance is NOT clamped at zero on write. A negative result is a
// legitimate signal of bookkeeping drift, surfaced later by
// reconciliation rather than hidden here.
func (a *Applier) ApplyWithdrawalSucceeded(ctx context.Context, ev WithdrawalSucceededEvent) error {
	if ev.PartnerID == "" {
		return nil
	}
	if !ValidBucket(ev.Bucket) {
		return ErrUnknownBucket
	}

	return a.Store.ApplyWithdrawalImpact(ctx, WithdrawalImpact{
		PartnerID:    ev.PartnerID,
		WithdrawalID: ev.WithdrawalID,
		Bucket:       ev.Bucket,
		Amount:       ev.Amount.Abs(),
		OccurredAt:   ev.OccurredAt,
	})
}
