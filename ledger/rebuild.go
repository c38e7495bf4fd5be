/*
rebuild.go - Reconciliation: full ledger recomputation from source logs

PURPOSE:
  Recomputes a partner's aggregate row from first principles by
  re-aggregating the booking and withdrawal source logs, then
  wholesale-overwrites the stored row. Used to correct drift between
  the incrementally maintained ledger and the source truth, and to
  bootstrap ledgers for partners whose events predate the ledger.

IDEMPOTENCE:
  Re-running a rebuild with unchanged source data reproduces identical
  numeric output. Drift between the incremental row and the rebuilt
  row is NOT an internal error - it is the expected signal that an
  operator should invoke this routine.

CONCURRENCY:
  Rebuilds read a potentially large slice of source data and overwrite
  the target row without locking out concurrent incremental updates. A
  rebuild racing a fresh impact may transiently overwrite it. This is
  acceptable for an operator-invoked reconciliation action and is
  deliberately not hidden behind extra locking.

LAST-ID POINTERS:
  The rebuild discovers the latest booking/withdrawal TIMESTAMPS but
  resets the last-id POINTERS to empty: it does not reconstruct event
  ordering, and the pointers are best-effort informational fields.

SEE ALSO:
  - applier.go: The steady-state incremental path this corrects
  - settlement/report.go: Uses the same per-booking effective amounts
*/
package ledger

import (
	"context"
	"time"
)

// =============================================================================
// REBUILDER
// =============================================================================

// Rebuilder recomputes partner ledger rows from the source logs.
type Rebuilder struct {
	Ledgers     LedgerStore
	Bookings    BookingSource
	Withdrawals WithdrawalSource
}

func NewRebuilder(ledgers LedgerStore, bookings BookingSource, withdrawals WithdrawalSource) *Rebuilder {
	return &Rebuilder{Ledgers: ledgers, Bookings: bookings, Withdrawals: withdrawals}
}

// RebuildSummary reports what a multi-partner rebuild touched.
type RebuildSummary struct {
	Rebuilt  int
	Partners []PartnerID
}

// RebuildLedger recomputes one partner's row from scratch and
// overwrites the stored row. Returns the rebuilt row.
func (r *Rebuilder) RebuildLedger(ctx context.Context, partnerID PartnerID) (*PartnerLedger, error) {
	row, err := r.Compute(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	if err := r.Ledgers.PutLedger(ctx, *row); err != nil {
		return nil, err
	}
	return row, nil
}

// Compute aggregates one partner's sources into a fresh row without
// persisting it. The settlement reporter uses this directly for
// partners whose ledger row does not exist yet.
func (r *Rebuilder) Compute(ctx context.Context, partnerID PartnerID) (*PartnerLedger, error) {
	row := ZeroLedger(partnerID)

	// 1. Aggregate paid-equivalent bookings.
	bookings, err := r.Bookings.PaidBookingsByPartner(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	var lastBookingAt *time.Time
	for _, b := range bookings {
		row.TotalRevenue = row.TotalRevenue.Add(b.EffectiveGross())
		row.TotalServiceFee = row.TotalServiceFee.Add(b.EffectiveFee())
		row.TotalDiscounts = row.TotalDiscounts.Add(b.EffectiveDiscount())
		if at := bookingTime(b); at != nil {
			if lastBookingAt == nil || at.After(*lastBookingAt) {
				lastBookingAt = at
			}
		}
	}

	// 2. Aggregate successful withdrawals, grouped by bucket.
	withdrawals, err := r.Withdrawals.WithdrawalsByPartner(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	var lastWithdrawalAt *time.Time
	for _, w := range withdrawals {
		if w.Status != WithdrawalSuccess {
			continue
		}
		switch w.DeductFrom {
		case BucketReceived:
			row.TotalWithdrawnReceivable = row.TotalWithdrawnReceivable.Add(w.Amount.Abs())
		default:
			// Unknown buckets on historical records fold into the fee
			// bucket, matching the force-pinning rule at creation time.
			row.TotalWithdrawnFee = row.TotalWithdrawnFee.Add(w.Amount.Abs())
		}
		if at := withdrawalTime(w); at != nil {
			if lastWithdrawalAt == nil || at.After(*lastWithdrawalAt) {
				lastWithdrawalAt = at
			}
		}
	}

	// 3. Derive balances, floored at zero. Raw totals above keep the
	// true deficit visible for diagnosis.
	totalReceivable := MaxZero(row.TotalRevenue.Sub(row.TotalServiceFee).Sub(row.TotalDiscounts))
	row.ServiceFeeBalance = MaxZero(row.TotalServiceFee.Sub(row.TotalWithdrawnFee))
	row.ReceivableBalance = MaxZero(totalReceivable.Sub(row.TotalWithdrawnReceivable))

	// 4. Timestamps survive; id pointers are reset (no event ordering).
	row.LastBookingAt = lastBookingAt
	row.LastWithdrawalAt = lastWithdrawalAt
	row.LastBookingID = ""
	row.LastWithdrawalID = ""
	row.UpdatedAt = time.Now().UTC()

	return &row, nil
}

// RebuildMany rebuilds the given partners in order.
func (r *Rebuilder) RebuildMany(ctx context.Context, ids []PartnerID) (RebuildSummary, error) {
	summary := RebuildSummary{}
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, err := r.RebuildLedger(ctx, id); err != nil {
			return summary, err
		}
		summary.Rebuilt++
		summary.Partners = append(summary.Partners, id)
	}
	return summary, nil
}

// RebuildAll rebuilds every discoverable partner: the union of ids
// appearing in bookings, existing ledger rows, and withdrawals.
func (r *Rebuilder) RebuildAll(ctx context.Context) (RebuildSummary, error) {
	ids, err := r.PartnerUniverse(ctx)
	if err != nil {
		return RebuildSummary{}, err
	}
	return r.RebuildMany(ctx, ids)
}

// PartnerUniverse returns every partner id known to any source,
// deduplicated, in discovery order (bookings, ledgers, withdrawals).
func (r *Rebuilder) PartnerUniverse(ctx context.Context) ([]PartnerID, error) {
	seen := make(map[PartnerID]bool)
	var ids []PartnerID

	add := func(more []PartnerID) {
		for _, id := range more {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
	}

	fromBookings, err := r.Bookings.BookingPartnerIDs(ctx)
	if err != nil {
		return nil, err
	}
	add(fromBookings)

	fromLedgers, err := r.Ledgers.LedgerPartnerIDs(ctx)
	if err != nil {
		return nil, err
	}
	add(fromLedgers)

	fromWithdrawals, err := r.Withdrawals.WithdrawalPartnerIDs(ctx)
	if err != nil {
		return nil, err
	}
	add(fromWithdrawals)

	return ids, nil
}

func bookingTime(b Booking) *time.Time {
	if b.PaidAt != nil {
		return b.PaidAt
	}
	if !b.CreatedAt.IsZero() {
		t := b.CreatedAt
		return &t
	}
	return nil
}

func withdrawalTime(w Withdrawal) *time.Time {
	if w.CompletedAt != nil {
		return w.CompletedAt
	}
	if !w.RequestedAt.IsZero() {
		t := w.RequestedAt
		return &t
	}
	return nil
}
