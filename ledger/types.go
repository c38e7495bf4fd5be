/*
Package ledger provides the partner financial ledger core.

PURPOSE:
  This package contains the domain types and algorithms for tracking,
  per partner, how much revenue has flowed through the marketplace, how
  much service fee is owed to the platform, how much is owed to the
  partner, and how much has already been withdrawn. It owns exactly one
  durable aggregate row per partner and the two code paths that mutate
  it: incremental event impacts and full rebuilds from source logs.

KEY CONCEPTS IN THIS FILE (types.go):
  - PartnerLedger: the per-partner running-balance aggregate row
  - Booking / Withdrawal: source records (consumed, not owned)
  - Bucket: accounting partition (fee vs. received) for withdrawals
  - BookingPaid / WithdrawalSucceeded: inbound lifecycle events
  - CoerceAmount / EffectiveFeePercent: defensive numeric helpers

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Type Safety: Strong typing for IDs prevents mixing partner/booking IDs
  3. Single row: every field one partner's events can touch lives in
     that partner's PartnerLedger row, so no cross-row transaction exists
  4. Re-derivable: every aggregate field can be recomputed from the
     booking and withdrawal source logs (see rebuild.go)

SEE ALSO:
  - applier.go: Incremental event impacts
  - rebuild.go: Full recomputation from source logs
  - store.go: Persistence interfaces
*/
package ledger

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type PartnerID string
type BookingID string
type WithdrawalID string

// =============================================================================
// BUCKET - Accounting partition for withdrawals
// =============================================================================

// Bucket identifies which side of the ledger a withdrawal draws from.
// The two buckets never offset one another: a deficit in one does not
// reduce the other's availability.
type Bucket string

const (
	// BucketFee draws from the platform's collected service fee.
	BucketFee Bucket = "fee"

	// BucketReceived draws from the partner's receivable
	// (gross revenue minus fee minus discounts).
	BucketReceived Bucket = "received"
)

// ValidBucket reports whether b is a known bucket.
func ValidBucket(b Bucket) bool {
	return b == BucketFee || b == BucketReceived
}

// =============================================================================
// PARTNER LEDGER - One durable aggregate row per partner
// =============================================================================

// PartnerLedger is the running-balance aggregate for one partner.
//
// Target invariants (may be violated transiently; drift is what a
// rebuild detects and corrects, the row itself never self-checks):
//
//	ServiceFeeBalance  == TotalServiceFee - TotalWithdrawnFee
//	ReceivableBalance  == max(0, TotalRevenue - TotalServiceFee
//	                             - TotalDiscounts - TotalWithdrawnReceivable)
//
// Rows are created lazily (zero-initialized) on first impact or first
// rebuild and never deleted except by an explicit global reset.
type PartnerLedger struct {
	PartnerID PartnerID

	// Current owed amounts, per bucket.
	ServiceFeeBalance decimal.Decimal
	ReceivableBalance decimal.Decimal

	// Lifetime sums from paid bookings.
	TotalRevenue    decimal.Decimal
	TotalServiceFee decimal.Decimal
	TotalDiscounts  decimal.Decimal

	// Lifetime sums of successful withdrawals, per bucket.
	TotalWithdrawnFee        decimal.Decimal
	TotalWithdrawnReceivable decimal.Decimal

	// Best-effort, informational only. A rebuild clears the ID
	// pointers because it does not reconstruct event ordering.
	LastBookingID    BookingID
	LastWithdrawalID WithdrawalID
	LastBookingAt    *time.Time
	LastWithdrawalAt *time.Time

	UpdatedAt time.Time
}

// ZeroLedger returns the well-defined zero-valued row shape for a
// partner that has no persisted ledger yet.
func ZeroLedger(id PartnerID) PartnerLedger {
	return PartnerLedger{
		PartnerID:                id,
		ServiceFeeBalance:        decimal.Zero,
		ReceivableBalance:        decimal.Zero,
		TotalRevenue:             decimal.Zero,
		TotalServiceFee:          decimal.Zero,
		TotalDiscounts:           decimal.Zero,
		TotalWithdrawnFee:        decimal.Zero,
		TotalWithdrawnReceivable: decimal.Zero,
	}
}

// =============================================================================
// BOOKING - Source record (consumed, not owned)
// =============================================================================

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingPaid      BookingStatus = "paid"
	BookingCompleted BookingStatus = "completed"
	BookingDone      BookingStatus = "done"
	BookingCancelled BookingStatus = "cancelled"
)

// PaidEquivalent reports whether a booking status counts toward the
// ledger. Only paid-equivalent bookings contribute revenue.
func (s BookingStatus) PaidEquivalent() bool {
	return s == BookingPaid || s == BookingCompleted || s == BookingDone
}

// Booking is a paid/completed booking record as handed to the ledger
// core by the booking workflow. The fee snapshot fields (FeePercent,
// ServiceFeeAmount, FeeAppliedAt) are captured exactly once, at the
// booking's first paid-equivalent transition, and then frozen: later
// edits to the booking must not recompute them.
type Booking struct {
	ID        BookingID
	PartnerID PartnerID
	Status    BookingStatus

	// TotalPrice is the listed price; FinalTotal, when present, is the
	// price after order-level corrections and wins over TotalPrice.
	TotalPrice decimal.Decimal
	FinalTotal *decimal.Decimal
	Discount   decimal.Decimal

	// Fee snapshot, frozen at first paid-equivalent transition.
	// FeeApplied is the legacy percent field kept for old records.
	FeePercent       *decimal.Decimal
	FeeApplied       *decimal.Decimal
	ServiceFeeAmount decimal.Decimal
	FeeAppliedAt     *time.Time

	PaidAt    *time.Time
	CreatedAt time.Time
}

// EffectiveGross returns the booking's revenue contribution:
// FinalTotal when present, else TotalPrice, else zero.
func (b Booking) EffectiveGross() decimal.Decimal {
	if b.FinalTotal != nil {
		return *b.FinalTotal
	}
	return b.TotalPrice
}

// EffectiveFeePercent resolves the fee percent recorded on a booking.
//
// Precedence (documented, exhaustive):
//  1. FeePercent - the snapshot captured at first paid transition
//  2. FeeApplied - the legacy field older records carry instead
//  3. zero      - no percent was ever recorded
func EffectiveFeePercent(b Booking) decimal.Decimal {
	if b.FeePercent != nil {
		return *b.FeePercent
	}
	if b.FeeApplied != nil {
		return *b.FeeApplied
	}
	return decimal.Zero
}

// EffectiveFee returns the booking's service fee contribution: the
// stored ServiceFeeAmount when positive, otherwise recomputed as
// gross x percent / 100 from the resolved fee percent.
func (b Booking) EffectiveFee() decimal.Decimal {
	if b.ServiceFeeAmount.IsPositive() {
		return b.ServiceFeeAmount
	}
	return b.EffectiveGross().Mul(EffectiveFeePercent(b)).Div(decimal.NewFromInt(100))
}

// EffectiveDiscount returns the booking's discount contribution.
func (b Booking) EffectiveDiscount() decimal.Decimal {
	return b.Discount
}

// =============================================================================
// WITHDRAWAL - Source record (append-only with a mutable status)
// =============================================================================

type WithdrawalStatus string

const (
	WithdrawalPending    WithdrawalStatus = "pending"
	WithdrawalProcessing WithdrawalStatus = "processing"
	WithdrawalSuccess    WithdrawalStatus = "success"
	WithdrawalFailed     WithdrawalStatus = "failed"
	WithdrawalRejected   WithdrawalStatus = "rejected"
)

// Withdrawal is a payout request tagged with a target bucket. Only
// status == success counts toward ledger totals; the transition into
// success is the trigger that fires the ledger impact, exactly once
// per record.
type Withdrawal struct {
	ID         WithdrawalID
	PartnerID  PartnerID
	Amount     decimal.Decimal
	DeductFrom Bucket
	Channel    string
	Status     WithdrawalStatus
	Note       string

	RequestedAt time.Time
	CompletedAt *time.Time
}

// =============================================================================
// INBOUND EVENTS
// =============================================================================

// BookingPaidEvent is emitted exactly once, at a booking's first
// paid-equivalent transition. Wire-level numbers are coerced into
// these decimal fields with CoerceAmount before the event is built.
type BookingPaidEvent struct {
	PartnerID        PartnerID
	BookingID        BookingID
	GrossAmount      decimal.Decimal
	ServiceFeeAmount decimal.Decimal
	DiscountAmount   decimal.Decimal
	OccurredAt       time.Time
}

// WithdrawalSucceededEvent is emitted exactly once, at a withdrawal's
// first success transition.
type WithdrawalSucceededEvent struct {
	PartnerID    PartnerID
	WithdrawalID WithdrawalID
	Amount       decimal.Decimal
	Bucket       Bucket
	OccurredAt   time.Time
}

// CoerceAmount converts a wire-level number into a decimal amount.
// NaN and infinities collapse to zero so a malformed value can never
// corrupt an aggregate.
func CoerceAmount(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

// MaxZero floors a decimal at zero.
func MaxZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
