/*
Package settlement provides the operator-facing layer on top of the
ledger core: the fee schedule, the debt report, the withdrawable
amount calculator, and the withdrawal desk.

PURPOSE:
  The ledger package owns the aggregate rows and the two write paths;
  this package owns the business rules around them - which fee percent
  a booking freezes, when the paid/success transitions fire their
  ledger impacts, how settlement status is classified, and which
  bucket a payout may draw from.

KEY CONCEPTS IN THIS FILE (fee.go):
  - FeeConfigEntry: one fee-percent change in the ordered history
  - FeeSchedule: reads "latest applicable percent" and freezes it onto
    a booking at its first paid-equivalent transition
  - MarkBookingPaid: the caller-side at-most-once gate in front of
    ledger.Applier.ApplyBookingPaid

SNAPSHOT RULE:
  The fee snapshot (percent, amount, applied-at) is captured exactly
  once, from the history's latest entry at the moment the booking
  first becomes paid, then frozen. Later fee changes or booking edits
  never recompute it.

SEE ALSO:
  - ledger/applier.go: The impact this gate fires
  - desk.go: The same gate pattern for withdrawals
*/
package settlement

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"github.com/warp/settlement-engine/ledger"
)

// =============================================================================
// FEE CONFIGURATION HISTORY
// =============================================================================

// FeeConfigEntry records one fee-percent change. The current fee is
// the entry with the latest CreatedAt.
type FeeConfigEntry struct {
	ID         string
	OldPercent decimal.Decimal
	NewPercent decimal.Decimal
	Note       string
	CreatedAt  time.Time
}

// FeeConfigStore persists the ordered fee-change log.
type FeeConfigStore interface {
	// LatestFeeConfig returns the most recent entry, or nil if the
	// history is empty.
	LatestFeeConfig(ctx context.Context) (*FeeConfigEntry, error)

	// AppendFeeConfig appends a new entry.
	AppendFeeConfig(ctx context.Context, entry FeeConfigEntry) error

	// FeeConfigHistory returns up to limit entries, newest first.
	FeeConfigHistory(ctx context.Context, limit int) ([]FeeConfigEntry, error)
}

// =============================================================================
// FEE SCHEDULE
// =============================================================================

// FeeSchedule reads the current platform fee percent and freezes it
// onto bookings at their first paid-equivalent transition.
type FeeSchedule struct {
	Config   FeeConfigStore
	Bookings ledger.BookingSource
	Applier  *ledger.Applier

	// Now is overridable for tests; defaults to time.Now UTC.
	Now func() time.Time
}

func NewFeeSchedule(config FeeConfigStore, bookings ledger.BookingSource, applier *ledger.Applier) *FeeSchedule {
	return &FeeSchedule{Config: config, Bookings: bookings, Applier: applier}
}

func (s *FeeSchedule) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// CurrentPercent returns the latest fee percent, zero if the history
// is empty.
func (s *FeeSchedule) CurrentPercent(ctx context.Context) (decimal.Decimal, error) {
	entry, err := s.Config.LatestFeeConfig(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	if entry == nil {
		return decimal.Zero, nil
	}
	return entry.NewPercent, nil
}

// SetPercent appends a fee change recording old -> new.
func (s *FeeSchedule) SetPercent(ctx context.Context, newPercent decimal.Decimal, note string) (*FeeConfigEntry, error) {
	old, err := s.CurrentPercent(ctx)
	if err != nil {
		return nil, err
	}

	entry := FeeConfigEntry{
		ID:         NewID(),
		OldPercent: old,
		NewPercent: newPercent,
		Note:       note,
		CreatedAt:  s.now(),
	}
	if err := s.Config.AppendFeeConfig(ctx, entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// MarkBookingPaid performs a booking's first paid-equivalent
// transition: freezes the fee snapshot from the current schedule,
// persists the booking, then fires the ledger impact exactly once.
//
// A booking that is already paid-equivalent returns ErrAlreadyPaid
// and fires nothing - this is the caller-owned "was this already
// applied" check the ledger core's trust boundary relies on.
//
// The ledger impact is never rolled back once applied; a failure in
// any later best-effort side effect (invoicing, notification) leaves
// the payment state as committed.
func (s *FeeSchedule) MarkBookingPaid(ctx context.Context, id ledger.BookingID) (*ledger.Booking, error) {
	b, err := s.Bookings.Booking(ctx, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ledger.ErrBookingNotFound
	}
	if b.Status.PaidEquivalent() {
		return nil, ledger.ErrAlreadyPaid
	}

	percent, err := s.CurrentPercent(ctx)
	if err != nil {
		return nil, err
	}

	at := s.now()
	gross := b.EffectiveGross()
	fee := gross.Mul(percent).Div(decimal.NewFromInt(100))

	b.Status = ledger.BookingPaid
	b.FeePercent = &percent
	b.ServiceFeeAmount = fee
	b.FeeAppliedAt = &at
	b.PaidAt = &at

	if err := s.Bookings.SaveBooking(ctx, *b); err != nil {
		return nil, err
	}

	err = s.Applier.ApplyBookingPaid(ctx, ledger.BookingPaidEvent{
		PartnerID:        b.PartnerID,
		BookingID:        b.ID,
		GrossAmount:      gross,
		ServiceFeeAmount: fee,
		DiscountAmount:   b.EffectiveDiscount(),
		OccurredAt:       at,
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// NewID returns a ULID string for server-generated record ids.
func NewID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
