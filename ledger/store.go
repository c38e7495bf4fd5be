/*
store.go - Persistence interfaces for the ledger core and its sources

PURPOSE:
  Defines the interface between the ledger core and the database.
  All state lives behind these interfaces - the core holds nothing in
  process-wide globals. Different implementations can use SQLite,
  PostgreSQL, or in-memory storage.

KEY INTERFACES:
  LedgerStore:      The one owned table: per-partner aggregate rows
  BookingSource:    Paid/completed booking records (collaborator data)
  WithdrawalSource: Payout requests tagged with bucket and status
  PartnerDirectory: Presentational partner names (best-effort)

ATOMIC IMPACTS:
  ApplyBookingImpact and ApplyWithdrawalImpact are the ONLY
  steady-state writers of ledger rows. Each must be implemented as a
  single atomic upsert-plus-increment against one row - never a
  separate read followed by a separate write - so that concurrent
  events for the same partner remain correct.

OVERWRITE PATH:
  Put performs a wholesale overwrite of one row. It exists for the
  rebuild engine only. A rebuild racing a fresh incremental impact may
  transiently overwrite it; rebuild is an operator-invoked
  reconciliation action, not a steady-state code path.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite store (all interfaces)
  - ledger/store: in-memory store for tests and dev

SEE ALSO:
  - applier.go: Uses ApplyBookingImpact / ApplyWithdrawalImpact
  - rebuild.go: Uses the sources plus Put
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IMPACTS - The two atomic row mutations
// =============================================================================

// BookingImpact is the increment applied to a partner row when a
// booking first becomes paid. All deltas are non-negative; Receivable
// is pre-floored at zero by the applier.
type BookingImpact struct {
	PartnerID  PartnerID
	BookingID  BookingID
	Gross      decimal.Decimal
	Fee        decimal.Decimal
	Discount   decimal.Decimal
	Receivable decimal.Decimal
	OccurredAt time.Time
}

// WithdrawalImpact is the decrement applied to a partner row when a
// withdrawal first succeeds. Amount is the absolute payout amount; the
// bucket balance is decremented WITHOUT clamping at zero - a negative
// balance is a legitimate drift signal for reconciliation, not a
// condition to hide here.
type WithdrawalImpact struct {
	PartnerID    PartnerID
	WithdrawalID WithdrawalID
	Bucket       Bucket
	Amount       decimal.Decimal
	OccurredAt   time.Time
}

// =============================================================================
// LEDGER STORE - The core's owned state
// =============================================================================

// LedgerStore persists one aggregate row per partner.
type LedgerStore interface {
	// ApplyBookingImpact atomically upserts a zero-initialized row if
	// absent and applies the booking increments to it.
	ApplyBookingImpact(ctx context.Context, impact BookingImpact) error

	// ApplyWithdrawalImpact atomically upserts a zero-initialized row
	// if absent and applies the withdrawal decrement to it.
	ApplyWithdrawalImpact(ctx context.Context, impact WithdrawalImpact) error

	// Ledger returns a partner's row, or nil if none exists yet.
	Ledger(ctx context.Context, partnerID PartnerID) (*PartnerLedger, error)

	// PutLedger wholesale-overwrites a partner's row (rebuild path).
	PutLedger(ctx context.Context, row PartnerLedger) error

	// Ledgers returns every persisted row.
	Ledgers(ctx context.Context) ([]PartnerLedger, error)

	// LedgerPartnerIDs returns the ids of partners that have a row.
	LedgerPartnerIDs(ctx context.Context) ([]PartnerID, error)

	// ResetLedgers deletes every row. Explicit global reset only.
	ResetLedgers(ctx context.Context) error
}

// =============================================================================
// SOURCES - Collaborator-owned records the core reads
// =============================================================================

// BookingSource exposes the booking log the rebuild engine and the
// settlement reporter aggregate over.
type BookingSource interface {
	// Booking returns one booking, or nil if it doesn't exist.
	Booking(ctx context.Context, id BookingID) (*Booking, error)

	// SaveBooking upserts a booking record.
	SaveBooking(ctx context.Context, b Booking) error

	// PaidBookingsByPartner returns a partner's paid-equivalent
	// bookings (status in paid/completed/done).
	PaidBookingsByPartner(ctx context.Context, partnerID PartnerID) ([]Booking, error)

	// BookingPartnerIDs returns every partner id appearing in bookings.
	BookingPartnerIDs(ctx context.Context) ([]PartnerID, error)
}

// WithdrawalSource exposes the payout-request log.
type WithdrawalSource interface {
	// Withdrawal returns one withdrawal, or nil if it doesn't exist.
	Withdrawal(ctx context.Context, id WithdrawalID) (*Withdrawal, error)

	// SaveWithdrawal upserts a withdrawal record.
	SaveWithdrawal(ctx context.Context, w Withdrawal) error

	// WithdrawalsByPartner returns all of a partner's withdrawals,
	// any status, ordered by request time.
	WithdrawalsByPartner(ctx context.Context, partnerID PartnerID) ([]Withdrawal, error)

	// WithdrawalPartnerIDs returns every partner id appearing in
	// withdrawals.
	WithdrawalPartnerIDs(ctx context.Context) ([]PartnerID, error)
}

// PartnerDirectory resolves presentational partner metadata. A miss or
// failure degrades gracefully in reports (raw id is shown instead).
type PartnerDirectory interface {
	// PartnerName returns a partner's display name, or "" if unknown.
	PartnerName(ctx context.Context, id PartnerID) (string, error)
}
