/*
errors.go - Centralized error types for the ledger core

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages (settlement, api) wrap these errors with additional
  context rather than defining parallel hierarchies.

ERROR CATEGORIES:
  1. Lifecycle errors - duplicate paid/success transitions
  2. Validation errors - unknown buckets, insufficient availability
  3. Store errors - persistence failures propagate as hard failures

USAGE:
  if errors.Is(err, ledger.ErrAlreadyPaid) {
      // second paid transition: the impact was already applied
  }

SEE ALSO:
  - applier.go: Uses these errors
  - settlement/desk.go: Wraps ErrInsufficientWithdrawable with amounts
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrBookingNotFound is returned when a referenced booking doesn't exist.
	ErrBookingNotFound = errors.New("booking not found")

	// ErrWithdrawalNotFound is returned when a referenced withdrawal doesn't exist.
	ErrWithdrawalNotFound = errors.New("withdrawal not found")

	// ErrPartnerNotFound is returned when a referenced partner doesn't exist.
	ErrPartnerNotFound = errors.New("partner not found")

	// ErrAlreadyPaid is returned on a second paid-equivalent transition
	// of the same booking. The ledger impact fired on the first one.
	ErrAlreadyPaid = errors.New("booking already paid")

	// ErrAlreadyCompleted is returned on a second success transition of
	// the same withdrawal. The ledger impact fired on the first one.
	ErrAlreadyCompleted = errors.New("withdrawal already completed")

	// ErrWithdrawalNotPending is returned when completing or failing a
	// withdrawal that already left the pending/processing states.
	ErrWithdrawalNotPending = errors.New("withdrawal is not pending")

	// ErrUnknownBucket is returned for a deduct-from value that is
	// neither "fee" nor "received".
	ErrUnknownBucket = errors.New("unknown withdrawal bucket")

	// ErrInsufficientWithdrawable is returned when a payout request
	// exceeds the requested bucket's current availability.
	ErrInsufficientWithdrawable = errors.New("insufficient withdrawable amount")

	// ErrInvalidAmount is returned for zero or negative payout amounts.
	ErrInvalidAmount = errors.New("invalid amount")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientWithdrawableError reports how far a payout request
// overshoots a bucket's availability.
type InsufficientWithdrawableError struct {
	PartnerID PartnerID
	Bucket    Bucket
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientWithdrawableError) Error() string {
	return fmt.Sprintf("insufficient withdrawable in %s bucket: available %v, requested %v",
		e.Bucket, e.Available, e.Requested)
}

func (e *InsufficientWithdrawableError) Unwrap() error {
	return ErrInsufficientWithdrawable
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input
// or a state conflict the caller can resolve.
func IsClientError(err error) bool {
	return errors.Is(err, ErrAlreadyPaid) ||
		errors.Is(err, ErrAlreadyCompleted) ||
		errors.Is(err, ErrWithdrawalNotPending) ||
		errors.Is(err, ErrUnknownBucket) ||
		errors.Is(err, ErrInsufficientWithdrawable) ||
		errors.Is(err, ErrInvalidAmount)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrBookingNotFound) ||
		errors.Is(err, ErrWithdrawalNotFound) ||
		errors.Is(err, ErrPartnerNotFound)
}
