/*
desk.go - Payout-request lifecycle (withdrawal desk)

PURPOSE:
  Creates withdrawal requests, enforces the bucket-assignment business
  rule, and owns the success/failure transitions. The transition into
  success is the single place that fires the ledger's withdrawal
  impact, exactly once per record.

BUCKET ASSIGNMENT:
  A caller may request either bucket at creation time, EXCEPT the
  gateway channel, which is always force-pinned to the fee bucket
  server-side regardless of what the caller requested. The engine
  enforces this rather than trusting client input.

AT-MOST-ONCE:
  CompleteWithdrawal checks the record's prior status before flipping
  it to success and firing the impact. A second completion returns
  ErrAlreadyCompleted and fires nothing.

SEE ALSO:
  - withdrawable.go: The availability numbers requests are checked against
  - ledger/applier.go: The impact the success transition fires
*/
package settlement

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/settlement-engine/ledger"
)

// ChannelGateway is the payment channel whose withdrawals are always
// pinned to the fee bucket, whatever the caller asked for.
const ChannelGateway = "gateway"

// =============================================================================
// DESK
// =============================================================================

// Desk handles partner payout requests.
type Desk struct {
	Withdrawals ledger.WithdrawalSource
	Calculator  *Calculator
	Applier     *ledger.Applier

	// Now is overridable for tests; defaults to time.Now UTC.
	Now func() time.Time
}

func NewDesk(withdrawals ledger.WithdrawalSource, calc *Calculator, applier *ledger.Applier) *Desk {
	return &Desk{Withdrawals: withdrawals, Calculator: calc, Applier: applier}
}

func (d *Desk) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now().UTC()
}

// WithdrawalRequest is a partner's payout request as it arrives.
type WithdrawalRequest struct {
	PartnerID  ledger.PartnerID
	Amount     decimal.Decimal
	DeductFrom ledger.Bucket
	Channel    string
	Note       string
}

// AssignBucket resolves the bucket a withdrawal actually draws from:
// the requested bucket (defaulting to fee), overridden to the fee
// bucket whenever the channel is the pinned gateway channel.
func AssignBucket(channel string, requested ledger.Bucket) ledger.Bucket {
	if channel == ChannelGateway {
		return ledger.BucketFee
	}
	if requested == "" {
		return ledger.BucketFee
	}
	return requested
}

// RequestWithdrawal validates a payout request against the requesting
// bucket's current availability and persists it as pending. Pending
// withdrawals do not reduce availability; only a later success does.
func (d *Desk) RequestWithdrawal(ctx context.Context, req WithdrawalRequest) (*ledger.Withdrawal, error) {
	if req.PartnerID == "" {
		return nil, ledger.ErrPartnerNotFound
	}
	if !req.Amount.IsPositive() {
		return nil, ledger.ErrInvalidAmount
	}
	if req.DeductFrom != "" && !ledger.ValidBucket(req.DeductFrom) {
		return nil, ledger.ErrUnknownBucket
	}

	bucket := AssignBucket(req.Channel, req.DeductFrom)

	avail, err := d.Calculator.WithdrawableAmount(ctx, req.PartnerID)
	if err != nil {
		return nil, err
	}
	if req.Amount.GreaterThan(avail.AvailableIn(bucket)) {
		return nil, &ledger.InsufficientWithdrawableError{
			PartnerID: req.PartnerID,
			Bucket:    bucket,
			Available: avail.AvailableIn(bucket),
			Requested: req.Amount,
		}
	}

	w := ledger.Withdrawal{
		ID:          ledger.WithdrawalID(NewID()),
		PartnerID:   req.PartnerID,
		Amount:      req.Amount,
		DeductFrom:  bucket,
		Channel:     req.Channel,
		Status:      ledger.WithdrawalPending,
		Note:        req.Note,
		RequestedAt: d.now(),
	}
	if err := d.Withdrawals.SaveWithdrawal(ctx, w); err != nil {
		return nil, err
	}
	return &w, nil
}

// CompleteWithdrawal performs a withdrawal's first success transition
// and fires the ledger impact. The prior-status check is the
// caller-owned at-most-once guarantee the ledger core documents.
//
// The ledger decrement is never rolled back because of a downstream
// side effect failing after this returns.
func (d *Desk) CompleteWithdrawal(ctx context.Context, id ledger.WithdrawalID) (*ledger.Withdrawal, error) {
	w, err := d.Withdrawals.Withdrawal(ctx, id)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, ledger.ErrWithdrawalNotFound
	}
	if w.Status == ledger.WithdrawalSuccess {
		return nil, ledger.ErrAlreadyCompleted
	}
	if w.Status != ledger.WithdrawalPending && w.Status != ledger.WithdrawalProcessing {
		return nil, ledger.ErrWithdrawalNotPending
	}

	at := d.now()
	w.Status = ledger.WithdrawalSuccess
	w.CompletedAt = &at

	if err := d.Withdrawals.SaveWithdrawal(ctx, *w); err != nil {
		return nil, err
	}

	err = d.Applier.ApplyWithdrawalSucceeded(ctx, ledger.WithdrawalSucceededEvent{
		PartnerID:    w.PartnerID,
		WithdrawalID: w.ID,
		Amount:       w.Amount,
		Bucket:       w.DeductFrom,
		OccurredAt:   at,
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// FailWithdrawal marks a pending/processing withdrawal as failed. No
// ledger impact fires; failed withdrawals never reduce availability.
func (d *Desk) FailWithdrawal(ctx context.Context, id ledger.WithdrawalID, reason string) (*ledger.Withdrawal, error) {
	w, err := d.Withdrawals.Withdrawal(ctx, id)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, ledger.ErrWithdrawalNotFound
	}
	if w.Status != ledger.WithdrawalPending && w.Status != ledger.WithdrawalProcessing {
		return nil, ledger.ErrWithdrawalNotPending
	}

	w.Status = ledger.WithdrawalFailed
	w.Note = reason
	if err := d.Withdrawals.SaveWithdrawal(ctx, *w); err != nil {
		return nil, err
	}
	return w, nil
}
