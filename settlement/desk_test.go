package settlement_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/settlement-engine/ledger"
	"github.com/warp/settlement-engine/settlement"
)

// =============================================================================
// BUCKET ASSIGNMENT TESTS
// =============================================================================

func TestAssignBucket(t *testing.T) {
	// The gateway channel is always pinned to the fee bucket,
	// whatever the caller requested.
	assert.Equal(t, ledger.BucketFee, settlement.AssignBucket(settlement.ChannelGateway, ledger.BucketReceived))
	assert.Equal(t, ledger.BucketFee, settlement.AssignBucket(settlement.ChannelGateway, ledger.BucketFee))
	assert.Equal(t, ledger.BucketFee, settlement.AssignBucket(settlement.ChannelGateway, ""))

	// Other channels honor the request, defaulting to fee.
	assert.Equal(t, ledger.BucketReceived, settlement.AssignBucket("bank", ledger.BucketReceived))
	assert.Equal(t, ledger.BucketFee, settlement.AssignBucket("bank", ledger.BucketFee))
	assert.Equal(t, ledger.BucketFee, settlement.AssignBucket("bank", ""))
}

// =============================================================================
// REQUEST VALIDATION TESTS
// =============================================================================

func TestRequestWithdrawal_WithinAvailabilitySucceeds(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	_, err := e.fees.SetPercent(ctx, decimal.NewFromInt(10), "")
	require.NoError(t, err)
	_, err = e.payBooking(ctx, "b-1", "p-1", 100000, 0)
	require.NoError(t, err)

	w, err := e.desk.RequestWithdrawal(ctx, settlement.WithdrawalRequest{
		PartnerID:  "p-1",
		Amount:     decimal.NewFromInt(10000),
		DeductFrom: ledger.BucketFee,
		Channel:    "bank",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, string(w.ID))
	assert.Equal(t, ledger.WithdrawalPending, w.Status)
	assert.Equal(t, ledger.BucketFee, w.DeductFrom)
	assert.False(t, w.RequestedAt.IsZero())
}

func TestRequestWithdrawal_OverAvailabilityRejectedWithAmounts(t *testing.T) {
	// GIVEN: A fee bucket holding 10,000
	// WHEN: A 10,001 fee withdrawal is requested
	// THEN: The structured error names the bucket and both amounts

	e := newEngine()
	ctx := context.Background()

	_, err := e.fees.SetPercent(ctx, decimal.NewFromInt(10), "")
	require.NoError(t, err)
	_, err = e.payBooking(ctx, "b-1", "p-1", 100000, 0)
	require.NoError(t, err)

	_, err = e.desk.RequestWithdrawal(ctx, settlement.WithdrawalRequest{
		PartnerID:  "p-1",
		Amount:     decimal.NewFromInt(10001),
		DeductFrom: ledger.BucketFee,
	})
	require.ErrorIs(t, err, ledger.ErrInsufficientWithdrawable)

	var insufficient *ledger.InsufficientWithdrawableError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, ledger.BucketFee, insufficient.Bucket)
	assert.True(t, insufficient.Available.Equal(decimal.NewFromInt(10000)))
	assert.True(t, insufficient.Requested.Equal(decimal.NewFromInt(10001)))
}

func TestRequestWithdrawal_ChecksTheRequestedBucketOnly(t *testing.T) {
	// GIVEN: 10,000 in the fee bucket, 90,000 in the received bucket
	// WHEN: 50,000 is requested from the fee bucket
	// THEN: The request fails even though the combined total would cover it

	e := newEngine()
	ctx := context.Background()

	_, err := e.fees.SetPercent(ctx, decimal.NewFromInt(10), "")
	require.NoError(t, err)
	_, err = e.payBooking(ctx, "b-1", "p-1", 100000, 0)
	require.NoError(t, err)

	_, err = e.desk.RequestWithdrawal(ctx, settlement.WithdrawalRequest{
		PartnerID:  "p-1",
		Amount:     decimal.NewFromInt(50000),
		DeductFrom: ledger.BucketFee,
	})
	assert.ErrorIs(t, err, ledger.ErrInsufficientWithdrawable, "buckets never cover for each other")

	_, err = e.desk.RequestWithdrawal(ctx, settlement.WithdrawalRequest{
		PartnerID:  "p-1",
		Amount:     decimal.NewFromInt(50000),
		DeductFrom: ledger.BucketReceived,
	})
	assert.NoError(t, err)
}

func TestRequestWithdrawal_InvalidInputs(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	_, err := e.desk.RequestWithdrawal(ctx, settlement.WithdrawalRequest{
		PartnerID: "", Amount: decimal.NewFromInt(100),
	})
	assert.ErrorIs(t, err, ledger.ErrPartnerNotFound)

	_, err = e.desk.RequestWithdrawal(ctx, settlement.WithdrawalRequest{
		PartnerID: "p-1", Amount: decimal.Zero,
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	_, err = e.desk.RequestWithdrawal(ctx, settlement.WithdrawalRequest{
		PartnerID: "p-1", Amount: decimal.NewFromInt(-5),
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	_, err = e.desk.RequestWithdrawal(ctx, settlement.WithdrawalRequest{
		PartnerID: "p-1", Amount: decimal.NewFromInt(5), DeductFrom: "bonus",
	})
	assert.ErrorIs(t, err, ledger.ErrUnknownBucket)
}

func TestRequestWithdrawal_GatewayChannelPinnedToFeeBucket(t *testing.T) {
	// GIVEN: A caller asking to draw from the received bucket over the
	//        gateway channel
	// WHEN: The request is created
	// THEN: The stored withdrawal is pinned to the fee bucket, and the
	//       availability check ran against the fee bucket

	e := newEngine()
	ctx := context.Background()

	_, err := e.fees.SetPercent(ctx, decimal.NewFromInt(10), "")
	require.NoError(t, err)
	_, err = e.payBooking(ctx, "b-1", "p-1", 100000, 0)
	require.NoError(t, err)

	w, err := e.desk.RequestWithdrawal(ctx, settlement.WithdrawalRequest{
		PartnerID:  "p-1",
		Amount:     decimal.NewFromInt(5000),
		DeductFrom: ledger.BucketReceived,
		Channel:    settlement.ChannelGateway,
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.BucketFee, w.DeductFrom)

	// 50,000 would fit the received bucket but not the fee bucket.
	_, err = e.desk.RequestWithdrawal(ctx, settlement.WithdrawalRequest{
		PartnerID:  "p-1",
		Amount:     decimal.NewFromInt(50000),
		DeductFrom: ledger.BucketReceived,
		Channel:    settlement.ChannelGateway,
	})
	assert.ErrorIs(t, err, ledger.ErrInsufficientWithdrawable)
}

// =============================================================================
// TRANSITION TESTS
// =============================================================================

func TestCompleteWithdrawal_FiresImpactExactlyOnce(t *testing.T) {
	// GIVEN: A pending withdrawal
	// WHEN: It is completed, then completed again
	// THEN: The first call decrements the ledger; the second returns
	//       ErrAlreadyCompleted and changes nothing

	e := newEngine()
	ctx := context.Background()

	_, err := e.fees.SetPercent(ctx, decimal.NewFromInt(10), "")
	require.NoError(t, err)
	_, err = e.payBooking(ctx, "b-1", "p-1", 100000, 0)
	require.NoError(t, err)

	w, err := e.desk.RequestWithdrawal(ctx, settlement.WithdrawalRequest{
		PartnerID:  "p-1",
		Amount:     decimal.NewFromInt(10000),
		DeductFrom: ledger.BucketFee,
	})
	require.NoError(t, err)

	done, err := e.desk.CompleteWithdrawal(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.WithdrawalSuccess, done.Status)
	assert.NotNil(t, done.CompletedAt)

	row, _ := e.mem.Ledger(ctx, "p-1")
	require.NotNil(t, row)
	assert.True(t, row.ServiceFeeBalance.IsZero())
	assert.True(t, row.TotalWithdrawnFee.Equal(decimal.NewFromInt(10000)))

	_, err = e.desk.CompleteWithdrawal(ctx, w.ID)
	assert.ErrorIs(t, err, ledger.ErrAlreadyCompleted)

	after, _ := e.mem.Ledger(ctx, "p-1")
	require.NotNil(t, after)
	assert.True(t, after.TotalWithdrawnFee.Equal(decimal.NewFromInt(10000)), "no double decrement")
}

func TestCompleteWithdrawal_UnknownID(t *testing.T) {
	e := newEngine()
	_, err := e.desk.CompleteWithdrawal(context.Background(), "missing")
	assert.ErrorIs(t, err, ledger.ErrWithdrawalNotFound)
}

func TestFailWithdrawal_NoImpactAndNoLaterCompletion(t *testing.T) {
	// GIVEN: A pending withdrawal that fails
	// WHEN: The failure is recorded and a completion is attempted after
	// THEN: No ledger impact ever fires and the completion is rejected

	e := newEngine()
	ctx := context.Background()

	_, err := e.fees.SetPercent(ctx, decimal.NewFromInt(10), "")
	require.NoError(t, err)
	_, err = e.payBooking(ctx, "b-1", "p-1", 100000, 0)
	require.NoError(t, err)

	w, err := e.desk.RequestWithdrawal(ctx, settlement.WithdrawalRequest{
		PartnerID:  "p-1",
		Amount:     decimal.NewFromInt(10000),
		DeductFrom: ledger.BucketFee,
	})
	require.NoError(t, err)

	failed, err := e.desk.FailWithdrawal(ctx, w.ID, "gateway timeout")
	require.NoError(t, err)
	assert.Equal(t, ledger.WithdrawalFailed, failed.Status)
	assert.Equal(t, "gateway timeout", failed.Note)

	row, _ := e.mem.Ledger(ctx, "p-1")
	require.NotNil(t, row)
	assert.True(t, row.TotalWithdrawnFee.IsZero(), "failed withdrawal never touches the ledger")

	_, err = e.desk.CompleteWithdrawal(ctx, w.ID)
	assert.ErrorIs(t, err, ledger.ErrWithdrawalNotPending)
}

func TestFailedWithdrawal_DoesNotReduceAvailability(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	_, err := e.fees.SetPercent(ctx, decimal.NewFromInt(10), "")
	require.NoError(t, err)
	_, err = e.payBooking(ctx, "b-1", "p-1", 100000, 0)
	require.NoError(t, err)

	w, err := e.desk.RequestWithdrawal(ctx, settlement.WithdrawalRequest{
		PartnerID:  "p-1",
		Amount:     decimal.NewFromInt(10000),
		DeductFrom: ledger.BucketFee,
	})
	require.NoError(t, err)
	_, err = e.desk.FailWithdrawal(ctx, w.ID, "declined")
	require.NoError(t, err)

	avail, err := e.calculator.WithdrawableAmount(ctx, "p-1")
	require.NoError(t, err)
	assert.True(t, avail.AvailableFee.Equal(decimal.NewFromInt(10000)), "full fee bucket still available")
}
