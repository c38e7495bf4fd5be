package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/settlement-engine/ledger"
	"github.com/warp/settlement-engine/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestApplier() (*ledger.Applier, *store.Memory) {
	mem := store.NewMemory()
	return ledger.NewApplier(mem), mem
}

func paidEvent(partnerID, bookingID string, gross, fee, discount int64) ledger.BookingPaidEvent {
	return ledger.BookingPaidEvent{
		PartnerID:        ledger.PartnerID(partnerID),
		BookingID:        ledger.BookingID(bookingID),
		GrossAmount:      decimal.NewFromInt(gross),
		ServiceFeeAmount: decimal.NewFromInt(fee),
		DiscountAmount:   decimal.NewFromInt(discount),
		OccurredAt:       time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC),
	}
}

// =============================================================================
// BOOKING IMPACT TESTS
// =============================================================================

func TestApplier_BookingPaid_CreatesRowLazily(t *testing.T) {
	// GIVEN: A partner with no ledger row
	// WHEN: Their first booking-paid event arrives
	// THEN: A row is created with the booking's amounts

	applier, mem := newTestApplier()
	ctx := context.Background()

	err := applier.ApplyBookingPaid(ctx, paidEvent("p-1", "b-1", 100000, 10000, 0))
	require.NoError(t, err)

	row, err := mem.Ledger(ctx, "p-1")
	require.NoError(t, err)
	require.NotNil(t, row)

	assert.True(t, row.TotalRevenue.Equal(decimal.NewFromInt(100000)))
	assert.True(t, row.TotalServiceFee.Equal(decimal.NewFromInt(10000)))
	assert.True(t, row.ServiceFeeBalance.Equal(decimal.NewFromInt(10000)))
	assert.True(t, row.ReceivableBalance.Equal(decimal.NewFromInt(90000)))
	assert.Equal(t, ledger.BookingID("b-1"), row.LastBookingID)
}

func TestApplier_BookingPaid_ImpactsAreAdditive(t *testing.T) {
	// GIVEN: Partner X with 3 bookings, each gross 100,000, fee 10,000
	// WHEN: All three paid events are applied
	// THEN: totalRevenue=300,000, totalServiceFee=30,000,
	//       serviceFeeBalance=30,000, receivableBalance=270,000

	applier, mem := newTestApplier()
	ctx := context.Background()

	for _, id := range []string{"b-1", "b-2", "b-3"} {
		require.NoError(t, applier.ApplyBookingPaid(ctx, paidEvent("p-x", id, 100000, 10000, 0)))
	}

	row, err := mem.Ledger(ctx, "p-x")
	require.NoError(t, err)
	require.NotNil(t, row)

	assert.True(t, row.TotalRevenue.Equal(decimal.NewFromInt(300000)), "revenue should sum")
	assert.True(t, row.TotalServiceFee.Equal(decimal.NewFromInt(30000)))
	assert.True(t, row.ServiceFeeBalance.Equal(decimal.NewFromInt(30000)))
	assert.True(t, row.ReceivableBalance.Equal(decimal.NewFromInt(270000)))
	assert.Equal(t, ledger.BookingID("b-3"), row.LastBookingID, "last id tracks most recent event")
}

func TestApplier_BookingPaid_ReceivableFlooredPerEvent(t *testing.T) {
	// GIVEN: A booking whose fee + discount exceed its gross
	// WHEN: The paid event is applied
	// THEN: The receivable contribution is floored at zero, not negative

	applier, mem := newTestApplier()
	ctx := context.Background()

	err := applier.ApplyBookingPaid(ctx, paidEvent("p-1", "b-1", 100, 80, 50))
	require.NoError(t, err)

	row, _ := mem.Ledger(ctx, "p-1")
	require.NotNil(t, row)
	assert.True(t, row.ReceivableBalance.IsZero(), "receivable contribution must not go negative")
	assert.True(t, row.TotalRevenue.Equal(decimal.NewFromInt(100)), "raw totals keep the true numbers")
}

func TestApplier_BookingPaid_EmptyPartnerIsNoOp(t *testing.T) {
	// GIVEN: An event with no partner id
	// WHEN: It is applied
	// THEN: Nothing is written and no error is returned

	applier, mem := newTestApplier()
	ctx := context.Background()

	err := applier.ApplyBookingPaid(ctx, paidEvent("", "b-1", 100, 10, 0))
	assert.NoError(t, err)

	ids, _ := mem.LedgerPartnerIDs(ctx)
	assert.Empty(t, ids)
}

// =============================================================================
// WITHDRAWAL IMPACT TESTS
// =============================================================================

func TestApplier_WithdrawalSucceeded_DecrementsBucket(t *testing.T) {
	// GIVEN: A partner with 30,000 fee balance
	// WHEN: A 30,000 fee-bucket withdrawal succeeds
	// THEN: serviceFeeBalance=0 and totalWithdrawnFee=30,000

	applier, mem := newTestApplier()
	ctx := context.Background()

	require.NoError(t, applier.ApplyBookingPaid(ctx, paidEvent("p-x", "b-1", 300000, 30000, 0)))

	err := applier.ApplyWithdrawalSucceeded(ctx, ledger.WithdrawalSucceededEvent{
		PartnerID:    "p-x",
		WithdrawalID: "w-1",
		Amount:       decimal.NewFromInt(30000),
		Bucket:       ledger.BucketFee,
		OccurredAt:   time.Now().UTC(),
	})
	require.NoError(t, err)

	row, _ := mem.Ledger(ctx, "p-x")
	require.NotNil(t, row)
	assert.True(t, row.ServiceFeeBalance.IsZero())
	assert.True(t, row.TotalWithdrawnFee.Equal(decimal.NewFromInt(30000)))
	assert.True(t, row.ReceivableBalance.Equal(decimal.NewFromInt(270000)), "received bucket untouched")
}

func TestApplier_WithdrawalSucceeded_NoClampBelowZero(t *testing.T) {
	// GIVEN: A partner whose fee balance is only 100
	// WHEN: A 250 fee withdrawal succeeds anyway
	// THEN: The balance goes negative - drift is surfaced, not hidden

	applier, mem := newTestApplier()
	ctx := context.Background()

	require.NoError(t, applier.ApplyBookingPaid(ctx, paidEvent("p-1", "b-1", 1000, 100, 0)))

	err := applier.ApplyWithdrawalSucceeded(ctx, ledger.WithdrawalSucceededEvent{
		PartnerID:    "p-1",
		WithdrawalID: "w-1",
		Amount:       decimal.NewFromInt(250),
		Bucket:       ledger.BucketFee,
	})
	require.NoError(t, err)

	row, _ := mem.Ledger(ctx, "p-1")
	require.NotNil(t, row)
	assert.True(t, row.ServiceFeeBalance.Equal(decimal.NewFromInt(-150)),
		"negative balance is the drift signal a rebuild corrects")
}

func TestApplier_WithdrawalSucceeded_NegativeAmountUsesAbs(t *testing.T) {
	// GIVEN: An upstream event carrying a negative amount
	// WHEN: It is applied
	// THEN: The absolute value is used for both balance and total

	applier, mem := newTestApplier()
	ctx := context.Background()

	err := applier.ApplyWithdrawalSucceeded(ctx, ledger.WithdrawalSucceededEvent{
		PartnerID:    "p-1",
		WithdrawalID: "w-1",
		Amount:       decimal.NewFromInt(-500),
		Bucket:       ledger.BucketReceived,
	})
	require.NoError(t, err)

	row, _ := mem.Ledger(ctx, "p-1")
	require.NotNil(t, row)
	assert.True(t, row.ReceivableBalance.Equal(decimal.NewFromInt(-500)))
	assert.True(t, row.TotalWithdrawnReceivable.Equal(decimal.NewFromInt(500)))
}

func TestApplier_WithdrawalSucceeded_BucketsStayIsolated(t *testing.T) {
	// GIVEN: Balances in both buckets
	// WHEN: A received-bucket withdrawal succeeds
	// THEN: Only the received side moves

	applier, mem := newTestApplier()
	ctx := context.Background()

	require.NoError(t, applier.ApplyBookingPaid(ctx, paidEvent("p-1", "b-1", 200000, 30000, 5000)))

	err := applier.ApplyWithdrawalSucceeded(ctx, ledger.WithdrawalSucceededEvent{
		PartnerID:    "p-1",
		WithdrawalID: "w-1",
		Amount:       decimal.NewFromInt(100000),
		Bucket:       ledger.BucketReceived,
	})
	require.NoError(t, err)

	row, _ := mem.Ledger(ctx, "p-1")
	require.NotNil(t, row)
	assert.True(t, row.ServiceFeeBalance.Equal(decimal.NewFromInt(30000)), "fee bucket untouched")
	assert.True(t, row.ReceivableBalance.Equal(decimal.NewFromInt(65000)))
	assert.True(t, row.TotalWithdrawnFee.IsZero())
	assert.True(t, row.TotalWithdrawnReceivable.Equal(decimal.NewFromInt(100000)))
}

func TestApplier_WithdrawalSucceeded_UnknownBucketRejected(t *testing.T) {
	applier, mem := newTestApplier()
	ctx := context.Background()

	err := applier.ApplyWithdrawalSucceeded(ctx, ledger.WithdrawalSucceededEvent{
		PartnerID:    "p-1",
		WithdrawalID: "w-1",
		Amount:       decimal.NewFromInt(100),
		Bucket:       ledger.Bucket("bonus"),
	})
	assert.ErrorIs(t, err, ledger.ErrUnknownBucket)

	ids, _ := mem.LedgerPartnerIDs(ctx)
	assert.Empty(t, ids, "rejected event must not touch the ledger")
}
