package ledger_test

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/warp/settlement-engine/ledger"
)

// =============================================================================
// STATUS TESTS
// =============================================================================

func TestBookingStatus_PaidEquivalent(t *testing.T) {
	cases := []struct {
		status ledger.BookingStatus
		want   bool
	}{
		{ledger.BookingPaid, true},
		{ledger.BookingCompleted, true},
		{ledger.BookingDone, true},
		{ledger.BookingPending, false},
		{ledger.BookingCancelled, false},
		{ledger.BookingStatus("refunded"), false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.status.PaidEquivalent(), "status %q", tc.status)
	}
}

func TestValidBucket(t *testing.T) {
	assert.True(t, ledger.ValidBucket(ledger.BucketFee))
	assert.True(t, ledger.ValidBucket(ledger.BucketReceived))
	assert.False(t, ledger.ValidBucket(""))
	assert.False(t, ledger.ValidBucket("bonus"))
}

// =============================================================================
// EFFECTIVE AMOUNT TESTS
// =============================================================================

func TestEffectiveGross_FinalTotalWins(t *testing.T) {
	// GIVEN: A booking with both a listed price and a corrected total
	// WHEN: The gross is resolved
	// THEN: The corrected total wins

	final := decimal.NewFromInt(900)
	b := ledger.Booking{TotalPrice: decimal.NewFromInt(1000), FinalTotal: &final}
	assert.True(t, b.EffectiveGross().Equal(final))

	b.FinalTotal = nil
	assert.True(t, b.EffectiveGross().Equal(decimal.NewFromInt(1000)))
}

func TestEffectiveFeePercent_Precedence(t *testing.T) {
	// Precedence: FeePercent, then legacy FeeApplied, then zero.

	snapshot := decimal.NewFromInt(10)
	legacy := decimal.NewFromInt(8)

	both := ledger.Booking{FeePercent: &snapshot, FeeApplied: &legacy}
	assert.True(t, ledger.EffectiveFeePercent(both).Equal(snapshot), "snapshot wins over legacy")

	legacyOnly := ledger.Booking{FeeApplied: &legacy}
	assert.True(t, ledger.EffectiveFeePercent(legacyOnly).Equal(legacy))

	neither := ledger.Booking{}
	assert.True(t, ledger.EffectiveFeePercent(neither).IsZero())
}

func TestEffectiveFee_StoredAmountWinsOverPercent(t *testing.T) {
	pct := decimal.NewFromInt(10)

	stored := ledger.Booking{
		TotalPrice:       decimal.NewFromInt(1000),
		FeePercent:       &pct,
		ServiceFeeAmount: decimal.NewFromInt(77),
	}
	assert.True(t, stored.EffectiveFee().Equal(decimal.NewFromInt(77)))

	recomputed := ledger.Booking{
		TotalPrice: decimal.NewFromInt(1000),
		FeePercent: &pct,
	}
	assert.True(t, recomputed.EffectiveFee().Equal(decimal.NewFromInt(100)))
}

// =============================================================================
// NUMERIC HELPER TESTS
// =============================================================================

func TestCoerceAmount_CollapsesNonFiniteToZero(t *testing.T) {
	assert.True(t, ledger.CoerceAmount(math.NaN()).IsZero())
	assert.True(t, ledger.CoerceAmount(math.Inf(1)).IsZero())
	assert.True(t, ledger.CoerceAmount(math.Inf(-1)).IsZero())
	assert.True(t, ledger.CoerceAmount(123.45).Equal(decimal.NewFromFloat(123.45)))
	assert.True(t, ledger.CoerceAmount(-10).Equal(decimal.NewFromInt(-10)), "negatives pass through")
}

func TestMaxZero(t *testing.T) {
	assert.True(t, ledger.MaxZero(decimal.NewFromInt(-5)).IsZero())
	assert.True(t, ledger.MaxZero(decimal.Zero).IsZero())
	assert.True(t, ledger.MaxZero(decimal.NewFromInt(5)).Equal(decimal.NewFromInt(5)))
}
