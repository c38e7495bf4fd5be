package settlement_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/settlement-engine/ledger"
	"github.com/warp/settlement-engine/settlement"
)

// =============================================================================
// CLASSIFICATION TESTS
// =============================================================================

func TestClassifySettlement_ToleranceBoundary(t *testing.T) {
	// Outstanding fee within one currency unit counts as settled.
	cases := []struct {
		name        string
		outstanding int64
		withdrawn   int64
		want        settlement.SettlementStatus
	}{
		{"zero outstanding", 0, 100, settlement.StatusSettled},
		{"exactly at tolerance", 1, 0, settlement.StatusSettled},
		{"just over, partially paid", 2, 50, settlement.StatusPartial},
		{"just over, nothing paid", 2, 0, settlement.StatusDue},
		{"large debt, nothing paid", 30000, 0, settlement.StatusDue},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := settlement.ClassifySettlement(
				decimal.NewFromInt(tc.outstanding),
				decimal.NewFromInt(tc.withdrawn),
			)
			assert.Equal(t, tc.want, got)
		})
	}
}

// =============================================================================
// DEBT REPORT TESTS
// =============================================================================

func TestDebtReport_SettledAfterFullFeeWithdrawal(t *testing.T) {
	// GIVEN: Partner X with 3 bookings, each gross 100,000 at 10% fee,
	//        then a 30,000 fee-bucket withdrawal
	// WHEN: The debt report is generated
	// THEN: feeOutstanding=0 and status is settled

	e := newEngine()
	ctx := context.Background()

	_, err := e.fees.SetPercent(ctx, decimal.NewFromInt(10), "")
	require.NoError(t, err)

	for _, id := range []string{"b-1", "b-2", "b-3"} {
		_, err = e.payBooking(ctx, id, "p-x", 100000, 0)
		require.NoError(t, err)
	}
	_, err = e.completeWithdrawal(ctx, "p-x", 30000, ledger.BucketFee)
	require.NoError(t, err)

	report, err := e.reporter.DebtReport(ctx)
	require.NoError(t, err)

	require.Len(t, report.Partners, 1)
	row := report.Partners[0]
	assert.True(t, row.TotalRevenue.Equal(decimal.NewFromInt(300000)))
	assert.True(t, row.TotalServiceFee.Equal(decimal.NewFromInt(30000)))
	assert.True(t, row.FeePaid.Equal(decimal.NewFromInt(30000)))
	assert.True(t, row.FeeOutstanding.IsZero())
	assert.Equal(t, settlement.StatusSettled, row.Status)
}

func TestDebtReport_CoversEveryPartnerOnce(t *testing.T) {
	// GIVEN: A partner with a ledger row and a partner known only from
	//        the booking log
	// WHEN: The debt report is generated
	// THEN: Both appear exactly once; the ledger-less partner's row is
	//       computed ad hoc from sources

	e := newEngine()
	ctx := context.Background()
	day := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)

	_, err := e.fees.SetPercent(ctx, decimal.NewFromInt(10), "")
	require.NoError(t, err)
	_, err = e.payBooking(ctx, "b-1", "with-ledger", 50000, 0)
	require.NoError(t, err)

	// Source-only partner: a paid booking that never went through the
	// incremental path, so no ledger row exists.
	sourceOnly := ledger.Booking{
		ID:               "b-2",
		PartnerID:        "source-only",
		Status:           ledger.BookingPaid,
		TotalPrice:       decimal.NewFromInt(20000),
		ServiceFeeAmount: decimal.NewFromInt(2000),
		PaidAt:           &day,
		CreatedAt:        day,
	}
	require.NoError(t, e.mem.SaveBooking(ctx, sourceOnly))

	report, err := e.reporter.DebtReport(ctx)
	require.NoError(t, err)
	require.Len(t, report.Partners, 2)

	byID := map[ledger.PartnerID]settlement.PartnerDebt{}
	for _, row := range report.Partners {
		byID[row.PartnerID] = row
	}

	assert.True(t, byID["with-ledger"].FromLedger)
	assert.False(t, byID["source-only"].FromLedger)
	assert.True(t, byID["source-only"].TotalRevenue.Equal(decimal.NewFromInt(20000)))
	assert.True(t, byID["source-only"].FeeOutstanding.Equal(decimal.NewFromInt(2000)))
	assert.Equal(t, settlement.StatusDue, byID["source-only"].Status)

	assert.Equal(t, 2, report.Summary.Partners)
	assert.True(t, report.Summary.TotalRevenue.Equal(decimal.NewFromInt(70000)))
	assert.True(t, report.Summary.TotalFeeOutstanding.Equal(decimal.NewFromInt(7000)))
}

func TestDebtReport_PartialStatusAfterSomeFeePaid(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	_, err := e.fees.SetPercent(ctx, decimal.NewFromInt(10), "")
	require.NoError(t, err)
	_, err = e.payBooking(ctx, "b-1", "p-1", 100000, 0)
	require.NoError(t, err)
	_, err = e.completeWithdrawal(ctx, "p-1", 4000, ledger.BucketFee)
	require.NoError(t, err)

	report, err := e.reporter.DebtReport(ctx)
	require.NoError(t, err)

	require.Len(t, report.Partners, 1)
	row := report.Partners[0]
	assert.True(t, row.FeeOutstanding.Equal(decimal.NewFromInt(6000)))
	assert.Equal(t, settlement.StatusPartial, row.Status)
}

func TestDebtReport_DisplayNameDegradesToID(t *testing.T) {
	// GIVEN: One registered partner and one partner the directory has
	//        never heard of
	// WHEN: The report is generated
	// THEN: The known partner shows its name, the unknown one its raw id

	e := newEngine()
	ctx := context.Background()

	_, err := e.fees.SetPercent(ctx, decimal.NewFromInt(10), "")
	require.NoError(t, err)

	require.NoError(t, e.mem.SavePartner(ctx, "p-named", "Alpine Tours"))
	_, err = e.payBooking(ctx, "b-1", "p-named", 1000, 0)
	require.NoError(t, err)
	_, err = e.payBooking(ctx, "b-2", "p-anon", 1000, 0)
	require.NoError(t, err)

	report, err := e.reporter.DebtReport(ctx)
	require.NoError(t, err)

	names := map[ledger.PartnerID]string{}
	for _, row := range report.Partners {
		names[row.PartnerID] = row.PartnerName
	}
	assert.Equal(t, "Alpine Tours", names["p-named"])
	assert.Equal(t, "p-anon", names["p-anon"])
}

func TestDebtReport_ChartSeries(t *testing.T) {
	// GIVEN: Seven partners with distinct revenues
	// WHEN: The report is generated
	// THEN: The revenue chart is capped at the top five, descending,
	//       and the status counts follow the fixed order

	e := newEngine()
	ctx := context.Background()

	_, err := e.fees.SetPercent(ctx, decimal.NewFromInt(10), "")
	require.NoError(t, err)

	revenues := []int64{700, 100, 400, 200, 600, 300, 500}
	for i, gross := range revenues {
		id := string(rune('a' + i))
		_, err = e.payBooking(ctx, "b-"+id, "p-"+id, gross, 0)
		require.NoError(t, err)
	}

	report, err := e.reporter.DebtReport(ctx)
	require.NoError(t, err)

	require.Len(t, report.TopByRevenue, settlement.TopPartnerCount)
	assert.True(t, report.TopByRevenue[0].Value.Equal(decimal.NewFromInt(700)))
	for i := 1; i < len(report.TopByRevenue); i++ {
		assert.True(t, report.TopByRevenue[i].Value.LessThanOrEqual(report.TopByRevenue[i-1].Value))
	}

	require.Len(t, report.CountByStatus, 3)
	assert.Equal(t, settlement.StatusSettled, report.CountByStatus[0].Status)
	assert.Equal(t, settlement.StatusPartial, report.CountByStatus[1].Status)
	assert.Equal(t, settlement.StatusDue, report.CountByStatus[2].Status)

	total := 0
	for _, c := range report.CountByStatus {
		total += c.Count
	}
	assert.Equal(t, len(revenues), total)
}

func TestDebtReport_EmptySystem(t *testing.T) {
	e := newEngine()

	report, err := e.reporter.DebtReport(context.Background())
	require.NoError(t, err)

	assert.Empty(t, report.Partners)
	assert.Equal(t, 0, report.Summary.Partners)
	assert.Empty(t, report.TopByRevenue)
	require.Len(t, report.CountByStatus, 3, "status series keeps its shape even when empty")
	assert.False(t, report.GeneratedAt.IsZero())
}
