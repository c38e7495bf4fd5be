/*
report.go - Settlement (debt) reporting for administrative oversight

PURPOSE:
  Produces, for every partner with any activity, a row of: total
  revenue, total fee owed, fee paid, fee outstanding, receivable
  outstanding and a settlement status - plus an aggregate summary and
  chart series for the admin dashboard.

PARTNER UNIVERSE:
  Two universes are merged without duplication: partners discoverable
  through booking aggregation, and partners that exist only as a
  ledger row (e.g. all their bookings were later removed). Each
  partner id appears exactly once in the output.

LEDGER PREFERENCE:
  For each partner the persisted ledger row is preferred when one
  exists; otherwise the report falls back to a fresh ad-hoc
  aggregation over the sources, so it stays correct for partners
  whose ledger has not been created yet.

TOLERANCE:
  Settlement classification uses a fixed tolerance of one currency
  unit so near-zero outstanding fee caused by rounding is not
  misreported as owing.

SEE ALSO:
  - ledger/rebuild.go: Compute() provides the ad-hoc fallback
  - api/handlers.go: Serves this report
*/
package settlement

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/settlement-engine/ledger"
)

// SettlementTolerance is the outstanding-fee threshold under which a
// partner counts as settled: one currency unit absorbs rounding noise.
var SettlementTolerance = decimal.NewFromInt(1)

// TopPartnerCount bounds the by-revenue chart series.
const TopPartnerCount = 5

// =============================================================================
// STATUS CLASSIFICATION
// =============================================================================

type SettlementStatus string

const (
	StatusSettled SettlementStatus = "settled"
	StatusPartial SettlementStatus = "partial"
	StatusDue     SettlementStatus = "due"
)

// ClassifySettlement maps outstanding fee and withdrawn fee onto a
// settlement status:
//
//	settled  feeOutstanding <= tolerance
//	partial  not settled, some fee already withdrawn
//	due      not settled, nothing withdrawn yet
func ClassifySettlement(feeOutstanding, withdrawnFee decimal.Decimal) SettlementStatus {
	if feeOutstanding.LessThanOrEqual(SettlementTolerance) {
		return StatusSettled
	}
	if withdrawnFee.IsPositive() {
		return StatusPartial
	}
	return StatusDue
}

// =============================================================================
// REPORT SHAPES
// =============================================================================

// PartnerDebt is one partner's row in the debt report.
type PartnerDebt struct {
	PartnerID   ledger.PartnerID
	PartnerName string

	TotalRevenue          decimal.Decimal
	TotalServiceFee       decimal.Decimal
	FeePaid               decimal.Decimal
	FeeOutstanding        decimal.Decimal
	ReceivableOutstanding decimal.Decimal

	Status SettlementStatus

	// FromLedger marks rows read from a persisted ledger row rather
	// than the ad-hoc source aggregation.
	FromLedger    bool
	LastBookingAt *time.Time
}

// DebtSummary aggregates the report.
type DebtSummary struct {
	Partners            int
	TotalRevenue        decimal.Decimal
	TotalServiceFee     decimal.Decimal
	TotalFeePaid        decimal.Decimal
	TotalFeeOutstanding decimal.Decimal
}

// ChartPoint is a presentational (label, value) pair.
type ChartPoint struct {
	Label string
	Value decimal.Decimal
}

// StatusCount is a presentational (status, count) pair.
type StatusCount struct {
	Status SettlementStatus
	Count  int
}

// DebtReport is the full administrative view. The chart series are
// purely computed from the partner rows and carry no extra invariants.
type DebtReport struct {
	GeneratedAt   time.Time
	Summary       DebtSummary
	Partners      []PartnerDebt
	TopByRevenue  []ChartPoint
	CountByStatus []StatusCount
}

// =============================================================================
// REPORTER
// =============================================================================

// Reporter assembles the debt report.
type Reporter struct {
	Ledgers   ledger.LedgerStore
	Rebuilder *ledger.Rebuilder
	Directory ledger.PartnerDirectory

	// Now is overridable for tests; defaults to time.Now UTC.
	Now func() time.Time
}

func NewReporter(ledgers ledger.LedgerStore, rebuilder *ledger.Rebuilder, directory ledger.PartnerDirectory) *Reporter {
	return &Reporter{Ledgers: ledgers, Rebuilder: rebuilder, Directory: directory}
}

func (r *Reporter) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now().UTC()
}

// DebtReport builds the report over the merged partner universe.
func (r *Reporter) DebtReport(ctx context.Context) (*DebtReport, error) {
	ids, err := r.Rebuilder.PartnerUniverse(ctx)
	if err != nil {
		return nil, err
	}

	report := &DebtReport{
		GeneratedAt: r.now(),
		Summary: DebtSummary{
			TotalRevenue:        decimal.Zero,
			TotalServiceFee:     decimal.Zero,
			TotalFeePaid:        decimal.Zero,
			TotalFeeOutstanding: decimal.Zero,
		},
	}

	for _, id := range ids {
		row, err := r.partnerRow(ctx, id)
		if err != nil {
			return nil, err
		}
		report.Partners = append(report.Partners, row)

		report.Summary.Partners++
		report.Summary.TotalRevenue = report.Summary.TotalRevenue.Add(row.TotalRevenue)
		report.Summary.TotalServiceFee = report.Summary.TotalServiceFee.Add(row.TotalServiceFee)
		report.Summary.TotalFeePaid = report.Summary.TotalFeePaid.Add(row.FeePaid)
		report.Summary.TotalFeeOutstanding = report.Summary.TotalFeeOutstanding.Add(row.FeeOutstanding)
	}

	report.TopByRevenue = topByRevenue(report.Partners, TopPartnerCount)
	report.CountByStatus = countByStatus(report.Partners)
	return report, nil
}

// partnerRow builds one partner's row, preferring the persisted
// ledger row and falling back to a fresh source aggregation.
func (r *Reporter) partnerRow(ctx context.Context, id ledger.PartnerID) (PartnerDebt, error) {
	stored, err := r.Ledgers.Ledger(ctx, id)
	if err != nil {
		return PartnerDebt{}, err
	}

	fromLedger := stored != nil
	if stored == nil {
		stored, err = r.Rebuilder.Compute(ctx, id)
		if err != nil {
			return PartnerDebt{}, err
		}
	}

	feeOutstanding := ledger.MaxZero(stored.TotalServiceFee.Sub(stored.TotalWithdrawnFee))

	row := PartnerDebt{
		PartnerID:             id,
		PartnerName:           r.displayName(ctx, id),
		TotalRevenue:          stored.TotalRevenue,
		TotalServiceFee:       stored.TotalServiceFee,
		FeePaid:               stored.TotalWithdrawnFee,
		FeeOutstanding:        feeOutstanding,
		ReceivableOutstanding: ledger.MaxZero(stored.ReceivableBalance),
		Status:                ClassifySettlement(feeOutstanding, stored.TotalWithdrawnFee),
		FromLedger:            fromLedger,
		LastBookingAt:         stored.LastBookingAt,
	}
	return row, nil
}

// displayName resolves a partner's name, degrading to the raw id on
// any miss or directory failure rather than failing the whole report.
func (r *Reporter) displayName(ctx context.Context, id ledger.PartnerID) string {
	if r.Directory == nil {
		return string(id)
	}
	name, err := r.Directory.PartnerName(ctx, id)
	if err != nil || name == "" {
		return string(id)
	}
	return name
}

func topByRevenue(rows []PartnerDebt, n int) []ChartPoint {
	sorted := make([]PartnerDebt, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TotalRevenue.GreaterThan(sorted[j].TotalRevenue)
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}

	points := make([]ChartPoint, len(sorted))
	for i, row := range sorted {
		points[i] = ChartPoint{Label: row.PartnerName, Value: row.TotalRevenue}
	}
	return points
}

func countByStatus(rows []PartnerDebt) []StatusCount {
	counts := map[SettlementStatus]int{}
	for _, row := range rows {
		counts[row.Status]++
	}

	out := make([]StatusCount, 0, 3)
	for _, s := range []SettlementStatus{StatusSettled, StatusPartial, StatusDue} {
		out = append(out, StatusCount{Status: s, Count: counts[s]})
	}
	return out
}
