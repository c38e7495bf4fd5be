package settlement_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/settlement-engine/ledger"
	"github.com/warp/settlement-engine/ledger/store"
	"github.com/warp/settlement-engine/settlement"
)

// =============================================================================
// TEST HARNESS
// =============================================================================

// memFeeConfig is an in-memory FeeConfigStore for tests.
type memFeeConfig struct {
	mu      sync.Mutex
	entries []settlement.FeeConfigEntry
}

func (m *memFeeConfig) LatestFeeConfig(context.Context) (*settlement.FeeConfigEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == 0 {
		return nil, nil
	}
	latest := m.entries[0]
	for _, e := range m.entries[1:] {
		if e.CreatedAt.After(latest.CreatedAt) {
			latest = e
		}
	}
	return &latest, nil
}

func (m *memFeeConfig) AppendFeeConfig(_ context.Context, entry settlement.FeeConfigEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memFeeConfig) FeeConfigHistory(_ context.Context, limit int) ([]settlement.FeeConfigEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]settlement.FeeConfigEntry, len(m.entries))
	copy(out, m.entries)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// engine bundles the full settlement stack over one in-memory store.
type engine struct {
	mem        *store.Memory
	config     *memFeeConfig
	applier    *ledger.Applier
	rebuilder  *ledger.Rebuilder
	fees       *settlement.FeeSchedule
	calculator *settlement.Calculator
	desk       *settlement.Desk
	reporter   *settlement.Reporter
}

func newEngine() *engine {
	mem := store.NewMemory()
	config := &memFeeConfig{}
	applier := ledger.NewApplier(mem)
	rebuilder := ledger.NewRebuilder(mem, mem, mem)
	calculator := settlement.NewCalculator(mem, mem)

	return &engine{
		mem:        mem,
		config:     config,
		applier:    applier,
		rebuilder:  rebuilder,
		fees:       settlement.NewFeeSchedule(config, mem, applier),
		calculator: calculator,
		desk:       settlement.NewDesk(mem, calculator, applier),
		reporter:   settlement.NewReporter(mem, rebuilder, mem),
	}
}

// payBooking seeds a pending booking and drives it through the paid
// transition under the current fee percent.
func (e *engine) payBooking(ctx context.Context, id, partnerID string, gross, discount int64) (*ledger.Booking, error) {
	b := ledger.Booking{
		ID:         ledger.BookingID(id),
		PartnerID:  ledger.PartnerID(partnerID),
		Status:     ledger.BookingPending,
		TotalPrice: decimal.NewFromInt(gross),
		Discount:   decimal.NewFromInt(discount),
		CreatedAt:  time.Now().UTC(),
	}
	if err := e.mem.SaveBooking(ctx, b); err != nil {
		return nil, err
	}
	return e.fees.MarkBookingPaid(ctx, b.ID)
}

// completeWithdrawal opens a payout request and completes it.
func (e *engine) completeWithdrawal(ctx context.Context, partnerID string, amount int64, bucket ledger.Bucket) (*ledger.Withdrawal, error) {
	w, err := e.desk.RequestWithdrawal(ctx, settlement.WithdrawalRequest{
		PartnerID:  ledger.PartnerID(partnerID),
		Amount:     decimal.NewFromInt(amount),
		DeductFrom: bucket,
	})
	if err != nil {
		return nil, err
	}
	return e.desk.CompleteWithdrawal(ctx, w.ID)
}
