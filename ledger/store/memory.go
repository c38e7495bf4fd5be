// Package store provides in-memory implementations of the ledger
// persistence interfaces, for tests and dev.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/settlement-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements ledger.LedgerStore, ledger.BookingSource,
// ledger.WithdrawalSource and ledger.PartnerDirectory. All impact
// operations mutate the row under one lock, which is the in-memory
// equivalent of the store's single-statement atomicity contract.
type Memory struct {
	mu          sync.RWMutex
	ledgers     map[ledger.PartnerID]ledger.PartnerLedger
	bookings    map[ledger.BookingID]ledger.Booking
	withdrawals map[ledger.WithdrawalID]ledger.Withdrawal
	partners    map[ledger.PartnerID]string
}

func NewMemory() *Memory {
	return &Memory{
		ledgers:     make(map[ledger.PartnerID]ledger.PartnerLedger),
		bookings:    make(map[ledger.BookingID]ledger.Booking),
		withdrawals: make(map[ledger.WithdrawalID]ledger.Withdrawal),
		partners:    make(map[ledger.PartnerID]string),
	}
}

// =============================================================================
// LEDGER STORE
// =============================================================================

func (m *Memory) ApplyBookingImpact(_ context.Context, impact ledger.BookingImpact) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.ledgers[impact.PartnerID]
	if !ok {
		row = ledger.ZeroLedger(impact.PartnerID)
	}

	row.TotalRevenue = row.TotalRevenue.Add(impact.Gross)
	row.TotalServiceFee = row.TotalServiceFee.Add(impact.Fee)
	row.TotalDiscounts = row.TotalDiscounts.Add(impact.Discount)
	row.ServiceFeeBalance = row.ServiceFeeBalance.Add(impact.Fee)
	row.ReceivableBalance = row.ReceivableBalance.Add(impact.Receivable)
	row.LastBookingID = impact.BookingID
	at := impact.OccurredAt
	row.LastBookingAt = &at
	row.UpdatedAt = time.Now().UTC()

	m.ledgers[impact.PartnerID] = row
	return nil
}

func (m *Memory) ApplyWithdrawalImpact(_ context.Context, impact ledger.WithdrawalImpact) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.ledgers[impact.PartnerID]
	if !ok {
		row = ledger.ZeroLedger(impact.PartnerID)
	}

	switch impact.Bucket {
	case ledger.BucketReceived:
		row.ReceivableBalance = row.ReceivableBalance.Sub(impact.Amount)
		row.TotalWithdrawnReceivable = row.TotalWithdrawnReceivable.Add(impact.Amount)
	default:
		row.ServiceFeeBalance = row.ServiceFeeBalance.Sub(impact.Amount)
		row.TotalWithdrawnFee = row.TotalWithdrawnFee.Add(impact.Amount)
	}
	row.LastWithdrawalID = impact.WithdrawalID
	at := impact.OccurredAt
	row.LastWithdrawalAt = &at
	row.UpdatedAt = time.Now().UTC()

	m.ledgers[impact.PartnerID] = row
	return nil
}

func (m *Memory) Ledger(_ context.Context, partnerID ledger.PartnerID) (*ledger.PartnerLedger, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	row, ok := m.ledgers[partnerID]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (m *Memory) PutLedger(_ context.Context, row ledger.PartnerLedger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledgers[row.PartnerID] = row
	return nil
}

func (m *Memory) Ledgers(_ context.Context) ([]ledger.PartnerLedger, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := make([]ledger.PartnerLedger, 0, len(m.ledgers))
	for _, row := range m.ledgers {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].PartnerID < rows[j].PartnerID })
	return rows, nil
}

func (m *Memory) LedgerPartnerIDs(_ context.Context) ([]ledger.PartnerID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]ledger.PartnerID, 0, len(m.ledgers))
	for id := range m.ledgers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *Memory) ResetLedgers(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledgers = make(map[ledger.PartnerID]ledger.PartnerLedger)
	return nil
}

// =============================================================================
// BOOKING SOURCE
// =============================================================================

func (m *Memory) Booking(_ context.Context, id ledger.BookingID) (*ledger.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.bookings[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (m *Memory) SaveBooking(_ context.Context, b ledger.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[b.ID] = b
	return nil
}

func (m *Memory) PaidBookingsByPartner(_ context.Context, partnerID ledger.PartnerID) ([]ledger.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ledger.Booking
	for _, b := range m.bookings {
		if b.PartnerID == partnerID && b.Status.PaidEquivalent() {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) BookingPartnerIDs(_ context.Context) ([]ledger.PartnerID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[ledger.PartnerID]bool)
	var ids []ledger.PartnerID
	for _, b := range m.bookings {
		if b.PartnerID != "" && !seen[b.PartnerID] {
			seen[b.PartnerID] = true
			ids = append(ids, b.PartnerID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// =============================================================================
// WITHDRAWAL SOURCE
// =============================================================================

func (m *Memory) Withdrawal(_ context.Context, id ledger.WithdrawalID) (*ledger.Withdrawal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	w, ok := m.withdrawals[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (m *Memory) SaveWithdrawal(_ context.Context, w ledger.Withdrawal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.withdrawals[w.ID] = w
	return nil
}

func (m *Memory) WithdrawalsByPartner(_ context.Context, partnerID ledger.PartnerID) ([]ledger.Withdrawal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ledger.Withdrawal
	for _, w := range m.withdrawals {
		if w.PartnerID == partnerID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.Before(out[j].RequestedAt) })
	return out, nil
}

func (m *Memory) WithdrawalPartnerIDs(_ context.Context) ([]ledger.PartnerID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[ledger.PartnerID]bool)
	var ids []ledger.PartnerID
	for _, w := range m.withdrawals {
		if w.PartnerID != "" && !seen[w.PartnerID] {
			seen[w.PartnerID] = true
			ids = append(ids, w.PartnerID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// =============================================================================
// PARTNER DIRECTORY
// =============================================================================

func (m *Memory) SavePartner(_ context.Context, id ledger.PartnerID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.partners[id] = name
	return nil
}

func (m *Memory) PartnerName(_ context.Context, id ledger.PartnerID) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.partners[id], nil
}
