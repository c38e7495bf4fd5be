/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements all persistence interfaces (ledger.LedgerStore,
  ledger.BookingSource, ledger.WithdrawalSource,
  ledger.PartnerDirectory, settlement.FeeConfigStore) using SQLite.
  In production the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

ATOMIC IMPACTS:
  The two ledger impact operations are single INSERT ... ON CONFLICT
  DO UPDATE statements: the upsert creates a zero-initialized row when
  absent and increments the aggregate columns in the same statement.
  There is never a read-then-write gap, so concurrent events for the
  same partner remain correct.

KEY TABLES:
  partner_ledgers: One aggregate row per partner (the core's state)
  bookings:        Booking source log with frozen fee snapshots
  withdrawals:     Payout requests with bucket and status
  fee_configs:     Ordered fee-percent change history
  partners:        Display metadata for reports

NUMERIC COLUMNS:
  Monetary columns are declared NUMERIC and bound from canonical
  decimal strings; SQLite's numeric affinity keeps integer amounts
  exact and the in-SQL increments correct.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better
  concurrency: multiple readers don't block, single writer at a time.

USAGE:
  store, err := sqlite.New("./data/settlement.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  applier := ledger.NewApplier(store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/settlement-engine/ledger"
	"github.com/warp/settlement-engine/settlement"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Partner ledgers (one aggregate row per partner)
	CREATE TABLE IF NOT EXISTS partner_ledgers (
		partner_id TEXT PRIMARY KEY,
		service_fee_balance NUMERIC NOT NULL DEFAULT 0,
		receivable_balance NUMERIC NOT NULL DEFAULT 0,
		total_revenue NUMERIC NOT NULL DEFAULT 0,
		total_service_fee NUMERIC NOT NULL DEFAULT 0,
		total_discounts NUMERIC NOT NULL DEFAULT 0,
		total_withdrawn_fee NUMERIC NOT NULL DEFAULT 0,
		total_withdrawn_receivable NUMERIC NOT NULL DEFAULT 0,
		last_booking_id TEXT NOT NULL DEFAULT '',
		last_withdrawal_id TEXT NOT NULL DEFAULT '',
		last_booking_at TEXT,
		last_withdrawal_at TEXT,
		updated_at TEXT NOT NULL
	);

	-- Bookings (source log, fee snapshot frozen at first paid transition)
	CREATE TABLE IF NOT EXISTS bookings (
		id TEXT PRIMARY KEY,
		partner_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		total_price NUMERIC NOT NULL DEFAULT 0,
		final_total NUMERIC,
		discount NUMERIC NOT NULL DEFAULT 0,
		fee_percent NUMERIC,
		fee_applied NUMERIC,
		service_fee_amount NUMERIC NOT NULL DEFAULT 0,
		fee_applied_at TEXT,
		paid_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_bookings_partner_status
		ON bookings(partner_id, status);
	CREATE INDEX IF NOT EXISTS idx_bookings_status
		ON bookings(status);

	-- Withdrawals (payout requests; status is the only mutable field)
	CREATE TABLE IF NOT EXISTS withdrawals (
		id TEXT PRIMARY KEY,
		partner_id TEXT NOT NULL,
		amount NUMERIC NOT NULL DEFAULT 0,
		deduct_from TEXT NOT NULL DEFAULT 'fee',
		channel TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		note TEXT NOT NULL DEFAULT '',
		requested_at TEXT NOT NULL,
		completed_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_withdrawals_partner
		ON withdrawals(partner_id);
	CREATE INDEX IF NOT EXISTS idx_withdrawals_partner_status
		ON withdrawals(partner_id, status);

	-- Fee configuration history (append-only)
	CREATE TABLE IF NOT EXISTS fee_configs (
		id TEXT PRIMARY KEY,
		old_percent NUMERIC NOT NULL DEFAULT 0,
		new_percent NUMERIC NOT NULL DEFAULT 0,
		note TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_fee_configs_created_at
		ON fee_configs(created_at DESC);

	-- Partners (presentational metadata for reports)
	CREATE TABLE IF NOT EXISTS partners (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// LEDGER STORE (ledger.LedgerStore interface)
// =============================================================================

// ApplyBookingImpact upserts and increments a partner row in one
// statement. The zero-initialized row comes from the INSERT arm; the
// DO UPDATE arm carries the increments.
func (s *Store) ApplyBookingImpact(ctx context.Context, impact ledger.BookingImpact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO partner_ledgers
		(partner_id, total_revenue, total_service_fee, total_discounts,
		 service_fee_balance, receivable_balance,
		 last_booking_id, last_booking_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(partner_id) DO UPDATE SET
			total_revenue = total_revenue + excluded.total_revenue,
			total_service_fee = total_service_fee + excluded.total_service_fee,
			total_discounts = total_discounts + excluded.total_discounts,
			service_fee_balance = service_fee_balance + excluded.service_fee_balance,
			receivable_balance = receivable_balance + excluded.receivable_balance,
			last_booking_id = excluded.last_booking_id,
			last_booking_at = excluded.last_booking_at,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		impact.PartnerID,
		impact.Gross.String(),
		impact.Fee.String(),
		impact.Discount.String(),
		impact.Fee.String(),
		impact.Receivable.String(),
		impact.BookingID,
		nullTime(&impact.OccurredAt),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to apply booking impact: %w", err)
	}
	return nil
}

// ApplyWithdrawalImpact upserts and decrements a partner row in one
// statement. The bucket balance goes negative when the sources have
// drifted; that is deliberate (rebuilds surface it).
func (s *Store) ApplyWithdrawalImpact(ctx context.Context, impact ledger.WithdrawalImpact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	balanceCol, withdrawnCol := "service_fee_balance", "total_withdrawn_fee"
	if impact.Bucket == ledger.BucketReceived {
		balanceCol, withdrawnCol = "receivable_balance", "total_withdrawn_receivable"
	}

	query := fmt.Sprintf(`
		INSERT INTO partner_ledgers
		(partner_id, %[1]s, %[2]s, last_withdrawal_id, last_withdrawal_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(partner_id) DO UPDATE SET
			%[1]s = %[1]s - excluded.%[2]s,
			%[2]s = %[2]s + excluded.%[2]s,
			last_withdrawal_id = excluded.last_withdrawal_id,
			last_withdrawal_at = excluded.last_withdrawal_at,
			updated_at = excluded.updated_at
	`, balanceCol, withdrawnCol)

	_, err := s.db.ExecContext(ctx, query,
		impact.PartnerID,
		impact.Amount.Neg().String(),
		impact.Amount.String(),
		impact.WithdrawalID,
		nullTime(&impact.OccurredAt),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to apply withdrawal impact: %w", err)
	}
	return nil
}

// Ledger returns a partner's row, or nil if none exists.
func (s *Store) Ledger(ctx context.Context, partnerID ledger.PartnerID) (*ledger.PartnerLedger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, ledgerSelect+" WHERE partner_id = ?", partnerID)
	out, err := scanLedger(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PutLedger wholesale-overwrites a partner's row (rebuild path).
func (s *Store) PutLedger(ctx context.Context, row ledger.PartnerLedger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO partner_ledgers
		(partner_id, service_fee_balance, receivable_balance,
		 total_revenue, total_service_fee, total_discounts,
		 total_withdrawn_fee, total_withdrawn_receivable,
		 last_booking_id, last_withdrawal_id,
		 last_booking_at, last_withdrawal_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(partner_id) DO UPDATE SET
			service_fee_balance = excluded.service_fee_balance,
			receivable_balance = excluded.receivable_balance,
			total_revenue = excluded.total_revenue,
			total_service_fee = excluded.total_service_fee,
			total_discounts = excluded.total_discounts,
			total_withdrawn_fee = excluded.total_withdrawn_fee,
			total_withdrawn_receivable = excluded.total_withdrawn_receivable,
			last_booking_id = excluded.last_booking_id,
			last_withdrawal_id = excluded.last_withdrawal_id,
			last_booking_at = excluded.last_booking_at,
			last_withdrawal_at = excluded.last_withdrawal_at,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		row.PartnerID,
		row.ServiceFeeBalance.String(),
		row.ReceivableBalance.String(),
		row.TotalRevenue.String(),
		row.TotalServiceFee.String(),
		row.TotalDiscounts.String(),
		row.TotalWithdrawnFee.String(),
		row.TotalWithdrawnReceivable.String(),
		row.LastBookingID,
		row.LastWithdrawalID,
		nullTime(row.LastBookingAt),
		nullTime(row.LastWithdrawalAt),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to put ledger: %w", err)
	}
	return nil
}

// Ledgers returns every persisted row.
func (s *Store) Ledgers(ctx context.Context) ([]ledger.PartnerLedger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, ledgerSelect+" ORDER BY partner_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query ledgers: %w", err)
	}
	defer rows.Close()

	var out []ledger.PartnerLedger
	for rows.Next() {
		row, err := scanLedger(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *row)
	}
	return out, rows.Err()
}

// LedgerPartnerIDs returns the ids of partners with a row.
func (s *Store) LedgerPartnerIDs(ctx context.Context) ([]ledger.PartnerID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryPartnerIDs(ctx, "SELECT partner_id FROM partner_ledgers ORDER BY partner_id")
}

// ResetLedgers deletes every ledger row. Explicit global reset only.
func (s *Store) ResetLedgers(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM partner_ledgers")
	return err
}

const ledgerSelect = `
	SELECT partner_id, service_fee_balance, receivable_balance,
	       total_revenue, total_service_fee, total_discounts,
	       total_withdrawn_fee, total_withdrawn_receivable,
	       last_booking_id, last_withdrawal_id,
	       last_booking_at, last_withdrawal_at, updated_at
	FROM partner_ledgers`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLedger(r rowScanner) (*ledger.PartnerLedger, error) {
	var (
		out                           ledger.PartnerLedger
		feeBal, recvBal               float64
		revenue, fee, discounts       float64
		withdrawnFee, withdrawnRecv   float64
		lastBookingAt, lastWithdrawal sql.NullString
		updatedAt                     string
	)

	err := r.Scan(
		&out.PartnerID, &feeBal, &recvBal,
		&revenue, &fee, &discounts,
		&withdrawnFee, &withdrawnRecv,
		&out.LastBookingID, &out.LastWithdrawalID,
		&lastBookingAt, &lastWithdrawal, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	out.ServiceFeeBalance = decimal.NewFromFloat(feeBal)
	out.ReceivableBalance = decimal.NewFromFloat(recvBal)
	out.TotalRevenue = decimal.NewFromFloat(revenue)
	out.TotalServiceFee = decimal.NewFromFloat(fee)
	out.TotalDiscounts = decimal.NewFromFloat(discounts)
	out.TotalWithdrawnFee = decimal.NewFromFloat(withdrawnFee)
	out.TotalWithdrawnReceivable = decimal.NewFromFloat(withdrawnRecv)
	out.LastBookingAt = parseNullTime(lastBookingAt)
	out.LastWithdrawalAt = parseNullTime(lastWithdrawal)
	out.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &out, nil
}

// =============================================================================
// BOOKING SOURCE (ledger.BookingSource interface)
// =============================================================================

const bookingSelect = `
	SELECT id, partner_id, status, total_price, final_total, discount,
	       fee_percent, fee_applied, service_fee_amount,
	       fee_applied_at, paid_at, created_at
	FROM bookings`

// Booking returns one booking, or nil if it doesn't exist.
func (s *Store) Booking(ctx context.Context, id ledger.BookingID) (*ledger.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, bookingSelect+" WHERE id = ?", id)
	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// SaveBooking upserts a booking record.
func (s *Store) SaveBooking(ctx context.Context, b ledger.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := b.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO bookings
		(id, partner_id, status, total_price, final_total, discount,
		 fee_percent, fee_applied, service_fee_amount,
		 fee_applied_at, paid_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			partner_id = excluded.partner_id,
			status = excluded.status,
			total_price = excluded.total_price,
			final_total = excluded.final_total,
			discount = excluded.discount,
			fee_percent = excluded.fee_percent,
			fee_applied = excluded.fee_applied,
			service_fee_amount = excluded.service_fee_amount,
			fee_applied_at = excluded.fee_applied_at,
			paid_at = excluded.paid_at
	`

	_, err := s.db.ExecContext(ctx, query,
		b.ID, b.PartnerID, b.Status,
		b.TotalPrice.String(),
		nullDecimal(b.FinalTotal),
		b.Discount.String(),
		nullDecimal(b.FeePercent),
		nullDecimal(b.FeeApplied),
		b.ServiceFeeAmount.String(),
		nullTime(b.FeeAppliedAt),
		nullTime(b.PaidAt),
		createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save booking: %w", err)
	}
	return nil
}

// PaidBookingsByPartner returns a partner's paid-equivalent bookings.
func (s *Store) PaidBookingsByPartner(ctx context.Context, partnerID ledger.PartnerID) ([]ledger.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		bookingSelect+` WHERE partner_id = ? AND status IN ('paid', 'completed', 'done')
		 ORDER BY created_at ASC`, partnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var out []ledger.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// BookingPartnerIDs returns every partner id appearing in bookings.
func (s *Store) BookingPartnerIDs(ctx context.Context) ([]ledger.PartnerID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryPartnerIDs(ctx,
		"SELECT DISTINCT partner_id FROM bookings WHERE partner_id != '' ORDER BY partner_id")
}

func scanBooking(r rowScanner) (*ledger.Booking, error) {
	var (
		b                      ledger.Booking
		totalPrice, serviceFee float64
		discount               float64
		finalTotal, feePercent sql.NullFloat64
		feeApplied             sql.NullFloat64
		feeAppliedAt, paidAt   sql.NullString
		createdAt              string
	)

	err := r.Scan(
		&b.ID, &b.PartnerID, &b.Status,
		&totalPrice, &finalTotal, &discount,
		&feePercent, &feeApplied, &serviceFee,
		&feeAppliedAt, &paidAt, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	b.TotalPrice = decimal.NewFromFloat(totalPrice)
	b.FinalTotal = decimalPtr(finalTotal)
	b.Discount = decimal.NewFromFloat(discount)
	b.FeePercent = decimalPtr(feePercent)
	b.FeeApplied = decimalPtr(feeApplied)
	b.ServiceFeeAmount = decimal.NewFromFloat(serviceFee)
	b.FeeAppliedAt = parseNullTime(feeAppliedAt)
	b.PaidAt = parseNullTime(paidAt)
	b.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &b, nil
}

// =============================================================================
// WITHDRAWAL SOURCE (ledger.WithdrawalSource interface)
// =============================================================================

const withdrawalSelect = `
	SELECT id, partner_id, amount, deduct_from, channel, status, note,
	       requested_at, completed_at
	FROM withdrawals`

// Withdrawal returns one withdrawal, or nil if it doesn't exist.
func (s *Store) Withdrawal(ctx context.Context, id ledger.WithdrawalID) (*ledger.Withdrawal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, withdrawalSelect+" WHERE id = ?", id)
	w, err := scanWithdrawal(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

// SaveWithdrawal upserts a withdrawal record. The record is
// append-only apart from status, note and completion time.
func (s *Store) SaveWithdrawal(ctx context.Context, w ledger.Withdrawal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	requestedAt := w.RequestedAt
	if requestedAt.IsZero() {
		requestedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO withdrawals
		(id, partner_id, amount, deduct_from, channel, status, note,
		 requested_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			note = excluded.note,
			completed_at = excluded.completed_at
	`

	_, err := s.db.ExecContext(ctx, query,
		w.ID, w.PartnerID,
		w.Amount.String(),
		w.DeductFrom, w.Channel, w.Status, w.Note,
		requestedAt.Format(time.RFC3339),
		nullTime(w.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save withdrawal: %w", err)
	}
	return nil
}

// WithdrawalsByPartner returns all of a partner's withdrawals.
func (s *Store) WithdrawalsByPartner(ctx context.Context, partnerID ledger.PartnerID) ([]ledger.Withdrawal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		withdrawalSelect+" WHERE partner_id = ? ORDER BY requested_at ASC", partnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query withdrawals: %w", err)
	}
	defer rows.Close()

	var out []ledger.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

// WithdrawalPartnerIDs returns every partner id appearing in withdrawals.
func (s *Store) WithdrawalPartnerIDs(ctx context.Context) ([]ledger.PartnerID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryPartnerIDs(ctx,
		"SELECT DISTINCT partner_id FROM withdrawals WHERE partner_id != '' ORDER BY partner_id")
}

func scanWithdrawal(r rowScanner) (*ledger.Withdrawal, error) {
	var (
		w           ledger.Withdrawal
		amount      float64
		requestedAt string
		completedAt sql.NullString
	)

	err := r.Scan(
		&w.ID, &w.PartnerID, &amount, &w.DeductFrom, &w.Channel,
		&w.Status, &w.Note, &requestedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	w.Amount = decimal.NewFromFloat(amount)
	w.RequestedAt, _ = time.Parse(time.RFC3339, requestedAt)
	w.CompletedAt = parseNullTime(completedAt)
	return &w, nil
}

// =============================================================================
// FEE CONFIG STORE (settlement.FeeConfigStore interface)
// =============================================================================

// LatestFeeConfig returns the most recent entry, or nil when empty.
func (s *Store) LatestFeeConfig(ctx context.Context) (*settlement.FeeConfigEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		e                      settlement.FeeConfigEntry
		oldPercent, newPercent float64
		createdAt              string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, old_percent, new_percent, note, created_at
		 FROM fee_configs ORDER BY created_at DESC, id DESC LIMIT 1`,
	).Scan(&e.ID, &oldPercent, &newPercent, &e.Note, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	e.OldPercent = decimal.NewFromFloat(oldPercent)
	e.NewPercent = decimal.NewFromFloat(newPercent)
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &e, nil
}

// AppendFeeConfig appends a fee change entry.
func (s *Store) AppendFeeConfig(ctx context.Context, entry settlement.FeeConfigEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fee_configs (id, old_percent, new_percent, note, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.ID,
		entry.OldPercent.String(),
		entry.NewPercent.String(),
		entry.Note,
		entry.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to append fee config: %w", err)
	}
	return nil
}

// FeeConfigHistory returns up to limit entries, newest first.
func (s *Store) FeeConfigHistory(ctx context.Context, limit int) ([]settlement.FeeConfigEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, old_percent, new_percent, note, created_at
		 FROM fee_configs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []settlement.FeeConfigEntry
	for rows.Next() {
		var (
			e                      settlement.FeeConfigEntry
			oldPercent, newPercent float64
			createdAt              string
		)
		if err := rows.Scan(&e.ID, &oldPercent, &newPercent, &e.Note, &createdAt); err != nil {
			return nil, err
		}
		e.OldPercent = decimal.NewFromFloat(oldPercent)
		e.NewPercent = decimal.NewFromFloat(newPercent)
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// PARTNER DIRECTORY
// =============================================================================

// Partner is a partner's presentational record.
type Partner struct {
	ID        ledger.PartnerID
	Name      string
	Email     string
	CreatedAt time.Time
}

// SavePartner upserts a partner record.
func (s *Store) SavePartner(ctx context.Context, p Partner) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO partners (id, name, email, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email
	`

	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.Name, p.Email, time.Now().UTC().Format(time.RFC3339))
	return err
}

// PartnerName returns a partner's display name, "" when unknown.
func (s *Store) PartnerName(ctx context.Context, id ledger.PartnerID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var name string
	err := s.db.QueryRowContext(ctx, "SELECT name FROM partners WHERE id = ?", id).Scan(&name)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return name, nil
}

// ListPartners returns all partner records.
func (s *Store) ListPartners(ctx context.Context) ([]Partner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, email, created_at FROM partners ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Partner
	for rows.Next() {
		var p Partner
		var createdAt string
		if err := rows.Scan(&p.ID, &p.Name, &p.Email, &createdAt); err != nil {
			return nil, err
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

// =============================================================================
// GLOBAL RESET
// =============================================================================

// Reset wipes every table. Used by the demo scenario loader and the
// explicit admin reset; never part of steady-state operation.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"partner_ledgers", "bookings", "withdrawals", "fee_configs", "partners"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Store) queryPartnerIDs(ctx context.Context, query string) ([]ledger.PartnerID, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []ledger.PartnerID
	for rows.Next() {
		var id ledger.PartnerID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nullTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func decimalPtr(f sql.NullFloat64) *decimal.Decimal {
	if !f.Valid {
		return nil
	}
	d := decimal.NewFromFloat(f.Float64)
	return &d
}
