/*
handlers.go - HTTP API handlers for the partner settlement engine

PURPOSE:
  Exposes the ledger and settlement engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Partners:
    GET    /api/partners                     List all partners
    POST   /api/partners                     Register partner
    GET    /api/partners/{id}/ledger         Aggregate ledger row
    GET    /api/partners/{id}/withdrawable   Current payout availability
    GET    /api/partners/{id}/withdrawals    Withdrawal history
    POST   /api/partners/{id}/withdrawals    Open payout request

  Bookings:
    POST   /api/bookings                     Record booking
    GET    /api/bookings/{id}                Get booking
    POST   /api/bookings/{id}/pay            First paid transition

  Withdrawals:
    POST   /api/withdrawals/{id}/complete    First success transition
    POST   /api/withdrawals/{id}/fail        Mark failed

  Admin:
    GET    /api/admin/debt-report            Settlement report
    POST   /api/admin/rebuild                Rebuild ledgers from sources
    GET    /api/admin/fee-config             Fee percent + change history
    POST   /api/admin/fee-config             Change the platform fee

  Scenarios:
    GET    /api/scenarios                    List demo scenarios
    POST   /api/scenarios/load               Load a demo scenario
    POST   /api/scenarios/reset              Wipe the database

ARCHITECTURE:
  Handler struct holds all dependencies, wired once from the store:
  - Store: database access (implements every persistence interface)
  - Applier/Rebuilder: the ledger's two write paths
  - Fees/Desk: the paid/success transition gates
  - Calculator/Reporter: read models

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Record not found
  - 409: Conflict (duplicate transition, insufficient availability)
  - 500: Internal errors

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/warp/settlement-engine/ledger"
	"github.com/warp/settlement-engine/settlement"
	"github.com/warp/settlement-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store *sqlite.Store

	Applier    *ledger.Applier
	Rebuilder  *ledger.Rebuilder
	Fees       *settlement.FeeSchedule
	Calculator *settlement.Calculator
	Desk       *settlement.Desk
	Reporter   *settlement.Reporter

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler wires the full engine on top of the given store.
func NewHandler(store *sqlite.Store) *Handler {
	applier := ledger.NewApplier(store)
	rebuilder := ledger.NewRebuilder(store, store, store)
	calculator := settlement.NewCalculator(store, store)

	return &Handler{
		Store:      store,
		Applier:    applier,
		Rebuilder:  rebuilder,
		Fees:       settlement.NewFeeSchedule(store, store, applier),
		Calculator: calculator,
		Desk:       settlement.NewDesk(store, calculator, applier),
		Reporter:   settlement.NewReporter(store, rebuilder, store),
	}
}

// =============================================================================
// PARTNER HANDLERS
// =============================================================================

// ListPartners returns all registered partners.
func (h *Handler) ListPartners(w http.ResponseWriter, r *http.Request) {
	partners, err := h.Store.ListPartners(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list partners", err)
		return
	}

	dtos := make([]PartnerDTO, len(partners))
	for i, p := range partners {
		dtos[i] = toPartnerDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreatePartner registers a partner.
func (h *Handler) CreatePartner(w http.ResponseWriter, r *http.Request) {
	var req CreatePartnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Partner name is required", nil)
		return
	}

	id := req.ID
	if id == "" {
		id = settlement.NewID()
	}
	p := sqlite.Partner{
		ID:    ledger.PartnerID(id),
		Name:  req.Name,
		Email: req.Email,
	}
	if err := h.Store.SavePartner(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create partner", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPartnerDTO(p))
}

// GetLedger returns a partner's aggregate ledger row. Partners with no
// persisted row get the well-defined zero shape, not a 404.
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	id := ledger.PartnerID(chi.URLParam(r, "id"))

	row, err := h.Store.Ledger(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load ledger", err)
		return
	}
	if row == nil {
		zero := ledger.ZeroLedger(id)
		row = &zero
	}
	writeJSON(w, http.StatusOK, toLedgerDTO(*row))
}

// GetWithdrawable returns a partner's current payout availability,
// aggregated from source truth rather than the ledger row.
func (h *Handler) GetWithdrawable(w http.ResponseWriter, r *http.Request) {
	id := ledger.PartnerID(chi.URLParam(r, "id"))

	avail, err := h.Calculator.WithdrawableAmount(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute withdrawable amount", err)
		return
	}
	writeJSON(w, http.StatusOK, toWithdrawableDTO(*avail))
}

// ListWithdrawals returns a partner's withdrawal history.
func (h *Handler) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	id := ledger.PartnerID(chi.URLParam(r, "id"))

	withdrawals, err := h.Store.WithdrawalsByPartner(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list withdrawals", err)
		return
	}

	dtos := make([]WithdrawalDTO, len(withdrawals))
	for i, wd := range withdrawals {
		dtos[i] = toWithdrawalDTO(wd)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateWithdrawal opens a payout request for a partner.
func (h *Handler) CreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	id := ledger.PartnerID(chi.URLParam(r, "id"))

	var req CreateWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	wd, err := h.Desk.RequestWithdrawal(r.Context(), settlement.WithdrawalRequest{
		PartnerID:  id,
		Amount:     ledger.CoerceAmount(req.Amount),
		DeductFrom: ledger.Bucket(req.DeductFrom),
		Channel:    req.Channel,
		Note:       req.Note,
	})
	if err != nil {
		writeDomainError(w, "Failed to create withdrawal", err)
		return
	}
	writeJSON(w, http.StatusCreated, toWithdrawalDTO(*wd))
}

// =============================================================================
// BOOKING HANDLERS
// =============================================================================

// CreateBooking records a booking in pending state. No ledger impact
// fires until the booking's paid transition.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.PartnerID == "" {
		writeError(w, http.StatusBadRequest, "partner_id is required", nil)
		return
	}

	id := req.ID
	if id == "" {
		id = settlement.NewID()
	}
	b := ledger.Booking{
		ID:         ledger.BookingID(id),
		PartnerID:  ledger.PartnerID(req.PartnerID),
		Status:     ledger.BookingPending,
		TotalPrice: ledger.CoerceAmount(req.TotalPrice),
		Discount:   ledger.CoerceAmount(req.Discount),
	}
	if req.FinalTotal != nil {
		ft := ledger.CoerceAmount(*req.FinalTotal)
		b.FinalTotal = &ft
	}

	if err := h.Store.SaveBooking(r.Context(), b); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create booking", err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookingDTO(b))
}

// GetBooking returns a single booking.
func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	id := ledger.BookingID(chi.URLParam(r, "id"))

	b, err := h.Store.Booking(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get booking", err)
		return
	}
	if b == nil {
		writeError(w, http.StatusNotFound, "Booking not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTO(*b))
}

// PayBooking performs a booking's first paid transition: freezes the
// fee snapshot and fires the ledger impact. A repeat call returns 409.
func (h *Handler) PayBooking(w http.ResponseWriter, r *http.Request) {
	id := ledger.BookingID(chi.URLParam(r, "id"))

	b, err := h.Fees.MarkBookingPaid(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to mark booking paid", err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTO(*b))
}

// =============================================================================
// WITHDRAWAL TRANSITION HANDLERS
// =============================================================================

// CompleteWithdrawal performs a withdrawal's first success transition
// and fires the ledger impact. A repeat call returns 409.
func (h *Handler) CompleteWithdrawal(w http.ResponseWriter, r *http.Request) {
	id := ledger.WithdrawalID(chi.URLParam(r, "id"))

	wd, err := h.Desk.CompleteWithdrawal(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to complete withdrawal", err)
		return
	}
	writeJSON(w, http.StatusOK, toWithdrawalDTO(*wd))
}

// FailWithdrawal marks a pending withdrawal as failed. No impact fires.
func (h *Handler) FailWithdrawal(w http.ResponseWriter, r *http.Request) {
	id := ledger.WithdrawalID(chi.URLParam(r, "id"))

	var req FailWithdrawalRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req) // reason is optional
	}

	wd, err := h.Desk.FailWithdrawal(r.Context(), id, req.Reason)
	if err != nil {
		writeDomainError(w, "Failed to fail withdrawal", err)
		return
	}
	writeJSON(w, http.StatusOK, toWithdrawalDTO(*wd))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// GetDebtReport returns the full settlement view over every partner
// with any activity.
func (h *Handler) GetDebtReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.Reporter.DebtReport(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build debt report", err)
		return
	}
	writeJSON(w, http.StatusOK, toDebtReportDTO(*report))
}

// TriggerRebuild recomputes ledger rows from the source logs. With no
// body (or an empty partner list) it rebuilds every discoverable
// partner; otherwise only the listed ones.
func (h *Handler) TriggerRebuild(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PartnerIDs []string `json:"partner_ids,omitempty"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req) // empty body means rebuild all
	}

	ctx := r.Context()
	var summary ledger.RebuildSummary
	var err error
	if len(req.PartnerIDs) == 0 {
		summary, err = h.Rebuilder.RebuildAll(ctx)
	} else {
		ids := make([]ledger.PartnerID, len(req.PartnerIDs))
		for i, id := range req.PartnerIDs {
			ids[i] = ledger.PartnerID(id)
		}
		summary, err = h.Rebuilder.RebuildMany(ctx, ids)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Rebuild failed", err)
		return
	}

	result := RebuildResultDTO{Rebuilt: summary.Rebuilt, Partners: make([]string, len(summary.Partners))}
	for i, id := range summary.Partners {
		result.Partners[i] = string(id)
	}
	writeJSON(w, http.StatusOK, result)
}

// GetFeeConfig returns the current fee percent and the change history.
func (h *Handler) GetFeeConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	current, err := h.Fees.CurrentPercent(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load fee config", err)
		return
	}
	history, err := h.Store.FeeConfigHistory(ctx, 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load fee history", err)
		return
	}

	dtos := make([]FeeConfigDTO, len(history))
	for i, e := range history {
		dtos[i] = toFeeConfigDTO(e)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"current_percent": current.InexactFloat64(),
		"history":         dtos,
	})
}

// SetFeeConfig appends a fee change. Already-paid bookings keep their
// frozen snapshot; only future paid transitions see the new percent.
func (h *Handler) SetFeeConfig(w http.ResponseWriter, r *http.Request) {
	var req SetFeeConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	percent := ledger.CoerceAmount(req.Percent)
	if percent.IsNegative() {
		writeError(w, http.StatusBadRequest, "Fee percent must not be negative", nil)
		return
	}

	entry, err := h.Fees.SetPercent(r.Context(), percent, req.Note)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to set fee config", err)
		return
	}
	writeJSON(w, http.StatusCreated, toFeeConfigDTO(*entry))
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain errors onto HTTP statuses: missing
// records are 404, duplicate transitions and availability conflicts
// are 409, other client errors are 400, everything else is 500.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, ledger.ErrAlreadyPaid),
		errors.Is(err, ledger.ErrAlreadyCompleted),
		errors.Is(err, ledger.ErrWithdrawalNotPending),
		errors.Is(err, ledger.ErrInsufficientWithdrawable):
		writeError(w, http.StatusConflict, message, err)
	case ledger.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
