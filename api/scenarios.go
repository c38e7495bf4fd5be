/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	marketplace data for testing and demos. Each scenario creates partners,
	a fee schedule, bookings and withdrawals that demonstrate specific
	behaviors of the ledger and settlement engine.

AVAILABLE SCENARIOS:

	small-marketplace: Three partners, mixed paid/pending bookings,
	                   withdrawals from both buckets
	fee-change:        Bookings paid before and after a fee change,
	                   showing frozen fee snapshots
	drift-and-rebuild: A booking corrected after payment so the
	                   incremental ledger drifts until a rebuild

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Register partners
 3. Set the platform fee percent
 4. Record bookings and drive them through the paid transition
 5. Open withdrawals and complete some of them

	Scenarios go through the same domain flows as the API, so every
	ledger row they produce is reachable through normal operation.

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "small-marketplace"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Shared response helpers
  - server.go: Scenario routes
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/warp/settlement-engine/ledger"
	"github.com/warp/settlement-engine/settlement"
	"github.com/warp/settlement-engine/store/sqlite"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "small-marketplace",
		Name:        "Small Marketplace",
		Description: "Three partners with paid and pending bookings plus withdrawals from both buckets",
	},
	{
		ID:          "fee-change",
		Name:        "Fee Change",
		Description: "Bookings paid before and after a fee change keep their frozen fee snapshots",
	},
	{
		ID:          "drift-and-rebuild",
		Name:        "Drift & Rebuild",
		Description: "A booking corrected after payment leaves ledger drift until an admin rebuild",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:   h.currentScenario,
		Name: h.currentScenario,
	})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()

	// Reset first
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	var err error
	switch req.ScenarioID {
	case "small-marketplace":
		err = h.loadSmallMarketplaceScenario(ctx)
	case "fee-change":
		err = h.loadFeeChangeScenario(ctx)
	case "drift-and-rebuild":
		err = h.loadDriftAndRebuildScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown scenario: %s", req.ScenarioID), nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "loaded",
		"scenario": req.ScenarioID,
	})
}

// ResetDatabase wipes all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// seedPartner registers a demo partner.
func (h *Handler) seedPartner(ctx context.Context, id, name string) error {
	return h.Store.SavePartner(ctx, sqlite.Partner{
		ID:   ledger.PartnerID(id),
		Name: name,
	})
}

// seedPaidBooking records a booking and drives it through the paid
// transition, firing the ledger impact with the current fee percent.
func (h *Handler) seedPaidBooking(ctx context.Context, id, partnerID string, price, discount float64) error {
	b := ledger.Booking{
		ID:         ledger.BookingID(id),
		PartnerID:  ledger.PartnerID(partnerID),
		Status:     ledger.BookingPending,
		TotalPrice: decimal.NewFromFloat(price),
		Discount:   decimal.NewFromFloat(discount),
	}
	if err := h.Store.SaveBooking(ctx, b); err != nil {
		return err
	}
	_, err := h.Fees.MarkBookingPaid(ctx, b.ID)
	return err
}

// seedCompletedWithdrawal opens a payout request and completes it.
func (h *Handler) seedCompletedWithdrawal(ctx context.Context, partnerID string, amount float64, bucket ledger.Bucket, channel string) error {
	wd, err := h.Desk.RequestWithdrawal(ctx, settlement.WithdrawalRequest{
		PartnerID:  ledger.PartnerID(partnerID),
		Amount:     decimal.NewFromFloat(amount),
		DeductFrom: bucket,
		Channel:    channel,
	})
	if err != nil {
		return err
	}
	_, err = h.Desk.CompleteWithdrawal(ctx, wd.ID)
	return err
}

// loadSmallMarketplaceScenario: three partners at different settlement
// stages - one fully settled, one partially withdrawn, one untouched.
func (h *Handler) loadSmallMarketplaceScenario(ctx context.Context) error {
	if _, err := h.Fees.SetPercent(ctx, decimal.NewFromInt(10), "initial platform fee"); err != nil {
		return err
	}

	if err := h.seedPartner(ctx, "alpine-tours", "Alpine Tours"); err != nil {
		return err
	}
	if err := h.seedPartner(ctx, "coast-lines", "Coast Lines"); err != nil {
		return err
	}
	if err := h.seedPartner(ctx, "metro-shuttle", "Metro Shuttle"); err != nil {
		return err
	}

	// Alpine Tours: 1000 + 500 gross, 50 discount on the second.
	if err := h.seedPaidBooking(ctx, "bk-alp-1", "alpine-tours", 1000, 0); err != nil {
		return err
	}
	if err := h.seedPaidBooking(ctx, "bk-alp-2", "alpine-tours", 500, 50); err != nil {
		return err
	}
	// Fee bucket fully cleared, part of the receivable drawn down.
	if err := h.seedCompletedWithdrawal(ctx, "alpine-tours", 150, ledger.BucketFee, "bank"); err != nil {
		return err
	}
	if err := h.seedCompletedWithdrawal(ctx, "alpine-tours", 800, ledger.BucketReceived, "bank"); err != nil {
		return err
	}

	// Coast Lines: one paid, one still pending (pending contributes nothing).
	if err := h.seedPaidBooking(ctx, "bk-cst-1", "coast-lines", 2000, 0); err != nil {
		return err
	}
	pending := ledger.Booking{
		ID:         "bk-cst-2",
		PartnerID:  "coast-lines",
		Status:     ledger.BookingPending,
		TotalPrice: decimal.NewFromInt(750),
	}
	if err := h.Store.SaveBooking(ctx, pending); err != nil {
		return err
	}
	// Gateway channel: pinned to the fee bucket regardless of request.
	if err := h.seedCompletedWithdrawal(ctx, "coast-lines", 120, ledger.BucketReceived, settlement.ChannelGateway); err != nil {
		return err
	}

	// Metro Shuttle: revenue, no withdrawals yet.
	return h.seedPaidBooking(ctx, "bk-mtr-1", "metro-shuttle", 400, 0)
}

// loadFeeChangeScenario: the fee percent changes between two payments;
// the first booking keeps its frozen 10% snapshot.
func (h *Handler) loadFeeChangeScenario(ctx context.Context) error {
	if err := h.seedPartner(ctx, "valley-express", "Valley Express"); err != nil {
		return err
	}

	if _, err := h.Fees.SetPercent(ctx, decimal.NewFromInt(10), "initial platform fee"); err != nil {
		return err
	}
	if err := h.seedPaidBooking(ctx, "bk-val-1", "valley-express", 1000, 0); err != nil {
		return err
	}

	if _, err := h.Fees.SetPercent(ctx, decimal.NewFromInt(15), "fee raised mid-season"); err != nil {
		return err
	}
	return h.seedPaidBooking(ctx, "bk-val-2", "valley-express", 1000, 0)
}

// loadDriftAndRebuildScenario: after payment, the booking's final total
// is corrected directly in the source log. The incremental ledger still
// carries the old number until POST /api/admin/rebuild reconciles it.
func (h *Handler) loadDriftAndRebuildScenario(ctx context.Context) error {
	if _, err := h.Fees.SetPercent(ctx, decimal.NewFromInt(10), "initial platform fee"); err != nil {
		return err
	}
	if err := h.seedPartner(ctx, "lakeside-travel", "Lakeside Travel"); err != nil {
		return err
	}
	if err := h.seedPaidBooking(ctx, "bk-lks-1", "lakeside-travel", 1200, 0); err != nil {
		return err
	}

	// Order-level correction lands after payment: the frozen fee
	// snapshot stays, the gross changes, the ledger row drifts.
	b, err := h.Store.Booking(ctx, "bk-lks-1")
	if err != nil {
		return err
	}
	corrected := decimal.NewFromInt(1100)
	b.FinalTotal = &corrected
	return h.Store.SaveBooking(ctx, *b)
}
