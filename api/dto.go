/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

AMOUNT HANDLING:
  Wire amounts are float64 (JSON numbers). Every inbound amount crosses
  into the domain through ledger.CoerceAmount, which collapses NaN and
  infinities to zero; outbound amounts come from decimal.Decimal via
  InexactFloat64. The domain itself never touches float64.

TYPES:
  Partner:
    PartnerDTO, CreatePartnerRequest

  Ledger:
    LedgerDTO, WithdrawableDTO

  Booking:
    BookingDTO, CreateBookingRequest

  Withdrawal:
    WithdrawalDTO, CreateWithdrawalRequest, FailWithdrawalRequest

  Reporting:
    DebtReportDTO, PartnerDebtDTO, ChartPointDTO, StatusCountDTO

  Fee config:
    FeeConfigDTO, SetFeeConfigRequest

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

SEE ALSO:
  - handlers.go: Uses these types
  - settlement/report.go: Source shapes for the debt report
*/
package api

import (
	"time"

	"github.com/warp/settlement-engine/ledger"
	"github.com/warp/settlement-engine/settlement"
	"github.com/warp/settlement-engine/store/sqlite"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// PartnerDTO represents a partner in API responses.
type PartnerDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreatePartnerRequest is the request to register a partner.
type CreatePartnerRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// LedgerDTO represents a partner's aggregate ledger row.
type LedgerDTO struct {
	PartnerID string `json:"partner_id"`

	ServiceFeeBalance float64 `json:"service_fee_balance"`
	ReceivableBalance float64 `json:"receivable_balance"`

	TotalRevenue    float64 `json:"total_revenue"`
	TotalServiceFee float64 `json:"total_service_fee"`
	TotalDiscounts  float64 `json:"total_discounts"`

	TotalWithdrawnFee        float64 `json:"total_withdrawn_fee"`
	TotalWithdrawnReceivable float64 `json:"total_withdrawn_receivable"`

	LastBookingID    string  `json:"last_booking_id,omitempty"`
	LastWithdrawalID string  `json:"last_withdrawal_id,omitempty"`
	LastBookingAt    *string `json:"last_booking_at,omitempty"`
	LastWithdrawalAt *string `json:"last_withdrawal_at,omitempty"`

	UpdatedAt string `json:"updated_at,omitempty"`
}

// WithdrawableDTO represents a partner's current payout availability.
type WithdrawableDTO struct {
	PartnerID string `json:"partner_id"`

	Amount            float64 `json:"amount"`
	AvailableFee      float64 `json:"available_fee"`
	AvailableReceived float64 `json:"available_received"`

	TotalPaidGross    float64 `json:"total_paid_gross"`
	TotalServiceFee   float64 `json:"total_service_fee"`
	TotalDiscounts    float64 `json:"total_discounts"`
	WithdrawnFee      float64 `json:"withdrawn_fee"`
	WithdrawnReceived float64 `json:"withdrawn_received"`
}

// BookingDTO represents a booking in API responses.
type BookingDTO struct {
	ID        string `json:"id"`
	PartnerID string `json:"partner_id"`
	Status    string `json:"status"`

	TotalPrice float64  `json:"total_price"`
	FinalTotal *float64 `json:"final_total,omitempty"`
	Discount   float64  `json:"discount"`

	FeePercent       *float64 `json:"fee_percent,omitempty"`
	ServiceFeeAmount float64  `json:"service_fee_amount"`
	FeeAppliedAt     *string  `json:"fee_applied_at,omitempty"`

	PaidAt    *string `json:"paid_at,omitempty"`
	CreatedAt string  `json:"created_at,omitempty"`
}

// CreateBookingRequest is the request to record a booking.
type CreateBookingRequest struct {
	ID         string   `json:"id,omitempty"`
	PartnerID  string   `json:"partner_id"`
	TotalPrice float64  `json:"total_price"`
	FinalTotal *float64 `json:"final_total,omitempty"`
	Discount   float64  `json:"discount,omitempty"`
}

// WithdrawalDTO represents a withdrawal in API responses.
type WithdrawalDTO struct {
	ID         string  `json:"id"`
	PartnerID  string  `json:"partner_id"`
	Amount     float64 `json:"amount"`
	DeductFrom string  `json:"deduct_from"`
	Channel    string  `json:"channel,omitempty"`
	Status     string  `json:"status"`
	Note       string  `json:"note,omitempty"`

	RequestedAt string  `json:"requested_at"`
	CompletedAt *string `json:"completed_at,omitempty"`
}

// CreateWithdrawalRequest is the request to open a payout request.
type CreateWithdrawalRequest struct {
	Amount     float64 `json:"amount"`
	DeductFrom string  `json:"deduct_from,omitempty"`
	Channel    string  `json:"channel,omitempty"`
	Note       string  `json:"note,omitempty"`
}

// FailWithdrawalRequest carries the failure reason.
type FailWithdrawalRequest struct {
	Reason string `json:"reason,omitempty"`
}

// PartnerDebtDTO is one partner's row in the debt report.
type PartnerDebtDTO struct {
	PartnerID   string `json:"partner_id"`
	PartnerName string `json:"partner_name"`

	TotalRevenue          float64 `json:"total_revenue"`
	TotalServiceFee       float64 `json:"total_service_fee"`
	FeePaid               float64 `json:"fee_paid"`
	FeeOutstanding        float64 `json:"fee_outstanding"`
	ReceivableOutstanding float64 `json:"receivable_outstanding"`

	Status        string  `json:"status"`
	FromLedger    bool    `json:"from_ledger"`
	LastBookingAt *string `json:"last_booking_at,omitempty"`
}

// DebtSummaryDTO aggregates the report.
type DebtSummaryDTO struct {
	Partners            int     `json:"partners"`
	TotalRevenue        float64 `json:"total_revenue"`
	TotalServiceFee     float64 `json:"total_service_fee"`
	TotalFeePaid        float64 `json:"total_fee_paid"`
	TotalFeeOutstanding float64 `json:"total_fee_outstanding"`
}

// ChartPointDTO is a (label, value) pair for dashboard charts.
type ChartPointDTO struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// StatusCountDTO is a (status, count) pair for dashboard charts.
type StatusCountDTO struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// DebtReportDTO is the full administrative settlement view.
type DebtReportDTO struct {
	GeneratedAt   string           `json:"generated_at"`
	Summary       DebtSummaryDTO   `json:"summary"`
	Partners      []PartnerDebtDTO `json:"partners"`
	TopByRevenue  []ChartPointDTO  `json:"top_by_revenue"`
	CountByStatus []StatusCountDTO `json:"count_by_status"`
}

// FeeConfigDTO represents one fee-percent change.
type FeeConfigDTO struct {
	ID         string  `json:"id"`
	OldPercent float64 `json:"old_percent"`
	NewPercent float64 `json:"new_percent"`
	Note       string  `json:"note,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

// SetFeeConfigRequest is the request to change the platform fee.
type SetFeeConfigRequest struct {
	Percent float64 `json:"percent"`
	Note    string  `json:"note,omitempty"`
}

// RebuildResultDTO reports what a rebuild touched.
type RebuildResultDTO struct {
	Rebuilt  int      `json:"rebuilt"`
	Partners []string `json:"partners"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects the scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toPartnerDTO(p sqlite.Partner) PartnerDTO {
	dto := PartnerDTO{
		ID:    string(p.ID),
		Name:  p.Name,
		Email: p.Email,
	}
	if !p.CreatedAt.IsZero() {
		dto.CreatedAt = p.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toLedgerDTO(row ledger.PartnerLedger) LedgerDTO {
	return LedgerDTO{
		PartnerID:                string(row.PartnerID),
		ServiceFeeBalance:        row.ServiceFeeBalance.InexactFloat64(),
		ReceivableBalance:        row.ReceivableBalance.InexactFloat64(),
		TotalRevenue:             row.TotalRevenue.InexactFloat64(),
		TotalServiceFee:          row.TotalServiceFee.InexactFloat64(),
		TotalDiscounts:           row.TotalDiscounts.InexactFloat64(),
		TotalWithdrawnFee:        row.TotalWithdrawnFee.InexactFloat64(),
		TotalWithdrawnReceivable: row.TotalWithdrawnReceivable.InexactFloat64(),
		LastBookingID:            string(row.LastBookingID),
		LastWithdrawalID:         string(row.LastWithdrawalID),
		LastBookingAt:            timePtrString(row.LastBookingAt),
		LastWithdrawalAt:         timePtrString(row.LastWithdrawalAt),
		UpdatedAt:                timeString(row.UpdatedAt),
	}
}

func toWithdrawableDTO(w settlement.Withdrawable) WithdrawableDTO {
	return WithdrawableDTO{
		PartnerID:         string(w.PartnerID),
		Amount:            w.Amount.InexactFloat64(),
		AvailableFee:      w.AvailableFee.InexactFloat64(),
		AvailableReceived: w.AvailableReceived.InexactFloat64(),
		TotalPaidGross:    w.TotalPaidGross.InexactFloat64(),
		TotalServiceFee:   w.TotalServiceFee.InexactFloat64(),
		TotalDiscounts:    w.TotalDiscounts.InexactFloat64(),
		WithdrawnFee:      w.WithdrawnFee.InexactFloat64(),
		WithdrawnReceived: w.WithdrawnReceived.InexactFloat64(),
	}
}

func toBookingDTO(b ledger.Booking) BookingDTO {
	dto := BookingDTO{
		ID:               string(b.ID),
		PartnerID:        string(b.PartnerID),
		Status:           string(b.Status),
		TotalPrice:       b.TotalPrice.InexactFloat64(),
		Discount:         b.Discount.InexactFloat64(),
		ServiceFeeAmount: b.ServiceFeeAmount.InexactFloat64(),
		FeeAppliedAt:     timePtrString(b.FeeAppliedAt),
		PaidAt:           timePtrString(b.PaidAt),
		CreatedAt:        timeString(b.CreatedAt),
	}
	if b.FinalTotal != nil {
		v := b.FinalTotal.InexactFloat64()
		dto.FinalTotal = &v
	}
	if pct := ledger.EffectiveFeePercent(b); b.FeePercent != nil || b.FeeApplied != nil {
		v := pct.InexactFloat64()
		dto.FeePercent = &v
	}
	return dto
}

func toWithdrawalDTO(w ledger.Withdrawal) WithdrawalDTO {
	return WithdrawalDTO{
		ID:          string(w.ID),
		PartnerID:   string(w.PartnerID),
		Amount:      w.Amount.InexactFloat64(),
		DeductFrom:  string(w.DeductFrom),
		Channel:     w.Channel,
		Status:      string(w.Status),
		Note:        w.Note,
		RequestedAt: w.RequestedAt.Format(time.RFC3339),
		CompletedAt: timePtrString(w.CompletedAt),
	}
}

func toDebtReportDTO(r settlement.DebtReport) DebtReportDTO {
	out := DebtReportDTO{
		GeneratedAt: r.GeneratedAt.Format(time.RFC3339),
		Summary: DebtSummaryDTO{
			Partners:            r.Summary.Partners,
			TotalRevenue:        r.Summary.TotalRevenue.InexactFloat64(),
			TotalServiceFee:     r.Summary.TotalServiceFee.InexactFloat64(),
			TotalFeePaid:        r.Summary.TotalFeePaid.InexactFloat64(),
			TotalFeeOutstanding: r.Summary.TotalFeeOutstanding.InexactFloat64(),
		},
		Partners:      make([]PartnerDebtDTO, len(r.Partners)),
		TopByRevenue:  make([]ChartPointDTO, len(r.TopByRevenue)),
		CountByStatus: make([]StatusCountDTO, len(r.CountByStatus)),
	}
	for i, row := range r.Partners {
		out.Partners[i] = PartnerDebtDTO{
			PartnerID:             string(row.PartnerID),
			PartnerName:           row.PartnerName,
			TotalRevenue:          row.TotalRevenue.InexactFloat64(),
			TotalServiceFee:       row.TotalServiceFee.InexactFloat64(),
			FeePaid:               row.FeePaid.InexactFloat64(),
			FeeOutstanding:        row.FeeOutstanding.InexactFloat64(),
			ReceivableOutstanding: row.ReceivableOutstanding.InexactFloat64(),
			Status:                string(row.Status),
			FromLedger:            row.FromLedger,
			LastBookingAt:         timePtrString(row.LastBookingAt),
		}
	}
	for i, p := range r.TopByRevenue {
		out.TopByRevenue[i] = ChartPointDTO{Label: p.Label, Value: p.Value.InexactFloat64()}
	}
	for i, c := range r.CountByStatus {
		out.CountByStatus[i] = StatusCountDTO{Status: string(c.Status), Count: c.Count}
	}
	return out
}

func toFeeConfigDTO(e settlement.FeeConfigEntry) FeeConfigDTO {
	return FeeConfigDTO{
		ID:         e.ID,
		OldPercent: e.OldPercent.InexactFloat64(),
		NewPercent: e.NewPercent.InexactFloat64(),
		Note:       e.Note,
		CreatedAt:  e.CreatedAt.Format(time.RFC3339),
	}
}

func timeString(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func timePtrString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
