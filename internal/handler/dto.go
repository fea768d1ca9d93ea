package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/studiopay/internal/model"
	"github.com/mmeshcher/studiopay/internal/payroll"
)

type sessionResponse struct {
	BookingID   string `json:"booking_id"`
	ClassTypeID string `json:"class_type_id"`
	ScheduledAt string `json:"scheduled_at"`
	Status      string `json:"status"`
	Customers   int    `json:"customers"`
}

type anomalyResponse struct {
	BookingID   string `json:"booking_id"`
	ClassTypeID string `json:"class_type_id"`
	Reason      string `json:"reason"`
}

type payoutResponse struct {
	TrainerID             string            `json:"trainer_id"`
	Period                model.Period      `json:"period"`
	ThisPeriodEarnings    decimal.Decimal   `json:"this_period_earnings"`
	BalanceBroughtForward decimal.Decimal   `json:"balance_brought_forward"`
	UnpaidPeriods         []model.Period    `json:"unpaid_periods"`
	AdvanceDeductions     decimal.Decimal   `json:"advance_deductions"`
	AppliedAdvanceIDs     []string          `json:"applied_advance_ids"`
	ManualAdjustment      decimal.Decimal   `json:"manual_adjustment"`
	TotalDue              decimal.Decimal   `json:"total_due"`
	IsSettled             bool              `json:"is_settled"`
	PaymentID             string            `json:"payment_id,omitempty"`
	IncludedSessions      []sessionResponse `json:"included_sessions"`
	Anomalies             []anomalyResponse `json:"anomalies,omitempty"`
}

func newPayoutResponse(c payroll.Calculation) payoutResponse {
	resp := payoutResponse{
		TrainerID:             c.TrainerID,
		Period:                c.Period,
		ThisPeriodEarnings:    c.ThisPeriodEarnings,
		BalanceBroughtForward: c.BalanceBroughtForward,
		UnpaidPeriods:         nonNil(c.UnpaidPeriods),
		AdvanceDeductions:     c.AdvanceDeductions,
		AppliedAdvanceIDs:     nonNil(c.AppliedAdvanceIDs),
		ManualAdjustment:      c.ManualAdjustment,
		TotalDue:              c.TotalDue,
		IsSettled:             c.IsSettled,
		IncludedSessions:      make([]sessionResponse, 0, len(c.IncludedSessions)),
	}
	if c.Payment != nil {
		resp.PaymentID = c.Payment.ID
	}
	for _, b := range c.IncludedSessions {
		resp.IncludedSessions = append(resp.IncludedSessions, sessionResponse{
			BookingID:   b.ID,
			ClassTypeID: b.ClassTypeID,
			ScheduledAt: b.ScheduledAt.Format(time.RFC3339),
			Status:      string(b.Status),
			Customers:   len(b.CustomerIDs),
		})
	}
	for _, a := range c.Anomalies {
		resp.Anomalies = append(resp.Anomalies, anomalyResponse{
			BookingID:   a.BookingID,
			ClassTypeID: a.ClassTypeID,
			Reason:      a.Reason,
		})
	}
	return resp
}

type paymentResponse struct {
	ID                    string          `json:"id"`
	TrainerID             string          `json:"trainer_id"`
	Amount                decimal.Decimal `json:"amount"`
	PaidAt                string          `json:"paid_at"`
	PrimaryPeriod         string          `json:"primary_period"`
	SettledPeriods        []model.Period  `json:"settled_periods"`
	BalanceBroughtForward decimal.Decimal `json:"balance_brought_forward"`
	EarningsForPeriod     decimal.Decimal `json:"earnings_for_period"`
	ManualAdjustment      decimal.Decimal `json:"manual_adjustment"`
	AdvanceDeductions     decimal.Decimal `json:"advance_deductions"`
	AppliedAdvanceIDs     []string        `json:"applied_advance_ids"`
}

func newPaymentResponse(p model.Payment) paymentResponse {
	return paymentResponse{
		ID:                    p.ID,
		TrainerID:             p.TrainerID,
		Amount:                p.Amount,
		PaidAt:                p.PaidAt.Format(time.RFC3339),
		PrimaryPeriod:         p.PrimaryLabel,
		SettledPeriods:        nonNil(p.SettledPeriods),
		BalanceBroughtForward: p.BalanceBroughtForward,
		EarningsForPeriod:     p.EarningsForPeriod,
		ManualAdjustment:      p.ManualAdjustment,
		AdvanceDeductions:     p.AdvanceDeductions,
		AppliedAdvanceIDs:     nonNil(p.AppliedAdvanceIDs),
	}
}

type advanceResponse struct {
	ID        string          `json:"id"`
	TrainerID string          `json:"trainer_id"`
	Amount    decimal.Decimal `json:"amount"`
	Date      string          `json:"date"`
}

type packageResponse struct {
	ID                string             `json:"id"`
	CustomerID        string             `json:"customer_id"`
	ClassTypeID       string             `json:"class_type_id"`
	TrainerLevel      model.TrainerLevel `json:"trainer_level"`
	TotalSessions     int                `json:"total_sessions"`
	SessionsRemaining int                `json:"sessions_remaining"`
	PurchasedAt       string             `json:"purchased_at"`
	ExpiresAt         *string            `json:"expires_at,omitempty"`
	Archived          bool               `json:"archived"`
}

func newPackageResponse(p model.Package) packageResponse {
	resp := packageResponse{
		ID:                p.ID,
		CustomerID:        p.CustomerID,
		ClassTypeID:       p.ClassTypeID,
		TrainerLevel:      p.TrainerLevel,
		TotalSessions:     p.TotalSessions,
		SessionsRemaining: p.SessionsRemaining,
		PurchasedAt:       p.PurchasedAt.Format(time.RFC3339),
		Archived:          p.Archived,
	}
	if p.ExpiresAt != nil {
		s := p.ExpiresAt.Format(time.RFC3339)
		resp.ExpiresAt = &s
	}
	return resp
}

type debtResponse struct {
	ID                  string             `json:"id"`
	CustomerID          string             `json:"customer_id"`
	BookingID           string             `json:"booking_id,omitempty"`
	ClassTypeID         string             `json:"class_type_id"`
	TrainerLevel        model.TrainerLevel `json:"trainer_level"`
	CreatedAt           string             `json:"created_at"`
	Resolved            bool               `json:"resolved"`
	ResolvedByPackageID string             `json:"resolved_by_package_id,omitempty"`
	ResolutionMethod    string             `json:"resolution_method,omitempty"`
}

func newDebtResponse(d model.SessionDebt) debtResponse {
	return debtResponse{
		ID:                  d.ID,
		CustomerID:          d.CustomerID,
		BookingID:           d.BookingID,
		ClassTypeID:         d.ClassTypeID,
		TrainerLevel:        d.TrainerLevel,
		CreatedAt:           d.CreatedAt.Format(time.RFC3339),
		Resolved:            d.Resolved,
		ResolvedByPackageID: d.ResolvedByPackageID,
		ResolutionMethod:    d.ResolutionMethod,
	}
}

type purchaseResponse struct {
	Package      packageResponse `json:"package"`
	PurchaseID   string          `json:"purchase_id"`
	Amount       decimal.Decimal `json:"amount"`
	ResolvedDebt *debtResponse   `json:"resolved_debt,omitempty"`
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
