// Package handler содержит HTTP-обработчики API сервиса расчётов студии.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/studiopay/internal/model"
	"github.com/mmeshcher/studiopay/internal/payroll"
	"github.com/mmeshcher/studiopay/internal/service"
	"github.com/mmeshcher/studiopay/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Payout(ctx context.Context, trainerID string, date time.Time, adjustment decimal.Decimal) (payroll.Calculation, error)
	Settle(ctx context.Context, in service.SettleInput) (model.Payment, error)
	Payments(ctx context.Context, trainerID string) ([]model.Payment, error)
	RecordAdvance(ctx context.Context, trainerID string, amount decimal.Decimal, date time.Time) (model.AdvancePayment, error)

	PurchasePackage(ctx context.Context, in service.PurchaseInput) (service.PurchaseResult, error)
	Packages(ctx context.Context, customerID string) ([]model.Package, error)
	UnresolvedDebts(ctx context.Context, customerID string) ([]model.SessionDebt, error)

	SaveTrainer(ctx context.Context, t model.Trainer) error
	SaveClassType(ctx context.Context, ct model.ClassType) error
	SaveBooking(ctx context.Context, b model.Booking) error
}

// Handler реализует HTTP-обработчики API сервиса расчётов.
type Handler struct {
	service Service
	logger  *zap.Logger
	loc     *time.Location
	now     func() time.Time
}

// NewHandler создаёт обработчик. Даты без времени из запросов трактуются в часовом поясе loc.
func NewHandler(s Service, logger *zap.Logger, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{
		service: s,
		logger:  logger,
		loc:     loc,
		now:     time.Now,
	}
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, key string) (string, bool) {
	id := chi.URLParam(r, key)
	if !validation.IsValidID(id) {
		http.Error(w, "invalid "+key, http.StatusBadRequest)
		return "", false
	}
	return id, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("encode response", zap.Error(err))
	}
}

// writeError переводит доменную ошибку в HTTP-статус.
func (h *Handler) writeError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, model.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, model.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, model.ErrAlreadySettled):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, model.ErrTotalMismatch):
		http.Error(w, err.Error(), http.StatusPreconditionFailed)
	case errors.Is(err, model.ErrNothingToPay):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, model.ErrConflict):
		w.Header().Set("Retry-After", "1")
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
	default:
		h.logger.Error(op+" error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
