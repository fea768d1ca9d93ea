package handler

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/studiopay/internal/service"
	"github.com/mmeshcher/studiopay/internal/validation"
)

// GetPayout возвращает расчёт выплаты тренеру за неделю, содержащую ?date (по умолчанию сегодня).
// Ничего не записывает.
func (h *Handler) GetPayout(w http.ResponseWriter, r *http.Request) {
	trainerID, ok := h.pathID(w, r, "trainerID")
	if !ok {
		return
	}

	q := r.URL.Query()
	date, err := validation.ParseDate(q.Get("date"), h.loc, h.now())
	if err != nil {
		h.writeError(w, err, "payout")
		return
	}
	adjustment, err := validation.ParseAmount(q.Get("adjustment"))
	if err != nil {
		h.writeError(w, err, "payout")
		return
	}

	calc, err := h.service.Payout(r.Context(), trainerID, date, adjustment)
	if err != nil {
		h.writeError(w, err, "payout")
		return
	}

	h.writeJSON(w, http.StatusOK, newPayoutResponse(calc))
}

type settleRequest struct {
	Date             string           `json:"date"`
	ManualAdjustment decimal.Decimal  `json:"manual_adjustment"`
	ExpectedTotal    *decimal.Decimal `json:"expected_total"`
}

// Settle записывает выплату тренеру. Повторный расчёт той же недели отклоняется с 409.
func (h *Handler) Settle(w http.ResponseWriter, r *http.Request) {
	trainerID, ok := h.pathID(w, r, "trainerID")
	if !ok {
		return
	}

	var req settleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	date, err := validation.ParseDate(req.Date, h.loc, h.now())
	if err != nil {
		h.writeError(w, err, "settle")
		return
	}

	payment, err := h.service.Settle(r.Context(), service.SettleInput{
		TrainerID:        trainerID,
		Date:             date,
		ManualAdjustment: req.ManualAdjustment,
		ExpectedTotal:    req.ExpectedTotal,
	})
	if err != nil {
		h.writeError(w, err, "settle")
		return
	}

	h.writeJSON(w, http.StatusCreated, newPaymentResponse(payment))
}

// GetPayments возвращает историю выплат тренера.
func (h *Handler) GetPayments(w http.ResponseWriter, r *http.Request) {
	trainerID, ok := h.pathID(w, r, "trainerID")
	if !ok {
		return
	}

	payments, err := h.service.Payments(r.Context(), trainerID)
	if err != nil {
		h.writeError(w, err, "get payments")
		return
	}

	if len(payments) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		resp = append(resp, newPaymentResponse(p))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

type advanceRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Date   string          `json:"date"`
}

// RecordAdvance регистрирует аванс тренеру. Он будет вычтен из ближайшей выплаты.
func (h *Handler) RecordAdvance(w http.ResponseWriter, r *http.Request) {
	trainerID, ok := h.pathID(w, r, "trainerID")
	if !ok {
		return
	}

	var req advanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	date, err := validation.ParseDate(req.Date, h.loc, h.now())
	if err != nil {
		h.writeError(w, err, "record advance")
		return
	}

	adv, err := h.service.RecordAdvance(r.Context(), trainerID, req.Amount, date)
	if err != nil {
		h.writeError(w, err, "record advance")
		return
	}

	h.logger.Info("advance recorded", zap.String("trainer_id", trainerID), zap.String("advance_id", adv.ID))
	h.writeJSON(w, http.StatusCreated, advanceResponse{
		ID:        adv.ID,
		TrainerID: adv.TrainerID,
		Amount:    adv.Amount,
		Date:      adv.Date.Format("2006-01-02"),
	})
}
