package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/studiopay/internal/model"
)

// Справочники и расписание ведёт внешняя система; эти обработчики принимают их копию.

type trainerRequest struct {
	Name            string                     `json:"name"`
	Level           model.TrainerLevel         `json:"level"`
	CommissionRates map[string]decimal.Decimal `json:"commission_rates"`
}

// PutTrainer сохраняет карточку тренера и его ставки комиссии.
func (h *Handler) PutTrainer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "trainerID")
	if !ok {
		return
	}

	var req trainerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err := h.service.SaveTrainer(r.Context(), model.Trainer{
		ID:              id,
		Name:            req.Name,
		Level:           req.Level,
		CommissionRates: req.CommissionRates,
	})
	if err != nil {
		h.writeError(w, err, "save trainer")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type classTypeRequest struct {
	Name     string                                         `json:"name"`
	Capacity int                                            `json:"capacity"`
	Pricing  map[model.TrainerLevel]map[int]decimal.Decimal `json:"pricing"`
}

// PutClassType сохраняет тип занятия и его прайс.
func (h *Handler) PutClassType(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "classTypeID")
	if !ok {
		return
	}

	var req classTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err := h.service.SaveClassType(r.Context(), model.ClassType{
		ID:       id,
		Name:     req.Name,
		Capacity: req.Capacity,
		Pricing:  req.Pricing,
	})
	if err != nil {
		h.writeError(w, err, "save class type")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type bookingRequest struct {
	TrainerID   string              `json:"trainer_id"`
	ClassTypeID string              `json:"class_type_id"`
	CustomerIDs []string            `json:"customer_ids"`
	ScheduledAt time.Time           `json:"scheduled_at"`
	Status      model.BookingStatus `json:"status"`
}

// PutBooking сохраняет запись на занятие.
func (h *Handler) PutBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "bookingID")
	if !ok {
		return
	}

	var req bookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if req.Status == "" {
		req.Status = model.BookingStatusBooked
	}

	err := h.service.SaveBooking(r.Context(), model.Booking{
		ID:          id,
		TrainerID:   req.TrainerID,
		ClassTypeID: req.ClassTypeID,
		CustomerIDs: req.CustomerIDs,
		ScheduledAt: req.ScheduledAt,
		Status:      req.Status,
	})
	if err != nil {
		h.writeError(w, err, "save booking")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
