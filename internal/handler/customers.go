package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/studiopay/internal/model"
	"github.com/mmeshcher/studiopay/internal/service"
)

type purchaseRequest struct {
	ClassTypeID   string             `json:"class_type_id"`
	TrainerLevel  model.TrainerLevel `json:"trainer_level"`
	TotalSessions int                `json:"total_sessions"`
	Amount        *decimal.Decimal   `json:"amount"`
	ExpiresAt     *time.Time         `json:"expires_at"`
}

// PurchasePackage оформляет абонемент клиенту и гасит им самый старый подходящий долг.
func (h *Handler) PurchasePackage(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.pathID(w, r, "customerID")
	if !ok {
		return
	}

	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if req.ClassTypeID == "" {
		h.writeError(w, fmt.Errorf("%w: class_type_id is required", model.ErrInvalidInput), "purchase package")
		return
	}

	res, err := h.service.PurchasePackage(r.Context(), service.PurchaseInput{
		CustomerID:    customerID,
		ClassTypeID:   req.ClassTypeID,
		TrainerLevel:  req.TrainerLevel,
		TotalSessions: req.TotalSessions,
		Amount:        req.Amount,
		ExpiresAt:     req.ExpiresAt,
	})
	if err != nil {
		h.writeError(w, err, "purchase package")
		return
	}

	resp := purchaseResponse{
		Package:    newPackageResponse(res.Package),
		PurchaseID: res.Purchase.ID,
		Amount:     res.Purchase.Amount,
	}
	if res.ResolvedDebt != nil {
		d := newDebtResponse(*res.ResolvedDebt)
		resp.ResolvedDebt = &d
	}
	h.writeJSON(w, http.StatusCreated, resp)
}

// GetPackages возвращает абонементы клиента.
func (h *Handler) GetPackages(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.pathID(w, r, "customerID")
	if !ok {
		return
	}

	packages, err := h.service.Packages(r.Context(), customerID)
	if err != nil {
		h.writeError(w, err, "get packages")
		return
	}
	if len(packages) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]packageResponse, 0, len(packages))
	for _, p := range packages {
		resp = append(resp, newPackageResponse(p))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// GetDebts возвращает непогашенные долги клиента.
func (h *Handler) GetDebts(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.pathID(w, r, "customerID")
	if !ok {
		return
	}

	debts, err := h.service.UnresolvedDebts(r.Context(), customerID)
	if err != nil {
		h.writeError(w, err, "get debts")
		return
	}
	if len(debts) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]debtResponse, 0, len(debts))
	for _, d := range debts {
		resp = append(resp, newDebtResponse(d))
	}
	h.writeJSON(w, http.StatusOK, resp)
}
