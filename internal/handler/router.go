package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	custommiddleware "github.com/mmeshcher/studiopay/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса. metrics отдаётся на /metrics, если не nil.
func (h *Handler) SetupRouter(metrics http.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.Logger(h.logger))

	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(custommiddleware.GzipMiddleware)

		r.Put("/api/trainers/{trainerID}", h.PutTrainer)
		r.Get("/api/trainers/{trainerID}/payout", h.GetPayout)
		r.Post("/api/trainers/{trainerID}/payout/settle", h.Settle)
		r.Get("/api/trainers/{trainerID}/payments", h.GetPayments)
		r.Post("/api/trainers/{trainerID}/advances", h.RecordAdvance)

		r.Put("/api/class-types/{classTypeID}", h.PutClassType)
		r.Put("/api/bookings/{bookingID}", h.PutBooking)

		r.Post("/api/customers/{customerID}/packages", h.PurchasePackage)
		r.Get("/api/customers/{customerID}/packages", h.GetPackages)
		r.Get("/api/customers/{customerID}/debts", h.GetDebts)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
