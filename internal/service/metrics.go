package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// Metrics хранит счётчики сервиса для Prometheus.
type Metrics struct {
	settlements    *prometheus.CounterVec
	settledAmount  prometheus.Counter
	debtsResolved  prometheus.Counter
	bookingsSynced *prometheus.CounterVec
	payoutDuration prometheus.Histogram
}

// NewMetrics создаёт и регистрирует метрики в reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studiopay_settlements_total",
			Help: "Settlement attempts by result.",
		}, []string{"result"}),
		settledAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "studiopay_settled_amount_total",
			Help: "Sum of recorded trainer payments.",
		}),
		debtsResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "studiopay_debts_resolved_total",
			Help: "Session debts resolved by package purchases.",
		}),
		bookingsSynced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studiopay_bookings_synced_total",
			Help: "Bookings moved to a final status by the schedule sync.",
		}, []string{"status"}),
		payoutDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "studiopay_payout_calculation_seconds",
			Help:    "Time spent loading data and calculating a payout.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(m.settlements, m.settledAmount, m.debtsResolved, m.bookingsSynced, m.payoutDuration)
	return m
}

func (m *Metrics) settlement(result string, amount decimal.Decimal) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(result).Inc()
	if result == resultOK {
		m.settledAmount.Add(amount.InexactFloat64())
	}
}

func (m *Metrics) debtResolved() {
	if m == nil {
		return
	}
	m.debtsResolved.Inc()
}

func (m *Metrics) bookingSynced(status string) {
	if m == nil {
		return
	}
	m.bookingsSynced.WithLabelValues(status).Inc()
}

func (m *Metrics) observePayout(seconds float64) {
	if m == nil {
		return
	}
	m.payoutDuration.Observe(seconds)
}
