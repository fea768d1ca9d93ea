package payroll

import (
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/studiopay/internal/model"
)

// Earnings считает заработок тренера за расчётный период.
type Earnings struct {
	trainer model.Trainer
	prices  PriceList
	ledger  Ledger
}

// NewEarnings создаёт калькулятор заработка тренера.
func NewEarnings(trainer model.Trainer, prices PriceList, ledger Ledger) Earnings {
	return Earnings{trainer: trainer, prices: prices, ledger: ledger}
}

// SessionValue возвращает сумму, которую тренер получает за одно занятие:
// цена разового занятия для его уровня, умноженная на ставку комиссии.
func (e Earnings) SessionValue(b model.Booking) (decimal.Decimal, []Anomaly) {
	var anomalies []Anomaly

	price, reason := e.prices.Lookup(b.ClassTypeID, e.trainer.Level)
	if reason != "" {
		anomalies = append(anomalies, Anomaly{BookingID: b.ID, ClassTypeID: b.ClassTypeID, Reason: reason})
	}

	rate, ok := e.trainer.CommissionRates[b.ClassTypeID]
	if !ok {
		anomalies = append(anomalies, Anomaly{BookingID: b.ID, ClassTypeID: b.ClassTypeID, Reason: ReasonMissingRate})
		rate = decimal.Zero
	}

	return price.Mul(rate), anomalies
}

// For возвращает заработок за оплачиваемые занятия периода p.
func (e Earnings) For(p model.Period) (decimal.Decimal, []Anomaly) {
	total := decimal.Zero
	var anomalies []Anomaly
	for _, b := range e.ledger.Payable(p) {
		v, a := e.SessionValue(b)
		total = total.Add(v)
		anomalies = append(anomalies, a...)
	}
	return total, anomalies
}
