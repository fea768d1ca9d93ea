package payroll

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/studiopay/internal/model"
	"github.com/mmeshcher/studiopay/internal/period"
)

// Input содержит снимок данных, по которому строится расчёт выплаты.
type Input struct {
	Trainer          model.Trainer
	Period           model.Period
	Bookings         []model.Booking
	ClassTypes       []model.ClassType
	Payments         []model.Payment
	Advances         []model.AdvancePayment
	ManualAdjustment decimal.Decimal
}

// Calculation содержит полную разбивку выплаты тренеру за просматриваемый период.
type Calculation struct {
	TrainerID             string
	Period                model.Period
	ThisPeriodEarnings    decimal.Decimal
	BalanceBroughtForward decimal.Decimal
	UnpaidPeriods         []model.Period
	AdvanceDeductions     decimal.Decimal
	AppliedAdvanceIDs     []string
	ManualAdjustment      decimal.Decimal
	TotalDue              decimal.Decimal
	IsSettled             bool
	Payment               *model.Payment
	IncludedSessions      []model.Booking
	Anomalies             []Anomaly
}

// Calculator строит расчёт выплаты. Не хранит состояния между вызовами.
type Calculator struct {
	calendar period.Calendar
	anchor   time.Time
}

// NewCalculator создаёт калькулятор. Нулевой anchor означает «с начала календарного года
// просматриваемого периода».
func NewCalculator(cal period.Calendar, anchor time.Time) *Calculator {
	return &Calculator{calendar: cal, anchor: anchor}
}

// Calendar возвращает календарь, по которому калькулятор нарезает недели.
func (c *Calculator) Calendar() period.Calendar {
	return c.calendar
}

// Anchor возвращает момент, с которого ищутся неоплаченные недели для периода current.
func (c *Calculator) Anchor(current model.Period) time.Time {
	if !c.anchor.IsZero() {
		return c.anchor
	}
	loc := c.calendar.Location
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(current.Start.In(loc).Year(), time.January, 1, 0, 0, 0, 0, loc)
}

// Calculate строит расчёт выплаты тренеру за период in.Period.
func (c *Calculator) Calculate(in Input) Calculation {
	ledger := NewLedger(in.Trainer.ID, in.Bookings)
	earnings := NewEarnings(in.Trainer, NewPriceList(in.ClassTypes), ledger)
	history := NewHistory(in.Trainer.ID, in.Payments, in.Advances)
	current := in.Period

	calc := Calculation{
		TrainerID:             in.Trainer.ID,
		Period:                current,
		ManualAdjustment:      in.ManualAdjustment,
		BalanceBroughtForward: decimal.Zero,
	}

	var anomalies []Anomaly
	calc.ThisPeriodEarnings, anomalies = earnings.For(current)
	calc.Anomalies = append(calc.Anomalies, anomalies...)

	// Недели без заработка пропускаются и не попадают в список неоплаченных.
	for _, week := range c.calendar.Between(c.Anchor(current), current.Start) {
		if history.IsSettled(week.Label) {
			continue
		}
		amount, weekAnomalies := earnings.For(week)
		calc.Anomalies = append(calc.Anomalies, weekAnomalies...)
		if amount.IsZero() {
			continue
		}
		calc.BalanceBroughtForward = calc.BalanceBroughtForward.Add(amount)
		calc.UnpaidPeriods = append(calc.UnpaidPeriods, week)
	}

	calc.AdvanceDeductions, calc.AppliedAdvanceIDs = history.AdvanceTotal()

	calc.TotalDue = calc.ThisPeriodEarnings.
		Add(calc.BalanceBroughtForward).
		Add(calc.ManualAdjustment).
		Sub(calc.AdvanceDeductions)

	if p, ok := history.PaymentFor(current.Label); ok {
		// Закрытый период показывается по записи выплаты, а не по пересчёту.
		calc.IsSettled = true
		calc.Payment = &p
		calc.ThisPeriodEarnings = p.EarningsForPeriod
		calc.BalanceBroughtForward = p.BalanceBroughtForward
		calc.ManualAdjustment = p.ManualAdjustment
		calc.AdvanceDeductions = p.AdvanceDeductions
		calc.AppliedAdvanceIDs = append([]string(nil), p.AppliedAdvanceIDs...)
		calc.TotalDue = p.Amount
		for _, sp := range p.SettledPeriods {
			calc.IncludedSessions = append(calc.IncludedSessions, ledger.Payable(sp)...)
		}
		return calc
	}

	for _, w := range calc.UnpaidPeriods {
		calc.IncludedSessions = append(calc.IncludedSessions, ledger.Payable(w)...)
	}
	calc.IncludedSessions = append(calc.IncludedSessions, ledger.Payable(current)...)

	return calc
}
