package payroll

import (
	"time"

	"github.com/mmeshcher/studiopay/internal/model"
)

// BuildPayment превращает расчёт в запись о выплате.
//
// Текущий период закрывается, только если он сам что-то добавил к выплате
// (заработок плюс ручная корректировка больше нуля). Иначе погашение старого долга
// пометило бы оплаченной неделю, которая ещё не отработана.
func BuildPayment(calc Calculation, id string, paidAt time.Time) (model.Payment, error) {
	if calc.IsSettled {
		return model.Payment{}, model.ErrAlreadySettled
	}
	if !calc.TotalDue.IsPositive() {
		return model.Payment{}, model.ErrNothingToPay
	}

	settled := append([]model.Period(nil), calc.UnpaidPeriods...)
	if calc.ThisPeriodEarnings.Add(calc.ManualAdjustment).IsPositive() {
		settled = append(settled, calc.Period)
	}

	return model.Payment{
		ID:                    id,
		TrainerID:             calc.TrainerID,
		Amount:                calc.TotalDue,
		PaidAt:                paidAt,
		SettledPeriods:        settled,
		PrimaryLabel:          calc.Period.Label,
		BalanceBroughtForward: calc.BalanceBroughtForward,
		ManualAdjustment:      calc.ManualAdjustment,
		AdvanceDeductions:     calc.AdvanceDeductions,
		EarningsForPeriod:     calc.ThisPeriodEarnings,
		AppliedAdvanceIDs:     append([]string(nil), calc.AppliedAdvanceIDs...),
	}, nil
}
