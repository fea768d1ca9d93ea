package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/studiopay/internal/model"
	"github.com/mmeshcher/studiopay/internal/payroll"
	"github.com/mmeshcher/studiopay/internal/repository"
	"github.com/mmeshcher/studiopay/internal/validation"
)

const (
	resultOK             = "ok"
	resultAlreadySettled = "already_settled"
	resultNothingToPay   = "nothing_to_pay"
	resultTotalMismatch  = "total_mismatch"
	resultConflict       = "conflict"
	resultError          = "error"
)

// SettleInput задаёт параметры расчёта с тренером.
type SettleInput struct {
	TrainerID        string
	Date             time.Time
	ManualAdjustment decimal.Decimal
	// ExpectedTotal содержит сумму, которую видел оператор. Если задана и не совпадает с пересчётом,
	// выплата не создаётся.
	ExpectedTotal *decimal.Decimal
}

// Payout рассчитывает выплату тренеру за неделю, содержащую date. Ничего не записывает.
func (s *Service) Payout(ctx context.Context, trainerID string, date time.Time, adjustment decimal.Decimal) (payroll.Calculation, error) {
	if err := validation.ValidateAmount(adjustment); err != nil {
		return payroll.Calculation{}, fmt.Errorf("manual adjustment: %w", err)
	}

	start := time.Now()
	defer func() { s.metrics.observePayout(time.Since(start).Seconds()) }()

	trainer, err := s.repo.GetTrainer(ctx, trainerID)
	if err != nil {
		return payroll.Calculation{}, err
	}

	cal := s.calc.Calendar()
	current := cal.Week(date)
	from := cal.Week(s.calc.Anchor(current)).Start

	bookings, err := s.repo.ListBookingsByTrainer(ctx, trainerID, from, current.End)
	if err != nil {
		return payroll.Calculation{}, err
	}
	classTypes, err := s.repo.ListClassTypes(ctx)
	if err != nil {
		return payroll.Calculation{}, err
	}
	payments, err := s.repo.ListPaymentsByTrainer(ctx, trainerID)
	if err != nil {
		return payroll.Calculation{}, err
	}
	advances, err := s.repo.ListAdvancesByTrainer(ctx, trainerID)
	if err != nil {
		return payroll.Calculation{}, err
	}

	res := s.calc.Calculate(payroll.Input{
		Trainer:          trainer,
		Period:           current,
		Bookings:         bookings,
		ClassTypes:       classTypes,
		Payments:         payments,
		Advances:         advances,
		ManualAdjustment: adjustment,
	})

	for _, a := range res.Anomalies {
		s.logger.Warn("session priced at zero",
			zap.String("trainer_id", trainerID),
			zap.String("booking_id", a.BookingID),
			zap.String("class_type_id", a.ClassTypeID),
			zap.String("reason", a.Reason),
		)
	}

	return res, nil
}

// Settle записывает выплату тренеру за неделю, содержащую in.Date.
// При конфликте с параллельной записью расчёт повторяется на свежих данных.
func (s *Service) Settle(ctx context.Context, in SettleInput) (model.Payment, error) {
	for attempt := 1; ; attempt++ {
		payment, err := s.settleOnce(ctx, in)
		if err == nil {
			s.metrics.settlement(resultOK, payment.Amount)
			s.logger.Info("trainer paid",
				zap.String("trainer_id", in.TrainerID),
				zap.String("payment_id", payment.ID),
				zap.String("amount", payment.Amount.String()),
				zap.Int("periods", len(payment.SettledPeriods)),
			)
			return payment, nil
		}

		switch {
		case errors.Is(err, model.ErrConflict):
			if attempt < maxAttempts {
				s.logger.Info("settlement conflict, recalculating",
					zap.String("trainer_id", in.TrainerID), zap.Int("attempt", attempt))
				continue
			}
			s.metrics.settlement(resultConflict, decimal.Zero)
		case errors.Is(err, model.ErrAlreadySettled):
			s.metrics.settlement(resultAlreadySettled, decimal.Zero)
		case errors.Is(err, model.ErrNothingToPay):
			s.metrics.settlement(resultNothingToPay, decimal.Zero)
		case errors.Is(err, model.ErrTotalMismatch):
			s.metrics.settlement(resultTotalMismatch, decimal.Zero)
		default:
			s.metrics.settlement(resultError, decimal.Zero)
		}
		return model.Payment{}, err
	}
}

func (s *Service) settleOnce(ctx context.Context, in SettleInput) (model.Payment, error) {
	calc, err := s.Payout(ctx, in.TrainerID, in.Date, in.ManualAdjustment)
	if err != nil {
		return model.Payment{}, err
	}
	if calc.IsSettled {
		return model.Payment{}, model.ErrAlreadySettled
	}
	if in.ExpectedTotal != nil && !in.ExpectedTotal.Equal(calc.TotalDue) {
		return model.Payment{}, fmt.Errorf("%w: expected %s, now %s", model.ErrTotalMismatch, in.ExpectedTotal, calc.TotalDue)
	}

	payment, err := payroll.BuildPayment(calc, s.newID(), s.now())
	if err != nil {
		return model.Payment{}, err
	}

	err = s.repo.Commit(ctx, repository.LockTrainer(in.TrainerID),
		repository.InsertPayment{Payment: payment},
		repository.ApplyAdvances{PaymentID: payment.ID, AdvanceIDs: payment.AppliedAdvanceIDs},
	)
	if err != nil {
		return model.Payment{}, err
	}
	return payment, nil
}

// Payments возвращает историю выплат тренера.
func (s *Service) Payments(ctx context.Context, trainerID string) ([]model.Payment, error) {
	if _, err := s.repo.GetTrainer(ctx, trainerID); err != nil {
		return nil, err
	}
	return s.repo.ListPaymentsByTrainer(ctx, trainerID)
}

// RecordAdvance регистрирует аванс, выданный тренеру.
func (s *Service) RecordAdvance(ctx context.Context, trainerID string, amount decimal.Decimal, date time.Time) (model.AdvancePayment, error) {
	if !amount.IsPositive() {
		return model.AdvancePayment{}, fmt.Errorf("%w: advance amount must be positive", model.ErrInvalidInput)
	}
	if err := validation.ValidateAmount(amount); err != nil {
		return model.AdvancePayment{}, err
	}
	if _, err := s.repo.GetTrainer(ctx, trainerID); err != nil {
		return model.AdvancePayment{}, err
	}

	advance := model.AdvancePayment{
		ID:        s.newID(),
		TrainerID: trainerID,
		Amount:    amount,
		Date:      date,
	}
	if err := s.repo.Commit(ctx, repository.LockTrainer(trainerID), repository.InsertAdvance{Advance: advance}); err != nil {
		return model.AdvancePayment{}, err
	}
	return advance, nil
}
