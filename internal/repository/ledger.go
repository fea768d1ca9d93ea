package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/studiopay/internal/model"
)

// ListPaymentsByTrainer возвращает все выплаты тренера с закрытыми периодами
// и удержанными авансами, от старых к новым.
func (r *PostgresRepository) ListPaymentsByTrainer(ctx context.Context, trainerID string) ([]model.Payment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, trainer_id, amount, paid_at, primary_label,
			balance_brought_forward, manual_adjustment, advance_deductions, earnings_for_period
		 FROM payments
		 WHERE trainer_id = $1
		 ORDER BY paid_at, id`,
		trainerID,
	)
	if err != nil {
		return nil, fmt.Errorf("select payments: %w", err)
	}

	payments, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Payment, error) {
		var p model.Payment
		err := row.Scan(&p.ID, &p.TrainerID, &p.Amount, &p.PaidAt, &p.PrimaryLabel,
			&p.BalanceBroughtForward, &p.ManualAdjustment, &p.AdvanceDeductions, &p.EarningsForPeriod)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan payments: %w", err)
	}
	if len(payments) == 0 {
		return payments, nil
	}

	index := make(map[string]int, len(payments))
	for i, p := range payments {
		index[p.ID] = i
	}

	periodRows, err := r.pool.Query(ctx,
		`SELECT payment_id, label, period_start, period_end
		 FROM payment_periods
		 WHERE trainer_id = $1
		 ORDER BY period_start`,
		trainerID,
	)
	if err != nil {
		return nil, fmt.Errorf("select payment periods: %w", err)
	}
	defer periodRows.Close()

	for periodRows.Next() {
		var paymentID string
		var p model.Period
		if err := periodRows.Scan(&paymentID, &p.Label, &p.Start, &p.End); err != nil {
			return nil, fmt.Errorf("scan payment period: %w", err)
		}
		if i, ok := index[paymentID]; ok {
			payments[i].SettledPeriods = append(payments[i].SettledPeriods, p)
		}
	}
	if err := periodRows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	advRows, err := r.pool.Query(ctx,
		`SELECT applied_payment_id, id
		 FROM advance_payments
		 WHERE trainer_id = $1 AND applied_payment_id IS NOT NULL
		 ORDER BY date, id`,
		trainerID,
	)
	if err != nil {
		return nil, fmt.Errorf("select applied advances: %w", err)
	}
	defer advRows.Close()

	for advRows.Next() {
		var paymentID, advanceID string
		if err := advRows.Scan(&paymentID, &advanceID); err != nil {
			return nil, fmt.Errorf("scan applied advance: %w", err)
		}
		if i, ok := index[paymentID]; ok {
			payments[i].AppliedAdvanceIDs = append(payments[i].AppliedAdvanceIDs, advanceID)
		}
	}
	if err := advRows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return payments, nil
}

// ListAdvancesByTrainer возвращает все авансы тренера.
func (r *PostgresRepository) ListAdvancesByTrainer(ctx context.Context, trainerID string) ([]model.AdvancePayment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, trainer_id, amount, date, applied, COALESCE(applied_payment_id, '')
		 FROM advance_payments
		 WHERE trainer_id = $1
		 ORDER BY date, id`,
		trainerID,
	)
	if err != nil {
		return nil, fmt.Errorf("select advances: %w", err)
	}

	res, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.AdvancePayment, error) {
		var a model.AdvancePayment
		err := row.Scan(&a.ID, &a.TrainerID, &a.Amount, &a.Date, &a.Applied, &a.AppliedPaymentID)
		return a, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan advances: %w", err)
	}
	return res, nil
}

// ListPackagesByCustomer возвращает абонементы клиента, начиная с последних купленных.
func (r *PostgresRepository) ListPackagesByCustomer(ctx context.Context, customerID string) ([]model.Package, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, customer_id, class_type_id, trainer_level, total_sessions,
			sessions_remaining, purchased_at, expires_at, archived
		 FROM packages
		 WHERE customer_id = $1
		 ORDER BY purchased_at DESC, id`,
		customerID,
	)
	if err != nil {
		return nil, fmt.Errorf("select packages: %w", err)
	}

	res, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Package, error) {
		var p model.Package
		var level string
		err := row.Scan(&p.ID, &p.CustomerID, &p.ClassTypeID, &level, &p.TotalSessions,
			&p.SessionsRemaining, &p.PurchasedAt, &p.ExpiresAt, &p.Archived)
		p.TrainerLevel = model.TrainerLevel(level)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan packages: %w", err)
	}
	return res, nil
}

// ListUnresolvedDebts возвращает открытые долги клиента, от старых к новым.
func (r *PostgresRepository) ListUnresolvedDebts(ctx context.Context, customerID string) ([]model.SessionDebt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, customer_id, booking_id, class_type_id, trainer_level, created_at
		 FROM session_debts
		 WHERE customer_id = $1 AND resolved = false
		 ORDER BY created_at, id`,
		customerID,
	)
	if err != nil {
		return nil, fmt.Errorf("select debts: %w", err)
	}

	res, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.SessionDebt, error) {
		var d model.SessionDebt
		var level string
		err := row.Scan(&d.ID, &d.CustomerID, &d.BookingID, &d.ClassTypeID, &level, &d.CreatedAt)
		d.TrainerLevel = model.TrainerLevel(level)
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan debts: %w", err)
	}
	return res, nil
}
