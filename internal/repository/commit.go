package repository

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/studiopay/internal/model"
)

// Lock перечисляет ресурсы, которые транзакция захватывает до первой записи.
// Выплаты блокируются по тренерам, долги и абонементы по клиентам.
type Lock struct {
	Keys []string
}

// LockTrainer сериализует изменения выплат одного тренера.
func LockTrainer(trainerID string) Lock {
	return Lock{Keys: []string{"trainer:" + trainerID}}
}

// LockCustomers сериализует изменения абонементов и долгов перечисленных клиентов.
func LockCustomers(customerIDs ...string) Lock {
	keys := make([]string, 0, len(customerIDs))
	for _, id := range customerIDs {
		keys = append(keys, "customer:"+id)
	}
	return Lock{Keys: keys}
}

// Mutation описывает одно изменение в составе атомарной записи Commit.
// Каждое изменение само перепроверяет состояние, от которого зависит,
// и возвращает model.ErrConflict, если его успел поменять другой писатель.
type Mutation interface {
	apply(ctx context.Context, tx pgx.Tx) error
}

// Commit применяет mutations в одной транзакции под блокировкой lock:
// либо записываются все изменения, либо ни одно.
func (r *PostgresRepository) Commit(ctx context.Context, lock Lock, mutations ...Mutation) error {
	keys := append([]string(nil), lock.Keys...)
	sort.Strings(keys)

	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		for _, key := range keys {
			if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
				return fmt.Errorf("lock %s: %w", key, err)
			}
		}

		for _, m := range mutations {
			if err := m.apply(ctx, tx); err != nil {
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// InsertPayment добавляет запись о выплате и закрывает её периоды.
type InsertPayment struct {
	Payment model.Payment
}

func (m InsertPayment) apply(ctx context.Context, tx pgx.Tx) error {
	p := m.Payment

	labels := []string{p.PrimaryLabel}
	for _, sp := range p.SettledPeriods {
		labels = append(labels, sp.Label)
	}

	rows, err := tx.Query(ctx,
		`SELECT label FROM payment_periods WHERE trainer_id = $1 AND label = ANY($2)`,
		p.TrainerID, labels,
	)
	if err != nil {
		return fmt.Errorf("select settled periods: %w", err)
	}
	settled, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return fmt.Errorf("scan settled periods: %w", err)
	}
	for _, l := range settled {
		if l == p.PrimaryLabel {
			return model.ErrAlreadySettled
		}
	}
	if len(settled) > 0 {
		return fmt.Errorf("period %s settled concurrently: %w", settled[0], model.ErrConflict)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO payments (id, trainer_id, amount, paid_at, primary_label,
			balance_brought_forward, manual_adjustment, advance_deductions, earnings_for_period)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.TrainerID, p.Amount, p.PaidAt, p.PrimaryLabel,
		p.BalanceBroughtForward, p.ManualAdjustment, p.AdvanceDeductions, p.EarningsForPeriod,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}

	for _, sp := range p.SettledPeriods {
		_, err := tx.Exec(ctx,
			`INSERT INTO payment_periods (payment_id, trainer_id, label, period_start, period_end)
			 VALUES ($1, $2, $3, $4, $5)`,
			p.ID, p.TrainerID, sp.Label, sp.Start, sp.End,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("period %s: %w", sp.Label, model.ErrConflict)
			}
			return fmt.Errorf("insert payment period: %w", err)
		}
	}

	return nil
}

// ApplyAdvances помечает авансы удержанными в выплате PaymentID.
type ApplyAdvances struct {
	PaymentID  string
	AdvanceIDs []string
}

func (m ApplyAdvances) apply(ctx context.Context, tx pgx.Tx) error {
	if len(m.AdvanceIDs) == 0 {
		return nil
	}

	tag, err := tx.Exec(ctx,
		`UPDATE advance_payments SET applied = true, applied_payment_id = $1
		 WHERE id = ANY($2) AND applied = false`,
		m.PaymentID, m.AdvanceIDs,
	)
	if err != nil {
		return fmt.Errorf("apply advances: %w", err)
	}
	if tag.RowsAffected() != int64(len(m.AdvanceIDs)) {
		return fmt.Errorf("advances applied concurrently: %w", model.ErrConflict)
	}
	return nil
}

// InsertAdvance регистрирует выданный тренеру аванс.
type InsertAdvance struct {
	Advance model.AdvancePayment
}

func (m InsertAdvance) apply(ctx context.Context, tx pgx.Tx) error {
	a := m.Advance
	_, err := tx.Exec(ctx,
		`INSERT INTO advance_payments (id, trainer_id, amount, date) VALUES ($1, $2, $3, $4)`,
		a.ID, a.TrainerID, a.Amount, a.Date,
	)
	if err != nil {
		return fmt.Errorf("insert advance: %w", err)
	}
	return nil
}

// InsertPackage сохраняет абонемент клиента.
type InsertPackage struct {
	Package model.Package
}

func (m InsertPackage) apply(ctx context.Context, tx pgx.Tx) error {
	p := m.Package
	_, err := tx.Exec(ctx,
		`INSERT INTO packages (id, customer_id, class_type_id, trainer_level, total_sessions,
			sessions_remaining, purchased_at, expires_at, archived)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.CustomerID, p.ClassTypeID, string(p.TrainerLevel), p.TotalSessions,
		p.SessionsRemaining, p.PurchasedAt, p.ExpiresAt, p.Archived,
	)
	if err != nil {
		return fmt.Errorf("insert package: %w", err)
	}
	return nil
}

// InsertPackagePurchase фиксирует оплату абонемента.
type InsertPackagePurchase struct {
	Purchase model.PackagePurchase
}

func (m InsertPackagePurchase) apply(ctx context.Context, tx pgx.Tx) error {
	p := m.Purchase
	_, err := tx.Exec(ctx,
		`INSERT INTO package_purchases (id, customer_id, package_id, amount, paid_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.CustomerID, p.PackageID, p.Amount, p.PaidAt,
	)
	if err != nil {
		return fmt.Errorf("insert package purchase: %w", err)
	}
	return nil
}

// ResolveDebt помечает долг погашенным, если он ещё открыт.
type ResolveDebt struct {
	Debt model.SessionDebt
}

func (m ResolveDebt) apply(ctx context.Context, tx pgx.Tx) error {
	d := m.Debt
	tag, err := tx.Exec(ctx,
		`UPDATE session_debts
		 SET resolved = true, resolved_by_package_id = $2, resolution_method = $3, resolved_at = $4
		 WHERE id = $1 AND resolved = false`,
		d.ID, d.ResolvedByPackageID, d.ResolutionMethod, d.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("resolve debt: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("debt %s resolved concurrently: %w", d.ID, model.ErrConflict)
	}
	return nil
}

// InsertSessionDebt записывает долг клиента за занятие. Если долг за это занятие у клиента
// уже есть (в том числе погашенный), запись пропускается.
type InsertSessionDebt struct {
	Debt model.SessionDebt
}

func (m InsertSessionDebt) apply(ctx context.Context, tx pgx.Tx) error {
	d := m.Debt
	_, err := tx.Exec(ctx,
		`INSERT INTO session_debts (id, customer_id, booking_id, class_type_id, trainer_level, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (customer_id, booking_id) DO NOTHING`,
		d.ID, d.CustomerID, d.BookingID, d.ClassTypeID, string(d.TrainerLevel), d.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("debt %s: %w", d.ID, model.ErrConflict)
		}
		return fmt.Errorf("insert session debt: %w", err)
	}
	return nil
}

// ConsumeSession списывает одно занятие с абонемента.
type ConsumeSession struct {
	PackageID string
}

func (m ConsumeSession) apply(ctx context.Context, tx pgx.Tx) error {
	tag, err := tx.Exec(ctx,
		`UPDATE packages SET sessions_remaining = sessions_remaining - 1
		 WHERE id = $1 AND sessions_remaining > 0 AND NOT archived`,
		m.PackageID,
	)
	if err != nil {
		return fmt.Errorf("consume session: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("package %s exhausted concurrently: %w", m.PackageID, model.ErrConflict)
	}
	return nil
}

// UpdateBookingStatus переводит занятие из статуса From в статус To.
type UpdateBookingStatus struct {
	BookingID string
	From      model.BookingStatus
	To        model.BookingStatus
}

func (m UpdateBookingStatus) apply(ctx context.Context, tx pgx.Tx) error {
	tag, err := tx.Exec(ctx,
		`UPDATE bookings SET status = $3 WHERE id = $1 AND status = $2`,
		m.BookingID, string(m.From), string(m.To),
	)
	if err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("booking %s changed concurrently: %w", m.BookingID, model.ErrConflict)
	}
	return nil
}
