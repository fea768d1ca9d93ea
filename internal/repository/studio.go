package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/studiopay/internal/model"
)

// SaveTrainer создаёт или обновляет тренера вместе с его ставками комиссии.
func (r *PostgresRepository) SaveTrainer(ctx context.Context, t model.Trainer) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		_, err = tx.Exec(ctx,
			`INSERT INTO trainers (id, name, level) VALUES ($1, $2, $3)
			 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, level = EXCLUDED.level`,
			t.ID, t.Name, string(t.Level),
		)
		if err != nil {
			return fmt.Errorf("upsert trainer: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM trainer_commission_rates WHERE trainer_id = $1`, t.ID); err != nil {
			return fmt.Errorf("clear commission rates: %w", err)
		}
		for classTypeID, rate := range t.CommissionRates {
			_, err := tx.Exec(ctx,
				`INSERT INTO trainer_commission_rates (trainer_id, class_type_id, rate) VALUES ($1, $2, $3)`,
				t.ID, classTypeID, rate,
			)
			if err != nil {
				return fmt.Errorf("insert commission rate: %w", err)
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// GetTrainer возвращает тренера со ставками комиссии.
func (r *PostgresRepository) GetTrainer(ctx context.Context, id string) (model.Trainer, error) {
	t := model.Trainer{CommissionRates: make(map[string]decimal.Decimal)}
	var level string
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, level FROM trainers WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &level)
	if err != nil {
		return model.Trainer{}, notFound(err, "trainer")
	}
	t.Level = model.TrainerLevel(level)

	rows, err := r.pool.Query(ctx,
		`SELECT class_type_id, rate FROM trainer_commission_rates WHERE trainer_id = $1`, id,
	)
	if err != nil {
		return model.Trainer{}, fmt.Errorf("select commission rates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var classTypeID string
		var rate decimal.Decimal
		if err := rows.Scan(&classTypeID, &rate); err != nil {
			return model.Trainer{}, fmt.Errorf("scan commission rate: %w", err)
		}
		t.CommissionRates[classTypeID] = rate
	}
	if err := rows.Err(); err != nil {
		return model.Trainer{}, fmt.Errorf("rows error: %w", err)
	}

	return t, nil
}

// SaveClassType создаёт или обновляет тип занятия вместе с его прайсом.
func (r *PostgresRepository) SaveClassType(ctx context.Context, ct model.ClassType) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		_, err = tx.Exec(ctx,
			`INSERT INTO class_types (id, name, capacity) VALUES ($1, $2, $3)
			 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, capacity = EXCLUDED.capacity`,
			ct.ID, ct.Name, ct.Capacity,
		)
		if err != nil {
			return fmt.Errorf("upsert class type: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM class_type_prices WHERE class_type_id = $1`, ct.ID); err != nil {
			return fmt.Errorf("clear prices: %w", err)
		}
		for level, tiers := range ct.Pricing {
			for sessions, price := range tiers {
				_, err := tx.Exec(ctx,
					`INSERT INTO class_type_prices (class_type_id, trainer_level, sessions, price)
					 VALUES ($1, $2, $3, $4)`,
					ct.ID, string(level), sessions, price,
				)
				if err != nil {
					return fmt.Errorf("insert price: %w", err)
				}
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// ListClassTypes возвращает все типы занятий с прайсом.
func (r *PostgresRepository) ListClassTypes(ctx context.Context) ([]model.ClassType, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT ct.id, ct.name, ct.capacity, p.trainer_level, p.sessions, p.price
		 FROM class_types ct
		 LEFT JOIN class_type_prices p ON p.class_type_id = ct.id
		 ORDER BY ct.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("select class types: %w", err)
	}
	defer rows.Close()

	var res []model.ClassType
	for rows.Next() {
		var (
			id, name string
			capacity int
			level    *string
			sessions *int
			price    decimal.NullDecimal
		)
		if err := rows.Scan(&id, &name, &capacity, &level, &sessions, &price); err != nil {
			return nil, fmt.Errorf("scan class type: %w", err)
		}

		if len(res) == 0 || res[len(res)-1].ID != id {
			res = append(res, model.ClassType{
				ID:       id,
				Name:     name,
				Capacity: capacity,
				Pricing:  make(map[model.TrainerLevel]map[int]decimal.Decimal),
			})
		}
		if level == nil || sessions == nil || !price.Valid {
			continue
		}

		ct := &res[len(res)-1]
		lvl := model.TrainerLevel(*level)
		if ct.Pricing[lvl] == nil {
			ct.Pricing[lvl] = make(map[int]decimal.Decimal)
		}
		ct.Pricing[lvl][*sessions] = price.Decimal
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetClassType возвращает тип занятия с прайсом.
func (r *PostgresRepository) GetClassType(ctx context.Context, id string) (model.ClassType, error) {
	types, err := r.ListClassTypes(ctx)
	if err != nil {
		return model.ClassType{}, err
	}
	for _, ct := range types {
		if ct.ID == id {
			return ct, nil
		}
	}
	return model.ClassType{}, fmt.Errorf("class type %s: %w", id, model.ErrNotFound)
}

// SaveBooking создаёт или обновляет запись на занятие и список её участников.
func (r *PostgresRepository) SaveBooking(ctx context.Context, b model.Booking) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		_, err = tx.Exec(ctx,
			`INSERT INTO bookings (id, trainer_id, class_type_id, scheduled_at, status)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (id) DO UPDATE SET trainer_id = EXCLUDED.trainer_id,
				class_type_id = EXCLUDED.class_type_id, scheduled_at = EXCLUDED.scheduled_at,
				status = EXCLUDED.status, sync_checked_at = NULL`,
			b.ID, b.TrainerID, b.ClassTypeID, b.ScheduledAt, string(b.Status),
		)
		if err != nil {
			return fmt.Errorf("upsert booking: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM booking_customers WHERE booking_id = $1`, b.ID); err != nil {
			return fmt.Errorf("clear booking customers: %w", err)
		}
		for _, c := range b.CustomerIDs {
			_, err := tx.Exec(ctx,
				`INSERT INTO booking_customers (booking_id, customer_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
				b.ID, c,
			)
			if err != nil {
				return fmt.Errorf("insert booking customer: %w", err)
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

const bookingColumns = `b.id, b.trainer_id, b.class_type_id, b.scheduled_at, b.status,
	COALESCE(array_agg(bc.customer_id ORDER BY bc.customer_id) FILTER (WHERE bc.customer_id IS NOT NULL), '{}')`

func scanBooking(row pgx.CollectableRow) (model.Booking, error) {
	var b model.Booking
	var status string
	if err := row.Scan(&b.ID, &b.TrainerID, &b.ClassTypeID, &b.ScheduledAt, &status, &b.CustomerIDs); err != nil {
		return model.Booking{}, err
	}
	b.Status = model.BookingStatus(status)
	return b, nil
}

// ListBookingsByTrainer возвращает занятия тренера в окне [from, to].
func (r *PostgresRepository) ListBookingsByTrainer(ctx context.Context, trainerID string, from, to time.Time) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+bookingColumns+`
		 FROM bookings b
		 LEFT JOIN booking_customers bc ON bc.booking_id = b.id
		 WHERE b.trainer_id = $1 AND b.scheduled_at BETWEEN $2 AND $3
		 GROUP BY b.id
		 ORDER BY b.scheduled_at, b.id`,
		trainerID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("select bookings: %w", err)
	}

	res, err := pgx.CollectRows(rows, scanBooking)
	if err != nil {
		return nil, fmt.Errorf("scan bookings: %w", err)
	}
	return res, nil
}

// GetBookingsForSync возвращает занятия, которые уже начались до момента before,
// но всё ещё числятся записанными. Первыми идут ещё не проверявшиеся занятия,
// затем те, что проверялись давнее остальных.
func (r *PostgresRepository) GetBookingsForSync(ctx context.Context, before time.Time, limit int) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+bookingColumns+`
		 FROM bookings b
		 LEFT JOIN booking_customers bc ON bc.booking_id = b.id
		 WHERE b.status = $1 AND b.scheduled_at < $2
		 GROUP BY b.id
		 ORDER BY b.sync_checked_at NULLS FIRST, b.scheduled_at, b.id
		 LIMIT $3`,
		string(model.BookingStatusBooked), before, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select bookings for sync: %w", err)
	}

	res, err := pgx.CollectRows(rows, scanBooking)
	if err != nil {
		return nil, fmt.Errorf("scan bookings: %w", err)
	}
	return res, nil
}

// MarkBookingSyncChecked запоминает момент последнего опроса системы расписания по занятию,
// которое осталось записанным.
func (r *PostgresRepository) MarkBookingSyncChecked(ctx context.Context, bookingID string, at time.Time) error {
	return r.withRetry(ctx, func() error {
		_, err := r.pool.Exec(ctx,
			`UPDATE bookings SET sync_checked_at = $2 WHERE id = $1 AND status = $3`,
			bookingID, at, string(model.BookingStatusBooked),
		)
		if err != nil {
			return fmt.Errorf("mark booking sync checked: %w", err)
		}
		return nil
	})
}
