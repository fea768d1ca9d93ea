// Package validation содержит функции валидации входных данных.
package validation

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/studiopay/internal/model"
)

const (
	dateLayout  = "2006-01-02"
	maxIDLength = 64

	// MoneyScale и RateScale задают число знаков после запятой, которое хранится в базе
	// для денежных сумм и ставок комиссии.
	MoneyScale = 2
	RateScale  = 6
)

// IsValidID проверяет идентификатор сущности: латиница, цифры и символы «-_.:», не длиннее 64 символов.
func IsValidID(id string) bool {
	if id == "" || len(id) > maxIDLength {
		return false
	}

	for _, ch := range id {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
		case ch == '-', ch == '_', ch == '.', ch == ':':
		default:
			return false
		}
	}
	return true
}

// ParseDate разбирает дату вида 2006-01-02 в часовом поясе loc.
// Пустая строка означает «сегодня».
func ParseDate(s string, loc *time.Location, now time.Time) (time.Time, error) {
	if s == "" {
		return now.In(loc), nil
	}
	t, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", model.ErrInvalidInput, s)
	}
	return t, nil
}

// ParseAmount разбирает денежную сумму. Пустая строка означает ноль.
func ParseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: amount %q is not a number", model.ErrInvalidInput, s)
	}
	if err := ValidateAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// ValidateAmount проверяет, что сумма задана не точнее копеек.
func ValidateAmount(d decimal.Decimal) error {
	if !d.Equal(d.Round(MoneyScale)) {
		return fmt.Errorf("%w: amount %s has more than %d decimal places", model.ErrInvalidInput, d, MoneyScale)
	}
	return nil
}

// IsValidRate проверяет, что ставка комиссии лежит в диапазоне [0, 1] и задана не точнее шести знаков.
func IsValidRate(rate decimal.Decimal) bool {
	return !rate.IsNegative() && rate.LessThanOrEqual(decimal.NewFromInt(1)) && rate.Equal(rate.Round(RateScale))
}

// ValidateTrainer проверяет карточку тренера.
func ValidateTrainer(t model.Trainer) error {
	if !IsValidID(t.ID) {
		return fmt.Errorf("%w: trainer id %q", model.ErrInvalidInput, t.ID)
	}
	if !t.Level.Valid() {
		return fmt.Errorf("%w: trainer level %q", model.ErrInvalidInput, t.Level)
	}
	for classTypeID, rate := range t.CommissionRates {
		if !IsValidID(classTypeID) {
			return fmt.Errorf("%w: class type id %q", model.ErrInvalidInput, classTypeID)
		}
		if !IsValidRate(rate) {
			return fmt.Errorf("%w: commission rate %s for %s must be within [0, 1] with at most %d decimal places",
				model.ErrInvalidInput, rate, classTypeID, RateScale)
		}
	}
	return nil
}

// ValidateClassType проверяет тип занятия и его прайс.
func ValidateClassType(ct model.ClassType) error {
	if !IsValidID(ct.ID) {
		return fmt.Errorf("%w: class type id %q", model.ErrInvalidInput, ct.ID)
	}
	if ct.Capacity < 0 {
		return fmt.Errorf("%w: capacity must not be negative", model.ErrInvalidInput)
	}
	for level, tiers := range ct.Pricing {
		if !level.Valid() {
			return fmt.Errorf("%w: trainer level %q", model.ErrInvalidInput, level)
		}
		for sessions, price := range tiers {
			if sessions <= 0 {
				return fmt.Errorf("%w: tier of %d sessions", model.ErrInvalidInput, sessions)
			}
			if price.IsNegative() {
				return fmt.Errorf("%w: negative price for %d sessions", model.ErrInvalidInput, sessions)
			}
			if err := ValidateAmount(price); err != nil {
				return fmt.Errorf("price for %d sessions: %w", sessions, err)
			}
		}
	}
	return nil
}

// ValidateBooking проверяет запись на занятие.
func ValidateBooking(b model.Booking) error {
	if !IsValidID(b.ID) || !IsValidID(b.TrainerID) || !IsValidID(b.ClassTypeID) {
		return fmt.Errorf("%w: booking, trainer and class type ids are required", model.ErrInvalidInput)
	}
	if b.ScheduledAt.IsZero() {
		return fmt.Errorf("%w: scheduled_at is required", model.ErrInvalidInput)
	}
	switch b.Status {
	case model.BookingStatusBooked, model.BookingStatusCompleted, model.BookingStatusCancelled,
		model.BookingStatusCancelledLate, model.BookingStatusDeleted:
	default:
		return fmt.Errorf("%w: booking status %q", model.ErrInvalidInput, b.Status)
	}
	for _, c := range b.CustomerIDs {
		if !IsValidID(c) {
			return fmt.Errorf("%w: customer id %q", model.ErrInvalidInput, c)
		}
	}
	return nil
}
