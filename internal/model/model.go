// Package model содержит доменные сущности сервиса расчётов с тренерами студии.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TrainerLevel описывает квалификацию тренера, от которой зависит цена занятия.
type TrainerLevel string

const (
	TrainerLevelRegular TrainerLevel = "Regular"
	TrainerLevelMaster  TrainerLevel = "Master"
)

// Valid сообщает, является ли значение известным уровнем тренера.
func (l TrainerLevel) Valid() bool {
	return l == TrainerLevelRegular || l == TrainerLevelMaster
}

// SingleSessionTier задаёт ценовой уровень «одно занятие», по которому оцениваются выплаты и долги.
const SingleSessionTier = 1

// ClassType описывает тип занятия и его прайс.
type ClassType struct {
	ID       string
	Name     string
	Capacity int
	// Pricing: уровень тренера -> количество занятий в пакете (1, 5, 10) -> цена.
	Pricing map[TrainerLevel]map[int]decimal.Decimal
}

// Trainer описывает тренера и его ставки комиссии по типам занятий.
type Trainer struct {
	ID    string
	Name  string
	Level TrainerLevel
	// CommissionRates: идентификатор типа занятия -> доля в диапазоне [0,1].
	CommissionRates map[string]decimal.Decimal
}

// BookingStatus описывает статус записи на занятие.
type BookingStatus string

const (
	BookingStatusBooked        BookingStatus = "Booked"
	BookingStatusCompleted     BookingStatus = "Completed"
	BookingStatusCancelled     BookingStatus = "Cancelled"
	BookingStatusCancelledLate BookingStatus = "CancelledLate"
	BookingStatusDeleted       BookingStatus = "Deleted"
)

// Payable сообщает, приносит ли занятие в этом статусе заработок тренеру.
// Поздняя отмена оплачивается так же, как проведённое занятие.
func (s BookingStatus) Payable() bool {
	return s == BookingStatusCompleted || s == BookingStatusCancelledLate
}

// Terminal сообщает, является ли статус конечным.
func (s BookingStatus) Terminal() bool {
	switch s {
	case BookingStatusCompleted, BookingStatusCancelled, BookingStatusCancelledLate, BookingStatusDeleted:
		return true
	}
	return false
}

// Booking описывает запланированное занятие.
type Booking struct {
	ID          string
	TrainerID   string
	ClassTypeID string
	CustomerIDs []string
	ScheduledAt time.Time
	Status      BookingStatus
}

// Package описывает купленный клиентом абонемент.
type Package struct {
	ID                string
	CustomerID        string
	ClassTypeID       string
	TrainerLevel      TrainerLevel
	TotalSessions     int
	SessionsRemaining int
	PurchasedAt       time.Time
	ExpiresAt         *time.Time
	Archived          bool
}

// PackagePurchase фиксирует оплату абонемента клиентом.
type PackagePurchase struct {
	ID         string
	CustomerID string
	PackageID  string
	Amount     decimal.Decimal
	PaidAt     time.Time
}

// ResolutionAutoPackage помечает долг, погашенный автоматически при покупке абонемента.
const ResolutionAutoPackage = "auto_package"

// SessionDebt описывает занятие, посещённое клиентом без действующего абонемента.
type SessionDebt struct {
	ID                  string
	CustomerID          string
	BookingID           string
	ClassTypeID         string
	TrainerLevel        TrainerLevel
	CreatedAt           time.Time
	Resolved            bool
	ResolvedByPackageID string
	ResolutionMethod    string
	ResolvedAt          *time.Time
}

// AdvancePayment описывает аванс, выданный тренеру до расчёта.
type AdvancePayment struct {
	ID               string
	TrainerID        string
	Amount           decimal.Decimal
	Date             time.Time
	Applied          bool
	AppliedPaymentID string
}

// Period описывает недельный расчётный период.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Label string    `json:"label"`
}

// Contains сообщает, попадает ли момент времени в период (границы включительно).
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

// Payment описывает неизменяемую запись о выплате тренеру.
type Payment struct {
	ID                    string
	TrainerID             string
	Amount                decimal.Decimal
	PaidAt                time.Time
	SettledPeriods        []Period
	PrimaryLabel          string
	BalanceBroughtForward decimal.Decimal
	ManualAdjustment      decimal.Decimal
	AdvanceDeductions     decimal.Decimal
	EarningsForPeriod     decimal.Decimal
	AppliedAdvanceIDs     []string
}

// Settles сообщает, закрывает ли выплата период с указанной меткой.
func (p Payment) Settles(label string) bool {
	for _, sp := range p.SettledPeriods {
		if sp.Label == label {
			return true
		}
	}
	return false
}
