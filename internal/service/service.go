// Package service реализует бизнес-логику сервиса расчётов студии.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/studiopay/internal/debt"
	"github.com/mmeshcher/studiopay/internal/model"
	"github.com/mmeshcher/studiopay/internal/payroll"
	"github.com/mmeshcher/studiopay/internal/repository"
	"github.com/mmeshcher/studiopay/internal/schedule"
	"github.com/mmeshcher/studiopay/internal/validation"
)

// maxAttempts ограничивает число пересчётов при конфликте параллельной записи.
const maxAttempts = 3

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	Commit(ctx context.Context, lock repository.Lock, mutations ...repository.Mutation) error

	SaveTrainer(ctx context.Context, t model.Trainer) error
	GetTrainer(ctx context.Context, id string) (model.Trainer, error)
	SaveClassType(ctx context.Context, ct model.ClassType) error
	ListClassTypes(ctx context.Context) ([]model.ClassType, error)
	GetClassType(ctx context.Context, id string) (model.ClassType, error)
	SaveBooking(ctx context.Context, b model.Booking) error
	ListBookingsByTrainer(ctx context.Context, trainerID string, from, to time.Time) ([]model.Booking, error)
	GetBookingsForSync(ctx context.Context, before time.Time, limit int) ([]model.Booking, error)
	MarkBookingSyncChecked(ctx context.Context, bookingID string, at time.Time) error

	ListPaymentsByTrainer(ctx context.Context, trainerID string) ([]model.Payment, error)
	ListAdvancesByTrainer(ctx context.Context, trainerID string) ([]model.AdvancePayment, error)
	ListPackagesByCustomer(ctx context.Context, customerID string) ([]model.Package, error)
	ListUnresolvedDebts(ctx context.Context, customerID string) ([]model.SessionDebt, error)
}

// ScheduleClient возвращает фактический статус занятия из системы расписания.
type ScheduleClient interface {
	GetBookingState(ctx context.Context, bookingID string) (*schedule.BookingState, int, time.Duration, error)
}

// Service содержит бизнес-логику расчётов с тренерами и клиентами.
type Service struct {
	repo     Repository
	schedule ScheduleClient
	calc     *payroll.Calculator
	resolver *debt.Resolver
	logger   *zap.Logger
	metrics  *Metrics

	now   func() time.Time
	newID func() string
}

// NewService создаёт сервис. scheduleClient и metrics могут быть nil.
func NewService(repo Repository, scheduleClient ScheduleClient, calc *payroll.Calculator, logger *zap.Logger, metrics *Metrics) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:     repo,
		schedule: scheduleClient,
		calc:     calc,
		resolver: debt.NewResolver(),
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// SaveTrainer создаёт или обновляет тренера.
func (s *Service) SaveTrainer(ctx context.Context, t model.Trainer) error {
	if err := validation.ValidateTrainer(t); err != nil {
		return err
	}
	return s.repo.SaveTrainer(ctx, t)
}

// SaveClassType создаёт или обновляет тип занятия.
func (s *Service) SaveClassType(ctx context.Context, ct model.ClassType) error {
	if err := validation.ValidateClassType(ct); err != nil {
		return err
	}
	return s.repo.SaveClassType(ctx, ct)
}

// SaveBooking создаёт или обновляет запись на занятие.
func (s *Service) SaveBooking(ctx context.Context, b model.Booking) error {
	if err := validation.ValidateBooking(b); err != nil {
		return err
	}
	return s.repo.SaveBooking(ctx, b)
}
