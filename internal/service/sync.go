package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/studiopay/internal/model"
	"github.com/mmeshcher/studiopay/internal/repository"
)

const syncBatchSize = 100

// StartScheduleSync запускает фоновый опрос системы расписания: занятия, которые уже начались,
// но всё ещё числятся записанными, переводятся в фактический конечный статус.
func (s *Service) StartScheduleSync(ctx context.Context, interval time.Duration) {
	if s.schedule == nil {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.processScheduleBatch(ctx)
			}
		}
	}()
}

func (s *Service) processScheduleBatch(ctx context.Context) {
	bookings, err := s.repo.GetBookingsForSync(ctx, s.now(), syncBatchSize)
	if err != nil {
		s.logger.Warn("load bookings for sync", zap.Error(err))
		return
	}

	for _, b := range bookings {
		closed, retryAfter := s.syncBooking(ctx, b)
		if closed {
			continue
		}

		// Отмеченное занятие уходит в конец очереди синхронизации.
		if err := s.repo.MarkBookingSyncChecked(ctx, b.ID, s.now()); err != nil {
			s.logger.Warn("mark booking sync checked", zap.String("booking_id", b.ID), zap.Error(err))
		}

		if retryAfter > 0 {
			timer := time.NewTimer(retryAfter)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}
}

// syncBooking опрашивает систему расписания по одному занятию и закрывает его, если статус конечный.
// Второе значение ненулевое, когда система расписания просит подождать.
func (s *Service) syncBooking(ctx context.Context, b model.Booking) (bool, time.Duration) {
	state, statusCode, retryAfter, err := s.schedule.GetBookingState(ctx, b.ID)
	if err != nil {
		s.logger.Debug("schedule request failed", zap.String("booking_id", b.ID), zap.Error(err))
		return false, 0
	}

	if statusCode == http.StatusTooManyRequests {
		return false, retryAfter
	}

	if state == nil {
		return false, 0
	}

	status := model.BookingStatus(state.Status)
	if !status.Terminal() {
		return false, 0
	}

	if err := s.CloseBooking(ctx, b, status); err != nil {
		s.logger.Warn("close booking", zap.String("booking_id", b.ID), zap.Error(err))
		return false, 0
	}
	return true, 0
}

// CloseBooking переводит записанное занятие в конечный статус. Если занятие оплачивается,
// каждый участник расплачивается одним занятием абонемента, а при его отсутствии получает долг.
func (s *Service) CloseBooking(ctx context.Context, b model.Booking, status model.BookingStatus) error {
	if !status.Terminal() {
		return fmt.Errorf("%w: booking status %s is not final", model.ErrInvalidInput, status)
	}

	mutations := []repository.Mutation{
		repository.UpdateBookingStatus{BookingID: b.ID, From: model.BookingStatusBooked, To: status},
	}

	if status.Payable() {
		trainer, err := s.repo.GetTrainer(ctx, b.TrainerID)
		if err != nil {
			return err
		}

		for _, customerID := range b.CustomerIDs {
			packages, err := s.repo.ListPackagesByCustomer(ctx, customerID)
			if err != nil {
				return err
			}

			charge := s.resolver.ChargeSession(packages, customerID, b, trainer.Level, s.newID())
			if charge.Package != nil {
				mutations = append(mutations, repository.ConsumeSession{PackageID: charge.Package.ID})
				continue
			}
			s.logger.Info("session debt recorded",
				zap.String("customer_id", customerID),
				zap.String("booking_id", b.ID),
				zap.String("class_type_id", b.ClassTypeID),
			)
			mutations = append(mutations, repository.InsertSessionDebt{Debt: *charge.Debt})
		}
	}

	if err := s.repo.Commit(ctx, repository.LockCustomers(b.CustomerIDs...), mutations...); err != nil {
		return err
	}

	s.metrics.bookingSynced(string(status))
	return nil
}
