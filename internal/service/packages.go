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

// PurchaseInput задаёт параметры покупки абонемента.
type PurchaseInput struct {
	CustomerID    string
	ClassTypeID   string
	TrainerLevel  model.TrainerLevel
	TotalSessions int
	// Amount содержит оплаченную сумму; если не задана, берётся цена из прайса.
	Amount    *decimal.Decimal
	ExpiresAt *time.Time
}

// PurchaseResult описывает итог покупки абонемента.
type PurchaseResult struct {
	Package      model.Package
	Purchase     model.PackagePurchase
	ResolvedDebt *model.SessionDebt
}

// PurchasePackage оформляет абонемент и гасит им самый старый подходящий долг клиента.
// Абонемент, оплата и погашение долга записываются одной транзакцией.
func (s *Service) PurchasePackage(ctx context.Context, in PurchaseInput) (PurchaseResult, error) {
	if !in.TrainerLevel.Valid() {
		return PurchaseResult{}, fmt.Errorf("%w: unknown trainer level %q", model.ErrInvalidInput, in.TrainerLevel)
	}
	if in.TotalSessions < 0 {
		return PurchaseResult{}, fmt.Errorf("%w: total sessions must not be negative", model.ErrInvalidInput)
	}

	ct, err := s.repo.GetClassType(ctx, in.ClassTypeID)
	if err != nil {
		return PurchaseResult{}, err
	}

	var amount decimal.Decimal
	if in.Amount != nil {
		amount = *in.Amount
	} else {
		price, ok := payroll.NewPriceList([]model.ClassType{ct}).TierPrice(ct.ID, in.TrainerLevel, in.TotalSessions)
		if !ok {
			return PurchaseResult{}, fmt.Errorf("%w: no %d-session price for %s at level %s",
				model.ErrInvalidInput, in.TotalSessions, ct.ID, in.TrainerLevel)
		}
		amount = price
	}
	if amount.IsNegative() {
		return PurchaseResult{}, fmt.Errorf("%w: amount must not be negative", model.ErrInvalidInput)
	}
	if err := validation.ValidateAmount(amount); err != nil {
		return PurchaseResult{}, err
	}

	for attempt := 1; ; attempt++ {
		res, err := s.purchaseOnce(ctx, in, amount)
		if err == nil {
			fields := []zap.Field{
				zap.String("customer_id", in.CustomerID),
				zap.String("package_id", res.Package.ID),
				zap.Int("sessions_remaining", res.Package.SessionsRemaining),
			}
			if res.ResolvedDebt != nil {
				s.metrics.debtResolved()
				fields = append(fields, zap.String("resolved_debt_id", res.ResolvedDebt.ID))
			}
			s.logger.Info("package purchased", fields...)
			return res, nil
		}
		if errors.Is(err, model.ErrConflict) && attempt < maxAttempts {
			s.logger.Info("package purchase conflict, retrying",
				zap.String("customer_id", in.CustomerID), zap.Int("attempt", attempt))
			continue
		}
		return PurchaseResult{}, err
	}
}

func (s *Service) purchaseOnce(ctx context.Context, in PurchaseInput, amount decimal.Decimal) (PurchaseResult, error) {
	debts, err := s.repo.ListUnresolvedDebts(ctx, in.CustomerID)
	if err != nil {
		return PurchaseResult{}, err
	}

	now := s.now()
	pkg := model.Package{
		ID:                s.newID(),
		CustomerID:        in.CustomerID,
		ClassTypeID:       in.ClassTypeID,
		TrainerLevel:      in.TrainerLevel,
		TotalSessions:     in.TotalSessions,
		SessionsRemaining: in.TotalSessions,
		PurchasedAt:       now,
		ExpiresAt:         in.ExpiresAt,
	}

	pkg, resolved := s.resolver.Resolve(debts, pkg, now)

	purchase := model.PackagePurchase{
		ID:         s.newID(),
		CustomerID: in.CustomerID,
		PackageID:  pkg.ID,
		Amount:     amount,
		PaidAt:     now,
	}

	mutations := []repository.Mutation{
		repository.InsertPackage{Package: pkg},
		repository.InsertPackagePurchase{Purchase: purchase},
	}
	if resolved != nil {
		mutations = append(mutations, repository.ResolveDebt{Debt: *resolved})
	}

	if err := s.repo.Commit(ctx, repository.LockCustomers(in.CustomerID), mutations...); err != nil {
		return PurchaseResult{}, err
	}

	return PurchaseResult{Package: pkg, Purchase: purchase, ResolvedDebt: resolved}, nil
}

// Packages возвращает абонементы клиента.
func (s *Service) Packages(ctx context.Context, customerID string) ([]model.Package, error) {
	return s.repo.ListPackagesByCustomer(ctx, customerID)
}

// UnresolvedDebts возвращает непогашенные долги клиента.
func (s *Service) UnresolvedDebts(ctx context.Context, customerID string) ([]model.SessionDebt, error) {
	return s.repo.ListUnresolvedDebts(ctx, customerID)
}
