package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/studiopay/internal/model"
	"github.com/mmeshcher/studiopay/internal/payroll"
	"github.com/mmeshcher/studiopay/internal/period"
	"github.com/mmeshcher/studiopay/internal/repository"
)

// memRepo хранит данные в памяти и применяет изменения Commit так же атомарно, как PostgresRepository.
type memRepo struct {
	mu sync.Mutex

	trainers   map[string]model.Trainer
	classTypes []model.ClassType
	bookings   []model.Booking
	payments   []model.Payment
	advances   []model.AdvancePayment
	packages   []model.Package
	purchases  []model.PackagePurchase
	debts      []model.SessionDebt

	syncChecked map[string]time.Time

	// commitErrs возвращаются очередными вызовами Commit вместо записи.
	commitErrs []error
	commits    int
}

func newMemRepo() *memRepo {
	return &memRepo{trainers: make(map[string]model.Trainer), syncChecked: make(map[string]time.Time)}
}

func (r *memRepo) Close() error { return nil }

func (r *memRepo) clone() *memRepo {
	return &memRepo{
		trainers:   r.trainers,
		classTypes: r.classTypes,
		bookings:   append([]model.Booking(nil), r.bookings...),
		payments:   append([]model.Payment(nil), r.payments...),
		advances:   append([]model.AdvancePayment(nil), r.advances...),
		packages:   append([]model.Package(nil), r.packages...),
		purchases:  append([]model.PackagePurchase(nil), r.purchases...),
		debts:      append([]model.SessionDebt(nil), r.debts...),
	}
}

func (r *memRepo) Commit(ctx context.Context, lock repository.Lock, mutations ...repository.Mutation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.commits++
	if len(r.commitErrs) > 0 {
		err := r.commitErrs[0]
		r.commitErrs = r.commitErrs[1:]
		return err
	}

	next := r.clone()
	for _, m := range mutations {
		if err := next.apply(m); err != nil {
			return err
		}
	}

	r.bookings = next.bookings
	r.payments = next.payments
	r.advances = next.advances
	r.packages = next.packages
	r.purchases = next.purchases
	r.debts = next.debts
	return nil
}

func (r *memRepo) apply(m repository.Mutation) error {
	switch m := m.(type) {
	case repository.InsertPayment:
		for _, existing := range r.payments {
			if existing.TrainerID != m.Payment.TrainerID {
				continue
			}
			if existing.Settles(m.Payment.PrimaryLabel) {
				return model.ErrAlreadySettled
			}
			for _, sp := range m.Payment.SettledPeriods {
				if existing.Settles(sp.Label) {
					return model.ErrConflict
				}
			}
		}
		r.payments = append(r.payments, m.Payment)
	case repository.ApplyAdvances:
		for _, id := range m.AdvanceIDs {
			found := false
			for i := range r.advances {
				if r.advances[i].ID == id && !r.advances[i].Applied {
					r.advances[i].Applied = true
					r.advances[i].AppliedPaymentID = m.PaymentID
					found = true
				}
			}
			if !found {
				return model.ErrConflict
			}
		}
	case repository.InsertAdvance:
		r.advances = append(r.advances, m.Advance)
	case repository.InsertPackage:
		r.packages = append(r.packages, m.Package)
	case repository.InsertPackagePurchase:
		r.purchases = append(r.purchases, m.Purchase)
	case repository.ResolveDebt:
		for i := range r.debts {
			if r.debts[i].ID == m.Debt.ID && !r.debts[i].Resolved {
				r.debts[i] = m.Debt
				return nil
			}
		}
		return model.ErrConflict
	case repository.InsertSessionDebt:
		for _, d := range r.debts {
			if d.CustomerID == m.Debt.CustomerID && d.BookingID == m.Debt.BookingID {
				return nil
			}
		}
		r.debts = append(r.debts, m.Debt)
	case repository.ConsumeSession:
		for i := range r.packages {
			if r.packages[i].ID == m.PackageID && r.packages[i].SessionsRemaining > 0 {
				r.packages[i].SessionsRemaining--
				return nil
			}
		}
		return model.ErrConflict
	case repository.UpdateBookingStatus:
		for i := range r.bookings {
			if r.bookings[i].ID == m.BookingID && r.bookings[i].Status == m.From {
				r.bookings[i].Status = m.To
				return nil
			}
		}
		return model.ErrConflict
	default:
		return fmt.Errorf("unexpected mutation %T", m)
	}
	return nil
}

func (r *memRepo) SaveTrainer(ctx context.Context, t model.Trainer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trainers[t.ID] = t
	return nil
}

func (r *memRepo) GetTrainer(ctx context.Context, id string) (model.Trainer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trainers[id]
	if !ok {
		return model.Trainer{}, fmt.Errorf("trainer: %w", model.ErrNotFound)
	}
	return t, nil
}

func (r *memRepo) SaveClassType(ctx context.Context, ct model.ClassType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classTypes = append(r.classTypes, ct)
	return nil
}

func (r *memRepo) ListClassTypes(ctx context.Context) ([]model.ClassType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.ClassType(nil), r.classTypes...), nil
}

func (r *memRepo) GetClassType(ctx context.Context, id string) (model.ClassType, error) {
	types, _ := r.ListClassTypes(ctx)
	for _, ct := range types {
		if ct.ID == id {
			return ct, nil
		}
	}
	return model.ClassType{}, fmt.Errorf("class type: %w", model.ErrNotFound)
}

func (r *memRepo) SaveBooking(ctx context.Context, b model.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bookings = append(r.bookings, b)
	return nil
}

func (r *memRepo) ListBookingsByTrainer(ctx context.Context, trainerID string, from, to time.Time) ([]model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []model.Booking
	for _, b := range r.bookings {
		if b.TrainerID == trainerID && !b.ScheduledAt.Before(from) && !b.ScheduledAt.After(to) {
			res = append(res, b)
		}
	}
	return res, nil
}

func (r *memRepo) GetBookingsForSync(ctx context.Context, before time.Time, limit int) ([]model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []model.Booking
	for _, b := range r.bookings {
		if b.Status == model.BookingStatusBooked && b.ScheduledAt.Before(before) {
			res = append(res, b)
		}
	}
	sort.SliceStable(res, func(i, j int) bool {
		ci, iChecked := r.syncChecked[res[i].ID]
		cj, jChecked := r.syncChecked[res[j].ID]
		if iChecked != jChecked {
			return !iChecked
		}
		if !ci.Equal(cj) {
			return ci.Before(cj)
		}
		if !res[i].ScheduledAt.Equal(res[j].ScheduledAt) {
			return res[i].ScheduledAt.Before(res[j].ScheduledAt)
		}
		return res[i].ID < res[j].ID
	})
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (r *memRepo) MarkBookingSyncChecked(ctx context.Context, bookingID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.syncChecked[bookingID] = at
	return nil
}

func (r *memRepo) ListPaymentsByTrainer(ctx context.Context, trainerID string) ([]model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []model.Payment
	for _, p := range r.payments {
		if p.TrainerID == trainerID {
			res = append(res, p)
		}
	}
	return res, nil
}

func (r *memRepo) ListAdvancesByTrainer(ctx context.Context, trainerID string) ([]model.AdvancePayment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []model.AdvancePayment
	for _, a := range r.advances {
		if a.TrainerID == trainerID {
			res = append(res, a)
		}
	}
	return res, nil
}

func (r *memRepo) ListPackagesByCustomer(ctx context.Context, customerID string) ([]model.Package, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []model.Package
	for _, p := range r.packages {
		if p.CustomerID == customerID {
			res = append(res, p)
		}
	}
	return res, nil
}

func (r *memRepo) ListUnresolvedDebts(ctx context.Context, customerID string) ([]model.SessionDebt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []model.SessionDebt
	for _, d := range r.debts {
		if d.CustomerID == customerID && !d.Resolved {
			res = append(res, d)
		}
	}
	return res, nil
}

var testCalendar = period.NewCalendar(time.UTC, time.Monday)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func at(month time.Month, day, hour int) time.Time {
	return time.Date(2026, month, day, hour, 0, 0, 0, time.UTC)
}

// newStudio заполняет хранилище тренером tr-1 (ставка 0.5) и групповым занятием за 100.
func newStudio() *memRepo {
	repo := newMemRepo()
	repo.trainers["tr-1"] = model.Trainer{
		ID:              "tr-1",
		Name:            "Anna",
		Level:           model.TrainerLevelRegular,
		CommissionRates: map[string]decimal.Decimal{"group": dec("0.5")},
	}
	repo.classTypes = []model.ClassType{{
		ID:       "group",
		Name:     "Group",
		Capacity: 12,
		Pricing: map[model.TrainerLevel]map[int]decimal.Decimal{
			model.TrainerLevelRegular: {1: dec("100"), 5: dec("450"), 10: dec("800")},
			model.TrainerLevelMaster:  {1: dec("150")},
		},
	}}
	return repo
}

func addBooking(repo *memRepo, id string, when time.Time, status model.BookingStatus, customers ...string) {
	repo.bookings = append(repo.bookings, model.Booking{
		ID:          id,
		TrainerID:   "tr-1",
		ClassTypeID: "group",
		CustomerIDs: customers,
		ScheduledAt: when,
		Status:      status,
	})
}

func newTestService(t *testing.T, repo Repository, client ScheduleClient, logger *zap.Logger, metrics *Metrics) *Service {
	t.Helper()

	svc := NewService(repo, client, payroll.NewCalculator(testCalendar, time.Time{}), logger, metrics)
	svc.now = func() time.Time { return at(time.March, 8, 20) }

	var mu sync.Mutex
	seq := 0
	svc.newID = func() string {
		mu.Lock()
		defer mu.Unlock()
		seq++
		return fmt.Sprintf("id-%d", seq)
	}
	return svc
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			match := true
			for _, lp := range m.GetLabel() {
				if v, ok := labels[lp.GetName()]; ok && v != lp.GetValue() {
					match = false
				}
			}
			if match {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}
