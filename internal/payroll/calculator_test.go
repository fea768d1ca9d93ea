package payroll

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/studiopay/internal/model"
	"github.com/mmeshcher/studiopay/internal/period"
)

var cal = period.NewCalendar(time.UTC, time.Monday)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(month time.Month, d, hour int) time.Time {
	return time.Date(2026, month, d, hour, 0, 0, 0, time.UTC)
}

func classType(id, regularPrice string) model.ClassType {
	return model.ClassType{
		ID:       id,
		Capacity: 10,
		Pricing: map[model.TrainerLevel]map[int]decimal.Decimal{
			model.TrainerLevelRegular: {1: dec(regularPrice), 5: dec(regularPrice).Mul(dec("4.5"))},
		},
	}
}

func trainer(rates map[string]string) model.Trainer {
	t := model.Trainer{ID: "tr-1", Level: model.TrainerLevelRegular, CommissionRates: map[string]decimal.Decimal{}}
	for k, v := range rates {
		t.CommissionRates[k] = dec(v)
	}
	return t
}

var seq int

func booking(classTypeID string, at time.Time, status model.BookingStatus) model.Booking {
	seq++
	return model.Booking{
		ID:          fmt.Sprintf("b-%d", seq),
		TrainerID:   "tr-1",
		ClassTypeID: classTypeID,
		CustomerIDs: []string{"c-1"},
		ScheduledAt: at,
		Status:      status,
	}
}

func labels(periods []model.Period) []string {
	res := make([]string, 0, len(periods))
	for _, p := range periods {
		res = append(res, p.Label)
	}
	return res
}

func TestCalculate_BasicPayout(t *testing.T) {
	calc := NewCalculator(cal, time.Time{})
	current := cal.Week(day(time.March, 4, 12))
	in := Input{
		Trainer:    trainer(map[string]string{"group": "0.5"}),
		Period:     current,
		ClassTypes: []model.ClassType{classType("group", "100")},
		Bookings: []model.Booking{
			booking("group", day(time.March, 2, 10), model.BookingStatusCompleted),
			booking("group", day(time.March, 5, 18), model.BookingStatusCancelledLate),
		},
		ManualAdjustment: decimal.Zero,
	}

	res := calc.Calculate(in)

	assert.True(t, dec("100").Equal(res.ThisPeriodEarnings), "earnings = %s", res.ThisPeriodEarnings)
	assert.True(t, res.BalanceBroughtForward.IsZero())
	assert.Empty(t, res.UnpaidPeriods)
	assert.True(t, dec("100").Equal(res.TotalDue))
	assert.False(t, res.IsSettled)
	assert.Len(t, res.IncludedSessions, 2)
	assert.Empty(t, res.Anomalies)

	payment, err := BuildPayment(res, "pay-1", day(time.March, 8, 20))
	require.NoError(t, err)
	assert.Equal(t, []string{current.Label}, labels(payment.SettledPeriods))
	assert.True(t, dec("100").Equal(payment.Amount))

	in.Payments = []model.Payment{payment}
	again := calc.Calculate(in)

	assert.True(t, again.IsSettled)
	require.NotNil(t, again.Payment)
	assert.Equal(t, "pay-1", again.Payment.ID)
	assert.True(t, dec("100").Equal(again.TotalDue))
	assert.Len(t, again.IncludedSessions, 2)

	_, err = BuildPayment(again, "pay-2", day(time.March, 8, 21))
	assert.ErrorIs(t, err, model.ErrAlreadySettled)
}

func TestCalculate_CarryForwardWithAdvance(t *testing.T) {
	calc := NewCalculator(cal, time.Time{})
	current := cal.Week(day(time.March, 4, 12))
	prior := cal.Week(day(time.February, 25, 12))
	in := Input{
		Trainer:    trainer(map[string]string{"group": "0.4", "pilates": "0.5"}),
		Period:     current,
		ClassTypes: []model.ClassType{classType("group", "100"), classType("pilates", "120")},
		Bookings: []model.Booking{
			booking("group", day(time.February, 24, 9), model.BookingStatusCompleted),
			booking("pilates", day(time.March, 3, 9), model.BookingStatusCompleted),
		},
		Advances: []model.AdvancePayment{
			{ID: "adv-1", TrainerID: "tr-1", Amount: dec("20"), Date: day(time.February, 27, 0)},
			{ID: "adv-old", TrainerID: "tr-1", Amount: dec("500"), Date: day(time.January, 10, 0), Applied: true},
			{ID: "adv-other", TrainerID: "tr-2", Amount: dec("70"), Date: day(time.February, 27, 0)},
		},
	}

	res := calc.Calculate(in)

	assert.True(t, dec("60").Equal(res.ThisPeriodEarnings))
	assert.True(t, dec("40").Equal(res.BalanceBroughtForward))
	assert.Equal(t, []string{prior.Label}, labels(res.UnpaidPeriods))
	assert.True(t, dec("20").Equal(res.AdvanceDeductions))
	assert.Equal(t, []string{"adv-1"}, res.AppliedAdvanceIDs)
	assert.True(t, dec("80").Equal(res.TotalDue), "total = %s", res.TotalDue)
	assert.Len(t, res.IncludedSessions, 2)

	payment, err := BuildPayment(res, "pay-1", day(time.March, 8, 20))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{prior.Label, current.Label}, labels(payment.SettledPeriods))
	assert.Equal(t, []string{"adv-1"}, payment.AppliedAdvanceIDs)
	assert.True(t, payment.Amount.Equal(payment.EarningsForPeriod.Add(payment.BalanceBroughtForward).Add(payment.ManualAdjustment).Sub(payment.AdvanceDeductions)))
}

func TestCalculate_ZeroContributionCurrentWeekIsNotSettled(t *testing.T) {
	calc := NewCalculator(cal, time.Time{})
	current := cal.Week(day(time.March, 4, 12))
	prior := cal.Week(day(time.February, 18, 12))
	in := Input{
		Trainer:    trainer(map[string]string{"group": "0.5"}),
		Period:     current,
		ClassTypes: []model.ClassType{classType("group", "100")},
		Bookings: []model.Booking{
			booking("group", day(time.February, 18, 9), model.BookingStatusCompleted),
		},
	}

	res := calc.Calculate(in)
	require.True(t, dec("50").Equal(res.TotalDue))

	payment, err := BuildPayment(res, "pay-1", day(time.March, 4, 20))
	require.NoError(t, err)

	assert.Equal(t, []string{prior.Label}, labels(payment.SettledPeriods))
	assert.False(t, payment.Settles(current.Label))
	assert.Equal(t, current.Label, payment.PrimaryLabel)

	in.Payments = []model.Payment{payment}
	again := calc.Calculate(in)
	assert.False(t, again.IsSettled)
	assert.True(t, again.TotalDue.IsZero())
}

func TestCalculate_ManualAdjustmentSettlesEmptyCurrentWeek(t *testing.T) {
	calc := NewCalculator(cal, time.Time{})
	current := cal.Week(day(time.March, 4, 12))

	res := calc.Calculate(Input{
		Trainer:          trainer(nil),
		Period:           current,
		ManualAdjustment: dec("15.50"),
	})

	payment, err := BuildPayment(res, "pay-1", day(time.March, 4, 20))
	require.NoError(t, err)
	assert.Equal(t, []string{current.Label}, labels(payment.SettledPeriods))
	assert.True(t, dec("15.5").Equal(payment.Amount))
}

func TestCalculate_NonPayableStatusesAndOtherTrainers(t *testing.T) {
	calc := NewCalculator(cal, time.Time{})
	current := cal.Week(day(time.March, 4, 12))
	other := booking("group", day(time.March, 3, 9), model.BookingStatusCompleted)
	other.TrainerID = "tr-2"

	res := calc.Calculate(Input{
		Trainer:    trainer(map[string]string{"group": "1"}),
		Period:     current,
		ClassTypes: []model.ClassType{classType("group", "10")},
		Bookings: []model.Booking{
			booking("group", day(time.March, 3, 9), model.BookingStatusBooked),
			booking("group", day(time.March, 3, 10), model.BookingStatusCancelled),
			booking("group", day(time.March, 3, 11), model.BookingStatusDeleted),
			booking("group", day(time.March, 3, 12), model.BookingStatusCompleted),
			other,
		},
	})

	assert.True(t, dec("10").Equal(res.ThisPeriodEarnings))
	require.Len(t, res.IncludedSessions, 1)
	assert.Equal(t, model.BookingStatusCompleted, res.IncludedSessions[0].Status)
}

func TestCalculate_MissingReferencesContributeZero(t *testing.T) {
	calc := NewCalculator(cal, time.Time{})
	current := cal.Week(day(time.March, 4, 12))
	master := model.ClassType{
		ID: "master-only",
		Pricing: map[model.TrainerLevel]map[int]decimal.Decimal{
			model.TrainerLevelMaster: {1: dec("200")},
		},
	}

	res := calc.Calculate(Input{
		Trainer:    trainer(map[string]string{"group": "0.5", "master-only": "0.5", "ghost": "0.5"}),
		Period:     current,
		ClassTypes: []model.ClassType{classType("group", "100"), classType("no-rate", "100"), master},
		Bookings: []model.Booking{
			booking("group", day(time.March, 3, 9), model.BookingStatusCompleted),
			booking("ghost", day(time.March, 3, 10), model.BookingStatusCompleted),
			booking("master-only", day(time.March, 3, 11), model.BookingStatusCompleted),
			booking("no-rate", day(time.March, 3, 12), model.BookingStatusCompleted),
		},
	})

	assert.True(t, dec("50").Equal(res.ThisPeriodEarnings))
	reasons := make([]string, 0, len(res.Anomalies))
	for _, a := range res.Anomalies {
		reasons = append(reasons, a.ClassTypeID+": "+a.Reason)
	}
	assert.ElementsMatch(t, []string{
		"ghost: " + ReasonUnknownClassType,
		"master-only: " + ReasonMissingPrice,
		"no-rate: " + ReasonMissingRate,
	}, reasons)
}

func TestCalculate_SkipsZeroAndSettledWeeks(t *testing.T) {
	calc := NewCalculator(cal, time.Time{})
	current := cal.Week(day(time.April, 15, 12))
	jan := cal.Week(day(time.January, 14, 12))
	feb := cal.Week(day(time.February, 11, 12))
	mar := cal.Week(day(time.March, 11, 12))

	res := calc.Calculate(Input{
		Trainer:    trainer(map[string]string{"group": "0.5"}),
		Period:     current,
		ClassTypes: []model.ClassType{classType("group", "100")},
		Bookings: []model.Booking{
			booking("group", day(time.January, 14, 9), model.BookingStatusCompleted),
			booking("group", day(time.February, 11, 9), model.BookingStatusCompleted),
			booking("group", day(time.March, 11, 9), model.BookingStatusCompleted),
		},
		Payments: []model.Payment{
			{ID: "pay-feb", TrainerID: "tr-1", Amount: dec("50"), SettledPeriods: []model.Period{feb}},
			{ID: "pay-foreign", TrainerID: "tr-2", Amount: dec("50"), SettledPeriods: []model.Period{mar}},
		},
	})

	assert.Equal(t, []string{jan.Label, mar.Label}, labels(res.UnpaidPeriods))
	assert.True(t, dec("100").Equal(res.BalanceBroughtForward))
	assert.True(t, dec("100").Equal(res.TotalDue))
	assert.Len(t, res.IncludedSessions, 2)
}

func TestCalculate_NegativeTotalIsShownButNotPayable(t *testing.T) {
	calc := NewCalculator(cal, time.Time{})
	current := cal.Week(day(time.March, 4, 12))

	res := calc.Calculate(Input{
		Trainer:    trainer(map[string]string{"group": "0.5"}),
		Period:     current,
		ClassTypes: []model.ClassType{classType("group", "100")},
		Bookings:   []model.Booking{booking("group", day(time.March, 3, 9), model.BookingStatusCompleted)},
		Advances:   []model.AdvancePayment{{ID: "adv-1", TrainerID: "tr-1", Amount: dec("80")}},
	})

	assert.True(t, dec("-30").Equal(res.TotalDue))

	_, err := BuildPayment(res, "pay-1", day(time.March, 4, 20))
	assert.ErrorIs(t, err, model.ErrNothingToPay)

	zero := calc.Calculate(Input{Trainer: trainer(nil), Period: current})
	_, err = BuildPayment(zero, "pay-2", day(time.March, 4, 20))
	assert.ErrorIs(t, err, model.ErrNothingToPay)
}

func TestCalculate_Idempotent(t *testing.T) {
	calc := NewCalculator(cal, time.Time{})
	in := Input{
		Trainer:    trainer(map[string]string{"group": "0.35"}),
		Period:     cal.Week(day(time.March, 4, 12)),
		ClassTypes: []model.ClassType{classType("group", "99.99")},
		Bookings: []model.Booking{
			booking("group", day(time.February, 3, 9), model.BookingStatusCompleted),
			booking("group", day(time.March, 3, 9), model.BookingStatusCancelledLate),
		},
		Advances:         []model.AdvancePayment{{ID: "adv-1", TrainerID: "tr-1", Amount: dec("5")}},
		ManualAdjustment: dec("-1.25"),
	}

	assert.Equal(t, calc.Calculate(in), calc.Calculate(in))
}

func TestCalculate_NoRoundingDrift(t *testing.T) {
	calc := NewCalculator(cal, time.Time{})
	var bookings []model.Booking
	for i := 0; i < 3; i++ {
		bookings = append(bookings, booking("group", day(time.March, 3, 9+i), model.BookingStatusCompleted))
	}

	res := calc.Calculate(Input{
		Trainer:    trainer(map[string]string{"group": "0.333"}),
		Period:     cal.Week(day(time.March, 4, 12)),
		ClassTypes: []model.ClassType{classType("group", "10.01")},
		Bookings:   bookings,
	})

	assert.Equal(t, "9.99999", res.ThisPeriodEarnings.String())
}

func TestCalculate_Anchor(t *testing.T) {
	current := cal.Week(day(time.January, 21, 12))
	in := Input{
		Trainer:    trainer(map[string]string{"group": "0.5"}),
		Period:     current,
		ClassTypes: []model.ClassType{classType("group", "100")},
		Bookings: []model.Booking{
			booking("group", time.Date(2025, time.November, 12, 9, 0, 0, 0, time.UTC), model.BookingStatusCompleted),
			booking("group", day(time.January, 14, 9), model.BookingStatusCompleted),
		},
	}

	startOfYear := NewCalculator(cal, time.Time{}).Calculate(in)
	assert.True(t, dec("50").Equal(startOfYear.BalanceBroughtForward))

	opened := NewCalculator(cal, time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC)).Calculate(in)
	assert.True(t, dec("100").Equal(opened.BalanceBroughtForward))
	assert.Len(t, opened.UnpaidPeriods, 2)
}

func TestCalculate_SettledViewIgnoresLaterChanges(t *testing.T) {
	calc := NewCalculator(cal, time.Time{})
	current := cal.Week(day(time.March, 4, 12))
	in := Input{
		Trainer:          trainer(map[string]string{"group": "0.5"}),
		Period:           current,
		ClassTypes:       []model.ClassType{classType("group", "100")},
		Bookings:         []model.Booking{booking("group", day(time.March, 3, 9), model.BookingStatusCompleted)},
		ManualAdjustment: dec("10"),
	}

	payment, err := BuildPayment(calc.Calculate(in), "pay-1", day(time.March, 8, 20))
	require.NoError(t, err)

	in.Payments = []model.Payment{payment}
	in.Bookings = append(in.Bookings, booking("group", day(time.March, 6, 9), model.BookingStatusCompleted))
	in.ManualAdjustment = dec("999")

	res := calc.Calculate(in)

	assert.True(t, res.IsSettled)
	assert.True(t, dec("50").Equal(res.ThisPeriodEarnings))
	assert.True(t, dec("10").Equal(res.ManualAdjustment))
	assert.True(t, dec("60").Equal(res.TotalDue))
}

// Сумма заработка, закрытого выплатами, равна сумме заработка по всем неделям с активностью.
func TestCalculate_ConservationAcrossSettlements(t *testing.T) {
	calc := NewCalculator(cal, time.Time{})
	in := Input{
		Trainer:    trainer(map[string]string{"group": "0.5", "pilates": "0.25"}),
		ClassTypes: []model.ClassType{classType("group", "100"), classType("pilates", "80.40")},
		Advances: []model.AdvancePayment{
			{ID: "adv-1", TrainerID: "tr-1", Amount: dec("10"), Date: day(time.January, 20, 0)},
		},
	}

	expected := decimal.Zero
	for w := 0; w < 12; w++ {
		at := day(time.January, 5+7*w, 10)
		if w%3 == 1 {
			continue
		}
		in.Bookings = append(in.Bookings, booking("group", at, model.BookingStatusCompleted))
		expected = expected.Add(dec("50"))
		if w%2 == 0 {
			in.Bookings = append(in.Bookings, booking("pilates", at.Add(time.Hour), model.BookingStatusCancelledLate))
			expected = expected.Add(dec("20.1"))
		}
	}

	paidAt := day(time.January, 1, 0)
	for _, w := range []int{2, 5, 6, 11, 12} {
		in.Period = cal.Week(day(time.January, 5+7*w, 10))
		res := calc.Calculate(in)
		payment, err := BuildPayment(res, fmt.Sprintf("pay-%d", w), paidAt)
		if err != nil {
			require.ErrorIs(t, err, model.ErrNothingToPay)
			continue
		}
		in.Payments = append(in.Payments, payment)
		for i := range in.Advances {
			for _, id := range payment.AppliedAdvanceIDs {
				if in.Advances[i].ID == id {
					in.Advances[i].Applied = true
				}
			}
		}
	}

	settled := decimal.Zero
	seen := make(map[string]string)
	for _, p := range in.Payments {
		settled = settled.Add(p.EarningsForPeriod).Add(p.BalanceBroughtForward)
		for _, sp := range p.SettledPeriods {
			prev, dup := seen[sp.Label]
			require.False(t, dup, "period %s settled by %s and %s", sp.Label, prev, p.ID)
			seen[sp.Label] = p.ID
		}
	}

	assert.True(t, expected.Equal(settled), "expected %s, settled %s", expected, settled)
}
