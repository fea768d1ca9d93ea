package payroll

import (
	"sort"

	"github.com/mmeshcher/studiopay/internal/model"
)

// Ledger даёт доступ только на чтение к оплачиваемым занятиям одного тренера.
type Ledger struct {
	bookings []model.Booking
}

// NewLedger отбирает оплачиваемые занятия тренера и упорядочивает их по времени.
func NewLedger(trainerID string, bookings []model.Booking) Ledger {
	var own []model.Booking
	for _, b := range bookings {
		if b.TrainerID == trainerID && b.Status.Payable() {
			own = append(own, b)
		}
	}
	sort.SliceStable(own, func(i, j int) bool {
		if own[i].ScheduledAt.Equal(own[j].ScheduledAt) {
			return own[i].ID < own[j].ID
		}
		return own[i].ScheduledAt.Before(own[j].ScheduledAt)
	})
	return Ledger{bookings: own}
}

// Payable возвращает оплачиваемые занятия периода p (границы включительно).
func (l Ledger) Payable(p model.Period) []model.Booking {
	i := sort.Search(len(l.bookings), func(i int) bool {
		return !l.bookings[i].ScheduledAt.Before(p.Start)
	})

	var res []model.Booking
	for ; i < len(l.bookings) && p.Contains(l.bookings[i].ScheduledAt); i++ {
		res = append(res, l.bookings[i])
	}
	return res
}
