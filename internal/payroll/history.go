package payroll

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/studiopay/internal/model"
)

// History хранит историю выплат и авансов тренера.
// Закрытость периода каждый раз выводится из записей Payment, отдельного флага «закрыт» нет.
type History struct {
	payments []model.Payment
	advances []model.AdvancePayment
}

// NewHistory отбирает выплаты и авансы тренера; чужие записи отбрасываются.
func NewHistory(trainerID string, payments []model.Payment, advances []model.AdvancePayment) History {
	var h History

	for _, p := range payments {
		if p.TrainerID == trainerID {
			h.payments = append(h.payments, p)
		}
	}

	for _, a := range advances {
		if a.TrainerID == trainerID && !a.Applied {
			h.advances = append(h.advances, a)
		}
	}
	sort.SliceStable(h.advances, func(i, j int) bool {
		if h.advances[i].Date.Equal(h.advances[j].Date) {
			return h.advances[i].ID < h.advances[j].ID
		}
		return h.advances[i].Date.Before(h.advances[j].Date)
	})

	return h
}

// IsSettled сообщает, закрыт ли период с меткой label какой-либо выплатой.
func (h History) IsSettled(label string) bool {
	_, ok := h.PaymentFor(label)
	return ok
}

// PaymentFor возвращает первую выплату, закрывшую период с меткой label.
func (h History) PaymentFor(label string) (model.Payment, bool) {
	for _, p := range h.payments {
		if p.Settles(label) {
			return p, true
		}
	}
	return model.Payment{}, false
}

// AdvanceTotal возвращает сумму неудержанных авансов и их идентификаторы.
func (h History) AdvanceTotal() (decimal.Decimal, []string) {
	total := decimal.Zero
	var ids []string
	for _, a := range h.advances {
		total = total.Add(a.Amount)
		ids = append(ids, a.ID)
	}
	return total, ids
}
