package debt

import (
	"sort"
	"time"

	"github.com/mmeshcher/studiopay/internal/model"
)

// Charge описывает, чем клиент оплачивает проведённое занятие:
// списанием с абонемента или новым долгом. Заполнено ровно одно поле.
type Charge struct {
	Package *model.Package
	Debt    *model.SessionDebt
}

// Usable сообщает, можно ли списать с абонемента занятие типа classTypeID
// у тренера уровня level, проведённое в момент at.
func Usable(p model.Package, classTypeID string, level model.TrainerLevel, at time.Time) bool {
	if p.Archived || p.SessionsRemaining <= 0 {
		return false
	}
	if p.ClassTypeID != classTypeID || p.TrainerLevel != level {
		return false
	}
	if p.PurchasedAt.After(at) {
		return false
	}
	return p.ExpiresAt == nil || !at.After(*p.ExpiresAt)
}

// ChargeSession списывает занятие booking с абонемента клиента customerID.
// Из подходящих абонементов выбирается тот, что истекает раньше; бессрочные идут последними.
// Если подходящего абонемента нет, возвращается новый долг с идентификатором debtID.
func (r *Resolver) ChargeSession(packages []model.Package, customerID string, b model.Booking, level model.TrainerLevel, debtID string) Charge {
	var usable []model.Package
	for _, p := range packages {
		if p.CustomerID == customerID && Usable(p, b.ClassTypeID, level, b.ScheduledAt) {
			usable = append(usable, p)
		}
	}

	if len(usable) == 0 {
		return Charge{Debt: &model.SessionDebt{
			ID:           debtID,
			CustomerID:   customerID,
			BookingID:    b.ID,
			ClassTypeID:  b.ClassTypeID,
			TrainerLevel: level,
			CreatedAt:    b.ScheduledAt,
		}}
	}

	sort.SliceStable(usable, func(i, j int) bool {
		ei, ej := usable[i].ExpiresAt, usable[j].ExpiresAt
		switch {
		case ei != nil && ej != nil && !ei.Equal(*ej):
			return ei.Before(*ej)
		case ei != nil && ej == nil:
			return true
		case ei == nil && ej != nil:
			return false
		}
		return usable[i].PurchasedAt.Before(usable[j].PurchasedAt)
	})

	chosen := usable[0]
	chosen.SessionsRemaining--
	return Charge{Package: &chosen}
}
