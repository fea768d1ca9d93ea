// Package payroll рассчитывает вознаграждение тренеров: заработок за период,
// перенос неоплаченных недель, удержание авансов и итог к выплате.
//
// Все функции пакета чистые: они работают со снимком данных и не меняют его,
// поэтому расчёт можно повторять сколько угодно раз и выполнять параллельно.
package payroll

import (
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/studiopay/internal/model"
)

// Причины аномалий, при которых занятие оценивается в ноль.
const (
	ReasonUnknownClassType = "class type not found"
	ReasonMissingPrice     = "single session price missing for trainer level"
	ReasonMissingRate      = "commission rate missing for class type"
)

// Anomaly описывает занятие, которое не удалось оценить полностью.
type Anomaly struct {
	BookingID   string
	ClassTypeID string
	Reason      string
}

// PriceList отвечает на вопрос «сколько стоит одно занятие данного типа у тренера данного уровня».
type PriceList struct {
	types map[string]model.ClassType
}

// NewPriceList строит прайс по списку типов занятий.
func NewPriceList(types []model.ClassType) PriceList {
	m := make(map[string]model.ClassType, len(types))
	for _, ct := range types {
		m[ct.ID] = ct
	}
	return PriceList{types: m}
}

// Lookup возвращает цену разового занятия и причину, если цену определить не удалось.
func (p PriceList) Lookup(classTypeID string, level model.TrainerLevel) (decimal.Decimal, string) {
	ct, ok := p.types[classTypeID]
	if !ok {
		return decimal.Zero, ReasonUnknownClassType
	}
	price, ok := ct.Pricing[level][model.SingleSessionTier]
	if !ok {
		return decimal.Zero, ReasonMissingPrice
	}
	return price, ""
}

// TierPrice возвращает цену пакета из sessions занятий.
func (p PriceList) TierPrice(classTypeID string, level model.TrainerLevel, sessions int) (decimal.Decimal, bool) {
	ct, ok := p.types[classTypeID]
	if !ok {
		return decimal.Zero, false
	}
	price, ok := ct.Pricing[level][sessions]
	return price, ok
}
