// Package debt гасит долги клиентов за занятия, посещённые без абонемента,
// за счёт вновь купленного абонемента.
package debt

import (
	"sort"
	"time"

	"github.com/mmeshcher/studiopay/internal/model"
)

// Resolver подбирает долг, который гасится при покупке абонемента.
type Resolver struct{}

// NewResolver создаёт Resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Matching возвращает непогашенные долги клиента той же формы, что и абонемент,
// от самого старого к самому новому.
func (r *Resolver) Matching(debts []model.SessionDebt, pkg model.Package) []model.SessionDebt {
	var res []model.SessionDebt
	for _, d := range debts {
		if d.Resolved || d.CustomerID != pkg.CustomerID {
			continue
		}
		if d.ClassTypeID != pkg.ClassTypeID || d.TrainerLevel != pkg.TrainerLevel {
			continue
		}
		res = append(res, d)
	}
	sort.SliceStable(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].ID < res[j].ID
		}
		return res[i].CreatedAt.Before(res[j].CreatedAt)
	})
	return res
}

// Resolve гасит не более одного долга за покупку: самый старый подходящий,
// и только если в абонементе есть свободное занятие.
// Возвращает абонемент после списания и погашенный долг (nil, если гасить нечего).
// Исходные значения не изменяются.
func (r *Resolver) Resolve(debts []model.SessionDebt, pkg model.Package, at time.Time) (model.Package, *model.SessionDebt) {
	matching := r.Matching(debts, pkg)
	if len(matching) == 0 || pkg.SessionsRemaining <= 0 {
		return pkg, nil
	}

	resolved := matching[0]
	resolvedAt := at
	resolved.Resolved = true
	resolved.ResolvedByPackageID = pkg.ID
	resolved.ResolutionMethod = model.ResolutionAutoPackage
	resolved.ResolvedAt = &resolvedAt

	pkg.SessionsRemaining--

	return pkg, &resolved
}
