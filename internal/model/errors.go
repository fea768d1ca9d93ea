package model

import "errors"

var (
	// ErrNotFound возвращается, если запрошенная сущность не найдена.
	ErrNotFound = errors.New("not found")
	// ErrNothingToPay возвращается при попытке рассчитаться с нулевой или отрицательной суммой.
	ErrNothingToPay = errors.New("nothing to pay")
	// ErrAlreadySettled возвращается, если период уже закрыт выплатой.
	ErrAlreadySettled = errors.New("period already settled")
	// ErrConflict возвращается, если состояние изменилось параллельной записью. Операцию можно повторить.
	ErrConflict = errors.New("concurrent modification")
	// ErrTotalMismatch возвращается, если пересчитанная сумма не совпала с подтверждённой оператором.
	ErrTotalMismatch = errors.New("payout total changed")
	// ErrInvalidInput возвращается при некорректных входных данных.
	ErrInvalidInput = errors.New("invalid input")
)
