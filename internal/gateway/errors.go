package gateway

import (
	"errors"
	"fmt"
)

// Категория отказа шлюза
type Kind string

const (
	KindNetwork    Kind = "network"    // временный сбой, можно повторить
	KindConflict   Kind = "conflict"   // связь уже существует/отсутствует, не фатально
	KindForbidden  Kind = "forbidden"  // операция над чужой сущностью
	KindNotFound   Kind = "not_found"  // сущность исчезла на сервере
	KindValidation Kind = "validation" // отклонено до сетевого вызова
)

// Типизированная ошибка шлюза
type Error struct {
	Op   string // операция, в которой произошёл отказ
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E создает типизированную ошибку шлюза
func E(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// KindOf возвращает категорию ошибки; всё нераспознанное считается сетевым сбоем
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindNetwork
}

// IsKind проверяет категорию ошибки
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
