// internal/types/errors.go
package types

import (
	"errors"
	"fmt"
)

// ErrorKind - класс ошибки движка
type ErrorKind string

const (
	// ErrMalformedEvent - событие не разобрано или не хватает полей:
	// логируем, пропускаем, продолжаем
	ErrMalformedEvent ErrorKind = "malformed_event"
	// ErrUnknownAsset - аналитика запрошена по активу без истории
	ErrUnknownAsset ErrorKind = "unknown_asset"
	// ErrStaleAnalytics - запись кэша старше порога свежести
	ErrStaleAnalytics ErrorKind = "stale_analytics"
	// ErrConcurrentWriteConflict - конфликт записи SentAlert
	ErrConcurrentWriteConflict ErrorKind = "concurrent_write_conflict"
)

// EngineError - типизированная ошибка движка. Никакая ошибка ядра
// не должна приводить к падению процесса.
type EngineError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *EngineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// NewEngineError создает типизированную ошибку
func NewEngineError(kind ErrorKind, msg string, err error) *EngineError {
	return &EngineError{Kind: kind, Msg: msg, Err: err}
}

// IsKind проверяет класс ошибки
func IsKind(err error, kind ErrorKind) bool {
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr.Kind == kind
	}
	return false
}
