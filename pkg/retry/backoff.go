// pkg/retry/backoff.go
package retry

import (
	"context"
	"time"
)

// Backoff - экспоненциальная задержка с верхним пределом.
// Нулевое значение непригодно, создавайте через NewBackoff.
type Backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

// NewBackoff создает backoff с начальной и максимальной задержкой
func NewBackoff(initial, max time.Duration) *Backoff {
	if initial <= 0 {
		initial = time.Second
	}
	if max < initial {
		max = initial
	}
	return &Backoff{
		initial: initial,
		max:     max,
		current: initial,
	}
}

// Next возвращает текущую задержку и удваивает её до предела
func (b *Backoff) Next() time.Duration {
	d := b.current
	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	return d
}

// Reset сбрасывает задержку к начальной после успешной попытки
func (b *Backoff) Reset() {
	b.current = b.initial
}

// Wait блокируется на очередную задержку, прерываясь по контексту
func (b *Backoff) Wait(ctx context.Context) error {
	timer := time.NewTimer(b.Next())
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do выполняет fn с повторами до успеха или отмены контекста
func Do(ctx context.Context, initial, max time.Duration, fn func() error) error {
	b := NewBackoff(initial, max)
	for {
		err := fn()
		if err == nil {
			return nil
		}
		if waitErr := b.Wait(ctx); waitErr != nil {
			return err
		}
	}
}
