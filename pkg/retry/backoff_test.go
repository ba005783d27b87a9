// pkg/retry/backoff_test.go
package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoff_DoublesUpToMax(t *testing.T) {
	b := NewBackoff(time.Second, 5*time.Second)

	assert.Equal(t, time.Second, b.Next())
	assert.Equal(t, 2*time.Second, b.Next())
	assert.Equal(t, 4*time.Second, b.Next())
	// Дальше упирается в потолок
	assert.Equal(t, 5*time.Second, b.Next())
	assert.Equal(t, 5*time.Second, b.Next())
}

func TestBackoff_Reset(t *testing.T) {
	b := NewBackoff(time.Second, 10*time.Second)

	b.Next()
	b.Next()
	b.Reset()
	assert.Equal(t, time.Second, b.Next())
}

func TestBackoff_Defaults(t *testing.T) {
	b := NewBackoff(0, 0)
	assert.Equal(t, time.Second, b.Next())

	// max ниже initial подтягивается к initial
	b = NewBackoff(3*time.Second, time.Second)
	assert.Equal(t, 3*time.Second, b.Next())
	assert.Equal(t, 3*time.Second, b.Next())
}

func TestBackoff_WaitCanceled(t *testing.T) {
	b := NewBackoff(time.Minute, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), time.Millisecond, 2*time.Millisecond, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("not yet")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sentinel := errors.New("still failing")
	err := Do(ctx, time.Millisecond, time.Millisecond, func() error { return sentinel })

	assert.ErrorIs(t, err, sentinel)
}
