package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func constant(d time.Duration) Backoff {
	return func(int) time.Duration { return d }
}

func TestPolicy_Do(t *testing.T) {
	t.Run("初回成功なら1回だけ実行", func(t *testing.T) {
		calls := 0
		err := Policy{MaxAttempts: 3}.Do(context.Background(), func(context.Context, int) error {
			calls++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("上限回数で最後のエラーを返す", func(t *testing.T) {
		calls := 0
		err := Policy{MaxAttempts: 3, Backoff: constant(time.Millisecond)}.Do(context.Background(), func(context.Context, int) error {
			calls++
			return errTransient
		})
		assert.ErrorIs(t, err, errTransient)
		assert.Equal(t, 3, calls)
	})

	t.Run("途中で成功すれば打ち切る", func(t *testing.T) {
		var attempts []int
		err := Policy{MaxAttempts: 3, Backoff: constant(time.Millisecond)}.Do(context.Background(), func(_ context.Context, attempt int) error {
			attempts = append(attempts, attempt)
			if attempt < 2 {
				return errTransient
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2}, attempts)
	})

	t.Run("再試行対象外のエラーは即座に返す", func(t *testing.T) {
		permanent := errors.New("permanent")
		calls := 0
		p := Policy{
			MaxAttempts: 5,
			Backoff:     constant(time.Millisecond),
			Retryable:   func(err error) bool { return errors.Is(err, errTransient) },
		}
		err := p.Do(context.Background(), func(context.Context, int) error {
			calls++
			return permanent
		})
		assert.ErrorIs(t, err, permanent)
		assert.Equal(t, 1, calls)
	})

	t.Run("OnRetry は再試行ごとに呼ばれる", func(t *testing.T) {
		var retried []int
		p := Policy{
			MaxAttempts: 3,
			Backoff:     constant(time.Millisecond),
			OnRetry:     func(attempt int, _ error) { retried = append(retried, attempt) },
		}
		_ = p.Do(context.Background(), func(context.Context, int) error { return errTransient })
		assert.Equal(t, []int{1, 2}, retried)
	})

	t.Run("コンテキストのキャンセルで中断", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		err := Policy{MaxAttempts: 3, Backoff: constant(time.Second)}.Do(ctx, func(context.Context, int) error {
			calls++
			cancel()
			return errTransient
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})

	t.Run("経過時間の上限で打ち切る", func(t *testing.T) {
		calls := 0
		p := Policy{MaxAttempts: 10, Backoff: constant(50 * time.Millisecond), MaxElapsed: 20 * time.Millisecond}
		err := p.Do(context.Background(), func(context.Context, int) error {
			calls++
			return errTransient
		})
		assert.ErrorIs(t, err, ErrBudgetExceeded)
		assert.ErrorIs(t, err, errTransient)
		assert.Equal(t, 1, calls)
	})
}

func TestJittered(t *testing.T) {
	b := Jittered(100*time.Millisecond, 0.2)
	for i := 1; i <= 50; i++ {
		d := b(i)
		assert.GreaterOrEqual(t, d, 80*time.Millisecond)
		assert.LessOrEqual(t, d, 120*time.Millisecond)
	}
	assert.Equal(t, 100*time.Millisecond, Jittered(100*time.Millisecond, 0)(1))
}

func TestExponential(t *testing.T) {
	b := Exponential(100*time.Millisecond, time.Second)
	assert.Equal(t, 100*time.Millisecond, b(1))
	assert.Equal(t, 200*time.Millisecond, b(2))
	assert.Equal(t, 400*time.Millisecond, b(3))
	assert.Equal(t, time.Second, b(5))
	assert.Equal(t, time.Second, b(20))
}
