// Package retry は再試行ポリシーを明示的なオブジェクトとして扱う。
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// ErrBudgetExceeded は経過時間の上限で再試行を打ち切ったことを表す
var ErrBudgetExceeded = errors.New("再試行の時間上限に達しました")

// Backoff は attempt 回目（1始まり）の失敗後に待つ時間を返す
type Backoff func(attempt int) time.Duration

// Jittered は base を中心に ±ratio の揺らぎを加える
// 同時に競合したリクエストが同じ間隔で再衝突しないようにする
func Jittered(base time.Duration, ratio float64) Backoff {
	return func(int) time.Duration {
		if base <= 0 || ratio <= 0 {
			return base
		}
		spread := float64(base) * ratio
		return time.Duration(float64(base) - spread + rand.Float64()*2*spread)
	}
}

// Exponential は base * 2^(attempt-1) を max で頭打ちにする
func Exponential(base, max time.Duration) Backoff {
	return func(attempt int) time.Duration {
		d := base
		for i := 1; i < attempt; i++ {
			d *= 2
			if d >= max {
				return max
			}
		}
		return d
	}
}

// Policy は再試行の方針
type Policy struct {
	// MaxAttempts は初回を含む最大試行回数（0以下は1回）
	MaxAttempts int
	Backoff     Backoff
	// Retryable が false を返すエラーは即座に返す（nil なら全エラーを再試行）
	Retryable func(error) bool
	// MaxElapsed が正なら初回開始からの経過時間で打ち切る
	MaxElapsed time.Duration
	// OnRetry は再試行の直前に呼ばれる
	OnRetry func(attempt int, err error)
}

// Do は fn を方針に従って実行する
// 試行回数を使い切った場合は最後のエラーをそのまま返す
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	started := time.Now()

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = fn(ctx, attempt); err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if attempt == maxAttempts {
			break
		}

		var wait time.Duration
		if p.Backoff != nil {
			wait = p.Backoff(attempt)
		}
		if p.MaxElapsed > 0 && time.Since(started)+wait > p.MaxElapsed {
			return errors.Join(ErrBudgetExceeded, err)
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return err
}
