// Package breaker は外部依存への呼び出しをサーキットブレーカーで保護する。
package breaker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-campus-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-campus-reservation/internal/pkg/metrics"
)

// ErrOpen はブレーカーが開いていて呼び出しを遮断したことを表す
var ErrOpen = gobreaker.ErrOpenState

// Settings はブレーカーの判定条件
type Settings struct {
	// HalfOpen 状態で通す試行数
	MaxRequests uint32
	// Closed 状態で失敗率を集計する期間
	Interval time.Duration
	// Open から HalfOpen に移るまでの時間
	Timeout time.Duration
	// 判定に必要な最小リクエスト数
	MinRequests uint32
	// この失敗率以上で Open に遷移する
	FailureRatio float64
}

// DefaultSettings は設定が与えられない場合の既定値
func DefaultSettings() Settings {
	return Settings{
		MaxRequests:  3,
		Interval:     5 * time.Second,
		Timeout:      10 * time.Second,
		MinRequests:  5,
		FailureRatio: 0.6,
	}
}

// Breaker は gobreaker をラップし、状態遷移をログとメトリクスに流す
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// New は新しい Breaker を作成する
func New(name string, s Settings, m *metrics.Metrics) *Breaker {
	m.SetBreakerState(name, float64(gobreaker.StateClosed))
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= s.FailureRatio
		},
		// 呼び出し側のキャンセルは依存先の障害として数えない
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("サーキットブレーカーの状態が変化しました",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			m.SetBreakerState(name, float64(to))
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Name はブレーカー名を返す
func (b *Breaker) Name() string {
	return b.cb.Name()
}

// State は現在の状態を返す
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// Do は結果を持たない呼び出しを保護する
func (b *Breaker) Do(fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}
