package application

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-campus-reservation/internal/domain/transaction"
	"github.com/sanosuguru/go-campus-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-campus-reservation/internal/pkg/metrics"
	"github.com/sanosuguru/go-campus-reservation/internal/pkg/retry"
)

// RetryConfig は楽観的ロック競合時の再試行設定
type RetryConfig struct {
	MaxAttempts int
	Backoff     time.Duration
	Jitter      float64
	// 0 なら経過時間で打ち切らない
	Timeout time.Duration
}

// DefaultRetryConfig は3回・約100ms間隔の既定設定を返す
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, Backoff: 100 * time.Millisecond, Jitter: 0.2}
}

// ConcurrencyController は台帳への条件付き書き込みを有限回の再試行で包む
// 再試行ごとに読み取りから判定・書き込みまでをやり直すため、fn は冪等である必要がある
type ConcurrencyController struct {
	cfg     RetryConfig
	metrics *metrics.Metrics
}

// NewConcurrencyController は新しい ConcurrencyController を作成する
func NewConcurrencyController(cfg RetryConfig, m *metrics.Metrics) *ConcurrencyController {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &ConcurrencyController{cfg: cfg, metrics: m}
}

// Execute は fn をバージョン不一致の間だけ再試行する
// 上限に達した場合は transaction.ErrConcurrentModification を含むエラーを返す
func (c *ConcurrencyController) Execute(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	policy := retry.Policy{
		MaxAttempts: c.cfg.MaxAttempts,
		Backoff:     retry.Jittered(c.cfg.Backoff, c.cfg.Jitter),
		MaxElapsed:  c.cfg.Timeout,
		Retryable: func(err error) bool {
			return errors.Is(err, transaction.ErrConcurrentModification)
		},
		OnRetry: func(attempt int, err error) {
			c.metrics.ObserveRetry(op)
			logger.Ctx(ctx).Debug("バージョン競合のため再試行します",
				zap.String("operation", op),
				zap.Int("attempt", attempt),
			)
		},
	}
	err := policy.Do(ctx, func(ctx context.Context, _ int) error {
		return fn(ctx)
	})
	if errors.Is(err, transaction.ErrConcurrentModification) {
		logger.Ctx(ctx).Warn("再試行の上限に達しました",
			zap.String("operation", op),
			zap.Int("max_attempts", c.cfg.MaxAttempts),
		)
	}
	return err
}
