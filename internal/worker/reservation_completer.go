package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-campus-reservation/internal/pkg/logger"
)

const completionLockKey = "worker:reservation-completer"

// ReservationCompleter は終了時刻を過ぎた予約を完了にするインターフェース
type ReservationCompleter interface {
	CompleteElapsedReservations(ctx context.Context, now time.Time, limit int) (int, error)
}

// Lock は取得済みの分散ロック
type Lock interface {
	Release(ctx context.Context) error
	Extend(ctx context.Context, ttl time.Duration) error
}

// LockFunc は分散ロックを取得する
// 他のインスタンスが保持している場合はエラーを返す
type LockFunc func(ctx context.Context, key string, ttl time.Duration) (Lock, error)

// CompletionSweeper は終了済みの予約を定期的に完了にするワーカー
// 複数インスタンスで起動しても、ロックを取得した1台だけが処理する
type CompletionSweeper struct {
	reservationService ReservationCompleter
	lock               LockFunc
	interval           time.Duration
	batchSize          int
	lockTTL            time.Duration
	now                func() time.Time
	stopCh             chan struct{}
	doneCh             chan struct{}
}

// NewCompletionSweeper は新しいスイーパーを作成
func NewCompletionSweeper(
	rs ReservationCompleter,
	lock LockFunc,
	interval time.Duration,
	batchSize int,
	lockTTL time.Duration,
) *CompletionSweeper {
	return &CompletionSweeper{
		reservationService: rs,
		lock:               lock,
		interval:           interval,
		batchSize:          batchSize,
		lockTTL:            lockTTL,
		now:                time.Now,
		stopCh:             make(chan struct{}),
		doneCh:             make(chan struct{}),
	}
}

// Start はスイーパーを開始
func (s *CompletionSweeper) Start(ctx context.Context) {
	logger.Info("予約完了スイーパー開始",
		zap.Duration("interval", s.interval),
		zap.Int("batch_size", s.batchSize),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer close(s.doneCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("予約完了スイーパー停止（コンテキストキャンセル）")
			return
		case <-s.stopCh:
			logger.Info("予約完了スイーパー停止（シグナル受信）")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// Stop はスイーパーを停止
func (s *CompletionSweeper) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

// sweep はロックを保持している間、バッチ単位で完了処理を続ける
func (s *CompletionSweeper) sweep(ctx context.Context) int {
	log := logger.Get()

	lock, err := s.lock(ctx, completionLockKey, s.lockTTL)
	if err != nil {
		log.Debug("他のインスタンスが処理中のためスキップ", zap.Error(err))
		return 0
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			log.Warn("ロック解放に失敗", zap.Error(err))
		}
	}()

	total := 0
	for {
		count, err := s.reservationService.CompleteElapsedReservations(ctx, s.now(), s.batchSize)
		if err != nil {
			log.Error("予約の完了処理に失敗", zap.Error(err))
			break
		}
		total += count
		if count < s.batchSize {
			break
		}
		// 次のバッチに進む前にロックを延長する
		if err := lock.Extend(ctx, s.lockTTL); err != nil {
			log.Warn("ロックを失ったため中断", zap.Error(err))
			break
		}
	}

	if total > 0 {
		log.Info("終了済み予約を完了にしました", zap.Int("count", total))
	} else {
		log.Debug("完了対象の予約なし")
	}
	return total
}
