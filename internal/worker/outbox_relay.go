package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-campus-reservation/internal/domain/event"
	"github.com/sanosuguru/go-campus-reservation/internal/pkg/breaker"
	"github.com/sanosuguru/go-campus-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-campus-reservation/internal/pkg/metrics"
)

// Publisher はイベントをブローカーに配信する
type Publisher interface {
	Publish(ctx context.Context, rec *event.OutboxRecord) error
}

// RelayConfig はアウトボックスリレーの設定
type RelayConfig struct {
	RelayID      string
	PollInterval time.Duration
	BatchSize    int
	Lease        time.Duration
	MaxAttempts  int
}

// OutboxRelay はアウトボックスに溜まったイベントを配信するワーカー
// 配信後に送信済みへ更新するまでの間に落ちた場合は再送されるため、配信は at-least-once になる
type OutboxRelay struct {
	outbox    event.OutboxRepository
	publisher Publisher
	cfg       RelayConfig
	metrics   *metrics.Metrics
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewOutboxRelay は新しいリレーを作成
func NewOutboxRelay(ob event.OutboxRepository, p Publisher, cfg RelayConfig, m *metrics.Metrics) *OutboxRelay {
	return &OutboxRelay{
		outbox:    ob,
		publisher: p,
		cfg:       cfg,
		metrics:   m,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start はリレーを開始
func (r *OutboxRelay) Start(ctx context.Context) {
	logger.Info("アウトボックスリレー開始",
		zap.String("relay_id", r.cfg.RelayID),
		zap.Duration("interval", r.cfg.PollInterval),
		zap.Int("batch_size", r.cfg.BatchSize),
	)

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()
	defer close(r.doneCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("アウトボックスリレー停止（コンテキストキャンセル）")
			return
		case <-r.stopCh:
			logger.Info("アウトボックスリレー停止（シグナル受信）")
			return
		case <-ticker.C:
			r.drain(ctx)
		}
	}
}

// Stop はリレーを停止
func (r *OutboxRelay) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

// drain は失敗なく配信が進む間、続けてバッチを取得する
// 先行行が配信済みになると同じ集約の後続行が取得対象になる
func (r *OutboxRelay) drain(ctx context.Context) {
	for {
		n, more, err := r.relay(ctx)
		if err != nil {
			logger.Error("アウトボックスの配信に失敗", zap.Error(err))
			return
		}
		if !more || n == 0 || ctx.Err() != nil {
			return
		}
	}
}

// relay は1バッチ分を配信し、配信できた件数を返す
// more はバッチ内に失敗がなく、続けて取得してよいことを表す
// 同じ集約のイベントが先に失敗した場合、後続は配信せずリースを解放する
func (r *OutboxRelay) relay(ctx context.Context) (published int, more bool, err error) {
	records, err := r.outbox.LockBatch(ctx, r.cfg.RelayID, r.cfg.BatchSize, r.cfg.Lease)
	if err != nil {
		return 0, false, err
	}

	var sent, skipped []int64
	blocked := make(map[string]bool)
	halted := false
	for _, rec := range records {
		ev := rec.Event
		key := ev.Key()
		if halted || blocked[key] {
			skipped = append(skipped, rec.Seq)
			continue
		}

		pubErr := r.publisher.Publish(ctx, rec)
		if pubErr == nil {
			sent = append(sent, rec.Seq)
			r.metrics.ObservePublish(string(ev.Type), "published")
			continue
		}

		blocked[key] = true
		if errors.Is(pubErr, breaker.ErrOpen) {
			// ブレーカーが開いている間は試行回数を消費しない
			r.metrics.ObservePublish(string(ev.Type), "circuit_open")
			logger.Warn("ブレーカーが開いているため配信を中断", zap.Int64("seq", rec.Seq))
			skipped = append(skipped, rec.Seq)
			halted = true
			continue
		}
		r.markFailed(ctx, rec, pubErr)
	}

	if len(sent) > 0 {
		if err := r.outbox.MarkPublished(ctx, sent); err != nil {
			return 0, false, err
		}
	}
	if len(skipped) > 0 {
		if err := r.outbox.Release(ctx, skipped); err != nil {
			logger.Warn("リースの解放に失敗", zap.Int64s("seqs", skipped), zap.Error(err))
		}
	}
	return len(sent), len(blocked) == 0, nil
}

func (r *OutboxRelay) markFailed(ctx context.Context, rec *event.OutboxRecord, pubErr error) {
	ev := rec.Event
	status, err := r.outbox.MarkFailed(ctx, rec.Seq, pubErr.Error(), r.cfg.MaxAttempts)
	if err != nil {
		logger.Error("配信失敗の記録に失敗", zap.Int64("seq", rec.Seq), zap.Error(err))
		return
	}
	if status == event.OutboxDead {
		r.metrics.ObservePublish(string(ev.Type), "dead")
		logger.Error("再試行の上限に達したイベントを dead にしました",
			zap.Int64("seq", rec.Seq),
			zap.String("event_id", ev.ID),
			zap.String("type", string(ev.Type)),
			zap.Int("attempts", rec.Attempts+1),
			zap.Error(pubErr),
		)
		return
	}
	r.metrics.ObservePublish(string(ev.Type), "failed")
	logger.Warn("イベントの配信に失敗", zap.Int64("seq", rec.Seq), zap.String("event_id", ev.ID), zap.Error(pubErr))
}
