package event

import (
	"context"
	"time"

	"github.com/sanosuguru/go-campus-reservation/internal/domain/transaction"
)

// OutboxStatus はアウトボックス行の配信状態
type OutboxStatus string

const (
	OutboxPending   OutboxStatus = "pending"
	OutboxPublished OutboxStatus = "published"
	OutboxDead      OutboxStatus = "dead" // 再試行上限到達。手動または定期ジョブで再投入する
)

// OutboxRecord は配信待ちのイベント
type OutboxRecord struct {
	Seq       int64
	Event     *Event
	Status    OutboxStatus
	Attempts  int
	LastError string
	// Traceparent は追記時のトレースコンテキスト（W3C 形式）
	Traceparent string
	CreatedAt   time.Time
}

// OutboxRepository はトランザクショナルアウトボックスのインターフェース
type OutboxRepository interface {
	// Save は状態変更と同じトランザクションでイベントを追記する
	Save(ctx context.Context, tx transaction.Tx, ev *Event) error

	// LockBatch は配信待ちのイベントをリース付きで確保する
	// 集約キーごとに最も古い pending 行だけを返す。リース期間中は他のリレーから取得されない
	LockBatch(ctx context.Context, relayID string, limit int, lease time.Duration) ([]*OutboxRecord, error)

	// MarkPublished は配信済みにする
	MarkPublished(ctx context.Context, seqs []int64) error

	// Release は配信を試みなかった行のリースを解放する
	Release(ctx context.Context, seqs []int64) error

	// MarkFailed は試行回数を加算し、上限に達したら dead にする
	MarkFailed(ctx context.Context, seq int64, errMsg string, maxAttempts int) (OutboxStatus, error)
}
