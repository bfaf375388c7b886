package reservation

import (
	"context"
	"time"

	"github.com/sanosuguru/go-campus-reservation/internal/domain/transaction"
)

// Repository は予約リポジトリのインターフェース
type Repository interface {
	// Create は新しい予約を作成する（トランザクション必須）
	Create(ctx context.Context, tx transaction.Tx, reservation *Reservation) error

	// GetByID はIDから予約を取得する
	GetByID(ctx context.Context, id string) (*Reservation, error)

	// GetByRequesterID は予約者IDから予約一覧を取得する
	GetByRequesterID(ctx context.Context, requesterID string, limit, offset int) ([]*Reservation, error)

	// GetByResourceID はリソースIDから予約一覧を取得する
	GetByResourceID(ctx context.Context, resourceID string, limit, offset int) ([]*Reservation, error)

	// GetUpcomingByRequesterID は予約者の開始前の有効な時間枠予約を開始時刻順に取得する
	GetUpcomingByRequesterID(ctx context.Context, requesterID string, now time.Time, limit int) ([]*Reservation, error)

	// GetActiveByResourceID はリソースを占有中（pending / confirmed）の予約を取得する
	GetActiveByResourceID(ctx context.Context, resourceID string) ([]*Reservation, error)

	// Update は予約の状態を条件付きで更新する（楽観的ロック、トランザクション必須）
	// 読み取り時の Version と一致しない場合は transaction.ErrConcurrentModification を返す
	Update(ctx context.Context, tx transaction.Tx, reservation *Reservation) error

	// GetElapsedConfirmed は終了時刻を過ぎた確定済みの時間枠予約を取得する
	GetElapsedConfirmed(ctx context.Context, now time.Time, limit int) ([]*Reservation, error)
}
