package application

import (
	"context"
	"time"
)

// AvailabilityCache は空き数のキャッシュ
// 取得失敗は致命的ではなく、台帳から読み直す
type AvailabilityCache interface {
	GetAvailable(ctx context.Context, resourceID string) (count int, found bool, err error)
	SetAvailable(ctx context.Context, resourceID string, count int, ttl time.Duration) error
	Invalidate(ctx context.Context, resourceID string) error
}
