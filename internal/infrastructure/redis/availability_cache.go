package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// AvailabilityCache はリソースの空き数をキャッシュする
// 台帳への書き込み後は必ず無効化されるため、値は最大でも TTL 分だけ古い
type AvailabilityCache struct {
	client *redis.Client
}

func NewAvailabilityCache(client *redis.Client) *AvailabilityCache {
	return &AvailabilityCache{client: client}
}

// GetAvailable はキャッシュされた空き数を返す
// キャッシュにない場合は found=false でエラーは返さない
func (c *AvailabilityCache) GetAvailable(ctx context.Context, resourceID string) (int, bool, error) {
	val, err := c.client.Get(ctx, availableKey(resourceID)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("キャッシュ取得に失敗: %w", err)
	}
	return val, true, nil
}

func (c *AvailabilityCache) SetAvailable(ctx context.Context, resourceID string, count int, ttl time.Duration) error {
	if err := c.client.Set(ctx, availableKey(resourceID), count, ttl).Err(); err != nil {
		return fmt.Errorf("キャッシュ保存に失敗: %w", err)
	}
	return nil
}

func (c *AvailabilityCache) Invalidate(ctx context.Context, resourceID string) error {
	if err := c.client.Del(ctx, availableKey(resourceID)).Err(); err != nil {
		return fmt.Errorf("キャッシュ無効化に失敗: %w", err)
	}
	return nil
}

func availableKey(resourceID string) string {
	return fmt.Sprintf("resources:available:%s", resourceID)
}
