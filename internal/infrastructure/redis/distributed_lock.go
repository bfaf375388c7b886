package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sanosuguru/go-campus-reservation/internal/pkg/metrics"
)

var (
	ErrLockNotAcquired = errors.New("ロックを取得できませんでした")
	ErrLockNotOwned    = errors.New("ロックの所有者ではありません")
)

// 所有者確認と削除をアトミックに実行する
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

var extendScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("PEXPIRE", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// DistributedLock は Redis を使用した分散ロック
// 複数インスタンスで定期処理が重複実行されないようにするために使う
type DistributedLock struct {
	client *redis.Client
	key    string
	value  string
}

// LockManager は分散ロックを管理する
type LockManager struct {
	client  *redis.Client
	metrics *metrics.Metrics
}

func NewLockManager(client *redis.Client, m *metrics.Metrics) *LockManager {
	return &LockManager{client: client, metrics: m}
}

// AcquireLock はロックを取得する
// 他のインスタンスが保持している場合は ErrLockNotAcquired を返す
func (m *LockManager) AcquireLock(ctx context.Context, key string, ttl time.Duration) (*DistributedLock, error) {
	start := time.Now()
	lockKey := fmt.Sprintf("lock:%s", key)
	lockValue := uuid.New().String()

	// SetNX を使用してロックを取得（キーが存在しない場合のみ設定）
	ok, err := m.client.SetNX(ctx, lockKey, lockValue, ttl).Result()
	if err != nil {
		m.metrics.ObserveLock("acquire", "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("ロック取得に失敗: %w", err)
	}
	if !ok {
		m.metrics.ObserveLock("acquire", "contended", time.Since(start).Seconds())
		return nil, ErrLockNotAcquired
	}
	m.metrics.ObserveLock("acquire", "acquired", time.Since(start).Seconds())

	return &DistributedLock{
		client: m.client,
		key:    lockKey,
		value:  lockValue,
	}, nil
}

// Release はロックを解放する
func (l *DistributedLock) Release(ctx context.Context) error {
	result, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.value).Int()
	if err != nil {
		return fmt.Errorf("ロック解放に失敗: %w", err)
	}
	if result == 0 {
		return ErrLockNotOwned
	}
	return nil
}

// Extend はロックの有効期限を延長する
func (l *DistributedLock) Extend(ctx context.Context, ttl time.Duration) error {
	result, err := extendScript.Run(ctx, l.client, []string{l.key}, l.value, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("ロック延長に失敗: %w", err)
	}
	if result == 0 {
		return ErrLockNotOwned
	}
	return nil
}

