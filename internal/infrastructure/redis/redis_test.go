package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sanosuguru/go-campus-reservation/internal/config"
)

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	client, err := Connect(ctx, &config.RedisConfig{Host: "localhost", Port: "6379"})
	if err != nil {
		t.Skip("Redis not available")
	}
	t.Cleanup(func() { client.Close() })
	return client
}
