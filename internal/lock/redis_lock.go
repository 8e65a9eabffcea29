package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-pay-settlement/internal/logger"
	"github.com/golang-pay-settlement/internal/utils"
	"go.uber.org/zap"
)

// releaseScript 只有持有者才能删除锁
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// Handle 已获取的锁
type Handle struct {
	Key   string
	Value string
}

// RedisLocker 基于 SET NX EX 的非阻塞咨询锁
type RedisLocker struct {
	rdb *redis.Client
}

// NewRedisLocker 创建 Redis 锁
func NewRedisLocker(rdb *redis.Client) *RedisLocker {
	return &RedisLocker{rdb: rdb}
}

// TryAcquire 尝试获取锁，不等待；已被占用时返回 (nil, nil)
func (l *RedisLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (*Handle, error) {
	value := utils.GenerateNonce()
	ok, err := l.rdb.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("获取锁失败 [%s]: %w", key, err)
	}
	if !ok {
		logger.Logger.Debug("锁已被占用", zap.String("key", key))
		return nil, nil
	}
	logger.Logger.Debug("获取锁成功", zap.String("key", key), zap.Duration("ttl", ttl))
	return &Handle{Key: key, Value: value}, nil
}

// Release 释放锁，锁已过期或被他人持有时不做任何事
func (l *RedisLocker) Release(ctx context.Context, h *Handle) error {
	if h == nil {
		return nil
	}
	if err := l.rdb.Eval(ctx, releaseScript, []string{h.Key}, h.Value).Err(); err != nil {
		return fmt.Errorf("释放锁失败 [%s]: %w", h.Key, err)
	}
	return nil
}
