package cache

import (
	"context"
	"sync"
	"time"
)

// RunLock 回算任务互斥锁。
// Redis 可用时使用 SetNX 做跨实例互斥，否则退化为进程内互斥。
type RunLock struct {
	key string
	ttl time.Duration

	mu     sync.Mutex
	locked bool
}

// NewRunLock 创建回算互斥锁
func NewRunLock(key string, ttl time.Duration) *RunLock {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RunLock{key: key, ttl: ttl}
}

// TryAcquire 尝试获取锁，已被占用时返回 false
func (l *RunLock) TryAcquire(ctx context.Context) (bool, error) {
	if Enabled() {
		return redisClient.SetNX(ctx, buildKey(l.key), "1", l.ttl).Result()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locked {
		return false, nil
	}
	l.locked = true
	return true, nil
}

// Release 释放锁
func (l *RunLock) Release(ctx context.Context) error {
	if Enabled() {
		return redisClient.Del(ctx, buildKey(l.key)).Err()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.locked = false
	return nil
}
