package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// scheduleTTL bounds staleness for cached doctor schedules. Every write
// path also invalidates explicitly, so the TTL only covers missed
// invalidations.
const scheduleTTL = 5 * time.Minute

// ScheduleCache caches a doctor's day schedule as serialized JSON, keyed
// by doctor and date. Invalidate removes every cached day for a doctor.
type ScheduleCache interface {
	Get(ctx context.Context, doctorID, date string) ([]byte, bool, error)
	Set(ctx context.Context, doctorID, date string, data []byte) error
	Invalidate(ctx context.Context, doctorID string) error
}

// RedisScheduleCache backs the schedule cache with Redis. Day entries are
// plain keys; a per-doctor set tracks them so invalidation can delete all
// days at once.
type RedisScheduleCache struct {
	client *redis.Client
}

func NewRedisScheduleCache(client *redis.Client) *RedisScheduleCache {
	return &RedisScheduleCache{client: client}
}

func scheduleKey(doctorID, date string) string {
	return fmt.Sprintf("schedule:%s:%s", doctorID, date)
}

func scheduleIndexKey(doctorID string) string {
	return "schedule_days:" + doctorID
}

func (c *RedisScheduleCache) Get(ctx context.Context, doctorID, date string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, scheduleKey(doctorID, date)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get schedule: %w", err)
	}
	return data, true, nil
}

func (c *RedisScheduleCache) Set(ctx context.Context, doctorID, date string, data []byte) error {
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, scheduleKey(doctorID, date), data, scheduleTTL)
	pipe.SAdd(ctx, scheduleIndexKey(doctorID), date)
	pipe.Expire(ctx, scheduleIndexKey(doctorID), scheduleTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set schedule: %w", err)
	}
	return nil
}

func (c *RedisScheduleCache) Invalidate(ctx context.Context, doctorID string) error {
	days, err := c.client.SMembers(ctx, scheduleIndexKey(doctorID)).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("invalidate schedule: %w", err)
	}

	keys := make([]string, 0, len(days)+1)
	for _, d := range days {
		keys = append(keys, scheduleKey(doctorID, d))
	}
	keys = append(keys, scheduleIndexKey(doctorID))
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate schedule: %w", err)
	}
	return nil
}

// MemoryScheduleCache is the in-process fallback for deployments without
// Redis.
type MemoryScheduleCache struct {
	mu      sync.RWMutex
	entries map[string]memoryScheduleEntry
	now     func() time.Time
}

type memoryScheduleEntry struct {
	doctorID  string
	data      []byte
	expiresAt time.Time
}

func NewMemoryScheduleCache() *MemoryScheduleCache {
	return &MemoryScheduleCache{
		entries: make(map[string]memoryScheduleEntry),
		now:     time.Now,
	}
}

func (c *MemoryScheduleCache) Get(_ context.Context, doctorID, date string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[scheduleKey(doctorID, date)]
	if !ok || c.now().After(entry.expiresAt) {
		return nil, false, nil
	}
	return entry.data, true, nil
}

func (c *MemoryScheduleCache) Set(_ context.Context, doctorID, date string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[scheduleKey(doctorID, date)] = memoryScheduleEntry{
		doctorID:  doctorID,
		data:      data,
		expiresAt: c.now().Add(scheduleTTL),
	}
	return nil
}

func (c *MemoryScheduleCache) Invalidate(_ context.Context, doctorID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.entries {
		if entry.doctorID == doctorID {
			delete(c.entries, key)
		}
	}
	return nil
}
