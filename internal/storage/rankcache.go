package storage

import (
	"context"
	"os"
	"strconv"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RankCache caches the expensive "count of players rated above X"
// leaderboard-position lookup C3's Apex promotion check performs on every
// completed ranked match. Grounded on the teacher's data/cache.Cache:
// redis-backed when REDIS_ADDR is set, an in-process map otherwise, same
// fallback shape.
type RankCache interface {
	Get(rating int) (count int, ok bool)
	Set(rating, count int, ttl time.Duration)
}

// NewRankCacheAuto picks a redis-backed cache when addr is non-empty,
// otherwise an in-process memory cache.
func NewRankCacheAuto(addr string) RankCache {
	if addr != "" {
		return &redisRankCache{client: redis.NewClient(&redis.Options{Addr: addr})}
	}
	return NewMemoryRankCache()
}

type memoryRankCache struct {
	mu sync.Mutex
	m  map[int]rankEntry
}

type rankEntry struct {
	count int
	exp   time.Time
}

// NewMemoryRankCache builds the in-process fallback.
func NewMemoryRankCache() RankCache {
	return &memoryRankCache{m: make(map[int]rankEntry)}
}

func (c *memoryRankCache) Get(rating int) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[rating]
	if !ok || (!e.exp.IsZero() && time.Now().After(e.exp)) {
		return 0, false
	}
	return e.count, true
}

func (c *memoryRankCache) Set(rating, count int, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := rankEntry{count: count}
	if ttl > 0 {
		e.exp = time.Now().Add(ttl)
	}
	c.m[rating] = e
}

type redisRankCache struct{ client *redis.Client }

func (c *redisRankCache) key(rating int) string {
	return "velotype:rank-above:" + strconv.Itoa(rating)
}

func (c *redisRankCache) Get(rating int) (int, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	v, err := c.client.Get(ctx, c.key(rating)).Int()
	if err != nil {
		return 0, false
	}
	return v, true
}

func (c *redisRankCache) Set(rating, count int, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_ = c.client.Set(ctx, c.key(rating), count, ttl).Err()
}

// RankCacheAddrFromEnv reads REDIS_ADDR, the same variable name the
// teacher's cache.NewAuto checks.
func RankCacheAddrFromEnv() string {
	return os.Getenv("REDIS_ADDR")
}
