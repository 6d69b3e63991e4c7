package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"NewsShorts/internal/ports"
)

// RedisLedger keeps the keyword ledger in Redis with keys expiring after the day ends.
type RedisLedger struct {
	client *redis.Client
	prefix string
}

var _ ports.KeywordLedger = (*RedisLedger)(nil)

// NewRedisLedger connects to addr and pings it once.
func NewRedisLedger(ctx context.Context, addr, password string, db int) (*RedisLedger, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &RedisLedger{client: client, prefix: "newsshorts:keyword"}, nil
}

// SeenToday reports whether key was marked on day.
func (r *RedisLedger) SeenToday(ctx context.Context, key string, day time.Time) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(key, day)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

// Mark records key for day until the day is over.
func (r *RedisLedger) Mark(ctx context.Context, key string, day time.Time) error {
	if err := r.client.SetNX(ctx, r.key(key, day), 1, ttlUntilDayEnd(day, time.Now())).Err(); err != nil {
		return fmt.Errorf("redis setnx: %w", err)
	}
	return nil
}

// Close releases the client.
func (r *RedisLedger) Close() error {
	return r.client.Close()
}

func (r *RedisLedger) key(key string, day time.Time) string {
	return r.prefix + ":" + day.Format(dayLayout) + ":" + key
}

// ttlUntilDayEnd keeps marks for the rest of day plus an hour of slack.
func ttlUntilDayEnd(day, now time.Time) time.Duration {
	y, m, d := day.Date()
	end := time.Date(y, m, d, 0, 0, 0, 0, day.Location()).AddDate(0, 0, 1)
	ttl := end.Sub(now) + time.Hour
	if ttl < time.Hour {
		ttl = time.Hour
	}
	return ttl
}
