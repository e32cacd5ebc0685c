package calendar

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Gate decides whether an inbound sync for a date should run now. It lets
// several server instances share one sync per date and TTL window.
type Gate interface {
	Acquire(ctx context.Context, date string) (bool, error)
	// Release reopens date after a failed sync.
	Release(ctx context.Context, date string) error
}

// AlwaysGate lets every sync through.
type AlwaysGate struct{}

func (AlwaysGate) Acquire(context.Context, string) (bool, error) { return true, nil }

func (AlwaysGate) Release(context.Context, string) error { return nil }

type RedisGate struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisGate(client *redis.Client, ttl time.Duration) *RedisGate {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisGate{client: client, ttl: ttl}
}

func gateKey(date string) string {
	return "consultorio:sync:" + date
}

func (g *RedisGate) Acquire(ctx context.Context, date string) (bool, error) {
	return g.client.SetNX(ctx, gateKey(date), time.Now().UTC().Format(time.RFC3339), g.ttl).Result()
}

func (g *RedisGate) Release(ctx context.Context, date string) error {
	return g.client.Del(ctx, gateKey(date)).Err()
}
