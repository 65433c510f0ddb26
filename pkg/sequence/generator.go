package sequence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

var Module = fx.Module("sequence",
	fx.Provide(NewRedisGenerator),
)

// Generator hands out human-readable codes backed by redis counters.
// Codes are operator-facing references; snowflake IDs remain the keys.
type Generator interface {
	NextAccountCode(ctx context.Context) (string, error)
	NextWithdrawalCode(ctx context.Context, accountID string) (string, error)
}

type RedisGenerator struct {
	rdb *redis.Client
}

type Params struct {
	fx.In

	Redis *redis.Client
}

func NewRedisGenerator(p Params) Generator {
	return &RedisGenerator{
		rdb: p.Redis,
	}
}

func (g *RedisGenerator) NextAccountCode(ctx context.Context) (string, error) {
	seq, err := g.rdb.Incr(ctx, "seq:account").Result()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("A%04d", seq), nil
}

// NextWithdrawalCode returns a per-account, per-day sequence such as
// WTD-20260901-000003. The counter key expires after 48h.
func (g *RedisGenerator) NextWithdrawalCode(ctx context.Context, accountID string) (string, error) {
	day := time.Now().UTC().Format("20060102")
	key := fmt.Sprintf("seq:withdrawal:%s:%s", accountID, day)

	seq, err := g.rdb.Incr(ctx, key).Result()
	if err != nil {
		return "", err
	}
	if seq == 1 {
		g.rdb.Expire(ctx, key, 48*time.Hour)
	}

	return fmt.Sprintf("WTD-%s-%06d", day, seq), nil
}
