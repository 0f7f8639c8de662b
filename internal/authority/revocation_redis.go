package authority

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisRevocationPrefix = "revoked:at:"

// RedisRevocations stores revocation entries as Redis keys whose TTL equals
// the remaining token lifetime, so Redis expires entries exactly when the
// token they block dies.
type RedisRevocations struct {
	client *redis.Client
}

func NewRedisRevocations(client *redis.Client) *RedisRevocations {
	return &RedisRevocations{client: client}
}

func (s *RedisRevocations) Add(ctx context.Context, tokenHash string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		// token already expired, nothing to block
		return nil
	}
	return s.client.Set(ctx, redisRevocationPrefix+tokenHash, "1", ttl).Err()
}

func (s *RedisRevocations) Contains(ctx context.Context, tokenHash string) (bool, error) {
	n, err := s.client.Exists(ctx, redisRevocationPrefix+tokenHash).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Prune is a no-op: key TTLs already bound entry lifetimes.
func (s *RedisRevocations) Prune(ctx context.Context, now time.Time) error {
	return nil
}
