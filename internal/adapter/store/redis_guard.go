package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"procurement-core/internal/domain/entity"
	"procurement-core/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// luaReleaseIfMatch deletes the key only while it still holds our token,
// so an expired claim re-taken by another replica is left alone.
const luaReleaseIfMatch = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`

// RedisGuard provides the proposal claims and the mailbox scan lease on top of SET NX.
type RedisGuard struct {
	client   *redis.Client
	prefix   string
	owner    string
	claimTTL time.Duration
}

func NewRedisGuard(client *redis.Client, prefix string, claimTTL time.Duration) *RedisGuard {
	if prefix == "" {
		prefix = "procurement"
	}
	if claimTTL <= 0 {
		claimTTL = 2 * time.Minute
	}
	return &RedisGuard{
		client:   client,
		prefix:   prefix,
		owner:    uuid.NewString(),
		claimTTL: claimTTL,
	}
}

func (g *RedisGuard) claimKey(requestID, vendorID string) string {
	return fmt.Sprintf("%s:proposal:claim:%s:%s", g.prefix, requestID, vendorID)
}

func (g *RedisGuard) leaseKey() string {
	return g.prefix + ":mailbox:scan"
}

func (g *RedisGuard) Claim(ctx context.Context, requestID, vendorID string) (bool, error) {
	return g.client.SetNX(ctx, g.claimKey(requestID, vendorID), g.owner, g.claimTTL).Result()
}

func (g *RedisGuard) Release(ctx context.Context, requestID, vendorID string) error {
	return g.client.Eval(ctx, luaReleaseIfMatch, []string{g.claimKey(requestID, vendorID)}, g.owner).Err()
}

// luaExtendIfMatch pushes the expiry out only while the key still holds our token.
const luaExtendIfMatch = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`

// Acquire takes the scan lease for ttl.
func (g *RedisGuard) Acquire(ctx context.Context, ttl time.Duration) (repository.Lease, bool, error) {
	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, g.leaseKey(), token, ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}
	return &redisLease{client: g.client, key: g.leaseKey(), token: token}, true, nil
}

type redisLease struct {
	client *redis.Client
	key    string
	token  string
}

func (l *redisLease) Extend(ctx context.Context, ttl time.Duration) error {
	n, err := l.client.Eval(ctx, luaExtendIfMatch, []string{l.key}, l.token, ttl.Milliseconds()).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return entity.ErrScanLeaseLost
	}
	return nil
}

func (l *redisLease) Release() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.client.Eval(ctx, luaReleaseIfMatch, []string{l.key}, l.token).Err(); err != nil {
		log.Printf("[POLLER] release scan lease: %v", err)
	}
}

func (g *RedisGuard) Ping(ctx context.Context) error {
	return g.client.Ping(ctx).Err()
}
