package cardlock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only when it still holds our token.
// KEYS[1] = lock key
// ARGV[1] = token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// ErrLockTimeout is returned when a Redis lock could not be acquired before ctx expired.
var ErrLockTimeout = errors.New("cardlock: timed out waiting for lock")

// RedisConfig configures the distributed locker.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// TTL bounds how long a crashed holder can keep a key.
	TTL time.Duration
	// RetryInterval is the pause between SET NX attempts.
	RetryInterval time.Duration
	Prefix        string
}

// Redis is a best-effort distributed lock built on SET NX PX with a random
// token and a compare-and-delete release.
type Redis struct {
	client   redis.UniversalClient
	ttl      time.Duration
	interval time.Duration
	prefix   string
	newToken func() string
}

// NewRedis constructs a Redis locker with its own client.
func NewRedis(cfg RedisConfig) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisWithClient(client, cfg)
}

// NewRedisWithClient constructs a Redis locker around an existing client.
func NewRedisWithClient(client redis.UniversalClient, cfg RedisConfig) *Redis {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 25 * time.Millisecond
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "access-compliance:lock:"
	}
	return &Redis{
		client:   client,
		ttl:      cfg.TTL,
		interval: cfg.RetryInterval,
		prefix:   cfg.Prefix,
		newToken: func() string { return uuid.NewString() },
	}
}

// Ping verifies connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the client.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Lock implements Locker.
func (r *Redis) Lock(ctx context.Context, keys ...string) (func(), error) {
	ordered := normalizeKeys(keys)
	token := r.newToken()
	held := make([]string, 0, len(ordered))

	release := func() {
		// Release must still run after the caller's context is gone.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.ttl)
		defer cancel()
		for i := len(held) - 1; i >= 0; i-- {
			_ = releaseScript.Run(releaseCtx, r.client, []string{held[i]}, token).Err()
		}
	}

	for _, key := range ordered {
		redisKey := r.prefix + key
		if err := r.acquire(ctx, redisKey, token); err != nil {
			release()
			return nil, err
		}
		held = append(held, redisKey)
	}

	var once sync.Once
	return func() { once.Do(release) }, nil
}

func (r *Redis) acquire(ctx context.Context, key, token string) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("%w: %s: %v", ErrLockTimeout, key, ctxErr)
			}
			return fmt.Errorf("cardlock: redis set %s: %w", key, err)
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s: %v", ErrLockTimeout, key, ctx.Err())
		case <-ticker.C:
		}
	}
}
