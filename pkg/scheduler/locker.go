package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const (
	DefaultLockKey = "relay:poller:lock"
	DefaultLockTTL = 5 * time.Minute
)

var ErrLockHeld = errors.New("poller lock is held by another worker")

// Release gives a lock back. It is safe to call after the lock expired.
type Release func(ctx context.Context) error

// Locker serializes poll ticks across workers.
type Locker interface {
	// Acquire returns ErrLockHeld when another holder owns the lock.
	Acquire(ctx context.Context) (Release, error)
}

// NoopLocker always succeeds. It fits a single worker deployment.
type NoopLocker struct{}

func (NoopLocker) Acquire(context.Context) (Release, error) {
	return func(context.Context) error { return nil }, nil
}

// unlockScript deletes the key only while it still holds our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisLocker connects to the redis server at url (redis://...) and checks it answers.
func NewRedisLocker(ctx context.Context, url string, logger *slog.Logger) (*RedisLocker, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = client.Ping(pingCtx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.InfoContext(ctx, "Connected to Redis", "addr", options.Addr, "db", options.DB)

	return NewRedisLockerWithClient(client, DefaultLockKey, DefaultLockTTL, logger), nil
}

func NewRedisLockerWithClient(client redis.UniversalClient, key string, ttl time.Duration, logger *slog.Logger) *RedisLocker {
	return &RedisLocker{
		client: client,
		key:    key,
		ttl:    ttl,
		logger: logger.With("module", "redis_locker", "key", key),
	}
}

func (l *RedisLocker) Acquire(ctx context.Context) (Release, error) {
	token := uuid.NewString()

	acquired, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}

	if !acquired {
		return nil, ErrLockHeld
	}

	return func(ctx context.Context) error {
		err := unlockScript.Run(ctx, l.client, []string{l.key}, token).Err()
		if err != nil {
			return fmt.Errorf("failed to release lock: %w", err)
		}

		return nil
	}, nil
}

func (l *RedisLocker) Close() error {
	return l.client.Close()
}
