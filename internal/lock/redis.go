package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lease taken over by another holder is left alone.
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// renewScript extends the lease only while it still holds our token.
var renewScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('PEXPIRE', KEYS[1], ARGV[2])
	end
	return 0
`)

// RedisOptions tunes a RedisLocker.
type RedisOptions struct {
	// TTL is the lease length. The lease is renewed every TTL/3 while held,
	// so a holder that dies releases after at most TTL.
	TTL time.Duration
	// Retry is the pause between acquisition attempts.
	Retry time.Duration
	// Prefix namespaces the keys.
	Prefix string
}

// RedisLocker is a Locker shared by every process using the same Redis.
type RedisLocker struct {
	client redis.UniversalClient
	opts   RedisOptions
}

// NewRedisLocker builds a locker on client.
func NewRedisLocker(client redis.UniversalClient, opts RedisOptions) *RedisLocker {
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Second
	}
	if opts.Retry <= 0 {
		opts.Retry = 25 * time.Millisecond
	}
	if opts.Prefix == "" {
		opts.Prefix = "labs:lock:"
	}
	return &RedisLocker{client: client, opts: opts}
}

// Lock polls SET NX PX until it wins or ctx is done. Callers must bound ctx.
func (l *RedisLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	redisKey := l.opts.Prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.opts.Retry)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.opts.TTL).Result()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, ErrLockTimeout
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	stop := keepAlive(l.opts.TTL/3, func(ctx context.Context) (bool, error) {
		n, err := renewScript.Run(ctx, l.client, []string{redisKey}, token, l.opts.TTL.Milliseconds()).Int()
		return n == 1, err
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			stop()
			// The caller's context may already be cancelled; release on a fresh one.
			releaseCtx, cancel := context.WithTimeout(context.Background(), l.opts.TTL)
			defer cancel()
			_ = releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err()
		})
	}, nil
}

// keepAlive calls renew every interval until the returned stop is called or
// renew reports the lease lost. Transient errors are retried on the next tick.
// stop waits for the loop to exit.
func keepAlive(interval time.Duration, renew func(ctx context.Context) (bool, error)) (stop func()) {
	interval = max(interval, time.Millisecond)
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), interval)
				held, err := renew(ctx)
				cancel()
				if err == nil && !held {
					return
				}
			}
		}
	}()
	return func() {
		close(done)
		<-exited
	}
}
