// Package redis provides a cross-process case lock on top of Redis SET NX PX.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"

	"github.com/garyjia/discharge-planner/internal/application/port"
)

// ErrLockLost is returned by unlock when the key expired or was taken over
var ErrLockLost = errors.New("case lock no longer held")

const (
	defaultTTL          = 30 * time.Second
	defaultPollInterval = 50 * time.Millisecond
)

var unlockScript = backend.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// Locker implements port.CaseLocker
type Locker struct {
	client       backend.UniversalClient
	prefix       string
	ttl          time.Duration
	pollInterval time.Duration
}

// Option configures a Locker
type Option func(*Locker)

// WithTTL sets how long a held lock survives without being released
func WithTTL(ttl time.Duration) Option {
	return func(l *Locker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithPollInterval sets the wait between acquisition attempts
func WithPollInterval(d time.Duration) Option {
	return func(l *Locker) {
		if d > 0 {
			l.pollInterval = d
		}
	}
}

// NewLocker creates a locker whose keys look like <prefix>lock:<tenant>/<case>
func NewLocker(client backend.UniversalClient, prefix string, opts ...Option) *Locker {
	l := &Locker{
		client:       client,
		prefix:       prefix,
		ttl:          defaultTTL,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Locker) key(tenantID, caseID string) string {
	return l.prefix + "lock:" + tenantID + "/" + caseID
}

// Lock blocks until the case lock is acquired or ctx is done
func (l *Locker) Lock(ctx context.Context, tenantID, caseID string) (func(context.Context) error, error) {
	lockKey := l.key(tenantID, caseID)
	token := uuid.NewString()

	acquired, err := l.tryAcquire(ctx, lockKey, token)
	if err != nil {
		return nil, err
	}

	if !acquired {
		ticker := time.NewTicker(l.pollInterval)
		defer ticker.Stop()

		for !acquired {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-ticker.C:
				acquired, err = l.tryAcquire(ctx, lockKey, token)
				if err != nil {
					return nil, err
				}
			}
		}
	}

	return func(ctx context.Context) error {
		n, err := unlockScript.Run(ctx, l.client, []string{lockKey}, token).Int64()
		if err != nil {
			return fmt.Errorf("failed to release case lock %s: %w", lockKey, err)
		}
		if n == 0 {
			return ErrLockLost
		}
		return nil
	}, nil
}

func (l *Locker) tryAcquire(ctx context.Context, lockKey, token string) (bool, error) {
	ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire case lock %s: %w", lockKey, err)
	}
	return ok, nil
}

var _ port.CaseLocker = (*Locker)(nil)
