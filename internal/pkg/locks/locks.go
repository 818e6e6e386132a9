package locks

import (
	"context"
	"log"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

const lockExpiry = 30 * time.Second

// Locker hands out short-lived distributed mutexes keyed by name. A lock is
// tried exactly once; a busy lock means the same operation is already running
// elsewhere and the caller should back off instead of queueing.
type Locker struct {
	rs *redsync.Redsync
}

// New creates a Locker backed by the given Redis client.
func New(client *redis.Client) *Locker {
	pool := goredis.NewPool(client)
	return &Locker{rs: redsync.New(pool)}
}

// Acquire takes the named lock. The returned release func must be called when
// the guarded section is done; unlock failures are logged, not returned, since
// the expiry bounds the damage.
func (l *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	mutex := l.rs.NewMutex(
		key,
		redsync.WithExpiry(lockExpiry),
		redsync.WithTries(1),
	)
	if err := mutex.LockContext(ctx); err != nil {
		return nil, err
	}
	release := func() {
		if _, err := mutex.UnlockContext(ctx); err != nil {
			log.Printf("failed to release lock %s: %v", key, err)
		}
	}
	return release, nil
}
