package events

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const runLockKey = "recommended:run-lock"

// releaseScript deletes the lock only while it still holds this holder's
// token. A release issued after the TTL already expired must not remove a
// successor's freshly acquired lock.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// RunLock is a Redis-backed single-flight gate for pulls. The timestamp
// check on recommended_runs is advisory only; this lock is the hard mutual
// exclusion between concurrent start attempts, including across processes.
// The TTL equals the staleness window so a crashed holder cannot block
// pulls forever.
type RunLock struct {
	rdb   *redis.Client
	ttl   time.Duration
	token string
}

// NewRunLock returns a lock whose automatic expiry matches ttl.
func NewRunLock(rdb *redis.Client, ttl time.Duration) *RunLock {
	return &RunLock{rdb: rdb, ttl: ttl}
}

func newLockToken() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

// Acquire attempts to take the lock under a fresh holder token. Returns
// false when another pull holds it.
func (l *RunLock) Acquire(ctx context.Context) (bool, error) {
	token := newLockToken()
	ok, err := l.rdb.SetNX(ctx, runLockKey, token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire run lock: %w", err)
	}
	if ok {
		l.token = token
	}
	return ok, nil
}

// Release frees the lock if this holder still owns it. Safe to call when
// the lock already expired or was taken over.
func (l *RunLock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.rdb, []string{runLockKey}, l.token).Err(); err != nil {
		return fmt.Errorf("release run lock: %w", err)
	}
	return nil
}
