package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"StudySync/internal/clock"
)

// ledgerTTL bounds how long a claimed occurrence is remembered. Keys carry the date so a
// day is plenty; the extra day covers clock skew around midnight.
const ledgerTTL = 48 * time.Hour

// Ledger records which class occurrences were already notified.
// Claim returns true exactly once per key until the key is released.
type Ledger interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// OccurrenceKey identifies one notification kind for one class on one day.
func OccurrenceKey(userID, entryID, kind string, day time.Time) string {
	return fmt.Sprintf("%s|%s|%s|%s", userID, entryID, kind, day.Format("2006-01-02"))
}

// MemoryLedger is a process-local Ledger.
type MemoryLedger struct {
	mu     sync.Mutex
	clock  clock.Clock
	claims map[string]time.Time
}

func NewMemoryLedger(clk clock.Clock) *MemoryLedger {
	return &MemoryLedger{clock: clk, claims: make(map[string]time.Time)}
}

func (l *MemoryLedger) Claim(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock.Now()
	for k, at := range l.claims {
		if now.Sub(at) > ledgerTTL {
			delete(l.claims, k)
		}
	}
	if _, ok := l.claims[key]; ok {
		return false, nil
	}
	l.claims[key] = now
	return true, nil
}

func (l *MemoryLedger) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	delete(l.claims, key)
	l.mu.Unlock()
	return nil
}

// RedisLedger shares claims between instances with SETNX.
type RedisLedger struct {
	client *redis.Client
}

func NewRedisLedger(client *redis.Client) *RedisLedger {
	return &RedisLedger{client: client}
}

func redisKey(key string) string {
	return "studysync:notified:" + key
}

func (l *RedisLedger) Claim(ctx context.Context, key string) (bool, error) {
	return l.client.SetNX(ctx, redisKey(key), 1, ledgerTTL).Result()
}

func (l *RedisLedger) Release(ctx context.Context, key string) error {
	return l.client.Del(ctx, redisKey(key)).Err()
}
