package timetable

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.etcd.io/bbolt"
)

const (
	stateBucket = "app_state"
	lastSyncKey = "lastTimeTableSync"
)

// SyncStore persists the time of the last admin sync so it survives restarts.
// LastSync returns the zero time when no sync was ever recorded.
type SyncStore interface {
	SaveLastSync(ctx context.Context, t time.Time) error
	LastSync(ctx context.Context) (time.Time, error)
}

// BoltSyncStore keeps the sync marker in a local bbolt file.
type BoltSyncStore struct {
	db *bbolt.DB
}

// NewBoltSyncStore creates the state bucket if needed.
func NewBoltSyncStore(db *bbolt.DB) (*BoltSyncStore, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(stateBucket))
		return err
	})
	if err != nil {
		return nil, err
	}
	return &BoltSyncStore{db: db}, nil
}

func (s *BoltSyncStore) SaveLastSync(ctx context.Context, t time.Time) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(stateBucket))
		if b == nil {
			return fmt.Errorf("bucket %s not found", stateBucket)
		}
		return b.Put([]byte(lastSyncKey), []byte(t.UTC().Format(time.RFC3339Nano)))
	})
}

func (s *BoltSyncStore) LastSync(ctx context.Context) (time.Time, error) {
	var out time.Time
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(stateBucket))
		if b == nil {
			return fmt.Errorf("bucket %s not found", stateBucket)
		}
		v := b.Get([]byte(lastSyncKey))
		if v == nil {
			return nil
		}
		t, err := time.Parse(time.RFC3339Nano, string(v))
		if err != nil {
			return err
		}
		out = t
		return nil
	})
	return out, err
}

// RedisSyncStore keeps the sync marker in Redis, shared between service replicas.
type RedisSyncStore struct {
	client *redis.Client
	key    string
}

// NewRedisSyncStore creates a store writing to key "studysync:lastTimeTableSync".
func NewRedisSyncStore(client *redis.Client) *RedisSyncStore {
	return &RedisSyncStore{client: client, key: "studysync:" + lastSyncKey}
}

func (s *RedisSyncStore) SaveLastSync(ctx context.Context, t time.Time) error {
	return s.client.Set(ctx, s.key, t.UTC().Format(time.RFC3339Nano), 0).Err()
}

func (s *RedisSyncStore) LastSync(ctx context.Context) (time.Time, error) {
	value, err := s.client.Get(ctx, s.key).Result()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339Nano, value)
}

// MemorySyncStore keeps the marker for the life of the process only.
type MemorySyncStore struct {
	mu sync.Mutex
	t  time.Time
}

func NewMemorySyncStore() *MemorySyncStore {
	return &MemorySyncStore{}
}

func (s *MemorySyncStore) SaveLastSync(ctx context.Context, t time.Time) error {
	s.mu.Lock()
	s.t = t
	s.mu.Unlock()
	return nil
}

func (s *MemorySyncStore) LastSync(ctx context.Context) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t, nil
}
