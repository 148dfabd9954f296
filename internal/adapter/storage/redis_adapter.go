package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

const (
	snapshotKey          = "ledger:snapshot"
	revisionKey          = "ledger:revision"
	idempotencyKeyPrefix = "idempotency:"
	idempotencyKeyTTL    = 24 * time.Hour
)

var saveSnapshotScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[2]) or '0')
if current ~= tonumber(ARGV[2]) then
	return 0
end

redis.call('SET', KEYS[1], ARGV[1])
redis.call('INCR', KEYS[2])
return 1
`)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) Load(ctx context.Context) (*domain.Snapshot, error) {
	values, err := r.client.MGet(ctx, snapshotKey, revisionKey).Result()
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	snap := domain.NewSnapshot()
	if doc, ok := values[0].(string); ok {
		if snap, err = DecodeSnapshot([]byte(doc)); err != nil {
			return nil, err
		}
	}
	if rev, ok := values[1].(string); ok {
		if snap.Revision, err = strconv.ParseInt(rev, 10, 64); err != nil {
			return nil, fmt.Errorf("parse revision: %w", err)
		}
	}
	return snap, nil
}

func (r *RedisAdapter) Save(ctx context.Context, snap *domain.Snapshot) error {
	doc, err := EncodeSnapshot(snap)
	if err != nil {
		return err
	}

	result, err := saveSnapshotScript.Run(ctx, r.client, []string{snapshotKey, revisionKey}, string(doc), snap.Revision).Int()
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if result != 1 {
		return ErrOptimisticLock
	}

	snap.Revision++
	return nil
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKeyPrefix+key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	err := r.client.Del(ctx, idempotencyKeyPrefix+key).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
