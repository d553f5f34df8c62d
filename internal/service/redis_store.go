package service

import (
	"context"
	"strconv"
	"time"

	"github.com/adshield/fraud-service/internal/client"
	"github.com/adshield/fraud-service/internal/models"
	"github.com/redis/go-redis/v9"
)

// RedisCounterStore implements CounterStore on the shared Redis client.
type RedisCounterStore struct {
	rdb *client.RedisClient
}

func NewRedisCounterStore(rdb *client.RedisClient) *RedisCounterStore {
	return &RedisCounterStore{rdb: rdb}
}

func (s *RedisCounterStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var count int64
	err := s.rdb.InstrumentedDo(ctx, func(ctx context.Context) error {
		var err error
		count, err = s.rdb.IncrementWithTTL(ctx, key, ttl)
		return err
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *RedisCounterStore) Get(ctx context.Context, key string) (int64, error) {
	var count int
	err := s.rdb.InstrumentedDo(ctx, func(ctx context.Context) error {
		var err error
		count, err = s.rdb.GetInt(ctx, key)
		return err
	})
	if err != nil {
		return 0, err
	}
	return int64(count), nil
}

// RedisReputationStore implements ReputationStore with atomic Lua updates so
// concurrent raises on one entity cannot lose writes.
type RedisReputationStore struct {
	rdb *client.RedisClient
}

func NewRedisReputationStore(rdb *client.RedisClient) *RedisReputationStore {
	return &RedisReputationStore{rdb: rdb}
}

func (s *RedisReputationStore) Score(ctx context.Context, entity models.EntityType, id string) (int, error) {
	var score int
	err := s.rdb.InstrumentedDo(ctx, func(ctx context.Context) error {
		var err error
		score, err = s.rdb.GetInt(ctx, reputationKey(entity, id))
		return err
	})
	if err != nil {
		return 0, err
	}
	return score, nil
}

func (s *RedisReputationStore) Raise(ctx context.Context, entity models.EntityType, id string, candidate int) (int, error) {
	if candidate > 100 {
		candidate = 100
	}
	var stored int64
	err := s.rdb.InstrumentedDo(ctx, func(ctx context.Context) error {
		var err error
		stored, err = s.rdb.RaiseWithTTL(ctx, reputationKey(entity, id), candidate, ReputationTTL(entity))
		return err
	})
	if err != nil {
		return 0, err
	}
	return int(stored), nil
}

func (s *RedisReputationStore) Bump(ctx context.Context, entity models.EntityType, id string, delta int) (int, error) {
	var stored int64
	err := s.rdb.InstrumentedDo(ctx, func(ctx context.Context) error {
		var err error
		stored, err = s.rdb.AddCappedWithTTL(ctx, reputationKey(entity, id), delta, 100, ReputationTTL(entity))
		return err
	})
	if err != nil {
		return 0, err
	}
	return int(stored), nil
}

// RedisLastClickStore implements LastClickStore on plain GET/SET with TTL.
type RedisLastClickStore struct {
	rdb *client.RedisClient
}

func NewRedisLastClickStore(rdb *client.RedisClient) *RedisLastClickStore {
	return &RedisLastClickStore{rdb: rdb}
}

func (s *RedisLastClickStore) LastClick(ctx context.Context, userID string) (time.Time, bool, error) {
	val, err := s.rdb.Get(ctx, lastClickKey(userID)).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	millis, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, false, err
	}
	return time.UnixMilli(millis), true, nil
}

func (s *RedisLastClickStore) SetLastClick(ctx context.Context, userID string, t time.Time, ttl time.Duration) error {
	return s.rdb.Set(ctx, lastClickKey(userID), strconv.FormatInt(t.UnixMilli(), 10), ttl).Err()
}
