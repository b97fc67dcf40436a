package services

import (
	"context"
	"fmt"
	"time"

	"gorefer/internal/utils"
	"gorefer/pkg/logger"
)

type CacheService interface {
	// Basic cache operations
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)

	// Coordination primitives
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	Increment(ctx context.Context, key string, expiration time.Duration) (int64, error)
	Lock(ctx context.Context, key string, expiration time.Duration) (*DistributedLock, error)
	Unlock(ctx context.Context, lock *DistributedLock) error

	// Health
	Ping(ctx context.Context) error
}

type RedisClient interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	Increment(ctx context.Context, key string) (int64, error)
	SetExpire(ctx context.Context, key string, expiration time.Duration) error
	DeleteIfEquals(ctx context.Context, key string, value interface{}) (bool, error)
	Ping(ctx context.Context) error
}

// DistributedLock is a best-effort mutual exclusion token held in Redis.
// Holders must not rely on it past its expiration; conditional updates in the
// store remain the ground truth.
type DistributedLock struct {
	Key        string        `json:"key"`
	Value      string        `json:"value"`
	Expiration time.Duration `json:"expiration"`
	CreatedAt  time.Time     `json:"created_at"`
}

type cacheService struct {
	redisClient RedisClient
	logger      *logger.Logger
	keyPrefix   string
}

func NewCacheService(redisClient RedisClient, log *logger.Logger) CacheService {
	return &cacheService{
		redisClient: redisClient,
		logger:      log,
		keyPrefix:   "gorefer:",
	}
}

func (s *cacheService) buildKey(key string) string {
	return s.keyPrefix + key
}

func (s *cacheService) Get(ctx context.Context, key string, dest interface{}) error {
	return s.redisClient.Get(ctx, s.buildKey(key), dest)
}

func (s *cacheService) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return s.redisClient.Set(ctx, s.buildKey(key), value, expiration)
}

func (s *cacheService) Delete(ctx context.Context, keys ...string) error {
	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = s.buildKey(key)
	}
	return s.redisClient.Delete(ctx, prefixed...)
}

func (s *cacheService) Exists(ctx context.Context, key string) (bool, error) {
	return s.redisClient.Exists(ctx, s.buildKey(key))
}

func (s *cacheService) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return s.redisClient.SetNX(ctx, s.buildKey(key), value, expiration)
}

func (s *cacheService) Increment(ctx context.Context, key string, expiration time.Duration) (int64, error) {
	count, err := s.redisClient.Increment(ctx, s.buildKey(key))
	if err != nil {
		return 0, err
	}

	if count == 1 && expiration > 0 {
		if err := s.redisClient.SetExpire(ctx, s.buildKey(key), expiration); err != nil {
			s.logger.WithError(err).Warn("Failed to set expiration on counter key")
		}
	}

	return count, nil
}

func (s *cacheService) Lock(ctx context.Context, key string, expiration time.Duration) (*DistributedLock, error) {
	token := utils.GenerateRandomString(24)
	lockKey := s.buildKey("lock:" + key)

	acquired, err := s.redisClient.SetNX(ctx, lockKey, token, expiration)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return nil, fmt.Errorf("lock already held: %s", key)
	}

	return &DistributedLock{
		Key:        lockKey,
		Value:      token,
		Expiration: expiration,
		CreatedAt:  time.Now(),
	}, nil
}

func (s *cacheService) Unlock(ctx context.Context, lock *DistributedLock) error {
	if lock == nil {
		return nil
	}

	released, err := s.redisClient.DeleteIfEquals(ctx, lock.Key, lock.Value)
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	if !released {
		s.logger.WithField("lock_key", lock.Key).Warn("Lock expired before release")
	}

	return nil
}

func (s *cacheService) Ping(ctx context.Context) error {
	return s.redisClient.Ping(ctx)
}
