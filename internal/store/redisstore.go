package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the primary KVStore backend, grounded on the job-queue
// Redis usage pattern (HSet/Expire against a redis.Client) found elsewhere
// in the retrieval pack.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisStore dials a Redis instance at addr (host:port).
func NewRedisStore(addr, password string, db int, logger *slog.Logger) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		logger: logger.With("component", "redis_store"),
	}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		s.logger.Warn("redis get failed", "key", key, "error", err)
		return nil, false, nil
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ClampTTL(ttl)).Err(); err != nil {
		s.logger.Warn("redis set failed", "key", key, "error", err)
		return err
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Del(ctx, key).Result()
	if err != nil {
		s.logger.Warn("redis delete failed", "key", key, "error", err)
		return false, err
	}
	return n > 0, nil
}

func (s *RedisStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		s.logger.Warn("redis hgetall failed", "key", key, "error", err)
		return nil, err
	}
	if len(m) == 0 {
		return nil, nil
	}
	return m, nil
}

func (s *RedisStore) HSet(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error {
	pairs := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		pairs = append(pairs, k, v)
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, pairs...)
	pipe.Expire(ctx, key, ClampTTL(ttl))
	_, err := pipe.Exec(ctx)
	if err != nil {
		s.logger.Warn("redis hset failed", "key", key, "error", err)
	}
	return err
}

func (s *RedisStore) Connected(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.client.Ping(ctx).Err() == nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
