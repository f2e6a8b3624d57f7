package store

import (
	"context"
	"fmt"
	"time"

	"slothold/internal/config"
	"slothold/internal/domain"

	"github.com/redis/go-redis/v9"
)

// Redis implements domain.Store on top of a single Redis instance. TTL-driven
// expiry and SETNX atomicity are delegated entirely to the server.
type Redis struct {
	client *redis.Client
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (s *Redis) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if s.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	ok, err := s.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to setnx %q: %w", key, err)
	}
	return ok, nil
}

func (s *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if s.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %q: %w", key, err)
	}
	return nil
}

func (s *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	if s.client == nil {
		return "", false, fmt.Errorf("redis client is nil")
	}
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %q: %w", key, err)
	}
	return val, true, nil
}

func (s *Redis) Delete(ctx context.Context, keys ...string) error {
	if s.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete keys: %w", err)
	}
	return nil
}

func (s *Redis) TTL(ctx context.Context, key string) (time.Duration, error) {
	if s.client == nil {
		return 0, fmt.Errorf("redis client is nil")
	}
	d, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get ttl of %q: %w", key, err)
	}
	return d, nil
}

// Pipeline sends the batched writes in one round trip. The operations are not
// transactional; a partial failure leaves independently expiring keys behind.
func (s *Redis) Pipeline(ctx context.Context, ops []domain.Op) error {
	if s.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if len(ops) == 0 {
		return nil
	}
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, op := range ops {
			if op.Delete {
				pipe.Del(ctx, op.Key)
			} else {
				pipe.Set(ctx, op.Key, op.Value, op.TTL)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to execute pipeline: %w", err)
	}
	return nil
}

func (s *Redis) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	if s.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	var keys []string
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan %q: %w", pattern, err)
	}
	return keys, nil
}

func (s *Redis) Publish(ctx context.Context, channel string, payload []byte) error {
	if s.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := s.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %q: %w", channel, err)
	}
	return nil
}

func (s *Redis) Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error) {
	if s.client == nil {
		return nil, nil, fmt.Errorf("redis client is nil")
	}
	sub := s.client.Subscribe(ctx, channel)
	// Force the subscription to be established before returning.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe to %q: %w", channel, err)
	}

	out := make(chan []byte, 32)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			select {
			case out <- []byte(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}()

	cancel := func() { _ = sub.Close() }
	return out, cancel, nil
}

// Ping проверяет соединение с Redis
func (s *Redis) Ping(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if _, err := s.client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

func (s *Redis) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
