package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Yehonatan-Bar/ear-fish/internal/config"
)

// redisStore implements Store on top of a shared Redis instance. Every
// operation runs under a short hard timeout; transport failures surface as
// ErrUnavailable so call sites pick their fallback instead of crashing.
type redisStore struct {
	client    *redis.Client
	opTimeout time.Duration
}

// NewRedisStore connects to Redis and verifies connectivity with a ping.
func NewRedisStore(cfg config.RedisConfig) (Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.OpTimeout,
		ReadTimeout:  cfg.OpTimeout,
		WriteTimeout: cfg.OpTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	opTimeout := cfg.OpTimeout
	if opTimeout <= 0 {
		opTimeout = 2 * time.Second
	}

	return &redisStore{client: client, opTimeout: opTimeout}, nil
}

func (s *redisStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

// wrap maps a go-redis error onto the store error taxonomy.
func wrap(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func (s *redisStore) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	val, err := s.client.Get(ctx, key).Result()
	return val, wrap(err)
}

func (s *redisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return wrap(s.client.Set(ctx, key, value, ttl).Err())
}

func (s *redisStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return wrap(s.client.Del(ctx, keys...).Err())
}

func (s *redisStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, wrap(err)
	}
	// First increment starts the window.
	if ttl > 0 && count == 1 {
		if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
			return count, wrap(err)
		}
	}
	return count, nil
}

func (s *redisStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	args := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		args[k] = v
	}
	return wrap(s.client.HSet(ctx, key, args).Err())
}

func (s *redisStore) HGet(ctx context.Context, key, field string) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	val, err := s.client.HGet(ctx, key, field).Result()
	return val, wrap(err)
}

func (s *redisStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	val, err := s.client.HGetAll(ctx, key).Result()
	return val, wrap(err)
}

func (s *redisStore) HVals(ctx context.Context, key string) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	val, err := s.client.HVals(ctx, key).Result()
	return val, wrap(err)
}

func (s *redisStore) HDel(ctx context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return wrap(s.client.HDel(ctx, key, fields...).Err())
}

func (s *redisStore) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	val, err := s.client.HIncrBy(ctx, key, field, delta).Result()
	return val, wrap(err)
}

func (s *redisStore) SAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return wrap(s.client.SAdd(ctx, key, args...).Err())
}

func (s *redisStore) SRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return wrap(s.client.SRem(ctx, key, args...).Err())
}

func (s *redisStore) SMembers(ctx context.Context, key string) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	val, err := s.client.SMembers(ctx, key).Result()
	return val, wrap(err)
}

func (s *redisStore) SCard(ctx context.Context, key string) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	val, err := s.client.SCard(ctx, key).Result()
	return val, wrap(err)
}

func (s *redisStore) ZIncrBy(ctx context.Context, key string, delta float64, member string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return wrap(s.client.ZIncrBy(ctx, key, delta, member).Err())
}

func (s *redisStore) ZRevRange(ctx context.Context, key string, start, stop int64) ([]ScoredMember, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	vals, err := s.client.ZRevRangeWithScores(ctx, key, start, stop).Result()
	if err != nil {
		return nil, wrap(err)
	}
	members := make([]ScoredMember, 0, len(vals))
	for _, z := range vals {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}
		members = append(members, ScoredMember{Member: member, Score: z.Score})
	}
	return members, nil
}

func (s *redisStore) LPush(ctx context.Context, key string, values ...string) error {
	if len(values) == 0 {
		return nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	return wrap(s.client.LPush(ctx, key, args...).Err())
}

func (s *redisStore) LTrim(ctx context.Context, key string, start, stop int64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return wrap(s.client.LTrim(ctx, key, start, stop).Err())
}

func (s *redisStore) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	val, err := s.client.LRange(ctx, key, start, stop).Result()
	return val, wrap(err)
}

func (s *redisStore) Ping(ctx context.Context) (time.Duration, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	start := time.Now()
	if err := s.client.Ping(ctx).Err(); err != nil {
		return 0, wrap(err)
	}
	return time.Since(start), nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
