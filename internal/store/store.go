package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnavailable reports that the shared store could not be reached or
	// timed out. Callers must branch on it and apply their documented
	// degraded behavior; it is never fatal.
	ErrUnavailable = errors.New("store unavailable")

	// ErrNotFound reports that a key or field does not exist.
	ErrNotFound = errors.New("key not found")
)

// ScoredMember is one entry of a sorted-set range read.
type ScoredMember struct {
	Member string
	Score  float64
}

// Store is the narrow contract every component uses to reach the shared
// state store. Each operation either succeeds or fails with ErrUnavailable
// within a bounded timeout; a result from a previous call is never assumed
// to still be valid.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	// Incr atomically increments a counter, applying ttl on the first
	// increment so the window expires on its own.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	HSet(ctx context.Context, key string, fields map[string]string) error
	HGet(ctx context.Context, key, field string) (string, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HVals(ctx context.Context, key string) ([]string, error)
	HDel(ctx context.Context, key string, fields ...string) error
	HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error)

	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SCard(ctx context.Context, key string) (int64, error)

	ZIncrBy(ctx context.Context, key string, delta float64, member string) error
	ZRevRange(ctx context.Context, key string, start, stop int64) ([]ScoredMember, error)

	LPush(ctx context.Context, key string, values ...string) error
	LTrim(ctx context.Context, key string, start, stop int64) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	// Ping checks connectivity and reports the round-trip time.
	Ping(ctx context.Context) (time.Duration, error)

	Close() error
}
