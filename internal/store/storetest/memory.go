// Package storetest provides an in-memory store.Store implementation for
// tests. It honors TTLs against a controllable clock and can simulate a
// store outage so degraded paths are testable without a real Redis.
package storetest

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/Yehonatan-Bar/ear-fish/internal/store"
)

type entry struct {
	value     string
	hash      map[string]string
	set       map[string]struct{}
	zset      map[string]float64
	list      []string
	expiresAt time.Time // zero means no expiry
}

// Memory is an in-memory store.Store.
type Memory struct {
	mu          sync.Mutex
	data        map[string]*entry
	now         time.Time
	unavailable bool
}

// New creates an empty in-memory store.
func New() *Memory {
	return &Memory{
		data: make(map[string]*entry),
		now:  time.Now(),
	}
}

// SetUnavailable makes every subsequent operation fail with ErrUnavailable.
func (m *Memory) SetUnavailable(down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unavailable = down
}

// Advance moves the fake clock forward, expiring keys whose TTL has passed.
func (m *Memory) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// Keys returns all live keys, for assertions.
func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		if m.live(k) != nil {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// live returns the entry for key if it exists and has not expired.
// Caller must hold mu.
func (m *Memory) live(key string) *entry {
	e, ok := m.data[key]
	if !ok {
		return nil
	}
	if !e.expiresAt.IsZero() && !m.now.Before(e.expiresAt) {
		delete(m.data, key)
		return nil
	}
	return e
}

func (m *Memory) ensure(key string) *entry {
	if e := m.live(key); e != nil {
		return e
	}
	e := &entry{}
	m.data[key] = e
	return e
}

func (m *Memory) check() error {
	if m.unavailable {
		return store.ErrUnavailable
	}
	return nil
}

func (m *Memory) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return "", err
	}
	e := m.live(key)
	if e == nil {
		return "", store.ErrNotFound
	}
	return e.value, nil
}

func (m *Memory) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	e := &entry{value: value}
	if ttl > 0 {
		e.expiresAt = m.now.Add(ttl)
	}
	m.data[key] = e
	return nil
}

func (m *Memory) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *Memory) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return 0, err
	}
	e := m.live(key)
	if e == nil {
		e = &entry{value: "0"}
		if ttl > 0 {
			e.expiresAt = m.now.Add(ttl)
		}
		m.data[key] = e
	}
	count := parseInt(e.value) + 1
	e.value = formatInt(count)
	return count, nil
}

func (m *Memory) HSet(ctx context.Context, key string, fields map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	e := m.ensure(key)
	if e.hash == nil {
		e.hash = make(map[string]string)
	}
	for k, v := range fields {
		e.hash[k] = v
	}
	return nil
}

func (m *Memory) HGet(ctx context.Context, key, field string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return "", err
	}
	e := m.live(key)
	if e == nil {
		return "", store.ErrNotFound
	}
	v, ok := e.hash[field]
	if !ok {
		return "", store.ErrNotFound
	}
	return v, nil
}

func (m *Memory) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	out := make(map[string]string)
	if e := m.live(key); e != nil {
		for k, v := range e.hash {
			out[k] = v
		}
	}
	return out, nil
}

func (m *Memory) HVals(ctx context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	var out []string
	if e := m.live(key); e != nil {
		for _, v := range e.hash {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *Memory) HDel(ctx context.Context, key string, fields ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	if e := m.live(key); e != nil {
		for _, f := range fields {
			delete(e.hash, f)
		}
		if len(e.hash) == 0 && e.value == "" && e.set == nil && e.list == nil && e.zset == nil {
			delete(m.data, key)
		}
	}
	return nil
}

func (m *Memory) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return 0, err
	}
	e := m.ensure(key)
	if e.hash == nil {
		e.hash = make(map[string]string)
	}
	val := parseInt(e.hash[field]) + delta
	e.hash[field] = formatInt(val)
	return val, nil
}

func (m *Memory) SAdd(ctx context.Context, key string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	e := m.ensure(key)
	if e.set == nil {
		e.set = make(map[string]struct{})
	}
	for _, mem := range members {
		e.set[mem] = struct{}{}
	}
	return nil
}

func (m *Memory) SRem(ctx context.Context, key string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	if e := m.live(key); e != nil {
		for _, mem := range members {
			delete(e.set, mem)
		}
		if len(e.set) == 0 {
			delete(m.data, key)
		}
	}
	return nil
}

func (m *Memory) SMembers(ctx context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	var out []string
	if e := m.live(key); e != nil {
		for mem := range e.set {
			out = append(out, mem)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) SCard(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return 0, err
	}
	if e := m.live(key); e != nil {
		return int64(len(e.set)), nil
	}
	return 0, nil
}

func (m *Memory) ZIncrBy(ctx context.Context, key string, delta float64, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	e := m.ensure(key)
	if e.zset == nil {
		e.zset = make(map[string]float64)
	}
	e.zset[member] += delta
	return nil
}

func (m *Memory) ZRevRange(ctx context.Context, key string, start, stop int64) ([]store.ScoredMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	e := m.live(key)
	if e == nil {
		return nil, nil
	}
	members := make([]store.ScoredMember, 0, len(e.zset))
	for mem, score := range e.zset {
		members = append(members, store.ScoredMember{Member: mem, Score: score})
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].Score == members[j].Score {
			return members[i].Member < members[j].Member
		}
		return members[i].Score > members[j].Score
	})
	if start >= int64(len(members)) {
		return nil, nil
	}
	end := stop + 1
	if stop < 0 || end > int64(len(members)) {
		end = int64(len(members))
	}
	return members[start:end], nil
}

func (m *Memory) LPush(ctx context.Context, key string, values ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	e := m.ensure(key)
	for _, v := range values {
		e.list = append([]string{v}, e.list...)
	}
	return nil
}

func (m *Memory) LTrim(ctx context.Context, key string, start, stop int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	if e := m.live(key); e != nil {
		end := stop + 1
		if stop < 0 || end > int64(len(e.list)) {
			end = int64(len(e.list))
		}
		if start >= int64(len(e.list)) {
			e.list = nil
		} else {
			e.list = e.list[start:end]
		}
	}
	return nil
}

func (m *Memory) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	e := m.live(key)
	if e == nil {
		return nil, nil
	}
	end := stop + 1
	if stop < 0 || end > int64(len(e.list)) {
		end = int64(len(e.list))
	}
	if start >= int64(len(e.list)) {
		return nil, nil
	}
	out := make([]string, end-start)
	copy(out, e.list[start:end])
	return out, nil
}

func (m *Memory) Ping(ctx context.Context) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return 0, err
	}
	return time.Millisecond, nil
}

func (m *Memory) Close() error { return nil }

func parseInt(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func formatInt(n int64) string {
	return strconv.FormatInt(n, 10)
}
