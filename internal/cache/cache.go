// Package cache stores computed insight snapshots between requests.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Snapshots is a JSON value cache with per-entry expiry and a shared
// invalidation generation. Readers key entries by the generation they saw
// before computing, so a value built from pre-write rows lands under a key
// no later reader asks for.
type Snapshots interface {
	// Get decodes the entry into dst and reports whether it was present.
	Get(ctx context.Context, key string, dst any) (bool, error)
	Put(ctx context.Context, key string, v any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// Generation is the current generation, zero before the first Advance.
	Generation(ctx context.Context) (uint64, error)
	// Advance bumps the generation and returns the new value.
	Advance(ctx context.Context) (uint64, error)
}

// Redis keeps snapshots under a key prefix.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis builds a redis-backed snapshot cache.
func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "membership:insights:"
	}
	return &Redis{client: client, prefix: prefix}
}

// Get decodes the entry stored under key.
func (r *Redis) Get(ctx context.Context, key string, dst any) (bool, error) {
	b, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(b, dst)
}

// Put stores v as JSON. A zero ttl keeps it until deleted.
func (r *Redis) Put(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.prefix+key, b, ttl).Err()
}

// Delete removes keys, ignoring missing ones.
func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.prefix + k
	}
	return r.client.Del(ctx, full...).Err()
}

// Generation reads the shared counter.
func (r *Redis) Generation(ctx context.Context) (uint64, error) {
	n, err := r.client.Get(ctx, r.prefix+"generation").Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// Advance increments the shared counter. Every process sharing the prefix sees it.
func (r *Redis) Advance(ctx context.Context) (uint64, error) {
	n, err := r.client.Incr(ctx, r.prefix+"generation").Result()
	return uint64(n), err
}

type entry struct {
	data    []byte
	expires time.Time
}

// Memory is an in-process Snapshots for single-instance deployments and tests.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	gen     uint64
	now     func() time.Time
}

// NewMemory creates an empty cache.
func NewMemory() *Memory {
	return &Memory{entries: map[string]entry{}, now: time.Now}
}

// Get decodes the entry stored under key, dropping it if expired.
func (m *Memory) Get(_ context.Context, key string, dst any) (bool, error) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if ok && !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.entries, key)
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(e.data, dst)
}

// Put stores v. A non-positive ttl never expires.
func (m *Memory) Put(_ context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	e := entry{data: b}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

// Delete removes keys, ignoring missing ones.
func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

// Generation returns the counter.
func (m *Memory) Generation(context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen, nil
}

// Advance increments the counter.
func (m *Memory) Advance(context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	return m.gen, nil
}
