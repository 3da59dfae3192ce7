// Package cache remembers which listing URLs earlier runs already stored,
// so detail pages are not fetched twice.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/openintern/backend/internal/domain"
)

// Memory is an in-process seen set
type Memory struct {
	mu   sync.RWMutex
	urls map[domain.JobSource]map[string]struct{}
}

// NewMemory creates an empty in-process seen set
func NewMemory() *Memory {
	return &Memory{urls: make(map[domain.JobSource]map[string]struct{})}
}

func (m *Memory) Has(_ context.Context, source domain.JobSource, url string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.urls[source][url]
	return ok, nil
}

func (m *Memory) Add(_ context.Context, source domain.JobSource, urls ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.urls[source]
	if !ok {
		set = make(map[string]struct{})
		m.urls[source] = set
	}
	for _, u := range urls {
		set[u] = struct{}{}
	}
	return nil
}

// Redis keeps one set per source under <prefix>:<source>
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisOptions configures the Redis seen set
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// NewRedis connects to Redis and verifies the connection
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "openintern:seen"
	}
	return &Redis{client: client, prefix: prefix, ttl: opts.TTL}, nil
}

func (r *Redis) key(source domain.JobSource) string {
	return r.prefix + ":" + string(source)
}

func (r *Redis) Has(ctx context.Context, source domain.JobSource, url string) (bool, error) {
	ok, err := r.client.SIsMember(ctx, r.key(source), url).Result()
	if err != nil {
		return false, fmt.Errorf("redis sismember: %w", err)
	}
	return ok, nil
}

// Add records urls and refreshes the set's expiry
func (r *Redis) Add(ctx context.Context, source domain.JobSource, urls ...string) error {
	if len(urls) == 0 {
		return nil
	}

	members := make([]interface{}, len(urls))
	for i, u := range urls {
		members[i] = u
	}

	key := r.key(source)
	pipe := r.client.TxPipeline()
	pipe.SAdd(ctx, key, members...)
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis sadd: %w", err)
	}
	return nil
}

// Ping checks the connection
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the client
func (r *Redis) Close() error {
	return r.client.Close()
}
