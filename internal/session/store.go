// Package session keeps per-chat conversation state.
package session

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"crmbot/internal/cache"
)

// Store persists one value per chat. Get reports false when nothing is stored.
type Store[T any] interface {
	Get(ctx context.Context, chatID int64) (T, bool, error)
	Set(ctx context.Context, chatID int64, value T) error
	Clear(ctx context.Context, chatID int64) error
}

// Memory is a process-local Store.
type Memory[T any] struct {
	mu   sync.RWMutex
	data map[int64]T
}

// NewMemory returns an empty in-memory store.
func NewMemory[T any]() *Memory[T] {
	return &Memory[T]{data: make(map[int64]T)}
}

func (m *Memory[T]) Get(_ context.Context, chatID int64) (T, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[chatID]
	return v, ok, nil
}

func (m *Memory[T]) Set(_ context.Context, chatID int64, value T) error {
	m.mu.Lock()
	m.data[chatID] = value
	m.mu.Unlock()
	return nil
}

func (m *Memory[T]) Clear(_ context.Context, chatID int64) error {
	m.mu.Lock()
	delete(m.data, chatID)
	m.mu.Unlock()
	return nil
}

// Redis stores values as JSON under prefix+chatID.
type Redis[T any] struct {
	cache  *cache.Redis
	prefix string
	ttl    time.Duration
}

// NewRedis returns a Redis-backed store. A zero ttl keeps sessions until cleared.
func NewRedis[T any](c *cache.Redis, prefix string, ttl time.Duration) *Redis[T] {
	if prefix == "" {
		prefix = "session:"
	}
	return &Redis[T]{cache: c, prefix: prefix, ttl: ttl}
}

func (r *Redis[T]) key(chatID int64) string {
	return r.prefix + strconv.FormatInt(chatID, 10)
}

func (r *Redis[T]) Get(ctx context.Context, chatID int64) (T, bool, error) {
	var v T
	ok, err := r.cache.GetJSON(ctx, r.key(chatID), &v)
	if err != nil {
		var zero T
		return zero, false, fmt.Errorf("load session %d: %w", chatID, err)
	}
	return v, ok, nil
}

func (r *Redis[T]) Set(ctx context.Context, chatID int64, value T) error {
	if err := r.cache.SetJSON(ctx, r.key(chatID), value, r.ttl); err != nil {
		return fmt.Errorf("save session %d: %w", chatID, err)
	}
	return nil
}

func (r *Redis[T]) Clear(ctx context.Context, chatID int64) error {
	if err := r.cache.Delete(ctx, r.key(chatID)); err != nil {
		return fmt.Errorf("clear session %d: %w", chatID, err)
	}
	return nil
}
