package mocks

import (
	"context"
	"errors"
	"time"
)

// MockCacher is a mock implementation of the cache interface. Get reports a miss
// unless GetFunc is set.
type MockCacher struct {
	GetFunc              func(ctx context.Context, key string, dest any) error
	SetFunc              func(ctx context.Context, key string, value any, expiration time.Duration) error
	TTLFunc              func(ctx context.Context, key string) (time.Duration, error)
	InvalidatePrefixFunc func(ctx context.Context, prefix string) (int64, error)
	CloseFunc            func() error
}

func (m *MockCacher) Get(ctx context.Context, key string, dest any) error {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key, dest)
	}
	return errors.New("cache miss")
}

func (m *MockCacher) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value, expiration)
	}
	return nil
}

// TTL reports a key without expiry unless TTLFunc is set.
func (m *MockCacher) TTL(ctx context.Context, key string) (time.Duration, error) {
	if m.TTLFunc != nil {
		return m.TTLFunc(ctx, key)
	}
	return -1, nil
}

func (m *MockCacher) InvalidatePrefix(ctx context.Context, prefix string) (int64, error) {
	if m.InvalidatePrefixFunc != nil {
		return m.InvalidatePrefixFunc(ctx, prefix)
	}
	return 0, nil
}

func (m *MockCacher) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}
