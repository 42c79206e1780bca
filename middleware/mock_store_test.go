package middleware

import (
	"context"
	"time"

	"github.com/hupe1980/gatemesh/core"
	"github.com/stretchr/testify/mock"
)

// MockStore for exercising store failure paths
type MockStore struct {
	mock.Mock
}

var _ core.KVStore = (*MockStore)(nil)

func (m *MockStore) Set(ctx context.Context, key, value string, expire time.Duration) error {
	args := m.Called(ctx, key, value, expire)
	return args.Error(0)
}

func (m *MockStore) Get(ctx context.Context, key string) (string, bool, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockStore) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(time.Duration), args.Bool(1), args.Error(2)
}
