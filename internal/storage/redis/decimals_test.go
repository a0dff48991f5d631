package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeKV struct {
	values map[string]string
	ttls   map[string]time.Duration
	err    error
}

func newFakeKV() *fakeKV {
	return &fakeKV{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeKV) Get(_ context.Context, key string) *goredis.StringCmd {
	if f.err != nil {
		return goredis.NewStringResult("", f.err)
	}
	value, ok := f.values[key]
	if !ok {
		return goredis.NewStringResult("", goredis.Nil)
	}
	return goredis.NewStringResult(value, nil)
}

func (f *fakeKV) Set(_ context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd {
	if f.err != nil {
		return goredis.NewStatusResult("", f.err)
	}
	f.values[key] = value.(string)
	f.ttls[key] = expiration
	return goredis.NewStatusResult("OK", nil)
}

var usdc = common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")

func TestDecimalsCacheRoundTrip(t *testing.T) {
	kv := newFakeKV()
	cache := NewDecimalsCache(kv, "", time.Hour)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, usdc)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, usdc, 6))
	key := DefaultDecimalsPrefix + "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913"
	assert.Equal(t, "6", kv.values[key])
	assert.Equal(t, time.Hour, kv.ttls[key])

	got, ok, err := cache.Get(ctx, usdc)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint8(6), got)
}

func TestDecimalsCacheRejectsCorruptValue(t *testing.T) {
	kv := newFakeKV()
	kv.values["p:"+"0x833589fcd6edb6e08f4c7c32d4f71b54bda02913"] = "300"
	_, ok, err := NewDecimalsCache(kv, "p:", 0).Get(context.Background(), usdc)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestDecimalsCachePropagatesErrors(t *testing.T) {
	kv := newFakeKV()
	kv.err = errors.New("connection refused")
	cache := NewDecimalsCache(kv, "", 0)

	_, _, err := cache.Get(context.Background(), usdc)
	assert.ErrorContains(t, err, "connection refused")
	assert.ErrorContains(t, cache.Set(context.Background(), usdc, 18), "connection refused")
}

func TestDecimalsCacheAgainstRedis(t *testing.T) {
	addr := os.Getenv("OPENSWAP_TEST_REDIS")
	if addr == "" {
		t.Skip("OPENSWAP_TEST_REDIS not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Dial(ctx, Config{Address: addr, DB: 1})
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	defer client.Close()

	cache := NewDecimalsCache(client, "openswap:test:decimals:", time.Minute)
	require.NoError(t, cache.Set(ctx, usdc, 6))
	got, ok, err := cache.Get(ctx, usdc)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint8(6), got)
}
