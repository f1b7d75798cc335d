package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"catalog-feed-miner/config"
)

func TestPageCache_DisabledWithoutClient(t *testing.T) {
	c := New(nil, time.Hour, nil)
	require.False(t, c.Enabled())

	body, ok, err := c.Get(context.Background(), "https://joyandco.com/product/lamp")
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, body)

	require.NoError(t, c.Set(context.Background(), "https://joyandco.com/product/lamp", []byte("<html>")))
	require.ErrorIs(t, c.Purge(context.Background(), "https://joyandco.com/product/lamp"), ErrCacheDisabled)
}

func TestPageCache_ZeroTTLDisables(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { _ = client.Close() })

	c := New(client, 0, zap.NewNop().Sugar())
	require.False(t, c.Enabled())
	_, ok, err := c.Get(context.Background(), "https://joyandco.com/")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestKey(t *testing.T) {
	a := Key("https://joyandco.com/product/lamp")
	require.True(t, strings.HasPrefix(a, keyPrefix))
	require.Len(t, a, len(keyPrefix)+64)
	require.Equal(t, a, Key("https://joyandco.com/product/lamp"))
	require.NotEqual(t, a, Key("https://joyandco.com/product/rug"))
}

func TestNewRedis_DisabledWithoutHost(t *testing.T) {
	client, err := NewRedis(fxtest.NewLifecycle(t), &config.Config{}, zap.NewNop().Sugar())
	require.NoError(t, err)
	require.Nil(t, client)
}
