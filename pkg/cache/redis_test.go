package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewClient("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestSetAndGet(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "key1", "value1", time.Minute))

	val, err := client.Get(ctx, "key1")
	require.NoError(t, err)
	assert.Equal(t, "value1", val)
}

func TestGetMissingKey(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.Get(context.Background(), "nope")
	assert.Error(t, err)
}

func TestDelete(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "key1", "value1", time.Minute))
	require.NoError(t, client.Delete(ctx, "key1"))

	exists, err := client.Exists(ctx, "key1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestExpiration(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "key1", "value1", time.Second))

	mr.FastForward(2 * time.Second)

	_, err := client.Get(ctx, "key1")
	assert.Error(t, err)
}
