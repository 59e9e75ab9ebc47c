package billing

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahulmehra/vyaparhub/pkg/cache"
	"github.com/rahulmehra/vyaparhub/pkg/models"
)

func newCachedStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	db := newTestDB(t)
	mr := miniredis.RunT(t)
	cacheClient, err := cache.NewClient("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { cacheClient.Close() })
	return NewStore(db, cacheClient), mr
}

func TestStoreGetCachesSnapshot(t *testing.T) {
	store, mr := newCachedStore(t)
	ctx := context.Background()

	require.NoError(t, store.db.Create(&models.Subscription{
		UserID: 4,
		Plan:   "pro",
		Status: models.SubscriptionStatusActive,
	}).Error)

	sub, err := store.Get(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, "pro", sub.Plan)
	assert.True(t, mr.Exists("subscription:4"))

	// A stale cached row is served until it expires or is invalidated
	require.NoError(t, store.db.Model(&models.Subscription{}).
		Where("user_id = ?", 4).Update("plan", "business").Error)

	sub, err = store.Get(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, "pro", sub.Plan)
}

func TestOverrideInvalidatesCache(t *testing.T) {
	store, mr := newCachedStore(t)
	ctx := context.Background()

	require.NoError(t, store.db.Create(&models.Subscription{
		UserID: 9,
		Plan:   "starter",
		Status: models.SubscriptionStatusActive,
	}).Error)

	_, err := store.Get(ctx, 9)
	require.NoError(t, err)
	require.True(t, mr.Exists("subscription:9"))

	sub, err := store.Override(ctx, 9, "business", 12)
	require.NoError(t, err)
	assert.Equal(t, "business", sub.Plan)
	assert.False(t, mr.Exists("subscription:9"))

	sub, err = store.Get(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, "business", sub.Plan)
}

func TestDefaultSubscriptionNotCached(t *testing.T) {
	store, mr := newCachedStore(t)

	sub, err := store.Get(context.Background(), 77)
	require.NoError(t, err)
	assert.Equal(t, "free", sub.Plan)

	// Synthesized defaults never hit the cache; an upgrade must be
	// visible on the next read
	assert.False(t, mr.Exists("subscription:77"))
}
