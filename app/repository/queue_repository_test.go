package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/ManuelReschke/ChatFox/internal/pkg/cache/cachetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewQueueRepositoryWithoutClient(t *testing.T) {
	assert.Nil(t, NewQueueRepository(nil))
}

func TestQueueRepositoryScanAndDelete(t *testing.T) {
	rdb := cachetest.Client(t, 12)
	repo := NewQueueRepository(rdb)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, rdb.Set(ctx, fmt.Sprintf("job:%d", i), "x", 0).Err())
	}
	require.NoError(t, rdb.Set(ctx, "other:1", "x", 0).Err())
	require.NoError(t, rdb.RPush(ctx, "jobs:pending", "a", "b").Err())

	n, err := repo.ListLength(ctx, "jobs:pending")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	keys, err := repo.ScanKeys(ctx, "job:*", "", "job:1")
	require.NoError(t, err)
	assert.Equal(t, []string{"job:0", "job:1", "job:2"}, keys)

	deleted, err := repo.DeleteKeys(ctx, append(keys, "job:missing"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	deleted, err = repo.DeleteKeys(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}
