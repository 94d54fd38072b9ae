package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedExam struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := newMemoryCache(func() time.Time { return now })

	require.NoError(t, c.Set(ctx, "exam:1", cachedExam{ID: 1, Title: "Mock Board"}, time.Minute))
	require.NoError(t, c.Set(ctx, "exam:2", cachedExam{ID: 2}, 0))
	require.NoError(t, c.Set(ctx, "other", cachedExam{ID: 3}, 0))

	var got cachedExam
	require.NoError(t, c.Get(ctx, "exam:1", &got))
	assert.Equal(t, "Mock Board", got.Title)

	t.Run("miss", func(t *testing.T) {
		assert.ErrorIs(t, c.Get(ctx, "exam:404", &got), ErrCacheMiss)
	})

	t.Run("expiry", func(t *testing.T) {
		now = now.Add(time.Minute)
		assert.ErrorIs(t, c.Get(ctx, "exam:1", &got), ErrCacheMiss)
		assert.NoError(t, c.Get(ctx, "exam:2", &got), "zero ttl never expires")
	})

	t.Run("delete pattern", func(t *testing.T) {
		require.NoError(t, c.DeletePattern(ctx, "exam:*"))
		assert.ErrorIs(t, c.Get(ctx, "exam:2", &got), ErrCacheMiss)
		assert.NoError(t, c.Get(ctx, "other", &got))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, c.Delete(ctx, "other"))
		assert.ErrorIs(t, c.Get(ctx, "other", &got), ErrCacheMiss)
	})
}
