package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemory(Options{DefaultTTL: time.Minute})
	c.now = func() time.Time { return now }

	_, err := c.Get(ctx, "jobs:open")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, c.Set(ctx, "jobs:open:a", []byte("A"), 0))
	require.NoError(t, c.Set(ctx, "jobs:open:b", []byte("B"), 10*time.Second))
	require.NoError(t, c.Set(ctx, "users:1", []byte("U"), 0))

	got, err := c.Get(ctx, "jobs:open:a")
	require.NoError(t, err)
	assert.Equal(t, []byte("A"), got)

	now = now.Add(30 * time.Second)
	_, err = c.Get(ctx, "jobs:open:b")
	assert.ErrorIs(t, err, ErrNotFound, "entry past its ttl should expire")

	require.NoError(t, c.DeletePrefix(ctx, "jobs:"))
	_, err = c.Get(ctx, "jobs:open:a")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err = c.Get(ctx, "users:1")
	require.NoError(t, err)
	assert.Equal(t, []byte("U"), got)

	require.NoError(t, c.Delete(ctx, "users:1"))
	_, err = c.Get(ctx, "users:1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryCacheCopiesValue(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(DefaultOptions())

	value := []byte("original")
	require.NoError(t, c.Set(ctx, "k", value, 0))
	value[0] = 'X'

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "original", string(got))
}
