package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_TypedInvalidation(t *testing.T) {
	ctx := context.Background()
	s, err := NewMemoryStore(16)
	require.NoError(t, err)

	a := Key{Entity: EntityAsset, ID: "https://cdn/a.png"}
	b := Key{Entity: EntityAsset, ID: "https://cdn/b.png"}
	o := Key{Entity: EntityOrderFiles, ID: "42"}
	for _, k := range []Key{a, b, o} {
		require.NoError(t, s.Set(ctx, k, []byte(k.ID), 0))
	}

	require.NoError(t, s.InvalidateEntity(ctx, EntityAsset))

	_, ok, _ := s.Get(ctx, a)
	assert.False(t, ok)
	_, ok, _ = s.Get(ctx, b)
	assert.False(t, ok)
	v, ok, err := s.Get(ctx, o)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("42"), v)

	require.NoError(t, s.Invalidate(ctx, o))
	_, ok, _ = s.Get(ctx, o)
	assert.False(t, ok)
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	s, err := NewMemoryStore(4)
	require.NoError(t, err)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	k := Key{Entity: EntityAsset, ID: "x"}
	require.NoError(t, s.Set(ctx, k, []byte("v"), time.Minute))
	_, ok, _ := s.Get(ctx, k)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, _ = s.Get(ctx, k)
	assert.False(t, ok)
}

func TestMemoryStore_RejectsEmptyKey(t *testing.T) {
	s, err := NewMemoryStore(4)
	require.NoError(t, err)
	assert.ErrorIs(t, s.Set(context.Background(), Key{Entity: EntityAsset}, nil, 0), ErrInvalidKey)
}
