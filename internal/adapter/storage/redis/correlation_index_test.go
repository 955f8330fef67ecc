package redis

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrelationIndex_TrackAndLookup(t *testing.T) {
	mr, client := newTestClient(t)
	idx := NewCorrelationIndex(client)
	ctx := context.Background()

	id := uuid.New()
	require.NoError(t, idx.Track(ctx, "addr1", id, time.Hour))
	assert.Equal(t, time.Hour, mr.TTL("payment:addr1"))

	got, ok, err := idx.Lookup(ctx, "addr1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, id, got)
}

func TestCorrelationIndex_Miss(t *testing.T) {
	_, client := newTestClient(t)

	got, ok, err := NewCorrelationIndex(client).Lookup(context.Background(), "unknown")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, uuid.Nil, got)
}

func TestCorrelationIndex_Expires(t *testing.T) {
	mr, client := newTestClient(t)
	idx := NewCorrelationIndex(client)
	ctx := context.Background()

	require.NoError(t, idx.Track(ctx, "addr1", uuid.New(), time.Hour))
	mr.FastForward(time.Hour + time.Second)

	_, ok, err := idx.Lookup(ctx, "addr1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCorrelationIndex_CorruptEntry(t *testing.T) {
	mr, client := newTestClient(t)
	require.NoError(t, mr.Set("payment:addr1", "not-a-uuid"))

	_, _, err := NewCorrelationIndex(client).Lookup(context.Background(), "addr1")
	assert.Error(t, err)
}
