package cache

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCacheExpiresAndDeletesByPrefix(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewTTLCache()
	c.now = func() time.Time { return now }

	require.NoError(t, c.SetBytes(ctx, "signals:EURUSD", []byte("a"), time.Minute))
	require.NoError(t, c.SetBytes(ctx, "signals:USDJPY", []byte("b"), 0))
	require.NoError(t, c.SetBytes(ctx, "meta", []byte("c"), 0))

	b, ok, err := c.GetBytes(ctx, "signals:EURUSD")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("a"), b)

	now = now.Add(2 * time.Minute)
	_, ok, _ = c.GetBytes(ctx, "signals:EURUSD")
	assert.False(t, ok)

	require.NoError(t, c.Delete(ctx, "signals:*"))
	_, ok, _ = c.GetBytes(ctx, "signals:USDJPY")
	assert.False(t, ok)
	_, ok, _ = c.GetBytes(ctx, "meta")
	assert.True(t, ok)
}

func TestRedisCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	c := NewRedisCache(db, "fx")

	mock.ExpectSet("fx:meta", []byte(`{"a":1}`), 30*time.Second).SetVal("OK")
	mock.ExpectGet("fx:meta").SetVal(`{"a":1}`)
	mock.ExpectGet("fx:missing").RedisNil()
	mock.ExpectDel("fx:meta").SetVal(1)

	require.NoError(t, c.SetBytes(ctx, "meta", []byte(`{"a":1}`), 30*time.Second))

	b, ok, err := c.GetBytes(ctx, "meta")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"a":1}`, string(b))

	_, ok, err = c.GetBytes(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Delete(ctx, "meta"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCacheDeletePattern(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	c := NewRedisCache(db, "fx")

	mock.ExpectScan(0, "fx:signals:*", 100).SetVal([]string{"fx:signals:a", "fx:signals:b"}, 0)
	mock.ExpectDel("fx:signals:a", "fx:signals:b").SetVal(2)

	require.NoError(t, c.Delete(ctx, "signals:*"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
