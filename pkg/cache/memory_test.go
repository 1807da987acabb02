package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct{ t time.Time }

func (c *manualClock) now() time.Time          { return c.t }
func (c *manualClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestMemoryCache_ExpiresWithClock(t *testing.T) {
	clk := &manualClock{t: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
	mc := NewMemoryCache(WithMemoryClock(clk.now), WithMemoryCleanup(0))
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.SetBytes(ctx, "k", []byte("v"), time.Hour))

	got, err := mc.GetBytes(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	clk.advance(59 * time.Minute)
	_, err = mc.GetBytes(ctx, "k")
	require.NoError(t, err)

	clk.advance(time.Minute)
	_, err = mc.GetBytes(ctx, "k")
	assert.True(t, errors.Is(err, ErrCacheMiss))
	assert.Equal(t, 0, mc.Len())
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	clk := &manualClock{t: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
	mc := NewMemoryCache(WithMemoryMaxSize(2), WithMemoryClock(clk.now), WithMemoryCleanup(0))
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.SetBytes(ctx, "a", []byte("1"), 0))
	clk.advance(time.Second)
	require.NoError(t, mc.SetBytes(ctx, "b", []byte("2"), 0))
	clk.advance(time.Second)
	_, err := mc.GetBytes(ctx, "a")
	require.NoError(t, err)
	clk.advance(time.Second)
	require.NoError(t, mc.SetBytes(ctx, "c", []byte("3"), 0))

	_, err = mc.GetBytes(ctx, "b")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = mc.GetBytes(ctx, "a")
	assert.NoError(t, err)
	_, err = mc.GetBytes(ctx, "c")
	assert.NoError(t, err)
}

func TestMemoryCache_ReturnsCopies(t *testing.T) {
	mc := NewMemoryCache(WithMemoryCleanup(0))
	defer mc.Close()
	ctx := context.Background()

	buf := []byte("abc")
	require.NoError(t, mc.SetBytes(ctx, "k", buf, time.Hour))
	buf[0] = 'z'

	got, err := mc.GetBytes(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
	got[1] = 'z'

	again, err := mc.GetBytes(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}

func TestLayeredCache_PromotesRemoteHits(t *testing.T) {
	remote := NewMemoryCache(WithMemoryCleanup(0))
	lc := NewLayeredCache(remote)
	defer lc.Close()
	ctx := context.Background()

	require.NoError(t, remote.SetBytes(ctx, "k", []byte("remote"), time.Hour))

	got, err := lc.GetBytes(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "remote", string(got))

	require.NoError(t, remote.Delete(ctx, "k"))
	got, err = lc.GetBytes(ctx, "k")
	require.NoError(t, err, "second read must be served from L1")
	assert.Equal(t, "remote", string(got))

	require.NoError(t, lc.Delete(ctx, "k"))
	_, err = lc.GetBytes(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestJSONHelpers(t *testing.T) {
	mc := NewMemoryCache(WithMemoryCleanup(0))
	defer mc.Close()
	ctx := context.Background()

	type payload struct {
		Symbol string  `json:"symbol"`
		Price  float64 `json:"price"`
	}
	require.NoError(t, SetJSON(ctx, mc, GenerateKeyWithParams("px", "BTCUSDT", "1d"), payload{"BTCUSDT", 42000.5}, time.Hour))

	var out payload
	require.NoError(t, GetJSON(ctx, mc, "px:BTCUSDT:1d", &out))
	assert.Equal(t, payload{"BTCUSDT", 42000.5}, out)
}
