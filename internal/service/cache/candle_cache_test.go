package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"PolyChannel/internal/domain/errs"
	"PolyChannel/internal/domain/models"
	drepo "PolyChannel/internal/domain/repository"
	pkgcache "PolyChannel/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeSource struct {
	calls   atomic.Int32
	candles []models.Candle
	err     error
	gate    chan struct{}
}

func (s *fakeSource) Name() string { return "fake" }

func (s *fakeSource) FetchCandles(ctx context.Context, symbol string, _ drepo.Interval, _, _ time.Time) ([]models.Candle, error) {
	s.calls.Add(1)
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	out := make([]models.Candle, len(s.candles))
	copy(out, s.candles)
	for i := range out {
		out[i].Symbol = symbol
	}
	return out, nil
}

func dailyCandles(n int, end time.Time) []models.Candle {
	out := make([]models.Candle, n)
	start := end.AddDate(0, 0, -n)
	for i := range out {
		p := 100 + float64(i)
		out[i] = models.Candle{
			Bucket: start.AddDate(0, 0, i),
			Open:   p, High: p + 1, Low: p - 1, Close: p + 0.5, Volume: 1000,
		}
	}
	return out
}

func newTestCache(src *fakeSource, clk *fakeClock, opts ...Option) *CandleCache {
	store := pkgcache.NewMemoryCache(pkgcache.WithMemoryClock(clk.Now), pkgcache.WithMemoryCleanup(0))
	base := []Option{WithClock(clk), WithRetry(3, time.Millisecond), WithFetchTimeout(time.Second)}
	return New(src, store, append(base, opts...)...)
}

func TestCandleCache_HitWithinTTL(t *testing.T) {
	clk := &fakeClock{t: time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)}
	src := &fakeSource{candles: dailyCandles(120, clk.Now())}
	c := newTestCache(src, clk)
	ctx := context.Background()

	first, err := c.GetCandles(ctx, "BTCUSDT", drepo.Interval1d, 120)
	require.NoError(t, err)
	assert.Equal(t, 120, first.Len())
	assert.Equal(t, "BTCUSDT", first.Symbol)

	clk.Advance(11 * time.Hour)
	second, err := c.GetCandles(ctx, "BTCUSDT", drepo.Interval1d, 120)
	require.NoError(t, err)

	assert.Equal(t, int32(1), src.calls.Load())
	assert.Equal(t, first.Closes(), second.Closes())
}

func TestCandleCache_RefetchesAfterExpiry(t *testing.T) {
	clk := &fakeClock{t: time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)}
	src := &fakeSource{candles: dailyCandles(90, clk.Now())}
	c := newTestCache(src, clk, WithTTL(time.Hour))
	ctx := context.Background()

	_, err := c.GetCandles(ctx, "ETHUSDT", drepo.Interval1d, 90)
	require.NoError(t, err)

	clk.Advance(time.Hour)
	_, err = c.GetCandles(ctx, "ETHUSDT", drepo.Interval1d, 90)
	require.NoError(t, err)

	assert.Equal(t, int32(2), src.calls.Load())
}

func TestCandleCache_DistinctKeysPerSymbol(t *testing.T) {
	clk := &fakeClock{t: time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)}
	src := &fakeSource{candles: dailyCandles(90, clk.Now())}
	c := newTestCache(src, clk)

	assert.NotEqual(t, c.Key("BTCUSDT", drepo.Interval1d, 90), c.Key("ETHUSDT", drepo.Interval1d, 90))
	assert.NotEqual(t, c.Key("BTCUSDT", drepo.Interval1d, 90), c.Key("BTCUSDT", drepo.Interval4h, 90))
	assert.NotEqual(t, c.Key("BTCUSDT", drepo.Interval1d, 90), c.Key("BTCUSDT", drepo.Interval1d, 180))
}

func TestCandleCache_Errors(t *testing.T) {
	now := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

	unordered := dailyCandles(80, now)
	unordered[10].Bucket = unordered[9].Bucket

	tests := []struct {
		name      string
		src       *fakeSource
		wantCalls int32
		notKind   error
	}{
		{
			name:      "persistent rate limit",
			src:       &fakeSource{err: errs.ErrRateLimited},
			wantCalls: 3,
			notKind:   errs.ErrRateLimited,
		},
		{
			name:      "definitive upstream failure is not retried",
			src:       &fakeSource{err: errs.ErrDataUnavailable},
			wantCalls: 1,
		},
		{
			name:      "too few candles",
			src:       &fakeSource{candles: dailyCandles(59, now)},
			wantCalls: 1,
		},
		{
			name:      "non-monotonic timestamps",
			src:       &fakeSource{candles: unordered},
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clk := &fakeClock{t: now}
			c := newTestCache(tt.src, clk)

			_, err := c.GetCandles(context.Background(), "SOLUSDT", drepo.Interval1d, 90)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errs.ErrDataUnavailable), "got %v", err)
			if tt.notKind != nil {
				assert.False(t, errors.Is(err, tt.notKind))
			}
			assert.Equal(t, tt.wantCalls, tt.src.calls.Load())
		})
	}
}

func TestCandleCache_FailuresAreNotCached(t *testing.T) {
	clk := &fakeClock{t: time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)}
	src := &fakeSource{err: errs.ErrDataUnavailable}
	c := newTestCache(src, clk)
	ctx := context.Background()

	_, err := c.GetCandles(ctx, "XRPUSDT", drepo.Interval1d, 90)
	require.Error(t, err)

	src.err = nil
	src.candles = dailyCandles(90, clk.Now())
	s, err := c.GetCandles(ctx, "XRPUSDT", drepo.Interval1d, 90)
	require.NoError(t, err)
	assert.Equal(t, 90, s.Len())
}

func TestCandleCache_ConcurrentRequestsShareOneFetch(t *testing.T) {
	clk := &fakeClock{t: time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)}
	src := &fakeSource{candles: dailyCandles(100, clk.Now()), gate: make(chan struct{})}
	c := newTestCache(src, clk)

	const callers = 8
	var wg sync.WaitGroup
	errCh := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := c.GetCandles(context.Background(), "ADAUSDT", drepo.Interval1d, 100)
			if err == nil && s.Len() != 100 {
				err = errors.New("short series")
			}
			errCh <- err
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(src.gate)
	wg.Wait()
	close(errCh)

	for err := range errCh {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestCandleCache_CancelledCallerDoesNotFailWaiters(t *testing.T) {
	clk := &fakeClock{t: time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)}
	src := &fakeSource{candles: dailyCandles(100, clk.Now()), gate: make(chan struct{})}
	c := newTestCache(src, clk)

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.GetCandles(ctx, "DOTUSDT", drepo.Interval1d, 100)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)

	type result struct {
		s   models.CandleSeries
		err error
	}
	second := make(chan result, 1)
	go func() {
		s, err := c.GetCandles(context.Background(), "DOTUSDT", drepo.Interval1d, 100)
		second <- result{s, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.True(t, errors.Is(<-firstErr, context.Canceled))

	close(src.gate)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, 100, got.s.Len())
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestCandleCache_RejectsNonPositiveLookback(t *testing.T) {
	clk := &fakeClock{t: time.Now().UTC()}
	c := newTestCache(&fakeSource{}, clk)

	_, err := c.GetCandles(context.Background(), "BTCUSDT", drepo.Interval1d, 0)
	assert.True(t, errors.Is(err, errs.ErrInvalidConfig))
}
