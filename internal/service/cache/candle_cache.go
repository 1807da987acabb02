package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"PolyChannel/internal/domain/errs"
	"PolyChannel/internal/domain/models"
	drepo "PolyChannel/internal/domain/repository"
	pkgcache "PolyChannel/pkg/cache"
	applogger "PolyChannel/pkg/logger"
	"PolyChannel/pkg/util"

	"golang.org/x/sync/singleflight"
)

const (
	DefaultTTL        = 24 * time.Hour
	DefaultMinCandles = 60
	maxBackoff        = 30 * time.Second
)

// CandleCache is a read-through, TTL-bounded cache of validated candle series.
// Concurrent requests for the same key share a single upstream fetch.
type CandleCache struct {
	source       drepo.CandleSource
	store        pkgcache.Store
	clock        drepo.Clock
	ttl          time.Duration
	minCandles   int
	retries      int
	backoff      time.Duration
	fetchTimeout time.Duration
	metrics      drepo.Metrics
	l            *applogger.Logger
	sleep        func(ctx context.Context, d time.Duration) error

	group singleflight.Group
}

// Option configures CandleCache.
type Option func(*CandleCache)

func WithTTL(ttl time.Duration) Option {
	return func(c *CandleCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithClock(clk drepo.Clock) Option {
	return func(c *CandleCache) { c.clock = clk }
}

// WithMinCandles sets the fewest bars a fetch may return before it counts as unavailable.
func WithMinCandles(n int) Option {
	return func(c *CandleCache) { c.minCandles = n }
}

// WithRetry sets the attempt count and the base of the exponential backoff.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(c *CandleCache) {
		if attempts > 0 {
			c.retries = attempts
		}
		if backoff > 0 {
			c.backoff = backoff
		}
	}
}

func WithFetchTimeout(d time.Duration) Option {
	return func(c *CandleCache) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

func WithMetrics(m drepo.Metrics) Option {
	return func(c *CandleCache) { c.metrics = m }
}

func WithLogger(l *applogger.Logger) Option {
	return func(c *CandleCache) { c.l = l.Component("candle_cache") }
}

// New builds a cache over source, persisting entries in store.
func New(source drepo.CandleSource, store pkgcache.Store, opts ...Option) *CandleCache {
	c := &CandleCache{
		source:       source,
		store:        store,
		clock:        drepo.SystemClock{},
		ttl:          DefaultTTL,
		minCandles:   DefaultMinCandles,
		retries:      4,
		backoff:      500 * time.Millisecond,
		fetchTimeout: 15 * time.Second,
		metrics:      drepo.NopMetrics{},
		l:            applogger.Nop(),
		sleep:        sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type entry struct {
	FetchedAt time.Time           `json:"fetched_at"`
	Series    models.CandleSeries `json:"series"`
}

// Key returns the cache key for (symbol, interval, date range).
func (c *CandleCache) Key(symbol string, interval drepo.Interval, lookbackDays int) string {
	from, to := util.LookbackRange(c.clock.Now(), lookbackDays, 24*time.Hour)
	return pkgcache.GenerateKeyWithParams("candles", c.source.Name(), symbol, interval, util.DateKey(from), util.DateKey(to))
}

// GetCandles returns the series for symbol, from cache when fresh, otherwise from upstream.
func (c *CandleCache) GetCandles(ctx context.Context, symbol string, interval drepo.Interval, lookbackDays int) (models.CandleSeries, error) {
	if lookbackDays <= 0 {
		return models.CandleSeries{}, fmt.Errorf("%w: lookback days must be positive", errs.ErrInvalidConfig)
	}
	key := c.Key(symbol, interval, lookbackDays)

	if s, ok := c.lookup(ctx, key); ok {
		c.metrics.RecordCache("hit")
		return s.Window(s.Len()), nil
	}

	// The flight serves every caller waiting on key, so it must not die with the first
	// one. Each attempt is still bounded by fetchTimeout.
	flight := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		// another flight may have filled the key while this one queued
		if s, ok := c.lookup(flight, key); ok {
			return s, nil
		}
		c.metrics.RecordCache("miss")
		return c.load(flight, key, symbol, interval, lookbackDays)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return models.CandleSeries{}, ctx.Err()
	}
	if res.Err != nil {
		c.metrics.RecordCache("error")
		return models.CandleSeries{}, res.Err
	}
	if res.Shared {
		c.l.Debug("shared upstream fetch", applogger.String("key", key))
	}
	s := res.Val.(models.CandleSeries)
	return s.Window(s.Len()), nil
}

// Invalidate drops the entry for (symbol, interval, lookbackDays).
func (c *CandleCache) Invalidate(ctx context.Context, symbol string, interval drepo.Interval, lookbackDays int) error {
	return c.store.Delete(ctx, c.Key(symbol, interval, lookbackDays))
}

func (c *CandleCache) lookup(ctx context.Context, key string) (models.CandleSeries, bool) {
	var e entry
	if err := pkgcache.GetJSON(ctx, c.store, key, &e); err != nil {
		if !errors.Is(err, pkgcache.ErrCacheMiss) {
			c.l.Warn("cache read failed", applogger.String("key", key), applogger.Error(err))
		}
		return models.CandleSeries{}, false
	}
	if c.clock.Now().Sub(e.FetchedAt) >= c.ttl {
		return models.CandleSeries{}, false
	}
	return e.Series, true
}

func (c *CandleCache) load(ctx context.Context, key, symbol string, interval drepo.Interval, lookbackDays int) (models.CandleSeries, error) {
	now := c.clock.Now()
	from := now.AddDate(0, 0, -lookbackDays)

	candles, err := c.fetchWithRetry(ctx, symbol, interval, from, now)
	if err != nil {
		return models.CandleSeries{}, err
	}

	series := models.CandleSeries{Symbol: symbol, Interval: string(interval), Candles: candles}
	if err := series.Validate(); err != nil {
		return models.CandleSeries{}, fmt.Errorf("%w: %s: %v", errs.ErrDataUnavailable, symbol, err)
	}
	if series.Len() < c.minCandles {
		return models.CandleSeries{}, fmt.Errorf("%w: %s: got %d candles, need %d",
			errs.ErrDataUnavailable, symbol, series.Len(), c.minCandles)
	}

	if err := pkgcache.SetJSON(ctx, c.store, key, entry{FetchedAt: now, Series: series}, c.ttl); err != nil {
		c.l.Warn("cache write failed", applogger.String("key", key), applogger.Error(err))
	}
	c.l.Debug("series cached",
		applogger.String("symbol", symbol),
		applogger.String("interval", string(interval)),
		applogger.Int("candles", series.Len()),
	)
	return series, nil
}

func (c *CandleCache) fetchWithRetry(ctx context.Context, symbol string, interval drepo.Interval, from, to time.Time) ([]models.Candle, error) {
	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		if attempt > 0 {
			wait := c.backoff << (attempt - 1)
			if wait > maxBackoff || wait <= 0 {
				wait = maxBackoff
			}
			c.l.Warn("retrying upstream fetch",
				applogger.String("symbol", symbol),
				applogger.Int("attempt", attempt+1),
				applogger.Duration("backoff_ms", wait),
				applogger.Error(lastErr),
			)
			if err := c.sleep(ctx, wait); err != nil {
				return nil, err
			}
		}

		fctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
		candles, err := c.source.FetchCandles(fctx, symbol, interval, from, to)
		cancel()
		if err == nil {
			return candles, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		if !retryable(err) {
			break
		}
	}

	if errors.Is(lastErr, errs.ErrDataUnavailable) {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%w: %s: upstream failed after %d attempts: %v",
		errs.ErrDataUnavailable, symbol, c.retries, lastErr)
}

// retryable covers throttling and per-attempt timeouts; definitive upstream answers are not retried.
func retryable(err error) bool {
	if errors.Is(err, errs.ErrRateLimited) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return !errors.Is(err, errs.ErrDataUnavailable)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
