package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"PolyChannel/internal/domain/errs"
	"PolyChannel/internal/domain/models"
	drepo "PolyChannel/internal/domain/repository"
	"PolyChannel/internal/service/ratelimit"
	applogger "PolyChannel/pkg/logger"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
)

const (
	pageLimit = 1000

	// Binance codes for request-weight and order-rate bans.
	codeTooManyRequests = -1003
	codeTooManyOrders   = -1015
)

// Option configures Client.
type Option func(*Client)

// Client implements CandleSource and UniverseSource against the Binance spot REST API.
type Client struct {
	api        *gobinance.Client
	limiter    *ratelimit.Limiter
	quoteAsset string
	l          *applogger.Logger
}

// New creates a Binance client. Public market data endpoints work without keys.
func New(apiKey, secretKey string, opts ...Option) *Client {
	c := &Client{
		api:        gobinance.NewClient(apiKey, secretKey),
		limiter:    ratelimit.New(10, 20),
		quoteAsset: "USDT",
		l:          applogger.Nop(),
	}
	c.api.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithBaseURL points the client at another endpoint (testnet, mirror, test server).
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.api.BaseURL = u
		}
	}
}

// WithLimiter shares a limiter across clients.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithQuoteAsset restricts universe selection to pairs quoted in asset.
func WithQuoteAsset(asset string) Option {
	return func(c *Client) { c.quoteAsset = strings.ToUpper(asset) }
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.api.HTTPClient = &http.Client{Timeout: d} }
}

// WithLogger sets the logger.
func WithLogger(l *applogger.Logger) Option {
	return func(c *Client) { c.l = l.Component("binance") }
}

func (c *Client) Name() string { return "binance" }

// FetchCandles pages through klines in [from, to].
func (c *Client) FetchCandles(ctx context.Context, symbol string, interval drepo.Interval, from, to time.Time) ([]models.Candle, error) {
	start := from.UnixMilli()
	end := to.UnixMilli()
	bar := interval.Duration().Milliseconds()

	out := make([]models.Candle, 0, 512)
	for start <= end {
		if err := c.limiter.Wait(ctx, c.Name()); err != nil {
			return nil, err
		}
		klines, err := c.api.NewKlinesService().
			Symbol(symbol).
			Interval(string(interval)).
			StartTime(start).
			EndTime(end).
			Limit(pageLimit).
			Do(ctx)
		if err != nil {
			return nil, classify(err)
		}
		for _, k := range klines {
			cd, err := toCandle(symbol, k)
			if err != nil {
				return nil, fmt.Errorf("%w: %s kline %d: %v", errs.ErrDataUnavailable, symbol, k.OpenTime, err)
			}
			out = append(out, cd)
		}
		if len(klines) < pageLimit {
			break
		}
		start = klines[len(klines)-1].OpenTime + bar
	}

	c.l.Debug("klines fetched",
		applogger.String("symbol", symbol),
		applogger.String("interval", string(interval)),
		applogger.Int("count", len(out)),
	)
	return out, nil
}

// TopSymbolsByVolume returns the n most traded pairs in the quote asset over the last 24h.
func (c *Client) TopSymbolsByVolume(ctx context.Context, n int) ([]string, error) {
	if err := c.limiter.Wait(ctx, c.Name()); err != nil {
		return nil, err
	}
	stats, err := c.api.NewListPriceChangeStatsService().Do(ctx)
	if err != nil {
		return nil, classify(err)
	}

	type ranked struct {
		symbol string
		volume float64
	}
	rows := make([]ranked, 0, len(stats))
	for _, s := range stats {
		if s == nil || !strings.HasSuffix(s.Symbol, c.quoteAsset) || s.Symbol == c.quoteAsset {
			continue
		}
		v, err := strconv.ParseFloat(s.QuoteVolume, 64)
		if err != nil || v <= 0 {
			continue
		}
		rows = append(rows, ranked{symbol: s.Symbol, volume: v})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].volume != rows[j].volume {
			return rows[i].volume > rows[j].volume
		}
		return rows[i].symbol < rows[j].symbol
	})
	if n > 0 && len(rows) > n {
		rows = rows[:n]
	}
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.symbol
	}
	return out, nil
}

func toCandle(symbol string, k *gobinance.Kline) (models.Candle, error) {
	parse := func(s string) (float64, error) { return strconv.ParseFloat(s, 64) }
	o, err := parse(k.Open)
	if err != nil {
		return models.Candle{}, err
	}
	h, err := parse(k.High)
	if err != nil {
		return models.Candle{}, err
	}
	l, err := parse(k.Low)
	if err != nil {
		return models.Candle{}, err
	}
	cl, err := parse(k.Close)
	if err != nil {
		return models.Candle{}, err
	}
	v, err := parse(k.Volume)
	if err != nil {
		return models.Candle{}, err
	}
	return models.Candle{
		Bucket: time.UnixMilli(k.OpenTime).UTC(),
		Symbol: symbol,
		Open:   o,
		High:   h,
		Low:    l,
		Close:  cl,
		Volume: v,
	}, nil
}

func classify(err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == codeTooManyRequests || apiErr.Code == codeTooManyOrders {
			return fmt.Errorf("%w: binance: %s", errs.ErrRateLimited, apiErr.Message)
		}
		return fmt.Errorf("%w: binance: %s", errs.ErrDataUnavailable, apiErr.Error())
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: binance: %v", errs.ErrDataUnavailable, err)
}
