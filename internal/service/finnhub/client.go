package finnhub

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"PolyChannel/internal/domain/errs"
	"PolyChannel/internal/domain/models"
	drepo "PolyChannel/internal/domain/repository"
	"PolyChannel/internal/service/ratelimit"
	xhttp "PolyChannel/pkg/http"
	applogger "PolyChannel/pkg/logger"
)

const defaultBaseURL = "https://finnhub.io/api/v1"

// Client implements CandleSource backed by the Finnhub REST candle endpoint.
type Client struct {
	apiKey  string
	baseURL string
	http    *xhttp.Client
	limiter *ratelimit.Limiter
	l       *applogger.Logger
}

// Option configures Client.
type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

func WithHTTPClient(hc *xhttp.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLimiter(l *ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

func WithLogger(l *applogger.Logger) Option {
	return func(c *Client) { c.l = l.Component("finnhub") }
}

// New creates a Finnhub candle source.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    xhttp.NewClient(xhttp.WithTimeout(15 * time.Second)),
		limiter: ratelimit.New(1, 5), // free tier: 60 calls/minute
		l:       applogger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string { return "finnhub" }

type candleResponse struct {
	Status string    `json:"s"`
	Open   []float64 `json:"o"`
	High   []float64 `json:"h"`
	Low    []float64 `json:"l"`
	Close  []float64 `json:"c"`
	Volume []float64 `json:"v"`
	Time   []int64   `json:"t"`
}

// FetchCandles requests /stock/candle for [from, to].
func (c *Client) FetchCandles(ctx context.Context, symbol string, interval drepo.Interval, from, to time.Time) ([]models.Candle, error) {
	res, err := resolution(interval)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrDataUnavailable, err)
	}
	if err := c.limiter.Wait(ctx, c.Name()); err != nil {
		return nil, err
	}

	var body candleResponse
	err = c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/stock/candle",
		QueryParams: map[string][]string{
			"symbol":     {symbol},
			"resolution": {res},
			"from":       {strconv.FormatInt(from.Unix(), 10)},
			"to":         {strconv.FormatInt(to.Unix(), 10)},
		},
		Headers: map[string]string{"X-Finnhub-Token": c.apiKey},
	}, &body)
	if err != nil {
		var se *xhttp.StatusError
		if errors.As(err, &se) && se.TooManyRequests() {
			return nil, fmt.Errorf("%w: finnhub %s", errs.ErrRateLimited, symbol)
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: finnhub %s: %v", errs.ErrDataUnavailable, symbol, err)
	}

	if body.Status != "ok" {
		return nil, fmt.Errorf("%w: finnhub %s: status %q", errs.ErrDataUnavailable, symbol, body.Status)
	}
	n := len(body.Time)
	if len(body.Open) != n || len(body.High) != n || len(body.Low) != n || len(body.Close) != n || len(body.Volume) != n {
		return nil, fmt.Errorf("%w: finnhub %s: ragged candle arrays", errs.ErrDataUnavailable, symbol)
	}

	out := make([]models.Candle, n)
	for i := 0; i < n; i++ {
		out[i] = models.Candle{
			Bucket: time.Unix(body.Time[i], 0).UTC(),
			Symbol: symbol,
			Open:   body.Open[i],
			High:   body.High[i],
			Low:    body.Low[i],
			Close:  body.Close[i],
			Volume: body.Volume[i],
		}
	}
	c.l.Debug("candles fetched",
		applogger.String("symbol", symbol),
		applogger.String("resolution", res),
		applogger.Int("count", n),
	)
	return out, nil
}

func resolution(iv drepo.Interval) (string, error) {
	switch iv {
	case "1m":
		return "1", nil
	case "5m":
		return "5", nil
	case drepo.Interval15m:
		return "15", nil
	case "30m":
		return "30", nil
	case drepo.Interval1h:
		return "60", nil
	case drepo.Interval1d:
		return "D", nil
	case drepo.Interval1w:
		return "W", nil
	default:
		return "", fmt.Errorf("finnhub has no resolution for interval %s", iv)
	}
}
