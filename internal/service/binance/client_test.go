package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"PolyChannel/internal/domain/errs"
	drepo "PolyChannel/internal/domain/repository"
	"PolyChannel/internal/service/ratelimit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func klineRow(openMs int64, close float64) string {
	return fmt.Sprintf(`[%d,"%.2f","%.2f","%.2f","%.2f","12.5",%d,"1000.0",42,"6.0","500.0","0"]`,
		openMs, close-1, close+2, close-2, close, openMs+86_399_999)
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New("", "", WithBaseURL(srv.URL), WithLimiter(ratelimit.New(1000, 1000)))
}

func TestFetchCandles_ParsesKlines(t *testing.T) {
	day0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		rows := []string{
			klineRow(day0.UnixMilli(), 42000),
			klineRow(day0.AddDate(0, 0, 1).UnixMilli(), 42500),
			klineRow(day0.AddDate(0, 0, 2).UnixMilli(), 43000),
		}
		_, _ = w.Write([]byte("[" + strings.Join(rows, ",") + "]"))
	})

	got, err := c.FetchCandles(context.Background(), "BTCUSDT", drepo.Interval1d, day0, day0.AddDate(0, 0, 3))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, day0, got[0].Bucket)
	assert.Equal(t, 42000.0, got[0].Close)
	assert.Equal(t, 43002.0, got[2].High)
	assert.Equal(t, 12.5, got[1].Volume)
	assert.Equal(t, "BTCUSDT", got[1].Symbol)
}

func TestFetchCandles_RateLimitedIsClassified(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"code":-1003,"msg":"Too many requests."}`))
	})

	_, err := c.FetchCandles(context.Background(), "BTCUSDT", drepo.Interval1d, time.Now().AddDate(0, 0, -5), time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrRateLimited), "got %v", err)
}

func TestFetchCandles_UnknownSymbolIsUnavailable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	})

	_, err := c.FetchCandles(context.Background(), "NOPE", drepo.Interval1d, time.Now().AddDate(0, 0, -5), time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrDataUnavailable), "got %v", err)
}

func TestTopSymbolsByVolume(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v3/ticker/24hr", r.URL.Path)
		_, _ = w.Write([]byte(`[
			{"symbol":"ETHUSDT","quoteVolume":"900.5"},
			{"symbol":"BTCUSDT","quoteVolume":"1500.0"},
			{"symbol":"ETHBTC","quoteVolume":"99999"},
			{"symbol":"SOLUSDT","quoteVolume":"300"},
			{"symbol":"DOGEUSDT","quoteVolume":"0"}
		]`))
	})

	got, err := c.TopSymbolsByVolume(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, got)
}
