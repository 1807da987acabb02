package exporter

import (
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"PolyChannel/internal/domain/errs"
	"PolyChannel/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func testRun() *models.AnalysisRun {
	created := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	series := models.CandleSeries{Symbol: "BTCUSDT", Interval: "1d"}
	for i := 0; i < 5; i++ {
		p := 100 + float64(i)
		series.Candles = append(series.Candles, models.Candle{
			Bucket: created.AddDate(0, 0, i-5), Symbol: "BTCUSDT",
			Open: p, High: p + 1, Low: p - 1, Close: p, Volume: 10,
		})
	}
	fit := models.ChannelFit{
		Config:     models.ChannelConfig{Degree: 1, KStd: 2, Lookback: 3},
		Centerline: []float64{102, 103, 104},
		UpperBand:  []float64{104, 105, 106},
		LowerBand:  []float64{100, 101, 102},
	}
	sig := models.Signal{Symbol: "BTCUSDT", Signal: models.SignalHold, CurrentPrice: 104, Centerline: 104,
		UpperBand: 106, LowerBand: 102, RiskLevel: models.RiskLow, Confirmations: []string{}, Timestamp: series.Candles[4].Bucket}
	an := models.AssetAnalytics{Symbol: "BTCUSDT", Candles: 5, Degree: 1, KStd: 2, Lookback: 3}

	failed := errs.NewAssetError("ETHUSDT", errs.StageFetch, errs.ErrDataUnavailable)

	run := &models.AnalysisRun{
		RunID:       created.Format(models.RunIDLayout),
		CreatedAt:   created,
		CompletedAt: created.Add(time.Second),
		Requested:   []string{"BTCUSDT", "ETHUSDT"},
		Signals:     []models.Signal{sig},
		Analytics:   []models.AssetAnalytics{an},
		Results: []models.AssetResult{
			{Symbol: "BTCUSDT", Series: series, Optimization: models.OptimizationResult{Symbol: "BTCUSDT", Best: fit, State: models.StateConverged, TrialsRun: 3}, Signal: sig, Analytics: an},
			{Symbol: "ETHUSDT", Err: failed},
		},
		Errors: []*errs.AssetError{failed},
	}
	run.Summary = models.RunSummary{RunID: run.RunID, TotalAssetsRequested: 2, TotalAssetsAnalyzed: 1, TotalAssetsFailed: 1, HoldSignals: 1}
	return run
}

func TestExport_WritesBundle(t *testing.T) {
	out := t.TempDir()
	run := testRun()

	m, err := New(out, WithCharts(true)).Export(context.Background(), run)
	require.NoError(t, err)

	dir := filepath.Join(out, "20240601_093000")
	assert.Equal(t, dir, m.Directory)
	assert.Equal(t, run.RunID, m.RunID)
	assert.NotEmpty(t, m.BundleID)

	want := []string{
		"alerts/alerts_20240601_093000.json",
		"analytics/analytics_20240601_093000.json",
		"charts/channels_20240601_093000.xlsx",
		"correlation/correlation_20240601_093000.json",
		"raw_data/BTCUSDT_20240601_093000.csv",
		"raw_data/BTCUSDT_analysis_20240601_093000.json",
		"raw_data/ETHUSDT_analysis_20240601_093000.json",
		"summary/summary_20240601_093000.json",
	}
	got := make([]string, 0, len(m.Files))
	var total int64
	for _, f := range m.Files {
		got = append(got, f.Path)
		b, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(f.Path)))
		require.NoError(t, err)
		sum := sha256.Sum256(b)
		assert.Equal(t, hex.EncodeToString(sum[:]), f.SHA256, f.Path)
		assert.Equal(t, int64(len(b)), f.Size)
		total += f.Size
	}
	assert.Equal(t, want, got)
	assert.Equal(t, total, m.TotalBytes)
	assert.FileExists(t, filepath.Join(dir, "manifest_20240601_093000.json"))

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	require.Len(t, entries, 1, "staging directory left behind")
}

func TestExport_DocumentContents(t *testing.T) {
	out := t.TempDir()
	_, err := New(out).Export(context.Background(), testRun())
	require.NoError(t, err)
	dir := filepath.Join(out, "20240601_093000")

	var alerts map[string]interface{}
	b, err := os.ReadFile(filepath.Join(dir, "alerts", "alerts_20240601_093000.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &alerts))
	assert.EqualValues(t, 1, alerts["count"])
	first := alerts["alerts"].([]interface{})[0].(map[string]interface{})
	for _, key := range []string{"symbol", "signal", "current_price", "upper_band", "lower_band", "centerline", "potential_return", "signal_strength", "risk_level", "confirmations", "timestamp"} {
		assert.Contains(t, first, key)
	}

	var summary map[string]interface{}
	b, err = os.ReadFile(filepath.Join(dir, "summary", "summary_20240601_093000.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &summary))
	assert.EqualValues(t, 2, summary["total_assets_requested"])
	assert.EqualValues(t, 1, summary["total_assets_analyzed"])
	assert.EqualValues(t, 1, summary["total_assets_failed"])

	f, err := os.Open(filepath.Join(dir, "raw_data", "BTCUSDT_20240601_093000.csv"))
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, "", rows[2][6], "bars before the channel window have no bands")
	assert.Equal(t, "102", rows[3][6])
	assert.Equal(t, "106", rows[5][7])
}

func TestExport_Workbook(t *testing.T) {
	out := t.TempDir()
	_, err := New(out, WithCharts(true)).Export(context.Background(), testRun())
	require.NoError(t, err)

	f, err := excelize.OpenFile(filepath.Join(out, "20240601_093000", "charts", "channels_20240601_093000.xlsx"))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Summary", "BTCUSDT"}, f.GetSheetList())
	v, err := f.GetCellValue("BTCUSDT", "C2")
	require.NoError(t, err)
	assert.Equal(t, "102", v)
}

func TestExport_Failures(t *testing.T) {
	t.Run("run not frozen", func(t *testing.T) {
		run := testRun()
		run.CompletedAt = time.Time{}
		_, err := New(t.TempDir()).Export(context.Background(), run)
		assert.True(t, errors.Is(err, errs.ErrExport))
	})

	t.Run("bundle already exists", func(t *testing.T) {
		out := t.TempDir()
		e := New(out)
		_, err := e.Export(context.Background(), testRun())
		require.NoError(t, err)
		_, err = e.Export(context.Background(), testRun())
		assert.True(t, errors.Is(err, errs.ErrExport))
	})

	t.Run("cancelled mid-export leaves nothing behind", func(t *testing.T) {
		out := t.TempDir()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := New(out).Export(ctx, testRun())
		assert.True(t, errors.Is(err, errs.ErrExport))

		entries, err := os.ReadDir(out)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("symbol escaping the bundle is refused", func(t *testing.T) {
		parent := t.TempDir()
		out := filepath.Join(parent, "out")
		run := testRun()
		run.Results[1].Symbol = "../../../ESCAPE"

		_, err := New(out).Export(context.Background(), run)
		assert.True(t, errors.Is(err, errs.ErrExport))

		_, statErr := os.Stat(filepath.Join(parent, "ESCAPE_analysis_20240601_093000.json"))
		assert.True(t, os.IsNotExist(statErr))
		entries, err := os.ReadDir(out)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("output path is a file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "taken")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
		_, err := New(file).Export(context.Background(), testRun())
		assert.True(t, errors.Is(err, errs.ErrExport))
	})
}

func TestBundlePath(t *testing.T) {
	root := filepath.Join(t.TempDir(), "bundle")
	tests := []struct {
		rel     string
		wantErr bool
	}{
		{"raw_data/BTCUSDT_20240601_093000.csv", false},
		{"raw_data/BRK.B_analysis_20240601_093000.json", false},
		{"raw_data/../summary/x.json", false},
		{"raw_data/../../x.json", true},
		{"../x.json", true},
		{"raw_data/../../../ESCAPE_analysis.json", true},
	}
	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			path, err := bundlePath(root, tt.rel)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(root, tt.rel), path)
		})
	}
}
