package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PolyChannel/internal/domain/models"
	pkgkafka "PolyChannel/pkg/kafka"
)

type recordingInserter struct {
	queries []string
	rows    [][][]interface{}
	failOn  string
}

func (r *recordingInserter) InsertBatch(_ context.Context, query string, rows [][]interface{}) error {
	if r.failOn != "" && strings.Contains(query, r.failOn) {
		return errors.New("boom")
	}
	r.queries = append(r.queries, query)
	r.rows = append(r.rows, rows)
	return nil
}

type captureWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error {
	w.closed = true
	return nil
}

func frozenRun() *models.AnalysisRun {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &models.AnalysisRun{
		RunID:       created.Format(models.RunIDLayout),
		CreatedAt:   created,
		CompletedAt: created.Add(time.Minute),
		Signals: []models.Signal{
			{Symbol: "BTC", Signal: models.SignalBuy, CurrentPrice: 44000, RiskLevel: models.RiskLow, Confirmations: []string{models.ConfirmVolume}},
			{Symbol: "ETH", Signal: models.SignalHold, CurrentPrice: 3000, RiskLevel: models.RiskLow, Confirmations: []string{}},
		},
		Analytics: []models.AssetAnalytics{{Symbol: "BTC", Interval: "1d", Candles: 365, Degree: 4, KStd: 2}},
		Summary:   models.RunSummary{RunID: "20260301_120000", TotalAssetsRequested: 2, TotalAssetsAnalyzed: 2, BuySignals: 1, HoldSignals: 1},
	}
}

func TestRunTables_DDL(t *testing.T) {
	tables := DefaultRunTables("polychannel")
	assert.Equal(t, "polychannel.alerts", tables.Alerts)
	ddl := tables.DDL()
	require.Len(t, ddl, 3)
	assert.Contains(t, ddl[0], "polychannel.alerts")
	assert.Contains(t, ddl[1], "polychannel.asset_analytics")
	assert.Contains(t, ddl[2], "polychannel.run_summary")
}

func TestNewClickHouseRunSink_RejectsBadTableName(t *testing.T) {
	_, err := NewClickHouseRunSink(&recordingInserter{}, RunTables{Alerts: "a; DROP", Analytics: "b", Summary: "c"}, nil)
	assert.Error(t, err)
}

func TestClickHouseRunSink_SaveRun(t *testing.T) {
	ins := &recordingInserter{}
	sink, err := NewClickHouseRunSink(ins, DefaultRunTables(""), nil)
	require.NoError(t, err)

	require.NoError(t, sink.SaveRun(context.Background(), frozenRun()))

	require.Len(t, ins.queries, 3)
	assert.True(t, strings.HasPrefix(ins.queries[0], "INSERT INTO alerts ("))
	assert.True(t, strings.HasPrefix(ins.queries[1], "INSERT INTO asset_analytics ("))
	assert.True(t, strings.HasPrefix(ins.queries[2], "INSERT INTO run_summary ("))

	require.Len(t, ins.rows[0], 2)
	assert.Len(t, ins.rows[0][0], len(alertColumns))
	assert.Equal(t, "BUY", ins.rows[0][0][2])
	require.Len(t, ins.rows[1], 1)
	assert.Len(t, ins.rows[1][0], len(analyticsColumns))
	require.Len(t, ins.rows[2], 1)
	assert.Len(t, ins.rows[2][0], len(summaryColumns))
	assert.Equal(t, uint32(2), ins.rows[2][0][3])
}

func TestClickHouseRunSink_Errors(t *testing.T) {
	sink, err := NewClickHouseRunSink(&recordingInserter{failOn: "asset_analytics"}, DefaultRunTables(""), nil)
	require.NoError(t, err)

	err = sink.SaveRun(context.Background(), frozenRun())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert asset_analytics")

	assert.Error(t, sink.SaveRun(context.Background(), &models.AnalysisRun{RunID: "open"}))
}

func TestKafkaRunPublisher_PublishRunCompleted(t *testing.T) {
	w := &captureWriter{}
	pub := NewKafkaRunPublisher(pkgkafka.NewProducerWithWriter(w, "gzip"), "polychannel.run.completed")
	run := frozenRun()

	require.NoError(t, pub.PublishRunCompleted(context.Background(), run, "/out/20260301_120000/manifest_20260301_120000.json"))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "polychannel.run.completed", msg.Topic)
	assert.Equal(t, []byte(run.RunID), msg.Key)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "run.completed", string(msg.Headers[0].Value))

	var ev RunCompletedEvent
	require.NoError(t, json.Unmarshal(msg.Value, &ev))
	assert.Equal(t, run.RunID, ev.RunID)
	assert.Equal(t, 1, ev.Summary.BuySignals)
	assert.Contains(t, ev.ManifestPath, "manifest_")

	require.NoError(t, pub.Close())
	assert.True(t, w.closed)
}
