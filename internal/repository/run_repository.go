package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"PolyChannel/internal/domain/models"
	domrepo "PolyChannel/internal/domain/repository"
	pkgkafka "PolyChannel/pkg/kafka"
	applogger "PolyChannel/pkg/logger"
)

// BatchInserter is satisfied by *clickhouse.Client.
type BatchInserter interface {
	InsertBatch(ctx context.Context, query string, rows [][]interface{}) error
}

// RunTables names the three downstream tables a run is written into.
type RunTables struct {
	Alerts    string
	Analytics string
	Summary   string
}

// DefaultRunTables lives in the given database.
func DefaultRunTables(database string) RunTables {
	prefix := ""
	if database != "" {
		prefix = database + "."
	}
	return RunTables{
		Alerts:    prefix + "alerts",
		Analytics: prefix + "asset_analytics",
		Summary:   prefix + "run_summary",
	}
}

func (t RunTables) validate() error {
	for _, name := range []string{t.Alerts, t.Analytics, t.Summary} {
		if !tableName.MatchString(name) {
			return fmt.Errorf("invalid table name %q", name)
		}
	}
	return nil
}

// DDL returns CREATE statements for every run table.
func (t RunTables) DDL() []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
        run_id           String,
        symbol           LowCardinality(String),
        signal           LowCardinality(String),
        current_price    Float64,
        upper_band       Float64,
        lower_band       Float64,
        centerline       Float64,
        potential_return Float64,
        signal_strength  Float64,
        risk_level       LowCardinality(String),
        confirmations    Array(String),
        ts               DateTime64(3, 'UTC')
    ) ENGINE = MergeTree ORDER BY (run_id, symbol)`, t.Alerts),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
        run_id          String,
        symbol          LowCardinality(String),
        interval        LowCardinality(String),
        candles         UInt32,
        first_ts        DateTime64(3, 'UTC'),
        last_ts         DateTime64(3, 'UTC'),
        current_price   Float64,
        window_return   Float64,
        volatility      Float64,
        degree          UInt8,
        kstd            Float64,
        lookback        UInt32,
        sigma           Float64,
        objective_score Float64,
        trades          UInt32,
        optimizer_state LowCardinality(String),
        trials_run      UInt32,
        indicators      String
    ) ENGINE = MergeTree ORDER BY (run_id, symbol)`, t.Analytics),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
        run_id               String,
        created_at           DateTime64(3, 'UTC'),
        completed_at         DateTime64(3, 'UTC'),
        assets_requested     UInt32,
        assets_analyzed      UInt32,
        assets_failed        UInt32,
        buy_signals          UInt32,
        sell_signals         UInt32,
        hold_signals         UInt32,
        high_risk_signals    UInt32,
        avg_potential_return Float64,
        avg_signal_strength  Float64,
        correlated_pairs     UInt32,
        duration_ms          Int64
    ) ENGINE = ReplacingMergeTree ORDER BY run_id`, t.Summary),
	}
}

// ClickHouseRunSink writes a frozen run into the alerts, asset_analytics and run_summary tables.
type ClickHouseRunSink struct {
	db     BatchInserter
	tables RunTables
	l      *applogger.Logger
}

var _ domrepo.RunSink = (*ClickHouseRunSink)(nil)

func NewClickHouseRunSink(db BatchInserter, tables RunTables, l *applogger.Logger) (*ClickHouseRunSink, error) {
	if err := tables.validate(); err != nil {
		return nil, err
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &ClickHouseRunSink{db: db, tables: tables, l: l.Component("run_sink")}, nil
}

func (s *ClickHouseRunSink) SaveRun(ctx context.Context, run *models.AnalysisRun) error {
	if run == nil || !run.Frozen() {
		return fmt.Errorf("save run: run is not complete")
	}

	alerts := make([][]interface{}, 0, len(run.Signals))
	for _, sig := range run.Signals {
		alerts = append(alerts, []interface{}{
			run.RunID, sig.Symbol, string(sig.Signal), sig.CurrentPrice,
			sig.UpperBand, sig.LowerBand, sig.Centerline, sig.PotentialReturn,
			sig.SignalStrength, string(sig.RiskLevel), sig.Confirmations, sig.Timestamp,
		})
	}

	analytics := make([][]interface{}, 0, len(run.Analytics))
	for _, a := range run.Analytics {
		ind, err := json.Marshal(a.Indicators)
		if err != nil {
			return fmt.Errorf("encode indicators %s: %w", a.Symbol, err)
		}
		analytics = append(analytics, []interface{}{
			run.RunID, a.Symbol, a.Interval, uint32(a.Candles), a.FirstTimestamp, a.LastTimestamp,
			a.CurrentPrice, a.WindowReturn, a.AnnualizedVolatility, uint8(a.Degree), a.KStd,
			uint32(a.Lookback), a.Sigma, a.ObjectiveScore, uint32(a.Trades),
			string(a.OptimizerState), uint32(a.TrialsRun), string(ind),
		})
	}

	sm := run.Summary
	summary := [][]interface{}{{
		run.RunID, run.CreatedAt, run.CompletedAt,
		uint32(sm.TotalAssetsRequested), uint32(sm.TotalAssetsAnalyzed), uint32(sm.TotalAssetsFailed),
		uint32(sm.BuySignals), uint32(sm.SellSignals), uint32(sm.HoldSignals), uint32(sm.HighRiskSignals),
		sm.AvgPotentialReturn, sm.AvgSignalStrength, uint32(sm.CorrelatedPairs), sm.DurationMillis,
	}}

	writes := []struct {
		table string
		cols  []string
		rows  [][]interface{}
	}{
		{s.tables.Alerts, alertColumns, alerts},
		{s.tables.Analytics, analyticsColumns, analytics},
		{s.tables.Summary, summaryColumns, summary},
	}
	for _, w := range writes {
		if err := s.db.InsertBatch(ctx, insertQuery(w.table, w.cols), w.rows); err != nil {
			return fmt.Errorf("insert %s: %w", w.table, err)
		}
	}
	s.l.Info("run persisted",
		applogger.String("run_id", run.RunID),
		applogger.Int("alerts", len(alerts)),
		applogger.Int("analytics", len(analytics)))
	return nil
}

var (
	alertColumns = []string{"run_id", "symbol", "signal", "current_price", "upper_band", "lower_band",
		"centerline", "potential_return", "signal_strength", "risk_level", "confirmations", "ts"}
	analyticsColumns = []string{"run_id", "symbol", "interval", "candles", "first_ts", "last_ts",
		"current_price", "window_return", "volatility", "degree", "kstd", "lookback", "sigma",
		"objective_score", "trades", "optimizer_state", "trials_run", "indicators"}
	summaryColumns = []string{"run_id", "created_at", "completed_at", "assets_requested",
		"assets_analyzed", "assets_failed", "buy_signals", "sell_signals", "hold_signals",
		"high_risk_signals", "avg_potential_return", "avg_signal_strength", "correlated_pairs", "duration_ms"}
)

func insertQuery(table string, cols []string) string {
	return fmt.Sprintf("INSERT INTO %s (%s)", table, strings.Join(cols, ", "))
}

// RunCompletedEvent is the payload announced after a bundle is exported.
type RunCompletedEvent struct {
	Event        string            `json:"event"`
	RunID        string            `json:"run_id"`
	CompletedAt  time.Time         `json:"completed_at"`
	ManifestPath string            `json:"manifest_path"`
	Summary      models.RunSummary `json:"summary"`
}

const eventRunCompleted = "run.completed"

// KafkaRunPublisher announces finished runs on a topic keyed by run id.
type KafkaRunPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

var _ domrepo.RunPublisher = (*KafkaRunPublisher)(nil)

func NewKafkaRunPublisher(producer *pkgkafka.Producer, topic string) *KafkaRunPublisher {
	return &KafkaRunPublisher{producer: producer, topic: topic}
}

func (p *KafkaRunPublisher) PublishRunCompleted(ctx context.Context, run *models.AnalysisRun, manifestPath string) error {
	ev := RunCompletedEvent{
		Event:        eventRunCompleted,
		RunID:        run.RunID,
		CompletedAt:  run.CompletedAt,
		ManifestPath: manifestPath,
		Summary:      run.Summary,
	}
	return p.producer.PublishBatch(ctx, p.topic, []pkgkafka.Message{{
		Key:     []byte(run.RunID),
		Value:   ev,
		Headers: []kafka.Header{{Key: "event", Value: []byte(eventRunCompleted)}},
	}})
}

func (p *KafkaRunPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
