package exporter

import (
	"time"

	"PolyChannel/internal/domain/errs"
	"PolyChannel/internal/domain/models"
)

// Export documents. Field names follow the alerts, asset_analytics and run_summary tables.

type alertsDocument struct {
	RunID       string          `json:"run_id"`
	GeneratedAt time.Time       `json:"generated_at"`
	Count       int             `json:"count"`
	Alerts      []models.Signal `json:"alerts"`
}

type analyticsDocument struct {
	RunID  string                  `json:"run_id"`
	Assets []models.AssetAnalytics `json:"assets"`
	Errors []*errs.AssetError      `json:"errors"`
}

type summaryDocument struct {
	models.RunSummary
	CreatedAt   time.Time          `json:"created_at"`
	CompletedAt time.Time          `json:"completed_at"`
	Requested   []string           `json:"requested_symbols"`
	Errors      []*errs.AssetError `json:"errors"`
}

type correlationDocument struct {
	RunID   string `json:"run_id"`
	Enabled bool   `json:"enabled"`
	*models.CorrelationReport
}

type assetDocument struct {
	RunID        string                     `json:"run_id"`
	Symbol       string                     `json:"symbol"`
	Signal       *models.Signal             `json:"signal,omitempty"`
	Analytics    *models.AssetAnalytics     `json:"analytics,omitempty"`
	Optimization *models.OptimizationResult `json:"optimization,omitempty"`
	Error        *errs.AssetError           `json:"error,omitempty"`
}

func newAlerts(run *models.AnalysisRun) alertsDocument {
	return alertsDocument{
		RunID:       run.RunID,
		GeneratedAt: run.CompletedAt,
		Count:       len(run.Signals),
		Alerts:      run.Signals,
	}
}

func newSummary(run *models.AnalysisRun) summaryDocument {
	return summaryDocument{
		RunSummary:  run.Summary,
		CreatedAt:   run.CreatedAt,
		CompletedAt: run.CompletedAt,
		Requested:   run.Requested,
		Errors:      run.Errors,
	}
}

func newCorrelation(run *models.AnalysisRun) correlationDocument {
	return correlationDocument{
		RunID:             run.RunID,
		Enabled:           run.Correlations != nil,
		CorrelationReport: run.Correlations,
	}
}

func newAsset(runID string, r models.AssetResult) assetDocument {
	doc := assetDocument{RunID: runID, Symbol: r.Symbol}
	if r.Err != nil {
		doc.Error = r.Err
		if r.Optimization.TrialsRun > 0 {
			opt := r.Optimization
			doc.Optimization = &opt
		}
		return doc
	}
	sig, an, opt := r.Signal, r.Analytics, r.Optimization
	doc.Signal, doc.Analytics, doc.Optimization = &sig, &an, &opt
	return doc
}
