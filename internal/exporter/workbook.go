package exporter

import (
	"fmt"

	"PolyChannel/internal/domain/models"

	"github.com/xuri/excelize/v2"
)

const summarySheet = "Summary"

// writeWorkbook saves one sheet per analyzed asset holding the fitted window
// (close, centerline, upper, lower) plus a line chart over it.
func writeWorkbook(path string, run *models.AnalysisRun) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), summarySheet); err != nil {
		return err
	}
	header := []interface{}{"symbol", "signal", "current_price", "lower_band", "centerline", "upper_band", "potential_return", "risk_level", "degree", "kstd", "lookback"}
	if err := f.SetSheetRow(summarySheet, "A1", &header); err != nil {
		return err
	}

	row := 2
	for _, r := range run.Results {
		if r.Err != nil {
			continue
		}
		s := r.Signal
		cfg := r.Optimization.Best.Config
		values := []interface{}{s.Symbol, string(s.Signal), s.CurrentPrice, s.LowerBand, s.Centerline, s.UpperBand, s.PotentialReturn, string(s.RiskLevel), cfg.Degree, cfg.KStd, cfg.Lookback}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(summarySheet, cell, &values); err != nil {
			return err
		}
		row++

		if err := channelSheet(f, r); err != nil {
			return fmt.Errorf("sheet %s: %w", r.Symbol, err)
		}
	}

	return f.SaveAs(path)
}

func channelSheet(f *excelize.File, r models.AssetResult) error {
	sheet := r.Symbol
	if len(sheet) > 31 {
		sheet = sheet[:31]
	}
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	header := []interface{}{"timestamp", "close", "centerline", "upper_band", "lower_band"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	fit := r.Optimization.Best
	n := len(fit.Centerline)
	window := r.Series.Window(n)
	for i, c := range window.Candles {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := []interface{}{c.Bucket.Format("2006-01-02 15:04"), c.Close, fit.Centerline[i], fit.UpperBand[i], fit.LowerBand[i]}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	if n == 0 {
		return nil
	}

	last := n + 1
	series := make([]excelize.ChartSeries, 0, 4)
	for _, col := range []string{"B", "C", "D", "E"} {
		series = append(series, excelize.ChartSeries{
			Name:       fmt.Sprintf("'%s'!$%s$1", sheet, col),
			Categories: fmt.Sprintf("'%s'!$A$2:$A$%d", sheet, last),
			Values:     fmt.Sprintf("'%s'!$%s$2:$%s$%d", sheet, col, col, last),
		})
	}
	return f.AddChart(sheet, "G2", &excelize.Chart{
		Type:   excelize.Line,
		Series: series,
		Title:  []excelize.RichTextRun{{Text: fmt.Sprintf("%s %s", r.Symbol, fit.Config)}},
		Legend: excelize.ChartLegend{Position: "bottom"},
	})
}
