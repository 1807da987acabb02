package exporter

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"PolyChannel/internal/domain/models"
)

var csvHeader = []string{"timestamp", "open", "high", "low", "close", "volume", "centerline", "upper_band", "lower_band"}

// writeRawCSV writes one row per candle. Channel columns are filled for the bars the
// best channel was fitted on and left empty before them.
func writeRawCSV(w io.Writer, series models.CandleSeries, fit *models.ChannelFit) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	offset := series.Len()
	if fit != nil {
		offset = series.Len() - len(fit.Centerline)
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

	for i, c := range series.Candles {
		row := []string{
			c.Bucket.UTC().Format(time.RFC3339),
			f(c.Open), f(c.High), f(c.Low), f(c.Close), f(c.Volume),
			"", "", "",
		}
		if fit != nil && i >= offset {
			j := i - offset
			row[6], row[7], row[8] = f(fit.Centerline[j]), f(fit.UpperBand[j]), f(fit.LowerBand[j])
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
