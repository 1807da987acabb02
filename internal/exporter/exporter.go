// Package exporter writes a frozen analysis run as a versioned bundle on disk.
package exporter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"PolyChannel/internal/domain/errs"
	"PolyChannel/internal/domain/models"
	drepo "PolyChannel/internal/domain/repository"
	applogger "PolyChannel/pkg/logger"

	"github.com/google/uuid"
)

// BundleVersion is stamped into every manifest.
const BundleVersion = "1.0"

const (
	dirAlerts      = "alerts"
	dirAnalytics   = "analytics"
	dirSummary     = "summary"
	dirCorrelation = "correlation"
	dirRaw         = "raw_data"
	dirCharts      = "charts"
)

type Exporter struct {
	outputDir string
	rawData   bool
	charts    bool
	clock     drepo.Clock
	l         *applogger.Logger
}

type Option func(*Exporter)

func WithRawData(enabled bool) Option {
	return func(e *Exporter) { e.rawData = enabled }
}

// WithCharts adds the channel workbook to the bundle.
func WithCharts(enabled bool) Option {
	return func(e *Exporter) { e.charts = enabled }
}

func WithClock(c drepo.Clock) Option {
	return func(e *Exporter) { e.clock = c }
}

func WithLogger(l *applogger.Logger) Option {
	return func(e *Exporter) { e.l = l.Component("exporter") }
}

func New(outputDir string, opts ...Option) *Exporter {
	e := &Exporter{
		outputDir: outputDir,
		rawData:   true,
		clock:     drepo.SystemClock{},
		l:         applogger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export writes <output>/<run_id>/ atomically: everything is staged in a hidden
// directory next to the target and renamed into place once complete. On any error
// the staging directory is removed and nothing appears under the run id.
func (e *Exporter) Export(ctx context.Context, run *models.AnalysisRun) (m *models.Manifest, err error) {
	if run == nil || !run.Frozen() {
		return nil, fmt.Errorf("%w: run is not frozen", errs.ErrExport)
	}
	if err := os.MkdirAll(e.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create output directory: %v", errs.ErrExport, err)
	}

	final := filepath.Join(e.outputDir, run.RunID)
	if _, statErr := os.Stat(final); statErr == nil {
		return nil, fmt.Errorf("%w: bundle %s already exists", errs.ErrExport, final)
	}

	staging, err := os.MkdirTemp(e.outputDir, ".staging-"+run.RunID+"-")
	if err != nil {
		return nil, fmt.Errorf("%w: create staging directory: %v", errs.ErrExport, err)
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(staging)
			e.l.Error("export aborted", applogger.String("run_id", run.RunID), applogger.Error(err))
		}
	}()

	symbols, err := e.writeBundle(ctx, staging, run)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrExport, err)
	}

	m, err = e.manifest(staging, run, symbols)
	if err != nil {
		return nil, fmt.Errorf("%w: manifest: %v", errs.ErrExport, err)
	}
	if err = writeJSON(filepath.Join(staging, "manifest_"+run.RunID+".json"), m); err != nil {
		return nil, fmt.Errorf("%w: manifest: %v", errs.ErrExport, err)
	}

	if err = os.Rename(staging, final); err != nil {
		return nil, fmt.Errorf("%w: publish bundle: %v", errs.ErrExport, err)
	}
	m.Directory = final

	e.l.Info("bundle exported",
		applogger.String("run_id", run.RunID),
		applogger.String("directory", final),
		applogger.Int("files", len(m.Files)),
		applogger.Int64("bytes", m.TotalBytes),
	)
	return m, nil
}

// writeBundle writes every bundle file under root and returns the symbol of each
// per-asset file keyed by its relative path.
func (e *Exporter) writeBundle(ctx context.Context, root string, run *models.AnalysisRun) (map[string]string, error) {
	id := run.RunID
	symbols := map[string]string{}

	docs := []struct {
		rel string
		v   interface{}
	}{
		{filepath.Join(dirAlerts, "alerts_"+id+".json"), newAlerts(run)},
		{filepath.Join(dirAnalytics, "analytics_"+id+".json"), analyticsDocument{RunID: id, Assets: run.Analytics, Errors: run.Errors}},
		{filepath.Join(dirSummary, "summary_"+id+".json"), newSummary(run)},
		{filepath.Join(dirCorrelation, "correlation_"+id+".json"), newCorrelation(run)},
	}
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path, err := bundlePath(root, d.rel)
		if err != nil {
			return nil, err
		}
		if err := writeJSON(path, d.v); err != nil {
			return nil, fmt.Errorf("write %s: %w", d.rel, err)
		}
	}

	if e.rawData {
		for _, r := range run.Results {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if r.Fetched() {
				rel := filepath.Join(dirRaw, r.Symbol+"_"+id+".csv")
				path, err := bundlePath(root, rel)
				if err != nil {
					return nil, err
				}
				var fit *models.ChannelFit
				if r.Err == nil {
					fit = &r.Optimization.Best
				}
				series := r.Series
				if err := writeFile(path, func(w io.Writer) error {
					return writeRawCSV(w, series, fit)
				}); err != nil {
					return nil, fmt.Errorf("write %s: %w", rel, err)
				}
				symbols[rel] = r.Symbol
			}

			rel := filepath.Join(dirRaw, r.Symbol+"_analysis_"+id+".json")
			path, err := bundlePath(root, rel)
			if err != nil {
				return nil, err
			}
			if err := writeJSON(path, newAsset(id, r)); err != nil {
				return nil, fmt.Errorf("write %s: %w", rel, err)
			}
			symbols[rel] = r.Symbol
		}
	}

	if e.charts {
		rel := filepath.Join(dirCharts, "channels_"+id+".xlsx")
		if err := os.MkdirAll(filepath.Join(root, dirCharts), 0o755); err != nil {
			return nil, err
		}
		if err := writeWorkbook(filepath.Join(root, rel), run); err != nil {
			return nil, fmt.Errorf("write %s: %w", rel, err)
		}
	}
	return symbols, nil
}

func (e *Exporter) manifest(root string, run *models.AnalysisRun, symbols map[string]string) (*models.Manifest, error) {
	m := &models.Manifest{
		BundleID:    uuid.NewString(),
		RunID:       run.RunID,
		Version:     BundleVersion,
		CreatedAt:   run.CreatedAt,
		CompletedAt: run.CompletedAt,
		ExportedAt:  e.clock.Now().UTC(),
		Summary:     run.Summary,
		Files:       []models.ManifestFile{},
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		size, sum, err := hashFile(path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		m.Files = append(m.Files, models.ManifestFile{
			Path:   rel,
			Kind:   strings.SplitN(rel, "/", 2)[0],
			Symbol: symbols[filepath.FromSlash(rel)],
			Size:   size,
			SHA256: sum,
		})
		m.TotalBytes += size
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(m.Files, func(i, j int) bool { return m.Files[i].Path < m.Files[j].Path })
	return m, nil
}

// bundlePath joins rel under root and refuses any result that lands outside root.
func bundlePath(root, rel string) (string, error) {
	path := filepath.Join(root, rel)
	back, err := filepath.Rel(root, path)
	if err != nil || back == ".." || strings.HasPrefix(back, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("file %q escapes the bundle directory", rel)
	}
	return path, nil
}

func hashFile(path string) (int64, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, "", err
	}
	defer f.Close()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return 0, "", err
	}
	return n, hex.EncodeToString(h.Sum(nil)), nil
}

func writeJSON(path string, v interface{}) error {
	return writeFile(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}

func writeFile(path string, fn func(io.Writer) error) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if err := fn(f); err != nil {
		return err
	}
	return f.Sync()
}
