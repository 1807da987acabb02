package models

import "time"

// ManifestFile is one file of an export bundle, relative to the bundle root.
type ManifestFile struct {
	Path   string `json:"path"`
	Kind   string `json:"kind"`
	Symbol string `json:"symbol,omitempty"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}

// Manifest describes a written bundle.
type Manifest struct {
	BundleID    string         `json:"bundle_id"`
	RunID       string         `json:"run_id"`
	Version     string         `json:"version"`
	CreatedAt   time.Time      `json:"created_at"`
	CompletedAt time.Time      `json:"completed_at"`
	ExportedAt  time.Time      `json:"exported_at"`
	Directory   string         `json:"directory"`
	Summary     RunSummary     `json:"summary"`
	Files       []ManifestFile `json:"files"`
	TotalBytes  int64          `json:"total_bytes"`
}
