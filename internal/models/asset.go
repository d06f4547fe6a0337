package models

import (
	"time"
)

// Asset 媒体库中的一张图片。Identity is the URI.
type Asset struct {
	URI       string    `json:"uri"`
	Filename  string    `json:"filename"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	CreatedAt time.Time `json:"createdAt"`
	FileSize  int64     `json:"fileSize,omitempty"`
	MimeType  string    `json:"mimeType,omitempty"`
}

// AspectRatio returns width/height, or 0 when the dimensions are unknown.
func (a Asset) AspectRatio() float64 {
	if a.Width <= 0 || a.Height <= 0 {
		return 0
	}
	ratio := float64(a.Width) / float64(a.Height)
	if ratio < 1 {
		ratio = 1 / ratio
	}
	return ratio
}

// ScanOptions is a read-only snapshot taken at scan start.
type ScanOptions struct {
	BatchSize          int           `json:"batchSize" yaml:"batchSize"`
	MinFileSize        int64         `json:"minFileSize" yaml:"minFileSize"`
	MaxFileSize        int64         `json:"maxFileSize" yaml:"maxFileSize"`
	MaxAspectRatio     float64       `json:"maxAspectRatio" yaml:"maxAspectRatio"`
	WifiOnly           bool          `json:"wifiOnly" yaml:"wifiOnly"`
	BatterySaver       bool          `json:"batterySaver" yaml:"batterySaver"`
	SmartFilterEnabled bool          `json:"smartFilterEnabled" yaml:"smartFilterEnabled"`
	ScanNewOnly        bool          `json:"scanNewOnly" yaml:"scanNewOnly"`
	IncludeScreenshots bool          `json:"includeScreenshots" yaml:"includeScreenshots"`
	MaxRetries         int           `json:"maxRetries" yaml:"maxRetries"`
	AssetTimeout       time.Duration `json:"assetTimeout" yaml:"assetTimeout"`
	DateFrom           time.Time     `json:"dateFrom,omitempty" yaml:"dateFrom"`
	DateTo             time.Time     `json:"dateTo,omitempty" yaml:"dateTo"`
}

// DefaultScanOptions mirrors the defaults applied when no config is supplied.
func DefaultScanOptions() ScanOptions {
	return ScanOptions{
		BatchSize:          50,
		MinFileSize:        10 * 1024,
		MaxFileSize:        50 * 1024 * 1024,
		MaxAspectRatio:     3.0,
		SmartFilterEnabled: true,
		MaxRetries:         3,
		AssetTimeout:       10 * time.Second,
	}
}

// ScanState is the scheduler state machine position.
type ScanState string

const (
	ScanStateIdle      ScanState = "idle"
	ScanStateScanning  ScanState = "scanning"
	ScanStateCompleted ScanState = "completed"
	ScanStateStopped   ScanState = "stopped"
	ScanStateAborted   ScanState = "aborted"
)

// ScanProgress 扫描进度快照。Persisted after every batch.
type ScanProgress struct {
	TotalAssets          int       `json:"totalAssets"`
	ProcessedAssets      int       `json:"processedAssets"`
	LastScanTime         time.Time `json:"lastScanTime"`
	LastProcessedAssetID string    `json:"lastProcessedAssetId"`
	IsScanning           bool      `json:"isScanning"`
}

// FilterDecision is derived per asset and never persisted.
type FilterDecision struct {
	ShouldProcess bool   `json:"shouldProcess"`
	Priority      int    `json:"priority"`
	Reason        string `json:"reason"`
}

// FailedAssetEntry tracks a retryable per-asset failure.
type FailedAssetEntry struct {
	URI        string `json:"uri"`
	RetryCount int    `json:"retryCount"`
}

// ScanHistoryEntry is one completed (or stopped) scan. The store keeps the
// newest 50 entries.
type ScanHistoryEntry struct {
	Date           time.Time `json:"date"`
	AssetsScanned  int       `json:"assetsScanned"`
	DocumentsFound int       `json:"documentsFound"`
	DurationMs     int64     `json:"durationMs"`
}

// ScanStats aggregates failure statistics surfaced to the caller. Individual
// asset failures never raise user-visible errors during a scan.
type ScanStats struct {
	TotalAssets     int     `json:"totalAssets"`
	ProcessedAssets int     `json:"processedAssets"`
	DocumentsFound  int     `json:"documentsFound"`
	FailedAssets    int     `json:"failedAssets"`
	SuccessRate     float64 `json:"successRate"`
}
