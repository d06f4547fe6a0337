// Package scanerr defines the typed error kinds surfaced by the scan
// pipeline. Per-asset failures are recorded and aggregated, never raised
// individually to the caller; only critical memory pressure aborts a scan.
package scanerr

import (
	"errors"
	"fmt"
)

// Kind 错误类别
type Kind string

const (
	KindPermissionDenied       Kind = "permission_denied"
	KindDeviceConditionUnmet   Kind = "device_condition_unmet"
	KindEngineInitFailure      Kind = "engine_init_failure"
	KindAssetProcessingTimeout Kind = "asset_processing_timeout"
	KindAssetReadFailure       Kind = "asset_read_failure"
	KindEngineFailure          Kind = "engine_failure"
	KindPersistenceFailure     Kind = "persistence_failure"
	KindCriticalMemoryPressure Kind = "critical_memory_pressure"
)

// ScanError carries a kind plus the asset it concerns, when there is one.
type ScanError struct {
	Kind     Kind
	AssetURI string
	Err      error
}

func (e *ScanError) Error() string {
	if e.AssetURI != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: asset %s: %v", e.Kind, e.AssetURI, e.Err)
		}
		return fmt.Sprintf("%s: asset %s", e.Kind, e.AssetURI)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// New creates a ScanError without an asset context.
func New(kind Kind, err error) *ScanError {
	return &ScanError{Kind: kind, Err: err}
}

// ForAsset creates a ScanError tied to one asset URI.
func ForAsset(kind Kind, uri string, err error) *ScanError {
	return &ScanError{Kind: kind, AssetURI: uri, Err: err}
}

// KindOf extracts the kind from err, or "" if err is not a ScanError.
func KindOf(err error) Kind {
	var se *ScanError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Retryable reports whether a failure should land in the failed-asset queue.
// Scan-fatal and precondition errors are not retried per asset.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindAssetProcessingTimeout, KindAssetReadFailure, KindEngineFailure, KindPersistenceFailure:
		return true
	default:
		return false
	}
}
