// Package assets enumerates and reads raw media assets. Sources must return
// stable URIs and creation timestamps; everything downstream keys on the URI.
package assets

import (
	"context"
	"fmt"
	"io"

	"github.com/docuvault/docscan/config"
	"github.com/docuvault/docscan/internal/models"
	"github.com/docuvault/docscan/pkg/logger"
)

// SourceType 资产来源类型
type SourceType string

const (
	SourceTypeFilesystem SourceType = "filesystem"
	SourceTypeMinio      SourceType = "minio"
	SourceTypeS3         SourceType = "s3"
)

// Query bounds an asset listing.
type Query struct {
	// MimeTypes restricts results; empty means all images.
	MimeTypes []string
}

// Source enumerates assets and opens their content.
type Source interface {
	// ListAssets returns every asset visible to the source.
	ListAssets(ctx context.Context, query Query) ([]models.Asset, error)
	// Open returns the raw bytes behind a URI.
	Open(ctx context.Context, uri string) (io.ReadCloser, error)
	// Local reports whether URIs resolve to readable local paths. Remote
	// sources require materialization into a temp file before OCR.
	Local() bool
}

// NewSource creates a source by type.
func NewSource(sourceType SourceType, cfg *config.Config, log logger.Logger) (Source, error) {
	switch sourceType {
	case SourceTypeFilesystem:
		return NewFilesystemSource(cfg.Assets.Root, log), nil
	case SourceTypeMinio:
		return NewMinioSource(log)
	case SourceTypeS3:
		return NewS3Source(context.Background(), log)
	default:
		return nil, fmt.Errorf("unsupported asset source: %s", sourceType)
	}
}
