// Package preprocess normalizes asset images before OCR: remote URIs are
// materialized into tracked temp files and oversized images are downscaled
// to bound peak memory during engine runs.
package preprocess

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"io/fs"
	"os"

	"github.com/disintegration/imaging"

	"github.com/docuvault/docscan/internal/assets"
	"github.com/docuvault/docscan/internal/models"
	"github.com/docuvault/docscan/internal/scanerr"
	"github.com/docuvault/docscan/pkg/logger"
)

// MaxDimension is the longest image edge fed to the OCR engines. Larger
// images are resized down, preserving aspect ratio.
const MaxDimension = 2560

const jpegQuality = 92

// Preprocessor prepares one asset for OCR.
type Preprocessor struct {
	source assets.Source
	logger logger.Logger
}

func New(source assets.Source, log logger.Logger) *Preprocessor {
	return &Preprocessor{source: source, logger: log}
}

// Prepare returns a readable local path for the asset, creating tracked temp
// files as needed. The returned path stays valid until tracker.Release.
func (p *Preprocessor) Prepare(ctx context.Context, asset models.Asset, tracker *TempTracker) (string, error) {
	localPath := asset.URI
	if !p.source.Local() {
		materialized, err := p.materialize(ctx, asset, tracker)
		if err != nil {
			return "", err
		}
		localPath = materialized
	}

	needsResize := asset.Width > MaxDimension || asset.Height > MaxDimension
	if !needsResize {
		return localPath, nil
	}

	resized, err := p.resize(localPath, tracker)
	if err != nil {
		// Resize failures are not fatal; the engines get the original.
		p.logger.Warn("Failed to resize oversized image",
			logger.String("uri", asset.URI),
			logger.Error(err),
		)
		return localPath, nil
	}
	return resized, nil
}

func (p *Preprocessor) materialize(ctx context.Context, asset models.Asset, tracker *TempTracker) (string, error) {
	reader, err := p.source.Open(ctx, asset.URI)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return "", scanerr.ForAsset(scanerr.KindPermissionDenied, asset.URI, err)
		}
		return "", scanerr.ForAsset(scanerr.KindAssetReadFailure, asset.URI, err)
	}
	defer reader.Close()

	tmp, err := tracker.Create("docscan-asset-*.img")
	if err != nil {
		return "", scanerr.ForAsset(scanerr.KindAssetReadFailure, asset.URI, err)
	}
	defer tmp.Close()

	if _, err := io.Copy(tmp, reader); err != nil {
		return "", scanerr.ForAsset(scanerr.KindAssetReadFailure, asset.URI, err)
	}

	return tmp.Name(), nil
}

func (p *Preprocessor) resize(path string, tracker *TempTracker) (string, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() <= MaxDimension && bounds.Dy() <= MaxDimension {
		return path, nil
	}

	resized := imaging.Fit(img, MaxDimension, MaxDimension, imaging.Lanczos)

	tmp, err := tracker.Create("docscan-resized-*.jpg")
	if err != nil {
		return "", err
	}
	defer tmp.Close()

	if err := jpeg.Encode(tmp, resized, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", fmt.Errorf("failed to encode resized image: %w", err)
	}

	return tmp.Name(), nil
}

// Normalize applies grayscale and contrast normalization ahead of OCR.
// Engines receive the normalized image in memory.
func Normalize(img image.Image) image.Image {
	gray := imaging.Grayscale(img)
	return imaging.AdjustContrast(gray, 10)
}

// LoadImage decodes an image file from disk.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, nil
}
