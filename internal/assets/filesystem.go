package assets

import (
	"context"
	"fmt"
	"image"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	"github.com/docuvault/docscan/internal/models"
	"github.com/docuvault/docscan/pkg/logger"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".tiff": true,
	".bmp":  true,
	".gif":  true,
	".webp": true,
}

// FilesystemSource walks a directory tree for image files.
type FilesystemSource struct {
	root   string
	logger logger.Logger
}

func NewFilesystemSource(root string, log logger.Logger) *FilesystemSource {
	return &FilesystemSource{root: root, logger: log}
}

func (s *FilesystemSource) Local() bool {
	return true
}

func (s *FilesystemSource) ListAssets(ctx context.Context, query Query) ([]models.Asset, error) {
	var found []models.Asset

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtree; skip rather than fail the whole listing.
			s.logger.Warn("Skipping unreadable path",
				logger.String("path", path),
				logger.Error(err),
			)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if !imageExtensions[ext] {
			return nil
		}

		mimeType := mime.TypeByExtension(ext)
		if len(query.MimeTypes) > 0 && !containsMime(query.MimeTypes, mimeType) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		asset := models.Asset{
			URI:       path,
			Filename:  filepath.Base(path),
			CreatedAt: info.ModTime(),
			FileSize:  info.Size(),
			MimeType:  mimeType,
		}
		if w, h, err := imageDimensions(path); err == nil {
			asset.Width = w
			asset.Height = h
		}

		found = append(found, asset)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list assets under %s: %w", s.root, err)
	}

	return found, nil
}

func (s *FilesystemSource) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	f, err := os.Open(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to open asset %s: %w", uri, err)
	}
	return f, nil
}

// FileSize implements the filter's best-effort size probe.
func (s *FilesystemSource) FileSize(uri string) (int64, bool) {
	info, err := os.Stat(uri)
	if err != nil {
		return 0, false
	}
	return info.Size(), true
}

func imageDimensions(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

func containsMime(list []string, mimeType string) bool {
	for _, m := range list {
		if strings.EqualFold(m, mimeType) {
			return true
		}
	}
	return false
}
