package scanner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/docuvault/docscan/internal/models"
)

// PreHash is a cheap identity derived from URI, size and creation time. It
// lets a rescan skip an asset without re-reading its bytes. The "pre:"
// prefix keeps it from colliding with content hashes in the processed set.
func PreHash(asset models.Asset) string {
	h := sha256.New()
	io.WriteString(h, asset.URI)
	fmt.Fprintf(h, "|%d|%d", asset.FileSize, asset.CreatedAt.UnixNano())
	return "pre:" + hex.EncodeToString(h.Sum(nil))
}

// contentHash is the authoritative dedup key: SHA-256 over the raw byte
// content, computed the same way for every URI scheme so identical images
// reached through different sources still deduplicate.
func (s *Scanner) contentHash(ctx context.Context, uri string) (string, error) {
	reader, err := s.source.Open(ctx, uri)
	if err != nil {
		return "", err
	}
	defer reader.Close()

	h := sha256.New()
	if _, err := io.Copy(h, reader); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
