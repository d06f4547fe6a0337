// Package filter scores assets before any expensive OCR work. Evaluation is
// a pure function of the asset metadata and filter configuration, apart from
// an optional best-effort file size probe.
package filter

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/docuvault/docscan/internal/models"
)

const (
	basePriority     = 5
	maxPriority      = 10
	overridePriority = 8
)

// Document keyword sets applied to filename and path.
var documentKeywords = []string{
	"receipt", "invoice", "scan", "document", "doc", "bill",
	"statement", "contract", "form", "tax", "id", "license", "passport",
}

var documentFolders = []string{
	"documents", "receipts", "invoices", "scans", "paperwork",
	"bills", "statements", "contracts",
}

var skipPatterns = []string{
	"whatsapp", "instagram", "facebook", "telegram", "snapchat",
	"meme", "sticker", "cache", "thumbnail", ".thumb", "emoji",
	"wallpaper",
}

var excludedMimeTypes = map[string]bool{
	"image/gif":     true,
	"image/svg+xml": true,
}

var (
	embeddedDatePattern = regexp.MustCompile(`(?:19|20)\d{2}[-_.]?(?:0[1-9]|1[0-2])[-_.]?(?:0[1-9]|[12]\d|3[01])`)
	numberedDocPattern  = regexp.MustCompile(`(?i)(?:invoice|receipt|rechnung|facture)[-_ ]?#?\d+`)
	screenshotPattern   = regexp.MustCompile(`(?i)screen[-_ ]?shot|screencap`)
)

// Known device screen resolutions used to spot screenshots without a
// filename hint.
var screenResolutions = map[[2]int]bool{
	{1080, 1920}: true,
	{1080, 2340}: true,
	{1080, 2400}: true,
	{1170, 2532}: true,
	{1179, 2556}: true,
	{1290, 2796}: true,
	{1440, 2560}: true,
	{1440, 3200}: true,
	{750, 1334}:  true,
	{828, 1792}:  true,
}

// Document aspect ratios rewarded with bonus acceptance.
var documentRatios = []float64{1.414, 1.294, 1.0} // A4, US Letter, square

const ratioTolerance = 0.08

// SizeProber optionally resolves file sizes for asset sources that cannot
// report them inline. Best effort: a false return means unknown.
type SizeProber interface {
	FileSize(uri string) (int64, bool)
}

// Filter evaluates assets against the configured scan options.
type Filter struct {
	opts   models.ScanOptions
	prober SizeProber
}

func New(opts models.ScanOptions) *Filter {
	return &Filter{opts: opts}
}

// WithSizeProber attaches a best-effort size probe.
func (f *Filter) WithSizeProber(p SizeProber) *Filter {
	f.prober = p
	return f
}

// Evaluate decides whether an asset is worth processing and at what
// priority. Priority >= 8 always admits the asset, bypassing every
// exclusion check; this is deliberate policy, not a fast path.
func (f *Filter) Evaluate(asset models.Asset) models.FilterDecision {
	priority := f.score(asset)

	if priority >= overridePriority {
		return models.FilterDecision{
			ShouldProcess: true,
			Priority:      priority,
			Reason:        "high priority override",
		}
	}

	if reason, excluded := f.excluded(asset); excluded {
		return models.FilterDecision{Priority: priority, Reason: reason}
	}

	if ok, reason := f.sizeWithinBounds(asset); !ok {
		return models.FilterDecision{Priority: priority, Reason: reason}
	}

	if matchesDocumentRatio(asset) {
		return models.FilterDecision{
			ShouldProcess: true,
			Priority:      priority,
			Reason:        "document aspect ratio",
		}
	}

	return models.FilterDecision{
		ShouldProcess: true,
		Priority:      priority,
		Reason:        "passed all checks",
	}
}

func (f *Filter) score(asset models.Asset) int {
	priority := basePriority
	name := strings.ToLower(asset.Filename)
	path := strings.ToLower(asset.URI)

	for _, kw := range documentKeywords {
		if strings.Contains(name, kw) || strings.Contains(path, kw) {
			priority += 3
			break
		}
	}

	for _, folder := range documentFolders {
		if strings.Contains(path, "/"+folder+"/") {
			priority += 2
			break
		}
	}

	if embeddedDatePattern.MatchString(name) {
		priority++
	}

	if numberedDocPattern.MatchString(name) {
		priority += 2
	}

	if priority > maxPriority {
		priority = maxPriority
	}
	return priority
}

// excluded applies the exclusion checks in their documented order; the
// first match wins.
func (f *Filter) excluded(asset models.Asset) (string, bool) {
	name := strings.ToLower(asset.Filename)
	path := strings.ToLower(asset.URI)

	for _, pattern := range skipPatterns {
		if strings.Contains(name, pattern) || strings.Contains(path, pattern) {
			return fmt.Sprintf("skip pattern %q", pattern), true
		}
	}

	if f.opts.MaxAspectRatio > 0 {
		if ratio := asset.AspectRatio(); ratio > f.opts.MaxAspectRatio {
			return fmt.Sprintf("aspect ratio %.2f exceeds limit", ratio), true
		}
	}

	if outsideDateRange(asset.CreatedAt, f.opts.DateFrom, f.opts.DateTo) {
		return "outside configured date range", true
	}

	if asset.MimeType != "" && excludedMimeTypes[strings.ToLower(asset.MimeType)] {
		return fmt.Sprintf("excluded mime type %s", asset.MimeType), true
	}

	if !f.opts.IncludeScreenshots && isScreenshot(asset, name) {
		return "screenshot excluded", true
	}

	return "", false
}

func (f *Filter) sizeWithinBounds(asset models.Asset) (bool, string) {
	size := asset.FileSize
	if size <= 0 && f.prober != nil {
		if probed, ok := f.prober.FileSize(asset.URI); ok {
			size = probed
		}
	}
	if size <= 0 {
		// Some asset sources cannot report size; treat as acceptable.
		return true, ""
	}

	if f.opts.MinFileSize > 0 && size < f.opts.MinFileSize {
		return false, "file too small"
	}
	if f.opts.MaxFileSize > 0 && size > f.opts.MaxFileSize {
		return false, "file too large"
	}
	return true, ""
}

func outsideDateRange(created, from, to time.Time) bool {
	if created.IsZero() {
		return false
	}
	if !from.IsZero() && created.Before(from) {
		return true
	}
	if !to.IsZero() && created.After(to) {
		return true
	}
	return false
}

func isScreenshot(asset models.Asset, lowerName string) bool {
	if screenshotPattern.MatchString(lowerName) {
		return true
	}
	return screenResolutions[[2]int{asset.Width, asset.Height}]
}

func matchesDocumentRatio(asset models.Asset) bool {
	ratio := asset.AspectRatio()
	if ratio == 0 {
		return false
	}
	for _, target := range documentRatios {
		if math.Abs(ratio-target) <= ratioTolerance {
			return true
		}
	}
	return false
}
