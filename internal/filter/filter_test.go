package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/docuvault/docscan/internal/models"
)

func testOptions() models.ScanOptions {
	opts := models.DefaultScanOptions()
	opts.MinFileSize = 10 * 1024
	opts.MaxFileSize = 20 * 1024 * 1024
	opts.MaxAspectRatio = 3.0
	return opts
}

func TestHighPriorityOverridesExclusions(t *testing.T) {
	f := New(testOptions())

	// Keyword + folder + numbered pattern pushes priority to 10, and the
	// skip pattern would otherwise reject it.
	asset := models.Asset{
		URI:       "/storage/whatsapp/receipts/receipt-1234.jpg",
		Filename:  "receipt-1234.jpg",
		Width:     2480,
		Height:    3508,
		CreatedAt: time.Now(),
		FileSize:  500 * 1024,
	}

	decision := f.Evaluate(asset)
	assert.GreaterOrEqual(t, decision.Priority, 8)
	assert.True(t, decision.ShouldProcess, "priority >= 8 must bypass exclusions")
}

func TestSkipPatternRejects(t *testing.T) {
	f := New(testOptions())

	asset := models.Asset{
		URI:      "/storage/whatsapp/images/img_001.jpg",
		Filename: "img_001.jpg",
		Width:    1200,
		Height:   1600,
		FileSize: 500 * 1024,
	}

	decision := f.Evaluate(asset)
	assert.False(t, decision.ShouldProcess)
	assert.Contains(t, decision.Reason, "skip pattern")
}

func TestAspectRatioRejects(t *testing.T) {
	f := New(testOptions())

	asset := models.Asset{
		URI:      "/photos/pano.jpg",
		Filename: "pano.jpg",
		Width:    8000,
		Height:   1000,
		FileSize: 500 * 1024,
	}

	decision := f.Evaluate(asset)
	assert.False(t, decision.ShouldProcess)
	assert.Contains(t, decision.Reason, "aspect ratio")
}

func TestScreenshotExcludedByResolution(t *testing.T) {
	f := New(testOptions())

	asset := models.Asset{
		URI:      "/photos/img_2201.png",
		Filename: "img_2201.png",
		Width:    1080,
		Height:   2400,
		FileSize: 500 * 1024,
	}

	decision := f.Evaluate(asset)
	assert.False(t, decision.ShouldProcess)
	assert.Equal(t, "screenshot excluded", decision.Reason)
}

func TestScreenshotIncludedWhenConfigured(t *testing.T) {
	opts := testOptions()
	opts.IncludeScreenshots = true
	f := New(opts)

	asset := models.Asset{
		URI:      "/photos/screenshot_001.png",
		Filename: "screenshot_001.png",
		Width:    1080,
		Height:   2400,
		FileSize: 500 * 1024,
	}

	assert.True(t, f.Evaluate(asset).ShouldProcess)
}

func TestDateRangeRejects(t *testing.T) {
	opts := testOptions()
	opts.DateFrom = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := New(opts)

	asset := models.Asset{
		URI:       "/photos/img.jpg",
		Filename:  "img.jpg",
		Width:     1200,
		Height:    1600,
		CreatedAt: time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
		FileSize:  500 * 1024,
	}

	decision := f.Evaluate(asset)
	assert.False(t, decision.ShouldProcess)
	assert.Equal(t, "outside configured date range", decision.Reason)
}

func TestFileSizeBounds(t *testing.T) {
	f := New(testOptions())

	tiny := models.Asset{URI: "/p/a.jpg", Filename: "a.jpg", Width: 1200, Height: 1600, FileSize: 1024}
	assert.False(t, f.Evaluate(tiny).ShouldProcess)

	huge := models.Asset{URI: "/p/b.jpg", Filename: "b.jpg", Width: 1200, Height: 1600, FileSize: 100 * 1024 * 1024}
	assert.False(t, f.Evaluate(huge).ShouldProcess)

	// Unknown size is best-effort acceptable.
	unknown := models.Asset{URI: "/p/c.jpg", Filename: "c.jpg", Width: 1200, Height: 1600}
	assert.True(t, f.Evaluate(unknown).ShouldProcess)
}

func TestDocumentRatioBonus(t *testing.T) {
	f := New(testOptions())

	// 2480x3508 is A4 at 300 DPI.
	a4 := models.Asset{URI: "/p/page.jpg", Filename: "page.jpg", Width: 2480, Height: 3508, FileSize: 500 * 1024}
	decision := f.Evaluate(a4)
	assert.True(t, decision.ShouldProcess)
	assert.Equal(t, "document aspect ratio", decision.Reason)
}

func TestPriorityScoring(t *testing.T) {
	f := New(testOptions())

	plain := models.Asset{URI: "/photos/img.jpg", Filename: "img.jpg", Width: 1200, Height: 1600}
	assert.Equal(t, 5, f.Evaluate(plain).Priority)

	keyword := models.Asset{URI: "/photos/invoice.jpg", Filename: "invoice.jpg", Width: 1200, Height: 1600}
	assert.Equal(t, 8, f.Evaluate(keyword).Priority)

	// Keyword + folder + date + numbered pattern, capped at 10.
	stacked := models.Asset{
		URI:      "/storage/invoices/invoice-2024-03-15-0042.jpg",
		Filename: "invoice-2024-03-15-0042.jpg",
		Width:    1200,
		Height:   1600,
	}
	assert.Equal(t, 10, f.Evaluate(stacked).Priority)
}

type fixedProber struct {
	size int64
}

func (p fixedProber) FileSize(string) (int64, bool) { return p.size, true }

func TestSizeProberUsedWhenSizeUnknown(t *testing.T) {
	f := New(testOptions()).WithSizeProber(fixedProber{size: 1024})

	asset := models.Asset{URI: "/p/probe.jpg", Filename: "probe.jpg", Width: 1200, Height: 1600}
	assert.False(t, f.Evaluate(asset).ShouldProcess)
}
