package scanner

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuvault/docscan/internal/assets"
	"github.com/docuvault/docscan/internal/models"
	"github.com/docuvault/docscan/internal/ocr"
	"github.com/docuvault/docscan/internal/preprocess"
	"github.com/docuvault/docscan/internal/resource"
	"github.com/docuvault/docscan/internal/scanerr"
	"github.com/docuvault/docscan/internal/store"
	"github.com/docuvault/docscan/pkg/logger"
)

// memSource serves assets from memory. Local() is false so the pipeline
// exercises materialization and temp-file tracking.
type memSource struct {
	mu      sync.Mutex
	assets  []models.Asset
	data    map[string][]byte
	openErr map[string]error
	opens   map[string]int
}

func newMemSource() *memSource {
	return &memSource{
		data:    make(map[string][]byte),
		openErr: make(map[string]error),
		opens:   make(map[string]int),
	}
}

func (m *memSource) add(uri string, createdAt time.Time, content string) {
	m.assets = append(m.assets, models.Asset{
		URI:       uri,
		Filename:  filepath.Base(uri),
		Width:     800,
		Height:    1000,
		CreatedAt: createdAt,
		FileSize:  20 * 1024,
		MimeType:  "image/jpeg",
	})
	m.data[uri] = []byte(content)
}

func (m *memSource) ListAssets(ctx context.Context, query assets.Query) ([]models.Asset, error) {
	return append([]models.Asset(nil), m.assets...), nil
}

func (m *memSource) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.openErr[uri]; err != nil {
		return nil, err
	}
	data, ok := m.data[uri]
	if !ok {
		return nil, fs.ErrNotExist
	}
	m.opens[uri]++
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memSource) Local() bool { return false }

func (m *memSource) setOpenErr(uri string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.openErr, uri)
	} else {
		m.openErr[uri] = err
	}
}

func (m *memSource) openCount(uri string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens[uri]
}

// textEngine returns the materialized file's contents as its OCR text, so
// tests control recognition output through asset bytes.
type textEngine struct {
	name        string
	confidence  float64
	delay       time.Duration
	initialized bool
}

func (e *textEngine) Name() string                 { return e.name }
func (e *textEngine) IsInitialized() bool          { return e.initialized }
func (e *textEngine) SupportsLanguage(string) bool { return true }

func (e *textEngine) Initialize(ctx context.Context) error {
	e.initialized = true
	return nil
}

func (e *textEngine) ProcessImage(ctx context.Context, path string) (*models.OCRResult, error) {
	if e.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(e.delay):
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text := string(data)
	return &models.OCRResult{
		Text:       text,
		Confidence: e.confidence,
		Blocks:     []models.OCRBlock{{Text: text, Confidence: e.confidence}},
		EngineName: e.name,
	}, nil
}

// spyStore records every progress checkpoint and can trigger a callback on
// each save, which lets tests stop a scan at an exact point.
type spyStore struct {
	store.Store
	mu          sync.Mutex
	checkpoints []models.ScanProgress
	onSave      func(models.ScanProgress)
}

func (s *spyStore) SaveProgress(ctx context.Context, p models.ScanProgress) error {
	s.mu.Lock()
	s.checkpoints = append(s.checkpoints, p)
	cb := s.onSave
	s.mu.Unlock()
	if cb != nil {
		cb(p)
	}
	return s.Store.SaveProgress(ctx, p)
}

func (s *spyStore) saved() []models.ScanProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ScanProgress(nil), s.checkpoints...)
}

func receiptText(n int) string {
	return fmt.Sprintf(
		"STORE %03d\n123 Main Street\nCoffee beans x2 12.50\nBread 3.99\nSubtotal: $16.49\nTotal: $%d.49\nCash\nThank you\n2024-03-15\n",
		n, 16+n,
	)
}

type harness struct {
	scanner *Scanner
	source  *memSource
	store   *spyStore
	monitor *resource.StaticMonitor
}

func newHarness(t *testing.T, src *memSource) *harness {
	t.Helper()

	log := logger.NewTestLogger()
	bolt, err := store.NewBoltStore(filepath.Join(t.TempDir(), "scan.db"))
	require.NoError(t, err)
	t.Cleanup(func() { bolt.Close() })

	spy := &spyStore{Store: bolt}
	monitor := &resource.StaticMonitor{}

	registry := ocr.NewRegistry(log, &textEngine{name: "stub", confidence: 0.9})
	require.NoError(t, registry.Initialize(context.Background()))
	fusion := ocr.NewFusion(registry, log)
	pre := preprocess.New(src, log)

	timing := Timing{ProgressInterval: time.Millisecond}
	return &harness{
		scanner: New(src, spy, fusion, pre, monitor, log, timing),
		source:  src,
		store:   spy,
		monitor: monitor,
	}
}

func testOptions() models.ScanOptions {
	opts := models.DefaultScanOptions()
	opts.BatchSize = 10
	opts.SmartFilterEnabled = false
	return opts
}

func TestScanCompletesInBatches(t *testing.T) {
	src := newMemSource()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		src.add(fmt.Sprintf("mem:///receipt-%03d.jpg", i), base.Add(time.Duration(i)*time.Hour), receiptText(i))
	}

	h := newHarness(t, src)
	opts := testOptions()
	opts.SmartFilterEnabled = true // per-slice checkpoints only

	state, err := h.scanner.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, models.ScanStateCompleted, state)

	prog, err := h.scanner.Progress(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 25, prog.TotalAssets)
	assert.Equal(t, 25, prog.ProcessedAssets)
	assert.False(t, prog.IsScanning)
	assert.False(t, prog.LastScanTime.IsZero())

	// Checkpoints: scan start, three slice boundaries (10, 10, 5), final.
	var counts []int
	for _, p := range h.store.saved() {
		counts = append(counts, p.ProcessedAssets)
	}
	assert.Equal(t, []int{0, 10, 20, 25, 25}, counts)

	docs, err := h.store.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 25)

	history, err := h.store.History(context.Background())
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 25, history[0].AssetsScanned)
	assert.Equal(t, 25, history[0].DocumentsFound)
}

func TestStopThenResumeProcessesExactSuffix(t *testing.T) {
	src := newMemSource()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		src.add(fmt.Sprintf("mem:///receipt-%03d.jpg", i), base.Add(time.Duration(i)*time.Hour), receiptText(i))
	}

	h := newHarness(t, src)
	h.store.onSave = func(p models.ScanProgress) {
		if p.IsScanning && p.ProcessedAssets == 7 {
			h.scanner.Stop()
		}
	}

	state, err := h.scanner.Run(context.Background(), testOptions())
	require.NoError(t, err)
	assert.Equal(t, models.ScanStateStopped, state)

	docs, err := h.store.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 7)

	h.store.onSave = nil
	state, err = h.scanner.Run(context.Background(), testOptions())
	require.NoError(t, err)
	assert.Equal(t, models.ScanStateCompleted, state)

	docs, err = h.store.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 25)

	// Each asset was fully processed exactly once across both runs: one
	// open to materialize plus one to hash.
	for _, a := range src.assets {
		assert.Equal(t, 2, src.openCount(a.URI), a.URI)
	}

	prog, err := h.scanner.Progress(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 25, prog.ProcessedAssets)
}

// stopTriggerMonitor requests a scanner stop after a fixed number of
// per-asset pressure checks, which lands the stop inside a slice.
type stopTriggerMonitor struct {
	resource.StaticMonitor
	mu      sync.Mutex
	calls   int
	stopAt  int
	scanner *Scanner
}

func (m *stopTriggerMonitor) MemoryPressure() resource.PressureLevel {
	m.mu.Lock()
	m.calls++
	trigger := m.calls == m.stopAt
	m.mu.Unlock()
	if trigger {
		m.scanner.Stop()
	}
	return m.StaticMonitor.MemoryPressure()
}

func TestMidSliceStopKeepsCheckpointConsistent(t *testing.T) {
	src := newMemSource()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		src.add(fmt.Sprintf("mem:///receipt-%03d.jpg", i), base.Add(time.Duration(i)*time.Hour), receiptText(i))
	}

	log := logger.NewTestLogger()
	bolt, err := store.NewBoltStore(filepath.Join(t.TempDir(), "scan.db"))
	require.NoError(t, err)
	t.Cleanup(func() { bolt.Close() })
	spy := &spyStore{Store: bolt}

	registry := ocr.NewRegistry(log, &textEngine{name: "stub", confidence: 0.9})
	require.NoError(t, registry.Initialize(context.Background()))

	// One check at scan start, then one per asset: call 17 stops the scan
	// while slice 2 (assets 11-20) is in flight.
	monitor := &stopTriggerMonitor{stopAt: 17}
	s := New(src, spy, ocr.NewFusion(registry, log), preprocess.New(src, log),
		monitor, log, Timing{ProgressInterval: time.Millisecond})
	monitor.scanner = s

	opts := testOptions()
	opts.SmartFilterEnabled = true // slice-boundary checkpoints

	state, err := s.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, models.ScanStateStopped, state)

	// The persisted snapshot stays at the slice-1 boundary: the count and
	// the checkpoint ID must describe the same position.
	prog, err := spy.Progress(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, prog.ProcessedAssets)
	assert.Equal(t, "mem:///receipt-015.jpg", prog.LastProcessedAssetID)

	state, err = s.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, models.ScanStateCompleted, state)

	for _, p := range spy.saved() {
		assert.LessOrEqual(t, p.ProcessedAssets, p.TotalAssets)
	}

	prog, err = s.Progress(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 25, prog.TotalAssets)
	assert.Equal(t, 25, prog.ProcessedAssets)

	// The partial slice replays as content-hash duplicates, never as new
	// records.
	docs, err := spy.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 25)
}

func TestPermissionDeniedAssetNotQueuedForRetry(t *testing.T) {
	src := newMemSource()
	src.add("mem:///receipt-a.jpg", time.Now(), receiptText(1))
	src.setOpenErr("mem:///receipt-a.jpg", fs.ErrPermission)

	h := newHarness(t, src)
	state, err := h.scanner.Run(context.Background(), testOptions())
	require.NoError(t, err)
	assert.Equal(t, models.ScanStateCompleted, state)

	failed, err := h.store.FailedAssets(context.Background())
	require.NoError(t, err)
	assert.Empty(t, failed, "permission failures have no retry path")

	prog, err := h.scanner.Progress(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, prog.ProcessedAssets)
}

func TestDuplicateContentYieldsSingleRecord(t *testing.T) {
	src := newMemSource()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	src.add("mem:///receipt-a.jpg", base, receiptText(1))
	src.add("mem:///receipt-b.jpg", base.Add(time.Hour), receiptText(1)) // identical bytes

	h := newHarness(t, src)
	state, err := h.scanner.Run(context.Background(), testOptions())
	require.NoError(t, err)
	assert.Equal(t, models.ScanStateCompleted, state)

	docs, err := h.store.ListDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)

	prog, err := h.scanner.Progress(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, prog.ProcessedAssets, "the duplicate still counts as processed")
}

func TestLowConfidenceDiscarded(t *testing.T) {
	src := newMemSource()
	src.add("mem:///photo.jpg", time.Now(), "just some scenery\nnothing structured here\n")

	h := newHarness(t, src)
	state, err := h.scanner.Run(context.Background(), testOptions())
	require.NoError(t, err)
	assert.Equal(t, models.ScanStateCompleted, state)

	docs, err := h.store.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)

	failed, err := h.store.FailedAssets(context.Background())
	require.NoError(t, err)
	assert.Empty(t, failed, "a discard is not a failure")

	prog, err := h.scanner.Progress(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, prog.ProcessedAssets)
}

func TestCriticalMemoryPressureAborts(t *testing.T) {
	src := newMemSource()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		src.add(fmt.Sprintf("mem:///receipt-%03d.jpg", i), base.Add(time.Duration(i)*time.Hour), receiptText(i))
	}

	h := newHarness(t, src)
	h.monitor.Level = resource.PressureCritical

	state, err := h.scanner.Run(context.Background(), testOptions())
	require.Error(t, err)
	assert.True(t, scanerr.IsKind(err, scanerr.KindCriticalMemoryPressure))
	assert.Equal(t, models.ScanStateAborted, state)
	assert.GreaterOrEqual(t, h.monitor.CleanupCnt, 1)

	docs, err := h.store.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)

	// Final checkpoint and history still happen on abort.
	prog, err := h.scanner.Progress(context.Background())
	require.NoError(t, err)
	assert.False(t, prog.IsScanning)

	history, err := h.store.History(context.Background())
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestDeviceConditionGate(t *testing.T) {
	src := newMemSource()
	src.add("mem:///receipt-a.jpg", time.Now(), receiptText(1))

	h := newHarness(t, src)
	opts := testOptions()
	opts.WifiOnly = true

	_, err := h.scanner.Run(context.Background(), opts)
	require.Error(t, err)
	assert.True(t, scanerr.IsKind(err, scanerr.KindDeviceConditionUnmet))
	assert.Equal(t, models.ScanStateIdle, h.scanner.State())
	assert.Empty(t, h.store.saved(), "no state changes before the gate")
}

func TestFailedAssetRecordedAndRetried(t *testing.T) {
	src := newMemSource()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	src.add("mem:///receipt-a.jpg", base, receiptText(1))
	src.add("mem:///receipt-b.jpg", base.Add(time.Hour), receiptText(2))
	src.setOpenErr("mem:///receipt-a.jpg", fmt.Errorf("io error"))

	h := newHarness(t, src)
	state, err := h.scanner.Run(context.Background(), testOptions())
	require.NoError(t, err, "asset failures are never fatal to the scan")
	assert.Equal(t, models.ScanStateCompleted, state)

	docs, err := h.store.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	failed, err := h.store.FailedAssets(context.Background())
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "mem:///receipt-a.jpg", failed[0].URI)
	assert.Equal(t, 1, failed[0].RetryCount)

	// The source recovers; the retry pass re-attempts exactly that URI.
	src.setOpenErr("mem:///receipt-a.jpg", nil)
	attempted, recovered, err := h.scanner.RetryFailed(context.Background(), testOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, attempted)
	assert.Equal(t, 1, recovered)

	failed, err = h.store.FailedAssets(context.Background())
	require.NoError(t, err)
	assert.Empty(t, failed)

	docs, err = h.store.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestRetryBudgetExhausted(t *testing.T) {
	src := newMemSource()
	src.add("mem:///receipt-a.jpg", time.Now(), receiptText(1))
	src.setOpenErr("mem:///receipt-a.jpg", fmt.Errorf("io error"))

	h := newHarness(t, src)
	opts := testOptions()
	opts.MaxRetries = 3

	_, err := h.scanner.Run(context.Background(), opts)
	require.NoError(t, err)

	// Two more failing retry passes exhaust the budget.
	for i := 0; i < 2; i++ {
		attempted, recovered, rerr := h.scanner.RetryFailed(context.Background(), opts)
		require.NoError(t, rerr)
		assert.Equal(t, 1, attempted)
		assert.Equal(t, 0, recovered)
	}

	attempted, _, err := h.scanner.RetryFailed(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 0, attempted, "no budget left")
}

func TestAssetTimeoutRecordedAsFailure(t *testing.T) {
	src := newMemSource()
	src.add("mem:///receipt-a.jpg", time.Now(), receiptText(1))

	log := logger.NewTestLogger()
	bolt, err := store.NewBoltStore(filepath.Join(t.TempDir(), "scan.db"))
	require.NoError(t, err)
	t.Cleanup(func() { bolt.Close() })
	spy := &spyStore{Store: bolt}

	registry := ocr.NewRegistry(log, &textEngine{name: "slow", confidence: 0.9, delay: time.Second})
	require.NoError(t, registry.Initialize(context.Background()))
	s := New(src, spy, ocr.NewFusion(registry, log), preprocess.New(src, log),
		&resource.StaticMonitor{}, log, Timing{ProgressInterval: time.Millisecond})

	opts := testOptions()
	opts.AssetTimeout = 30 * time.Millisecond

	state, err := s.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, models.ScanStateCompleted, state)

	failed, err := spy.FailedAssets(context.Background())
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "mem:///receipt-a.jpg", failed[0].URI)
}

func TestStartWhileScanningIsNoOp(t *testing.T) {
	src := newMemSource()
	src.add("mem:///receipt-a.jpg", time.Now(), receiptText(1))

	h := newHarness(t, src)

	running := make(chan struct{})
	h.store.onSave = func(p models.ScanProgress) {
		if p.IsScanning {
			select {
			case <-running:
			default:
				close(running)
			}
			// Hold the scan long enough for the second start attempt.
			time.Sleep(50 * time.Millisecond)
		}
	}

	done := make(chan models.ScanState, 1)
	go func() {
		st, _ := h.scanner.Run(context.Background(), testOptions())
		done <- st
	}()

	<-running
	state, err := h.scanner.Run(context.Background(), testOptions())
	require.NoError(t, err)
	assert.Equal(t, models.ScanStateScanning, state, "second start is a no-op")

	assert.Equal(t, models.ScanStateCompleted, <-done)
}

func TestBatchSizeStaysWithinBounds(t *testing.T) {
	h := newHarness(t, newMemSource())

	h.monitor.Level = resource.PressureNormal
	assert.Equal(t, 40, h.scanner.nextBatchSize(20, 50))
	assert.Equal(t, 50, h.scanner.nextBatchSize(40, 50), "growth clamps at the configured max")

	h.monitor.Level = resource.PressureLow
	assert.Equal(t, 10, h.scanner.nextBatchSize(20, 50))
	assert.Equal(t, 5, h.scanner.nextBatchSize(6, 50), "shrink floors at 5")
	assert.Equal(t, 5, h.scanner.nextBatchSize(5, 50))
}

func TestResumeIndex(t *testing.T) {
	list := []models.Asset{{URI: "c"}, {URI: "b"}, {URI: "a"}}

	assert.Equal(t, 0, resumeIndex(list, ""))
	assert.Equal(t, 2, resumeIndex(list, "b"))
	assert.Equal(t, 3, resumeIndex(list, "a"), "resuming past the end processes nothing")
	assert.Equal(t, 0, resumeIndex(list, "gone"))
}

func TestComposeConfidence(t *testing.T) {
	assert.InDelta(t, 0.8, composeConfidence(0.9, 0.7, models.DocTypeReceipt), 1e-9)
	assert.True(t, composeConfidence(0.9, 0.7, models.DocTypeReceipt) > acceptanceThreshold)

	unknown := composeConfidence(0.9, 0.3, models.DocTypeUnknown)
	assert.InDelta(t, 0.58, unknown, 1e-9)
	assert.False(t, unknown > acceptanceThreshold)
}

func TestPreHashDistinguishesAssets(t *testing.T) {
	base := time.Now()
	a := models.Asset{URI: "mem:///a.jpg", FileSize: 100, CreatedAt: base}
	b := models.Asset{URI: "mem:///b.jpg", FileSize: 100, CreatedAt: base}

	assert.NotEqual(t, PreHash(a), PreHash(b))
	assert.Equal(t, PreHash(a), PreHash(a))

	changed := a
	changed.FileSize = 101
	assert.NotEqual(t, PreHash(a), PreHash(changed))
}
