// Package scanner drives the incremental scan: it enumerates assets,
// consults the smart filter, processes admitted assets in resumable,
// pressure-aware batches and hands extracted documents to the store.
package scanner

import (
	"context"
	"errors"
	"io/fs"
	"sort"
	"sync"
	"time"

	"github.com/docuvault/docscan/internal/assets"
	"github.com/docuvault/docscan/internal/filter"
	"github.com/docuvault/docscan/internal/models"
	"github.com/docuvault/docscan/internal/ocr"
	"github.com/docuvault/docscan/internal/preprocess"
	"github.com/docuvault/docscan/internal/resource"
	"github.com/docuvault/docscan/internal/scanerr"
	"github.com/docuvault/docscan/internal/store"
	"github.com/docuvault/docscan/pkg/logger"
)

// minBatchSize floors the adaptive batch sizing. The ceiling is the
// configured batch size.
const minBatchSize = 5

// Timing bounds sustained resource pressure between assets and batches.
// Tests shrink these to keep runs fast.
type Timing struct {
	SettleDelay      time.Duration // after every asset
	LongSettleDelay  time.Duration // every LongSettleEvery assets
	LongSettleEvery  int
	LowPressureDelay time.Duration // backoff when memory pressure is low
	CriticalPause    time.Duration // pause before aborting on critical pressure
	ProgressInterval time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		SettleDelay:      50 * time.Millisecond,
		LongSettleDelay:  500 * time.Millisecond,
		LongSettleEvery:  10,
		LowPressureDelay: 2 * time.Second,
		CriticalPause:    time.Second,
		ProgressInterval: DefaultProgressInterval,
	}
}

// Scanner is the batch scheduler. Exactly one scan may be active at a time;
// a start while scanning is a no-op.
type Scanner struct {
	source  assets.Source
	store   store.Store
	fusion  *ocr.Fusion
	pre     *preprocess.Preprocessor
	monitor resource.Monitor
	logger  logger.Logger
	timing  Timing
	emitter *Emitter
	now     func() time.Time

	mu       sync.Mutex
	state    models.ScanState
	live     models.ScanProgress
	stopFlag bool
}

func New(
	source assets.Source,
	st store.Store,
	fusion *ocr.Fusion,
	pre *preprocess.Preprocessor,
	monitor resource.Monitor,
	log logger.Logger,
	timing Timing,
) *Scanner {
	return &Scanner{
		source:  source,
		store:   st,
		fusion:  fusion,
		pre:     pre,
		monitor: monitor,
		logger:  log,
		timing:  timing,
		emitter: NewEmitter(timing.ProgressInterval),
		now:     time.Now,
	}
}

// State returns the scheduler position.
func (s *Scanner) State() models.ScanState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == "" {
		return models.ScanStateIdle
	}
	return s.state
}

// Stop requests cooperative cancellation. The in-flight asset finishes (or
// times out) before the loop observes the request.
func (s *Scanner) Stop() {
	s.mu.Lock()
	s.stopFlag = true
	s.mu.Unlock()
}

func (s *Scanner) stopRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopFlag
}

// Subscribe returns a throttled progress channel plus its cancel func.
func (s *Scanner) Subscribe() (<-chan models.ScanProgress, func()) {
	return s.emitter.Subscribe()
}

// Progress returns the live snapshot during a scan, the persisted one
// otherwise.
func (s *Scanner) Progress(ctx context.Context) (models.ScanProgress, error) {
	s.mu.Lock()
	if s.state == models.ScanStateScanning {
		p := s.live
		s.mu.Unlock()
		return p, nil
	}
	s.mu.Unlock()
	return s.store.Progress(ctx)
}

// Run executes one full scan synchronously and returns the terminal state.
// Precondition failures (device policy, permissions) surface before any
// state changes.
func (s *Scanner) Run(ctx context.Context, opts models.ScanOptions) (models.ScanState, error) {
	if err := s.checkConditions(opts); err != nil {
		return models.ScanStateIdle, err
	}

	s.mu.Lock()
	if s.state == models.ScanStateScanning {
		s.mu.Unlock()
		s.logger.Info("Scan already in progress, ignoring start request")
		return models.ScanStateScanning, nil
	}
	s.state = models.ScanStateScanning
	s.stopFlag = false
	s.mu.Unlock()

	result, err := s.run(ctx, opts)

	s.mu.Lock()
	s.state = result
	s.mu.Unlock()
	return result, err
}

func (s *Scanner) run(ctx context.Context, opts models.ScanOptions) (models.ScanState, error) {
	started := s.now()

	prog, err := s.store.Progress(ctx)
	if err != nil {
		s.logger.Warn("Failed to load progress checkpoint, starting fresh", logger.Error(err))
		prog = models.ScanProgress{}
	}

	list, err := s.enumerate(ctx, opts, prog)
	if err != nil {
		return models.ScanStateIdle, err
	}

	startIdx := resumeIndex(list, prog.LastProcessedAssetID)
	if startIdx == 0 {
		prog = models.ScanProgress{}
	} else {
		// The enumeration may have gained or lost assets since the
		// checkpoint; the resume position is the authoritative count.
		prog.ProcessedAssets = startIdx
	}
	prog.TotalAssets = len(list)
	prog.IsScanning = true
	s.setLive(prog)
	s.saveProgress(ctx, prog)
	s.emitter.Emit(prog, true)

	s.logger.Info("Scan started",
		logger.Int("totalAssets", len(list)),
		logger.Int("resumeIndex", startIdx),
	)

	f := filter.New(opts)
	if prober, ok := s.source.(filter.SizeProber); ok {
		f = f.WithSizeProber(prober)
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = models.DefaultScanOptions().BatchSize
	}
	configuredMax := batchSize
	if s.monitor.MemoryPressure() != resource.PressureNormal {
		batchSize = clampBatch(batchSize/2, configuredMax)
		s.logger.Info("Memory constrained at start, halving initial batch size",
			logger.Int("batchSize", batchSize))
	}

	result := models.ScanStateCompleted
	var runErr error
	scanned := 0
	docsFound := 0

	// ckpt trails prog, advancing only at durable checkpoint positions, so
	// an interrupted slice never persists a count ahead of
	// LastProcessedAssetID.
	ckpt := prog

	idx := startIdx
	for idx < len(list) {
		if s.stopRequested() || ctx.Err() != nil {
			result = models.ScanStateStopped
			break
		}

		end := idx + batchSize
		if end > len(list) {
			end = len(list)
		}
		slice := list[idx:end]
		ordered := admit(f, slice, opts)

		sliceCompleted := true
		for _, asset := range ordered {
			if s.stopRequested() || ctx.Err() != nil {
				result = models.ScanStateStopped
				sliceCompleted = false
				break
			}

			switch s.monitor.MemoryPressure() {
			case resource.PressureCritical:
				s.logger.Warn("Critical memory pressure, aborting scan")
				s.monitor.RequestCleanup()
				s.sleep(ctx, s.timing.CriticalPause)
				result = models.ScanStateAborted
				runErr = scanerr.New(scanerr.KindCriticalMemoryPressure, nil)
				sliceCompleted = false
			case resource.PressureLow:
				s.monitor.RequestCleanup()
				s.sleep(ctx, s.timing.LowPressureDelay)
			}
			if result == models.ScanStateAborted {
				break
			}

			outcome, perr := s.processAsset(ctx, asset, opts)
			if perr != nil {
				if scanerr.Retryable(perr) {
					s.recordFailure(ctx, asset.URI, perr, opts)
				} else {
					s.logger.Warn("Asset failed terminally, not queued for retry",
						logger.String("uri", asset.URI),
						logger.String("kind", string(scanerr.KindOf(perr))),
						logger.Error(perr),
					)
				}
			}
			if outcome == outcomePersisted {
				docsFound++
			}

			scanned++
			prog.ProcessedAssets++
			if !opts.SmartFilterEnabled {
				// Priority ordering reshuffles a slice, so the per-asset
				// checkpoint is only safe when the sorted order is kept.
				prog.LastProcessedAssetID = asset.URI
				ckpt = prog
				s.saveProgress(ctx, ckpt)
			}
			s.setLive(prog)
			s.emitter.Emit(prog, false)
			s.settle(ctx, scanned)
		}

		if sliceCompleted {
			prog.LastProcessedAssetID = slice[len(slice)-1].URI
			// Assets the filter rejected still count toward completion.
			prog.ProcessedAssets += len(slice) - len(ordered)
			s.setLive(prog)
			ckpt = prog
		}
		s.saveProgress(ctx, ckpt)

		if result != models.ScanStateCompleted {
			break
		}
		idx = end
		batchSize = s.nextBatchSize(batchSize, configuredMax)
	}

	finished := s.now()
	prog.IsScanning = false
	prog.LastScanTime = finished
	ckpt.IsScanning = false
	ckpt.LastScanTime = finished
	s.setLive(prog)
	s.saveProgress(ctx, ckpt)
	s.emitter.Emit(prog, true)

	entry := models.ScanHistoryEntry{
		Date:           started,
		AssetsScanned:  scanned,
		DocumentsFound: docsFound,
		DurationMs:     s.now().Sub(started).Milliseconds(),
	}
	if err := s.store.AppendHistory(ctx, entry); err != nil {
		s.logger.Warn("Failed to append scan history", logger.Error(err))
	}

	s.logger.Info("Scan finished",
		logger.String("state", string(result)),
		logger.Int("assetsScanned", scanned),
		logger.Int("documentsFound", docsFound),
		logger.Duration("elapsed", s.now().Sub(started)),
	)
	return result, runErr
}

// RetryFailed re-attempts exactly the recorded failed URIs, honoring each
// entry's remaining retry budget. It refuses to run during an active scan.
func (s *Scanner) RetryFailed(ctx context.Context, opts models.ScanOptions) (attempted, recovered int, err error) {
	s.mu.Lock()
	if s.state == models.ScanStateScanning {
		s.mu.Unlock()
		return 0, 0, errors.New("scan in progress")
	}
	s.mu.Unlock()

	entries, err := s.store.FailedAssets(ctx)
	if err != nil {
		return 0, 0, err
	}
	if len(entries) == 0 {
		return 0, 0, nil
	}

	list, err := s.enumerate(ctx, opts, models.ScanProgress{})
	if err != nil {
		return 0, 0, err
	}
	byURI := make(map[string]models.Asset, len(list))
	for _, a := range list {
		byURI[a.URI] = a
	}

	for _, entry := range entries {
		if entry.RetryCount >= opts.MaxRetries {
			continue
		}
		asset, ok := byURI[entry.URI]
		if !ok {
			// Asset disappeared from the source; nothing left to retry.
			if rerr := s.store.RemoveFailedAsset(ctx, entry.URI); rerr != nil {
				s.logger.Warn("Failed to drop stale failed asset", logger.Error(rerr))
			}
			continue
		}

		attempted++
		if _, perr := s.processAsset(ctx, asset, opts); perr != nil {
			entry.RetryCount++
			if serr := s.store.SaveFailedAsset(ctx, entry); serr != nil {
				s.logger.Warn("Failed to update failed asset", logger.Error(serr))
			}
			continue
		}
		if rerr := s.store.RemoveFailedAsset(ctx, entry.URI); rerr != nil {
			s.logger.Warn("Failed to clear recovered asset", logger.Error(rerr))
		}
		recovered++
	}

	s.logger.Info("Retry pass finished",
		logger.Int("attempted", attempted),
		logger.Int("recovered", recovered),
	)
	return attempted, recovered, nil
}

// Stats aggregates failure statistics. Per-asset failures never surface as
// individual errors, only here.
func (s *Scanner) Stats(ctx context.Context) (models.ScanStats, error) {
	prog, err := s.Progress(ctx)
	if err != nil {
		return models.ScanStats{}, err
	}
	failed, err := s.store.FailedAssets(ctx)
	if err != nil {
		return models.ScanStats{}, err
	}
	docs, err := s.store.ListDocuments(ctx)
	if err != nil {
		return models.ScanStats{}, err
	}

	stats := models.ScanStats{
		TotalAssets:     prog.TotalAssets,
		ProcessedAssets: prog.ProcessedAssets,
		DocumentsFound:  len(docs),
		FailedAssets:    len(failed),
	}
	if stats.ProcessedAssets > 0 {
		stats.SuccessRate = float64(stats.ProcessedAssets-stats.FailedAssets) / float64(stats.ProcessedAssets)
	}
	return stats, nil
}

// CheckConditions verifies device policy without touching any state. Run
// performs the same check; callers that dispatch scans asynchronously use
// this to fail fast.
func (s *Scanner) CheckConditions(opts models.ScanOptions) error {
	return s.checkConditions(opts)
}

func (s *Scanner) checkConditions(opts models.ScanOptions) error {
	cond := s.monitor.Conditions()
	if opts.WifiOnly && !cond.OnWifi {
		return scanerr.New(scanerr.KindDeviceConditionUnmet, errors.New("wifi required but not connected"))
	}
	if opts.BatterySaver && cond.LowBattery {
		return scanerr.New(scanerr.KindDeviceConditionUnmet, errors.New("battery too low"))
	}
	return nil
}

// enumerate lists assets once, deduplicates by URI and sorts newest first.
func (s *Scanner) enumerate(ctx context.Context, opts models.ScanOptions, prog models.ScanProgress) ([]models.Asset, error) {
	list, err := s.source.ListAssets(ctx, assets.Query{})
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, scanerr.New(scanerr.KindPermissionDenied, err)
		}
		return nil, scanerr.New(scanerr.KindAssetReadFailure, err)
	}

	seen := make(map[string]bool, len(list))
	deduped := list[:0]
	for _, a := range list {
		if seen[a.URI] {
			continue
		}
		if opts.ScanNewOnly && !prog.LastScanTime.IsZero() && !a.CreatedAt.After(prog.LastScanTime) {
			continue
		}
		seen[a.URI] = true
		deduped = append(deduped, a)
	}

	sort.SliceStable(deduped, func(i, j int) bool {
		return deduped[i].CreatedAt.After(deduped[j].CreatedAt)
	})
	return deduped, nil
}

// resumeIndex locates the checkpoint in the sorted list; processing starts
// strictly after it. An unknown checkpoint restarts from the top.
func resumeIndex(list []models.Asset, lastProcessedURI string) int {
	if lastProcessedURI == "" {
		return 0
	}
	for i, a := range list {
		if a.URI == lastProcessedURI {
			return i + 1
		}
	}
	return 0
}

// admit applies the smart filter to a slice and orders survivors by
// descending priority. With the filter off, the slice passes through as is.
func admit(f *filter.Filter, slice []models.Asset, opts models.ScanOptions) []models.Asset {
	if !opts.SmartFilterEnabled {
		return slice
	}

	type scored struct {
		asset    models.Asset
		priority int
	}
	admitted := make([]scored, 0, len(slice))
	for _, a := range slice {
		decision := f.Evaluate(a)
		if !decision.ShouldProcess {
			continue
		}
		admitted = append(admitted, scored{asset: a, priority: decision.Priority})
	}

	sort.SliceStable(admitted, func(i, j int) bool {
		return admitted[i].priority > admitted[j].priority
	})

	out := make([]models.Asset, len(admitted))
	for i, sc := range admitted {
		out[i] = sc.asset
	}
	return out
}

func (s *Scanner) nextBatchSize(current, configuredMax int) int {
	if s.monitor.MemoryPressure() != resource.PressureNormal {
		return clampBatch(current/2, configuredMax)
	}
	return clampBatch(current*2, configuredMax)
}

func clampBatch(n, configuredMax int) int {
	if n < minBatchSize {
		return minBatchSize
	}
	if n > configuredMax {
		return configuredMax
	}
	return n
}

func (s *Scanner) settle(ctx context.Context, scanned int) {
	delay := s.timing.SettleDelay
	if s.timing.LongSettleEvery > 0 && scanned%s.timing.LongSettleEvery == 0 {
		delay = s.timing.LongSettleDelay
	}
	s.sleep(ctx, delay)
}

func (s *Scanner) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func (s *Scanner) setLive(p models.ScanProgress) {
	s.mu.Lock()
	s.live = p
	s.mu.Unlock()
}

func (s *Scanner) saveProgress(ctx context.Context, p models.ScanProgress) {
	if err := s.store.SaveProgress(ctx, p); err != nil {
		s.logger.Error("Failed to persist scan progress", logger.Error(err))
	}
}

func (s *Scanner) recordFailure(ctx context.Context, uri string, err error, opts models.ScanOptions) {
	s.logger.Warn("Asset processing failed",
		logger.String("uri", uri),
		logger.String("kind", string(scanerr.KindOf(err))),
		logger.Error(err),
	)

	entry, found, gerr := s.store.FailedAsset(ctx, uri)
	if gerr != nil {
		s.logger.Error("Failed to read failed-asset entry", logger.Error(gerr))
		return
	}
	if !found {
		entry = models.FailedAssetEntry{URI: uri}
	}
	if entry.RetryCount < opts.MaxRetries {
		entry.RetryCount++
	}
	if serr := s.store.SaveFailedAsset(ctx, entry); serr != nil {
		s.logger.Error("Failed to record failed asset", logger.Error(serr))
	}
}
