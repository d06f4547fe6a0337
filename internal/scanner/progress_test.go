package scanner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuvault/docscan/internal/models"
)

func collect(ch <-chan models.ScanProgress, wait time.Duration) []models.ScanProgress {
	var out []models.ScanProgress
	deadline := time.After(wait)
	for {
		select {
		case p, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, p)
		case <-deadline:
			return out
		}
	}
}

func TestEmitterForcedDeliveryIsImmediate(t *testing.T) {
	e := NewEmitter(time.Hour) // throttle would block everything non-forced
	ch, cancel := e.Subscribe()
	defer cancel()

	e.Emit(models.ScanProgress{ProcessedAssets: 1}, true)

	select {
	case p := <-ch:
		assert.Equal(t, 1, p.ProcessedAssets)
	case <-time.After(time.Second):
		t.Fatal("forced emission was not delivered")
	}
}

func TestEmitterCoalescesBursts(t *testing.T) {
	e := NewEmitter(50 * time.Millisecond)
	ch, cancel := e.Subscribe()
	defer cancel()

	// First emission passes (window empty); the rest of the burst coalesces
	// into one trailing delivery carrying the newest snapshot.
	for i := 1; i <= 10; i++ {
		e.Emit(models.ScanProgress{ProcessedAssets: i}, false)
	}

	got := collect(ch, 200*time.Millisecond)
	require.GreaterOrEqual(t, len(got), 2)
	assert.LessOrEqual(t, len(got), 3, "burst of 10 must not produce 10 deliveries")
	assert.Equal(t, 1, got[0].ProcessedAssets)
	assert.Equal(t, 10, got[len(got)-1].ProcessedAssets, "the newest snapshot wins the coalesce")
}

func TestEmitterForceFlushesPending(t *testing.T) {
	e := NewEmitter(time.Hour)
	ch, cancel := e.Subscribe()
	defer cancel()

	e.Emit(models.ScanProgress{ProcessedAssets: 1}, true)
	e.Emit(models.ScanProgress{ProcessedAssets: 2}, false) // throttled, pending
	e.Emit(models.ScanProgress{ProcessedAssets: 3}, true)  // flushes immediately

	got := collect(ch, 100*time.Millisecond)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].ProcessedAssets)
	assert.Equal(t, 3, got[1].ProcessedAssets)
}

func TestEmitterCancelStopsDelivery(t *testing.T) {
	e := NewEmitter(time.Millisecond)
	ch, cancel := e.Subscribe()
	cancel()

	_, ok := <-ch
	assert.False(t, ok, "cancel closes the channel")

	// Emitting after cancel must not panic.
	e.Emit(models.ScanProgress{ProcessedAssets: 1}, true)
}

func TestEmitterMultipleSubscribers(t *testing.T) {
	e := NewEmitter(time.Millisecond)
	ch1, cancel1 := e.Subscribe()
	ch2, cancel2 := e.Subscribe()
	defer cancel1()
	defer cancel2()

	e.Emit(models.ScanProgress{ProcessedAssets: 5}, true)

	for _, ch := range []<-chan models.ScanProgress{ch1, ch2} {
		select {
		case p := <-ch:
			assert.Equal(t, 5, p.ProcessedAssets)
		case <-time.After(time.Second):
			t.Fatal("subscriber missed a forced emission")
		}
	}
}
