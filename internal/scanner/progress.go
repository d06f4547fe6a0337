package scanner

import (
	"sync"
	"time"

	"github.com/docuvault/docscan/internal/models"
)

// DefaultProgressInterval is the minimum spacing between coalesced progress
// deliveries. Lifecycle boundaries (start, stop, completion) flush
// immediately regardless.
const DefaultProgressInterval = 150 * time.Millisecond

// Emitter fans progress snapshots out to subscribers at a bounded rate.
// Bursts within the interval coalesce to the newest snapshot; a trailing
// timer guarantees the last update of a burst is still delivered.
type Emitter struct {
	mu       sync.Mutex
	interval time.Duration
	subs     map[int]chan models.ScanProgress
	nextID   int
	lastEmit time.Time
	pending  *models.ScanProgress
	timer    *time.Timer
	now      func() time.Time
}

func NewEmitter(interval time.Duration) *Emitter {
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	return &Emitter{
		interval: interval,
		subs:     make(map[int]chan models.ScanProgress),
		now:      time.Now,
	}
}

// Subscribe registers a listener. The returned cancel func must be called
// when the listener goes away; slow listeners drop updates rather than
// block the scan.
func (e *Emitter) Subscribe() (<-chan models.ScanProgress, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextID
	e.nextID++
	ch := make(chan models.ScanProgress, 16)
	e.subs[id] = ch

	cancel := func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if sub, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Emit delivers p, coalescing anything inside the throttle window. force
// bypasses the throttle.
func (e *Emitter) Emit(p models.ScanProgress, force bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if force || e.now().Sub(e.lastEmit) >= e.interval {
		if e.timer != nil {
			e.timer.Stop()
			e.timer = nil
		}
		e.pending = nil
		e.deliver(p)
		return
	}

	e.pending = &p
	if e.timer == nil {
		wait := e.interval - e.now().Sub(e.lastEmit)
		e.timer = time.AfterFunc(wait, e.flushPending)
	}
}

func (e *Emitter) flushPending() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.timer = nil
	if e.pending == nil {
		return
	}
	p := *e.pending
	e.pending = nil
	e.deliver(p)
}

// deliver requires e.mu held.
func (e *Emitter) deliver(p models.ScanProgress) {
	e.lastEmit = e.now()
	for _, ch := range e.subs {
		select {
		case ch <- p:
		default:
		}
	}
}
