// Package quiescence implements the "DOM settled" promise: a detector
// that watches the driver's network/page event stream and resolves once
// no non-streaming request has been in flight for a quiet window, or at
// a hard deadline, whichever comes first.
//
// One CDP subscription per page is shared by every concurrent waiter;
// the quiet window is a debounce over request completions.
package quiescence

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"simplepage/internal/driver"
)

const (
	quietWindow   = 500 * time.Millisecond
	sweepInterval = 500 * time.Millisecond
	stallAge      = 2 * time.Second

	// DefaultTimeout is used when a caller does not specify a per-call
	// settle timeout.
	DefaultTimeout = 30 * time.Second
)

type requestMeta struct {
	url   string
	start time.Time
}

// waiter is resolved at most once, either by the shared quiet-timer or by
// its own hard-deadline timer.
type waiter struct {
	done chan struct{}
	once sync.Once
}

func (w *waiter) resolve() { w.once.Do(func() { close(w.done) }) }

// Detector tracks one page's in-flight request set and multiplexes any
// number of concurrent WaitForSettled callers against it.
type Detector struct {
	dc  driver.DebugChannel
	log *slog.Logger

	mu         sync.Mutex
	inflight   map[string]struct{}
	meta       map[string]requestMeta
	docByFrame map[string]string
	quietTimer *time.Timer
	waiters    map[*waiter]struct{}

	unsubscribe func()
	sweepCancel context.CancelFunc
}

func New(dc driver.DebugChannel, log *slog.Logger) *Detector {
	if log == nil {
		log = slog.Default()
	}
	return &Detector{
		dc:         dc,
		log:        log,
		inflight:   map[string]struct{}{},
		meta:       map[string]requestMeta{},
		docByFrame: map[string]string{},
		waiters:    map[*waiter]struct{}{},
	}
}

// Start subscribes to the debug channel's event stream and begins the
// stall sweep. Call once per page lifetime; Stop tears both down.
func (d *Detector) Start(ctx context.Context) {
	d.unsubscribe = d.dc.Subscribe(ctx, d.handleEvent)

	sweepCtx, cancel := context.WithCancel(ctx)
	d.sweepCancel = cancel
	go d.sweepLoop(sweepCtx)
}

// Stop removes the event subscription and stops the stall sweep. Any
// waiters still pending are force-resolved, matching "all subscriptions
// are removed before resolution" for a page that's closing mid-wait.
func (d *Detector) Stop() {
	if d.unsubscribe != nil {
		d.unsubscribe()
	}
	if d.sweepCancel != nil {
		d.sweepCancel()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelQuietTimerLocked()
	for w := range d.waiters {
		w.resolve()
	}
	d.waiters = map[*waiter]struct{}{}
}

// WaitForSettled blocks until the page has been quiet for 500ms or
// timeout elapses, whichever is sooner. It never returns an error for a
// hard-deadline expiry — that path is expected, not exceptional; it logs
// and resolves. It does return ctx.Err() if the caller's context is
// canceled first.
func (d *Detector) WaitForSettled(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	w := &waiter{done: make(chan struct{})}
	d.mu.Lock()
	d.waiters[w] = struct{}{}
	d.maybeStartQuietTimerLocked()
	d.mu.Unlock()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	select {
	case <-w.done:
		return nil
	case <-deadline.C:
		d.mu.Lock()
		delete(d.waiters, w)
		pending := len(d.inflight)
		d.mu.Unlock()
		w.resolve()
		if pending > 0 {
			d.log.Warn("settle hard deadline reached with requests still in flight", "inflight", pending)
		}
		return nil
	case <-ctx.Done():
		d.mu.Lock()
		delete(d.waiters, w)
		d.mu.Unlock()
		w.resolve()
		return ctx.Err()
	}
}

func (d *Detector) handleEvent(e driver.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch e.Kind {
	case driver.EventRequestWillBeSent:
		if e.Type == driver.ResourceWebSocket || e.Type == driver.ResourceEventSource {
			return
		}
		d.inflight[e.RequestID] = struct{}{}
		d.meta[e.RequestID] = requestMeta{url: e.URL, start: time.Now()}
		if e.Type == driver.ResourceDocument && e.FrameID != "" {
			d.docByFrame[e.FrameID] = e.RequestID
		}
		d.cancelQuietTimerLocked()

	case driver.EventLoadingFinished, driver.EventLoadingFailed, driver.EventRequestServedFromCache:
		d.completeLocked(e.RequestID)

	case driver.EventResponseReceived:
		if strings.HasPrefix(e.URL, "data:") {
			d.completeLocked(e.RequestID)
		}

	case driver.EventFrameStoppedLoading:
		if rid, ok := d.docByFrame[e.FrameID]; ok {
			d.completeLocked(rid)
		}
	}
}

// completeLocked removes a request from inflight bookkeeping and starts
// the quiet-timer if that was the last one. Caller holds d.mu.
func (d *Detector) completeLocked(requestID string) {
	delete(d.inflight, requestID)
	delete(d.meta, requestID)
	for frame, rid := range d.docByFrame {
		if rid == requestID {
			delete(d.docByFrame, frame)
		}
	}
	d.maybeStartQuietTimerLocked()
}

func (d *Detector) maybeStartQuietTimerLocked() {
	if len(d.inflight) > 0 || d.quietTimer != nil {
		return
	}
	d.quietTimer = time.AfterFunc(quietWindow, d.onQuietFire)
}

func (d *Detector) cancelQuietTimerLocked() {
	if d.quietTimer != nil {
		d.quietTimer.Stop()
		d.quietTimer = nil
	}
}

func (d *Detector) onQuietFire() {
	d.mu.Lock()
	d.quietTimer = nil
	waiters := d.waiters
	d.waiters = map[*waiter]struct{}{}
	d.mu.Unlock()

	for w := range waiters {
		w.resolve()
	}
}

// sweepLoop drops requests that have been in flight too long to plausibly
// ever complete, so a single hung subresource
// can't keep every future WaitForSettled call blocked for 30s each.
func (d *Detector) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.sweep()
		}
	}
}

func (d *Detector) sweep() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	var stale []string
	for id, m := range d.meta {
		if now.Sub(m.start) >= stallAge {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		d.log.Warn("dropping stalled in-flight request", "requestId", id, "url", d.meta[id].url)
		delete(d.inflight, id)
		delete(d.meta, id)
		for frame, rid := range d.docByFrame {
			if rid == id {
				delete(d.docByFrame, frame)
			}
		}
	}
	if len(stale) > 0 {
		d.maybeStartQuietTimerLocked()
	}
}
