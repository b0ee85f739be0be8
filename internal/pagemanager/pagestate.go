package pagemanager

import (
	"sync"
	"sync/atomic"
	"time"

	"simplepage/internal/axview"
	"simplepage/internal/driver"
	"simplepage/internal/errs"
	"simplepage/internal/frameregistry"
	"simplepage/internal/quiescence"
	"simplepage/internal/recorder"
)

// Lifecycle is the page state machine: New → Initializing → Ready ↔
// Acting → Closed.
type Lifecycle string

const (
	LifecycleNew          Lifecycle = "new"
	LifecycleInitializing Lifecycle = "initializing"
	LifecycleReady        Lifecycle = "ready"
	LifecycleActing       Lifecycle = "acting"
	LifecycleClosed       Lifecycle = "closed"
)

// PageState is the in-memory record the manager keeps for one live page.
// opLock enforces the single-flight-per-page rule: exactly one action in
// flight at a time, FIFO-fair.
type PageState struct {
	ID          string
	DisplayName string
	Description string
	CreatedAt   time.Time

	Page    driver.PageSurface
	Debug   driver.DebugChannel
	Locator func(xpath string) driver.LocatorSurface

	Frames    *frameregistry.Registry
	Settle    *quiescence.Detector
	AXBuilder *axview.Builder
	Recorder  *recorder.Recorder
	Console   *recorder.ConsoleLog

	ConsoleLogPath string

	// cachedXPathMap is the xpath map produced by the most recent
	// accessibility snapshot, consulted when an action resolves an
	// encoded id.
	xpathMu        sync.RWMutex
	cachedXPathMap map[string]string

	OnAction func(recorder.Action)

	opLock chan struct{} // 1-buffered channel used as a FIFO mutex
	queued int32         // waiters queued on opLock, for the Busy rejection policy

	lifecycleMu sync.Mutex
	lifecycle   Lifecycle
}

func newPageState(id, name, description string) *PageState {
	ps := &PageState{
		ID:          id,
		DisplayName: name,
		Description: description,
		CreatedAt:   time.Now(),
		lifecycle:   LifecycleNew,
		opLock:      make(chan struct{}, 1),
	}
	return ps
}

func (ps *PageState) setLifecycle(l Lifecycle) {
	ps.lifecycleMu.Lock()
	ps.lifecycle = l
	ps.lifecycleMu.Unlock()
}

func (ps *PageState) Lifecycle() Lifecycle {
	ps.lifecycleMu.Lock()
	defer ps.lifecycleMu.Unlock()
	return ps.lifecycle
}

// SetCachedXPathMap stores the xpath map from the most recent
// accessibility snapshot.
func (ps *PageState) SetCachedXPathMap(m map[string]string) {
	ps.xpathMu.Lock()
	ps.cachedXPathMap = m
	ps.xpathMu.Unlock()
}

// CachedXPathMap returns the xpath map consulted for encoded-id
// resolution, or nil if no snapshot has been taken yet.
func (ps *PageState) CachedXPathMap() map[string]string {
	ps.xpathMu.RLock()
	defer ps.xpathMu.RUnlock()
	return ps.cachedXPathMap
}

// acquire blocks until this page's operation lock is free, enforcing the
// strictly-serial-per-page rule. Callers
// defer release() immediately after a successful acquire.
func (ps *PageState) acquire() { ps.opLock <- struct{}{} }

func (ps *PageState) release() { <-ps.opLock }

// tryAcquire enforces the per-page queue depth limit:
// once queueDepthLimit requests are already waiting, further requests are
// rejected with Busy instead of growing the FIFO queue without bound. A
// non-positive limit disables the check.
func (ps *PageState) tryAcquire(queueDepthLimit int) error {
	if queueDepthLimit > 0 {
		n := atomic.AddInt32(&ps.queued, 1)
		if n > int32(queueDepthLimit) {
			atomic.AddInt32(&ps.queued, -1)
			return errs.New(errs.Busy, "page %s operation queue is full", ps.ID)
		}
		defer atomic.AddInt32(&ps.queued, -1)
	}
	ps.acquire()
	return nil
}
