// Package pagemanager owns page lifecycle: the persistent browser
// context, the pageId → PageState map, and the per-page operation lock.
package pagemanager

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"

	"simplepage/internal/errs"
)

// BrowserConfig configures the persistent browser context: headless
// toggle, a user-data directory, and the memory/lifetime recycle policy.
type BrowserConfig struct {
	Headless        bool
	UserDataDir     string
	MemoryLimit     int64
	RecycleInterval time.Duration
	Logger          *slog.Logger
}

func (c *BrowserConfig) defaults() {
	if c.MemoryLimit <= 0 {
		c.MemoryLimit = 1 << 30
	}
	if c.RecycleInterval <= 0 {
		c.RecycleInterval = 4 * time.Hour
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// RecycleHooks lets observers flush state before Chrome is killed and
// reconnect after it restarts.
type RecycleHooks struct {
	BeforeRecycle func()
	AfterRecycle  func(b *rod.Browser)
}

// BrowserContext owns one persistent browser process and launcher.
type BrowserContext struct {
	cfg     BrowserConfig
	mu      sync.RWMutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	startAt time.Time
	closed  bool
	hooks   *RecycleHooks
}

func NewBrowserContext(cfg BrowserConfig) *BrowserContext {
	cfg.defaults()
	return &BrowserContext{cfg: cfg}
}

func (bc *BrowserContext) SetRecycleHooks(h *RecycleHooks) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	bc.hooks = h
}

// Start launches the persistent browser process and begins the recycle
// monitor.
func (bc *BrowserContext) Start(ctx context.Context) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	b, l, err := bc.launch()
	if err != nil {
		return err
	}
	bc.browser = b
	bc.lnch = l
	bc.startAt = time.Now()

	go bc.monitorLoop(ctx)
	return nil
}

func (bc *BrowserContext) launch() (*rod.Browser, *launcher.Launcher, error) {
	l := launcher.New().
		Headless(bc.cfg.Headless).
		UserDataDir(bc.cfg.UserDataDir).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-extensions").
		Set("disable-infobars").
		Set("no-first-run")

	wsURL, err := l.Launch()
	if err != nil {
		return nil, nil, errs.Wrap(errs.Internal, err, "launch browser")
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, nil, errs.Wrap(errs.Internal, err, "connect to browser")
	}
	if err := b.IgnoreCertErrors(true); err != nil {
		bc.cfg.Logger.Warn("ignore cert errors failed", "error", err)
	}
	return b, l, nil
}

// NewStealthPage opens a new page with the stealth script injected —
// the browser-level half of the anti-detection posture the page-manager
// "create page" operation needs before it ever navigates.
func (bc *BrowserContext) NewStealthPage() (*rod.Page, error) {
	bc.mu.RLock()
	b := bc.browser
	bc.mu.RUnlock()
	if b == nil {
		return nil, errs.New(errs.DriverGone, "browser context is not started")
	}
	p, err := stealth.Page(b)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "create stealth page")
	}
	return p, nil
}

// Connected reports whether a live browser process is currently attached.
func (bc *BrowserContext) Connected() bool {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return !bc.closed && bc.browser != nil
}

func (bc *BrowserContext) Close() error {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	bc.closed = true
	return bc.cleanupLocked()
}

func (bc *BrowserContext) cleanupLocked() error {
	if bc.browser != nil {
		_ = bc.browser.Close()
		bc.browser = nil
	}
	if bc.lnch != nil {
		bc.lnch.Cleanup()
		bc.lnch = nil
	}
	return nil
}

func (bc *BrowserContext) recycle(ctx context.Context) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	if bc.closed {
		return fmt.Errorf("pagemanager: browser context is closed")
	}

	hooks := bc.hooks
	if hooks != nil && hooks.BeforeRecycle != nil {
		hooks.BeforeRecycle()
	}

	if err := bc.cleanupLocked(); err != nil {
		bc.cfg.Logger.Warn("cleanup during recycle", "error", err)
	}

	b, l, err := bc.launch()
	if err != nil {
		return err
	}
	bc.browser = b
	bc.lnch = l
	bc.startAt = time.Now()

	if hooks != nil && hooks.AfterRecycle != nil {
		hooks.AfterRecycle(b)
	}
	return nil
}

func (bc *BrowserContext) monitorLoop(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			bc.mu.RLock()
			closed, b, startAt := bc.closed, bc.browser, bc.startAt
			bc.mu.RUnlock()
			if closed || b == nil {
				return
			}

			if time.Since(startAt) > bc.cfg.RecycleInterval {
				bc.cfg.Logger.Info("recycle interval reached")
				if err := bc.recycle(ctx); err != nil {
					bc.cfg.Logger.Error("recycle failed", "error", err)
				}
				continue
			}

			used, err := heapUsage(b)
			if err != nil {
				bc.cfg.Logger.Debug("heap check failed", "error", err)
				continue
			}
			if used > bc.cfg.MemoryLimit {
				bc.cfg.Logger.Info("memory limit exceeded", "used", used, "limit", bc.cfg.MemoryLimit)
				if err := bc.recycle(ctx); err != nil {
					bc.cfg.Logger.Error("recycle failed", "error", err)
				}
			}
		}
	}
}

func heapUsage(b *rod.Browser) (int64, error) {
	pages, err := b.Pages()
	if err != nil || len(pages) == 0 {
		return 0, fmt.Errorf("pagemanager: no pages for heap check")
	}
	res, err := pages[0].Eval(`() => performance.memory ? performance.memory.usedJSHeapSize : 0`)
	if err != nil {
		return 0, err
	}
	return int64(res.Value.Int()), nil
}
