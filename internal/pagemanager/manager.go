package pagemanager

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"simplepage/idgen"
	"simplepage/internal/action"
	"simplepage/internal/axview"
	"simplepage/internal/config"
	"simplepage/internal/driver"
	"simplepage/internal/errs"
	"simplepage/internal/frameregistry"
	"simplepage/internal/quiescence"
	"simplepage/internal/recorder"
)

// Event is one broadcaster-facing notification the manager emits. The API
// surface's broadcaster is the only subscriber; Manager itself knows
// nothing about WebSockets.
type Event struct {
	Type string // "page-created" | "page-closed" | "action-recorded"
	Data any
}

// PageInfo is the wire-level page summary returned by the page-lifecycle
// endpoints.
type PageInfo struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	URL            string    `json:"url"`
	Title          string    `json:"title,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	ConsoleLogPath string    `json:"consoleLogPath,omitempty"`
}

// CreateOptions is the payload of POST /api/pages.
type CreateOptions struct {
	Name          string
	URL           string
	Description   string
	Timeout       int64 // ms, 0 means config.CreateTimeout
	RecordActions bool
}

// Manager owns the persistent browser context, every live page's state,
// and the per-page operation lock.
type Manager struct {
	cfg     *config.Config
	browser *BrowserContext
	log     *slog.Logger
	ids     idgen.Generator

	mu    sync.RWMutex
	pages map[string]*PageState

	broadcastMu sync.RWMutex
	broadcast   func(Event)
}

// New builds a Manager. ids defaults to idgen.Default (UUIDv7) when nil;
// tests supply a deterministic Generator instead.
func New(cfg *config.Config, browser *BrowserContext, log *slog.Logger, ids idgen.Generator) *Manager {
	if log == nil {
		log = slog.Default()
	}
	if ids == nil {
		ids = idgen.Default
	}
	return &Manager{
		cfg:     cfg,
		browser: browser,
		log:     log,
		ids:     ids,
		pages:   map[string]*PageState{},
	}
}

// SetBroadcast wires the API layer's fan-out hook. Safe to call
// before or after pages are created.
func (m *Manager) SetBroadcast(fn func(Event)) {
	m.broadcastMu.Lock()
	defer m.broadcastMu.Unlock()
	m.broadcast = fn
}

func (m *Manager) publish(evt Event) {
	m.broadcastMu.RLock()
	fn := m.broadcast
	m.broadcastMu.RUnlock()
	if fn != nil {
		fn(evt)
	}
}

// Create opens a new page bound to the shared persistent browser context,
// initializes it (debug session, frame registry seed, selector engine,
// console capture), emits the `create` action, and navigates to the
// initial URL.
func (m *Manager) Create(ctx context.Context, opts CreateOptions) (*PageInfo, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = m.cfg.CreateTimeout.Milliseconds()
	}

	rodPage, err := m.browser.NewStealthPage()
	if err != nil {
		return nil, err
	}

	id := m.ids()
	pageSurface := driver.NewRodPage(rodPage)
	debugChannel := driver.NewRodDebugChannel(rodPage)
	selectorEngine := driver.NewRodSelectorEngine(rodPage)
	frames := frameregistry.New()
	settle := quiescence.New(debugChannel, m.log)
	axBuilder := axview.NewBuilder(debugChannel, frames, m.log)

	ps := newPageState(id, opts.Name, opts.Description)
	ps.Page = pageSurface
	ps.Debug = debugChannel
	ps.Locator = func(xpath string) driver.LocatorSurface {
		return driver.NewRodLocator(rodPage, xpath)
	}
	ps.Frames = frames
	ps.Settle = settle
	ps.AXBuilder = axBuilder

	// The detector (and its CDP subscription) must outlive this request:
	// it is torn down by Close, not by the create call's context.
	settle.Start(context.Background())

	if err := selectorEngine.Register(ctx); err != nil {
		m.log.Warn("selector engine registration failed, continuing without shadow-root backdoor", "page", id, "error", err)
	}

	if opts.RecordActions {
		snap := &pageSnapshotter{ps: ps}
		rec, err := recorder.New(m.cfg.RecordingsDir(), id, opts.Name, opts.Description, m.cfg.Screenshot, pageSurface, snap, func(a recorder.Action) {
			m.publish(Event{Type: "action-recorded", Data: map[string]any{"pageId": id, "action": a}})
		}, m.log)
		if err != nil {
			settle.Stop()
			return nil, err
		}
		ps.Recorder = rec

		if console, name, err := recorder.NewConsoleLog(rec.DataDir()); err == nil {
			ps.Console = console
			ps.ConsoleLogPath = name
		} else {
			m.log.Warn("console log open failed, continuing without it", "page", id, "error", err)
		}
	}

	m.wireConsole(ps)

	m.mu.Lock()
	m.pages[id] = ps
	m.mu.Unlock()

	ps.setLifecycle(LifecycleInitializing)

	if ps.Recorder != nil {
		// page-created must go out before the create action's
		// action-recorded broadcast, which fires inside Append via the
		// onAction callback.
		m.publish(Event{Type: "page-created", Data: m.infoLocked(ps)})
		if _, err := ps.Recorder.Append(ctx, recorder.Action{Kind: recorder.KindCreate, Name: opts.Name, URL: opts.URL, Description: opts.Description}); err != nil {
			m.log.Warn("append create action failed", "page", id, "error", err)
		}
	}

	if _, err := pageSurface.Navigate(ctx, opts.URL, timeout); err != nil {
		ps.setLifecycle(LifecycleReady)
		return nil, err
	}
	frames.Reset()
	ps.setLifecycle(LifecycleReady)

	info := m.infoLocked(ps)
	return &info, nil
}

func (m *Manager) wireConsole(ps *PageState) {
	ps.Page.OnConsole(func(level, text, stack string) {
		if ps.Console != nil {
			ps.Console.Log(level, text, stack)
		}
	})
	ps.Page.OnPageError(func(message, stack string) {
		if ps.Console != nil {
			ps.Console.PageError(message, stack)
		}
	})
}

func (m *Manager) get(id string) (*PageState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ps, ok := m.pages[id]
	if !ok {
		return nil, errs.New(errs.PageNotFound, "no page with id %q", id)
	}
	return ps, nil
}

func (m *Manager) infoLocked(ps *PageState) PageInfo {
	url, _ := ps.Page.URL(context.Background())
	return PageInfo{
		ID:             ps.ID,
		Name:           ps.DisplayName,
		Description:    ps.Description,
		URL:            url,
		CreatedAt:      ps.CreatedAt,
		ConsoleLogPath: ps.ConsoleLogPath,
	}
}

// List returns a summary of every live page.
func (m *Manager) List() []PageInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]PageInfo, 0, len(m.pages))
	for _, ps := range m.pages {
		out = append(out, m.infoLocked(ps))
	}
	return out
}

// Get returns one page's info including its live title.
func (m *Manager) Get(ctx context.Context, id string) (*PageInfo, error) {
	ps, err := m.get(id)
	if err != nil {
		return nil, err
	}
	info := m.infoLocked(ps)
	if title, err := ps.Page.Title(ctx); err == nil {
		info.Title = title
	}
	return &info, nil
}

// Close tears a page down under its operation lock: close recorder
// (emits `close`), stop the quiescence detector, close the driver handle,
// drop in-memory state. The on-disk recording survives.
func (m *Manager) Close(ctx context.Context, id string) error {
	ps, err := m.get(id)
	if err != nil {
		return err
	}
	if err := ps.tryAcquire(m.cfg.QueueDepthLimit); err != nil {
		return err
	}
	defer ps.release()

	if ps.Recorder != nil {
		if _, err := ps.Recorder.Append(ctx, recorder.Action{Kind: recorder.KindClose}); err != nil {
			m.log.Warn("append close action failed", "page", id, "error", err)
		}
	}
	ps.Settle.Stop()
	if ps.Console != nil {
		_ = ps.Console.Close()
	}
	if err := ps.Page.Close(ctx); err != nil {
		m.log.Warn("driver close failed", "page", id, "error", err)
	}
	ps.setLifecycle(LifecycleClosed)

	m.mu.Lock()
	delete(m.pages, id)
	m.mu.Unlock()

	m.publish(Event{Type: "page-closed", Data: map[string]any{"pageId": id}})
	return nil
}

// runLocked acquires the page's op lock, runs fn, and releases, folding
// in the Acting lifecycle transition.
func (m *Manager) runLocked(ps *PageState, fn func() error) error {
	if err := ps.tryAcquire(m.cfg.QueueDepthLimit); err != nil {
		return err
	}
	defer ps.release()

	ps.setLifecycle(LifecycleActing)
	defer ps.setLifecycle(LifecycleReady)
	return fn()
}

func (m *Manager) recordIfEnabled(ctx context.Context, ps *PageState, a recorder.Action) {
	if ps.Recorder == nil {
		return
	}
	// action-recorded is broadcast by the recorder's onAction callback
	// inside Append.
	if _, err := ps.Recorder.Append(ctx, a); err != nil {
		m.log.Warn("append action failed", "page", ps.ID, "kind", a.Kind, "error", err)
	}
}

// Navigate issues a programmatic navigation, waits for settle, and
// records it.
func (m *Manager) Navigate(ctx context.Context, id, url string, timeoutMs int64, description string) (string, error) {
	ps, err := m.get(id)
	if err != nil {
		return "", err
	}
	if timeoutMs <= 0 {
		timeoutMs = m.cfg.NavTimeout.Milliseconds()
	}

	var finalURL string
	var navErr error
	err = m.runLocked(ps, func() error {
		finalURL, navErr = ps.Page.Navigate(ctx, url, timeoutMs)
		ps.Frames.Reset()
		_ = ps.Settle.WaitForSettled(ctx, quiescence.DefaultTimeout)

		success := navErr == nil
		a := recorder.Action{Kind: recorder.KindNavigate, URL: url, Timeout: timeoutMs, Description: description, Success: &success}
		if navErr != nil {
			a.Error = navErr.Error()
		}
		m.recordIfEnabled(ctx, ps, a)
		return navErr
	})
	if err != nil {
		return "", err
	}
	return finalURL, nil
}

// NavigateBack re-issues the browser's back navigation.
func (m *Manager) NavigateBack(ctx context.Context, id, description string) (string, error) {
	return m.navHistory(ctx, id, description, recorder.KindNavigateBack, func(ps *PageState) error {
		return ps.Page.Back(ctx)
	})
}

// NavigateForward re-issues the browser's forward navigation.
func (m *Manager) NavigateForward(ctx context.Context, id, description string) (string, error) {
	return m.navHistory(ctx, id, description, recorder.KindNavigateForward, func(ps *PageState) error {
		return ps.Page.Forward(ctx)
	})
}

func (m *Manager) navHistory(ctx context.Context, id, description string, kind recorder.Kind, do func(ps *PageState) error) (string, error) {
	ps, err := m.get(id)
	if err != nil {
		return "", err
	}

	var url string
	var doErr error
	err = m.runLocked(ps, func() error {
		doErr = do(ps)
		ps.Frames.Reset()
		_ = ps.Settle.WaitForSettled(ctx, quiescence.DefaultTimeout)
		url, _ = ps.Page.URL(ctx)

		success := doErr == nil
		a := recorder.Action{Kind: kind, Description: description, Success: &success}
		if doErr != nil {
			a.Error = doErr.Error()
		}
		m.recordIfEnabled(ctx, ps, a)
		return doErr
	})
	if err != nil {
		return "", err
	}
	return url, nil
}

// Reload re-issues the page's reload with a driver-level timeout.
func (m *Manager) Reload(ctx context.Context, id string, timeoutMs int64, description string) (string, error) {
	ps, err := m.get(id)
	if err != nil {
		return "", err
	}
	if timeoutMs <= 0 {
		timeoutMs = m.cfg.NavTimeout.Milliseconds()
	}

	var url string
	var reloadErr error
	err = m.runLocked(ps, func() error {
		reloadErr = ps.Page.Reload(ctx, timeoutMs)
		ps.Frames.Reset()
		_ = ps.Settle.WaitForSettled(ctx, quiescence.DefaultTimeout)
		url, _ = ps.Page.URL(ctx)

		success := reloadErr == nil
		a := recorder.Action{Kind: recorder.KindReload, Timeout: timeoutMs, Description: description, Success: &success}
		if reloadErr != nil {
			a.Error = reloadErr.Error()
		}
		m.recordIfEnabled(ctx, ps, a)
		return reloadErr
	})
	if err != nil {
		return "", err
	}
	return url, nil
}

// Wait pauses for a fixed duration and records it.
func (m *Manager) Wait(ctx context.Context, id string, timeoutMs int64, description string) error {
	ps, err := m.get(id)
	if err != nil {
		return err
	}
	return m.runLocked(ps, func() error {
		ps.Page.WaitForTimeout(ctx, timeoutMs)
		success := true
		m.recordIfEnabled(ctx, ps, recorder.Action{Kind: recorder.KindWait, Timeout: timeoutMs, Description: description, Success: &success})
		return nil
	})
}

// buildAndCache runs the accessibility-view builder and refreshes the
// page's cached xpath map — the path every explicit structure fetch goes
// through, so act-by-encoded-id always resolves against the most recent
// snapshot.
func (m *Manager) buildAndCache(ctx context.Context, ps *PageState, scope *axview.ScopeRoot) (*axview.Result, error) {
	res, err := ps.AXBuilder.Build(ctx, scope)
	if err != nil {
		return nil, err
	}
	ps.SetCachedXPathMap(res.XPathMap)
	return res, nil
}

// Structure returns the current outline, optionally restricted to a CSS
// or XPath scope selector.
func (m *Manager) Structure(ctx context.Context, id, selector string) (outline string, htmlPath, actionsPath, consoleLogPath string, err error) {
	ps, err := m.get(id)
	if err != nil {
		return "", "", "", "", err
	}

	var scope *axview.ScopeRoot
	if selector != "" {
		isXPath, sel := classifySelector(selector)
		backendID, ok, rerr := ps.Debug.ResolveSelector(ctx, isXPath, sel)
		if rerr != nil {
			m.log.Warn("scope selector resolution failed, falling back to full tree", "page", id, "error", rerr)
		} else if ok {
			scope = &axview.ScopeRoot{FrameID: "", BackendNodeID: backendID}
		}
	}

	res, err := m.buildAndCache(ctx, ps, scope)
	if err != nil {
		return "", "", "", "", err
	}

	if ps.Recorder != nil {
		ts := time.Now().UnixNano()
		if html, cerr := ps.Page.Content(ctx); cerr == nil {
			name := fmt.Sprintf("%d-page.html", ts)
			if werr := ps.Recorder.WriteArtifact(name, []byte(html)); werr == nil {
				htmlPath = filepath.Join(ps.Recorder.DataDir(), name)
			}
		} else {
			m.log.Warn("page html capture failed", "page", id, "error", cerr)
		}
		if treeJSON, merr := json.Marshal(res.Tree); merr == nil {
			_ = ps.Recorder.WriteArtifact(fmt.Sprintf("%d-axtree.json", ts), treeJSON)
		}
		actionsPath = filepath.Join(ps.Recorder.Dir(), "actions.json")
	}
	return res.Simplified, htmlPath, actionsPath, ps.ConsoleLogPath, nil
}

// ActXPath dispatches the action executor against an explicit xpath.
func (m *Manager) ActXPath(ctx context.Context, id, xpath, method string, args []string, description string) error {
	return m.act(ctx, id, action.Target{XPath: xpath}, method, args, description)
}

// ActID dispatches the action executor against an encoded id, resolved
// through the page's cached xpath map.
func (m *Manager) ActID(ctx context.Context, id, encodedID, method string, args []string, description string) error {
	return m.act(ctx, id, action.Target{EncodedID: encodedID}, method, args, description)
}

func (m *Manager) act(ctx context.Context, id string, target action.Target, method string, args []string, description string) error {
	ps, err := m.get(id)
	if err != nil {
		return err
	}

	return m.runLocked(ps, func() error {
		xmap := ps.CachedXPathMap()
		if xmap == nil {
			return errs.New(errs.XPathMapNotCached, "no accessibility snapshot taken yet for page %s", id)
		}

		exec := action.New(ps.Page, ps.Locator, ps.Settle)
		runErr := exec.Run(ctx, xmap, action.Request{Target: target, Method: method, Args: args})

		success := runErr == nil
		a := recorder.Action{
			Kind: recorder.KindAct, Method: method, Args: args, Description: description,
			XPath: target.XPath, EncodedID: target.EncodedID, Success: &success,
		}
		if runErr != nil {
			a.Error = runErr.Error()
		}
		m.recordIfEnabled(ctx, ps, a)
		return runErr
	})
}

// Condition evaluates a regex against the freshly built outline.
func (m *Manager) Condition(ctx context.Context, id, pattern, flags, description string) (bool, error) {
	ps, err := m.get(id)
	if err != nil {
		return false, err
	}

	var matched bool
	err = m.runLocked(ps, func() error {
		res, berr := m.buildAndCache(ctx, ps, nil)
		if berr != nil {
			return berr
		}

		expr := pattern
		if flags != "" {
			expr = fmt.Sprintf("(?%s)%s", flags, pattern)
		}
		re, reErr := regexp.Compile(expr)
		if reErr != nil {
			return errs.Wrap(errs.BadRequest, reErr, "invalid condition pattern %q", pattern)
		}
		matched = re.MatchString(res.Simplified)

		success := true
		m.recordIfEnabled(ctx, ps, recorder.Action{
			Kind: recorder.KindCondition, Pattern: pattern, Flags: flags, Description: description, Success: &success,
		})
		return nil
	})
	return matched, err
}

// Screenshot takes a viewport PNG of the current page.
func (m *Manager) Screenshot(ctx context.Context, id string) ([]byte, error) {
	ps, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return ps.Page.Screenshot(ctx, driver.ScreenshotOpts{})
}

// XPathFor resolves one encoded id against the page's cached xpath map.
func (m *Manager) XPathFor(id, encodedID string) (string, error) {
	ps, err := m.get(id)
	if err != nil {
		return "", err
	}
	xmap := ps.CachedXPathMap()
	if xmap == nil {
		return "", errs.New(errs.XPathMapNotCached, "no accessibility snapshot taken yet for page %s", id)
	}
	xp, ok := xmap[encodedID]
	if !ok {
		return "", errs.New(errs.NoXPathForEncodedID, "no cached xpath for encoded id %q", encodedID)
	}
	return xp, nil
}

// CachedXPathMap exposes the page's most recent encoded-id→xpath map, for
// callers (the replay driver's selector-fallback policy) that need to
// search the whole map rather than resolve a single encoded id.
func (m *Manager) CachedXPathMap(id string) (map[string]string, error) {
	ps, err := m.get(id)
	if err != nil {
		return nil, err
	}
	xmap := ps.CachedXPathMap()
	if xmap == nil {
		return nil, errs.New(errs.XPathMapNotCached, "no accessibility snapshot taken yet for page %s", id)
	}
	return xmap, nil
}

// classifySelector applies the CSS-vs-XPath disambiguation rule: a
// leading '/', a leading '(', or the presence of '::' marks an XPath
// expression; everything else is CSS.
func classifySelector(selector string) (isXPath bool, cleaned string) {
	s := strings.TrimSpace(selector)
	if strings.HasPrefix(s, "/") || strings.HasPrefix(s, "(") || strings.Contains(s, "::") {
		return true, s
	}
	return false, s
}

const (
	listSnapshotScript = `(sel, isXPath) => {
  var out = [];
  if (isXPath) {
    var r = document.evaluate(sel, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
    for (var i = 0; i < r.snapshotLength; i++) { out.push(r.snapshotItem(i).outerHTML); }
  } else {
    document.querySelectorAll(sel).forEach(function (el) { out.push(el.outerHTML); });
  }
  return out;
}`

	listByParentScript = `(sel, isXPath) => {
  var parent;
  if (isXPath) {
    parent = document.evaluate(sel, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
  } else {
    parent = document.querySelector(sel);
  }
  var out = [];
  if (!parent) { return out; }
  for (var i = 0; i < parent.children.length; i++) { out.push(parent.children[i].outerHTML); }
  return out;
}`

	elementSnapshotScript = `(sel, isXPath) => {
  var el;
  if (isXPath) {
    el = document.evaluate(sel, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
  } else {
    el = document.querySelector(sel);
  }
  return el ? el.outerHTML : null;
}`
)

// GetListHTML extracts the outerHTML of every node matching selector, in
// document order. Any postScripts are run against the extracted HTML
// array and their results returned alongside it.
func (m *Manager) GetListHTML(ctx context.Context, id, selector, description string, postScripts []string) (listFile string, count int, results []any, err error) {
	return m.getList(ctx, id, selector, description, listSnapshotScript, recorder.KindGetListHTML, postScripts)
}

// GetListHTMLByParent extracts the outerHTML of every direct child of the
// first node matching selector.
func (m *Manager) GetListHTMLByParent(ctx context.Context, id, selector, description string, postScripts []string) (listFile string, count int, results []any, err error) {
	return m.getList(ctx, id, selector, description, listByParentScript, recorder.KindGetListHTMLByParent, postScripts)
}

func (m *Manager) getList(ctx context.Context, id, selector, description, script string, kind recorder.Kind, postScripts []string) (string, int, []any, error) {
	ps, err := m.get(id)
	if err != nil {
		return "", 0, nil, err
	}

	var listFile string
	var count int
	var results []any
	err = m.runLocked(ps, func() error {
		isXPath, sel := classifySelector(selector)
		raw, evalErr := ps.Page.Evaluate(ctx, script, sel, isXPath)
		if evalErr != nil {
			return errs.Wrap(errs.Internal, evalErr, "evaluate list extraction script")
		}
		items := toStringSlice(raw)
		count = len(items)

		for _, postScript := range postScripts {
			res, psErr := recorder.RunOnList(postScript, items)
			if psErr != nil {
				return psErr
			}
			results = append(results, res)
		}

		payload, marshalErr := json.Marshal(items)
		if marshalErr != nil {
			return errs.Wrap(errs.Internal, marshalErr, "marshal list extraction result")
		}

		a := recorder.Action{Kind: kind, Selector: selector, Description: description, Count: count, PostScripts: postScripts}
		if ps.Recorder != nil {
			listFile = fmt.Sprintf("%d-list.json", time.Now().UnixNano())
			if writeErr := ps.Recorder.WriteArtifact(listFile, payload); writeErr != nil {
				return writeErr
			}
			a.ListFile = listFile
		}

		success := true
		a.Success = &success
		m.recordIfEnabled(ctx, ps, a)
		return nil
	})
	if err != nil {
		return "", 0, nil, err
	}
	return listFile, count, results, nil
}

// GetElementHTML extracts the outerHTML of the first node matching
// selector. Any postScripts are run against the extracted HTML fragment.
func (m *Manager) GetElementHTML(ctx context.Context, id, selector, description string, postScripts []string) (elementFile string, results []any, err error) {
	ps, err := m.get(id)
	if err != nil {
		return "", nil, err
	}

	err = m.runLocked(ps, func() error {
		isXPath, sel := classifySelector(selector)
		raw, evalErr := ps.Page.Evaluate(ctx, elementSnapshotScript, sel, isXPath)
		if evalErr != nil {
			return errs.Wrap(errs.Internal, evalErr, "evaluate element extraction script")
		}
		html, _ := raw.(string)
		if html == "" {
			return errs.New(errs.ElementNotFound, "no element matched selector %q", selector)
		}

		for _, script := range postScripts {
			res, psErr := recorder.RunOnHTML(script, html)
			if psErr != nil {
				return psErr
			}
			results = append(results, res)
		}

		a := recorder.Action{Kind: recorder.KindGetElementHTML, Selector: selector, Description: description, PostScripts: postScripts}
		if ps.Recorder != nil {
			elementFile = fmt.Sprintf("%d-element.html", time.Now().UnixNano())
			if writeErr := ps.Recorder.WriteArtifact(elementFile, []byte(html)); writeErr != nil {
				return writeErr
			}
			a.ElementFile = elementFile
		}

		success := true
		a.Success = &success
		m.recordIfEnabled(ctx, ps, a)
		return nil
	})
	return elementFile, results, err
}

// DeleteAction removes one recorded action and its artifacts.
func (m *Manager) DeleteAction(id string, idx int) error {
	ps, err := m.get(id)
	if err != nil {
		return err
	}
	if ps.Recorder == nil {
		return errs.New(errs.RecordingNotFound, "page %s does not have recording enabled", id)
	}
	return ps.Recorder.DeleteAction(idx)
}

// DeleteAllRecords removes a page's on-disk recording directory entirely.
// If the page is still live it is closed first, so the directory is gone
// and the page id no longer resolves afterward.
func (m *Manager) DeleteAllRecords(ctx context.Context, id string) error {
	ps, getErr := m.get(id)
	var rec *recorder.Recorder
	if getErr == nil {
		rec = ps.Recorder
		_ = m.Close(ctx, id)
	}
	if rec != nil {
		return rec.DeleteAllRecords()
	}
	// Page already closed or never had recording enabled: remove the
	// directory directly if it exists.
	if err := os.RemoveAll(recordingDir(m.cfg.RecordingsDir(), id)); err != nil && !os.IsNotExist(err) {
		return errs.Wrap(errs.FilesystemError, err, "remove recording directory for page %s", id)
	}
	return nil
}

// ListRecordings scans the recordings root for summaries.
func (m *Manager) ListRecordings() ([]recorder.Summary, error) {
	return recorder.Discover(m.cfg.RecordingsDir())
}

// GetRecording reads one recording's full action log, live or not.
// enabled is false for a live page that was created with recording turned
// off, so the API can answer with {recordingEnabled:false} instead of a
// 404.
func (m *Manager) GetRecording(id string) (rec recorder.Recording, dir, dataDir string, enabled bool, err error) {
	m.mu.RLock()
	ps, live := m.pages[id]
	m.mu.RUnlock()

	if live {
		if ps.Recorder == nil {
			return recorder.Recording{}, "", "", false, nil
		}
		return ps.Recorder.Snapshot(), ps.Recorder.Dir(), ps.Recorder.DataDir(), true, nil
	}

	dir = recordingDir(m.cfg.RecordingsDir(), id)
	rec, err = recorder.ReadRecording(dir)
	if err != nil {
		return recorder.Recording{}, "", "", false, err
	}
	return rec, dir, dataDirFor(dir), true, nil
}

// BrowserConnected reports whether the persistent browser context is up,
// for the health endpoint.
func (m *Manager) BrowserConnected() bool {
	return m.browser != nil && m.browser.Connected()
}

func recordingDir(root, id string) string { return filepath.Join(root, id) }
func dataDirFor(dir string) string        { return filepath.Join(dir, "data") }

func toStringSlice(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// pageSnapshotter adapts a PageState's axview.Builder into the
// recorder.Snapshotter interface, refreshing the cached xpath map on
// every snapshot the recorder captures.
type pageSnapshotter struct {
	ps *PageState
}

func (s *pageSnapshotter) Build(ctx context.Context, scope *axview.ScopeRoot) (*axview.Result, error) {
	res, err := s.ps.AXBuilder.Build(ctx, scope)
	if err != nil {
		return nil, err
	}
	s.ps.SetCachedXPathMap(res.XPathMap)
	return res, nil
}
