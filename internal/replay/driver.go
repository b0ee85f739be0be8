// Package replay re-issues a recorded action trace against the page
// manager sequentially, with an inter-action delay, a
// continue/stop-on-error policy, and a selector-fallback retry for acts
// whose recorded xpath no longer resolves.
package replay

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"simplepage/internal/errs"
	"simplepage/internal/pagemanager"
	"simplepage/internal/recorder"
)

// Options controls one replay run (the POST /api/replay options body).
type Options struct {
	DelayMs       int64 `json:"delayMs" yaml:"delayMs"`
	Verbose       bool  `json:"verbose" yaml:"verbose"`
	ContinueOnErr bool  `json:"continueOnError" yaml:"continueOnError"`
}

// StepResult records the outcome of re-issuing one action.
type StepResult struct {
	Index   int          `json:"index"`
	Kind    recorder.Kind `json:"kind"`
	Success bool         `json:"success"`
	Error   string       `json:"error,omitempty"`
	Skipped bool         `json:"skipped,omitempty"`
}

// Result is the full outcome of a replay run. ExecutedActions counts the
// actions that ran successfully, the initial create included.
type Result struct {
	PageID          string       `json:"pageId"`
	Steps           []StepResult `json:"steps"`
	ExecutedActions int          `json:"executedActions"`
	Success         bool         `json:"success"`
}

// Driver re-issues a trace against the in-process page manager directly,
// rather than looping back over its own HTTP surface — the manager's Go
// API is the same surface the HTTP handlers call, and a loopback HTTP
// request from the same process buys nothing but latency.
type Driver struct {
	mgr *pagemanager.Manager
	log *slog.Logger
}

func New(mgr *pagemanager.Manager, log *slog.Logger) *Driver {
	if log == nil {
		log = slog.Default()
	}
	return &Driver{mgr: mgr, log: log}
}

// Run walks actions sequentially against a freshly created, non-recording
// page, applying opts, and best-effort closes the page on exit.
func (d *Driver) Run(ctx context.Context, actions []recorder.Action, opts Options) (*Result, error) {
	if len(actions) == 0 || actions[0].Kind != recorder.KindCreate {
		return nil, errs.New(errs.BadRequest, "replay trace must start with a create action")
	}
	create := actions[0]

	info, err := d.mgr.Create(ctx, pagemanager.CreateOptions{
		Name: create.Name, URL: create.URL, Description: create.Description,
		RecordActions: false,
	})
	if err != nil {
		return nil, err
	}
	pageID := info.ID
	defer func() {
		if cerr := d.mgr.Close(context.Background(), pageID); cerr != nil {
			d.log.Warn("replay page close failed", "page", pageID, "error", cerr)
		}
	}()

	result := &Result{PageID: pageID, ExecutedActions: 1, Success: true}

	for i, a := range actions[1:] {
		idx := i + 1
		step := StepResult{Index: idx, Kind: a.Kind}

		if opts.Verbose {
			d.log.Info("replay step", "index", idx, "kind", a.Kind)
		}

		runErr := d.step(ctx, pageID, a)
		switch {
		case runErr == nil:
			step.Success = true
			result.ExecutedActions++
		default:
			step.Error = runErr.Error()
			result.Success = false
			if opts.Verbose {
				d.log.Warn("replay step failed", "index", idx, "kind", a.Kind, "error", runErr)
			}
		}
		result.Steps = append(result.Steps, step)

		if runErr != nil && !opts.ContinueOnErr {
			break
		}
		if opts.DelayMs > 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(time.Duration(opts.DelayMs) * time.Millisecond):
			}
		}
	}
	return result, nil
}

func (d *Driver) step(ctx context.Context, pageID string, a recorder.Action) error {
	switch a.Kind {
	case recorder.KindNavigate:
		_, err := d.mgr.Navigate(ctx, pageID, a.URL, a.Timeout, a.Description)
		return err
	case recorder.KindNavigateBack:
		_, err := d.mgr.NavigateBack(ctx, pageID, a.Description)
		return err
	case recorder.KindNavigateForward:
		_, err := d.mgr.NavigateForward(ctx, pageID, a.Description)
		return err
	case recorder.KindReload:
		_, err := d.mgr.Reload(ctx, pageID, a.Timeout, a.Description)
		return err
	case recorder.KindWait:
		return d.mgr.Wait(ctx, pageID, a.Timeout, a.Description)
	case recorder.KindCondition:
		_, err := d.mgr.Condition(ctx, pageID, a.Pattern, a.Flags, a.Description)
		return err
	case recorder.KindAct:
		return d.act(ctx, pageID, a)
	case recorder.KindGetListHTML:
		_, _, _, err := d.mgr.GetListHTML(ctx, pageID, a.Selector, a.Description, a.PostScripts)
		return err
	case recorder.KindGetListHTMLByParent:
		_, _, _, err := d.mgr.GetListHTMLByParent(ctx, pageID, a.Selector, a.Description, a.PostScripts)
		return err
	case recorder.KindGetElementHTML:
		_, _, err := d.mgr.GetElementHTML(ctx, pageID, a.Selector, a.Description, a.PostScripts)
		return err
	case recorder.KindClose:
		// The page is closed once, on Run's exit, regardless of where in
		// the trace its close action appears.
		return nil
	default:
		d.log.Warn("replay: unsupported action kind, skipping", "kind", a.Kind)
		return nil
	}
}

// act chooses xpath over encoded id when both are present,
// and on a resolution failure retries once against the structurally
// nearest xpath in the current snapshot.
func (d *Driver) act(ctx context.Context, pageID string, a recorder.Action) error {
	if a.XPath == "" {
		return d.mgr.ActID(ctx, pageID, a.EncodedID, a.Method, a.Args, a.Description)
	}

	err := d.mgr.ActXPath(ctx, pageID, a.XPath, a.Method, a.Args, a.Description)
	if err == nil || !isResolutionFailure(err) {
		return err
	}

	fallback, ok := d.nearestXPath(ctx, pageID, a.XPath)
	if !ok {
		return err
	}
	return d.mgr.ActXPath(ctx, pageID, fallback, a.Method, a.Args, a.Description)
}

func isResolutionFailure(err error) bool {
	switch errs.KindOf(err) {
	case errs.ElementNotFound, errs.InvalidSelector, errs.NoXPathForEncodedID:
		return true
	default:
		return false
	}
}

var lastSegment = regexp.MustCompile(`([A-Za-z][A-Za-z0-9]*)(?:\[(\d+)\])?$`)

// nearestXPath implements the selector-fallback policy: it rebuilds the
// page's structure, then among the fresh snapshot's xpaths picks the one
// sharing the failed xpath's final tag whose sibling index is closest to
// the failed xpath's index.
func (d *Driver) nearestXPath(ctx context.Context, pageID, failedXPath string) (string, bool) {
	if _, _, _, _, err := d.mgr.Structure(ctx, pageID, ""); err != nil {
		return "", false
	}
	xmap, err := d.mgr.CachedXPathMap(pageID)
	if err != nil {
		return "", false
	}

	tag, wantIdx, ok := parseLastSegment(failedXPath)
	if !ok {
		return "", false
	}

	best := ""
	bestDist := -1
	for _, xp := range xmap {
		candTag, candIdx, ok := parseLastSegment(xp)
		if !ok || candTag != tag {
			continue
		}
		dist := candIdx - wantIdx
		if dist < 0 {
			dist = -dist
		}
		if bestDist == -1 || dist < bestDist {
			best, bestDist = xp, dist
		}
	}
	return best, best != ""
}

func parseLastSegment(xpath string) (tag string, index int, ok bool) {
	last := xpath
	if i := strings.LastIndex(xpath, "/"); i >= 0 {
		last = xpath[i+1:]
	}
	m := lastSegment.FindStringSubmatch(last)
	if m == nil {
		return "", 0, false
	}
	idx := 1
	if m[2] != "" {
		if n, err := strconv.Atoi(m[2]); err == nil {
			idx = n
		}
	}
	return m[1], idx, true
}
