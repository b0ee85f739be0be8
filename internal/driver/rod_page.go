package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"

	"simplepage/internal/errs"
)

// keyInput maps the press action's key names to
// rod's input.Key constants. Only the keys commonly exercised by form and
// dialog interactions are listed; unlisted keys fail with InvalidArgs.
var keyInput = map[string]input.Key{
	"Enter":      input.Enter,
	"Tab":        input.Tab,
	"Escape":     input.Escape,
	"Backspace":  input.Backspace,
	"Delete":     input.Delete,
	"ArrowUp":    input.ArrowUp,
	"ArrowDown":  input.ArrowDown,
	"ArrowLeft":  input.ArrowLeft,
	"ArrowRight": input.ArrowRight,
	"Space":      input.Space,
	"Home":       input.Home,
	"End":        input.End,
	"PageUp":     input.PageUp,
	"PageDown":   input.PageDown,
}

// RodPage adapts a *rod.Page to PageSurface: context-scoped calls, one
// method per automation primitive the action taxonomy needs.
type RodPage struct {
	Page *rod.Page
}

func NewRodPage(p *rod.Page) *RodPage { return &RodPage{Page: p} }

func (r *RodPage) Navigate(ctx context.Context, url string, timeoutMs int64) (string, error) {
	navCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMs)*time.Millisecond)
	defer cancel()

	page := r.Page.Context(navCtx)
	if err := page.Navigate(url); err != nil {
		return "", mapRodErr(err, "navigate %s", url)
	}
	// Load-state timeouts are not fatal; the quiescence detector is the
	// authority on "settled enough", not WaitLoad.
	_ = page.WaitLoad()
	info, err := r.Page.Info()
	if err != nil {
		return url, nil
	}
	return info.URL, nil
}

func (r *RodPage) Back(ctx context.Context) error {
	if err := r.Page.Context(ctx).NavigateBack(); err != nil {
		return mapRodErr(err, "navigate back")
	}
	return nil
}

func (r *RodPage) Forward(ctx context.Context) error {
	if err := r.Page.Context(ctx).NavigateForward(); err != nil {
		return mapRodErr(err, "navigate forward")
	}
	return nil
}

func (r *RodPage) Reload(ctx context.Context, timeoutMs int64) error {
	navCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMs)*time.Millisecond)
	defer cancel()
	if err := r.Page.Context(navCtx).Reload(); err != nil {
		return mapRodErr(err, "reload")
	}
	return nil
}

func (r *RodPage) Title(ctx context.Context) (string, error) {
	info, err := r.Page.Context(ctx).Info()
	if err != nil {
		return "", mapRodErr(err, "title")
	}
	return info.Title, nil
}

func (r *RodPage) URL(ctx context.Context) (string, error) {
	info, err := r.Page.Context(ctx).Info()
	if err != nil {
		return "", mapRodErr(err, "url")
	}
	return info.URL, nil
}

func (r *RodPage) Content(ctx context.Context) (string, error) {
	html, err := r.Page.Context(ctx).HTML()
	if err != nil {
		return "", mapRodErr(err, "content")
	}
	return html, nil
}

func (r *RodPage) Screenshot(ctx context.Context, opts ScreenshotOpts) ([]byte, error) {
	req := &proto.PageCaptureScreenshot{Format: proto.PageCaptureScreenshotFormatPng}
	if opts.FullPage {
		b, err := r.Page.Context(ctx).Screenshot(true, req)
		if err != nil {
			return nil, mapRodErr(err, "screenshot")
		}
		return b, nil
	}
	b, err := r.Page.Context(ctx).Screenshot(false, req)
	if err != nil {
		return nil, mapRodErr(err, "screenshot")
	}
	return b, nil
}

func (r *RodPage) WaitForLoadState(ctx context.Context, state string) error {
	switch state {
	case "domcontentloaded", "":
		if err := r.Page.Context(ctx).WaitDOMStable(300*time.Millisecond, 0); err != nil {
			return mapRodErr(err, "wait load state")
		}
	default:
		if err := r.Page.Context(ctx).WaitLoad(); err != nil {
			return mapRodErr(err, "wait load state")
		}
	}
	return nil
}

func (r *RodPage) WaitForTimeout(ctx context.Context, ms int64) {
	select {
	case <-ctx.Done():
	case <-time.After(time.Duration(ms) * time.Millisecond):
	}
}

func (r *RodPage) Evaluate(ctx context.Context, js string, args ...any) (any, error) {
	res, err := r.Page.Context(ctx).Eval(js, args...)
	if err != nil {
		return nil, mapRodErr(err, "evaluate")
	}
	return res.Value.Val(), nil
}

func (r *RodPage) SetInputFiles(ctx context.Context, xpath string, paths []string) error {
	el, err := r.Page.Context(ctx).ElementX(xpath)
	if err != nil {
		return errs.Wrap(errs.ElementNotFound, err, "resolve %s for file upload", xpath)
	}
	if err := el.SetFiles(paths); err != nil {
		return mapRodErr(err, "set input files")
	}
	return nil
}

func (r *RodPage) OnceDialog(handler func(DialogHandler) DialogHandler) {
	// Returning true stops EachEvent after the first dialog, keeping the
	// handler one-shot.
	go r.Page.EachEvent(func(e *proto.PageJavascriptDialogOpening) bool {
		decision := handler(DialogHandler{})
		_ = proto.PageHandleJavaScriptDialog{Accept: decision.Accept, PromptText: decision.PromptText}.Call(r.Page)
		return true
	})()
}

func (r *RodPage) OnConsole(handler func(level, text string, stack string)) {
	go r.Page.EachEvent(func(e *proto.RuntimeConsoleAPICalled) {
		var text string
		for _, a := range e.Args {
			text += a.Value.String() + " "
		}
		handler(string(e.Type), text, "")
	})()
}

func (r *RodPage) OnPageError(handler func(message, stack string)) {
	go r.Page.EachEvent(func(e *proto.RuntimeExceptionThrown) {
		msg := e.ExceptionDetails.Text
		stack := ""
		if e.ExceptionDetails.Exception != nil {
			stack = e.ExceptionDetails.Exception.Description
		}
		handler(msg, stack)
	})()
}

func (r *RodPage) Close(ctx context.Context) error {
	if err := r.Page.Close(); err != nil {
		return mapRodErr(err, "close page")
	}
	return nil
}

// RodLocator resolves a fresh element handle for exactly one call; no
// element handle outlives the action that took it.
type RodLocator struct {
	page  *rod.Page
	xpath string
}

func NewRodLocator(page *rod.Page, xpath string) *RodLocator {
	return &RodLocator{page: page, xpath: xpath}
}

func (l *RodLocator) element(ctx context.Context) (*rod.Element, error) {
	el, err := l.page.Context(ctx).ElementX(l.xpath)
	if err != nil {
		return nil, errs.Wrap(errs.ElementNotFound, err, "resolve %s", l.xpath)
	}
	return el, nil
}

func (l *RodLocator) Click(ctx context.Context, force bool) error {
	el, err := l.element(ctx)
	if err != nil {
		return err
	}
	if force {
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return mapRodErr(err, "click %s", l.xpath)
		}
		return nil
	}
	if err := el.ScrollIntoView(); err != nil {
		return mapRodErr(err, "scroll into view %s", l.xpath)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return mapRodErr(err, "click %s", l.xpath)
	}
	return nil
}

func (l *RodLocator) Fill(ctx context.Context, text string) error {
	el, err := l.element(ctx)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err == nil {
		_ = el.Input("")
	}
	if err := el.Input(text); err != nil {
		return mapRodErr(err, "fill %s", l.xpath)
	}
	return nil
}

func (l *RodLocator) SelectOption(ctx context.Context, value string) error {
	el, err := l.element(ctx)
	if err != nil {
		return err
	}
	if err := el.Select([]string{value}, true, rod.SelectorTypeText); err != nil {
		if err2 := el.Select([]string{value}, true, rod.SelectorTypeCSSSector); err2 != nil {
			return mapRodErr(err, "select option %s", l.xpath)
		}
	}
	return nil
}

func (l *RodLocator) Check(ctx context.Context) error {
	el, err := l.element(ctx)
	if err != nil {
		return err
	}
	checked, err := el.Property("checked")
	if err == nil && checked.Bool() {
		return nil
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return mapRodErr(err, "check %s", l.xpath)
	}
	return nil
}

func (l *RodLocator) Uncheck(ctx context.Context) error {
	el, err := l.element(ctx)
	if err != nil {
		return err
	}
	checked, err := el.Property("checked")
	if err == nil && !checked.Bool() {
		return nil
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return mapRodErr(err, "uncheck %s", l.xpath)
	}
	return nil
}

func (l *RodLocator) Hover(ctx context.Context) error {
	el, err := l.element(ctx)
	if err != nil {
		return err
	}
	if err := el.Hover(); err != nil {
		return mapRodErr(err, "hover %s", l.xpath)
	}
	return nil
}

func (l *RodLocator) Press(ctx context.Context, key string) error {
	el, err := l.element(ctx)
	if err != nil {
		return err
	}
	k, ok := keyInput[key]
	if !ok {
		return errs.New(errs.InvalidArgs, "unknown key %q", key)
	}
	if err := el.Type(k); err != nil {
		return mapRodErr(err, "press %s", l.xpath)
	}
	return nil
}

func (l *RodLocator) Evaluate(ctx context.Context, js string, arg any) (any, error) {
	el, err := l.element(ctx)
	if err != nil {
		return nil, err
	}
	res, err := el.Eval(js, arg)
	if err != nil {
		return nil, mapRodErr(err, "evaluate on %s", l.xpath)
	}
	return res.Value.Val(), nil
}

func mapRodErr(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return errs.Wrap(errs.Timeout, err, "%s", msg)
	case isGone(err):
		return errs.Wrap(errs.DriverGone, err, "%s", msg)
	default:
		return errs.Wrap(errs.Internal, err, "%s", msg)
	}
}

// isGone classifies CDP-level failures that mean the target or session is
// no longer there: the detached-page sentinel plus the protocol error
// codes Chrome replies with after a target or session disappears.
func isGone(err error) bool {
	if errors.Is(err, cdp.ErrNotAttachedToActivePage) {
		return true
	}
	var cdpErr *cdp.Error
	if errors.As(err, &cdpErr) {
		return cdpErr.Code == -32000 || cdpErr.Code == -32001
	}
	return false
}
