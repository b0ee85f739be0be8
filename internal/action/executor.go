// Package action dispatches the interaction taxonomy (click, fill,
// scroll, select, check/uncheck, hover, key-press, dialog-handle,
// file-upload) against a resolved xpath or encoded id, then awaits
// quiescence before returning. Method names and argument shapes mirror
// the driver's LocatorSurface one-for-one; this package owns only
// resolution, dispatch, and the scroll-script special case.
package action

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"simplepage/internal/driver"
	"simplepage/internal/errs"
	"simplepage/internal/quiescence"
)

// Target is either an xpath or an encoded id; exactly one should be set.
type Target struct {
	XPath     string
	EncodedID string
}

// Request is one action-executor call.
type Request struct {
	Target      Target
	Method      string
	Args        []string
	SettleAfter time.Duration // 0 means quiescence.DefaultTimeout
}

// LocatorFactory resolves a target xpath into a fresh, one-shot locator;
// no element handle outlives the action that took it.
type LocatorFactory func(xpath string) driver.LocatorSurface

// Executor dispatches actions against a single page.
type Executor struct {
	Page       driver.PageSurface
	NewLocator LocatorFactory
	Settle     *quiescence.Detector
}

func New(page driver.PageSurface, newLocator LocatorFactory, settle *quiescence.Detector) *Executor {
	return &Executor{Page: page, NewLocator: newLocator, Settle: settle}
}

// Run resolves the target, dispatches the method, then waits for the page
// to settle before returning, regardless of dispatch outcome.
func (e *Executor) Run(ctx context.Context, xpathMap map[string]string, req Request) error {
	xpath, err := resolveTarget(req.Target, xpathMap)
	if err != nil {
		return err
	}

	dispatchErr := e.dispatch(ctx, xpath, req.Method, req.Args)

	timeout := req.SettleAfter
	if timeout <= 0 {
		timeout = quiescence.DefaultTimeout
	}
	if e.Settle != nil {
		_ = e.Settle.WaitForSettled(ctx, timeout)
	}

	return dispatchErr
}

func resolveTarget(t Target, xpathMap map[string]string) (string, error) {
	if t.XPath != "" {
		return t.XPath, nil
	}
	if t.EncodedID == "" {
		return "", errs.New(errs.InvalidArgs, "action target must set xpath or encodedId")
	}
	xp, ok := xpathMap[t.EncodedID]
	if !ok {
		return "", errs.New(errs.NoXPathForEncodedID, "no cached xpath for encoded id %q", t.EncodedID)
	}
	return xp, nil
}

func (e *Executor) dispatch(ctx context.Context, xpath, method string, args []string) error {
	switch method {
	case "click":
		return e.NewLocator(xpath).Click(ctx, true)
	case "fill":
		text, err := arg(args, 0)
		if err != nil {
			return err
		}
		return e.NewLocator(xpath).Fill(ctx, text)
	case "selectOption":
		value, err := arg(args, 0)
		if err != nil {
			return err
		}
		return e.NewLocator(xpath).SelectOption(ctx, value)
	case "check":
		return e.NewLocator(xpath).Check(ctx)
	case "uncheck":
		return e.NewLocator(xpath).Uncheck(ctx)
	case "hover":
		return e.NewLocator(xpath).Hover(ctx)
	case "press":
		key, err := arg(args, 0)
		if err != nil {
			return err
		}
		return e.NewLocator(xpath).Press(ctx, key)
	case "scrollY":
		return e.scroll(ctx, xpath, "Y", args)
	case "scrollX":
		return e.scroll(ctx, xpath, "X", args)
	case "handleDialog":
		return e.handleDialog(ctx, xpath, args)
	case "fileUpload":
		return e.Page.SetInputFiles(ctx, xpath, args)
	default:
		return errs.New(errs.UnsupportedMethod, "unsupported action method %q", method)
	}
}

func arg(args []string, i int) (string, error) {
	if i >= len(args) {
		return "", errs.New(errs.InvalidArgs, "missing required argument at position %d", i)
	}
	return args[i], nil
}

// scroll implements the scrollY/scrollX methods: a keyword, a
// relative delta, or a negative absolute target, applied via
// window.scrollTo/scrollBy for <body> and element scrollTop/scrollLeft
// otherwise.
func (e *Executor) scroll(ctx context.Context, xpath, axis string, args []string) error {
	raw, err := arg(args, 0)
	if err != nil {
		return err
	}

	js, jsArg, err := buildScrollScript(axis, raw)
	if err != nil {
		return err
	}

	_, err = e.NewLocator(xpath).Evaluate(ctx, js, jsArg)
	return err
}

// buildScrollScript compiles the scroll directive into a small script
// evaluated against the target element, following through to
// window.scrollTo/scrollBy when the element is <body>.
func buildScrollScript(axis, raw string) (string, any, error) {
	sizeProp := "scrollHeight"
	winTo := "el===document.body ? window.scrollTo(0, v) : el.scrollTop = v"
	winBy := "el===document.body ? window.scrollBy(0, v) : el.scrollTop += v"
	if axis == "X" {
		sizeProp = "scrollWidth"
		winTo = "el===document.body ? window.scrollTo(v, 0) : el.scrollLeft = v"
		winBy = "el===document.body ? window.scrollBy(v, 0) : el.scrollLeft += v"
	}

	switch raw {
	case "top":
		return fmt.Sprintf("(el)=>{const v=0; %s}", winTo), nil, nil
	case "bottom":
		return fmt.Sprintf("(el)=>{const v=el[%q]; %s}", sizeProp, winTo), nil, nil
	case "left":
		if axis != "X" {
			return "", nil, errs.New(errs.InvalidArgs, "\"left\" is only valid for scrollX")
		}
		return fmt.Sprintf("(el)=>{const v=0; %s}", winTo), nil, nil
	case "right":
		if axis != "X" {
			return "", nil, errs.New(errs.InvalidArgs, "\"right\" is only valid for scrollX")
		}
		return fmt.Sprintf("(el)=>{const v=el[%q]; %s}", sizeProp, winTo), nil, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return "", nil, errs.New(errs.InvalidArgs, "scroll argument %q is not a keyword or integer", raw)
	}
	if n < 0 {
		return fmt.Sprintf("(el,v)=>{v=Math.abs(v); %s}", winTo), n, nil
	}
	return fmt.Sprintf("(el,v)=>{%s}", winBy), n, nil
}

// handleDialog installs a one-shot dialog handler, then clicks the
// target locator to trigger it, failing with DialogNotFired if no dialog
// surfaces before the context is done or quiescence.DefaultTimeout elapses.
func (e *Executor) handleDialog(ctx context.Context, xpath string, args []string) error {
	accept := true
	promptText := ""
	if len(args) > 0 {
		accept = args[0] == "accept"
	}
	if len(args) > 1 {
		promptText = args[1]
	}

	fired := make(chan struct{}, 1)
	e.Page.OnceDialog(func(driver.DialogHandler) driver.DialogHandler {
		select {
		case fired <- struct{}{}:
		default:
		}
		return driver.DialogHandler{Accept: accept, PromptText: promptText}
	})

	if err := e.NewLocator(xpath).Click(ctx, true); err != nil {
		return err
	}

	select {
	case <-fired:
		return nil
	case <-ctx.Done():
		return errs.New(errs.DialogNotFired, "no dialog fired before the action context ended")
	case <-time.After(quiescence.DefaultTimeout):
		return errs.New(errs.DialogNotFired, "no dialog fired within the settle window")
	}
}
