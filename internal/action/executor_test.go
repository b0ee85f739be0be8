package action

import (
	"context"
	"strings"
	"testing"
	"time"

	"simplepage/internal/driver"
	"simplepage/internal/errs"
)

// fakeLocator records the call it received so tests can assert dispatch.
type fakeLocator struct {
	clicked      bool
	forced       bool
	filledWith   string
	selectedWith string
	checked      bool
	unchecked    bool
	hovered      bool
	pressedKey   string
	evalJS       string
	evalArg      any
	evalResult   any
	err          error
}

func (f *fakeLocator) Click(ctx context.Context, force bool) error {
	f.clicked = true
	f.forced = force
	return f.err
}
func (f *fakeLocator) Fill(ctx context.Context, text string) error {
	f.filledWith = text
	return f.err
}
func (f *fakeLocator) SelectOption(ctx context.Context, value string) error {
	f.selectedWith = value
	return f.err
}
func (f *fakeLocator) Check(ctx context.Context) error   { f.checked = true; return f.err }
func (f *fakeLocator) Uncheck(ctx context.Context) error { f.unchecked = true; return f.err }
func (f *fakeLocator) Hover(ctx context.Context) error   { f.hovered = true; return f.err }
func (f *fakeLocator) Press(ctx context.Context, key string) error {
	f.pressedKey = key
	return f.err
}
func (f *fakeLocator) Evaluate(ctx context.Context, js string, arg any) (any, error) {
	f.evalJS = js
	f.evalArg = arg
	return f.evalResult, f.err
}

type fakePage struct {
	driver.PageSurface
	uploadXPath string
	uploadPaths []string
	dialogFn    func(driver.DialogHandler) driver.DialogHandler
}

func (p *fakePage) SetInputFiles(ctx context.Context, xpath string, paths []string) error {
	p.uploadXPath = xpath
	p.uploadPaths = paths
	return nil
}
func (p *fakePage) OnceDialog(handler func(driver.DialogHandler) driver.DialogHandler) {
	p.dialogFn = handler
}

func newExecutor(loc *fakeLocator, page *fakePage) *Executor {
	return New(page, func(xpath string) driver.LocatorSurface { return loc }, nil)
}

func TestRunClickUsesForceTrue(t *testing.T) {
	loc := &fakeLocator{}
	e := newExecutor(loc, &fakePage{})
	err := e.Run(context.Background(), nil, Request{Target: Target{XPath: "/html/button"}, Method: "click"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !loc.clicked {
		t.Fatalf("expected click to be dispatched")
	}
	if !loc.forced {
		t.Fatalf("expected click to be dispatched with force=true")
	}
}

func TestRunFillDispatchesText(t *testing.T) {
	loc := &fakeLocator{}
	e := newExecutor(loc, &fakePage{})
	err := e.Run(context.Background(), nil, Request{Target: Target{XPath: "/x"}, Method: "fill", Args: []string{"hello"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if loc.filledWith != "hello" {
		t.Fatalf("got %q", loc.filledWith)
	}
}

func TestRunFillMissingArgumentIsInvalidArgs(t *testing.T) {
	loc := &fakeLocator{}
	e := newExecutor(loc, &fakePage{})
	err := e.Run(context.Background(), nil, Request{Target: Target{XPath: "/x"}, Method: "fill"})
	if errs.KindOf(err) != errs.InvalidArgs {
		t.Fatalf("expected InvalidArgs, got %v", err)
	}
}

func TestRunUnsupportedMethod(t *testing.T) {
	loc := &fakeLocator{}
	e := newExecutor(loc, &fakePage{})
	err := e.Run(context.Background(), nil, Request{Target: Target{XPath: "/x"}, Method: "teleport"})
	if errs.KindOf(err) != errs.UnsupportedMethod {
		t.Fatalf("expected UnsupportedMethod, got %v", err)
	}
}

func TestRunResolvesEncodedIdThroughXPathMap(t *testing.T) {
	loc := &fakeLocator{}
	e := newExecutor(loc, &fakePage{})
	xpathMap := map[string]string{"0-9": "/html/div[1]/button[1]"}
	err := e.Run(context.Background(), xpathMap, Request{Target: Target{EncodedID: "0-9"}, Method: "click"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !loc.clicked {
		t.Fatalf("expected click dispatched via resolved xpath")
	}
}

func TestRunUnknownEncodedIdFails(t *testing.T) {
	loc := &fakeLocator{}
	e := newExecutor(loc, &fakePage{})
	err := e.Run(context.Background(), map[string]string{}, Request{Target: Target{EncodedID: "0-9"}, Method: "click"})
	if errs.KindOf(err) != errs.NoXPathForEncodedID {
		t.Fatalf("expected NoXPathForEncodedId, got %v", err)
	}
}

func TestScrollYBottomUsesScrollHeight(t *testing.T) {
	loc := &fakeLocator{}
	e := newExecutor(loc, &fakePage{})
	err := e.Run(context.Background(), nil, Request{Target: Target{XPath: "/x"}, Method: "scrollY", Args: []string{"bottom"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if loc.evalJS == "" {
		t.Fatalf("expected a scroll script to be evaluated")
	}
	if !strings.Contains(loc.evalJS, "scrollHeight") {
		t.Fatalf("expected the scroll script to read scrollHeight, got %q", loc.evalJS)
	}
}

func TestScrollXLeftOnYAxisRejected(t *testing.T) {
	loc := &fakeLocator{}
	e := newExecutor(loc, &fakePage{})
	err := e.Run(context.Background(), nil, Request{Target: Target{XPath: "/x"}, Method: "scrollY", Args: []string{"left"}})
	if errs.KindOf(err) != errs.InvalidArgs {
		t.Fatalf("expected InvalidArgs for left on scrollY, got %v", err)
	}
}

func TestScrollNegativeIntegerIsAbsoluteTarget(t *testing.T) {
	loc := &fakeLocator{}
	e := newExecutor(loc, &fakePage{})
	err := e.Run(context.Background(), nil, Request{Target: Target{XPath: "/x"}, Method: "scrollY", Args: []string{"-200"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if loc.evalArg != -200 {
		t.Fatalf("expected absolute target arg -200, got %v", loc.evalArg)
	}
	if !strings.Contains(loc.evalJS, "scrollTo(") || strings.Contains(loc.evalJS, "scrollBy(") {
		t.Fatalf("expected an absolute scrollTo script, got %q", loc.evalJS)
	}
}

func TestFileUploadForwardsPaths(t *testing.T) {
	loc := &fakeLocator{}
	page := &fakePage{}
	e := newExecutor(loc, page)
	err := e.Run(context.Background(), nil, Request{Target: Target{XPath: "/input"}, Method: "fileUpload", Args: []string{"a.txt", "b.txt"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if page.uploadXPath != "/input" || len(page.uploadPaths) != 2 {
		t.Fatalf("unexpected upload call: %+v", page)
	}
}

func TestHandleDialogFailsWithDialogNotFiredOnTimeout(t *testing.T) {
	loc := &fakeLocator{}
	page := &fakePage{}
	e := newExecutor(loc, page)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := e.Run(ctx, nil, Request{Target: Target{XPath: "/btn"}, Method: "handleDialog", Args: []string{"accept"}})
	if errs.KindOf(err) != errs.DialogNotFired {
		t.Fatalf("expected DialogNotFired, got %v", err)
	}
}

func TestHandleDialogResolvesWhenDialogFires(t *testing.T) {
	loc := &fakeLocator{}
	page := &fakePage{}
	e := newExecutor(loc, page)

	go func() {
		time.Sleep(10 * time.Millisecond)
		if page.dialogFn != nil {
			page.dialogFn(driver.DialogHandler{})
		}
	}()

	err := e.Run(context.Background(), nil, Request{Target: Target{XPath: "/btn"}, Method: "handleDialog"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !loc.clicked {
		t.Fatalf("expected the triggering click to be dispatched")
	}
}
