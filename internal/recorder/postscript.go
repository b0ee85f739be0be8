package recorder

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"

	"simplepage/internal/errs"
)

// postScriptTimeout bounds how long a sandboxed post-script may run
// before its VM is interrupted.
const postScriptTimeout = 5 * time.Second

// cheerioDoc is the Go-backed "cheerioLike" root object handed to
// post-scripts. goja maps its exported methods to callable JS functions
// via reflection, so no manual binding glue is needed beyond exposing the
// constructor.
type cheerioDoc struct {
	doc *goquery.Document
}

func (c *cheerioDoc) Find(selector string) *cheerioSelection {
	return &cheerioSelection{sel: c.doc.Find(selector)}
}

// cheerioSelection wraps a goquery.Selection with the handful of jQuery-
// flavored accessors a post-script is expected to call.
type cheerioSelection struct {
	sel *goquery.Selection
}

func (s *cheerioSelection) Find(selector string) *cheerioSelection {
	return &cheerioSelection{sel: s.sel.Find(selector)}
}

func (s *cheerioSelection) Text() string {
	return strings.TrimSpace(s.sel.Text())
}

func (s *cheerioSelection) Html() string {
	h, _ := goquery.OuterHtml(s.sel)
	return h
}

func (s *cheerioSelection) Attr(name string) string {
	v, _ := s.sel.Attr(name)
	return v
}

func (s *cheerioSelection) Length() int {
	return s.sel.Length()
}

func (s *cheerioSelection) Eq(i int) *cheerioSelection {
	return &cheerioSelection{sel: s.sel.Eq(i)}
}

// RunOnList evaluates script as `(htmlArray, cheerioLike) => ...` against
// a list-extraction action's captured HTML fragments.
func RunOnList(script string, htmlArray []string) (any, error) {
	return run(script, func(vm *goja.Runtime) []goja.Value {
		return []goja.Value{vm.ToValue(htmlArray), cheerioLikeFn(vm)}
	})
}

// RunOnHTML evaluates script as `(html, cheerioLike) => ...` against one
// HTML fragment (element- or page-HTML extraction actions).
func RunOnHTML(script, html string) (any, error) {
	return run(script, func(vm *goja.Runtime) []goja.Value {
		return []goja.Value{vm.ToValue(html), cheerioLikeFn(vm)}
	})
}

func run(script string, buildArgs func(*goja.Runtime) []goja.Value) (any, error) {
	vm := goja.New()

	timer := time.AfterFunc(postScriptTimeout, func() {
		vm.Interrupt("post-script exceeded its time budget")
	})
	defer timer.Stop()

	fnVal, err := vm.RunString("(" + script + ")")
	if err != nil {
		return nil, errs.Wrap(errs.BadRequest, err, "compile post-script")
	}
	fn, ok := goja.AssertFunction(fnVal)
	if !ok {
		return nil, errs.New(errs.BadRequest, "post-script did not evaluate to a function")
	}

	result, err := fn(goja.Undefined(), buildArgs(vm)...)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "run post-script")
	}
	return result.Export(), nil
}

func cheerioLikeFn(vm *goja.Runtime) goja.Value {
	return vm.ToValue(func(call goja.FunctionCall) goja.Value {
		html := call.Argument(0).String()
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			panic(vm.ToValue(err.Error()))
		}
		return vm.ToValue(&cheerioDoc{doc: doc})
	})
}
