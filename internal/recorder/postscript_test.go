package recorder

import "testing"

func TestRunOnHTMLExtractsTextViaCheerioLike(t *testing.T) {
	html := `<div id="root"><span class="name">Ada</span></div>`
	script := `(html, cheerioLike) => cheerioLike(html).Find(".name").Text()`

	got, err := RunOnHTML(script, html)
	if err != nil {
		t.Fatalf("RunOnHTML: %v", err)
	}
	if got != "Ada" {
		t.Fatalf("got %v, want Ada", got)
	}
}

func TestRunOnListPassesHTMLArrayThrough(t *testing.T) {
	script := `(htmlArray, cheerioLike) => htmlArray.length`
	got, err := RunOnList(script, []string{"<p>a</p>", "<p>b</p>", "<p>c</p>"})
	if err != nil {
		t.Fatalf("RunOnList: %v", err)
	}
	if got != int64(3) {
		t.Fatalf("got %v (%T), want 3", got, got)
	}
}

func TestRunRejectsNonFunctionScript(t *testing.T) {
	_, err := RunOnHTML(`42`, "<p></p>")
	if err == nil {
		t.Fatalf("expected an error for a non-function post-script")
	}
}
