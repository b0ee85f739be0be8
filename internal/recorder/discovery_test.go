package recorder

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDiscoverSummarizesRecordings(t *testing.T) {
	root := t.TempDir()

	r, err := New(root, "page-a", "first", "demo", false, fakePage{}, &fakeSnapshotter{}, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := r.Append(context.Background(), Action{Kind: KindCreate, Name: "first", URL: "about:blank"}); err != nil {
		t.Fatalf("Append create: %v", err)
	}
	if _, err := r.Append(context.Background(), Action{Kind: KindNavigate, URL: "https://example.com"}); err != nil {
		t.Fatalf("Append navigate: %v", err)
	}

	// A stray non-recording directory must be skipped, not fail the scan.
	if err := os.MkdirAll(filepath.Join(root, "not-a-recording"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	summaries, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected one summary, got %d", len(summaries))
	}
	s := summaries[0]
	if s.ID != "page-a" || s.Name != "first" || s.ActionsCount != 2 || s.LastActionKind != KindNavigate {
		t.Fatalf("unexpected summary: %+v", s)
	}
	if s.CreatedAt == 0 {
		t.Fatalf("createdAt should come from the first action's timestamp")
	}
}

func TestDiscoverMissingRootIsEmptyNotError(t *testing.T) {
	summaries, err := Discover(filepath.Join(t.TempDir(), "never-created"))
	if err != nil {
		t.Fatalf("Discover on a missing root: %v", err)
	}
	if len(summaries) != 0 {
		t.Fatalf("expected no summaries, got %d", len(summaries))
	}
}

func TestConsoleLogSanitizesHTML(t *testing.T) {
	dir := t.TempDir()
	c, name, err := NewConsoleLog(dir)
	if err != nil {
		t.Fatalf("NewConsoleLog: %v", err)
	}
	if !strings.HasPrefix(name, "console-") || !strings.HasSuffix(name, ".log") {
		t.Fatalf("unexpected console log name %q", name)
	}

	c.Log("log", `hello <script>alert(1)</script> world`, "")
	c.PageError("boom", "at <img src=x onerror=steal()> line 3")
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("read console log: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "<script>") || strings.Contains(out, "<img") {
		t.Fatalf("console log must not contain raw HTML: %q", out)
	}
	if !strings.Contains(out, "[log]") || !strings.Contains(out, "[PAGE-ERROR]") {
		t.Fatalf("expected level tags in console log: %q", out)
	}
}
