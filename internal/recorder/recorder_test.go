package recorder

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"simplepage/internal/axview"
	"simplepage/internal/driver"
)

type fakeSnapshotter struct{ result axview.Result }

func (f *fakeSnapshotter) Build(ctx context.Context, scope *axview.ScopeRoot) (*axview.Result, error) {
	return &f.result, nil
}

type fakePage struct{ driver.PageSurface }

func (fakePage) Screenshot(ctx context.Context, opts driver.ScreenshotOpts) ([]byte, error) {
	return []byte("png-bytes"), nil
}

func newTestRecorder(t *testing.T, enableScreenshot bool) *Recorder {
	t.Helper()
	dir := t.TempDir()
	snap := &fakeSnapshotter{result: axview.Result{
		Simplified: "[0-1] button: Sign in",
		XPathMap:   map[string]string{"0-1": "/html/body/button[1]"},
		IDToURL:    map[string]string{},
	}}
	r, err := New(dir, "page1", "test page", "", enableScreenshot, fakePage{}, snap, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestAppendWritesSnapshotArtifacts(t *testing.T) {
	r := newTestRecorder(t, true)

	a, err := r.Append(context.Background(), Action{Kind: KindNavigate, URL: "https://example.com"})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if a.Structure == "" || a.XPathFile == "" || a.Screenshot == "" {
		t.Fatalf("expected all three snapshot artifacts to be populated: %+v", a)
	}

	for _, name := range []string{a.Structure, a.XPathFile, a.Screenshot} {
		if _, err := os.Stat(filepath.Join(r.DataDir(), name)); err != nil {
			t.Fatalf("expected artifact file %s to exist: %v", name, err)
		}
	}
}

func TestAppendSkipsSnapshotForClose(t *testing.T) {
	r := newTestRecorder(t, false)

	a, err := r.Append(context.Background(), Action{Kind: KindClose})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if a.Structure != "" || a.XPathFile != "" {
		t.Fatalf("close action should not carry a snapshot: %+v", a)
	}
}

func TestAppendRewritesActionsJSONWholeFile(t *testing.T) {
	r := newTestRecorder(t, false)

	if _, err := r.Append(context.Background(), Action{Kind: KindNavigate, URL: "https://a.example"}); err != nil {
		t.Fatalf("Append 1: %v", err)
	}
	if _, err := r.Append(context.Background(), Action{Kind: KindAct, Method: "click"}); err != nil {
		t.Fatalf("Append 2: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(r.Dir(), "actions.json"))
	if err != nil {
		t.Fatalf("read actions.json: %v", err)
	}
	var rec Recording
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(rec.Actions) != 2 {
		t.Fatalf("expected 2 actions persisted, got %d", len(rec.Actions))
	}
	if rec.Actions[0].Kind != KindNavigate || rec.Actions[1].Kind != KindAct {
		t.Fatalf("actions out of order: %+v", rec.Actions)
	}
}

func TestOnActionCallbackInvoked(t *testing.T) {
	dir := t.TempDir()
	snap := &fakeSnapshotter{}
	var got []Action
	r, err := New(dir, "page2", "p", "", false, fakePage{}, snap, func(a Action) { got = append(got, a) }, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := r.Append(context.Background(), Action{Kind: KindWait, Timeout: 1000}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if len(got) != 1 || got[0].Kind != KindWait {
		t.Fatalf("expected onAction to fire once with the wait action, got %+v", got)
	}
}

func TestDeleteActionRemovesArtifactsAndEntry(t *testing.T) {
	r := newTestRecorder(t, true)

	a, err := r.Append(context.Background(), Action{Kind: KindNavigate, URL: "https://example.com"})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	structurePath := filepath.Join(r.DataDir(), a.Structure)

	if err := r.DeleteAction(0); err != nil {
		t.Fatalf("DeleteAction: %v", err)
	}
	if _, err := os.Stat(structurePath); !os.IsNotExist(err) {
		t.Fatalf("expected structure artifact to be removed")
	}
	if len(r.Snapshot().Actions) != 0 {
		t.Fatalf("expected action entry to be removed")
	}
}

func TestDeleteActionOutOfRangeFails(t *testing.T) {
	r := newTestRecorder(t, false)
	if err := r.DeleteAction(0); err == nil {
		t.Fatalf("expected an error for an out-of-range index")
	}
}

func TestDeleteAllRecordsRemovesDirectory(t *testing.T) {
	r := newTestRecorder(t, false)
	if _, err := r.Append(context.Background(), Action{Kind: KindNavigate, URL: "https://example.com"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	dir := r.Dir()
	if err := r.DeleteAllRecords(); err != nil {
		t.Fatalf("DeleteAllRecords: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("expected recording directory to be gone")
	}
}

func TestNewLoadsExistingActionsJSON(t *testing.T) {
	dir := t.TempDir()
	pageDir := filepath.Join(dir, "page3")
	if err := os.MkdirAll(filepath.Join(pageDir, "data"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	seed := Recording{ID: "page3", Name: "seeded", Actions: []Action{{Kind: KindCreate, Timestamp: 1}}}
	data, _ := json.MarshalIndent(seed, "", "  ")
	if err := os.WriteFile(filepath.Join(pageDir, "actions.json"), data, 0o644); err != nil {
		t.Fatalf("seed write: %v", err)
	}

	r, err := New(dir, "page3", "ignored", "", false, fakePage{}, &fakeSnapshotter{}, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := r.Snapshot(); len(got.Actions) != 1 || got.Name != "seeded" {
		t.Fatalf("expected the existing recording to be loaded, got %+v", got)
	}
}
