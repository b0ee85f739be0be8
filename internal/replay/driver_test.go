package replay

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"simplepage/internal/errs"
	"simplepage/internal/recorder"
)

func TestRunRejectsTraceWithoutLeadingCreate(t *testing.T) {
	d := New(nil, nil)

	_, err := d.Run(context.Background(), []recorder.Action{{Kind: recorder.KindNavigate}}, Options{})
	if errs.KindOf(err) != errs.BadRequest {
		t.Fatalf("expected BadRequest for a trace not starting with create, got %v", err)
	}
	_, err = d.Run(context.Background(), nil, Options{})
	if errs.KindOf(err) != errs.BadRequest {
		t.Fatalf("expected BadRequest for an empty trace, got %v", err)
	}
}

func TestParseLastSegment(t *testing.T) {
	cases := []struct {
		xpath   string
		tag     string
		index   int
		ok      bool
	}{
		{"/html[1]/body[1]/div[2]/button[3]", "button", 3, true},
		{"/html[1]/body[1]/ul[1]", "ul", 1, true},
		{"/div", "div", 1, true},
		{"", "", 0, false},
	}
	for _, c := range cases {
		tag, idx, ok := parseLastSegment(c.xpath)
		if ok != c.ok || tag != c.tag || idx != c.index {
			t.Fatalf("parseLastSegment(%q) = (%q, %d, %v), want (%q, %d, %v)",
				c.xpath, tag, idx, ok, c.tag, c.index, c.ok)
		}
	}
}

func TestIsResolutionFailureClassification(t *testing.T) {
	if !isResolutionFailure(errs.New(errs.ElementNotFound, "gone")) {
		t.Fatalf("ElementNotFound should trigger the selector fallback")
	}
	if isResolutionFailure(errs.New(errs.Timeout, "slow")) {
		t.Fatalf("Timeout must not trigger the selector fallback")
	}
}

func TestLoadConfigAndActionsRoundTrip(t *testing.T) {
	dir := t.TempDir()

	trace := recorder.Recording{
		ID:   "p1",
		Name: "trace",
		Actions: []recorder.Action{
			{Kind: recorder.KindCreate, Name: "trace", URL: "about:blank"},
			{Kind: recorder.KindNavigate, URL: "https://example.com"},
		},
	}
	actionsPath := filepath.Join(dir, "actions.json")
	data, err := json.MarshalIndent(trace, "", "  ")
	if err != nil {
		t.Fatalf("marshal trace: %v", err)
	}
	if err := os.WriteFile(actionsPath, data, 0o644); err != nil {
		t.Fatalf("write trace: %v", err)
	}

	cfgPath := filepath.Join(dir, "run.yaml")
	cfgYAML := "actionsFile: " + actionsPath + "\noptions:\n  delayMs: 50\n  continueOnError: true\n"
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(cfgPath)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ActionsFile != actionsPath || cfg.Options.DelayMs != 50 || !cfg.Options.ContinueOnErr {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	actions, err := LoadActions(cfg.ActionsFile)
	if err != nil {
		t.Fatalf("LoadActions: %v", err)
	}
	if len(actions) != 2 || actions[0].Kind != recorder.KindCreate {
		t.Fatalf("unexpected actions: %+v", actions)
	}
}

func TestLoadConfigRequiresActionsFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "run.yaml")
	if err := os.WriteFile(cfgPath, []byte("options:\n  verbose: true\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfig(cfgPath); errs.KindOf(err) != errs.BadRequest {
		t.Fatalf("expected BadRequest for a config without actionsFile, got %v", err)
	}
}
