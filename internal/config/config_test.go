package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "HEADLESS", "SCREENSHOT", "TMPDIR", "CORS_ORIGIN", "LOG_LEVEL", "NAV_TIMEOUT_MS", "CREATE_TIMEOUT_MS"} {
		t.Setenv(key, "")
	}

	c := Load()
	if c.Port != "3100" {
		t.Fatalf("default port: got %q", c.Port)
	}
	if c.Headless || c.Screenshot {
		t.Fatalf("headless and screenshot must default to off")
	}
	if c.NavTimeout != 3*time.Second || c.CreateTimeout != 10*time.Second {
		t.Fatalf("unexpected timeout defaults: nav=%v create=%v", c.NavTimeout, c.CreateTimeout)
	}
	if c.CORSOrigin != "*" {
		t.Fatalf("default CORS origin: got %q", c.CORSOrigin)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("HEADLESS", "true")
	t.Setenv("SCREENSHOT", "true")
	t.Setenv("TMPDIR", "/data/recordings")
	t.Setenv("NAV_TIMEOUT_MS", "5000")

	c := Load()
	if c.Port != "8081" || !c.Headless || !c.Screenshot {
		t.Fatalf("env overrides not applied: %+v", c)
	}
	if c.NavTimeout != 5*time.Second {
		t.Fatalf("NAV_TIMEOUT_MS: got %v", c.NavTimeout)
	}
	if got := c.RecordingsDir(); got != filepath.Join("/data/recordings", "simplepage") {
		t.Fatalf("RecordingsDir: got %q", got)
	}
}

func TestEnvIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("QUEUE_DEPTH_LIMIT", "not-a-number")
	c := Load()
	if c.QueueDepthLimit != 64 {
		t.Fatalf("expected default queue depth on parse failure, got %d", c.QueueDepthLimit)
	}
}
