// Package config collects the control plane's environment-driven startup
// configuration into one struct read once at startup.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config is the top-level process configuration, read once at startup.
type Config struct {
	Port            string
	Headless        bool
	UserDataDir     string
	Screenshot      bool
	RecordingsRoot  string
	CORSOrigin      string
	LogLevel        string
	MemoryLimit     int64
	RecycleInterval time.Duration
	NavTimeout      time.Duration
	CreateTimeout   time.Duration
	QueueDepthLimit int
}

// Load reads configuration from the environment.
func Load() *Config {
	home, _ := os.UserHomeDir()
	c := &Config{
		Port:            env("PORT", "3100"),
		Headless:        env("HEADLESS", "") == "true",
		UserDataDir:     env("USER_DATA_DIR", filepath.Join(home, ".simplepage", "profile")),
		Screenshot:      env("SCREENSHOT", "") == "true",
		RecordingsRoot:  env("TMPDIR", os.TempDir()),
		CORSOrigin:      env("CORS_ORIGIN", "*"),
		LogLevel:        env("LOG_LEVEL", "info"),
		MemoryLimit:     envInt64("MEMORY_LIMIT_BYTES", 1<<30),
		RecycleInterval: envDuration("RECYCLE_INTERVAL", 4*time.Hour),
		NavTimeout:      envDuration("NAV_TIMEOUT_MS", 3*time.Second),
		CreateTimeout:   envDuration("CREATE_TIMEOUT_MS", 10*time.Second),
		QueueDepthLimit: envInt("QUEUE_DEPTH_LIMIT", 64),
	}
	return c
}

// RecordingsDir is the "simplepage" subdirectory under RecordingsRoot that
// actually holds per-page recording folders.
func (c *Config) RecordingsDir() string {
	return filepath.Join(c.RecordingsRoot, "simplepage")
}

func env(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envInt64(key string, def int64) int64 {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}
