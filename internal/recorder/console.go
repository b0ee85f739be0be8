package recorder

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"simplepage/internal/errs"
)

// ConsoleLog is an append-mode sink for one page's console output, opened
// at page init and closed when the page closes.
// Console text is run through bluemonday's strict policy before it
// touches the log file, since console arguments routinely echo raw page
// HTML and this file is served back to a viewer UI as plain text.
type ConsoleLog struct {
	mu     sync.Mutex
	f      *os.File
	policy *bluemonday.Policy
}

// NewConsoleLog opens console-<ts>.log in append mode under dataDir.
func NewConsoleLog(dataDir string) (*ConsoleLog, string, error) {
	name := fmt.Sprintf("console-%d.log", time.Now().UnixNano())
	path := filepath.Join(dataDir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, "", errs.Wrap(errs.FilesystemError, err, "open console log %s", path)
	}
	return &ConsoleLog{f: f, policy: bluemonday.StrictPolicy()}, name, nil
}

// Log appends one console line with an ISO timestamp and level tag.
func (c *ConsoleLog) Log(level, text, stack string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	line := fmt.Sprintf("[%s] [%s] %s\n", time.Now().UTC().Format(time.RFC3339Nano), level, c.policy.Sanitize(text))
	_, _ = c.f.WriteString(line)
	if stack != "" && (level == "error" || level == "warning" || level == "warn") {
		_, _ = c.f.WriteString(c.policy.Sanitize(stack) + "\n")
	}
}

// PageError appends a [PAGE-ERROR] entry for an uncaught exception event.
func (c *ConsoleLog) PageError(message, stack string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	line := fmt.Sprintf("[%s] [PAGE-ERROR] %s\n", time.Now().UTC().Format(time.RFC3339Nano), c.policy.Sanitize(message))
	_, _ = c.f.WriteString(line)
	if stack != "" {
		_, _ = c.f.WriteString(c.policy.Sanitize(stack) + "\n")
	}
}

func (c *ConsoleLog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.f.Close()
}
