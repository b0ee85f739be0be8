// Package recorder owns one page's on-disk recording directory: it
// appends actions with their pre-action accessibility snapshot, persists
// actions.json as a whole on every append, and serves action and
// recording deletion. The whole file is rewritten per append since
// actions.json must always reflect the full in-order history.
package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"simplepage/internal/axview"
	"simplepage/internal/driver"
	"simplepage/internal/errs"
)

// Snapshotter is the accessibility-view builder surface the recorder
// needs for the pre-action snapshot trio.
type Snapshotter interface {
	Build(ctx context.Context, scope *axview.ScopeRoot) (*axview.Result, error)
}

// Recorder owns <recordingsRoot>/<pageId>/ and its data/ subdirectory.
type Recorder struct {
	mu sync.Mutex

	dir     string
	dataDir string

	enableScreenshot bool
	page             driver.PageSurface
	axBuilder        Snapshotter
	onAction         func(Action)
	log              *slog.Logger

	recording Recording
}

// New opens (or creates) the recording directory for pageId, seeding
// actions.json if it doesn't already exist, or loading it if it does —
// the "resume an existing recording" path a replay or restart needs.
func New(recordingsRoot, pageID, name, description string, enableScreenshot bool, page driver.PageSurface, axBuilder Snapshotter, onAction func(Action), log *slog.Logger) (*Recorder, error) {
	if log == nil {
		log = slog.Default()
	}
	dir := filepath.Join(recordingsRoot, pageID)
	dataDir := filepath.Join(dir, "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, errs.Wrap(errs.FilesystemError, err, "create recording directory %s", dataDir)
	}

	r := &Recorder{
		dir:              dir,
		dataDir:          dataDir,
		enableScreenshot: enableScreenshot,
		page:             page,
		axBuilder:        axBuilder,
		onAction:         onAction,
		log:              log,
	}

	actionsPath := r.actionsPath()
	if data, err := os.ReadFile(actionsPath); err == nil {
		if err := json.Unmarshal(data, &r.recording); err != nil {
			return nil, errs.Wrap(errs.FilesystemError, err, "parse existing %s", actionsPath)
		}
	} else {
		r.recording = Recording{ID: pageID, Name: name, Description: description, Actions: []Action{}}
		if err := r.persistLocked(); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Recorder) actionsPath() string { return filepath.Join(r.dir, "actions.json") }

// Append builds the action record, captures the pre-action snapshot
// (unless the kind is close), pushes it into the in-memory log, rewrites
// actions.json, and invokes the onAction callback.
func (r *Recorder) Append(ctx context.Context, a Action) (Action, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a.Timestamp = time.Now().UnixMilli()
	// Two appends inside one millisecond would otherwise share artifact
	// filenames.
	if n := len(r.recording.Actions); n > 0 && a.Timestamp <= r.recording.Actions[n-1].Timestamp {
		a.Timestamp = r.recording.Actions[n-1].Timestamp + 1
	}

	if a.Kind != KindClose {
		if err := r.captureSnapshotLocked(ctx, &a); err != nil {
			// An action is only recorded once its pre-snapshot exists.
			return a, err
		}
	}

	r.recording.Actions = append(r.recording.Actions, a)
	if err := r.persistLocked(); err != nil {
		return a, err
	}

	if r.onAction != nil {
		r.onAction(a)
	}
	return a, nil
}

func (r *Recorder) captureSnapshotLocked(ctx context.Context, a *Action) error {
	// Artifact names share the action's persisted timestamp, so
	// data/<timestamp>-structure.txt is derivable from the entry itself.
	ts := a.Timestamp

	res, err := r.axBuilder.Build(ctx, nil)
	if err != nil {
		return errs.Wrap(errs.AxExtractionFailed, err, "build accessibility snapshot")
	}

	structureName := fmt.Sprintf("%d-structure.txt", ts)
	if err := r.writeData(structureName, []byte(res.Simplified)); err != nil {
		return err
	}
	a.Structure = structureName

	xpathJSON, err := json.Marshal(res.XPathMap)
	if err != nil {
		return errs.Wrap(errs.Internal, err, "marshal xpath map")
	}
	xpathName := fmt.Sprintf("%d-xpath.json", ts)
	if err := r.writeData(xpathName, xpathJSON); err != nil {
		return err
	}
	a.XPathFile = xpathName

	if r.enableScreenshot {
		png, err := r.page.Screenshot(ctx, driver.ScreenshotOpts{FullPage: false})
		if err != nil {
			r.log.Warn("snapshot screenshot failed, continuing without it", "error", err)
		} else {
			shotName := fmt.Sprintf("%d-screenshot.png", ts)
			if err := r.writeData(shotName, png); err == nil {
				a.Screenshot = shotName
			}
		}
	}
	return nil
}

// WriteArtifact persists an extra artifact file under data/ outside the
// Append snapshot flow — used by the list/element HTML extraction
// actions, whose payload is produced by the caller rather than by the
// accessibility-view builder.
func (r *Recorder) WriteArtifact(name string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writeData(name, data)
}

func (r *Recorder) writeData(name string, data []byte) error {
	path := filepath.Join(r.dataDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errs.Wrap(errs.FilesystemError, err, "write %s", path)
	}
	return nil
}

func (r *Recorder) persistLocked() error {
	data, err := json.MarshalIndent(r.recording, "", "  ")
	if err != nil {
		return errs.Wrap(errs.Internal, err, "marshal actions.json")
	}
	if err := os.WriteFile(r.actionsPath(), data, 0o644); err != nil {
		return errs.Wrap(errs.FilesystemError, err, "write %s", r.actionsPath())
	}
	return nil
}

// DeleteAction removes one entry and every artifact file it references
// that actually exists. Missing files are not an error; an out-of-range
// index is.
func (r *Recorder) DeleteAction(idx int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if idx < 0 || idx >= len(r.recording.Actions) {
		return errs.New(errs.BadRequest, "action index %d out of range", idx)
	}
	a := r.recording.Actions[idx]
	for _, name := range []string{a.Screenshot, a.Structure, a.XPathFile, a.ListFile, a.ElementFile} {
		if name == "" {
			continue
		}
		_ = os.Remove(filepath.Join(r.dataDir, name)) // best-effort, missing file is fine.
	}

	r.recording.Actions = append(r.recording.Actions[:idx], r.recording.Actions[idx+1:]...)
	return r.persistLocked()
}

// DeleteAllRecords removes the recording directory entirely and detaches
// in-memory state.
func (r *Recorder) DeleteAllRecords() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.RemoveAll(r.dir); err != nil {
		return errs.Wrap(errs.FilesystemError, err, "remove recording directory %s", r.dir)
	}
	r.recording.Actions = nil
	return nil
}

// Snapshot returns a copy of the current recording state, for recording
// reads.
func (r *Recorder) Snapshot() Recording {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := r.recording
	cp.Actions = append([]Action(nil), r.recording.Actions...)
	return cp
}

func (r *Recorder) Dir() string     { return r.dir }
func (r *Recorder) DataDir() string { return r.dataDir }
