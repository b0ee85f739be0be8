package api

import (
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"

	"simplepage/internal/errs"
)

// artifactName matches the narrow "<digits>-<suffix>" shape
// required of every artifact filename (e.g. "173-structure.txt",
// "173-list.json", "173-element.html", "173-screenshot.png") plus the
// timestamped console log ("console-<digits>.log").
var artifactName = regexp.MustCompile(`^(\d+-[a-zA-Z0-9.]+|console-\d+\.log)$`)

// resolveArtifact joins dir and filename, rejecting path traversal and
// anything outside the narrow filename shape, then re-verifies the
// resolved path is still contained in dir.
func resolveArtifact(dir, filename string) (string, error) {
	if filename == "" || filepath.Base(filename) != filename || !artifactName.MatchString(filename) {
		return "", errs.New(errs.Forbidden, "rejected artifact filename %q", filename)
	}
	resolved := filepath.Join(dir, filename)
	cleanDir := filepath.Clean(dir) + string(filepath.Separator)
	if !strings.HasPrefix(resolved, cleanDir) {
		return "", errs.New(errs.Forbidden, "artifact path escapes recording directory")
	}
	return resolved, nil
}

func (s *Server) handleRecordingFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	filename := chi.URLParam(r, "filename")

	_, _, dataDir, enabled, err := s.mgr.GetRecording(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !enabled {
		writeError(w, errs.New(errs.RecordingNotFound, "recording is not enabled for page %q", id))
		return
	}
	path, err := resolveArtifact(dataDir, filename)
	if err != nil {
		writeError(w, err)
		return
	}
	http.ServeFile(w, r, path)
}

func (s *Server) handleRecordingData(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	filename := chi.URLParam(r, "filename")

	_, _, dataDir, enabled, err := s.mgr.GetRecording(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !enabled {
		writeError(w, errs.New(errs.RecordingNotFound, "recording is not enabled for page %q", id))
		return
	}
	path, err := resolveArtifact(dataDir, filename)
	if err != nil {
		writeError(w, err)
		return
	}

	switch {
	case strings.HasSuffix(filename, "-list.json"):
		w.Header().Set("Content-Type", "application/json")
	case strings.HasSuffix(filename, "-element.html"):
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	}

	if _, err := os.Stat(path); err != nil {
		writeError(w, errs.Wrap(errs.FilesystemError, err, "stat artifact %s", filename))
		return
	}
	http.ServeFile(w, r, path)
}
