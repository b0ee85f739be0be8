package recorder

import (
	"encoding/json"
	"os"
	"path/filepath"

	"simplepage/internal/errs"
)

// Discover scans root (the "<recordings-root>/simplepage" directory) for
// subfolders containing actions.json and summarizes each. Unreadable or
// malformed entries are skipped rather than failing the whole scan.
func Discover(root string) ([]Summary, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.Wrap(errs.FilesystemError, err, "read recordings root %s", root)
	}

	var out []Summary
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		rec, err := ReadRecording(dir)
		if err != nil {
			continue
		}
		info, statErr := e.Info()
		createdAt := int64(0)
		if len(rec.Actions) > 0 {
			createdAt = rec.Actions[0].Timestamp
		} else if statErr == nil {
			createdAt = info.ModTime().UnixMilli()
		}
		var lastKind Kind
		if n := len(rec.Actions); n > 0 {
			lastKind = rec.Actions[n-1].Kind
		}
		out = append(out, Summary{
			ID:             rec.ID,
			Name:           rec.Name,
			Description:    rec.Description,
			ActionsCount:   len(rec.Actions),
			LastActionKind: lastKind,
			CreatedAt:      createdAt,
		})
	}
	return out, nil
}

// ReadRecording loads actions.json directly from dir, for recording reads
// against pages that are no longer live.
func ReadRecording(dir string) (Recording, error) {
	data, err := os.ReadFile(filepath.Join(dir, "actions.json"))
	if err != nil {
		return Recording{}, errs.Wrap(errs.RecordingNotFound, err, "read %s", dir)
	}
	var rec Recording
	if err := json.Unmarshal(data, &rec); err != nil {
		return Recording{}, errs.Wrap(errs.FilesystemError, err, "parse actions.json in %s", dir)
	}
	return rec, nil
}
