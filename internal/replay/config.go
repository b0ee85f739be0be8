package replay

import (
	"encoding/json"
	"os"

	"gopkg.in/yaml.v3"

	"simplepage/internal/errs"
	"simplepage/internal/recorder"
)

// FileConfig describes one standalone replay run loaded from YAML: which
// recorded trace to replay and the same Options POST /api/replay accepts.
type FileConfig struct {
	ActionsFile string  `yaml:"actionsFile"`
	Options     Options `yaml:"options"`
}

// LoadConfig reads a replay run description from a YAML file.
func LoadConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.FilesystemError, err, "read replay config %s", path)
	}
	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errs.Wrap(errs.BadRequest, err, "parse replay config %s", path)
	}
	if cfg.ActionsFile == "" {
		return nil, errs.New(errs.BadRequest, "replay config %s: actionsFile is required", path)
	}
	return &cfg, nil
}

// LoadActions reads a recorded trace from disk — the same actions.json
// shape the session recorder persists.
func LoadActions(path string) ([]recorder.Action, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.FilesystemError, err, "read actions trace %s", path)
	}
	var rec recorder.Recording
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errs.Wrap(errs.BadRequest, err, "parse actions trace %s", path)
	}
	return rec.Actions, nil
}
