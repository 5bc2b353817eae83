package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the optional override file looked up under DATA_PATH.
const FileName = "stamon.yml"

// FileConfig holds the subset of tunables that may be overridden from
// stamon.yml. Zero values mean "keep the env-derived setting".
type FileConfig struct {
	ProbeWorkers    int      `yaml:"probe_workers"`
	ProbeRetries    *int     `yaml:"probe_retries"`
	ProbeGrace      Duration `yaml:"probe_grace"`
	QueueLease      Duration `yaml:"queue_lease"`
	QueueBacklogMax int      `yaml:"queue_backlog_max"`
	BusBuffer       int      `yaml:"bus_buffer"`
}

// ApplyFile loads stamon.yml from dataPath, if present, and merges its
// non-zero fields into cfg. A missing file is not an error.
func ApplyFile(cfg *EnvConfig, dataPath string) error {
	raw, err := os.ReadFile(filepath.Join(dataPath, FileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", FileName, err)
	}

	var fc FileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse %s: %w", FileName, err)
	}

	if fc.ProbeWorkers > 0 {
		cfg.ProbeWorkers = fc.ProbeWorkers
	}
	if fc.ProbeRetries != nil && *fc.ProbeRetries >= 0 {
		cfg.ProbeRetries = *fc.ProbeRetries
	}
	if fc.ProbeGrace > 0 {
		cfg.ProbeGrace = fc.ProbeGrace.Std()
	}
	if fc.QueueLease > 0 {
		cfg.QueueLease = fc.QueueLease.Std()
	}
	if fc.QueueBacklogMax > 0 {
		cfg.QueueBacklogMax = fc.QueueBacklogMax
	}
	if fc.BusBuffer > 0 {
		cfg.BusBuffer = fc.BusBuffer
	}
	return nil
}
