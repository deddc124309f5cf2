/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package cmn

import (
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/aistorehq/georepd/cmn/cos"
)

// Config is the daemon's configuration surface, modeled as an explicit
// record rather than process-global state so multiple Crawlers (e.g. in
// tests) can run with independent settings.
type Config struct {
	// Turns: if >0, the worker exits after that many counted turns. A
	// turn is counted when master and slave root xtime already match and
	// some earlier turn since the last count made changes; repeated clean
	// turns with no change in between count once.
	Turns int `json:"turns"`
	// Timeout is the keep-alive cadence; zero disables keep-alives.
	Timeout time.Duration `json:"timeout"`
	// SyncJobs is the Syncer pool size, clamped to >= 1 by syncer.New.
	SyncJobs int `json:"sync_jobs"`
	// VolumeID optionally seeds VolinfoState with a preset master uuid.
	VolumeID string `json:"volume_id"`
	// StateFile, if set, is where the supervisor publishes its state.
	StateFile string `json:"state_file"`

	// Name is the volume name. It is not part of the xtime attribute
	// name, which core.XtimeAttrName builds from the uuid alone.
	Name string `json:"name"`

	// LogDir and LogLevel are ambient logging knobs; georepd reads them
	// but leaves glog's own flag-based configuration to the caller.
	LogDir   string `json:"log_dir"`
	LogLevel string `json:"log_level"`

	// persistPath is where SetVolumeID writes back a selected uuid, so
	// it survives a supervisor restart. Empty disables persistence.
	persistPath string
}

func DefaultConfig() *Config {
	return &Config{
		Timeout:  0,
		SyncJobs: 3,
	}
}

// LoadConfig reads a JSON-encoded Config from path, applying
// DefaultConfig's values for anything the file omits that would
// otherwise be a zero value problem (SyncJobs).
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "load config %s", path)
	}
	if err := jsoniter.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	if cfg.SyncJobs < 1 {
		cfg.SyncJobs = 1
	}
	cfg.persistPath = path
	return cfg, nil
}

// SetVolumeID persists a newly selected primary's uuid: the crawler
// calls it when the state machine records a state change that picks a
// new foreign master, so the choice survives a restart.
func (c *Config) SetVolumeID(uuid string) error {
	c.VolumeID = uuid
	if c.persistPath == "" {
		return nil
	}
	data, err := jsoniter.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}
	return cos.WriteFileAtomic(c.persistPath, data, 0o644)
}
