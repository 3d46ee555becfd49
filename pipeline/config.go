// Package pipeline derives pairwise fundamental matrices and co-visibility masks for a posed
// image dataset.
package pipeline

import (
	"bytes"
	"encoding/json"
	"runtime"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/epipolar/dataset"
	"go.viam.com/epipolar/rimage/transform"
)

// Defaults of the reference LLFF scene.
const (
	DefaultDataDir     = "../NoExtNeRF/data/nerf_llff_data/leaves"
	DefaultFactor      = 8
	DefaultExpName     = "leaves"
	DefaultLLFFHold    = 8
	DefaultBoundFactor = 0.75
)

// Config describes one run of the pipeline.
type Config struct {
	DataDir string `json:"datadir"`
	Factor  int    `json:"factor"`
	// ExpName and LLFFHold are only reported.
	ExpName  string `json:"expname"`
	LLFFHold int    `json:"llffhold"`
	Spherify bool   `json:"spherify"`
	Recenter bool   `json:"recenter"`
	// BoundFactor of zero leaves the scene scale untouched.
	BoundFactor float64 `json:"bd_factor"`
	// Workers bounds how many pairs or triples are processed at once; zero means GOMAXPROCS.
	Workers        int  `json:"workers"`
	SkipValidation bool `json:"skip_validation"`
	// IntrinsicsFile optionally replaces the intrinsics derived from the poses.
	IntrinsicsFile string `json:"intrinsics_file,omitempty"`
}

// DefaultConfig returns the configuration of the reference scene.
func DefaultConfig() *Config {
	return &Config{
		DataDir:     DefaultDataDir,
		Factor:      DefaultFactor,
		ExpName:     DefaultExpName,
		LLFFHold:    DefaultLLFFHold,
		Recenter:    true,
		BoundFactor: DefaultBoundFactor,
	}
}

// ReadConfig reads a JSON config on top of the defaults. Environment variables in the file
// are expanded.
func ReadConfig(path string) (*Config, error) {
	buf, err := envsubst.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	decoder := json.NewDecoder(bytes.NewReader(buf))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to decode config %s", path)
	}
	if err := cfg.Validate(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.DataDir == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "datadir")
	}
	if cfg.Factor < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("factor cannot be negative, got %d", cfg.Factor))
	}
	if cfg.LLFFHold < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("llffhold cannot be negative, got %d", cfg.LLFFHold))
	}
	if cfg.BoundFactor < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("bd_factor cannot be negative, got %v", cfg.BoundFactor))
	}
	if cfg.Workers < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("workers cannot be negative, got %d", cfg.Workers))
	}
	return nil
}

// LoadOptions returns how the scene poses are normalized.
func (cfg *Config) LoadOptions() dataset.LoadOptions {
	return dataset.LoadOptions{
		Factor:      cfg.Factor,
		Recenter:    cfg.Recenter,
		BoundFactor: cfg.BoundFactor,
		Spherify:    cfg.Spherify,
	}
}

func (cfg *Config) workers() int {
	if cfg.Workers > 0 {
		return cfg.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// intrinsics returns the configured intrinsics, falling back to the ones of the scene.
func (cfg *Config) intrinsics(scene *dataset.Scene) (*transform.PinholeCameraIntrinsics, error) {
	if cfg.IntrinsicsFile == "" {
		return scene.Intrinsics()
	}
	intrinsics, err := transform.NewPinholeCameraIntrinsicsFromJSONFile(cfg.IntrinsicsFile)
	if err != nil {
		return nil, err
	}
	if err := intrinsics.CheckValid(); err != nil {
		return nil, errors.Wrapf(err, "intrinsics from %s", cfg.IntrinsicsFile)
	}
	return intrinsics, nil
}
