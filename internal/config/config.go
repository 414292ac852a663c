package config

import (
	"fmt"
	"time"

	"chorddht/internal/configloader"
	"chorddht/internal/logger"
)

// RingConfig describes the identifier space and stabilization bounds
// of the simulated ring.
type RingConfig struct {
	// Bits is the number of bits in the identifier space (the "m"
	// parameter). Keys and node IDs live in [0, 2^Bits).
	Bits int `yaml:"bits"`

	// StabilizationPasses bounds how many successive stabilize/fix_finger
	// sweeps Rebalance will run before giving up on quiescence.
	StabilizationPasses int `yaml:"stabilizationPasses"`

	// StabilizationInterval is how often a driving loop (e.g.
	// cmd/simulate) should schedule StabilizeAll between topology
	// changes. The core itself owns no timer for this — see §5/§9's
	// "stabilization in background" design note — it is consumed only
	// by the collaborator that drives the overlay.
	StabilizationInterval time.Duration `yaml:"stabilizationInterval"`
}

// Config is the root configuration document for a simulation run.
type Config struct {
	Logger configloader.LoggerConfig `yaml:"logger"`
	Ring   RingConfig                `yaml:"ring"`
}

// LoadConfig loads the configuration from a YAML file at the given path.
//
// This function performs only syntactic parsing. To validate the
// configuration structure, call cfg.ValidateConfig() after loading.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := configloader.LoadYAML(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnvOverrides applies environment variable overrides to the
// configuration.
//
// Supported overrides:
//
//	LOGGER_ENABLED   -> cfg.Logger.Active
//	LOGGER_LEVEL     -> cfg.Logger.Level
//	LOGGER_ENCODING  -> cfg.Logger.Encoding
//	LOGGER_MODE      -> cfg.Logger.Mode
//	LOGGER_FILE_PATH -> cfg.Logger.File.Path
//	RING_BITS        -> cfg.Ring.Bits
//	RING_STABILIZATION_PASSES -> cfg.Ring.StabilizationPasses
//	RING_STABILIZATION_INTERVAL -> cfg.Ring.StabilizationInterval
func (cfg *Config) ApplyEnvOverrides() {
	configloader.OverrideBool(&cfg.Logger.Active, "LOGGER_ENABLED")
	configloader.OverrideString(&cfg.Logger.Level, "LOGGER_LEVEL")
	configloader.OverrideString(&cfg.Logger.Encoding, "LOGGER_ENCODING")
	configloader.OverrideString(&cfg.Logger.Mode, "LOGGER_MODE")
	configloader.OverrideString(&cfg.Logger.File.Path, "LOGGER_FILE_PATH")
	configloader.OverrideInt(&cfg.Ring.Bits, "RING_BITS")
	configloader.OverrideInt(&cfg.Ring.StabilizationPasses, "RING_STABILIZATION_PASSES")
	configloader.OverrideDuration(&cfg.Ring.StabilizationInterval, "RING_STABILIZATION_INTERVAL")
}

// ValidateConfig performs structural validation of the loaded
// configuration, accumulating every problem found into a single error.
func (cfg *Config) ValidateConfig() error {
	var errs []string

	switch cfg.Logger.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid logger.level: %s", cfg.Logger.Level))
	}
	switch cfg.Logger.Encoding {
	case "console", "json":
	default:
		errs = append(errs, fmt.Sprintf("invalid logger.encoding: %s", cfg.Logger.Encoding))
	}
	switch cfg.Logger.Mode {
	case "stdout":
	case "file":
		if cfg.Logger.File.Path == "" {
			errs = append(errs, "logger.file.path is required when mode=file")
		}
		if cfg.Logger.File.MaxSize < 0 || cfg.Logger.File.MaxBackups < 0 || cfg.Logger.File.MaxAge < 0 {
			errs = append(errs, "logger.file.* values must be non-negative")
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid logger.mode: %s", cfg.Logger.Mode))
	}

	if cfg.Ring.Bits < 1 || cfg.Ring.Bits > 32 {
		errs = append(errs, fmt.Sprintf("ring.bits must be in [1,32], got %d", cfg.Ring.Bits))
	}
	if cfg.Ring.StabilizationPasses <= 0 {
		errs = append(errs, "ring.stabilizationPasses must be > 0")
	}
	if cfg.Ring.StabilizationInterval < 0 {
		errs = append(errs, "ring.stabilizationInterval must be >= 0")
	}

	if len(errs) > 0 {
		msg := "configuration errors:"
		for _, e := range errs {
			msg += "\n  - " + e
		}
		return fmt.Errorf("%s", msg)
	}
	return nil
}

// LogConfig prints the loaded configuration at DEBUG level, useful for
// diagnosing startup issues.
func (cfg *Config) LogConfig(lgr logger.Logger) {
	lgr.Debug("loaded configuration",
		logger.F("logger.active", cfg.Logger.Active),
		logger.F("logger.level", cfg.Logger.Level),
		logger.F("logger.encoding", cfg.Logger.Encoding),
		logger.F("logger.mode", cfg.Logger.Mode),
		logger.F("logger.file.path", cfg.Logger.File.Path),
		logger.F("logger.file.maxSizeMB", cfg.Logger.File.MaxSize),
		logger.F("logger.file.maxBackups", cfg.Logger.File.MaxBackups),
		logger.F("logger.file.maxAgeDays", cfg.Logger.File.MaxAge),
		logger.F("logger.file.compress", cfg.Logger.File.Compress),

		logger.F("ring.bits", cfg.Ring.Bits),
		logger.F("ring.stabilizationPasses", cfg.Ring.StabilizationPasses),
		logger.F("ring.stabilizationInterval", cfg.Ring.StabilizationInterval.String()),
	)
}
