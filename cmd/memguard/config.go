package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dmitriimaksimovdevelop/memguard/internal/config"
)

// envPrefix namespaces the environment-variable overrides applied on top
// of a loaded config file.
const envPrefix = "MEMGUARD_"

// loadConfig reads path (if non-empty) as YAML into a config.Config,
// applies MEMGUARD_*-prefixed environment variable overrides for the
// handful of settings operators tune most often, then fills in spec
// defaults for anything left unset.
func loadConfig(path string) (*config.Config, error) {
	cfg := &config.Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %q: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides lets an operator override the monitoring interval,
// heap threshold, and adaptive-sampling toggle without editing the config
// file — the three settings most likely to need a quick adjustment in a
// deployed container.
func applyEnvOverrides(cfg *config.Config) {
	if v, ok := lookupEnv("MONITORING_INTERVAL"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Monitoring.Interval = d
		}
	}
	if v, ok := lookupEnv("THRESHOLD_HEAP"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Threshold.Heap = f
		}
	}
	if v, ok := lookupEnv("PERFORMANCE_ADAPTIVE"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Performance.Adaptive = b
		}
	}
}

func lookupEnv(suffix string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + suffix)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}
