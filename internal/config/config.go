// Package config loads server configuration.
//
// Precedence, lowest first: built-in defaults, the YAML file at $AGI_CONFIG
// (or <data_dir>/config.yaml when it exists), then AGI_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/HendryAvila/agi-mcp/internal/coordinator"
	"github.com/HendryAvila/agi-mcp/internal/events"
	"github.com/HendryAvila/agi-mcp/internal/telemetry"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "AGI"

// FileName is the config file looked up in the data directory.
const FileName = "config.yaml"

// EventsConfig configures the optional call event bus.
type EventsConfig struct {
	NatsURL string `yaml:"nats_url" split_words:"true"`
	Subject string `yaml:"subject" split_words:"true"`
}

// Config holds the server configuration.
type Config struct {
	DataDir      string `yaml:"data_dir" split_words:"true"`
	WorkspaceDir string `yaml:"workspace_dir" split_words:"true"`
	LogLevel     string `yaml:"log_level" split_words:"true"`
	LogFormat    string `yaml:"log_format" split_words:"true"`

	// Agents is the coordinator roster. Empty means the built-in roster.
	Agents      []coordinator.Agent `yaml:"agents" ignored:"true"`
	MaxParallel int                 `yaml:"max_parallel" split_words:"true"`

	DefaultTargetTokens  int    `yaml:"default_target_tokens" split_words:"true"`
	OutcomeRetentionDays int    `yaml:"outcome_retention_days" split_words:"true"`
	MaintenanceSchedule  string `yaml:"maintenance_schedule" split_words:"true"`
	UpdateCheck          bool   `yaml:"update_check" split_words:"true"`

	Telemetry telemetry.Config `yaml:"telemetry"`
	Events    EventsConfig     `yaml:"events"`
}

// Default returns the built-in configuration.
func Default() *Config {
	home, _ := os.UserHomeDir()
	cwd, _ := os.Getwd()
	return &Config{
		DataDir:              filepath.Join(home, ".agi-mcp"),
		WorkspaceDir:         cwd,
		LogLevel:             "info",
		LogFormat:            "json",
		MaxParallel:          4,
		DefaultTargetTokens:  4000,
		OutcomeRetentionDays: 90,
		MaintenanceSchedule:  "@daily",
		UpdateCheck:          true,
		Telemetry: telemetry.Config{
			Exporter:    "otlp-http",
			ServiceName: "agi-mcp",
			SampleRate:  1.0,
		},
		Events: EventsConfig{Subject: events.DefaultSubject},
	}
}

// Load builds the configuration from defaults, the config file and the
// environment, then validates it.
func Load() (*Config, error) {
	cfg := Default()

	path, explicit := os.LookupEnv(EnvPrefix + "_CONFIG")
	if !explicit || path == "" {
		dataDir := cfg.DataDir
		if v := os.Getenv(EnvPrefix + "_DATA_DIR"); v != "" {
			dataDir = v
		}
		path = filepath.Join(dataDir, FileName)
		explicit = false
	}
	if err := cfg.loadFile(path, explicit); err != nil {
		return nil, err
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile overlays the YAML file at path. A missing file is only an error
// when the path was given explicitly.
func (c *Config) loadFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

var (
	logLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	logFormats = map[string]bool{"json": true, "console": true}
)

// Validate checks value ranges. All problems are reported together.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.DataDir) == "" {
		errs = append(errs, errors.New("data_dir is empty"))
	}
	if !logLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel))
	}
	if !logFormats[strings.ToLower(c.LogFormat)] {
		errs = append(errs, fmt.Errorf("log_format %q is not one of json, console", c.LogFormat))
	}
	if c.MaxParallel <= 0 {
		errs = append(errs, fmt.Errorf("max_parallel must be positive, got %d", c.MaxParallel))
	}
	if c.DefaultTargetTokens <= 0 {
		errs = append(errs, fmt.Errorf("default_target_tokens must be positive, got %d", c.DefaultTargetTokens))
	}
	if c.OutcomeRetentionDays < 0 {
		errs = append(errs, fmt.Errorf("outcome_retention_days must not be negative, got %d", c.OutcomeRetentionDays))
	}
	if c.MaintenanceSchedule != "" {
		if _, err := cron.ParseStandard(c.MaintenanceSchedule); err != nil {
			errs = append(errs, fmt.Errorf("maintenance_schedule %q: %w", c.MaintenanceSchedule, err))
		}
	}
	if r := c.Telemetry.SampleRate; r <= 0 || r > 1 {
		errs = append(errs, fmt.Errorf("telemetry.sample_rate must be in (0, 1], got %g", r))
	}
	for i, a := range c.Agents {
		if strings.TrimSpace(a.Name) == "" {
			errs = append(errs, fmt.Errorf("agents[%d] has no name", i))
		}
	}
	return errors.Join(errs...)
}

// Roster returns the configured agents, or the built-in roster.
func (c *Config) Roster() []coordinator.Agent {
	if len(c.Agents) == 0 {
		return coordinator.DefaultAgents()
	}
	return c.Agents
}
