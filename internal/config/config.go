package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"washline/internal/domain"
	"washline/internal/fairness"
	"washline/internal/lifecycle"
	"washline/internal/shift"
)

// Config models washline.yml.
type Config struct {
	SLA domain.SLAConfig `yaml:"sla"`
	// Washrooms maps washroom id to an SLA override for tasks created
	// against that location.
	Washrooms map[string]domain.SLAConfig `yaml:"washrooms"`
	Breaks    shift.Policy                `yaml:"breaks"`
	Dispatch  struct {
		HorizonHours int `yaml:"horizon_hours"`
	} `yaml:"dispatch"`
	Fairness fairness.Thresholds `yaml:"fairness"`
	Server   struct {
		Addr            string `yaml:"addr"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	} `yaml:"server"`
}

// Load reads config from the workspace, falling back to defaults when
// the file does not exist.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "washline.yml")
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.SLA.MaxHeadwayMinutes <= 0 {
		return fmt.Errorf("config.sla.max_headway_minutes must be positive")
	}
	if c.SLA.EmergencyResponseTargetMinutes <= 0 {
		return fmt.Errorf("config.sla.emergency_response_target_minutes must be positive")
	}
	if c.SLA.EmergencyResponseTargetMinutes > c.SLA.MaxHeadwayMinutes {
		return fmt.Errorf("config.sla emergency target exceeds headway")
	}
	for id, sla := range c.Washrooms {
		if id == "" {
			return fmt.Errorf("config.washrooms contains empty washroom id")
		}
		if sla.MaxHeadwayMinutes < 0 || sla.EmergencyResponseTargetMinutes < 0 {
			return fmt.Errorf("config.washrooms.%s has negative SLA minutes", id)
		}
	}
	if c.Breaks.MaxWorkMinutes <= 0 {
		return fmt.Errorf("config.breaks.max_work_minutes_before_break must be positive")
	}
	if c.Breaks.BreakDurationMinutes <= 0 {
		return fmt.Errorf("config.breaks.break_duration_minutes must be positive")
	}
	if c.Dispatch.HorizonHours <= 0 {
		return fmt.Errorf("config.dispatch.horizon_hours must be positive")
	}
	return nil
}

// SLAFor resolves the SLA pair for a washroom: the washroom record's own
// override wins, then the config override by id, then defaults.
func (c *Config) SLAFor(w *domain.Washroom) domain.SLAConfig {
	if w != nil && w.SLA != nil {
		return *w.SLA
	}
	if w != nil {
		if sla, ok := c.Washrooms[w.ID]; ok {
			return sla
		}
	}
	return c.SLA
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	cfg.SLA = domain.SLAConfig{
		MaxHeadwayMinutes:              lifecycle.DefaultMaxHeadwayMinutes,
		EmergencyResponseTargetMinutes: lifecycle.DefaultEmergencyResponseTargetMinutes,
	}
	cfg.Breaks = shift.Policy{
		MaxWorkMinutes:       shift.MaxWorkMinutesBeforeBreak,
		BreakDurationMinutes: shift.BreakDurationMinutes,
	}
	cfg.Dispatch.HorizonHours = 6
	cfg.Server.Addr = ":8080"
	cfg.Server.CacheTTLSeconds = 15
	return &cfg
}
