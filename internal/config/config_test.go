package config

import (
	"os"
	"path/filepath"
	"testing"

	"washline/internal/domain"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.SLA.MaxHeadwayMinutes != 45 || cfg.SLA.EmergencyResponseTargetMinutes != 10 {
		t.Fatalf("default SLA = %+v", cfg.SLA)
	}
	if cfg.Breaks.MaxWorkMinutes != 240 || cfg.Breaks.BreakDurationMinutes != 15 {
		t.Fatalf("default breaks = %+v", cfg.Breaks)
	}
	if cfg.Dispatch.HorizonHours != 6 {
		t.Fatalf("default horizon = %d", cfg.Dispatch.HorizonHours)
	}
}

func TestLoadMissingFileFallsBackToDefault(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SLA.MaxHeadwayMinutes != 45 {
		t.Fatalf("expected defaults, got %+v", cfg.SLA)
	}
}

func TestFromYAMLOverlaysDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte(`
sla:
  max_headway_minutes: 30
washrooms:
  t1-arrivals:
    max_headway_minutes: 15
    emergency_response_target_minutes: 5
breaks:
  max_work_minutes_before_break: 180
`))
	if err != nil {
		t.Fatalf("from yaml: %v", err)
	}
	if cfg.SLA.MaxHeadwayMinutes != 30 {
		t.Fatalf("headway = %d", cfg.SLA.MaxHeadwayMinutes)
	}
	// Untouched keys keep their defaults.
	if cfg.SLA.EmergencyResponseTargetMinutes != 10 {
		t.Fatalf("emergency target = %d", cfg.SLA.EmergencyResponseTargetMinutes)
	}
	if cfg.Breaks.BreakDurationMinutes != 15 {
		t.Fatalf("break duration = %d", cfg.Breaks.BreakDurationMinutes)
	}
	if cfg.Washrooms["t1-arrivals"].MaxHeadwayMinutes != 15 {
		t.Fatalf("washroom override = %+v", cfg.Washrooms["t1-arrivals"])
	}
}

func TestFromYAMLRejectsInvalid(t *testing.T) {
	if _, err := FromYAML([]byte("sla:\n  max_headway_minutes: -1\n")); err == nil {
		t.Fatalf("expected validation error")
	}
	if _, err := FromYAML([]byte("sla: [not a map]\n")); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestValidateEmergencyExceedsHeadway(t *testing.T) {
	cfg := Default()
	cfg.SLA.EmergencyResponseTargetMinutes = 60
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error when emergency target exceeds headway")
	}
}

func TestLoadFromWorkspaceFile(t *testing.T) {
	dir := t.TempDir()
	data := []byte("dispatch:\n  horizon_hours: 12\n")
	if err := os.WriteFile(filepath.Join(dir, "washline.yml"), data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Dispatch.HorizonHours != 12 {
		t.Fatalf("horizon = %d", cfg.Dispatch.HorizonHours)
	}
}

func TestSLAForPrecedence(t *testing.T) {
	cfg := Default()
	cfg.Washrooms = map[string]domain.SLAConfig{
		"w1": {MaxHeadwayMinutes: 20, EmergencyResponseTargetMinutes: 5},
	}

	// Record-level SLA wins over the config override.
	record := &domain.Washroom{ID: "w1", SLA: &domain.SLAConfig{MaxHeadwayMinutes: 25, EmergencyResponseTargetMinutes: 8}}
	if got := cfg.SLAFor(record); got.MaxHeadwayMinutes != 25 {
		t.Fatalf("record SLA not preferred: %+v", got)
	}

	// Config override by id comes next.
	if got := cfg.SLAFor(&domain.Washroom{ID: "w1"}); got.MaxHeadwayMinutes != 20 {
		t.Fatalf("config override not applied: %+v", got)
	}

	// Unknown washrooms fall back to the defaults.
	if got := cfg.SLAFor(&domain.Washroom{ID: "w9"}); got.MaxHeadwayMinutes != 45 {
		t.Fatalf("defaults not applied: %+v", got)
	}
}
