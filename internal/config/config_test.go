package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Transport.ListenAddr != ":65433" {
		t.Errorf("listen addr = %q", cfg.Transport.ListenAddr)
	}
	if cfg.Led.Channels != 8 {
		t.Errorf("default channels = %d, want 8", cfg.Led.Channels)
	}
	if cfg.Effect.SteadyIntensity != 80 {
		t.Errorf("steady intensity = %d", cfg.Effect.SteadyIntensity)
	}
	if cfg.Agent.PowerMode != "noop" {
		t.Errorf("power mode = %q", cfg.Agent.PowerMode)
	}
}

func TestLoadAppliesFileValues(t *testing.T) {
	path := writeConfig(t, `{
		"transport": {"listen_addr": " :7000 ", "controller_addr": "sigcntrl.local:7000"},
		"led": {"leds": ["sig0", "sig1", "sig2"], "sysfs_dir": "/sys/class/leds"},
		"effect": {"steady_intensity": 60, "startup_ramp": "2s"},
		"agent": {"power_mode": "systemd"}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Transport.ListenAddr != ":7000" {
		t.Errorf("listen addr not trimmed: %q", cfg.Transport.ListenAddr)
	}
	if cfg.Led.Channels != 3 {
		t.Errorf("channels = %d, want derived 3", cfg.Led.Channels)
	}
	if cfg.Effect.SteadyIntensity != 60 || cfg.Effect.StartupRamp != "2s" {
		t.Errorf("effect config = %+v", cfg.Effect)
	}
	// Untouched fields still get defaults.
	if cfg.Effect.ShutdownRamp != "1500ms" {
		t.Errorf("shutdown ramp default = %q", cfg.Effect.ShutdownRamp)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad duration", `{"agent": {"tick_interval": "soon"}}`},
		{"steady over scale", `{"effect": {"steady_intensity": 150}}`},
		{"inverted flicker range", `{"effect": {"default_flicker_min": 90, "default_flicker_max": 10}}`},
		{"channel mismatch", `{"led": {"channels": 4, "leds": ["sig0"]}}`},
		{"broken json", `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("Load accepted an invalid config")
			}
		})
	}
}
