package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "protobridge.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Target != "talos" {
		t.Fatalf("default target = %q", cfg.Target)
	}
	if len(cfg.Listeners) != 1 || cfg.Listeners[0].Kind != "tcp" {
		t.Fatalf("default listeners = %+v", cfg.Listeners)
	}
	if cfg.Metrics.Enable {
		t.Fatalf("metrics enabled by default")
	}
	if len(cfg.Topics) == 0 {
		t.Fatalf("no topics enabled by default")
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
target: puddles
log:
  level: debug
  format: json
listeners:
  - kind: tcp
    address: ":6000"
  - kind: mem
    address: local
topics:
  - kill_switch
params:
  default_ttl_ms: 5000
  max_bytes: 1048576
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Target != "puddles" || cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Fatalf("loaded config = %+v", cfg)
	}
	if len(cfg.Listeners) != 2 || cfg.Listeners[1].Kind != "mem" || cfg.Listeners[1].Address != "local" {
		t.Fatalf("listeners = %+v", cfg.Listeners)
	}
	if len(cfg.Topics) != 1 || cfg.Topics[0] != "kill_switch" {
		t.Fatalf("topics = %v", cfg.Topics)
	}
	if cfg.Params.DefaultTTLMS != 5000 || cfg.Params.MaxBytes != 1<<20 {
		t.Fatalf("params = %+v", cfg.Params)
	}
	// Untouched keys keep their defaults.
	if cfg.AppName != "protobridge" {
		t.Fatalf("app_name = %q", cfg.AppName)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("PROTOBRIDGE_LOG_LEVEL", "error")
	t.Setenv("PROTOBRIDGE_TARGET", "puddles")
	path := writeConfig(t, "target: talos\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Level != "error" {
		t.Fatalf("env log level not applied: %q", cfg.Log.Level)
	}
	if cfg.Target != "puddles" {
		t.Fatalf("env target not applied: %q", cfg.Target)
	}
}

func TestValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"bad log level", "log:\n  level: verbose\n"},
		{"empty target", "target: \"  \"\n"},
		{"bad listener kind", "listeners:\n  - kind: udp\n    address: \":1\"\n"},
		{"empty listener address", "listeners:\n  - kind: tcp\n    address: \"\"\n"},
		{"metrics without addr", "metrics:\n  enable: true\n  addr: \"\"\n"},
	}
	for _, tc := range cases {
		if _, err := Load(writeConfig(t, tc.body)); err == nil {
			t.Fatalf("%s: accepted", tc.name)
		}
	}
}

func TestMissingExplicitFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("explicit missing config accepted")
	}
}
