package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg == nil || len(cfg.Tables) != 0 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadTables(t *testing.T) {
	path := writeFile(t, "mask.yaml", `
include_tables: ["users", "notes*"]
exclude_tables: ["audit"]
tables:
  users:
    columns:
      full_name:
        type: encode
      legacy:
        type: shift
        amount: -3
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.IncludeTables) != 2 || cfg.ExcludeTables[0] != "audit" {
		t.Fatalf("unexpected table filters: %+v", cfg)
	}
	cols := cfg.Tables["users"].Columns
	if cols["full_name"].Type != "encode" {
		t.Fatalf("full_name type = %q", cols["full_name"].Type)
	}
	if cols["legacy"].Amount == nil || *cols["legacy"].Amount != -3 {
		t.Fatalf("legacy amount = %v", cols["legacy"].Amount)
	}
}

func TestLoadRejectsMissingType(t *testing.T) {
	path := writeFile(t, "mask.yaml", `
tables:
  users:
    columns:
      email: {}
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for column without type")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadServerDefaults(t *testing.T) {
	cfg, err := LoadServer("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != ":8000" || cfg.ReadTimeout != 10*time.Second || cfg.MaxBodyBytes != 1<<20 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if len(cfg.CORS.AllowOrigins) != 1 || cfg.CORS.AllowOrigins[0] != "*" {
		t.Fatalf("unexpected cors defaults: %+v", cfg.CORS)
	}
	if !cfg.Metrics.On() || cfg.Metrics.Path != "/metrics" || cfg.Log.Level != "info" {
		t.Fatalf("unexpected metrics/log defaults: %+v %+v", cfg.Metrics, cfg.Log)
	}
}

func TestLoadServerMissingFileTolerated(t *testing.T) {
	if _, err := LoadServer(filepath.Join(t.TempDir(), "absent.yaml")); err != nil {
		t.Fatalf("missing server config should fall back to defaults: %v", err)
	}
}

func TestLoadServerFileAndEnv(t *testing.T) {
	path := writeFile(t, "server.yaml", `
listen: "127.0.0.1:9000"
read_timeout: 3s
metrics:
  enabled: true
log:
  level: debug
`)
	t.Setenv("CIFRADO_LISTEN", "127.0.0.1:9100")
	t.Setenv("CIFRADO_METRICS__ENABLED", "false")
	t.Setenv("CIFRADO_LOG__JSON", "true")

	cfg, err := LoadServer(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != "127.0.0.1:9100" {
		t.Fatalf("env should override listen, got %q", cfg.Listen)
	}
	if cfg.ReadTimeout != 3*time.Second {
		t.Fatalf("read_timeout = %v", cfg.ReadTimeout)
	}
	if cfg.Metrics.On() {
		t.Fatal("metrics should be disabled by env")
	}
	if cfg.Log.Level != "debug" || !cfg.Log.JSON {
		t.Fatalf("unexpected log config: %+v", cfg.Log)
	}
}

func TestLoadServerInvalidListen(t *testing.T) {
	t.Setenv("CIFRADO_LISTEN", "not-an-address")
	if _, err := LoadServer(""); err == nil {
		t.Fatal("expected error for invalid listen address")
	}
}

func TestValidateMetricsPath(t *testing.T) {
	cases := []struct {
		path string
		ok   bool
	}{
		{"/metrics", true},
		{"/internal/metrics", true},
		{"metrics", false},
		{"/", false},
		{"/encode", false},
		{"/decode", false},
		{"/process", false},
		{"/healthz", false},
		{"/m/{x", false},
		{"/m/{x}", false},
		{"/m etrics", false},
	}
	for _, tc := range cases {
		cfg := Server{}
		ApplyServerDefaults(&cfg)
		cfg.Metrics.Path = tc.path
		err := cfg.Validate()
		if tc.ok && err != nil {
			t.Fatalf("%q: unexpected error %v", tc.path, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%q: expected error", tc.path)
		}
	}
}

func TestLoadServerRejectsReservedMetricsPath(t *testing.T) {
	t.Setenv("CIFRADO_METRICS__PATH", "/encode")
	if _, err := LoadServer(""); err == nil {
		t.Fatal("expected error for metrics path on an API route")
	}
}
