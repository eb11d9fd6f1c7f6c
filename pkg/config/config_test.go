package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWhenNoFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "INFO" || cfg.Logging.Format != "text" {
		t.Fatalf("logging defaults = %+v", cfg.Logging)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Fatalf("ShutdownTimeout = %v", cfg.ShutdownTimeout)
	}
	if !cfg.API.IsEnabled() {
		t.Fatal("API must default to enabled")
	}
}

func TestLoadParsesByteSizesAndDurations(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := `
logging:
  level: DEBUG
  format: json
  output: stdout
shutdown_timeout: 45s
store:
  path: ` + filepath.Join(dir, "store") + `
restagecls:
  - name: primary
    storage_path: ` + filepath.Join(dir, "restage") + `
    poll_interval: 10s
quotas:
  - quota_type: DST
    scheme: ipn
    node: "5"
    internal_bundles: 10000
    internal_bytes: 1Gi
    external_bytes: 500M
    restage_link_name: primary
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "DEBUG" {
		t.Fatalf("Level = %q", cfg.Logging.Level)
	}
	if cfg.ShutdownTimeout != 45*time.Second {
		t.Fatalf("ShutdownTimeout = %v", cfg.ShutdownTimeout)
	}
	if len(cfg.RestageCLs) != 1 || cfg.RestageCLs[0].PollInterval != 10*time.Second {
		t.Fatalf("RestageCLs = %+v", cfg.RestageCLs)
	}
	if len(cfg.Quotas) != 1 {
		t.Fatalf("Quotas = %+v", cfg.Quotas)
	}
	q := cfg.Quotas[0].ToQuota()
	if q.InternalBytes != 1<<30 {
		t.Fatalf("InternalBytes = %d, want 1Gi", q.InternalBytes)
	}
	if q.ExternalBytes != 500_000_000 {
		t.Fatalf("ExternalBytes = %d, want 500M", q.ExternalBytes)
	}
	if q.InternalBundles != 10000 {
		t.Fatalf("InternalBundles = %d", q.InternalBundles)
	}
}

func TestValidateRejectsUnknownRestageLink(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Quotas = []QuotaConfig{{
		QuotaType:       "DST",
		Scheme:          "ipn",
		Node:            "5",
		RestageLinkName: "nowhere",
	}}
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for unknown restage_link_name")
	}
}

func TestValidateRejectsDuplicateLinkNames(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.RestageCLs = []RestageCLConfig{
		{Name: "primary", StoragePath: "/a"},
		{Name: "primary", StoragePath: "/b"},
	}
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for duplicate restagecl names")
	}
}

func TestInitConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := InitConfigToPath(path, false); err != nil {
		t.Fatalf("InitConfigToPath: %v", err)
	}
	// A second write without --force must refuse.
	if err := InitConfigToPath(path, false); err == nil {
		t.Fatal("expected error overwriting existing config without force")
	}
	if err := InitConfigToPath(path, true); err != nil {
		t.Fatalf("InitConfigToPath(force): %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(sample): %v", err)
	}
	if len(cfg.RestageCLs) != 1 || cfg.RestageCLs[0].Name != "primary" {
		t.Fatalf("sample restagecls = %+v", cfg.RestageCLs)
	}
	if len(cfg.Quotas) != 1 || cfg.Quotas[0].RestageLinkName != "primary" {
		t.Fatalf("sample quotas = %+v", cfg.Quotas)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("sample config must validate: %v", err)
	}
}

func TestSeparatorsDefaults(t *testing.T) {
	var s SeparatorsConfig
	sep := s.ToSeparators()
	if sep.Field != "_" || sep.EID != "-" {
		t.Fatalf("default separators = %+v", sep)
	}
	s = SeparatorsConfig{Field: ".", EID: "+"}
	sep = s.ToSeparators()
	if sep.Field != "." || sep.EID != "+" {
		t.Fatalf("override separators = %+v", sep)
	}
}
