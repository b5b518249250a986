package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
llm:
  default_provider: anthropic
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Server.HTTPPort != 8080 {
		t.Errorf("Server.HTTPPort = %d, want 8080", cfg.Server.HTTPPort)
	}
	if cfg.SSEGateway.PollInterval != 500*time.Millisecond {
		t.Errorf("SSEGateway.PollInterval = %v, want 500ms", cfg.SSEGateway.PollInterval)
	}
	if cfg.SSEGateway.BatchSize != 100 {
		t.Errorf("SSEGateway.BatchSize = %d, want 100", cfg.SSEGateway.BatchSize)
	}
	if cfg.SSEGateway.IdleTimeout != 300*time.Second {
		t.Errorf("SSEGateway.IdleTimeout = %v, want 300s", cfg.SSEGateway.IdleTimeout)
	}
	if cfg.TTL.EventTTL != 7*24*time.Hour {
		t.Errorf("TTL.EventTTL = %v, want 168h", cfg.TTL.EventTTL)
	}
	if cfg.TTL.MessageTTL != 30*24*time.Hour {
		t.Errorf("TTL.MessageTTL = %v, want 720h", cfg.TTL.MessageTTL)
	}
	if len(cfg.Tools.ContainerExec.DenyList) == 0 {
		t.Error("Tools.ContainerExec.DenyList not defaulted")
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 0.0.0.0
  extra_typo_field: true
llm:
  default_provider: anthropic
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_JWKS_URL", "https://issuer.example.com/.well-known/jwks.json")
	path := writeConfig(t, `
auth:
  jwks_url: ${TEST_JWKS_URL}
llm:
  default_provider: anthropic
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Auth.JWKSURL != "https://issuer.example.com/.well-known/jwks.json" {
		t.Errorf("Auth.JWKSURL = %q, want expanded value", cfg.Auth.JWKSURL)
	}
}

func TestLoadRejectsFutureVersion(t *testing.T) {
	path := writeConfig(t, `
version: 99
llm:
  default_provider: anthropic
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unsupported config version")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	} else if !strings.Contains(err.Error(), "read config file") {
		t.Errorf("err = %v, want read-config-file wrapping", err)
	}
}

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "core.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(contents)), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}
