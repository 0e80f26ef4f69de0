package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "silc.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := Default()
	if cfg.ManagementPort != def.ManagementPort {
		t.Fatalf("expected default management port, got %d", cfg.ManagementPort)
	}
	if cfg.Sessions.IdleTimeoutSeconds != def.Sessions.IdleTimeoutSeconds {
		t.Fatalf("expected default idle timeout, got %v", cfg.Sessions.IdleTimeoutSeconds)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "silc.toml")
	content := `
management_port = 18888

[sessions]
idle_timeout = 120
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ManagementPort != 18888 {
		t.Fatalf("management_port = %d, want 18888", cfg.ManagementPort)
	}
	if cfg.Sessions.IdleTimeoutSeconds != 120 {
		t.Fatalf("idle_timeout = %v, want 120", cfg.Sessions.IdleTimeoutSeconds)
	}
	// Unset sections fall back to defaults.
	if cfg.Logging.MaxLogLines != Default().Logging.MaxLogLines {
		t.Fatalf("expected default max_log_lines preserved")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "silc.toml")
	if err := os.WriteFile(path, []byte("management_port = 18888\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("SILC_MANAGEMENT_PORT", "17777")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ManagementPort != 17777 {
		t.Fatalf("management_port = %d, want 17777 (env should win over file)", cfg.ManagementPort)
	}
}
