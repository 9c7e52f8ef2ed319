package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadWithNoFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Global.Upload.Slots != 1 {
		t.Fatalf("expected default slots 1, got %d", cfg.Global.Upload.Slots)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slskd.yaml")
	contents := `
global:
  upload:
    slots: 4
groups:
  default:
    upload:
      strategy: FirstInFirstOut
  leechers:
    upload:
      strategy: FirstInFirstOut
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("failed writing test config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Global.Upload.Slots != 4 {
		t.Fatalf("expected slots 4 from file, got %d", cfg.Global.Upload.Slots)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slskd.yaml")
	contents := "global:\n  upload:\n    slots: 4\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("failed writing test config: %v", err)
	}

	t.Setenv("SLSKD_GLOBAL_UPLOAD_SLOTS", "9")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Global.Upload.Slots != 9 {
		t.Fatalf("expected env override to win, got %d", cfg.Global.Upload.Slots)
	}
}

func TestSaveRoundTrips(t *testing.T) {
	cfg := validOptions()
	path := filepath.Join(t.TempDir(), "out.yaml")

	if err := Save(cfg, path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reloaded.Global.Upload.Slots != cfg.Global.Upload.Slots {
		t.Fatalf("expected round-tripped slots %d, got %d", cfg.Global.Upload.Slots, reloaded.Global.Upload.Slots)
	}
}
