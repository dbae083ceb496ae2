package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if !cfg.Security.RequireConfirmationForWrites {
		t.Error("expected confirmation to default to true")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default log level info, got %q", cfg.Logging.Level)
	}
	if cfg.Cache.TTLSeconds != 300 {
		t.Errorf("expected default cache TTL 300, got %d", cfg.Cache.TTLSeconds)
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	raw := `{
		"workspace": {
			"default_path": "/srv/workspace",
			"allowed_paths": ["/srv/projects"]
		},
		"security": {
			"require_confirmation_for_writes": false,
			"deny_patterns": ["import\\s+subprocess"]
		}
	}`
	if err := os.WriteFile(path, []byte(raw), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Workspace.DefaultPath != "/srv/workspace" {
		t.Errorf("default_path = %q", cfg.Workspace.DefaultPath)
	}
	if len(cfg.Workspace.AllowedPaths) != 1 || cfg.Workspace.AllowedPaths[0] != "/srv/projects" {
		t.Errorf("allowed_paths = %v", cfg.Workspace.AllowedPaths)
	}
	if cfg.Security.RequireConfirmationForWrites {
		t.Error("expected confirmation disabled")
	}
	if len(cfg.Security.DenyPatterns) != 1 {
		t.Errorf("deny_patterns = %v", cfg.Security.DenyPatterns)
	}
	// Unspecified sections keep their defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("log level = %q", cfg.Logging.Level)
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "config.json")

	cfg := DefaultConfig()
	cfg.Workspace.DefaultPath = "/ws"
	cfg.Security.DenyPatterns = []string{"eval\\("}

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Workspace.DefaultPath != "/ws" {
		t.Errorf("default_path = %q", loaded.Workspace.DefaultPath)
	}
	if len(loaded.Security.DenyPatterns) != 1 || loaded.Security.DenyPatterns[0] != "eval\\(" {
		t.Errorf("deny_patterns = %v", loaded.Security.DenyPatterns)
	}
}

func TestEnsureDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	created, err := EnsureDefault(path)
	if err != nil {
		t.Fatalf("EnsureDefault failed: %v", err)
	}
	if !created {
		t.Fatal("expected config to be created")
	}

	created, err = EnsureDefault(path)
	if err != nil {
		t.Fatalf("second EnsureDefault failed: %v", err)
	}
	if created {
		t.Fatal("expected existing config to be left alone")
	}
}
