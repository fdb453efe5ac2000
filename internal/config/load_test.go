package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadPrecedence(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmp, "xdg"))

	userConfigPath, err := UserConfigPath()
	if err != nil {
		t.Fatalf("user config path: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(userConfigPath), 0o755); err != nil {
		t.Fatalf("mkdir user config dir: %v", err)
	}

	userConfig := `version: 1
performance:
  parallel: 2
  prefetch_workers: 5
transport:
  timeout_seconds: 30
log:
  level: "debug"
`
	if err := os.WriteFile(userConfigPath, []byte(userConfig), 0o644); err != nil {
		t.Fatalf("write user config: %v", err)
	}

	projectDir := filepath.Join(tmp, "project")
	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		t.Fatalf("mkdir project dir: %v", err)
	}
	projectConfigPath := filepath.Join(projectDir, "blackbird.yaml")
	projectConfig := `version: 1
transport:
  timeout_seconds: 120
`
	if err := os.WriteFile(projectConfigPath, []byte(projectConfig), 0o644); err != nil {
		t.Fatalf("write project config: %v", err)
	}

	cfg, err := Load(LoadOptions{
		WorkingDir: projectDir,
		Env: map[string]string{
			"BLACKBIRD_PARALLEL": "7",
		},
	})
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Performance.Parallel != 7 {
		t.Fatalf("expected env override parallel=7, got %d", cfg.Performance.Parallel)
	}
	if cfg.Performance.PrefetchWorkers != 5 {
		t.Fatalf("expected user config prefetch_workers=5 to carry through, got %d", cfg.Performance.PrefetchWorkers)
	}
	if cfg.Transport.TimeoutSeconds != 120 {
		t.Fatalf("expected project config to override user timeout, got %d", cfg.Transport.TimeoutSeconds)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("expected user config log level to carry through, got %q", cfg.Log.Level)
	}
}

func TestLoadExplicitPathRequired(t *testing.T) {
	_, err := Load(LoadOptions{ExplicitPath: "/path/does/not/exist.yaml"})
	if err == nil {
		t.Fatalf("expected error for missing explicit config path")
	}
}
