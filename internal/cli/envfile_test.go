package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDotEnvFilesLoadsEnvAndLocalOverrides(t *testing.T) {
	tmp := t.TempDir()
	envPath := filepath.Join(tmp, ".env")
	localPath := filepath.Join(tmp, ".env.local")

	if err := os.WriteFile(envPath, []byte("BLACKBIRD_TRANSPORT_URL=webdav://a.example\nBLACKBIRD_PARALLEL=1\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	if err := os.WriteFile(localPath, []byte("BLACKBIRD_TRANSPORT_URL=webdav://b.example\n"), 0o644); err != nil {
		t.Fatalf("write .env.local: %v", err)
	}

	values := map[string]string{}
	setenv := func(k, v string) error {
		values[k] = v
		return nil
	}

	if err := loadDotEnvFiles(tmp, nil, setenv); err != nil {
		t.Fatalf("load dotenv files: %v", err)
	}
	if values["BLACKBIRD_TRANSPORT_URL"] != "webdav://b.example" {
		t.Fatalf("expected .env.local to override .env, got %q", values["BLACKBIRD_TRANSPORT_URL"])
	}
	if values["BLACKBIRD_PARALLEL"] != "1" {
		t.Fatalf("expected BLACKBIRD_PARALLEL from .env, got %q", values["BLACKBIRD_PARALLEL"])
	}
}

func TestLoadDotEnvFilesDoesNotOverrideProcessEnv(t *testing.T) {
	tmp := t.TempDir()
	envPath := filepath.Join(tmp, ".env")
	if err := os.WriteFile(envPath, []byte("BLACKBIRD_TRANSPORT_URL=webdav://example\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	values := map[string]string{}
	setenv := func(k, v string) error {
		values[k] = v
		return nil
	}

	if err := loadDotEnvFiles(tmp, []string{"BLACKBIRD_TRANSPORT_URL=/already/set"}, setenv); err != nil {
		t.Fatalf("load dotenv files: %v", err)
	}
	if _, exists := values["BLACKBIRD_TRANSPORT_URL"]; exists {
		t.Fatalf("expected existing process env to be protected")
	}
}

func TestParseDotEnvLineSupportsExportAndQuotedValues(t *testing.T) {
	key, value, ok, err := parseDotEnvLine("export BLACKBIRD_TRANSPORT_URL=\"webdav://example.com/music\"")
	if err != nil {
		t.Fatalf("parse line: %v", err)
	}
	if !ok || key != "BLACKBIRD_TRANSPORT_URL" || value != "webdav://example.com/music" {
		t.Fatalf("unexpected parse result: ok=%v key=%q value=%q", ok, key, value)
	}

	key, value, ok, err = parseDotEnvLine("BLACKBIRD_TRANSPORT_PASS='abc123'")
	if err != nil {
		t.Fatalf("parse single-quoted line: %v", err)
	}
	if !ok || key != "BLACKBIRD_TRANSPORT_PASS" || value != "abc123" {
		t.Fatalf("unexpected single-quoted parse result: ok=%v key=%q value=%q", ok, key, value)
	}
}
