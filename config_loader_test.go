package flagcore

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadOptionsFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flagcore.yaml")
	contents := `
sdkKey: secret-from-file
api: https://example.org/v1
environment: staging
localMode: true
configSyncInterval: 30s
loggingMaxBufferSize: 250
disableIdListSync: true
environmentParams:
  region: us-east-1
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	sdkKey, options, err := LoadOptionsFromYAML(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sdkKey != "secret-from-file" {
		t.Fatalf("expected secret-from-file, got %q", sdkKey)
	}
	if !options.LocalMode {
		t.Fatalf("expected LocalMode to be true")
	}
	if options.ConfigSyncInterval != 30*time.Second {
		t.Fatalf("expected a 30s sync interval, got %v", options.ConfigSyncInterval)
	}
	if options.LoggingMaxBufferSize != 250 {
		t.Fatalf("expected a buffer size of 250, got %d", options.LoggingMaxBufferSize)
	}
	if !options.DisableIDListSync {
		t.Fatalf("expected DisableIDListSync to be true")
	}
	if options.Environment.Tier != "staging" {
		t.Fatalf("expected tier staging, got %q", options.Environment.Tier)
	}
	if options.Environment.Params["region"] != "us-east-1" {
		t.Fatalf("expected region us-east-1, got %v", options.Environment.Params)
	}
}

func TestLoadOptionsFromYAMLMissingFile(t *testing.T) {
	if _, _, err := LoadOptionsFromYAML("/nonexistent/flagcore.yaml"); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}
