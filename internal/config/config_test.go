package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/mtplog"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.conf"))
	if err != nil {
		t.Fatalf("Load: %s", err)
	}
	want := Default()
	if cfg.ChunkSize != want.ChunkSize || cfg.MaxRetries != want.MaxRetries {
		t.Fatalf("got %+v, want defaults %+v", cfg, want)
	}
}

func TestLoadOverridesOnlyMentionedKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mtpd.conf")
	body := `
[transport]
chunk-size = 65536
max-retries = 7

[device]
demo-mode = true
vendor-override = 04e8

[logging]
log-level = trace
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %s", err)
	}

	if cfg.ChunkSize != 65536 {
		t.Errorf("ChunkSize = %d, want 65536", cfg.ChunkSize)
	}
	if cfg.MaxRetries != 7 {
		t.Errorf("MaxRetries = %d, want 7", cfg.MaxRetries)
	}
	if !cfg.DemoMode {
		t.Error("DemoMode = false, want true")
	}
	if cfg.VendorOverride != 0x04e8 {
		t.Errorf("VendorOverride = %#x, want 0x04e8", cfg.VendorOverride)
	}
	if cfg.LogLevel != mtplog.LevelTraceAll {
		t.Errorf("LogLevel = %d, want LevelTraceAll", cfg.LogLevel)
	}

	want := Default()
	if cfg.RetryBackoff != want.RetryBackoff {
		t.Errorf("RetryBackoff = %v, want default %v (not mentioned in file)", cfg.RetryBackoff, want.RetryBackoff)
	}
}

func TestLoadRejectsDemoAndRealOnlyTogether(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mtpd.conf")
	body := "[device]\ndemo-mode = true\nreal-only = true\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for demo-mode + real-only")
	}
}

func TestQuirksDirsOrdersSystemBeforeUser(t *testing.T) {
	dirs := QuirksDirs("/tmp/mtpd-cache")
	if len(dirs) != 2 {
		t.Fatalf("got %d dirs, want 2", len(dirs))
	}
	if dirs[0] != PathQuirksDir {
		t.Errorf("dirs[0] = %s, want system quirks dir first", dirs[0])
	}
}
