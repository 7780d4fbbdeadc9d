package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCacheCommands(t *testing.T) {
	cacheHome := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", cacheHome)
	dir := filepath.Join(cacheHome, "visrec")

	out, _, err := runCmdCapture(t, "cache", "path")
	if err != nil {
		t.Fatalf("cache path failed: %v", err)
	}
	if strings.TrimSpace(out) != dir {
		t.Errorf("cache path = %q, want %q", out, dir)
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatal(err)
	}
	cached := filepath.Join(dir, "classifiers_0123456789ab.json")
	other := filepath.Join(dir, "notes.txt")
	for _, p := range []string{cached, other} {
		if err := os.WriteFile(p, []byte(`{"items":[]}`), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	out, _, err = runCmdCapture(t, "cache", "path")
	if err != nil {
		t.Fatalf("cache path failed: %v", err)
	}
	if !strings.Contains(out, "classifiers_0123456789ab.json (12 bytes)") {
		t.Errorf("cache path should list cache files, got %q", out)
	}
	if strings.Contains(out, "notes.txt") {
		t.Errorf("cache path should skip non-JSON files, got %q", out)
	}

	out, _, err = runCmdCapture(t, "cache", "clear")
	if err != nil {
		t.Fatalf("cache clear failed: %v", err)
	}
	if !strings.Contains(out, "Cache cleared: "+dir) {
		t.Errorf("unexpected output: %q", out)
	}
	if _, err := os.Stat(cached); !os.IsNotExist(err) {
		t.Error("cache file should be removed")
	}
	if _, err := os.Stat(other); err != nil {
		t.Error("unrelated files should be kept")
	}
}
