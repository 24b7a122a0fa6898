package runtimeinit

import (
	"os"
	"path/filepath"
	"testing"

	"capcut-bypass/src/config"
)

func TestBootstrapUsesOverrideAndCustomLogging(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("HOTKEY=Ctrl+Shift+F9\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HOTKEY", "")
	os.Unsetenv("HOTKEY")
	t.Setenv("TARGET_EXE", "CapCut.EXE")

	var seen *config.Config
	cfg, err := Bootstrap(Options{
		LoadOptions:  config.LoadOptions{EnvPathOverride: envPath},
		SetupLogging: func(c *config.Config) { seen = c },
	})
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if seen != cfg {
		t.Fatal("SetupLogging was not called with the loaded config")
	}
	if cfg.Hotkey != "Ctrl+Shift+F9" {
		t.Errorf("Hotkey = %q", cfg.Hotkey)
	}
	if cfg.TargetExe != "capcut.exe" {
		t.Errorf("TargetExe = %q", cfg.TargetExe)
	}
}
