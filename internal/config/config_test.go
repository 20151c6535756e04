package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"CHROMIUM_CDP_ADDRESS", "CHROMIUM_CDP_PORT", "TABSHELL_BIND_ADDR",
		"TABSHELL_PORT_CANDIDATES", "TABSHELL_FRAME_URL", "TABSHELL_HEADER_HEIGHT",
		"TABSHELL_PRELOAD_COUNT", "TABSHELL_EVAL_TIMEOUT_MS", "TABSHELL_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
	unsetEnv(t, "TABSHELL_JOURNAL_DIR")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CDPURL() != "http://127.0.0.1:9220" {
		t.Fatalf("CDPURL() = %q; want http://127.0.0.1:9220", cfg.CDPURL())
	}
	if cfg.BindAddr != "127.0.0.1:8190" {
		t.Fatalf("BindAddr = %q; want 127.0.0.1:8190", cfg.BindAddr)
	}
	if want := []string{"127.0.0.1:8191", "127.0.0.1:8192"}; !reflect.DeepEqual(cfg.PortCandidates, want) {
		t.Fatalf("PortCandidates = %v; want %v", cfg.PortCandidates, want)
	}
	if cfg.HeaderHeight != 40 {
		t.Fatalf("HeaderHeight = %d; want 40", cfg.HeaderHeight)
	}
	if cfg.EventKey != "GAODING_NATIVE_BRIDGE_EVENT_KEY" {
		t.Fatalf("EventKey = %q; want GAODING_NATIVE_BRIDGE_EVENT_KEY", cfg.EventKey)
	}
	if cfg.JournalDir != "./journal" {
		t.Fatalf("JournalDir = %q; want ./journal", cfg.JournalDir)
	}
	if cfg.EvalTimeout() != 5*time.Second {
		t.Fatalf("EvalTimeout() = %v; want 5s", cfg.EvalTimeout())
	}
}

func TestLoadClampsAndOverrides(t *testing.T) {
	t.Setenv("TABSHELL_EVAL_TIMEOUT_MS", "10")
	t.Setenv("TABSHELL_PRELOAD_COUNT", "0")
	t.Setenv("TABSHELL_LOG_LEVEL", "DEBUG")
	t.Setenv("TABSHELL_JOURNAL_DIR", "")
	t.Setenv("TABSHELL_PORT_CANDIDATES", " 127.0.0.1:9001 ,, 127.0.0.1:9002")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.EvalTimeoutMS != 1000 {
		t.Fatalf("EvalTimeoutMS = %d; want 1000", cfg.EvalTimeoutMS)
	}
	if cfg.PreloadCount != 1 {
		t.Fatalf("PreloadCount = %d; want 1", cfg.PreloadCount)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q; want debug", cfg.LogLevel)
	}
	if cfg.JournalDir != "" {
		t.Fatalf("JournalDir = %q; want empty (disabled)", cfg.JournalDir)
	}
	if want := []string{"127.0.0.1:9001", "127.0.0.1:9002"}; !reflect.DeepEqual(cfg.PortCandidates, want) {
		t.Fatalf("PortCandidates = %v; want %v", cfg.PortCandidates, want)
	}
}

func TestLoadRejectsNegativeHeaderHeight(t *testing.T) {
	t.Setenv("TABSHELL_HEADER_HEIGHT", "-1")
	if _, err := Load(); err == nil {
		t.Fatal("Load() error = nil; want error")
	}
}

func TestLoadStartupTabs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tabs.yaml")
	writeFile(t, path, "tabs:\n  - url: https://a.example\n  - url: https://b.example\n")

	cfg, err := LoadStartupTabs(path)
	if err != nil {
		t.Fatalf("LoadStartupTabs() error = %v", err)
	}
	if len(cfg.Tabs) != 2 || cfg.Tabs[1].URL != "https://b.example" {
		t.Fatalf("Tabs = %+v; want two entries ending in https://b.example", cfg.Tabs)
	}
}

func TestLoadStartupTabsMissingURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tabs.yaml")
	writeFile(t, path, "tabs:\n  - url: https://a.example\n  - title: nope\n")

	if _, err := LoadStartupTabs(path); err == nil {
		t.Fatal("LoadStartupTabs() error = nil; want missing url error")
	}
}

func TestLoadStartupTabsMissingFile(t *testing.T) {
	_, err := LoadStartupTabs(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("LoadStartupTabs() error = %v; want os.ErrNotExist", err)
	}
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	prev, had := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("unset %s: %v", key, err)
	}
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, prev)
		}
	})
}
