package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("QUEUE_MODE", "")
	t.Setenv("SETTLE_WINDOW", "")
	t.Setenv("WORKER_COUNT", "")

	cfg := Load()
	if cfg.QueueMode != QueueModeMemory {
		t.Fatalf("expected default queue mode memory, got %q", cfg.QueueMode)
	}
	if cfg.SettleWindow != 2*time.Second {
		t.Fatalf("expected default settle window 2s, got %v", cfg.SettleWindow)
	}
	if cfg.WorkerCount != 2 {
		t.Fatalf("expected default worker count 2, got %d", cfg.WorkerCount)
	}
	if cfg.FFprobePath != "ffprobe" {
		t.Fatalf("expected ffprobe from PATH by default, got %q", cfg.FFprobePath)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("QUEUE_MODE", "nats")
	t.Setenv("SCAN_FILE_DELAY", "750ms")
	t.Setenv("QUEUE_SIZE", "128")

	cfg := Load()
	if cfg.QueueMode != QueueModeNATS {
		t.Fatalf("expected queue mode override, got %q", cfg.QueueMode)
	}
	if cfg.ScanFileDelay != 750*time.Millisecond {
		t.Fatalf("expected scan delay 750ms, got %v", cfg.ScanFileDelay)
	}
	if cfg.QueueSize != 128 {
		t.Fatalf("expected queue size 128, got %d", cfg.QueueSize)
	}
}

func TestLoadFileOverlayYieldsToEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "WATCH_DIR: /srv/recordings\nWORKER_COUNT: \"8\"\nLOG_LEVEL: debug\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	unsetenv(t, "WATCH_DIR")
	unsetenv(t, "WORKER_COUNT")
	t.Setenv("LOG_LEVEL", "warn")

	cfg := Load()
	if cfg.WatchDir != "/srv/recordings" {
		t.Fatalf("expected watch dir from file, got %q", cfg.WatchDir)
	}
	if cfg.WorkerCount != 8 {
		t.Fatalf("expected worker count from file, got %d", cfg.WorkerCount)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("expected env to win over file, got %q", cfg.LogLevel)
	}
}

func TestLoadEmptyEnvSuppressesOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "WHISPER_API_KEY: overlay-secret\nWATCH_DIR: /srv/recordings\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("WHISPER_API_KEY", "")
	unsetenv(t, "WATCH_DIR")

	cfg := Load()
	if cfg.WhisperAPIKey != "" {
		t.Fatalf("expected explicitly cleared key to stay empty, got %q", cfg.WhisperAPIKey)
	}
	if cfg.WatchDir != "/srv/recordings" {
		t.Fatalf("expected unset variable to take the overlay, got %q", cfg.WatchDir)
	}
}

// unsetenv removes a variable for the test and restores it afterwards via
// t.Setenv's cleanup.
func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	os.Unsetenv(key)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("QUEUE_SIZE", "not-a-number")
	t.Setenv("SETTLE_WINDOW", "soon")

	cfg := Load()
	if cfg.QueueSize != 64 {
		t.Fatalf("expected fallback queue size, got %d", cfg.QueueSize)
	}
	if cfg.SettleWindow != 2*time.Second {
		t.Fatalf("expected fallback settle window, got %v", cfg.SettleWindow)
	}
}
