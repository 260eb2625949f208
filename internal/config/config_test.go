package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"satchel/internal/config"
)

func TestLoadDefaultConfigUsesEnvRemoteURLAndExpandsPaths(t *testing.T) {
	t.Setenv("SATCHEL_REMOTE_URL", "https://api.example.com")
	t.Setenv("SATCHEL_REMOTE_API_KEY", "test-key")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "satchel")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.LogDir != filepath.Join(wantData, "logs") {
		t.Fatalf("unexpected log dir: %q", cfg.Paths.LogDir)
	}
	if cfg.Remote.BaseURL != "https://api.example.com" {
		t.Fatalf("expected remote URL from env, got %q", cfg.Remote.BaseURL)
	}
	if cfg.Remote.APIKey != "test-key" {
		t.Fatalf("expected remote key from env, got %q", cfg.Remote.APIKey)
	}
	if cfg.Storage.Provider != "remote" {
		t.Fatalf("unexpected default provider: %q", cfg.Storage.Provider)
	}
	if !cfg.Storage.FallbackEnabled {
		t.Fatal("expected fallback enabled by default")
	}
	if cfg.Sync.BatchSize != config.Default().Sync.BatchSize {
		t.Fatalf("unexpected batch size: %d", cfg.Sync.BatchSize)
	}
	if cfg.Sync.MaxRetries != config.Default().Sync.MaxRetries {
		t.Fatalf("unexpected max retries: %d", cfg.Sync.MaxRetries)
	}
	if cfg.Conflict.Strategy != "last-write-wins" {
		t.Fatalf("unexpected conflict strategy: %q", cfg.Conflict.Strategy)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "satchel.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "satchel.toml")

	type payload struct {
		Remote struct {
			BaseURL string `toml:"base_url"`
			APIKey  string `toml:"api_key"`
		} `toml:"remote"`
		Storage struct {
			Provider string `toml:"provider"`
		} `toml:"storage"`
		Sync struct {
			BatchSize  int `toml:"batch_size"`
			MaxRetries int `toml:"max_retries"`
		} `toml:"sync"`
	}
	custom := payload{}
	custom.Remote.BaseURL = "https://example.com/store/"
	custom.Remote.APIKey = "abc123"
	custom.Storage.Provider = "Local"
	custom.Sync.BatchSize = 2
	custom.Sync.MaxRetries = 5
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Remote.BaseURL != "https://example.com/store" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Remote.BaseURL)
	}
	if cfg.Remote.APIKey != "abc123" {
		t.Fatalf("expected remote key from file, got %q", cfg.Remote.APIKey)
	}
	if cfg.Storage.Provider != "local" {
		t.Fatalf("expected provider lowered to local, got %q", cfg.Storage.Provider)
	}
	if cfg.Sync.BatchSize != 2 {
		t.Fatalf("expected batch size 2, got %d", cfg.Sync.BatchSize)
	}
	if cfg.Sync.MaxRetries != 5 {
		t.Fatalf("expected max retries 5, got %d", cfg.Sync.MaxRetries)
	}
}

func TestEnvVarOverridesConfigFileForRemote(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "satchel.toml")

	type payload struct {
		Remote struct {
			BaseURL string `toml:"base_url"`
			APIKey  string `toml:"api_key"`
		} `toml:"remote"`
	}
	custom := payload{}
	custom.Remote.BaseURL = "https://file.example.com"
	custom.Remote.APIKey = "file-key"

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	t.Setenv("SATCHEL_REMOTE_URL", "https://env.example.com")
	t.Setenv("SATCHEL_REMOTE_API_KEY", "env-key")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Remote.BaseURL != "https://env.example.com" {
		t.Errorf("expected remote URL from env, got %q", cfg.Remote.BaseURL)
	}
	if cfg.Remote.APIKey != "env-key" {
		t.Errorf("expected remote key from env, got %q", cfg.Remote.APIKey)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "your_remote_api_key_here") {
		t.Fatalf("sample config missing placeholder remote key: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if cfg.Storage.Provider != "remote" {
		t.Fatalf("expected sample provider remote, got %q", cfg.Storage.Provider)
	}
	if cfg.Sync.BatchSize != config.Default().Sync.BatchSize {
		t.Fatalf("expected sample batch size to match default, got %d", cfg.Sync.BatchSize)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	valid := func() config.Config {
		cfg := config.Default()
		cfg.Remote.BaseURL = "https://api.example.com"
		return cfg
	}

	cfg := valid()
	cfg.Remote.BaseURL = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing remote URL")
	}

	cfg = valid()
	cfg.Remote.BaseURL = "not a url"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for relative remote URL")
	}

	cfg = valid()
	cfg.Storage.Provider = "cloud"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown provider")
	}

	cfg = valid()
	cfg.Sync.BatchSize = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive batch size")
	}

	cfg = valid()
	cfg.Debounce.MaxWaitMs = cfg.Debounce.WindowMs - 1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when max wait below window")
	}

	cfg = valid()
	cfg.Conflict.Strategy = "newest"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown conflict strategy")
	}

	cfg = valid()
	cfg.Notifications.QueueMinItems = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for queue min items below 1")
	}
}
