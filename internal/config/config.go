package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Remote contains connection settings for the authoritative store.
type Remote struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Storage contains provider selection for the storage manager.
type Storage struct {
	Provider        string `toml:"provider"`
	FallbackEnabled bool   `toml:"fallback_enabled"`
	CacheTTL        int    `toml:"cache_ttl"`
}

// Sync contains queue drain tuning.
type Sync struct {
	BatchSize        int `toml:"batch_size"`
	MaxRetries       int `toml:"max_retries"`
	AutoSyncInterval int `toml:"auto_sync_interval"`
	ImportSettleMs   int `toml:"import_settle_ms"`
}

// Debounce contains write-coalescing windows.
type Debounce struct {
	WindowMs  int `toml:"window_ms"`
	MaxWaitMs int `toml:"max_wait_ms"`
	MaxBatch  int `toml:"max_batch"`
}

// Connectivity contains remote reachability probe settings.
type Connectivity struct {
	ProbeInterval int `toml:"probe_interval"`
	ProbeTimeout  int `toml:"probe_timeout"`
}

// Conflict contains queued-update resolution policy.
type Conflict struct {
	Strategy string `toml:"strategy"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Sync           bool   `toml:"sync"`
	Errors         bool   `toml:"errors"`
	QueueMinItems  int    `toml:"queue_min_items"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for Satchel.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - Remote: authoritative store endpoint and credentials
//   - Storage: primary provider selection and fallback toggle
//   - Sync: queue drain batching, retry ceiling, and trigger timing
//   - Debounce: write-coalescing windows and batch limits
//   - Connectivity: reachability probe cadence
//   - Conflict: queued-update resolution strategy
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Remote        Remote        `toml:"remote"`
	Storage       Storage       `toml:"storage"`
	Sync          Sync          `toml:"sync"`
	Debounce      Debounce      `toml:"debounce"`
	Connectivity  Connectivity  `toml:"connectivity"`
	Conflict      Conflict      `toml:"conflict"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/satchel/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		path = strings.TrimSpace(os.Getenv("SATCHEL_CONFIG"))
	}
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/satchel/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("satchel.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the durable store backing records,
// cache entries, and the sync queue.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "satchel.db")
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "satcheld.lock")
}

// SocketPath returns the daemon IPC socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.LogDir, "satchel.sock")
}

// PIDPath returns the daemon pid file location.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.LogDir, "satchel.pid")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
