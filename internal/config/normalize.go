package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRemote()
	c.normalizeStorage()
	c.normalizeSync()
	c.normalizeDebounce()
	c.normalizeConnectivity()
	c.normalizeConflict()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeRemote() {
	if value, ok := os.LookupEnv("SATCHEL_REMOTE_URL"); ok && strings.TrimSpace(value) != "" {
		c.Remote.BaseURL = value
	}
	c.Remote.BaseURL = strings.TrimRight(strings.TrimSpace(c.Remote.BaseURL), "/")
	if value, ok := os.LookupEnv("SATCHEL_REMOTE_API_KEY"); ok && strings.TrimSpace(value) != "" {
		c.Remote.APIKey = value
	}
	c.Remote.APIKey = strings.TrimSpace(c.Remote.APIKey)
	if c.Remote.RequestTimeout <= 0 {
		c.Remote.RequestTimeout = defaultRemoteRequestTimeout
	}
}

func (c *Config) normalizeStorage() {
	c.Storage.Provider = strings.ToLower(strings.TrimSpace(c.Storage.Provider))
	if c.Storage.Provider == "" {
		c.Storage.Provider = defaultProvider
	}
}

func (c *Config) normalizeSync() {
	if c.Sync.BatchSize <= 0 {
		c.Sync.BatchSize = defaultSyncBatchSize
	}
	if c.Sync.MaxRetries <= 0 {
		c.Sync.MaxRetries = defaultSyncMaxRetries
	}
	if c.Sync.AutoSyncInterval < 0 {
		c.Sync.AutoSyncInterval = 0
	}
	if c.Sync.ImportSettleMs < 0 {
		c.Sync.ImportSettleMs = 0
	}
}

func (c *Config) normalizeDebounce() {
	if c.Debounce.WindowMs <= 0 {
		c.Debounce.WindowMs = defaultDebounceWindowMs
	}
	if c.Debounce.MaxWaitMs <= 0 {
		c.Debounce.MaxWaitMs = defaultDebounceMaxWaitMs
	}
	if c.Debounce.MaxBatch <= 0 {
		c.Debounce.MaxBatch = defaultDebounceMaxBatch
	}
}

func (c *Config) normalizeConnectivity() {
	if c.Connectivity.ProbeInterval <= 0 {
		c.Connectivity.ProbeInterval = defaultProbeInterval
	}
	if c.Connectivity.ProbeTimeout <= 0 {
		c.Connectivity.ProbeTimeout = defaultProbeTimeout
	}
}

func (c *Config) normalizeConflict() {
	c.Conflict.Strategy = strings.ToLower(strings.TrimSpace(c.Conflict.Strategy))
	if c.Conflict.Strategy == "" {
		c.Conflict.Strategy = defaultConflictStrategy
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
