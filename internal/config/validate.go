package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRemote(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateDebounce(); err != nil {
		return err
	}
	if err := c.validateConnectivity(); err != nil {
		return err
	}
	if err := c.validateConflict(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateRemote() error {
	if strings.TrimSpace(c.Remote.BaseURL) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/satchel/config.toml"
		}
		return fmt.Errorf("remote.base_url is required. Set SATCHEL_REMOTE_URL env var or edit %s (create with 'satchel config init')", defaultPath)
	}
	parsed, err := url.Parse(c.Remote.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("remote.base_url must be an absolute URL, got %q", c.Remote.BaseURL)
	}
	if c.Remote.RequestTimeout <= 0 {
		return errors.New("remote.request_timeout must be positive (seconds)")
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Provider {
	case "local", "remote":
		return nil
	default:
		return fmt.Errorf("storage.provider must be \"local\" or \"remote\", got %q", c.Storage.Provider)
	}
}

func (c *Config) validateSync() error {
	return ensurePositiveMap(map[string]int{
		"sync.batch_size":  c.Sync.BatchSize,
		"sync.max_retries": c.Sync.MaxRetries,
	})
}

func (c *Config) validateDebounce() error {
	if err := ensurePositiveMap(map[string]int{
		"debounce.window_ms":   c.Debounce.WindowMs,
		"debounce.max_wait_ms": c.Debounce.MaxWaitMs,
		"debounce.max_batch":   c.Debounce.MaxBatch,
	}); err != nil {
		return err
	}
	if c.Debounce.MaxWaitMs < c.Debounce.WindowMs {
		return errors.New("debounce.max_wait_ms must be greater than or equal to debounce.window_ms")
	}
	return nil
}

func (c *Config) validateConnectivity() error {
	return ensurePositiveMap(map[string]int{
		"connectivity.probe_interval": c.Connectivity.ProbeInterval,
		"connectivity.probe_timeout":  c.Connectivity.ProbeTimeout,
	})
}

func (c *Config) validateConflict() error {
	switch c.Conflict.Strategy {
	case "last-write-wins", "remote-wins", "merge", "user-choice":
		return nil
	default:
		return fmt.Errorf("conflict.strategy must be one of last-write-wins, remote-wins, merge, user-choice; got %q", c.Conflict.Strategy)
	}
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive (seconds)")
	}
	if c.Notifications.QueueMinItems < 1 {
		return errors.New("notifications.queue_min_items must be >= 1")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
