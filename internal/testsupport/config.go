package testsupport

import (
	"path/filepath"
	"testing"

	"satchel/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Remote.BaseURL = "http://127.0.0.1:1"
	cfgVal.Remote.APIKey = "test"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithRemote points the config at a test server, typically httptest.Server.URL.
func WithRemote(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Remote.BaseURL = baseURL
	}
}

// WithAPIKey sets the remote credential on the test config.
func WithAPIKey(key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Remote.APIKey = key
	}
}

// WithConflictStrategy overrides the queued-update resolution strategy.
func WithConflictStrategy(strategy string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Conflict.Strategy = strategy
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
