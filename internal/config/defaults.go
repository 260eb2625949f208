package config

const (
	defaultDataDir              = "~/.local/share/satchel"
	defaultLogDir               = "~/.local/share/satchel/logs"
	defaultLogRetentionDays     = 60
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultRemoteRequestTimeout = 15
	defaultProvider             = "remote"
	defaultStorageCacheTTL      = 300
	defaultSyncBatchSize        = 10
	defaultSyncMaxRetries       = 3
	defaultAutoSyncInterval     = 300
	defaultImportSettleMs       = 1500
	defaultDebounceWindowMs     = 300
	defaultDebounceMaxWaitMs    = 2000
	defaultDebounceMaxBatch     = 10
	defaultProbeInterval        = 30
	defaultProbeTimeout         = 5
	defaultConflictStrategy     = "last-write-wins"
	defaultNotifyQueueMinItems  = 1
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Remote: Remote{
			RequestTimeout: defaultRemoteRequestTimeout,
		},
		Storage: Storage{
			Provider:        defaultProvider,
			FallbackEnabled: true,
			CacheTTL:        defaultStorageCacheTTL,
		},
		Sync: Sync{
			BatchSize:        defaultSyncBatchSize,
			MaxRetries:       defaultSyncMaxRetries,
			AutoSyncInterval: defaultAutoSyncInterval,
			ImportSettleMs:   defaultImportSettleMs,
		},
		Debounce: Debounce{
			WindowMs:  defaultDebounceWindowMs,
			MaxWaitMs: defaultDebounceMaxWaitMs,
			MaxBatch:  defaultDebounceMaxBatch,
		},
		Connectivity: Connectivity{
			ProbeInterval: defaultProbeInterval,
			ProbeTimeout:  defaultProbeTimeout,
		},
		Conflict: Conflict{
			Strategy: defaultConflictStrategy,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			Sync:           true,
			Errors:         true,
			QueueMinItems:  defaultNotifyQueueMinItems,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
