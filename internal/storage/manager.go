package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"satchel/internal/logging"
)

// Manager selects a primary provider per operation and transparently retries
// classified transient failures against the local store. The detour is
// one-shot: provider selection is never mutated by a fallback, so the
// pre-call choice remains in force for subsequent operations.
type Manager struct {
	mu     sync.Mutex
	cfg    ProviderConfig
	local  Provider
	remote Provider
	logger *slog.Logger

	cache        CollectionCache
	cacheTTL     time.Duration
	cacheVersion string
}

// CollectionCache is the optional side channel for remote collection reads.
// It mirrors the cache store's surface without binding the façade to it.
type CollectionCache interface {
	GetJSON(ctx context.Context, key, version string, out any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration, version string) error
}

// ManagerOption configures optional façade wiring.
type ManagerOption func(*Manager)

// WithReadCache enables read-through caching of remote collection reads.
// Entries carry the given ttl and schema version; a non-positive ttl never
// expires. The cache only serves while the remote provider is primary, so it
// is never authoritative for local reads.
func WithReadCache(cache CollectionCache, ttl time.Duration, version string) ManagerOption {
	return func(m *Manager) {
		m.cache = cache
		m.cacheTTL = ttl
		m.cacheVersion = version
	}
}

// NewManager wires the façade over its two providers.
func NewManager(local, remote Provider, cfg ProviderConfig, logger *slog.Logger, opts ...ManagerOption) (*Manager, error) {
	if local == nil {
		return nil, errors.New("storage manager: local provider is required")
	}
	if remote == nil {
		return nil, errors.New("storage manager: remote provider is required")
	}
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Manager{
		cfg:    cfg,
		local:  local,
		remote: remote,
		logger: logging.NewComponentLogger(logger, "storage"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// SetConfig replaces the provider selection and fallback toggle.
func (m *Manager) SetConfig(cfg ProviderConfig) error {
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
	m.logger.Info("provider config updated",
		logging.String(logging.FieldProvider, cfg.Provider),
		logging.Bool("fallback_enabled", cfg.FallbackEnabled))
	return nil
}

// Config returns the current provider selection.
func (m *Manager) Config() ProviderConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// CurrentProviderName reports which provider new operations target.
func (m *Manager) CurrentProviderName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.Provider
}

// SwitchProvider changes the primary provider, keeping the fallback toggle.
func (m *Manager) SwitchProvider(name string) error {
	cfg := m.Config()
	cfg.Provider = name
	return m.SetConfig(cfg)
}

// TestConnection probes the current primary provider when it supports
// reachability checks. Providers without the capability always pass.
func (m *Manager) TestConnection(ctx context.Context) error {
	primary, _, _ := m.selection()
	if tester, ok := primary.(ConnectionTester); ok {
		return tester.TestConnection(ctx)
	}
	return nil
}

// Local exposes the local provider for wiring that needs direct access.
func (m *Manager) Local() Provider { return m.local }

// Remote exposes the remote provider for wiring that needs direct access.
func (m *Manager) Remote() Provider { return m.remote }

// GetAll lists a table through the current provider. Remote reads go through
// the collection cache when one is wired. Session failures degrade to an
// empty collection so reads stay usable while sign-out is in flight.
func (m *Manager) GetAll(ctx context.Context, table string) ([]Record, error) {
	if cached, ok := m.cachedCollection(ctx, table); ok {
		return cached, nil
	}
	recs, err := execute(ctx, m, "get all", table, func(p Provider) ([]Record, error) {
		out, err := p.GetAll(ctx, table)
		if err == nil && p.Name() == ProviderRemote {
			m.cacheCollection(ctx, table, out)
		}
		return out, err
	})
	if err != nil && IsAuthentication(err) {
		m.logger.Warn("session invalid, degrading list to empty",
			logging.String(logging.FieldTable, table),
			logging.Error(err))
		return []Record{}, nil
	}
	return recs, err
}

// Get fetches one record through the current provider.
func (m *Manager) Get(ctx context.Context, table, id string) (Record, error) {
	return execute(ctx, m, "get", table, func(p Provider) (Record, error) {
		return p.Get(ctx, table, id)
	})
}

// Save upserts a record through the current provider.
func (m *Manager) Save(ctx context.Context, rec Record) (Record, error) {
	return execute(ctx, m, "save", rec.Table, func(p Provider) (Record, error) {
		return p.Save(ctx, rec)
	})
}

// Update applies a partial mutation through the current provider.
func (m *Manager) Update(ctx context.Context, table, id string, partial map[string]any) (Record, error) {
	return execute(ctx, m, "update", table, func(p Provider) (Record, error) {
		return p.Update(ctx, table, id, partial)
	})
}

// Delete removes a record through the current provider.
func (m *Manager) Delete(ctx context.Context, table, id string) error {
	_, err := execute(ctx, m, "delete", table, func(p Provider) (struct{}, error) {
		return struct{}{}, p.Delete(ctx, table, id)
	})
	return err
}

func (m *Manager) selection() (primary Provider, fallback Provider, fallbackEligible bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cfg.Provider == ProviderRemote {
		return m.remote, m.local, m.cfg.FallbackEnabled
	}
	// Local primaries never detour; the fallback target is the primary.
	return m.local, m.local, false
}

// execute runs fn against the primary provider and, for classified transient
// failures with fallback enabled, retries the identical operation once
// against the local store. Both-failed surfaces a FallbackError carrying the
// two causes; any other error class propagates immediately.
func execute[T any](ctx context.Context, m *Manager, operation, table string, fn func(Provider) (T, error)) (T, error) {
	primary, fallback, fallbackEnabled := m.selection()

	out, err := fn(primary)
	if err == nil {
		return out, nil
	}
	if !fallbackEnabled || !FallbackEligible(err) {
		return out, err
	}

	logging.WithContext(ctx, m.logger).Warn("primary provider failed, retrying against local store",
		logging.String(logging.FieldOperation, operation),
		logging.String(logging.FieldTable, table),
		logging.String(logging.FieldProvider, primary.Name()),
		logging.Error(err))

	fbOut, fbErr := fn(fallback)
	if fbErr != nil {
		var zero T
		return zero, &FallbackError{Operation: operation, Table: table, Primary: err, Fallback: fbErr}
	}
	return fbOut, nil
}

// cachedCollection serves a remote list read from the cache when the remote
// provider is primary and a live, version-matched entry exists.
func (m *Manager) cachedCollection(ctx context.Context, table string) ([]Record, bool) {
	if m.cache == nil {
		return nil, false
	}
	primary, _, _ := m.selection()
	if primary.Name() != ProviderRemote {
		return nil, false
	}

	var payloads []map[string]any
	ok, err := m.cache.GetJSON(ctx, collectionCacheKey(table), m.cacheVersion, &payloads)
	if err != nil {
		m.logger.Debug("collection cache read failed",
			logging.String(logging.FieldTable, table),
			logging.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}

	recs := make([]Record, 0, len(payloads))
	for _, payload := range payloads {
		rec, decodeErr := FromPayload(table, payload)
		if decodeErr != nil {
			// One mangled row poisons the whole entry; refetch instead.
			return nil, false
		}
		recs = append(recs, rec)
	}
	return recs, true
}

func (m *Manager) cacheCollection(ctx context.Context, table string, recs []Record) {
	if m.cache == nil {
		return
	}
	payloads := make([]map[string]any, 0, len(recs))
	for _, rec := range recs {
		payloads = append(payloads, rec.Payload())
	}
	if err := m.cache.Set(ctx, collectionCacheKey(table), payloads, m.cacheTTL, m.cacheVersion); err != nil {
		m.logger.Debug("collection cache write failed",
			logging.String(logging.FieldTable, table),
			logging.Error(err))
	}
}

func collectionCacheKey(table string) string { return "records:" + table }

// String renders the config for status output.
func (c ProviderConfig) String() string {
	return fmt.Sprintf("provider=%s fallback=%t", c.Provider, c.FallbackEnabled)
}
