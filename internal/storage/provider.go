package storage

import (
	"context"
	"fmt"
	"strings"
)

// Provider names accepted by ProviderConfig and SwitchProvider.
const (
	ProviderLocal  = "local"
	ProviderRemote = "remote"
)

// Provider is the uniform CRUD surface every store exposes per logical table.
// The shape is identical across tables so generic sync logic can dispatch by
// table name alone.
type Provider interface {
	Name() string
	GetAll(ctx context.Context, table string) ([]Record, error)
	Get(ctx context.Context, table, id string) (Record, error)
	Save(ctx context.Context, rec Record) (Record, error)
	Update(ctx context.Context, table, id string, partial map[string]any) (Record, error)
	Delete(ctx context.Context, table, id string) error
}

// ConnectionTester is implemented by providers that can probe reachability.
type ConnectionTester interface {
	TestConnection(ctx context.Context) error
}

// TimerStateStore is implemented by providers that persist ephemeral session
// timer state. Timer state is local-only and never enters the sync queue, so
// the capability is composed separately instead of widening Provider.
type TimerStateStore interface {
	SaveTimerState(ctx context.Context, id string, state map[string]any) error
	TimerState(ctx context.Context, id string) (map[string]any, error)
	DeleteTimerState(ctx context.Context, id string) error
}

// ProviderConfig drives the storage manager's primary selection.
type ProviderConfig struct {
	Provider        string
	FallbackEnabled bool
}

// Validate checks the provider name.
func (c ProviderConfig) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Provider)) {
	case ProviderLocal, ProviderRemote:
		return nil
	default:
		return fmt.Errorf("%w: provider config: unknown provider %q", ErrValidation, c.Provider)
	}
}
