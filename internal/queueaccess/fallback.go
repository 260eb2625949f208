package queueaccess

import (
	"fmt"

	"satchel/internal/ipc"
	"satchel/internal/localstore"
	"satchel/internal/syncqueue"
)

// Session represents a queue access handle and its cleanup function.
type Session struct {
	Access Access
	close  func() error
}

// Close releases resources associated with the session.
func (s Session) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenWithFallback tries IPC-backed access first, then falls back to direct
// store access against the client database.
func OpenWithFallback(
	dial func() (*ipc.Client, error),
	openStore func() (*localstore.Store, error),
) (Session, error) {
	if dial != nil {
		if client, err := dial(); err == nil {
			return Session{
				Access: NewIPCAccess(client),
				close:  client.Close,
			}, nil
		}
	}

	if openStore == nil {
		return Session{}, fmt.Errorf("open queue store: no store opener configured")
	}
	store, err := openStore()
	if err != nil {
		return Session{}, fmt.Errorf("open queue store: %w", err)
	}
	queue, err := syncqueue.NewStore(store.DB())
	if err != nil {
		_ = store.Close()
		return Session{}, fmt.Errorf("bind sync queue: %w", err)
	}
	return Session{
		Access: NewStoreAccess(queue),
		close:  store.Close,
	}, nil
}
