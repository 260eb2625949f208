// Package localstore is the durable client-side store backed by SQLite. It
// implements the local storage provider over a generic records table plus the
// timer-state table for ephemeral session data, and shares its database handle
// with the sync queue and the cache.
package localstore
