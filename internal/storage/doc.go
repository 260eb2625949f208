// Package storage defines the record model, the classified error taxonomy,
// and the provider façade shared by every Satchel store.
//
// Providers expose one uniform CRUD surface per logical table so sync code
// can dispatch by table name alone. The Manager selects a primary provider
// per operation and retries classified transient failures once against the
// local store without disturbing the configured selection.
package storage
