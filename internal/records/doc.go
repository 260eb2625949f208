// Package records is the registry of logical tables the data layer serves.
//
// Queue and cache payloads are loosely typed maps discriminated on the table
// field; this package validates them against per-table rules before they are
// durably enqueued, decides which tables sync to the remote store, and owns
// the payload merge helpers shared by the debouncer and import paths.
package records
