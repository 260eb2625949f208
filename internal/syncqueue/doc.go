// Package syncqueue persists mutations made while the remote store was
// unreachable. Each queued item carries everything needed to replay it later:
// the operation, the logical table, and the full payload. The syncer drains
// the queue oldest-first and drives each item through the
// pending/syncing/completed/failed lifecycle.
package syncqueue
