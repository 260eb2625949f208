// Package remotestore implements the storage provider backed by the
// authoritative HTTP API. Failures are classified by transport outcome and
// status code so the storage manager and the syncer can route on error class:
// connectivity problems and 5xx responses are network errors, 401/403 are
// authentication errors, and 400/422 are validation errors.
package remotestore
