// Package offline implements the offline-first storage façade callers use for
// everyday CRUD. Reads are served from the local store and never block on the
// network. Writes commit locally first, then settle against the remote store:
// online pushes happen inline, while offline states and failed pushes queue
// the mutation for a later drain. Same-record update bursts coalesce through
// the debouncer so a flurry of edits produces one local write and at most one
// queue row. The manager also owns the sync triggers that are not user-driven:
// connectivity-online transitions and post-import settle drains.
package offline
