// Package notifications delivers sync lifecycle events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when no topic is set.
// Enumerated event types cover drain starts, completions, failures, queue
// backlogs, and conflicts so sync code can emit consistent messages without
// duplicating HTTP glue. The configuration's sync/errors toggles and queue
// threshold suppress events at the service, keeping call sites unconditional.
//
// Extend this package if you need alternative transports; callers depend only
// on the Service interface.
package notifications
