// Package syncer pushes queued offline mutations to the remote store.
//
// A drain fetches pending and failed queue items in enqueue order, claims each
// one, and dispatches it by (table, operation) to the remote provider. Updates
// resolve against the current remote copy before pushing. Failures classify:
// transient errors spend the item's retry budget and return it to pending,
// while validation failures and manually parked conflicts go straight to the
// terminal failed status. Failed items stay visible in queue stats until a
// reset or removal; ResetFailed restores their retry budget.
//
// Drains are single-flight. Concurrent triggers share the in-flight pass and
// its result, so a burst of connectivity flips and manual syncs performs one
// pass over the queue.
package syncer
